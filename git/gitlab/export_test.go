package gitlab

// DraftTitleForTest exposes draftTitle.
var DraftTitleForTest = draftTitle
