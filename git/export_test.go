package git

// Exported aliases for testing internal functions from
// the git_test package.

// ParseCommitShowForTest exposes parseCommitShow.
var ParseCommitShowForTest = parseCommitShow

// ParseNameStatusForTest exposes parseNameStatus.
var ParseNameStatusForTest = parseNameStatus
