package reconcile

// Exported aliases for testing internal functions from
// the reconcile_test package.

// ShouldResetForTest exposes shouldReset.
var ShouldResetForTest = shouldReset

// ClassifyMissingForTest exposes classifyMissing.
var ClassifyMissingForTest = classifyMissing

// ClassifyExistingForTest exposes classifyExisting.
var ClassifyExistingForTest = classifyExisting

// TempBranchNameForTest exposes tempBranchName.
var TempBranchNameForTest = tempBranchName
