package runner

// SuffixedBranchForTest exposes suffixedBranch.
var SuffixedBranchForTest = suffixedBranch

// ExpandForTest exposes expand.
var ExpandForTest = expand
