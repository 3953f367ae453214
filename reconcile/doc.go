// Package reconcile implements the branch reconciliation
// algorithm at the heart of pull request proposal: given a
// working tree with pending changes, a target branch, and
// a base branch, it produces a branch whose tip equals
// "base plus the pending changes" and classifies the
// outcome as created, updated, not-updated, or none.
//
// The pending changes are committed on an ephemeral
// per-run workspace branch, replayed onto the base via
// cherry-pick when the working base diverges from the
// desired base, and compared against the remote state of
// the target branch. The workspace is always deleted and
// the original checkout restored, on success and failure
// alike.
//
// The reconciler consumes the GitOps interface rather than
// a concrete repository so the algorithm can be exercised
// against a fake in tests. *git.Repo is the production
// implementation.
package reconcile
