// Package runner orchestrates a full create_pr run: git
// configuration, branch reconciliation, pushing, pull
// request maintenance through a hosting provider, and
// output publishing.
package runner
