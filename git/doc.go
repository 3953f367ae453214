// Package git provides repository operations over the git
// CLI and a strategy interface for pull request creation
// across different git hosting platforms.
//
// Repo wraps a local working tree with the primitives the
// branch reconciliation workflow needs: checkout, staging,
// committing, stashing, fetching, cherry-picking, and
// commit metadata extraction. Every operation blocks until
// the underlying git process completes and fails with a
// typed *exec.CommandError carrying the failed command and
// its diagnostic output.
//
// The Provider interface abstracts pull request creation
// and maintenance. Implementations exist for GitHub,
// GitLab, and Bitbucket Server in sub-packages.
package git
