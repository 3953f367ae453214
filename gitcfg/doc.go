// Package gitcfg manages the transient git configuration a
// reconciliation run needs: remote URL parsing, token
// authentication over https, and committer identity. All
// changes are reversible through Restore.
package gitcfg
