// Package github implements a git.Provider that maintains pull requests on
// GitHub (cloud or enterprise). Configure with a Config containing the
// repository owner, name, and personal access token. Set EnterpriseHost for
// GitHub Enterprise installations and HeadOwner when the head branch lives
// in a fork.
package github
