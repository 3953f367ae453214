package git

import "context"

// Pattern: Strategy -- swap git hosting platform without
// changing the branch workflow.

// PullRequest identifies an open pull request on the
// hosting platform.
type PullRequest struct {
	// Number is the platform-assigned PR number.
	Number int
	// URL is the human-facing PR URL.
	URL string
}

// Metadata is the optional metadata applied to a pull
// request after creation.
type Metadata struct {
	// Labels to add.
	Labels []string
	// Assignees to add.
	Assignees []string
	// Reviewers to request.
	Reviewers []string
	// TeamReviewers to request (without org prefix).
	TeamReviewers []string
	// Milestone number; zero means none.
	Milestone int
}

// Empty reports whether there is nothing to apply.
func (m Metadata) Empty() bool {
	return len(m.Labels) == 0 &&
		len(m.Assignees) == 0 &&
		len(m.Reviewers) == 0 &&
		len(m.TeamReviewers) == 0 &&
		m.Milestone == 0
}

// Provider opens and maintains pull requests on a git
// hosting platform.
type Provider interface {
	// CreateOrUpdatePR opens a pull request from head
	// into base, or refreshes the title and body of the
	// existing one for that head/base pair.
	CreateOrUpdatePR(
		ctx context.Context,
		head string,
		base string,
		title string,
		body string,
		draft bool,
	) (*PullRequest, error)

	// ApplyMetadata applies labels, assignees,
	// reviewers, and milestone to an existing pull
	// request.
	ApplyMetadata(
		ctx context.Context,
		number int,
		meta Metadata,
	) error

	// DeleteRemoteBranch removes a stale branch on the
	// hosting platform.
	DeleteRemoteBranch(
		ctx context.Context,
		branch string,
	) error
}
