package gitlab

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	gl "gitlab.com/gitlab-org/api/client-go"

	"github.com/byte4ever/create_pr/git"
)

// draftPrefix marks a merge request as draft on GitLab.
const draftPrefix = "Draft: "

// Config holds the settings needed to create a GitLab
// merge request provider.
type Config struct {
	// Host is the base URL of the GitLab instance
	// (e.g. "https://gitlab.com").
	Host string
	// Repo is the full project path
	// (e.g. "org/project").
	Repo string
	// AccessToken is a personal or project access
	// token used for authentication.
	AccessToken string
}

// Provider maintains merge requests on GitLab.
//
// Pattern: Strategy -- implements git.Provider.
type Provider struct {
	client *gl.Client
	repo   string
}

// NewProvider validates cfg and returns a Provider
// ready to maintain merge requests.
func NewProvider(cfg Config) (*Provider, error) {
	const errCtx = "creating gitlab provider"

	if cfg.AccessToken == "" {
		return nil, fmt.Errorf(
			"%s: access token must be set", errCtx,
		)
	}

	if cfg.Repo == "" {
		return nil, fmt.Errorf(
			"%s: repo must be set", errCtx,
		)
	}

	host := cfg.Host
	if host == "" {
		host = "https://gitlab.com"
	}

	client, err := gl.NewClient(
		cfg.AccessToken,
		gl.WithBaseURL(host),
	)
	if err != nil {
		return nil, fmt.Errorf(
			"%s: new client: %w", errCtx, err,
		)
	}

	return &Provider{
		client: client,
		repo:   cfg.Repo,
	}, nil
}

// CreateOrUpdatePR creates a merge request from head into
// base. When one already exists for the source branch
// (HTTP 409) its title and description are refreshed
// instead.
func (p *Provider) CreateOrUpdatePR(
	ctx context.Context,
	head string,
	base string,
	title string,
	body string,
	draft bool,
) (*git.PullRequest, error) {
	const errCtx = "creating gitlab merge request"

	title = draftTitle(title, draft)

	opts := gl.CreateMergeRequestOptions{
		Title:        &title,
		Description:  &body,
		SourceBranch: &head,
		TargetBranch: &base,
	}

	created, resp, err := p.client.MergeRequests.
		CreateMergeRequest(
			p.repo, &opts, gl.WithContext(ctx),
		)
	if err == nil {
		slog.Info(
			"created merge request",
			"iid", created.IID,
			"url", created.WebURL,
		)

		return &git.PullRequest{
			Number: created.IID,
			URL:    created.WebURL,
		}, nil
	}

	// HTTP 409: a MR already exists for this source
	// branch.
	if resp != nil &&
		resp.StatusCode == http.StatusConflict {
		existing, findErr := p.findExisting(
			ctx, head, base,
		)
		if findErr == nil && existing != nil {
			return p.refresh(
				ctx, existing.IID, title, body,
			)
		}
	}

	return nil, fmt.Errorf("%s: %w", errCtx, err)
}

// ApplyMetadata applies labels, assignees, reviewers, and
// milestone to an existing merge request. Team reviewers
// have no GitLab equivalent and are skipped.
func (p *Provider) ApplyMetadata(
	ctx context.Context,
	number int,
	meta git.Metadata,
) error {
	const errCtx = "applying merge request metadata"

	opts := gl.UpdateMergeRequestOptions{}
	dirty := false

	if len(meta.Labels) > 0 {
		labels := gl.LabelOptions(meta.Labels)
		opts.AddLabels = &labels
		dirty = true
	}

	if len(meta.Assignees) > 0 {
		ids, err := p.userIDs(ctx, meta.Assignees)
		if err != nil {
			return fmt.Errorf(
				"%s: assignees: %w", errCtx, err,
			)
		}

		opts.AssigneeIDs = &ids
		dirty = true
	}

	if len(meta.Reviewers) > 0 {
		ids, err := p.userIDs(ctx, meta.Reviewers)
		if err != nil {
			return fmt.Errorf(
				"%s: reviewers: %w", errCtx, err,
			)
		}

		opts.ReviewerIDs = &ids
		dirty = true
	}

	if len(meta.TeamReviewers) > 0 {
		slog.Warn(
			"team reviewers are not supported on gitlab",
		)
	}

	if meta.Milestone > 0 {
		milestone := meta.Milestone
		opts.MilestoneID = &milestone
		dirty = true
	}

	if !dirty {
		return nil
	}

	if _, _, err := p.client.MergeRequests.
		UpdateMergeRequest(
			p.repo, number, &opts,
			gl.WithContext(ctx),
		); err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	return nil
}

// DeleteRemoteBranch removes the branch on GitLab. A
// missing branch is not an error.
func (p *Provider) DeleteRemoteBranch(
	ctx context.Context,
	branch string,
) error {
	const errCtx = "deleting remote branch"

	resp, err := p.client.Branches.DeleteBranch(
		p.repo, branch, gl.WithContext(ctx),
	)
	if err != nil {
		if resp != nil &&
			resp.StatusCode == http.StatusNotFound {
			return nil
		}

		return fmt.Errorf(
			"%s %s: %w", errCtx, branch, err,
		)
	}

	return nil
}

// findExisting locates the open merge request for the
// source/target pair, if any.
func (p *Provider) findExisting(
	ctx context.Context,
	head string,
	base string,
) (*gl.BasicMergeRequest, error) {
	state := "opened"

	mrs, _, err := p.client.MergeRequests.
		ListProjectMergeRequests(
			p.repo,
			&gl.ListProjectMergeRequestsOptions{
				State:        &state,
				SourceBranch: &head,
				TargetBranch: &base,
			},
			gl.WithContext(ctx),
		)
	if err != nil {
		return nil, err
	}

	if len(mrs) == 0 {
		return nil, nil
	}

	return mrs[0], nil
}

// refresh updates the title and description of an
// existing merge request.
func (p *Provider) refresh(
	ctx context.Context,
	iid int,
	title string,
	body string,
) (*git.PullRequest, error) {
	const errCtx = "updating gitlab merge request"

	updated, _, err := p.client.MergeRequests.
		UpdateMergeRequest(
			p.repo, iid,
			&gl.UpdateMergeRequestOptions{
				Title:       &title,
				Description: &body,
			},
			gl.WithContext(ctx),
		)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	slog.Info(
		"updated existing merge request",
		"iid", updated.IID,
		"url", updated.WebURL,
	)

	return &git.PullRequest{
		Number: updated.IID,
		URL:    updated.WebURL,
	}, nil
}

// userIDs resolves usernames to GitLab user IDs.
func (p *Provider) userIDs(
	ctx context.Context,
	usernames []string,
) ([]int, error) {
	ids := make([]int, 0, len(usernames))

	for _, username := range usernames {
		username := username

		users, _, err := p.client.Users.ListUsers(
			&gl.ListUsersOptions{
				Username: &username,
			},
			gl.WithContext(ctx),
		)
		if err != nil {
			return nil, fmt.Errorf(
				"resolving user %s: %w", username, err,
			)
		}

		if len(users) == 0 {
			return nil, fmt.Errorf(
				"unknown user %s", username,
			)
		}

		ids = append(ids, users[0].ID)
	}

	return ids, nil
}

// draftTitle applies GitLab's draft title convention.
func draftTitle(title string, draft bool) string {
	if !draft ||
		strings.HasPrefix(title, draftPrefix) {
		return title
	}

	return draftPrefix + title
}
