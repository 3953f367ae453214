package github

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	gh "github.com/google/go-github/v68/github"

	"github.com/byte4ever/create_pr/git"
)

// Config holds the settings needed to create a GitHub
// pull request provider.
type Config struct {
	// RepoOwner is the GitHub user or organisation
	// that owns the repository pull requests target.
	RepoOwner string
	// Repo is the repository name (without owner).
	Repo string
	// AccessToken is a personal access token or
	// GitHub App token used for authentication.
	AccessToken string
	// EnterpriseHost is an optional GitHub Enterprise
	// hostname (e.g. "git.corp.example.com"). Leave
	// empty for github.com.
	EnterpriseHost string
	// HeadOwner optionally names the fork owner the
	// head branch lives in. Leave empty when the head
	// branch is in the target repository.
	HeadOwner string
}

// Provider maintains pull requests on GitHub.
//
// Pattern: Strategy -- implements git.Provider.
type Provider struct {
	client    *gh.Client
	repoOwner string
	repo      string
	headOwner string
}

// NewProvider validates cfg and returns a Provider
// ready to maintain pull requests.
func NewProvider(cfg Config) (*Provider, error) {
	const errCtx = "creating github provider"

	if cfg.RepoOwner == "" {
		return nil, fmt.Errorf(
			"%s: repo owner must be set", errCtx,
		)
	}

	if cfg.Repo == "" {
		return nil, fmt.Errorf(
			"%s: repo must be set", errCtx,
		)
	}

	if cfg.AccessToken == "" {
		return nil, fmt.Errorf(
			"%s: access token must be set", errCtx,
		)
	}

	client := gh.NewClient(nil).
		WithAuthToken(cfg.AccessToken)

	if cfg.EnterpriseHost != "" {
		baseURL := "https://" +
			cfg.EnterpriseHost + "/api/v3/"
		uploadURL := "https://" +
			cfg.EnterpriseHost + "/api/uploads/"

		var err error

		client, err = client.WithEnterpriseURLs(
			baseURL, uploadURL,
		)
		if err != nil {
			return nil, fmt.Errorf(
				"%s: enterprise urls: %w",
				errCtx, err,
			)
		}
	}

	headOwner := cfg.HeadOwner
	if headOwner == "" {
		headOwner = cfg.RepoOwner
	}

	return &Provider{
		client:    client,
		repoOwner: cfg.RepoOwner,
		repo:      cfg.Repo,
		headOwner: headOwner,
	}, nil
}

// CreateOrUpdatePR opens a pull request from head into
// base. When one already exists for the pair (HTTP 422)
// its title and body are refreshed instead.
func (p *Provider) CreateOrUpdatePR(
	ctx context.Context,
	head string,
	base string,
	title string,
	body string,
	draft bool,
) (*git.PullRequest, error) {
	const errCtx = "creating github pull request"

	maintainerCanModify := true
	qualifiedHead := p.qualifyHead(head)

	pr := &gh.NewPullRequest{
		Title:               &title,
		Head:                &qualifiedHead,
		Base:                &base,
		Body:                &body,
		Draft:               &draft,
		MaintainerCanModify: &maintainerCanModify,
	}

	created, resp, err := p.client.PullRequests.Create(
		ctx, p.repoOwner, p.repo, pr,
	)
	if err == nil {
		slog.Info(
			"created pull request",
			"number", created.GetNumber(),
			"url", created.GetHTMLURL(),
		)

		return &git.PullRequest{
			Number: created.GetNumber(),
			URL:    created.GetHTMLURL(),
		}, nil
	}

	// HTTP 422: a PR may already exist for this
	// head/base pair.
	if resp != nil &&
		resp.StatusCode ==
			http.StatusUnprocessableEntity {
		existing, findErr := p.findExisting(
			ctx, qualifiedHead, base,
		)
		if findErr == nil && existing != nil {
			return p.refresh(ctx, existing, title, body)
		}
	}

	return nil, fmt.Errorf("%s: %w", errCtx, err)
}

// ApplyMetadata applies labels, assignees, reviewers, and
// milestone to an existing pull request.
func (p *Provider) ApplyMetadata(
	ctx context.Context,
	number int,
	meta git.Metadata,
) error {
	const errCtx = "applying pull request metadata"

	if len(meta.Labels) > 0 {
		if _, _, err := p.client.Issues.
			AddLabelsToIssue(
				ctx, p.repoOwner, p.repo,
				number, meta.Labels,
			); err != nil {
			return fmt.Errorf(
				"%s: labels: %w", errCtx, err,
			)
		}
	}

	if len(meta.Assignees) > 0 {
		if _, _, err := p.client.Issues.AddAssignees(
			ctx, p.repoOwner, p.repo,
			number, meta.Assignees,
		); err != nil {
			return fmt.Errorf(
				"%s: assignees: %w", errCtx, err,
			)
		}
	}

	if len(meta.Reviewers) > 0 ||
		len(meta.TeamReviewers) > 0 {
		if _, _, err := p.client.PullRequests.
			RequestReviewers(
				ctx, p.repoOwner, p.repo, number,
				gh.ReviewersRequest{
					Reviewers: meta.Reviewers,
					TeamReviewers: stripTeamPrefix(
						meta.TeamReviewers,
					),
				},
			); err != nil {
			return fmt.Errorf(
				"%s: reviewers: %w", errCtx, err,
			)
		}
	}

	if meta.Milestone > 0 {
		milestone := meta.Milestone
		if _, _, err := p.client.Issues.Edit(
			ctx, p.repoOwner, p.repo, number,
			&gh.IssueRequest{Milestone: &milestone},
		); err != nil {
			return fmt.Errorf(
				"%s: milestone: %w", errCtx, err,
			)
		}
	}

	return nil
}

// DeleteRemoteBranch removes the branch ref on GitHub. A
// missing branch is not an error.
func (p *Provider) DeleteRemoteBranch(
	ctx context.Context,
	branch string,
) error {
	const errCtx = "deleting remote branch"

	resp, err := p.client.Git.DeleteRef(
		ctx, p.repoOwner, p.repo, "heads/"+branch,
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

// findExisting locates the open pull request for the
// head/base pair, if any.
func (p *Provider) findExisting(
	ctx context.Context,
	qualifiedHead string,
	base string,
) (*gh.PullRequest, error) {
	pulls, _, err := p.client.PullRequests.List(
		ctx, p.repoOwner, p.repo,
		&gh.PullRequestListOptions{
			State: "open",
			Head:  qualifiedHead,
			Base:  base,
		},
	)
	if err != nil {
		return nil, err
	}

	if len(pulls) == 0 {
		return nil, nil
	}

	return pulls[0], nil
}

// refresh updates the title and body of an existing pull
// request.
func (p *Provider) refresh(
	ctx context.Context,
	existing *gh.PullRequest,
	title string,
	body string,
) (*git.PullRequest, error) {
	const errCtx = "updating github pull request"

	existing.Title = &title
	existing.Body = &body

	updated, _, err := p.client.PullRequests.Edit(
		ctx, p.repoOwner, p.repo,
		existing.GetNumber(), existing,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	slog.Info(
		"updated existing pull request",
		"number", updated.GetNumber(),
		"url", updated.GetHTMLURL(),
	)

	return &git.PullRequest{
		Number: updated.GetNumber(),
		URL:    updated.GetHTMLURL(),
	}, nil
}

// qualifyHead prefixes the head branch with its owner, as
// the list and cross-repository create endpoints require.
func (p *Provider) qualifyHead(head string) string {
	if strings.Contains(head, ":") {
		return head
	}

	return p.headOwner + ":" + head
}

// stripTeamPrefix reduces "org/team" identifiers to the
// bare team slug the review-request endpoint expects.
func stripTeamPrefix(teams []string) []string {
	if len(teams) == 0 {
		return teams
	}

	stripped := make([]string, 0, len(teams))

	for _, team := range teams {
		if i := strings.LastIndex(team, "/"); i >= 0 {
			team = team[i+1:]
		}

		stripped = append(stripped, team)
	}

	return stripped
}
