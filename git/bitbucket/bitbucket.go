package bitbucket

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	json "github.com/goccy/go-json"

	"github.com/byte4ever/create_pr/git"
)

// Config holds the settings needed to create a
// Bitbucket Server pull request provider.
type Config struct {
	// BaseURL is the root URL of the Bitbucket Server
	// installation (e.g. "https://bb.example.com").
	BaseURL string
	// ProjectKey is the Bitbucket project key.
	ProjectKey string
	// RepoSlug is the repository slug within the
	// project.
	RepoSlug string
	// User is the Bitbucket API username.
	User string
	// Password is the Bitbucket API password (or
	// personal access token).
	Password string
	// HTTPClient optionally overrides the HTTP client
	// used for API calls.
	HTTPClient *http.Client
}

// Provider maintains pull requests on Bitbucket Server.
//
// Pattern: Strategy -- implements git.Provider.
type Provider struct {
	baseURL    string
	projectKey string
	repoSlug   string
	user       string
	password   string
	client     *http.Client
}

type project struct {
	Key string `json:"key,omitempty"`
}

type repository struct {
	Slug    string  `json:"slug,omitempty"`
	Project project `json:"project"`
}

type prEndpoint struct {
	ID         string     `json:"id,omitempty"`
	Repository repository `json:"repository,omitempty"`
}

type selfLink struct {
	Href string `json:"href,omitempty"`
}

type prLinks struct {
	Self []selfLink `json:"self,omitempty"`
}

type pullrequest struct {
	ID          int         `json:"id,omitempty"`
	Version     int         `json:"version,omitempty"`
	Title       string      `json:"title,omitempty"`
	Description string      `json:"description,omitempty"`
	State       string      `json:"state,omitempty"`
	Open        bool        `json:"open"`
	Closed      bool        `json:"closed"`
	FromRef     *prEndpoint `json:"fromRef,omitempty"`
	ToRef       *prEndpoint `json:"toRef,omitempty"`
	Locked      bool        `json:"locked"`
	Links       *prLinks    `json:"links,omitempty"`
}

type prPage struct {
	Values []pullrequest `json:"values"`
}

type participant struct {
	User user   `json:"user"`
	Role string `json:"role"`
}

type user struct {
	Name string `json:"name,omitempty"`
}

type branchDeletion struct {
	Name   string `json:"name"`
	DryRun bool   `json:"dryRun"`
}

// NewProvider validates cfg and returns a Provider
// ready to maintain pull requests.
func NewProvider(cfg Config) (*Provider, error) {
	const errCtx = "creating bitbucket provider"

	if cfg.BaseURL == "" {
		return nil, fmt.Errorf(
			"%s: base url must be set", errCtx,
		)
	}

	if cfg.ProjectKey == "" {
		return nil, fmt.Errorf(
			"%s: project key must be set", errCtx,
		)
	}

	if cfg.RepoSlug == "" {
		return nil, fmt.Errorf(
			"%s: repo slug must be set", errCtx,
		)
	}

	if cfg.User == "" {
		return nil, fmt.Errorf(
			"%s: user must be set", errCtx,
		)
	}

	if cfg.Password == "" {
		return nil, fmt.Errorf(
			"%s: password must be set", errCtx,
		)
	}

	client := cfg.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	return &Provider{
		baseURL:    cfg.BaseURL,
		projectKey: cfg.ProjectKey,
		repoSlug:   cfg.RepoSlug,
		user:       cfg.User,
		password:   cfg.Password,
		client:     client,
	}, nil
}

// CreateOrUpdatePR creates a pull request from head into
// base. When one already exists for the pair (HTTP 409)
// its title and description are refreshed instead. The
// draft flag has no Bitbucket Server equivalent and is
// ignored.
func (p *Provider) CreateOrUpdatePR(
	ctx context.Context,
	head string,
	base string,
	title string,
	body string,
	draft bool,
) (*git.PullRequest, error) {
	const errCtx = "creating bitbucket pull request"

	if draft {
		slog.Warn(
			"draft pull requests are not supported " +
				"on bitbucket server",
		)
	}

	repo := repository{
		Slug:    p.repoSlug,
		Project: project{Key: p.projectKey},
	}

	pr := pullrequest{
		Title:       title,
		Description: body,
		State:       "OPEN",
		Open:        true,
		FromRef: &prEndpoint{
			ID:         "refs/heads/" + head,
			Repository: repo,
		},
		ToRef: &prEndpoint{
			ID:         "refs/heads/" + base,
			Repository: repo,
		},
	}

	status, respBody, err := p.do(
		ctx, http.MethodPost, p.prURL(), &pr,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	switch status {
	case http.StatusCreated:
		created, err := decodePR(respBody)
		if err != nil {
			return nil, fmt.Errorf(
				"%s: %w", errCtx, err,
			)
		}

		slog.Info(
			"created pull request",
			"id", created.Number,
			"url", created.URL,
		)

		return created, nil

	case http.StatusConflict:
		return p.refreshExisting(
			ctx, head, base, title, body,
		)

	default:
		return nil, fmt.Errorf(
			"%s: unexpected status %d: %s",
			errCtx, status, string(respBody),
		)
	}
}

// ApplyMetadata requests reviewers on an existing pull
// request. Labels, assignees, and milestones have no
// Bitbucket Server equivalent and are skipped.
func (p *Provider) ApplyMetadata(
	ctx context.Context,
	number int,
	meta git.Metadata,
) error {
	const errCtx = "applying pull request metadata"

	if len(meta.Labels) > 0 ||
		len(meta.Assignees) > 0 ||
		len(meta.TeamReviewers) > 0 ||
		meta.Milestone > 0 {
		slog.Warn(
			"only reviewers are supported on " +
				"bitbucket server",
		)
	}

	for _, reviewer := range meta.Reviewers {
		status, respBody, err := p.do(
			ctx,
			http.MethodPost,
			fmt.Sprintf(
				"%s/%d/participants",
				p.prURL(), number,
			),
			&participant{
				User: user{Name: reviewer},
				Role: "REVIEWER",
			},
		)
		if err != nil {
			return fmt.Errorf(
				"%s: %w", errCtx, err,
			)
		}

		if status != http.StatusOK &&
			status != http.StatusCreated {
			return fmt.Errorf(
				"%s: reviewer %s: "+
					"unexpected status %d: %s",
				errCtx, reviewer, status,
				string(respBody),
			)
		}
	}

	return nil
}

// DeleteRemoteBranch removes the branch on Bitbucket
// Server. A missing branch is not an error.
func (p *Provider) DeleteRemoteBranch(
	ctx context.Context,
	branch string,
) error {
	const errCtx = "deleting remote branch"

	deletionURL := fmt.Sprintf(
		"%s/rest/branch-utils/1.0/projects/%s/repos/%s/branches",
		p.baseURL, p.projectKey, p.repoSlug,
	)

	status, respBody, err := p.do(
		ctx, http.MethodDelete, deletionURL,
		&branchDeletion{
			Name: "refs/heads/" + branch,
		},
	)
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	if status != http.StatusNoContent &&
		status != http.StatusNotFound {
		return fmt.Errorf(
			"%s %s: unexpected status %d: %s",
			errCtx, branch, status, string(respBody),
		)
	}

	return nil
}

// refreshExisting finds the open pull request for the
// head/base pair and refreshes its title and description.
func (p *Provider) refreshExisting(
	ctx context.Context,
	head string,
	base string,
	title string,
	body string,
) (*git.PullRequest, error) {
	const errCtx = "updating bitbucket pull request"

	existing, err := p.findExisting(ctx, head, base)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	if existing == nil {
		return nil, fmt.Errorf(
			"%s: no open pull request for %s",
			errCtx, head,
		)
	}

	update := pullrequest{
		Version:     existing.Version,
		Title:       title,
		Description: body,
	}

	status, respBody, err := p.do(
		ctx,
		http.MethodPut,
		fmt.Sprintf("%s/%d", p.prURL(), existing.ID),
		&update,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	if status != http.StatusOK {
		return nil, fmt.Errorf(
			"%s: unexpected status %d: %s",
			errCtx, status, string(respBody),
		)
	}

	updated, err := decodePR(respBody)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	slog.Info(
		"updated existing pull request",
		"id", updated.Number,
		"url", updated.URL,
	)

	return updated, nil
}

// findExisting locates the open pull request for the
// head/base pair, if any.
func (p *Provider) findExisting(
	ctx context.Context,
	head string,
	base string,
) (*pullrequest, error) {
	listURL := fmt.Sprintf(
		"%s?state=OPEN&direction=OUTGOING&at=%s",
		p.prURL(),
		url.QueryEscape("refs/heads/"+head),
	)

	status, respBody, err := p.do(
		ctx, http.MethodGet, listURL, nil,
	)
	if err != nil {
		return nil, err
	}

	if status != http.StatusOK {
		return nil, fmt.Errorf(
			"listing pull requests: "+
				"unexpected status %d", status,
		)
	}

	var page prPage
	if err := json.Unmarshal(
		respBody, &page,
	); err != nil {
		return nil, fmt.Errorf(
			"decoding pull request page: %w", err,
		)
	}

	baseRef := "refs/heads/" + base

	for i := range page.Values {
		pr := &page.Values[i]
		if pr.ToRef != nil && pr.ToRef.ID == baseRef {
			return pr, nil
		}
	}

	return nil, nil
}

// do sends one JSON API request and returns the status
// code and response body.
func (p *Provider) do(
	ctx context.Context,
	method string,
	requestURL string,
	payload any,
) (int, []byte, error) {
	var reqBody io.Reader

	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf(
				"marshal request: %w", err,
			)
		}

		reqBody = bytes.NewBuffer(encoded)
	}

	req, err := http.NewRequestWithContext(
		ctx, method, requestURL, reqBody,
	)
	if err != nil {
		return 0, nil, fmt.Errorf(
			"build request: %w", err,
		)
	}

	req.Header.Set(
		"Content-Type",
		"application/json; charset=utf-8",
	)
	req.SetBasicAuth(p.user, p.password)

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf(
			"send request: %w", err,
		)
	}

	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		slog.Warn(
			"cannot read response body",
			"error", err,
		)

		respBody = nil
	}

	return resp.StatusCode, respBody, nil
}

func (p *Provider) prURL() string {
	return fmt.Sprintf(
		"%s/rest/api/1.0/projects/%s/repos/%s/pull-requests",
		p.baseURL, p.projectKey, p.repoSlug,
	)
}

func decodePR(body []byte) (*git.PullRequest, error) {
	var pr pullrequest
	if err := json.Unmarshal(body, &pr); err != nil {
		return nil, fmt.Errorf(
			"decoding pull request: %w", err,
		)
	}

	result := &git.PullRequest{Number: pr.ID}

	if pr.Links != nil && len(pr.Links.Self) > 0 {
		result.URL = pr.Links.Self[0].Href
	}

	return result, nil
}
