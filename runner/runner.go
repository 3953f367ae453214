package runner

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/valyala/fasttemplate"

	"github.com/byte4ever/create_pr/git"
	"github.com/byte4ever/create_pr/gitcfg"
	"github.com/byte4ever/create_pr/identity"
	"github.com/byte4ever/create_pr/reconcile"
)

// forkRemoteName is the remote registered for
// push-to-fork runs.
const forkRemoteName = "fork"

// shortSHALen mirrors git's default abbreviation width
// used in template variables.
const shortSHALen = 8

// Pull request operations reported in the outputs.
const (
	opNone    = "none"
	opCreated = "created"
	opUpdated = "updated"
	opClosed  = "closed"
)

// Run executes one full run: configure git, reconcile the
// branch, push it, and maintain the pull request through
// the provider. The provider may be nil for dry runs.
//
//nolint:funlen // the phase sequence reads best linearly
func Run(
	ctx context.Context,
	cfg Config,
	provider git.Provider,
) (*Outputs, error) {
	const errCtx = "running create_pr"

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	repo, err := git.Open(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	helper := gitcfg.NewHelper(repo, repo.Dir, "")

	if cfg.Token != "" {
		if err := helper.Configure(
			cfg.Token,
		); err != nil {
			return nil, fmt.Errorf(
				"%s: %w", errCtx, err,
			)
		}

		defer helper.Restore()
	}

	committer, err := identity.Parse(cfg.Committer)
	if err != nil {
		return nil, fmt.Errorf(
			"%s: committer: %w", errCtx, err,
		)
	}

	var author identity.Identity

	if cfg.Author != "" {
		author, err = identity.Parse(cfg.Author)
		if err != nil {
			return nil, fmt.Errorf(
				"%s: author: %w", errCtx, err,
			)
		}
	}

	// Replayed commits need a configured committer.
	if err := helper.ConfigureIdentity(
		committer,
	); err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	branch, err := suffixedBranch(
		cfg.Branch, cfg.BranchSuffix, repo,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	slog.Info(
		"reconciling branch",
		"branch", branch,
		"base", cfg.Base,
	)

	outcome, err := reconcile.New(repo, "").Reconcile(
		reconcile.Input{
			Branch:        branch,
			Base:          cfg.Base,
			CommitMessage: cfg.CommitMessage,
			Committer:     committer,
			Author:        author,
			Signoff:       cfg.Signoff,
			AddPaths:      cfg.AddPaths,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	slog.Info(
		"branch reconciled",
		"action", outcome.Action.String(),
		"hasDiff", outcome.HasDiffWithBase,
		"head", outcome.HeadSHA,
	)

	outputs := &Outputs{
		PullRequestOperation: opNone,
		PullRequestHeadSHA:   outcome.HeadSHA,
		PullRequestBranch:    branch,
	}

	// Push when the branch was created or realigned.
	needsPush := outcome.Action == reconcile.Created ||
		outcome.Action == reconcile.Updated

	if needsPush {
		if cfg.DryRun {
			slog.Info(
				"dry run: skipping push",
				"branch", branch,
			)
		} else {
			remote, err := pushRemote(cfg, repo, helper)
			if err != nil {
				return nil, fmt.Errorf(
					"%s: %w", errCtx, err,
				)
			}

			if err := repo.Push(
				remote, branch,
			); err != nil {
				return nil, fmt.Errorf(
					"%s: %w", errCtx, err,
				)
			}

			slog.Info(
				"pushed branch",
				"branch", branch,
				"remote", remote,
			)
		}
	}

	switch {
	case outcome.HasDiffWithBase:
		if cfg.DryRun {
			slog.Info(
				"dry run: skipping pull request",
			)

			break
		}

		if err := maintainPR(
			ctx, cfg, provider, branch,
			outcome, outputs,
		); err != nil {
			return nil, fmt.Errorf(
				"%s: %w", errCtx, err,
			)
		}

	case cfg.DeleteBranch:
		if cfg.DryRun {
			slog.Info(
				"dry run: skipping branch deletion",
			)

			break
		}

		slog.Info(
			"branch carries no changes, deleting",
			"branch", branch,
		)

		if err := provider.DeleteRemoteBranch(
			ctx, branch,
		); err != nil {
			slog.Warn(
				"could not delete remote branch",
				"branch", branch,
				"error", err,
			)
		} else {
			outputs.PullRequestOperation = opClosed
		}

	default:
		slog.Info("no changes, nothing to propose")
	}

	return outputs, nil
}

// maintainPR opens or refreshes the pull request and
// applies its metadata.
func maintainPR(
	ctx context.Context,
	cfg Config,
	provider git.Provider,
	branch string,
	outcome *reconcile.Outcome,
	outputs *Outputs,
) error {
	title, body, err := renderTitleBody(
		cfg, branch, outcome,
	)
	if err != nil {
		return err
	}

	pr, err := provider.CreateOrUpdatePR(
		ctx, branch, outcome.Base,
		title, body, cfg.Draft,
	)
	if err != nil {
		return err
	}

	outputs.PullRequestNumber = pr.Number
	outputs.PullRequestURL = pr.URL

	if outcome.Action == reconcile.Created {
		outputs.PullRequestOperation = opCreated
	} else {
		outputs.PullRequestOperation = opUpdated
	}

	meta := git.Metadata{
		Labels:        cfg.Labels,
		Assignees:     cfg.Assignees,
		Reviewers:     cfg.Reviewers,
		TeamReviewers: cfg.TeamReviewers,
		Milestone:     cfg.Milestone,
	}

	if meta.Empty() {
		return nil
	}

	return provider.ApplyMetadata(ctx, pr.Number, meta)
}

// renderTitleBody expands the {{VAR}} template variables
// in the configured title and body. BodyPath overrides
// Body.
func renderTitleBody(
	cfg Config,
	branch string,
	outcome *reconcile.Outcome,
) (string, string, error) {
	const errCtx = "rendering pull request text"

	body := cfg.Body

	if cfg.BodyPath != "" {
		//nolint:gosec // operator-provided path
		data, err := os.ReadFile(cfg.BodyPath)
		if err != nil {
			return "", "", fmt.Errorf(
				"%s: body file: %w", errCtx, err,
			)
		}

		body = string(data)
	}

	shortSHA := outcome.HeadSHA
	if len(shortSHA) > shortSHALen {
		shortSHA = shortSHA[:shortSHALen]
	}

	vars := map[string]any{
		"BRANCH":    branch,
		"BASE":      outcome.Base,
		"HEAD_SHA":  outcome.HeadSHA,
		"SHORT_SHA": shortSHA,
	}

	return expand(cfg.Title, vars),
		expand(body, vars),
		nil
}

// expand substitutes {{VAR}} placeholders using
// valyala/fasttemplate. Unknown placeholders render
// empty.
func expand(s string, vars map[string]any) string {
	if s == "" {
		return s
	}

	return fasttemplate.New(
		s, "{{", "}}",
	).ExecuteString(vars)
}

// pushRemote returns the remote to push the branch to,
// registering the fork remote when requested.
func pushRemote(
	cfg Config,
	repo *git.Repo,
	helper *gitcfg.Helper,
) (string, error) {
	const errCtx = "resolving push remote"

	if cfg.PushToFork == "" {
		return repo.RemoteName, nil
	}

	detail, ok := helper.RemoteDetail()
	if !ok {
		url, err := repo.RemoteURL(repo.RemoteName)
		if err != nil {
			return "", fmt.Errorf(
				"%s: %w", errCtx, err,
			)
		}

		detail, err = gitcfg.ParseRemoteURL(url)
		if err != nil {
			return "", fmt.Errorf(
				"%s: %w", errCtx, err,
			)
		}
	}

	forkDetail := gitcfg.RemoteDetail{
		Protocol:   detail.Protocol,
		Host:       detail.Host,
		Repository: cfg.PushToFork,
	}

	if err := repo.AddRemote(
		forkRemoteName,
		forkDetail.AuthenticatedURL(cfg.Token),
	); err != nil {
		return "", fmt.Errorf("%s: %w", errCtx, err)
	}

	return forkRemoteName, nil
}
