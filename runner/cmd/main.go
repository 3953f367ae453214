// Command create_pr proposes the working tree's pending
// changes as a pull request: it commits them on a branch,
// force-aligns the branch to "base plus changes", pushes
// it, and opens or refreshes the pull request on the
// configured git hosting platform.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/byte4ever/create_pr/git"
	"github.com/byte4ever/create_pr/git/bitbucket"
	"github.com/byte4ever/create_pr/git/github"
	"github.com/byte4ever/create_pr/git/gitlab"
	"github.com/byte4ever/create_pr/runner"
)

// sliceFlag implements flag.Value for multi-value
// string flags (repeated --flag=val usage).
type sliceFlag []string

// String returns the flag value as a comma-separated
// string representation.
func (s *sliceFlag) String() string {
	if s == nil {
		return ""
	}

	return strings.Join(*s, ",")
}

// Set appends a value to the slice.
func (s *sliceFlag) Set(val string) error {
	*s = append(*s, val)

	return nil
}

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

//nolint:funlen // CLI flag setup is inherently long
func run() error {
	const errCtx = "running create_pr"

	configFile := flag.String(
		"config", "",
		"YAML config file with run inputs",
	)

	// Repository flags.
	path := flag.String(
		"path", "",
		"Repository working tree path",
	)

	var addPaths sliceFlag

	flag.Var(
		&addPaths,
		"add_path",
		"Pathspec restricting committed files "+
			"(repeatable)",
	)

	token := flag.String(
		"token", "",
		"Access token for git pushes and API calls",
	)

	// Commit flags.
	commitMessage := flag.String(
		"commit_message", "",
		"Commit message for pending changes",
	)
	committer := flag.String(
		"committer", "",
		"Committer identity (Name <email>)",
	)
	author := flag.String(
		"author", "",
		"Author identity (Name <email>)",
	)
	signoff := flag.Bool(
		"signoff", false,
		"Add a Signed-off-by trailer",
	)

	// Branch flags.
	branch := flag.String(
		"branch", "",
		"Branch to propose the changes on",
	)
	branchSuffix := flag.String(
		"branch_suffix", "",
		"Branch suffix: none, timestamp, random, "+
			"or short-commit-hash",
	)
	base := flag.String(
		"base", "",
		"Base branch (empty means the working base)",
	)
	deleteBranch := flag.Bool(
		"delete_branch", false,
		"Delete the remote branch when the run "+
			"converges to no change",
	)
	pushToFork := flag.String(
		"push_to_fork", "",
		"Fork (owner/repo) to push the branch to",
	)

	// Pull request flags.
	title := flag.String(
		"title", "",
		"Pull request title ({{VAR}} expanded)",
	)
	body := flag.String(
		"body", "",
		"Pull request body ({{VAR}} expanded)",
	)
	bodyPath := flag.String(
		"body_path", "",
		"File to read the pull request body from",
	)

	var labels sliceFlag

	flag.Var(
		&labels, "label",
		"Label to add (repeatable)",
	)

	var assignees sliceFlag

	flag.Var(
		&assignees, "assignee",
		"Assignee to add (repeatable)",
	)

	var reviewers sliceFlag

	flag.Var(
		&reviewers, "reviewer",
		"Reviewer to request (repeatable)",
	)

	var teamReviewers sliceFlag

	flag.Var(
		&teamReviewers, "team_reviewer",
		"Team reviewer to request (repeatable)",
	)

	milestone := flag.Int(
		"milestone", 0,
		"Milestone number",
	)
	draft := flag.Bool(
		"draft", false,
		"Open the pull request as a draft",
	)
	dryRun := flag.Bool(
		"dry_run", false,
		"Reconcile locally but skip pushing and "+
			"hosting API calls",
	)
	jsonOutput := flag.Bool(
		"json", false,
		"Emit outputs as JSON instead of the "+
			"GitHub Actions format",
	)

	// Git provider selection.
	gitServer := flag.String(
		"git_server", "github",
		"Git hosting platform: github, gitlab, "+
			"or bitbucket",
	)

	// GitHub-specific flags.
	ghRepoOwner := flag.String(
		"github_repo_owner", "",
		"GitHub repository owner",
	)
	ghRepo := flag.String(
		"github_repo", "",
		"GitHub repository name",
	)
	ghEnterprise := flag.String(
		"github_enterprise_host", "",
		"GitHub Enterprise hostname",
	)

	// GitLab-specific flags.
	glHost := flag.String(
		"gitlab_host", "",
		"GitLab instance URL",
	)
	glRepo := flag.String(
		"gitlab_repo", "",
		"GitLab project path (org/project)",
	)

	// Bitbucket-specific flags.
	bbBaseURL := flag.String(
		"bitbucket_base_url", "",
		"Bitbucket Server base URL",
	)
	bbProjectKey := flag.String(
		"bitbucket_project_key", "",
		"Bitbucket project key",
	)
	bbRepoSlug := flag.String(
		"bitbucket_repo_slug", "",
		"Bitbucket repository slug",
	)
	bbUser := flag.String(
		"bitbucket_user", "",
		"Bitbucket API username",
	)
	bbPassword := flag.String(
		"bitbucket_password", "",
		"Bitbucket API password or token",
	)

	flag.Parse()

	cfg := runner.Config{}

	if *configFile != "" {
		loaded, err := runner.LoadConfigFile(
			*configFile,
		)
		if err != nil {
			return fmt.Errorf(
				"%s: %w", errCtx, err,
			)
		}

		cfg = *loaded
	}

	applyFlagOverrides(&cfg, flagValues{
		path:          *path,
		addPaths:      addPaths,
		token:         *token,
		commitMessage: *commitMessage,
		committer:     *committer,
		author:        *author,
		signoff:       *signoff,
		branch:        *branch,
		branchSuffix:  *branchSuffix,
		base:          *base,
		deleteBranch:  *deleteBranch,
		pushToFork:    *pushToFork,
		title:         *title,
		body:          *body,
		bodyPath:      *bodyPath,
		labels:        labels,
		assignees:     assignees,
		reviewers:     reviewers,
		teamReviewers: teamReviewers,
		milestone:     *milestone,
		draft:         *draft,
		dryRun:        *dryRun,
	})

	var (
		provider git.Provider
		err      error
	)

	if !cfg.DryRun {
		provider, err = newProvider(
			*gitServer,
			providerFlags{
				ghRepoOwner:  *ghRepoOwner,
				ghRepo:       *ghRepo,
				ghEnterprise: *ghEnterprise,
				glHost:       *glHost,
				glRepo:       *glRepo,
				bbBaseURL:    *bbBaseURL,
				bbProjectKey: *bbProjectKey,
				bbRepoSlug:   *bbRepoSlug,
				bbUser:       *bbUser,
				bbPassword:   *bbPassword,
				token:        cfg.Token,
				pushToFork:   cfg.PushToFork,
			},
		)
		if err != nil {
			return fmt.Errorf(
				"%s: %w", errCtx, err,
			)
		}
	}

	outputs, err := runner.Run(
		context.Background(), cfg, provider,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	if *jsonOutput {
		if err := outputs.WriteJSON(
			os.Stdout,
		); err != nil {
			return fmt.Errorf(
				"%s: %w", errCtx, err,
			)
		}

		return nil
	}

	if err := writeOutputs(outputs); err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	return nil
}

// writeOutputs publishes the run outputs to the file
// named by GITHUB_OUTPUT when running inside a workflow,
// or to stdout otherwise.
func writeOutputs(outputs *runner.Outputs) error {
	const errCtx = "writing outputs"

	target := os.Getenv("GITHUB_OUTPUT")
	if target == "" {
		if err := outputs.WriteActionsOutput(
			os.Stdout,
		); err != nil {
			return fmt.Errorf(
				"%s: %w", errCtx, err,
			)
		}

		return nil
	}

	f, err := os.OpenFile(
		target,
		os.O_WRONLY|os.O_CREATE|os.O_APPEND,
		0o644,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	if err := outputs.WriteActionsOutput(
		f,
	); err != nil {
		_ = f.Close()

		return fmt.Errorf("%s: %w", errCtx, err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	return nil
}

// flagValues bundles the run-input flag values to keep
// applyFlagOverrides under the argument limit.
type flagValues struct {
	path          string
	addPaths      []string
	token         string
	commitMessage string
	committer     string
	author        string
	signoff       bool
	branch        string
	branchSuffix  string
	base          string
	deleteBranch  bool
	pushToFork    string
	title         string
	body          string
	bodyPath      string
	labels        []string
	assignees     []string
	reviewers     []string
	teamReviewers []string
	milestone     int
	draft         bool
	dryRun        bool
}

// applyFlagOverrides layers non-empty flag values over
// the config file contents. Booleans and the milestone
// override only when set, since their zero value is the
// default.
func applyFlagOverrides(
	cfg *runner.Config,
	fv flagValues,
) {
	if fv.path != "" {
		cfg.Path = fv.path
	}

	if len(fv.addPaths) > 0 {
		cfg.AddPaths = fv.addPaths
	}

	if fv.token != "" {
		cfg.Token = fv.token
	}

	if fv.commitMessage != "" {
		cfg.CommitMessage = fv.commitMessage
	}

	if fv.committer != "" {
		cfg.Committer = fv.committer
	}

	if fv.author != "" {
		cfg.Author = fv.author
	}

	if fv.signoff {
		cfg.Signoff = true
	}

	if fv.branch != "" {
		cfg.Branch = fv.branch
	}

	if fv.branchSuffix != "" {
		cfg.BranchSuffix = fv.branchSuffix
	}

	if fv.base != "" {
		cfg.Base = fv.base
	}

	if fv.deleteBranch {
		cfg.DeleteBranch = true
	}

	if fv.pushToFork != "" {
		cfg.PushToFork = fv.pushToFork
	}

	if fv.title != "" {
		cfg.Title = fv.title
	}

	if fv.body != "" {
		cfg.Body = fv.body
	}

	if fv.bodyPath != "" {
		cfg.BodyPath = fv.bodyPath
	}

	if len(fv.labels) > 0 {
		cfg.Labels = fv.labels
	}

	if len(fv.assignees) > 0 {
		cfg.Assignees = fv.assignees
	}

	if len(fv.reviewers) > 0 {
		cfg.Reviewers = fv.reviewers
	}

	if len(fv.teamReviewers) > 0 {
		cfg.TeamReviewers = fv.teamReviewers
	}

	if fv.milestone > 0 {
		cfg.Milestone = fv.milestone
	}

	if fv.draft {
		cfg.Draft = true
	}

	if fv.dryRun {
		cfg.DryRun = true
	}
}

// providerFlags bundles provider-specific flag values
// to keep newProvider under the argument limit.
type providerFlags struct {
	ghRepoOwner  string
	ghRepo       string
	ghEnterprise string
	glHost       string
	glRepo       string
	bbBaseURL    string
	bbProjectKey string
	bbRepoSlug   string
	bbUser       string
	bbPassword   string
	token        string
	pushToFork   string
}

// newProvider creates a git.Provider based on the server
// name. Pattern: Factory -- selects platform
// implementation at runtime.
func newProvider(
	server string,
	pf providerFlags,
) (git.Provider, error) {
	const errCtx = "creating git provider"

	switch server {
	case "github":
		headOwner := ""
		if pf.pushToFork != "" {
			headOwner, _, _ = strings.Cut(
				pf.pushToFork, "/",
			)
		}

		p, err := github.NewProvider(github.Config{
			RepoOwner:      pf.ghRepoOwner,
			Repo:           pf.ghRepo,
			AccessToken:    pf.token,
			EnterpriseHost: pf.ghEnterprise,
			HeadOwner:      headOwner,
		})
		if err != nil {
			return nil, fmt.Errorf(
				"%s: %w", errCtx, err,
			)
		}

		return p, nil

	case "gitlab":
		p, err := gitlab.NewProvider(gitlab.Config{
			Host:        pf.glHost,
			Repo:        pf.glRepo,
			AccessToken: pf.token,
		})
		if err != nil {
			return nil, fmt.Errorf(
				"%s: %w", errCtx, err,
			)
		}

		return p, nil

	case "bitbucket":
		p, err := bitbucket.NewProvider(
			bitbucket.Config{
				BaseURL:    pf.bbBaseURL,
				ProjectKey: pf.bbProjectKey,
				RepoSlug:   pf.bbRepoSlug,
				User:       pf.bbUser,
				Password:   pf.bbPassword,
			},
		)
		if err != nil {
			return nil, fmt.Errorf(
				"%s: %w", errCtx, err,
			)
		}

		return p, nil

	default:
		return nil, fmt.Errorf(
			"%s: unknown git server %q",
			errCtx, server,
		)
	}
}
