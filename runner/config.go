package runner

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
)

// Default input values, matching the action's documented
// defaults.
const (
	defaultBranch = "create-pull-request/patch"
	defaultTitle  = "Changes by create-pull-request action"
	defaultSuffix = SuffixNone

	defaultCommitter = "github-actions[bot] " +
		"<41898282+github-actions[bot]" +
		"@users.noreply.github.com>"
)

// Config holds every input of a run.
type Config struct {
	// Path is the repository working tree, relative or
	// absolute. Empty means the current directory.
	Path string `yaml:"path"`
	// AddPaths optionally restricts which paths are
	// committed.
	AddPaths []string `yaml:"add-paths"`
	// Token authenticates git pushes and API calls.
	Token string `yaml:"token"`
	// CommitMessage for the pending-changes commit.
	CommitMessage string `yaml:"commit-message"`
	// Committer identity, "Name <email>" form.
	Committer string `yaml:"committer"`
	// Author identity, "Name <email>" form. Empty
	// falls back to the committer.
	Author string `yaml:"author"`
	// Signoff adds a Signed-off-by trailer.
	Signoff bool `yaml:"signoff"`
	// Branch the changes are proposed on.
	Branch string `yaml:"branch"`
	// BranchSuffix: none, timestamp, random, or
	// short-commit-hash.
	BranchSuffix string `yaml:"branch-suffix"`
	// Base branch; empty means the working base.
	Base string `yaml:"base"`
	// DeleteBranch removes the remote branch when the
	// run converges to no change.
	DeleteBranch bool `yaml:"delete-branch"`
	// PushToFork names a fork ("owner/repo") to push
	// the branch to instead of origin.
	PushToFork string `yaml:"push-to-fork"`
	// Title of the pull request. Supports {{VAR}}
	// expansion.
	Title string `yaml:"title"`
	// Body of the pull request. Supports {{VAR}}
	// expansion.
	Body string `yaml:"body"`
	// BodyPath reads the body from a file, overriding
	// Body.
	BodyPath string `yaml:"body-path"`
	// Labels to add to the pull request.
	Labels []string `yaml:"labels"`
	// Assignees to add to the pull request.
	Assignees []string `yaml:"assignees"`
	// Reviewers to request.
	Reviewers []string `yaml:"reviewers"`
	// TeamReviewers to request ("org/team" accepted).
	TeamReviewers []string `yaml:"team-reviewers"`
	// Milestone number; zero means none.
	Milestone int `yaml:"milestone"`
	// Draft opens the pull request as a draft.
	Draft bool `yaml:"draft"`
	// DryRun reconciles locally but skips pushing and
	// every hosting API call.
	DryRun bool `yaml:"dry-run"`
}

// LoadConfigFile reads a YAML config file.
func LoadConfigFile(path string) (*Config, error) {
	const errCtx = "loading config file"

	data, err := os.ReadFile(path) //nolint:gosec
	if err != nil {
		return nil, fmt.Errorf(
			"%s: read %s: %w", errCtx, path, err,
		)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf(
			"%s: parse %s: %w", errCtx, path, err,
		)
	}

	return &cfg, nil
}

// ApplyDefaults fills unset inputs with the documented
// defaults.
func (c *Config) ApplyDefaults() {
	if c.Path == "" {
		c.Path = "."
	}

	if c.Branch == "" {
		c.Branch = defaultBranch
	}

	if c.BranchSuffix == "" {
		c.BranchSuffix = defaultSuffix
	}

	if c.Title == "" {
		c.Title = defaultTitle
	}

	if c.Committer == "" {
		c.Committer = defaultCommitter
	}
}

// Validate rejects inconsistent input combinations.
func (c *Config) Validate() error {
	const errCtx = "validating config"

	if c.Branch == "" {
		return fmt.Errorf(
			"%s: branch must not be empty", errCtx,
		)
	}

	if c.Base != "" && c.Base == c.Branch {
		return fmt.Errorf(
			"%s: branch and base must differ", errCtx,
		)
	}

	switch c.BranchSuffix {
	case SuffixNone, SuffixTimestamp,
		SuffixRandom, SuffixShortCommitHash:
	default:
		return fmt.Errorf(
			"%s: unknown branch-suffix %q",
			errCtx, c.BranchSuffix,
		)
	}

	return nil
}
