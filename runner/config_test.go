package runner_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/byte4ever/create_pr/runner"
)

func TestLoadConfigFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := `
branch: updates/deps
base: main
commit-message: bump dependencies
committer: Bot <bot@example.com>
signoff: true
labels:
  - dependencies
  - automated
reviewers:
  - alice
milestone: 3
draft: true
delete-branch: true
`

	require.NoError(
		t,
		os.WriteFile(path, []byte(content), 0o600),
	)

	cfg, err := runner.LoadConfigFile(path)
	require.NoError(t, err)

	assert.Equal(t, "updates/deps", cfg.Branch)
	assert.Equal(t, "main", cfg.Base)
	assert.Equal(
		t, "bump dependencies", cfg.CommitMessage,
	)
	assert.Equal(
		t, "Bot <bot@example.com>", cfg.Committer,
	)
	assert.True(t, cfg.Signoff)
	assert.Equal(
		t,
		[]string{"dependencies", "automated"},
		cfg.Labels,
	)
	assert.Equal(t, []string{"alice"}, cfg.Reviewers)
	assert.Equal(t, 3, cfg.Milestone)
	assert.True(t, cfg.Draft)
	assert.True(t, cfg.DeleteBranch)
}

func TestLoadConfigFile_missing(t *testing.T) {
	t.Parallel()

	_, err := runner.LoadConfigFile(
		filepath.Join(t.TempDir(), "nope.yaml"),
	)
	assert.Error(t, err)
}

func TestLoadConfigFile_malformed(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	require.NoError(t, os.WriteFile(
		path, []byte("branch: [unclosed"), 0o600,
	))

	_, err := runner.LoadConfigFile(path)
	assert.Error(t, err)
}

func TestConfig_ApplyDefaults(t *testing.T) {
	t.Parallel()

	var cfg runner.Config

	cfg.ApplyDefaults()

	assert.Equal(t, ".", cfg.Path)
	assert.Equal(
		t, "create-pull-request/patch", cfg.Branch,
	)
	assert.Equal(t, "none", cfg.BranchSuffix)
	assert.Equal(
		t,
		"Changes by create-pull-request action",
		cfg.Title,
	)
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     runner.Config
		wantErr string
	}{
		{
			name: "valid",
			cfg: runner.Config{
				Branch:       "updates",
				BranchSuffix: "none",
			},
		},
		{
			name: "empty branch",
			cfg: runner.Config{
				BranchSuffix: "none",
			},
			wantErr: "branch must not be empty",
		},
		{
			name: "branch equals base",
			cfg: runner.Config{
				Branch:       "main",
				Base:         "main",
				BranchSuffix: "none",
			},
			wantErr: "must differ",
		},
		{
			name: "bad suffix",
			cfg: runner.Config{
				Branch:       "updates",
				BranchSuffix: "fancy",
			},
			wantErr: "unknown branch-suffix",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.cfg.Validate()

			if tt.wantErr == "" {
				assert.NoError(t, err)

				return
			}

			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
