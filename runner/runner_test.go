package runner_test

import (
	"context"
	"os"
	oe "os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/byte4ever/create_pr/git"
	"github.com/byte4ever/create_pr/runner"
)

type createCall struct {
	head  string
	base  string
	title string
	body  string
	draft bool
}

// fakeProvider records hosting API calls.
type fakeProvider struct {
	pr          *git.PullRequest
	createCalls []createCall
	metaCalls   []git.Metadata
	deleted     []string
}

func (f *fakeProvider) CreateOrUpdatePR(
	_ context.Context,
	head string,
	base string,
	title string,
	body string,
	draft bool,
) (*git.PullRequest, error) {
	f.createCalls = append(f.createCalls, createCall{
		head:  head,
		base:  base,
		title: title,
		body:  body,
		draft: draft,
	})

	return f.pr, nil
}

func (f *fakeProvider) ApplyMetadata(
	_ context.Context,
	_ int,
	meta git.Metadata,
) error {
	f.metaCalls = append(f.metaCalls, meta)

	return nil
}

func (f *fakeProvider) DeleteRemoteBranch(
	_ context.Context,
	branch string,
) error {
	f.deleted = append(f.deleted, branch)

	return nil
}

func TestRun_createFlow(t *testing.T) {
	t.Parallel()

	work, rp := setupClonePair(t)

	writeFile(t, work, "generated.txt", "v1\n")

	provider := &fakeProvider{
		pr: &git.PullRequest{
			Number: 5,
			URL:    "https://gh/pr/5",
		},
	}

	out, err := runner.Run(
		context.Background(),
		runner.Config{
			Path:          work,
			Branch:        "updates",
			CommitMessage: "update generated",
			Committer:     "Test <test@test.com>",
			Title:         "Update {{BRANCH}}",
			Body:          "head {{SHORT_SHA}}",
			Labels:        []string{"automated"},
		},
		provider,
	)
	require.NoError(t, err)

	assert.Equal(t, 5, out.PullRequestNumber)
	assert.Equal(
		t, "https://gh/pr/5", out.PullRequestURL,
	)
	assert.Equal(
		t, "created", out.PullRequestOperation,
	)
	assert.Equal(t, "updates", out.PullRequestBranch)
	assert.Len(t, out.PullRequestHeadSHA, 40)

	require.Len(t, provider.createCalls, 1)

	call := provider.createCalls[0]
	assert.Equal(t, "updates", call.head)
	assert.Equal(t, "main", call.base)
	assert.Equal(t, "Update updates", call.title)
	assert.Equal(
		t,
		"head "+out.PullRequestHeadSHA[:8],
		call.body,
	)

	require.Len(t, provider.metaCalls, 1)
	assert.Equal(
		t,
		[]string{"automated"},
		provider.metaCalls[0].Labels,
	)

	// The branch was pushed to origin.
	exists, err := rp.RemoteBranchExists("updates")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestRun_dryRun(t *testing.T) {
	t.Parallel()

	work, rp := setupClonePair(t)

	writeFile(t, work, "generated.txt", "v1\n")

	provider := &fakeProvider{}

	out, err := runner.Run(
		context.Background(),
		runner.Config{
			Path:      work,
			Branch:    "updates",
			Committer: "Test <test@test.com>",
			DryRun:    true,
		},
		provider,
	)
	require.NoError(t, err)

	assert.Equal(t, "none", out.PullRequestOperation)
	assert.Zero(t, out.PullRequestNumber)
	assert.Empty(t, provider.createCalls)
	assert.Empty(t, provider.metaCalls)

	// Nothing was pushed.
	exists, err := rp.RemoteBranchExists("updates")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRun_noChangesDeleteBranch(t *testing.T) {
	t.Parallel()

	work, _ := setupClonePair(t)

	provider := &fakeProvider{}

	out, err := runner.Run(
		context.Background(),
		runner.Config{
			Path:         work,
			Branch:       "updates",
			Committer:    "Test <test@test.com>",
			DeleteBranch: true,
		},
		provider,
	)
	require.NoError(t, err)

	assert.Equal(t, "closed", out.PullRequestOperation)
	assert.Empty(t, provider.createCalls)
	assert.Equal(
		t, []string{"updates"}, provider.deleted,
	)
}

func TestRun_branchSuffix(t *testing.T) {
	t.Parallel()

	work, _ := setupClonePair(t)

	writeFile(t, work, "generated.txt", "v1\n")

	provider := &fakeProvider{
		pr: &git.PullRequest{Number: 1},
	}

	out, err := runner.Run(
		context.Background(),
		runner.Config{
			Path:         work,
			Branch:       "updates",
			BranchSuffix: "short-commit-hash",
			Committer:    "Test <test@test.com>",
		},
		provider,
	)
	require.NoError(t, err)

	assert.Regexp(
		t,
		`^updates-[0-9a-f]{7,}$`,
		out.PullRequestBranch,
	)
}

func TestRun_bodyPath(t *testing.T) {
	t.Parallel()

	work, _ := setupClonePair(t)

	bodyFile := filepath.Join(t.TempDir(), "body.md")
	require.NoError(t, os.WriteFile(
		bodyFile,
		[]byte("changes on {{BRANCH}}"),
		0o600,
	))

	writeFile(t, work, "generated.txt", "v1\n")

	provider := &fakeProvider{
		pr: &git.PullRequest{Number: 1},
	}

	_, err := runner.Run(
		context.Background(),
		runner.Config{
			Path:      work,
			Branch:    "updates",
			Committer: "Test <test@test.com>",
			BodyPath:  bodyFile,
		},
		provider,
	)
	require.NoError(t, err)

	require.Len(t, provider.createCalls, 1)
	assert.Equal(
		t,
		"changes on updates",
		provider.createCalls[0].body,
	)
}

func TestRun_invalidConfig(t *testing.T) {
	t.Parallel()

	_, err := runner.Run(
		context.Background(),
		runner.Config{
			Branch: "main",
			Base:   "main",
		},
		&fakeProvider{},
	)

	assert.ErrorContains(t, err, "must differ")
}

// setupClonePair creates a bare upstream repository and a
// seeded working clone with one pushed commit on main.
func setupClonePair(
	tb testing.TB,
) (string, *git.Repo) {
	tb.Helper()

	tmp := tb.TempDir()

	remote := filepath.Join(tmp, "remote.git")
	gitCmd(tb, tmp, "init", "--bare", remote)

	work := filepath.Join(tmp, "work")
	gitCmd(tb, tmp, "clone", remote, work)

	gitCmd(
		tb, work,
		"config", "user.email", "test@test.com",
	)
	gitCmd(tb, work, "config", "user.name", "Test")
	gitCmd(
		tb, work,
		"config", "core.hooksPath", "/dev/null",
	)

	gitCmd(tb, work, "checkout", "-b", "main")
	writeFile(tb, work, "file.txt", "original\n")
	gitCmd(tb, work, "add", "file.txt")
	gitCmd(tb, work, "commit", "-m", "initial")
	gitCmd(tb, work, "push", "-u", "origin", "main")

	return work, &git.Repo{
		Dir:        work,
		RemoteName: "origin",
	}
}

func writeFile(
	tb testing.TB,
	dir string,
	name string,
	content string,
) {
	tb.Helper()

	//nolint:gosec // test file
	err := os.WriteFile(
		filepath.Join(dir, name),
		[]byte(content),
		0o600,
	)
	require.NoError(tb, err)
}

// gitCmd runs a git command with dir as the working
// directory.
func gitCmd(
	tb testing.TB,
	dir string,
	args ...string,
) {
	tb.Helper()

	cmd := oe.CommandContext(
		context.Background(), "git", args...,
	)
	cmd.Dir = dir

	out, err := cmd.CombinedOutput()
	require.NoError(
		tb, err,
		"git %v failed: %s", args, string(out),
	)
}
