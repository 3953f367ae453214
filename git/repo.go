package git

import (
	"errors"
	"fmt"
	"strings"

	"github.com/byte4ever/create_pr/exec"
	"github.com/byte4ever/create_pr/identity"
)

// cherrypickEmptyMarker is printed by git when a
// cherry-picked commit degenerates to an empty change.
const cherrypickEmptyMarker = "The previous cherry-pick is now empty"

// ApplyOutcome classifies the result of applying a single
// commit onto the current tip.
type ApplyOutcome int

const (
	// Applied means the commit was applied cleanly.
	Applied ApplyOutcome = iota
	// AppliedEmpty means the commit's changes were
	// already present and the apply degenerated to an
	// empty commit.
	AppliedEmpty
	// ApplyConflict means the apply hit a genuine
	// conflict that automatic resolution could not
	// settle.
	ApplyConflict
)

// Repo is a local git working tree. All operations run the
// git CLI in Dir and block until it completes.
type Repo struct {
	// Dir is the filesystem location of the working
	// tree.
	Dir string
	// RemoteName is the name of the upstream remote.
	RemoteName string
}

// Open returns a Repo for an existing working tree after
// verifying that dir is inside one.
func Open(dir string) (*Repo, error) {
	const errCtx = "opening repository"

	out, err := exec.Ex(
		dir, "git", "rev-parse", "--is-inside-work-tree",
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	if strings.TrimSpace(out) != "true" {
		return nil, fmt.Errorf(
			"%s: %s is not a git work tree", errCtx, dir,
		)
	}

	return &Repo{
		Dir:        dir,
		RemoteName: "origin",
	}, nil
}

// CurrentBranch returns the checked-out branch name.
// Returns ok=false when HEAD is detached.
func (r *Repo) CurrentBranch() (string, bool) {
	out, err := exec.Ex(
		r.Dir, "git", "symbolic-ref", "--short", "HEAD",
	)
	if err != nil {
		return "", false
	}

	return strings.TrimSpace(out), true
}

// ResolveRef returns the commit SHA the given ref points
// to.
func (r *Repo) ResolveRef(ref string) (string, error) {
	const errCtx = "resolving ref"

	out, err := exec.Ex(r.Dir, "git", "rev-parse", ref)
	if err != nil {
		return "", fmt.Errorf(
			"%s %s: %w", errCtx, ref, err,
		)
	}

	return strings.TrimSpace(out), nil
}

// ShortSHA returns the abbreviated SHA for ref.
func (r *Repo) ShortSHA(ref string) (string, error) {
	const errCtx = "resolving short sha"

	out, err := exec.Ex(
		r.Dir, "git", "rev-parse", "--short", ref,
	)
	if err != nil {
		return "", fmt.Errorf(
			"%s %s: %w", errCtx, ref, err,
		)
	}

	return strings.TrimSpace(out), nil
}

// CheckoutReset checks out name, creating it at from or
// resetting it there when it already exists
// (checkout -B). Pass empty from to use HEAD.
func (r *Repo) CheckoutReset(name, from string) error {
	const errCtx = "checking out branch"

	args := []string{"checkout", "-B", name}
	if from != "" {
		args = append(args, from)
	}

	if _, err := exec.Ex(
		r.Dir, "git", args...,
	); err != nil {
		return fmt.Errorf(
			"%s %s: %w", errCtx, name, err,
		)
	}

	return nil
}

// Checkout checks out an existing ref without creating
// anything. Fails when the ref does not exist.
func (r *Repo) Checkout(ref string) error {
	const errCtx = "checking out ref"

	if _, err := exec.Ex(
		r.Dir, "git", "checkout", ref,
	); err != nil {
		return fmt.Errorf(
			"%s %s: %w", errCtx, ref, err,
		)
	}

	return nil
}

// HardReset resets the current branch and working tree to
// ref.
func (r *Repo) HardReset(ref string) error {
	const errCtx = "hard resetting"

	if _, err := exec.Ex(
		r.Dir, "git", "reset", "--hard", ref,
	); err != nil {
		return fmt.Errorf(
			"%s to %s: %w", errCtx, ref, err,
		)
	}

	return nil
}

// HasPendingChanges reports whether the working tree has
// uncommitted changes, optionally including untracked
// files and optionally restricted to a pathspec.
func (r *Repo) HasPendingChanges(
	includeUntracked bool,
	pathspec []string,
) (bool, error) {
	const errCtx = "checking pending changes"

	args := []string{"status", "--porcelain"}

	if includeUntracked {
		args = append(args, "--untracked-files=normal")
	} else {
		args = append(args, "--untracked-files=no")
	}

	if len(pathspec) > 0 {
		args = append(args, "--")
		args = append(args, pathspec...)
	}

	out, err := exec.Ex(r.Dir, "git", args...)
	if err != nil {
		return false, fmt.Errorf("%s: %w", errCtx, err)
	}

	return strings.TrimSpace(out) != "", nil
}

// Stage adds the given paths to the index. An empty slice
// stages everything (git add -A).
func (r *Repo) Stage(paths []string) error {
	const errCtx = "staging changes"

	args := []string{"add"}

	if len(paths) == 0 {
		args = append(args, "-A")
	} else {
		args = append(args, "--")
		args = append(args, paths...)
	}

	if _, err := exec.Ex(
		r.Dir, "git", args...,
	); err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	return nil
}

// Commit records the staged changes with the given
// message and identities. An empty author falls back to
// the committer. Identities are passed through the
// environment so they apply to this commit only.
func (r *Repo) Commit(
	message string,
	committer identity.Identity,
	author identity.Identity,
	signoff bool,
) error {
	const errCtx = "committing changes"

	args := []string{"commit", "-m", message}
	if signoff {
		args = append(args, "--signoff")
	}

	if author.Name == "" && author.Email == "" {
		author = committer
	}

	env := map[string]string{}
	if committer.Name != "" {
		env["GIT_COMMITTER_NAME"] = committer.Name
	}

	if committer.Email != "" {
		env["GIT_COMMITTER_EMAIL"] = committer.Email
	}

	if author.Name != "" {
		env["GIT_AUTHOR_NAME"] = author.Name
	}

	if author.Email != "" {
		env["GIT_AUTHOR_EMAIL"] = author.Email
	}

	if _, err := exec.ExEnv(
		r.Dir, env, "git", args...,
	); err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	return nil
}

// ShelveUntracked stashes uncommitted changes including
// untracked files. Returns true when a stash entry was
// actually created.
func (r *Repo) ShelveUntracked() (bool, error) {
	const errCtx = "shelving untracked files"

	out, err := exec.Ex(
		r.Dir, "git",
		"stash", "push", "--include-untracked",
	)
	if err != nil {
		return false, fmt.Errorf("%s: %w", errCtx, err)
	}

	return !strings.Contains(
		out, "No local changes to save",
	), nil
}

// UnshelveLast pops the most recent stash entry. Callers
// treat a failure as tolerated.
func (r *Repo) UnshelveLast() error {
	const errCtx = "unshelving changes"

	if _, err := exec.Ex(
		r.Dir, "git", "stash", "pop",
	); err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	return nil
}

// FetchRef fetches a refspec from the remote. depth 0
// means a full fetch. Callers decide whether a failure is
// tolerated.
func (r *Repo) FetchRef(refspec string, depth int) error {
	const errCtx = "fetching ref"

	args := []string{"fetch", "--force"}
	if depth > 0 {
		args = append(
			args, fmt.Sprintf("--depth=%d", depth),
		)
	}

	args = append(args, r.RemoteName, refspec)

	if _, err := exec.Ex(
		r.Dir, "git", args...,
	); err != nil {
		return fmt.Errorf(
			"%s %s: %w", errCtx, refspec, err,
		)
	}

	return nil
}

// RemoteBranchExists reports whether the branch exists on
// the remote.
func (r *Repo) RemoteBranchExists(
	branch string,
) (bool, error) {
	const errCtx = "checking remote branch"

	out, err := exec.Ex(
		r.Dir, "git",
		"ls-remote", "--heads",
		r.RemoteName, "refs/heads/"+branch,
	)
	if err != nil {
		return false, fmt.Errorf(
			"%s %s: %w", errCtx, branch, err,
		)
	}

	return strings.TrimSpace(out) != "", nil
}

// CommitsBetween lists the SHAs reachable from to but not
// from from. With reverse the list is oldest first. An
// unresolvable range yields an empty list.
func (r *Repo) CommitsBetween(
	from string,
	to string,
	reverse bool,
) ([]string, error) {
	args := []string{"rev-list"}
	if reverse {
		args = append(args, "--reverse")
	}

	args = append(args, from+".."+to)

	out, err := exec.Ex(r.Dir, "git", args...)
	if err != nil {
		// Unknown refs are reported as an empty range
		// rather than a failure so callers can treat
		// "nothing there yet" uniformly.
		return nil, nil
	}

	var shas []string

	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			shas = append(shas, line)
		}
	}

	return shas, nil
}

// DiffExists reports whether the trees of two refs differ.
func (r *Repo) DiffExists(
	refA string,
	refB string,
) (bool, error) {
	const errCtx = "diffing refs"

	_, err := exec.Ex(
		r.Dir, "git",
		"diff", "--quiet", refA+".."+refB,
	)
	if err == nil {
		return false, nil
	}

	var ce *exec.CommandError
	if errors.As(err, &ce) && ce.ExitCode == 1 {
		return true, nil
	}

	return false, fmt.Errorf("%s: %w", errCtx, err)
}

// RefsEqual reports whether two refs resolve to the same
// commit. Any resolution failure counts as not equal.
func (r *Repo) RefsEqual(refA, refB string) bool {
	shaA, errA := r.ResolveRef(refA)
	shaB, errB := r.ResolveRef(refB)

	if errA != nil || errB != nil {
		return false
	}

	return shaA == shaB
}

// ApplyCommitOnto cherry-picks sha onto the current tip
// using a conflict-favoring strategy that prefers the
// incoming commit's content where both sides touch the
// same region. The returned diagnostic is only meaningful
// for ApplyConflict.
func (r *Repo) ApplyCommitOnto(
	sha string,
) (ApplyOutcome, string, error) {
	out, err := exec.Ex(
		r.Dir, "git",
		"cherry-pick",
		"--strategy", "recursive",
		"--strategy-option", "theirs",
		sha,
	)
	if err == nil {
		return Applied, "", nil
	}

	var ce *exec.CommandError
	if !errors.As(err, &ce) {
		return ApplyConflict, "", fmt.Errorf(
			"applying commit %s: %w", sha, err,
		)
	}

	if strings.Contains(out, cherrypickEmptyMarker) {
		return AppliedEmpty, "", nil
	}

	return ApplyConflict, strings.TrimSpace(out), nil
}

// AbortApply aborts an in-flight cherry-pick. Best effort:
// errors are ignored because there may be nothing to
// abort.
func (r *Repo) AbortApply() {
	//nolint:errcheck // aborting is best effort
	exec.Ex(r.Dir, "git", "cherry-pick", "--abort")
}

// DeleteBranch deletes a local branch.
func (r *Repo) DeleteBranch(
	name string,
	force bool,
) error {
	const errCtx = "deleting branch"

	flag := "-d"
	if force {
		flag = "-D"
	}

	if _, err := exec.Ex(
		r.Dir, "git", "branch", flag, name,
	); err != nil {
		return fmt.Errorf(
			"%s %s: %w", errCtx, name, err,
		)
	}

	return nil
}

// Push force-pushes branch to the given remote with
// --force-with-lease and sets the upstream.
func (r *Repo) Push(remote, branch string) error {
	const errCtx = "pushing branch"

	if _, err := exec.Ex(
		r.Dir, "git",
		"push", "--force-with-lease", "-u",
		remote,
		branch+":refs/heads/"+branch,
	); err != nil {
		return fmt.Errorf(
			"%s %s: %w", errCtx, branch, err,
		)
	}

	return nil
}

// RemoteURL returns the fetch URL of the named remote.
func (r *Repo) RemoteURL(remote string) (string, error) {
	const errCtx = "getting remote url"

	out, err := exec.Ex(
		r.Dir, "git", "remote", "get-url", remote,
	)
	if err != nil {
		return "", fmt.Errorf(
			"%s %s: %w", errCtx, remote, err,
		)
	}

	return strings.TrimSpace(out), nil
}

// AddRemote registers a new remote. Adding a remote that
// already exists fails.
func (r *Repo) AddRemote(name, url string) error {
	const errCtx = "adding remote"

	if _, err := exec.Ex(
		r.Dir, "git", "remote", "add", name, url,
	); err != nil {
		return fmt.Errorf(
			"%s %s: %w", errCtx, name, err,
		)
	}

	return nil
}

// ConfigSet sets a git config value.
func (r *Repo) ConfigSet(
	key string,
	value string,
	global bool,
) error {
	const errCtx = "setting config"

	args := []string{"config"}
	if global {
		args = append(args, "--global")
	}

	args = append(args, key, value)

	if _, err := exec.Ex(
		r.Dir, "git", args...,
	); err != nil {
		return fmt.Errorf(
			"%s %s: %w", errCtx, key, err,
		)
	}

	return nil
}

// ConfigGet reads a git config value. ok is false when the
// key is unset.
func (r *Repo) ConfigGet(
	key string,
	global bool,
) (string, bool) {
	args := []string{"config"}
	if global {
		args = append(args, "--global")
	}

	args = append(args, key)

	out, err := exec.Ex(r.Dir, "git", args...)
	if err != nil {
		return "", false
	}

	return strings.TrimSpace(out), true
}

// ConfigUnset removes a git config value. Returns true
// when the key existed and was removed.
func (r *Repo) ConfigUnset(key string, global bool) bool {
	args := []string{"config", "--unset"}
	if global {
		args = append(args, "--global")
	}

	args = append(args, key)

	_, err := exec.Ex(r.Dir, "git", args...)

	return err == nil
}

