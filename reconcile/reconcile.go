package reconcile

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/byte4ever/create_pr/git"
	"github.com/byte4ever/create_pr/identity"
)

// defaultCommitMessage is used when no commit message is
// configured.
const defaultCommitMessage = "Uncommitted changes"

// tempBranchPrefix prefixes the per-run temporary
// workspace branch name.
const tempBranchPrefix = "cpr-tmp-"

// GitOps is the repository operations capability the
// reconciler consumes. *git.Repo satisfies it; tests
// substitute a fake.
type GitOps interface {
	CurrentBranch() (string, bool)
	ResolveRef(ref string) (string, error)
	CheckoutReset(name, from string) error
	Checkout(ref string) error
	HardReset(ref string) error
	HasPendingChanges(
		includeUntracked bool,
		pathspec []string,
	) (bool, error)
	Stage(paths []string) error
	Commit(
		message string,
		committer identity.Identity,
		author identity.Identity,
		signoff bool,
	) error
	ShelveUntracked() (bool, error)
	UnshelveLast() error
	FetchRef(refspec string, depth int) error
	RemoteBranchExists(branch string) (bool, error)
	CommitsBetween(
		from string,
		to string,
		reverse bool,
	) ([]string, error)
	DiffExists(refA, refB string) (bool, error)
	RefsEqual(refA, refB string) bool
	ApplyCommitOnto(
		sha string,
	) (git.ApplyOutcome, string, error)
	AbortApply()
	DeleteBranch(name string, force bool) error
	GetCommit(ref string) (git.CommitInfo, error)
}

// WorkingBase is the ref the working tree was checked out
// against when reconciliation began.
type WorkingBase struct {
	// Name is the branch name, or the commit SHA when
	// detached.
	Name string
	// IsBranch is false for a detached HEAD.
	IsBranch bool
}

// Input carries the parameters of one reconciliation run.
type Input struct {
	// Branch is the branch the pending changes should
	// end up on. Required.
	Branch string
	// Base is the desired base branch. Empty means the
	// working base.
	Base string
	// CommitMessage for the pending-changes commit.
	CommitMessage string
	// Committer identity used for the commit.
	Committer identity.Identity
	// Author identity for the commit; empty falls back
	// to the committer.
	Author identity.Identity
	// Signoff adds a Signed-off-by trailer.
	Signoff bool
	// AddPaths optionally restricts which paths are
	// committed.
	AddPaths []string
}

// Outcome is the result of one reconciliation run.
type Outcome struct {
	// Action is the four-way classification of what
	// happened to the branch.
	Action Action
	// Base is the effective base branch.
	Base string
	// BaseCommit is the base tip's metadata; set only
	// when HasDiffWithBase.
	BaseCommit *git.CommitInfo
	// HeadSHA is the branch tip after reconciliation.
	HeadSHA string
	// HasDiffWithBase reports whether the branch has
	// commits ahead of base.
	HasDiffWithBase bool
	// Commits are the branch's commits ahead of base,
	// oldest first; populated only when
	// HasDiffWithBase.
	Commits []git.CommitInfo
}

// Reconciler drives the branch reconciliation workflow
// against a single repository working tree. Runs must not
// share a working tree concurrently.
type Reconciler struct {
	git    GitOps
	remote string
}

// New returns a Reconciler over the given repository
// operations. Pass empty remote for "origin".
func New(gitOps GitOps, remote string) *Reconciler {
	if remote == "" {
		remote = "origin"
	}

	return &Reconciler{
		git:    gitOps,
		remote: remote,
	}
}

// Reconcile materializes the working tree's pending
// changes on in.Branch so that its tip equals "base plus
// the pending changes", and classifies the result. The
// procedure is idempotent with respect to external branch
// state: re-running without intervening changes converges
// to NotUpdated or NoChange.
//
//nolint:funlen // the step sequence reads best linearly
func (r *Reconciler) Reconcile(
	in Input,
) (*Outcome, error) {
	const errCtx = "reconciling branch"

	if in.Branch == "" {
		return nil, &ConfigError{
			Param:  "branch",
			Reason: "must not be empty",
		}
	}

	// Step 1: determine the working base.
	wb := r.workingBase()
	if wb.Name == "" {
		return nil, fmt.Errorf(
			"%s: cannot resolve HEAD", errCtx,
		)
	}

	// Step 2: resolve the effective base.
	base := in.Base
	if base == "" {
		if !wb.IsBranch {
			return nil, &ConfigError{
				Param: "base",
				Reason: "required when HEAD is " +
					"detached",
			}
		}

		base = wb.Name
	}

	// Step 3: materialize pending changes on the
	// temporary workspace.
	temp := tempBranchName()

	slog.Info(
		"creating temporary workspace",
		"branch", temp,
	)

	if err := r.git.CheckoutReset(
		temp, "HEAD",
	); err != nil {
		return nil, fmt.Errorf(
			"%s: create workspace: %w", errCtx, err,
		)
	}

	// Cleanup runs on every exit path from here on:
	// delete the workspace, restore the working base,
	// and pop the shelf if one was created.
	shelved := false

	defer func() {
		r.cleanup(temp, wb, shelved)
	}()

	if err := r.commitPending(in); err != nil {
		return nil, fmt.Errorf(
			"%s: %w", errCtx, err,
		)
	}

	// Step 4: shelve incidental untracked state so
	// later checkouts do not carry it across branches.
	var err error

	shelved, err = r.git.ShelveUntracked()
	if err != nil {
		return nil, fmt.Errorf(
			"%s: shelve untracked: %w", errCtx, err,
		)
	}

	// Step 5: return to the working base and
	// resynchronize it with its remote counterpart.
	if wb.IsBranch {
		if err := r.git.Checkout(wb.Name); err != nil {
			return nil, fmt.Errorf(
				"%s: restore working base: %w",
				errCtx, err,
			)
		}

		remoteRef := r.remote + "/" + wb.Name
		if err := r.git.HardReset(
			remoteRef,
		); err != nil {
			// No remote counterpart: the local
			// branch is used as-is.
			slog.Info(
				"working base has no remote "+
					"counterpart",
				"branch", wb.Name,
			)
		}
	}

	// Step 6: replay onto the new base when the base
	// differs from the working base.
	if wb.Name != base {
		if err := r.replay(temp, wb, base); err != nil {
			return nil, err
		}
	}

	// Step 7: classify the action.
	action, hasDiff, err := r.classifyAndAlign(
		in.Branch, temp, base,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	headSHA, err := r.git.ResolveRef(in.Branch)
	if err != nil {
		return nil, fmt.Errorf(
			"%s: resolve head: %w", errCtx, err,
		)
	}

	out := &Outcome{
		Action:          action,
		Base:            base,
		HeadSHA:         headSHA,
		HasDiffWithBase: hasDiff,
	}

	// Step 8: assemble commit metadata when the branch
	// diverges from base.
	if hasDiff {
		baseCommit, err := r.git.GetCommit(base)
		if err != nil {
			return nil, fmt.Errorf(
				"%s: base commit: %w", errCtx, err,
			)
		}

		out.BaseCommit = &baseCommit
		out.Commits = r.branchCommits(base, in.Branch)
	}

	return out, nil
}

// workingBase resolves the current checkout state.
func (r *Reconciler) workingBase() WorkingBase {
	if branch, ok := r.git.CurrentBranch(); ok {
		return WorkingBase{Name: branch, IsBranch: true}
	}

	sha, err := r.git.ResolveRef("HEAD")
	if err != nil {
		return WorkingBase{}
	}

	return WorkingBase{Name: sha, IsBranch: false}
}

// commitPending stages and commits the working tree's
// pending changes on the temporary workspace. No pending
// changes is not an error.
func (r *Reconciler) commitPending(in Input) error {
	dirty, err := r.git.HasPendingChanges(
		true, in.AddPaths,
	)
	if err != nil {
		return fmt.Errorf(
			"checking pending changes: %w", err,
		)
	}

	if !dirty {
		slog.Info("no pending changes to commit")

		return nil
	}

	if err := r.git.Stage(in.AddPaths); err != nil {
		return fmt.Errorf("staging changes: %w", err)
	}

	message := in.CommitMessage
	if message == "" {
		message = defaultCommitMessage
	}

	if err := r.git.Commit(
		message, in.Committer, in.Author, in.Signoff,
	); err != nil {
		return fmt.Errorf("committing changes: %w", err)
	}

	slog.Info("committed pending changes")

	return nil
}

// branchCommits lists the commits of base..branch oldest
// first. A failure resolving any single commit is
// tolerated: that commit is skipped.
func (r *Reconciler) branchCommits(
	base string,
	branch string,
) []git.CommitInfo {
	shas, err := r.git.CommitsBetween(
		base, branch, true,
	)
	if err != nil {
		slog.Warn(
			"could not list branch commits",
			"error", err,
		)

		return nil
	}

	commits := make([]git.CommitInfo, 0, len(shas))

	for _, sha := range shas {
		ci, err := r.git.GetCommit(sha)
		if err != nil {
			slog.Warn(
				"skipping unresolvable commit",
				"sha", shortSHA(sha),
				"error", err,
			)

			continue
		}

		commits = append(commits, ci)
	}

	return commits
}

// cleanup removes the temporary workspace, restores the
// working base checkout, and pops the shelf. Every step is
// best effort.
func (r *Reconciler) cleanup(
	temp string,
	wb WorkingBase,
	shelved bool,
) {
	// Restore the working base first: the workspace
	// cannot be deleted while it is checked out.
	if err := r.git.Checkout(wb.Name); err != nil {
		slog.Warn(
			"could not restore working base",
			"ref", wb.Name,
			"error", err,
		)
	}

	if err := r.git.DeleteBranch(temp, true); err != nil {
		slog.Warn(
			"could not delete temporary workspace",
			"branch", temp,
			"error", err,
		)
	}

	if shelved {
		if err := r.git.UnshelveLast(); err != nil {
			slog.Warn(
				"could not restore shelved changes",
				"error", err,
			)
		}
	}
}

// tempBranchName returns a branch name unique to this run.
func tempBranchName() string {
	token := strings.ReplaceAll(
		uuid.NewString(), "-", "",
	)

	return tempBranchPrefix + token[:8]
}
