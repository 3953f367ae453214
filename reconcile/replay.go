package reconcile

import (
	"fmt"
	"log/slog"

	"github.com/byte4ever/create_pr/git"
)

// replayFetchDepth is the shallow depth used when
// refreshing the target base before and after a replay.
const replayFetchDepth = 1

// replay moves the commits unique to temp (relative to the
// working base) onto base by cherry-picking them one by
// one with a conflict-favoring strategy. A genuine
// conflict aborts the run with a *ConflictError; a commit
// whose changes are already present on base is skipped.
func (r *Reconciler) replay(
	temp string,
	wb WorkingBase,
	base string,
) error {
	const errCtx = "replaying onto base"

	slog.Info(
		"replaying commits",
		"from", wb.Name,
		"onto", base,
	)

	// Refresh the base best effort; a local copy may
	// already be adequate.
	if err := r.git.FetchRef(
		base+":"+base, replayFetchDepth,
	); err != nil {
		slog.Info(
			"could not fetch base, using local copy",
			"base", base,
		)
	}

	if err := r.git.Checkout(base); err != nil {
		// No local ref yet: create a tracking branch
		// from the remote copy.
		slog.Info(
			"creating local tracking branch",
			"base", base,
		)

		if err := r.git.CheckoutReset(
			base, r.remote+"/"+base,
		); err != nil {
			return fmt.Errorf(
				"%s: checkout %s: %w",
				errCtx, base, err,
			)
		}
	}

	commits, err := r.git.CommitsBetween(
		wb.Name, temp, true,
	)
	if err != nil {
		return fmt.Errorf(
			"%s: list commits: %w", errCtx, err,
		)
	}

	if len(commits) == 0 {
		slog.Info("no commits to replay")

		// Re-point the workspace at the base.
		if err := r.git.CheckoutReset(
			temp, base,
		); err != nil {
			return fmt.Errorf(
				"%s: re-point workspace: %w",
				errCtx, err,
			)
		}

		return nil
	}

	slog.Info(
		"cherry-picking commits",
		"count", len(commits),
		"onto", base,
	)

	for _, sha := range commits {
		outcome, diag, err := r.git.ApplyCommitOnto(sha)
		if err != nil {
			return fmt.Errorf(
				"%s: apply %s: %w",
				errCtx, shortSHA(sha), err,
			)
		}

		switch outcome {
		case git.Applied:

		case git.AppliedEmpty:
			// The change is already present on base.
			slog.Info(
				"skipping empty commit",
				"sha", shortSHA(sha),
			)
			r.git.AbortApply()

		case git.ApplyConflict:
			r.git.AbortApply()

			return &ConflictError{
				SHA:        sha,
				Diagnostic: diag,
			}
		}
	}

	// Re-point the workspace at the replayed tip.
	if err := r.git.CheckoutReset(
		temp, "HEAD",
	); err != nil {
		return fmt.Errorf(
			"%s: re-point workspace: %w", errCtx, err,
		)
	}

	// Re-fetch so later comparisons see fresh remote
	// state; the replay advanced the local base branch.
	if err := r.git.FetchRef(
		base+":"+base, replayFetchDepth,
	); err != nil {
		slog.Debug(
			"could not re-fetch base",
			"base", base,
		)
	}

	return nil
}
