package reconcile

import (
	"fmt"
	"log/slog"
)

// Action is the four-way classification of what happened
// to the target branch.
type Action int

const (
	// NoChange means the branch carries nothing beyond
	// base and was not created.
	NoChange Action = iota
	// Created means the branch did not exist remotely
	// and now carries changes.
	Created
	// Updated means the existing branch was realigned
	// and needs a push.
	Updated
	// NotUpdated means the existing branch already
	// matches its remote counterpart.
	NotUpdated
)

// String returns the action's wire name.
func (a Action) String() string {
	switch a {
	case Created:
		return "created"
	case Updated:
		return "updated"
	case NotUpdated:
		return "not-updated"
	default:
		return "none"
	}
}

// shouldReset reports whether an existing branch's tip is
// no longer a faithful representation of "base plus the
// pending changes" and must be force-aligned to the
// workspace. Any one of the three signals is sufficient:
// the contents differ, the ahead-counts diverged, or there
// is nothing ahead to compare.
func shouldReset(
	diffToTemp bool,
	branchAhead int,
	tempAhead int,
) bool {
	return diffToTemp ||
		branchAhead != tempAhead ||
		tempAhead == 0
}

// classifyMissing classifies the outcome when the branch
// does not exist on the remote.
func classifyMissing(aheadOfBase bool) (Action, bool) {
	if aheadOfBase {
		return Created, true
	}

	return NoChange, false
}

// classifyExisting classifies the outcome for a
// pre-existing remote branch after the reset decision has
// been applied.
func classifyExisting(
	evenWithRemote bool,
	aheadOfBase bool,
) (Action, bool) {
	if evenWithRemote {
		return NotUpdated, aheadOfBase
	}

	return Updated, aheadOfBase
}

// classifyAndAlign observes the branch, workspace, and
// base refs, force-aligns the branch to the workspace when
// needed, and classifies the result. The observations feed
// the pure classification functions above.
func (r *Reconciler) classifyAndAlign(
	branch string,
	temp string,
	base string,
) (Action, bool, error) {
	const errCtx = "classifying branch action"

	exists, err := r.git.RemoteBranchExists(branch)
	if err != nil {
		return NoChange, false, fmt.Errorf(
			"%s: %w", errCtx, err,
		)
	}

	if !exists {
		slog.Info(
			"branch does not exist on remote",
			"branch", branch,
		)

		if err := r.git.CheckoutReset(
			branch, temp,
		); err != nil {
			return NoChange, false, fmt.Errorf(
				"%s: create branch: %w", errCtx, err,
			)
		}

		ahead, err := r.aheadCount(base, branch)
		if err != nil {
			return NoChange, false, fmt.Errorf(
				"%s: %w", errCtx, err,
			)
		}

		action, hasDiff := classifyMissing(ahead > 0)

		return action, hasDiff, nil
	}

	slog.Info(
		"branch exists on remote",
		"branch", branch,
	)

	if err := r.git.FetchRef(
		branch+":"+branch, 0,
	); err != nil {
		slog.Warn(
			"could not fetch existing branch",
			"branch", branch,
		)
	}

	if err := r.git.Checkout(branch); err != nil {
		// No local ref; create one from the remote
		// copy.
		if err := r.git.CheckoutReset(
			branch, r.remote+"/"+branch,
		); err != nil {
			return NoChange, false, fmt.Errorf(
				"%s: checkout branch: %w",
				errCtx, err,
			)
		}
	}

	branchAhead, err := r.aheadCount(base, branch)
	if err != nil {
		return NoChange, false, fmt.Errorf(
			"%s: %w", errCtx, err,
		)
	}

	tempAhead, err := r.aheadCount(base, temp)
	if err != nil {
		return NoChange, false, fmt.Errorf(
			"%s: %w", errCtx, err,
		)
	}

	diffToTemp, err := r.git.DiffExists(branch, temp)
	if err != nil {
		return NoChange, false, fmt.Errorf(
			"%s: %w", errCtx, err,
		)
	}

	if shouldReset(diffToTemp, branchAhead, tempAhead) {
		slog.Info(
			"resetting branch to workspace",
			"branch", branch,
		)

		if err := r.git.CheckoutReset(
			branch, temp,
		); err != nil {
			return NoChange, false, fmt.Errorf(
				"%s: reset branch: %w", errCtx, err,
			)
		}
	}

	ahead, err := r.aheadCount(base, branch)
	if err != nil {
		return NoChange, false, fmt.Errorf(
			"%s: %w", errCtx, err,
		)
	}

	even := r.git.RefsEqual(
		r.remote+"/"+branch, branch,
	)

	action, hasDiff := classifyExisting(even, ahead > 0)

	return action, hasDiff, nil
}

// aheadCount counts commits reachable from ref but not
// from base.
func (r *Reconciler) aheadCount(
	base string,
	ref string,
) (int, error) {
	shas, err := r.git.CommitsBetween(base, ref, false)
	if err != nil {
		return 0, fmt.Errorf(
			"counting commits ahead of %s: %w",
			base, err,
		)
	}

	return len(shas), nil
}
