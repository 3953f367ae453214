package runner

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Branch suffix kinds.
const (
	SuffixNone            = "none"
	SuffixTimestamp       = "timestamp"
	SuffixRandom          = "random"
	SuffixShortCommitHash = "short-commit-hash"
)

// randomSuffixLen is the length of the random suffix
// token.
const randomSuffixLen = 7

// shaResolver resolves a ref to its short SHA; *git.Repo
// satisfies it.
type shaResolver interface {
	ShortSHA(ref string) (string, error)
}

// suffixedBranch appends the configured suffix kind to the
// branch name.
func suffixedBranch(
	branch string,
	kind string,
	repo shaResolver,
) (string, error) {
	const errCtx = "building branch suffix"

	switch kind {
	case "", SuffixNone:
		return branch, nil

	case SuffixTimestamp:
		return branch + "-" + strconv.FormatInt(
			time.Now().Unix(), 10,
		), nil

	case SuffixRandom:
		token := strings.ReplaceAll(
			uuid.NewString(), "-", "",
		)

		return branch + "-" +
			token[:randomSuffixLen], nil

	case SuffixShortCommitHash:
		sha, err := repo.ShortSHA("HEAD")
		if err != nil {
			return "", fmt.Errorf(
				"%s: %w", errCtx, err,
			)
		}

		return branch + "-" + sha, nil

	default:
		return "", fmt.Errorf(
			"%s: unknown kind %q", errCtx, kind,
		)
	}
}
