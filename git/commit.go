package git

import (
	"fmt"
	"strings"

	"github.com/byte4ever/create_pr/exec"
)

// defaultFileMode is reported for file changes when the
// mode is not part of the name-status output.
const defaultFileMode = "100644"

// FileChange describes one file-level change within a
// commit.
type FileChange struct {
	// Mode is the file mode (e.g. 100644).
	Mode string
	// Status is the single-letter change kind: A added,
	// M modified, D deleted, R renamed.
	Status string
	// Path is the file path relative to the repository
	// root.
	Path string
}

// CommitInfo is the parsed metadata of a single commit.
// Immutable once read from the repository.
type CommitInfo struct {
	// SHA is the commit hash.
	SHA string
	// Tree is the root tree hash.
	Tree string
	// Parents are the parent commit hashes in order.
	Parents []string
	// Subject is the first line of the message.
	Subject string
	// Body is the remainder of the message.
	Body string
	// Changes are the file-level changes.
	Changes []FileChange
}

// GetCommit reads the full metadata of the commit at ref.
func (r *Repo) GetCommit(ref string) (CommitInfo, error) {
	const errCtx = "getting commit detail"

	out, err := exec.Ex(
		r.Dir, "git",
		"show", "-s", "--format=%H%n%T%n%P%n%s%n%b", ref,
	)
	if err != nil {
		return CommitInfo{}, fmt.Errorf(
			"%s %s: %w", errCtx, ref, err,
		)
	}

	ci, err := parseCommitShow(out)
	if err != nil {
		return CommitInfo{}, fmt.Errorf(
			"%s %s: %w", errCtx, ref, err,
		)
	}

	diffOut, err := exec.Ex(
		r.Dir, "git",
		"diff-tree", "--no-commit-id",
		"--name-status", "-r", ref,
	)
	if err != nil {
		return CommitInfo{}, fmt.Errorf(
			"%s %s: changes: %w", errCtx, ref, err,
		)
	}

	ci.Changes = parseNameStatus(diffOut)

	return ci, nil
}

// parseCommitShow parses the output of
// git show -s --format=%H%n%T%n%P%n%s%n%b.
func parseCommitShow(out string) (CommitInfo, error) {
	lines := strings.Split(out, "\n")
	if len(lines) < 4 {
		return CommitInfo{}, fmt.Errorf(
			"unexpected show output: %q", out,
		)
	}

	var parents []string
	if p := strings.TrimSpace(lines[2]); p != "" {
		parents = strings.Fields(p)
	}

	body := ""
	if len(lines) > 4 {
		body = strings.TrimSpace(
			strings.Join(lines[4:], "\n"),
		)
	}

	return CommitInfo{
		SHA:     strings.TrimSpace(lines[0]),
		Tree:    strings.TrimSpace(lines[1]),
		Parents: parents,
		Subject: strings.TrimSpace(lines[3]),
		Body:    body,
	}, nil
}

// parseNameStatus parses git diff-tree --name-status
// output into file changes. Rename lines carry a score
// suffix (e.g. R100) which is trimmed to the letter.
func parseNameStatus(out string) []FileChange {
	var changes []FileChange

	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		parts := strings.Split(line, "\t")
		if len(parts) < 2 {
			continue
		}

		status := parts[0]
		if len(status) > 1 {
			status = status[:1]
		}

		// Renames list old and new path; report the
		// destination.
		path := parts[1]
		if status == "R" && len(parts) > 2 {
			path = parts[2]
		}

		changes = append(changes, FileChange{
			Mode:   defaultFileMode,
			Status: status,
			Path:   path,
		})
	}

	return changes
}
