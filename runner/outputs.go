package runner

import (
	"fmt"
	"io"
	"strconv"

	json "github.com/goccy/go-json"
)

// Outputs is what a run publishes for downstream steps.
type Outputs struct {
	// PullRequestNumber is zero when no PR was touched.
	PullRequestNumber int `json:"pull-request-number"`
	// PullRequestURL is the human-facing PR URL.
	PullRequestURL string `json:"pull-request-url"`
	// PullRequestOperation is one of none, created,
	// updated, or closed.
	PullRequestOperation string `json:"pull-request-operation"`
	// PullRequestHeadSHA is the branch tip after the
	// run.
	PullRequestHeadSHA string `json:"pull-request-head-sha"`
	// PullRequestBranch is the effective branch name,
	// suffix included.
	PullRequestBranch string `json:"pull-request-branch"`
}

// outputDelimiter terminates multiline output values.
const outputDelimiter = "EOF"

// WriteActionsOutput emits the outputs in the GitHub
// Actions "name<<EOF" multiline format. Empty values are
// skipped.
func (o Outputs) WriteActionsOutput(w io.Writer) error {
	const errCtx = "writing outputs"

	pairs := []struct {
		name  string
		value string
	}{
		{
			"pull-request-number",
			nonZero(o.PullRequestNumber),
		},
		{"pull-request-url", o.PullRequestURL},
		{
			"pull-request-operation",
			o.PullRequestOperation,
		},
		{
			"pull-request-head-sha",
			o.PullRequestHeadSHA,
		},
		{"pull-request-branch", o.PullRequestBranch},
	}

	for _, p := range pairs {
		if p.value == "" {
			continue
		}

		if _, err := fmt.Fprintf(
			w, "%s<<%s\n%s\n%s\n",
			p.name, outputDelimiter,
			p.value, outputDelimiter,
		); err != nil {
			return fmt.Errorf(
				"%s: %w", errCtx, err,
			)
		}
	}

	return nil
}

// WriteJSON emits the outputs as a single JSON object.
func (o Outputs) WriteJSON(w io.Writer) error {
	const errCtx = "writing json outputs"

	enc := json.NewEncoder(w)
	if err := enc.Encode(o); err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	return nil
}

func nonZero(n int) string {
	if n == 0 {
		return ""
	}

	return strconv.Itoa(n)
}
