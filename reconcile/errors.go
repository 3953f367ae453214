package reconcile

import "fmt"

// ConfigError reports an invalid or missing configuration
// value. Fatal; never retried.
type ConfigError struct {
	// Param is the offending parameter name.
	Param string
	// Reason explains what is wrong with it.
	Reason string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf(
		"invalid configuration for %q: %s",
		e.Param, e.Reason,
	)
}

// ConflictError reports a commit whose replay hit a
// conflict that the automatic strategy could not resolve.
// Fatal for the run; the working tree is restored before
// it propagates.
type ConflictError struct {
	// SHA is the commit that failed to apply.
	SHA string
	// Diagnostic is the git output describing the
	// conflict.
	Diagnostic string
}

// Error implements the error interface.
func (e *ConflictError) Error() string {
	return fmt.Sprintf(
		"conflicts could not be auto-resolved "+
			"applying commit %s: %s",
		shortSHA(e.SHA), e.Diagnostic,
	)
}

// shortSHA abbreviates a commit hash for log and error
// messages.
func shortSHA(sha string) string {
	const short = 8

	if len(sha) <= short {
		return sha
	}

	return sha[:short]
}
