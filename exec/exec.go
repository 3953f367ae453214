// Package exec provides shell command execution helpers.
package exec

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
)

// CommandError reports a failed command together with
// its exit code and combined diagnostic output.
type CommandError struct {
	// Command is the full command line that failed.
	Command string
	// ExitCode is the process exit code, or -1 when
	// the process could not be started.
	ExitCode int
	// Output is the combined stdout+stderr output.
	Output string
}

// Error formats the failure with command identity and
// diagnostics.
func (e *CommandError) Error() string {
	return fmt.Sprintf(
		"command failed with exit code %d: %s: %s",
		e.ExitCode, e.Command, strings.TrimSpace(e.Output),
	)
}

// Ex executes the named command in the given directory and
// returns combined stdout+stderr output. Pass empty dir to
// use the current working directory. A non-zero exit is
// returned as a *CommandError.
func Ex(
	dir string,
	name string,
	arg ...string,
) (string, error) {
	return ExEnv(dir, nil, name, arg...)
}

// ExEnv is Ex with extra environment variables appended to
// the current process environment.
func ExEnv(
	dir string,
	env map[string]string,
	name string,
	arg ...string,
) (string, error) {
	slog.Debug(
		"executing",
		"cmd", name,
		"args", strings.Join(arg, " "),
	)

	cmd := exec.CommandContext(
		context.Background(), name, arg...,
	)
	if dir != "" {
		cmd.Dir = dir
	}

	if len(env) > 0 {
		cmd.Env = os.Environ()
		for k, v := range env {
			cmd.Env = append(cmd.Env, k+"="+v)
		}
	}

	by, err := cmd.CombinedOutput()

	slog.Debug("output", "result", string(by))

	if err != nil {
		return string(by), &CommandError{
			Command: strings.TrimSpace(
				name + " " + strings.Join(arg, " "),
			),
			ExitCode: exitCode(err),
			Output:   string(by),
		}
	}

	return string(by), nil
}

// exitCode extracts the process exit code from an exec
// error. Returns -1 when the process never started.
func exitCode(err error) int {
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		return ee.ExitCode()
	}

	return -1
}
