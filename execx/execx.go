// Package execx provides external process execution helpers.
package execx

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
)

// Run executes the named command in the given directory and
// returns combined stdout+stderr output. Pass empty dir to
// use the current working directory. The command is killed
// when ctx is cancelled.
func Run(
	ctx context.Context,
	dir string,
	name string,
	arg ...string,
) (string, error) {
	const errCtx = "executing command"

	slog.Debug(
		"executing",
		"cmd", name,
		"args", strings.Join(arg, " "),
	)

	cmd := exec.CommandContext(ctx, name, arg...)
	if dir != "" {
		cmd.Dir = dir
	}

	by, err := cmd.CombinedOutput()

	if err != nil {
		return string(by), fmt.Errorf(
			"%s: %s %s: %s: %w",
			errCtx, name, strings.Join(arg, " "),
			strings.TrimSpace(string(by)), err,
		)
	}

	return string(by), nil
}

// RunQuiet executes the command without logging the argument
// vector and without embedding it in the returned error. Use
// it for invocations whose arguments carry credentials. The
// returned error is the bare process error (typically an
// *exec.ExitError), never the command line or its output.
func RunQuiet(
	ctx context.Context,
	dir string,
	name string,
	arg ...string,
) error {
	slog.Debug("executing", "cmd", name)

	cmd := exec.CommandContext(ctx, name, arg...)
	if dir != "" {
		cmd.Dir = dir
	}

	// Output is read and discarded so the child cannot
	// block on a full pipe.
	_, err := cmd.CombinedOutput()

	return err
}
