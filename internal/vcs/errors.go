package vcs

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// CommandError describes a git invocation that exited unsuccessfully
type CommandError struct {
	Args     []string
	Dir      string
	ExitCode int
	Stderr   string
	err      error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("git %s failed in %s (exit code %d)", strings.Join(e.Args, " "), e.Dir, e.ExitCode)
	if stderr := strings.TrimSpace(e.Stderr); stderr != "" {
		msg += ": " + stderr
	}
	return msg
}

func (e *CommandError) Unwrap() error {
	return e.err
}

func newCommandError(args []string, dir, stderr string, err error) *CommandError {
	exitCode := -1

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		exitCode = exitErr.ExitCode()
	}

	return &CommandError{
		Args:     args,
		Dir:      dir,
		ExitCode: exitCode,
		Stderr:   stderr,
		err:      err,
	}
}

// ExitCode returns the exit code carried by err, 0 for nil and -1 when unknown
func ExitCode(err error) int {
	if err == nil {
		return 0
	}

	var cmdErr *CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr.ExitCode
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}

	return -1
}
