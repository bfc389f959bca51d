package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// CommandResult is the captured output of one external process.
type CommandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner abstracts process execution so adapters can be tested without binaries.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (CommandResult, error)
}

// ExecRunner executes commands via os/exec.
type ExecRunner struct{}

// Run executes one command and captures stdout, stderr and the exit code.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) (CommandResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := CommandResult{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		res.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
		}
		return res, err
	}
	return res, nil
}

// CommandError reports a failed external command with its stderr.
type CommandError struct {
	Command  string
	Args     []string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *CommandError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	return fmt.Sprintf("%s failed (exit %d): %s", e.Command, e.ExitCode, msg)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}
