// Package subproc runs external commands for the workflow: a minimal
// Executor capability for shell command lines, and a Runner that wraps
// analysis tools with the case's machine environment and a Python
// environment activation.
package subproc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"time"

	"github.com/vk/rxcropmaturity/internal/ctxlog"
)

// Command is a shell command line to execute.
type Command struct {
	// Line is passed to the shell verbatim.
	Line string
	// Dir is the working directory. Empty means the current directory.
	Dir string
	// Env is appended to the inherited environment.
	Env []string
	// Output, if set, additionally receives combined stdout/stderr as it is
	// produced.
	Output io.Writer
}

// Result is the outcome of a command that was started.
type Result struct {
	ExitCode int
	Combined string
	Duration time.Duration
}

// Success reports whether the command exited with status zero.
func (r *Result) Success() bool {
	return r.ExitCode == 0
}

// Executor runs a command to completion. A non-zero exit is reported in the
// Result, not as an error; the error is reserved for commands that could not
// be run at all.
type Executor interface {
	Execute(ctx context.Context, cmd Command) (*Result, error)
}

// ShellExecutor runs commands through a POSIX shell with -c.
type ShellExecutor struct {
	Shell string
}

// NewShellExecutor returns an executor using shell, or /bin/sh if empty.
func NewShellExecutor(shell string) *ShellExecutor {
	if shell == "" {
		shell = "/bin/sh"
	}
	return &ShellExecutor{Shell: shell}
}

// Execute implements Executor.
func (e *ShellExecutor) Execute(ctx context.Context, cmd Command) (*Result, error) {
	logger := ctxlog.FromContext(ctx)
	if cmd.Line == "" {
		return nil, errors.New("empty command line")
	}

	c := exec.CommandContext(ctx, e.Shell, "-c", cmd.Line)
	c.Dir = cmd.Dir
	if len(cmd.Env) > 0 {
		c.Env = append(c.Environ(), cmd.Env...)
	}

	var buf bytes.Buffer
	var out io.Writer = &buf
	if cmd.Output != nil {
		out = io.MultiWriter(&buf, cmd.Output)
	}
	c.Stdout = out
	c.Stderr = out

	logger.Debug("Executing command.", "line", cmd.Line, "dir", cmd.Dir)
	start := time.Now()
	err := c.Run()
	result := &Result{
		Combined: buf.String(),
		Duration: time.Since(start),
	}

	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, fmt.Errorf("failed to run %q: %w", cmd.Line, err)
		}
		result.ExitCode = exitErr.ExitCode()
		if ctx.Err() != nil {
			return result, fmt.Errorf("command %q interrupted: %w", cmd.Line, ctx.Err())
		}
	}

	logger.Debug("Command finished.", "exit_code", result.ExitCode, "duration", result.Duration)
	return result, nil
}
