package subproc

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"al.essio.dev/pkg/shellescape"
	"github.com/vk/rxcropmaturity/internal/ctxlog"
)

// Target is the case a tool runs against.
type Target interface {
	Root() string
	// LoadEnv reloads the case's machine environment, resetting it first
	// when reset is true.
	LoadEnv(ctx context.Context, reset bool) error
}

// Activation describes how to get the Python environment in which the tools
// run.
type Activation struct {
	// MachineScript is sourced from the case root before anything else.
	MachineScript string
	// PythonEnv is the named conda environment the tools run in.
	PythonEnv string
	// ProbeCommand checks whether conda is already on the PATH.
	ProbeCommand string
	// FallbackActivation is prepended when the probe fails.
	FallbackActivation string
	// Python is the interpreter invoked inside the environment.
	Python string
}

// DefaultActivation returns the settings used by the CTSM test suite.
func DefaultActivation() Activation {
	return Activation{
		MachineScript:      ".env_mach_specific.sh",
		PythonEnv:          "ctsm_pylib",
		ProbeCommand:       "which conda",
		FallbackActivation: "module unload python; module load conda;",
		Python:             "python3",
	}
}

// ToolError is returned when a tool exits non-zero.
type ToolError struct {
	Tool     string
	ExitCode int
	Output   string
	LogFile  string
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("%s exited with status %d (log: %s)", e.Tool, e.ExitCode, e.LogFile)
}

// Runner runs Python analysis tools inside the case's environment.
type Runner struct {
	exec        Executor
	activation  Activation
	diagnostics io.Writer
}

// NewRunner creates a tool runner. Failure guidance is written to
// diagnostics.
func NewRunner(exec Executor, activation Activation, diagnostics io.Writer) *Runner {
	if diagnostics == nil {
		diagnostics = io.Discard
	}
	return &Runner{exec: exec, activation: activation, diagnostics: diagnostics}
}

// RunTool runs the Python script at toolPath with args against target. The
// working directory and the location of the <tool>.log file are dir.
func (r *Runner) RunTool(ctx context.Context, target Target, dir, toolPath string, args ...string) error {
	toolName := filepath.Base(toolPath)
	ctx, logger := ctxlog.With(ctx, "tool", toolName)

	if err := target.LoadEnv(ctx, true); err != nil {
		return fmt.Errorf("failed to load environment for %s: %w", toolName, err)
	}

	prefix, err := r.environmentPrefix(ctx, target, dir)
	if err != nil {
		return err
	}
	line := prefix + r.activation.Python + " " + shellescape.QuoteCommand(append([]string{toolPath}, args...))
	logger.Info("Running tool.", "command", line)

	logPath := filepath.Join(dir, toolName+".log")
	logFile, err := os.Create(logPath)
	if err != nil {
		return fmt.Errorf("failed to create log file for %s: %w", toolName, err)
	}
	defer logFile.Close()

	res, err := r.exec.Execute(ctx, Command{Line: line, Dir: dir, Output: logFile})
	if err != nil {
		fmt.Fprintf(r.diagnostics, "ERROR trying to run %s.\n", toolName)
		return fmt.Errorf("failed to run %s: %w", toolName, err)
	}
	if !res.Success() {
		r.printGuidance(toolName, res.Combined)
		return &ToolError{Tool: toolName, ExitCode: res.ExitCode, Output: res.Combined, LogFile: logPath}
	}

	logger.Info("Tool finished.", "duration", res.Duration, "log", logPath)
	return nil
}

// environmentPrefix builds the commands that source the machine environment
// and enter the Python environment. The conda probe runs after the machine
// environment is sourced.
func (r *Runner) environmentPrefix(ctx context.Context, target Target, dir string) (string, error) {
	logger := ctxlog.FromContext(ctx)
	a := r.activation

	var machine string
	if a.MachineScript != "" {
		machine = fmt.Sprintf(". %s; ", shellescape.Quote(filepath.Join(target.Root(), a.MachineScript)))
	}

	if a.PythonEnv == "" {
		return machine, nil
	}

	activation := " "
	if a.ProbeCommand != "" {
		probe := machine + a.ProbeCommand
		res, err := r.exec.Execute(ctx, Command{Line: probe, Dir: dir})
		if err != nil {
			return "", fmt.Errorf("failed to probe for conda: %w", err)
		}
		if !res.Success() {
			logger.Debug("Conda probe failed, using fallback activation.", "probe", probe)
			activation = a.FallbackActivation
		}
	}

	var b strings.Builder
	b.WriteString(machine)
	b.WriteString(activation)
	fmt.Fprintf(&b, " conda run -n %s ", shellescape.Quote(a.PythonEnv))
	return b.String(), nil
}

func (r *Runner) printGuidance(toolName, output string) {
	env := r.activation.PythonEnv
	w := r.diagnostics
	fmt.Fprintln(w, "ERROR while getting the conda environment and/or ")
	fmt.Fprintf(w, "running the %s tool: \n", toolName)
	fmt.Fprintf(w, "(1) If your %s environment is out of date or you \n", env)
	fmt.Fprintf(w, "have not created the %s environment, yet, you may \n", env)
	fmt.Fprintln(w, "get past this error by running ./py_env_create ")
	fmt.Fprintln(w, "in your ctsm directory and trying this test again. ")
	fmt.Fprintln(w, "(2) If conda is not available, install and load conda, ")
	fmt.Fprintln(w, "run ./py_env_create, and then try this test again. ")
	fmt.Fprintln(w, "(3) If (1) and (2) are not the issue, then you may be ")
	fmt.Fprintf(w, "getting an error within %s itself. \n", toolName)
	fmt.Fprintln(w, "Default error message: ")
	fmt.Fprintln(w, output)
}
