// Package caseops drives a CIME case directory: reading its variables,
// cloning it, and running its setup and run scripts.
package caseops

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"al.essio.dev/pkg/shellescape"
	"github.com/vk/rxcropmaturity/internal/ctxlog"
	"github.com/vk/rxcropmaturity/internal/fsutil"
	"github.com/vk/rxcropmaturity/internal/subproc"
)

// Case is a configured, runnable model case.
type Case interface {
	// Root is the case directory (CASEROOT).
	Root() string
	// Value returns the expanded value of a case variable.
	Value(ctx context.Context, key string) (string, error)
	// Clone creates a new case at dest. When keepExe is set the clone
	// reuses this case's build.
	Clone(ctx context.Context, dest string, keepExe bool) (Case, error)
	// CreateNamelists regenerates the component's namelists under CaseDocs.
	CreateNamelists(ctx context.Context, component string) error
	// CheckInputData verifies and downloads the case's input data.
	CheckInputData(ctx context.Context) error
	// LoadEnv reloads the machine environment for subprocesses.
	LoadEnv(ctx context.Context, reset bool) error
	// Run runs the model.
	Run(ctx context.Context, opts RunOptions) error
}

// RunOptions controls a single model run.
type RunOptions struct {
	// Suffix is applied to history files for baseline comparison. Empty
	// means no comparison is done for this run.
	Suffix string
	// STArchive runs the short-term archiver after the model.
	STArchive bool
}

// ErrNoHistory is returned when a run with a baseline suffix left no
// history files to copy.
var ErrNoHistory = errors.New("no history files found")

// historyPattern matches model history files, e.g.
// <case>.clm2.h0.2000-01-01-00000.nc.
const historyPattern = "*.h[0-9]*.nc"

// Commands are the shell command lines used to drive the case. Values of
// the form $VAR are expanded from the case variables. An empty Compare
// copies the run's history files to <file>.<suffix> in RUNDIR.
type Commands struct {
	CreateClone     string
	PreviewNamelist string
	CheckInputData  string
	Submit          string
	STArchive       string
	Compare         string
	ResetEnv        string
}

// DefaultCommands returns the standard CIME scripts.
func DefaultCommands() Commands {
	return Commands{
		CreateClone:     "$CIMEROOT/scripts/create_clone",
		PreviewNamelist: "./preview_namelists --component",
		CheckInputData:  "./check_input_data --download",
		Submit:          "./case.submit --no-batch",
		STArchive:       "./case.st_archive",
	}
}

// CommandError is returned when a case script exits non-zero.
type CommandError struct {
	Line     string
	ExitCode int
	Output   string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%q exited with status %d: %s", e.Line, e.ExitCode, tail(e.Output, 20))
}

// ScriptCase implements Case by reading env_*.xml files and running CIME
// scripts in the case directory.
type ScriptCase struct {
	root          string
	exec          subproc.Executor
	commands      Commands
	overrides     map[string]string
	machineScript string
	env           *EnvXML
}

// Option configures a ScriptCase.
type Option func(*ScriptCase)

// WithCommands replaces the default commands.
func WithCommands(c Commands) Option {
	return func(s *ScriptCase) { s.commands = c }
}

// WithOverrides sets variables that take precedence over the XML files.
func WithOverrides(values map[string]string) Option {
	return func(s *ScriptCase) {
		s.overrides = make(map[string]string, len(values))
		for k, v := range values {
			s.overrides[k] = v
		}
	}
}

// WithMachineScript sets the environment script that LoadEnv checks for.
func WithMachineScript(name string) Option {
	return func(s *ScriptCase) { s.machineScript = name }
}

// Open loads the case at root.
func Open(root string, exec subproc.Executor, opts ...Option) (*ScriptCase, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve case root %s: %w", root, err)
	}
	s := &ScriptCase{
		root:          abs,
		exec:          exec,
		commands:      DefaultCommands(),
		machineScript: ".env_mach_specific.sh",
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.reload(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *ScriptCase) reload() error {
	env, err := LoadEnvXML(s.root)
	if err != nil {
		return fmt.Errorf("failed to load case %s: %w", s.root, err)
	}
	s.env = env
	return nil
}

func (s *ScriptCase) resolver() resolver {
	overrides := make(map[string]string, len(s.overrides)+1)
	for k, v := range s.overrides {
		overrides[k] = v
	}
	overrides["CASEROOT"] = s.root
	return resolver{overrides: overrides, xml: s.env}
}

// Root implements Case.
func (s *ScriptCase) Root() string {
	return s.root
}

// Value implements Case.
func (s *ScriptCase) Value(_ context.Context, key string) (string, error) {
	return s.resolver().resolve(key)
}

// Clone implements Case. The clone inherits this case's commands and
// overrides.
func (s *ScriptCase) Clone(ctx context.Context, dest string, keepExe bool) (Case, error) {
	args := []string{"--case", dest, "--clone", s.root}
	if keepExe {
		args = append(args, "--keepexe")
	}
	if err := s.script(ctx, s.commands.CreateClone, args...); err != nil {
		return nil, err
	}

	clone := &ScriptCase{
		root:          dest,
		exec:          s.exec,
		commands:      s.commands,
		overrides:     s.overrides,
		machineScript: s.machineScript,
	}
	if err := clone.reload(); err != nil {
		return nil, err
	}
	return clone, nil
}

// CreateNamelists implements Case.
func (s *ScriptCase) CreateNamelists(ctx context.Context, component string) error {
	return s.script(ctx, s.commands.PreviewNamelist, component)
}

// CheckInputData implements Case.
func (s *ScriptCase) CheckInputData(ctx context.Context) error {
	return s.script(ctx, s.commands.CheckInputData)
}

// LoadEnv implements Case. With reset, the configured reset command is run
// first; the machine script must exist afterwards.
func (s *ScriptCase) LoadEnv(ctx context.Context, reset bool) error {
	if reset && s.commands.ResetEnv != "" {
		if err := s.script(ctx, s.commands.ResetEnv); err != nil {
			return err
		}
	}
	if err := s.reload(); err != nil {
		return err
	}
	if s.machineScript == "" {
		return nil
	}
	ok, err := fsutil.Exists(filepath.Join(s.root, s.machineScript))
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("machine environment script %s not found in %s", s.machineScript, s.root)
	}
	return nil
}

// Run implements Case.
func (s *ScriptCase) Run(ctx context.Context, opts RunOptions) error {
	logger := ctxlog.FromContext(ctx)
	logger.Info("Running case.", "case", s.root, "suffix", opts.Suffix, "st_archive", opts.STArchive)

	if err := s.script(ctx, s.commands.Submit); err != nil {
		return err
	}
	if opts.Suffix != "" {
		if err := s.compare(ctx, opts.Suffix); err != nil {
			return err
		}
	}
	if opts.STArchive {
		if err := s.script(ctx, s.commands.STArchive); err != nil {
			return err
		}
	}
	return nil
}

func (s *ScriptCase) compare(ctx context.Context, suffix string) error {
	if s.commands.Compare != "" {
		return s.script(ctx, s.commands.Compare, suffix)
	}
	rundir, err := s.resolver().resolve("RUNDIR")
	if err != nil {
		return fmt.Errorf("failed to locate history files: %w", err)
	}
	copied, err := copyHistory(rundir, suffix)
	if err != nil {
		return err
	}
	ctxlog.FromContext(ctx).Info("Copied history files for baseline.", "rundir", rundir, "suffix", suffix, "files", copied)
	return nil
}

// copyHistory copies each history file in rundir to <file>.<suffix> and
// returns how many were copied.
func copyHistory(rundir, suffix string) (int, error) {
	files, err := filepath.Glob(filepath.Join(rundir, historyPattern))
	if err != nil {
		return 0, err
	}
	if len(files) == 0 {
		return 0, fmt.Errorf("%w in %s", ErrNoHistory, rundir)
	}
	for _, f := range files {
		if err := copyFile(f, f+"."+suffix); err != nil {
			return 0, err
		}
	}
	return len(files), nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	return out.Close()
}

func (s *ScriptCase) expand(line string) (string, error) {
	r := s.resolver()
	var expandErr error
	out := os.Expand(line, func(ref string) string {
		v, err := r.resolve(ref)
		if err != nil {
			if env, ok := os.LookupEnv(ref); ok {
				return env
			}
			expandErr = err
		}
		return v
	})
	return out, expandErr
}

// script expands the command template and runs it with args appended.
func (s *ScriptCase) script(ctx context.Context, template string, args ...string) error {
	if template == "" {
		return fmt.Errorf("no command configured in case %s", s.root)
	}
	line, err := s.expand(template)
	if err != nil {
		return fmt.Errorf("failed to expand %q: %w", template, err)
	}
	if len(args) > 0 {
		line += " " + shellescape.QuoteCommand(args)
	}
	res, err := s.exec.Execute(ctx, subproc.Command{Line: line, Dir: s.root})
	if err != nil {
		return err
	}
	if !res.Success() {
		return &CommandError{Line: line, ExitCode: res.ExitCode, Output: res.Combined}
	}
	ctxlog.FromContext(ctx).Debug("Case command finished.", "line", line, "duration", res.Duration)
	return nil
}

func tail(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
