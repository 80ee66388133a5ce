package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/vk/rxcropmaturity/internal/caseops"
	"github.com/vk/rxcropmaturity/internal/config"
	"github.com/vk/rxcropmaturity/internal/cropcal"
	"github.com/vk/rxcropmaturity/internal/ctxlog"
	"github.com/vk/rxcropmaturity/internal/subproc"
	"github.com/vk/rxcropmaturity/internal/workflow"
)

// ErrNoCase is returned by commands that need a case when none is configured.
var ErrNoCase = errors.New("no case configured; pass --config with a \"case\" block")

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW   io.Writer
	logger *slog.Logger
	cfg    *Config
	model  *config.Model
	runID  string

	exec        subproc.Executor
	diagnostics io.Writer
}

// Option configures an App.
type Option func(*App)

// WithExecutor replaces the shell executor used for case scripts and tools.
func WithExecutor(exec subproc.Executor) Option {
	return func(a *App) { a.exec = exec }
}

// WithDiagnostics sets where tool failure guidance is written. Defaults to
// the app output.
func WithDiagnostics(w io.Writer) Option {
	return func(a *App) { a.diagnostics = w }
}

// WithRunID fixes the run identifier instead of generating one.
func WithRunID(id string) Option {
	return func(a *App) { a.runID = id }
}

// NewApp is the constructor for the main application. It builds the logger
// and loads the configuration model; no external process is started.
func NewApp(outW io.Writer, cfg *Config, loader config.Loader, opts ...Option) (*App, error) {
	a := &App{
		outW:  outW,
		cfg:   cfg,
		model: &config.Model{},
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.runID == "" {
		a.runID = uuid.NewString()
	}
	if a.exec == nil {
		a.exec = subproc.NewShellExecutor("")
	}
	if a.diagnostics == nil {
		a.diagnostics = outW
	}

	a.logger = newLogger(cfg.LogLevel, cfg.LogFormat, outW).With("run_id", a.runID)
	ctx := ctxlog.WithLogger(context.Background(), a.logger)
	a.logger.Debug("Logger configured successfully.")

	if len(cfg.ConfigPaths) > 0 {
		model, err := loader.Load(ctx, cfg.ConfigPaths...)
		if err != nil {
			return nil, fmt.Errorf("failed to load configuration: %w", err)
		}
		a.model = model
		a.logger.Debug("Configuration loaded.", "paths", cfg.ConfigPaths)
	}
	return a, nil
}

// RunID returns the identifier attached to this app's logs and summary.
func (a *App) RunID() string {
	return a.runID
}

// Model returns the loaded configuration. This is primarily for testing.
func (a *App) Model() *config.Model {
	return a.model
}

func (a *App) context(ctx context.Context) context.Context {
	return ctxlog.WithLogger(ctx, a.logger)
}

// caseRoot returns the configured case root, resolved against the work dir.
func (a *App) caseRoot() (string, error) {
	root := a.model.Case.Root
	if root == "" {
		return "", ErrNoCase
	}
	if filepath.IsAbs(root) {
		return root, nil
	}
	base := a.cfg.WorkDir
	if base == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", err
		}
		base = wd
	}
	return filepath.Join(base, root), nil
}

// openCase opens the base case. Opening reads the case XML only.
func (a *App) openCase() (caseops.Case, error) {
	root, err := a.caseRoot()
	if err != nil {
		return nil, err
	}
	opts := []caseops.Option{
		caseops.WithCommands(a.caseCommands()),
		caseops.WithOverrides(a.model.Case.Values),
	}
	if ms := a.activation().MachineScript; ms != "" {
		opts = append(opts, caseops.WithMachineScript(ms))
	}
	return caseops.Open(root, a.exec, opts...)
}

// newOrchestrator opens the case and validates it; no external process is
// started.
func (a *App) newOrchestrator(ctx context.Context) (*workflow.Orchestrator, error) {
	base, err := a.openCase()
	if err != nil {
		return nil, err
	}
	runner := subproc.NewRunner(a.exec, a.activation(), a.diagnostics)
	return workflow.New(ctx, base, runner, workflow.Options{
		RunID:             a.runID,
		CloneSuffix:       a.model.Case.CloneSuffix,
		Calendars:         a.calendarTable(),
		UseSurfaceDataset: a.model.GddGen.UseSurfaceDataset,
	})
}

// caseCommands overlays configured commands onto the defaults.
func (a *App) caseCommands() caseops.Commands {
	c := caseops.DefaultCommands()
	o := a.model.Case.Commands
	overlay(&c.CreateClone, o.CreateClone)
	overlay(&c.PreviewNamelist, o.PreviewNamelist)
	overlay(&c.CheckInputData, o.CheckInputData)
	overlay(&c.Submit, o.Submit)
	overlay(&c.STArchive, o.STArchive)
	overlay(&c.Compare, o.Compare)
	overlay(&c.ResetEnv, o.ResetEnv)
	return c
}

// activation overlays the configured environment onto the defaults.
func (a *App) activation() subproc.Activation {
	act := subproc.DefaultActivation()
	e := a.model.Environment
	overlay(&act.MachineScript, e.MachineScript)
	overlay(&act.PythonEnv, e.PythonEnv)
	overlay(&act.ProbeCommand, e.ProbeCommand)
	overlay(&act.FallbackActivation, e.FallbackActivation)
	overlay(&act.Python, e.Python)
	return act
}

// calendarTable returns the configured calendars, or the built-in table
// when none are configured.
func (a *App) calendarTable() cropcal.Table {
	if len(a.model.Calendars) == 0 {
		return cropcal.DefaultTable()
	}
	t := make(cropcal.Table, len(a.model.Calendars))
	for _, c := range a.model.Calendars {
		t[c.Resolution] = cropcal.Files{Sowing: c.SowingFile, Harvest: c.HarvestFile}
	}
	return t
}

func overlay(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
