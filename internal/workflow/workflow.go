// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

// Package workflow drives the prescribed crop maturity test: a GDD-generating
// run in a clone of the case, derivation of maturity requirements from its
// output, and a prescribed-calendar run of the original case that is then
// checked.
//
// Stages run strictly in order and the first failure aborts the workflow.
// Each stage receives the case it operates on explicitly and returns an
// updated State.
package workflow

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/vk/rxcropmaturity/internal/caseops"
	"github.com/vk/rxcropmaturity/internal/cropcal"
	"github.com/vk/rxcropmaturity/internal/ctxlog"
	"github.com/vk/rxcropmaturity/internal/fsutil"
	"github.com/vk/rxcropmaturity/internal/namelist"
	"github.com/vk/rxcropmaturity/internal/runlength"
	"github.com/vk/rxcropmaturity/internal/subproc"
)

const (
	// DefaultCloneSuffix is appended to the case root to name the
	// GDD-generating clone.
	DefaultCloneSuffix = ".gddgen"

	gddsOutDir      = "generate_gdds_out"
	gddsPattern     = "gdds_*.nc"
	gddsExclude     = "fill0"
	landComponent   = "lnd"
	userNLComponent = "clm"
)

// Tool script names under <COMP_ROOT_DIR_LND>/python/ctsm/crop_calendars.
const (
	ToolMakeLanduse  = "make_lu_for_gddgen.py"
	ToolMakeSurface  = "make_surface_for_gddgen.py"
	ToolGenerateGDDs = "generate_gdds.py"
	ToolCheckRxBoth  = "check_rxboth_run.py"
)

// ToolRunner runs an analysis tool against a case.
type ToolRunner interface {
	RunTool(ctx context.Context, target subproc.Target, dir, toolPath string, args ...string) error
}

// Options configures an Orchestrator.
type Options struct {
	RunID       string
	CloneSuffix string
	// Calendars defaults to cropcal.DefaultTable.
	Calendars cropcal.Table
	// UseSurfaceDataset makes the GDD-generating run use a constant surface
	// dataset instead of a trimmed land use timeseries.
	UseSurfaceDataset bool
}

// Orchestrator runs the workflow for one base case.
type Orchestrator struct {
	base    caseops.Case
	tools   ToolRunner
	opts    Options
	initial State
}

// New validates the base case's run length and calendar files. It starts no
// external process; any configuration error is returned here.
func New(ctx context.Context, base caseops.Case, tools ToolRunner, opts Options) (*Orchestrator, error) {
	if opts.CloneSuffix == "" {
		opts.CloneSuffix = DefaultCloneSuffix
	}
	if opts.Calendars == nil {
		opts.Calendars = cropcal.DefaultTable()
	}

	stopN, err := value(ctx, base, "STOP_N")
	if err != nil {
		return nil, err
	}
	n, err := strconv.ParseFloat(strings.TrimSpace(stopN), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid STOP_N %q: %w", stopN, err)
	}
	stopOption, err := value(ctx, base, "STOP_OPTION")
	if err != nil {
		return nil, err
	}
	length, err := runlength.Validate(ctx, n, stopOption)
	if err != nil {
		return nil, err
	}

	grid, err := value(ctx, base, "LND_GRID")
	if err != nil {
		return nil, err
	}
	calendars, err := opts.Calendars.Resolve(grid)
	if err != nil {
		return nil, err
	}

	startDate, err := value(ctx, base, "RUN_STARTDATE")
	if err != nil {
		return nil, err
	}
	startYear, err := parseStartYear(startDate)
	if err != nil {
		return nil, err
	}

	ctsmRoot, err := value(ctx, base, "COMP_ROOT_DIR_LND")
	if err != nil {
		return nil, err
	}

	return &Orchestrator{
		base:  base,
		tools: tools,
		opts:  opts,
		initial: State{
			RunID:       opts.RunID,
			Length:      length,
			Calendars:   calendars,
			StartYear:   startYear,
			CTSMRoot:    ctsmRoot,
			BaseRoot:    base.Root(),
			NamelistLog: map[string][]string{},
		},
	}, nil
}

// Initial returns the State computed at construction.
func (o *Orchestrator) Initial() State {
	return o.initial
}

// Run executes every stage in order. The returned State holds whatever was
// completed, also on error.
func (o *Orchestrator) Run(ctx context.Context) (State, error) {
	logger := ctxlog.FromContext(ctx)
	st := o.initial
	logger.Info("Starting workflow.",
		"case", st.BaseRoot,
		"years", st.Length.Years,
		"start_year", st.StartYear,
		"first_season", st.FirstSeason(),
		"last_season", st.LastSeason(),
	)

	var clone caseops.Case
	var err error

	st, err = o.stage(ctx, st, CloneGddGenCase, func(ctx context.Context, st State) (State, error) {
		c, next, cloneErr := o.cloneGddGenCase(ctx, o.base, st)
		clone = c
		return next, cloneErr
	})
	if err != nil {
		return st, err
	}

	steps := []struct {
		stage Stage
		fn    func(context.Context, State) (State, error)
	}{
		{ConfigureGddGenRun, func(ctx context.Context, st State) (State, error) {
			return o.configureGddGenRun(ctx, clone, st)
		}},
		{RunGddGenSimulation, func(ctx context.Context, st State) (State, error) {
			return o.runGddGenSimulation(ctx, clone, st)
		}},
		{DeriveMaturityRequirements, func(ctx context.Context, st State) (State, error) {
			return o.deriveMaturityRequirements(ctx, clone, st)
		}},
		{ConfigurePrescribedRun, func(ctx context.Context, st State) (State, error) {
			return o.configurePrescribedRun(ctx, o.base, st)
		}},
		{RunPrescribedSimulation, func(ctx context.Context, st State) (State, error) {
			return o.runPrescribedSimulation(ctx, o.base, st)
		}},
		{ValidatePrescribedRun, func(ctx context.Context, st State) (State, error) {
			return o.validatePrescribedRun(ctx, o.base, st)
		}},
	}
	for _, s := range steps {
		st, err = o.stage(ctx, st, s.stage, s.fn)
		if err != nil {
			return st, err
		}
	}

	logger.Info("Workflow finished.", "gdds_file", st.GddsFile)
	return st, nil
}

// stage runs fn with logging, records completion and wraps failures.
func (o *Orchestrator) stage(ctx context.Context, st State, stage Stage, fn func(context.Context, State) (State, error)) (State, error) {
	ctx, logger := ctxlog.With(ctx, "stage", stage.String())
	if err := ctx.Err(); err != nil {
		return st, &StageError{Stage: stage, Err: err}
	}

	logger.Info("Stage started.")
	start := time.Now()
	next, err := fn(ctx, st)
	if err != nil {
		logger.Error("Stage failed.", "error", err)
		// Keep what the stage recorded before failing, such as namelist
		// lines already appended.
		if next.BaseRoot == "" {
			next = st
		}
		return next, &StageError{Stage: stage, Err: err}
	}
	logger.Info("Stage finished.", "duration", time.Since(start))
	return next.withCompleted(stage), nil
}

func (o *Orchestrator) cloneGddGenCase(ctx context.Context, base caseops.Case, st State) (caseops.Case, State, error) {
	logger := ctxlog.FromContext(ctx)
	clonePath := base.Root() + o.opts.CloneSuffix

	exists, err := fsutil.Exists(clonePath)
	if err != nil {
		return nil, st, err
	}
	if exists {
		logger.Info("Removing existing clone.", "path", clonePath)
		if err := os.RemoveAll(clonePath); err != nil {
			return nil, st, fmt.Errorf("failed to remove %s: %w", clonePath, err)
		}
	}

	clone, err := base.Clone(ctx, clonePath, true)
	if err != nil {
		return nil, st, fmt.Errorf("failed to clone %s: %w", base.Root(), err)
	}
	return clone, st.with(func(n *State) { n.CloneRoot = clone.Root() }), nil
}

func (o *Orchestrator) configureGddGenRun(ctx context.Context, clone caseops.Case, st State) (State, error) {
	logger := ctxlog.FromContext(ctx)

	st, err := o.appendCommon(ctx, clone, st)
	if err != nil {
		return st, err
	}
	if st, err = o.appendLines(clone, st, gddGenLines()); err != nil {
		return st, err
	}

	if err := clone.CreateNamelists(ctx, landComponent); err != nil {
		return st, fmt.Errorf("failed to create namelists: %w", err)
	}
	lndIn, err := namelist.ParseFile(filepath.Join(clone.Root(), "CaseDocs", "lnd_in"))
	if err != nil {
		return st, err
	}

	landuseIn, ok := lndIn.LookupString("flanduse_timeseries")
	if !ok || landuseIn == "" {
		logger.Info("No land use timeseries configured; using case inputs unchanged.")
		return st, nil
	}
	st = st.with(func(n *State) { n.LanduseIn = landuseIn })

	if err := clone.CheckInputData(ctx); err != nil {
		return st, fmt.Errorf("input data check failed: %w", err)
	}

	if o.opts.UseSurfaceDataset {
		fsurdat, ok := lndIn.LookupString("fsurdat")
		if !ok {
			return st, fmt.Errorf("%w: fsurdat", ErrKeyNotFound)
		}
		return o.makeSurface(ctx, clone, st, fsurdat)
	}
	return o.makeLanduse(ctx, clone, st)
}

// makeLanduse writes a land use timeseries covering exactly the simulated
// years, unless one was already made for this clone.
func (o *Orchestrator) makeLanduse(ctx context.Context, clone caseops.Case, st State) (State, error) {
	out := filepath.Join(clone.Root(), "flanduse_timeseries.nc")

	exists, err := fsutil.Exists(out)
	if err != nil {
		return st, err
	}
	if exists {
		ctxlog.FromContext(ctx).Info("Reusing land use timeseries.", "path", out)
	} else {
		first := st.StartYear
		last := first + st.Length.Years
		err := o.tools.RunTool(ctx, clone, clone.Root(), o.toolPath(st, ToolMakeLanduse),
			"--flanduse-timeseries", st.LanduseIn,
			"-y1", strconv.Itoa(first),
			"-yN", strconv.Itoa(last),
			"--outfile", out,
		)
		if err != nil {
			return st, err
		}
	}

	st = st.with(func(n *State) { n.LanduseOut = out })
	return o.appendLines(clone, st, landuseLines(out))
}

// makeSurface writes a surface dataset with constant land use in place of
// the land use timeseries.
func (o *Orchestrator) makeSurface(ctx context.Context, clone caseops.Case, st State, fsurdat string) (State, error) {
	out := filepath.Join(clone.Root(), "fsurdat.nc")

	exists, err := fsutil.Exists(out)
	if err != nil {
		return st, err
	}
	if exists {
		ctxlog.FromContext(ctx).Info("Reusing surface dataset.", "path", out)
	} else {
		err := o.tools.RunTool(ctx, clone, clone.Root(), o.toolPath(st, ToolMakeSurface),
			"--flanduse-timeseries", st.LanduseIn,
			"--fsurdat", fsurdat,
			"--outfile", out,
		)
		if err != nil {
			return st, err
		}
	}

	st = st.with(func(n *State) { n.SurfaceOut = out })
	return o.appendLines(clone, st, surfaceLines(out))
}

// runGddGenSimulation runs the clone without baseline comparison; its
// outputs only feed the derivation tool.
func (o *Orchestrator) runGddGenSimulation(ctx context.Context, clone caseops.Case, st State) (State, error) {
	if err := clone.Run(ctx, caseops.RunOptions{STArchive: true}); err != nil {
		return st, err
	}
	return st, nil
}

func (o *Orchestrator) deriveMaturityRequirements(ctx context.Context, clone caseops.Case, st State) (State, error) {
	outDir := filepath.Join(clone.Root(), gddsOutDir)
	if err := os.Mkdir(outDir, 0o755); err != nil {
		return st, fmt.Errorf("failed to create %s: %w", outDir, err)
	}

	archive, err := value(ctx, clone, "DOUT_S_ROOT")
	if err != nil {
		return st, err
	}
	err = o.tools.RunTool(ctx, clone, clone.Root(), o.toolPath(st, ToolGenerateGDDs),
		"--input-dir", filepath.Join(archive, "lnd", "hist"),
		"--first-season", strconv.Itoa(st.FirstSeason()),
		"--last-season", strconv.Itoa(st.LastSeason()),
		"--sdates-file", st.Calendars.Sowing,
		"--hdates-file", st.Calendars.Harvest,
		"--output-dir", gddsOutDir,
	)
	if err != nil {
		return st, err
	}

	gddsFile, err := findMaturityFile(outDir)
	if err != nil {
		return st, err
	}
	ctxlog.FromContext(ctx).Info("Found maturity requirements file.", "path", gddsFile)

	return st.with(func(n *State) {
		n.GddsDir = outDir
		n.GddsFile = gddsFile
	}), nil
}

// findMaturityFile returns the single gdds_*.nc file in dir, ignoring the
// fill0 variant.
func findMaturityFile(dir string) (string, error) {
	files, err := fsutil.MatchFiles(dir, gddsPattern, gddsExclude)
	if err != nil {
		return "", err
	}
	if len(files) != 1 {
		return "", fmt.Errorf("%w; found %d: %v", ErrMaturityFileCount, len(files), files)
	}
	return files[0], nil
}

func (o *Orchestrator) configurePrescribedRun(ctx context.Context, base caseops.Case, st State) (State, error) {
	st, err := o.appendCommon(ctx, base, st)
	if err != nil {
		return st, err
	}
	return o.appendLines(base, st, prescribedLines(st.GddsFile))
}

func (o *Orchestrator) runPrescribedSimulation(ctx context.Context, base caseops.Case, st State) (State, error) {
	if err := base.Run(ctx, caseops.RunOptions{Suffix: "base"}); err != nil {
		return st, err
	}
	return st, nil
}

func (o *Orchestrator) validatePrescribedRun(ctx context.Context, base caseops.Case, st State) (State, error) {
	err := o.tools.RunTool(ctx, base, base.Root(), o.toolPath(st, ToolCheckRxBoth),
		"--directory", filepath.Join(base.Root(), "run"),
		"-y1", strconv.Itoa(st.FirstSeason()),
		"-yN", strconv.Itoa(st.LastSeason()),
		"--rx-sdates-file", st.Calendars.Sowing,
		"--rx-gdds-file", st.GddsFile,
	)
	return st, err
}

func (o *Orchestrator) appendCommon(ctx context.Context, c caseops.Case, st State) (State, error) {
	mesh, err := value(ctx, c, "LND_DOMAIN_MESH")
	if err != nil {
		return st, err
	}
	return o.appendLines(c, st, commonLines(mesh, st.Calendars.Sowing))
}

func (o *Orchestrator) appendLines(c caseops.Case, st State, lines []string) (State, error) {
	if err := namelist.AppendUserNL(c.Root(), userNLComponent, lines...); err != nil {
		return st, err
	}
	return st.withNamelist(c.Root(), lines), nil
}

func (o *Orchestrator) toolPath(st State, tool string) string {
	return filepath.Join(st.CTSMRoot, "python", "ctsm", "crop_calendars", tool)
}

func value(ctx context.Context, c caseops.Case, key string) (string, error) {
	v, err := c.Value(ctx, key)
	if err != nil {
		return "", fmt.Errorf("failed to read %s from case %s: %w", key, c.Root(), err)
	}
	return v, nil
}

func parseStartYear(date string) (int, error) {
	year, _, _ := strings.Cut(strings.TrimSpace(date), "-")
	y, err := strconv.Atoi(year)
	if err != nil {
		return 0, fmt.Errorf("%w %q: %v", ErrBadStartDate, date, err)
	}
	return y, nil
}
