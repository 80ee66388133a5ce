package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/vk/rxcropmaturity/internal/cropcal"
	"github.com/vk/rxcropmaturity/internal/summary"
	"github.com/vk/rxcropmaturity/internal/workflow"
)

// Run executes the whole test against the configured case. When a summary
// path is configured the summary is written on success and on failure,
// including configuration errors found before the first stage.
func (a *App) Run(ctx context.Context) (workflow.State, error) {
	ctx = a.context(ctx)
	a.logger.Debug("App.Run method started.")

	o, err := a.newOrchestrator(ctx)
	if err != nil {
		a.logger.Error("Test configuration is invalid.", "error", err)
		st := workflow.State{RunID: a.runID}
		if root, rootErr := a.caseRoot(); rootErr == nil {
			st.BaseRoot = root
		}
		return st, a.writeSummary(st, err)
	}

	st, runErr := o.Run(ctx)
	if runErr != nil {
		a.logger.Error("Test failed.", "error", runErr)
	} else {
		a.logger.Info("Test passed.", "gdds_file", st.GddsFile)
	}
	return st, a.writeSummary(st, runErr)
}

// writeSummary writes the summary when a path is configured and returns
// runErr joined with any write failure.
func (a *App) writeSummary(st workflow.State, runErr error) error {
	if a.cfg.SummaryPath == "" {
		return runErr
	}
	if err := summary.Write(a.cfg.SummaryPath, summary.FromState(st, runErr)); err != nil {
		return errors.Join(runErr, err)
	}
	a.logger.Info("Summary written.", "path", a.cfg.SummaryPath)
	return runErr
}

// Validate checks the run length and calendar files of the configured case
// without starting any external process.
func (a *App) Validate(ctx context.Context) (workflow.State, error) {
	ctx = a.context(ctx)

	o, err := a.newOrchestrator(ctx)
	if err != nil {
		return workflow.State{}, err
	}
	st := o.Initial()
	a.logger.Info("Configuration is valid.",
		"case", st.BaseRoot,
		"years", st.Length.Years,
		"first_season", st.FirstSeason(),
		"last_season", st.LastSeason(),
	)
	return st, nil
}

// Calendars returns the calendar table in effect.
func (a *App) Calendars() cropcal.Table {
	return a.calendarTable()
}

// ResolveCalendar resolves one resolution. With checkFiles the files must
// exist.
func (a *App) ResolveCalendar(resolution string, checkFiles bool) (cropcal.Files, error) {
	t := a.calendarTable()
	if checkFiles {
		return t.Resolve(resolution)
	}
	files, err := t.Lookup(resolution)
	if err != nil {
		return cropcal.Files{}, fmt.Errorf("failed to look up calendars: %w", err)
	}
	return files, nil
}
