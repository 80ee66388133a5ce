package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/rxcropmaturity/internal/cropcal"
	"github.com/vk/rxcropmaturity/internal/hcl"
	"github.com/vk/rxcropmaturity/internal/runlength"
	"github.com/vk/rxcropmaturity/internal/subproc"
	"github.com/vk/rxcropmaturity/internal/summary"
	"github.com/vk/rxcropmaturity/internal/workflow"
)

const testEnvXML = `<?xml version="1.0"?>
<file id="env_run.xml" version="2.0">
  <group id="run">
    <entry id="STOP_N" value="5"/>
    <entry id="STOP_OPTION" value="nyears"/>
    <entry id="RUN_STARTDATE" value="2000-01-01"/>
    <entry id="LND_GRID" value="10x15"/>
    <entry id="COMP_ROOT_DIR_LND" value="/ctsm"/>
    <entry id="LND_DOMAIN_MESH" value="/inputdata/mesh.nc"/>
    <entry id="DOUT_S_ROOT" value="$CASEROOT/archive"/>
    <entry id="RUNDIR" value="$CASEROOT/run"/>
    <entry id="CIMEROOT" value="/cime"/>
  </group>
</file>
`

func writeCaseDir(t *testing.T, root string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(root, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "env_run.xml"), []byte(testEnvXML), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "user_nl_clm"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".env_mach_specific.sh"), nil, 0o644))
}

// scriptedExecutor stands in for the CIME scripts and analysis tools.
type scriptedExecutor struct {
	t        *testing.T
	mu       sync.Mutex
	lines    []string
	failTool string
}

func (e *scriptedExecutor) Execute(_ context.Context, cmd subproc.Command) (*subproc.Result, error) {
	e.mu.Lock()
	e.lines = append(e.lines, cmd.Line)
	e.mu.Unlock()

	fields := strings.Fields(cmd.Line)
	switch {
	case strings.HasPrefix(cmd.Line, "/cime/scripts/create_clone"):
		writeCaseDir(e.t, fields[2])
	case strings.HasPrefix(cmd.Line, "./preview_namelists"):
		docs := filepath.Join(cmd.Dir, "CaseDocs")
		require.NoError(e.t, os.MkdirAll(docs, 0o755))
		require.NoError(e.t, os.WriteFile(filepath.Join(docs, "lnd_in"), []byte("&clm_inparm\n flanduse_timeseries = ''\n/\n"), 0o644))
	case strings.HasPrefix(cmd.Line, "./case.submit"):
		run := filepath.Join(cmd.Dir, "run")
		require.NoError(e.t, os.MkdirAll(run, 0o755))
		require.NoError(e.t, os.WriteFile(filepath.Join(run, "rx.clm2.h0.2002-01-01-00000.nc"), nil, 0o644))
	case e.failTool != "" && strings.Contains(cmd.Line, e.failTool):
		return &subproc.Result{ExitCode: 1, Combined: "Traceback: boom"}, nil
	case strings.Contains(cmd.Line, workflow.ToolGenerateGDDs):
		out := filepath.Join(cmd.Dir, "generate_gdds_out")
		require.NoError(e.t, os.WriteFile(filepath.Join(out, "gdds_20240101.nc"), nil, 0o644))
		require.NoError(e.t, os.WriteFile(filepath.Join(out, "gdds_20240101.fill0.nc"), nil, 0o644))
	}
	return &subproc.Result{}, nil
}

func (e *scriptedExecutor) contains(substr string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, l := range e.lines {
		if strings.Contains(l, substr) {
			return true
		}
	}
	return false
}

type appFixture struct {
	dir     string
	root    string
	config  string
	sowing  string
	harvest string
}

func newAppFixture(t *testing.T, extraCaseAttrs string) *appFixture {
	t.Helper()
	dir := t.TempDir()
	f := &appFixture{
		dir:     dir,
		root:    filepath.Join(dir, "RXCROPMATURITY"),
		sowing:  filepath.Join(dir, "sdates.nc"),
		harvest: filepath.Join(dir, "hdates.nc"),
		config:  filepath.Join(dir, "test.hcl"),
	}
	writeCaseDir(t, f.root)
	require.NoError(t, os.WriteFile(f.sowing, nil, 0o644))
	require.NoError(t, os.WriteFile(f.harvest, nil, 0o644))

	hclText := `
case {
  root = "RXCROPMATURITY"
` + extraCaseAttrs + `
}

calendar "10x15" {
  sowing_file  = "` + f.sowing + `"
  harvest_file = "` + f.harvest + `"
}
`
	require.NoError(t, os.WriteFile(f.config, []byte(hclText), 0o644))
	return f
}

func (f *appFixture) appConfig() *Config {
	return &Config{
		ConfigPaths: []string{f.config},
		WorkDir:     f.dir,
		SummaryPath: filepath.Join(f.dir, "summary.yaml"),
	}
}

func TestApp_RunEndToEnd(t *testing.T) {
	// Arrange
	f := newAppFixture(t, "")
	exec := &scriptedExecutor{t: t}
	a, logs := SetupAppTest(t, f.appConfig(), hcl.NewLoader(), WithExecutor(exec), WithRunID("run-42"))

	// Act
	st, err := a.Run(context.Background())

	// Assert
	require.NoError(t, err)
	assert.Equal(t, workflow.Stages(), st.Completed)
	assert.Equal(t, filepath.Join(f.root+".gddgen", "generate_gdds_out", "gdds_20240101.nc"), st.GddsFile)
	assert.True(t, exec.contains("/cime/scripts/create_clone --case "+f.root+".gddgen --clone "+f.root+" --keepexe"))
	assert.True(t, exec.contains("conda run -n ctsm_pylib python3 /ctsm/python/ctsm/crop_calendars/check_rxboth_run.py"))
	assert.Contains(t, logs.String(), "run_id=run-42")

	s, err := summary.Read(filepath.Join(f.dir, "summary.yaml"))
	require.NoError(t, err)
	assert.Equal(t, summary.StatusSucceeded, s.Status)
	assert.Equal(t, "run-42", s.RunID)
	assert.Len(t, s.Completed, len(workflow.Stages()))

	_, err = os.Stat(filepath.Join(f.root, "run", "rx.clm2.h0.2002-01-01-00000.nc.base"))
	require.NoError(t, err)

	userNL, err := os.ReadFile(filepath.Join(f.root, "user_nl_clm"))
	require.NoError(t, err)
	assert.Contains(t, string(userNL), "\nstream_fldFileName_cultivar_gdds = '"+st.GddsFile+"'\n")
}

func TestApp_RunToolFailureWritesSummary(t *testing.T) {
	// Arrange
	f := newAppFixture(t, "")
	exec := &scriptedExecutor{t: t, failTool: workflow.ToolCheckRxBoth}
	diag := &SafeBuffer{}
	a, _ := SetupAppTest(t, f.appConfig(), hcl.NewLoader(), WithExecutor(exec), WithDiagnostics(diag))

	// Act
	_, err := a.Run(context.Background())

	// Assert
	var toolErr *subproc.ToolError
	require.True(t, errors.As(err, &toolErr))
	assert.Equal(t, workflow.ToolCheckRxBoth, toolErr.Tool)
	assert.Contains(t, diag.String(), "ERROR while getting the conda environment")
	assert.Contains(t, diag.String(), "Traceback: boom")

	s, err := summary.Read(filepath.Join(f.dir, "summary.yaml"))
	require.NoError(t, err)
	assert.Equal(t, summary.StatusFailed, s.Status)
	assert.Equal(t, "ValidatePrescribedRun", s.FailedStage)
}

func TestApp_ValidateStartsNoProcess(t *testing.T) {
	// Arrange
	f := newAppFixture(t, "")
	exec := &scriptedExecutor{t: t}
	a, _ := SetupAppTest(t, f.appConfig(), hcl.NewLoader(), WithExecutor(exec))

	// Act
	st, err := a.Validate(context.Background())

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 5, st.Length.Years)
	assert.Equal(t, f.sowing, st.Calendars.Sowing)
	assert.Empty(t, exec.lines)
}

func TestApp_ValidateTooShortFromOverride(t *testing.T) {
	f := newAppFixture(t, "  values = { STOP_N = 36, STOP_OPTION = \"nmonths\" }")
	exec := &scriptedExecutor{t: t}
	a, logs := SetupAppTest(t, f.appConfig(), hcl.NewLoader(), WithExecutor(exec))

	_, err := a.Validate(context.Background())

	require.ErrorIs(t, err, runlength.ErrTooShort)
	assert.Contains(t, logs.String(), "you requested 36 months")
	assert.Empty(t, exec.lines)
}

func TestApp_RunConfigurationErrorWritesSummary(t *testing.T) {
	// Arrange
	f := newAppFixture(t, "  values = { STOP_N = 36, STOP_OPTION = \"nmonths\" }")
	exec := &scriptedExecutor{t: t}
	a, _ := SetupAppTest(t, f.appConfig(), hcl.NewLoader(), WithExecutor(exec), WithRunID("run-7"))

	// Act
	_, err := a.Run(context.Background())

	// Assert
	require.ErrorIs(t, err, runlength.ErrTooShort)
	assert.Empty(t, exec.lines)
	s, err := summary.Read(filepath.Join(f.dir, "summary.yaml"))
	require.NoError(t, err)
	assert.Equal(t, summary.StatusFailed, s.Status)
	assert.Equal(t, "run-7", s.RunID)
	assert.Equal(t, f.root, s.Case)
	assert.Empty(t, s.FailedStage)
	assert.Contains(t, s.Error, "36 months")
}

func TestApp_NoCaseConfigured(t *testing.T) {
	a, _ := SetupAppTest(t, &Config{}, hcl.NewLoader(), WithExecutor(&scriptedExecutor{t: t}))

	_, err := a.Validate(context.Background())

	require.ErrorIs(t, err, ErrNoCase)
}

func TestApp_Calendars(t *testing.T) {
	t.Run("built-in table without config", func(t *testing.T) {
		a, _ := SetupAppTest(t, &Config{}, hcl.NewLoader())

		files, err := a.ResolveCalendar("1.9x2.5", false)

		require.NoError(t, err)
		assert.Equal(t, cropcal.DefaultTable()["1.9x2.5"], files)
		assert.Equal(t, []string{"1.9x2.5", "10x15"}, a.Calendars().Resolutions())
	})

	t.Run("configured table replaces built-in", func(t *testing.T) {
		f := newAppFixture(t, "")
		a, _ := SetupAppTest(t, f.appConfig(), hcl.NewLoader())

		files, err := a.ResolveCalendar("10x15", true)
		require.NoError(t, err)
		assert.Equal(t, f.sowing, files.Sowing)

		_, err = a.ResolveCalendar("1.9x2.5", false)
		require.ErrorIs(t, err, cropcal.ErrUnsupportedResolution)
	})
}

func TestNewApp_LoadError(t *testing.T) {
	_, err := NewApp(&SafeBuffer{}, &Config{
		ConfigPaths: []string{filepath.Join(t.TempDir(), "missing.hcl")},
		LogLevel:    "info",
		LogFormat:   "text",
	}, hcl.NewLoader())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load configuration")
}

func TestNewConfig_Validation(t *testing.T) {
	_, err := NewConfig(Config{LogFormat: "yaml", LogLevel: "info"})
	require.Error(t, err)

	_, err = NewConfig(Config{LogFormat: "json", LogLevel: "trace"})
	require.Error(t, err)

	cfg, err := NewConfig(Config{LogFormat: "json", LogLevel: "debug", ConfigPaths: []string{"a.hcl"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.hcl"}, cfg.ConfigPaths)
}
