// Package summary records the outcome of a workflow run as YAML.
package summary

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/vk/rxcropmaturity/internal/cropcal"
	"github.com/vk/rxcropmaturity/internal/workflow"
	"gopkg.in/yaml.v3"
)

const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Summary is the serialized form of a final workflow State.
type Summary struct {
	RunID  string `yaml:"run_id"`
	Status string `yaml:"status"`
	Error  string `yaml:"error,omitempty"`
	// FailedStage is set when the error came from a stage.
	FailedStage string `yaml:"failed_stage,omitempty"`

	Case        string        `yaml:"case"`
	Clone       string        `yaml:"clone,omitempty"`
	Years       int           `yaml:"years"`
	StartYear   int           `yaml:"start_year"`
	FirstSeason int           `yaml:"first_season"`
	LastSeason  int           `yaml:"last_season"`
	Calendars   cropcal.Files `yaml:"calendars"`

	LanduseIn  string `yaml:"landuse_in,omitempty"`
	LanduseOut string `yaml:"landuse_out,omitempty"`
	SurfaceOut string `yaml:"surface_out,omitempty"`
	GddsFile   string `yaml:"gdds_file,omitempty"`

	Completed []string          `yaml:"completed"`
	Namelists []NamelistAppends `yaml:"namelists,omitempty"`
}

// NamelistAppends lists the lines appended to one case's user_nl files.
type NamelistAppends struct {
	Case  string   `yaml:"case"`
	Lines []string `yaml:"lines"`
}

// FromState builds a Summary. runErr is the error returned by the workflow,
// if any.
func FromState(st workflow.State, runErr error) Summary {
	s := Summary{
		RunID:      st.RunID,
		Status:     StatusSucceeded,
		Case:       st.BaseRoot,
		Clone:      st.CloneRoot,
		Years:      st.Length.Years,
		StartYear:  st.StartYear,
		Calendars:  st.Calendars,
		LanduseIn:  st.LanduseIn,
		LanduseOut: st.LanduseOut,
		SurfaceOut: st.SurfaceOut,
		GddsFile:   st.GddsFile,
		Completed:  make([]string, 0, len(st.Completed)),
	}
	if st.Length.Years > 0 {
		s.FirstSeason = st.FirstSeason()
		s.LastSeason = st.LastSeason()
	}
	for _, stage := range st.Completed {
		s.Completed = append(s.Completed, stage.String())
	}

	roots := make([]string, 0, len(st.NamelistLog))
	for root := range st.NamelistLog {
		roots = append(roots, root)
	}
	sort.Strings(roots)
	for _, root := range roots {
		s.Namelists = append(s.Namelists, NamelistAppends{Case: root, Lines: st.NamelistLog[root]})
	}

	if runErr != nil {
		s.Status = StatusFailed
		s.Error = runErr.Error()
		var stageErr *workflow.StageError
		if errors.As(runErr, &stageErr) {
			s.FailedStage = stageErr.Stage.String()
		}
	}
	return s
}

// Encode writes s to w as YAML.
func Encode(w io.Writer, s Summary) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("failed to encode summary: %w", err)
	}
	return enc.Close()
}

// Write encodes s to path, creating parent directories as needed.
func Write(path string, s Summary) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create summary directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create summary file: %w", err)
	}
	if err := Encode(f, s); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Read decodes a summary written by Write.
func Read(path string) (Summary, error) {
	var s Summary
	data, err := os.ReadFile(path)
	if err != nil {
		return s, err
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("failed to decode summary %s: %w", path, err)
	}
	return s, nil
}
