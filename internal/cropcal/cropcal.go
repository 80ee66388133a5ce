// Package cropcal resolves a land grid resolution to the prescribed sowing
// and harvest date files used by both runs of the test.
package cropcal

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// BlessedDir is where the default calendar files live.
const BlessedDir = "/glade/work/samrabin/crop_dates_blessed"

var (
	// ErrUnsupportedResolution is returned for a grid missing from the table.
	ErrUnsupportedResolution = errors.New("unsupported resolution")
	// ErrFileNotFound is returned when a resolved calendar file is missing.
	ErrFileNotFound = errors.New("calendar file not found")
)

// Files is the sowing/harvest date file pair for one resolution.
type Files struct {
	Sowing  string `yaml:"sowing"`
	Harvest string `yaml:"harvest"`
}

// Table maps a land grid identifier (LND_GRID) to its calendar files.
type Table map[string]Files

// DefaultTable returns the built-in table. Only 10x15 and 1.9x2.5 are
// supported.
func DefaultTable() Table {
	return Table{
		"10x15": {
			Sowing:  filepath.Join(BlessedDir, "sdates_ggcmi_crop_calendar_phase3_v1.01_nninterp-f10_f10_mg37.2000-2000.20230330_165301.fill1.nc"),
			Harvest: filepath.Join(BlessedDir, "hdates_ggcmi_crop_calendar_phase3_v1.01_nninterp-f10_f10_mg37.2000-2000.20230330_165301.fill1.nc"),
		},
		"1.9x2.5": {
			Sowing:  filepath.Join(BlessedDir, "sdates_ggcmi_crop_calendar_phase3_v1.01_nninterp-f19_g17.2000-2000.20230102_175625.fill1.nc"),
			Harvest: filepath.Join(BlessedDir, "hdates_ggcmi_crop_calendar_phase3_v1.01_nninterp-f19_g17.2000-2000.20230102_175625.fill1.nc"),
		},
	}
}

// Resolutions lists the supported grids in sorted order.
func (t Table) Resolutions() []string {
	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Lookup returns the file pair for a resolution without touching the
// filesystem.
func (t Table) Lookup(resolution string) (Files, error) {
	files, ok := t[resolution]
	if !ok {
		return Files{}, fmt.Errorf("%w: %q (supported: %v)", ErrUnsupportedResolution, resolution, t.Resolutions())
	}
	return files, nil
}

// Resolve looks up the file pair and checks that both files exist.
func (t Table) Resolve(resolution string) (Files, error) {
	files, err := t.Lookup(resolution)
	if err != nil {
		return Files{}, err
	}
	if err := mustExist("sowing date", files.Sowing); err != nil {
		return Files{}, err
	}
	if err := mustExist("harvest date", files.Harvest); err != nil {
		return Files{}, err
	}
	return files, nil
}

func mustExist(kind, path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s file %s", ErrFileNotFound, kind, path)
		}
		return fmt.Errorf("failed to stat %s file %s: %w", kind, path, err)
	}
	return nil
}
