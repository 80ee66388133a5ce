package cropcal

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTable_FixedPairs(t *testing.T) {
	table := DefaultTable()

	assert.Equal(t, []string{"1.9x2.5", "10x15"}, table.Resolutions())

	files, err := table.Lookup("10x15")
	require.NoError(t, err)
	want := Files{
		Sowing:  "/glade/work/samrabin/crop_dates_blessed/sdates_ggcmi_crop_calendar_phase3_v1.01_nninterp-f10_f10_mg37.2000-2000.20230330_165301.fill1.nc",
		Harvest: "/glade/work/samrabin/crop_dates_blessed/hdates_ggcmi_crop_calendar_phase3_v1.01_nninterp-f10_f10_mg37.2000-2000.20230330_165301.fill1.nc",
	}
	if diff := cmp.Diff(want, files); diff != "" {
		t.Errorf("10x15 files mismatch (-want +got):\n%s", diff)
	}

	files, err = table.Lookup("1.9x2.5")
	require.NoError(t, err)
	assert.Contains(t, files.Sowing, "sdates_ggcmi_crop_calendar_phase3_v1.01_nninterp-f19_g17")
	assert.Contains(t, files.Harvest, "hdates_ggcmi_crop_calendar_phase3_v1.01_nninterp-f19_g17")
}

func TestResolve_UnsupportedResolution(t *testing.T) {
	// A table pointing at paths that do not exist proves no file is consulted
	// before the resolution is rejected.
	table := Table{"10x15": {Sowing: "/nonexistent/s.nc", Harvest: "/nonexistent/h.nc"}}

	_, err := table.Resolve("f09_g17")
	require.ErrorIs(t, err, ErrUnsupportedResolution)
	assert.NotErrorIs(t, err, ErrFileNotFound)
}

func TestResolve_ChecksBothFiles(t *testing.T) {
	dir := t.TempDir()
	sowing := filepath.Join(dir, "sdates.nc")
	harvest := filepath.Join(dir, "hdates.nc")
	table := Table{"10x15": {Sowing: sowing, Harvest: harvest}}

	_, err := table.Resolve("10x15")
	require.ErrorIs(t, err, ErrFileNotFound)
	assert.Contains(t, err.Error(), "sowing date")

	require.NoError(t, os.WriteFile(sowing, nil, 0o644))
	_, err = table.Resolve("10x15")
	require.ErrorIs(t, err, ErrFileNotFound)
	assert.Contains(t, err.Error(), "harvest date")

	require.NoError(t, os.WriteFile(harvest, nil, 0o644))
	files, err := table.Resolve("10x15")
	require.NoError(t, err)
	assert.Equal(t, Files{Sowing: sowing, Harvest: harvest}, files)
}
