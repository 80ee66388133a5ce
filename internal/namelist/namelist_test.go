package namelist

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const lndIn = `&clm_inparm
 fsurdat = '/inputdata/lnd/clm2/surfdata_10x15.nc'
 flanduse_timeseries = '/inputdata/lnd/clm2/landuse.timeseries_10x15_hist.nc'
 use_crop = .true.
 hist_fincl2 = 'HUI', 'GDDACCUM'
/
&ndepdyn_nml
 stream_year_first_ndep = 2000
/
`

func TestLookupString_ExtractsQuotedValue(t *testing.T) {
	nl, err := Parse(strings.NewReader(lndIn))
	require.NoError(t, err)

	v, ok := nl.LookupString("flanduse_timeseries")
	require.True(t, ok)
	assert.Equal(t, "/inputdata/lnd/clm2/landuse.timeseries_10x15_hist.nc", v)

	v, ok = nl.LookupString("fsurdat")
	require.True(t, ok)
	assert.Equal(t, "/inputdata/lnd/clm2/surfdata_10x15.nc", v)
}

func TestLookupString_NotFound(t *testing.T) {
	nl, err := Parse(strings.NewReader("&clm_inparm\n fsurdat = 'x.nc'\n/\n"))
	require.NoError(t, err)

	v, ok := nl.LookupString("flanduse_timeseries")
	assert.False(t, ok)
	assert.Empty(t, v)
}

func TestLookupString_EmptyValue(t *testing.T) {
	for _, text := range []string{
		"&clm_inparm\n flanduse_timeseries = ''\n/\n",
		"&clm_inparm\n flanduse_timeseries = \"\"\n/\n",
	} {
		nl, err := Parse(strings.NewReader(text))
		require.NoError(t, err)

		v, ok := nl.LookupString("flanduse_timeseries")
		assert.True(t, ok, text)
		assert.Empty(t, v, text)
	}
}

func TestLookupString_SkipsUnquoted(t *testing.T) {
	nl, err := Parse(strings.NewReader(lndIn))
	require.NoError(t, err)

	_, ok := nl.LookupString("use_crop")
	assert.False(t, ok)

	e, ok := nl.Lookup("use_crop")
	require.True(t, ok)
	assert.Equal(t, ".true.", e.Raw)
	assert.Equal(t, "clm_inparm", e.Group)
}

func TestParse_GroupsAndComments(t *testing.T) {
	text := "! a comment = 'ignored'\n&ndepdyn_nml\n STREAM_YEAR_FIRST_NDEP = 2000\n/\nno assignment here\n"
	nl, err := Parse(strings.NewReader(text))
	require.NoError(t, err)

	require.Len(t, nl.Entries, 1)
	e := nl.Entries[0]
	assert.Equal(t, "ndepdyn_nml", e.Group)
	assert.Equal(t, "stream_year_first_ndep", e.Key)
	assert.Equal(t, "2000", e.Raw)
	assert.Equal(t, 3, e.Line)
}

func TestParse_FirstMatchWins(t *testing.T) {
	nl, err := Parse(strings.NewReader("x = 'first'\nx = 'second'\n"))
	require.NoError(t, err)

	v, ok := nl.LookupString("x")
	require.True(t, ok)
	assert.Equal(t, "first", v)
}

func TestAppendUserNL(t *testing.T) {
	caseRoot := t.TempDir()
	for _, name := range []string{"user_nl_clm", "user_nl_clm_0002", "user_nl_cpl"} {
		require.NoError(t, os.WriteFile(filepath.Join(caseRoot, name), []byte("! user\n"), 0o644))
	}

	err := AppendUserNL(caseRoot, "clm", "generate_crop_gdds = .true.", "use_mxmat = .false.")
	require.NoError(t, err)

	want := "! user\n\ngenerate_crop_gdds = .true.\n\nuse_mxmat = .false.\n"
	for _, name := range []string{"user_nl_clm", "user_nl_clm_0002"} {
		got, err := os.ReadFile(filepath.Join(caseRoot, name))
		require.NoError(t, err)
		assert.Equal(t, want, string(got), name)
	}

	cpl, err := os.ReadFile(filepath.Join(caseRoot, "user_nl_cpl"))
	require.NoError(t, err)
	assert.Equal(t, "! user\n", string(cpl))
}

func TestAppendUserNL_NoFiles(t *testing.T) {
	err := AppendUserNL(t.TempDir(), "clm", "x = 1")
	require.ErrorIs(t, err, ErrNoUserNamelist)
}
