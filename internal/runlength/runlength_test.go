package runlength

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/rxcropmaturity/internal/ctxlog"
)

func TestValidate_ConvertsToYears(t *testing.T) {
	testCases := []struct {
		name       string
		stopN      float64
		stopOption string
		wantYears  int
	}{
		{"years", 5, "nyears", 5},
		{"singular year", 7, "nyear", 7},
		{"months", 60, "nmonths", 5},
		{"days", 365 * 6, "ndays", 6},
		{"hours", 24 * 365 * 5, "nhours", 5},
		{"minutes", 60 * 24 * 365 * 5, "nminutes", 5},
		{"seconds", 60 * 60 * 24 * 365 * 5, "nseconds", 5},
		{"partial year truncates", 365*5 + 200, "ndays", 5},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			length, err := Validate(context.Background(), tc.stopN, tc.stopOption)
			require.NoError(t, err)
			assert.Equal(t, tc.wantYears, length.Years)
			assert.Equal(t, tc.stopOption, length.StopOption)
		})
	}
}

func TestValidate_TooShort(t *testing.T) {
	testCases := []struct {
		stopN      float64
		stopOption string
	}{
		{3, "nyears"},
		{4, "nyears"},
		{59, "nmonths"},
		{365*5 - 1, "ndays"},
	}

	for _, tc := range testCases {
		_, err := Validate(context.Background(), tc.stopN, tc.stopOption)
		require.ErrorIs(t, err, ErrTooShort, "%v %s", tc.stopN, tc.stopOption)
	}
}

func TestValidate_TooShortMessage(t *testing.T) {
	_, err := Validate(context.Background(), 3, "nyears")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least 5 years; you requested 3 years")
}

func TestValidate_UnitNotReducible(t *testing.T) {
	for _, opt := range []string{"nsteps", "date", "ifdays0", "end"} {
		_, err := Validate(context.Background(), 100, opt)
		require.ErrorIs(t, err, ErrUnit, opt)
		assert.Contains(t, err.Error(), "STOP_OPTION ("+opt+")")
	}
}

func TestValidate_LogsViolation(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	ctx := ctxlog.WithLogger(context.Background(), logger)

	_, err := Validate(ctx, 2, "nyears")
	require.Error(t, err)
	assert.Contains(t, buf.String(), "level=ERROR")
	assert.Contains(t, buf.String(), "Invalid run length.")
}

func TestLength_UsableYears(t *testing.T) {
	length, err := Validate(context.Background(), 5, "nyears")
	require.NoError(t, err)

	assert.Equal(t, 2002, length.FirstUsableYear(2000))
	assert.Equal(t, 2003, length.LastUsableYear(2000))
}

func TestParseUnit(t *testing.T) {
	assert.Equal(t, Years, ParseUnit("nyears"))
	assert.Equal(t, Years, ParseUnit("NYEARS"))
	assert.Equal(t, Months, ParseUnit("nmonth"))
	assert.Equal(t, Unit("step"), ParseUnit("nsteps"))
}
