// Package runlength normalizes a case's STOP_N/STOP_OPTION pair into whole
// simulated years and enforces the minimum length needed for GDD generation.
package runlength

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/vk/rxcropmaturity/internal/ctxlog"
)

// MinYears is the shortest run that yields more than one usable growing
// season once the first and last simulated years are trimmed.
const MinYears = 5

var (
	// ErrUnit is returned when the stop option cannot be reduced to years.
	ErrUnit = errors.New("unsupported stop option")
	// ErrTooShort is returned when the run covers fewer than MinYears years.
	ErrTooShort = errors.New("run too short")
)

// Unit is a normalized stop-option unit.
type Unit string

const (
	Seconds Unit = "second"
	Minutes Unit = "minute"
	Hours   Unit = "hour"
	Days    Unit = "day"
	Months  Unit = "month"
	Years   Unit = "year"
)

// ParseUnit maps a CIME STOP_OPTION value (e.g. "nyears", "ndays") to a Unit.
// Unknown options such as "nsteps" or "date" are returned as-is so that the
// caller can report them.
func ParseUnit(option string) Unit {
	u := strings.ToLower(strings.TrimSpace(option))
	u = strings.TrimPrefix(u, "n")
	u = strings.TrimSuffix(u, "s")
	return Unit(u)
}

// Length is an immutable run length normalized to whole years.
type Length struct {
	Years int

	// StopN and StopOption are the values the length was computed from.
	StopN      float64
	StopOption string
}

// Normalize converts stopN expressed in stopOption units to years. Seconds,
// minutes and hours cascade down the 60/60/24/365 chain; months divide by 12
// directly.
func Normalize(stopN float64, stopOption string) (float64, Unit) {
	n := stopN
	unit := ParseUnit(stopOption)
	if unit == Seconds {
		n /= 60
		unit = Minutes
	}
	if unit == Minutes {
		n /= 60
		unit = Hours
	}
	if unit == Hours {
		n /= 24
		unit = Days
	}
	if unit == Days {
		n /= 365
		unit = Years
	}
	if unit == Months {
		n /= 12
		unit = Years
	}
	return n, unit
}

// Validate normalizes the run length and rejects anything that is not
// reducible to years or is shorter than MinYears. Violations are logged
// before the error is returned.
func Validate(ctx context.Context, stopN float64, stopOption string) (Length, error) {
	logger := ctxlog.FromContext(ctx)

	years, unit := Normalize(stopN, stopOption)

	var err error
	switch {
	case unit != Years:
		err = fmt.Errorf("%w: STOP_OPTION (%s) must be nsecond(s), nminute(s), nhour(s), nday(s), nmonth(s), or nyear(s)",
			ErrUnit, stopOption)
	case years < MinYears:
		err = fmt.Errorf("%w: RXCROPMATURITY must be run for at least %d years; you requested %s %s",
			ErrTooShort, MinYears, formatCount(stopN), strings.TrimPrefix(stopOption, "n"))
	}
	if err != nil {
		logger.Error("Invalid run length.", "stop_n", stopN, "stop_option", stopOption, "error", err)
		return Length{}, err
	}

	length := Length{
		Years:      int(years),
		StopN:      stopN,
		StopOption: stopOption,
	}
	logger.Debug("Run length validated.", "years", length.Years)
	return length, nil
}

// FirstUsableYear is the first season year considered reliable for season
// boundary detection.
func (l Length) FirstUsableYear(startYear int) int {
	return startYear + 2
}

// LastUsableYear is the last season year considered reliable for season
// boundary detection.
func (l Length) LastUsableYear(startYear int) int {
	return startYear + l.Years - 2
}

func formatCount(n float64) string {
	if n == float64(int64(n)) {
		return fmt.Sprintf("%d", int64(n))
	}
	return fmt.Sprintf("%g", n)
}
