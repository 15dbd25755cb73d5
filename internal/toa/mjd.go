// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NANOGrav Timing Working Group

package toa

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// SecondsPerDay is the length of a day in seconds.
const SecondsPerDay = 86400.0

// MJD is a modified Julian date split into an integer day and a fractional
// day so that sub-microsecond precision survives arithmetic.
// Frac is always in [0, 1).
type MJD struct {
	Day  int64
	Frac float64
}

// ParseMJD parses a decimal MJD string such as "58123.4567890123456".
func ParseMJD(s string) (MJD, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return MJD{}, fmt.Errorf("empty MJD")
	}
	intPart, fracPart, hasFrac := strings.Cut(s, ".")
	day, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return MJD{}, fmt.Errorf("invalid MJD %q: %w", s, err)
	}
	if day < 0 || strings.HasPrefix(intPart, "-") {
		return MJD{}, fmt.Errorf("invalid MJD %q: negative", s)
	}
	var frac float64
	if hasFrac && fracPart != "" {
		if strings.TrimLeft(fracPart, "0123456789") != "" {
			return MJD{}, fmt.Errorf("invalid MJD %q: bad fractional part", s)
		}
		frac, err = strconv.ParseFloat("0."+fracPart, 64)
		if err != nil {
			return MJD{}, fmt.Errorf("invalid MJD %q: %w", s, err)
		}
	}
	return MJD{Day: day, Frac: frac}, nil
}

// NewMJD builds a normalised MJD from a float value. Precision is limited
// to that of a float64; use ParseMJD for tim file values.
func NewMJD(v float64) MJD {
	day := math.Floor(v)
	return MJD{Day: int64(day), Frac: v - day}
}

// Float returns the MJD as a single float64 (days).
func (m MJD) Float() float64 {
	return float64(m.Day) + m.Frac
}

// Int returns the integer day.
func (m MJD) Int() int64 {
	return m.Day
}

// Sub returns m - o in seconds.
func (m MJD) Sub(o MJD) float64 {
	return float64(m.Day-o.Day)*SecondsPerDay + (m.Frac-o.Frac)*SecondsPerDay
}

// Add returns m shifted by sec seconds.
func (m MJD) Add(sec float64) MJD {
	frac := m.Frac + sec/SecondsPerDay
	shift := math.Floor(frac)
	return MJD{Day: m.Day + int64(shift), Frac: frac - shift}
}

// Before reports whether m is earlier than o.
func (m MJD) Before(o MJD) bool {
	if m.Day != o.Day {
		return m.Day < o.Day
	}
	return m.Frac < o.Frac
}

// String formats the MJD with the shortest fractional part that parses
// back to the same value.
func (m MJD) String() string {
	day, frac := m.Day, m.Frac
	if frac >= 1 {
		whole := math.Floor(frac)
		day += int64(whole)
		frac -= whole
	}
	s := strconv.FormatFloat(frac, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return strconv.FormatInt(day, 10) + strings.TrimPrefix(s, "0")
}
