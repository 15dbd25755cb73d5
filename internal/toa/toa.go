// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NANOGrav Timing Working Group

// Package toa holds pulse times of arrival (TOAs), their tim-file
// representation, and the selection/cut bookkeeping used by the analysis
// stages.
package toa

// Well-known flag names.
const (
	FlagCut      = "cut"
	FlagReceiver = "f"
)

// TOA is a single time of arrival.
type TOA struct {
	// Name is the first tim column, normally the archive file the TOA was
	// measured from. All TOAs sharing a name form one epoch.
	Name string
	// Freq is the observing frequency in MHz.
	Freq float64
	MJD  MJD
	// Error is the TOA uncertainty in microseconds.
	Error float64
	Site  string
	Flags Flags
}

// Receiver returns the -f flag (frontend/backend combination).
func (t *TOA) Receiver() string {
	v, _ := t.Flags.Get(FlagReceiver)
	return v
}

// CutReason returns the -cut flag and whether the TOA is cut.
func (t *TOA) CutReason() (string, bool) {
	return t.Flags.Get(FlagCut)
}

// Clone returns a deep copy of the TOA.
func (t TOA) Clone() TOA {
	t.Flags = t.Flags.Clone()
	return t
}
