// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NANOGrav Timing Working Group

// Package dmx maintains the piecewise-constant DM (DMX) ranges of a timing
// model so that every selected TOA lies in exactly one range.
package dmx

import (
	"errors"
	"fmt"
	"sort"

	"github.com/nanograv/pint-pal/internal/log"
	"github.com/nanograv/pint-pal/internal/timing"
	"github.com/nanograv/pint-pal/internal/toa"
)

// CutReason is the -cut value for TOAs in bins without enough frequency
// coverage.
const CutReason = "dmx"

// Pad is added on both sides of a new range, in days.
const Pad = 0.01

// ErrInvalidBinWidth indicates a non-positive maximum bin width.
var ErrInvalidBinWidth = errors.New("DMX bin width must be positive")

// Bin is a group of TOAs sharing one DMX range.
type Bin struct {
	// Indices are original-table indices.
	Indices []int
	MinMJD  float64
	MaxMJD  float64
	MinFreq float64
	MaxFreq float64
}

// Ratio returns the frequency coverage ratio of the bin.
func (b Bin) Ratio() float64 {
	if b.MinFreq <= 0 {
		return 0
	}
	return b.MaxFreq / b.MinFreq
}

// Summary reports what Setup changed.
type Summary struct {
	Bins    int
	CutTOAs int
	Kept    int
	Added   int
	Removed int
}

// Bins groups the selected TOAs in MJD order. A bin starts at its earliest
// TOA and holds every following TOA within maxDeltaT days.
func Bins(toas *toa.Table, maxDeltaT float64) ([]Bin, error) {
	if maxDeltaT <= 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBinWidth, maxDeltaT)
	}

	order := make([]int, toas.Len())
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return toas.At(order[a]).MJD.Before(toas.At(order[b]).MJD)
	})

	var bins []Bin
	for _, i := range order {
		t := toas.At(i)
		mjd := t.MJD.Float()
		if len(bins) == 0 || mjd-bins[len(bins)-1].MinMJD > maxDeltaT {
			bins = append(bins, Bin{MinMJD: mjd, MaxMJD: mjd, MinFreq: t.Freq, MaxFreq: t.Freq})
		}
		b := &bins[len(bins)-1]
		b.Indices = append(b.Indices, toas.Index(i))
		b.MaxMJD = mjd
		if t.Freq < b.MinFreq {
			b.MinFreq = t.Freq
		}
		if t.Freq > b.MaxFreq {
			b.MaxFreq = t.Freq
		}
	}
	return bins, nil
}

// Setup re-derives the DMX ranges of model from the selected TOAs.
//
// Bins whose frequency ratio is below fratio are cut with -cut dmx and the
// cut selection is re-applied. Existing ranges that fully contain a bin
// and split no other bin are kept with their values; bins without one get
// a new zero-valued free range that stops at the edges of kept ranges;
// ranges left without TOAs are removed. Ranges are renumbered from
// 0001 in MJD order and DM is frozen when any DMX range remains.
func Setup(model *timing.Model, toas *toa.Table, fratio, maxDeltaT float64) (Summary, error) {
	logger := log.WithComponent("dmx")
	if toas.Len() == 0 {
		return Summary{}, timing.ErrNoTOAs
	}

	bins, err := Bins(toas, maxDeltaT)
	if err != nil {
		return Summary{}, err
	}

	var sum Summary
	good := bins[:0:0]
	for _, b := range bins {
		if fratio > 0 && b.Ratio() < fratio {
			sum.CutTOAs += toas.ApplyCutFlag(b.Indices, CutReason)
			logger.Debug().
				Float64("mjd", b.MinMJD).
				Float64("ratio", b.Ratio()).
				Msg("insufficient frequency coverage")
			continue
		}
		good = append(good, b)
	}
	if sum.CutTOAs > 0 {
		toas.ApplyCutSelect("dmx frequency ratio")
	}
	sum.Bins = len(good)

	owner := make([]int, len(good))
	used := make(map[int]bool)
	var ranges []timing.DMXRange
	for i, b := range good {
		owner[i] = containing(model.DMX, good, b)
		if j := owner[i]; j >= 0 && !used[j] {
			used[j] = true
			ranges = append(ranges, model.DMX[j])
			sum.Kept++
		}
	}
	kept := ranges

	bounds := rangeBounds(good)
	for i, b := range good {
		if owner[i] >= 0 {
			continue
		}
		lo, hi := clip(bounds[i][0], bounds[i][1], b, kept)
		ranges = append(ranges, timing.DMXRange{
			Value: timing.Param{Free: true},
			R1:    lo,
			R2:    hi,
			Epoch: (b.MinMJD + b.MaxMJD) / 2,
			F1:    b.MinFreq,
			F2:    b.MaxFreq,
		})
		sum.Added++
	}
	sum.Removed = len(model.DMX) - sum.Kept

	model.DMX = ranges
	model.RenumberDMX()
	if len(model.DMX) > 0 && model.DM.Free {
		model.DM.Free = false
		logger.Info().Msg("froze DM: DMX ranges cover the data")
	}

	logger.Info().
		Int("bins", sum.Bins).
		Int("kept", sum.Kept).
		Int("added", sum.Added).
		Int("removed", sum.Removed).
		Int("cut", sum.CutTOAs).
		Msg("DMX setup complete")
	return sum, nil
}

// rangeBounds pads each bin by Pad, clipping at the midpoint between
// neighbouring bins so ranges never overlap.
func rangeBounds(bins []Bin) [][2]float64 {
	out := make([][2]float64, len(bins))
	for i, b := range bins {
		lo, hi := b.MinMJD-Pad, b.MaxMJD+Pad
		if i > 0 {
			if mid := (bins[i-1].MaxMJD + b.MinMJD) / 2; lo < mid {
				lo = mid
			}
		}
		if i < len(bins)-1 {
			if mid := (b.MaxMJD + bins[i+1].MinMJD) / 2; hi > mid {
				hi = mid
			}
		}
		out[i] = [2]float64{lo, hi}
	}
	return out
}

// containing returns the existing range that holds every TOA of b, or -1.
// A range that covers only part of some other bin is never reused, since
// the new range for that bin would overlap it.
func containing(ranges []timing.DMXRange, bins []Bin, b Bin) int {
	for j, r := range ranges {
		if !r.Contains(b.MinMJD) || !r.Contains(b.MaxMJD) {
			continue
		}
		if !splits(r, bins) {
			return j
		}
	}
	return -1
}

func splits(r timing.DMXRange, bins []Bin) bool {
	for _, b := range bins {
		overlaps := b.MinMJD <= r.R2 && b.MaxMJD >= r.R1
		if overlaps && !(r.Contains(b.MinMJD) && r.Contains(b.MaxMJD)) {
			return true
		}
	}
	return false
}

// clip narrows the bounds of a new range for b so it does not reach into
// any kept range. Kept ranges never hold TOAs of b.
func clip(lo, hi float64, b Bin, kept []timing.DMXRange) (float64, float64) {
	for _, r := range kept {
		if r.R2 < b.MinMJD && lo < r.R2 {
			lo = r.R2
		}
		if r.R1 > b.MaxMJD && hi > r.R1 {
			hi = r.R1
		}
	}
	return lo, hi
}
