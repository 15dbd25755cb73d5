// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NANOGrav Timing Working Group

package toa

import (
	"fmt"
	"sort"

	"github.com/nanograv/pint-pal/internal/log"
)

// Table is the full set of TOAs read for a pulsar plus the currently
// selected subset. Cut TOAs stay in the original table with a -cut flag;
// the selection is what fitters and samplers see.
type Table struct {
	orig  []TOA
	sel   []int
	stack [][]int
}

// NewTable creates a table over toas with every TOA selected.
func NewTable(toas []TOA) *Table {
	t := &Table{orig: toas}
	t.sel = allIndices(len(toas))
	return t
}

func allIndices(n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return idx
}

// Len returns the number of selected TOAs.
func (t *Table) Len() int {
	return len(t.sel)
}

// At returns the i-th selected TOA.
func (t *Table) At(i int) *TOA {
	return &t.orig[t.sel[i]]
}

// Index returns the original-table index of the i-th selected TOA.
func (t *Table) Index(i int) int {
	return t.sel[i]
}

// Indices returns a copy of the selected original-table indices.
func (t *Table) Indices() []int {
	out := make([]int, len(t.sel))
	copy(out, t.sel)
	return out
}

// Orig returns the original table, including cut TOAs.
func (t *Table) Orig() []TOA {
	return t.orig
}

// Names returns the name column of the selected TOAs.
func (t *Table) Names() []string {
	names := make([]string, len(t.sel))
	for i, j := range t.sel {
		names[i] = t.orig[j].Name
	}
	return names
}

// FlagValues returns the value of key for every selected TOA ("" when
// absent).
func (t *Table) FlagValues(key string) []string {
	vals := make([]string, len(t.sel))
	for i, j := range t.sel {
		vals[i], _ = t.orig[j].Flags.Get(key)
	}
	return vals
}

// Epochs returns the distinct TOA names of the selection, sorted.
func (t *Table) Epochs() []string {
	seen := make(map[string]struct{})
	for _, j := range t.sel {
		seen[t.orig[j].Name] = struct{}{}
	}
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Select narrows the current selection to the TOAs where mask is true.
// The previous selection is restored by Unselect.
func (t *Table) Select(mask []bool) error {
	if len(mask) != len(t.sel) {
		return fmt.Errorf("mask length %d does not match %d selected TOAs", len(mask), len(t.sel))
	}
	t.stack = append(t.stack, t.sel)
	t.sel = maskIndices(t.sel, mask)
	return nil
}

// Unselect restores the selection that was active before the last Select.
func (t *Table) Unselect() {
	if len(t.stack) == 0 {
		return
	}
	t.sel = t.stack[len(t.stack)-1]
	t.stack = t.stack[:len(t.stack)-1]
}

func maskIndices(sel []int, mask []bool) []int {
	out := make([]int, 0, len(sel))
	for i, j := range sel {
		if mask[i] {
			out = append(out, j)
		}
	}
	return out
}

// Subset returns a new table sharing the original TOAs whose selection is
// the current selection narrowed by mask. The receiver is not modified.
// Flags must not be mutated through a subset while other goroutines read
// the parent.
func (t *Table) Subset(mask []bool) (*Table, error) {
	if len(mask) != len(t.sel) {
		return nil, fmt.Errorf("mask length %d does not match %d selected TOAs", len(mask), len(t.sel))
	}
	return &Table{orig: t.orig, sel: maskIndices(t.sel, mask)}, nil
}

// Reset makes every TOA of the original table selected again.
func (t *Table) Reset() {
	t.sel = allIndices(len(t.orig))
	t.stack = nil
}

// ApplyCutFlag marks the given original-table indices with -cut reason.
// TOAs that are already cut keep their first reason. It returns the number
// of newly cut TOAs.
func (t *Table) ApplyCutFlag(indices []int, reason string) int {
	n := 0
	for _, i := range indices {
		if i < 0 || i >= len(t.orig) {
			continue
		}
		if t.orig[i].Flags.Has(FlagCut) {
			continue
		}
		t.orig[i].Flags.Set(FlagCut, reason)
		n++
	}
	return n
}

// ApplyCutSelect selects every TOA of the original table without a -cut
// flag. reason is only used for logging.
func (t *Table) ApplyCutSelect(reason string) {
	before := len(t.sel)
	sel := make([]int, 0, len(t.orig))
	for i := range t.orig {
		if !t.orig[i].Flags.Has(FlagCut) {
			sel = append(sel, i)
		}
	}
	t.sel = sel
	t.stack = nil

	logger := log.WithComponent("toa")
	logger.Info().
		Str(log.FieldReason, reason).
		Int(log.FieldNTOAs, len(sel)).
		Int("previous", before).
		Msg("applied cut selection")
}

// CutCounts returns the number of original TOAs per cut reason.
func (t *Table) CutCounts() map[string]int {
	counts := make(map[string]int)
	for i := range t.orig {
		if r, ok := t.orig[i].CutReason(); ok {
			counts[r]++
		}
	}
	return counts
}

// MJDs returns the MJDs of the selected TOAs as float days.
func (t *Table) MJDs() []float64 {
	out := make([]float64, len(t.sel))
	for i, j := range t.sel {
		out[i] = t.orig[j].MJD.Float()
	}
	return out
}
