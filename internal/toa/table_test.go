// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NANOGrav Timing Working Group

package toa

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTable() *Table {
	mk := func(name string, day int64) TOA {
		return TOA{Name: name, Freq: 1400, MJD: MJD{Day: day}, Error: 1, Site: "ao"}
	}
	return NewTable([]TOA{
		mk("a", 55000), mk("a", 55000), mk("b", 55010), mk("c", 55020), mk("c", 55020),
	})
}

func TestTable_SelectUnselect(t *testing.T) {
	table := sampleTable()
	require.Equal(t, 5, table.Len())

	require.NoError(t, table.Select([]bool{true, false, true, false, true}))
	assert.Equal(t, 3, table.Len())
	assert.Equal(t, []int{0, 2, 4}, table.Indices())
	assert.Equal(t, []string{"a", "b", "c"}, table.Names())

	require.NoError(t, table.Select([]bool{false, true, true}))
	assert.Equal(t, []int{2, 4}, table.Indices())
	assert.Equal(t, 4, table.Index(1))

	table.Unselect()
	assert.Equal(t, []int{0, 2, 4}, table.Indices())
	table.Unselect()
	assert.Equal(t, 5, table.Len())

	// Extra unselects are harmless.
	table.Unselect()
	assert.Equal(t, 5, table.Len())

	assert.Error(t, table.Select([]bool{true}))
}

func TestTable_Subset(t *testing.T) {
	table := sampleTable()
	sub, err := table.Subset([]bool{false, false, true, true, true})
	require.NoError(t, err)
	assert.Equal(t, 3, sub.Len())
	assert.Equal(t, 5, table.Len(), "parent selection unchanged")
	assert.Equal(t, []string{"b", "c"}, sub.Epochs())

	_, err = table.Subset([]bool{true})
	assert.Error(t, err)
}

func TestTable_CutFlagsAndSelect(t *testing.T) {
	table := sampleTable()

	n := table.ApplyCutFlag([]int{0, 1, 99, -1}, "badfile")
	assert.Equal(t, 2, n)

	// First reason wins.
	n = table.ApplyCutFlag([]int{1, 2}, "epochdrop")
	assert.Equal(t, 1, n)
	reason, _ := table.Orig()[1].CutReason()
	assert.Equal(t, "badfile", reason)

	table.ApplyCutSelect("test cuts")
	assert.Equal(t, []int{3, 4}, table.Indices())
	assert.Equal(t, map[string]int{"badfile": 2, "epochdrop": 1}, table.CutCounts())

	table.Reset()
	assert.Equal(t, 5, table.Len())
	assert.Equal(t, []string{"badfile", "badfile", "epochdrop", "", ""}, table.FlagValues(FlagCut))
}

func TestTable_Epochs(t *testing.T) {
	table := sampleTable()
	assert.Equal(t, []string{"a", "b", "c"}, table.Epochs())
	assert.Equal(t, []float64{55000, 55000, 55010, 55020, 55020}, table.MJDs())
}

func TestFlags(t *testing.T) {
	var f Flags
	f.Set("f", "L-wide")
	f.Set("be", "PUPPI")
	f.Set("f", "430")
	assert.Equal(t, []string{"f", "be"}, f.Keys())
	v, ok := f.Get("f")
	assert.True(t, ok)
	assert.Equal(t, "430", v)

	c := f.Clone()
	c.Set("cut", "dmx")
	assert.False(t, f.Has("cut"))

	f.Delete("f")
	assert.Equal(t, []string{"be"}, f.Keys())
	assert.Nil(t, Flags(nil).Clone())
}
