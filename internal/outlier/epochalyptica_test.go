// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NANOGrav Timing Working Group

package outlier

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/nanograv/pint-pal/internal/config"
	"github.com/nanograv/pint-pal/internal/testutil"
	"github.com/nanograv/pint-pal/internal/toa"
)

func readEpochFile(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	var rows [][]string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		rows = append(rows, strings.Fields(sc.Text()))
	}
	require.NoError(t, sc.Err())
	return rows
}

func TestEpochalyptica_DropsBadEpoch(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	sim := testutil.Simulate(testutil.SimOptions{
		Seed:      31,
		Epochs:    10,
		BadEpochs: map[int]float64{3: 30},
	})
	cfg := testConfig(t, config.TOATypeNB)
	bad := sim.Files[3][1]

	report, err := Epochalyptica(context.Background(), sim.Model, sim.TOAs, cfg, 1e-6)
	require.NoError(t, err)

	assert.Equal(t, 80, report.NTOAs)
	assert.Equal(t, 80-12-1, report.Dof)
	require.Len(t, report.Epochs, 20)
	require.Contains(t, report.Dropped, bad)
	for _, name := range report.Dropped {
		assert.Contains(t, sim.Files[3], name)
	}

	minP, minName := 2.0, ""
	for _, r := range report.Epochs {
		assert.Equal(t, 4, r.NDropped, r.Name)
		if r.FTest < minP {
			minP, minName = r.FTest, r.Name
		}
	}
	assert.Contains(t, sim.Files[3], minName)
	require.NotNil(t, report.DMX)

	counts := sim.TOAs.CutCounts()
	assert.Equal(t, 4*len(report.Dropped), counts[EpochCutReason])
	assert.Equal(t, 80-4*len(report.Dropped), sim.TOAs.Len())

	rows := readEpochFile(t, report.EpochFile)
	require.Len(t, rows, 20)
	for _, row := range rows {
		require.Len(t, row, 6)
		if row[0] != bad {
			continue
		}
		assert.Equal(t, "Rcvr1_2_GUPPI", row[1])
		assert.Equal(t, strconv.Itoa(55000+3*30), row[2])
		assert.Equal(t, "4", row[3])
		p, err := strconv.ParseFloat(row[4], 64)
		require.NoError(t, err)
		assert.Less(t, p, 1e-6)
	}

	assert.Equal(t, filepath.Join(cfg.ResultsDir(), "J1234+5678.nb_excise.tim"), report.TimFile)
	written, err := toa.ReadTim(report.TimFile)
	require.NoError(t, err)
	require.Len(t, written, 80)
	for _, w := range written {
		reason, cut := w.CutReason()
		if w.Name == bad {
			assert.True(t, cut)
			assert.Equal(t, EpochCutReason, reason)
		}
	}
}

func TestEpochalyptica_NothingDropped(t *testing.T) {
	sim := testutil.Simulate(testutil.SimOptions{Seed: 32, Epochs: 8})
	// Leave epoch 2 with a single file so dropping it empties its DMX range.
	lone := sim.Files[2][1]
	var idx []int
	for i, x := range sim.TOAs.Orig() {
		if x.Name == sim.Files[2][0] {
			idx = append(idx, i)
		}
	}
	sim.TOAs.ApplyCutFlag(idx, "snr")
	sim.TOAs.ApplyCutSelect("test")
	cfg := testConfig(t, config.TOATypeNB)
	cfg.Outlier.Workers = 1

	report, err := Epochalyptica(context.Background(), sim.Model, sim.TOAs, cfg, 1e-6)
	require.NoError(t, err)

	assert.Empty(t, report.Dropped)
	assert.Nil(t, report.DMX)
	require.Len(t, report.Epochs, 15)
	for _, r := range report.Epochs {
		assert.False(t, r.Dropped, r.Name)
		assert.Greater(t, r.EffectiveError, 0.0)
		if r.Name == lone {
			assert.Equal(t, 3, r.RemovedDMX)
			assert.Equal(t, report.Dof-3, r.Dof)
		} else {
			assert.Zero(t, r.RemovedDMX, r.Name)
			assert.Equal(t, report.Dof-4, r.Dof)
		}
		assert.True(t, r.Tested, r.Name)
	}
	assert.Equal(t, 60, sim.TOAs.Len())
	assert.Len(t, sim.Model.DMX, 8)

	rows := readEpochFile(t, report.EpochFile)
	assert.Len(t, rows, 15)
	written, err := toa.ReadTim(report.TimFile)
	require.NoError(t, err)
	assert.Len(t, written, 64)
}

func TestEpochalyptica_Canceled(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	sim := testutil.Simulate(testutil.SimOptions{Seed: 33, Epochs: 4})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Epochalyptica(ctx, sim.Model, sim.TOAs, testConfig(t, config.TOATypeNB), 1e-6)
	require.ErrorIs(t, err, context.Canceled)
}
