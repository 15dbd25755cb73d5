// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NANOGrav Timing Working Group

package outlier

import (
	"context"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nanograv/pint-pal/internal/config"
	"github.com/nanograv/pint-pal/internal/testutil"
	"github.com/nanograv/pint-pal/internal/toa"
)

func ptr[T any](v T) *T { return &v }

func testConfig(t *testing.T, toaType string) *config.Config {
	t.Helper()
	return &config.Config{
		Version:   config.CurrentConfigVersion,
		Source:    "J1234+5678",
		TOAType:   toaType,
		ParFile:   "J1234+5678.par",
		TimFiles:  []string{"J1234+5678.tim"},
		OutputDir: t.TempDir(),
		Outlier: config.OutlierConfig{
			Method:   "gibbs",
			NSamples: ptr(300),
			NBurnin:  ptr(100),
			Seed:     3,
			Workers:  2,
		},
	}
}

func TestCalculatePout(t *testing.T) {
	sim := testutil.Simulate(testutil.SimOptions{
		Seed:     21,
		Epochs:   12,
		NoDMX:    true,
		Outliers: map[int]float64{5: 40, 50: -40},
	})
	sim.TOAs.ApplyCutFlag([]int{90}, "snr")
	sim.TOAs.ApplyCutSelect("test")
	cfg := testConfig(t, config.TOATypeNB)

	res, err := CalculatePout(context.Background(), sim.Model, sim.TOAs, cfg, DefaultRegistry())
	require.NoError(t, err)

	assert.Equal(t, "gibbs", res.Method)
	require.Len(t, res.Pout, 95)
	assert.Equal(t, 2, res.NOutliers)
	assert.InDelta(t, config.DefaultProbOutlier, res.Threshold, 0)
	assert.Equal(t, filepath.Join(cfg.ResultsDir(), "J1234+5678.nb_pout.tim"), res.TimFile)
	assert.Equal(t, filepath.Join(cfg.ResultsDir(), "chain_gibbs.txt"), res.ChainFile)

	orig := sim.TOAs.Orig()
	for _, i := range []int{5, 50} {
		v, ok := orig[i].Flags.Get("pout_gibbs")
		require.True(t, ok)
		p, err := strconv.ParseFloat(v, 64)
		require.NoError(t, err)
		assert.Greater(t, p, 0.9)
	}
	_, ok := orig[90].Flags.Get("pout_gibbs")
	assert.False(t, ok, "cut TOAs are not sampled")

	// The selection is back to the uncut TOAs.
	assert.Equal(t, 95, sim.TOAs.Len())

	written, err := toa.ReadTim(res.TimFile)
	require.NoError(t, err)
	require.Len(t, written, 96)
	withPout := 0
	for _, w := range written {
		if w.Flags.Has("pout_gibbs") {
			withPout++
		}
	}
	assert.Equal(t, 95, withPout)
	reason, cut := written[90].CutReason()
	assert.True(t, cut)
	assert.Equal(t, "snr", reason)
}

func TestCalculatePout_UnknownMethod(t *testing.T) {
	sim := testutil.Simulate(testutil.SimOptions{Seed: 22, Epochs: 4})
	cfg := testConfig(t, config.TOATypeNB)
	cfg.Outlier.Method = "emcee"

	_, err := CalculatePout(context.Background(), sim.Model, sim.TOAs, cfg, DefaultRegistry())
	require.ErrorIs(t, err, ErrUnknownMethod)
	assert.NoDirExists(t, cfg.ResultsDir())
}

// setPout stores outlier probabilities on the original table, 0.001 for
// every TOA not listed.
func setPout(table *toa.Table, flag string, probs map[int]float64) {
	orig := table.Orig()
	for i := range orig {
		p, ok := probs[i]
		if !ok {
			p = 0.001
		}
		orig[i].Flags.Set(flag, strconv.FormatFloat(p, 'g', -1, 64))
	}
}

func TestMakePoutCuts(t *testing.T) {
	tests := []struct {
		name       string
		toaType    string
		pct        float64
		wantMaxOut int
		wantNTOAs  int
	}{
		{name: "narrowband below maxout", toaType: config.TOATypeNB, pct: 8, wantMaxOut: 0, wantNTOAs: 190},
		{name: "narrowband maxout", toaType: config.TOATypeNB, pct: 5, wantMaxOut: 2, wantNTOAs: 160},
		{name: "wideband skips maxout", toaType: config.TOATypeWB, pct: 5, wantMaxOut: 0, wantNTOAs: 190},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sim := testutil.Simulate(testutil.SimOptions{Seed: 23, Epochs: 6, TOAsPerFile: 16})
			cfg := testConfig(t, tt.toaType)
			setPout(sim.TOAs, cfg.PoutFlag(), map[int]float64{3: 0.97, 40: 0.5, 41: 0.05})

			summary, err := MakePoutCuts(sim.Model, sim.TOAs, cfg, tt.pct)
			require.NoError(t, err)

			assert.Equal(t, 2, summary.Outliers)
			assert.Len(t, summary.MaxOut, tt.wantMaxOut)
			assert.Equal(t, tt.wantNTOAs, sim.TOAs.Len())
			assert.Equal(t, 6, summary.DMX.Kept)
			assert.Zero(t, summary.DMX.Removed)

			counts := sim.TOAs.CutCounts()
			assert.Equal(t, 2, counts["outlier10"])
			assert.Equal(t, 30*tt.wantMaxOut/2, counts[config.CutMaxOut])
		})
	}
}
