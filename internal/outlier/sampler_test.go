// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NANOGrav Timing Working Group

package outlier

import (
	"bufio"
	"context"
	"errors"
	"math/rand/v2"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mixtureData returns n white residuals with 1 µs uncertainties, with the
// given indices offset by 30 sigma.
func mixtureData(seed uint64, n int, outliers ...int) Data {
	rng := rand.New(rand.NewPCG(seed, 7))
	d := Data{Residuals: make([]float64, n), Errors: make([]float64, n)}
	for i := range d.Residuals {
		d.Errors[i] = 1e-6
		d.Residuals[i] = 1e-6 * rng.NormFloat64()
	}
	for _, i := range outliers {
		d.Residuals[i] += 30e-6
	}
	return d
}

func TestRegistry(t *testing.T) {
	r := DefaultRegistry()
	assert.Equal(t, []string{"gibbs", "hmc"}, r.Available())

	s, err := r.Get("hmc")
	require.NoError(t, err)
	assert.Equal(t, "hmc", s.Name())

	_, err = r.Get("emcee")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownMethod))
	assert.Contains(t, err.Error(), "gibbs, hmc")
}

func TestSamplers_FindOutliers(t *testing.T) {
	outliers := []int{3, 50, 120}
	data := mixtureData(1, 200, outliers...)

	for _, s := range []Sampler{Gibbs{}, HMC{}} {
		t.Run(s.Name(), func(t *testing.T) {
			dir := t.TempDir()
			res, err := s.Sample(context.Background(), data, Options{NSamples: 400, NBurnin: 200, Seed: 5, OutDir: dir})
			require.NoError(t, err)
			require.Len(t, res.Pout, 200)

			isOutlier := make(map[int]bool)
			for _, i := range outliers {
				isOutlier[i] = true
				assert.Greater(t, res.Pout[i], 0.9, "TOA %d", i)
			}
			var sum float64
			for i, p := range res.Pout {
				assert.GreaterOrEqual(t, p, 0.0)
				assert.LessOrEqual(t, p, 1.0)
				if !isOutlier[i] {
					sum += p
				}
			}
			assert.Less(t, sum/197, 0.05)

			require.Len(t, res.Chain, 400)
			assert.Len(t, res.Chain[0], len(res.Params))
			assert.Equal(t, "efac", res.Params[0])

			f, err := os.Open(res.ChainFile)
			require.NoError(t, err)
			defer f.Close()
			sc := bufio.NewScanner(f)
			require.True(t, sc.Scan())
			assert.Equal(t, "# "+strings.Join(res.Params, " "), sc.Text())
			rows := 0
			for sc.Scan() {
				assert.Len(t, strings.Fields(sc.Text()), len(res.Params))
				rows++
			}
			assert.Equal(t, 400, rows)
		})
	}
}

func TestSamplers_Deterministic(t *testing.T) {
	data := mixtureData(2, 60, 10)
	opts := Options{NSamples: 50, NBurnin: 20, Seed: 9}
	for _, s := range []Sampler{Gibbs{}, HMC{}} {
		t.Run(s.Name(), func(t *testing.T) {
			a, err := s.Sample(context.Background(), data, opts)
			require.NoError(t, err)
			b, err := s.Sample(context.Background(), data, opts)
			require.NoError(t, err)
			assert.Equal(t, a.Pout, b.Pout)
			assert.Empty(t, a.ChainFile)
		})
	}
}

func TestSamplers_Errors(t *testing.T) {
	canceled, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name    string
		ctx     context.Context
		data    Data
		opts    Options
		wantErr error
	}{
		{name: "canceled", ctx: canceled, data: mixtureData(3, 10), opts: Options{NSamples: 10}, wantErr: context.Canceled},
		{name: "no samples", ctx: context.Background(), data: mixtureData(3, 10), opts: Options{}},
		{name: "negative burn-in", ctx: context.Background(), data: mixtureData(3, 10), opts: Options{NSamples: 1, NBurnin: -1}},
		{name: "empty data", ctx: context.Background(), opts: Options{NSamples: 10}},
		{name: "length mismatch", ctx: context.Background(), data: Data{Residuals: []float64{1}, Errors: []float64{1, 2}}, opts: Options{NSamples: 10}},
		{name: "zero error", ctx: context.Background(), data: Data{Residuals: []float64{1}, Errors: []float64{0}}, opts: Options{NSamples: 10}},
	}
	for _, s := range []Sampler{Gibbs{}, HMC{}} {
		for _, tt := range tests {
			t.Run(s.Name()+"/"+tt.name, func(t *testing.T) {
				_, err := s.Sample(tt.ctx, tt.data, tt.opts)
				require.Error(t, err)
				if tt.wantErr != nil {
					assert.ErrorIs(t, err, tt.wantErr)
				}
			})
		}
	}
}
