// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NANOGrav Timing Working Group

// Package testutil builds synthetic pulsars for tests.
package testutil

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/nanograv/pint-pal/internal/timing"
	"github.com/nanograv/pint-pal/internal/toa"
)

// Receivers used by simulated epochs, with their frequency coverage in MHz.
var receivers = []struct {
	name      string
	fLo, fHi  float64
	dayOffset float64
}{
	{"Rcvr_800_GUPPI", 730, 890, 0},
	{"Rcvr1_2_GUPPI", 1150, 1730, 0.002},
}

// SimOptions controls Simulate.
type SimOptions struct {
	Seed uint64
	// Epochs is the number of observing epochs (default 24).
	Epochs int
	// Cadence is the spacing between epochs in days (default 30).
	Cadence float64
	// TOAsPerFile is the number of TOAs per receiver per epoch (default 4).
	TOAsPerFile int
	// ErrorUS is the nominal TOA uncertainty in microseconds (default 1).
	ErrorUS float64
	// DMXScatter is the standard deviation of per-epoch DM offsets.
	DMXScatter float64
	// Outliers maps original TOA indices to extra offsets in microseconds.
	Outliers map[int]float64
	// BadEpochs maps epoch numbers to an offset in microseconds applied
	// to every TOA of the epoch's L-band file.
	BadEpochs map[int]float64
	// NoDMX leaves the starting model without DMX ranges.
	NoDMX bool
}

// Sim is a simulated pulsar.
type Sim struct {
	// Truth generated the TOAs.
	Truth *timing.Model
	// Model is the starting model handed to the code under test: DMX values
	// zeroed and F0 slightly offset.
	Model *timing.Model
	TOAs  *toa.Table
	// Files lists the TOA names of each epoch, in epoch order.
	Files [][]string
}

func (o *SimOptions) defaults() {
	if o.Epochs == 0 {
		o.Epochs = 24
	}
	if o.Cadence == 0 {
		o.Cadence = 30
	}
	if o.TOAsPerFile == 0 {
		o.TOAsPerFile = 4
	}
	if o.ErrorUS == 0 {
		o.ErrorUS = 1
	}
}

// Simulate builds a pulsar with white-noise TOAs consistent with a known
// model.
func Simulate(opts SimOptions) *Sim {
	opts.defaults()
	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15))

	start := 55000.0
	span := float64(opts.Epochs-1) * opts.Cadence
	truth := &timing.Model{
		PSR:    "J1234+5678",
		PEPOCH: toa.NewMJD(start + math.Round(span/2)),
		F0:     timing.Param{Name: "F0", Value: 218.8118438547, Free: true},
		F1:     timing.Param{Name: "F1", Value: -4.083e-16, Free: true},
		F2:     timing.Param{Name: "F2"},
		DM:     timing.Param{Name: "DM", Value: 10.3907},
	}

	sim := &Sim{Truth: truth}
	var all []toa.TOA
	for k := 0; k < opts.Epochs; k++ {
		day := start + float64(k)*opts.Cadence + 0.3
		r1 := day - 0.01
		r2 := day + 0.01
		for _, rc := range receivers {
			r2 = math.Max(r2, day+rc.dayOffset+float64(opts.TOAsPerFile)*0.0005+0.01)
		}
		truth.AddDMX(k+1, r1, r2)
		truth.DMX[len(truth.DMX)-1].Value.Value = opts.DMXScatter * rng.NormFloat64()

		var files []string
		for _, rc := range receivers {
			name := fmt.Sprintf("guppi_%d_%s_%04d.ff", int(day), rc.name, k)
			files = append(files, name)
			for j := 0; j < opts.TOAsPerFile; j++ {
				freq := rc.fLo + (rc.fHi-rc.fLo)*(float64(j)+0.5)/float64(opts.TOAsPerFile)
				errUS := opts.ErrorUS * (0.8 + 0.4*rng.Float64())
				t := toa.TOA{
					Name:  name,
					Freq:  freq,
					MJD:   toa.NewMJD(day + rc.dayOffset + float64(j)*0.0005),
					Error: errUS,
					Site:  "gbt",
				}
				t.Flags.Set(toa.FlagReceiver, rc.name)
				t.Flags.Set("be", "GUPPI")

				alignToPulse(truth, &t)
				offset := errUS * rng.NormFloat64()
				if extra, ok := opts.Outliers[len(all)]; ok {
					offset += extra
				}
				if extra, ok := opts.BadEpochs[k]; ok && rc.dayOffset > 0 {
					offset += extra
				}
				t.MJD = t.MJD.Add(offset * 1e-6)
				all = append(all, t)
			}
		}
		sim.Files = append(sim.Files, files)
	}

	model := truth.Clone()
	model.F0.Value += 2e-12
	for i := range model.DMX {
		model.DMX[i].Value.Value = 0
	}
	if opts.NoDMX {
		model.DMX = nil
	}
	sim.Model = model
	sim.TOAs = toa.NewTable(all)
	return sim
}

// alignToPulse moves t so the model predicts an integer phase.
func alignToPulse(m *timing.Model, t *toa.TOA) {
	for i := 0; i < 3; i++ {
		phase := m.Phase(t)
		frac := phase - math.Round(phase)
		t.MJD = t.MJD.Add(-frac / m.F0.Value)
	}
}
