// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NANOGrav Timing Working Group

package timing

import (
	"errors"
	"math"

	"github.com/nanograv/pint-pal/internal/toa"
	"gonum.org/v1/gonum/mat"
)

// ErrNoTOAs indicates an operation needs at least one selected TOA.
var ErrNoTOAs = errors.New("no TOAs selected")

// Residuals are the timing residuals of the selected TOAs against a model.
type Residuals struct {
	// Time holds the residuals in seconds, weighted mean removed.
	Time []float64
	// Errors holds the scaled TOA uncertainties in seconds.
	Errors []float64
	Chi2   float64
	// Dof is the number of TOAs minus the free parameters and the
	// implicit phase offset.
	Dof int
}

// NewResiduals computes residuals for the selected TOAs.
func NewResiduals(toas *toa.Table, m *Model) (*Residuals, error) {
	n := toas.Len()
	if n == 0 {
		return nil, ErrNoTOAs
	}

	r := &Residuals{
		Time:   make([]float64, n),
		Errors: make([]float64, n),
	}
	var sumW, sumWR float64
	for i := 0; i < n; i++ {
		t := toas.At(i)
		phase := m.Phase(t)
		frac := phase - math.Round(phase)
		r.Time[i] = frac / m.F0.Value
		r.Errors[i] = m.ScaledError(t)

		w := 1 / (r.Errors[i] * r.Errors[i])
		sumW += w
		sumWR += w * r.Time[i]
	}

	mean := sumWR / sumW
	for i := range r.Time {
		r.Time[i] -= mean
		z := r.Time[i] / r.Errors[i]
		r.Chi2 += z * z
	}
	r.Dof = n - len(m.fitParams()) - 1
	return r, nil
}

// ReducedChi2 returns Chi2/Dof, or NaN when there are no degrees of freedom.
func (r *Residuals) ReducedChi2() float64 {
	if r.Dof <= 0 {
		return math.NaN()
	}
	return r.Chi2 / float64(r.Dof)
}

// WRMS returns the weighted RMS residual in seconds.
func (r *Residuals) WRMS() float64 {
	var sumW, sumWR2 float64
	for i, v := range r.Time {
		w := 1 / (r.Errors[i] * r.Errors[i])
		sumW += w
		sumWR2 += w * v * v
	}
	return math.Sqrt(sumWR2 / sumW)
}

// DesignMatrix returns d(residual)/d(parameter) in seconds per unit for the
// selected TOAs. Column 0 is the phase offset; the remaining columns follow
// FreeParams.
func DesignMatrix(toas *toa.Table, m *Model) (*mat.Dense, []string) {
	params := m.fitParams()
	names := make([]string, 0, len(params)+1)
	names = append(names, "Offset")
	for _, p := range params {
		names = append(names, p.Name)
	}

	n := toas.Len()
	dm := mat.NewDense(n, len(names), nil)
	f0 := m.F0.Value
	for i := 0; i < n; i++ {
		t := toas.At(i)
		dt := m.spinTime(t)
		dmx := m.DMXFor(t.MJD.Float())
		dmDeriv := 0.0
		if t.Freq > 0 {
			dmDeriv = -DMConst / (t.Freq * t.Freq)
		}

		dm.Set(i, 0, 1)
		for j, p := range params {
			var v float64
			switch {
			case p == &m.F0:
				v = dt / f0
			case p == &m.F1:
				v = dt * dt / 2 / f0
			case p == &m.F2:
				v = dt * dt * dt / 6 / f0
			case p == &m.DM:
				v = dmDeriv
			case dmx >= 0 && p == &m.DMX[dmx].Value:
				v = dmDeriv
			}
			dm.Set(i, j+1, v)
		}
	}
	return dm, names
}
