// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NANOGrav Timing Working Group

// Package timing implements the pulsar timing model used by the analysis
// stages: spin-down, dispersion with piecewise DMX offsets, and white-noise
// scaling of TOA uncertainties.
package timing

import (
	"fmt"
	"math"
	"sort"

	"github.com/nanograv/pint-pal/internal/toa"
)

// DMConst converts DM (pc cm^-3) at a frequency in MHz to a delay in
// seconds: delay = DMConst * DM / f^2.
const DMConst = 1.0 / 2.41e-4

// Param is a fittable model parameter.
type Param struct {
	Name        string
	Value       float64
	Free        bool
	Uncertainty float64
}

// DMXRange is one piecewise-constant DM offset valid over [R1, R2] (MJD).
// Epoch (MJD) and the F1, F2 frequency span (MHz) are informational and
// zero when unknown.
type DMXRange struct {
	Index int
	Value Param
	R1    float64
	R2    float64
	Epoch float64
	F1    float64
	F2    float64
}

// Label returns the zero-padded index used in parameter names ("0001").
func (r DMXRange) Label() string {
	return fmt.Sprintf("%04d", r.Index)
}

// Contains reports whether mjd lies in the closed range.
func (r DMXRange) Contains(mjd float64) bool {
	return mjd >= r.R1 && mjd <= r.R2
}

// NoiseKind distinguishes white-noise parameters.
type NoiseKind string

const (
	EFAC  NoiseKind = "EFAC"
	EQUAD NoiseKind = "EQUAD"
)

// NoiseParam scales the uncertainties of TOAs whose flag matches.
type NoiseParam struct {
	Kind  NoiseKind
	Flag  string
	Match string
	// Value is dimensionless for EFAC and in microseconds for EQUAD.
	Value float64
}

// Model is a pulsar timing model.
type Model struct {
	PSR    string
	PEPOCH toa.MJD
	F0     Param
	F1     Param
	F2     Param
	DM     Param
	DMX    []DMXRange
	Noise  []NoiseParam
	// Extra holds par lines the model does not interpret, written back
	// unchanged.
	Extra []string
}

// Clone returns a deep copy of the model.
func (m *Model) Clone() *Model {
	c := *m
	c.DMX = append([]DMXRange(nil), m.DMX...)
	c.Noise = append([]NoiseParam(nil), m.Noise...)
	c.Extra = append([]string(nil), m.Extra...)
	return &c
}

// FreeParams returns the names of the parameters that are fit, in design
// matrix order.
func (m *Model) FreeParams() []string {
	params := m.fitParams()
	names := make([]string, len(params))
	for i, p := range params {
		names[i] = p.Name
	}
	return names
}

// fitParams returns pointers to the free parameters in design matrix order.
func (m *Model) fitParams() []*Param {
	var out []*Param
	for _, p := range []*Param{&m.F0, &m.F1, &m.F2, &m.DM} {
		if p.Free {
			out = append(out, p)
		}
	}
	for i := range m.DMX {
		if m.DMX[i].Value.Free {
			out = append(out, &m.DMX[i].Value)
		}
	}
	return out
}

// Param returns the named parameter.
func (m *Model) Param(name string) (*Param, bool) {
	for _, p := range []*Param{&m.F0, &m.F1, &m.F2, &m.DM} {
		if p.Name == name {
			return p, true
		}
	}
	for i := range m.DMX {
		if m.DMX[i].Value.Name == name {
			return &m.DMX[i].Value, true
		}
	}
	return nil, false
}

// SortDMX orders the DMX ranges by start MJD.
func (m *Model) SortDMX() {
	sort.SliceStable(m.DMX, func(i, j int) bool { return m.DMX[i].R1 < m.DMX[j].R1 })
}

// DMXFor returns the position in m.DMX of the range containing mjd, or -1.
func (m *Model) DMXFor(mjd float64) int {
	for i := range m.DMX {
		if m.DMX[i].Contains(mjd) {
			return i
		}
	}
	return -1
}

// DMXIndexFor returns the DMX range whose bounds strictly enclose mjd.
func (m *Model) DMXIndexFor(mjd float64) (DMXRange, bool) {
	for _, r := range m.DMX {
		if mjd > r.R1 && mjd < r.R2 {
			return r, true
		}
	}
	return DMXRange{}, false
}

// RemoveDMX deletes the DMX range with the given index (DMX_, DMXR1_ and
// DMXR2_ parameters together). It reports whether a range was removed.
func (m *Model) RemoveDMX(index int) bool {
	for i := range m.DMX {
		if m.DMX[i].Index == index {
			m.DMX = append(m.DMX[:i], m.DMX[i+1:]...)
			return true
		}
	}
	return false
}

// AddDMX appends a free, zero-valued DMX range and returns it.
func (m *Model) AddDMX(index int, r1, r2 float64) DMXRange {
	r := DMXRange{
		Index: index,
		Value: Param{Name: dmxName(index), Free: true},
		R1:    r1,
		R2:    r2,
	}
	m.DMX = append(m.DMX, r)
	return r
}

// RenumberDMX sorts the ranges and renumbers them from 1.
func (m *Model) RenumberDMX() {
	m.SortDMX()
	for i := range m.DMX {
		m.DMX[i].Index = i + 1
		m.DMX[i].Value.Name = dmxName(i + 1)
	}
}

func dmxName(index int) string {
	return fmt.Sprintf("DMX_%04d", index)
}

// dispersionDM returns the total DM applying to t.
func (m *Model) dispersionDM(t *toa.TOA) float64 {
	dm := m.DM.Value
	if i := m.DMXFor(t.MJD.Float()); i >= 0 {
		dm += m.DMX[i].Value.Value
	}
	return dm
}

// Delay returns the dispersion delay of t in seconds.
func (m *Model) Delay(t *toa.TOA) float64 {
	if t.Freq <= 0 {
		return 0
	}
	return DMConst * m.dispersionDM(t) / (t.Freq * t.Freq)
}

// spinTime returns the emission time relative to PEPOCH in seconds.
func (m *Model) spinTime(t *toa.TOA) float64 {
	return t.MJD.Sub(m.PEPOCH) - m.Delay(t)
}

// Phase returns the model pulse phase of t in cycles.
func (m *Model) Phase(t *toa.TOA) float64 {
	dt := m.spinTime(t)
	return dt * (m.F0.Value + dt*(m.F1.Value/2+dt*m.F2.Value/6))
}

// ScaledError returns the TOA uncertainty in seconds after applying the
// matching EFAC and EQUAD parameters: EFAC * sqrt(err^2 + EQUAD^2).
func (m *Model) ScaledError(t *toa.TOA) float64 {
	efac, equad := 1.0, 0.0
	for _, n := range m.Noise {
		v, ok := t.Flags.Get(n.Flag)
		if !ok || v != n.Match {
			continue
		}
		switch n.Kind {
		case EFAC:
			efac = n.Value
		case EQUAD:
			equad = n.Value
		}
	}
	return 1e-6 * efac * math.Hypot(t.Error, equad)
}
