// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NANOGrav Timing Working Group

package fitter

import (
	"context"
	"math"
	"testing"

	"github.com/nanograv/pint-pal/internal/testutil"
	"github.com/nanograv/pint-pal/internal/timing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFitTOAs_RecoversTruth(t *testing.T) {
	sim := testutil.Simulate(testutil.SimOptions{Seed: 11, DMXScatter: 1e-3})

	f := New(sim.TOAs, sim.Model)
	chi2, err := f.FitTOAs(context.Background())
	require.NoError(t, err)

	res := f.Resids()
	require.NotNil(t, res)
	assert.InDelta(t, chi2, res.Chi2, 0)
	assert.InDelta(t, 1.0, res.ReducedChi2(), 0.4)

	fitted := f.Model()
	unc := f.Uncertainties()
	require.Contains(t, unc, "F0")
	assert.Greater(t, unc["F0"], 0.0)
	assert.Less(t, math.Abs(fitted.F0.Value-sim.Truth.F0.Value), 5*unc["F0"])

	for i, r := range fitted.DMX {
		want := sim.Truth.DMX[i].Value.Value
		assert.Less(t, math.Abs(r.Value.Value-want), 5*r.Value.Uncertainty+1e-9, r.Value.Name)
	}

	// The caller's model is untouched.
	assert.InDelta(t, sim.Truth.F0.Value+2e-12, sim.Model.F0.Value, 0)
}

func TestResetModel(t *testing.T) {
	sim := testutil.Simulate(testutil.SimOptions{Seed: 12, Epochs: 8})

	f := New(sim.TOAs, sim.Model)
	_, err := f.FitTOAs(context.Background())
	require.NoError(t, err)
	require.NotEqual(t, sim.Model.F0.Value, f.Model().F0.Value)

	f.ResetModel()
	assert.InDelta(t, sim.Model.F0.Value, f.Model().F0.Value, 0)
	assert.Nil(t, f.Resids())
	assert.Nil(t, f.Uncertainties())
}

func TestFitTOAs_TooFewTOAs(t *testing.T) {
	sim := testutil.Simulate(testutil.SimOptions{Seed: 13, Epochs: 2, TOAsPerFile: 1})

	f := New(sim.TOAs, sim.Model)
	_, err := f.FitTOAs(context.Background())
	assert.ErrorIs(t, err, ErrTooFewTOAs)
}

func TestFitTOAs_EmptyDMXRangeIsDegenerate(t *testing.T) {
	sim := testutil.Simulate(testutil.SimOptions{Seed: 14, Epochs: 8})
	model := sim.Model.Clone()
	model.AddDMX(99, 60000, 60001)

	f := New(sim.TOAs, model)
	_, err := f.FitTOAs(context.Background())
	require.ErrorIs(t, err, ErrDegenerate)
	assert.Contains(t, err.Error(), "DMX_0099")
}

func TestFitTOAs_Canceled(t *testing.T) {
	sim := testutil.Simulate(testutil.SimOptions{Seed: 15, Epochs: 4})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(sim.TOAs, sim.Model).FitTOAs(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFitTOAs_NoFreeParams(t *testing.T) {
	sim := testutil.Simulate(testutil.SimOptions{Seed: 16, Epochs: 4})
	model := &timing.Model{
		PEPOCH: sim.Truth.PEPOCH,
		F0:     timing.Param{Name: "F0", Value: sim.Truth.F0.Value},
		F1:     timing.Param{Name: "F1", Value: sim.Truth.F1.Value},
		DM:     timing.Param{Name: "DM", Value: sim.Truth.DM.Value},
		DMX:    sim.Truth.Clone().DMX,
	}
	for i := range model.DMX {
		model.DMX[i].Value.Free = false
	}

	f := New(sim.TOAs, model)
	chi2, err := f.FitTOAs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, sim.TOAs.Len()-1, f.Resids().Dof)
	assert.Greater(t, chi2, 0.0)
	assert.Empty(t, f.Uncertainties())
}
