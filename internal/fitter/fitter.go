// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NANOGrav Timing Working Group

// Package fitter fits timing models to TOAs by generalised least squares
// with a diagonal (white-noise) covariance.
package fitter

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/nanograv/pint-pal/internal/timing"
	"github.com/nanograv/pint-pal/internal/toa"
	"gonum.org/v1/gonum/mat"
)

var (
	// ErrTooFewTOAs indicates there are not more TOAs than fitted parameters.
	ErrTooFewTOAs = errors.New("not enough TOAs to fit")

	// ErrDegenerate indicates a parameter is not constrained by any TOA.
	ErrDegenerate = errors.New("degenerate fit")
)

// DefaultMaxIter is the number of linearised steps taken by FitTOAs.
const DefaultMaxIter = 2

// Fitter holds a selection of TOAs and a working copy of a model.
type Fitter struct {
	toas    *toa.Table
	initial *timing.Model
	model   *timing.Model
	resids  *timing.Residuals
	unc     map[string]float64

	// MaxIter bounds the number of linearised steps.
	MaxIter int
}

// New returns a fitter over the current selection of toas. The model is
// copied; the caller's model is never modified.
func New(toas *toa.Table, model *timing.Model) *Fitter {
	return &Fitter{
		toas:    toas,
		initial: model.Clone(),
		model:   model.Clone(),
		MaxIter: DefaultMaxIter,
	}
}

// Model returns the fitter's working model.
func (f *Fitter) Model() *timing.Model {
	return f.model
}

// Resids returns the residuals of the last fit, or nil before a fit.
func (f *Fitter) Resids() *timing.Residuals {
	return f.resids
}

// Uncertainties returns the 1-sigma parameter uncertainties of the last fit.
func (f *Fitter) Uncertainties() map[string]float64 {
	return f.unc
}

// ResetModel discards fit results and restores the initial model.
func (f *Fitter) ResetModel() {
	f.model = f.initial.Clone()
	f.resids = nil
	f.unc = nil
}

// FitTOAs fits the free parameters and returns the post-fit chi-squared.
func (f *Fitter) FitTOAs(ctx context.Context) (float64, error) {
	nParams := len(f.model.FreeParams()) + 1
	if f.toas.Len() <= nParams {
		return 0, fmt.Errorf("%w: %d TOAs for %d parameters", ErrTooFewTOAs, f.toas.Len(), nParams)
	}

	maxIter := f.MaxIter
	if maxIter <= 0 {
		maxIter = DefaultMaxIter
	}
	for iter := 0; iter < maxIter; iter++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		if err := f.step(); err != nil {
			return 0, err
		}
	}

	resids, err := timing.NewResiduals(f.toas, f.model)
	if err != nil {
		return 0, err
	}
	f.resids = resids
	return resids.Chi2, nil
}

// step performs one linearised least-squares update of the free parameters.
func (f *Fitter) step() error {
	resids, err := timing.NewResiduals(f.toas, f.model)
	if err != nil {
		return err
	}
	design, names := timing.DesignMatrix(f.toas, f.model)
	rows, cols := design.Dims()

	// Whiten rows by 1/sigma and normalise columns.
	norms := make([]float64, cols)
	for i := 0; i < rows; i++ {
		w := 1 / resids.Errors[i]
		for j := 0; j < cols; j++ {
			v := design.At(i, j) * w
			design.Set(i, j, v)
			norms[j] += v * v
		}
	}
	for j := 0; j < cols; j++ {
		norms[j] = math.Sqrt(norms[j])
		if norms[j] == 0 {
			return fmt.Errorf("%w: %s is not constrained by any TOA", ErrDegenerate, names[j])
		}
		for i := 0; i < rows; i++ {
			design.Set(i, j, design.At(i, j)/norms[j])
		}
	}

	b := mat.NewVecDense(rows, nil)
	for i := 0; i < rows; i++ {
		b.SetVec(i, -resids.Time[i]/resids.Errors[i])
	}

	var x mat.VecDense
	if err := x.SolveVec(design, b); err != nil {
		return fmt.Errorf("%w: %v", ErrDegenerate, err)
	}

	var normal mat.SymDense
	normal.SymOuterK(1, design.T())
	var chol mat.Cholesky
	if ok := chol.Factorize(&normal); !ok {
		return fmt.Errorf("%w: normal matrix is not positive definite", ErrDegenerate)
	}
	var cov mat.SymDense
	if err := chol.InverseTo(&cov); err != nil {
		return fmt.Errorf("%w: %v", ErrDegenerate, err)
	}

	unc := make(map[string]float64, cols-1)
	for j := 1; j < cols; j++ {
		p, ok := f.model.Param(names[j])
		if !ok {
			return fmt.Errorf("unknown parameter %s in design matrix", names[j])
		}
		p.Value += x.AtVec(j) / norms[j]
		p.Uncertainty = math.Sqrt(cov.At(j, j)) / norms[j]
		unc[names[j]] = p.Uncertainty
	}
	f.unc = unc
	return nil
}
