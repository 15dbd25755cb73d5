// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NANOGrav Timing Working Group

package outlier

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/renameio/v2"
	"golang.org/x/sync/errgroup"

	"github.com/nanograv/pint-pal/internal/config"
	"github.com/nanograv/pint-pal/internal/dmx"
	"github.com/nanograv/pint-pal/internal/fitter"
	"github.com/nanograv/pint-pal/internal/log"
	"github.com/nanograv/pint-pal/internal/timing"
	"github.com/nanograv/pint-pal/internal/toa"
)

// EpochCutReason is the -cut value for TOAs of dropped epochs.
const EpochCutReason = "epochdrop"

// EpochResult is the outcome of refitting without one epoch.
type EpochResult struct {
	Name     string
	Receiver string
	// MJD is the integer day of the epoch's first TOA.
	MJD      int64
	NDropped int
	Chi2     float64
	Dof      int
	// FTest is the probability that the chi-squared improvement from
	// dropping the epoch is due to chance; 1 when it could not be tested.
	FTest  float64
	Tested bool
	// EffectiveError is 1/sqrt(Σ 1/σ²) over the epoch's TOAs, in µs.
	EffectiveError float64
	// RemovedDMX is the index of the DMX range emptied by the drop, or 0.
	RemovedDMX int
	Dropped    bool
}

// EpochReport summarises an Epochalyptica run.
type EpochReport struct {
	Chi2    float64
	Dof     int
	NTOAs   int
	Epochs  []EpochResult
	Dropped []string
	// DMX is set when epochs were dropped and the ranges rebuilt.
	DMX       *dmx.Summary
	EpochFile string
	TimFile   string
}

// Epochalyptica refits the selected TOAs once per epoch with that epoch
// removed and F-tests each refit against the fit with every epoch. Epochs
// whose removal improves chi-squared with probability of chance below
// threshold are cut with -cut epochdrop. Per-epoch results are written to
// <results>/epochdrop.txt and the full table to <results>/<base>_excise.tim.
// Refits run concurrently, bounded by the configured number of workers.
func Epochalyptica(ctx context.Context, model *timing.Model, toas *toa.Table, cfg *config.Config, threshold float64) (*EpochReport, error) {
	logger := log.WithComponent("outlier")

	f := cfg.ConstructFitter(toas, model)
	chi2Init, err := f.FitTOAs(ctx)
	if err != nil {
		return nil, fmt.Errorf("initial fit: %w", err)
	}
	report := &EpochReport{
		Chi2:  chi2Init,
		Dof:   f.Resids().Dof,
		NTOAs: toas.Len(),
	}
	logger.Info().
		Float64(log.FieldChi2, report.Chi2).
		Int(log.FieldDof, report.Dof).
		Int(log.FieldNTOAs, report.NTOAs).
		Msg("initial fit for epoch drop analysis")

	names := toas.Names()
	epochs := toas.Epochs()
	report.Epochs = make([]EpochResult, len(epochs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers())
	for i, name := range epochs {
		g.Go(func() error {
			res, err := dropEpoch(gctx, model, toas, names, name, report)
			if err != nil {
				return fmt.Errorf("epoch %s: %w", name, err)
			}
			res.Dropped = res.Tested && res.FTest < threshold
			report.Epochs[i] = res
			logger.Debug().
				Str(log.FieldEpoch, name).
				Float64(log.FieldChi2, res.Chi2).
				Int(log.FieldDof, res.Dof).
				Float64("ftest", res.FTest).
				Msg("refit without epoch")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	resultsDir := cfg.ResultsDir()
	report.EpochFile = filepath.Join(resultsDir, "epochdrop.txt")
	if err := writeEpochFile(report.EpochFile, report.Epochs); err != nil {
		return nil, err
	}

	drop := make(map[string]bool)
	for _, r := range report.Epochs {
		if r.Dropped {
			drop[r.Name] = true
			report.Dropped = append(report.Dropped, r.Name)
		}
	}
	if len(drop) > 0 {
		var idx []int
		orig := toas.Orig()
		for _, j := range toas.Indices() {
			if drop[orig[j].Name] {
				idx = append(idx, j)
			}
		}
		toas.ApplyCutFlag(idx, EpochCutReason)
		toas.ApplyCutSelect("epoch drop analysis")
		summary, err := dmx.Setup(model, toas, cfg.FRatio(), cfg.MaxDeltaT())
		if err != nil {
			return nil, err
		}
		report.DMX = &summary
		logger.Info().Int(log.FieldCount, len(drop)).Strs("epochs", report.Dropped).Msg("dropped epochs")
	} else {
		logger.Info().Msg("No epochs dropped.")
	}

	toas.Reset()
	report.TimFile = filepath.Join(resultsDir, cfg.OutfileBasename()+"_excise.tim")
	if err := toa.WriteTimFile(report.TimFile, toas, cfg.TOAKind()); err != nil {
		return nil, err
	}
	toas.ApplyCutSelect("resumption after writing excise tim")
	return report, nil
}

// dropEpoch refits the selected TOAs without the TOAs named name.
func dropEpoch(ctx context.Context, model *timing.Model, toas *toa.Table, names []string, name string, initial *EpochReport) (EpochResult, error) {
	res := EpochResult{Name: name, FTest: 1}
	mask := make([]bool, len(names))
	var invVar float64
	var first *toa.TOA
	for i, n := range names {
		if n != name {
			mask[i] = true
			continue
		}
		t := toas.At(i)
		if first == nil {
			first = t
		}
		invVar += 1 / (t.Error * t.Error)
	}
	res.Receiver = first.Receiver()
	res.MJD = first.MJD.Int()
	res.EffectiveError = 1 / math.Sqrt(invVar)

	sub, err := toas.Subset(mask)
	if err != nil {
		return res, err
	}
	res.NDropped = initial.NTOAs - sub.Len()

	m := model.Clone()
	if r, ok := m.DMXIndexFor(first.MJD.Float()); ok && !anyInside(sub, r) {
		m.RemoveDMX(r.Index)
		res.RemovedDMX = r.Index
	}

	f := fitter.New(sub, m)
	chi2, err := f.FitTOAs(ctx)
	if err != nil {
		return res, err
	}
	res.Chi2 = chi2
	res.Dof = f.Resids().Dof
	if res.Dof != initial.Dof {
		res.FTest, res.Tested = FTest(initial.Chi2, initial.Dof, chi2, res.Dof)
	}
	return res, nil
}

// anyInside reports whether any selected TOA lies strictly inside r.
func anyInside(toas *toa.Table, r timing.DMXRange) bool {
	for _, mjd := range toas.MJDs() {
		if mjd > r.R1 && mjd < r.R2 {
			return true
		}
	}
	return false
}

func writeEpochFile(path string, results []EpochResult) error {
	var buf bytes.Buffer
	for _, r := range results {
		fmt.Fprintf(&buf, "%s %s %d %d %e %s\n",
			r.Name, r.Receiver, r.MJD, r.NDropped, r.FTest,
			strconv.FormatFloat(r.EffectiveError, 'g', -1, 64))
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
	}
	if err := renameio.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
