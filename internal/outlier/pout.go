// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NANOGrav Timing Working Group

package outlier

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/nanograv/pint-pal/internal/config"
	"github.com/nanograv/pint-pal/internal/dmx"
	"github.com/nanograv/pint-pal/internal/log"
	"github.com/nanograv/pint-pal/internal/timing"
	"github.com/nanograv/pint-pal/internal/toa"
)

// PoutResult summarises a CalculatePout run.
type PoutResult struct {
	Method string
	// Pout holds the outlier probability of each TOA that was selected
	// when sampling started, in selection order.
	Pout []float64
	// Indices maps Pout entries to original-table indices.
	Indices   []int
	Threshold float64
	// NOutliers counts probabilities above Threshold.
	NOutliers int
	TimFile   string
	ChainFile string
}

// CalculatePout fits the selected TOAs, samples the outlier mixture model
// with the configured method and stores each TOA's outlier probability in
// its -pout_<method> flag. The full table, including previously cut TOAs,
// is then written to <results>/<base>_pout.tim and the cut selection is
// re-applied.
func CalculatePout(ctx context.Context, model *timing.Model, toas *toa.Table, cfg *config.Config, samplers Registry) (*PoutResult, error) {
	method := cfg.OutlierMethod()
	sampler, err := samplers.Get(method)
	if err != nil {
		return nil, err
	}
	logger := log.WithComponent("outlier").With().Str(log.FieldMethod, method).Logger()

	f := cfg.ConstructFitter(toas, model)
	chi2, err := f.FitTOAs(ctx)
	if err != nil {
		return nil, fmt.Errorf("pre-sampling fit: %w", err)
	}
	resids := f.Resids()
	logger.Info().Float64(log.FieldChi2, chi2).Int(log.FieldDof, resids.Dof).Msg("fit before sampling")

	resultsDir := cfg.ResultsDir()
	res, err := sampler.Sample(ctx, Data{Residuals: resids.Time, Errors: resids.Errors}, Options{
		NSamples: cfg.OutlierSamples(),
		NBurnin:  cfg.OutlierBurn(),
		Seed:     cfg.Outlier.Seed,
		OutDir:   resultsDir,
	})
	if err != nil {
		return nil, fmt.Errorf("%s sampler: %w", method, err)
	}
	if len(res.Pout) != toas.Len() {
		return nil, fmt.Errorf("%s sampler returned %d probabilities for %d TOAs", method, len(res.Pout), toas.Len())
	}

	out := &PoutResult{
		Method:    method,
		Pout:      res.Pout,
		Indices:   toas.Indices(),
		Threshold: cfg.ProbOutlier(),
		ChainFile: res.ChainFile,
	}
	flag := cfg.PoutFlag()
	orig := toas.Orig()
	for i, p := range res.Pout {
		orig[out.Indices[i]].Flags.Set(flag, strconv.FormatFloat(p, 'g', 8, 64))
		if p > out.Threshold {
			out.NOutliers++
		}
	}

	toas.Reset()
	out.TimFile = filepath.Join(resultsDir, cfg.OutfileBasename()+"_pout.tim")
	if err := toa.WriteTimFile(out.TimFile, toas, cfg.TOAKind()); err != nil {
		return nil, err
	}
	toas.ApplyCutSelect("resumption after writing pout tim")

	logger.Info().
		Int(log.FieldCount, out.NOutliers).
		Float64("threshold", out.Threshold).
		Str(log.FieldPath, out.TimFile).
		Msg("outlier probabilities written")
	return out, nil
}

// CutSummary reports what MakePoutCuts removed.
type CutSummary struct {
	// Outliers is the number of TOAs newly cut for their outlier
	// probability.
	Outliers int
	// MaxOut lists files whose remaining TOAs were cut because too many
	// of them were outliers. Always empty for wideband data.
	MaxOut []string
	DMX    dmx.Summary
}

// MakePoutCuts cuts TOAs whose outlier probability exceeds prob-outlier and
// rebuilds the DMX ranges. For narrowband data, files in which at least
// pct percent of TOAs were outliers are cut entirely and the DMX ranges
// are rebuilt again.
func MakePoutCuts(model *timing.Model, toas *toa.Table, cfg *config.Config, pct float64) (*CutSummary, error) {
	logger := log.WithComponent("outlier")

	counts, err := cfg.ApplyIgnore(toas, config.KeyProbOutlier)
	if err != nil {
		return nil, err
	}
	toas.ApplyCutSelect("outlier analysis, specified key")

	summary := &CutSummary{Outliers: counts[cfg.OutlierCutReason()]}
	if summary.DMX, err = dmx.Setup(model, toas, cfg.FRatio(), cfg.MaxDeltaT()); err != nil {
		return nil, err
	}

	if cfg.TOAKind() != config.TOATypeNB {
		logger.Info().Msg("Skipping maxout cuts (wideband).")
		return summary, nil
	}
	summary.MaxOut = cfg.CheckFileOutliers(toas, pct)
	if summary.DMX, err = dmx.Setup(model, toas, cfg.FRatio(), cfg.MaxDeltaT()); err != nil {
		return nil, err
	}
	return summary, nil
}
