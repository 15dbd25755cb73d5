// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NANOGrav Timing Working Group

package config

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/nanograv/pint-pal/internal/fitter"
	"github.com/nanograv/pint-pal/internal/log"
	"github.com/nanograv/pint-pal/internal/timing"
	"github.com/nanograv/pint-pal/internal/toa"
)

// Ignore keys understood by ApplyIgnore.
const (
	KeyMJDStart    = "mjd-start"
	KeyMJDEnd      = "mjd-end"
	KeyBadFile     = "bad-file"
	KeyBadTOA      = "bad-toa"
	KeyBadRange    = "bad-range"
	KeyProbOutlier = "prob-outlier"
)

// Cut reasons written by ApplyIgnore and CheckFileOutliers.
const (
	CutMJDStart = "mjdstart"
	CutMJDEnd   = "mjdend"
	CutBadFile  = "badfile"
	CutBadTOA   = "badtoa"
	CutBadRange = "badrange"
	CutMaxOut   = "maxout"
)

var allIgnoreKeys = []string{KeyMJDStart, KeyMJDEnd, KeyBadFile, KeyBadTOA, KeyBadRange, KeyProbOutlier}

// OutlierCutReason returns the -cut value used for TOAs whose outlier
// probability exceeds the prob-outlier threshold ("outlier10" for 0.1).
func (c *Config) OutlierCutReason() string {
	return "outlier" + strconv.Itoa(int(math.Round(c.ProbOutlier()*100)))
}

// ApplyIgnore flags TOAs of the original table according to the ignore
// block. Only the given keys are applied; with no keys every key is. The
// selection is not changed; call ApplyCutSelect afterwards. It returns the
// number of newly cut TOAs per reason.
func (c *Config) ApplyIgnore(toas *toa.Table, keys ...string) (map[string]int, error) {
	if len(keys) == 0 {
		keys = allIgnoreKeys
	}
	logger := log.WithComponent("config")
	orig := toas.Orig()
	counts := make(map[string]int)

	cutWhere := func(reason string, pred func(i int, t *toa.TOA) bool) {
		var idx []int
		for i := range orig {
			if pred(i, &orig[i]) {
				idx = append(idx, i)
			}
		}
		if n := toas.ApplyCutFlag(idx, reason); n > 0 {
			counts[reason] += n
		}
	}

	for _, key := range keys {
		switch key {
		case KeyMJDStart:
			if start := c.Ignore.MJDStart; start > 0 {
				cutWhere(CutMJDStart, func(_ int, t *toa.TOA) bool { return t.MJD.Float() < start })
			}
		case KeyMJDEnd:
			if end := c.Ignore.MJDEnd; end > 0 {
				cutWhere(CutMJDEnd, func(_ int, t *toa.TOA) bool { return t.MJD.Float() > end })
			}
		case KeyBadFile:
			bad := make(map[string]bool, len(c.Ignore.BadFile))
			for _, f := range c.Ignore.BadFile {
				bad[f] = true
			}
			cutWhere(CutBadFile, func(_ int, t *toa.TOA) bool { return bad[t.Name] })
		case KeyBadTOA:
			bad := make(map[int]bool)
			for _, i := range c.badTOAIndices(orig) {
				bad[i] = true
			}
			cutWhere(CutBadTOA, func(i int, _ *toa.TOA) bool { return bad[i] })
		case KeyBadRange:
			ranges := c.Ignore.BadRange
			cutWhere(CutBadRange, func(_ int, t *toa.TOA) bool {
				mjd := t.MJD.Float()
				for _, r := range ranges {
					if len(r) == 2 && mjd >= r[0] && mjd <= r[1] {
						return true
					}
				}
				return false
			})
		case KeyProbOutlier:
			if err := c.cutOutliers(orig, cutWhere); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("unknown ignore key %q", key)
		}
	}

	for reason, n := range counts {
		logger.Info().Str(log.FieldReason, reason).Int(log.FieldCount, n).Msg("flagged TOAs")
	}
	return counts, nil
}

func (c *Config) cutOutliers(orig []toa.TOA, cutWhere func(string, func(int, *toa.TOA) bool)) error {
	threshold := c.ProbOutlier()
	flag := c.PoutFlag()
	var parseErr error
	missing := 0
	cutWhere(c.OutlierCutReason(), func(_ int, t *toa.TOA) bool {
		raw, ok := t.Flags.Get(flag)
		if !ok {
			missing++
			return false
		}
		p, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			if parseErr == nil {
				parseErr = fmt.Errorf("TOA %s: invalid -%s value %q", t.Name, flag, raw)
			}
			return false
		}
		return p > threshold
	})
	if missing > 0 {
		logger := log.WithComponent("config")
		logger.Warn().Int(log.FieldCount, missing).Str("flag", flag).Msg("TOAs without outlier probability")
	}
	return parseErr
}

// badTOAIndices maps [name, index] entries to original-table indices.
func (c *Config) badTOAIndices(orig []toa.TOA) []int {
	if len(c.Ignore.BadTOA) == 0 {
		return nil
	}
	byName := make(map[string][]int)
	for i := range orig {
		byName[orig[i].Name] = append(byName[orig[i].Name], i)
	}
	var out []int
	for _, b := range c.Ignore.BadTOA {
		if idx := byName[b.Name]; b.Index < len(idx) {
			out = append(out, idx[b.Index])
		}
	}
	return out
}

// CheckFileOutliers cuts the remaining TOAs of every file in which at least
// pct percent of the considered TOAs were flagged as outliers, then
// re-applies the cut selection. Considered TOAs are those not cut, or cut
// as outliers. It returns the affected file names.
func (c *Config) CheckFileOutliers(toas *toa.Table, pct float64) []string {
	outlierReason := c.OutlierCutReason()
	type tally struct {
		considered, outliers int
		remaining            []int
	}
	files := make(map[string]*tally)
	orig := toas.Orig()
	for i := range orig {
		t := &orig[i]
		ft, ok := files[t.Name]
		if !ok {
			ft = &tally{}
			files[t.Name] = ft
		}
		reason, cut := t.CutReason()
		switch {
		case !cut:
			ft.considered++
			ft.remaining = append(ft.remaining, i)
		case reason == outlierReason:
			ft.considered++
			ft.outliers++
		}
	}

	var maxout []string
	for name, ft := range files {
		if ft.considered == 0 || ft.outliers == 0 {
			continue
		}
		if 100*float64(ft.outliers)/float64(ft.considered) >= pct {
			toas.ApplyCutFlag(ft.remaining, CutMaxOut)
			maxout = append(maxout, name)
		}
	}
	sort.Strings(maxout)

	logger := log.WithComponent("config")
	logger.Info().Int(log.FieldCount, len(maxout)).Float64("pct", pct).Msg("maxout file cuts")
	toas.ApplyCutSelect("maxout")
	return maxout
}

// ConstructFitter returns the fitter used for this pulsar.
func (c *Config) ConstructFitter(toas *toa.Table, model *timing.Model) *fitter.Fitter {
	return fitter.New(toas, model)
}
