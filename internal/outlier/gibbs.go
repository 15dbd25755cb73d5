// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NANOGrav Timing Working Group

package outlier

import (
	"context"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/nanograv/pint-pal/internal/log"
)

// Hyperparameters shared by the mixture samplers.
const (
	// Beta(thetaA, thetaB) prior on the outlier fraction.
	thetaA = 1.0
	thetaB = 20.0
	// Inverse-gamma prior on EFAC².
	efacA = 1.0
	efacB = 1.0
	// Inverse-gamma prior on the outlier width α², truncated to α ≥ 1.
	alphaA = 1.0
	alphaB = 25.0
	// Largest Student-t degrees of freedom considered.
	maxNu = 30
)

// Gibbs samples the outlier mixture model with a Gibbs sampler. Inliers
// follow a Student-t distribution written as a Gaussian scale mixture with
// per-TOA precision weights; outliers follow a Gaussian that is α times
// wider.
type Gibbs struct{}

// Name implements Sampler.
func (Gibbs) Name() string { return "gibbs" }

type gibbsState struct {
	efac, theta, alpha float64
	nu                 int
	lambda             []float64
	z                  []bool
}

// Sample implements Sampler.
func (g Gibbs) Sample(ctx context.Context, data Data, opts Options) (*Result, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	u, err := data.Normalized()
	if err != nil {
		return nil, err
	}
	n := len(u)
	rng, src := newRand(opts.Seed)
	logger := log.WithComponent("outlier").With().Str(log.FieldMethod, g.Name()).Logger()

	st := &gibbsState{
		efac:   1,
		theta:  0.01,
		alpha:  5,
		nu:     maxNu,
		lambda: make([]float64, n),
		z:      make([]bool, n),
	}
	for i := range st.lambda {
		st.lambda[i] = 1
	}

	pout := make([]float64, n)
	prob := make([]float64, n)
	chain := make([][]float64, 0, opts.NSamples)
	total := opts.NBurnin + opts.NSamples
	for iter := 0; iter < total; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		// Outlier indicators.
		nOut := 0
		for i, ui := range u {
			prob[i] = g.outlierProb(st, i, ui)
			st.z[i] = rng.Float64() < prob[i]
			if st.z[i] {
				nOut++
			}
		}

		// Student-t precision weights.
		nuHalf := float64(st.nu) / 2
		for i, ui := range u {
			shape, rate := nuHalf, nuHalf
			if !st.z[i] {
				shape += 0.5
				rate += ui * ui / (2 * st.efac * st.efac)
			}
			st.lambda[i] = distuv.Gamma{Alpha: shape, Beta: rate, Src: src}.Rand()
		}

		// EFAC.
		var ss float64
		for i, ui := range u {
			if st.z[i] {
				ss += ui * ui / (st.alpha * st.alpha)
			} else {
				ss += st.lambda[i] * ui * ui
			}
		}
		e2 := 1 / distuv.Gamma{Alpha: efacA + float64(n)/2, Beta: efacB + ss/2, Src: src}.Rand()
		st.efac = math.Sqrt(e2)

		// Outlier width.
		var so float64
		for i, ui := range u {
			if st.z[i] {
				so += ui * ui / e2
			}
		}
		st.alpha = g.drawAlpha(src, alphaA+float64(nOut)/2, alphaB+so/2)

		// Outlier fraction.
		st.theta = distuv.Beta{Alpha: thetaA + float64(nOut), Beta: thetaB + float64(n-nOut), Src: src}.Rand()

		// Degrees of freedom.
		st.nu = g.drawNu(rng, st.lambda)

		if iter < opts.NBurnin {
			continue
		}
		for i := range pout {
			pout[i] += prob[i]
		}
		chain = append(chain, []float64{st.efac, st.theta, st.alpha, float64(st.nu)})
	}

	for i := range pout {
		pout[i] /= float64(opts.NSamples)
	}

	params := []string{"efac", "theta", "alpha", "nu"}
	path, err := writeChain(opts.OutDir, g.Name(), params, chain)
	if err != nil {
		return nil, err
	}
	logger.Info().
		Int(log.FieldNTOAs, n).
		Int("samples", opts.NSamples).
		Int("burnin", opts.NBurnin).
		Msg("sampling complete")
	return &Result{Pout: pout, Params: params, Chain: chain, ChainFile: path}, nil
}

// outlierProb is the conditional probability that TOA i is an outlier.
func (Gibbs) outlierProb(st *gibbsState, i int, u float64) float64 {
	sIn := st.efac / math.Sqrt(st.lambda[i])
	sOut := st.alpha * st.efac
	lIn := math.Log1p(-st.theta) + logNormal(u, sIn)
	lOut := math.Log(st.theta) + logNormal(u, sOut)
	return math.Exp(lOut - logSumExp(lIn, lOut))
}

// drawAlpha samples α from its inverse-gamma conditional on α², truncated
// to α ≥ 1.
func (Gibbs) drawAlpha(src rand.Source, shape, rate float64) float64 {
	dist := distuv.Gamma{Alpha: shape, Beta: rate, Src: src}
	for try := 0; try < 100; try++ {
		if a2 := 1 / dist.Rand(); a2 >= 1 {
			return math.Sqrt(a2)
		}
	}
	return 1
}

// drawNu samples the Student-t degrees of freedom from its discrete
// conditional on 1..maxNu.
func (Gibbs) drawNu(rng *rand.Rand, lambda []float64) int {
	var sumLog, sum float64
	for _, l := range lambda {
		sumLog += math.Log(l)
		sum += l
	}
	n := float64(len(lambda))
	logp := make([]float64, maxNu)
	top := math.Inf(-1)
	for k := range logp {
		h := float64(k+1) / 2
		lg, _ := math.Lgamma(h)
		logp[k] = n*(h*math.Log(h)-lg) + (h-1)*sumLog - h*sum
		top = math.Max(top, logp[k])
	}
	var norm float64
	for k := range logp {
		logp[k] = math.Exp(logp[k] - top)
		norm += logp[k]
	}
	x := rng.Float64() * norm
	for k, w := range logp {
		x -= w
		if x <= 0 {
			return k + 1
		}
	}
	return maxNu
}

func logNormal(x, sigma float64) float64 {
	return -0.5*math.Log(2*math.Pi) - math.Log(sigma) - x*x/(2*sigma*sigma)
}

func logSumExp(a, b float64) float64 {
	if a < b {
		a, b = b, a
	}
	return a + math.Log1p(math.Exp(b-a))
}
