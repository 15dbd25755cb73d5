// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NANOGrav Timing Working Group

package outlier

import (
	"context"
	"math"

	"github.com/nanograv/pint-pal/internal/log"
)

const (
	hmcLeapfrogSteps = 20
	hmcInitialStep   = 0.02
	hmcTargetAccept  = 0.65
	hmcAdaptRate     = 0.1
	// Normal prior on log(α−1).
	hmcLogAlphaMean = 1.3862943611198906 // log 4
)

// HMC samples the outlier mixture model with Hamiltonian Monte Carlo over
// (log EFAC, logit θ, log(α−1)), with the per-TOA outlier indicators
// marginalised out. The leapfrog step size is tuned during burn-in.
type HMC struct{}

// Name implements Sampler.
func (HMC) Name() string { return "hmc" }

// mixture evaluates the marginalised log posterior at q.
type mixture struct {
	u []float64
	w []float64
}

func (m *mixture) unpack(q [3]float64) (efac, theta, alpha float64) {
	return math.Exp(q[0]), 1 / (1 + math.Exp(-q[1])), 1 + math.Exp(q[2])
}

// logPost returns the log posterior and its gradient, and leaves the
// outlier responsibilities of each TOA in m.w.
func (m *mixture) logPost(q [3]float64) (float64, [3]float64) {
	efac, theta, alpha := m.unpack(q)
	sIn := efac
	sOut := alpha * efac
	logTheta := math.Log(theta)
	log1mTheta := math.Log1p(-theta)

	var lp float64
	var grad [3]float64
	for i, u := range m.u {
		lIn := log1mTheta + logNormal(u, sIn)
		lOut := logTheta + logNormal(u, sOut)
		l := logSumExp(lIn, lOut)
		w := math.Exp(lOut - l)
		m.w[i] = w
		lp += l

		gIn := u*u/(sIn*sIn) - 1
		gOut := u*u/(sOut*sOut) - 1
		grad[0] += (1-w)*gIn + w*gOut
		grad[1] += w - theta
		grad[2] += w * gOut * (alpha - 1) / alpha
	}

	lp += -q[0] * q[0] / 2
	grad[0] -= q[0]
	lp += thetaA*logTheta + thetaB*log1mTheta
	grad[1] += thetaA - (thetaA+thetaB)*theta
	d := q[2] - hmcLogAlphaMean
	lp += -d * d / 2
	grad[2] -= d
	return lp, grad
}

// Sample implements Sampler.
func (h HMC) Sample(ctx context.Context, data Data, opts Options) (*Result, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	u, err := data.Normalized()
	if err != nil {
		return nil, err
	}
	n := len(u)
	rng, _ := newRand(opts.Seed)
	logger := log.WithComponent("outlier").With().Str(log.FieldMethod, h.Name()).Logger()

	m := &mixture{u: u, w: make([]float64, n)}
	q := [3]float64{0, math.Log(0.01 / 0.99), math.Log(4)}
	lp, grad := m.logPost(q)
	w := append([]float64(nil), m.w...)

	eps := hmcInitialStep
	accepted := 0
	pout := make([]float64, n)
	chain := make([][]float64, 0, opts.NSamples)
	total := opts.NBurnin + opts.NSamples
	for iter := 0; iter < total; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var p [3]float64
		kinetic := 0.0
		for k := range p {
			p[k] = rng.NormFloat64()
			kinetic += p[k] * p[k] / 2
		}

		qNew, gNew := q, grad
		lpNew := lp
		for step := 0; step < hmcLeapfrogSteps; step++ {
			for k := range p {
				p[k] += eps / 2 * gNew[k]
				qNew[k] += eps * p[k]
			}
			lpNew, gNew = m.logPost(qNew)
			for k := range p {
				p[k] += eps / 2 * gNew[k]
			}
		}
		kineticNew := 0.0
		for k := range p {
			kineticNew += p[k] * p[k] / 2
		}

		logAccept := (lpNew - kineticNew) - (lp - kinetic)
		acceptProb := 0.0
		if !math.IsNaN(logAccept) {
			acceptProb = math.Min(1, math.Exp(logAccept))
		}
		if rng.Float64() < acceptProb {
			q, lp, grad = qNew, lpNew, gNew
			copy(w, m.w)
			if iter >= opts.NBurnin {
				accepted++
			}
		}

		if iter < opts.NBurnin {
			eps *= math.Exp(hmcAdaptRate * (acceptProb - hmcTargetAccept))
			eps = math.Min(math.Max(eps, 1e-4), 1)
			continue
		}
		for i := range pout {
			pout[i] += w[i]
		}
		efac, theta, alpha := m.unpack(q)
		chain = append(chain, []float64{efac, theta, alpha})
	}

	for i := range pout {
		pout[i] /= float64(opts.NSamples)
	}

	params := []string{"efac", "theta", "alpha"}
	path, err := writeChain(opts.OutDir, h.Name(), params, chain)
	if err != nil {
		return nil, err
	}
	logger.Info().
		Int(log.FieldNTOAs, n).
		Int("samples", opts.NSamples).
		Int("burnin", opts.NBurnin).
		Float64("step", eps).
		Float64("acceptance", float64(accepted)/float64(opts.NSamples)).
		Msg("sampling complete")
	return &Result{Pout: pout, Params: params, Chain: chain, ChainFile: path}, nil
}
