// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NANOGrav Timing Working Group

// Package outlier estimates per-TOA outlier probabilities and removes
// outlying TOAs and epochs from a pulsar's data set.
package outlier

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/google/renameio/v2"
)

// ErrUnknownMethod is returned when no sampler is registered for a method.
var ErrUnknownMethod = errors.New("unknown outlier method")

// Data holds post-fit residuals and their scaled uncertainties, both in
// seconds.
type Data struct {
	Residuals []float64
	Errors    []float64
}

// Normalized returns residuals divided by their uncertainties.
func (d Data) Normalized() ([]float64, error) {
	if len(d.Residuals) == 0 {
		return nil, errors.New("no residuals to sample")
	}
	if len(d.Residuals) != len(d.Errors) {
		return nil, fmt.Errorf("%d residuals but %d uncertainties", len(d.Residuals), len(d.Errors))
	}
	u := make([]float64, len(d.Residuals))
	for i, r := range d.Residuals {
		if d.Errors[i] <= 0 {
			return nil, fmt.Errorf("residual %d has non-positive uncertainty", i)
		}
		u[i] = r / d.Errors[i]
	}
	return u, nil
}

// Options controls a sampler run.
type Options struct {
	// NSamples is the number of retained iterations.
	NSamples int
	// NBurnin iterations run first and are discarded.
	NBurnin int
	Seed    uint64
	// OutDir receives the chain file; empty skips writing it.
	OutDir string
}

// Result is the outcome of a sampler run.
type Result struct {
	// Pout is the posterior outlier probability of each TOA.
	Pout []float64
	// Params names the columns of Chain.
	Params []string
	Chain  [][]float64
	// ChainFile is the written chain path, if any.
	ChainFile string
}

// Sampler computes outlier probabilities for a set of residuals.
type Sampler interface {
	// Name returns the method identifier used in config files and flags.
	Name() string

	// Sample draws from the outlier mixture posterior.
	Sample(ctx context.Context, data Data, opts Options) (*Result, error)
}

// Registry maps method names to samplers.
type Registry map[string]Sampler

// DefaultRegistry returns a registry with every built-in sampler.
func DefaultRegistry() Registry {
	r := make(Registry)
	r.Register(Gibbs{})
	r.Register(HMC{})
	return r
}

// Register adds a sampler to the registry.
func (r Registry) Register(s Sampler) {
	r[s.Name()] = s
}

// Get retrieves a sampler by name.
func (r Registry) Get(name string) (Sampler, error) {
	s, ok := r[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s (available: %s)", ErrUnknownMethod, name, strings.Join(r.Available(), ", "))
	}
	return s, nil
}

// Available returns all registered method names, sorted.
func (r Registry) Available() []string {
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (o Options) validate() error {
	if o.NSamples <= 0 {
		return fmt.Errorf("number of samples must be positive, got %d", o.NSamples)
	}
	if o.NBurnin < 0 {
		return fmt.Errorf("number of burn-in samples must not be negative, got %d", o.NBurnin)
	}
	return nil
}

func newRand(seed uint64) (*rand.Rand, *rand.PCG) {
	src := rand.NewPCG(seed, seed^0x5851f42d4c957f2d)
	return rand.New(src), src
}

// writeChain writes the retained samples as whitespace-separated columns.
func writeChain(dir, method string, params []string, chain [][]float64) (string, error) {
	if dir == "" {
		return "", nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating %s: %w", dir, err)
	}

	var buf bytes.Buffer
	buf.WriteString("# " + strings.Join(params, " ") + "\n")
	for _, row := range chain {
		for j, v := range row {
			if j > 0 {
				buf.WriteByte(' ')
			}
			buf.WriteString(strconv.FormatFloat(v, 'e', 8, 64))
		}
		buf.WriteByte('\n')
	}

	path := filepath.Join(dir, "chain_"+method+".txt")
	if err := renameio.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	return path, nil
}
