// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NANOGrav Timing Working Group

// Package session loads a pulsar's configuration, timing model and TOAs for
// CLI commands.
package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nanograv/pint-pal/internal/config"
	"github.com/nanograv/pint-pal/internal/log"
	"github.com/nanograv/pint-pal/internal/timing"
	"github.com/nanograv/pint-pal/internal/toa"
)

var (
	// ErrNoConfig indicates the configuration file does not exist.
	ErrNoConfig = errors.New("timing configuration not found")

	// ErrInvalidConfig indicates the config file exists but is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrParFile indicates the par file could not be read.
	ErrParFile = errors.New("cannot read par file")

	// ErrTimFile indicates a tim file could not be read.
	ErrTimFile = errors.New("cannot read tim files")
)

// ConfigFileName is the configuration file looked up in the current
// directory when no path is given.
const ConfigFileName = "pintpal.yaml"

// initialCuts are the ignore keys applied on load. Outlier probabilities
// are cut explicitly by the outlier commands.
var initialCuts = []string{
	config.KeyMJDStart,
	config.KeyMJDEnd,
	config.KeyBadFile,
	config.KeyBadTOA,
	config.KeyBadRange,
}

// contextKey is used to store Context in context.Context.
type contextKey struct{}

// Context holds the loaded configuration, model and TOAs of one pulsar.
type Context struct {
	Config *config.Config
	Model  *timing.Model
	// TOAs has the initial cuts applied and only uncut TOAs selected.
	TOAs *toa.Table
}

// Load reads the configuration at path (ConfigFileName in the current
// directory when empty), then its par and tim files, applies the initial
// cuts and returns a new context.Context with the Context stored in it.
func Load(ctx context.Context, path string) (context.Context, error) {
	s, err := Open(path)
	if err != nil {
		return nil, err
	}
	return context.WithValue(ctx, contextKey{}, s), nil
}

// Open loads a Context without storing it anywhere.
func Open(path string) (*Context, error) {
	if path == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, ConfigFileName)
	}
	if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
		return nil, fmt.Errorf("%w: %s", ErrNoConfig, path)
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if validateErr := cfg.Validate(); validateErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, validateErr)
	}

	model, err := timing.ReadParFile(cfg.ParPath())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParFile, err)
	}

	toas, err := toa.ReadTimFiles(cfg.TimPaths())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTimFile, err)
	}

	if _, err := cfg.ApplyIgnore(toas, initialCuts...); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	toas.ApplyCutSelect("initial cuts")

	logger := log.WithComponent("session")
	logger.Info().
		Str(log.FieldPulsar, model.PSR).
		Str(log.FieldPath, path).
		Int(log.FieldNTOAs, toas.Len()).
		Msg("loaded pulsar")

	return &Context{Config: cfg, Model: model, TOAs: toas}, nil
}

// From extracts the Context from a context.Context.
// Returns nil if no Context is stored.
func From(ctx context.Context) *Context {
	if s, ok := ctx.Value(contextKey{}).(*Context); ok {
		return s
	}
	return nil
}
