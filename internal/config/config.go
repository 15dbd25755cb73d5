// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NANOGrav Timing Working Group

// Package config handles the per-pulsar timing configuration file.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/google/renameio/v2"
	"gopkg.in/yaml.v3"
)

// CurrentConfigVersion is the current version of the config file format.
const CurrentConfigVersion = 1

// TOA types.
const (
	TOATypeNB = "NB"
	TOATypeWB = "WB"
)

// Defaults applied by the accessors when a field is unset.
const (
	DefaultOutlierMethod  = "gibbs"
	DefaultOutlierSamples = 10000
	DefaultOutlierBurn    = 1000
	DefaultFTestThreshold = 1e-6
	DefaultMaxOutlierPct  = 8.0
	DefaultProbOutlier    = 0.1
	DefaultFRatio         = 1.1
	DefaultMaxDeltaT      = 6.5
	DefaultOutputDir      = "."
)

// Config represents a timing configuration file.
type Config struct {
	Version   int           `yaml:"version"`
	Source    string        `yaml:"source"`
	TOAType   string        `yaml:"toa-type"`
	ParFile   string        `yaml:"par-file"`
	TimFiles  []string      `yaml:"tim-files"`
	OutputDir string        `yaml:"output-dir,omitempty"`
	DMX       DMXConfig     `yaml:"dmx,omitempty"`
	Ignore    IgnoreConfig  `yaml:"ignore,omitempty"`
	Outlier   OutlierConfig `yaml:"outlier,omitempty"`

	// dir is the directory of the loaded file; relative paths resolve
	// against it.
	dir string
}

// DMXConfig controls DMX range construction.
type DMXConfig struct {
	// FRatio is the minimum max/min frequency ratio of a DMX bin.
	FRatio float64 `yaml:"fratio,omitempty"`
	// MaxDeltaT is the maximum DMX bin width in days.
	MaxDeltaT float64 `yaml:"max-delta-t,omitempty"`
}

// IgnoreConfig lists TOAs to cut.
type IgnoreConfig struct {
	MJDStart    float64     `yaml:"mjd-start,omitempty"`
	MJDEnd      float64     `yaml:"mjd-end,omitempty"`
	BadFile     []string    `yaml:"bad-file,omitempty"`
	BadTOA      []BadTOA    `yaml:"bad-toa,omitempty"`
	BadRange    [][]float64 `yaml:"bad-range,omitempty"`
	ProbOutlier float64     `yaml:"prob-outlier,omitempty"`
}

// BadTOA identifies one TOA by file name and its position within the file.
type BadTOA struct {
	Name  string
	Index int
}

// UnmarshalYAML decodes a [name, index] pair.
func (b *BadTOA) UnmarshalYAML(node *yaml.Node) error {
	var pair []any
	if err := node.Decode(&pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("bad-toa entry must be [name, index], got %d items", len(pair))
	}
	name, ok := pair[0].(string)
	if !ok {
		return fmt.Errorf("bad-toa name must be a string")
	}
	idx, ok := pair[1].(int)
	if !ok || idx < 0 {
		return fmt.Errorf("bad-toa index must be a non-negative integer")
	}
	b.Name, b.Index = name, idx
	return nil
}

// MarshalYAML encodes the entry as a flow-style [name, index] pair.
func (b BadTOA) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.SequenceNode, Style: yaml.FlowStyle}
	node.Content = []*yaml.Node{
		{Kind: yaml.ScalarNode, Value: b.Name},
		{Kind: yaml.ScalarNode, Tag: "!!int", Value: fmt.Sprint(b.Index)},
	}
	return node, nil
}

// OutlierConfig is the outlier-analysis block.
type OutlierConfig struct {
	Method         string  `yaml:"method,omitempty"`
	NSamples       *int    `yaml:"n-samples,omitempty"`
	NBurnin        *int    `yaml:"n-burnin,omitempty"`
	Seed           uint64  `yaml:"seed,omitempty"`
	FTestThreshold float64 `yaml:"ftest-threshold,omitempty"`
	MaxOutlierPct  float64 `yaml:"max-outlier-pct,omitempty"`
	Workers        int     `yaml:"workers,omitempty"`
}

// Load reads a Config from a file path. The document is checked against
// the configuration schema before it is decoded.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is provided by caller
	if err != nil {
		return nil, err
	}
	if err := ValidateSchema(data); err != nil {
		return nil, err
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		return nil, err
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	cfg.dir = filepath.Dir(abs)
	return &cfg, nil
}

// Save atomically writes the Config to a file path.
func (c *Config) Save(path string) error {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	return renameio.WriteFile(path, buf.Bytes(), 0o644)
}

// Validate checks the configuration for required fields and valid values.
func (c *Config) Validate() error {
	var errs []error
	if c.Version != CurrentConfigVersion {
		errs = append(errs, errors.New("unsupported config version"))
	}
	if c.Source == "" {
		errs = append(errs, errors.New("source is required"))
	}
	if c.TOAType != TOATypeNB && c.TOAType != TOATypeWB {
		errs = append(errs, fmt.Errorf("toa-type must be %s or %s", TOATypeNB, TOATypeWB))
	}
	if c.ParFile == "" {
		errs = append(errs, errors.New("par-file is required"))
	}
	if len(c.TimFiles) == 0 {
		errs = append(errs, errors.New("at least one tim file is required"))
	}
	if c.Ignore.MJDStart > 0 && c.Ignore.MJDEnd > 0 && c.Ignore.MJDStart >= c.Ignore.MJDEnd {
		errs = append(errs, errors.New("ignore mjd-start must be before mjd-end"))
	}
	for _, r := range c.Ignore.BadRange {
		if len(r) != 2 || r[0] >= r[1] {
			errs = append(errs, fmt.Errorf("bad-range %v must be [start, end] with start < end", r))
		}
	}
	if p := c.Ignore.ProbOutlier; p < 0 || p > 1 {
		errs = append(errs, errors.New("prob-outlier must be between 0 and 1"))
	}
	if n := c.Outlier.NBurnin; n != nil && *n < 0 {
		errs = append(errs, errors.New("outlier sample counts must not be negative"))
	} else if n := c.Outlier.NSamples; n != nil && *n < 0 {
		errs = append(errs, errors.New("outlier sample counts must not be negative"))
	}
	return errors.Join(errs...)
}

// Dir returns the directory relative paths are resolved against.
func (c *Config) Dir() string {
	if c.dir == "" {
		return "."
	}
	return c.dir
}

// SetDir overrides the directory relative paths are resolved against.
func (c *Config) SetDir(dir string) {
	c.dir = dir
}

func (c *Config) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Dir(), p)
}

// ParPath returns the resolved par file path.
func (c *Config) ParPath() string {
	return c.resolve(c.ParFile)
}

// TimPaths returns the resolved tim file paths.
func (c *Config) TimPaths() []string {
	out := make([]string, len(c.TimFiles))
	for i, p := range c.TimFiles {
		out[i] = c.resolve(p)
	}
	return out
}

// OutputPath returns the resolved output directory.
func (c *Config) OutputPath() string {
	if c.OutputDir == "" {
		return c.resolve(DefaultOutputDir)
	}
	return c.resolve(c.OutputDir)
}

// TOAKind returns the TOA type ("NB" or "WB").
func (c *Config) TOAKind() string {
	return strings.ToUpper(c.TOAType)
}

// OutfileBasename returns "<source>.<nb|wb>".
func (c *Config) OutfileBasename() string {
	return c.Source + "." + strings.ToLower(c.TOAKind())
}

// ResultsDir returns the outlier results directory for this pulsar.
func (c *Config) ResultsDir() string {
	return filepath.Join(c.OutputPath(), "outlier", c.OutfileBasename())
}

// OutlierMethod returns the configured sampler name.
func (c *Config) OutlierMethod() string {
	if c.Outlier.Method == "" {
		return DefaultOutlierMethod
	}
	return c.Outlier.Method
}

// OutlierSamples returns the number of sampler iterations.
func (c *Config) OutlierSamples() int {
	if c.Outlier.NSamples == nil {
		return DefaultOutlierSamples
	}
	return *c.Outlier.NSamples
}

// OutlierBurn returns the number of burn-in iterations. An explicit zero
// disables burn-in.
func (c *Config) OutlierBurn() int {
	if c.Outlier.NBurnin == nil {
		return DefaultOutlierBurn
	}
	return *c.Outlier.NBurnin
}

// FTestThreshold returns the epoch-drop F-test threshold.
func (c *Config) FTestThreshold() float64 {
	if c.Outlier.FTestThreshold == 0 {
		return DefaultFTestThreshold
	}
	return c.Outlier.FTestThreshold
}

// MaxOutlierPct returns the per-file outlier percentage that triggers a
// maxout cut.
func (c *Config) MaxOutlierPct() float64 {
	if c.Outlier.MaxOutlierPct == 0 {
		return DefaultMaxOutlierPct
	}
	return c.Outlier.MaxOutlierPct
}

// Workers returns the number of concurrent refits for epoch analysis.
func (c *Config) Workers() int {
	if c.Outlier.Workers <= 0 {
		return runtime.GOMAXPROCS(0)
	}
	return c.Outlier.Workers
}

// FRatio returns the minimum DMX bin frequency ratio.
func (c *Config) FRatio() float64 {
	if c.DMX.FRatio == 0 {
		return DefaultFRatio
	}
	return c.DMX.FRatio
}

// MaxDeltaT returns the maximum DMX bin width in days.
func (c *Config) MaxDeltaT() float64 {
	if c.DMX.MaxDeltaT == 0 {
		return DefaultMaxDeltaT
	}
	return c.DMX.MaxDeltaT
}

// ProbOutlier returns the outlier probability above which TOAs are cut.
func (c *Config) ProbOutlier() float64 {
	if c.Ignore.ProbOutlier == 0 {
		return DefaultProbOutlier
	}
	return c.Ignore.ProbOutlier
}

// PoutFlag returns the TOA flag holding outlier probabilities for the
// configured method.
func (c *Config) PoutFlag() string {
	return "pout_" + c.OutlierMethod()
}

// toJSON converts a YAML document to its JSON equivalent for schema
// validation.
func toJSON(data []byte) (any, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("config is not representable as JSON: %w", err)
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
