// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NANOGrav Timing Working Group

package commands

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nanograv/pint-pal/internal/config"
	"github.com/nanograv/pint-pal/internal/outlier"
	"github.com/nanograv/pint-pal/internal/session"
	"github.com/nanograv/pint-pal/internal/testutil"
	"github.com/nanograv/pint-pal/internal/timing"
	"github.com/nanograv/pint-pal/internal/toa"
)

func ptr[T any](v T) *T { return &v }

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd(outlier.DefaultRegistry())
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

// writePulsar writes a simulated pulsar and its configuration to a
// temporary directory and returns the configuration path.
func writePulsar(t *testing.T, opts testutil.SimOptions) string {
	t.Helper()
	dir := t.TempDir()
	sim := testutil.Simulate(opts)
	require.NoError(t, timing.WriteParFile(filepath.Join(dir, "J1234+5678.par"), sim.Model))
	require.NoError(t, toa.WriteTimFile(filepath.Join(dir, "tim", "J1234+5678.tim"), sim.TOAs, config.TOATypeNB))

	cfg := config.Config{
		Version:  config.CurrentConfigVersion,
		Source:   "J1234+5678",
		TOAType:  config.TOATypeNB,
		ParFile:  "J1234+5678.par",
		TimFiles: []string{"tim/J1234+5678.tim"},
		Outlier: config.OutlierConfig{
			Method:   "hmc",
			NSamples: ptr(200),
			NBurnin:  ptr(100),
			Seed:     1,
			Workers:  2,
		},
	}
	path := filepath.Join(dir, session.ConfigFileName)
	require.NoError(t, cfg.Save(path))
	return path
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "pintpal version")

	out, err = execute(t, "version", "--metadata")
	require.NoError(t, err)
	assert.Contains(t, out, "pint_pal")
	assert.Contains(t, out, "Apache-2.0")
	assert.Contains(t, out, ">= 1.24")
}

func TestInitCmd(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{
			name: "non-interactive",
			args: []string{"--source", "J1909-3744", "--par", "J1909-3744.par", "--tim", "a.tim", "--tim", "b.tim", "--method", "hmc"},
		},
		{
			name:    "missing tim",
			args:    []string{"--source", "J1909-3744", "--par", "J1909-3744.par"},
			wantErr: "requires --source, --par and --tim",
		},
		{
			name:    "unknown method",
			args:    []string{"--source", "J1909-3744", "--par", "p.par", "--tim", "a.tim", "--method", "emcee"},
			wantErr: "unknown outlier method",
		},
		{
			name:    "bad toa type",
			args:    []string{"--source", "J1909-3744", "--par", "p.par", "--tim", "a.tim", "--toa-type", "XB"},
			wantErr: "toa-type",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			args := append([]string{"init", "--non-interactive", "--dir", dir}, tt.args...)
			out, err := execute(t, args...)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.NoFileExists(t, filepath.Join(dir, session.ConfigFileName))
				return
			}
			require.NoError(t, err)
			assert.Contains(t, out, "Initialization completed")

			cfg, err := config.Load(filepath.Join(dir, session.ConfigFileName))
			require.NoError(t, err)
			assert.Equal(t, "J1909-3744", cfg.Source)
			assert.Equal(t, []string{"a.tim", "b.tim"}, cfg.TimFiles)
			assert.Equal(t, "hmc", cfg.OutlierMethod())
		})
	}
}

func TestInitCmd_AlreadyExists(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, session.ConfigFileName), []byte("version: 1\n"), 0o600))

	_, err := execute(t, "init", "--non-interactive", "--dir", dir, "--source", "J1909-3744", "--par", "p.par", "--tim", "a.tim")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestFitCmd(t *testing.T) {
	path := writePulsar(t, testutil.SimOptions{Seed: 41, Epochs: 8})
	parOut := filepath.Join(t.TempDir(), "fit.par")

	out, err := execute(t, "fit", "-c", path, "--write-par", parOut)
	require.NoError(t, err)
	assert.Contains(t, out, "F0")
	assert.Contains(t, out, "DMX_0008")
	assert.Contains(t, out, "Reduced chi2")

	m, err := timing.ReadParFile(parOut)
	require.NoError(t, err)
	assert.Equal(t, "J1234+5678", m.PSR)
	assert.Len(t, m.DMX, 8)
}

func TestFitCmd_NoConfig(t *testing.T) {
	_, err := execute(t, "fit", "-c", filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorIs(t, err, session.ErrNoConfig)
}

func TestDMXCmd(t *testing.T) {
	path := writePulsar(t, testutil.SimOptions{Seed: 42, Epochs: 6, NoDMX: true})
	parOut := filepath.Join(t.TempDir(), "dmx.par")

	out, err := execute(t, "dmx", "-c", path, "--write-par", parOut)
	require.NoError(t, err)
	assert.Contains(t, out, "DMX_0006")
	assert.Contains(t, out, "Ranges added")

	m, err := timing.ReadParFile(parOut)
	require.NoError(t, err)
	assert.Len(t, m.DMX, 6)
	assert.False(t, m.DM.Free)
}

func TestOutlierCmds(t *testing.T) {
	path := writePulsar(t, testutil.SimOptions{
		Seed:     43,
		Epochs:   8,
		NoDMX:    true,
		Outliers: map[int]float64{9: 50},
	})
	dir := filepath.Dir(path)
	results := filepath.Join(dir, "outlier", "J1234+5678.nb")

	_, err := execute(t, "outlier", "cuts", "-c", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "outlier pout")

	out, err := execute(t, "outlier", "pout", "-c", path, "--method", "gibbs")
	require.NoError(t, err)
	assert.Contains(t, out, "gibbs")
	assert.FileExists(t, filepath.Join(results, "J1234+5678.nb_pout.tim"))
	assert.FileExists(t, filepath.Join(results, "chain_gibbs.txt"))

	// The pout run above used gibbs; point the cuts at its flag.
	cfg, err := config.Load(path)
	require.NoError(t, err)
	cfg.Outlier.Method = "gibbs"
	require.NoError(t, cfg.Save(path))

	cutTim := filepath.Join(dir, "cut.tim")
	out, err = execute(t, "outlier", "cuts", "-c", path, "--write-tim", cutTim)
	require.NoError(t, err)
	assert.Contains(t, out, "Outliers cut")

	written, err := toa.ReadTim(cutTim)
	require.NoError(t, err)
	reason, cut := written[9].CutReason()
	require.True(t, cut)
	assert.Equal(t, "outlier10", reason)

	out, err = execute(t, "outlier", "epochs", "-c", path, "--tim", cutTim, "--all")
	require.NoError(t, err)
	assert.Contains(t, out, "EPOCH")
	assert.Contains(t, out, "guppi_")
	assert.Contains(t, out, "Epochs tested")
	assert.FileExists(t, filepath.Join(results, "epochdrop.txt"))
	assert.FileExists(t, filepath.Join(results, "J1234+5678.nb_excise.tim"))
}

func TestOutlierRunCmd(t *testing.T) {
	path := writePulsar(t, testutil.SimOptions{Seed: 44, Epochs: 6})
	results := filepath.Join(filepath.Dir(path), "outlier", "J1234+5678.nb")

	out, err := execute(t, "outlier", "run", "-c", path, "--samples", "100", "--burnin", "50")
	require.NoError(t, err)
	assert.Contains(t, out, "Outlier analysis complete")
	assert.FileExists(t, filepath.Join(results, "chain_hmc.txt"))
	assert.FileExists(t, filepath.Join(results, "epochdrop.txt"))

	m, err := timing.ReadParFile(filepath.Join(results, "J1234+5678.nb_outlier.par"))
	require.NoError(t, err)
	assert.Equal(t, "J1234+5678", m.PSR)
}

func TestRootCmd_InvalidLogLevel(t *testing.T) {
	_, err := execute(t, "version", "--log-level", "loud")
	require.Error(t, err)
}

func TestSchemaCmd(t *testing.T) {
	out, err := execute(t, "schema")
	require.NoError(t, err)
	assert.Contains(t, out, `"tim-files"`)
	assert.NoError(t, config.ValidateSchema([]byte("version: 1\nsource: J0000+0000\ntoa-type: NB\npar-file: a.par\ntim-files: [a.tim]\n")))

	out, err = execute(t, "schema", "--format", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "prob-outlier:")

	_, err = execute(t, "schema", "--format", "toml")
	require.Error(t, err)
}

func TestApplyPoutOverrides(t *testing.T) {
	tests := []struct {
		name        string
		args        []string
		wantSamples int
		wantBurn    int
	}{
		{name: "config values", wantSamples: 200, wantBurn: 100},
		{name: "zero burn-in", args: []string{"--burnin", "0"}, wantSamples: 200, wantBurn: 0},
		{name: "samples", args: []string{"--samples", "50"}, wantSamples: 50, wantBurn: 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := &cobra.Command{Use: "pout"}
			opts := &poutOptions{}
			addPoutFlags(cmd, opts)
			require.NoError(t, cmd.ParseFlags(tt.args))

			s := &session.Context{Config: &config.Config{
				Outlier: config.OutlierConfig{NSamples: ptr(200), NBurnin: ptr(100)},
			}}
			applyPoutOverrides(cmd, s, opts)
			assert.Equal(t, tt.wantSamples, s.Config.OutlierSamples())
			assert.Equal(t, tt.wantBurn, s.Config.OutlierBurn())
		})
	}
}
