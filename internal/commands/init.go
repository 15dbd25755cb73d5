// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NANOGrav Timing Working Group

package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nanograv/pint-pal/internal/config"
	"github.com/nanograv/pint-pal/internal/outlier"
	"github.com/nanograv/pint-pal/internal/prompts"
	"github.com/nanograv/pint-pal/internal/session"
)

type initOptions struct {
	answers        prompts.InitAnswers
	dir            string
	nonInteractive bool
}

func newInitCmd(samplers outlier.Registry) *cobra.Command {
	opts := &initOptions{}

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a timing configuration for a pulsar",
		Long: `Create a ` + session.ConfigFileName + ` timing configuration naming the pulsar,
its par and tim files and the outlier analysis settings.`,
		Example: `  # Interactive mode
  pintpal init

  # Non-interactive
  pintpal init --source J1909-3744 --par results/J1909-3744.par \
    --tim tim/J1909-3744.tim --non-interactive`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(cmd.OutOrStdout(), opts, samplers)
		},
	}

	cmd.Flags().StringVarP(&opts.answers.Source, "source", "s", "", "Pulsar name")
	cmd.Flags().StringVarP(&opts.answers.TOAType, "toa-type", "t", config.TOATypeNB, "TOA type (NB or WB)")
	cmd.Flags().StringVarP(&opts.answers.ParFile, "par", "p", "", "Path to the par file")
	cmd.Flags().StringSliceVar(&opts.answers.TimFiles, "tim", nil, "Path to a tim file (repeatable)")
	cmd.Flags().StringVarP(&opts.answers.OutputDir, "output-dir", "o", "", "Directory for results")
	cmd.Flags().StringVarP(&opts.answers.Method, "method", "m", config.DefaultOutlierMethod, "Outlier method")
	cmd.Flags().StringVar(&opts.dir, "dir", ".", "Directory to write the configuration to")
	cmd.Flags().BoolVar(&opts.nonInteractive, "non-interactive", false, "Run without prompts (requires --source, --par and --tim)")

	return cmd
}

func runInit(w io.Writer, opts *initOptions, samplers outlier.Registry) error {
	cfgPath := filepath.Join(opts.dir, session.ConfigFileName)
	if _, err := os.Stat(cfgPath); err == nil {
		return fmt.Errorf("%s already exists", cfgPath)
	}

	a := &opts.answers
	if opts.nonInteractive {
		if a.Source == "" || a.ParFile == "" || len(a.TimFiles) == 0 {
			return errors.New("non-interactive mode requires --source, --par and --tim")
		}
	} else if err := prompts.RunInitForm(a, samplers.Available()); err != nil {
		return err
	}

	if _, err := samplers.Get(a.Method); err != nil {
		return err
	}

	cfg := config.Config{
		Version:   config.CurrentConfigVersion,
		Source:    a.Source,
		TOAType:   a.TOAType,
		ParFile:   a.ParFile,
		TimFiles:  a.TimFiles,
		OutputDir: a.OutputDir,
		Outlier:   config.OutlierConfig{Method: a.Method},
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := os.MkdirAll(opts.dir, 0o750); err != nil {
		return fmt.Errorf("failed to create %s: %w", opts.dir, err)
	}
	if err := cfg.Save(cfgPath); err != nil {
		return fmt.Errorf("config file couldn't be saved: %w", err)
	}

	prompts.PrintResult(w, []prompts.ResultField{
		{Label: "Pulsar", Value: cfg.Source},
		{Label: "TOA type", Value: cfg.TOAKind()},
		{Label: "Outlier method", Value: cfg.OutlierMethod()},
		{Label: "Config", Value: cfgPath},
	}, "Initialization completed")
	return nil
}
