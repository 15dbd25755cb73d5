// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NANOGrav Timing Working Group

// Package commands contains all CLI command definitions.
package commands

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/nanograv/pint-pal/internal/log"
	"github.com/nanograv/pint-pal/internal/outlier"
	"github.com/nanograv/pint-pal/internal/session"
	"github.com/nanograv/pint-pal/internal/version"
)

type rootOptions struct {
	logLevel string
}

// NewRootCmd creates and returns the root command for the CLI.
func NewRootCmd(samplers outlier.Registry) *cobra.Command {
	opts := &rootOptions{}
	cobra.EnableTraverseRunHooks = true

	rootCmd := &cobra.Command{
		Use:   version.Command,
		Short: "Outlier analysis for pulsar timing data",
		Long: `pintpal runs the outlier-analysis stage of a pulsar timing pipeline:
per-TOA outlier probabilities, outlier and file cuts, DMX range maintenance
and drop-one-epoch F-tests.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return configureLogging(cmd, opts)
		},
	}

	rootCmd.PersistentFlags().StringP(session.ConfigFlag, "c", "", "Path to the timing configuration (default ./"+session.ConfigFileName+")")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level (trace, debug, info, warn, error); defaults to $LOG_LEVEL or info")

	rootCmd.AddCommand(newInitCmd(samplers))
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newSchemaCmd())
	registerFitCmd(rootCmd)
	registerDMXCmd(rootCmd)
	registerOutlierCmd(rootCmd, samplers)

	return rootCmd
}

func configureLogging(cmd *cobra.Command, opts *rootOptions) error {
	level := opts.logLevel
	if level != "" {
		if _, err := zerolog.ParseLevel(level); err != nil {
			return err
		}
	}
	log.Configure(log.Config{
		Level:   level,
		Output:  cmd.ErrOrStderr(),
		Console: true,
	})
	return nil
}
