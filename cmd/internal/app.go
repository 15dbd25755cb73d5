// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NANOGrav Timing Working Group

// Package internal contains the main application logic for the CLI.
package internal

import (
	"context"
	"io"
	"os"

	"github.com/nanograv/pint-pal/internal/commands"
	"github.com/nanograv/pint-pal/internal/outlier"
	"github.com/nanograv/pint-pal/internal/session"
)

// ConfigEnv names the environment variable holding a default config path.
const ConfigEnv = "PINTPAL_CONFIG"

// Run is the main application logic, extracted for testability.
// It accepts OS dependencies as parameters (context, env lookup).
func Run(ctx context.Context, getenv func(string) string) error {
	return run(ctx, getenv, os.Args[1:], os.Stdout)
}

func run(ctx context.Context, getenv func(string) string, args []string, out io.Writer) error {
	rootCmd := commands.NewRootCmd(outlier.DefaultRegistry())
	if path := getenv(ConfigEnv); path != "" {
		if err := rootCmd.PersistentFlags().Set(session.ConfigFlag, path); err != nil {
			return err
		}
	}
	rootCmd.SetArgs(args)
	rootCmd.SetOut(out)
	return rootCmd.ExecuteContext(ctx)
}
