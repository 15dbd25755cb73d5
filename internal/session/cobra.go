// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NANOGrav Timing Working Group

package session

import (
	"errors"

	"github.com/spf13/cobra"
)

// ConfigFlag is the persistent flag naming the configuration file.
const ConfigFlag = "config"

// FromCommand extracts the Context from a cobra.Command's context.
// Returns nil if no Context is stored.
func FromCommand(cmd *cobra.Command) *Context {
	return From(cmd.Context())
}

// RequireFromCommand extracts the Context from a cobra.Command's context,
// returning an error if not found.
func RequireFromCommand(cmd *cobra.Command) (*Context, error) {
	s := FromCommand(cmd)
	if s == nil {
		return nil, errors.New("pulsar session not loaded")
	}
	return s, nil
}

// PreRunLoad is a PersistentPreRunE function that loads the pulsar named by
// the --config flag and stores it in the command's context.
func PreRunLoad(cmd *cobra.Command, _ []string) error {
	path, _ := cmd.Flags().GetString(ConfigFlag)
	ctx, err := Load(cmd.Context(), path)
	if err != nil {
		return err
	}
	cmd.SetContext(ctx)
	return nil
}
