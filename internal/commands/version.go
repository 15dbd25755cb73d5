// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NANOGrav Timing Working Group

package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nanograv/pint-pal/internal/prompts"
	"github.com/nanograv/pint-pal/internal/version"
)

func newVersionCmd() *cobra.Command {
	var metadata bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show the pintpal version",
		Long:  `Show the pintpal version resolved at build time, or the full project metadata.`,
		Example: `  # Show the version
  pintpal version

  # Show project metadata
  pintpal version --metadata`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVersion(cmd.OutOrStdout(), metadata)
		},
	}
	cmd.Flags().BoolVar(&metadata, "metadata", false, "Show project metadata")
	return cmd
}

func runVersion(w io.Writer, metadata bool) error {
	if !metadata {
		_, err := fmt.Fprintln(w, version.Info())
		return err
	}
	m := version.Metadata()
	prompts.PrintResult(w, []prompts.ResultField{
		{Label: "Name", Value: m.Name},
		{Label: "Version", Value: m.Version},
		{Label: "Description", Value: m.Description},
		{Label: "Authors", Value: strings.Join(m.Authors, ", ")},
		{Label: "License", Value: m.License},
		{Label: "Homepage", Value: m.Homepage},
		{Label: "Go", Value: ">= " + m.MinGoVersion},
		{Label: "Build backend", Value: m.BuildBackend},
	}, "")
	return nil
}
