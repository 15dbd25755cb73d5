// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NANOGrav Timing Working Group

package commands

import (
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/nanograv/pint-pal/internal/dmx"
	"github.com/nanograv/pint-pal/internal/prompts"
	"github.com/nanograv/pint-pal/internal/session"
	"github.com/nanograv/pint-pal/internal/timing"
)

type dmxOptions struct {
	fratio    float64
	maxDeltaT float64
	writePar  string
}

func registerDMXCmd(parent *cobra.Command) {
	opts := &dmxOptions{}
	cmd := &cobra.Command{
		Use:   "dmx",
		Short: "Rebuild the DMX ranges of the timing model",
		Long: `Group the selected TOAs into DMX bins, cut bins without enough frequency
coverage, and rebuild the model's DMX ranges so every TOA lies in exactly
one range. Existing ranges keep their values.`,
		Example: `  # Show the DMX ranges the data needs
  pintpal dmx

  # Use one-day bins and write the result
  pintpal dmx --max-delta-t 1 --write-par results/J1909-3744.dmx.par`,
		Args:              cobra.NoArgs,
		PersistentPreRunE: session.PreRunLoad,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := session.RequireFromCommand(cmd)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("fratio") {
				opts.fratio = s.Config.FRatio()
			}
			if !cmd.Flags().Changed("max-delta-t") {
				opts.maxDeltaT = s.Config.MaxDeltaT()
			}
			return runDMX(cmd.OutOrStdout(), s, opts)
		},
	}
	cmd.Flags().Float64Var(&opts.fratio, "fratio", 0, "Minimum max/min frequency ratio of a bin (default from config)")
	cmd.Flags().Float64Var(&opts.maxDeltaT, "max-delta-t", 0, "Maximum bin width in days (default from config)")
	cmd.Flags().StringVar(&opts.writePar, "write-par", "", "Write the updated par file to this path")
	parent.AddCommand(cmd)
}

func runDMX(w io.Writer, s *session.Context, opts *dmxOptions) error {
	summary, err := dmx.Setup(s.Model, s.TOAs, opts.fratio, opts.maxDeltaT)
	if err != nil {
		return err
	}

	printDMXRanges(w, s.Model)
	fields := dmxFields(summary)
	if opts.writePar != "" {
		if err := timing.WriteParFile(opts.writePar, s.Model); err != nil {
			return err
		}
		fields = append(fields, prompts.ResultField{Label: "Par file", Value: opts.writePar})
	}
	prompts.PrintResult(w, fields, "")
	return nil
}

func printDMXRanges(w io.Writer, m *timing.Model) {
	rows := make([][]any, len(m.DMX))
	for i, r := range m.DMX {
		rows[i] = []any{r.Value.Name, formatFloat(r.R1), formatFloat(r.R2), formatFloat(r.Value.Value)}
	}
	prompts.PrintTable(w, []string{"Range", "Start", "End", "Value"}, rows, 2, 3, 4)
}

func dmxFields(summary dmx.Summary) []prompts.ResultField {
	return []prompts.ResultField{
		{Label: "DMX bins", Value: strconv.Itoa(summary.Bins)},
		{Label: "Ranges kept", Value: strconv.Itoa(summary.Kept)},
		{Label: "Ranges added", Value: strconv.Itoa(summary.Added)},
		{Label: "Ranges removed", Value: strconv.Itoa(summary.Removed)},
		{Label: "TOAs cut (frequency coverage)", Value: strconv.Itoa(summary.CutTOAs)},
	}
}
