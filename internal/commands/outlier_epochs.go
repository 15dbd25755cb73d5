// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NANOGrav Timing Working Group

package commands

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/nanograv/pint-pal/internal/outlier"
	"github.com/nanograv/pint-pal/internal/prompts"
	"github.com/nanograv/pint-pal/internal/session"
)

type epochsOptions struct {
	threshold float64
	timFile   string
	workers   int
	all       bool
	writePar  string
}

func newOutlierEpochsCmd() *cobra.Command {
	opts := &epochsOptions{}
	cmd := &cobra.Command{
		Use:   "epochs",
		Short: "Drop epochs whose removal significantly improves the fit",
		Long: `Refit the TOAs once per epoch with that epoch removed and F-test each
refit against the full fit. Epochs with an F-test probability below the
threshold are cut. Results are written to epochdrop.txt and the TOAs to
<source>.<nb|wb>_excise.tim in the outlier results directory.`,
		Example: `  # Use the configured threshold
  pintpal outlier epochs

  # Start from the output of "outlier cuts" and show every epoch
  pintpal outlier epochs --tim cut.tim --all`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := session.RequireFromCommand(cmd)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("threshold") {
				opts.threshold = s.Config.FTestThreshold()
			}
			if cmd.Flags().Changed("workers") {
				s.Config.Outlier.Workers = opts.workers
			}
			if opts.timFile != "" {
				if err := useTimFile(s, opts.timFile); err != nil {
					return err
				}
			}
			return runOutlierEpochs(cmd.Context(), cmd.OutOrStdout(), s, opts)
		},
	}
	cmd.Flags().Float64Var(&opts.threshold, "threshold", 0, "F-test probability below which an epoch is dropped (default from config)")
	cmd.Flags().StringVar(&opts.timFile, "tim", "", "Start from this tim file instead of the configured ones")
	cmd.Flags().IntVar(&opts.workers, "workers", 0, "Concurrent refits (default from config, or the number of CPUs)")
	cmd.Flags().BoolVar(&opts.all, "all", false, "Show every epoch, not only dropped ones")
	cmd.Flags().StringVar(&opts.writePar, "write-par", "", "Write the updated par file to this path")
	return cmd
}

func runOutlierEpochs(ctx context.Context, w io.Writer, s *session.Context, opts *epochsOptions) error {
	report, err := outlier.Epochalyptica(ctx, s.Model, s.TOAs, s.Config, opts.threshold)
	if err != nil {
		return err
	}
	printEpochs(w, report, opts.all)

	fields := epochFields(report)
	extra, err := writeOutputs(s, opts.writePar, "")
	if err != nil {
		return err
	}
	prompts.PrintResult(w, append(fields, extra...), "")
	return nil
}

func printEpochs(w io.Writer, report *outlier.EpochReport, all bool) {
	var rows [][]any
	for _, r := range report.Epochs {
		if !all && !r.Dropped {
			continue
		}
		dropped := ""
		if r.Dropped {
			dropped = "yes"
		}
		rows = append(rows, []any{
			r.Name, r.Receiver, r.MJD, r.NDropped,
			fmt.Sprintf("%.3e", r.FTest),
			strconv.FormatFloat(r.EffectiveError, 'f', 3, 64),
			dropped,
		})
	}
	if len(rows) == 0 {
		return
	}
	prompts.PrintTable(w, []string{"Epoch", "Receiver", "MJD", "TOAs", "F-test", "Error (us)", "Dropped"}, rows, 3, 4, 5, 6)
}

func epochFields(report *outlier.EpochReport) []prompts.ResultField {
	fields := []prompts.ResultField{
		{Label: "Epochs tested", Value: strconv.Itoa(len(report.Epochs))},
		{Label: "Epochs dropped", Value: strconv.Itoa(len(report.Dropped))},
		{Label: "Initial chi2/dof", Value: formatFloat(report.Chi2) + "/" + strconv.Itoa(report.Dof)},
		{Label: "Epoch results", Value: report.EpochFile},
		{Label: "Tim file", Value: report.TimFile},
	}
	if report.DMX != nil {
		fields = append(fields, dmxFields(*report.DMX)...)
	}
	return fields
}
