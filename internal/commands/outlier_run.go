// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NANOGrav Timing Working Group

package commands

import (
	"context"
	"io"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/nanograv/pint-pal/internal/log"
	"github.com/nanograv/pint-pal/internal/outlier"
	"github.com/nanograv/pint-pal/internal/prompts"
	"github.com/nanograv/pint-pal/internal/session"
)

type runOptions struct {
	pout       poutOptions
	skipEpochs bool
}

func newOutlierRunCmd(samplers outlier.Registry) *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the full outlier analysis",
		Long: `Compute outlier probabilities, cut outliers and overloaded files, then
drop epochs by F-test. The final model is written to
<source>.<nb|wb>_outlier.par in the outlier results directory.`,
		Example: `  # Full analysis with the configured settings
  pintpal outlier run -c J1909-3744.nb.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := session.RequireFromCommand(cmd)
			if err != nil {
				return err
			}
			applyPoutOverrides(cmd, s, &opts.pout)
			return runOutlierRun(cmd.Context(), cmd.OutOrStdout(), s, samplers, opts)
		},
	}
	addPoutFlags(cmd, &opts.pout)
	cmd.Flags().BoolVar(&opts.skipEpochs, "skip-epochs", false, "Skip the epoch F-tests")
	return cmd
}

func runOutlierRun(ctx context.Context, w io.Writer, s *session.Context, samplers outlier.Registry, opts *runOptions) error {
	logger := log.WithComponent("commands").With().Str(log.FieldPulsar, s.Model.PSR).Logger()

	logger.Info().Msg("computing outlier probabilities")
	pout, err := outlier.CalculatePout(ctx, s.Model, s.TOAs, s.Config, samplers)
	if err != nil {
		return err
	}
	fields := poutFields(pout)

	logger.Info().Msg("applying outlier cuts")
	cuts, err := outlier.MakePoutCuts(s.Model, s.TOAs, s.Config, s.Config.MaxOutlierPct())
	if err != nil {
		return err
	}
	fields = append(fields, cutsFields(cuts, s.TOAs.Len())...)

	if !opts.skipEpochs {
		logger.Info().Msg("testing epochs")
		report, err := outlier.Epochalyptica(ctx, s.Model, s.TOAs, s.Config, s.Config.FTestThreshold())
		if err != nil {
			return err
		}
		printEpochs(w, report, false)
		fields = append(fields, epochFields(report)...)
	}

	parPath := filepath.Join(s.Config.ResultsDir(), s.Config.OutfileBasename()+"_outlier.par")
	extra, err := writeOutputs(s, parPath, "")
	if err != nil {
		return err
	}
	fields = append(fields, extra...)
	fields = append(fields, prompts.ResultField{Label: "TOAs remaining", Value: strconv.Itoa(s.TOAs.Len())})
	prompts.PrintResult(w, fields, "Outlier analysis complete")
	return nil
}
