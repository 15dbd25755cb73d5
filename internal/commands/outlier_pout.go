// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NANOGrav Timing Working Group

package commands

import (
	"context"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/nanograv/pint-pal/internal/outlier"
	"github.com/nanograv/pint-pal/internal/prompts"
	"github.com/nanograv/pint-pal/internal/session"
)

type poutOptions struct {
	method   string
	nSamples int
	nBurnin  int
	seed     uint64
}

func newOutlierPoutCmd(samplers outlier.Registry) *cobra.Command {
	opts := &poutOptions{}
	cmd := &cobra.Command{
		Use:   "pout",
		Short: "Compute per-TOA outlier probabilities",
		Long: `Fit the model, sample the outlier mixture model and store each TOA's
outlier probability in a -pout_<method> flag. All TOAs are written to
<output-dir>/outlier/<source>.<nb|wb>/<source>.<nb|wb>_pout.tim.`,
		Example: `  # Use the configured method
  pintpal outlier pout

  # Quick HMC run
  pintpal outlier pout --method hmc --samples 2000 --burnin 500`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := session.RequireFromCommand(cmd)
			if err != nil {
				return err
			}
			applyPoutOverrides(cmd, s, opts)
			return runOutlierPout(cmd.Context(), cmd.OutOrStdout(), s, samplers)
		},
	}
	addPoutFlags(cmd, opts)
	return cmd
}

func addPoutFlags(cmd *cobra.Command, opts *poutOptions) {
	cmd.Flags().StringVarP(&opts.method, "method", "m", "", "Outlier method (default from config)")
	cmd.Flags().IntVar(&opts.nSamples, "samples", 0, "Number of retained samples (default from config)")
	cmd.Flags().IntVar(&opts.nBurnin, "burnin", 0, "Number of burn-in samples (default from config)")
	cmd.Flags().Uint64Var(&opts.seed, "seed", 0, "Random seed (default from config)")
}

func applyPoutOverrides(cmd *cobra.Command, s *session.Context, opts *poutOptions) {
	o := &s.Config.Outlier
	if cmd.Flags().Changed("method") {
		o.Method = opts.method
	}
	if cmd.Flags().Changed("samples") {
		o.NSamples = &opts.nSamples
	}
	if cmd.Flags().Changed("burnin") {
		o.NBurnin = &opts.nBurnin
	}
	if cmd.Flags().Changed("seed") {
		o.Seed = opts.seed
	}
}

func runOutlierPout(ctx context.Context, w io.Writer, s *session.Context, samplers outlier.Registry) error {
	res, err := outlier.CalculatePout(ctx, s.Model, s.TOAs, s.Config, samplers)
	if err != nil {
		return err
	}
	prompts.PrintResult(w, poutFields(res), "")
	return nil
}

func poutFields(res *outlier.PoutResult) []prompts.ResultField {
	return []prompts.ResultField{
		{Label: "Method", Value: res.Method},
		{Label: "TOAs sampled", Value: strconv.Itoa(len(res.Pout))},
		{Label: "Above " + formatFloat(res.Threshold), Value: strconv.Itoa(res.NOutliers)},
		{Label: "Chain", Value: res.ChainFile},
		{Label: "Tim file", Value: res.TimFile},
	}
}
