// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NANOGrav Timing Working Group

package commands

import (
	"context"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/nanograv/pint-pal/internal/prompts"
	"github.com/nanograv/pint-pal/internal/session"
	"github.com/nanograv/pint-pal/internal/timing"
)

type fitOptions struct {
	writePar string
}

func registerFitCmd(parent *cobra.Command) {
	opts := &fitOptions{}
	cmd := &cobra.Command{
		Use:   "fit",
		Short: "Fit the timing model to the selected TOAs",
		Long: `Fit the free parameters of the timing model to the TOAs left after the
initial cuts and print the post-fit parameters and residual statistics.`,
		Example: `  # Fit and show the result
  pintpal fit -c J1909-3744.nb.yaml

  # Fit and write the post-fit model
  pintpal fit --write-par results/J1909-3744.fit.par`,
		Args:              cobra.NoArgs,
		PersistentPreRunE: session.PreRunLoad,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := session.RequireFromCommand(cmd)
			if err != nil {
				return err
			}
			return runFit(cmd.Context(), cmd.OutOrStdout(), s, opts)
		},
	}
	cmd.Flags().StringVar(&opts.writePar, "write-par", "", "Write the post-fit par file to this path")
	parent.AddCommand(cmd)
}

func runFit(ctx context.Context, w io.Writer, s *session.Context, opts *fitOptions) error {
	f := s.Config.ConstructFitter(s.TOAs, s.Model)
	chi2, err := f.FitTOAs(ctx)
	if err != nil {
		return err
	}
	res := f.Resids()
	fitted := f.Model()

	unc := f.Uncertainties()
	rows := make([][]any, 0, len(unc))
	for _, name := range fitted.FreeParams() {
		p, ok := fitted.Param(name)
		if !ok {
			continue
		}
		rows = append(rows, []any{name, formatFloat(p.Value), formatFloat(unc[name])})
	}
	prompts.PrintTable(w, []string{"Param", "Value", "Uncertainty"}, rows, 2, 3)

	fields := []prompts.ResultField{
		{Label: "Pulsar", Value: fitted.PSR},
		{Label: "TOAs", Value: strconv.Itoa(s.TOAs.Len())},
		{Label: "Chi2", Value: formatFloat(chi2)},
		{Label: "Dof", Value: strconv.Itoa(res.Dof)},
		{Label: "Reduced chi2", Value: formatFloat(res.ReducedChi2())},
		{Label: "WRMS (us)", Value: formatFloat(res.WRMS() * 1e6)},
	}
	if opts.writePar != "" {
		if err := timing.WriteParFile(opts.writePar, fitted); err != nil {
			return err
		}
		fields = append(fields, prompts.ResultField{Label: "Par file", Value: opts.writePar})
	}
	prompts.PrintResult(w, fields, "")
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', 10, 64)
}
