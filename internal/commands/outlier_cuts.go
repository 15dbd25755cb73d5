// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NANOGrav Timing Working Group

package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nanograv/pint-pal/internal/outlier"
	"github.com/nanograv/pint-pal/internal/prompts"
	"github.com/nanograv/pint-pal/internal/session"
	"github.com/nanograv/pint-pal/internal/timing"
	"github.com/nanograv/pint-pal/internal/toa"
)

type cutsOptions struct {
	pct      float64
	timFile  string
	writePar string
	writeTim string
}

func newOutlierCutsCmd() *cobra.Command {
	opts := &cutsOptions{}
	cmd := &cobra.Command{
		Use:   "cuts",
		Short: "Cut TOAs with high outlier probability",
		Long: `Cut TOAs whose outlier probability exceeds the configured prob-outlier,
rebuild the DMX ranges and, for narrowband data, cut whole files in which
too many TOAs were outliers. Probabilities are read from the tim file
written by "outlier pout" unless --tim names another file.`,
		Example: `  # Cut using the last pout run
  pintpal outlier cuts

  # Stricter file cuts, keep the results
  pintpal outlier cuts --pct 5 --write-tim cut.tim --write-par cut.par`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := session.RequireFromCommand(cmd)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("pct") {
				opts.pct = s.Config.MaxOutlierPct()
			}
			if opts.timFile == "" {
				opts.timFile = poutTimPath(s)
			}
			return runOutlierCuts(cmd.OutOrStdout(), s, opts)
		},
	}
	cmd.Flags().Float64Var(&opts.pct, "pct", 0, "Outlier percentage that cuts a whole file (default from config)")
	cmd.Flags().StringVar(&opts.timFile, "tim", "", "Tim file with outlier probabilities (default: the pout output)")
	cmd.Flags().StringVar(&opts.writePar, "write-par", "", "Write the updated par file to this path")
	cmd.Flags().StringVar(&opts.writeTim, "write-tim", "", "Write all TOAs with their cut flags to this path")
	return cmd
}

func poutTimPath(s *session.Context) string {
	return filepath.Join(s.Config.ResultsDir(), s.Config.OutfileBasename()+"_pout.tim")
}

func runOutlierCuts(w io.Writer, s *session.Context, opts *cutsOptions) error {
	if _, err := os.Stat(opts.timFile); err != nil {
		return fmt.Errorf("no outlier probabilities: %w (run \"pintpal outlier pout\" first)", err)
	}
	if err := useTimFile(s, opts.timFile); err != nil {
		return err
	}

	summary, err := outlier.MakePoutCuts(s.Model, s.TOAs, s.Config, opts.pct)
	if err != nil {
		return err
	}

	fields := cutsFields(summary, s.TOAs.Len())
	extra, err := writeOutputs(s, opts.writePar, opts.writeTim)
	if err != nil {
		return err
	}
	prompts.PrintResult(w, append(fields, extra...), "")
	return nil
}

func cutsFields(summary *outlier.CutSummary, remaining int) []prompts.ResultField {
	maxout := "-"
	if len(summary.MaxOut) > 0 {
		maxout = strings.Join(summary.MaxOut, ", ")
	}
	fields := []prompts.ResultField{
		{Label: "Outliers cut", Value: strconv.Itoa(summary.Outliers)},
		{Label: "Files cut (maxout)", Value: maxout},
		{Label: "TOAs remaining", Value: strconv.Itoa(remaining)},
	}
	return append(fields, dmxFields(summary.DMX)...)
}

// writeOutputs writes the session model and TOAs when paths are given.
func writeOutputs(s *session.Context, parPath, timPath string) ([]prompts.ResultField, error) {
	var fields []prompts.ResultField
	if parPath != "" {
		if err := timing.WriteParFile(parPath, s.Model); err != nil {
			return nil, err
		}
		fields = append(fields, prompts.ResultField{Label: "Par file", Value: parPath})
	}
	if timPath != "" {
		s.TOAs.Reset()
		err := toa.WriteTimFile(timPath, s.TOAs, s.Config.TOAKind())
		s.TOAs.ApplyCutSelect("resumption after writing tim")
		if err != nil {
			return nil, err
		}
		fields = append(fields, prompts.ResultField{Label: "Tim file", Value: timPath})
	}
	return fields, nil
}
