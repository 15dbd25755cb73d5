// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NANOGrav Timing Working Group

package commands

import (
	"github.com/spf13/cobra"

	"github.com/nanograv/pint-pal/internal/outlier"
	"github.com/nanograv/pint-pal/internal/session"
	"github.com/nanograv/pint-pal/internal/toa"
)

func registerOutlierCmd(parent *cobra.Command, samplers outlier.Registry) {
	cmd := &cobra.Command{
		Use:   "outlier",
		Short: "Find and remove outlying TOAs and epochs",
		Long: `Outlier analysis in three stages: per-TOA outlier probabilities (pout),
cuts on those probabilities (cuts), and drop-one-epoch F-tests (epochs).
"run" performs all three in order.`,
		PersistentPreRunE: session.PreRunLoad,
	}

	cmd.AddCommand(newOutlierPoutCmd(samplers))
	cmd.AddCommand(newOutlierCutsCmd())
	cmd.AddCommand(newOutlierEpochsCmd())
	cmd.AddCommand(newOutlierRunCmd(samplers))

	parent.AddCommand(cmd)
}

// useTimFile replaces the session TOAs with those of a previously written
// tim file, keeping its cut flags.
func useTimFile(s *session.Context, path string) error {
	toas, err := toa.ReadTimFiles([]string{path})
	if err != nil {
		return err
	}
	toas.ApplyCutSelect("loaded " + path)
	s.TOAs = toas
	return nil
}
