// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NANOGrav Timing Working Group

package prompts

import (
	"strings"

	"github.com/charmbracelet/huh"
)

// InitAnswers holds the values collected by RunInitForm. Fields that are
// already set are used as defaults.
type InitAnswers struct {
	Source    string
	TOAType   string
	ParFile   string
	TimFiles  []string
	OutputDir string
	Method    string
}

// RunInitForm runs the interactive form for the init command.
func RunInitForm(a *InitAnswers, methods []string) error {
	timFiles := strings.Join(a.TimFiles, ", ")

	methodOpts := make([]huh.Option[string], len(methods))
	for i, m := range methods {
		methodOpts[i] = huh.NewOption(m, m)
	}

	err := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Pulsar name").
				Placeholder("J1909-3744").
				Validate(pulsarNameValidator).
				Value(&a.Source),
			huh.NewSelect[string]().
				Title("TOA type").
				Options(
					huh.NewOption("Narrowband", "NB"),
					huh.NewOption("Wideband", "WB"),
				).
				Value(&a.TOAType),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Par file").
				PlaceholderFunc(func() string {
					if a.Source == "" {
						return "results/J1909-3744.par"
					}
					return "results/" + a.Source + ".par"
				}, &a.Source).
				Validate(requiredValidator("par file")).
				Value(&a.ParFile),
			huh.NewInput().
				Title("Tim files (comma separated)").
				Validate(requiredValidator("at least one tim file")).
				Value(&timFiles),
			huh.NewInput().
				Title("Output directory").
				Placeholder(".").
				Value(&a.OutputDir),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Outlier method").
				Options(methodOpts...).
				Value(&a.Method),
		),
	).WithTheme(Theme()).Run()
	if err != nil {
		return err
	}

	a.TimFiles = SplitList(timFiles)
	return nil
}

// SplitList splits a comma separated list, dropping empty entries.
func SplitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
