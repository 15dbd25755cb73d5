// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NANOGrav Timing Working Group

package version

// Command is the name of the CLI binary.
const Command = "pintpal"

// Project metadata. MinGoVersion must match the go directive in go.mod.
const (
	Name         = "pint_pal"
	Description  = "NANOGrav pulsar timing analysis work"
	License      = "Apache-2.0"
	Homepage     = "https://github.com/nanograv/pint_pal"
	MinGoVersion = "1.24"
	BuildBackend = "go build (module mode, version from VCS tags)"
)

// Authors lists the project authors in the order they were declared.
var Authors = []string{
	"NANOGrav Timing Working Group",
}

// ProjectMetadata is the packaging record of the project.
type ProjectMetadata struct {
	Name         string   `yaml:"name"`
	Version      string   `yaml:"version"`
	Commit       string   `yaml:"commit"`
	Date         string   `yaml:"date"`
	Description  string   `yaml:"description"`
	Authors      []string `yaml:"authors"`
	License      string   `yaml:"license"`
	Homepage     string   `yaml:"homepage"`
	MinGoVersion string   `yaml:"requires-go"`
	BuildBackend string   `yaml:"build-backend"`
}

// Metadata returns the project metadata with the resolved version.
func Metadata() ProjectMetadata {
	authors := make([]string, len(Authors))
	copy(authors, Authors)
	return ProjectMetadata{
		Name:         Name,
		Version:      Version,
		Commit:       Commit,
		Date:         Date,
		Description:  Description,
		Authors:      authors,
		License:      License,
		Homepage:     Homepage,
		MinGoVersion: MinGoVersion,
		BuildBackend: BuildBackend,
	}
}
