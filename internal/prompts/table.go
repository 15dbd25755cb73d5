// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NANOGrav Timing Working Group

package prompts

import (
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// PrintTable renders rows under header without outer borders. Columns
// listed in rightAlign (1-based) are right aligned.
func PrintTable(w io.Writer, header []string, rows [][]any, rightAlign ...int) {
	t := table.NewWriter()
	t.SetOutputMirror(w)

	head := make(table.Row, len(header))
	for i, h := range header {
		head[i] = h
	}
	t.AppendHeader(head)
	for _, r := range rows {
		t.AppendRow(table.Row(r))
	}

	configs := make([]table.ColumnConfig, 0, len(rightAlign))
	for _, n := range rightAlign {
		configs = append(configs, table.ColumnConfig{Number: n, Align: text.AlignRight})
	}
	t.SetColumnConfigs(configs)
	t.Style().Options.DrawBorder = false
	t.Style().Options.SeparateColumns = false
	t.Style().Box.MiddleHorizontal = "─"
	t.Render()
}
