package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// renderTable draws a rounded table for the inspection commands. Column
// numbers listed in numeric are right-aligned (run IDs); everything else,
// headers included, stays left-aligned. Short rows pad with empty cells.
func renderTable(headers []string, rows [][]string, numeric ...int) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		cells := make(table.Row, len(headers))
		for i := range cells {
			cells[i] = ""
			if i < len(row) {
				cells[i] = row[i]
			}
		}
		tw.AppendRow(cells)
	}

	if len(numeric) > 0 {
		configs := make([]table.ColumnConfig, 0, len(numeric))
		for _, col := range numeric {
			configs = append(configs, table.ColumnConfig{
				Number:      col,
				Align:       text.AlignRight,
				AlignHeader: text.AlignLeft,
			})
		}
		tw.SetColumnConfigs(configs)
	}
	return tw.Render()
}
