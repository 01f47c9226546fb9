package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// ledgerColumn renders one field of a ledger record.
type ledgerColumn[T any] struct {
	header   string
	numeric  bool // right-aligned
	maxWidth int  // wrap longer cells; 0 leaves them as is
	value    func(T) string
}

// renderLedger draws records as a rounded table with a record count caption.
func renderLedger[T any](records []T, columns []ledgerColumn[T]) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, len(columns))
	configs := make([]table.ColumnConfig, len(columns))
	for i, c := range columns {
		header[i] = c.header
		configs[i] = table.ColumnConfig{Number: i + 1, AlignHeader: text.AlignLeft, WidthMax: c.maxWidth}
		if c.numeric {
			configs[i].Align = text.AlignRight
		}
	}
	tw.AppendHeader(header)
	tw.SetColumnConfigs(configs)

	for _, rec := range records {
		row := make(table.Row, len(columns))
		for i, c := range columns {
			row[i] = c.value(rec)
		}
		tw.AppendRow(row)
	}
	if len(records) == 1 {
		tw.SetCaption("1 record")
	} else {
		tw.SetCaption("%d records", len(records))
	}
	return tw.Render()
}
