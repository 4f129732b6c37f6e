package main

import (
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// newTable returns a table writer in the CLI's house style. Columns listed
// in numeric (1-based) are right aligned.
func newTable(w io.Writer, header table.Row, numeric ...int) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(header)
	if len(numeric) > 0 {
		cfgs := make([]table.ColumnConfig, 0, len(numeric))
		for _, n := range numeric {
			cfgs = append(cfgs, table.ColumnConfig{Number: n, Align: text.AlignRight, AlignFooter: text.AlignRight})
		}
		t.SetColumnConfigs(cfgs)
	}
	return t
}
