package models

import (
	"flag"
	"io"

	"github.com/olekukonko/tablewriter"
)

// plain returns a borderless, left aligned table for help and listings.
func plain(w io.Writer) *tablewriter.Table {
	t := tablewriter.NewWriter(w)
	t.SetBorder(false)
	t.SetHeaderLine(false)
	t.SetColumnSeparator("")
	t.SetCenterSeparator("")
	t.SetRowSeparator("")
	t.SetAlignment(tablewriter.ALIGN_LEFT)
	t.SetAutoWrapText(true)
	t.SetColWidth(50)
	return t
}

// PrintFlags writes one "-name (default) usage" row per flag.
func PrintFlags(w io.Writer, flags []*flag.Flag) {
	t := plain(w)
	for _, f := range flags {
		def := ""
		if f.DefValue != "" && f.DefValue != "[]" {
			def = "(" + f.DefValue + ")"
		}
		t.Append([]string{"-" + f.Name, def, f.Usage})
	}
	t.Render()
}

// PrintTable writes rows as plain aligned columns.
func PrintTable(w io.Writer, rows [][]string) {
	t := plain(w)
	t.AppendBulk(rows)
	t.Render()
}
