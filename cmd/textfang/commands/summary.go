package commands

import (
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
)

// summaryRow is one line of the end-of-run report.
type summaryRow struct {
	name  string
	value any
}

// renderSummary prints the end-of-run table to w (stderr: stdout is the
// data plane).
func renderSummary(w io.Writer, title string, rows []summaryRow) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle(title)

	for _, row := range rows {
		t.AppendRow(table.Row{row.name, row.value})
	}

	t.Render()
}
