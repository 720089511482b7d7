package export

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"coursedash/internal/aggregate"
	"coursedash/internal/format"
	"coursedash/internal/grid"
)

// ErrNothingToExport is returned when the result has no module.
var ErrNothingToExport = errors.New("no data to export")

// Markdown writes res as a GitHub-flavored markdown table: one bold row
// per module with its total, one row per session type with its total and
// share, the cumulative row and a blank spacer row.
func Markdown(w io.Writer, res aggregate.Result, f format.Format) error {
	if res.Empty() {
		return ErrNothingToExport
	}
	g := grid.Build(res, f)
	bw := bufio.NewWriter(w)

	dates := make([]string, len(g.Dates))
	align := make([]string, len(g.Dates))
	blank := make([]string, len(g.Dates))
	for i, d := range g.Dates {
		dates[i] = f.ShortDate(d)
		align[i] = ":---:"
	}

	fmt.Fprintf(bw, "| Module / Type | Total | %s |\n", strings.Join(dates, " | "))
	fmt.Fprintf(bw, "|:---|:---:|%s|\n", strings.Join(align, "|"))

	for _, row := range g.Rows {
		switch row.Kind {
		case grid.RowModule:
			fmt.Fprintf(bw, "| **%s** | **%sh** | %s |\n", row.Label, row.Hours, strings.Join(blank, " | "))
		case grid.RowType:
			fmt.Fprintf(bw, "| %s | %sh (%s) | %s |\n", row.Label, row.Hours, row.Share, cellTexts(row))
		case grid.RowCumulative:
			fmt.Fprintf(bw, "| *%s* | | %s |\n", row.Label, cellTexts(row))
			fmt.Fprintf(bw, "| | | %s |\n", strings.Join(blank, " | "))
		}
	}
	return bw.Flush()
}

func cellTexts(row grid.Row) string {
	out := make([]string, len(row.Cells))
	for i, c := range row.Cells {
		out[i] = c.Text
	}
	return strings.Join(out, " | ")
}
