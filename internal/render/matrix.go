package render

import (
	"fmt"
	"strings"

	"coursedash/internal/aggregate"
	"coursedash/internal/config"
	"coursedash/internal/format"
	"coursedash/internal/grid"
	"coursedash/internal/model"
)

// Matrix renders res as a terminal table. Module labels take their cohort
// color; each module's last session date is underlined in the cumulative
// row.
func Matrix(res aggregate.Result, f format.Format, colors config.CohortColors) string {
	if res.Empty() {
		return StyleDim.Render("No session to display.") + "\n"
	}
	g := grid.Build(res, f)

	headers := []string{"Module / Type", "Total"}
	right := map[int]bool{1: true}
	for i, d := range g.Dates {
		headers = append(headers, f.ShortDate(d))
		right[i+2] = true
	}

	cohorts := make(map[string]model.Cohort, len(res.Modules))
	for _, m := range res.Modules {
		cohorts[m.Key().String()] = m.Cohort
	}

	rows := make([][]string, 0, len(g.Rows))
	for _, row := range g.Rows {
		line := make([]string, 0, len(row.Cells)+2)
		switch row.Kind {
		case grid.RowModule:
			hex := colors.Standard
			if cohorts[row.Module] == model.CohortApprentice {
				hex = colors.Apprentice
			}
			line = append(line, CohortStyle(hex).Render(row.Label), StyleBold.Render(row.Hours+"h"))
		case grid.RowType:
			line = append(line, "  "+row.Label, fmt.Sprintf("%sh (%s)", row.Hours, row.Share))
		case grid.RowCumulative:
			line = append(line, StyleCumul.Render("  "+row.Label), "")
		}
		for _, c := range row.Cells {
			text := c.Text
			if row.Kind == grid.RowCumulative && c.LastSession && text != "" {
				text = StyleMark.Render(text)
			}
			line = append(line, text)
		}
		rows = append(rows, line)
	}
	return RenderTable(headers, rows, right)
}

// Summary is the one-line header printed above the matrix.
func Summary(fileName, start, end string, res aggregate.Result, f format.Format) string {
	var total float64
	for _, m := range res.Modules {
		total += m.Total()
	}
	parts := []string{}
	if fileName != "" {
		parts = append(parts, fileName)
	}
	parts = append(parts,
		fmt.Sprintf("%s → %s", f.LongDate(start), f.LongDate(end)),
		fmt.Sprintf("%d modules", len(res.Modules)),
		fmt.Sprintf("%sh", f.Hours(total)),
	)
	return StyleHeader.Render(strings.Join(parts, " · ")) + "\n"
}
