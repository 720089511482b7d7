// Package grid flattens an aggregate.Result into display rows. Every
// matrix consumer renders from a Grid, so the terminal table, the
// markdown and PDF exports and the web dashboard show the same numbers.
package grid

import (
	"strconv"

	"coursedash/internal/aggregate"
	"coursedash/internal/format"
)

// RowKind tells consumers how to style a row.
type RowKind int

const (
	// RowModule heads a module group and carries the module total.
	RowModule RowKind = iota
	// RowType is one session type: total, share and per-day hours.
	RowType
	// RowCumulative is the module's running total.
	RowCumulative
)

// Cell is one date column of a row. Text is empty when nothing is shown.
type Cell struct {
	Date string
	Text string
	// LastSession marks the module's last session date.
	LastSession bool
}

// Row is one rendered line of the matrix.
type Row struct {
	Kind RowKind
	// Label is the module key for RowModule and the session type for RowType.
	Label string
	// Module is the "code (cohort)" key of the group the row belongs to.
	Module string
	// Hours is the formatted total: module total for RowModule and
	// RowCumulative, type total for RowType.
	Hours string
	// Share is the type's whole-percent share of the module, e.g. "56%".
	Share string
	Cells []Cell
}

// Grid is the display form of a Result.
type Grid struct {
	Dates []string
	Rows  []Row
}

// Build flattens res using f for numbers.
func Build(res aggregate.Result, f format.Format) Grid {
	g := Grid{Dates: append([]string(nil), res.Dates...)}

	for _, m := range res.Modules {
		key := m.Key().String()
		total := f.Hours(m.Total())

		g.Rows = append(g.Rows, Row{
			Kind:   RowModule,
			Label:  key,
			Module: key,
			Hours:  total,
			Cells:  cells(res.Dates, m, func(string) string { return "" }),
		})

		for _, typ := range m.Types() {
			g.Rows = append(g.Rows, Row{
				Kind:   RowType,
				Label:  typ,
				Module: key,
				Hours:  f.Hours(m.TypeTotal(typ)),
				Share:  strconv.Itoa(m.SharePercent(typ)) + "%",
				Cells: cells(res.Dates, m, func(d string) string {
					if h, ok := m.Hours(typ, d); ok && h != 0 {
						return f.Hours(h)
					}
					return ""
				}),
			})
		}

		g.Rows = append(g.Rows, Row{
			Kind:   RowCumulative,
			Label:  "Cumulative",
			Module: key,
			Hours:  total,
			Cells: cells(res.Dates, m, func(d string) string {
				if v, ok := m.Cumulative(d); ok {
					return f.Hours(v)
				}
				return ""
			}),
		})
	}
	return g
}

func cells(dates []string, m *aggregate.Module, text func(string) string) []Cell {
	out := make([]Cell, len(dates))
	for i, d := range dates {
		out[i] = Cell{Date: d, Text: text(d), LastSession: d == m.LastSessionDate}
	}
	return out
}
