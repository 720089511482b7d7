// Package aggregate builds the module-by-date hour matrix from schedule
// entries. Aggregate is a pure function: it neither mutates its input nor
// keeps state, so it is recomputed on every filter, sort or period change.
//
// Consumers (terminal table, markdown, PDF, web dashboard) read every
// number through the accessors of Module so that all of them render the
// same values.
package aggregate

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"coursedash/internal/classify"
	"coursedash/internal/model"
)

// SortPolicy orders the modules of a Result.
type SortPolicy string

const (
	// SortByDate orders modules by their first session on the date axis.
	SortByDate SortPolicy = "date"
	// SortByCode orders modules by module code.
	SortByCode SortPolicy = "code"
)

// noDate sorts after every real date key.
const noDate = "9999-99-99"

// ParseSortPolicy reads a flag or config value.
func ParseSortPolicy(s string) (SortPolicy, error) {
	switch SortPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", SortByDate:
		return SortByDate, nil
	case SortByCode:
		return SortByCode, nil
	default:
		return "", fmt.Errorf("unknown sort order %q (want %q or %q)", s, SortByDate, SortByCode)
	}
}

// Options parameterizes Aggregate.
type Options struct {
	Sort SortPolicy

	// Filter restricts the modules. nil keeps every module; a non-nil
	// empty slice keeps none.
	Filter []model.ModuleKey

	// Rank orders session types inside a module. nil uses the default
	// classifier ranking.
	Rank func(sessionType string) int
}

// Module is one row group of the matrix.
type Module struct {
	Name   string
	Code   string
	Cohort model.Cohort

	// LastSessionDate is the latest date key with a recorded bucket.
	LastSessionDate string
	// FirstSessionDate is the earliest date key with a positive number of
	// hours; empty when the module only has zero-length sessions.
	FirstSessionDate string

	hours      Table
	types      []string
	typeTotals map[string]float64
	total      float64
	cumulative map[string]float64
}

// Result is the aggregated matrix.
type Result struct {
	Modules []*Module
	// Dates is the shared, ascending column axis: every date key present in
	// the filtered entries.
	Dates []string
}

// Empty reports whether there is nothing to render.
func (r Result) Empty() bool {
	return len(r.Modules) == 0
}

// Aggregate groups entries by (module code, cohort), sums hours per
// session type and day, and orders the modules.
func Aggregate(entries []model.ScheduleEntry, opts Options) Result {
	rank := opts.Rank
	if rank == nil {
		rank = classify.Default().Rank
	}

	var keep map[model.ModuleKey]struct{}
	if opts.Filter != nil {
		keep = make(map[model.ModuleKey]struct{}, len(opts.Filter))
		for _, k := range opts.Filter {
			keep[k] = struct{}{}
		}
	}

	byKey := make(map[model.ModuleKey]*Module)
	modules := make([]*Module, 0)
	dateSet := make(map[string]struct{})

	for _, e := range entries {
		key := e.Key()
		if keep != nil {
			if _, ok := keep[key]; !ok {
				continue
			}
		}
		m, ok := byKey[key]
		if !ok {
			m = &Module{Name: e.Module, Code: e.ModuleCode, Cohort: e.Cohort, hours: newTable()}
			byKey[key] = m
			modules = append(modules, m)
		}
		date := e.DateKey()
		m.hours.Add(e.Type, date, e.Hours)
		dateSet[date] = struct{}{}
	}

	dates := make([]string, 0, len(dateSet))
	for d := range dateSet {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	for _, m := range modules {
		m.finish(dates, rank)
	}

	switch opts.Sort {
	case SortByCode:
		sort.SliceStable(modules, func(i, j int) bool {
			return modules[i].Code < modules[j].Code
		})
	default:
		sort.SliceStable(modules, func(i, j int) bool {
			return firstDateOrSentinel(modules[i]) < firstDateOrSentinel(modules[j])
		})
	}

	return Result{Modules: modules, Dates: dates}
}

func firstDateOrSentinel(m *Module) string {
	if m.FirstSessionDate == "" {
		return noDate
	}
	return m.FirstSessionDate
}

// finish derives the ordered types, totals and cumulative row. Sums run in
// a fixed order so that equal inputs give bit-identical results.
func (m *Module) finish(axis []string, rank func(string) int) {
	m.types = m.hours.Types()
	sort.Slice(m.types, func(i, j int) bool {
		ri, rj := rank(m.types[i]), rank(m.types[j])
		if ri != rj {
			return ri < rj
		}
		return m.types[i] < m.types[j]
	})

	if ds := m.hours.Dates(); len(ds) > 0 {
		m.LastSessionDate = ds[len(ds)-1]
	}

	m.typeTotals = make(map[string]float64, len(m.types))
	m.cumulative = make(map[string]float64)

	var running float64
	for _, d := range axis {
		var day float64
		for _, typ := range m.types {
			if h, ok := m.hours.Get(typ, d); ok {
				day += h
				m.typeTotals[typ] += h
			}
		}
		if day > 0 && m.FirstSessionDate == "" {
			m.FirstSessionDate = d
		}
		running += day
		m.total += day
		if running > 0 && d <= m.LastSessionDate {
			m.cumulative[d] = running
		}
	}
}

// Key returns the (code, cohort) key.
func (m *Module) Key() model.ModuleKey {
	return model.ModuleKey{Code: m.Code, Cohort: m.Cohort}
}

// Types returns the module's session types in display order.
func (m *Module) Types() []string {
	return append([]string(nil), m.types...)
}

// Hours returns the summed hours of a type on a date; ok is false when
// nothing was recorded, which renders as an empty cell rather than zero.
func (m *Module) Hours(sessionType, date string) (float64, bool) {
	return m.hours.Get(sessionType, date)
}

// TypeTotal is the sum of a type over the whole axis.
func (m *Module) TypeTotal(sessionType string) float64 {
	return m.typeTotals[sessionType]
}

// Total is the sum of every type.
func (m *Module) Total() float64 {
	return m.total
}

// SharePercent is the type's share of the module total, rounded half away
// from zero to a whole percent. A module without hours gives 0.
func (m *Module) SharePercent(sessionType string) int {
	if m.total <= 0 {
		return 0
	}
	return int(math.Round(m.typeTotals[sessionType] / m.total * 100))
}

// Cumulative returns the running total of the module up to and including
// date. It is absent before the first hour is recorded and after the
// module's last session, even though the running sum would carry on.
func (m *Module) Cumulative(date string) (float64, bool) {
	v, ok := m.cumulative[date]
	return v, ok
}
