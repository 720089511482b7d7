package aggregate

import "sort"

// cell addresses one bucket of a module: a session type on a day.
type cell struct {
	Type string
	Date string
}

// Table holds summed hours per (session type, date key). Add is the only
// writer, so every bucket is a sum of the entries that fell into it.
type Table struct {
	hours map[cell]float64
}

func newTable() Table {
	return Table{hours: make(map[cell]float64)}
}

// Add accumulates hours into the (sessionType, date) bucket.
func (t *Table) Add(sessionType, date string, hours float64) {
	if t.hours == nil {
		t.hours = make(map[cell]float64)
	}
	t.hours[cell{Type: sessionType, Date: date}] += hours
}

// Get returns the bucket value and whether anything was recorded there.
func (t Table) Get(sessionType, date string) (float64, bool) {
	h, ok := t.hours[cell{Type: sessionType, Date: date}]
	return h, ok
}

// Types returns the distinct session types, unordered.
func (t Table) Types() []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for c := range t.hours {
		if _, ok := seen[c.Type]; ok {
			continue
		}
		seen[c.Type] = struct{}{}
		out = append(out, c.Type)
	}
	return out
}

// Dates returns the distinct date keys in ascending order.
func (t Table) Dates() []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for c := range t.hours {
		if _, ok := seen[c.Date]; ok {
			continue
		}
		seen[c.Date] = struct{}{}
		out = append(out, c.Date)
	}
	sort.Strings(out)
	return out
}
