// Package workspace holds the state behind a dashboard: every parsed
// entry, the selected period and modules, the display preferences and the
// module colors. A Workspace is not safe for concurrent use; the web
// server guards it with its own lock.
package workspace

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"time"
	"unicode/utf16"

	"coursedash/internal/aggregate"
	"coursedash/internal/config"
	"coursedash/internal/export"
	"coursedash/internal/log"
	"coursedash/internal/model"
)

// ErrNoData means the period or the module selection leaves nothing to
// show. It is a state to render, not a failure.
var ErrNoData = errors.New("no session in the selected period")

// Options configures New.
type Options struct {
	Display  config.Display
	FileName string
	// Rank orders session types; nil uses the default classifier ranking.
	Rank func(string) int
	// Now is the reference time for the school-year default period.
	Now time.Time
}

// Workspace is the mutable dashboard state.
type Workspace struct {
	Display      config.Display
	ModuleColors map[string]string
	FileName     string

	entries   []model.ScheduleEntry
	inPeriod  []model.ScheduleEntry
	start     string
	end       string
	available []string
	selected  []string
	rank      func(string) int
}

// New creates a workspace over entries. The period is the configured one
// when set, else the school year around opts.Now. A period without data
// is kept; Aggregate then reports ErrNoData.
func New(entries []model.ScheduleEntry, opts Options) *Workspace {
	display := opts.Display
	display.Normalize()
	w := &Workspace{
		Display:      display,
		ModuleColors: make(map[string]string),
		FileName:     opts.FileName,
		entries:      slices.Clone(entries),
		rank:         opts.Rank,
	}
	start, end := SchoolYearBounds(opts.Now)
	if err := w.SetPeriod(start, end); err != nil && !errors.Is(err, ErrNoData) {
		log.Warn("workspace: default period rejected", "start", start, "end", end, "err", err)
	}
	return w
}

// SchoolYearBounds returns the default period around now as date keys:
// from the last Monday of August to the last Friday of July of the next
// year. The school year starts in August.
func SchoolYearBounds(now time.Time) (start, end string) {
	year := now.Year()
	if now.Month() < time.August {
		year--
	}

	aug := time.Date(year, time.August, 31, 0, 0, 0, 0, time.UTC)
	for aug.Weekday() != time.Monday {
		aug = aug.AddDate(0, 0, -1)
	}
	jul := time.Date(year+1, time.July, 31, 0, 0, 0, 0, time.UTC)
	for jul.Weekday() != time.Friday {
		jul = jul.AddDate(0, 0, -1)
	}
	return aug.Format(model.DateKeyLayout), jul.Format(model.DateKeyLayout)
}

// SetEntries replaces every entry, e.g. after an upload or a refresh, and
// re-applies the current period.
func (w *Workspace) SetEntries(entries []model.ScheduleEntry, fileName string) error {
	w.entries = slices.Clone(entries)
	if fileName != "" {
		w.FileName = fileName
	}
	return w.SetPeriod(w.start, w.end)
}

// SetPeriod keeps the entries starting within [start 00:00, end
// 23:59:59.999] UTC, refreshes the available modules, selects all of them
// and assigns a color to every module that has none. When no entry falls
// in the period the previous period is kept and ErrNoData is returned.
func (w *Workspace) SetPeriod(start, end string) error {
	from, err := time.Parse(model.DateKeyLayout, start)
	if err != nil {
		return fmt.Errorf("period start: %w", err)
	}
	to, err := time.Parse(model.DateKeyLayout, end)
	if err != nil {
		return fmt.Errorf("period end: %w", err)
	}
	if to.Before(from) {
		return fmt.Errorf("period end %s is before start %s", end, start)
	}
	to = to.Add(24*time.Hour - time.Millisecond)

	var kept []model.ScheduleEntry
	for _, e := range w.entries {
		if !e.Start.Before(from) && !e.Start.After(to) {
			kept = append(kept, e)
		}
	}
	if len(kept) == 0 {
		if w.start == "" {
			w.start, w.end = start, end
		}
		return ErrNoData
	}

	w.start, w.end = start, end
	w.inPeriod = kept
	w.available = moduleKeys(kept)
	w.selected = slices.Clone(w.available)
	for _, k := range w.available {
		if _, ok := w.ModuleColors[k]; !ok {
			w.ModuleColors[k] = ModuleColor(k)
		}
	}
	return nil
}

func moduleKeys(entries []model.ScheduleEntry) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, e := range entries {
		k := e.Key().String()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Period returns the current period bounds as date keys.
func (w *Workspace) Period() (start, end string) {
	return w.start, w.end
}

// Entries returns every entry, regardless of the period.
func (w *Workspace) Entries() []model.ScheduleEntry {
	return slices.Clone(w.entries)
}

// PeriodEntries returns the entries of the current period.
func (w *Workspace) PeriodEntries() []model.ScheduleEntry {
	return slices.Clone(w.inPeriod)
}

// AvailableModules returns the sorted module keys of the period.
func (w *Workspace) AvailableModules() []string {
	return slices.Clone(w.available)
}

// Selected returns the selected module keys.
func (w *Workspace) Selected() []string {
	return slices.Clone(w.selected)
}

// Select replaces the selection. Every key must be available; an empty
// list selects nothing.
func (w *Workspace) Select(keys []string) error {
	next := make([]string, 0, len(keys))
	for _, k := range keys {
		key, err := model.ParseModuleKey(k)
		if err != nil {
			return err
		}
		s := key.String()
		if !slices.Contains(w.available, s) {
			return fmt.Errorf("module %q is not in the selected period", s)
		}
		if !slices.Contains(next, s) {
			next = append(next, s)
		}
	}
	w.selected = next
	return nil
}

// SelectAll selects every available module.
func (w *Workspace) SelectAll() {
	w.selected = slices.Clone(w.available)
}

// Filter converts the selection for aggregate.Options. It is never nil,
// so an empty selection keeps no module.
func (w *Workspace) Filter() []model.ModuleKey {
	out := make([]model.ModuleKey, 0, len(w.selected))
	for _, s := range w.selected {
		k, err := model.ParseModuleKey(s)
		if err != nil {
			log.Warn("workspace: skipping malformed module key", "key", s, "err", err)
			continue
		}
		out = append(out, k)
	}
	return out
}

// Aggregate runs the engine over the period with the current selection
// and sort order.
func (w *Workspace) Aggregate() (aggregate.Result, error) {
	if len(w.inPeriod) == 0 || len(w.selected) == 0 {
		return aggregate.Result{}, ErrNoData
	}
	policy, err := aggregate.ParseSortPolicy(w.Display.SortOrder)
	if err != nil {
		policy = aggregate.SortByDate
	}
	res := aggregate.Aggregate(w.inPeriod, aggregate.Options{
		Sort:   policy,
		Filter: w.Filter(),
		Rank:   w.rank,
	})
	if res.Empty() {
		return res, ErrNoData
	}
	return res, nil
}

// Snapshot returns the session document of the workspace.
func (w *Workspace) Snapshot() *export.Document {
	colors := make(map[string]string, len(w.ModuleColors))
	for k, v := range w.ModuleColors {
		colors[k] = v
	}
	return &export.Document{
		Entries:          slices.Clone(w.entries),
		Display:          w.Display,
		ModuleColors:     colors,
		DefaultStartDate: w.start,
		DefaultEndDate:   w.end,
		AvailableModules: slices.Clone(w.available),
		SelectedModules:  slices.Clone(w.selected),
		FileName:         w.FileName,
	}
}

// Restore rebuilds a workspace from a session document. Missing period
// bounds default to the school year around now. The saved module list and
// selection are taken as is.
func Restore(doc *export.Document, rank func(string) int, now time.Time) (*Workspace, error) {
	start, end := SchoolYearBounds(now)
	if doc.DefaultStartDate != "" {
		start = doc.DefaultStartDate
	}
	if doc.DefaultEndDate != "" {
		end = doc.DefaultEndDate
	}

	display := doc.Display
	display.Normalize()
	w := &Workspace{
		Display:      display,
		ModuleColors: make(map[string]string, len(doc.ModuleColors)),
		FileName:     doc.FileName,
		entries:      slices.Clone(doc.Entries),
		rank:         rank,
	}
	for k, v := range doc.ModuleColors {
		w.ModuleColors[canonicalKey(k)] = v
	}

	if err := w.SetPeriod(start, end); err != nil && !errors.Is(err, ErrNoData) {
		return nil, fmt.Errorf("%w: %v", export.ErrInvalidSession, err)
	}
	w.available = canonicalKeys(doc.AvailableModules)
	w.selected = canonicalKeys(doc.SelectedModules)
	return w, nil
}

// canonicalKey rewrites a saved module key to ModuleKey.String form, so
// keys written with the French cohort labels match the entries. Keys that
// do not parse are kept as they are.
func canonicalKey(s string) string {
	k, err := model.ParseModuleKey(s)
	if err != nil {
		return s
	}
	return k.String()
}

func canonicalKeys(keys []string) []string {
	out := make([]string, 0, len(keys))
	for _, s := range keys {
		if c := canonicalKey(s); !slices.Contains(out, c) {
			out = append(out, c)
		}
	}
	return out
}

// ModuleColor derives a stable dark color from a module key.
func ModuleColor(key string) string {
	var hash int64
	for _, c := range utf16.Encode([]rune(key)) {
		hash = int64(c) + (int64(int32(hash)<<5) - hash)
	}
	return fmt.Sprintf("hsl(%d, 50%%, 25%%)", hash%360)
}
