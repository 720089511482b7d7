package ics

import (
	"errors"
	"sort"
	"time"

	"github.com/teambition/rrule-go"

	appLog "coursedash/internal/log"
)

const (
	defaultMaxOccurrencesPerEvent = 5000

	// defaultHorizon bounds open-ended rules when no range is configured:
	// one teaching year after the first occurrence.
	defaultHorizon = 366 * 24 * time.Hour
)

// ExpandConfig controls recurrence expansion.
type ExpandConfig struct {
	// RangeStart / RangeEnd bound the occurrences (inclusive). When both are
	// zero, single events are all kept and recurring events are expanded
	// over defaultHorizon from their DTSTART.
	RangeStart time.Time
	RangeEnd   time.Time

	// MaxOccurrencesPerEvent caps a single RRULE. Zero means the default.
	MaxOccurrencesPerEvent int
}

// ExpandResult lists concrete occurrences ordered by start.
type ExpandResult struct {
	Occurrences []RawEvent
	// TruncatedEvents records UIDs that hit MaxOccurrencesPerEvent.
	TruncatedEvents []string
}

// Expand turns decoded events into concrete occurrences: plain events pass
// through, RRULEs are expanded with EXDATEs removed, and RECURRENCE-ID
// overrides replace the instance they target.
func Expand(events []RawEvent, cfg ExpandConfig) (ExpandResult, error) {
	var result ExpandResult

	bounded := !cfg.RangeStart.IsZero() || !cfg.RangeEnd.IsZero()
	if bounded && cfg.RangeEnd.Before(cfg.RangeStart) {
		return result, errors.New("expand: RangeEnd is before RangeStart")
	}
	if cfg.MaxOccurrencesPerEvent <= 0 {
		cfg.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}

	baseByUID := make(map[string][]RawEvent)
	overridesByUID := make(map[string][]RawEvent)
	uids := make([]string, 0)
	overrideUIDs := make([]string, 0)
	for _, ev := range events {
		if ev.IsOverride && ev.Recurrence != nil {
			if _, seen := overridesByUID[ev.UID]; !seen {
				overrideUIDs = append(overrideUIDs, ev.UID)
			}
			overridesByUID[ev.UID] = append(overridesByUID[ev.UID], ev)
			continue
		}
		if _, seen := baseByUID[ev.UID]; !seen {
			uids = append(uids, ev.UID)
		}
		baseByUID[ev.UID] = append(baseByUID[ev.UID], ev)
	}

	out := make([]RawEvent, 0, len(events))
	for _, uid := range uids {
		ov := overridesByUID[uid]
		truncated := false
		for _, ev := range baseByUID[uid] {
			occ, hitCap := expandEvent(ev, ov, cfg, bounded)
			truncated = truncated || hitCap
			out = append(out, occ...)
		}
		if truncated {
			result.TruncatedEvents = append(result.TruncatedEvents, uid)
			appLog.Warn("expand: occurrences truncated", "uid", uid, "cap", cfg.MaxOccurrencesPerEvent)
		}
	}

	// Overrides whose base event is missing still describe a real session.
	for _, uid := range overrideUIDs {
		if _, ok := baseByUID[uid]; ok {
			continue
		}
		for _, o := range overridesByUID[uid] {
			if !bounded || overlaps(o.Start, o.End, cfg.RangeStart, cfg.RangeEnd) {
				out = append(out, asOccurrence(o, o.Start, o.End))
			}
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	result.Occurrences = out
	return result, nil
}

func expandEvent(ev RawEvent, overrides []RawEvent, cfg ExpandConfig, bounded bool) ([]RawEvent, bool) {
	if ev.RawRRule == "" {
		if bounded && !overlaps(ev.Start, ev.End, cfg.RangeStart, cfg.RangeEnd) {
			return nil, false
		}
		if o, ok := findOverride(overrides, ev.Start); ok {
			return []RawEvent{asOccurrence(o, o.Start, o.End)}, false
		}
		return []RawEvent{asOccurrence(ev, ev.Start, ev.End)}, false
	}
	return expandRecurring(ev, overrides, cfg, bounded)
}

func expandRecurring(ev RawEvent, overrides []RawEvent, cfg ExpandConfig, bounded bool) ([]RawEvent, bool) {
	opt, err := rrule.StrToROption(ev.RawRRule)
	if err != nil {
		appLog.Error("expand: failed to parse RRULE", err, "uid", ev.UID, "rrule", ev.RawRRule)
		return []RawEvent{asOccurrence(ev, ev.Start, ev.End)}, false
	}
	opt.Dtstart = ev.Start
	r, err := rrule.NewRRule(*opt)
	if err != nil {
		appLog.Error("expand: invalid RRULE", err, "uid", ev.UID, "rrule", ev.RawRRule)
		return []RawEvent{asOccurrence(ev, ev.Start, ev.End)}, false
	}

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	rangeStart, rangeEnd := ev.Start, ev.Start.Add(defaultHorizon)
	if bounded {
		rangeStart = cfg.RangeStart.In(ev.Start.Location())
		rangeEnd = cfg.RangeEnd.In(ev.Start.Location())
	}

	times := set.Between(rangeStart, rangeEnd, true)
	hitCap := false
	if len(times) > cfg.MaxOccurrencesPerEvent {
		times = times[:cfg.MaxOccurrencesPerEvent]
		hitCap = true
	}

	dur := ev.End.Sub(ev.Start)
	out := make([]RawEvent, 0, len(times))
	for _, start := range times {
		end := start.Add(dur)
		if ev.AllDay {
			start = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, start.Location())
			end = start.AddDate(0, 0, 1)
		}
		if o, ok := findOverride(overrides, start); ok {
			out = append(out, asOccurrence(o, o.Start, o.End))
			continue
		}
		out = append(out, asOccurrence(ev, start, end))
	}
	return out, hitCap
}

func findOverride(overrides []RawEvent, start time.Time) (RawEvent, bool) {
	for _, ov := range overrides {
		if ov.Recurrence != nil && ov.Recurrence.Equal(start) {
			return ov, true
		}
	}
	return RawEvent{}, false
}

// asOccurrence strips recurrence data so the result describes one session.
func asOccurrence(ev RawEvent, start, end time.Time) RawEvent {
	return RawEvent{
		UID:     ev.UID,
		Seq:     ev.Seq,
		Summary: ev.Summary,
		Start:   start,
		End:     end,
		AllDay:  ev.AllDay,
	}
}

func overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return !aEnd.Before(bStart) && !bEnd.Before(aStart)
}
