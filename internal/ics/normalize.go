package ics

import (
	"fmt"
	"time"

	"coursedash/internal/classify"
	appLog "coursedash/internal/log"
	"coursedash/internal/model"
)

// Normalizer turns raw occurrences into schedule entries.
type Normalizer struct {
	classifier *classify.Classifier
	display    *time.Location
}

// NewNormalizer builds a Normalizer. display is only used to render the
// HH:MM strings; nil means UTC.
func NewNormalizer(c *classify.Classifier, display *time.Location) *Normalizer {
	if c == nil {
		c = classify.Default()
	}
	if display == nil {
		display = time.UTC
	}
	return &Normalizer{classifier: c, display: display}
}

// Normalize converts one occurrence.
//
// The start and end instants are rebuilt in UTC from the wall-clock fields
// written in the calendar, so the duration and the date key never shift
// with the zone the calendar was exported from.
func (n *Normalizer) Normalize(ev RawEvent) model.ScheduleEntry {
	start := wallClockUTC(ev.Start)
	end := wallClockUTC(ev.End)

	hours := end.Sub(start).Hours()
	if hours < 0 {
		appLog.Warn("event ends before it starts", "uid", ev.UID, "summary", ev.Summary)
		hours = 0
	}

	d := n.classifier.Classify(ev.Summary)
	return model.ScheduleEntry{
		Start:      start,
		Hours:      hours,
		StartTime:  ev.Start.In(n.display).Format("15:04"),
		EndTime:    ev.End.In(n.display).Format("15:04"),
		Title:      ev.Summary,
		Module:     d.Module,
		ModuleCode: d.ModuleCode,
		Type:       d.Type,
		Cohort:     d.Cohort,
	}
}

// NormalizeAll converts a slice of occurrences, preserving order.
func (n *Normalizer) NormalizeAll(events []RawEvent) []model.ScheduleEntry {
	out := make([]model.ScheduleEntry, 0, len(events))
	for _, ev := range events {
		out = append(out, n.Normalize(ev))
	}
	return out
}

// ParseEntries decodes a calendar payload, expands recurring events and
// normalizes every occurrence. The only error is ErrInvalidCalendar.
func ParseEntries(body []byte, n *Normalizer, cfg ExpandConfig) ([]model.ScheduleEntry, error) {
	raw, err := Decode(body)
	if err != nil {
		return nil, err
	}
	res, err := Expand(raw, cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCalendar, err)
	}
	entries := n.NormalizeAll(res.Occurrences)
	appLog.Info("calendar parsed", "events", len(raw), "entries", len(entries), "truncated", len(res.TruncatedEvents))
	return entries, nil
}

func wallClockUTC(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
}
