package ics

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "coursedash/internal/log"
)

// ErrInvalidCalendar is returned when a payload cannot be decoded as a
// calendar at all. Individual malformed events never produce it.
var ErrInvalidCalendar = errors.New("invalid calendar file")

// RawEvent is a decoded VEVENT, before recurrence expansion and title
// classification.
type RawEvent struct {
	UID string
	Seq int

	Summary string

	// Start / End keep the event's own timezone so that their wall-clock
	// fields are the ones written in the calendar.
	Start  time.Time
	End    time.Time
	AllDay bool

	RawRRule   string
	ExDates    []time.Time
	Recurrence *time.Time // RECURRENCE-ID, set on overrides
	IsOverride bool
}

// Decode parses one ICS payload into raw events.
//
// A payload that is empty, is not a VCALENDAR, or that the library rejects
// fails as a whole with ErrInvalidCalendar. A VEVENT without a usable
// DTSTART is logged and skipped.
func Decode(body []byte) ([]RawEvent, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrInvalidCalendar)
	}
	if !bytes.Contains(body, []byte("BEGIN:VCALENDAR")) {
		return nil, fmt.Errorf("%w: missing VCALENDAR", ErrInvalidCalendar)
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCalendar, err)
	}

	vevents := cal.Events()
	events := make([]RawEvent, 0, len(vevents))
	for i, comp := range vevents {
		ev, perr := decodeVEvent(comp)
		if perr != nil {
			appLog.Warn("ics vevent skipped", "index", i, "reason", perr.Error())
			continue
		}
		if ev.UID == "" {
			ev.UID = "event-" + strconv.Itoa(i)
		}
		events = append(events, ev)
	}

	appLog.Debug("ics decode completed", "vevents", len(vevents), "events", len(events))
	return events, nil
}

func decodeVEvent(ve *ical.VEvent) (RawEvent, error) {
	var out RawEvent

	if p := ve.GetProperty(ical.ComponentPropertyUniqueId); p != nil {
		out.UID = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertySequence); p != nil {
		if n, err := strconv.Atoi(strings.TrimSpace(p.Value)); err == nil {
			out.Seq = n
		}
	}
	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Summary = p.Value
	}

	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil {
		return out, errors.New("missing DTSTART")
	}
	start, err := ve.GetStartAt()
	if err != nil {
		return out, fmt.Errorf("DTSTART: %w", err)
	}
	out.Start = start

	// A missing or unreadable DTEND makes a zero-length session.
	out.End = start
	if ve.GetProperty(ical.ComponentPropertyDtEnd) != nil {
		if end, err := ve.GetEndAt(); err == nil {
			out.End = end
		}
	}

	if vs, ok := dtStart.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		out.AllDay = true
	}
	if !strings.Contains(dtStart.Value, "T") {
		out.AllDay = true
	}

	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		out.RawRRule = p.Value
	}

	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(p.Value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if t, err := parseICSTime(part, out.Start.Location()); err == nil {
				out.ExDates = append(out.ExDates, t)
			}
		}
	}

	if p := ve.GetProperty("RECURRENCE-ID"); p != nil {
		if t, err := parseICSTime(p.Value, out.Start.Location()); err == nil {
			out.Recurrence = &t
			out.IsOverride = true
		}
	}

	return out, nil
}

// parseICSTime reads the basic DATE / DATE-TIME / UTC forms used by EXDATE
// and RECURRENCE-ID. Values without a zone are read in loc, the zone of
// the owning event's DTSTART.
func parseICSTime(v string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, errors.New("empty time value")
	}
	if loc == nil {
		loc = time.UTC
	}
	if strings.HasSuffix(v, "Z") {
		return time.Parse("20060102T150405Z", v)
	}
	if strings.Contains(v, "T") {
		return time.ParseInLocation("20060102T150405", v, loc)
	}
	return time.ParseInLocation("20060102", v, loc)
}
