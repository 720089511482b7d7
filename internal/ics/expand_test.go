package ics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func utc(y int, m time.Month, d, h, min int) time.Time {
	return time.Date(y, m, d, h, min, 0, 0, time.UTC)
}

func TestExpand_Unbounded(t *testing.T) {
	events, err := Decode(readFixture(t))
	require.NoError(t, err)

	res, err := Expand(events, ExpandConfig{})
	require.NoError(t, err)
	require.Len(t, res.Occurrences, 6)
	assert.Empty(t, res.TruncatedEvents)

	starts := make([]time.Time, 0, len(res.Occurrences))
	for _, o := range res.Occurrences {
		starts = append(starts, o.Start.UTC())
		assert.Empty(t, o.RawRRule)
		assert.False(t, o.IsOverride)
	}
	assert.Equal(t, []time.Time{
		utc(2025, 9, 8, 8, 0),
		utc(2025, 9, 8, 13, 0),
		utc(2025, 9, 10, 8, 0),
		utc(2025, 9, 15, 9, 0),
		utc(2025, 9, 29, 14, 0), // moved by RECURRENCE-ID
		utc(2025, 10, 6, 9, 0),
	}, starts)

	moved := res.Occurrences[4]
	assert.Equal(t, 3*time.Hour, moved.End.Sub(moved.Start))
}

func TestExpand_Range(t *testing.T) {
	events, err := Decode(readFixture(t))
	require.NoError(t, err)

	res, err := Expand(events, ExpandConfig{
		RangeStart: utc(2025, 9, 9, 0, 0),
		RangeEnd:   utc(2025, 9, 30, 0, 0),
	})
	require.NoError(t, err)

	require.Len(t, res.Occurrences, 3)
	assert.Equal(t, "SAe 3.OSC.03 APP TP2", res.Occurrences[0].Summary)
}

func TestExpand_Cap(t *testing.T) {
	ev := RawEvent{
		UID:      "daily",
		Summary:  "R1.01 TDA",
		Start:    utc(2025, 9, 1, 8, 0),
		End:      utc(2025, 9, 1, 9, 0),
		RawRRule: "FREQ=DAILY",
	}

	res, err := Expand([]RawEvent{ev}, ExpandConfig{MaxOccurrencesPerEvent: 10})
	require.NoError(t, err)
	assert.Len(t, res.Occurrences, 10)
	assert.Equal(t, []string{"daily"}, res.TruncatedEvents)
}

func TestExpand_BadRRuleKeepsFirstOccurrence(t *testing.T) {
	ev := RawEvent{UID: "x", Start: utc(2025, 9, 1, 8, 0), End: utc(2025, 9, 1, 9, 0), RawRRule: "FREQ=SOMETIMES"}

	res, err := Expand([]RawEvent{ev}, ExpandConfig{})
	require.NoError(t, err)
	require.Len(t, res.Occurrences, 1)
	assert.True(t, res.Occurrences[0].Start.Equal(ev.Start))
}

func TestExpand_InvertedRange(t *testing.T) {
	_, err := Expand(nil, ExpandConfig{RangeStart: utc(2025, 9, 2, 0, 0), RangeEnd: utc(2025, 9, 1, 0, 0)})
	assert.Error(t, err)
}

func TestExpand_OrphanOverridesKeepInputOrder(t *testing.T) {
	rid := utc(2025, 9, 1, 8, 0)
	var events []RawEvent
	var want []string
	for _, uid := range []string{"k", "c", "x", "a", "m", "b", "z", "e"} {
		events = append(events, RawEvent{
			UID:        uid,
			Summary:    "R1.01 TDA",
			Start:      utc(2025, 9, 3, 8, 0),
			End:        utc(2025, 9, 3, 10, 0),
			Recurrence: &rid,
			IsOverride: true,
		})
		want = append(want, uid)
	}

	for range 20 {
		res, err := Expand(events, ExpandConfig{})
		require.NoError(t, err)
		got := make([]string, 0, len(res.Occurrences))
		for _, o := range res.Occurrences {
			got = append(got, o.UID)
		}
		require.Equal(t, want, got)
	}
}
