package model

import (
	"fmt"
	"strings"
	"time"
)

// DateKeyLayout is the calendar-day layout used for the column axis and
// hour buckets. Lexicographic order equals chronological order.
const DateKeyLayout = "2006-01-02"

// TypeUnspecified is the session type of entries whose title carries no
// known tag.
const TypeUnspecified = "N/A"

// Cohort distinguishes apprenticeship groups from standard-track groups.
type Cohort string

const (
	CohortApprentice Cohort = "apprentice"
	CohortStandard   Cohort = "standard"
)

// UnmarshalText also accepts the French labels written by older session
// files ("Apprentis", "Initiaux").
func (c *Cohort) UnmarshalText(b []byte) error {
	switch v := string(b); v {
	case string(CohortApprentice), "Apprentis":
		*c = CohortApprentice
	case string(CohortStandard), "Initiaux", "":
		*c = CohortStandard
	default:
		return fmt.Errorf("unknown cohort %q", v)
	}
	return nil
}

// ScheduleEntry is one normalized teaching session occurrence.
type ScheduleEntry struct {
	// Start is the session start rebuilt in UTC from the event's wall-clock
	// fields, so its date is the date shown in the source calendar.
	Start time.Time `json:"startDate"`
	// Hours is the session length; never negative.
	Hours float64 `json:"hours"`

	// StartTime and EndTime are HH:MM strings for display only.
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`

	Title      string `json:"title"`
	Module     string `json:"module"`
	ModuleCode string `json:"moduleCode"`
	Type       string `json:"type"`
	Cohort     Cohort `json:"classType"`
}

// DateKey returns the calendar day of the session start.
func (e ScheduleEntry) DateKey() string {
	return e.Start.UTC().Format(DateKeyLayout)
}

// Key returns the row-group key of the entry.
func (e ScheduleEntry) Key() ModuleKey {
	return ModuleKey{Code: e.ModuleCode, Cohort: e.Cohort}
}

// ModuleKey identifies one row group of the matrix.
type ModuleKey struct {
	Code   string
	Cohort Cohort
}

func (k ModuleKey) String() string {
	return fmt.Sprintf("%s (%s)", k.Code, k.Cohort)
}

// ParseModuleKey is the inverse of ModuleKey.String. A value without a
// cohort suffix is read as a standard-track code. The French cohort
// labels of older session files are accepted too.
func ParseModuleKey(s string) (ModuleKey, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return ModuleKey{}, fmt.Errorf("empty module key")
	}
	i := strings.LastIndex(s, " (")
	if i < 0 || !strings.HasSuffix(s, ")") {
		return ModuleKey{Code: s, Cohort: CohortStandard}, nil
	}
	label := s[i+2 : len(s)-1]
	var cohort Cohort
	if label == "" || cohort.UnmarshalText([]byte(label)) != nil {
		return ModuleKey{}, fmt.Errorf("unknown cohort %q in module key %q", label, s)
	}
	return ModuleKey{Code: s[:i], Cohort: cohort}, nil
}
