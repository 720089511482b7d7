package aggregate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coursedash/internal/model"
)

func entry(code string, cohort model.Cohort, typ, date string, hours float64) model.ScheduleEntry {
	start, err := time.Parse("2006-01-02 15:04", date+" 08:00")
	if err != nil {
		panic(err)
	}
	return model.ScheduleEntry{
		Start:      start,
		Hours:      hours,
		Title:      code + " " + typ,
		Module:     code + " name",
		ModuleCode: code,
		Type:       typ,
		Cohort:     cohort,
	}
}

const std, app = model.CohortStandard, model.CohortApprentice

// cells counts the non-empty (type, date) cells of m.
func cells(m *Module, dates []string) int {
	n := 0
	for _, typ := range m.Types() {
		for _, d := range dates {
			if _, ok := m.Hours(typ, d); ok {
				n++
			}
		}
	}
	return n
}

func codes(r Result) []string {
	out := make([]string, 0, len(r.Modules))
	for _, m := range r.Modules {
		out = append(out, m.Key().String())
	}
	return out
}

func TestAggregate_SumsSameBucket(t *testing.T) {
	res := Aggregate([]model.ScheduleEntry{
		entry("R5.09", std, "TDA", "2025-09-08", 2),
		entry("R5.09", std, "TDA", "2025-09-08", 1.5),
	}, Options{})

	require.Len(t, res.Modules, 1)
	m := res.Modules[0]
	h, ok := m.Hours("TDA", "2025-09-08")
	assert.True(t, ok)
	assert.Equal(t, 3.5, h)
	assert.Equal(t, 1, cells(m, res.Dates))
	assert.Equal(t, []string{"2025-09-08"}, res.Dates)
}

func TestAggregate_GroupsByCodeAndCohort(t *testing.T) {
	res := Aggregate([]model.ScheduleEntry{
		entry("R5.09", std, "TDA", "2025-09-08", 2),
		entry("R5.09", app, "TDA", "2025-09-08", 2),
		entry("R5.09", std, "TP1", "2025-09-09", 3),
	}, Options{})

	assert.Equal(t, []string{"R5.09 (standard)", "R5.09 (apprentice)"}, codes(res))
	assert.Equal(t, 5.0, res.Modules[0].Total())
	assert.Equal(t, 2.0, res.Modules[1].Total())
}

func TestAggregate_Empty(t *testing.T) {
	res := Aggregate(nil, Options{})
	assert.True(t, res.Empty())
	assert.Empty(t, res.Dates)

	res = Aggregate([]model.ScheduleEntry{entry("R1", std, "TDA", "2025-09-08", 1)}, Options{Filter: []model.ModuleKey{}})
	assert.True(t, res.Empty())
	assert.Empty(t, res.Dates)
}

func TestAggregate_FilterNarrowsDateAxis(t *testing.T) {
	entries := []model.ScheduleEntry{
		entry("R1.01", std, "TDA", "2025-09-08", 2),
		entry("R1.02", std, "TDA", "2025-09-09", 2),
		entry("R1.01", app, "TDA", "2025-09-10", 2),
	}

	res := Aggregate(entries, Options{Filter: []model.ModuleKey{{Code: "R1.01", Cohort: std}}})

	assert.Equal(t, []string{"R1.01 (standard)"}, codes(res))
	assert.Equal(t, []string{"2025-09-08"}, res.Dates)
}

func TestAggregate_SortByFirstSessionDate(t *testing.T) {
	entries := []model.ScheduleEntry{
		entry("R3", std, "TDA", "2025-09-20", 1),
		entry("R1", std, "TDA", "2025-09-15", 1),
		entry("R2", std, "TDA", "2025-09-10", 1),
		entry("R1", std, "TDA", "2025-09-01", 1),
		entry("R4", std, "TDA", "2025-09-10", 1),
		entry("R0", std, "TDA", "2025-09-05", 0),
	}

	res := Aggregate(entries, Options{Sort: SortByDate})

	// R2 and R4 tie on 2025-09-10 and keep their input order; R0 has no
	// positive hours and goes last.
	assert.Equal(t, []string{"R1 (standard)", "R2 (standard)", "R4 (standard)", "R3 (standard)", "R0 (standard)"}, codes(res))
}

func TestAggregate_SortByCode(t *testing.T) {
	entries := []model.ScheduleEntry{
		entry("SAe 3.OSC.03", app, "TP2", "2025-09-01", 4),
		entry("R5.09", std, "TDA", "2025-09-20", 1),
		entry("R1.01", app, "TDA", "2025-09-15", 1),
		entry("R1.01", std, "TDA", "2025-09-02", 1),
	}

	res := Aggregate(entries, Options{Sort: SortByCode})

	assert.Equal(t, []string{"R1.01 (apprentice)", "R1.01 (standard)", "R5.09 (standard)", "SAe 3.OSC.03 (apprentice)"}, codes(res))
}

func TestModule_TypeOrder(t *testing.T) {
	var entries []model.ScheduleEntry
	for _, typ := range []string{"Controle", "TP2", "Soutenance", "TDB", "TP1", model.TypeUnspecified, "TDA", "TP3"} {
		entries = append(entries, entry("R1", std, typ, "2025-09-08", 1))
	}

	res := Aggregate(entries, Options{})

	require.Len(t, res.Modules, 1)
	assert.Equal(t, []string{model.TypeUnspecified, "TDA", "TDB", "TP1", "TP2", "TP3", "Controle", "Soutenance"}, res.Modules[0].Types())
}

func TestModule_CustomRank(t *testing.T) {
	entries := []model.ScheduleEntry{
		entry("R1", std, "B", "2025-09-08", 1),
		entry("R1", std, "A", "2025-09-08", 1),
		entry("R1", std, "C", "2025-09-08", 1),
	}
	rank := func(s string) int {
		if s == "C" {
			return 0
		}
		return 1
	}

	res := Aggregate(entries, Options{Rank: rank})

	assert.Equal(t, []string{"C", "A", "B"}, res.Modules[0].Types())
}

func TestModule_TotalsAndShares(t *testing.T) {
	res := Aggregate([]model.ScheduleEntry{
		entry("R1", std, model.TypeUnspecified, "2025-09-08", 1.5),
		entry("R1", std, "TDA", "2025-09-09", 3),
		entry("R1", std, "TDA", "2025-09-10", 1.5),
		entry("R1", std, "TP1", "2025-09-10", 2),
	}, Options{})

	m := res.Modules[0]
	assert.Equal(t, 8.0, m.Total())
	assert.Equal(t, 4.5, m.TypeTotal("TDA"))
	assert.Equal(t, 56, m.SharePercent("TDA")) // 56.25
	assert.Equal(t, 19, m.SharePercent(model.TypeUnspecified))
	assert.Equal(t, 25, m.SharePercent("TP1"))
	assert.Equal(t, 0, m.SharePercent("Controle"))

	_, ok := m.Hours("TP1", "2025-09-08")
	assert.False(t, ok, "no zero placeholder for empty cells")
}

func TestModule_SharePercentRoundsHalfUp(t *testing.T) {
	res := Aggregate([]model.ScheduleEntry{
		entry("R1", std, "TDA", "2025-09-08", 1),
		entry("R1", std, "TP1", "2025-09-08", 7),
	}, Options{})

	assert.Equal(t, 13, res.Modules[0].SharePercent("TDA")) // 12.5
	assert.Equal(t, 88, res.Modules[0].SharePercent("TP1")) // 87.5
}

func TestModule_ZeroHourModuleShare(t *testing.T) {
	res := Aggregate([]model.ScheduleEntry{entry("R1", std, "TDA", "2025-09-08", 0)}, Options{})

	assert.Equal(t, 0, res.Modules[0].SharePercent("TDA"))
	_, ok := res.Modules[0].Cumulative("2025-09-08")
	assert.False(t, ok)
}

func TestModule_Cumulative(t *testing.T) {
	res := Aggregate([]model.ScheduleEntry{
		entry("R1", std, "TDA", "2025-09-09", 2),
		entry("R1", std, "TP1", "2025-09-09", 1),
		entry("R1", std, "TDA", "2025-09-11", 1.5),
		entry("R2", std, "TDA", "2025-09-08", 4),
		entry("R2", std, "TDA", "2025-09-10", 4),
		entry("R2", std, "TDA", "2025-09-12", 4),
	}, Options{Sort: SortByCode})

	require.Equal(t, []string{"2025-09-08", "2025-09-09", "2025-09-10", "2025-09-11", "2025-09-12"}, res.Dates)
	r1 := res.Modules[0]
	assert.Equal(t, "2025-09-11", r1.LastSessionDate)

	_, ok := r1.Cumulative("2025-09-08")
	assert.False(t, ok, "nothing accumulated yet")

	v, ok := r1.Cumulative("2025-09-09")
	assert.True(t, ok)
	assert.Equal(t, 3.0, v)

	v, ok = r1.Cumulative("2025-09-10")
	assert.True(t, ok, "gap days inside the module's span carry the running total")
	assert.Equal(t, 3.0, v)

	v, ok = r1.Cumulative("2025-09-11")
	assert.True(t, ok)
	assert.Equal(t, 4.5, v)

	_, ok = r1.Cumulative("2025-09-12")
	assert.False(t, ok, "no value after the last session")
}

func TestAggregate_BucketSumProperty(t *testing.T) {
	entries := []model.ScheduleEntry{
		entry("R1", std, "TDA", "2025-09-08", 0.25),
		entry("R1", std, "TDA", "2025-09-08", 0.5),
		entry("R1", std, "TDA", "2025-09-08", 1.25),
		entry("R1", std, "TP1", "2025-09-08", 2),
		entry("R1", app, "TDA", "2025-09-08", 3),
		entry("R2", std, "TDA", "2025-09-09", 1),
	}

	res := Aggregate(entries, Options{})

	want := make(map[model.ModuleKey]map[[2]string]float64)
	for _, e := range entries {
		if want[e.Key()] == nil {
			want[e.Key()] = make(map[[2]string]float64)
		}
		want[e.Key()][[2]string{e.Type, e.DateKey()}] += e.Hours
	}
	for _, m := range res.Modules {
		for k, sum := range want[m.Key()] {
			got, ok := m.Hours(k[0], k[1])
			assert.True(t, ok)
			assert.InDelta(t, sum, got, 1e-9)
		}
		assert.Equal(t, len(want[m.Key()]), cells(m, res.Dates))
	}
}

func TestAggregate_DoesNotMutateInput(t *testing.T) {
	entries := []model.ScheduleEntry{
		entry("R2", std, "TDA", "2025-09-09", 1),
		entry("R1", std, "TDA", "2025-09-08", 1),
	}
	before := append([]model.ScheduleEntry(nil), entries...)

	_ = Aggregate(entries, Options{Sort: SortByCode})

	assert.Equal(t, before, entries)
}

func TestParseSortPolicy(t *testing.T) {
	p, err := ParseSortPolicy("")
	require.NoError(t, err)
	assert.Equal(t, SortByDate, p)

	p, err = ParseSortPolicy(" CODE ")
	require.NoError(t, err)
	assert.Equal(t, SortByCode, p)

	_, err = ParseSortPolicy("alpha")
	assert.Error(t, err)
}
