package render

import (
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coursedash/internal/aggregate"
	"coursedash/internal/config"
	"coursedash/internal/format"
	"coursedash/internal/model"
)

func TestRenderTable_AlignsColumns(t *testing.T) {
	out := RenderTable([]string{"Name", "N"}, [][]string{{"alpha", "1"}, {"b", "22"}}, map[int]bool{1: true})

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "alpha   1", lines[2])
	assert.Equal(t, "b      22", lines[3])
	assert.Equal(t, lipgloss.Width(lines[2]), lipgloss.Width(lines[0]))
	assert.Empty(t, RenderTable(nil, nil, nil))
}

func TestMatrix(t *testing.T) {
	start, _ := time.Parse(time.RFC3339, "2025-09-08T08:00:00Z")
	entries := []model.ScheduleEntry{
		{Start: start, Hours: 2, ModuleCode: "R5.09", Type: "TDA", Cohort: model.CohortStandard},
		{Start: start.AddDate(0, 0, 2), Hours: 1.5, ModuleCode: "R5.09", Type: "TP1", Cohort: model.CohortStandard},
		{Start: start.AddDate(0, 0, 2), Hours: 4, ModuleCode: "SAe 3.OSC.03", Type: "TP2", Cohort: model.CohortApprentice},
	}
	res := aggregate.Aggregate(entries, aggregate.Options{})
	f := format.New("fr")

	out := Matrix(res, f, config.DefaultDisplay().CohortColors)

	for _, want := range []string{"Module / Type", "08/09", "10/09", "R5.09 (standard)", "3,5h", "2h (57%)", "1,5h (43%)", "Cumulative", "SAe 3.OSC.03 (apprentice)", "4h (100%)"} {
		assert.Contains(t, out, want)
	}
	assert.Len(t, strings.Split(strings.TrimRight(out, "\n"), "\n"), 2+4+3)

	assert.Contains(t, Matrix(aggregate.Result{}, f, config.CohortColors{}), "No session")
}

func TestSummary(t *testing.T) {
	start, _ := time.Parse(time.RFC3339, "2025-09-08T08:00:00Z")
	res := aggregate.Aggregate([]model.ScheduleEntry{
		{Start: start, Hours: 2.5, ModuleCode: "R1", Type: "TDA", Cohort: model.CohortStandard},
	}, aggregate.Options{})

	out := Summary("edt.ics", "2025-08-25", "2026-07-31", res, format.New("fr"))
	assert.Contains(t, out, "edt.ics")
	assert.Contains(t, out, "25/08/2025 → 31/07/2026")
	assert.Contains(t, out, "1 modules")
	assert.Contains(t, out, "2,5h")
}
