package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coursedash/internal/aggregate"
	"coursedash/internal/config"
	"coursedash/internal/format"
	"coursedash/internal/model"
)

func TestSession_RoundTripReproducesAggregation(t *testing.T) {
	display := config.DefaultDisplay()
	display.SortOrder = "code"
	display.Theme = "dark"
	doc := &Document{
		Entries:          sampleEntries(),
		Display:          display,
		ModuleColors:     map[string]string{"R5.09 (standard)": "hsl(12, 50%, 25%)"},
		DefaultStartDate: "2025-08-25",
		DefaultEndDate:   "2026-07-31",
		AvailableModules: []string{"R5.09 (standard)", "SAe 3.OSC.03 (apprentice)"},
		SelectedModules:  []string{"R5.09 (standard)"},
		FileName:         "edt.ics",
	}

	var buf bytes.Buffer
	require.NoError(t, WriteSession(&buf, doc))

	got, err := ReadSession(&buf, "ignored.json")
	require.NoError(t, err)
	assert.Equal(t, doc.Display, got.Display)
	assert.Equal(t, doc.ModuleColors, got.ModuleColors)
	assert.Equal(t, doc.SelectedModules, got.SelectedModules)
	assert.Equal(t, "edt.ics", got.FileName)
	require.Len(t, got.Entries, len(doc.Entries))
	for i := range doc.Entries {
		assert.True(t, doc.Entries[i].Start.Equal(got.Entries[i].Start))
	}

	f := format.New("fr")
	var before, after bytes.Buffer
	require.NoError(t, Markdown(&before, aggregate.Aggregate(doc.Entries, aggregate.Options{}), f))
	require.NoError(t, Markdown(&after, aggregate.Aggregate(got.Entries, aggregate.Options{}), f))
	assert.Equal(t, before.String(), after.String())
}

func TestWriteSession_Keys(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteSession(&buf, &Document{Display: config.DefaultDisplay()}))

	for _, key := range []string{
		`"allScheduleData": []`, `"tableWidth": 100`, `"tooltipDelay": 200`, `"sortOrder": "date"`,
		`"moduleColors": {}`, `"classTypeColors"`, `"initial": "#0ea5e9"`, `"pastDateColors"`,
		`"theme": "light"`, `"defaultStartDate"`, `"defaultEndDate"`, `"availableModules": []`,
		`"selectedModules": []`, `"fileName"`,
	} {
		assert.Contains(t, buf.String(), key)
	}
}

func TestReadSession_Defaults(t *testing.T) {
	in := `{
	  "allScheduleData": [{
	    "startDate": "2025-09-08T08:00:00.000Z", "hours": 2, "startTime": "10:00", "endTime": "12:00",
	    "title": "R1.01 APP TDA", "module": "R1.01", "moduleCode": "R1.01", "type": "TDA", "classType": "Apprentis"
	  }],
	  "moduleColors": {},
	  "tableWidth": 0,
	  "theme": ""
	}`

	doc, err := ReadSession(strings.NewReader(in), "backup.json")
	require.NoError(t, err)

	assert.Equal(t, config.DefaultDisplay(), doc.Display)
	assert.Equal(t, "backup.json", doc.FileName)
	assert.Empty(t, doc.DefaultStartDate)
	assert.Equal(t, []string{}, doc.SelectedModules)
	require.Len(t, doc.Entries, 1)
	assert.Equal(t, model.CohortApprentice, doc.Entries[0].Cohort)
	assert.Equal(t, "2025-09-08", doc.Entries[0].DateKey())
}

func TestReadSession_Invalid(t *testing.T) {
	cases := map[string]string{
		"not json":          `{"allScheduleData": [`,
		"missing entries":   `{"moduleColors": {}}`,
		"missing colors":    `{"allScheduleData": []}`,
		"null colors":       `{"allScheduleData": [], "moduleColors": null}`,
		"bad cohort":        `{"allScheduleData": [{"classType": "Externes"}], "moduleColors": {}}`,
		"negative hours":    `{"allScheduleData": [{"hours": -1}], "moduleColors": {}}`,
		"entries not array": `{"allScheduleData": {}, "moduleColors": {}}`,
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ReadSession(strings.NewReader(in), "x.json")
			assert.ErrorIs(t, err, ErrInvalidSession)
		})
	}
}
