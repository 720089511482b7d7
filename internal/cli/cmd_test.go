package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coursedash/internal/config"
	"coursedash/internal/store"
)

const calendar = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//test//EN\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:a\r\n" +
	"DTSTART:20250908T080000Z\r\n" +
	"DTEND:20250908T100000Z\r\n" +
	"SUMMARY:R5.09 Réseaux TDA\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:b\r\n" +
	"DTSTART:20250910T080000Z\r\n" +
	"DTEND:20250910T120000Z\r\n" +
	"SUMMARY:SAe 3.OSC.03 APP TP2\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

var testNow = time.Date(2025, 9, 15, 12, 0, 0, 0, time.UTC)

// testApp wires an App over a default config and an in-memory library.
func testApp(t *testing.T) *App {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Timezone = "UTC"
	cfg.CacheDir = ""
	cfg.DataDir = t.TempDir()

	db, err := store.OpenDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return &App{
		Config:   cfg,
		Sessions: store.NewSessions(db),
		Now:      func() time.Time { return testNow },
	}
}

func writeCalendar(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "edt.ics")
	require.NoError(t, os.WriteFile(path, []byte(calendar), 0o600))
	return path
}

// executeCmd runs a cobra command and captures stdout/stderr.
func executeCmd(t *testing.T, app *App, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd(app)
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func TestShowCmd(t *testing.T) {
	app := testApp(t)
	ics := writeCalendar(t)

	out, err := executeCmd(t, app, "show", ics)
	require.NoError(t, err)
	assert.Contains(t, out, "edt.ics")
	assert.Contains(t, out, "R5.09 (standard)")
	assert.Contains(t, out, "SAe 3.OSC.03 (apprentice)")
	assert.Contains(t, out, "2 modules")
}

func TestShowCmd_ModuleFilter(t *testing.T) {
	app := testApp(t)
	ics := writeCalendar(t)

	out, err := executeCmd(t, app, "show", ics, "--module", "R5.09 (standard)")
	require.NoError(t, err)
	assert.Contains(t, out, "R5.09 (standard)")
	assert.NotContains(t, out, "SAe 3.OSC.03")

	_, err = executeCmd(t, app, "show", ics, "--module", "R9.99 (standard)")
	assert.Error(t, err)
}

func TestShowCmd_EmptyPeriodIsNotAnError(t *testing.T) {
	app := testApp(t)
	ics := writeCalendar(t)

	out, err := executeCmd(t, app, "show", ics, "--from", "2026-01-01", "--to", "2026-01-31")
	require.NoError(t, err)
	assert.Contains(t, out, "No sessions between")

	_, err = executeCmd(t, app, "show", ics, "--from", "2026-02-01", "--to", "2026-01-01")
	assert.Error(t, err)
}

func TestShowCmd_UsesConfiguredCalendars(t *testing.T) {
	app := testApp(t)
	app.Config.ICS = []config.ICSConfig{{ID: "but", Name: "BUT R&T", URL: writeCalendar(t)}}

	out, err := executeCmd(t, app, "show")
	require.NoError(t, err)
	assert.Contains(t, out, "BUT R&T")

	app.Config.ICS = nil
	_, err = executeCmd(t, app, "show")
	assert.Error(t, err)
}

func TestExportMarkdownCmd(t *testing.T) {
	app := testApp(t)
	ics := writeCalendar(t)

	out, err := executeCmd(t, app, "export", "markdown", ics, "--sort", "code")
	require.NoError(t, err)
	assert.Contains(t, out, "| Module / Type | Total | 08/09 | 10/09 |")
	assert.Contains(t, out, "| **R5.09 (standard)** | **2h** |")
	assert.Contains(t, out, "| TP2 | 4h (100%) |")
}

func TestExportPDFCmd(t *testing.T) {
	app := testApp(t)
	ics := writeCalendar(t)

	_, err := executeCmd(t, app, "export", "pdf", ics)
	assert.Error(t, err, "pdf needs an output file")

	path := filepath.Join(t.TempDir(), "dashboard.pdf")
	out, err := executeCmd(t, app, "export", "pdf", ics, "-o", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote "+path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")))
}

func TestExportSessionThenLoad(t *testing.T) {
	app := testApp(t)
	ics := writeCalendar(t)
	path := filepath.Join(t.TempDir(), "session.json")

	_, err := executeCmd(t, app, "export", "session", ics, "-o", path, "--module", "SAe 3.OSC.03 (apprentice)")
	require.NoError(t, err)

	out, err := executeCmd(t, app, "load", path)
	require.NoError(t, err)
	assert.Contains(t, out, "SAe 3.OSC.03 (apprentice)")
	assert.NotContains(t, out, "R5.09")
	assert.Contains(t, out, "edt.ics")

	// A session file is accepted anywhere a calendar is.
	md, err := executeCmd(t, app, "export", "markdown", path)
	require.NoError(t, err)
	assert.Contains(t, md, "SAe 3.OSC.03 (apprentice)")
}

func TestLoadCmd_InvalidSession(t *testing.T) {
	app := testApp(t)
	path := filepath.Join(t.TempDir(), "broken.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"fileName": "x"}`), 0o600))

	_, err := executeCmd(t, app, "load", path)
	assert.Error(t, err)

	_, err = executeCmd(t, app, "load")
	assert.Error(t, err)
}

func TestSessionsLifecycle(t *testing.T) {
	app := testApp(t)
	ics := writeCalendar(t)

	out, err := executeCmd(t, app, "sessions", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No saved sessions.")

	out, err = executeCmd(t, app, "sessions", "save", "s1", ics)
	require.NoError(t, err)
	assert.Contains(t, out, `Saved session "s1"`)

	out, err = executeCmd(t, app, "sessions", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "s1")
	assert.Contains(t, out, "edt.ics")

	out, err = executeCmd(t, app, "sessions", "open", "s1")
	require.NoError(t, err)
	assert.Contains(t, out, "R5.09 (standard)")

	_, err = executeCmd(t, app, "sessions", "delete", "s1")
	require.NoError(t, err)

	_, err = executeCmd(t, app, "sessions", "open", "s1")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSnapshotCmd_RejectsUnknownFormat(t *testing.T) {
	app := testApp(t)

	_, err := executeCmd(t, app, "snapshot", "--format", "gif", "-o", filepath.Join(t.TempDir(), "x.gif"))
	assert.Error(t, err)
}

func TestRootCmd_InvalidConfig(t *testing.T) {
	app := testApp(t)
	app.Config.Timezone = "Mars/Olympus"

	_, err := executeCmd(t, app, "show", writeCalendar(t))
	assert.Error(t, err)
}
