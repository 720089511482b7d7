package export

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"coursedash/internal/config"
	"coursedash/internal/model"
)

// ErrInvalidSession is returned for session files that cannot be restored.
var ErrInvalidSession = errors.New("invalid or corrupted session file")

// Document is the saved state of a workspace: every entry plus the
// display preferences, period and module selection. The JSON keys are
// shared with session files written by earlier versions of the dashboard.
type Document struct {
	Entries []model.ScheduleEntry `json:"allScheduleData"`

	config.Display

	// ModuleColors maps "code (cohort)" keys to CSS colors.
	ModuleColors map[string]string `json:"moduleColors"`

	DefaultStartDate string `json:"defaultStartDate"`
	DefaultEndDate   string `json:"defaultEndDate"`

	AvailableModules []string `json:"availableModules"`
	SelectedModules  []string `json:"selectedModules"`

	FileName string `json:"fileName"`
}

// WriteSession encodes doc as indented JSON.
func WriteSession(w io.Writer, doc *Document) error {
	out := *doc
	if out.Entries == nil {
		out.Entries = []model.ScheduleEntry{}
	}
	if out.ModuleColors == nil {
		out.ModuleColors = map[string]string{}
	}
	if out.AvailableModules == nil {
		out.AvailableModules = []string{}
	}
	if out.SelectedModules == nil {
		out.SelectedModules = []string{}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(&out)
}

// ReadSession decodes a session file. allScheduleData and moduleColors
// are required; every other field falls back to its default, fileName to
// fallbackName. Empty period bounds are left for the caller to fill.
func ReadSession(r io.Reader, fallbackName string) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading session: %w", err)
	}

	var required struct {
		Entries      json.RawMessage `json:"allScheduleData"`
		ModuleColors json.RawMessage `json:"moduleColors"`
	}
	if err := json.Unmarshal(data, &required); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	if isAbsent(required.Entries) || isAbsent(required.ModuleColors) {
		return nil, fmt.Errorf("%w: allScheduleData and moduleColors are required", ErrInvalidSession)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	for i, e := range doc.Entries {
		if e.Hours < 0 {
			return nil, fmt.Errorf("%w: entry %d has negative hours", ErrInvalidSession, i)
		}
	}

	doc.Display.Normalize()
	if doc.AvailableModules == nil {
		doc.AvailableModules = []string{}
	}
	if doc.SelectedModules == nil {
		doc.SelectedModules = []string{}
	}
	if doc.FileName == "" {
		doc.FileName = fallbackName
	}
	return &doc, nil
}

func isAbsent(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
