package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"coursedash/internal/aggregate"
	"coursedash/internal/export"
	"coursedash/internal/ics"
	appLog "coursedash/internal/log"
	"coursedash/internal/store"
	"coursedash/internal/workspace"
)

// maxUploadBytes bounds uploaded calendars and session files.
const maxUploadBytes = 32 << 20

// scheduleResponse is the JSON shape of /api/schedule. Numbers come from
// the same aggregate accessors as every other view.
type scheduleResponse struct {
	Empty        bool        `json:"empty"`
	FileName     string      `json:"file_name"`
	Start        string      `json:"start"`
	End          string      `json:"end"`
	SortOrder    string      `json:"sort_order"`
	Dates        []string    `json:"dates"`
	Modules      []moduleDTO `json:"modules"`
	LastRefresh  *time.Time  `json:"last_refresh,omitempty"`
	RefreshError string      `json:"refresh_error,omitempty"`
}

type moduleDTO struct {
	Key              string             `json:"key"`
	Name             string             `json:"name"`
	Code             string             `json:"code"`
	Cohort           string             `json:"cohort"`
	Color            string             `json:"color"`
	Total            float64            `json:"total"`
	FirstSessionDate string             `json:"first_session_date"`
	LastSessionDate  string             `json:"last_session_date"`
	Types            []typeDTO          `json:"types"`
	Cumulative       map[string]float64 `json:"cumulative"`
}

type typeDTO struct {
	Type  string             `json:"type"`
	Total float64            `json:"total"`
	Share int                `json:"share"`
	Hours map[string]float64 `json:"hours"`
}

func (s *Server) moduleDTOs(res aggregate.Result) []moduleDTO {
	out := make([]moduleDTO, 0, len(res.Modules))
	for _, m := range res.Modules {
		key := m.Key().String()
		dto := moduleDTO{
			Key:              key,
			Name:             m.Name,
			Code:             m.Code,
			Cohort:           string(m.Cohort),
			Color:            s.ws.ModuleColors[key],
			Total:            m.Total(),
			FirstSessionDate: m.FirstSessionDate,
			LastSessionDate:  m.LastSessionDate,
			Types:            make([]typeDTO, 0),
			Cumulative:       make(map[string]float64),
		}
		for _, typ := range m.Types() {
			t := typeDTO{Type: typ, Total: m.TypeTotal(typ), Share: m.SharePercent(typ), Hours: make(map[string]float64)}
			for _, d := range res.Dates {
				if h, ok := m.Hours(typ, d); ok {
					t.Hours[d] = h
				}
			}
			dto.Types = append(dto.Types, t)
		}
		for _, d := range res.Dates {
			if v, ok := m.Cumulative(d); ok {
				dto.Cumulative[d] = v
			}
		}
		out = append(out, dto)
	}
	return out
}

// handleSchedule returns the aggregated matrix of the current period and
// selection. An empty period is a 200 with "empty": true.
func (s *Server) handleSchedule(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	start, end := s.ws.Period()
	resp := scheduleResponse{
		FileName:     s.ws.FileName,
		Start:        start,
		End:          end,
		SortOrder:    s.ws.Display.SortOrder,
		Dates:        []string{},
		Modules:      []moduleDTO{},
		RefreshError: s.refreshErr,
	}
	if !s.lastRefresh.IsZero() {
		t := s.lastRefresh
		resp.LastRefresh = &t
	}

	res, err := s.ws.Aggregate()
	switch {
	case errors.Is(err, workspace.ErrNoData):
		resp.Empty = true
	case err != nil:
		appLog.Error("api schedule: aggregate failed", err)
		writeError(w, http.StatusInternalServerError, "failed to aggregate schedule")
		return
	default:
		resp.Dates = res.Dates
		resp.Modules = s.moduleDTOs(res)
	}
	writeJSON(w, http.StatusOK, resp)
}

type modulesResponse struct {
	Available []string          `json:"available"`
	Selected  []string          `json:"selected"`
	Colors    map[string]string `json:"colors"`
}

func (s *Server) modulesLocked() modulesResponse {
	colors := make(map[string]string)
	available := s.ws.AvailableModules()
	for _, k := range available {
		colors[k] = s.ws.ModuleColors[k]
	}
	return modulesResponse{Available: available, Selected: s.ws.Selected(), Colors: colors}
}

func (s *Server) handleModules(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	resp := s.modulesLocked()
	s.mu.RUnlock()
	writeJSON(w, http.StatusOK, resp)
}

// handleSelectModules replaces the selection: {"selected": ["R1.01 (standard)"]}.
func (s *Server) handleSelectModules(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Selected []string          `json:"selected"`
		Colors   map[string]string `json:"colors"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, maxUploadBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if req.Selected != nil {
		if err := s.ws.Select(req.Selected); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	for k, v := range req.Colors {
		if !cssColor.MatchString(v) {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid color %q for %s", v, k))
			return
		}
		s.ws.ModuleColors[k] = v
	}
	writeJSON(w, http.StatusOK, s.modulesLocked())
}

// settingsRequest updates the dashboard state. Empty fields are left as
// they are; Modules is ignored when the period changes.
type settingsRequest struct {
	Start        string    `json:"start"`
	End          string    `json:"end"`
	Sort         string    `json:"sort_order"`
	Theme        string    `json:"theme"`
	TableWidth   int       `json:"table_width"`
	TooltipDelay int       `json:"tooltip_delay"`
	Modules      *[]string `json:"modules"`
}

// applySettings returns the HTTP status to use and an error. A period
// without data gives StatusOK with workspace.ErrNoData.
func (s *Server) applySettings(req settingsRequest) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if req.Sort != "" {
		policy, err := aggregate.ParseSortPolicy(req.Sort)
		if err != nil {
			return http.StatusBadRequest, err
		}
		s.ws.Display.SortOrder = string(policy)
	}
	if req.Theme != "" {
		switch req.Theme {
		case "light", "dark", "system":
			s.ws.Display.Theme = req.Theme
		default:
			return http.StatusBadRequest, fmt.Errorf("unknown theme %q", req.Theme)
		}
	}
	if req.TableWidth > 0 {
		s.ws.Display.TableWidth = req.TableWidth
	}
	if req.TooltipDelay > 0 {
		s.ws.Display.TooltipDelay = req.TooltipDelay
	}
	s.ws.Display.Normalize()

	start, end := s.ws.Period()
	if req.Start != "" {
		start = req.Start
	}
	if req.End != "" {
		end = req.End
	}
	prevStart, prevEnd := s.ws.Period()
	periodChanged := start != prevStart || end != prevEnd
	if periodChanged {
		err := s.ws.SetPeriod(start, end)
		if errors.Is(err, workspace.ErrNoData) {
			return http.StatusOK, err
		}
		if err != nil {
			return http.StatusBadRequest, err
		}
	}
	// A new period recomputes the available modules and selects them all.
	if req.Modules != nil && !periodChanged {
		if err := s.ws.Select(*req.Modules); err != nil {
			return http.StatusBadRequest, err
		}
	}
	return http.StatusOK, nil
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxUploadBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	status, err := s.applySettings(req)
	if err != nil && status != http.StatusOK {
		writeError(w, status, err.Error())
		return
	}
	s.handleSchedule(w, r)
}

// handleUpload replaces every entry with an uploaded calendar, sent either
// as a raw body or as the "file" field of a multipart form. Browser form
// posts are redirected back to the dashboard.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	var (
		body     []byte
		err      error
		fileName = r.URL.Query().Get("name")
		form     = strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data")
	)
	if form {
		file, header, ferr := r.FormFile("file")
		if ferr != nil {
			writeError(w, http.StatusBadRequest, "missing file field")
			return
		}
		defer file.Close()
		fileName = header.Filename
		body, err = io.ReadAll(file)
	} else {
		body, err = io.ReadAll(r.Body)
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read upload")
		return
	}
	if fileName == "" {
		fileName = "upload.ics"
	}

	entries, err := ics.ParseEntries(body, ics.NewNormalizer(s.classifier, s.loc), ics.ExpandConfig{MaxOccurrencesPerEvent: maxOccurrencesPerEvent})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(entries) == 0 {
		writeError(w, http.StatusUnprocessableEntity, "the calendar contains no session")
		return
	}

	s.mu.Lock()
	err = s.ws.SetEntries(entries, fileName)
	s.mu.Unlock()
	if err != nil && !errors.Is(err, workspace.ErrNoData) {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	appLog.Info("calendar uploaded", "file", fileName, "entries", len(entries))

	if form {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}
	s.handleSchedule(w, r)
}

// handleRestoreSession replaces the workspace with a posted session file.
func (s *Server) handleRestoreSession(w http.ResponseWriter, r *http.Request) {
	doc, err := export.ReadSession(http.MaxBytesReader(w, r.Body, maxUploadBytes), "session.json")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.restore(doc); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.handleSchedule(w, r)
}

func (s *Server) restore(doc *export.Document) error {
	ws, err := workspace.Restore(doc, s.classifier.Rank, s.now())
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.ws = ws
	s.mu.Unlock()
	appLog.Info("session restored", "file", doc.FileName, "entries", len(doc.Entries))
	return nil
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if s.fetcher == nil || len(s.cfg.ICS) == 0 {
		writeError(w, http.StatusConflict, "no calendar subscription configured")
		return
	}
	if err := s.Refresh(r.Context()); err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	s.handleSchedule(w, r)
}

// exportResult aggregates under the read lock; ok is false when a response
// was already written.
func (s *Server) exportResult(w http.ResponseWriter) (aggregate.Result, string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res, err := s.ws.Aggregate()
	if err != nil {
		if errors.Is(err, workspace.ErrNoData) {
			writeError(w, http.StatusConflict, export.ErrNothingToExport.Error())
		} else {
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return aggregate.Result{}, "", false
	}
	start, end := s.ws.Period()
	subtitle := fmt.Sprintf("%s → %s", s.format.LongDate(start), s.format.LongDate(end))
	if s.ws.FileName != "" {
		subtitle = s.ws.FileName + " · " + subtitle
	}
	return res, subtitle, true
}

func attachment(w http.ResponseWriter, contentType, name string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (s *Server) handleExportMarkdown(w http.ResponseWriter, _ *http.Request) {
	res, _, ok := s.exportResult(w)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := export.Markdown(&buf, res, s.format); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	attachment(w, "text/markdown; charset=utf-8", "dashboard.md", buf.Bytes())
}

func (s *Server) handleExportPDF(w http.ResponseWriter, _ *http.Request) {
	res, subtitle, ok := s.exportResult(w)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := export.PDF(&buf, res, s.format, export.PDFOptions{Title: "Course hours dashboard", Subtitle: subtitle}); err != nil {
		appLog.Error("pdf export failed", err)
		writeError(w, http.StatusInternalServerError, "failed to render pdf")
		return
	}
	attachment(w, "application/pdf", "dashboard.pdf", buf.Bytes())
}

func (s *Server) handleExportSession(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	doc := s.ws.Snapshot()
	s.mu.RUnlock()

	var buf bytes.Buffer
	if err := export.WriteSession(&buf, doc); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	attachment(w, "application/json; charset=utf-8", "coursedash-session.json", buf.Bytes())
}

func (s *Server) sessionsEnabled(w http.ResponseWriter) bool {
	if s.sessions == nil {
		writeError(w, http.StatusNotFound, "sessions library disabled")
		return false
	}
	return true
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	if !s.sessionsEnabled(w) {
		return
	}
	list, err := s.sessions.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// handleSaveSession stores the current workspace: {"name": "S1 2025"}.
func (s *Server) handleSaveSession(w http.ResponseWriter, r *http.Request) {
	if !s.sessionsEnabled(w) {
		return
	}
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "a session name is required")
		return
	}

	s.mu.RLock()
	doc := s.ws.Snapshot()
	s.mu.RUnlock()

	id, err := s.sessions.Save(r.Context(), req.Name, doc)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id, "name": strings.TrimSpace(req.Name)})
}

func (s *Server) handleOpenSession(w http.ResponseWriter, r *http.Request) {
	if !s.sessionsEnabled(w) {
		return
	}
	doc, err := s.sessions.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, store.ErrNotFound) {
			status = http.StatusNotFound
		} else if errors.Is(err, export.ErrInvalidSession) {
			status = http.StatusUnprocessableEntity
		}
		writeError(w, status, err.Error())
		return
	}
	if err := s.restore(doc); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	s.handleSchedule(w, r)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if !s.sessionsEnabled(w) {
		return
	}
	if err := s.sessions.Delete(r.Context(), r.PathValue("id")); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, store.ErrNotFound) {
			status = http.StatusNotFound
		}
		writeError(w, status, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
