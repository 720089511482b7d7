package web

import (
	"embed"
	"errors"
	"html/template"
	"net/http"
	"regexp"
	"time"

	"coursedash/internal/aggregate"
	"coursedash/internal/config"
	"coursedash/internal/grid"
	appLog "coursedash/internal/log"
	"coursedash/internal/model"
	"coursedash/internal/workspace"
)

//go:embed templates/*.html
var templateFS embed.FS

var dashboardTmpl = template.Must(template.ParseFS(templateFS, "templates/dashboard.html"))

// cssColor accepts hex, rgb()/hsl() and named colors; anything else is
// dropped before reaching a style attribute.
var cssColor = regexp.MustCompile(`^(#[0-9a-fA-F]{3,8}|(rgb|rgba|hsl|hsla)\([0-9.,%\s-]+\)|[a-zA-Z]+)$`)

func colorStyle(property, color string) template.CSS {
	if !cssColor.MatchString(color) {
		return ""
	}
	return template.CSS(property + ": " + color + ";")
}

type dateView struct {
	Key   string
	Label string
	Past  bool
}

type cellView struct {
	Text string
	Past bool
	Last bool
}

type rowView struct {
	Label string
	Total string
	Share string
	Cells []cellView
}

type moduleView struct {
	Key         string
	Name        string
	Code        string
	Cohort      model.Cohort
	Total       string
	Style       template.CSS
	CohortStyle template.CSS
	Types       []rowView
	Cumulative  rowView
}

type moduleOption struct {
	Key      string
	Selected bool
}

type dashboardView struct {
	Title      string
	Lang       string
	FileName   string
	Start      string
	End        string
	StartLabel string
	EndLabel   string
	Refreshed  string
	Sort       string
	Dark       bool
	Empty      bool
	Display    config.Display
	PastStyle  template.CSS
	Dates      []dateView
	Modules    []moduleView
	Available  []moduleOption
}

// buildDashboardView must be called with s.mu held.
func (s *Server) buildDashboardView() dashboardView {
	ws := s.ws
	start, end := ws.Period()
	today := s.now().UTC().Format(model.DateKeyLayout)

	past := ws.Display.PastDateColors.Light
	if ws.Display.Theme == "dark" {
		past = ws.Display.PastDateColors.Dark
	}

	v := dashboardView{
		Title:      "Course hours dashboard",
		Lang:       s.cfg.Locale,
		FileName:   ws.FileName,
		Start:      start,
		End:        end,
		StartLabel: s.format.LongDate(start),
		EndLabel:   s.format.LongDate(end),
		Sort:       ws.Display.SortOrder,
		Dark:       ws.Display.Theme == "dark",
		Display:    ws.Display,
		PastStyle:  colorStyle("background-color", past),
	}
	if !s.lastRefresh.IsZero() {
		v.Refreshed = s.lastRefresh.In(s.loc).Format("02/01 15:04")
	}

	selected := make(map[string]bool)
	for _, k := range ws.Selected() {
		selected[k] = true
	}
	for _, k := range ws.AvailableModules() {
		v.Available = append(v.Available, moduleOption{Key: k, Selected: selected[k]})
	}

	res, err := ws.Aggregate()
	if err != nil {
		if !errors.Is(err, workspace.ErrNoData) {
			appLog.Error("dashboard aggregate failed", err)
		}
		v.Empty = true
		return v
	}

	for _, d := range res.Dates {
		v.Dates = append(v.Dates, dateView{Key: d, Label: s.format.ShortDate(d), Past: d < today})
	}
	v.Modules = s.moduleViews(res, today)
	return v
}

func (s *Server) moduleViews(res aggregate.Result, today string) []moduleView {
	g := grid.Build(res, s.format)
	colors := s.ws.Display.CohortColors

	out := make([]moduleView, 0, len(res.Modules))
	i := 0
	for _, m := range res.Modules {
		key := m.Key().String()
		cohortColor := colors.Standard
		if m.Cohort == model.CohortApprentice {
			cohortColor = colors.Apprentice
		}
		mv := moduleView{
			Key:         key,
			Name:        m.Name,
			Code:        m.Code,
			Cohort:      m.Cohort,
			Style:       colorStyle("background-color", s.ws.ModuleColors[key]),
			CohortStyle: colorStyle("color", cohortColor),
		}
		for ; i < len(g.Rows) && g.Rows[i].Module == key; i++ {
			row := g.Rows[i]
			rv := rowView{Label: row.Label, Total: row.Hours, Share: row.Share}
			for _, c := range row.Cells {
				rv.Cells = append(rv.Cells, cellView{Text: c.Text, Past: c.Date < today, Last: c.LastSession})
			}
			switch row.Kind {
			case grid.RowModule:
				mv.Total = row.Hours
			case grid.RowType:
				mv.Types = append(mv.Types, rv)
			case grid.RowCumulative:
				mv.Cumulative = rv
			}
		}
		out = append(out, mv)
	}
	return out
}

// handleDashboard renders the HTML dashboard. A POST applies the period,
// sort order and module selection from the form and redirects back.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		if err := r.ParseForm(); err != nil {
			writeError(w, http.StatusBadRequest, "invalid form")
			return
		}
		var modules *[]string
		if r.PostForm.Get("filter") != "" {
			m := r.PostForm["module"]
			modules = &m
		}
		req := settingsRequest{
			Start:   r.PostForm.Get("from"),
			End:     r.PostForm.Get("to"),
			Sort:    r.PostForm.Get("sort"),
			Modules: modules,
		}
		if status, err := s.applySettings(req); err != nil && status != http.StatusOK {
			writeError(w, status, err.Error())
			return
		}
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}

	start := time.Now()
	s.mu.RLock()
	view := s.buildDashboardView()
	s.mu.RUnlock()

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := dashboardTmpl.Execute(w, view); err != nil {
		appLog.Error("dashboard render failed", err)
		return
	}
	appLog.Debug("dashboard rendered", "modules", len(view.Modules), "dates", len(view.Dates), "took", time.Since(start).String())
}
