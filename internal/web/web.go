package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"coursedash/internal/classify"
	"coursedash/internal/config"
	"coursedash/internal/format"
	"coursedash/internal/ics"
	appLog "coursedash/internal/log"
	"coursedash/internal/store"
	"coursedash/internal/workspace"
)

// Server serves the dashboard, its JSON API and the exports over one
// shared workspace.
type Server struct {
	cfg        *config.Config
	mux        *http.ServeMux
	classifier *classify.Classifier
	format     format.Format
	loc        *time.Location
	fetcher    *ics.Fetcher
	sessions   *store.Sessions
	now        func() time.Time

	// mu guards the workspace and the refresh bookkeeping. Handlers that
	// only read take the read lock; uploads, restores, settings and the
	// cron refresh replace state under the write lock.
	mu          sync.RWMutex
	ws          *workspace.Workspace
	lastRefresh time.Time
	refreshErr  string
}

// Options carries the optional collaborators of a Server.
type Options struct {
	// Classifier parses uploaded calendars; nil uses the default rules.
	Classifier *classify.Classifier
	// Fetcher loads the configured calendars; nil disables Refresh.
	Fetcher *ics.Fetcher
	// Sessions is the saved-sessions library; nil disables /api/sessions.
	Sessions *store.Sessions
	Now      func() time.Time
}

// NewServer constructs a new Server over ws.
func NewServer(cfg *config.Config, ws *workspace.Workspace, opts Options) *Server {
	if opts.Classifier == nil {
		opts.Classifier = classify.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	s := &Server{
		cfg:        cfg,
		mux:        http.NewServeMux(),
		classifier: opts.Classifier,
		format:     format.New(cfg.Locale),
		loc:        cfg.Location(),
		fetcher:    opts.Fetcher,
		sessions:   opts.Sessions,
		now:        opts.Now,
		ws:         ws,
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// An empty username or password disables auth.
	if s.cfg.BasicAuth.Username == "" || s.cfg.BasicAuth.Password == "" {
		return false
	}
	return true
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="coursedash", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// Run serves until ctx is canceled, then shuts down gracefully. The
// configured calendars are loaded once up front and then on the cron
// schedule.
func (s *Server) Run(ctx context.Context) error {
	if s.fetcher != nil && len(s.cfg.ICS) > 0 {
		if err := s.Refresh(ctx); err != nil {
			appLog.Warn("initial calendar refresh failed", "err", err)
		}
		stop, err := s.StartRefresher(ctx)
		if err != nil {
			return err
		}
		defer stop()
	}

	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	appLog.Info("shutting down HTTP server")
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/dashboard", http.StatusFound)
	})
	s.mux.HandleFunc("/dashboard", s.handleDashboard)

	s.mux.HandleFunc("GET /api/schedule", s.handleSchedule)
	s.mux.HandleFunc("GET /api/modules", s.handleModules)
	s.mux.HandleFunc("POST /api/modules", s.handleSelectModules)
	s.mux.HandleFunc("POST /api/settings", s.handleSettings)
	s.mux.HandleFunc("POST /api/upload", s.handleUpload)
	s.mux.HandleFunc("POST /api/session", s.handleRestoreSession)
	s.mux.HandleFunc("POST /api/refresh", s.handleRefresh)

	s.mux.HandleFunc("GET /export/markdown", s.handleExportMarkdown)
	s.mux.HandleFunc("GET /export/pdf", s.handleExportPDF)
	s.mux.HandleFunc("GET /export/session", s.handleExportSession)

	s.mux.HandleFunc("GET /api/sessions", s.handleListSessions)
	s.mux.HandleFunc("POST /api/sessions", s.handleSaveSession)
	s.mux.HandleFunc("POST /api/sessions/{id}/open", s.handleOpenSession)
	s.mux.HandleFunc("DELETE /api/sessions/{id}", s.handleDeleteSession)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
