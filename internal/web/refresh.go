package web

import (
	"context"
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"

	"coursedash/internal/config"
	"coursedash/internal/ics"
	appLog "coursedash/internal/log"
	"coursedash/internal/model"
	"coursedash/internal/workspace"
)

// maxOccurrencesPerEvent bounds RRULE expansion of a single event.
const maxOccurrencesPerEvent = 5000

// sourcesFromConfig builds ICS sources from config, skipping entries
// without a URL.
func sourcesFromConfig(list []config.ICSConfig) []ics.Source {
	sources := make([]ics.Source, 0, len(list))
	for _, csrc := range list {
		if csrc.URL == "" {
			continue
		}
		id := csrc.ID
		if id == "" {
			if csrc.Name != "" {
				id = csrc.Name
			} else {
				id = csrc.URL
			}
		}
		sources = append(sources, ics.Source{ID: id, Name: csrc.Name, URL: csrc.URL})
	}
	return sources
}

// Refresh fetches every configured calendar and replaces the workspace
// entries. When every source fails the previous entries are kept.
func (s *Server) Refresh(ctx context.Context) error {
	if s.fetcher == nil {
		return errors.New("refresh: no fetcher configured")
	}
	sources := sourcesFromConfig(s.cfg.ICS)
	if len(sources) == 0 {
		return nil
	}

	results, fetchErrs := s.fetcher.FetchAll(ctx, sources)
	if len(results) == 0 {
		err := fmt.Errorf("refresh: every calendar failed: %w", errors.Join(fetchErrs...))
		s.mu.Lock()
		s.refreshErr = err.Error()
		s.mu.Unlock()
		return err
	}

	normalizer := ics.NewNormalizer(s.classifier, s.loc)
	entries := make([]model.ScheduleEntry, 0)
	var parseErrs []error
	for _, res := range results {
		parsed, err := ics.ParseEntries(res.Body, normalizer, ics.ExpandConfig{MaxOccurrencesPerEvent: maxOccurrencesPerEvent})
		if err != nil {
			appLog.Error("refresh: parse failed for source", err, "id", res.Source.ID)
			parseErrs = append(parseErrs, fmt.Errorf("source %s: %w", res.Source.ID, err))
			continue
		}
		entries = append(entries, parsed...)
	}
	if len(parseErrs) == len(results) {
		err := fmt.Errorf("refresh: no calendar could be parsed: %w", errors.Join(parseErrs...))
		s.mu.Lock()
		s.refreshErr = err.Error()
		s.mu.Unlock()
		return err
	}

	name := sources[0].Name
	if name == "" {
		name = sources[0].ID
	}
	if len(sources) > 1 {
		name = fmt.Sprintf("%d calendars", len(sources))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ws.SetEntries(entries, name); err != nil && !errors.Is(err, workspace.ErrNoData) {
		s.refreshErr = err.Error()
		return err
	}
	s.lastRefresh = s.now()
	s.refreshErr = ""
	if all := append(fetchErrs, parseErrs...); len(all) > 0 {
		s.refreshErr = errors.Join(all...).Error()
	}
	appLog.Info("calendars refreshed", "sources", len(sources), "entries", len(entries), "failed", len(fetchErrs)+len(parseErrs))
	return nil
}

// StartRefresher runs Refresh on the configured cron schedule until ctx
// is canceled or the returned stop function is called.
func (s *Server) StartRefresher(ctx context.Context) (stop func(), err error) {
	c := cron.New(cron.WithLocation(s.loc))
	_, err = c.AddFunc(s.cfg.RefreshCron, func() {
		if err := s.Refresh(ctx); err != nil {
			appLog.Error("scheduled refresh failed", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid refresh schedule %q: %w", s.cfg.RefreshCron, err)
	}
	c.Start()
	appLog.Info("refresh scheduler started", "schedule", s.cfg.RefreshCron)
	return func() { <-c.Stop().Done() }, nil
}
