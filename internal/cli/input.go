package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"coursedash/internal/export"
	"coursedash/internal/ics"
	appLog "coursedash/internal/log"
	"coursedash/internal/model"
	"coursedash/internal/workspace"
)

// viewFlags narrow and order what a command shows.
type viewFlags struct {
	from    string
	to      string
	sort    string
	modules []string
}

func (v *viewFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&v.from, "from", "", "period start (YYYY-MM-DD)")
	cmd.Flags().StringVar(&v.to, "to", "", "period end (YYYY-MM-DD)")
	cmd.Flags().StringVar(&v.sort, "sort", "", "module order: date or code")
	cmd.Flags().StringArrayVarP(&v.modules, "module", "m", nil, `module key to keep, e.g. "R5.09 (standard)" (repeatable)`)
}

// apply narrows ws. ErrNoData is returned when the period holds no
// session; the workspace stays usable.
func (v *viewFlags) apply(ws *workspace.Workspace) error {
	if v.sort != "" {
		ws.Display.SortOrder = strings.ToLower(strings.TrimSpace(v.sort))
		ws.Display.Normalize()
	}
	if v.from != "" || v.to != "" {
		start, end := ws.Period()
		if v.from != "" {
			start = v.from
		}
		if v.to != "" {
			end = v.to
		}
		if err := ws.SetPeriod(start, end); err != nil {
			return err
		}
	}
	if len(v.modules) > 0 {
		if err := ws.Select(v.modules); err != nil {
			return err
		}
	}
	return nil
}

func isSessionFile(arg string) bool {
	return strings.EqualFold(filepath.Ext(arg), ".json")
}

// openWorkspace builds a workspace from a session file, from calendar
// paths or URLs, or from the configured calendars when args is empty.
func (a *App) openWorkspace(ctx context.Context, args []string) (*workspace.Workspace, error) {
	if len(args) == 1 && isSessionFile(args[0]) {
		return a.loadSession(args[0])
	}

	sources := make([]ics.Source, 0, len(args))
	for _, arg := range args {
		sources = append(sources, ics.Source{ID: arg, Name: filepath.Base(arg), URL: arg})
	}
	if len(sources) == 0 {
		for _, c := range a.Config.ICS {
			if c.URL == "" {
				continue
			}
			id := c.ID
			if id == "" {
				id = c.URL
			}
			sources = append(sources, ics.Source{ID: id, Name: c.Name, URL: c.URL})
		}
	}
	if len(sources) == 0 {
		return nil, errors.New("no calendar given and none configured")
	}

	entries, err := a.fetchEntries(ctx, sources)
	if err != nil {
		return nil, err
	}

	name := sources[0].Name
	if name == "" {
		name = sources[0].ID
	}
	if len(sources) > 1 {
		name = fmt.Sprintf("%d calendars", len(sources))
	}

	ws := workspace.New(entries, workspace.Options{
		Display:  a.Config.Display,
		FileName: name,
		Rank:     a.classifier.Rank,
		Now:      a.now(),
	})
	if p := a.Config.Period; p.Start != "" && p.End != "" {
		if err := ws.SetPeriod(p.Start, p.End); err != nil && !errors.Is(err, workspace.ErrNoData) {
			return nil, fmt.Errorf("configured period: %w", err)
		}
	}
	return ws, nil
}

func (a *App) fetchEntries(ctx context.Context, sources []ics.Source) ([]model.ScheduleEntry, error) {
	fetcher := ics.NewFetcher(a.Config.CacheDir)
	results, fetchErrs := fetcher.FetchAll(ctx, sources)
	if len(results) == 0 {
		return nil, fmt.Errorf("every calendar failed: %w", errors.Join(fetchErrs...))
	}
	for _, err := range fetchErrs {
		appLog.Warn("calendar skipped", "err", err)
	}

	normalizer := ics.NewNormalizer(a.classifier, a.Config.Location())
	var entries []model.ScheduleEntry
	var parseErrs []error
	for _, res := range results {
		parsed, err := ics.ParseEntries(res.Body, normalizer, ics.ExpandConfig{})
		if err != nil {
			parseErrs = append(parseErrs, fmt.Errorf("%s: %w", res.Source.ID, err))
			continue
		}
		appLog.Debug("calendar parsed", "source", res.Source.ID, "entries", len(parsed), "cached", res.FromCache)
		entries = append(entries, parsed...)
	}
	if len(parseErrs) == len(results) {
		return nil, errors.Join(parseErrs...)
	}
	for _, err := range parseErrs {
		appLog.Warn("calendar skipped", "err", err)
	}
	return entries, nil
}

func (a *App) loadSession(path string) (*workspace.Workspace, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	doc, err := export.ReadSession(f, filepath.Base(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return a.restore(doc)
}

func (a *App) restore(doc *export.Document) (*workspace.Workspace, error) {
	ws, err := workspace.Restore(doc, a.classifier.Rank, a.now())
	if err != nil && !errors.Is(err, workspace.ErrNoData) {
		return nil, err
	}
	return ws, nil
}

// reportNoData prints the empty-period notice. It is not a failure.
func reportNoData(cmd *cobra.Command, ws *workspace.Workspace) {
	start, end := ws.Period()
	fmt.Fprintf(cmd.OutOrStdout(), "No sessions between %s and %s.\n", start, end)
}
