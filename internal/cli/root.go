// Package cli wires the coursedash commands.
package cli

import (
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"coursedash/internal/classify"
	"coursedash/internal/config"
	"coursedash/internal/format"
	appLog "coursedash/internal/log"
	"coursedash/internal/store"
)

// App holds what the commands share. Config is loaded from ConfigPath by
// the root command unless it is already set.
type App struct {
	ConfigPath string
	Config     *config.Config
	// Sessions is opened on first use under Config.DataDir when nil.
	Sessions *store.Sessions
	Now      func() time.Time

	classifier *classify.Classifier
	closers    []io.Closer
}

// Close releases what the commands opened.
func (a *App) Close() error {
	var first error
	for _, c := range a.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}

func (a *App) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

func (a *App) format() format.Format {
	return format.New(a.Config.Locale)
}

func (a *App) sessions() (*store.Sessions, error) {
	if a.Sessions != nil {
		return a.Sessions, nil
	}
	db, err := store.OpenDB(filepath.Join(a.Config.DataDir, "coursedash.db"))
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, db)
	a.Sessions = store.NewSessions(db)
	return a.Sessions, nil
}

// prepare loads config and the classifier once per run.
func (a *App) prepare(verbose bool) error {
	if a.Config == nil {
		cfg, err := config.Load(a.ConfigPath)
		if err != nil {
			return fmt.Errorf("loading config %s: %w", a.ConfigPath, err)
		}
		cfg.ApplyEnv()
		a.Config = cfg
	}
	if err := a.Config.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	level := appLog.ParseLevel(a.Config.LogLevel)
	if verbose {
		level = appLog.LevelDebug
	}
	appLog.SetLevel(level)

	c, err := classify.New(a.Config.Rules())
	if err != nil {
		return err
	}
	a.classifier = c
	return nil
}

// NewRootCmd creates the top-level "coursedash" command and registers all
// subcommands against the provided App.
func NewRootCmd(app *App) *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:           "coursedash",
		Short:         "Teaching-hours dashboard built from timetable calendars",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.prepare(verbose)
		},
	}
	root.PersistentFlags().StringVar(&app.ConfigPath, "config", app.ConfigPath, "path to the YAML config file")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		newShowCmd(app),
		newLoadCmd(app),
		newExportCmd(app),
		newServeCmd(app),
		newSnapshotCmd(app),
		newSessionsCmd(app),
	)
	return root
}
