package cli

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"coursedash/internal/capture"
	"coursedash/internal/ics"
	"coursedash/internal/web"
	"coursedash/internal/workspace"
)

func newServeCmd(app *App) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the dashboard and refresh the configured calendars",
		RunE: func(cmd *cobra.Command, args []string) error {
			if listen != "" {
				app.Config.Listen = listen
			}
			sessions, err := app.sessions()
			if err != nil {
				return fmt.Errorf("opening session library: %w", err)
			}

			ws := workspace.New(nil, workspace.Options{
				Display: app.Config.Display,
				Rank:    app.classifier.Rank,
				Now:     app.now(),
			})
			srv := web.NewServer(app.Config, ws, web.Options{
				Classifier: app.classifier,
				Fetcher:    ics.NewFetcher(app.Config.CacheDir),
				Sessions:   sessions,
				Now:        app.Now,
			})

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return srv.Run(ctx)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "listen address, overrides the config")
	return cmd
}

func newSnapshotCmd(app *App) *cobra.Command {
	var (
		url    string
		output string
		format string
		width  int
		height int
	)

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Capture the running dashboard with headless Chromium",
		RunE: func(cmd *cobra.Command, args []string) error {
			if url == "" {
				url = "http://" + app.Config.Listen + "/dashboard"
			}
			if output == "" {
				output = "dashboard." + format
			}
			timeout := time.Duration(app.Config.Snapshot.TimeoutSec) * time.Second

			data, err := capture.Snapshot(cmd.Context(), capture.Options{
				URL:        url,
				OutputPath: output,
				Format:     capture.Format(format),
				Width:      width,
				Height:     height,
				ChromePath: app.Config.Snapshot.ChromePath,
				Timeout:    timeout,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d bytes)\n", output, len(data))
			return nil
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "page to capture (defaults to the local dashboard)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file")
	cmd.Flags().StringVar(&format, "format", string(capture.FormatPDF), "pdf or png")
	cmd.Flags().IntVar(&width, "width", 0, "viewport width in pixels")
	cmd.Flags().IntVar(&height, "height", 0, "viewport height in pixels")
	return cmd
}
