package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"coursedash/internal/export"
	"coursedash/internal/workspace"
)

func newExportCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the dashboard as Markdown, PDF or a session file",
	}
	cmd.AddCommand(
		newExportFormatCmd(app, "markdown", "Write the hours matrix as a Markdown table"),
		newExportFormatCmd(app, "pdf", "Write the hours matrix as a PDF table"),
		newExportFormatCmd(app, "session", "Write a session file that restores the dashboard"),
	)
	return cmd
}

func newExportFormatCmd(app *App, kind, short string) *cobra.Command {
	var (
		view   viewFlags
		output string
	)

	cmd := &cobra.Command{
		Use:   kind + " [calendar.ics|URL|session.json]...",
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			if kind == "pdf" && output == "" {
				return errors.New("--output is required for pdf")
			}
			ws, err := app.openWorkspace(cmd.Context(), args)
			if err != nil {
				return err
			}
			// A session file is still written for an empty period.
			if err := view.apply(ws); err != nil {
				switch {
				case !errors.Is(err, workspace.ErrNoData):
					return err
				case kind != "session":
					reportNoData(cmd, ws)
					return nil
				}
			}

			var buf bytes.Buffer
			if err := app.writeExport(&buf, kind, ws); err != nil {
				if errors.Is(err, workspace.ErrNoData) {
					reportNoData(cmd, ws)
					return nil
				}
				return err
			}
			if output == "" {
				_, err := io.Copy(cmd.OutOrStdout(), &buf)
				return err
			}
			if err := os.WriteFile(output, buf.Bytes(), 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", output, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d bytes)\n", output, buf.Len())
			return nil
		},
	}
	view.register(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (stdout when empty)")
	return cmd
}

func (a *App) writeExport(w io.Writer, kind string, ws *workspace.Workspace) error {
	if kind == "session" {
		return export.WriteSession(w, ws.Snapshot())
	}
	res, err := ws.Aggregate()
	if err != nil {
		return err
	}
	f := a.format()
	if kind == "markdown" {
		return export.Markdown(w, res, f)
	}
	start, end := ws.Period()
	subtitle := fmt.Sprintf("%s · %s → %s", ws.FileName, f.LongDate(start), f.LongDate(end))
	return export.PDF(w, res, f, export.PDFOptions{Title: "Course hours dashboard", Subtitle: subtitle})
}
