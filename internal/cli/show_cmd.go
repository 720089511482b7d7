package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"coursedash/internal/render"
	"coursedash/internal/workspace"
)

func newShowCmd(app *App) *cobra.Command {
	var view viewFlags

	cmd := &cobra.Command{
		Use:   "show [calendar.ics|URL]...",
		Short: "Print the hours matrix of one or more calendars",
		Long:  "Print the hours matrix. Without arguments the configured calendars are used.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := app.openWorkspace(cmd.Context(), args)
			if err != nil {
				return err
			}
			return app.printWorkspace(cmd, ws, &view)
		},
	}
	view.register(cmd)
	return cmd
}

func newLoadCmd(app *App) *cobra.Command {
	var view viewFlags

	cmd := &cobra.Command{
		Use:   "load <session.json>",
		Short: "Print the hours matrix of a saved session file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := app.loadSession(args[0])
			if err != nil {
				return err
			}
			return app.printWorkspace(cmd, ws, &view)
		},
	}
	view.register(cmd)
	return cmd
}

func (a *App) printWorkspace(cmd *cobra.Command, ws *workspace.Workspace, view *viewFlags) error {
	if err := view.apply(ws); err != nil {
		if errors.Is(err, workspace.ErrNoData) {
			reportNoData(cmd, ws)
			return nil
		}
		return err
	}
	res, err := ws.Aggregate()
	if errors.Is(err, workspace.ErrNoData) {
		reportNoData(cmd, ws)
		return nil
	}
	if err != nil {
		return err
	}

	f := a.format()
	start, end := ws.Period()
	out := cmd.OutOrStdout()
	fmt.Fprint(out, render.Summary(ws.FileName, start, end, res, f))
	fmt.Fprintln(out)
	fmt.Fprint(out, render.Matrix(res, f, ws.Display.CohortColors))
	return nil
}
