package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"coursedash/internal/render"
	"coursedash/internal/workspace"
)

func newSessionsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "sessions",
		Aliases: []string{"session"},
		Short:   "Manage the saved-sessions library",
	}
	cmd.AddCommand(
		newSessionsListCmd(app),
		newSessionsSaveCmd(app),
		newSessionsOpenCmd(app),
		newSessionsDeleteCmd(app),
	)
	return cmd
}

func newSessionsListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			lib, err := app.sessions()
			if err != nil {
				return err
			}
			infos, err := lib.List(cmd.Context())
			if err != nil {
				return err
			}
			if len(infos) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No saved sessions.")
				return nil
			}

			rows := make([][]string, 0, len(infos))
			for _, info := range infos {
				rows = append(rows, []string{
					info.ID[:8],
					info.Name,
					info.FileName,
					info.PeriodStart + " → " + info.PeriodEnd,
					fmt.Sprintf("%d", info.Modules),
					fmt.Sprintf("%d", info.Entries),
					info.UpdatedAt.Local().Format("2006-01-02 15:04"),
				})
			}
			fmt.Fprint(cmd.OutOrStdout(), render.RenderTable(
				[]string{"ID", "NAME", "FILE", "PERIOD", "MODULES", "ENTRIES", "UPDATED"},
				rows,
				map[int]bool{4: true, 5: true},
			))
			return nil
		},
	}
}

func newSessionsSaveCmd(app *App) *cobra.Command {
	var view viewFlags

	cmd := &cobra.Command{
		Use:   "save <name> [calendar.ics|URL|session.json]...",
		Short: "Save the dashboard built from the inputs under a name",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := app.openWorkspace(cmd.Context(), args[1:])
			if err != nil {
				return err
			}
			if err := view.apply(ws); err != nil && !errors.Is(err, workspace.ErrNoData) {
				return err
			}
			lib, err := app.sessions()
			if err != nil {
				return err
			}
			id, err := lib.Save(cmd.Context(), args[0], ws.Snapshot())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved session %q (%s)\n", args[0], id)
			return nil
		},
	}
	view.register(cmd)
	return cmd
}

func newSessionsOpenCmd(app *App) *cobra.Command {
	var view viewFlags

	cmd := &cobra.Command{
		Use:   "open <id|name>",
		Short: "Print the hours matrix of a saved session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lib, err := app.sessions()
			if err != nil {
				return err
			}
			doc, err := lib.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			ws, err := app.restore(doc)
			if err != nil {
				return err
			}
			return app.printWorkspace(cmd, ws, &view)
		},
	}
	view.register(cmd)
	return cmd
}

func newSessionsDeleteCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id|name>",
		Short: "Delete a saved session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lib, err := app.sessions()
			if err != nil {
				return err
			}
			if err := lib.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted session %q\n", args[0])
			return nil
		},
	}
}
