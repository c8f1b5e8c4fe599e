package main

import (
	"errors"

	"github.com/spf13/cobra"
)

func (app *cli) historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect recorded runs",
	}
	cmd.AddCommand(app.historyRunsCmd())
	cmd.AddCommand(app.historyShowCmd())
	cmd.AddCommand(app.historyDiffCmd())
	cmd.AddCommand(app.historyDeleteCmd())
	return cmd
}

func (app *cli) historyRunsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, h, err := app.openHistory()
			if err != nil {
				return app.outputError(cmd, "history runs", err)
			}
			defer e.Close()

			runs, err := h.Runs(limit)
			if err != nil {
				return app.outputError(cmd, "history runs", err)
			}
			out := make([]CLIRun, 0, len(runs))
			for _, r := range runs {
				out = append(out, toCLIRun(r))
			}
			return app.outputResult(cmd, CLIResult{Command: "history runs", Results: out})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum runs to list (0 = all)")
	return cmd
}

func (app *cli) historyShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [run]",
		Short: "Show a run and its declarations (default: the latest run)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, h, err := app.openHistory()
			if err != nil {
				return app.outputError(cmd, "history show", err)
			}
			defer e.Close()

			var runID string
			if len(args) == 1 {
				runID = args[0]
			} else {
				runID, err = h.Latest()
				if err != nil {
					return app.outputError(cmd, "history show", err)
				}
				if runID == "" {
					return app.outputError(cmd, "history show", errors.New("no runs recorded"))
				}
			}

			detail, err := h.Show(runID)
			if err != nil {
				return app.outputError(cmd, "history show", err)
			}
			return app.outputResult(cmd, CLIResult{Command: "history show", Results: toCLIRunDetail(detail)})
		},
	}
}

func (app *cli) historyDiffCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "diff <old-run> <new-run>",
		Short: "List functions whose signatures differ between two runs",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, h, err := app.openHistory()
			if err != nil {
				return app.outputError(cmd, "history diff", err)
			}
			defer e.Close()

			changes, err := h.Diff(args[0], args[1])
			if err != nil {
				return app.outputError(cmd, "history diff", err)
			}
			return app.outputResult(cmd, CLIResult{Command: "history diff", Results: changes})
		},
	}
}

func (app *cli) historyDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <run>",
		Short: "Delete a recorded run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, h, err := app.openHistory()
			if err != nil {
				return app.outputError(cmd, "history delete", err)
			}
			defer e.Close()

			if err := h.Delete(args[0]); err != nil {
				return app.outputError(cmd, "history delete", err)
			}
			return app.outputResult(cmd, CLIResult{Command: "history delete", Results: CLIDeleted{RunID: args[0]}})
		},
	}
}
