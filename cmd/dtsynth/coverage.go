package main

import (
	"github.com/spf13/cobra"

	"github.com/jward/dtsynth"
)

func (app *cli) coverageCmd() *cobra.Command {
	var source string
	cmd := &cobra.Command{
		Use:   "coverage <trace>",
		Short: "Report declared functions the trace never observed",
		Long: `Coverage synthesizes the trace, scans the JavaScript and TypeScript
sources under --source for declared functions and lists, per file, the ones
no traced call reached. Sources come from git ls-files when --source is a
git checkout and from a directory walk otherwise.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := app.newEngine(dtsynth.WithSourceRoot(source))
			if err != nil {
				return app.outputError(cmd, "coverage", err)
			}
			defer e.Close()

			res, err := e.SynthesizeFile(cmd.Context(), args[0])
			if err != nil {
				return app.outputError(cmd, "coverage", err)
			}
			report, err := e.Coverage(cmd.Context(), res)
			if err != nil {
				return app.outputError(cmd, "coverage", err)
			}
			return app.outputResult(cmd, CLIResult{Command: "coverage", Results: toCLICoverage(report)})
		},
	}
	cmd.Flags().StringVar(&source, "source", ".", "source root the traced paths are relative to")
	return cmd
}
