package main

import (
	"errors"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/jward/dtsynth"
	"github.com/jward/dtsynth/internal/workspace"
)

func (app *cli) synthCmd() *cobra.Command {
	var write, record bool
	var outputDir string
	cmd := &cobra.Command{
		Use:   "synth <trace>",
		Short: "Synthesize declarations from a trace file",
		Long: `Synthesize reads an entry/exit trace (one JSON event per line) and prints
one declaration per traced function, grouped by source file.

With --write each group is written to a .d.ts file next to its source file,
or under --output-dir when the traced path is relative. With --record the
run is stored in the run database for 'dtsynth history'.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tracePath := args[0]

			var e *dtsynth.Engine
			var err error
			if record {
				e, err = app.newRecordingEngine()
			} else {
				e, err = app.newEngine()
			}
			if err != nil {
				return app.outputError(cmd, "synth", err)
			}
			defer e.Close()

			res, synthErr := e.SynthesizeFile(cmd.Context(), tracePath)
			if record && res != nil {
				source, _ := filepath.Abs(tracePath)
				if _, err := e.Record(source, res, synthErr); err != nil {
					return app.outputError(cmd, "synth", errors.Join(synthErr, err))
				}
			}
			if synthErr != nil {
				return app.outputError(cmd, "synth", synthErr)
			}

			out := toCLISynthesis(res)
			out.Recorded = record
			if write {
				written, err := app.writeDeclarations(e, res, outputDir)
				out.Written = written
				if err != nil {
					return app.outputError(cmd, "synth", err)
				}
			}
			return app.outputResult(cmd, CLIResult{Command: "synth", Results: out})
		},
	}
	cmd.Flags().BoolVar(&write, "write", false, "write .d.ts files next to the traced sources")
	cmd.Flags().StringVar(&outputDir, "output-dir", "", "base directory for relative traced paths when writing (default: output_dir from config, else current directory)")
	cmd.Flags().BoolVar(&record, "record", false, "store the run in the run database")
	return cmd
}

// writeDeclarations writes res's file groups under outputDir, the
// configured output directory or the current directory.
func (app *cli) writeDeclarations(e *dtsynth.Engine, res *dtsynth.Result, outputDir string) ([]string, error) {
	base := outputDir
	if base == "" {
		base = app.cfg.OutputDir
	}
	if base == "" {
		base = "."
	}
	return workspace.WriteDeclarations(base, res.Files, e.RenderOptions())
}

func (app *cli) watchCmd() *cobra.Command {
	var write bool
	var outputDir string
	var debounce time.Duration
	cmd := &cobra.Command{
		Use:   "watch <trace>",
		Short: "Re-synthesize whenever a trace file changes",
		Long: `Watch synthesizes the trace file once if it exists and again after every
write, until interrupted. Failed syntheses are logged and watching continues.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := app.newEngine(dtsynth.WithDebounce(debounce))
			if err != nil {
				return app.outputError(cmd, "watch", err)
			}
			defer e.Close()

			err = e.Watch(cmd.Context(), args[0], func(res *dtsynth.Result, err error) {
				if err != nil {
					app.log.WithError(err).Error("synthesis failed")
					return
				}
				out := toCLISynthesis(res)
				if write {
					written, err := app.writeDeclarations(e, res, outputDir)
					out.Written = written
					if err != nil {
						app.log.WithError(err).Error("writing declarations failed")
					}
				}
				if err := app.outputResult(cmd, CLIResult{Command: "watch", Results: out}); err != nil {
					app.log.WithError(err).Error("output failed")
				}
			})
			if err != nil {
				return app.outputError(cmd, "watch", err)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&write, "write", false, "write .d.ts files after every synthesis")
	cmd.Flags().StringVar(&outputDir, "output-dir", "", "base directory for relative traced paths when writing (default: output_dir from config, else current directory)")
	cmd.Flags().DurationVar(&debounce, "debounce", 200*time.Millisecond, "quiet period after a change before synthesizing")
	return cmd
}
