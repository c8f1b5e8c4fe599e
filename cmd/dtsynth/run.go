package main

import (
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jward/dtsynth"
	"github.com/jward/dtsynth/internal/config"
	"github.com/jward/dtsynth/internal/workspace"
)

func (app *cli) runCmd() *cobra.Command {
	var repo, dir string
	var skipInstall, dryRun, record bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Trace a JavaScript project's tests and export declarations",
		Long: `Run drives a JavaScript project end to end: clone (with --repo), npm
install, instrument every test/*.js file with njstrace, npm test, synthesize
from the trace the tests wrote, then write lib/**/*.d.ts, point package.json
at lib/index.d.ts and run tsc.

A test run that exceeds --test-timeout is stopped and the trace written so
far is used.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if dir == "" {
				dir = "."
				if repo != "" {
					dir = repoName(repo)
				}
			}
			absDir, err := filepath.Abs(dir)
			if err != nil {
				return app.outputError(cmd, "run", err)
			}

			var e *dtsynth.Engine
			if record {
				e, err = app.newRecordingEngine()
			} else {
				e, err = app.newEngine()
			}
			if err != nil {
				return app.outputError(cmd, "run", err)
			}
			defer e.Close()

			ws := workspace.New(absDir, nil, app.log)
			report, err := e.RunWorkspace(cmd.Context(), ws, dtsynth.WorkspaceOptions{
				RepoURI:     repo,
				TestTimeout: app.cfg.TestTimeout,
				SkipInstall: skipInstall,
				Export:      !dryRun,
				Record:      record,
			})
			if err != nil {
				return app.outputError(cmd, "run", err)
			}

			return app.outputResult(cmd, CLIResult{Command: "run", Results: CLIWorkspaceRun{
				Dir:          absDir,
				Instrumented: report.Instrumented,
				Written:      report.Written,
				RunID:        report.RunID,
				Synthesis:    toCLISynthesis(report.Result),
			}})
		},
	}
	cmd.Flags().StringVar(&repo, "repo", "", "git URL to clone before running")
	cmd.Flags().StringVar(&dir, "dir", "", "project directory (default: the repository name with --repo, else current directory)")
	cmd.Flags().BoolVar(&skipInstall, "skip-install", false, "skip npm install")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "synthesize only; do not write declarations or run tsc")
	cmd.Flags().BoolVar(&record, "record", false, "store the run in the run database")
	cmd.Flags().Duration("test-timeout", config.Defaults().TestTimeout, "stop the test run after this long (0 = no limit)")
	mustBindPFlag(app.v, "test_timeout", cmd.Flags().Lookup("test-timeout"))
	return cmd
}

// repoName derives a checkout directory from a git URL.
func repoName(repoURI string) string {
	name := path.Base(strings.TrimSuffix(strings.TrimRight(repoURI, "/"), ".git"))
	if name == "." || name == "/" || name == "" {
		return "repo"
	}
	return name
}
