package main

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/jward/dtsynth"
	"github.com/jward/dtsynth/internal/config"
	"github.com/jward/dtsynth/internal/logging"
	"github.com/jward/dtsynth/scripts"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	root, app := newRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		if !app.errorHandled {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
		stop()
		os.Exit(1)
	}
}

// cli holds the state shared by every command of one invocation.
type cli struct {
	v          *viper.Viper
	cfg        config.Config
	log        *logrus.Logger
	configFile string
	format     string

	// errorHandled is set by outputError so main() doesn't double-print.
	errorHandled bool
}

func newRootCmd() (*cobra.Command, *cli) {
	app := &cli{v: viper.New()}
	d := config.Defaults()

	root := &cobra.Command{
		Use:           "dtsynth",
		Short:         "Synthesize TypeScript declarations from JavaScript execution traces",
		Long:          "dtsynth reads the entry/exit trace recorded while a library's tests run and deduces a union-typed declaration for every traced function.",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := validateFormat(app.format); err != nil {
				return err
			}
			cfg, err := config.Load(app.v, app.configFile)
			if err != nil {
				return err
			}
			opts := cfg.Logging()
			opts.Out = cmd.ErrOrStderr()
			log, err := logging.New(opts)
			if err != nil {
				return err
			}
			app.cfg, app.log = cfg, log
			return nil
		},
		// No Run: prints help by default.
	}

	pf := root.PersistentFlags()
	pf.StringVar(&app.configFile, "config", "", "config file (yaml, json or toml)")
	pf.StringVar(&app.format, "format", "text", "output format: text|json|yaml")
	pf.String("db", "", "run database path (default: .dtsynth/runs.db relative to repo root)")
	pf.String("strategy", d.Strategy, "deduction strategy (see 'dtsynth strategies')")
	pf.String("classifier-script", "", "Risor classifier script for the script strategy; bundled scripts such as classify/extended.risor are found when no such file exists")
	pf.StringSlice("ignore-functions", d.IgnoreFunctions, "function names whose calls are dropped")
	pf.Bool("parallel", d.Parallel, "deduce functions in parallel")
	pf.Int("workers", d.Workers, "parallel deduction workers (0 = one per CPU)")
	pf.Bool("export", d.Export, "render declarations with the export keyword")
	pf.Bool("mark-optional", d.MarkOptional, "render partially observed arguments as optional")
	pf.String("log-level", d.LogLevel, "log level: trace|debug|info|warn|error")
	pf.String("log-format", d.LogFormat, "log format: text|json")

	for key, flag := range map[string]string{
		"db":                "db",
		"strategy":          "strategy",
		"classifier_script": "classifier-script",
		"ignore_functions":  "ignore-functions",
		"parallel":          "parallel",
		"workers":           "workers",
		"export":            "export",
		"mark_optional":     "mark-optional",
		"log_level":         "log-level",
		"log_format":        "log-format",
	} {
		mustBindPFlag(app.v, key, pf.Lookup(flag))
	}

	root.AddCommand(app.synthCmd())
	root.AddCommand(app.runCmd())
	root.AddCommand(app.watchCmd())
	root.AddCommand(app.coverageCmd())
	root.AddCommand(app.historyCmd())
	root.AddCommand(app.strategiesCmd())
	return root, app
}

// mustBindPFlag binds key to flag. A nil flag is a wiring mistake in this
// package, so it panics rather than leaving the key silently unbound.
func mustBindPFlag(v *viper.Viper, key string, flag *pflag.Flag) {
	if err := v.BindPFlag(key, flag); err != nil {
		panic(fmt.Sprintf("dtsynth: bind flag for %q: %v", key, err))
	}
}

// engineOptions translates the loaded configuration into Engine options.
func (app *cli) engineOptions() ([]dtsynth.Option, error) {
	cfg := app.cfg
	opts := []dtsynth.Option{
		dtsynth.WithStrategy(cfg.Strategy),
		dtsynth.WithIgnoreFunctions(cfg.IgnoreFunctions...),
		dtsynth.WithParallel(cfg.Parallel),
		dtsynth.WithWorkers(cfg.Workers),
		dtsynth.WithRenderOptions(dtsynth.RenderOptions{Export: cfg.Export, MarkOptional: cfg.MarkOptional}),
		dtsynth.WithLogger(app.log),
	}
	if cfg.ClassifierScript != "" {
		opts = append(opts, dtsynth.WithClassifierScript(cfg.ClassifierScript))
		// Script source: a file on disk wins over a bundled script.
		if _, err := os.Stat(cfg.ClassifierScript); err != nil {
			if _, ferr := fs.Stat(scripts.FS, filepath.ToSlash(cfg.ClassifierScript)); ferr != nil {
				return nil, fmt.Errorf("classifier script %s: %w", cfg.ClassifierScript, err)
			}
			opts = append(opts, dtsynth.WithScriptsFS(scripts.FS))
		}
	}
	return opts, nil
}

// newEngine creates an Engine without run history.
func (app *cli) newEngine(extra ...dtsynth.Option) (*dtsynth.Engine, error) {
	return app.newEngineAt("", extra...)
}

// newRecordingEngine creates an Engine backed by the run database, creating
// its directory if needed.
func (app *cli) newRecordingEngine(extra ...dtsynth.Option) (*dtsynth.Engine, error) {
	dbPath, err := app.resolveDBPath()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", filepath.Dir(dbPath), err)
	}
	return app.newEngineAt(dbPath, extra...)
}

func (app *cli) newEngineAt(dbPath string, extra ...dtsynth.Option) (*dtsynth.Engine, error) {
	opts, err := app.engineOptions()
	if err != nil {
		return nil, err
	}
	e, err := dtsynth.New(dbPath, append(opts, extra...)...)
	if err != nil {
		return nil, fmt.Errorf("creating engine: %w", err)
	}
	return e, nil
}

// openHistory opens an existing run database.
func (app *cli) openHistory() (*dtsynth.Engine, *dtsynth.History, error) {
	dbPath, err := app.resolveDBPath()
	if err != nil {
		return nil, nil, err
	}
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return nil, nil, fmt.Errorf("database not found: %s (run 'dtsynth synth --record' first)", dbPath)
	}
	e, err := app.newEngineAt(dbPath)
	if err != nil {
		return nil, nil, err
	}
	h, err := e.History()
	if err != nil {
		e.Close()
		return nil, nil, err
	}
	return e, h, nil
}

// resolveDBPath returns the database path from --db / config or the default.
func (app *cli) resolveDBPath() (string, error) {
	if app.cfg.DB != "" {
		return filepath.Abs(app.cfg.DB)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting cwd: %w", err)
	}
	return filepath.Join(findRepoRoot(cwd), ".dtsynth", "runs.db"), nil
}

// findRepoRoot walks up from startDir looking for a .git directory.
// Returns the directory containing .git, or startDir if not found.
func findRepoRoot(startDir string) string {
	dir := startDir
	for {
		if info, err := os.Stat(filepath.Join(dir, ".git")); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root without finding .git.
			return startDir
		}
		dir = parent
	}
}

func (app *cli) strategiesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "strategies",
		Short: "List deduction strategies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.outputResult(cmd, CLIResult{Command: "strategies", Results: dtsynth.Strategies()})
		},
	}
}
