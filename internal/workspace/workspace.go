// Package workspace drives a JavaScript project through the trace pipeline:
// clone, install, instrument its tests with njstrace, run them, and export
// the synthesized declarations back into the project.
package workspace

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jward/dtsynth/internal/decl"
	"github.com/jward/dtsynth/internal/logging"
)

// Layout of the project inside Dir.
const (
	TestDir      = "test"
	LibDir       = "lib"
	TypingsFile  = "lib/index.d.ts"
	TraceFile    = "instrumentation_output.txt"
	tracerModule = "njstrace"
)

// Workspace is a checked-out project directory.
type Workspace struct {
	Dir    string
	Runner Runner
	Log    logrus.FieldLogger
}

// New returns a Workspace rooted at dir. A nil runner uses ExecRunner and a
// nil logger discards output.
func New(dir string, runner Runner, log logrus.FieldLogger) *Workspace {
	if runner == nil {
		runner = ExecRunner{}
	}
	if log == nil {
		log = logging.Discard()
	}
	return &Workspace{Dir: dir, Runner: runner, Log: log}
}

// TracePath is the absolute path the instrumented tests append events to.
func (w *Workspace) TracePath() (string, error) {
	return filepath.Abs(filepath.Join(w.Dir, TraceFile))
}

// Clone checks repoURI out into Dir, creating it if needed.
func (w *Workspace) Clone(ctx context.Context, repoURI string) error {
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return fmt.Errorf("workspace: create %s: %w", w.Dir, err)
	}
	return w.run(ctx, "git", "clone", repoURI, ".")
}

// Install installs the project's dependencies and the tracer.
func (w *Workspace) Install(ctx context.Context) error {
	if err := w.run(ctx, "npm", "install"); err != nil {
		return err
	}
	return w.run(ctx, "npm", "install", tracerModule)
}

// Instrument prepends the njstrace formatter preamble to every JavaScript
// file directly inside the test directory. The preamble appends one
// {"entry": ...} or {"exit": ...} JSON line per event to traceFile.
// It returns the instrumented files.
func (w *Workspace) Instrument(traceFile string) ([]string, error) {
	abs, err := filepath.Abs(traceFile)
	if err != nil {
		return nil, fmt.Errorf("workspace: trace path: %w", err)
	}
	preamble, err := Preamble(abs)
	if err != nil {
		return nil, err
	}

	testDir := filepath.Join(w.Dir, TestDir)
	entries, err := os.ReadDir(testDir)
	if err != nil {
		return nil, fmt.Errorf("workspace: read test directory: %w", err)
	}

	var done []string
	for _, e := range entries {
		if !e.Type().IsRegular() || filepath.Ext(e.Name()) != ".js" {
			continue
		}
		path := filepath.Join(testDir, e.Name())
		src, err := os.ReadFile(path)
		if err != nil {
			return done, fmt.Errorf("workspace: read %s: %w", path, err)
		}
		if err := os.WriteFile(path, append([]byte(preamble), src...), 0o644); err != nil {
			return done, fmt.Errorf("workspace: write %s: %w", path, err)
		}
		done = append(done, path)
	}
	w.Log.WithFields(logrus.Fields{"files": len(done), "trace": abs}).Info("instrumented tests")
	return done, nil
}

// Preamble returns the JavaScript lines that load njstrace with a formatter
// writing trace events to traceFile.
func Preamble(traceFile string) (string, error) {
	quoted, err := json.Marshal(traceFile)
	if err != nil {
		return "", fmt.Errorf("workspace: quote trace path: %w", err)
	}
	lines := []string{
		"var Formatter = require('njstrace/lib/formatter.js');",
		"var fs = require('fs');",
		"var out = fs.createWriteStream(" + string(quoted) + ", {'flags': 'a'});",
		"function MyFormatter() {}",
		"require('util').inherits(MyFormatter, Formatter);",
		"MyFormatter.prototype.onEntry = function(args) {out.write(JSON.stringify({'entry': args}) + '\\n');};",
		"MyFormatter.prototype.onExit = function(args) {out.write(JSON.stringify({'exit': args}) + '\\n');};",
		"var njstrace = require('njstrace').inject({ formatter: new MyFormatter() });",
	}
	return strings.Join(lines, "\n") + "\n", nil
}

// RunTests runs npm test. Hitting timeout is logged and tolerated: the trace
// written so far is still usable. A zero timeout means no limit.
func (w *Workspace) RunTests(ctx context.Context, timeout time.Duration) error {
	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	err := w.run(runCtx, "npm", "test")
	if err != nil && ctx.Err() == nil && errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		w.Log.WithField("timeout", timeout).Warn("tests timed out; using partial trace")
		return nil
	}
	return err
}

// ExportDeclarations writes one declaration file per source file, points
// package.json's typings at lib/index.d.ts, writes tsconfig.json and runs
// tsc. It returns the written declaration files.
func (w *Workspace) ExportDeclarations(ctx context.Context, files []decl.FileDeclarations, opts decl.Options) ([]string, error) {
	written, err := WriteDeclarations(w.Dir, files, opts)
	for _, path := range written {
		w.Log.WithField("file", path).Info("wrote type definitions")
	}
	if err != nil {
		return written, err
	}

	if err := w.setTypings(); err != nil {
		return written, err
	}
	if err := w.writeTSConfig(); err != nil {
		return written, err
	}
	return written, w.run(ctx, "tsc")
}

// WriteDeclarations writes each group next to its source file, or under
// baseDir when the source path is relative.
func WriteDeclarations(baseDir string, files []decl.FileDeclarations, opts decl.Options) ([]string, error) {
	var written []string
	for _, f := range files {
		path := decl.DefinitionPath(f.File)
		if !filepath.IsAbs(path) {
			path = filepath.Join(baseDir, path)
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return written, fmt.Errorf("workspace: create %s: %w", filepath.Dir(path), err)
		}
		if err := os.WriteFile(path, []byte(f.Text(opts)), 0o644); err != nil {
			return written, fmt.Errorf("workspace: write %s: %w", path, err)
		}
		written = append(written, path)
	}
	return written, nil
}

func (w *Workspace) setTypings() error {
	path := filepath.Join(w.Dir, "package.json")
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("workspace: read package.json: %w", err)
	}
	var pkg map[string]json.RawMessage
	if err := json.Unmarshal(data, &pkg); err != nil {
		return fmt.Errorf("workspace: parse package.json: %w", err)
	}
	pkg["typings"] = json.RawMessage(`"` + TypingsFile + `"`)

	out, err := json.MarshalIndent(pkg, "", "  ")
	if err != nil {
		return fmt.Errorf("workspace: encode package.json: %w", err)
	}
	if err := os.WriteFile(path, append(out, '\n'), 0o644); err != nil {
		return fmt.Errorf("workspace: write package.json: %w", err)
	}
	w.Log.WithField("typings", TypingsFile).Info("set typings in package.json")
	return nil
}

type compilerOptions struct {
	AllowJS bool   `json:"allowJs"`
	OutDir  string `json:"outDir"`
}

type tsConfig struct {
	CompilerOptions compilerOptions `json:"compilerOptions"`
	Include         []string        `json:"include"`
}

func (w *Workspace) writeTSConfig() error {
	cfg := tsConfig{
		CompilerOptions: compilerOptions{AllowJS: true, OutDir: "dist"},
		Include:         []string{LibDir + "/*"},
	}
	out, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("workspace: encode tsconfig.json: %w", err)
	}
	if err := os.WriteFile(filepath.Join(w.Dir, "tsconfig.json"), append(out, '\n'), 0o644); err != nil {
		return fmt.Errorf("workspace: write tsconfig.json: %w", err)
	}
	return nil
}

func (w *Workspace) run(ctx context.Context, name string, args ...string) error {
	log := w.Log.WithFields(logrus.Fields{"cmd": strings.Join(append([]string{name}, args...), " "), "dir": w.Dir})
	log.Info("executing command")
	start := time.Now()
	out, err := w.Runner.Run(ctx, w.Dir, name, args...)
	if err != nil {
		log.WithField("output", string(out)).Warn("command failed")
		return err
	}
	log.WithField("duration", time.Since(start)).Debug("command finished")
	return nil
}
