package dtsynth

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/jward/dtsynth/internal/runtime"
)

// FileCoverage compares the functions a source file declares with the ones
// the trace observed. Names keep declaration order.
type FileCoverage struct {
	File     string   `json:"file" yaml:"file"`
	Declared []string `json:"declared" yaml:"declared"`
	Observed []string `json:"observed" yaml:"observed"`
	Missing  []string `json:"missing" yaml:"missing"`
}

// CoverageReport lists, per source file, which declared functions were
// traced. Files are sorted by path.
type CoverageReport struct {
	Root     string         `json:"root" yaml:"root"`
	Files    []FileCoverage `json:"files" yaml:"files"`
	Declared int            `json:"declared" yaml:"declared"`
	Observed int            `json:"observed" yaml:"observed"`
}

// Percent returns the share of declared functions that were observed, or
// 100 when nothing is declared.
func (r *CoverageReport) Percent() float64 {
	if r.Declared == 0 {
		return 100
	}
	return float64(r.Observed) * 100 / float64(r.Declared)
}

// Coverage scans the source root for declared functions and reports those
// the traced run in res never observed. Trace file paths are compared
// relative to the source root.
func (e *Engine) Coverage(ctx context.Context, res *Result) (*CoverageReport, error) {
	if e.sourceRoot == "" {
		return nil, errors.New("dtsynth: coverage: no source root configured")
	}
	root, err := filepath.Abs(e.sourceRoot)
	if err != nil {
		return nil, fmt.Errorf("dtsynth: coverage: %w", err)
	}

	declared, err := e.scanSources(ctx, root)
	if err != nil {
		return nil, fmt.Errorf("dtsynth: coverage: %w", err)
	}

	observed := make(map[string]map[string]bool)
	for _, fn := range res.Functions {
		file := relativeSource(root, fn.ID.File)
		if observed[file] == nil {
			observed[file] = make(map[string]bool)
		}
		observed[file][fn.ID.Name] = true
	}

	files := make([]string, 0, len(declared))
	for file := range declared {
		files = append(files, file)
	}
	sort.Strings(files)

	report := &CoverageReport{Root: root}
	for _, file := range files {
		fc := FileCoverage{File: file}
		for _, fn := range declared[file] {
			fc.Declared = append(fc.Declared, fn.Name)
			if observed[file][fn.Name] {
				fc.Observed = append(fc.Observed, fn.Name)
			} else {
				fc.Missing = append(fc.Missing, fn.Name)
			}
		}
		if len(fc.Declared) == 0 {
			continue
		}
		report.Declared += len(fc.Declared)
		report.Observed += len(fc.Observed)
		report.Files = append(report.Files, fc)
	}

	e.log.WithFields(logrus.Fields{
		"files":    len(report.Files),
		"declared": report.Declared,
		"observed": report.Observed,
	}).Info("computed coverage")
	return report, nil
}

// scanSources lists source files with git when root is a repository, so
// ignored files are skipped, and falls back to walking the tree.
func (e *Engine) scanSources(ctx context.Context, root string) (map[string][]runtime.DeclaredFunction, error) {
	paths, err := gitListFiles(ctx, root)
	if err != nil {
		e.log.WithError(err).Debug("git listing unavailable; walking source root")
		return runtime.ScanDir(ctx, root)
	}
	return runtime.ScanFiles(ctx, root, paths)
}

// gitListFiles uses git ls-files to discover tracked and untracked (but not
// ignored) files under root, filtered to supported languages.
func gitListFiles(ctx context.Context, root string) ([]string, error) {
	// --cached: tracked files, --others: untracked files,
	// --exclude-standard: respect .gitignore, .git/info/exclude, global excludes.
	cmd := exec.CommandContext(ctx, "git", "ls-files", "--cached", "--others", "--exclude-standard")
	cmd.Dir = root
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("git ls-files: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	var paths []string
	for _, line := range strings.Split(stdout.String(), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if _, ok := runtime.LanguageForFile(line); ok {
			paths = append(paths, line)
		}
	}
	return paths, nil
}

// relativeSource maps a traced file path onto the slash-separated form
// ScanDir keys by.
func relativeSource(root, file string) string {
	if filepath.IsAbs(file) {
		if rel, err := filepath.Rel(root, file); err == nil {
			return filepath.ToSlash(rel)
		}
	}
	return filepath.ToSlash(filepath.Clean(file))
}
