package dtsynth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jward/dtsynth/internal/workspace"
)

// WorkspaceOptions controls RunWorkspace.
type WorkspaceOptions struct {
	// RepoURI is cloned into the workspace first; empty uses the existing
	// checkout.
	RepoURI string
	// TestTimeout bounds the test run. Zero means no limit.
	TestTimeout time.Duration
	// SkipInstall skips npm install.
	SkipInstall bool
	// Export writes the declarations into the project and runs tsc.
	Export bool
	// Record persists the run when the Engine has a store.
	Record bool
}

// WorkspaceReport is the outcome of RunWorkspace.
type WorkspaceReport struct {
	Result       *Result  `json:"-" yaml:"-"`
	Instrumented []string `json:"instrumented" yaml:"instrumented"`
	Written      []string `json:"written" yaml:"written"`
	RunID        string   `json:"run_id,omitempty" yaml:"run_id,omitempty"`
}

// RunWorkspace drives a JavaScript project end to end: clone, install,
// instrument its tests, run them, synthesize from the trace they wrote and
// optionally export and record the result. A test run that hits its
// timeout still yields a (partial) trace.
func (e *Engine) RunWorkspace(ctx context.Context, ws *workspace.Workspace, opts WorkspaceOptions) (*WorkspaceReport, error) {
	report := &WorkspaceReport{}
	log := e.log.WithField("dir", ws.Dir)

	if opts.RepoURI != "" {
		if err := ws.Clone(ctx, opts.RepoURI); err != nil {
			return report, fmt.Errorf("dtsynth: clone: %w", err)
		}
	}
	if !opts.SkipInstall {
		if err := ws.Install(ctx); err != nil {
			return report, fmt.Errorf("dtsynth: install: %w", err)
		}
	}

	tracePath, err := ws.TracePath()
	if err != nil {
		return report, fmt.Errorf("dtsynth: %w", err)
	}
	// The tracer appends; a trace left by an earlier run would be replayed.
	if err := os.Remove(tracePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return report, fmt.Errorf("dtsynth: remove stale trace: %w", err)
	}

	report.Instrumented, err = ws.Instrument(tracePath)
	if err != nil {
		return report, fmt.Errorf("dtsynth: instrument: %w", err)
	}
	if err := ws.RunTests(ctx, opts.TestTimeout); err != nil {
		return report, fmt.Errorf("dtsynth: run tests: %w", err)
	}

	res, synthErr := e.SynthesizeFile(ctx, tracePath)
	report.Result = res
	if opts.Record && e.store != nil && res != nil {
		source := opts.RepoURI
		if source == "" {
			source = ws.Dir
		}
		runID, err := e.Record(source, res, synthErr)
		if err != nil {
			return report, err
		}
		report.RunID = runID
	}
	if synthErr != nil {
		return report, synthErr
	}

	if opts.Export {
		report.Written, err = ws.ExportDeclarations(ctx, res.Files, e.render)
		if err != nil {
			return report, fmt.Errorf("dtsynth: export: %w", err)
		}
	}

	log.WithFields(logrus.Fields{
		"run":       res.RunID,
		"functions": len(res.Functions),
		"written":   len(report.Written),
	}).Info("workspace run complete")
	return report, nil
}
