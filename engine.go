package dtsynth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jward/dtsynth/internal/decl"
	"github.com/jward/dtsynth/internal/logging"
	"github.com/jward/dtsynth/internal/runtime"
	"github.com/jward/dtsynth/internal/store"
	"github.com/jward/dtsynth/internal/trace"
)

// ErrNoStore is returned by operations that need run history when the
// Engine was created without a database path.
var ErrNoStore = errors.New("dtsynth: engine has no run store")

// Engine orchestrates the dtsynth pipeline: trace decoding, call
// reconstruction, signature deduction, rendering, and optionally run
// persistence and coverage.
type Engine struct {
	store      *store.Store // nil when created without a database
	runtime    *runtime.Runtime
	classifier *runtime.ScriptClassifier

	strategy         string
	classifierScript string
	scriptsFS        fs.FS
	ignore           []string
	render           decl.Options
	log              logrus.FieldLogger
	sourceRoot       string
	debounce         time.Duration

	// useParallel enables the parallel deduction pool.
	useParallel bool
	workers     int
}

// Option configures an Engine.
type Option func(*Engine)

// WithStrategy selects the deduction strategy by name. See Strategies.
func WithStrategy(name string) Option {
	return func(e *Engine) {
		e.strategy = name
	}
}

// WithClassifierScript sets the Risor script used by the script strategy.
// Imports inside the script resolve relative to its directory.
func WithClassifierScript(path string) Option {
	return func(e *Engine) {
		e.classifierScript = path
	}
}

// WithScriptsFS configures the Engine to load the classifier script from
// fsys instead of from disk. This enables embedded scripts such as
// scripts.FS; the script path is then relative to the root of fsys and
// imports resolve against that root.
func WithScriptsFS(fsys fs.FS) Option {
	return func(e *Engine) {
		e.scriptsFS = fsys
	}
}

// WithIgnoreFunctions replaces the list of function names whose calls are
// dropped during reconstruction. The default is ["[Anonymous]"].
func WithIgnoreFunctions(names ...string) Option {
	return func(e *Engine) {
		e.ignore = append([]string(nil), names...)
	}
}

// WithParallel controls parallel deduction. When true (default), functions
// are deduced on a bounded worker pool and merged in reconstruction order.
// Set to false for serial mode.
func WithParallel(parallel bool) Option {
	return func(e *Engine) {
		e.useParallel = parallel
	}
}

// WithWorkers bounds the deduction pool. Zero or less means one worker per CPU.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		e.workers = n
	}
}

// WithRenderOptions sets how declarations are rendered.
func WithRenderOptions(o RenderOptions) Option {
	return func(e *Engine) {
		e.render = o
	}
}

// WithLogger routes the Engine's logs to l. The default discards them.
func WithLogger(l logrus.FieldLogger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithSourceRoot sets the directory Coverage scans and against which
// absolute trace file paths are made relative.
func WithSourceRoot(dir string) Option {
	return func(e *Engine) {
		e.sourceRoot = dir
	}
}

// WithDebounce sets how long Watch waits after the last change to the trace
// file before re-synthesizing. The default is 200ms.
func WithDebounce(d time.Duration) Option {
	return func(e *Engine) {
		e.debounce = d
	}
}

// New creates an Engine. When dbPath is non-empty the Engine opens (and
// migrates) a SQLite run store there; otherwise Record and History return
// ErrNoStore.
func New(dbPath string, opts ...Option) (*Engine, error) {
	e := &Engine{
		strategy:    StrategySimple,
		ignore:      append([]string(nil), trace.DefaultIgnore...),
		log:         logging.Discard(),
		debounce:    200 * time.Millisecond,
		useParallel: true, // default to parallel deduction
	}
	for _, opt := range opts {
		opt(e)
	}
	if !knownStrategy(e.strategy) {
		return nil, fmt.Errorf("dtsynth: unknown strategy %q", e.strategy)
	}

	// Build Runtime with the appropriate script source.
	rtOpts := []runtime.RuntimeOption{runtime.WithRuntimeLogger(e.log)}
	scriptsDir, scriptPath := "", e.classifierScript
	if e.scriptsFS != nil {
		rtOpts = append(rtOpts, runtime.WithRuntimeFS(e.scriptsFS))
	} else if scriptPath != "" {
		scriptsDir, scriptPath = filepath.Dir(scriptPath), filepath.Base(scriptPath)
	}
	e.runtime = runtime.NewRuntime(scriptsDir, rtOpts...)

	if e.strategy == StrategyScript {
		if e.classifierScript == "" {
			return nil, fmt.Errorf("dtsynth: strategy %q requires WithClassifierScript", StrategyScript)
		}
		c, err := runtime.NewScriptClassifier(e.runtime, scriptPath)
		if err != nil {
			return nil, fmt.Errorf("dtsynth: load classifier: %w", err)
		}
		e.classifier = c
	}

	if dbPath != "" {
		s, err := store.NewStore(dbPath)
		if err != nil {
			return nil, fmt.Errorf("dtsynth: create store: %w", err)
		}
		if err := s.Migrate(); err != nil {
			s.Close()
			return nil, fmt.Errorf("dtsynth: migrate: %w", err)
		}
		e.store = s
	}
	return e, nil
}

// Close releases the Engine's database resources.
func (e *Engine) Close() error {
	if e.store == nil {
		return nil
	}
	return e.store.Close()
}

// Store returns the underlying run store, or nil.
func (e *Engine) Store() *store.Store {
	return e.store
}

// Strategy returns the configured strategy name.
func (e *Engine) Strategy() string {
	return e.strategy
}

// RenderOptions returns the configured render options.
func (e *Engine) RenderOptions() RenderOptions {
	return e.render
}

// FunctionResult is one traced function: its identity, its completed calls
// and the deduced signature (nil if deduction did not complete).
type FunctionResult struct {
	ID        FunctionID
	Calls     []FunctionCall
	Signature *Signature
}

// Result is the outcome of one synthesis. It is returned even when
// Synthesize fails, holding whatever was computed before the failure.
type Result struct {
	RunID     string
	Strategy  string
	Events    int
	Calls     int
	Functions []FunctionResult // reconstruction order
	Files     []FileDeclarations
	Pending   []FunctionID // entries never closed, outermost first
	StartedAt time.Time
	Duration  time.Duration

	render decl.Options
}

// FileOutput is the rendered declaration file for one traced source file.
type FileOutput struct {
	File         string   `json:"file" yaml:"file"`
	Path         string   `json:"path" yaml:"path"`
	Declarations []string `json:"declarations" yaml:"declarations"`
}

// Output renders every file group with the Engine's render options.
func (r *Result) Output() []FileOutput {
	out := make([]FileOutput, 0, len(r.Files))
	for _, f := range r.Files {
		out = append(out, FileOutput{
			File:         f.File,
			Path:         decl.DefinitionPath(f.File),
			Declarations: f.Lines(r.render),
		})
	}
	return out
}

// Synthesize reads a trace from r and deduces a declaration for every
// traced function. Errors wrap the typed trace and typing errors, which
// callers match with errors.As.
func (e *Engine) Synthesize(ctx context.Context, r io.Reader) (*Result, error) {
	start := time.Now()
	res := &Result{
		RunID:     uuid.NewString(),
		Strategy:  e.strategy,
		StartedAt: start,
		render:    e.render,
	}
	defer func() { res.Duration = time.Since(start) }()
	log := e.log.WithField("run", res.RunID)

	rec := trace.NewReconstructor(e.ignore...)
	err := trace.Read(ctx, r, rec)
	res.Events = rec.Events()
	if err != nil {
		return res, fmt.Errorf("dtsynth: reconstruct: %w", err)
	}

	calls := rec.Calls()
	res.Calls = calls.Total()
	for _, id := range calls.Functions() {
		res.Functions = append(res.Functions, FunctionResult{ID: id, Calls: calls.Of(id)})
	}
	res.Pending = rec.Pending()
	if len(res.Pending) > 0 {
		log.WithField("pending", len(res.Pending)).Warn("trace ended with open calls")
		for _, id := range res.Pending {
			log.WithFields(logrus.Fields{"function": id.Name, "file": id.File}).Debug("open call")
		}
	}

	d, err := e.deducer(ctx)
	if err != nil {
		return res, fmt.Errorf("dtsynth: deduce: %w", err)
	}
	sigs, err := e.deduceAll(ctx, d, calls)
	if err != nil {
		return res, fmt.Errorf("dtsynth: deduce: %w", err)
	}

	g := decl.NewGrouper()
	for i := range res.Functions {
		res.Functions[i].Signature = sigs[i]
		g.Add(res.Functions[i].ID.File, sigs[i])
	}
	res.Files = g.Files()

	log.WithFields(logrus.Fields{
		"events":    res.Events,
		"calls":     res.Calls,
		"functions": len(res.Functions),
		"files":     len(res.Files),
		"duration":  time.Since(start),
	}).Info("synthesized declarations")
	return res, nil
}

// SynthesizeFile is Synthesize over the trace file at path.
func (e *Engine) SynthesizeFile(ctx context.Context, path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dtsynth: open trace: %w", err)
	}
	defer f.Close()
	return e.Synthesize(ctx, f)
}
