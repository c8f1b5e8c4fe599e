package dtsynth

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/dtsynth/internal/typing"
)

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	e, err := New(dbPath, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e
}

func newMemoryEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	e, err := New("", opts...)
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e
}

// traceLines joins NDJSON records into a trace.
func traceLines(lines ...string) *strings.Reader {
	return strings.NewReader(strings.Join(lines, "\n") + "\n")
}

func entry(name, file, args string) string {
	return `{"entry": {"name": "` + name + `", "file": "` + file + `", "args": ` + args + `}}`
}

func exit(name, file, ret string) string {
	return `{"exit": {"name": "` + name + `", "file": "` + file + `", "returnValue": ` + ret + `}}`
}

func outputLines(res *Result) map[string][]string {
	out := make(map[string][]string)
	for _, f := range res.Output() {
		out[f.File] = f.Declarations
	}
	return out
}

// =============================================================================
// Construction
// =============================================================================

func TestNew_CreatesStoreAndRuntime(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	require.NotNil(t, e.Store())
	require.NotNil(t, e.runtime)
	assert.Equal(t, StrategySimple, e.Strategy())
	assert.True(t, e.useParallel)
	assert.Equal(t, []string{"[Anonymous]"}, e.ignore)

	version, err := e.Store().Metadata("schema_version")
	require.NoError(t, err)
	assert.NotEmpty(t, version)
}

func TestNew_WithoutDatabase(t *testing.T) {
	t.Parallel()
	e := newMemoryEngine(t)
	assert.Nil(t, e.Store())
	assert.NoError(t, e.Close())
}

func TestNew_InvalidPath(t *testing.T) {
	t.Parallel()
	_, err := New("/nonexistent/dir/db.sqlite")
	require.Error(t, err)
}

func TestNew_UnknownStrategy(t *testing.T) {
	t.Parallel()
	_, err := New("", WithStrategy("psychic"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown strategy")
}

func TestNew_ScriptStrategyRequiresScript(t *testing.T) {
	t.Parallel()
	_, err := New("", WithStrategy(StrategyScript))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires WithClassifierScript")

	_, err = New("", WithStrategy(StrategyScript), WithClassifierScript(filepath.Join(t.TempDir(), "missing.risor")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load classifier")
}

func TestOptions(t *testing.T) {
	t.Parallel()
	e := newMemoryEngine(t,
		WithStrategy(StrategyExtended),
		WithIgnoreFunctions("skip", "[Anonymous]"),
		WithParallel(false),
		WithWorkers(3),
		WithRenderOptions(RenderOptions{Export: true}),
		WithSourceRoot("src"),
	)
	assert.Equal(t, StrategyExtended, e.Strategy())
	assert.Equal(t, []string{"skip", "[Anonymous]"}, e.ignore)
	assert.False(t, e.useParallel)
	assert.Equal(t, 3, e.workerCount())
	assert.True(t, e.RenderOptions().Export)
	assert.Equal(t, "src", e.sourceRoot)
}

func TestStrategies_ListsAll(t *testing.T) {
	t.Parallel()
	var names []string
	for _, s := range Strategies() {
		names = append(names, s.Name)
		assert.NotEmpty(t, s.Description)
	}
	assert.Equal(t, []string{"simple", "extended", "null", "null-values", "script"}, names)
}

// =============================================================================
// Synthesize
// =============================================================================

func TestSynthesize_SingleStringCall(t *testing.T) {
	t.Parallel()
	e := newMemoryEngine(t)

	res, err := e.Synthesize(context.Background(), traceLines(
		entry("f", "lib/index.js", `{"0": "hello"}`),
		exit("f", "lib/index.js", `"HELLO"`),
	))
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{
		"lib/index.js": {"declare function f(arg0: string): string;"},
	}, outputLines(res))
	assert.Equal(t, 2, res.Events)
	assert.Equal(t, 1, res.Calls)
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, "lib/index.d.ts", res.Output()[0].Path)
}

func TestSynthesize_NumberFailsSimpleStrategy(t *testing.T) {
	t.Parallel()
	e := newMemoryEngine(t)

	res, err := e.Synthesize(context.Background(), traceLines(
		entry("g", "lib/index.js", `{"0": 42}`),
		exit("g", "lib/index.js", `"42"`),
	))
	require.Error(t, err)

	var uv *UnsupportedValueError
	require.ErrorAs(t, err, &uv)
	assert.Equal(t, "number", uv.Kind)

	var de *DeductionError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "g", de.Function)
	assert.Equal(t, 0, de.Position)

	require.NotNil(t, res)
	assert.Empty(t, res.Files, "no partial declarations")
	require.Len(t, res.Functions, 1)
	assert.Nil(t, res.Functions[0].Signature)
}

func TestSynthesize_ArityGrowthKeepsEveryPosition(t *testing.T) {
	t.Parallel()
	e := newMemoryEngine(t)

	res, err := e.Synthesize(context.Background(), traceLines(
		entry("join", "lib/index.js", `{"0": "a"}`),
		exit("join", "lib/index.js", `"a"`),
		entry("join", "lib/index.js", `{"0": "a", "1": "b"}`),
		exit("join", "lib/index.js", `"ab"`),
	))
	require.NoError(t, err)
	assert.Equal(t, []string{"declare function join(arg0: string, arg1: string): string;"},
		outputLines(res)["lib/index.js"])
}

func TestSynthesize_MarkOptional(t *testing.T) {
	t.Parallel()
	e := newMemoryEngine(t, WithRenderOptions(RenderOptions{MarkOptional: true, Export: true}))

	res, err := e.Synthesize(context.Background(), traceLines(
		entry("join", "lib/index.js", `{"0": "a"}`),
		exit("join", "lib/index.js", `"a"`),
		entry("join", "lib/index.js", `{"0": "a", "1": "b"}`),
		exit("join", "lib/index.js", `"ab"`),
	))
	require.NoError(t, err)
	assert.Equal(t, []string{"export declare function join(arg0: string, arg1?: string): string;"},
		outputLines(res)["lib/index.js"])
}

func TestSynthesize_UnbalancedTrace(t *testing.T) {
	t.Parallel()
	e := newMemoryEngine(t)

	_, err := e.Synthesize(context.Background(), traceLines(
		entry("outer", "a.js", `{}`),
		entry("inner", "a.js", `{}`),
		exit("outer", "a.js", `"x"`),
	))
	var ub *UnbalancedTraceError
	require.ErrorAs(t, err, &ub)
	assert.Equal(t, "inner", ub.Entry.Name)
	assert.Equal(t, "outer", ub.Exit.Name)
	assert.Contains(t, err.Error(), "dtsynth: reconstruct")
}

func TestSynthesize_Underflow(t *testing.T) {
	t.Parallel()
	e := newMemoryEngine(t)

	_, err := e.Synthesize(context.Background(), traceLines(exit("f", "a.js", `"x"`)))
	var uf *TraceUnderflowError
	require.ErrorAs(t, err, &uf)
}

func TestSynthesize_MalformedLine(t *testing.T) {
	t.Parallel()
	e := newMemoryEngine(t)

	res, err := e.Synthesize(context.Background(), traceLines(
		entry("f", "a.js", `{"0": "a"}`),
		`not json`,
	))
	var ml *MalformedTraceLineError
	require.ErrorAs(t, err, &ml)
	assert.Equal(t, 2, ml.Line)
	assert.Equal(t, 1, res.Events)
}

func TestSynthesize_IgnoresAnonymousFrames(t *testing.T) {
	t.Parallel()
	e := newMemoryEngine(t)

	res, err := e.Synthesize(context.Background(), traceLines(
		entry("[Anonymous]", "a.js", `{"0": 1}`),
		entry("f", "a.js", `{"0": "x"}`),
		exit("f", "a.js", `"y"`),
		exit("[Anonymous]", "a.js", `1`),
	))
	require.NoError(t, err, "numeric values of ignored frames are never classified")
	require.Len(t, res.Functions, 1)
	assert.Equal(t, "f", res.Functions[0].ID.Name)
}

func TestSynthesize_CustomIgnoreList(t *testing.T) {
	t.Parallel()
	e := newMemoryEngine(t, WithIgnoreFunctions("helper"))

	res, err := e.Synthesize(context.Background(), traceLines(
		entry("helper", "a.js", `{"0": "x"}`),
		exit("helper", "a.js", `"y"`),
		entry("f", "a.js", `{"0": "x"}`),
		exit("f", "a.js", `"y"`),
	))
	require.NoError(t, err)
	require.Len(t, res.Functions, 1)
	assert.Equal(t, "f", res.Functions[0].ID.Name)
}

func TestSynthesize_PendingEntriesAreReportedAndLogged(t *testing.T) {
	t.Parallel()
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	e := newMemoryEngine(t, WithLogger(logger))

	res, err := e.Synthesize(context.Background(), traceLines(
		entry("main", "test/index.js", `{}`),
		entry("f", "lib/index.js", `{"0": "a"}`),
		exit("f", "lib/index.js", `"b"`),
	))
	require.NoError(t, err)
	assert.Equal(t, []FunctionID{{Name: "main", File: "test/index.js"}}, res.Pending)

	var warned bool
	for _, le := range hook.AllEntries() {
		if le.Level == logrus.WarnLevel && le.Message == "trace ended with open calls" {
			warned = true
			assert.Equal(t, 1, le.Data["pending"])
			assert.Equal(t, res.RunID, le.Data["run"])
		}
	}
	assert.True(t, warned)
}

func TestSynthesize_EmptyTrace(t *testing.T) {
	t.Parallel()
	e := newMemoryEngine(t)

	res, err := e.Synthesize(context.Background(), strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, res.Functions)
	assert.Empty(t, res.Output())
}

func TestSynthesize_CancelledContext(t *testing.T) {
	t.Parallel()
	e := newMemoryEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Synthesize(ctx, traceLines(entry("f", "a.js", `{}`), exit("f", "a.js", `"x"`)))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSynthesize_NullStrategy(t *testing.T) {
	t.Parallel()
	e := newMemoryEngine(t, WithStrategy(StrategyNull))

	res, err := e.Synthesize(context.Background(), traceLines(
		entry("h", "a.js", `{"0": 1, "1": true}`),
		exit("h", "a.js", `{"x": 1}`),
	))
	require.NoError(t, err)
	assert.Equal(t, []string{"declare function h(arg0: null): null;"}, outputLines(res)["a.js"])
}

func TestSynthesize_NullValuesStrategyKeepsArity(t *testing.T) {
	t.Parallel()
	e := newMemoryEngine(t, WithStrategy(StrategyNullValues))

	res, err := e.Synthesize(context.Background(), traceLines(
		entry("h", "a.js", `{"0": 1, "1": [true]}`),
		exit("h", "a.js", `{"x": 1}`),
		entry("g", "a.js", `{}`),
		exit("g", "a.js", `"s"`),
	))
	require.NoError(t, err)
	assert.Equal(t, []string{
		"declare function h(arg0: null, arg1: null): null;",
		"declare function g(): null;",
	}, outputLines(res)["a.js"])
}

func TestSynthesizeFile_Missing(t *testing.T) {
	t.Parallel()
	e := newMemoryEngine(t)
	_, err := e.SynthesizeFile(context.Background(), filepath.Join(t.TempDir(), "none.txt"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

// =============================================================================
// Script strategy
// =============================================================================

const classifierScript = `
func classify(v) {
	k := kind_of(v)
	if k == "array" {
		return "unknown[]"
	}
	return k
}
classify(value)
`

func TestSynthesize_ScriptStrategyAgreesWithExtended(t *testing.T) {
	t.Parallel()
	script := filepath.Join(t.TempDir(), "classify.risor")
	require.NoError(t, os.WriteFile(script, []byte(classifierScript), 0o644))

	events := []string{
		entry("f", "a.js", `{"0": "s", "1": 1.5, "2": true}`),
		exit("f", "a.js", `null`),
		entry("f", "a.js", `{"0": [1], "1": {"k": "v"}}`),
		exit("f", "a.js", `"x"`),
		entry("g", "b.js", `{}`),
		exit("g", "b.js", `[]`),
	}

	scripted := newMemoryEngine(t, WithStrategy(StrategyScript), WithClassifierScript(script))
	got, err := scripted.Synthesize(context.Background(), traceLines(events...))
	require.NoError(t, err)

	extended := newMemoryEngine(t, WithStrategy(StrategyExtended))
	want, err := extended.Synthesize(context.Background(), traceLines(events...))
	require.NoError(t, err)

	assert.Equal(t, want.Output(), got.Output())
	assert.Equal(t, []string{"declare function f(arg0: number[]|string, arg1: number|object, arg2: boolean): null|string;"},
		outputLines(got)["a.js"])
}

func TestSynthesize_ScriptUnknownTypeFails(t *testing.T) {
	t.Parallel()
	script := filepath.Join(t.TempDir(), "bad.risor")
	require.NoError(t, os.WriteFile(script, []byte(`"integer"`), 0o644))
	e := newMemoryEngine(t, WithStrategy(StrategyScript), WithClassifierScript(script))

	_, err := e.Synthesize(context.Background(), traceLines(entry("f", "a.js", `{"0": 1}`), exit("f", "a.js", `1`)))
	var uv *typing.UnsupportedValueError
	require.ErrorAs(t, err, &uv)
	assert.Equal(t, "script", uv.Classifier)
}
