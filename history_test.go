package dtsynth

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/dtsynth/internal/store"
)

func synthesizeAndRecord(t *testing.T, e *Engine, source string, lines ...string) (string, *Result) {
	t.Helper()
	res, err := e.Synthesize(context.Background(), traceLines(lines...))
	require.NoError(t, err)
	runID, err := e.Record(source, res, nil)
	require.NoError(t, err)
	return runID, res
}

// =============================================================================
// Record
// =============================================================================

func TestRecord_RoundTripsDeclarations(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)

	runID, res := synthesizeAndRecord(t, e, "trace.ndjson",
		entry("b", "lib/b.js", `{"0": "x"}`),
		exit("b", "lib/b.js", `"y"`),
		entry("a", "lib/a.js", `{"0": "x", "1": "z"}`),
		exit("a", "lib/a.js", `"y"`),
		entry("c", "lib/b.js", `{}`),
		exit("c", "lib/b.js", `"y"`),
	)
	assert.Equal(t, res.RunID, runID)

	h, err := e.History()
	require.NoError(t, err)
	detail, err := h.Show(runID)
	require.NoError(t, err)

	assert.Equal(t, store.StatusOK, detail.Run.Status)
	assert.Equal(t, "trace.ndjson", detail.Run.Source)
	assert.Equal(t, StrategySimple, detail.Run.Strategy)
	assert.Equal(t, 6, detail.Run.Events)
	assert.Equal(t, 3, detail.Run.Calls)
	assert.Equal(t, 3, detail.Run.Functions)

	require.Len(t, detail.Files, 2)
	assert.Equal(t, "lib/b.js", detail.Files[0].File)
	assert.Equal(t, "lib/a.js", detail.Files[1].File)

	var fromStore []FileOutput
	for _, f := range detail.Files {
		out := FileOutput{File: f.File}
		for _, d := range f.Declarations {
			out.Declarations = append(out.Declarations, d.Text)
		}
		fromStore = append(fromStore, out)
	}
	var fromResult []FileOutput
	for _, f := range res.Output() {
		fromResult = append(fromResult, FileOutput{File: f.File, Declarations: f.Declarations})
	}
	assert.Equal(t, fromResult, fromStore)
}

func TestRecord_StoresCalls(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)

	runID, _ := synthesizeAndRecord(t, e, "t",
		entry("f", "a.js", `{"0": "x"}`),
		exit("f", "a.js", `"y"`),
		entry("f", "a.js", `{"0": "z", "1": "w"}`),
		exit("f", "a.js", `"v"`),
	)

	fns, err := e.Store().FunctionsByRun(runID)
	require.NoError(t, err)
	require.Len(t, fns, 1)
	calls, err := e.Store().CallsByFunction(fns[0].ID)
	require.NoError(t, err)
	require.Len(t, calls, 2)
	assert.Equal(t, map[int]any{0: "z", 1: "w"}, calls[1].Args)
	assert.Equal(t, "v", calls[1].ReturnValue)
}

func TestRecord_FailedRunKeepsCallsButNoSignatures(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)

	res, synthErr := e.Synthesize(context.Background(), traceLines(
		entry("f", "a.js", `{"0": 1}`),
		exit("f", "a.js", `"y"`),
	))
	require.Error(t, synthErr)

	runID, err := e.Record("t", res, synthErr)
	require.NoError(t, err)

	run, err := e.Store().RunByID(runID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusFailed, run.Status)
	assert.Contains(t, run.Error, "number")

	fns, err := e.Store().FunctionsByRun(runID)
	require.NoError(t, err)
	require.Len(t, fns, 1)
	sig, err := e.Store().SignatureByFunction(fns[0].ID)
	require.NoError(t, err)
	assert.Nil(t, sig)
}

func TestRecord_UpdatesLatest(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	h, err := e.History()
	require.NoError(t, err)

	latest, err := h.Latest()
	require.NoError(t, err)
	assert.Empty(t, latest)

	first, _ := synthesizeAndRecord(t, e, "t", entry("f", "a.js", `{}`), exit("f", "a.js", `"x"`))
	second, _ := synthesizeAndRecord(t, e, "t", entry("f", "a.js", `{}`), exit("f", "a.js", `"x"`))
	assert.NotEqual(t, first, second)

	latest, err = h.Latest()
	require.NoError(t, err)
	assert.Equal(t, second, latest)
}

func TestRecord_WithoutStore(t *testing.T) {
	t.Parallel()
	e := newMemoryEngine(t)
	_, err := e.Record("t", &Result{}, nil)
	assert.True(t, errors.Is(err, ErrNoStore))

	_, err = e.History()
	assert.ErrorIs(t, err, ErrNoStore)
}

// =============================================================================
// History
// =============================================================================

func TestHistory_RunsNewestFirst(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)

	var ids []string
	for i := 0; i < 3; i++ {
		id, _ := synthesizeAndRecord(t, e, "t", entry("f", "a.js", `{}`), exit("f", "a.js", `"x"`))
		ids = append(ids, id)
	}

	h, err := e.History()
	require.NoError(t, err)
	runs, err := h.Runs(0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, ids[2], runs[0].ID)
	assert.Equal(t, ids[0], runs[2].ID)

	limited, err := h.Runs(2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestHistory_ShowUnknownRun(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	h, err := e.History()
	require.NoError(t, err)

	_, err = h.Show("nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestHistory_Diff(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, WithStrategy(StrategyExtended))

	oldRun, _ := synthesizeAndRecord(t, e, "v1",
		entry("same", "a.js", `{"0": "x"}`), exit("same", "a.js", `"y"`),
		entry("widened", "a.js", `{"0": "x"}`), exit("widened", "a.js", `"y"`),
		entry("gone", "b.js", `{}`), exit("gone", "b.js", `null`),
	)
	newRun, _ := synthesizeAndRecord(t, e, "v2",
		entry("same", "a.js", `{"0": "x"}`), exit("same", "a.js", `"y"`),
		entry("widened", "a.js", `{"0": 1}`), exit("widened", "a.js", `"y"`),
		entry("widened", "a.js", `{"0": "x"}`), exit("widened", "a.js", `"y"`),
		entry("fresh", "c.js", `{}`), exit("fresh", "c.js", `true`),
	)

	h, err := e.History()
	require.NoError(t, err)
	changes, err := h.Diff(oldRun, newRun)
	require.NoError(t, err)
	require.Len(t, changes, 3)

	assert.Equal(t, ChangeChanged, changes[0].Kind)
	assert.Equal(t, "widened", changes[0].Name)
	assert.NotEmpty(t, changes[0].OldHash)
	assert.NotEqual(t, changes[0].OldHash, changes[0].NewHash)

	assert.Equal(t, ChangeRemoved, changes[1].Kind)
	assert.Equal(t, "gone", changes[1].Name)
	assert.Empty(t, changes[1].NewHash)

	assert.Equal(t, ChangeAdded, changes[2].Kind)
	assert.Equal(t, "fresh", changes[2].Name)
	assert.Equal(t, "c.js", changes[2].File)

	same, err := h.Diff(oldRun, oldRun)
	require.NoError(t, err)
	assert.Empty(t, same)
}

func TestHistory_DiffUnknownRun(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	runID, _ := synthesizeAndRecord(t, e, "t", entry("f", "a.js", `{}`), exit("f", "a.js", `"x"`))

	h, err := e.History()
	require.NoError(t, err)
	_, err = h.Diff(runID, "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")
}

func TestHistory_DiffRefusesFailedRun(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	okRun, _ := synthesizeAndRecord(t, e, "t", entry("f", "a.js", `{"0": "x"}`), exit("f", "a.js", `"y"`))

	res, synthErr := e.Synthesize(context.Background(), traceLines(
		entry("f", "a.js", `{"0": 1}`),
		exit("f", "a.js", `"y"`),
	))
	require.Error(t, synthErr)
	failedRun, err := e.Record("t", res, synthErr)
	require.NoError(t, err)

	h, err := e.History()
	require.NoError(t, err)
	for _, pair := range [][2]string{{okRun, failedRun}, {failedRun, okRun}} {
		changes, err := h.Diff(pair[0], pair[1])
		require.ErrorIs(t, err, ErrRunFailed)
		assert.Contains(t, err.Error(), failedRun)
		assert.Nil(t, changes)
	}
}

func TestHistory_Delete(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	runID, _ := synthesizeAndRecord(t, e, "t", entry("f", "a.js", `{}`), exit("f", "a.js", `"x"`))

	h, err := e.History()
	require.NoError(t, err)
	require.NoError(t, h.Delete(runID))

	runs, err := h.Runs(0)
	require.NoError(t, err)
	assert.Empty(t, runs)
	assert.Error(t, h.Delete(runID))
}

func TestHistory_DeleteLatestMovesLatestBack(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	first, _ := synthesizeAndRecord(t, e, "v1", entry("f", "a.js", `{}`), exit("f", "a.js", `"x"`))
	second, _ := synthesizeAndRecord(t, e, "v2", entry("g", "b.js", `{}`), exit("g", "b.js", `"x"`))

	h, err := e.History()
	require.NoError(t, err)
	require.NoError(t, h.Delete(second))

	latest, err := h.Latest()
	require.NoError(t, err)
	assert.Equal(t, first, latest)
	detail, err := h.Show(latest)
	require.NoError(t, err)
	assert.Equal(t, "v1", detail.Run.Source)
}

func TestHistory_DeleteOnlyRunClearsLatest(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	runID, _ := synthesizeAndRecord(t, e, "t", entry("f", "a.js", `{}`), exit("f", "a.js", `"x"`))

	h, err := e.History()
	require.NoError(t, err)
	require.NoError(t, h.Delete(runID))

	latest, err := h.Latest()
	require.NoError(t, err)
	assert.Empty(t, latest)
}

func TestHistory_DeleteOlderRunKeepsLatest(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	first, _ := synthesizeAndRecord(t, e, "v1", entry("f", "a.js", `{}`), exit("f", "a.js", `"x"`))
	second, _ := synthesizeAndRecord(t, e, "v2", entry("f", "a.js", `{}`), exit("f", "a.js", `"x"`))

	h, err := e.History()
	require.NoError(t, err)
	require.NoError(t, h.Delete(first))

	latest, err := h.Latest()
	require.NoError(t, err)
	assert.Equal(t, second, latest)
}
