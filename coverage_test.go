package dtsynth

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const coverageIndexJS = `'use strict';

function capitalize(s) {
  return s.charAt(0).toUpperCase() + s.slice(1);
}

const reverse = (s) => s.split('').reverse().join('');

exports.shout = function (s) {
  return capitalize(s) + '!';
};

module.exports.whisper = function (s) {
  return s.toLowerCase();
};
`

// newCoverageProject writes a small library outside any git checkout, so
// discovery falls back to walking the tree.
func newCoverageProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"lib/index.js":              coverageIndexJS,
		"lib/util.js":               "function pad(s, n) {\n  return s.padStart(n);\n}\n\nmodule.exports = { pad };\n",
		"node_modules/dep/index.js": "function vendored() {}\n",
		"test/index.js":             "var lib = require('../lib');\n",
	}
	for rel, content := range files {
		path := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func TestCoverage_ReportsMissingFunctions(t *testing.T) {
	t.Parallel()
	root := newCoverageProject(t)
	e := newMemoryEngine(t, WithSourceRoot(root))

	res, err := e.Synthesize(context.Background(), traceLines(
		entry("shout", "lib/index.js", `{"0": "hi"}`),
		entry("capitalize", filepath.Join(root, "lib", "index.js"), `{"0": "hi"}`),
		exit("capitalize", filepath.Join(root, "lib", "index.js"), `"Hi"`),
		exit("shout", "lib/index.js", `"Hi!"`),
	))
	require.NoError(t, err)

	report, err := e.Coverage(context.Background(), res)
	require.NoError(t, err)

	want := []FileCoverage{
		{
			File:     "lib/index.js",
			Declared: []string{"capitalize", "reverse", "shout", "whisper"},
			Observed: []string{"capitalize", "shout"},
			Missing:  []string{"reverse", "whisper"},
		},
		{
			File:     "lib/util.js",
			Declared: []string{"pad"},
			Missing:  []string{"pad"},
		},
	}
	if diff := cmp.Diff(want, report.Files); diff != "" {
		t.Errorf("coverage mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 5, report.Declared)
	assert.Equal(t, 2, report.Observed)
	assert.InDelta(t, 40.0, report.Percent(), 0.001)
}

func TestCoverage_RequiresSourceRoot(t *testing.T) {
	t.Parallel()
	e := newMemoryEngine(t)
	_, err := e.Coverage(context.Background(), &Result{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no source root")
}

func TestCoverage_EmptyProject(t *testing.T) {
	t.Parallel()
	e := newMemoryEngine(t, WithSourceRoot(t.TempDir()))
	report, err := e.Coverage(context.Background(), &Result{})
	require.NoError(t, err)
	assert.Empty(t, report.Files)
	assert.Equal(t, 100.0, report.Percent())
}

func TestRelativeSource(t *testing.T) {
	t.Parallel()
	root := filepath.FromSlash("/work/lib")
	tests := []struct {
		file string
		want string
	}{
		{"lib/index.js", "lib/index.js"},
		{"./lib//index.js", "lib/index.js"},
		{filepath.FromSlash("/work/lib/src/a.js"), "src/a.js"},
		{filepath.FromSlash("/elsewhere/a.js"), "../../elsewhere/a.js"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, relativeSource(root, tt.file), tt.file)
	}
}
