package trace

import (
	"bufio"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLine_Entry(t *testing.T) {
	t.Parallel()
	ev, err := ParseLine(1, []byte(`{"entry": {"name": "f", "file": "foo.js", "args": {"0": "a", "2": 5, "1": null}}}`))
	require.NoError(t, err)
	require.NotNil(t, ev.Entry)
	assert.Nil(t, ev.Exit)
	assert.Equal(t, "f", ev.Entry.Name)
	assert.Equal(t, "foo.js", ev.Entry.File)
	assert.Equal(t, map[int]any{0: "a", 1: nil, 2: float64(5)}, ev.Entry.Args)
}

func TestParseLine_EntryWithoutArgs(t *testing.T) {
	t.Parallel()
	ev, err := ParseLine(1, []byte(`{"entry": {"name": "f", "file": "foo.js"}}`))
	require.NoError(t, err)
	require.NotNil(t, ev.Entry)
	assert.Empty(t, ev.Entry.Args)
}

func TestParseLine_Exit(t *testing.T) {
	t.Parallel()
	ev, err := ParseLine(1, []byte(`{"exit": {"name": "f", "file": "foo.js", "returnValue": {"k": [1, "two"]}}}`))
	require.NoError(t, err)
	require.NotNil(t, ev.Exit)
	assert.Nil(t, ev.Entry)
	assert.Equal(t, map[string]any{"k": []any{float64(1), "two"}}, ev.Exit.ReturnValue)
}

func TestParseLine_ExitWithoutReturnValue(t *testing.T) {
	t.Parallel()
	ev, err := ParseLine(1, []byte(`{"exit": {"name": "f", "file": "foo.js"}}`))
	require.NoError(t, err)
	assert.Nil(t, ev.Exit.ReturnValue)
}

func TestParseLine_Malformed(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		line   string
		reason string
	}{
		{"invalid json", `{"entry": `, "invalid JSON"},
		{"not an object", `[1, 2]`, "invalid JSON"},
		{"both variants", `{"entry": {"name": "f", "file": "a"}, "exit": {"name": "f", "file": "a"}}`, "exactly one"},
		{"neither variant", `{}`, "exactly one"},
		{"unknown kind", `{"call": {"name": "f"}}`, "unknown record kind"},
		{"entry missing name", `{"entry": {"file": "a.js"}}`, "requires name and file"},
		{"exit missing file", `{"exit": {"name": "f"}}`, "requires name and file"},
		{"entry name not string", `{"entry": {"name": 1, "file": "a.js"}}`, "invalid entry"},
		{"negative arg key", `{"entry": {"name": "f", "file": "a.js", "args": {"-1": "x"}}}`, "not a non-negative integer"},
		{"word arg key", `{"entry": {"name": "f", "file": "a.js", "args": {"first": "x"}}}`, "not a non-negative integer"},
		{"padded arg key", `{"entry": {"name": "f", "file": "a.js", "args": {"01": "x"}}}`, "not a non-negative integer"},
		{"null entry", `{"entry": null}`, "requires name and file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := ParseLine(7, []byte(tt.line))
			var malformed *MalformedTraceLineError
			require.ErrorAs(t, err, &malformed)
			assert.Equal(t, 7, malformed.Line)
			assert.Equal(t, tt.line, malformed.Text)
			assert.Contains(t, malformed.Reason, tt.reason)
		})
	}
}

func TestDecoder_SkipsBlankLinesAndCountsLines(t *testing.T) {
	t.Parallel()
	input := strings.Join([]string{
		`{"entry": {"name": "f", "file": "a.js", "args": {"0": "x"}}}`,
		``,
		`   `,
		`{"exit": {"name": "f", "file": "a.js", "returnValue": "y"}}`,
		`{"bogus": 1}`,
	}, "\n")
	dec := NewDecoder(strings.NewReader(input))

	ev, err := dec.Next()
	require.NoError(t, err)
	require.NotNil(t, ev.Entry)

	ev, err = dec.Next()
	require.NoError(t, err)
	require.NotNil(t, ev.Exit)
	assert.Equal(t, 4, dec.Line())

	_, err = dec.Next()
	var malformed *MalformedTraceLineError
	require.ErrorAs(t, err, &malformed)
	assert.Equal(t, 5, malformed.Line)
}

func TestDecoder_OverlongLineIsMalformed(t *testing.T) {
	t.Parallel()
	long := `{"entry": {"name": "f", "file": "a.js", "args": {"0": "` + strings.Repeat("x", 200) + `"}}}`
	input := `{"entry": {"name": "g", "file": "a.js"}}` + "\n\n" + long + "\n"
	dec := newDecoderSize(strings.NewReader(input), 128)

	_, err := dec.Next()
	require.NoError(t, err)
	_, err = dec.Next()
	var malformed *MalformedTraceLineError
	require.ErrorAs(t, err, &malformed)
	assert.Equal(t, 3, malformed.Line)
	assert.Contains(t, malformed.Reason, "128 bytes")
	assert.ErrorIs(t, err, bufio.ErrTooLong)
}

func TestDecoder_EOF(t *testing.T) {
	t.Parallel()
	dec := NewDecoder(strings.NewReader(""))
	_, err := dec.Next()
	assert.Equal(t, io.EOF, err)
}

func TestRead_FeedsReconstructor(t *testing.T) {
	t.Parallel()
	input := `{"entry": {"name": "f", "file": "foo.js", "args": {"0": "a"}}}
{"exit": {"name": "f", "file": "foo.js", "returnValue": "b"}}
`
	rec := NewReconstructor()
	require.NoError(t, Read(context.Background(), strings.NewReader(input), rec))
	assert.Equal(t, 1, rec.Calls().Total())
	assert.Equal(t, 2, rec.Events())
}

func TestRead_StopsAtMalformedLine(t *testing.T) {
	t.Parallel()
	input := `{"entry": {"name": "f", "file": "foo.js"}}
not json
{"exit": {"name": "f", "file": "foo.js"}}
`
	rec := NewReconstructor()
	err := Read(context.Background(), strings.NewReader(input), rec)
	var malformed *MalformedTraceLineError
	require.ErrorAs(t, err, &malformed)
	assert.Equal(t, 2, malformed.Line)
	assert.Zero(t, rec.Calls().Total())
}

func TestRead_CancelledContext(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Read(ctx, strings.NewReader(`{"entry": {"name": "f", "file": "a.js"}}`), NewReconstructor())
	assert.ErrorIs(t, err, context.Canceled)
}
