package trace

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
)

// maxLineSize bounds a single trace record. Argument values are serialized
// inline, so records can be large.
const maxLineSize = 64 * 1024 * 1024

type wireEntry struct {
	Name *string        `json:"name"`
	File *string        `json:"file"`
	Args map[string]any `json:"args"`
}

type wireExit struct {
	Name        *string `json:"name"`
	File        *string `json:"file"`
	ReturnValue any     `json:"returnValue"`
}

// ParseLine decodes one trace record. line is the 1-based record number used
// in errors.
func ParseLine(line int, data []byte) (Event, error) {
	malformed := func(reason string, err error) (Event, error) {
		return Event{}, &MalformedTraceLineError{Line: line, Text: string(data), Reason: reason, Err: err}
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return malformed("invalid JSON", err)
	}
	if len(fields) != 1 {
		return malformed(fmt.Sprintf("expected exactly one of \"entry\" or \"exit\", got %d keys", len(fields)), nil)
	}

	if raw, ok := fields["entry"]; ok {
		var w wireEntry
		if err := json.Unmarshal(raw, &w); err != nil {
			return malformed("invalid entry", err)
		}
		if w.Name == nil || w.File == nil {
			return malformed("entry requires name and file", nil)
		}
		args := make(map[int]any, len(w.Args))
		for key, v := range w.Args {
			pos, err := strconv.Atoi(key)
			if err != nil || pos < 0 || strconv.Itoa(pos) != key {
				return malformed(fmt.Sprintf("argument key %q is not a non-negative integer", key), nil)
			}
			args[pos] = v
		}
		return EntryEvent(*w.Name, *w.File, args), nil
	}

	if raw, ok := fields["exit"]; ok {
		var w wireExit
		if err := json.Unmarshal(raw, &w); err != nil {
			return malformed("invalid exit", err)
		}
		if w.Name == nil || w.File == nil {
			return malformed("exit requires name and file", nil)
		}
		return ExitEvent(*w.Name, *w.File, w.ReturnValue), nil
	}

	for key := range fields {
		return malformed(fmt.Sprintf("unknown record kind %q", key), nil)
	}
	return malformed("empty record", nil)
}

// Decoder reads newline-delimited trace records from a stream.
type Decoder struct {
	sc    *bufio.Scanner
	line  int
	limit int
}

// NewDecoder returns a Decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	return newDecoderSize(r, maxLineSize)
}

func newDecoderSize(r io.Reader, limit int) *Decoder {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, min(64*1024, limit)), limit)
	return &Decoder{sc: sc, limit: limit}
}

// Next returns the next event. Blank lines are skipped. Returns io.EOF once
// the stream is exhausted.
func (d *Decoder) Next() (Event, error) {
	for d.sc.Scan() {
		d.line++
		data := bytes.TrimSpace(d.sc.Bytes())
		if len(data) == 0 {
			continue
		}
		return ParseLine(d.line, data)
	}
	if err := d.sc.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return Event{}, &MalformedTraceLineError{
				Line:   d.line + 1,
				Reason: fmt.Sprintf("record exceeds %d bytes", d.limit),
				Err:    err,
			}
		}
		return Event{}, fmt.Errorf("trace: reading line %d: %w", d.line+1, err)
	}
	return Event{}, io.EOF
}

// Line returns the number of lines consumed so far.
func (d *Decoder) Line() int {
	return d.line
}

// Read decodes every event from r and feeds it to rec, stopping at the first
// error. ctx is checked between records.
func Read(ctx context.Context, r io.Reader, rec *Reconstructor) error {
	dec := NewDecoder(r)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		ev, err := dec.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err := rec.Push(ev); err != nil {
			return err
		}
	}
}
