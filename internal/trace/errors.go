package trace

import (
	"errors"
	"fmt"
)

// ErrEmptyEvent is returned by Reconstructor.Push for an Event with neither
// variant set.
var ErrEmptyEvent = errors.New("trace: event has neither entry nor exit")

// MalformedTraceLineError reports a trace record that does not decode into
// the entry/exit schema.
type MalformedTraceLineError struct {
	Line   int    // 1-based
	Text   string // raw record
	Reason string
	Err    error // underlying decode error, if any
}

func (e *MalformedTraceLineError) Error() string {
	msg := fmt.Sprintf("trace: malformed line %d: %s", e.Line, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Text == "" {
		return msg
	}
	return msg + fmt.Sprintf(" (record %q)", truncate(e.Text, 120))
}

func (e *MalformedTraceLineError) Unwrap() error { return e.Err }

// TraceUnderflowError reports an exit with no open entry on the stack.
type TraceUnderflowError struct {
	Exit  Exit
	Event int // 1-based position in the stream
}

func (e *TraceUnderflowError) Error() string {
	return fmt.Sprintf("trace: exit of %s at event %d has no open entry", e.Exit.ID(), e.Event)
}

// UnbalancedTraceError reports an exit whose identity differs from the most
// recently opened entry. Both records are kept for diagnostics.
type UnbalancedTraceError struct {
	Entry Entry
	Exit  Exit
	Event int
}

func (e *UnbalancedTraceError) Error() string {
	return fmt.Sprintf("trace: entered %s but exited %s at event %d", e.Entry.ID(), e.Exit.ID(), e.Event)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
