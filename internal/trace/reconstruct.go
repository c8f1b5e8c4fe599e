package trace

// DefaultIgnore lists the synthetic frames the tracer injects for anonymous
// functions.
var DefaultIgnore = []string{"[Anonymous]"}

// Reconstructor matches entries with exits using a call stack. It is fed one
// event at a time, so memory is bounded by call depth rather than trace length.
// A Reconstructor is not safe for concurrent use.
type Reconstructor struct {
	ignore map[string]bool
	stack  []Entry
	calls  *Calls
	events int
}

// NewReconstructor returns a Reconstructor that discards calls to functions
// whose name is in ignore.
func NewReconstructor(ignore ...string) *Reconstructor {
	r := &Reconstructor{
		ignore: make(map[string]bool, len(ignore)),
		calls:  NewCalls(),
	}
	for _, name := range ignore {
		r.ignore[name] = true
	}
	return r
}

// Push processes one event. Errors are fatal: the Reconstructor must not be
// used after Push fails.
func (r *Reconstructor) Push(ev Event) error {
	r.events++
	switch {
	case ev.Entry != nil:
		r.stack = append(r.stack, *ev.Entry)
		return nil
	case ev.Exit != nil:
		return r.exit(*ev.Exit)
	default:
		return ErrEmptyEvent
	}
}

func (r *Reconstructor) exit(exit Exit) error {
	if len(r.stack) == 0 {
		return &TraceUnderflowError{Exit: exit, Event: r.events}
	}
	entry := r.stack[len(r.stack)-1]
	r.stack = r.stack[:len(r.stack)-1]

	if entry.Name != exit.Name || entry.File != exit.File {
		return &UnbalancedTraceError{Entry: entry, Exit: exit, Event: r.events}
	}
	if r.ignore[entry.Name] {
		return nil
	}
	r.calls.Add(entry.ID(), FunctionCall{Args: entry.Args, ReturnValue: exit.ReturnValue})
	return nil
}

// Calls returns the completed calls grouped by function.
func (r *Reconstructor) Calls() *Calls {
	return r.calls
}

// Pending returns the identities of entries still awaiting an exit, outermost
// first.
func (r *Reconstructor) Pending() []FunctionID {
	out := make([]FunctionID, len(r.stack))
	for i, e := range r.stack {
		out[i] = e.ID()
	}
	return out
}

// Events returns the number of events processed.
func (r *Reconstructor) Events() int {
	return r.events
}

// Reconstruct runs a fresh Reconstructor over events.
func Reconstruct(events []Event, ignore ...string) (*Calls, error) {
	r := NewReconstructor(ignore...)
	for _, ev := range events {
		if err := r.Push(ev); err != nil {
			return nil, err
		}
	}
	return r.Calls(), nil
}
