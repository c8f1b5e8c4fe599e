package trace

import "fmt"

// Entry marks the start of a function invocation. Args maps a non-negative
// argument position to the value observed there.
type Entry struct {
	Name string
	File string
	Args map[int]any
}

// ID returns the function identity of the entry.
func (e Entry) ID() FunctionID {
	return FunctionID{Name: e.Name, File: e.File}
}

// Exit marks the end of a function invocation.
type Exit struct {
	Name        string
	File        string
	ReturnValue any
}

// ID returns the function identity of the exit.
func (e Exit) ID() FunctionID {
	return FunctionID{Name: e.Name, File: e.File}
}

// Event is one trace record. Exactly one of Entry and Exit is set.
type Event struct {
	Entry *Entry
	Exit  *Exit
}

// EntryEvent wraps an Entry in an Event.
func EntryEvent(name, file string, args map[int]any) Event {
	return Event{Entry: &Entry{Name: name, File: file, Args: args}}
}

// ExitEvent wraps an Exit in an Event.
func ExitEvent(name, file string, returnValue any) Event {
	return Event{Exit: &Exit{Name: name, File: file, ReturnValue: returnValue}}
}

// FunctionID identifies a traced function. Two calls belong to the same
// function iff both fields are equal.
type FunctionID struct {
	Name string
	File string
}

func (id FunctionID) String() string {
	return fmt.Sprintf("%s (%s)", id.Name, id.File)
}

// FunctionCall is a completed invocation: the arguments of an Entry paired
// with the return value of its matching Exit. Never mutated after creation.
type FunctionCall struct {
	Args        map[int]any
	ReturnValue any
}

// Calls groups completed calls by function identity. Functions are kept in
// the order their first call completed.
type Calls struct {
	order []FunctionID
	byID  map[FunctionID][]FunctionCall
	total int
}

// NewCalls returns an empty grouping.
func NewCalls() *Calls {
	return &Calls{byID: make(map[FunctionID][]FunctionCall)}
}

// Add appends call to the list for id.
func (c *Calls) Add(id FunctionID, call FunctionCall) {
	if _, ok := c.byID[id]; !ok {
		c.order = append(c.order, id)
	}
	c.byID[id] = append(c.byID[id], call)
	c.total++
}

// Functions returns the identities in first-seen order.
func (c *Calls) Functions() []FunctionID {
	out := make([]FunctionID, len(c.order))
	copy(out, c.order)
	return out
}

// Of returns the calls recorded for id, in completion order.
func (c *Calls) Of(id FunctionID) []FunctionCall {
	return c.byID[id]
}

// Len returns the number of distinct functions.
func (c *Calls) Len() int {
	return len(c.order)
}

// Total returns the number of calls across all functions.
func (c *Calls) Total() int {
	return c.total
}
