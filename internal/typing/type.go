package typing

import (
	"sort"
	"strings"
)

// Type is an elementary type tag. The set is closed within a build but new
// tags are added as classifiers learn new runtime shapes.
type Type int

const (
	String Type = iota
	Number
	Boolean
	Null
	Object
	Array
)

// typeNames holds the declaration spelling of each tag.
var typeNames = [...]string{
	String:  "string",
	Number:  "number",
	Boolean: "boolean",
	Null:    "null",
	Object:  "object",
	Array:   "unknown[]",
}

// String returns the lower-case declaration spelling of t.
func (t Type) String() string {
	if t < 0 || int(t) >= len(typeNames) {
		return "unknown"
	}
	return typeNames[t]
}

// Types returns every known tag in declaration-name order.
func Types() []Type {
	out := make([]Type, len(typeNames))
	for i := range typeNames {
		out[i] = Type(i)
	}
	sortTypes(out)
	return out
}

// ParseType maps a declaration spelling (case-insensitive) back to its tag.
// "array" is accepted for Array.
func ParseType(name string) (Type, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "array" {
		return Array, true
	}
	for i, n := range typeNames {
		if n == name {
			return Type(i), true
		}
	}
	return 0, false
}

// TypeSet is a union of tags. When Array is a member, the set also carries
// the union of the element types observed in those arrays. The zero value is
// not usable; use NewTypeSet.
type TypeSet struct {
	tags  map[Type]struct{}
	elems *TypeSet
}

// NewTypeSet returns a set holding ts.
func NewTypeSet(ts ...Type) *TypeSet {
	s := &TypeSet{tags: make(map[Type]struct{}, len(ts))}
	for _, t := range ts {
		s.tags[t] = struct{}{}
	}
	return s
}

// Add inserts t. Adding an existing tag is a no-op.
func (s *TypeSet) Add(t Type) {
	s.tags[t] = struct{}{}
}

// Has reports whether t is in the set.
func (s *TypeSet) Has(t Type) bool {
	_, ok := s.tags[t]
	return ok
}

// Len returns the number of tags.
func (s *TypeSet) Len() int {
	return len(s.tags)
}

// elementSet returns the element union, creating it on first use.
func (s *TypeSet) elementSet() *TypeSet {
	if s.elems == nil {
		s.elems = NewTypeSet()
	}
	return s.elems
}

// Names returns the sorted declaration spellings. Array is spelled from its
// element union: number[], (number|string)[], or unknown[] when only empty
// arrays were seen.
func (s *TypeSet) Names() []string {
	out := make([]string, 0, len(s.tags))
	for t := range s.tags {
		if t == Array && s.elems != nil && s.elems.Len() > 0 {
			out = append(out, arrayName(s.elems))
			continue
		}
		out = append(out, t.String())
	}
	sort.Strings(out)
	return out
}

func arrayName(elems *TypeSet) string {
	names := elems.Names()
	if len(names) == 1 {
		return names[0] + "[]"
	}
	return "(" + strings.Join(names, "|") + ")[]"
}

func sortTypes(ts []Type) {
	sort.Slice(ts, func(i, j int) bool {
		return ts[i].String() < ts[j].String()
	})
}
