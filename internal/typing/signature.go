package typing

import "sort"

// Signature is the union-typed signature deduced for one function.
//
// A position missing from ArgTypes was never observed; it is not the same as
// a present but empty set. Calls and ArgCounts record how many calls were
// folded in and how many of them supplied each position.
type Signature struct {
	Name        string
	ArgTypes    map[int]*TypeSet
	ReturnTypes *TypeSet
	Calls       int
	ArgCounts   map[int]int
}

// NewSignature returns an empty signature for name.
func NewSignature(name string) *Signature {
	return &Signature{
		Name:        name,
		ArgTypes:    make(map[int]*TypeSet),
		ReturnTypes: NewTypeSet(),
		ArgCounts:   make(map[int]int),
	}
}

// AddArg records t at position pos.
func (s *Signature) AddArg(pos int, t Type) {
	s.Arg(pos).Add(t)
}

// Arg returns the set at position pos, creating it on first use.
func (s *Signature) Arg(pos int) *TypeSet {
	set, ok := s.ArgTypes[pos]
	if !ok {
		set = NewTypeSet()
		s.ArgTypes[pos] = set
	}
	return set
}

// Positions returns the observed argument positions in ascending order.
func (s *Signature) Positions() []int {
	out := make([]int, 0, len(s.ArgTypes))
	for pos := range s.ArgTypes {
		out = append(out, pos)
	}
	sort.Ints(out)
	return out
}

// Optional reports whether pos was supplied by fewer than all calls.
func (s *Signature) Optional(pos int) bool {
	return s.ArgCounts[pos] < s.Calls
}
