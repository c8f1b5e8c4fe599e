package typing

import (
	"fmt"
	"sort"

	"github.com/jward/dtsynth/internal/trace"
)

// Deducer folds the completed calls of one function into a Signature.
type Deducer interface {
	Deduce(name string, calls []trace.FunctionCall) (*Signature, error)
}

// DeductionError locates a classification failure inside a function's calls.
// It unwraps to the classifier's error.
type DeductionError struct {
	Function string
	Call     int // 0-based index into the call list
	Position int // argument position; ignored when Return is set
	Return   bool
	Err      error
}

func (e *DeductionError) Error() string {
	where := fmt.Sprintf("argument %d", e.Position)
	if e.Return {
		where = "return value"
	}
	return fmt.Sprintf("deduce %s: call %d: %s: %v", e.Function, e.Call, where, e.Err)
}

func (e *DeductionError) Unwrap() error { return e.Err }

// SimpleDeducer classifies every argument and return value and unions the
// tags per position. Elements of array values are classified the same way
// and unioned into the array's element type. The first unclassifiable value
// aborts the function.
type SimpleDeducer struct {
	Classifier Classifier
}

// NewSimpleDeducer returns a SimpleDeducer using c.
func NewSimpleDeducer(c Classifier) *SimpleDeducer {
	return &SimpleDeducer{Classifier: c}
}

func (d *SimpleDeducer) Deduce(name string, calls []trace.FunctionCall) (*Signature, error) {
	sig := NewSignature(name)
	for i, call := range calls {
		// Sorted so the reported failure does not depend on map order.
		positions := make([]int, 0, len(call.Args))
		for pos := range call.Args {
			positions = append(positions, pos)
		}
		sort.Ints(positions)

		for _, pos := range positions {
			if err := d.fold(sig.Arg(pos), call.Args[pos]); err != nil {
				return nil, &DeductionError{Function: name, Call: i, Position: pos, Err: err}
			}
			sig.ArgCounts[pos]++
		}

		if err := d.fold(sig.ReturnTypes, call.ReturnValue); err != nil {
			return nil, &DeductionError{Function: name, Call: i, Return: true, Err: err}
		}
		sig.Calls++
	}
	return sig, nil
}

func (d *SimpleDeducer) fold(set *TypeSet, value any) error {
	t, err := d.Classifier.Classify(value)
	if err != nil {
		return err
	}
	set.Add(t)
	items, ok := value.([]any)
	if !ok || t != Array {
		return nil
	}
	for _, item := range items {
		if err := d.fold(set.elementSet(), item); err != nil {
			return err
		}
	}
	return nil
}

// NullDeducer produces `(arg0: null): null` for every function regardless of
// its calls. Declarations built from it should be rejected by a strict
// type checker.
type NullDeducer struct{}

func (NullDeducer) Deduce(name string, calls []trace.FunctionCall) (*Signature, error) {
	sig := NewSignature(name)
	sig.AddArg(0, Null)
	sig.ReturnTypes.Add(Null)
	sig.Calls = len(calls)
	sig.ArgCounts[0] = len(calls)
	return sig, nil
}
