package typing

import (
	"encoding/json"
	"fmt"
)

// Classifier maps one decoded runtime value to a Type.
type Classifier interface {
	Classify(value any) (Type, error)
}

// UnsupportedValueError reports a value shape a classifier does not
// recognize. It means the classifier needs extending, not that the input is
// bad.
type UnsupportedValueError struct {
	Classifier string
	Kind       string
	Value      any
	Reason     string
}

func (e *UnsupportedValueError) Error() string {
	msg := fmt.Sprintf("typing: %s classifier cannot classify %s value %s", e.Classifier, e.Kind, preview(e.Value))
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// KindOf names the dynamic shape of a decoded value: string, number,
// boolean, null, array or object. Anything else is reported by its Go type.
func KindOf(value any) string {
	switch value.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case float64, float32, int, int32, int64, uint, uint32, uint64, json.Number:
		return "number"
	case bool:
		return "boolean"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", value)
	}
}

// SimpleClassifier recognizes strings only and rejects everything else.
type SimpleClassifier struct{}

func (SimpleClassifier) Classify(value any) (Type, error) {
	if _, ok := value.(string); ok {
		return String, nil
	}
	return 0, &UnsupportedValueError{Classifier: "simple", Kind: KindOf(value), Value: value}
}

var kindTypes = map[string]Type{
	"string":  String,
	"number":  Number,
	"boolean": Boolean,
	"null":    Null,
	"array":   Array,
	"object":  Object,
}

// ExtendedClassifier recognizes every shape a JSON decoder produces.
type ExtendedClassifier struct{}

func (ExtendedClassifier) Classify(value any) (Type, error) {
	kind := KindOf(value)
	if t, ok := kindTypes[kind]; ok {
		return t, nil
	}
	return 0, &UnsupportedValueError{Classifier: "extended", Kind: kind, Value: value}
}

// NullClassifier ignores its input and reports Null. It exists to build
// deliberately wrong signatures for testing downstream consumers.
type NullClassifier struct{}

func (NullClassifier) Classify(any) (Type, error) {
	return Null, nil
}

func preview(value any) string {
	b, err := json.Marshal(value)
	if err != nil {
		return fmt.Sprintf("%v", value)
	}
	s := string(b)
	if len(s) > 80 {
		s = s[:80] + "..."
	}
	return s
}
