package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/risor-io/risor/object"
	"github.com/sirupsen/logrus"

	"github.com/jward/dtsynth/internal/typing"
)

// makeKindOfFn creates the "kind_of" host function.
//
// kind_of(value) → "string" | "number" | "boolean" | "null" | "array" | "object"
//
// Gives scripts the same shape names the built-in classifiers use, which
// Risor's own type() spells differently (int, float, list, map).
func makeKindOfFn() *object.Builtin {
	return object.NewBuiltin("kind_of", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("kind_of", 1, len(args))
		}
		return object.NewString(risorKind(args[0]))
	})
}

func risorKind(obj object.Object) string {
	switch obj.(type) {
	case *object.NilType:
		return "null"
	case *object.String:
		return "string"
	case *object.Int, *object.Float:
		return "number"
	case *object.Bool:
		return "boolean"
	case *object.List:
		return "array"
	case *object.Map:
		return "object"
	default:
		return string(obj.Type())
	}
}

// makeTypeNamesFn creates "type_names": the list of names a classifier
// script may return.
//
// type_names() → []string
func makeTypeNamesFn() *object.Builtin {
	return object.NewBuiltin("type_names", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 0 {
			return object.NewArgsError("type_names", 0, len(args))
		}
		var names []object.Object
		for _, t := range typing.Types() {
			names = append(names, object.NewString(t.String()))
		}
		return object.NewList(names)
	})
}

// toObject converts a decoded trace value to a Risor object.
func toObject(v any) (object.Object, error) {
	switch val := v.(type) {
	case nil:
		return object.Nil, nil
	case string:
		return object.NewString(val), nil
	case bool:
		return object.NewBool(val), nil
	case float64:
		return object.NewFloat(val), nil
	case float32:
		return object.NewFloat(float64(val)), nil
	case int:
		return object.NewInt(int64(val)), nil
	case int64:
		return object.NewInt(val), nil
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return object.NewInt(i), nil
		}
		f, err := val.Float64()
		if err != nil {
			return nil, fmt.Errorf("number %q: %w", val, err)
		}
		return object.NewFloat(f), nil
	case []any:
		items := make([]object.Object, len(val))
		for i, item := range val {
			o, err := toObject(item)
			if err != nil {
				return nil, err
			}
			items[i] = o
		}
		return object.NewList(items), nil
	case map[string]any:
		// Sorted so conversion errors are reported deterministically.
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		items := make(map[string]object.Object, len(val))
		for _, k := range keys {
			o, err := toObject(val[k])
			if err != nil {
				return nil, err
			}
			items[k] = o
		}
		return object.NewMap(items), nil
	default:
		return nil, fmt.Errorf("unsupported Go type %T", v)
	}
}

// logObject provides log.Info/Warn/Error/Debug methods for Risor scripts.
type logObject struct {
	log logrus.FieldLogger
}

func (l *logObject) Debug(msg string) { l.log.WithField("source", "script").Debug(msg) }
func (l *logObject) Info(msg string)  { l.log.WithField("source", "script").Info(msg) }
func (l *logObject) Warn(msg string)  { l.log.WithField("source", "script").Warn(msg) }
func (l *logObject) Error(msg string) { l.log.WithField("source", "script").Error(msg) }
