package runtime

import (
	"context"
	"fmt"

	"github.com/risor-io/risor/object"

	"github.com/jward/dtsynth/internal/typing"
)

// ScriptClassifier classifies values by evaluating a Risor script. The value
// is bound to the global "value"; the script's final expression must be the
// name of a known type (e.g. "string", "null", "array").
type ScriptClassifier struct {
	rt     *Runtime
	label  string
	source string
	ctx    context.Context
}

// Compile-time check: *ScriptClassifier satisfies typing.Classifier.
var _ typing.Classifier = (*ScriptClassifier)(nil)

// NewScriptClassifier loads scriptPath through rt.
func NewScriptClassifier(rt *Runtime, scriptPath string) (*ScriptClassifier, error) {
	src, err := rt.LoadScript(scriptPath)
	if err != nil {
		return nil, err
	}
	return &ScriptClassifier{rt: rt, label: scriptPath, source: src, ctx: context.Background()}, nil
}

// NewSourceClassifier wraps inline Risor source.
func NewSourceClassifier(rt *Runtime, source string) *ScriptClassifier {
	return &ScriptClassifier{rt: rt, label: "<inline>", source: source, ctx: context.Background()}
}

// WithContext returns a copy that evaluates under ctx, so a cancelled
// synthesis stops running scripts.
func (c *ScriptClassifier) WithContext(ctx context.Context) *ScriptClassifier {
	cp := *c
	cp.ctx = ctx
	return &cp
}

// Classify evaluates the script against value. Script failures are reported
// as *typing.UnsupportedValueError; a cancelled context is returned as is.
func (c *ScriptClassifier) Classify(value any) (typing.Type, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	obj, err := toObject(value)
	if err != nil {
		return 0, &typing.UnsupportedValueError{
			Classifier: "script", Kind: typing.KindOf(value), Value: value, Reason: err.Error(),
		}
	}

	result, err := c.rt.eval(c.ctx, c.source, c.label, map[string]any{"value": obj})
	if err != nil {
		if ctxErr := c.ctx.Err(); ctxErr != nil {
			return 0, fmt.Errorf("%w: %v", ctxErr, err)
		}
		return 0, &typing.UnsupportedValueError{
			Classifier: "script", Kind: typing.KindOf(value), Value: value, Reason: err.Error(),
		}
	}

	s, ok := result.(*object.String)
	if !ok {
		return 0, &typing.UnsupportedValueError{
			Classifier: "script", Kind: typing.KindOf(value), Value: value,
			Reason: fmt.Sprintf("script %s returned %s, want a type name", c.label, describe(result)),
		}
	}
	t, ok := typing.ParseType(s.Value())
	if !ok {
		return 0, &typing.UnsupportedValueError{
			Classifier: "script", Kind: typing.KindOf(value), Value: value,
			Reason: fmt.Sprintf("script %s returned unknown type %q", c.label, s.Value()),
		}
	}
	return t, nil
}

func describe(obj object.Object) string {
	if obj == nil {
		return "nothing"
	}
	return string(obj.Type())
}
