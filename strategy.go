package dtsynth

import (
	"context"
	"fmt"

	"github.com/jward/dtsynth/internal/typing"
)

// Strategy names accepted by WithStrategy.
const (
	StrategySimple     = "simple"
	StrategyExtended   = "extended"
	StrategyNull       = "null"
	StrategyNullValues = "null-values"
	StrategyScript     = "script"
)

// StrategyInfo describes one deduction strategy.
type StrategyInfo struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
}

var strategies = []StrategyInfo{
	{StrategySimple, "classify strings only; any other value fails the run"},
	{StrategyExtended, "classify string, number, boolean, null, array and object"},
	{StrategyNull, "report (arg0: null): null for every function (fixture)"},
	{StrategyNullValues, "type every observed argument and return value as null (fixture)"},
	{StrategyScript, "classify with a Risor script (requires a classifier script)"},
}

// Strategies returns the available strategies in display order.
func Strategies() []StrategyInfo {
	out := make([]StrategyInfo, len(strategies))
	copy(out, strategies)
	return out
}

func knownStrategy(name string) bool {
	for _, s := range strategies {
		if s.Name == name {
			return true
		}
	}
	return false
}

// deducer builds the Deducer for one synthesis. Script classifiers are bound
// to ctx so cancelling the synthesis stops running scripts.
func (e *Engine) deducer(ctx context.Context) (typing.Deducer, error) {
	switch e.strategy {
	case StrategySimple:
		return typing.NewSimpleDeducer(typing.SimpleClassifier{}), nil
	case StrategyExtended:
		return typing.NewSimpleDeducer(typing.ExtendedClassifier{}), nil
	case StrategyNull:
		return typing.NullDeducer{}, nil
	case StrategyNullValues:
		return typing.NewSimpleDeducer(typing.NullClassifier{}), nil
	case StrategyScript:
		if e.classifier == nil {
			return nil, fmt.Errorf("strategy %q has no classifier script", e.strategy)
		}
		return typing.NewSimpleDeducer(e.classifier.WithContext(ctx)), nil
	default:
		return nil, fmt.Errorf("unknown strategy %q", e.strategy)
	}
}
