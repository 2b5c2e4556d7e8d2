// Package extutil provides shared helpers for the ext sub-packages.
package extutil

import (
	"fmt"

	"github.com/sandrolain/qrtext/pkg/evaluator"
)

// ToFloat converts a numeric argument to float64.
func ToFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case int64:
		return float64(n), nil
	case nil:
		return 0, fmt.Errorf("number expected, got nil")
	default:
		return 0, fmt.Errorf("number expected, got %s", evaluator.TypeName(v))
	}
}

// ToInt converts a numeric argument with an integral value to int64.
func ToInt(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case float64:
		if n != float64(int64(n)) {
			return 0, fmt.Errorf("number has no integer representation")
		}
		return int64(n), nil
	default:
		return 0, fmt.Errorf("integer expected, got %s", evaluator.TypeName(v))
	}
}

// ToString converts a string argument.
func ToString(v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("string expected, got %s", evaluator.TypeName(v))
	}
	return s, nil
}

// AsTable converts a table argument.
func AsTable(v any) (*evaluator.Table, error) {
	t, ok := v.(*evaluator.Table)
	if !ok {
		return nil, fmt.Errorf("table expected, got %s", evaluator.TypeName(v))
	}
	return t, nil
}

// Floats converts the positional elements of a table to float64.
func Floats(v any) ([]float64, error) {
	t, err := AsTable(v)
	if err != nil {
		return nil, err
	}
	elems := t.Array()
	out := make([]float64, len(elems))
	for i, e := range elems {
		f, err := ToFloat(e)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i+1, err)
		}
		out[i] = f
	}
	return out, nil
}

// Optional returns args[i], or nil when the argument was omitted.
func Optional(args []any, i int) any {
	if i < len(args) {
		return args[i]
	}
	return nil
}
