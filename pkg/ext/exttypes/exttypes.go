// Package exttypes provides type inspection and conversion intrinsics for
// qrtext code.
package exttypes

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/sandrolain/qrtext/pkg/evaluator"
	"github.com/sandrolain/qrtext/pkg/ext/extutil"
	"github.com/sandrolain/qrtext/pkg/functions"
)

// All returns all type intrinsic definitions.
func All() []functions.IntrinsicDef {
	return []functions.IntrinsicDef{
		Type(),
		MathType(),
		ToString(),
		ToNumber(),
		IsString(),
		IsNumber(),
		IsBoolean(),
		IsTable(),
		IsNil(),
		IsFunction(),
		IsEmpty(),
		Default(),
	}
}

// Type returns the definition for type(v): one of "nil", "boolean",
// "number", "string", "table" or "function".
func Type() functions.IntrinsicDef {
	return functions.IntrinsicDef{
		Name:      "type",
		Signature: "<x?:s>",
		Fn: func(_ context.Context, args ...any) (any, error) {
			switch name := evaluator.TypeName(extutil.Optional(args, 0)); name {
			case "integer", "float":
				return "number", nil
			default:
				return name, nil
			}
		},
	}
}

// MathType returns the definition for mathType(v): "integer", "float", or
// nil when v is not a number.
func MathType() functions.IntrinsicDef {
	return functions.IntrinsicDef{
		Name:      "mathType",
		Signature: "<x?:x>",
		Fn: func(_ context.Context, args ...any) (any, error) {
			switch extutil.Optional(args, 0).(type) {
			case int64:
				return "integer", nil
			case float64:
				return "float", nil
			}
			return nil, nil
		},
	}
}

// ToString returns the definition for tostring(v).
func ToString() functions.IntrinsicDef {
	return functions.IntrinsicDef{
		Name:      "tostring",
		Signature: "<x?:s>",
		Fn: func(_ context.Context, args ...any) (any, error) {
			return evaluator.FormatValue(extutil.Optional(args, 0)), nil
		},
	}
}

// ToNumber returns the definition for tonumber(v [, base]).
//
// Numbers are returned unchanged. Strings are parsed as decimal or
// hexadecimal integers or floats, or as integers in base when given.
// Anything that cannot be converted yields nil.
func ToNumber() functions.IntrinsicDef {
	return functions.IntrinsicDef{
		Name:      "tonumber",
		Signature: "<x?-i?:x>",
		Fn: func(_ context.Context, args ...any) (any, error) {
			v := extutil.Optional(args, 0)
			if b := extutil.Optional(args, 1); b != nil {
				base, err := extutil.ToInt(b)
				if err != nil {
					return nil, fmt.Errorf("tonumber: %w", err)
				}
				if base < 2 || base > 36 {
					return nil, fmt.Errorf("tonumber: base out of range")
				}
				s, ok := v.(string)
				if !ok {
					return nil, fmt.Errorf("tonumber: string expected, got %s", evaluator.TypeName(v))
				}
				n, err := strconv.ParseInt(strings.TrimSpace(s), int(base), 64)
				if err != nil {
					return nil, nil
				}
				return n, nil
			}

			switch v := v.(type) {
			case int64, float64:
				return v, nil
			case string:
				return parseNumber(strings.TrimSpace(v)), nil
			}
			return nil, nil
		},
	}
}

func parseNumber(s string) any {
	neg := false
	digits := s
	if strings.HasPrefix(digits, "-") {
		neg, digits = true, digits[1:]
	}
	if strings.HasPrefix(digits, "0x") || strings.HasPrefix(digits, "0X") {
		u, err := strconv.ParseUint(digits[2:], 16, 64)
		if err != nil {
			return nil
		}
		n := int64(u)
		if neg {
			n = -n
		}
		return n
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return nil
}

// IsString returns the definition for isString(v).
func IsString() functions.IntrinsicDef {
	return typePredicate("isString", func(v any) bool {
		_, ok := v.(string)
		return ok
	})
}

// IsNumber returns the definition for isNumber(v).
func IsNumber() functions.IntrinsicDef {
	return typePredicate("isNumber", func(v any) bool {
		switch v.(type) {
		case int64, float64:
			return true
		}
		return false
	})
}

// IsBoolean returns the definition for isBoolean(v).
func IsBoolean() functions.IntrinsicDef {
	return typePredicate("isBoolean", func(v any) bool {
		_, ok := v.(bool)
		return ok
	})
}

// IsTable returns the definition for isTable(v).
func IsTable() functions.IntrinsicDef {
	return typePredicate("isTable", func(v any) bool {
		_, ok := v.(*evaluator.Table)
		return ok
	})
}

// IsNil returns the definition for isNil(v).
func IsNil() functions.IntrinsicDef {
	return typePredicate("isNil", func(v any) bool {
		return v == nil
	})
}

// IsFunction returns the definition for isFunction(v).
func IsFunction() functions.IntrinsicDef {
	return typePredicate("isFunction", func(v any) bool {
		_, ok := v.(*evaluator.Intrinsic)
		return ok
	})
}

// IsEmpty returns the definition for isEmpty(v).
// Returns true for nil, the empty string and tables without keys.
func IsEmpty() functions.IntrinsicDef {
	return typePredicate("isEmpty", func(v any) bool {
		switch v := v.(type) {
		case nil:
			return true
		case string:
			return v == ""
		case *evaluator.Table:
			return len(v.Keys()) == 0
		}
		return false
	})
}

// Default returns the definition for default(v, fallback).
// Returns fallback when v is nil.
func Default() functions.IntrinsicDef {
	return functions.IntrinsicDef{
		Name:      "default",
		Signature: "<x-x:x>",
		Fn: func(_ context.Context, args ...any) (any, error) {
			if v := extutil.Optional(args, 0); v != nil {
				return v, nil
			}
			return extutil.Optional(args, 1), nil
		},
	}
}

func typePredicate(name string, fn func(any) bool) functions.IntrinsicDef {
	return functions.IntrinsicDef{
		Name:      name,
		Signature: "<x?:b>",
		Fn: func(_ context.Context, args ...any) (any, error) {
			return fn(extutil.Optional(args, 0)), nil
		},
	}
}
