// Package exttable provides table intrinsics for qrtext code, covering both
// sequence use (positional elements 1..n) and record use (keyed fields).
//
// Tables are shared by reference, so insert and remove modify their
// argument in place, while the other functions return new tables.
package exttable

import (
	"context"
	"fmt"
	"strings"

	"github.com/sandrolain/qrtext/pkg/evaluator"
	"github.com/sandrolain/qrtext/pkg/ext/extutil"
	"github.com/sandrolain/qrtext/pkg/functions"
)

// All returns all table intrinsic definitions.
func All() []functions.IntrinsicDef {
	return []functions.IntrinsicDef{
		First(),
		Last(),
		Take(),
		Skip(),
		Concat(),
		Insert(),
		Remove(),
		Contains(),
		Range(),
		Sum(),
		Keys(),
		Values(),
		Size(),
	}
}

// First returns the definition for first(t).
func First() functions.IntrinsicDef {
	return functions.IntrinsicDef{
		Name:      "first",
		Signature: "<t:x>",
		Fn: func(_ context.Context, args ...any) (any, error) {
			t, err := extutil.AsTable(args[0])
			if err != nil {
				return nil, fmt.Errorf("first: %w", err)
			}
			return t.Get(int64(1)), nil
		},
	}
}

// Last returns the definition for last(t).
func Last() functions.IntrinsicDef {
	return functions.IntrinsicDef{
		Name:      "last",
		Signature: "<t:x>",
		Fn: func(_ context.Context, args ...any) (any, error) {
			t, err := extutil.AsTable(args[0])
			if err != nil {
				return nil, fmt.Errorf("last: %w", err)
			}
			if n := t.Len(); n > 0 {
				return t.Get(n), nil
			}
			return nil, nil
		},
	}
}

// Take returns the definition for take(t, n): the first n elements.
func Take() functions.IntrinsicDef {
	return sliceFunc("take", func(elems []any, n int) []any {
		return elems[:n]
	})
}

// Skip returns the definition for skip(t, n): the elements after the
// first n.
func Skip() functions.IntrinsicDef {
	return sliceFunc("skip", func(elems []any, n int) []any {
		return elems[n:]
	})
}

// Concat returns the definition for concat(t [, sep]).
// Joins the string and number elements of t.
func Concat() functions.IntrinsicDef {
	return functions.IntrinsicDef{
		Name:      "concat",
		Signature: "<t-s?:s>",
		Fn: func(_ context.Context, args ...any) (any, error) {
			t, err := extutil.AsTable(args[0])
			if err != nil {
				return nil, fmt.Errorf("concat: %w", err)
			}
			sep := ""
			if v := extutil.Optional(args, 1); v != nil {
				if sep, err = extutil.ToString(v); err != nil {
					return nil, fmt.Errorf("concat: %w", err)
				}
			}
			elems := t.Array()
			parts := make([]string, len(elems))
			for i, e := range elems {
				switch e.(type) {
				case string, int64, float64:
					parts[i] = evaluator.FormatValue(e)
				default:
					return nil, fmt.Errorf("concat: invalid value (a %s) at index %d", evaluator.TypeName(e), i+1)
				}
			}
			return strings.Join(parts, sep), nil
		},
	}
}

// Insert returns the definition for insert(t, v): appends v to t.
func Insert() functions.IntrinsicDef {
	return functions.IntrinsicDef{
		Name:      "insert",
		Signature: "<t-x:t>",
		Fn: func(_ context.Context, args ...any) (any, error) {
			t, err := extutil.AsTable(args[0])
			if err != nil {
				return nil, fmt.Errorf("insert: %w", err)
			}
			if err := t.Set(t.Len()+1, args[1]); err != nil {
				return nil, fmt.Errorf("insert: %w", err)
			}
			return t, nil
		},
	}
}

// Remove returns the definition for remove(t [, pos]).
// Removes and returns the element at pos (default: the last one), shifting
// down the elements after it.
func Remove() functions.IntrinsicDef {
	return functions.IntrinsicDef{
		Name:      "remove",
		Signature: "<t-i?:x>",
		Fn: func(_ context.Context, args ...any) (any, error) {
			t, err := extutil.AsTable(args[0])
			if err != nil {
				return nil, fmt.Errorf("remove: %w", err)
			}
			n := t.Len()
			pos := n
			if v := extutil.Optional(args, 1); v != nil {
				if pos, err = extutil.ToInt(v); err != nil {
					return nil, fmt.Errorf("remove: %w", err)
				}
			}
			if n == 0 {
				return nil, nil
			}
			if pos < 1 || pos > n {
				return nil, fmt.Errorf("remove: position out of bounds")
			}
			removed := t.Get(pos)
			for i := pos; i < n; i++ {
				if err := t.Set(i, t.Get(i+1)); err != nil {
					return nil, fmt.Errorf("remove: %w", err)
				}
			}
			if err := t.Set(n, nil); err != nil {
				return nil, fmt.Errorf("remove: %w", err)
			}
			return removed, nil
		},
	}
}

// Contains returns the definition for contains(t, v): whether any value of
// t equals v.
func Contains() functions.IntrinsicDef {
	return functions.IntrinsicDef{
		Name:      "contains",
		Signature: "<t-x:b>",
		Fn: func(_ context.Context, args ...any) (any, error) {
			t, err := extutil.AsTable(args[0])
			if err != nil {
				return nil, fmt.Errorf("contains: %w", err)
			}
			for _, k := range t.Keys() {
				if equal(t.Get(k), args[1]) {
					return true, nil
				}
			}
			return false, nil
		},
	}
}

// Range returns the definition for range(from, to [, step]): a sequence of
// integers from from to to inclusive.
func Range() functions.IntrinsicDef {
	return functions.IntrinsicDef{
		Name:      "range",
		Signature: "<i-i-i?:t<i>>",
		Fn: func(ctx context.Context, args ...any) (any, error) {
			from, err := extutil.ToInt(args[0])
			if err != nil {
				return nil, fmt.Errorf("range: %w", err)
			}
			to, err := extutil.ToInt(args[1])
			if err != nil {
				return nil, fmt.Errorf("range: %w", err)
			}
			step := int64(1)
			if v := extutil.Optional(args, 2); v != nil {
				if step, err = extutil.ToInt(v); err != nil {
					return nil, fmt.Errorf("range: %w", err)
				}
			}
			count, err := rangeCount(from, to, step)
			if err != nil {
				return nil, err
			}
			values := make([]any, 0, count)
			for i, k := from, uint64(0); k < count; k++ {
				if k%1024 == 0 && ctx.Err() != nil {
					return nil, fmt.Errorf("range: %w", ctx.Err())
				}
				values = append(values, i)
				if k+1 < count {
					i += step
				}
			}
			return evaluator.NewArray(values...), nil
		},
	}
}

// rangeCount returns the number of elements of range(from, to, step),
// computed without overflowing int64.
func rangeCount(from, to, step int64) (uint64, error) {
	var span, stride uint64
	switch {
	case step == 0:
		return 0, fmt.Errorf("range: step must not be zero")
	case step > 0 && from > to, step < 0 && from < to:
		return 0, nil
	case step > 0:
		span, stride = uint64(to)-uint64(from), uint64(step)
	default:
		span, stride = uint64(from)-uint64(to), uint64(-(step+1))+1
	}
	count := span/stride + 1
	if count > maxRange || count == 0 {
		return 0, fmt.Errorf("range: too many elements")
	}
	return count, nil
}

const maxRange = 1 << 20

// Sum returns the definition for sum(t).
// The sum of integers is an integer, otherwise a float.
func Sum() functions.IntrinsicDef {
	return functions.IntrinsicDef{
		Name:      "sum",
		Signature: "<t:x>",
		Fn: func(_ context.Context, args ...any) (any, error) {
			t, err := extutil.AsTable(args[0])
			if err != nil {
				return nil, fmt.Errorf("sum: %w", err)
			}
			var isum int64
			var fsum float64
			float := false
			for i, e := range t.Array() {
				switch n := e.(type) {
				case int64:
					isum += n
				case float64:
					fsum += n
					float = true
				default:
					return nil, fmt.Errorf("sum: element %d: number expected, got %s", i+1, evaluator.TypeName(e))
				}
			}
			if float {
				return fsum + float64(isum), nil
			}
			return isum, nil
		},
	}
}

// Keys returns the definition for keys(t): a sequence of the keys of t in
// insertion order.
func Keys() functions.IntrinsicDef {
	return functions.IntrinsicDef{
		Name:      "keys",
		Signature: "<t:t>",
		Fn: func(_ context.Context, args ...any) (any, error) {
			t, err := extutil.AsTable(args[0])
			if err != nil {
				return nil, fmt.Errorf("keys: %w", err)
			}
			return evaluator.NewArray(t.Keys()...), nil
		},
	}
}

// Values returns the definition for values(t): a sequence of the values of
// t in key insertion order.
func Values() functions.IntrinsicDef {
	return functions.IntrinsicDef{
		Name:      "values",
		Signature: "<t:t>",
		Fn: func(_ context.Context, args ...any) (any, error) {
			t, err := extutil.AsTable(args[0])
			if err != nil {
				return nil, fmt.Errorf("values: %w", err)
			}
			keys := t.Keys()
			values := make([]any, len(keys))
			for i, k := range keys {
				values[i] = t.Get(k)
			}
			return evaluator.NewArray(values...), nil
		},
	}
}

// Size returns the definition for size(t): the number of keys of t.
// Unlike the length operator it also counts keyed fields.
func Size() functions.IntrinsicDef {
	return functions.IntrinsicDef{
		Name:      "size",
		Signature: "<t:i>",
		Fn: func(_ context.Context, args ...any) (any, error) {
			t, err := extutil.AsTable(args[0])
			if err != nil {
				return nil, fmt.Errorf("size: %w", err)
			}
			return int64(len(t.Keys())), nil
		},
	}
}

// ── helpers ────────────────────────────────────────────────────────────────

func sliceFunc(name string, fn func(elems []any, n int) []any) functions.IntrinsicDef {
	return functions.IntrinsicDef{
		Name:      name,
		Signature: "<t-i:t>",
		Fn: func(_ context.Context, args ...any) (any, error) {
			t, err := extutil.AsTable(args[0])
			if err != nil {
				return nil, fmt.Errorf("%s: %w", name, err)
			}
			n, err := extutil.ToInt(args[1])
			if err != nil {
				return nil, fmt.Errorf("%s: %w", name, err)
			}
			elems := t.Array()
			n = min(max(n, 0), int64(len(elems)))
			return evaluator.NewArray(fn(elems, int(n))...), nil
		},
	}
}

// equal compares values the way the == operator does: numbers by value,
// tables and functions by identity.
func equal(a, b any) bool {
	switch x := a.(type) {
	case int64:
		switch y := b.(type) {
		case int64:
			return x == y
		case float64:
			return float64(x) == y
		}
		return false
	case float64:
		switch y := b.(type) {
		case int64:
			return x == float64(y)
		case float64:
			return x == y
		}
		return false
	}
	return a == b
}
