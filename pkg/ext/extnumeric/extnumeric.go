// Package extnumeric provides numeric intrinsics for qrtext code: the usual
// math library plus a few statistics over tables of numbers.
package extnumeric

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"github.com/sandrolain/qrtext/pkg/ext/extutil"
	"github.com/sandrolain/qrtext/pkg/functions"
)

// All returns all numeric intrinsic definitions.
func All() []functions.IntrinsicDef {
	return []functions.IntrinsicDef{
		Abs(),
		Ceil(),
		Floor(),
		Sqrt(),
		Exp(),
		Log(),
		Sign(),
		Trunc(),
		Clamp(),
		Min(),
		Max(),
		Sin(),
		Cos(),
		Tan(),
		Asin(),
		Acos(),
		Atan(),
		Atan2(),
		Pi(),
		Random(),
		Median(),
		Variance(),
		Stddev(),
		Percentile(),
	}
}

// Abs returns the definition for abs(n).
func Abs() functions.IntrinsicDef {
	return mathFunc1("abs", math.Abs)
}

// Ceil returns the definition for ceil(n). The result is an integer.
func Ceil() functions.IntrinsicDef {
	return roundFunc("ceil", math.Ceil)
}

// Floor returns the definition for floor(n). The result is an integer.
func Floor() functions.IntrinsicDef {
	return roundFunc("floor", math.Floor)
}

// Trunc returns the definition for trunc(n): n rounded toward zero.
func Trunc() functions.IntrinsicDef {
	return roundFunc("trunc", math.Trunc)
}

// Sqrt returns the definition for sqrt(n).
func Sqrt() functions.IntrinsicDef {
	return mathFunc1("sqrt", math.Sqrt)
}

// Exp returns the definition for exp(n).
func Exp() functions.IntrinsicDef {
	return mathFunc1("exp", math.Exp)
}

// Log returns the definition for log(n [, base]).
// Without base, returns the natural logarithm.
func Log() functions.IntrinsicDef {
	return functions.IntrinsicDef{
		Name:      "log",
		Signature: "<n-n?:n>",
		Fn: func(_ context.Context, args ...any) (any, error) {
			n, err := extutil.ToFloat(args[0])
			if err != nil {
				return nil, fmt.Errorf("log: %w", err)
			}
			if n <= 0 {
				return nil, fmt.Errorf("log: argument must be positive")
			}
			base := extutil.Optional(args, 1)
			if base == nil {
				return math.Log(n), nil
			}
			b, err := extutil.ToFloat(base)
			if err != nil {
				return nil, fmt.Errorf("log: %w", err)
			}
			if b <= 0 || b == 1 {
				return nil, fmt.Errorf("log: base must be positive and not 1")
			}
			return math.Log(n) / math.Log(b), nil
		},
	}
}

// Sign returns the definition for sign(n): -1, 0 or 1.
func Sign() functions.IntrinsicDef {
	return functions.IntrinsicDef{
		Name:      "sign",
		Signature: "<n:i>",
		Fn: func(_ context.Context, args ...any) (any, error) {
			n, err := extutil.ToFloat(args[0])
			if err != nil {
				return nil, fmt.Errorf("sign: %w", err)
			}
			switch {
			case n > 0:
				return int64(1), nil
			case n < 0:
				return int64(-1), nil
			}
			return int64(0), nil
		},
	}
}

// Clamp returns the definition for clamp(n, min, max).
func Clamp() functions.IntrinsicDef {
	return functions.IntrinsicDef{
		Name:      "clamp",
		Signature: "<n-n-n:n>",
		Fn: func(_ context.Context, args ...any) (any, error) {
			var v [3]float64
			for i := range v {
				f, err := extutil.ToFloat(args[i])
				if err != nil {
					return nil, fmt.Errorf("clamp: %w", err)
				}
				v[i] = f
			}
			if v[1] > v[2] {
				return nil, fmt.Errorf("clamp: min must not exceed max")
			}
			return math.Max(v[1], math.Min(v[0], v[2])), nil
		},
	}
}

// Min returns the definition for min(n, ...).
func Min() functions.IntrinsicDef {
	return foldFunc("min", math.Min)
}

// Max returns the definition for max(n, ...).
func Max() functions.IntrinsicDef {
	return foldFunc("max", math.Max)
}

// Sin returns the definition for sin(n).
func Sin() functions.IntrinsicDef {
	return mathFunc1("sin", math.Sin)
}

// Cos returns the definition for cos(n).
func Cos() functions.IntrinsicDef {
	return mathFunc1("cos", math.Cos)
}

// Tan returns the definition for tan(n).
func Tan() functions.IntrinsicDef {
	return mathFunc1("tan", math.Tan)
}

// Asin returns the definition for asin(n).
func Asin() functions.IntrinsicDef {
	return mathFunc1("asin", math.Asin)
}

// Acos returns the definition for acos(n).
func Acos() functions.IntrinsicDef {
	return mathFunc1("acos", math.Acos)
}

// Atan returns the definition for atan(n).
func Atan() functions.IntrinsicDef {
	return mathFunc1("atan", math.Atan)
}

// Atan2 returns the definition for atan2(y, x).
func Atan2() functions.IntrinsicDef {
	return functions.IntrinsicDef{
		Name:      "atan2",
		Signature: "<n-n:n>",
		Fn: func(_ context.Context, args ...any) (any, error) {
			y, err := extutil.ToFloat(args[0])
			if err != nil {
				return nil, fmt.Errorf("atan2: %w", err)
			}
			x, err := extutil.ToFloat(args[1])
			if err != nil {
				return nil, fmt.Errorf("atan2: %w", err)
			}
			return math.Atan2(y, x), nil
		},
	}
}

// Pi returns the definition for pi().
func Pi() functions.IntrinsicDef {
	return functions.IntrinsicDef{
		Name:      "pi",
		Signature: "<:n>",
		Fn: func(_ context.Context, _ ...any) (any, error) {
			return math.Pi, nil
		},
	}
}

// Random returns the definition for random([m [, n]]).
//
// Without arguments it returns a float in [0, 1). With one argument m it
// returns an integer in [1, m], with two an integer in [m, n].
func Random() functions.IntrinsicDef {
	return functions.IntrinsicDef{
		Name:      "random",
		Signature: "<i?-i?:x>",
		Fn: func(_ context.Context, args ...any) (any, error) {
			if extutil.Optional(args, 0) == nil {
				return rand.Float64(), nil
			}
			lo := int64(1)
			hi, err := extutil.ToInt(args[0])
			if err != nil {
				return nil, fmt.Errorf("random: %w", err)
			}
			if second := extutil.Optional(args, 1); second != nil {
				lo = hi
				if hi, err = extutil.ToInt(second); err != nil {
					return nil, fmt.Errorf("random: %w", err)
				}
			}
			if lo > hi {
				return nil, fmt.Errorf("random: interval is empty")
			}
			return lo + rand.Int64N(hi-lo+1), nil
		},
	}
}

// Median returns the definition for median(t).
func Median() functions.IntrinsicDef {
	return functions.IntrinsicDef{
		Name:      "median",
		Signature: "<t:n>",
		Fn: func(_ context.Context, args ...any) (any, error) {
			nums, err := extutil.Floats(args[0])
			if err != nil {
				return nil, fmt.Errorf("median: %w", err)
			}
			if len(nums) == 0 {
				return nil, nil
			}
			sort.Float64s(nums)
			mid := len(nums) / 2
			if len(nums)%2 == 0 {
				return (nums[mid-1] + nums[mid]) / 2, nil
			}
			return nums[mid], nil
		},
	}
}

// Variance returns the definition for variance(t), the population variance.
func Variance() functions.IntrinsicDef {
	return functions.IntrinsicDef{
		Name:      "variance",
		Signature: "<t:n>",
		Fn: func(_ context.Context, args ...any) (any, error) {
			nums, err := extutil.Floats(args[0])
			if err != nil {
				return nil, fmt.Errorf("variance: %w", err)
			}
			if len(nums) == 0 {
				return nil, nil
			}
			return calcVariance(nums), nil
		},
	}
}

// Stddev returns the definition for stddev(t).
func Stddev() functions.IntrinsicDef {
	return functions.IntrinsicDef{
		Name:      "stddev",
		Signature: "<t:n>",
		Fn: func(_ context.Context, args ...any) (any, error) {
			nums, err := extutil.Floats(args[0])
			if err != nil {
				return nil, fmt.Errorf("stddev: %w", err)
			}
			if len(nums) == 0 {
				return nil, nil
			}
			return math.Sqrt(calcVariance(nums)), nil
		},
	}
}

// Percentile returns the definition for percentile(t, p).
// p is in range [0, 100].
func Percentile() functions.IntrinsicDef {
	return functions.IntrinsicDef{
		Name:      "percentile",
		Signature: "<t-n:n>",
		Fn: func(_ context.Context, args ...any) (any, error) {
			nums, err := extutil.Floats(args[0])
			if err != nil {
				return nil, fmt.Errorf("percentile: %w", err)
			}
			p, err := extutil.ToFloat(args[1])
			if err != nil {
				return nil, fmt.Errorf("percentile: %w", err)
			}
			if p < 0 || p > 100 {
				return nil, fmt.Errorf("percentile: p must be between 0 and 100")
			}
			if len(nums) == 0 {
				return nil, nil
			}
			sort.Float64s(nums)
			idx := p / 100 * float64(len(nums)-1)
			lo := int(math.Floor(idx))
			hi := int(math.Ceil(idx))
			if lo == hi {
				return nums[lo], nil
			}
			frac := idx - float64(lo)
			return nums[lo]*(1-frac) + nums[hi]*frac, nil
		},
	}
}

// ── helpers ────────────────────────────────────────────────────────────────

func mathFunc1(name string, fn func(float64) float64) functions.IntrinsicDef {
	return functions.IntrinsicDef{
		Name:      name,
		Signature: "<n:n>",
		Fn: func(_ context.Context, args ...any) (any, error) {
			n, err := extutil.ToFloat(args[0])
			if err != nil {
				return nil, fmt.Errorf("%s: %w", name, err)
			}
			return fn(n), nil
		},
	}
}

func roundFunc(name string, fn func(float64) float64) functions.IntrinsicDef {
	return functions.IntrinsicDef{
		Name:      name,
		Signature: "<n:i>",
		Fn: func(_ context.Context, args ...any) (any, error) {
			n, err := extutil.ToFloat(args[0])
			if err != nil {
				return nil, fmt.Errorf("%s: %w", name, err)
			}
			r := fn(n)
			if math.IsNaN(r) || r < math.MinInt64 || r >= math.MaxInt64 {
				return nil, fmt.Errorf("%s: number has no integer representation", name)
			}
			return int64(r), nil
		},
	}
}

func foldFunc(name string, fn func(a, b float64) float64) functions.IntrinsicDef {
	return functions.IntrinsicDef{
		Name:      name,
		Signature: "<n+:n>",
		Fn: func(_ context.Context, args ...any) (any, error) {
			if len(args) == 0 {
				return nil, fmt.Errorf("%s: at least one argument expected", name)
			}
			acc, err := extutil.ToFloat(args[0])
			if err != nil {
				return nil, fmt.Errorf("%s: %w", name, err)
			}
			for _, a := range args[1:] {
				n, err := extutil.ToFloat(a)
				if err != nil {
					return nil, fmt.Errorf("%s: %w", name, err)
				}
				acc = fn(acc, n)
			}
			return acc, nil
		},
	}
}

func calcVariance(nums []float64) float64 {
	sum := 0.0
	for _, n := range nums {
		sum += n
	}
	mean := sum / float64(len(nums))
	variance := 0.0
	for _, n := range nums {
		diff := n - mean
		variance += diff * diff
	}
	return variance / float64(len(nums))
}
