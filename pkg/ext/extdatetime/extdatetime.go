// Package extdatetime provides date and time intrinsics for qrtext code.
//
// All functions use integer milliseconds since the Unix epoch as the date
// representation, as returned by time().
package extdatetime

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sandrolain/qrtext/pkg/evaluator"
	"github.com/sandrolain/qrtext/pkg/ext/extutil"
	"github.com/sandrolain/qrtext/pkg/functions"
)

// All returns all date/time intrinsic definitions.
func All() []functions.IntrinsicDef {
	return []functions.IntrinsicDef{
		Time(),
		DateAdd(),
		DateDiff(),
		DateComponents(),
		DateStartOf(),
		DateEndOf(),
	}
}

// Now is the clock read by time(). Tests may replace it.
var Now = time.Now

// Time returns the definition for time(): the current time in Unix ms.
func Time() functions.IntrinsicDef {
	return functions.IntrinsicDef{
		Name:      "time",
		Signature: "<:i>",
		Fn: func(_ context.Context, _ ...any) (any, error) {
			return Now().UnixMilli(), nil
		},
	}
}

// DateAdd returns the definition for dateAdd(millis, amount, unit).
// Adds (or subtracts if negative) the given amount of the specified unit.
//
// Supported units: "year", "month", "day", "hour", "minute", "second", "millisecond".
func DateAdd() functions.IntrinsicDef {
	return functions.IntrinsicDef{
		Name:      "dateAdd",
		Signature: "<i-i-s:i>",
		Fn: func(_ context.Context, args ...any) (any, error) {
			ms, err := extutil.ToInt(args[0])
			if err != nil {
				return nil, fmt.Errorf("dateAdd: %w", err)
			}
			amount, err := extutil.ToInt(args[1])
			if err != nil {
				return nil, fmt.Errorf("dateAdd: %w", err)
			}
			unit, err := extutil.ToString(args[2])
			if err != nil {
				return nil, fmt.Errorf("dateAdd: %w", err)
			}
			t := time.UnixMilli(ms).UTC()
			n := int(amount)
			switch strings.ToLower(unit) {
			case "year":
				t = t.AddDate(n, 0, 0)
			case "month":
				t = t.AddDate(0, n, 0)
			case "day":
				t = t.AddDate(0, 0, n)
			case "hour":
				t = t.Add(time.Duration(amount) * time.Hour)
			case "minute":
				t = t.Add(time.Duration(amount) * time.Minute)
			case "second":
				t = t.Add(time.Duration(amount) * time.Second)
			case "millisecond":
				t = t.Add(time.Duration(amount) * time.Millisecond)
			default:
				return nil, fmt.Errorf("dateAdd: unsupported unit %q", unit)
			}
			return t.UnixMilli(), nil
		},
	}
}

// DateDiff returns the definition for dateDiff(from, to, unit).
// Returns the difference (to - from) in whole units.
//
// Supported units: "year", "month", "day", "hour", "minute", "second", "millisecond".
func DateDiff() functions.IntrinsicDef {
	return functions.IntrinsicDef{
		Name:      "dateDiff",
		Signature: "<i-i-s:i>",
		Fn: func(_ context.Context, args ...any) (any, error) {
			from, err := extutil.ToInt(args[0])
			if err != nil {
				return nil, fmt.Errorf("dateDiff: %w", err)
			}
			to, err := extutil.ToInt(args[1])
			if err != nil {
				return nil, fmt.Errorf("dateDiff: %w", err)
			}
			unit, err := extutil.ToString(args[2])
			if err != nil {
				return nil, fmt.Errorf("dateDiff: %w", err)
			}
			diff := to - from
			switch strings.ToLower(unit) {
			case "millisecond":
				return diff, nil
			case "second":
				return diff / 1000, nil
			case "minute":
				return diff / 60_000, nil
			case "hour":
				return diff / 3_600_000, nil
			case "day":
				return diff / 86_400_000, nil
			case "month":
				years, months := dateDiffYM(time.UnixMilli(from).UTC(), time.UnixMilli(to).UTC())
				return int64(years*12 + months), nil
			case "year":
				years, _ := dateDiffYM(time.UnixMilli(from).UTC(), time.UnixMilli(to).UTC())
				return int64(years), nil
			default:
				return nil, fmt.Errorf("dateDiff: unsupported unit %q", unit)
			}
		},
	}
}

// DateComponents returns the definition for dateComponents(millis [, timezone]).
// Returns a table with year, month, day, hour, minute, second, millisecond
// and weekday (0 = Sunday) fields.
func DateComponents() functions.IntrinsicDef {
	return functions.IntrinsicDef{
		Name:      "dateComponents",
		Signature: "<i-s?:t<i>>",
		Fn: func(_ context.Context, args ...any) (any, error) {
			ms, err := extutil.ToInt(args[0])
			if err != nil {
				return nil, fmt.Errorf("dateComponents: %w", err)
			}
			loc := time.UTC
			if tz := extutil.Optional(args, 1); tz != nil {
				name, err := extutil.ToString(tz)
				if err != nil {
					return nil, fmt.Errorf("dateComponents: %w", err)
				}
				if loc, err = time.LoadLocation(name); err != nil {
					return nil, fmt.Errorf("dateComponents: invalid timezone %q: %w", name, err)
				}
			}
			t := time.UnixMilli(ms).In(loc)
			out := evaluator.NewTable()
			for _, f := range []struct {
				name  string
				value int
			}{
				{"year", t.Year()},
				{"month", int(t.Month())},
				{"day", t.Day()},
				{"hour", t.Hour()},
				{"minute", t.Minute()},
				{"second", t.Second()},
				{"millisecond", t.Nanosecond() / 1e6},
				{"weekday", int(t.Weekday())},
			} {
				if err := out.Set(f.name, int64(f.value)); err != nil {
					return nil, fmt.Errorf("dateComponents: %w", err)
				}
			}
			return out, nil
		},
	}
}

// DateStartOf returns the definition for dateStartOf(millis, unit).
// Truncates the date to the start of the specified unit (UTC).
func DateStartOf() functions.IntrinsicDef {
	return functions.IntrinsicDef{
		Name:      "dateStartOf",
		Signature: "<i-s:i>",
		Fn: func(_ context.Context, args ...any) (any, error) {
			t, unit, err := timeAndUnit(args)
			if err != nil {
				return nil, fmt.Errorf("dateStartOf: %w", err)
			}
			start, ok := startOf(t, unit)
			if !ok {
				return nil, fmt.Errorf("dateStartOf: unsupported unit %q", unit)
			}
			return start.UnixMilli(), nil
		},
	}
}

// DateEndOf returns the definition for dateEndOf(millis, unit).
// Returns the last millisecond of the specified unit (UTC).
func DateEndOf() functions.IntrinsicDef {
	return functions.IntrinsicDef{
		Name:      "dateEndOf",
		Signature: "<i-s:i>",
		Fn: func(_ context.Context, args ...any) (any, error) {
			t, unit, err := timeAndUnit(args)
			if err != nil {
				return nil, fmt.Errorf("dateEndOf: %w", err)
			}
			start, ok := startOf(t, unit)
			if !ok {
				return nil, fmt.Errorf("dateEndOf: unsupported unit %q", unit)
			}
			var next time.Time
			switch unit {
			case "year":
				next = start.AddDate(1, 0, 0)
			case "month":
				next = start.AddDate(0, 1, 0)
			case "day":
				next = start.AddDate(0, 0, 1)
			case "hour":
				next = start.Add(time.Hour)
			case "minute":
				next = start.Add(time.Minute)
			case "second":
				next = start.Add(time.Second)
			}
			return next.UnixMilli() - 1, nil
		},
	}
}

// ── helpers ────────────────────────────────────────────────────────────────

func timeAndUnit(args []any) (time.Time, string, error) {
	ms, err := extutil.ToInt(args[0])
	if err != nil {
		return time.Time{}, "", err
	}
	unit, err := extutil.ToString(args[1])
	if err != nil {
		return time.Time{}, "", err
	}
	return time.UnixMilli(ms).UTC(), strings.ToLower(unit), nil
}

func startOf(t time.Time, unit string) (time.Time, bool) {
	switch unit {
	case "year":
		return time.Date(t.Year(), 1, 1, 0, 0, 0, 0, time.UTC), true
	case "month":
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC), true
	case "day":
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
	case "hour":
		return t.Truncate(time.Hour), true
	case "minute":
		return t.Truncate(time.Minute), true
	case "second":
		return t.Truncate(time.Second), true
	}
	return time.Time{}, false
}

// dateDiffYM returns the difference in full years and remaining months.
func dateDiffYM(from, to time.Time) (years, months int) {
	y1, m1, d1 := from.Date()
	y2, m2, d2 := to.Date()
	years = y2 - y1
	months = int(m2) - int(m1)
	if d2 < d1 {
		months--
	}
	if months < 0 {
		years--
		months += 12
	}
	return years, months
}
