// Package ext provides optional intrinsic libraries for qrtext code.
//
// The intrinsics live in sub-packages grouped by category:
//   - extnumeric  – abs, floor, sqrt, log, min, max, trig functions, median, …
//   - extstring   – upper, lower, sub, rep, find, split, camelCase, …
//   - exttable    – first, last, insert, remove, concat, keys, sum, …
//   - exttypes    – type, mathType, tostring, tonumber, isEmpty, default, …
//   - extdatetime – time, dateAdd, dateDiff, dateComponents, …
//   - extwasm     – exports of a WebAssembly module, loaded at run time
//
// # Integration – all libraries at once
//
//	import "github.com/sandrolain/qrtext/pkg/ext"
//
//	result, err := qrtext.Eval(code, ext.WithAll())
//
// # Integration – by category
//
//	result, err := qrtext.Eval(code,
//	    ext.WithString(),
//	    ext.WithNumeric(),
//	)
//
// # Integration – single function from a sub-package
//
//	import "github.com/sandrolain/qrtext/pkg/ext/extstring"
//
//	tb := qrtext.New()
//	tb.AddIntrinsicFunction(extstring.Upper())
package ext

import (
	"github.com/sandrolain/qrtext/pkg/evaluator"
	"github.com/sandrolain/qrtext/pkg/ext/extdatetime"
	"github.com/sandrolain/qrtext/pkg/ext/extnumeric"
	"github.com/sandrolain/qrtext/pkg/ext/extstring"
	"github.com/sandrolain/qrtext/pkg/ext/exttable"
	"github.com/sandrolain/qrtext/pkg/ext/exttypes"
	"github.com/sandrolain/qrtext/pkg/functions"
)

// All returns the definitions of every built-in library.
func All() []functions.IntrinsicDef {
	var all []functions.IntrinsicDef
	all = append(all, extnumeric.All()...)
	all = append(all, extstring.All()...)
	all = append(all, exttable.All()...)
	all = append(all, exttypes.All()...)
	all = append(all, extdatetime.All()...)
	return all
}

// WithAll returns an EvalOption that registers every built-in library.
func WithAll() evaluator.EvalOption {
	return evaluator.WithIntrinsics(All()...)
}

// WithNumeric returns an EvalOption for the numeric intrinsics.
func WithNumeric() evaluator.EvalOption {
	return evaluator.WithIntrinsics(extnumeric.All()...)
}

// WithString returns an EvalOption for the string intrinsics.
func WithString() evaluator.EvalOption {
	return evaluator.WithIntrinsics(extstring.All()...)
}

// WithTable returns an EvalOption for the table intrinsics.
func WithTable() evaluator.EvalOption {
	return evaluator.WithIntrinsics(exttable.All()...)
}

// WithTypes returns an EvalOption for the type intrinsics.
func WithTypes() evaluator.EvalOption {
	return evaluator.WithIntrinsics(exttypes.All()...)
}

// WithDateTime returns an EvalOption for the date/time intrinsics.
func WithDateTime() evaluator.EvalOption {
	return evaluator.WithIntrinsics(extdatetime.All()...)
}
