// Package qrtext is a toolbox for a small Lua-like language embedded in
// diagram properties.
//
// Property texts such as block conditions, assignments or function
// arguments are written in a subset of Lua expressions and assignments.
// The toolbox lexes and parses them, infers their types, interprets them
// and prints them in other target languages. It supports:
//   - Error recovery: one pass reports every syntax error of a text
//   - Type inference over a shared environment of variables
//   - Intrinsic functions implemented in Go or WebAssembly
//   - Template-driven code generation for Lua, C and custom targets
//   - Caching of parsed texts per (element id, property) pair
//
// # Quick Start
//
//	// One-shot evaluation
//	result, err := qrtext.Eval("x = 2 ^ 10")
//
//	// A toolbox shared by all properties of a diagram
//	tb := qrtext.New(qrtext.WithIntrinsics(ext.All()...))
//	tb.Parse("block1", "condition", "distance < 10 and not stopped")
//	value := tb.InterpretCode("block2", "value", "speed = clamp(speed * 2, 0, 100)")
//	for _, e := range tb.Errors() {
//	    fmt.Println(e)
//	}
//
// # More Information
//
// For detailed documentation, see:
//   - Parser: github.com/sandrolain/qrtext/pkg/parser
//   - Semantics: github.com/sandrolain/qrtext/pkg/semantics
//   - Evaluator: github.com/sandrolain/qrtext/pkg/evaluator
//   - Printer: github.com/sandrolain/qrtext/pkg/printer
//   - Types: github.com/sandrolain/qrtext/pkg/types
package qrtext

import (
	"context"
	"fmt"

	"github.com/sandrolain/qrtext/pkg/evaluator"
	"github.com/sandrolain/qrtext/pkg/parser"
	"github.com/sandrolain/qrtext/pkg/semantics"
	"github.com/sandrolain/qrtext/pkg/types"
)

// Version returns the current version of qrtext.
func Version() string {
	return "v0.1.0-dev"
}

// Compile parses and analyzes code without interpreting it.
//
// Example:
//
//	tree, err := qrtext.Compile("x = sensor(1) + 2")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(tree.Root())
func Compile(code string, opts ...parser.ParseOption) (*types.Tree, error) {
	errs := &types.ErrorList{}
	tree := parser.Parse(code, errs, opts...)
	if !errs.Empty() {
		return nil, errs.Err()
	}
	semantics.New(errs).Analyze(tree.Root())
	if !errs.Empty() {
		return nil, errs.Err()
	}
	return tree, nil
}

// MustCompile is like Compile but panics if code cannot be compiled.
func MustCompile(code string) *types.Tree {
	tree, err := Compile(code)
	if err != nil {
		panic(fmt.Sprintf("qrtext: Compile(%q): %v", code, err))
	}
	return tree
}

// Eval is a convenience function that parses, analyzes and interprets code
// in a fresh environment. Intrinsics passed through the options are
// declared to the analyzer too.
//
// The result is converted to plain Go values: tables become []any when
// they are sequences and map[string]any otherwise.
//
// Example:
//
//	result, err := qrtext.Eval(`upper("a") .. 1`, ext.WithString())
//	// result == "A1"
func Eval(code string, opts ...evaluator.EvalOption) (any, error) {
	return EvalWithContext(context.Background(), code, opts...)
}

// EvalWithContext is like Eval with a custom context.
func EvalWithContext(ctx context.Context, code string, opts ...evaluator.EvalOption) (any, error) {
	var options evaluator.EvalOptions
	for _, opt := range opts {
		opt(&options)
	}

	errs := &types.ErrorList{}
	tree := parser.Parse(code, errs)
	if !errs.Empty() {
		return nil, errs.Err()
	}

	var analyzerOpts []semantics.Option
	if options.Logger != nil {
		analyzerOpts = append(analyzerOpts, semantics.WithLogger(options.Logger))
	}
	analyzer := semantics.New(errs, analyzerOpts...)
	for _, def := range options.Intrinsics {
		sig, err := def.Type()
		if err != nil {
			return nil, err
		}
		analyzer.AddIntrinsicFunction(def.Name, sig)
	}
	analyzer.Analyze(tree.Root())
	if !errs.Empty() {
		return nil, errs.Err()
	}

	result := evaluator.New(errs, opts...).Interpret(ctx, tree.Root(), analyzer)
	if !errs.Empty() {
		return nil, errs.Err()
	}
	return evaluator.ToGo(result), nil
}
