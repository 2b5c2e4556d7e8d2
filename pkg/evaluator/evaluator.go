// Package evaluator implements the qrtext interpreter.
//
// The evaluator walks an Abstract Syntax Tree produced by the parser and
// computes its value. It supports:
//   - Lua arithmetic, bitwise, string and comparison operators
//   - Tables with positional and keyed fields
//   - Calls of intrinsic functions registered from Go
//   - A global variable environment shared between evaluations
//   - Timeout and cancellation via context.Context
//
// Runtime failures do not stop the interpreter: they are appended to the
// shared error list and the failing statement yields nil.
//
// # Example
//
//	errs := &types.ErrorList{}
//	tree := parser.Parse(`x = 2 ^ 10`, errs)
//	ev := evaluator.New(errs)
//	result := ev.Interpret(ctx, tree.Root(), nil)
//	// result == 1024.0
//
// # Numeric kinds
//
// When a TypeOracle (usually the semantic analyzer) is supplied, every value
// computed for a node typed as float is converted to float64, so a variable
// that the analyzer widened to float never holds an int64.
package evaluator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/sandrolain/qrtext/pkg/functions"
	"github.com/sandrolain/qrtext/pkg/semantics"
	"github.com/sandrolain/qrtext/pkg/types"
)

// TypeOracle reports the inferred type of a node.
type TypeOracle interface {
	Type(node *types.ASTNode) semantics.Type
}

// Evaluator interprets qrtext trees.
type Evaluator struct {
	opts       EvalOptions
	logger     *slog.Logger
	errors     *types.ErrorList
	env        *Environment
	intrinsics map[string]*Intrinsic
}

// EvalOptions configures evaluator behavior.
type EvalOptions struct {
	// MaxDepth limits the nesting of evaluated nodes.
	MaxDepth int
	// Timeout sets the evaluation timeout of a single Interpret call.
	Timeout time.Duration
	// Logger for structured logging.
	Logger *slog.Logger
	// Intrinsics holds functions to register with the evaluator.
	Intrinsics []functions.IntrinsicDef
}

// EvalOption configures evaluation behavior.
type EvalOption func(*EvalOptions)

// WithMaxDepth sets the maximum nesting depth.
func WithMaxDepth(depth int) EvalOption {
	return func(opts *EvalOptions) {
		opts.MaxDepth = depth
	}
}

// WithTimeout sets the evaluation timeout. Zero disables it.
func WithTimeout(timeout time.Duration) EvalOption {
	return func(opts *EvalOptions) {
		opts.Timeout = timeout
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) EvalOption {
	return func(opts *EvalOptions) {
		opts.Logger = logger
	}
}

// WithIntrinsic registers an intrinsic function with the evaluator.
func WithIntrinsic(def functions.IntrinsicDef) EvalOption {
	return func(opts *EvalOptions) {
		opts.Intrinsics = append(opts.Intrinsics, def)
	}
}

// WithIntrinsics registers several intrinsic functions at once.
func WithIntrinsics(defs ...functions.IntrinsicDef) EvalOption {
	return func(opts *EvalOptions) {
		opts.Intrinsics = append(opts.Intrinsics, defs...)
	}
}

// New creates a new Evaluator reporting to errors.
func New(errors *types.ErrorList, opts ...EvalOption) *Evaluator {
	options := EvalOptions{
		MaxDepth: 10000,
		Timeout:  30 * time.Second,
	}

	for _, opt := range opts {
		opt(&options)
	}

	if options.Logger == nil {
		options.Logger = slog.Default()
	}

	e := &Evaluator{
		opts:       options,
		logger:     options.Logger,
		errors:     errors,
		env:        NewEnvironment(),
		intrinsics: make(map[string]*Intrinsic, len(options.Intrinsics)),
	}

	for _, def := range options.Intrinsics {
		sig, err := def.Type()
		if err != nil {
			e.logger.Error("invalid intrinsic signature", "name", def.Name, "error", err)
		}
		e.AddIntrinsicFunction(def.Name, def.Fn, sig)
	}
	return e
}

// AddIntrinsicFunction registers fn under name. sig is used to convert
// integer arguments passed to float parameters and may be nil.
func (e *Evaluator) AddIntrinsicFunction(name string, fn functions.IntrinsicFunc, sig *semantics.Function) {
	e.intrinsics[name] = &Intrinsic{Name: name, Fn: fn, Type: sig}
}

// Intrinsic returns the registered function with the given name.
func (e *Evaluator) Intrinsic(name string) (*Intrinsic, bool) {
	fn, ok := e.intrinsics[name]
	return fn, ok
}

// SetVariableValue binds a Go value to a variable. Go numbers, slices and
// maps are converted with FromGo.
func (e *Evaluator) SetVariableValue(name string, value any) {
	e.env.Set(name, FromGo(value))
}

// Value returns the current value of a variable, or nil when unset.
func (e *Evaluator) Value(name string) any {
	value, _ := e.env.Get(name)
	return value
}

// Identifiers returns the names of all variables holding a value.
func (e *Evaluator) Identifiers() []string {
	return e.env.Names()
}

// IntrinsicNames returns the registered function names in lexical order.
func (e *Evaluator) IntrinsicNames() []string {
	names := make([]string, 0, len(e.intrinsics))
	for name := range e.intrinsics {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clear removes all variables. Intrinsic functions stay registered.
func (e *Evaluator) Clear() {
	e.env.Clear()
}

// Interpret evaluates root and returns its value. For a block the value of
// the last statement is returned; an assignment yields the assigned value.
// Runtime errors are appended to the error list and yield nil. oracle may
// be nil.
func (e *Evaluator) Interpret(ctx context.Context, root *types.ASTNode, oracle TypeOracle) any {
	if root == nil {
		return nil
	}

	// Apply timeout if configured
	if e.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.Timeout)
		defer cancel()
	}

	r := &run{ctx: ctx, oracle: oracle}
	result, err := e.evalNode(r, root)
	if err != nil {
		e.report(err)
		result = nil
	}

	if e.logger.Enabled(ctx, slog.LevelDebug) {
		e.logger.Debug("interpreted", "node", root.String(), "result", FormatValue(result))
	}
	return result
}

// run carries the state of a single Interpret call.
type run struct {
	ctx    context.Context
	oracle TypeOracle
	depth  int
}

// report appends err to the error list as a runtime diagnostic.
func (e *Evaluator) report(err error) {
	var te *types.Error
	if errors.As(err, &te) {
		e.errors.Add(te)
		if te.Severity == types.SeverityInternal {
			e.logger.Error("internal error while interpreting", "error", te)
		}
		return
	}
	e.errors.Add(types.NewError(types.ErrInternal, err.Error(), types.NoConnection).WithCause(err))
	e.logger.Error("internal error while interpreting", "error", err)
}

// aborts reports whether err must stop the whole evaluation instead of
// only the current statement.
func aborts(err error) bool {
	var te *types.Error
	if errors.As(err, &te) {
		return te.Code == types.ErrTimeout || te.Code == types.ErrStackOverflow
	}
	return false
}

// evalNode dispatches evaluation based on node kind.
func (e *Evaluator) evalNode(r *run, node *types.ASTNode) (any, error) {
	if node == nil {
		return nil, nil
	}

	if err := r.ctx.Err(); err != nil {
		return nil, types.NewError(types.ErrTimeout, "evaluation cancelled: "+err.Error(), node.Start()).WithCause(err)
	}

	r.depth++
	defer func() { r.depth-- }()
	if e.opts.MaxDepth > 0 && r.depth > e.opts.MaxDepth {
		return nil, types.Errorf(types.ErrStackOverflow, node.Start(), "maximum evaluation depth of %d exceeded", e.opts.MaxDepth)
	}

	value, err := e.evalKind(r, node)
	if err != nil {
		return nil, err
	}
	return r.coerce(node, value), nil
}

func (e *Evaluator) evalKind(r *run, node *types.ASTNode) (any, error) {
	switch node.Kind {
	case types.NodeError:
		// Already reported by the parser.
		return nil, nil
	case types.NodeInteger:
		return node.IntValue, nil
	case types.NodeFloat:
		return node.FloatValue, nil
	case types.NodeString:
		return node.Value, nil
	case types.NodeTrue:
		return true, nil
	case types.NodeFalse:
		return false, nil
	case types.NodeNil:
		return nil, nil
	case types.NodeIdentifier:
		return e.evalIdentifier(node), nil
	case types.NodeUnary:
		return e.evalUnary(r, node)
	case types.NodeBinary:
		return e.evalBinary(r, node)
	case types.NodeFunctionCall:
		return e.evalFunctionCall(r, node)
	case types.NodeMethodCall:
		return e.evalMethodCall(r, node)
	case types.NodeTableConstructor:
		return e.evalTableConstructor(r, node)
	case types.NodeIndexing:
		return e.evalIndexing(r, node)
	case types.NodeAssignment:
		return e.evalAssignment(r, node)
	case types.NodeBlock:
		return e.evalBlock(r, node)
	}
	return nil, types.Errorf(types.ErrInternal, node.Start(), "unexpected node kind %s", node.Kind)
}

// coerce converts integers computed for float-typed nodes to float64.
func (r *run) coerce(node *types.ASTNode, value any) any {
	if r.oracle == nil {
		return value
	}
	if i, ok := value.(int64); ok && semantics.Is(r.oracle.Type(node), semantics.KindFloat) {
		return float64(i)
	}
	return value
}

// evalIdentifier returns the variable value, the intrinsic of that name,
// or nil for names that were never assigned.
func (e *Evaluator) evalIdentifier(node *types.ASTNode) any {
	if value, ok := e.env.Get(node.Value); ok {
		return value
	}
	if fn, ok := e.intrinsics[node.Value]; ok {
		return fn
	}
	return nil
}

func (e *Evaluator) evalTableConstructor(r *run, node *types.ASTNode) (any, error) {
	t := NewTable()
	var position int64
	for _, field := range node.Arguments {
		if field.Kind != types.NodeFieldInit {
			if _, err := e.evalNode(r, field); err != nil {
				return nil, err
			}
			continue
		}

		value, err := e.evalNode(r, field.RHS)
		if err != nil {
			return nil, err
		}

		var key any
		if field.LHS == nil {
			position++
			key = position
		} else if key, err = e.evalNode(r, field.LHS); err != nil {
			return nil, err
		}

		if err := t.Set(key, value); err != nil {
			return nil, types.NewError(types.ErrTypeMismatch, err.Error(), field.Start())
		}
	}
	return t, nil
}

func (e *Evaluator) evalIndexing(r *run, node *types.ASTNode) (any, error) {
	obj, err := e.evalNode(r, node.LHS)
	if err != nil {
		return nil, err
	}
	key, err := e.evalNode(r, node.RHS)
	if err != nil {
		return nil, err
	}

	switch o := obj.(type) {
	case *Table:
		return o.Get(key), nil
	case string:
		// String values expose the intrinsics as methods.
		if name, ok := key.(string); ok {
			if fn, ok := e.intrinsics[name]; ok {
				return fn, nil
			}
		}
		return nil, nil
	}
	return nil, types.Errorf(types.ErrTypeMismatch, node.Start(), "attempt to index a %s value (%s)", TypeName(obj), describe(node.LHS))
}

func (e *Evaluator) evalAssignment(r *run, node *types.ASTNode) (any, error) {
	value, err := e.evalNode(r, node.RHS)
	if err != nil {
		return nil, err
	}
	target := node.LHS
	value = r.coerce(target, value)

	switch target.Kind {
	case types.NodeIdentifier:
		e.env.Set(target.Value, value)
		return value, nil

	case types.NodeIndexing:
		obj, err := e.evalNode(r, target.LHS)
		if err != nil {
			return nil, err
		}
		key, err := e.evalNode(r, target.RHS)
		if err != nil {
			return nil, err
		}
		t, ok := obj.(*Table)
		if !ok {
			return nil, types.Errorf(types.ErrTypeMismatch, target.Start(), "attempt to index a %s value (%s)", TypeName(obj), describe(target.LHS))
		}
		if err := t.Set(key, value); err != nil {
			return nil, types.NewError(types.ErrTypeMismatch, err.Error(), target.RHS.Start())
		}
		return value, nil

	case types.NodeError:
		return nil, nil
	}
	return nil, types.Errorf(types.ErrTypeMismatch, target.Start(), "cannot assign to %s", target.Kind)
}

// evalBlock evaluates every statement. A failing statement is reported
// and evaluation continues with the next one.
func (e *Evaluator) evalBlock(r *run, node *types.ASTNode) (any, error) {
	var result any
	for _, stmt := range node.Arguments {
		value, err := e.evalNode(r, stmt)
		if err != nil {
			if aborts(err) {
				return nil, err
			}
			e.report(err)
			value = nil
		}
		result = value
	}
	return result, nil
}

// describe names the expression a runtime error refers to.
func describe(n *types.ASTNode) string {
	switch {
	case n == nil:
		return "?"
	case n.Kind == types.NodeIdentifier:
		return fmt.Sprintf("variable '%s'", n.Value)
	case n.Kind == types.NodeString:
		return fmt.Sprintf("field '%s'", n.Value)
	case n.Kind == types.NodeMethodCall && n.RHS != nil:
		return fmt.Sprintf("method '%s'", n.RHS.Value)
	}
	return n.Kind.String()
}
