package evaluator

import (
	"errors"

	"github.com/sandrolain/qrtext/pkg/semantics"
	"github.com/sandrolain/qrtext/pkg/types"
)

func (e *Evaluator) evalFunctionCall(r *run, node *types.ASTNode) (any, error) {
	callee, err := e.evalNode(r, node.LHS)
	if err != nil {
		return nil, err
	}

	fn, ok := callee.(*Intrinsic)
	if !ok {
		return nil, types.Errorf(types.ErrInvokeNonFunction, node.LHS.Start(), "attempt to call a %s value (%s)", TypeName(callee), describe(node.LHS))
	}

	args, err := e.evalArguments(r, node.Arguments)
	if err != nil {
		return nil, err
	}
	return e.invoke(r, node, fn, args)
}

// evalMethodCall handles obj:name(args). For tables the method is looked up
// in the table itself, for strings among the intrinsics; in both cases the
// object is passed as the first argument.
func (e *Evaluator) evalMethodCall(r *run, node *types.ASTNode) (any, error) {
	obj, err := e.evalNode(r, node.LHS)
	if err != nil {
		return nil, err
	}
	name := node.RHS.Value

	var method any
	switch o := obj.(type) {
	case *Table:
		method = o.Get(name)
	case string:
		if fn, ok := e.intrinsics[name]; ok {
			method = fn
		}
	default:
		return nil, types.Errorf(types.ErrTypeMismatch, node.LHS.Start(), "attempt to index a %s value (%s)", TypeName(obj), describe(node.LHS))
	}

	fn, ok := method.(*Intrinsic)
	if !ok {
		return nil, types.Errorf(types.ErrInvokeNonFunction, node.RHS.Start(), "attempt to call a %s value (%s)", TypeName(method), describe(node))
	}

	args, err := e.evalArguments(r, node.Arguments)
	if err != nil {
		return nil, err
	}
	return e.invoke(r, node, fn, append([]any{obj}, args...))
}

func (e *Evaluator) evalArguments(r *run, nodes []*types.ASTNode) ([]any, error) {
	args := make([]any, len(nodes))
	for i, arg := range nodes {
		value, err := e.evalNode(r, arg)
		if err != nil {
			return nil, err
		}
		args[i] = value
	}
	return args, nil
}

// invoke calls fn with args converted to the kinds its signature expects.
func (e *Evaluator) invoke(r *run, node *types.ASTNode, fn *Intrinsic, args []any) (any, error) {
	if fn.Type != nil {
		for i, arg := range args {
			if n, ok := arg.(int64); ok && semantics.Is(fn.Type.ParamAt(i), semantics.KindFloat) {
				args[i] = float64(n)
			}
		}
	}

	result, err := fn.Fn(r.ctx, args...)
	if err != nil {
		var te *types.Error
		if errors.As(err, &te) && te.Connection.IsValid() {
			return nil, te
		}
		return nil, types.Errorf(types.ErrIntrinsicFailed, node.Start(), "%s: %v", fn.Name, err).WithCause(err)
	}
	return FromGo(result), nil
}
