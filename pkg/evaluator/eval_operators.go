package evaluator

import (
	"math"
	"strings"

	"github.com/sandrolain/qrtext/pkg/types"
)

func (e *Evaluator) evalUnary(r *run, node *types.ASTNode) (any, error) {
	operand, err := e.evalNode(r, node.LHS)
	if err != nil {
		return nil, err
	}

	switch node.Op {
	case types.OpNot:
		return !Truthy(operand), nil

	case types.OpNegate:
		switch v := operand.(type) {
		case int64:
			return -v, nil
		case float64:
			return -v, nil
		}
		return nil, arithmeticError(node.LHS, operand)

	case types.OpBitNot:
		i, err := toInteger(node.LHS, operand)
		if err != nil {
			return nil, err
		}
		return ^i, nil

	case types.OpLength:
		switch v := operand.(type) {
		case string:
			return int64(len(v)), nil
		case *Table:
			return v.Len(), nil
		}
		return nil, types.Errorf(types.ErrTypeMismatch, node.LHS.Start(), "attempt to get length of a %s value (%s)", TypeName(operand), describe(node.LHS))
	}
	return nil, types.Errorf(types.ErrInternal, node.Start(), "unexpected unary operator %s", node.Op)
}

func (e *Evaluator) evalBinary(r *run, node *types.ASTNode) (any, error) {
	// Handle short-circuit operators
	switch node.Op {
	case types.OpAnd, types.OpOr:
		return e.evalLogical(r, node)
	}

	// Evaluate both sides
	left, err := e.evalNode(r, node.LHS)
	if err != nil {
		return nil, err
	}
	right, err := e.evalNode(r, node.RHS)
	if err != nil {
		return nil, err
	}

	switch node.Op {
	case types.OpAdd, types.OpSub, types.OpMul, types.OpDiv, types.OpIntDiv, types.OpMod, types.OpPow:
		return arithmetic(node, left, right)
	case types.OpBitAnd, types.OpBitOr, types.OpBitXor, types.OpShiftLeft, types.OpShiftRight:
		return bitwise(node, left, right)
	case types.OpConcat:
		return concat(node, left, right)
	case types.OpEqual:
		return equal(left, right), nil
	case types.OpNotEqual:
		return !equal(left, right), nil
	case types.OpLess, types.OpLessEqual, types.OpGreater, types.OpGreaterEqual:
		return compare(node, left, right)
	}
	return nil, types.Errorf(types.ErrInternal, node.Start(), "unexpected binary operator %s", node.Op)
}

// evalLogical returns the operand that decided the result, not a boolean.
func (e *Evaluator) evalLogical(r *run, node *types.ASTNode) (any, error) {
	left, err := e.evalNode(r, node.LHS)
	if err != nil {
		return nil, err
	}
	if node.Op == types.OpAnd && !Truthy(left) {
		return left, nil
	}
	if node.Op == types.OpOr && Truthy(left) {
		return left, nil
	}
	return e.evalNode(r, node.RHS)
}

func arithmetic(node *types.ASTNode, left, right any) (any, error) {
	li, lInt := left.(int64)
	ri, rInt := right.(int64)

	if lInt && rInt {
		switch node.Op {
		case types.OpAdd:
			return li + ri, nil
		case types.OpSub:
			return li - ri, nil
		case types.OpMul:
			return li * ri, nil
		case types.OpIntDiv:
			if ri == 0 {
				return nil, types.NewError(types.ErrDivisionByZero, "attempt to perform 'n//0'", node.RHS.Start())
			}
			return floorDiv(li, ri), nil
		case types.OpMod:
			if ri == 0 {
				return nil, types.NewError(types.ErrDivisionByZero, "attempt to perform 'n%0'", node.RHS.Start())
			}
			return floorMod(li, ri), nil
		}
	}

	lf, ok := toFloat(left)
	if !ok {
		return nil, arithmeticError(node.LHS, left)
	}
	rf, ok := toFloat(right)
	if !ok {
		return nil, arithmeticError(node.RHS, right)
	}

	switch node.Op {
	case types.OpAdd:
		return lf + rf, nil
	case types.OpSub:
		return lf - rf, nil
	case types.OpMul:
		return lf * rf, nil
	case types.OpDiv:
		return lf / rf, nil
	case types.OpIntDiv:
		return math.Floor(lf / rf), nil
	case types.OpMod:
		return floatMod(lf, rf), nil
	case types.OpPow:
		return math.Pow(lf, rf), nil
	}
	return nil, types.Errorf(types.ErrInternal, node.Start(), "unexpected arithmetic operator %s", node.Op)
}

// floorDiv rounds the quotient towards minus infinity.
func floorDiv(a, b int64) int64 {
	if b == -1 {
		// Avoids the overflow panic of MinInt64 / -1.
		return -a
	}
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// floorMod returns a remainder with the sign of the divisor.
func floorMod(a, b int64) int64 {
	if b == -1 {
		return 0
	}
	m := a % b
	if m != 0 && (m^b) < 0 {
		m += b
	}
	return m
}

func floatMod(a, b float64) float64 {
	if math.IsInf(b, 0) && !math.IsNaN(a) && !math.IsInf(a, 0) {
		if (a >= 0) == (b > 0) {
			return a
		}
		return b
	}
	m := math.Mod(a, b)
	if m != 0 && (m < 0) != (b < 0) {
		m += b
	}
	return m
}

func bitwise(node *types.ASTNode, left, right any) (any, error) {
	a, err := toInteger(node.LHS, left)
	if err != nil {
		return nil, err
	}
	b, err := toInteger(node.RHS, right)
	if err != nil {
		return nil, err
	}

	switch node.Op {
	case types.OpBitAnd:
		return a & b, nil
	case types.OpBitOr:
		return a | b, nil
	case types.OpBitXor:
		return a ^ b, nil
	case types.OpShiftLeft:
		return shiftLeft(a, b), nil
	case types.OpShiftRight:
		return shiftLeft(a, -b), nil
	}
	return nil, types.Errorf(types.ErrInternal, node.Start(), "unexpected bitwise operator %s", node.Op)
}

// shiftLeft performs a logical shift; negative counts shift right.
func shiftLeft(a, n int64) int64 {
	switch {
	case n <= -64 || n >= 64:
		return 0
	case n >= 0:
		return int64(uint64(a) << uint(n))
	default:
		return int64(uint64(a) >> uint(-n))
	}
}

func concat(node *types.ASTNode, left, right any) (any, error) {
	var sb strings.Builder
	for _, side := range []struct {
		node  *types.ASTNode
		value any
	}{{node.LHS, left}, {node.RHS, right}} {
		switch side.value.(type) {
		case string, int64, float64:
			sb.WriteString(FormatValue(side.value))
		default:
			return nil, types.Errorf(types.ErrTypeMismatch, side.node.Start(), "attempt to concatenate a %s value (%s)", TypeName(side.value), describe(side.node))
		}
	}
	return sb.String(), nil
}

// equal compares values the way Lua's == does: numbers by value regardless
// of their kind, tables and functions by identity.
func equal(left, right any) bool {
	if lf, ok := toFloat(left); ok {
		if rf, ok := toFloat(right); ok {
			li, lInt := left.(int64)
			ri, rInt := right.(int64)
			if lInt && rInt {
				return li == ri
			}
			return lf == rf
		}
		return false
	}
	return left == right
}

func compare(node *types.ASTNode, left, right any) (any, error) {
	var less, eq, greater bool

	switch l := left.(type) {
	case string:
		rs, ok := right.(string)
		if !ok {
			return nil, compareError(node, left, right)
		}
		less, eq, greater = l < rs, l == rs, l > rs
	default:
		li, lInt := left.(int64)
		ri, rInt := right.(int64)
		if lInt && rInt {
			less, eq, greater = li < ri, li == ri, li > ri
			break
		}
		lf, lok := toFloat(left)
		rf, rok := toFloat(right)
		if !lok || !rok {
			return nil, compareError(node, left, right)
		}
		less, eq, greater = lf < rf, lf == rf, lf > rf
	}

	switch node.Op {
	case types.OpLess:
		return less, nil
	case types.OpLessEqual:
		return less || eq, nil
	case types.OpGreater:
		return greater, nil
	default:
		return greater || eq, nil
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// toInteger converts operands of bitwise operators. Floats are accepted
// when they have an exact integer value.
func toInteger(node *types.ASTNode, v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case float64:
		if i, ok := floatToInteger(n); ok {
			return i, nil
		}
		return 0, types.NewError(types.ErrTypeMismatch, "number has no integer representation", node.Start())
	}
	return 0, types.Errorf(types.ErrTypeMismatch, node.Start(), "attempt to perform bitwise operation on a %s value (%s)", TypeName(v), describe(node))
}

func arithmeticError(node *types.ASTNode, v any) error {
	return types.Errorf(types.ErrTypeMismatch, node.Start(), "attempt to perform arithmetic on a %s value (%s)", TypeName(v), describe(node))
}

func compareError(node *types.ASTNode, left, right any) error {
	return types.Errorf(types.ErrTypeMismatch, node.Start(), "attempt to compare %s with %s", TypeName(left), TypeName(right))
}
