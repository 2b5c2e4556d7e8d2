package printer

import "github.com/sandrolain/qrtext/pkg/types"

// PrecedenceTable tells the printer how tightly the target language binds
// each operator. Nodes that are not operators must report a precedence
// above every operator.
type PrecedenceTable interface {
	Precedence(node *types.ASTNode) int
	Associativity(node *types.ASTNode) types.Associativity
}

// Encloser is implemented by precedence tables of targets that render some
// operators as calls. Operands of such operators are never parenthesized.
type Encloser interface {
	Encloses(node *types.ASTNode) bool
}

// LuaPrecedence is the precedence table of the source language.
type LuaPrecedence struct{}

func (LuaPrecedence) Precedence(node *types.ASTNode) int {
	return types.NodePrecedence(node)
}

func (LuaPrecedence) Associativity(node *types.ASTNode) types.Associativity {
	return types.NodeAssociativity(node)
}

// CPrecedence is the precedence table of C-like targets. Exponentiation
// and concatenation are rendered as calls there and never need brackets.
type CPrecedence struct{}

var cPrecedences = map[types.Operator]int{
	types.OpOr:           4,
	types.OpAnd:          5,
	types.OpBitOr:        6,
	types.OpBitXor:       7,
	types.OpBitAnd:       8,
	types.OpEqual:        9,
	types.OpNotEqual:     9,
	types.OpLess:         10,
	types.OpLessEqual:    10,
	types.OpGreater:      10,
	types.OpGreaterEqual: 10,
	types.OpShiftLeft:    11,
	types.OpShiftRight:   11,
	types.OpAdd:          12,
	types.OpSub:          12,
	types.OpMul:          13,
	types.OpDiv:          13,
	types.OpIntDiv:       13,
	types.OpMod:          13,
	types.OpNegate:       14,
	types.OpNot:          14,
	types.OpBitNot:       14,
	types.OpLength:       types.PrecedencePrimary,
	types.OpPow:          types.PrecedencePrimary,
	types.OpConcat:       types.PrecedencePrimary,
}

func (CPrecedence) Precedence(node *types.ASTNode) int {
	if !node.IsOperator() {
		return types.PrecedencePrimary
	}
	if p, ok := cPrecedences[node.Op]; ok {
		return p
	}
	return types.PrecedencePrimary
}

// Encloses reports whether node is rendered as a call like pow(a, b).
func (CPrecedence) Encloses(node *types.ASTNode) bool {
	if !node.IsOperator() {
		return false
	}
	switch node.Op {
	case types.OpPow, types.OpConcat, types.OpLength:
		return true
	}
	return false
}

func (CPrecedence) Associativity(node *types.ASTNode) types.Associativity {
	if node.Kind == types.NodeUnary {
		return types.AssocRight
	}
	return types.AssocLeft
}

// PrecedenceFor returns the table matching a built-in target language.
func PrecedenceFor(target string) PrecedenceTable {
	if target == "c" {
		return CPrecedence{}
	}
	return LuaPrecedence{}
}
