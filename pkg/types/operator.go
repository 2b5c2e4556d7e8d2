package types

import "fmt"

// Operator identifies the operation of a NodeUnary or NodeBinary node.
type Operator uint8

const (
	OpNone Operator = iota

	// Unary
	OpNegate // -x
	OpNot    // not x
	OpBitNot // ~x
	OpLength // #x

	// Binary
	OpOr
	OpAnd
	OpLess
	OpGreater
	OpLessEqual
	OpGreaterEqual
	OpNotEqual
	OpEqual
	OpBitOr
	OpBitXor
	OpBitAnd
	OpShiftLeft
	OpShiftRight
	OpConcat
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpIntDiv
	OpMod
	OpPow

	operatorCount
)

// Associativity of an operator.
type Associativity uint8

const (
	AssocLeft Associativity = iota
	AssocRight
)

type operatorInfo struct {
	symbol     string
	precedence int
	assoc      Associativity
	unary      bool
}

// PrecedenceUnary is the binding power of every prefix operator.
const PrecedenceUnary = 11

// PrecedencePrimary is the binding power of everything that is not an
// operator (literals, identifiers, calls, indexing, table constructors).
const PrecedencePrimary = 100

var operators = [operatorCount]operatorInfo{
	OpNone:         {"", PrecedencePrimary, AssocLeft, false},
	OpNegate:       {"-", PrecedenceUnary, AssocRight, true},
	OpNot:          {"not", PrecedenceUnary, AssocRight, true},
	OpBitNot:       {"~", PrecedenceUnary, AssocRight, true},
	OpLength:       {"#", PrecedenceUnary, AssocRight, true},
	OpOr:           {"or", 1, AssocLeft, false},
	OpAnd:          {"and", 2, AssocLeft, false},
	OpLess:         {"<", 3, AssocLeft, false},
	OpGreater:      {">", 3, AssocLeft, false},
	OpLessEqual:    {"<=", 3, AssocLeft, false},
	OpGreaterEqual: {">=", 3, AssocLeft, false},
	OpNotEqual:     {"~=", 3, AssocLeft, false},
	OpEqual:        {"==", 3, AssocLeft, false},
	OpBitOr:        {"|", 4, AssocLeft, false},
	OpBitXor:       {"~", 5, AssocLeft, false},
	OpBitAnd:       {"&", 6, AssocLeft, false},
	OpShiftLeft:    {"<<", 7, AssocLeft, false},
	OpShiftRight:   {">>", 7, AssocLeft, false},
	OpConcat:       {"..", 8, AssocRight, false},
	OpAdd:          {"+", 9, AssocLeft, false},
	OpSub:          {"-", 9, AssocLeft, false},
	OpMul:          {"*", 10, AssocLeft, false},
	OpDiv:          {"/", 10, AssocLeft, false},
	OpIntDiv:       {"//", 10, AssocLeft, false},
	OpMod:          {"%", 10, AssocLeft, false},
	OpPow:          {"^", 12, AssocRight, false},
}

func (op Operator) info() operatorInfo {
	if op < operatorCount {
		return operators[op]
	}
	return operators[OpNone]
}

// Symbol returns the canonical source spelling of the operator.
func (op Operator) Symbol() string { return op.info().symbol }

// Precedence returns the binding power of the operator; higher binds tighter.
func (op Operator) Precedence() int { return op.info().precedence }

// Associativity returns the associativity of the operator.
func (op Operator) Associativity() Associativity { return op.info().assoc }

// IsUnary reports whether op is a prefix operator.
func (op Operator) IsUnary() bool { return op.info().unary }

func (op Operator) String() string {
	if op == OpNone || op >= operatorCount {
		return fmt.Sprintf("Operator(%d)", op)
	}
	return op.info().symbol
}

// NodePrecedence returns the precedence of the construct a node represents.
// Non-operator nodes never need brackets and report PrecedencePrimary.
func NodePrecedence(n *ASTNode) int {
	if n.IsOperator() {
		return n.Op.Precedence()
	}
	return PrecedencePrimary
}

// NodeAssociativity returns the associativity of the construct a node represents.
func NodeAssociativity(n *ASTNode) Associativity {
	if n.IsOperator() {
		return n.Op.Associativity()
	}
	return AssocLeft
}
