package parser

import (
	"strconv"

	"github.com/sandrolain/qrtext/pkg/types"
)

// prefixOperators maps tokens to unary operators.
var prefixOperators = map[TokenType]types.Operator{
	TokenMinus:  types.OpNegate,
	TokenNot:    types.OpNot,
	TokenTilde:  types.OpBitNot,
	TokenLength: types.OpLength,
}

// infixOperators maps tokens to binary operators. Precedence and
// associativity are defined on types.Operator.
var infixOperators = map[TokenType]types.Operator{
	TokenOr:           types.OpOr,
	TokenAnd:          types.OpAnd,
	TokenLess:         types.OpLess,
	TokenGreater:      types.OpGreater,
	TokenLessEqual:    types.OpLessEqual,
	TokenGreaterEqual: types.OpGreaterEqual,
	TokenNotEqual:     types.OpNotEqual,
	TokenEqual:        types.OpEqual,
	TokenPipe:         types.OpBitOr,
	TokenTilde:        types.OpBitXor,
	TokenAmpersand:    types.OpBitAnd,
	TokenShiftLeft:    types.OpShiftLeft,
	TokenShiftRight:   types.OpShiftRight,
	TokenConcat:       types.OpConcat,
	TokenPlus:         types.OpAdd,
	TokenMinus:        types.OpSub,
	TokenMult:         types.OpMul,
	TokenDiv:          types.OpDiv,
	TokenIntDiv:       types.OpIntDiv,
	TokenMod:          types.OpMod,
	TokenPow:          types.OpPow,
}

// grammar holds the rules of the language:
//
//	block            ::= { statement [';'] }
//	statement        ::= expression [ '=' expression ]
//	expression       ::= primary { binop expression } | unop expression
//	primary          ::= literal | tableConstructor | prefixExpression
//	prefixExpression ::= ( Name | '(' expression ')' ) { suffix }
//	suffix           ::= '[' expression ']' | '.' Name | ':' Name args | args
//	args             ::= '(' [ expression { ',' expression } ] ')'
//	tableConstructor ::= '{' [ field { (',' | ';') field } [',' | ';'] ] '}'
//	field            ::= '[' expression ']' '=' expression | Name '=' expression | expression
type grammar struct {
	literal          *rule
	name             *rule
	methodName       *rule
	tableConstructor *rule
	field            *rule
	explicitKeyField *rule
	namedField       *rule
	prefixExpression *rule
	parenthesized    *rule
	primary          *rule
	expression       *rule
	assignmentOp     *rule
	statement        *rule
}

var lua = newGrammar()

func newGrammar() *grammar {
	g := &grammar{}

	g.literal = alternative("literal",
		token(TokenNil, keywordLiteral(types.NodeNil)),
		token(TokenTrue, keywordLiteral(types.NodeTrue)),
		token(TokenFalse, keywordLiteral(types.NodeFalse)),
		token(TokenInteger, integerLiteral),
		token(TokenFloat, floatLiteral),
		token(TokenString, keywordLiteral(types.NodeString)),
	)
	g.name = token(TokenIdentifier, keywordLiteral(types.NodeString))
	g.methodName = token(TokenIdentifier, keywordLiteral(types.NodeIdentifier))

	g.tableConstructor = &rule{
		name:  "table constructor",
		first: setOf(TokenBraceOpen),
		parse: g.parseTableConstructor,
	}
	g.prefixExpression = &rule{
		name:  "prefix expression",
		first: setOf(TokenIdentifier, TokenParenOpen),
		parse: g.parsePrefixExpression,
	}
	g.primary = alternative("expression", g.literal, g.tableConstructor, g.prefixExpression)
	g.expression = precedenceClimbing("expression", g.primary, prefixOperators, infixOperators)

	g.parenthesized = sequence("parenthesized expression",
		[]*rule{punctuation(TokenParenOpen), g.expression, punctuation(TokenParenClose)},
		func(c *parseContext, nodes []*types.ASTNode) *types.ASTNode {
			return nodes[0]
		})

	g.explicitKeyField = sequence("field",
		[]*rule{punctuation(TokenBracketOpen), g.expression, punctuation(TokenBracketClose), punctuation(TokenAssign), g.expression},
		func(c *parseContext, nodes []*types.ASTNode) *types.ASTNode {
			return c.pair(types.NodeFieldInit, nodes[0], nodes[1])
		})
	g.namedField = sequence("field",
		[]*rule{g.name, punctuation(TokenAssign), g.expression},
		func(c *parseContext, nodes []*types.ASTNode) *types.ASTNode {
			return c.pair(types.NodeFieldInit, nodes[0], nodes[1])
		})
	g.field = &rule{
		name:  "field",
		first: g.expression.first.union(setOf(TokenBracketOpen)),
		parse: g.parseField,
	}

	g.assignmentOp = optional(punctuation(TokenAssign))
	g.statement = &rule{
		name:  "statement",
		first: g.expression.first,
		parse: g.parseStatement,
	}

	return g
}

// parseBlock parses statements until the end of input. A block with a
// single statement is returned as that statement.
func (g *grammar) parseBlock(c *parseContext) *types.ASTNode {
	var statements []*types.ASTNode

	for !c.stream.AtEnd() && !c.stopped {
		if c.stream.Is(TokenSemicolon) {
			c.stream.Consume()
			continue
		}

		before := c.errors.Len()
		if !g.statement.first.has(c.stream.Peek().Type) {
			c.report(c.stream.UnexpectedError())
			c.stream.Consume()
			c.synchronize(g.statement.first)
			continue
		}

		statements = append(statements, g.statement.parse(c))
		if c.errors.Len() > before {
			c.synchronize(g.statement.first)
		}
	}

	if len(statements) == 1 {
		return statements[0]
	}

	block := c.arena.Alloc(types.NodeBlock)
	block.Arguments = statements
	for _, st := range statements {
		block.ConnectNode(st)
	}
	return block
}

func (g *grammar) parseStatement(c *parseContext) *types.ASTNode {
	left := g.expression.parse(c)
	from := len(c.marks)
	g.assignmentOp.parse(c)
	if len(c.marks) == from {
		return left
	}
	right := g.expression.parse(c)
	assignment := c.pair(types.NodeAssignment, left, right)
	c.connectMarks(assignment, from)
	return assignment
}

func (g *grammar) parsePrefixExpression(c *parseContext) *types.ASTNode {
	var node *types.ASTNode
	if c.stream.Is(TokenIdentifier) {
		node = c.leaf(types.NodeIdentifier, c.stream.Consume())
	} else {
		node = g.parenthesized.parse(c)
	}

	for !c.stopped {
		switch c.stream.Peek().Type {
		case TokenBracketOpen:
			open := c.stream.Consume()
			index := g.expression.parse(c)
			if end, err := c.expect(TokenBracketClose); err == nil {
				node = c.pair(types.NodeIndexing, node, index, open, end)
			} else {
				node = c.pair(types.NodeIndexing, node, index, open)
			}

		case TokenDot:
			dot := c.stream.Consume()
			node = c.pair(types.NodeIndexing, node, g.name.parse(c), dot)

		case TokenColon:
			colon := c.stream.Consume()
			call := c.arena.Alloc(types.NodeMethodCall)
			call.LHS = node
			call.ConnectNode(node)
			call.Connect(colon.Range)
			call.RHS = g.methodName.parse(c)
			call.ConnectNode(call.RHS)
			g.parseArguments(c, call)
			node = call

		case TokenParenOpen:
			call := c.arena.Alloc(types.NodeFunctionCall)
			call.LHS = node
			call.ConnectNode(node)
			g.parseArguments(c, call)
			node = call

		default:
			return node
		}
	}
	return node
}

// parseArguments parses a parenthesized argument list into call.
func (g *grammar) parseArguments(c *parseContext, call *types.ASTNode) {
	from := len(c.marks)
	open, err := c.expect(TokenParenOpen)
	if err != nil {
		return
	}
	c.mark(open)
	call.Arguments = kleeneStar(c, g.expression, setOf(TokenComma))
	if end, err := c.expect(TokenParenClose); err == nil {
		c.mark(end)
	}
	for _, a := range call.Arguments {
		call.ConnectNode(a)
	}
	c.connectMarks(call, from)
}

func (g *grammar) parseTableConstructor(c *parseContext) *types.ASTNode {
	from := len(c.marks)
	table := c.arena.Alloc(types.NodeTableConstructor)
	if start, err := c.expect(TokenBraceOpen); err == nil {
		c.mark(start)
	}
	table.Arguments = kleeneStar(c, g.field, setOf(TokenComma, TokenSemicolon))
	if end, err := c.expect(TokenBraceClose); err == nil {
		c.mark(end)
	}
	for _, f := range table.Arguments {
		table.ConnectNode(f)
	}
	c.connectMarks(table, from)
	return table
}

func (g *grammar) parseField(c *parseContext) *types.ASTNode {
	switch {
	case c.stream.Is(TokenBracketOpen):
		return g.explicitKeyField.parse(c)
	case c.stream.Is(TokenIdentifier) && c.stream.PeekAt(1).Type == TokenAssign:
		return g.namedField.parse(c)
	}
	value := g.expression.parse(c)
	field := c.arena.Alloc(types.NodeFieldInit)
	field.RHS = value
	field.ConnectNode(value)
	return field
}

// Semantic actions

func keywordLiteral(kind types.NodeKind) func(*parseContext, Token) *types.ASTNode {
	return func(c *parseContext, t Token) *types.ASTNode {
		return c.leaf(kind, t)
	}
}

func integerLiteral(c *parseContext, t Token) *types.ASTNode {
	n := c.leaf(types.NodeInteger, t)
	v := t.Value

	if len(v) > 2 && (v[1] == 'x' || v[1] == 'X') {
		// Hexadecimal literals wrap around on overflow.
		digits := v[2:]
		if len(digits) > 16 {
			digits = digits[len(digits)-16:]
		}
		if u, err := strconv.ParseUint(digits, 16, 64); err == nil {
			n.IntValue = int64(u)
		}
		return n
	}

	if i, err := strconv.ParseInt(v, 10, 64); err == nil {
		n.IntValue = i
		return n
	}
	// Decimal integers that do not fit are read as floats.
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		n.Kind = types.NodeFloat
		n.FloatValue = f
	}
	return n
}

func floatLiteral(c *parseContext, t Token) *types.ASTNode {
	n := c.leaf(types.NodeFloat, t)
	if f, err := strconv.ParseFloat(t.Value, 64); err == nil {
		n.FloatValue = f
	}
	return n
}
