// Package parser turns qrtext source into an abstract syntax tree.
//
// The language is a subset of Lua 5.3 expressions and assignments: literals,
// identifiers, unary and binary operators with Lua precedence, function and
// method calls, table constructors, indexing and assignments. Statements may
// be separated by ';'.
//
// # Architecture
//
// The parser consists of three main components:
//   - Lexer: Tokenizes the input into a stream of tokens, never failing
//   - Combinators: Composable rules with FIRST sets (token, alternative,
//     optional, kleene star, sequence, precedence climbing)
//   - Grammar: The Lua subset expressed with those combinators
//
// Parsing never fails. Malformed input yields a tree containing
// types.NodeError placeholders and the diagnostics are appended to the
// supplied error list. After an error the parser resynchronizes at the next
// statement boundary, so a single call reports as many errors as possible.
//
// # Example
//
//	var errs types.ErrorList
//	tree := parser.Parse("x = 1 + 2 * 3", &errs)
//	if !errs.Empty() {
//	    for _, e := range errs.Errors() {
//	        fmt.Println(e)
//	    }
//	}
//	root := tree.Root()
package parser

import (
	"log/slog"
	"sync/atomic"

	"github.com/sandrolain/qrtext/pkg/types"
)

// Default limits.
const (
	DefaultMaxDepth  = 200
	DefaultMaxErrors = 50
)

// generation numbers every parse performed in the process.
var generation atomic.Uint64

// Parse parses text and returns the resulting tree. Diagnostics are appended
// to errors.
func Parse(text string, errors *types.ErrorList, opts ...ParseOption) *types.Tree {
	return NewParser(opts...).Parse(text, errors)
}

// ParseOption configures parsing behavior.
type ParseOption func(*ParseOptions)

// ParseOptions holds parser configuration.
type ParseOptions struct {
	// MaxDepth limits nesting of expressions to prevent stack overflow.
	MaxDepth int
	// MaxErrors stops parsing after this many syntax errors. Zero means no limit.
	MaxErrors int
	// Logger receives debug output.
	Logger *slog.Logger
}

// WithMaxDepth sets the maximum nesting depth.
func WithMaxDepth(depth int) ParseOption {
	return func(opts *ParseOptions) {
		opts.MaxDepth = depth
	}
}

// WithMaxErrors sets the number of syntax errors after which parsing stops.
func WithMaxErrors(n int) ParseOption {
	return func(opts *ParseOptions) {
		opts.MaxErrors = n
	}
}

// WithLogger sets the logger used for debug output.
func WithLogger(logger *slog.Logger) ParseOption {
	return func(opts *ParseOptions) {
		opts.Logger = logger
	}
}

// Parser parses source text with a fixed configuration.
// A Parser is safe for concurrent use; every call gets its own state.
type Parser struct {
	opts ParseOptions
}

// NewParser creates a parser with the given options.
func NewParser(opts ...ParseOption) *Parser {
	options := ParseOptions{
		MaxDepth:  DefaultMaxDepth,
		MaxErrors: DefaultMaxErrors,
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	return &Parser{opts: options}
}

// Parse tokenizes and parses text. The returned tree is never nil; an empty
// input produces an empty block.
func (p *Parser) Parse(text string, errors *types.ErrorList) *types.Tree {
	if errors == nil {
		errors = &types.ErrorList{}
	}
	before := errors.Len()

	tokens := Tokenize(text, errors)
	c := &parseContext{
		stream:     NewTokenStream(tokens, errors),
		arena:      types.NewNodeArena(),
		errors:     errors,
		opts:       p.opts,
		lastOffset: -2,
	}
	root := lua.parseBlock(c)

	gen := generation.Add(1)
	p.opts.Logger.Debug("parsed",
		"generation", gen,
		"tokens", len(tokens),
		"nodes", c.arena.Len(),
		"errors", errors.Len()-before)

	return types.NewTree(root, c.arena, text, gen)
}

// parseContext is the mutable state of a single parse.
type parseContext struct {
	stream     *TokenStream
	arena      *types.NodeArena
	errors     *types.ErrorList
	opts       ParseOptions
	depth      int
	reported   int
	lastOffset int
	stopped    bool
	marks      []types.Range // punctuation not yet connected to a node
}

// report records err unless another error was already reported at the same
// offset, which happens when several rules fail on one bad token.
func (c *parseContext) report(err *types.Error) *types.Error {
	if c.stopped || err.Connection.Offset == c.lastOffset {
		return err
	}
	c.lastOffset = err.Connection.Offset
	if c.opts.MaxErrors > 0 && c.reported >= c.opts.MaxErrors {
		c.errors.Addf(types.ErrTooManyErrors, err.Connection, "too many errors, parsing stopped")
		c.stopped = true
		return err
	}
	c.reported++
	c.errors.Add(err)
	return err
}

// expect consumes a token of type tt or reports what was found instead.
func (c *parseContext) expect(tt TokenType) (Token, *types.Error) {
	if c.stream.Is(tt) {
		return c.stream.Consume(), nil
	}
	return c.stream.Peek(), c.report(c.stream.ExpectationError(c.stream.Name(tt)))
}

func (c *parseContext) enter() bool {
	if c.opts.MaxDepth > 0 && c.depth >= c.opts.MaxDepth {
		return false
	}
	c.depth++
	return true
}

func (c *parseContext) leave() {
	c.depth--
}

// tooDeep reports the nesting limit and stops the parse.
func (c *parseContext) tooDeep() *types.ASTNode {
	t := c.stream.Peek()
	err := c.report(types.Errorf(types.ErrTooDeep, t.Start(), "expression is nested too deeply (limit %d)", c.opts.MaxDepth))
	c.stopped = true
	return c.errorNode(err)
}

// synchronize skips tokens after an error until a ';' (consumed) or a
// token that starts a statement on a later line.
func (c *parseContext) synchronize(statementStart tokenSet) {
	line := c.stream.Peek().Start().Line
	if last := c.errors.Last(); last != nil && last.Connection.IsValid() {
		line = last.Connection.Line
	}
	for !c.stream.AtEnd() {
		t := c.stream.Peek()
		if t.Type == TokenSemicolon {
			c.stream.Consume()
			return
		}
		if t.Start().Line > line && statementStart.has(t.Type) {
			return
		}
		c.stream.Consume()
	}
}

// Node construction

func (c *parseContext) leaf(kind types.NodeKind, t Token) *types.ASTNode {
	n := c.arena.Alloc(kind)
	n.Value = t.Value
	n.Connect(t.Range)
	return n
}

func (c *parseContext) errorNode(err *types.Error) *types.ASTNode {
	n := c.arena.Alloc(types.NodeError)
	n.Err = err
	if err != nil && err.Connection.IsValid() {
		n.Connect(types.NewRange(err.Connection, err.Connection))
	}
	return n
}

func (c *parseContext) internalError(t Token, message string) *types.ASTNode {
	err := types.NewError(types.ErrInternal, message, t.Start())
	c.errors.Add(err)
	return c.errorNode(err)
}

// mark records a consumed token that belongs to the node being built.
func (c *parseContext) mark(t Token) {
	c.marks = append(c.marks, t.Range)
}

// connectMarks connects the tokens marked since from to n and forgets them.
func (c *parseContext) connectMarks(n *types.ASTNode, from int) {
	if n != nil {
		n.Connect(c.marks[from:]...)
	}
	c.marks = c.marks[:from]
}

func (c *parseContext) unary(op types.Operator, t Token, operand *types.ASTNode) *types.ASTNode {
	n := c.arena.Alloc(types.NodeUnary)
	n.Op = op
	n.LHS = operand
	n.Connect(t.Range)
	n.ConnectNode(operand)
	return n
}

func (c *parseContext) binary(op types.Operator, t Token, left, right *types.ASTNode) *types.ASTNode {
	n := c.arena.Alloc(types.NodeBinary)
	n.Op = op
	n.LHS = left
	n.RHS = right
	n.ConnectNode(left)
	n.Connect(t.Range)
	n.ConnectNode(right)
	return n
}

func (c *parseContext) pair(kind types.NodeKind, left, right *types.ASTNode, tokens ...Token) *types.ASTNode {
	n := c.arena.Alloc(kind)
	n.LHS = left
	n.RHS = right
	n.ConnectNode(left)
	for _, t := range tokens {
		n.Connect(t.Range)
	}
	n.ConnectNode(right)
	return n
}
