package parser

import (
	"strings"

	"github.com/sandrolain/qrtext/pkg/types"
)

// tokenSet is a bit set of token types. It records which tokens a rule
// can start with, so alternatives can be chosen on a single lookahead.
type tokenSet uint64

func setOf(tts ...TokenType) tokenSet {
	var s tokenSet
	for _, tt := range tts {
		s |= 1 << tt
	}
	return s
}

func (s tokenSet) has(tt TokenType) bool {
	return s&(1<<tt) != 0
}

func (s tokenSet) union(o tokenSet) tokenSet {
	return s | o
}

// describe lists the members of s using the stream's token names.
func (s tokenSet) describe(stream *TokenStream) string {
	var names []string
	for tt := TokenType(0); tt < tokenTypeCount; tt++ {
		if s.has(tt) {
			names = append(names, stream.Name(tt))
		}
	}
	switch len(names) {
	case 0:
		return "nothing"
	case 1:
		return names[0]
	}
	return strings.Join(names[:len(names)-1], ", ") + " or " + names[len(names)-1]
}

// rule is a composable parser. Every rule knows the set of tokens it can
// start with; parse is only called when the lookahead is in that set or
// when the caller wants the rule to report its own error.
type rule struct {
	name  string
	first tokenSet
	parse func(c *parseContext) *types.ASTNode
}

// token matches a single token of type tt and turns it into a node with
// action. On mismatch it reports what was expected and yields an error node.
func token(tt TokenType, action func(c *parseContext, t Token) *types.ASTNode) *rule {
	return &rule{
		name:  tt.String(),
		first: setOf(tt),
		parse: func(c *parseContext) *types.ASTNode {
			t, err := c.expect(tt)
			if err != nil {
				return c.errorNode(err)
			}
			node := action(c, t)
			if node == nil {
				return c.internalError(t, "semantic action for "+tt.String()+" produced no node")
			}
			return node
		},
	}
}

// alternative tries its alternatives in order and parses the first one
// whose FIRST set contains the lookahead.
func alternative(name string, alts ...*rule) *rule {
	r := &rule{name: name}
	for _, a := range alts {
		r.first = r.first.union(a.first)
	}
	r.parse = func(c *parseContext) *types.ASTNode {
		tt := c.stream.Peek().Type
		for _, a := range alts {
			if a.first.has(tt) {
				return a.parse(c)
			}
		}
		return c.errorNode(c.report(c.stream.ExpectationError(name)))
	}
	return r
}

// optional parses r when the lookahead allows it and yields nil otherwise,
// without consuming anything.
func optional(r *rule) *rule {
	return &rule{
		name:  r.name,
		first: r.first,
		parse: func(c *parseContext) *types.ASTNode {
			if !r.first.has(c.stream.Peek().Type) {
				return nil
			}
			return r.parse(c)
		},
	}
}

// kleeneStar parses r as long as the lookahead is in its FIRST set. When
// separators is non-empty, one separator is required between items and a
// trailing separator is allowed.
func kleeneStar(c *parseContext, r *rule, separators tokenSet) []*types.ASTNode {
	var nodes []*types.ASTNode
	for r.first.has(c.stream.Peek().Type) && !c.stopped {
		nodes = append(nodes, r.parse(c))
		if separators == 0 {
			continue
		}
		if !separators.has(c.stream.Peek().Type) {
			break
		}
		c.mark(c.stream.Consume())
	}
	return nodes
}

// punctuation matches a token that produces no node of its own.
func punctuation(tt TokenType) *rule {
	return &rule{
		name:  tt.String(),
		first: setOf(tt),
		parse: func(c *parseContext) *types.ASTNode {
			t, err := c.expect(tt)
			if err != nil {
				return c.errorNode(err)
			}
			c.mark(t)
			return nil
		},
	}
}

// sequence parses a fixed run of rules, stopping at the first one that
// produced an error node. The non-nil results are passed to build and the
// punctuation consumed on the way is connected to the built node.
func sequence(name string, parts []*rule, build func(c *parseContext, nodes []*types.ASTNode) *types.ASTNode) *rule {
	r := &rule{name: name}
	if len(parts) > 0 {
		r.first = parts[0].first
	}
	r.parse = func(c *parseContext) *types.ASTNode {
		from := len(c.marks)
		nodes := make([]*types.ASTNode, 0, len(parts))
		for _, p := range parts {
			n := p.parse(c)
			if n == nil {
				continue
			}
			if n.Kind == types.NodeError {
				c.connectMarks(nil, from)
				return n
			}
			nodes = append(nodes, n)
		}
		node := build(c, nodes)
		c.connectMarks(node, from)
		return node
	}
	return r
}

// precedenceClimbing builds an expression rule over operand with the given
// prefix and infix operator tables. Binding powers and associativity come
// from types.Operator.
func precedenceClimbing(name string, operand *rule, prefix, infix map[TokenType]types.Operator) *rule {
	r := &rule{name: name, first: operand.first}
	for tt := range prefix {
		r.first = r.first.union(setOf(tt))
	}

	var climb func(c *parseContext, limit int) *types.ASTNode
	climb = func(c *parseContext, limit int) *types.ASTNode {
		if !c.enter() {
			return c.tooDeep()
		}
		defer c.leave()

		var left *types.ASTNode
		t := c.stream.Peek()
		if op, ok := prefix[t.Type]; ok {
			c.stream.Consume()
			operand := climb(c, types.PrecedenceUnary)
			left = c.unary(op, t, operand)
		} else if operand.first.has(t.Type) {
			left = operand.parse(c)
		} else {
			return c.errorNode(c.report(c.stream.ExpectationError(name)))
		}

		for !c.stopped {
			t := c.stream.Peek()
			op, ok := infix[t.Type]
			if !ok || op.Precedence() <= limit {
				break
			}
			c.stream.Consume()
			next := op.Precedence()
			if op.Associativity() == types.AssocRight {
				next--
			}
			right := climb(c, next)
			left = c.binary(op, t, left, right)
		}
		return left
	}

	r.parse = func(c *parseContext) *types.ASTNode {
		return climb(c, 0)
	}
	return r
}
