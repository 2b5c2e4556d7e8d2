// Package printer renders qrtext trees as source code of a target language.
//
// Every construct is rendered from a small template ("addition.t",
// "functionCall.t", ...) whose @@PLACEHOLDERS@@ are replaced with the text
// of the children. Operands are parenthesized according to a precedence
// table of the target language, so the printed code keeps the meaning of
// the original tree.
//
// # Example
//
//	tmpl, _ := printer.Templates("c")
//	p := printer.New(tmpl, analyzer, printer.WithPrecedenceTable(printer.CPrecedence{}))
//	code := p.Print(tree.Root())
//
// # Result cache
//
// The printer keeps the text of every rendered node until its parent
// consumes it. After a complete visit exactly one result, the root's, must
// be left; anything else means a construct forgot or reused a child and
// is reported as an internal error. A printed root is remembered and
// printing it again is an error until Reset is called.
package printer

import (
	"log/slog"
	"strconv"
	"strings"

	"github.com/sandrolain/qrtext/pkg/semantics"
	"github.com/sandrolain/qrtext/pkg/types"
)

// TypeOracle reports the inferred type of a node.
type TypeOracle interface {
	Type(node *types.ASTNode) semantics.Type
}

// Converter rewrites identifiers that collide with names reserved by the
// target runtime.
type Converter func(name string) string

// ReservedVariables returns a converter replacing the names in mapping
// and leaving every other name unchanged.
func ReservedVariables(mapping map[string]string) Converter {
	return func(name string) string {
		if replacement, ok := mapping[name]; ok {
			return replacement
		}
		return name
	}
}

// Option configures a Printer.
type Option func(*Printer)

// WithReservedVariables sets the converter applied to every identifier.
func WithReservedVariables(conv Converter) Option {
	return func(p *Printer) {
		p.variables = conv
	}
}

// WithReservedFunctions adds reserved function templates. Calls of these
// functions are rendered from the template, with @@ARGUMENTS@@ or
// @@ARG1@@ ... @@ARGn@@ replaced by the printed arguments.
func WithReservedFunctions(templates map[string]string) Option {
	return func(p *Printer) {
		for name, t := range templates {
			p.functions[name] = t
		}
	}
}

// WithPrecedenceTable sets the operator precedences of the target language.
func WithPrecedenceTable(table PrecedenceTable) Option {
	return func(p *Printer) {
		p.precedence = table
	}
}

// WithErrors sets the list internal errors are reported to.
func WithErrors(errors *types.ErrorList) Option {
	return func(p *Printer) {
		p.errors = errors
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Printer) {
		p.logger = logger
	}
}

// Printer renders trees with a template set.
//
// Printer is NOT thread-safe.
type Printer struct {
	templates  *TemplateSet
	oracle     TypeOracle
	logger     *slog.Logger
	errors     *types.ErrorList
	variables  Converter
	functions  map[string]string
	precedence PrecedenceTable

	results map[*types.ASTNode]string
	printed map[*types.ASTNode]struct{}
}

// New creates a printer. oracle decides how CastToString and
// concatenation convert values; it may be nil.
func New(templates *TemplateSet, oracle TypeOracle, opts ...Option) *Printer {
	p := &Printer{
		templates:  templates,
		oracle:     oracle,
		functions:  templates.Functions(),
		precedence: LuaPrecedence{},
		results:    make(map[*types.ASTNode]string),
		printed:    make(map[*types.ASTNode]struct{}),
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.logger == nil {
		p.logger = slog.Default()
	}
	if p.errors == nil {
		p.errors = &types.ErrorList{}
	}
	if p.variables == nil {
		p.variables = func(name string) string { return name }
	}
	return p
}

// Errors returns the internal errors reported by the printer.
func (p *Printer) Errors() []*types.Error {
	return p.errors.Errors()
}

// Print renders node. It returns "" when node is nil, was already printed,
// or the printer got into an inconsistent state.
func (p *Printer) Print(node *types.ASTNode) string {
	if !p.printWithoutPop(node) {
		return ""
	}
	return p.pop(node, false)
}

// CastToString renders node converted to a string value of the target
// language, using the cast templates chosen by the node's type.
func (p *Printer) CastToString(node *types.ASTNode) string {
	if !p.printWithoutPop(node) {
		return ""
	}
	return p.toString(node, false)
}

// Reset forgets pending results and printed roots.
func (p *Printer) Reset() {
	clear(p.results)
	clear(p.printed)
}

func (p *Printer) printWithoutPop(node *types.ASTNode) bool {
	if node == nil {
		return false
	}
	if _, ok := p.printed[node]; ok {
		p.errors.Addf(types.ErrPrinterConsumed, node.Start(), "%s was already printed", node.Kind)
		return false
	}

	types.Walk(node, p.visit)

	if _, ok := p.results[node]; len(p.results) != 1 || !ok {
		p.logger.Warn("printer got into an inconsistent state", "pending", len(p.results))
		for n, code := range p.results {
			p.logger.Info("pending result", "node", n.String(), "code", code)
		}
		p.errors.Addf(types.ErrInternal, node.Start(), "printer got into an inconsistent state: %d pending results", len(p.results))
		clear(p.results)
		return false
	}

	p.printed[node] = struct{}{}
	return true
}

func (p *Printer) push(node *types.ASTNode, code string) {
	p.results[node] = code
}

func (p *Printer) pop(node *types.ASTNode, wrapIntoBrackets bool) string {
	code := p.results[node]
	delete(p.results, node)
	if wrapIntoBrackets {
		return "(" + code + ")"
	}
	return code
}

func (p *Printer) popAll(nodes []*types.ASTNode) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = p.pop(n, false)
	}
	return out
}

// fragment reads a template, reporting missing ones.
func (p *Printer) fragment(node *types.ASTNode, name string) string {
	t, ok := p.templates.Fragment(name)
	if !ok {
		p.errors.Addf(types.ErrMissingTemplate, node.Start(), "template %s.t is missing from set %s", name, p.templates.Name())
		p.logger.Error("missing template", "template", name, "set", p.templates.Name())
	}
	return t
}

var binaryTemplates = map[types.Operator]string{
	types.OpOr:           "logicalOr",
	types.OpAnd:          "logicalAnd",
	types.OpLess:         "lessThan",
	types.OpGreater:      "greaterThan",
	types.OpLessEqual:    "lessOrEqual",
	types.OpGreaterEqual: "greaterOrEqual",
	types.OpNotEqual:     "inequality",
	types.OpEqual:        "equality",
	types.OpBitOr:        "bitwiseOr",
	types.OpBitXor:       "bitwiseXor",
	types.OpBitAnd:       "bitwiseAnd",
	types.OpShiftLeft:    "bitwiseLeftShift",
	types.OpShiftRight:   "bitwiseRightShift",
	types.OpConcat:       "concatenation",
	types.OpAdd:          "addition",
	types.OpSub:          "subtraction",
	types.OpMul:          "multiplication",
	types.OpDiv:          "division",
	types.OpIntDiv:       "integerDivision",
	types.OpMod:          "modulo",
	types.OpPow:          "exponentiation",
}

var unaryTemplates = map[types.Operator]string{
	types.OpNegate: "unaryMinus",
	types.OpNot:    "not",
	types.OpBitNot: "bitwiseNegation",
	types.OpLength: "length",
}

// visit renders node from the results of its children.
func (p *Printer) visit(node *types.ASTNode) {
	switch node.Kind {
	case types.NodeInteger, types.NodeFloat:
		p.push(node, node.Value)
	case types.NodeString:
		p.push(node, strings.ReplaceAll(p.fragment(node, "string"), "@@VALUE@@", escape(node.Value)))
	case types.NodeTrue:
		p.push(node, p.fragment(node, "true"))
	case types.NodeFalse:
		p.push(node, p.fragment(node, "false"))
	case types.NodeNil:
		p.push(node, p.fragment(node, "nil"))
	case types.NodeIdentifier:
		p.push(node, p.variables(node.Value))
	case types.NodeUnary:
		p.unary(node)
	case types.NodeBinary:
		p.binary(node)
	case types.NodeFunctionCall:
		p.functionCall(node)
	case types.NodeMethodCall:
		p.methodCall(node)
	case types.NodeTableConstructor:
		initializers := p.popAll(node.Arguments)
		p.push(node, replace(p.fragment(node, "tableConstructor"),
			"@@COUNT@@", strconv.Itoa(len(initializers)),
			"@@INITIALIZERS@@", strings.Join(initializers, p.fragment(node, "fieldInitializersSeparator"))))
	case types.NodeFieldInit:
		if node.LHS != nil {
			p.push(node, replace(p.fragment(node, "explicitKeyFieldInitialization"),
				"@@KEY@@", p.pop(node.LHS, false),
				"@@VALUE@@", p.pop(node.RHS, false)))
		} else {
			p.push(node, replace(p.fragment(node, "implicitKeyFieldInitialization"),
				"@@VALUE@@", p.pop(node.RHS, false)))
		}
	case types.NodeIndexing:
		p.push(node, replace(p.fragment(node, "indexingExpression"),
			"@@TABLE@@", p.pop(node.LHS, needsPrefixBrackets(node.LHS)),
			"@@INDEXER@@", p.pop(node.RHS, false)))
	case types.NodeAssignment:
		p.push(node, replace(p.fragment(node, "assignment"),
			"@@VARIABLE@@", p.pop(node.LHS, false),
			"@@VALUE@@", p.pop(node.RHS, false)))
	case types.NodeBlock:
		p.push(node, strings.Join(p.popAll(node.Arguments), p.fragment(node, "statementsSeparator")))
	case types.NodeError:
		p.push(node, "")
	default:
		p.errors.Addf(types.ErrInternal, node.Start(), "cannot print node kind %s", node.Kind)
		p.push(node, "")
	}
}

func (p *Printer) unary(node *types.ASTNode) {
	name, ok := unaryTemplates[node.Op]
	if !ok {
		p.errors.Addf(types.ErrInternal, node.Start(), "cannot print unary operator %s", node.Op)
	}
	operand := p.pop(node.LHS, p.needsBrackets(node, node.LHS, types.AssocLeft))
	p.push(node, strings.ReplaceAll(p.fragment(node, name), "@@OPERAND@@", operand))
}

func (p *Printer) binary(node *types.ASTNode) {
	name, ok := binaryTemplates[node.Op]
	if !ok {
		p.errors.Addf(types.ErrInternal, node.Start(), "cannot print binary operator %s", node.Op)
	}

	var left, right string
	if node.Op == types.OpConcat {
		// Operands of a concatenation are converted to strings first.
		left = p.toString(node.LHS, p.needsBrackets(node, node.LHS, types.AssocLeft))
		right = p.toString(node.RHS, p.needsBrackets(node, node.RHS, types.AssocRight))
	} else {
		left = p.pop(node.LHS, p.needsBrackets(node, node.LHS, types.AssocLeft))
		right = p.pop(node.RHS, p.needsBrackets(node, node.RHS, types.AssocRight))
	}

	p.push(node, replace(p.fragment(node, name), "@@LEFT@@", left, "@@RIGHT@@", right))
}

// needsBrackets reports whether child must be parenthesized as the operand
// of parent on the side with the given associativity.
func (p *Printer) needsBrackets(parent, child *types.ASTNode, childAssociativity types.Associativity) bool {
	if e, ok := p.precedence.(Encloser); ok && e.Encloses(parent) {
		return false
	}
	parentPrecedence := p.precedence.Precedence(parent)
	childPrecedence := p.precedence.Precedence(child)
	return parentPrecedence > childPrecedence ||
		(parentPrecedence == childPrecedence && p.precedence.Associativity(parent) != childAssociativity)
}

// needsPrefixBrackets reports whether node has to be parenthesized to be
// called, indexed or used as a method receiver.
func needsPrefixBrackets(node *types.ASTNode) bool {
	switch node.Kind {
	case types.NodeIdentifier, types.NodeIndexing, types.NodeFunctionCall, types.NodeMethodCall:
		return false
	}
	return true
}

func (p *Printer) functionCall(node *types.ASTNode) {
	function := p.pop(node.LHS, needsPrefixBrackets(node.LHS))
	arguments := p.popAll(node.Arguments)

	if node.LHS.Kind == types.NodeIdentifier {
		if t, ok := p.functions[node.LHS.Value]; ok {
			p.push(node, p.reservedCall(node, t, arguments))
			return
		}
	}

	p.push(node, replace(p.fragment(node, "functionCall"),
		"@@FUNCTION@@", function,
		"@@ARGUMENTS@@", strings.Join(arguments, p.fragment(node, "argumentsSeparator"))))
}

// reservedCall renders a call of a function with its own template.
func (p *Printer) reservedCall(node *types.ASTNode, template string, arguments []string) string {
	pairs := []string{"@@ARGUMENTS@@", strings.Join(arguments, p.fragment(node, "argumentsSeparator"))}
	for i, arg := range arguments {
		pairs = append(pairs, "@@ARG"+strconv.Itoa(i+1)+"@@", arg)
	}
	return replace(template, pairs...)
}

func (p *Printer) methodCall(node *types.ASTNode) {
	object := p.pop(node.LHS, needsPrefixBrackets(node.LHS))
	p.pop(node.RHS, false)
	method := node.RHS.Value
	arguments := p.popAll(node.Arguments)
	p.push(node, replace(p.fragment(node, "methodCall"),
		"@@OBJECT@@", object,
		"@@METHOD@@", method,
		"@@ARGUMENTS@@", strings.Join(arguments, p.fragment(node, "argumentsSeparator"))))
}

// toString pops the result of node wrapped into the cast template that
// matches its type. Strings are left as they are.
func (p *Printer) toString(node *types.ASTNode, wrapIntoBrackets bool) string {
	value := p.pop(node, wrapIntoBrackets)

	var t semantics.Type
	if p.oracle != nil {
		t = p.oracle.Type(node)
	}

	var cast string
	switch {
	case semantics.Is(t, semantics.KindString):
		return value
	case node.Kind == types.NodeString:
		return value
	case semantics.Is(t, semantics.KindInteger):
		cast = "intToString"
	case semantics.Is(t, semantics.KindFloat):
		cast = "floatToString"
	case semantics.Is(t, semantics.KindBoolean):
		cast = "boolToString"
	default:
		cast = "otherToString"
	}
	return strings.ReplaceAll(p.fragment(node, cast), "@@VALUE@@", value)
}

// replace substitutes placeholder/value pairs in one pass, so text coming
// from children is never scanned for placeholders again.
func replace(template string, pairs ...string) string {
	return strings.NewReplacer(pairs...).Replace(template)
}

var stringEscaper = strings.NewReplacer(
	`\`, `\\`,
	`"`, `\"`,
	"\n", `\n`,
	"\r", `\r`,
	"\t", `\t`,
	"\x00", `\0`,
)

// escape makes s safe to embed between double quotes.
func escape(s string) string {
	return stringEscaper.Replace(s)
}
