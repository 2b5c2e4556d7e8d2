// Package semantics implements static type inference for qrtext programs.
//
// The analyzer walks parsed trees, assigns every node a type and keeps a
// single identifier environment shared by all analyzed trees, so a variable
// declared in one property is known when analyzing another.
//
// Types are inferred by constraint propagation over type variables: every
// node starts with the set of kinds it may take and operators, calls and
// assignments narrow or unify those sets. Integers widen to floats where a
// float is expected. A node whose type cannot be pinned down keeps an open
// variable and never causes an error by itself.
//
// # Example
//
//	var errs types.ErrorList
//	a := semantics.New(&errs)
//	tree := parser.Parse("x = 1 + 2.5", &errs)
//	a.Analyze(tree.Root())
//	fmt.Println(a.VariableTypes()["x"]) // float
package semantics

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/sandrolain/qrtext/pkg/types"
)

// maxSuggestionDistance bounds the edit distance of "did you mean" hints.
const maxSuggestionDistance = 2

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithLogger sets the logger used for debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Analyzer) {
		a.logger = logger
	}
}

// Analyzer infers types of parsed trees.
//
// An Analyzer is NOT thread-safe.
type Analyzer struct {
	errors       *types.ErrorList
	logger       *slog.Logger
	nodeTypes    map[*types.ASTNode]*TypeVariable
	identifiers  map[string]*TypeVariable
	declarations map[string]*types.ASTNode
	intrinsics   map[string]*Function
}

// New creates an analyzer reporting to errors.
func New(errors *types.ErrorList, opts ...Option) *Analyzer {
	a := &Analyzer{
		errors:       errors,
		logger:       slog.Default(),
		nodeTypes:    make(map[*types.ASTNode]*TypeVariable),
		identifiers:  make(map[string]*TypeVariable),
		declarations: make(map[string]*types.ASTNode),
		intrinsics:   make(map[string]*Function),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// AddIntrinsicFunction declares a built-in function with the given signature.
func (a *Analyzer) AddIntrinsicFunction(name string, fn *Function) {
	a.intrinsics[name] = fn
	a.declareIntrinsic(name, fn)
}

func (a *Analyzer) declareIntrinsic(name string, fn *Function) {
	v := newVariable(1 << KindFunction)
	v.fn = fn
	a.identifiers[name] = v
	delete(a.declarations, name)
}

// Analyze infers types for the tree rooted at root. Identifiers seen for
// the first time are declared in the shared environment.
func (a *Analyzer) Analyze(root *types.ASTNode) {
	if root == nil {
		return
	}
	before := a.errors.Len()
	a.visit(root)
	a.logger.Debug("analyzed",
		"root", root.String(),
		"identifiers", len(a.identifiers),
		"errors", a.errors.Len()-before)
}

// Forget drops the types of the tree rooted at root together with the
// identifiers it declared.
func (a *Analyzer) Forget(root *types.ASTNode) {
	types.Walk(root, func(n *types.ASTNode) {
		delete(a.nodeTypes, n)
		if n.Kind == types.NodeIdentifier && a.declarations[n.Value] == n {
			delete(a.declarations, n.Value)
			delete(a.identifiers, n.Value)
		}
	})
}

// Release drops the types of the tree rooted at root but keeps the
// identifiers it declared.
func (a *Analyzer) Release(root *types.ASTNode) {
	types.Walk(root, func(n *types.ASTNode) {
		delete(a.nodeTypes, n)
	})
}

// Clear resets the environment. Intrinsic functions stay declared.
func (a *Analyzer) Clear() {
	a.nodeTypes = make(map[*types.ASTNode]*TypeVariable)
	a.identifiers = make(map[string]*TypeVariable)
	a.declarations = make(map[string]*types.ASTNode)
	for name, fn := range a.intrinsics {
		a.declareIntrinsic(name, fn)
	}
}

// Type returns the inferred type of node. Nodes that were never analyzed
// report an unconstrained variable.
func (a *Analyzer) Type(node *types.ASTNode) Type {
	if v, ok := a.nodeTypes[node]; ok {
		return v.Resolve()
	}
	return Any()
}

// Identifiers returns the names of all declared identifiers, intrinsic
// functions included, sorted.
func (a *Analyzer) Identifiers() []string {
	return sortedKeys(a.identifiers)
}

// VariableTypes returns the types of all declared variables. Intrinsic
// functions are not included.
func (a *Analyzer) VariableTypes() map[string]Type {
	out := make(map[string]Type, len(a.identifiers))
	for name, v := range a.identifiers {
		if _, ok := a.intrinsics[name]; !ok {
			out[name] = v.Resolve()
		}
	}
	return out
}

// IsIntrinsic reports whether name is a registered intrinsic function.
func (a *Analyzer) IsIntrinsic(name string) bool {
	_, ok := a.intrinsics[name]
	return ok
}

// Suggest returns declared identifiers matching prefix, best matches first:
// names starting with prefix, then fuzzy matches by distance.
func (a *Analyzer) Suggest(prefix string) []string {
	names := a.Identifiers()
	if prefix == "" {
		return names
	}
	ranks := fuzzy.RankFindFold(prefix, names)
	sort.SliceStable(ranks, func(i, j int) bool {
		pi := strings.HasPrefix(strings.ToLower(ranks[i].Target), strings.ToLower(prefix))
		pj := strings.HasPrefix(strings.ToLower(ranks[j].Target), strings.ToLower(prefix))
		if pi != pj {
			return pi
		}
		if ranks[i].Distance != ranks[j].Distance {
			return ranks[i].Distance < ranks[j].Distance
		}
		return ranks[i].Target < ranks[j].Target
	})
	out := make([]string, len(ranks))
	for i, r := range ranks {
		out[i] = r.Target
	}
	return out
}

// suggestion returns the intrinsic function name closest to name, or "".
func (a *Analyzer) suggestion(name string) string {
	candidates := sortedKeys(a.intrinsics)
	if ranks := fuzzy.RankFindFold(name, candidates); len(ranks) > 0 {
		sort.Sort(ranks)
		return ranks[0].Target
	}
	best, bestDistance := "", maxSuggestionDistance+1
	for _, c := range candidates {
		if d := fuzzy.LevenshteinDistance(strings.ToLower(name), strings.ToLower(c)); d < bestDistance {
			best, bestDistance = c, d
		}
	}
	return best
}

// Traversal

func (a *Analyzer) visit(n *types.ASTNode) {
	switch n.Kind {
	case types.NodeAssignment:
		// The value is analyzed first so identifiers it introduces are
		// recognized as used before declaration.
		a.visit(n.RHS)
		a.visit(n.LHS)
	case types.NodeMethodCall:
		a.visit(n.LHS)
		for _, arg := range n.Arguments {
			a.visit(arg)
		}
	default:
		for _, c := range n.Children() {
			a.visit(c)
		}
	}
	a.nodeTypes[n] = a.infer(n)
}

func (a *Analyzer) typeOf(n *types.ASTNode) *TypeVariable {
	if n == nil {
		return newVariable(1 << KindNil)
	}
	if v, ok := a.nodeTypes[n]; ok {
		return v
	}
	return newVariable(anyKinds)
}

func (a *Analyzer) infer(n *types.ASTNode) *TypeVariable {
	switch n.Kind {
	case types.NodeError:
		return newVariable(anyKinds)
	case types.NodeInteger:
		return newVariable(1 << KindInteger)
	case types.NodeFloat:
		return newVariable(1 << KindFloat)
	case types.NodeString:
		return newVariable(1 << KindString)
	case types.NodeTrue, types.NodeFalse:
		return newVariable(1 << KindBoolean)
	case types.NodeNil:
		return newVariable(1 << KindNil)
	case types.NodeIdentifier:
		return a.identifier(n)
	case types.NodeUnary:
		return a.unary(n)
	case types.NodeBinary:
		return a.binary(n)
	case types.NodeFunctionCall:
		return a.call(n)
	case types.NodeMethodCall:
		return newVariable(anyKinds)
	case types.NodeTableConstructor:
		return a.tableConstructor(n)
	case types.NodeFieldInit:
		return a.typeOf(n.RHS)
	case types.NodeIndexing:
		return a.indexing(n)
	case types.NodeAssignment:
		return a.assignment(n)
	case types.NodeBlock:
		if len(n.Arguments) == 0 {
			return newVariable(1 << KindNil)
		}
		return a.typeOf(n.Arguments[len(n.Arguments)-1])
	}
	a.errors.Addf(types.ErrInternal, n.Start(), "unknown node kind %s", n.Kind)
	return newVariable(anyKinds)
}

func (a *Analyzer) identifier(n *types.ASTNode) *TypeVariable {
	if v, ok := a.identifiers[n.Value]; ok {
		return v
	}
	v := newVariable(anyKinds)
	a.identifiers[n.Value] = v
	a.declarations[n.Value] = n
	return v
}

// Operators

func (a *Analyzer) operand(op types.Operator, n *types.ASTNode, allowed kindSet) *TypeVariable {
	v := a.typeOf(n)
	if !constrain(v, allowed) {
		a.errors.Addf(types.ErrInvalidTypeOperation, n.Start(),
			"operator '%s' cannot be applied to %s", op.Symbol(), v)
	}
	return v
}

func (a *Analyzer) unary(n *types.ASTNode) *TypeVariable {
	switch n.Op {
	case types.OpNegate:
		return a.operand(n.Op, n.LHS, numericKinds)
	case types.OpBitNot:
		a.operand(n.Op, n.LHS, 1<<KindInteger)
		return newVariable(1 << KindInteger)
	case types.OpLength:
		a.operand(n.Op, n.LHS, kinds(KindString, KindTable))
		return newVariable(1 << KindInteger)
	case types.OpNot:
		return newVariable(1 << KindBoolean)
	}
	a.errors.Addf(types.ErrInternal, n.Start(), "unknown unary operator %s", n.Op)
	return newVariable(anyKinds)
}

func (a *Analyzer) binary(n *types.ASTNode) *TypeVariable {
	switch n.Op {
	case types.OpAdd, types.OpSub, types.OpMul, types.OpMod, types.OpIntDiv:
		l := a.operand(n.Op, n.LHS, numericKinds)
		r := a.operand(n.Op, n.RHS, numericKinds)
		return arithmeticResult(l, r)

	case types.OpDiv, types.OpPow:
		a.operand(n.Op, n.LHS, numericKinds)
		a.operand(n.Op, n.RHS, numericKinds)
		return newVariable(1 << KindFloat)

	case types.OpBitOr, types.OpBitXor, types.OpBitAnd, types.OpShiftLeft, types.OpShiftRight:
		a.operand(n.Op, n.LHS, 1<<KindInteger)
		a.operand(n.Op, n.RHS, 1<<KindInteger)
		return newVariable(1 << KindInteger)

	case types.OpConcat:
		a.operand(n.Op, n.LHS, comparableKinds)
		a.operand(n.Op, n.RHS, comparableKinds)
		return newVariable(1 << KindString)

	case types.OpLess, types.OpGreater, types.OpLessEqual, types.OpGreaterEqual:
		a.comparison(n)
		return newVariable(1 << KindBoolean)

	case types.OpEqual, types.OpNotEqual:
		a.equality(n)
		return newVariable(1 << KindBoolean)

	case types.OpAnd, types.OpOr:
		return a.logical(n)
	}
	a.errors.Addf(types.ErrInternal, n.Start(), "unknown binary operator %s", n.Op)
	return newVariable(anyKinds)
}

func arithmeticResult(l, r *TypeVariable) *TypeVariable {
	ls, rs := l.kindSet(), r.kindSet()
	switch {
	case ls == 1<<KindInteger && rs == 1<<KindInteger:
		return newVariable(1 << KindInteger)
	case ls == 1<<KindFloat || rs == 1<<KindFloat:
		return newVariable(1 << KindFloat)
	}
	return newVariable(numericKinds)
}

// comparison requires both operands to be numbers or both to be strings.
func (a *Analyzer) comparison(n *types.ASTNode) {
	l := a.operand(n.Op, n.LHS, comparableKinds)
	r := a.operand(n.Op, n.RHS, comparableKinds)
	ls, rs := l.kindSet(), r.kindSet()

	var ok bool
	switch {
	case ls == 1<<KindString:
		ok = constrain(r, 1<<KindString)
	case rs == 1<<KindString:
		ok = constrain(l, 1<<KindString)
	case ls&^numericKinds == 0:
		ok = constrain(r, numericKinds)
	case rs&^numericKinds == 0:
		ok = constrain(l, numericKinds)
	default:
		ok = true
	}
	if !ok {
		a.errors.Addf(types.ErrInvalidTypeOperation, n.Start(),
			"attempt to compare %s with %s", l, r)
	}
}

// equality rejects operands of two known kinds that can never be equal.
// nil compares with anything and numbers with each other.
func (a *Analyzer) equality(n *types.ASTNode) {
	l, r := a.typeOf(n.LHS), a.typeOf(n.RHS)
	lk, lok := l.kindSet().single()
	rk, rok := r.kindSet().single()
	if !lok || !rok || lk == rk || lk == KindNil || rk == KindNil {
		return
	}
	if numericKinds.has(lk) && numericKinds.has(rk) {
		return
	}
	a.errors.Addf(types.ErrInvalidTypeOperation, n.Start(),
		"attempt to compare %s with %s", l, r)
}

// logical types 'a and b' and 'a or b' by the operand values they may
// return: 'and' yields a falsy left operand or the right one, 'or' a
// truthy left operand or the right one.
func (a *Analyzer) logical(n *types.ASTNode) *TypeVariable {
	l, r := a.typeOf(n.LHS).root(), a.typeOf(n.RHS).root()
	if l.frozen || r.frozen {
		return newVariable(anyKinds)
	}
	left := l.allowed
	if n.Op == types.OpAnd {
		left &= kinds(KindNil, KindBoolean)
	} else {
		left &^= 1 << KindNil
	}
	if left == 0 {
		return r
	}
	return newVariable(left | r.allowed)
}

// Calls

func (a *Analyzer) call(n *types.ASTNode) *TypeVariable {
	callee := n.LHS
	cv := a.typeOf(callee)
	fn := cv.root().fn

	if fn == nil {
		a.notAFunction(callee, cv)
		return newVariable(anyKinds)
	}

	name := describe(callee)
	if len(n.Arguments) < fn.MinArgs() || (!fn.Variadic && len(n.Arguments) > len(fn.Params)) {
		a.errors.Addf(types.ErrArgumentCountMismatch, n.Start(),
			"%s expects %s, got %d", name, arity(fn), len(n.Arguments))
	}

	for i, arg := range n.Arguments {
		param := fn.ParamAt(i)
		if param == nil {
			break
		}
		av := a.typeOf(arg)
		if !accepts(instantiate(param), av) {
			a.errors.Addf(types.ErrInvalidTypeOperation, arg.Start(),
				"argument %d of %s: expected %s, got %s", i+1, name, typeName(param), av)
		}
	}

	return instantiate(fn.Return)
}

// notAFunction reports a call of something without a known signature.
func (a *Analyzer) notAFunction(callee *types.ASTNode, cv *TypeVariable) {
	if callee.Kind != types.NodeIdentifier {
		if !constrain(cv, 1<<KindFunction) {
			a.errors.Addf(types.ErrNotAFunction, callee.Start(), "attempt to call a %s value", cv)
		}
		return
	}

	name := callee.Value
	if !cv.kindSet().has(KindFunction) {
		a.errors.Addf(types.ErrNotAFunction, callee.Start(), "'%s' is not a function, it is %s", name, cv)
		return
	}

	// A name first seen as a callee is not a variable.
	if a.declarations[name] == callee {
		delete(a.declarations, name)
		delete(a.identifiers, name)
	}
	msg := fmt.Sprintf("unknown function '%s'", name)
	if s := a.suggestion(name); s != "" {
		msg += fmt.Sprintf(", did you mean '%s'?", s)
	}
	a.errors.Add(types.NewError(types.ErrUnknownFunction, msg, callee.Start()).WithToken(name))
}

func describe(n *types.ASTNode) string {
	if n.Kind == types.NodeIdentifier {
		return "'" + n.Value + "'"
	}
	return "function"
}

func arity(fn *Function) string {
	min, max := fn.MinArgs(), len(fn.Params)
	switch {
	case fn.Variadic:
		return fmt.Sprintf("at least %d arguments", min)
	case min == max && max == 1:
		return "1 argument"
	case min == max:
		return fmt.Sprintf("%d arguments", max)
	}
	return fmt.Sprintf("%d to %d arguments", min, max)
}

// Tables

func (a *Analyzer) tableConstructor(n *types.ASTNode) *TypeVariable {
	v := newVariable(1 << KindTable)
	elem := elemOf(v)
	for _, field := range n.Arguments {
		if !unify(elem, a.typeOf(field)) {
			v.root().elem = mixedElements()
			break
		}
	}
	return v
}

func (a *Analyzer) indexing(n *types.ASTNode) *TypeVariable {
	tv := a.typeOf(n.LHS)
	if !constrain(tv, 1<<KindTable) {
		a.errors.Addf(types.ErrInvalidTypeOperation, n.LHS.Start(), "attempt to index a %s value", tv)
		return newVariable(anyKinds)
	}
	return elemOf(tv)
}

// Assignments

func (a *Analyzer) assignment(n *types.ASTNode) *TypeVariable {
	value := a.typeOf(n.RHS)

	switch n.LHS.Kind {
	case types.NodeIdentifier, types.NodeIndexing:
		target := a.typeOf(n.LHS)
		if n.LHS.Kind == types.NodeIdentifier && a.IsIntrinsic(n.LHS.Value) {
			a.errors.Addf(types.ErrLeftSideAssignment, n.LHS.Start(), "cannot assign to function '%s'", n.LHS.Value)
		} else if !assign(target, value) {
			a.errors.Addf(types.ErrInvalidTypeOperation, n.RHS.Start(),
				"cannot assign %s to %s of type %s", value, describeTarget(n.LHS), target)
		}
	case types.NodeError:
	default:
		a.errors.Addf(types.ErrLeftSideAssignment, n.LHS.Start(), "cannot assign to %s", n.LHS.Kind)
	}

	a.checkForUndeclaredIdentifiers(n.RHS)
	return value
}

func describeTarget(n *types.ASTNode) string {
	if n.Kind == types.NodeIdentifier {
		return "'" + n.Value + "'"
	}
	return "table field"
}

// checkForUndeclaredIdentifiers reports identifiers whose first occurrence
// is inside the value of an assignment.
func (a *Analyzer) checkForUndeclaredIdentifiers(value *types.ASTNode) {
	types.Walk(value, func(n *types.ASTNode) {
		if n.Kind == types.NodeIdentifier && a.declarations[n.Value] == n {
			a.errors.Addf(types.ErrUndeclaredIdentifier, n.Start(),
				"identifier '%s' is used before it is declared", n.Value).WithToken(n.Value)
		}
	})
}
