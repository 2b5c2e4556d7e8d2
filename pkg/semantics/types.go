package semantics

import (
	"sort"
	"strings"
)

// Kind is a basic classification of values.
type Kind uint8

const (
	KindBoolean Kind = iota
	KindInteger
	KindFloat
	KindString
	KindNil
	KindTable
	KindFunction

	kindCount
)

var kindNames = [kindCount]string{
	KindBoolean:  "boolean",
	KindInteger:  "integer",
	KindFloat:    "float",
	KindString:   "string",
	KindNil:      "nil",
	KindTable:    "table",
	KindFunction: "function",
}

func (k Kind) String() string {
	if k < kindCount {
		return kindNames[k]
	}
	return "unknown"
}

// kindSet is a bit set of kinds a type variable may still take.
type kindSet uint8

const (
	anyKinds        kindSet = 1<<kindCount - 1
	numericKinds    kindSet = 1<<KindInteger | 1<<KindFloat
	comparableKinds kindSet = numericKinds | 1<<KindString
)

func kinds(ks ...Kind) kindSet {
	var s kindSet
	for _, k := range ks {
		s |= 1 << k
	}
	return s
}

func (s kindSet) has(k Kind) bool { return s&(1<<k) != 0 }

// single returns the only kind of s, if s has exactly one.
func (s kindSet) single() (Kind, bool) {
	for k := Kind(0); k < kindCount; k++ {
		if s == 1<<k {
			return k, true
		}
	}
	return 0, false
}

func (s kindSet) list() []Kind {
	var out []Kind
	for k := Kind(0); k < kindCount; k++ {
		if s.has(k) {
			out = append(out, k)
		}
	}
	return out
}

// Type is the static type of an expression: a *Basic, *Table, *Function,
// or an unresolved *TypeVariable.
type Type interface {
	String() string
	kindSet() kindSet
}

// Basic is a scalar type.
type Basic struct {
	kind Kind
}

// The scalar types.
var (
	Boolean = &Basic{KindBoolean}
	Integer = &Basic{KindInteger}
	Float   = &Basic{KindFloat}
	String  = &Basic{KindString}
	Nil     = &Basic{KindNil}
)

// BasicOf returns the scalar type of k, or nil for tables and functions.
func BasicOf(k Kind) *Basic {
	switch k {
	case KindBoolean:
		return Boolean
	case KindInteger:
		return Integer
	case KindFloat:
		return Float
	case KindString:
		return String
	case KindNil:
		return Nil
	}
	return nil
}

// Kind returns the kind of the scalar.
func (b *Basic) Kind() Kind       { return b.kind }
func (b *Basic) String() string   { return b.kind.String() }
func (b *Basic) kindSet() kindSet { return 1 << b.kind }

// Table is the type of a table whose values have type Elem.
type Table struct {
	Elem Type
}

func (t *Table) String() string {
	if b, ok := t.Elem.(*Basic); ok {
		return "table of " + b.String()
	}
	return "table"
}

func (t *Table) kindSet() kindSet { return 1 << KindTable }

// Function is the type of an intrinsic function. The last Optional
// parameters may be omitted; a Variadic function accepts any number of
// trailing arguments of the last parameter's type.
type Function struct {
	Return   Type
	Params   []Type
	Optional int
	Variadic bool
}

func (f *Function) String() string {
	var sb strings.Builder
	sb.WriteString("function(")
	for i, p := range f.Params {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(typeName(p))
		if i >= len(f.Params)-f.Optional {
			sb.WriteString("?")
		}
	}
	if f.Variadic {
		sb.WriteString("...")
	}
	sb.WriteString("): ")
	sb.WriteString(typeName(f.Return))
	return sb.String()
}

func (f *Function) kindSet() kindSet { return 1 << KindFunction }

// MinArgs returns the number of mandatory parameters.
func (f *Function) MinArgs() int {
	return len(f.Params) - f.Optional
}

// ParamAt returns the parameter type for argument i, or nil when i is out of range.
func (f *Function) ParamAt(i int) Type {
	switch {
	case i < len(f.Params):
		return f.Params[i]
	case f.Variadic && len(f.Params) > 0:
		return f.Params[len(f.Params)-1]
	}
	return nil
}

func typeName(t Type) string {
	if t == nil {
		return "nil"
	}
	return t.String()
}

// TypeVariable stands for a type that is not fully known yet. It holds the
// set of kinds still possible; variables unified with each other share one
// representative (union-find).
type TypeVariable struct {
	parent  *TypeVariable
	allowed kindSet
	elem    *TypeVariable // element type while the variable may be a table
	fn      *Function     // signature of a known function
	frozen  bool          // accepts every constraint without narrowing
}

// NewTypeVariable returns a variable that may take any of the given kinds,
// or any kind at all when none are given.
func NewTypeVariable(ks ...Kind) *TypeVariable {
	if len(ks) == 0 {
		return newVariable(anyKinds)
	}
	return newVariable(kinds(ks...))
}

// Any returns a fresh unconstrained variable.
func Any() *TypeVariable {
	return newVariable(anyKinds)
}

func newVariable(s kindSet) *TypeVariable {
	return &TypeVariable{allowed: s}
}

// elemOf returns the element type of a variable that may be a table.
func elemOf(v *TypeVariable) *TypeVariable {
	r := v.root()
	if r.elem == nil {
		r.elem = newVariable(anyKinds)
	}
	return r.elem
}

// root returns the representative of v, compressing the path on the way.
func (v *TypeVariable) root() *TypeVariable {
	r := v
	for r.parent != nil {
		r = r.parent
	}
	for v.parent != nil {
		next := v.parent
		v.parent = r
		v = next
	}
	return r
}

func (v *TypeVariable) kindSet() kindSet { return v.root().allowed }

// Kinds returns the kinds the variable may still take.
func (v *TypeVariable) Kinds() []Kind {
	return v.root().allowed.list()
}

// IsResolved reports whether exactly one kind is left.
func (v *TypeVariable) IsResolved() bool {
	_, ok := v.root().allowed.single()
	return ok
}

// Resolve returns the concrete type when the variable is resolved, or the
// representative variable otherwise.
func (v *TypeVariable) Resolve() Type {
	r := v.root()
	k, ok := r.allowed.single()
	if !ok {
		return r
	}
	switch k {
	case KindTable:
		t := &Table{}
		if r.elem != nil && r.elem.root() != r {
			t.Elem = r.elem.root().resolveShallow()
		}
		return t
	case KindFunction:
		if r.fn != nil {
			return r.fn
		}
		return &Function{Return: Any(), Variadic: true, Params: []Type{Any()}, Optional: 1}
	}
	return BasicOf(k)
}

// resolveShallow resolves scalars only, so self-referencing tables terminate.
func (v *TypeVariable) resolveShallow() Type {
	if k, ok := v.allowed.single(); ok {
		if b := BasicOf(k); b != nil {
			return b
		}
	}
	return v
}

func (v *TypeVariable) String() string {
	r := v.root()
	if r.allowed == anyKinds || r.frozen {
		return "any"
	}
	if _, ok := r.allowed.single(); ok {
		return r.Resolve().String()
	}
	names := make([]string, 0, kindCount)
	for _, k := range r.allowed.list() {
		names = append(names, k.String())
	}
	return "one of " + strings.Join(names, ", ")
}

// constrain narrows v to the kinds in s. It reports false, leaving v
// untouched, when no kind would be left.
func constrain(v *TypeVariable, s kindSet) bool {
	r := v.root()
	if r.frozen {
		return true
	}
	narrowed := r.allowed & s
	if narrowed == 0 {
		return false
	}
	r.allowed = narrowed
	if !narrowed.has(KindTable) {
		r.elem = nil
	}
	if !narrowed.has(KindFunction) {
		r.fn = nil
	}
	return true
}

// unify merges a and b into one variable. It reports false, leaving both
// untouched, when they have no kind in common.
func unify(a, b *TypeVariable) bool {
	ra, rb := a.root(), b.root()
	if ra == rb || ra.frozen || rb.frozen {
		return true
	}
	common := ra.allowed & rb.allowed
	if common == 0 {
		return false
	}

	ra.parent = rb
	rb.allowed = common
	if rb.fn == nil {
		rb.fn = ra.fn
	}
	if common.has(KindTable) {
		switch {
		case rb.elem == nil:
			rb.elem = ra.elem
		case ra.elem != nil && !unify(ra.elem, rb.elem):
			rb.elem = mixedElements()
		}
	} else {
		rb.elem = nil
	}
	if !common.has(KindFunction) {
		rb.fn = nil
	}
	return true
}

// assign flows a value of type value into a slot of type target. Numbers
// of different kinds widen the slot to float.
func assign(target, value *TypeVariable) bool {
	if unify(target, value) {
		return true
	}
	t, v := target.root(), value.root()
	if t.allowed&^numericKinds == 0 && v.allowed&^numericKinds == 0 {
		t.allowed = 1 << KindFloat
		return true
	}
	return false
}

// accepts reports whether an argument of type arg may be passed for a
// parameter of type param. Integers are accepted where floats are expected.
func accepts(param, arg *TypeVariable) bool {
	if unify(param, arg) {
		return true
	}
	return param.root().allowed.has(KindFloat) && arg.root().allowed == 1<<KindInteger
}

// mixedElements is the element type of tables holding values of
// different kinds.
func mixedElements() *TypeVariable {
	v := newVariable(anyKinds)
	v.frozen = true
	return v
}

// instantiate returns a fresh variable for a declared type.
func instantiate(t Type) *TypeVariable {
	switch t := t.(type) {
	case nil:
		return newVariable(anyKinds)
	case *Basic:
		return newVariable(1 << t.kind)
	case *Table:
		v := newVariable(1 << KindTable)
		v.elem = instantiate(t.Elem)
		return v
	case *Function:
		v := newVariable(1 << KindFunction)
		v.fn = t
		return v
	case *TypeVariable:
		r := t.root()
		v := newVariable(r.allowed)
		v.frozen = r.frozen
		return v
	}
	return newVariable(anyKinds)
}

// Is reports whether t is resolved to kind k.
func Is(t Type, k Kind) bool {
	if t == nil {
		return false
	}
	s := t.kindSet()
	if v, ok := t.(*TypeVariable); ok && v.root().frozen {
		return false
	}
	return s == 1<<k
}

// IsNumeric reports whether t can only be an integer or a float.
func IsNumeric(t Type) bool {
	if t == nil {
		return false
	}
	s := t.kindSet()
	return s != 0 && s&^numericKinds == 0
}

// sortedKeys returns the keys of m in lexical order.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
