package qrtext

import (
	"context"
	"log/slog"
	"slices"

	"github.com/sandrolain/qrtext/pkg/cache"
	"github.com/sandrolain/qrtext/pkg/evaluator"
	"github.com/sandrolain/qrtext/pkg/functions"
	"github.com/sandrolain/qrtext/pkg/parser"
	"github.com/sandrolain/qrtext/pkg/printer"
	"github.com/sandrolain/qrtext/pkg/semantics"
	"github.com/sandrolain/qrtext/pkg/types"
)

// DefaultCacheSize is the number of parsed properties a toolbox keeps.
const DefaultCacheSize = 1024

// Options configures a Toolbox.
type Options struct {
	// CacheSize is the number of parsed properties kept in the cache.
	CacheSize int
	// Logger for structured logging.
	Logger *slog.Logger
	// Intrinsics are registered when the toolbox is created.
	Intrinsics []functions.IntrinsicDef
	// ParseOptions are passed to the parser.
	ParseOptions []parser.ParseOption
	// EvalOptions are passed to the interpreter.
	EvalOptions []evaluator.EvalOption
}

// Option configures a Toolbox.
type Option func(*Options)

// WithCacheSize sets the number of parsed properties kept in the cache.
func WithCacheSize(n int) Option {
	return func(o *Options) {
		o.CacheSize = n
	}
}

// WithLogger sets a custom logger for every phase.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// WithIntrinsics registers intrinsic functions.
func WithIntrinsics(defs ...functions.IntrinsicDef) Option {
	return func(o *Options) {
		o.Intrinsics = append(o.Intrinsics, defs...)
	}
}

// WithParseOptions passes options to the parser.
func WithParseOptions(opts ...parser.ParseOption) Option {
	return func(o *Options) {
		o.ParseOptions = append(o.ParseOptions, opts...)
	}
}

// WithEvalOptions passes options to the interpreter. Intrinsics registered
// this way are not known to the analyzer; use WithIntrinsics instead.
func WithEvalOptions(opts ...evaluator.EvalOption) Option {
	return func(o *Options) {
		o.EvalOptions = append(o.EvalOptions, opts...)
	}
}

// Toolbox is the entry point for working with property texts of a diagram.
//
// It owns the parser, the semantic analyzer and the interpreter, which share
// one error list and one environment of variables. Parsed texts are cached
// per (element id, property) pair: parsing an unchanged text again returns
// the cached tree without re-parsing or re-analyzing it.
//
// A Toolbox is NOT thread-safe.
type Toolbox struct {
	logger    *slog.Logger
	errors    *types.ErrorList
	parser    *parser.Parser
	analyzer  *semantics.Analyzer
	evaluator *evaluator.Evaluator
	cache     *cache.Cache

	// oneShot is the latest tree parsed without an owner.
	oneShot *types.Tree

	specialIdentifiers []string
	specialConstants   []string
}

// New creates a toolbox.
func New(opts ...Option) *Toolbox {
	options := Options{CacheSize: DefaultCacheSize}
	for _, opt := range opts {
		opt(&options)
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}

	t := &Toolbox{
		logger: options.Logger,
		errors: &types.ErrorList{},
	}
	t.parser = parser.NewParser(append([]parser.ParseOption{parser.WithLogger(t.logger)}, options.ParseOptions...)...)
	t.analyzer = semantics.New(t.errors, semantics.WithLogger(t.logger))
	t.evaluator = evaluator.New(t.errors, append([]evaluator.EvalOption{evaluator.WithLogger(t.logger)}, options.EvalOptions...)...)
	t.cache = cache.New(options.CacheSize, cache.WithOnEvict(t.evicted))

	for _, def := range options.Intrinsics {
		if err := t.AddIntrinsicFunction(def); err != nil {
			t.logger.Error("invalid intrinsic", "name", def.Name, "error", err)
		}
	}
	return t
}

// evicted drops the analysis results and the arena of a tree leaving the
// cache.
func (t *Toolbox) evicted(key cache.Key, e *cache.Entry) {
	t.analyzer.Forget(e.Tree.Root())
	e.Tree.Release()
	t.logger.Debug("property evicted", "id", key.Owner, "property", key.Property)
}

// Parse parses and analyzes the text of a property and returns its tree.
//
// Errors of previous calls are cleared. When text equals the text cached for
// (id, property), the cached tree is returned. Otherwise the new tree
// replaces the cached one and the identifiers declared by the old tree are
// forgotten. A text with syntax errors is not cached and is not analyzed:
// the returned tree holds error nodes while AST(id, property) keeps
// returning the last valid tree.
//
// An empty id and property parse a one-shot text, such as a variable
// initializer. One-shot trees are not cached, but the identifiers they
// declare stay in the environment.
func (t *Toolbox) Parse(id, property, text string) *types.Tree {
	t.errors.Clear()

	if id == "" && property == "" {
		return t.parseOneShot(text)
	}

	key := cache.Key{Owner: id, Property: property}
	if e, ok := t.cache.Lookup(key, text); ok {
		if e.Dirty {
			t.analyzer.Forget(e.Tree.Root())
			t.analyzer.Analyze(e.Tree.Root())
			e.Dirty = !t.errors.Empty()
		}
		t.finish(id, property)
		return e.Tree
	}

	tree := t.parser.Parse(text, t.errors)
	if !t.errors.Empty() {
		t.finish(id, property)
		return tree
	}

	e := &cache.Entry{Text: text, Tree: tree}
	t.cache.Set(key, e)
	t.analyzer.Analyze(tree.Root())
	e.Dirty = !t.errors.Empty()
	t.finish(id, property)
	return tree
}

func (t *Toolbox) parseOneShot(text string) *types.Tree {
	tree := t.parser.Parse(text, t.errors)
	if t.errors.Empty() {
		t.analyzer.Analyze(tree.Root())
	}
	if t.oneShot != nil {
		t.analyzer.Release(t.oneShot.Root())
		t.oneShot.Release()
	}
	t.oneShot = tree
	t.finish("", "")
	return tree
}

// finish binds the collected errors to the property and logs internal ones.
func (t *Toolbox) finish(id, property string) {
	t.errors.Stamp(0, id, property)
	for _, e := range t.errors.Errors() {
		if e.Severity == types.SeverityInternal {
			t.logger.Error("internal error",
				"id", e.Connection.ID,
				"property", e.Connection.Property,
				"line", e.Connection.Line,
				"column", e.Connection.Column,
				"error", e.Message)
		}
	}
}

// Interpret evaluates a parsed tree and returns its value.
func (t *Toolbox) Interpret(tree *types.Tree) any {
	return t.InterpretContext(context.Background(), tree)
}

// InterpretContext is like Interpret with a custom context.
func (t *Toolbox) InterpretContext(ctx context.Context, tree *types.Tree) any {
	before := t.errors.Len()
	result := t.evaluator.Interpret(ctx, tree.Root(), t.analyzer)
	if t.errors.Len() > before {
		t.finish("", "")
	}
	return result
}

// InterpretCode parses the text of a property and evaluates it. Texts with
// syntax or type errors are not evaluated and yield nil.
func (t *Toolbox) InterpretCode(id, property, text string) any {
	tree := t.Parse(id, property, text)
	if !t.errors.Empty() {
		return nil
	}
	result := t.evaluator.Interpret(context.Background(), tree.Root(), t.analyzer)
	t.finish(id, property)
	return result
}

// InterpretAs evaluates the text of a property and converts the result to
// T. Integers are converted to float64 or int when T asks for them. The
// boolean is false when the result has another type.
func InterpretAs[T any](t *Toolbox, id, property, text string) (T, bool) {
	v := t.InterpretCode(id, property, text)
	var zero T
	if i, ok := v.(int64); ok {
		switch any(zero).(type) {
		case float64:
			v = float64(i)
		case int:
			v = int(i)
		}
	}
	out, ok := v.(T)
	return out, ok
}

// Type returns the inferred type of node.
func (t *Toolbox) Type(node *types.ASTNode) semantics.Type {
	return t.analyzer.Type(node)
}

// Errors returns the errors of the latest call.
func (t *Toolbox) Errors() []*types.Error {
	return t.errors.Errors()
}

// AST returns the cached tree of a property, or nil.
func (t *Toolbox) AST(id, property string) *types.Tree {
	e, ok := t.cache.Get(cache.Key{Owner: id, Property: property})
	if !ok {
		return nil
	}
	return e.Tree
}

// Release drops the cached tree of a property and the identifiers it
// declared.
func (t *Toolbox) Release(id, property string) {
	t.cache.Invalidate(cache.Key{Owner: id, Property: property})
}

// LiveNodes returns the number of nodes owned by the trees the toolbox
// retains.
func (t *Toolbox) LiveNodes() int {
	n := t.oneShot.Len()
	for _, e := range t.cache.Entries() {
		n += e.Tree.Len()
	}
	return n
}

// Identifiers returns the names of all declared identifiers, intrinsic
// functions included.
func (t *Toolbox) Identifiers() []string {
	return t.analyzer.Identifiers()
}

// VariableTypes returns the inferred types of the declared variables.
func (t *Toolbox) VariableTypes() map[string]semantics.Type {
	return t.analyzer.VariableTypes()
}

// Suggest returns identifiers completing prefix, best matches first.
func (t *Toolbox) Suggest(prefix string) []string {
	return t.analyzer.Suggest(prefix)
}

// AddIntrinsicFunction registers a function callable from code and marks
// its name as special.
func (t *Toolbox) AddIntrinsicFunction(def functions.IntrinsicDef) error {
	if err := def.Validate(); err != nil {
		return err
	}
	sig, err := def.Type()
	if err != nil {
		return err
	}
	t.analyzer.AddIntrinsicFunction(def.Name, sig)
	t.evaluator.AddIntrinsicFunction(def.Name, def.Fn, sig)
	t.MarkAsSpecial(def.Name)
	return nil
}

// MarkAsSpecial marks identifier as provided by the environment rather
// than by the user, such as sensor variables.
func (t *Toolbox) MarkAsSpecial(identifier string) {
	if !slices.Contains(t.specialIdentifiers, identifier) {
		t.specialIdentifiers = append(t.specialIdentifiers, identifier)
	}
}

// MarkAsSpecialConstant marks identifier as special and read-only.
func (t *Toolbox) MarkAsSpecialConstant(identifier string) {
	t.MarkAsSpecial(identifier)
	if !slices.Contains(t.specialConstants, identifier) {
		t.specialConstants = append(t.specialConstants, identifier)
	}
}

// SpecialIdentifiers returns the identifiers marked as special, in
// registration order.
func (t *Toolbox) SpecialIdentifiers() []string {
	return slices.Clone(t.specialIdentifiers)
}

// SpecialConstants returns the identifiers marked as special constants.
func (t *Toolbox) SpecialConstants() []string {
	return slices.Clone(t.specialConstants)
}

// Value returns the current value of a variable, or nil.
func (t *Toolbox) Value(name string) any {
	return t.evaluator.Value(name)
}

// SetVariableValue sets a variable from Go. When the variable is not yet
// known, initCode (e.g. "x = 0") is parsed first to declare it with the
// right type.
func (t *Toolbox) SetVariableValue(name, initCode string, value any) {
	if !slices.Contains(t.evaluator.Identifiers(), name) {
		t.Parse("", "", initCode)
	}
	t.evaluator.SetVariableValue(name, value)
}

// Clear resets the environment of variables, the cache and the special
// identifiers. Intrinsic functions stay registered.
func (t *Toolbox) Clear() {
	t.cache.Clear()
	if t.oneShot != nil {
		t.oneShot.Release()
		t.oneShot = nil
	}
	t.analyzer.Clear()
	t.evaluator.Clear()
	t.errors.Clear()
	t.specialIdentifiers = nil
	t.specialConstants = nil
}

// Printer returns a printer for the given templates that uses the inferred
// types of this toolbox and reports to its error list.
func (t *Toolbox) Printer(templates *printer.TemplateSet, opts ...printer.Option) *printer.Printer {
	base := []printer.Option{printer.WithErrors(t.errors), printer.WithLogger(t.logger)}
	return printer.New(templates, t.analyzer, append(base, opts...)...)
}
