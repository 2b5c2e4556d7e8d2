// Package types defines the core data model of qrtext.
//
// This package contains type definitions for:
//   - Connection and Range: source positions bound to diagram elements
//   - ASTNode: Abstract Syntax Tree nodes with a closed set of kinds
//   - Operator: unary and binary operators with precedence and associativity
//   - NodeArena and Tree: arena-backed ownership of parsed trees
//   - Error and ErrorList: structured diagnostics with codes and severities
package types

// Tree is the result of a parse: the root node plus the arena that owns
// every node reachable from it.
//
// A Tree is immutable once returned by the parser. Analysis results and
// interpreter state are kept outside of it, keyed by node.
type Tree struct {
	root       *ASTNode
	arena      *NodeArena
	source     string
	generation uint64
}

// NewTree wraps a parsed root.
func NewTree(root *ASTNode, arena *NodeArena, source string, generation uint64) *Tree {
	return &Tree{
		root:       root,
		arena:      arena,
		source:     source,
		generation: generation,
	}
}

// Root returns the root node, or nil for a released tree.
func (t *Tree) Root() *ASTNode {
	if t == nil {
		return nil
	}
	return t.root
}

// Source returns the text the tree was parsed from.
func (t *Tree) Source() string {
	return t.source
}

// Generation returns the number of the parse that produced the tree.
// Each parse performed by a toolbox gets a new, increasing generation.
func (t *Tree) Generation() uint64 {
	return t.generation
}

// Len returns the number of nodes owned by the tree.
func (t *Tree) Len() int {
	if t == nil {
		return 0
	}
	return t.arena.Len()
}

// Released reports whether Release has been called.
func (t *Tree) Released() bool {
	return t.arena == nil
}

// Release drops the tree's ownership of its nodes. Nodes still referenced
// elsewhere stay valid memory but are no longer counted by Len.
func (t *Tree) Release() {
	t.root = nil
	t.arena = nil
}

// String returns the source text.
func (t *Tree) String() string {
	return t.source
}
