package types

import (
	"fmt"
	"sort"
)

// NodeKind identifies the concrete variant of an AST node.
//
// The set is closed: every consumer (analyzer, evaluator, printer) switches
// over all kinds and reports an internal error for anything it does not know.
type NodeKind uint8

const (
	// NodeError is a placeholder synthesized by the parser where a construct
	// could not be parsed. It carries the diagnostic in Err.
	NodeError NodeKind = iota

	// Literals
	NodeInteger
	NodeFloat
	NodeString
	NodeTrue
	NodeFalse
	NodeNil

	NodeIdentifier

	// Operators (see Op)
	NodeUnary
	NodeBinary

	// Calls
	NodeFunctionCall
	NodeMethodCall

	// Tables
	NodeTableConstructor
	NodeFieldInit
	NodeIndexing

	// Statements
	NodeAssignment
	NodeBlock

	nodeKindCount
)

var nodeKindNames = [...]string{
	NodeError:            "error",
	NodeInteger:          "integer",
	NodeFloat:            "float",
	NodeString:           "string",
	NodeTrue:             "true",
	NodeFalse:            "false",
	NodeNil:              "nil",
	NodeIdentifier:       "identifier",
	NodeUnary:            "unary",
	NodeBinary:           "binary",
	NodeFunctionCall:     "functionCall",
	NodeMethodCall:       "methodCall",
	NodeTableConstructor: "tableConstructor",
	NodeFieldInit:        "fieldInitialization",
	NodeIndexing:         "indexingExpression",
	NodeAssignment:       "assignment",
	NodeBlock:            "block",
}

// String returns the name of the kind.
func (k NodeKind) String() string {
	if k < nodeKindCount {
		return nodeKindNames[k]
	}
	return fmt.Sprintf("NodeKind(%d)", k)
}

// ASTNode is a node of the abstract syntax tree.
//
// Field usage per kind:
//
//	NodeInteger/NodeFloat    Value (lexeme), IntValue / FloatValue
//	NodeString               Value (decoded contents)
//	NodeIdentifier           Value (name)
//	NodeUnary                Op, LHS (operand)
//	NodeBinary               Op, LHS, RHS
//	NodeFunctionCall         LHS (callee), Arguments
//	NodeMethodCall           LHS (object), RHS (method name identifier), Arguments
//	NodeTableConstructor     Arguments (NodeFieldInit initializers)
//	NodeFieldInit            LHS (key, nil for implicit keys), RHS (value)
//	NodeIndexing             LHS (table), RHS (indexer)
//	NodeAssignment           LHS (variable), RHS (value)
//	NodeBlock                Arguments (statements)
//	NodeError                Err
type ASTNode struct {
	ID   NodeID
	Kind NodeKind
	Op   Operator

	Value      string
	IntValue   int64
	FloatValue float64

	LHS       *ASTNode
	RHS       *ASTNode
	Arguments []*ASTNode

	Err *Error

	ranges     []Range    // tokens owned by the node itself
	connected  []*ASTNode // nodes whose tokens also belong to this one
	start, end Connection
	spanned    bool
}

// NodeID is the stable index of a node inside its arena.
type NodeID int32

// Start returns the earliest position covered by the node, or NoConnection.
func (n *ASTNode) Start() Connection {
	if n == nil || !n.spanned {
		return NoConnection
	}
	return n.start
}

// End returns the latest position covered by the node, or NoConnection.
func (n *ASTNode) End() Connection {
	if n == nil || !n.spanned {
		return NoConnection
	}
	return n.end
}

// Ranges returns the ranges of every token that contributed to the node,
// its own and those of connected nodes, sorted by start.
func (n *ASTNode) Ranges() []Range {
	if n == nil {
		return nil
	}
	out := append([]Range(nil), n.ranges...)
	for _, c := range n.connected {
		out = append(out, c.Ranges()...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Start.Before(out[j].Start)
	})
	return out
}

// Connect adds token ranges to the node keeping them sorted by start position.
func (n *ASTNode) Connect(ranges ...Range) {
	for _, r := range ranges {
		if !r.Start.IsValid() {
			continue
		}
		n.ranges = append(n.ranges, r)
		n.cover(r.Start, r.End)
	}
	sort.SliceStable(n.ranges, func(i, j int) bool {
		return n.ranges[i].Start.Before(n.ranges[j].Start)
	})
}

// ConnectNode adds the tokens of other to n. A nil or unconnected other
// is ignored.
func (n *ASTNode) ConnectNode(other *ASTNode) {
	if other == nil || other == n || !other.spanned {
		return
	}
	n.connected = append(n.connected, other)
	n.cover(other.start, other.end)
}

func (n *ASTNode) cover(start, end Connection) {
	if !end.IsValid() || end.Before(start) {
		end = start
	}
	if !n.spanned {
		n.start, n.end, n.spanned = start, end, true
		return
	}
	if start.Before(n.start) {
		n.start = start
	}
	if n.end.Before(end) {
		n.end = end
	}
}

// Children returns the direct children of the node in source order.
// Absent optional children (e.g. the key of an implicit field) are skipped.
func (n *ASTNode) Children() []*ASTNode {
	var out []*ASTNode
	add := func(c *ASTNode) {
		if c != nil {
			out = append(out, c)
		}
	}

	switch n.Kind {
	case NodeUnary:
		add(n.LHS)
	case NodeBinary, NodeFieldInit, NodeIndexing, NodeAssignment:
		add(n.LHS)
		add(n.RHS)
	case NodeFunctionCall:
		add(n.LHS)
		for _, a := range n.Arguments {
			add(a)
		}
	case NodeMethodCall:
		add(n.LHS)
		add(n.RHS)
		for _, a := range n.Arguments {
			add(a)
		}
	case NodeTableConstructor, NodeBlock:
		for _, a := range n.Arguments {
			add(a)
		}
	}
	return out
}

// IsOperator reports whether the node is a unary or binary operation.
func (n *ASTNode) IsOperator() bool {
	return n.Kind == NodeUnary || n.Kind == NodeBinary
}

// String returns a short description of the node for debugging.
func (n *ASTNode) String() string {
	switch n.Kind {
	case NodeUnary, NodeBinary:
		return fmt.Sprintf("%s(%s)", n.Kind, n.Op)
	case NodeIdentifier, NodeInteger, NodeFloat, NodeString:
		return fmt.Sprintf("%s(%s)", n.Kind, n.Value)
	default:
		return n.Kind.String()
	}
}

// Walk visits node and its descendants in post-order: children first, then
// the node itself, mirroring how results are consumed by the printer.
func Walk(node *ASTNode, fn func(*ASTNode)) {
	if node == nil {
		return
	}
	for _, c := range node.Children() {
		Walk(c, fn)
	}
	fn(node)
}

// arenaChunkSize is the number of ASTNode values pre-allocated per arena chunk.
// Property expressions are small; most fit in a single chunk.
const arenaChunkSize = 64

// NodeArena is a bump-pointer allocator for ASTNode values.
//
// Instead of allocating each node individually, the arena pre-allocates
// fixed-size chunks and hands out pointers into them. Every node receives
// the allocation index as its stable ID.
//
// # Lifetime
//
// The arena MUST stay alive as long as any pointer returned by Alloc is
// reachable. Attaching the arena to a [Tree] achieves this: the arena is
// dropped together with the tree, e.g. when a cache entry is superseded.
//
// # Thread safety
//
// NodeArena is NOT thread-safe. Each parse owns its own arena.
type NodeArena struct {
	chunks [][]ASTNode
	pos    int // next free index in the last chunk
	count  int
}

// NewNodeArena allocates an arena pre-warmed with one initial chunk.
func NewNodeArena() *NodeArena {
	return &NodeArena{
		chunks: [][]ASTNode{make([]ASTNode, arenaChunkSize)},
	}
}

// Alloc returns a pointer to a zero-valued ASTNode inside the arena with
// Kind and ID set. Other fields must be filled in by the caller.
func (a *NodeArena) Alloc(kind NodeKind) *ASTNode {
	if a.pos >= arenaChunkSize {
		a.chunks = append(a.chunks, make([]ASTNode, arenaChunkSize))
		a.pos = 0
	}
	n := &a.chunks[len(a.chunks)-1][a.pos]
	a.pos++
	n.Kind = kind
	n.ID = NodeID(a.count)
	a.count++
	return n
}

// Len returns the number of nodes allocated from the arena.
func (a *NodeArena) Len() int {
	if a == nil {
		return 0
	}
	return a.count
}

// Node returns the node with the given id, or nil when out of range.
func (a *NodeArena) Node(id NodeID) *ASTNode {
	if a == nil || id < 0 || int(id) >= a.count {
		return nil
	}
	return &a.chunks[int(id)/arenaChunkSize][int(id)%arenaChunkSize]
}
