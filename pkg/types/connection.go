package types

import "fmt"

// Connection identifies a single point of source text. Besides the position
// inside the text it may carry the owning diagram element id and property
// name, so diagnostics can be routed back to the editor.
type Connection struct {
	Offset   int    // 0-based byte offset, -1 when the connection is absent
	Line     int    // 1-based line
	Column   int    // 1-based column (byte offset in line)
	ID       string // owning element id, empty for one-shot parses
	Property string // owning property name
}

// NoConnection is the sentinel reported by nodes that have no ranges.
var NoConnection = Connection{Offset: -1}

// NewConnection creates a connection without owner information.
func NewConnection(offset, line, column int) Connection {
	return Connection{Offset: offset, Line: line, Column: column}
}

// IsValid reports whether the connection points into source text.
func (c Connection) IsValid() bool {
	return c.Offset >= 0
}

// Before reports whether c starts strictly before o.
func (c Connection) Before(o Connection) bool {
	return c.Offset < o.Offset
}

// WithOwner returns a copy of c bound to the given element and property.
func (c Connection) WithOwner(id, property string) Connection {
	c.ID = id
	c.Property = property
	return c
}

// String returns "line:col", prefixed by "id:property:" when the owner is known.
func (c Connection) String() string {
	if !c.IsValid() {
		return "-"
	}
	if c.ID != "" || c.Property != "" {
		return fmt.Sprintf("%s:%s:%d:%d", c.ID, c.Property, c.Line, c.Column)
	}
	return fmt.Sprintf("%d:%d", c.Line, c.Column)
}

// Range is an inclusive span of source text.
type Range struct {
	Start Connection
	End   Connection
}

// NewRange creates a range spanning start..end.
func NewRange(start, end Connection) Range {
	return Range{Start: start, End: end}
}

// String returns "start-end".
func (r Range) String() string {
	return r.Start.String() + "-" + r.End.String()
}
