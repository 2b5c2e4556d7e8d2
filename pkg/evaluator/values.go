package evaluator

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/sandrolain/qrtext/pkg/functions"
	"github.com/sandrolain/qrtext/pkg/semantics"
)

// Runtime values are represented by plain Go values:
//
//	nil       nil
//	boolean   bool
//	integer   int64
//	float     float64
//	string    string
//	table     *Table
//	function  *Intrinsic

// Intrinsic is the runtime value of a registered function.
type Intrinsic struct {
	Name string
	Fn   functions.IntrinsicFunc
	Type *semantics.Function // nil when the signature is unknown
}

// String returns "function: name".
func (f *Intrinsic) String() string {
	return "function: " + f.Name
}

// Table is an associative array with Lua semantics: integer-valued float
// keys are normalized to integers, assigning nil removes a key and
// positional elements start at 1. Keys are kept in insertion order.
type Table struct {
	keys   []any
	values map[any]any
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{values: make(map[any]any)}
}

// NewArray creates a table holding values at keys 1..n.
func NewArray(values ...any) *Table {
	t := NewTable()
	for i, v := range values {
		_ = t.Set(int64(i+1), v)
	}
	return t
}

// normalizeKey converts float keys with an integral value to integers.
func normalizeKey(key any) (any, error) {
	switch k := key.(type) {
	case nil:
		return nil, fmt.Errorf("table index is nil")
	case float64:
		if math.IsNaN(k) {
			return nil, fmt.Errorf("table index is NaN")
		}
		if i, ok := floatToInteger(k); ok {
			return i, nil
		}
	}
	return key, nil
}

// Get returns the value stored under key, or nil.
func (t *Table) Get(key any) any {
	k, err := normalizeKey(key)
	if err != nil {
		return nil
	}
	return t.values[k]
}

// Set stores value under key. A nil value removes the key.
func (t *Table) Set(key, value any) error {
	k, err := normalizeKey(key)
	if err != nil {
		return err
	}
	if !isHashable(k) {
		return fmt.Errorf("invalid table key of type %s", TypeName(k))
	}

	_, exists := t.values[k]
	switch {
	case value == nil && exists:
		delete(t.values, k)
		for i, existing := range t.keys {
			if existing == k {
				t.keys = append(t.keys[:i], t.keys[i+1:]...)
				break
			}
		}
	case value == nil:
	case exists:
		t.values[k] = value
	default:
		t.keys = append(t.keys, k)
		t.values[k] = value
	}
	return nil
}

// Len returns the border of the table: the largest n such that keys
// 1..n are all present.
func (t *Table) Len() int64 {
	var n int64
	for {
		if _, ok := t.values[n+1]; !ok {
			return n
		}
		n++
	}
}

// Keys returns the keys in insertion order.
func (t *Table) Keys() []any {
	out := make([]any, len(t.keys))
	copy(out, t.keys)
	return out
}

// Array returns the positional elements 1..Len.
func (t *Table) Array() []any {
	n := t.Len()
	out := make([]any, n)
	for i := int64(0); i < n; i++ {
		out[i] = t.values[i+1]
	}
	return out
}

// String renders the table as a constructor, e.g. {1, 2, x = 3}. A table
// nested inside itself is rendered as <cycle>.
func (t *Table) String() string {
	return t.format(nil)
}

func (t *Table) format(seen map[*Table]bool) string {
	if seen[t] {
		return cycleMarker
	}
	if seen == nil {
		seen = make(map[*Table]bool)
	}
	seen[t] = true
	defer delete(seen, t)

	var parts []string
	n := t.Len()
	for i := int64(1); i <= n; i++ {
		parts = append(parts, literal(t.values[i], seen))
	}
	for _, k := range t.keys {
		if i, ok := k.(int64); ok && i >= 1 && i <= n {
			continue
		}
		if s, ok := k.(string); ok && isName(s) {
			parts = append(parts, s+" = "+literal(t.values[k], seen))
		} else {
			parts = append(parts, "["+literal(k, seen)+"] = "+literal(t.values[k], seen))
		}
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

const cycleMarker = "<cycle>"

func isHashable(k any) bool {
	switch k.(type) {
	case bool, int64, float64, string, *Table, *Intrinsic:
		return true
	}
	return false
}

func isName(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if r != '_' && !(r >= 'a' && r <= 'z') && !(r >= 'A' && r <= 'Z') && (i == 0 || !(r >= '0' && r <= '9')) {
			return false
		}
	}
	switch s {
	case "and", "or", "not", "nil", "true", "false":
		return false
	}
	return true
}

// literal renders v the way it would be written in code.
func literal(v any, seen map[*Table]bool) string {
	switch x := v.(type) {
	case string:
		return strconv.Quote(x)
	case *Table:
		return x.format(seen)
	}
	return FormatValue(v)
}

// TypeName returns the kind name of a runtime value.
func TypeName(v any) string {
	switch v.(type) {
	case nil:
		return "nil"
	case bool:
		return "boolean"
	case int64:
		return "integer"
	case float64:
		return "float"
	case string:
		return "string"
	case *Table:
		return "table"
	case *Intrinsic:
		return "function"
	}
	return fmt.Sprintf("%T", v)
}

// FormatValue converts a runtime value to text the way Lua's tostring does.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "nil"
	case bool:
		return strconv.FormatBool(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return formatFloat(x)
	case string:
		return x
	case *Table:
		return x.String()
	case *Intrinsic:
		return x.String()
	}
	return fmt.Sprint(v)
}

func formatFloat(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	case math.IsNaN(f):
		return "nan"
	}
	s := strconv.FormatFloat(f, 'g', 14, 64)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}

// Truthy reports whether v counts as true in conditions: everything
// except nil and false.
func Truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	}
	return true
}

// floatToInteger converts f to an integer if it has an exact integer value.
func floatToInteger(f float64) (int64, bool) {
	if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

// FromGo converts a Go value into a runtime value. Integer and float kinds
// are widened to int64 and float64; slices and string-keyed maps become tables.
func FromGo(v any) any {
	switch x := v.(type) {
	case nil, bool, int64, float64, string, *Table, *Intrinsic:
		return v
	case int:
		return int64(x)
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case uint:
		return FromGo(uint64(x))
	case uint8:
		return int64(x)
	case uint16:
		return int64(x)
	case uint32:
		return int64(x)
	case uint64:
		if x > math.MaxInt64 {
			return float64(x)
		}
		return int64(x)
	case float32:
		return float64(x)
	case []any:
		t := NewTable()
		for i, e := range x {
			_ = t.Set(int64(i+1), FromGo(e))
		}
		return t
	case []string:
		t := NewTable()
		for i, e := range x {
			_ = t.Set(int64(i+1), e)
		}
		return t
	case []float64:
		t := NewTable()
		for i, e := range x {
			_ = t.Set(int64(i+1), e)
		}
		return t
	case []int64:
		t := NewTable()
		for i, e := range x {
			_ = t.Set(int64(i+1), e)
		}
		return t
	case map[string]any:
		t := NewTable()
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			_ = t.Set(k, FromGo(x[k]))
		}
		return t
	}
	return v
}

// ToGo converts a runtime value into plain Go data: tables whose keys are
// exactly 1..n become []any, other tables map[string]any. A table nested
// inside itself becomes the string "<cycle>".
func ToGo(v any) any {
	return toGo(v, make(map[*Table]bool))
}

func toGo(v any, seen map[*Table]bool) any {
	switch x := v.(type) {
	case *Table:
		if seen[x] {
			return cycleMarker
		}
		seen[x] = true
		defer delete(seen, x)

		if n := x.Len(); n == int64(len(x.keys)) {
			out := make([]any, n)
			for i, e := range x.Array() {
				out[i] = toGo(e, seen)
			}
			return out
		}
		out := make(map[string]any, len(x.keys))
		for _, k := range x.keys {
			out[FormatValue(k)] = toGo(x.values[k], seen)
		}
		return out
	case *Intrinsic:
		return x.String()
	}
	return v
}
