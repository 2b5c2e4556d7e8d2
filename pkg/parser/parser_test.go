package parser_test

import (
	"strings"
	"testing"

	"github.com/sandrolain/qrtext/pkg/parser"
	"github.com/sandrolain/qrtext/pkg/types"
)

// Helper functions

func parseOK(t *testing.T, input string) *types.ASTNode {
	t.Helper()
	var errs types.ErrorList
	tree := parser.Parse(input, &errs)
	if !errs.Empty() {
		t.Fatalf("Failed to parse %q: %v", input, errs.Err())
	}
	return tree.Root()
}

func parseErrors(t *testing.T, input string) (*types.ASTNode, []*types.Error) {
	t.Helper()
	var errs types.ErrorList
	tree := parser.Parse(input, &errs)
	if tree == nil || tree.Root() == nil {
		t.Fatalf("Parse(%q) returned no tree", input)
	}
	return tree.Root(), errs.Errors()
}

// sexpr renders a tree in a compact prefix form used to compare shapes.
func sexpr(n *types.ASTNode) string {
	if n == nil {
		return "_"
	}
	switch n.Kind {
	case types.NodeInteger, types.NodeFloat, types.NodeIdentifier:
		return n.Value
	case types.NodeString:
		return `"` + n.Value + `"`
	case types.NodeTrue, types.NodeFalse, types.NodeNil:
		return n.Kind.String()
	case types.NodeError:
		return "<error>"
	case types.NodeUnary:
		return "(" + n.Op.Symbol() + " " + sexpr(n.LHS) + ")"
	case types.NodeBinary:
		return "(" + n.Op.Symbol() + " " + sexpr(n.LHS) + " " + sexpr(n.RHS) + ")"
	case types.NodeAssignment:
		return "(= " + sexpr(n.LHS) + " " + sexpr(n.RHS) + ")"
	case types.NodeIndexing:
		return "(index " + sexpr(n.LHS) + " " + sexpr(n.RHS) + ")"
	case types.NodeFieldInit:
		return "(field " + sexpr(n.LHS) + " " + sexpr(n.RHS) + ")"
	}

	var parts []string
	switch n.Kind {
	case types.NodeFunctionCall:
		parts = append(parts, "call", sexpr(n.LHS))
	case types.NodeMethodCall:
		parts = append(parts, "method", sexpr(n.LHS), sexpr(n.RHS))
	case types.NodeTableConstructor:
		parts = append(parts, "table")
	case types.NodeBlock:
		parts = append(parts, "block")
	}
	for _, a := range n.Arguments {
		parts = append(parts, sexpr(a))
	}
	return "(" + strings.Join(parts, " ") + ")"
}

// Literal tests

func TestParseLiterals(t *testing.T) {
	tests := []struct {
		name  string
		input string
		kind  types.NodeKind
	}{
		{"integer", "42", types.NodeInteger},
		{"hex integer", "0xff", types.NodeInteger},
		{"float", "3.14", types.NodeFloat},
		{"scientific", "1e10", types.NodeFloat},
		{"string", `"hello"`, types.NodeString},
		{"long string", `[[hello]]`, types.NodeString},
		{"true", "true", types.NodeTrue},
		{"false", "false", types.NodeFalse},
		{"nil", "nil", types.NodeNil},
		{"identifier", "speed", types.NodeIdentifier},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node := parseOK(t, tt.input)
			if node.Kind != tt.kind {
				t.Errorf("Expected node kind %s, got %s", tt.kind, node.Kind)
			}
		})
	}
}

func TestParseNumberValues(t *testing.T) {
	if n := parseOK(t, "0x10"); n.IntValue != 16 {
		t.Errorf("0x10 = %d", n.IntValue)
	}
	if n := parseOK(t, "123"); n.IntValue != 123 {
		t.Errorf("123 = %d", n.IntValue)
	}
	if n := parseOK(t, "2.5"); n.FloatValue != 2.5 {
		t.Errorf("2.5 = %g", n.FloatValue)
	}
	n := parseOK(t, "99999999999999999999")
	if n.Kind != types.NodeFloat || n.FloatValue != 1e20 {
		t.Errorf("overflowing integer should become float, got %s %g", n.Kind, n.FloatValue)
	}
}

func TestParsePrecedence(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"1 + 2 * 3", "(+ 1 (* 2 3))"},
		{"(1 + 2) * 3", "(* (+ 1 2) 3)"},
		{"1 - 2 - 3", "(- (- 1 2) 3)"},
		{"2 ^ 3 ^ 2", "(^ 2 (^ 3 2))"},
		{`"a" .. "b" .. "c"`, `(.. "a" (.. "b" "c"))`},
		{"-x ^ 2", "(- (^ x 2))"},
		{"-x + 1", "(+ (- x) 1)"},
		{"not a == b", "(== (not a) b)"},
		{"a or b and c", "(or a (and b c))"},
		{"a < b or c >= d", "(or (< a b) (>= c d))"},
		{"1 | 2 ~ 3 & 4", "(| 1 (~ 2 (& 3 4)))"},
		{"1 << 2 + 3", "(<< 1 (+ 2 3))"},
		{"a .. b == c", "(== (.. a b) c)"},
		{"#t + 1", "(+ (# t) 1)"},
		{"~x", "(~ x)"},
		{"7 // 2 % 3", "(% (// 7 2) 3)"},
		{"a && b || !c", "(or (and a b) (not c))"},
		{"a != b", "(~= a b)"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := sexpr(parseOK(t, tt.input)); got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestParseSuffixes(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"f()", "(call f)"},
		{"f(1, 2)", "(call f 1 2)"},
		{"a.b", `(index a "b")`},
		{"a[1]", "(index a 1)"},
		{"a.b[c].d", `(index (index (index a "b") c) "d")`},
		{"obj:move(1)", "(method obj move 1)"},
		{"f(x)(y)", "(call (call f x) y)"},
		{"(f)(1)", "(call f 1)"},
		{"sensors[1]:read()", "(method (index sensors 1) read)"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := sexpr(parseOK(t, tt.input)); got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestParseTableConstructors(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"{}", "(table)"},
		{"{1, 2, 3}", "(table (field _ 1) (field _ 2) (field _ 3))"},
		{"{x = 1; y = 2,}", `(table (field "x" 1) (field "y" 2))`},
		{`{["k"] = true, 5}`, `(table (field "k" true) (field _ 5))`},
		{"{{1}, {}}", "(table (field _ (table (field _ 1))) (field _ (table)))"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := sexpr(parseOK(t, tt.input)); got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestParseStatements(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"", "(block)"},
		{"x = 1", "(= x 1)"},
		{"a.b = c", `(= (index a "b") c)`},
		{"x = 1; y = 2", "(block (= x 1) (= y 2))"},
		{"x = 1\ny = x + 1", "(block (= x 1) (= y (+ x 1)))"},
		{"f(1) g(2)", "(block (call f 1) (call g 2))"},
		{";;x;;", "x"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := sexpr(parseOK(t, tt.input)); got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestParseRanges(t *testing.T) {
	root := parseOK(t, "x = 10 + y")
	if root.Start().Offset != 0 || root.End().Offset != 9 {
		t.Errorf("assignment spans %s", root.Start())
	}
	sum := root.RHS
	if sum.Start().Offset != 4 || sum.End().Offset != 9 {
		t.Errorf("sum spans %d..%d", sum.Start().Offset, sum.End().Offset)
	}
	if lit := sum.LHS; lit.Start().Column != 5 || lit.End().Offset != 5 {
		t.Errorf("literal spans %d..%d", lit.Start().Offset, lit.End().Offset)
	}
}

func TestParseTokenRanges(t *testing.T) {
	tests := []string{
		"t[1] = f(a, b)",
		"(1 + 2) * -3",
		"x = {1; y = 2, [k] = v}",
		"s:sub(1).len",
		"a = 1; b = 2",
	}

	for _, input := range tests {
		t.Run(input, func(t *testing.T) {
			root := parseOK(t, input)
			var text strings.Builder
			ranges := root.Ranges()
			for i, r := range ranges {
				if i > 0 && r.Start.Before(ranges[i-1].Start) {
					t.Fatalf("ranges not sorted: %v", ranges)
				}
				text.WriteString(input[r.Start.Offset : r.End.Offset+1])
			}
			want := strings.NewReplacer(" ", "", ";", "").Replace(input)
			if strings.Contains(input, "= {") {
				want = strings.ReplaceAll(input, " ", "")
			}
			if got := text.String(); got != want {
				t.Errorf("tokens %q, want %q", got, want)
			}
			if root.Start() != ranges[0].Start || root.End() != ranges[len(ranges)-1].End {
				t.Errorf("span %s..%s does not match ranges %v", root.Start(), root.End(), ranges)
			}
		})
	}
}

// Incorrect input tests

func TestParseIncorrectInput(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		errors int
		code   types.ErrorCode
	}{
		{"triple pipe", "true ||| false", 1, types.ErrExpectedToken},
		{"comma in index", "a[i, j]", 1, types.ErrExpectedToken},
		{"missing operand", "1 +", 1, types.ErrUnexpectedEnd},
		{"missing paren", "f(1, 2", 1, types.ErrUnexpectedEnd},
		{"unclosed table", "{1, 2", 1, types.ErrUnexpectedEnd},
		{"stray paren", ")", 1, types.ErrUnexpectedToken},
		{"empty parens", "()", 1, types.ErrExpectedToken},
		{"missing method args", "a:b", 1, types.ErrUnexpectedEnd},
		{"bad field key", "{[1 = 2}", 1, types.ErrExpectedToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, errs := parseErrors(t, tt.input)
			if len(errs) != tt.errors {
				t.Fatalf("expected %d errors, got %d: %v", tt.errors, len(errs), errs)
			}
			if errs[0].Code != tt.code {
				t.Errorf("expected code %s, got %s (%s)", tt.code, errs[0].Code, errs[0].Message)
			}
			if errs[0].Severity != types.SeveritySyntax {
				t.Errorf("expected syntax severity, got %s", errs[0].Severity)
			}
		})
	}
}

func TestParseRecoversAtStatementBoundary(t *testing.T) {
	root, errs := parseErrors(t, "x = (1 +\ny = 2 ; z = 3")
	if len(errs) == 0 {
		t.Fatal("expected errors")
	}
	if root.Kind != types.NodeBlock {
		t.Fatalf("expected block, got %s", root.Kind)
	}
	last := root.Arguments[len(root.Arguments)-1]
	if sexpr(last) != "(= z 3)" {
		t.Errorf("statement after ';' not recovered: %s", sexpr(last))
	}
}

func TestParseReportsSeveralStatements(t *testing.T) {
	_, errs := parseErrors(t, "a = )\nb = ]\nc = 1")
	if len(errs) != 2 {
		t.Fatalf("expected one error per broken line, got %d: %v", len(errs), errs)
	}
	if errs[0].Connection.Line != 1 || errs[1].Connection.Line != 2 {
		t.Errorf("errors at lines %d and %d", errs[0].Connection.Line, errs[1].Connection.Line)
	}
}

func TestParseErrorNodes(t *testing.T) {
	root, _ := parseErrors(t, "1 + ")
	if root.Kind != types.NodeBinary || root.RHS.Kind != types.NodeError {
		t.Fatalf("expected binary with error operand, got %s", sexpr(root))
	}
	if root.RHS.Err == nil {
		t.Error("error node should carry its diagnostic")
	}
}

func TestParseMaxDepth(t *testing.T) {
	input := strings.Repeat("(", 50) + "1" + strings.Repeat(")", 50)

	var errs types.ErrorList
	parser.Parse(input, &errs, parser.WithMaxDepth(10))
	if errs.Len() != 1 || errs.Errors()[0].Code != types.ErrTooDeep {
		t.Fatalf("expected single depth error, got %v", errs.Err())
	}

	errs.Clear()
	parser.Parse(input, &errs)
	if !errs.Empty() {
		t.Fatalf("default depth should allow 50 levels: %v", errs.Err())
	}
}

func TestParseMaxErrors(t *testing.T) {
	input := strings.Repeat("x = )\n", 10)

	var errs types.ErrorList
	parser.Parse(input, &errs, parser.WithMaxErrors(3))
	if errs.Len() != 4 {
		t.Fatalf("expected 3 errors plus the limit notice, got %d", errs.Len())
	}
	if errs.Last().Code != types.ErrTooManyErrors {
		t.Errorf("last error: %s", errs.Last().Code)
	}
}

func TestParseGenerationAndNodes(t *testing.T) {
	var errs types.ErrorList
	a := parser.Parse("x = 1 + 2", &errs)
	b := parser.Parse("x = 1 + 2", &errs)
	if b.Generation() <= a.Generation() {
		t.Errorf("generations not increasing: %d, %d", a.Generation(), b.Generation())
	}
	if a.Len() != 5 {
		t.Errorf("expected 5 nodes, got %d", a.Len())
	}

	seen := map[types.NodeID]bool{}
	types.Walk(a.Root(), func(n *types.ASTNode) {
		if seen[n.ID] {
			t.Errorf("duplicate node id %d", n.ID)
		}
		seen[n.ID] = true
	})
	if len(seen) != a.Len() {
		t.Errorf("walk visited %d of %d nodes", len(seen), a.Len())
	}
}
