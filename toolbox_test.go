package qrtext_test

import (
	"bytes"
	"log/slog"
	"reflect"
	"slices"
	"strings"
	"testing"

	"github.com/sandrolain/qrtext"
	"github.com/sandrolain/qrtext/pkg/evaluator"
	"github.com/sandrolain/qrtext/pkg/ext"
	"github.com/sandrolain/qrtext/pkg/ext/extnumeric"
	"github.com/sandrolain/qrtext/pkg/printer"
	"github.com/sandrolain/qrtext/pkg/semantics"
	"github.com/sandrolain/qrtext/pkg/types"
)

func TestToolbox_ParseCachesTree(t *testing.T) {
	tb := qrtext.New()

	first := tb.Parse("block1", "condition", "x = 1")
	if len(tb.Errors()) != 0 {
		t.Fatalf("unexpected errors: %v", tb.Errors())
	}
	second := tb.Parse("block1", "condition", "x = 1")
	if first != second {
		t.Error("unchanged text should return the cached tree")
	}
	if tb.AST("block1", "condition") != first {
		t.Error("AST should return the cached tree")
	}

	other := tb.Parse("block2", "condition", "x = 1")
	if other == first {
		t.Error("another property should get its own tree")
	}
}

func TestToolbox_TextChangeForgetsDeclarations(t *testing.T) {
	tb := qrtext.New()

	tb.Parse("block1", "value", "alpha = 1")
	if !slices.Contains(tb.Identifiers(), "alpha") {
		t.Fatalf("alpha not declared: %v", tb.Identifiers())
	}

	tb.Parse("block1", "value", "beta = 2")
	ids := tb.Identifiers()
	if slices.Contains(ids, "alpha") {
		t.Errorf("alpha should be forgotten: %v", ids)
	}
	if !slices.Contains(ids, "beta") {
		t.Errorf("beta not declared: %v", ids)
	}
}

func TestToolbox_SyntaxErrorKeepsLastTree(t *testing.T) {
	tb := qrtext.New()

	valid := tb.Parse("block1", "value", "x = 1")
	broken := tb.Parse("block1", "value", "x = = 2")

	errs := tb.Errors()
	if len(errs) == 0 {
		t.Fatal("expected syntax errors")
	}
	for _, e := range errs {
		if e.Connection.ID != "block1" || e.Connection.Property != "value" {
			t.Errorf("error not bound to its property: %+v", e.Connection)
		}
		if e.Severity != types.SeveritySyntax {
			t.Errorf("severity = %s", e.Severity)
		}
	}
	if broken == valid || broken.Source() != "x = = 2" {
		t.Error("the erroneous tree should be returned")
	}
	if got := tb.AST("block1", "value"); got != valid {
		t.Errorf("AST = %v, want the last valid tree", got)
	}
}

func TestToolbox_SemanticErrorsReportedAgain(t *testing.T) {
	tb := qrtext.New()

	tb.Parse("block1", "value", "y = missing + 1")
	if len(tb.Errors()) != 1 || tb.Errors()[0].Code != types.ErrUndeclaredIdentifier {
		t.Fatalf("errors = %v", tb.Errors())
	}

	tb.Parse("block1", "value", "y = missing + 1")
	errs := tb.Errors()
	if len(errs) != 1 || errs[0].Code != types.ErrUndeclaredIdentifier {
		t.Fatalf("errors on second parse = %v", errs)
	}
	if errs[0].Connection.ID != "block1" {
		t.Errorf("ID = %q", errs[0].Connection.ID)
	}

	tb.Parse("block1", "value", "y = 1")
	if len(tb.Errors()) != 0 {
		t.Errorf("errors after fix = %v", tb.Errors())
	}
}

func TestToolbox_ErrorsClearedBetweenCalls(t *testing.T) {
	tb := qrtext.New()
	tb.Parse("a", "p", "x = (")
	if len(tb.Errors()) == 0 {
		t.Fatal("expected errors")
	}
	tb.Parse("b", "p", "y = 2")
	if len(tb.Errors()) != 0 {
		t.Errorf("errors = %v", tb.Errors())
	}
}

func TestToolbox_InterpretCode(t *testing.T) {
	tb := qrtext.New(qrtext.WithIntrinsics(ext.All()...))

	if got := tb.InterpretCode("block1", "value", "x = 2 + 3"); got != int64(5) {
		t.Errorf("InterpretCode = %#v, want 5", got)
	}
	if got := tb.Value("x"); got != int64(5) {
		t.Errorf("Value(x) = %#v", got)
	}
	if got := tb.InterpretCode("block2", "value", "clamp(x * 10, 0, 20)"); got != 20.0 {
		t.Errorf("clamp = %#v", got)
	}
	if got := tb.InterpretCode("block3", "value", "x = "); got != nil {
		t.Errorf("erroneous code should yield nil, got %#v", got)
	}

	tree := tb.Parse("block4", "value", "x * 2")
	if got := tb.Interpret(tree); got != int64(10) {
		t.Errorf("Interpret = %#v", got)
	}
}

func TestToolbox_RuntimeErrors(t *testing.T) {
	tb := qrtext.New()
	if got := tb.InterpretCode("block1", "value", "1 // 0"); got != nil {
		t.Errorf("got %#v", got)
	}
	errs := tb.Errors()
	if len(errs) != 1 || errs[0].Code != types.ErrDivisionByZero {
		t.Fatalf("errors = %v", errs)
	}
	if errs[0].Severity != types.SeverityRuntime || errs[0].Connection.Property != "value" {
		t.Errorf("error = %+v", errs[0])
	}
}

func TestToolbox_SelfReferencingTable(t *testing.T) {
	var logs bytes.Buffer
	tb := qrtext.New(qrtext.WithLogger(slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))))
	tb.InterpretCode("c", "init", "t = {}")
	tb.InterpretCode("c", "self", "t.self = t")
	if errs := tb.Errors(); len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if got := evaluator.FormatValue(tb.Value("t")); got != "{self = <cycle>}" {
		t.Errorf("t = %s", got)
	}
}

func TestToolbox_DefaultIdiom(t *testing.T) {
	tb := qrtext.New()
	tb.InterpretCode("d", "init", "fallback = nil or 5")
	got := tb.InterpretCode("d", "use", "fallback + 1")
	if errs := tb.Errors(); len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if got != int64(6) {
		t.Errorf("got %#v, want 6", got)
	}
	if typ := tb.VariableTypes()["fallback"]; !semantics.Is(typ, semantics.KindInteger) {
		t.Errorf("fallback typed %v", typ)
	}
}

func TestInterpretAs(t *testing.T) {
	tb := qrtext.New()
	tb.InterpretCode("init", "value", "x = 5")

	if f, ok := qrtext.InterpretAs[float64](tb, "a", "value", "x * 1.5"); !ok || f != 7.5 {
		t.Errorf("float64: %v, %v", f, ok)
	}
	if f, ok := qrtext.InterpretAs[float64](tb, "b", "value", "x"); !ok || f != 5 {
		t.Errorf("float64 from integer: %v, %v", f, ok)
	}
	if i, ok := qrtext.InterpretAs[int](tb, "c", "value", "x + 1"); !ok || i != 6 {
		t.Errorf("int: %v, %v", i, ok)
	}
	if b, ok := qrtext.InterpretAs[bool](tb, "d", "value", "x > 3"); !ok || !b {
		t.Errorf("bool: %v, %v", b, ok)
	}
	if _, ok := qrtext.InterpretAs[string](tb, "e", "value", "x"); ok {
		t.Error("string conversion of an integer should fail")
	}
}

func TestToolbox_SetVariableValue(t *testing.T) {
	tb := qrtext.New()

	tb.SetVariableValue("speed", "speed = 0", int64(10))
	if got := tb.Value("speed"); got != int64(10) {
		t.Errorf("Value(speed) = %#v", got)
	}
	if typ := tb.VariableTypes()["speed"]; !semantics.Is(typ, semantics.KindInteger) {
		t.Errorf("type of speed = %v", typ)
	}
	if got := tb.InterpretCode("block1", "value", "speed * 2"); got != int64(20) {
		t.Errorf("speed * 2 = %#v", got)
	}

	tb.SetVariableValue("speed", "speed = 0", int64(3))
	if got := tb.Value("speed"); got != int64(3) {
		t.Errorf("Value(speed) = %#v", got)
	}
	if got := tb.Value("unknown"); got != nil {
		t.Errorf("Value(unknown) = %#v", got)
	}
}

func TestToolbox_Specials(t *testing.T) {
	tb := qrtext.New()
	if err := tb.AddIntrinsicFunction(extnumeric.Abs()); err != nil {
		t.Fatal(err)
	}
	tb.MarkAsSpecial("sensor1")
	tb.MarkAsSpecial("sensor1")
	tb.MarkAsSpecialConstant("PI")

	if got, want := tb.SpecialIdentifiers(), []string{"abs", "sensor1", "PI"}; !reflect.DeepEqual(got, want) {
		t.Errorf("SpecialIdentifiers = %v, want %v", got, want)
	}
	if got, want := tb.SpecialConstants(), []string{"PI"}; !reflect.DeepEqual(got, want) {
		t.Errorf("SpecialConstants = %v, want %v", got, want)
	}

	bad := extnumeric.Abs()
	bad.Signature = "<n?-n:n>"
	if err := tb.AddIntrinsicFunction(bad); err == nil {
		t.Error("expected invalid signature error")
	}
}

func TestToolbox_Clear(t *testing.T) {
	tb := qrtext.New(qrtext.WithIntrinsics(extnumeric.Abs()))
	tb.InterpretCode("block1", "value", "x = 1")
	tb.MarkAsSpecial("x")

	tb.Clear()

	if tb.AST("block1", "value") != nil {
		t.Error("cache should be empty")
	}
	if got := tb.Value("x"); got != nil {
		t.Errorf("Value(x) = %#v", got)
	}
	if slices.Contains(tb.Identifiers(), "x") {
		t.Error("x should be forgotten")
	}
	if len(tb.SpecialIdentifiers()) != 0 {
		t.Errorf("SpecialIdentifiers = %v", tb.SpecialIdentifiers())
	}
	if got := tb.InterpretCode("block1", "value", "abs(-1)"); got != 1.0 {
		t.Errorf("intrinsics should survive Clear, got %#v (%v)", got, tb.Errors())
	}
}

func TestToolbox_LiveNodes(t *testing.T) {
	tb := qrtext.New()
	if tb.LiveNodes() != 0 {
		t.Fatalf("LiveNodes = %d", tb.LiveNodes())
	}

	tb.Parse("block1", "value", "x = 1 + 2")
	cached := tb.LiveNodes()
	if cached == 0 {
		t.Fatal("cached tree should own nodes")
	}

	tb.Parse("block1", "value", "x = 1 + 2")
	if tb.LiveNodes() != cached {
		t.Errorf("cache hit changed LiveNodes: %d -> %d", cached, tb.LiveNodes())
	}

	tb.Parse("block1", "value", "x = 1")
	if tb.LiveNodes() >= cached {
		t.Errorf("replaced tree should be released: %d -> %d", cached, tb.LiveNodes())
	}

	tb.Release("block1", "value")
	if tb.LiveNodes() != 0 {
		t.Errorf("LiveNodes after Release = %d", tb.LiveNodes())
	}

	tb.Parse("", "", "y = 1")
	oneShot := tb.LiveNodes()
	tb.Parse("", "", "y = 2")
	if tb.LiveNodes() != oneShot {
		t.Errorf("previous one-shot tree should be released: %d -> %d", oneShot, tb.LiveNodes())
	}
	if !slices.Contains(tb.Identifiers(), "y") {
		t.Error("one-shot declarations should persist")
	}
}

func TestToolbox_CacheEviction(t *testing.T) {
	tb := qrtext.New(qrtext.WithCacheSize(2))

	tb.Parse("a", "p", "first = 1")
	tb.Parse("b", "p", "second = 2")
	tb.Parse("c", "p", "third = 3")

	if tb.AST("a", "p") != nil {
		t.Error("least recently used property should be evicted")
	}
	if tb.AST("b", "p") == nil || tb.AST("c", "p") == nil {
		t.Error("recent properties should stay cached")
	}
	if slices.Contains(tb.Identifiers(), "first") {
		t.Error("declarations of the evicted tree should be forgotten")
	}
}

func TestToolbox_Suggest(t *testing.T) {
	tb := qrtext.New(qrtext.WithIntrinsics(extnumeric.Sqrt(), extnumeric.Sin()))
	tb.Parse("block1", "value", "speed = 1\nspeedMax = 2")

	got := tb.Suggest("spe")
	if want := []string{"speed", "speedMax"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Suggest(spe) = %v, want %v", got, want)
	}
	if got := tb.Suggest("sqr"); len(got) == 0 || got[0] != "sqrt" {
		t.Errorf("Suggest(sqr) = %v", got)
	}
}

func TestToolbox_UnknownFunctionHint(t *testing.T) {
	tb := qrtext.New(qrtext.WithIntrinsics(extnumeric.Sqrt()))
	tb.Parse("block1", "value", "y = sqr(4)")

	errs := tb.Errors()
	if len(errs) == 0 || errs[0].Code != types.ErrUnknownFunction {
		t.Fatalf("errors = %v", errs)
	}
	if !strings.Contains(errs[0].Message, "sqrt") {
		t.Errorf("message should suggest sqrt: %q", errs[0].Message)
	}
}

func TestToolbox_Printer(t *testing.T) {
	tb := qrtext.New()
	tree := tb.Parse("block1", "value", "x = 2 ^ 3")

	lua := tb.Printer(printer.DefaultTemplates())
	if got := lua.Print(tree.Root()); got != "x = 2 ^ 3" {
		t.Errorf("lua = %q", got)
	}

	tmpl, err := printer.Templates("c")
	if err != nil {
		t.Fatal(err)
	}
	c := tb.Printer(tmpl, printer.WithPrecedenceTable(printer.PrecedenceFor("c")))
	if got := c.Print(tree.Root()); got != "x = pow(2, 3);" {
		t.Errorf("c = %q", got)
	}

	c.Print(tree.Root())
	errs := tb.Errors()
	if len(errs) != 1 || errs[0].Code != types.ErrPrinterConsumed {
		t.Errorf("errors = %v", errs)
	}
}

func TestToolbox_Logger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	tb := qrtext.New(qrtext.WithLogger(logger), qrtext.WithCacheSize(1))

	tb.Parse("a", "p", "x = 1")
	tb.Parse("b", "p", "y = 1")

	if !strings.Contains(buf.String(), "property evicted") {
		t.Errorf("expected eviction log, got:\n%s", buf.String())
	}
}
