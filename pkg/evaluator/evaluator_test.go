package evaluator_test

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"reflect"
	"strings"
	"testing"

	"github.com/sandrolain/qrtext/pkg/evaluator"
	"github.com/sandrolain/qrtext/pkg/functions"
	"github.com/sandrolain/qrtext/pkg/parser"
	"github.com/sandrolain/qrtext/pkg/semantics"
	"github.com/sandrolain/qrtext/pkg/types"
)

var testIntrinsics = []functions.IntrinsicDef{
	{
		Name:      "sqrt",
		Signature: "<n:n>",
		Fn: func(_ context.Context, args ...any) (any, error) {
			return math.Sqrt(args[0].(float64)), nil
		},
	},
	{
		Name:      "upper",
		Signature: "<s:s>",
		Fn: func(_ context.Context, args ...any) (any, error) {
			return strings.ToUpper(args[0].(string)), nil
		},
	},
	{
		Name:      "count",
		Signature: "<t:i>",
		Fn: func(_ context.Context, args ...any) (any, error) {
			return len(args[0].(*evaluator.Table).Keys()), nil
		},
	},
	{
		Name:      "fail",
		Signature: "<:x>",
		Fn: func(_ context.Context, _ ...any) (any, error) {
			return nil, errors.New("boom")
		},
	},
}

func newEvaluator(opts ...evaluator.EvalOption) (*evaluator.Evaluator, *types.ErrorList) {
	errs := &types.ErrorList{}
	for _, def := range testIntrinsics {
		opts = append(opts, evaluator.WithIntrinsic(def))
	}
	return evaluator.New(errs, opts...), errs
}

func interpret(t *testing.T, ev *evaluator.Evaluator, errs *types.ErrorList, code string) any {
	t.Helper()
	tree := parser.Parse(code, errs)
	if !errs.Empty() {
		t.Fatalf("parse %q: %v", code, errs.Err())
	}
	return ev.Interpret(context.Background(), tree.Root(), nil)
}

func TestInterpret(t *testing.T) {
	tests := []struct {
		code string
		want any
	}{
		// Arithmetic
		{"1 + 2", int64(3)},
		{"10 - 2 * 3", int64(4)},
		{"1 + 2.5", 3.5},
		{"7 // 2", int64(3)},
		{"-7 // 2", int64(-4)},
		{"7 % -3", int64(-2)},
		{"-7 % 3", int64(2)},
		{"7.5 // 2", 3.0},
		{"5.5 % 2", 1.5},
		{"1 / 2", 0.5},
		{"4 / 2", 2.0},
		{"2 ^ 10", 1024.0},
		{"-(3)", int64(-3)},
		{"1 // 0.0", math.Inf(1)},

		// Bitwise
		{"1 << 4", int64(16)},
		{"256 >> 4", int64(16)},
		{"-1 >> 63", int64(1)},
		{"1 << 64", int64(0)},
		{"5 & 3", int64(1)},
		{"5 | 3", int64(7)},
		{"5 ~ 3", int64(6)},
		{"~0", int64(-1)},
		{"2.0 | 1", int64(3)},

		// Strings
		{`"a" .. "b"`, "ab"},
		{`"a" .. 1`, "a1"},
		{`1.5 .. "x"`, "1.5x"},
		{`2.0 .. ""`, "2.0"},
		{`#"abc"`, int64(3)},
		{`"a" .. "b" .. "c"`, "abc"},

		// Comparison
		{"1 == 1.0", true},
		{"1 ~= 2", true},
		{`"a" == "a"`, true},
		{`1 == "1"`, false},
		{"1 < 2", true},
		{"2.5 <= 2", false},
		{`"a" < "b"`, true},
		{"2 >= 2", true},
		{"3 > 2.5", true},
		{"nil == nil", true},

		// Logical
		{"nil or 5", int64(5)},
		{"false and x", false},
		{"1 and 2", int64(2)},
		{"false or nil", nil},
		{"not nil", true},
		{"not 0", false},

		// Tables
		{"#{1, 2, 3}", int64(3)},
		{"({10, 20})[2]", int64(20)},
		{"({10, 20})[2.0]", int64(20)},
		{"({x = 1}).x", int64(1)},
		{`({["k"] = "v"})["k"]`, "v"},
		{"({1, 2})[3]", nil},

		// Statements
		{"x = 5", int64(5)},
		{"x = 5; x * 2", int64(10)},
		{"t = {1, 2, x = 3}; t[2] + t.x", int64(5)},
		{"t = {}; t[1] = 10; t[2] = 20; #t", int64(2)},
		{"t = {1, 2}; t[2] = nil; #t", int64(1)},
		{"undefined", nil},
		{"", nil},

		// Calls
		{"sqrt(16)", 4.0},
		{`upper("abc")`, "ABC"},
		{`("abc"):upper()`, "ABC"},
		{`s = "abc"; s:upper()`, "ABC"},
		{"t = {size = count}; t:size()", int64(1)},
		{"f = sqrt; f(9)", 3.0},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			ev, errs := newEvaluator()
			got := interpret(t, ev, errs, tt.code)
			if !errs.Empty() {
				t.Fatalf("unexpected errors: %v", errs.Err())
			}
			if got != tt.want {
				t.Errorf("Interpret(%q) = %#v, want %#v", tt.code, got, tt.want)
			}
		})
	}
}

func TestInterpretErrors(t *testing.T) {
	tests := []struct {
		code string
		want types.ErrorCode
	}{
		{"1 // 0", types.ErrDivisionByZero},
		{"1 % 0", types.ErrDivisionByZero},
		{`1 + "a"`, types.ErrTypeMismatch},
		{`-"a"`, types.ErrTypeMismatch},
		{`{} .. "x"`, types.ErrTypeMismatch},
		{`1 < "x"`, types.ErrTypeMismatch},
		{"{} < {}", types.ErrTypeMismatch},
		{"#5", types.ErrTypeMismatch},
		{"1.5 | 1", types.ErrTypeMismatch},
		{"true & 1", types.ErrTypeMismatch},
		{"y = nil; y.z", types.ErrTypeMismatch},
		{"y = 1; y[1] = 2", types.ErrTypeMismatch},
		{"t = {}; t[nil] = 1", types.ErrTypeMismatch},
		{"x = 5; x()", types.ErrInvokeNonFunction},
		{"unknown(1)", types.ErrInvokeNonFunction},
		{"t = {}; t:missing()", types.ErrInvokeNonFunction},
		{"fail()", types.ErrIntrinsicFailed},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			ev, errs := newEvaluator()
			got := interpret(t, ev, errs, tt.code)
			if got != nil {
				t.Errorf("result = %#v, want nil", got)
			}
			if errs.Len() != 1 {
				t.Fatalf("got %d errors, want 1: %v", errs.Len(), errs.Err())
			}
			err := errs.Last()
			if err.Code != tt.want {
				t.Errorf("code = %s, want %s (%v)", err.Code, tt.want, err)
			}
			if err.Severity != types.SeverityRuntime {
				t.Errorf("severity = %s, want runtime", err.Severity)
			}
			if !err.Connection.IsValid() {
				t.Errorf("error %v has no position", err)
			}
		})
	}
}

func TestIntrinsicErrorCause(t *testing.T) {
	ev, errs := newEvaluator()
	interpret(t, ev, errs, "fail()")
	if err := errs.Err(); err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("error = %v, want cause boom", err)
	}
}

func TestBlockContinuesAfterError(t *testing.T) {
	ev, errs := newEvaluator()
	got := interpret(t, ev, errs, "a = 1 // 0\nb = 2")
	if got != int64(2) {
		t.Errorf("result = %#v, want 2", got)
	}
	if errs.Len() != 1 || errs.Last().Code != types.ErrDivisionByZero {
		t.Fatalf("errors = %v, want one division by zero", errs.Err())
	}
	if errs.Last().Connection.Line != 1 {
		t.Errorf("error line = %d, want 1", errs.Last().Connection.Line)
	}
	if v := ev.Value("a"); v != nil {
		t.Errorf("a = %#v, want nil", v)
	}
	if v := ev.Value("b"); v != int64(2) {
		t.Errorf("b = %#v, want 2", v)
	}
}

func TestCancelledContext(t *testing.T) {
	ev, errs := newEvaluator()
	tree := parser.Parse("x = 1; y = 2", errs)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if got := ev.Interpret(ctx, tree.Root(), nil); got != nil {
		t.Errorf("result = %#v, want nil", got)
	}
	if errs.Len() != 1 || errs.Last().Code != types.ErrTimeout {
		t.Fatalf("errors = %v, want one timeout", errs.Err())
	}
	if !errors.Is(errs.Last(), context.Canceled) {
		t.Errorf("error does not wrap context.Canceled")
	}
	if ev.Value("x") != nil {
		t.Errorf("x was assigned after cancellation")
	}
}

func TestMaxDepth(t *testing.T) {
	ev, errs := newEvaluator(evaluator.WithMaxDepth(3))
	interpret(t, ev, errs, "1 + 2 + 3 + 4")
	if errs.Len() != 1 || errs.Last().Code != types.ErrStackOverflow {
		t.Fatalf("errors = %v, want one stack overflow", errs.Err())
	}

	ev, errs = newEvaluator()
	if got := interpret(t, ev, errs, "1 + 2 + 3 + 4"); got != int64(10) {
		t.Errorf("default depth: result = %#v, want 10", got)
	}
}

func TestVariables(t *testing.T) {
	ev, errs := newEvaluator()

	ev.SetVariableValue("speed", 3)
	ev.SetVariableValue("names", []string{"a", "b"})
	got := interpret(t, ev, errs, "total = speed * #names")
	if got != int64(6) {
		t.Errorf("result = %#v, want 6", got)
	}

	want := []string{"names", "speed", "total"}
	if ids := ev.Identifiers(); strings.Join(ids, ",") != strings.Join(want, ",") {
		t.Errorf("Identifiers() = %v, want %v", ids, want)
	}

	ev.Clear()
	if len(ev.Identifiers()) != 0 {
		t.Errorf("Identifiers() after Clear = %v", ev.Identifiers())
	}
	if got := interpret(t, ev, errs, "sqrt(4)"); got != 2.0 {
		t.Errorf("intrinsics lost after Clear: %#v", got)
	}
}

func TestFloatCoercion(t *testing.T) {
	errs := &types.ErrorList{}
	a := semantics.New(errs)
	ev := evaluator.New(errs)

	tree := parser.Parse("x = 1\ny = x .. \"\"\nx = 2.5", errs)
	a.Analyze(tree.Root())
	if !errs.Empty() {
		t.Fatalf("unexpected errors: %v", errs.Err())
	}

	ev.Interpret(context.Background(), tree.Root(), a)
	if got := ev.Value("y"); got != "1.0" {
		t.Errorf("y = %#v, want \"1.0\"", got)
	}
	if got := ev.Value("x"); got != 2.5 {
		t.Errorf("x = %#v, want 2.5", got)
	}
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		value any
		want  string
	}{
		{nil, "nil"},
		{true, "true"},
		{int64(-3), "-3"},
		{3.0, "3.0"},
		{0.1, "0.1"},
		{1e100, "1e+100"},
		{math.Copysign(0, -1), "-0.0"},
		{math.Inf(-1), "-inf"},
		{"text", "text"},
		{evaluator.NewArray(int64(1), "a"), `{1, "a"}`},
	}

	for _, tt := range tests {
		if got := evaluator.FormatValue(tt.value); got != tt.want {
			t.Errorf("FormatValue(%#v) = %q, want %q", tt.value, got, tt.want)
		}
	}
}

func TestTable(t *testing.T) {
	tbl := evaluator.NewArray(int64(1), int64(2))
	if err := tbl.Set("x", 3.5); err != nil {
		t.Fatal(err)
	}
	if err := tbl.Set("end", true); err != nil {
		t.Fatal(err)
	}

	if got := tbl.String(); got != `{1, 2, x = 3.5, ["end"] = true}` {
		t.Errorf("String() = %s", got)
	}
	if got := tbl.Get(2.0); got != int64(2) {
		t.Errorf("Get(2.0) = %#v, want 2", got)
	}
	if err := tbl.Set(math.NaN(), 1); err == nil {
		t.Error("Set(NaN) succeeded")
	}

	if err := tbl.Set(int64(4), "gap"); err != nil {
		t.Fatal(err)
	}
	if got := tbl.Len(); got != 2 {
		t.Errorf("Len() with a gap = %d, want 2", got)
	}

	m, ok := evaluator.ToGo(tbl).(map[string]any)
	if !ok {
		t.Fatalf("ToGo(keyed table) = %T, want map", evaluator.ToGo(tbl))
	}
	if m["x"] != 3.5 || m["1"] != int64(1) {
		t.Errorf("ToGo = %v", m)
	}

	arr, ok := evaluator.ToGo(evaluator.NewArray("a", "b")).([]any)
	if !ok || len(arr) != 2 || arr[1] != "b" {
		t.Errorf("ToGo(array) = %#v", arr)
	}
}

func TestFromGo(t *testing.T) {
	if got := evaluator.FromGo(int32(7)); got != int64(7) {
		t.Errorf("FromGo(int32) = %#v", got)
	}
	if got := evaluator.FromGo(float32(0.5)); got != 0.5 {
		t.Errorf("FromGo(float32) = %#v", got)
	}
	tbl, ok := evaluator.FromGo(map[string]any{"b": 2, "a": []any{1}}).(*evaluator.Table)
	if !ok {
		t.Fatal("FromGo(map) is not a table")
	}
	if got := tbl.String(); got != "{a = {1}, b = 2}" {
		t.Errorf("FromGo(map) = %s", got)
	}
	if got := evaluator.FromGo(uint64(5)); got != int64(5) {
		t.Errorf("FromGo(uint64) = %#v", got)
	}
	if got := evaluator.FromGo(uint64(math.MaxUint64)); got != float64(math.MaxUint64) {
		t.Errorf("FromGo(MaxUint64) = %#v, want a positive float", got)
	}
}

func TestSelfReferencingTable(t *testing.T) {
	var logs strings.Builder
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	ev, errs := newEvaluator(evaluator.WithLogger(logger))

	v := interpret(t, ev, errs, "t = {1}; t.self = t; t[2] = {t}; t")
	if !errs.Empty() {
		t.Fatalf("unexpected errors: %v", errs.Err())
	}
	if got, want := evaluator.FormatValue(v), "{1, {<cycle>}, self = <cycle>}"; got != want {
		t.Errorf("FormatValue = %s, want %s", got, want)
	}
	if !strings.Contains(logs.String(), "<cycle>") {
		t.Errorf("debug log does not show the result: %s", logs.String())
	}

	want := map[string]any{"1": int64(1), "2": []any{"<cycle>"}, "self": "<cycle>"}
	if got := evaluator.ToGo(v); !reflect.DeepEqual(got, want) {
		t.Errorf("ToGo = %#v, want %#v", got, want)
	}

	shared := interpret(t, ev, errs, "a = {}; {a, a}")
	if got := evaluator.FormatValue(shared); got != "{{}, {}}" {
		t.Errorf("shared table rendered as %s", got)
	}
}
