package ext_test

import (
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/sandrolain/qrtext"
	"github.com/sandrolain/qrtext/pkg/evaluator"
	"github.com/sandrolain/qrtext/pkg/ext"
	"github.com/sandrolain/qrtext/pkg/ext/extdatetime"
	"github.com/sandrolain/qrtext/pkg/ext/extstring"
	"github.com/sandrolain/qrtext/pkg/types"
)

type evalCase struct {
	code string
	want any
}

func eval(t *testing.T, code string, opts ...evaluator.EvalOption) any {
	t.Helper()
	result, err := qrtext.Eval(code, opts...)
	if err != nil {
		t.Fatalf("Eval(%q) error: %v", code, err)
	}
	return result
}

func runCases(t *testing.T, tests []evalCase, opts ...evaluator.EvalOption) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			got := eval(t, tt.code, opts...)
			if want, ok := tt.want.(float64); ok {
				f, isFloat := got.(float64)
				if !isFloat || math.Abs(f-want) > 1e-9 {
					t.Errorf("got %v (%T), want %v", got, got, want)
				}
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %v (%T), want %v (%T)", got, got, tt.want, tt.want)
			}
		})
	}
}

// ── WithAll ────────────────────────────────────────────────────────────────

func TestWithAll_NumericFunctions(t *testing.T) {
	runCases(t, []evalCase{
		{"abs(-3)", 3.0},
		{"floor(3.7)", int64(3)},
		{"ceil(3.2)", int64(4)},
		{"trunc(-2.5)", int64(-2)},
		{"sqrt(16)", 4.0},
		{"exp(0)", 1.0},
		{"log(8, 2)", 3.0},
		{"log(1)", 0.0},
		{"max(1, 5, 3)", 5.0},
		{"min(4, 2.5)", 2.5},
		{"clamp(15, 0, 10)", 10.0},
		{"sign(-2)", int64(-1)},
		{"sign(0)", int64(0)},
		{"atan2(1, 1) * 4", math.Pi},
		{"pi()", math.Pi},
		{"median({3, 1, 2})", 2.0},
		{"median({4, 1, 3, 2})", 2.5},
		{"variance({1, 2, 3, 4})", 1.25},
		{"stddev({2, 2, 2})", 0.0},
		{"percentile({1, 2, 3, 4, 5}, 50)", 3.0},
		{"median({})", nil},
	}, ext.WithAll())
}

func TestWithAll_StringFunctions(t *testing.T) {
	runCases(t, []evalCase{
		{`upper("abc")`, "ABC"},
		{`lower("ABC")`, "abc"},
		{`len("hello")`, int64(5)},
		{`sub("hello", 2, 4)`, "ell"},
		{`sub("hello", -3)`, "llo"},
		{`sub("hello", 4, 2)`, ""},
		{`rep("ab", 3)`, "ababab"},
		{`rep("ab", 3, ",")`, "ab,ab,ab"},
		{`rep("ab", 0)`, ""},
		{`rep("", 9223372036854775807)`, ""},
		{`reverse("abc")`, "cba"},
		{`find("hello", "l")`, int64(3)},
		{`find("hello", "l", 4)`, int64(4)},
		{`find("hello", "z")`, nil},
		{`startsWith("Hello", "He")`, true},
		{`endsWith("Hello", "He")`, false},
		{`trim("  x  ")`, "x"},
		{`split("a,b,c", ",")`, []any{"a", "b", "c"}},
		{`split(" a  b ")`, []any{"a", "b"}},
		{`capitalize("hELLO")`, "Hello"},
		{`titleCase("hello world")`, "Hello World"},
		{`camelCase("hello_world")`, "helloWorld"},
		{`snakeCase("helloWorld")`, "hello_world"},
		{`kebabCase("Hello World")`, "hello-world"},
		{`words("fooBar baz-qux")`, []any{"foo", "Bar", "baz", "qux"}},
		{"s = \"abc\"\ns:upper()", "ABC"},
		{"s = \"hello\"\ns:sub(2, 3)", "el"},
	}, ext.WithAll())
}

func TestWithAll_TableFunctions(t *testing.T) {
	runCases(t, []evalCase{
		{"first({7, 8, 9})", int64(7)},
		{"last({7, 8, 9})", int64(9)},
		{"last({})", nil},
		{"take({1, 2, 3}, 2)", []any{int64(1), int64(2)}},
		{"skip({1, 2, 3}, 5)", []any{}},
		{`concat({1, "a", 2.5}, "-")`, "1-a-2.5"},
		{"size({1, 2, x = 3})", int64(3)},
		{"sum({1, 2, 3})", int64(6)},
		{"sum({1, 2.5})", 3.5},
		{"contains({1, 2, 3}, 2.0)", true},
		{`contains({"a"}, "b")`, false},
		{"t = {1, 2}\ninsert(t, 3)\n#t", int64(3)},
		{"t = {1, 2, 3}\nremove(t, 1)", int64(1)},
		{"t = {1, 2, 3}\nremove(t, 1)\nt[1]", int64(2)},
		{"t = {1, 2, 3}\nremove(t)\n#t", int64(2)},
		{"range(1, 5, 2)", []any{int64(1), int64(3), int64(5)}},
		{"range(3, 1, -1)", []any{int64(3), int64(2), int64(1)}},
		{"range(9223372036854775806, 9223372036854775807)", []any{int64(9223372036854775806), int64(9223372036854775807)}},
		{"range(-9223372036854775807, -9223372036854775806, -1)", []any{}},
		{"range(5, -5, -9223372036854775807)", []any{int64(5)}},
		{"keys({a = 1, b = 2})", []any{"a", "b"}},
		{"values({a = 1, b = 2})", []any{int64(1), int64(2)}},
	}, ext.WithAll())
}

func TestWithAll_TypeFunctions(t *testing.T) {
	runCases(t, []evalCase{
		{"type(1)", "number"},
		{"type(1.5)", "number"},
		{`type("x")`, "string"},
		{"type({})", "table"},
		{"type(nil)", "nil"},
		{"type(true)", "boolean"},
		{"type(upper)", "function"},
		{"mathType(1)", "integer"},
		{"mathType(1.5)", "float"},
		{`mathType("1")`, nil},
		{"tostring(1.0)", "1.0"},
		{"tostring({1, x = 2})", "{1, x = 2}"},
		{`tonumber("0x10")`, int64(16)},
		{`tonumber("-7")`, int64(-7)},
		{`tonumber("2.5")`, 2.5},
		{`tonumber("z", 36)`, int64(35)},
		{`tonumber("abc")`, nil},
		{`isString("a")`, true},
		{"isNumber(nil)", false},
		{"isTable({})", true},
		{"isNil(nil)", true},
		{"isFunction(sqrt)", true},
		{"isEmpty({})", true},
		{`isEmpty("")`, true},
		{"isEmpty(0)", false},
		{"default(nil, 3)", int64(3)},
		{"default(1, 3)", int64(1)},
	}, ext.WithAll())
}

func TestWithAll_DateTimeFunctions(t *testing.T) {
	fixed := time.Date(2024, time.March, 15, 10, 30, 0, 0, time.UTC)
	extdatetime.Now = func() time.Time { return fixed }
	t.Cleanup(func() { extdatetime.Now = time.Now })

	runCases(t, []evalCase{
		{"time()", fixed.UnixMilli()},
		{`dateAdd(0, 1, "day")`, int64(86_400_000)},
		{`dateAdd(0, 2, "month")`, time.Date(1970, time.March, 1, 0, 0, 0, 0, time.UTC).UnixMilli()},
		{`dateDiff(0, 172800000, "day")`, int64(2)},
		{`dateDiff(0, 172800000, "hour")`, int64(48)},
		{`dateComponents(0).year`, int64(1970)},
		{`dateComponents(0).weekday`, int64(4)},
		{`dateComponents(time()).month`, int64(3)},
		{`dateStartOf(90061001, "day")`, int64(86_400_000)},
		{`dateEndOf(0, "day")`, int64(86_399_999)},
	}, ext.WithAll())
}

// ── by category ────────────────────────────────────────────────────────────

func TestWithCategory(t *testing.T) {
	if got := eval(t, `upper("x")`, ext.WithString()); got != "X" {
		t.Errorf("got %v", got)
	}
	if got := eval(t, "floor(1.5)", ext.WithNumeric()); got != int64(1) {
		t.Errorf("got %v", got)
	}

	_, err := qrtext.Eval("floor(1.5)", ext.WithString())
	var e *types.Error
	if !errors.As(err, &e) || e.Code != types.ErrUnknownFunction {
		t.Fatalf("expected unknown function error, got %v", err)
	}
}

func TestSingleFunction(t *testing.T) {
	got := eval(t, `snakeCase("fooBar")`, evaluator.WithIntrinsic(extstring.SnakeCase()))
	if got != "foo_bar" {
		t.Errorf("got %v", got)
	}
}

func TestAllNamesUnique(t *testing.T) {
	seen := map[string]bool{}
	for _, def := range ext.All() {
		if seen[def.Name] {
			t.Errorf("duplicate intrinsic %s", def.Name)
		}
		seen[def.Name] = true
		if err := def.Validate(); err != nil {
			t.Errorf("%s: %v", def.Name, err)
		}
	}
}

// ── errors ─────────────────────────────────────────────────────────────────

func TestIntrinsicErrors(t *testing.T) {
	tests := []struct {
		code string
		code2 types.ErrorCode
	}{
		{`sqrt("x")`, types.ErrInvalidTypeOperation},
		{"log(-1)", types.ErrIntrinsicFailed},
		{"clamp(1, 5, 0)", types.ErrIntrinsicFailed},
		{"random(0)", types.ErrIntrinsicFailed},
		{`dateAdd(0, 1, "week")`, types.ErrIntrinsicFailed},
		{`concat({{}})`, types.ErrIntrinsicFailed},
		{"remove({1}, 3)", types.ErrIntrinsicFailed},
		{"range(1, 2, 0)", types.ErrIntrinsicFailed},
		{"range(-9223372036854775807, 9223372036854775807)", types.ErrIntrinsicFailed},
		{"range(1, 2000000)", types.ErrIntrinsicFailed},
		{`rep("ab", 4611686018427387904)`, types.ErrIntrinsicFailed},
		{`rep("ab", 9223372036854775807, ",")`, types.ErrIntrinsicFailed},
		{"sub()", types.ErrArgumentCountMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			_, err := qrtext.Eval(tt.code, ext.WithAll())
			var e *types.Error
			if !errors.As(err, &e) {
				t.Fatalf("expected *types.Error, got %v", err)
			}
			if e.Code != tt.code2 {
				t.Errorf("code = %s, want %s (%v)", e.Code, tt.code2, e)
			}
		})
	}
}

func TestRandomRange(t *testing.T) {
	for i := 0; i < 50; i++ {
		got := eval(t, "random(1, 6)", ext.WithAll())
		n, ok := got.(int64)
		if !ok || n < 1 || n > 6 {
			t.Fatalf("random(1, 6) = %v (%T)", got, got)
		}
	}
	f, ok := eval(t, "random()", ext.WithAll()).(float64)
	if !ok || f < 0 || f >= 1 {
		t.Fatalf("random() = %v", f)
	}
}
