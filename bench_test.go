package qrtext_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/sandrolain/qrtext"
	"github.com/sandrolain/qrtext/pkg/evaluator"
	"github.com/sandrolain/qrtext/pkg/ext"
	"github.com/sandrolain/qrtext/pkg/printer"
)

const benchCode = `speed = clamp(10 * (power + 5) / 2, 0, 100)
motors = {left = speed, right = -speed}
ok = speed > 0 and not stopped`

const benchInit = "power = 3\nstopped = false"

func FuzzEval(f *testing.F) {
	seeds := []string{
		`x = 1 + 2 * 3`,
		`s = "abc"; s:upper()`,
		`t = {1, 2, x = 3}; #t + t.x`,
		`sqrt(-1) .. "!"`,
		`1 // 0`,
		`2 ^ 1024`,
		`range(1, 100, 3)`,
		`rep("ab", 1e9)`,
		`unknown(1)`,
		``,
	}
	for _, s := range seeds {
		f.Add(s)
	}
	f.Fuzz(func(t *testing.T, input string) {
		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()
		_, _ = qrtext.EvalWithContext(ctx, input, ext.WithAll(), evaluator.WithTimeout(100*time.Millisecond))
	})
}

func BenchmarkToolbox_ParseCached(b *testing.B) {
	tb := qrtext.New(qrtext.WithIntrinsics(ext.All()...))
	tb.Parse("init", "value", benchInit)
	tb.Parse("block", "value", benchCode)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		tb.Parse("block", "value", benchCode)
	}
}

func BenchmarkToolbox_ParseChanged(b *testing.B) {
	tb := qrtext.New(qrtext.WithIntrinsics(ext.All()...))
	tb.Parse("init", "value", benchInit)
	texts := [2]string{benchCode, benchCode + "\nok = false"}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		tb.Parse("block", "value", texts[i%2])
	}
}

func BenchmarkToolbox_ManyProperties(b *testing.B) {
	for _, n := range []int{10, 100, 1000} {
		b.Run(fmt.Sprintf("props=%d", n), func(b *testing.B) {
			tb := qrtext.New(qrtext.WithCacheSize(n / 2))
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				id := fmt.Sprintf("block%d", i%n)
				tb.Parse(id, "value", fmt.Sprintf("v%d = %d * 2", i%n, i))
			}
		})
	}
}

func BenchmarkToolbox_InterpretCode(b *testing.B) {
	tb := qrtext.New(qrtext.WithIntrinsics(ext.All()...))
	tb.InterpretCode("init", "value", benchInit)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		tb.InterpretCode("block", "value", benchCode)
	}
}

func BenchmarkEval(b *testing.B) {
	code := `t = range(1, 100); avg = sum(t) / #t; upper("done") .. avg`
	opt := ext.WithAll()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := qrtext.Eval(code, opt); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkPrint(b *testing.B) {
	tb := qrtext.New(qrtext.WithIntrinsics(ext.All()...))
	tb.InterpretCode("init", "value", benchInit)
	tree := tb.Parse("block", "value", benchCode)
	c, err := printer.Templates("c")
	if err != nil {
		b.Fatal(err)
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		p := tb.Printer(c, printer.WithPrecedenceTable(printer.PrecedenceFor("c")))
		_ = p.Print(tree.Root())
	}
}
