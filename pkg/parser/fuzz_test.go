package parser_test

import (
	"testing"

	"github.com/sandrolain/qrtext/pkg/parser"
	"github.com/sandrolain/qrtext/pkg/types"
)

func FuzzParser(f *testing.F) {
	seeds := []string{
		`x = 1 + 2 * 3`,
		`sensor:read(1, "port")`,
		`{1, 2; x = 3, ["k"] = {}}`,
		`a.b[c].d = -x ^ 2 .. "s"`,
		`true ||| false`,
		`a[i, j]`,
		``,
		`(`,
		`f(`,
		`--[[ unterminated`,
		`"unterminated`,
	}
	for _, s := range seeds {
		f.Add(s)
	}
	f.Fuzz(func(t *testing.T, input string) {
		var errs types.ErrorList
		tree := parser.Parse(input, &errs)
		if tree.Root() == nil {
			t.Fatalf("no root for %q", input)
		}
		types.Walk(tree.Root(), func(n *types.ASTNode) {
			if n.Kind == types.NodeError && n.Err == nil {
				t.Fatalf("error node without diagnostic for %q", input)
			}
		})
	})
}

func BenchmarkParse(b *testing.B) {
	input := `speed = 10 * (power + 5) / 2; motors = {left = speed, right = -speed}; ok = speed > 0 and not stopped`
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		var errs types.ErrorList
		parser.Parse(input, &errs)
	}
}
