//go:build js && wasm

// Command qrtext-wasm-js is the WebAssembly entrypoint for browser and Node.js.
//
// It exposes a global `qrtext` object with the following API:
//
//	qrtext.version()                       → string
//	qrtext.eval(code)                      → resultJSON  (throws on error)
//	qrtext.toolbox()                       → Toolbox
//
//	Toolbox.parse(id, property, text)      → errorsJSON
//	Toolbox.interpret(id, property, text)  → resultJSON  (throws on error)
//	Toolbox.print(id, property, target)    → string      (throws on error)
//	Toolbox.suggest(prefix)                → string[]
//	Toolbox.clear()
//
// Build:
//
//	GOOS=js GOARCH=wasm go build -o qrtext.wasm ./cmd/wasm/js/
//
// Usage in browser:
//
//	<script src="wasm_exec.js"></script>
//	<script type="module">
//	  const go = new Go()
//	  const { instance } = await WebAssembly.instantiateStreaming(fetch('qrtext.wasm'), go.importObject)
//	  go.run(instance)
//	  const tb = qrtext.toolbox()
//	  tb.parse('block1', 'condition', 'distance < 10')
//	  console.log(JSON.parse(tb.interpret('block2', 'value', 'x = 2 ^ 8')))
//	</script>
package main

import (
	"encoding/json"
	"fmt"
	"syscall/js"

	"github.com/sandrolain/qrtext"
	"github.com/sandrolain/qrtext/pkg/evaluator"
	"github.com/sandrolain/qrtext/pkg/ext"
	"github.com/sandrolain/qrtext/pkg/printer"
	"github.com/sandrolain/qrtext/pkg/types"
)

// jsThrow panics with a JS Error so the caller receives a thrown exception.
func jsThrow(msg string) {
	panic(js.Global().Get("Error").New(msg))
}

func marshal(fn string, v any) string {
	out, err := json.Marshal(v)
	if err != nil {
		jsThrow(fmt.Sprintf("%s: marshal result: %v", fn, err))
	}
	return string(out)
}

func stringArgs(fn string, args []js.Value, n int) []string {
	if len(args) < n {
		jsThrow(fmt.Sprintf("%s requires %d arguments", fn, n))
	}
	out := make([]string, n)
	for i := range out {
		out[i] = args[i].String()
	}
	return out
}

func errorMessages(errs []*types.Error) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Error()
	}
	return out
}

// jsEval implements qrtext.eval(code) → resultJSON.
func jsEval(_ js.Value, args []js.Value) any {
	code := stringArgs("qrtext.eval", args, 1)[0]
	result, err := qrtext.Eval(code, ext.WithAll())
	if err != nil {
		jsThrow(fmt.Sprintf("qrtext.eval: %v", err))
	}
	return marshal("qrtext.eval", result)
}

// jsToolbox implements qrtext.toolbox() → Toolbox.
func jsToolbox(_ js.Value, _ []js.Value) any {
	tb := qrtext.New(qrtext.WithIntrinsics(ext.All()...))

	parse := js.FuncOf(func(_ js.Value, args []js.Value) any {
		a := stringArgs("toolbox.parse", args, 3)
		tb.Parse(a[0], a[1], a[2])
		return marshal("toolbox.parse", errorMessages(tb.Errors()))
	})

	interpret := js.FuncOf(func(_ js.Value, args []js.Value) any {
		a := stringArgs("toolbox.interpret", args, 3)
		result := tb.InterpretCode(a[0], a[1], a[2])
		if errs := tb.Errors(); len(errs) > 0 {
			jsThrow(fmt.Sprintf("toolbox.interpret: %v", errorMessages(errs)))
		}
		return marshal("toolbox.interpret", evaluator.ToGo(result))
	})

	printFn := js.FuncOf(func(_ js.Value, args []js.Value) any {
		a := stringArgs("toolbox.print", args, 3)
		tree := tb.AST(a[0], a[1])
		if tree == nil {
			jsThrow(fmt.Sprintf("toolbox.print: no valid text for %s/%s", a[0], a[1]))
		}
		set, err := printer.Templates(a[2])
		if err != nil {
			jsThrow(fmt.Sprintf("toolbox.print: %v", err))
		}
		out := tb.Printer(set, printer.WithPrecedenceTable(printer.PrecedenceFor(a[2]))).Print(tree.Root())
		if errs := tb.Errors(); len(errs) > 0 {
			jsThrow(fmt.Sprintf("toolbox.print: %v", errorMessages(errs)))
		}
		return out
	})

	suggest := js.FuncOf(func(_ js.Value, args []js.Value) any {
		prefix := stringArgs("toolbox.suggest", args, 1)[0]
		names := tb.Suggest(prefix)
		out := make([]any, len(names))
		for i, n := range names {
			out[i] = n
		}
		return out
	})

	clearFn := js.FuncOf(func(_ js.Value, _ []js.Value) any {
		tb.Clear()
		return nil
	})

	return js.ValueOf(map[string]any{
		"parse":     parse,
		"interpret": interpret,
		"print":     printFn,
		"suggest":   suggest,
		"clear":     clearFn,
	})
}

func main() {
	api := map[string]any{
		"eval":    js.FuncOf(jsEval),
		"toolbox": js.FuncOf(jsToolbox),
		"version": js.FuncOf(func(_ js.Value, _ []js.Value) any {
			return qrtext.Version()
		}),
	}
	js.Global().Set("qrtext", js.ValueOf(api))

	// Block forever: the JS event loop owns execution from here.
	select {}
}
