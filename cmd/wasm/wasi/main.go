//go:build wasip1

// Command qrtext-wasm-wasi is the WASI (wasip1) entrypoint for use from any
// language that supports the WebAssembly System Interface.
//
// Protocol: single JSON object on stdin → single JSON object on stdout.
//
//	stdin:  { "code": "<text>", "variables": { "<name>": <value>, ... }, "target": "<lua|c>" }
//	stdout: { "result": <any JSON value>, "output": "<printed code>" }   on success
//	        { "errors": [ { "code": ..., "message": ..., ... } ] }      on failure (exit code 1)
//
// When target is set the code is printed in that language instead of being
// evaluated.
//
// Build:
//
//	GOOS=wasip1 GOARCH=wasm go build -o qrtext.wasm ./cmd/wasm/wasi/
//
// Usage with wasmtime CLI:
//
//	echo '{"code":"x * 2","variables":{"x":21}}' | wasmtime qrtext.wasm
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/sandrolain/qrtext"
	"github.com/sandrolain/qrtext/pkg/evaluator"
	"github.com/sandrolain/qrtext/pkg/ext"
	"github.com/sandrolain/qrtext/pkg/printer"
	"github.com/sandrolain/qrtext/pkg/types"
)

type request struct {
	Code      string         `json:"code"`
	Variables map[string]any `json:"variables"`
	Target    string         `json:"target"`
}

type errorInfo struct {
	Code     string `json:"code"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
	Line     int    `json:"line,omitempty"`
	Column   int    `json:"column,omitempty"`
}

type response struct {
	Result any         `json:"result,omitempty"`
	Output string      `json:"output,omitempty"`
	Errors []errorInfo `json:"errors,omitempty"`
}

func writeResponse(r response, exitCode int) {
	_ = json.NewEncoder(os.Stdout).Encode(r)
	os.Exit(exitCode)
}

func fail(msg string) {
	writeResponse(response{Errors: []errorInfo{{Code: string(types.ErrInternal), Severity: "internal", Message: msg}}}, 1)
}

func main() {
	var req request
	dec := json.NewDecoder(os.Stdin)
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		fail("invalid request JSON: " + err.Error())
	}

	tb := qrtext.New(qrtext.WithIntrinsics(ext.All()...))

	names := make([]string, 0, len(req.Variables))
	for name := range req.Variables {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		value := fromJSON(req.Variables[name])
		init, err := initCode(name, value)
		if err != nil {
			fail(err.Error())
		}
		tb.SetVariableValue(name, init, value)
		tb.MarkAsSpecial(name)
	}

	if req.Target != "" {
		tree := tb.Parse("request", "code", req.Code)
		checkErrors(tb)
		set, err := printer.Templates(req.Target)
		if err != nil {
			fail(fmt.Sprintf("unknown target %q", req.Target))
		}
		out := tb.Printer(set, printer.WithPrecedenceTable(printer.PrecedenceFor(req.Target))).Print(tree.Root())
		checkErrors(tb)
		writeResponse(response{Output: out}, 0)
	}

	result := tb.InterpretCode("request", "code", req.Code)
	checkErrors(tb)
	writeResponse(response{Result: evaluator.ToGo(result)}, 0)
}

func checkErrors(tb *qrtext.Toolbox) {
	errs := tb.Errors()
	if len(errs) == 0 {
		return
	}
	out := make([]errorInfo, len(errs))
	for i, e := range errs {
		out[i] = errorInfo{
			Code:     string(e.Code),
			Severity: e.Severity.String(),
			Message:  e.Message,
			Line:     e.Connection.Line,
			Column:   e.Connection.Column,
		}
	}
	writeResponse(response{Errors: out}, 1)
}

// fromJSON converts decoded JSON into runtime values. Numbers without a
// fraction become integers.
func fromJSON(v any) any {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		f, _ := x.Float64()
		return f
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = fromJSON(e)
		}
		return evaluator.FromGo(out)
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = fromJSON(e)
		}
		return evaluator.FromGo(out)
	}
	return v
}

// initCode returns an assignment declaring name with the type of value.
func initCode(name string, value any) (string, error) {
	switch value.(type) {
	case nil:
		return name + " = nil", nil
	case bool:
		return name + " = false", nil
	case int64:
		return name + " = 0", nil
	case float64:
		return name + " = 0.0", nil
	case string:
		return name + ` = ""`, nil
	case *evaluator.Table:
		return name + " = {}", nil
	}
	return "", fmt.Errorf("variable %s: unsupported value %T", name, value)
}
