// Command qrtext evaluates, type-checks and translates property texts from
// the command line.
//
// Usage:
//
//	qrtext [flags] [file ...]
//
// Without files and without -e an interactive REPL is started. Each file is
// interpreted as one property named after the file; all files share one
// environment of variables, in the order given.
//
// Examples:
//
//	qrtext -e 'x = clamp(7 * 3, 0, 10)'
//	qrtext -print c -e 'speed = max(speed0, 2) ^ 2'
//	qrtext -wasm filters.wasm -e 'lowpass(0.5, 3)'
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/sandrolain/qrtext"
	"github.com/sandrolain/qrtext/pkg/evaluator"
	"github.com/sandrolain/qrtext/pkg/ext"
	"github.com/sandrolain/qrtext/pkg/ext/extwasm"
	"github.com/sandrolain/qrtext/pkg/printer"
	"github.com/sandrolain/qrtext/pkg/types"
)

const appName = "qrtext"

type config struct {
	expr      string
	target    string
	templates string
	wasm      string
	wasi      bool
	timeout   int
	debug     bool
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	var cfg config
	fs := flag.NewFlagSet(appName, flag.ContinueOnError)
	fs.StringVar(&cfg.expr, "e", "", "evaluate `code` and exit")
	fs.StringVar(&cfg.target, "print", "", "print the code in `target` language (lua, c) instead of evaluating it")
	fs.StringVar(&cfg.templates, "templates", "", "load printer templates from `dir`")
	fs.StringVar(&cfg.wasm, "wasm", "", "register the exports of a WebAssembly `module` as functions")
	fs.BoolVar(&cfg.wasi, "wasi", false, "provide WASI to the WebAssembly module")
	fs.IntVar(&cfg.timeout, "timeout", 0, "interpretation timeout in `ms` (0 = none)")
	fs.BoolVar(&cfg.debug, "debug", false, "enable debug logging")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "%s %s\n\nUsage:\n  %s [flags] [file ...]\n\nFlags:\n", appName, qrtext.Version(), appName)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}

	level := slog.LevelWarn
	if cfg.debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx := context.Background()
	s, err := newSession(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, red(err.Error()))
		return 1
	}
	defer s.close(ctx)

	switch {
	case cfg.expr != "":
		return s.runOnce("cli", "expr", cfg.expr)
	case fs.NArg() > 0:
		status := 0
		for _, file := range fs.Args() {
			src, err := os.ReadFile(file)
			if err != nil {
				fmt.Fprintf(os.Stderr, "%s: cannot read %s: %v\n", appName, file, err)
				return 1
			}
			if code := s.runOnce(file, filepath.Base(file), string(src)); code != 0 {
				status = code
			}
		}
		return status
	}
	return s.repl()
}

// session is the toolbox state shared by one invocation.
type session struct {
	tb        *qrtext.Toolbox
	target    string
	templates *printer.TemplateSet
	module    *extwasm.Module
	logger    *slog.Logger
}

func newSession(ctx context.Context, cfg config, logger *slog.Logger) (*session, error) {
	opts := []qrtext.Option{
		qrtext.WithLogger(logger),
		qrtext.WithIntrinsics(ext.All()...),
	}
	if cfg.timeout > 0 {
		opts = append(opts, qrtext.WithEvalOptions(evaluator.WithTimeout(msDuration(cfg.timeout))))
	}

	s := &session{target: cfg.target, logger: logger}
	if cfg.wasm != "" {
		wopts := []extwasm.Option{extwasm.WithLogger(logger)}
		if cfg.wasi {
			wopts = append(wopts, extwasm.WithWASI())
		}
		m, err := extwasm.LoadFile(ctx, cfg.wasm, wopts...)
		if err != nil {
			return nil, err
		}
		s.module = m
		opts = append(opts, qrtext.WithIntrinsics(m.Intrinsics()...))
	}

	if cfg.templates != "" {
		set, err := printer.LoadTemplates(os.DirFS(cfg.templates), ".")
		if err != nil {
			return nil, err
		}
		s.templates = set
	}

	s.tb = qrtext.New(opts...)
	return s, nil
}

func (s *session) close(ctx context.Context) {
	if s.module != nil {
		if err := s.module.Close(ctx); err != nil {
			s.logger.Warn("closing wasm module", "error", err)
		}
	}
}

// runOnce interprets or prints one property text and reports its errors.
func (s *session) runOnce(id, property, code string) int {
	if s.target != "" {
		out, ok := s.print(id, property, code, s.target)
		if !ok {
			return 1
		}
		fmt.Println(out)
		return 0
	}

	v := s.tb.InterpretCode(id, property, code)
	if s.reportErrors() {
		return 1
	}
	fmt.Println(evaluator.FormatValue(v))
	return 0
}

// print translates code to target. Texts with errors are not printed.
func (s *session) print(id, property, code, target string) (string, bool) {
	tree := s.tb.Parse(id, property, code)
	if s.reportErrors() {
		return "", false
	}

	set := s.templates
	if set == nil {
		var err error
		if set, err = printer.Templates(target); err != nil {
			fmt.Fprintf(os.Stderr, "%s: unknown target %q (available: %v)\n", appName, target, printer.Targets())
			return "", false
		}
	}
	p := s.tb.Printer(set, printer.WithPrecedenceTable(printer.PrecedenceFor(target)))
	out := p.Print(tree.Root())
	if s.reportErrors() {
		return "", false
	}
	return out, true
}

// reportErrors writes the errors of the latest toolbox call to stderr and
// reports whether there were any.
func (s *session) reportErrors() bool {
	errs := s.tb.Errors()
	for _, e := range errs {
		fmt.Fprintln(os.Stderr, formatError(e))
	}
	return len(errs) > 0
}

func formatError(e *types.Error) string {
	loc := ""
	if e.Connection.Line > 0 {
		loc = fmt.Sprintf("%d:%d: ", e.Connection.Line, e.Connection.Column)
		if e.Connection.ID != "" {
			loc = fmt.Sprintf("%s/%s:%s", e.Connection.ID, e.Connection.Property, loc)
		}
	}
	return red(fmt.Sprintf("%s%s error %s: %s", loc, e.Severity, e.Code, e.Message))
}

func red(s string) string   { return "\x1b[31m" + s + "\x1b[0m" }
func green(s string) string { return "\x1b[32m" + s + "\x1b[0m" }
func blue(s string) string  { return "\x1b[94m" + s + "\x1b[0m" }
