package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/peterh/liner"

	"github.com/sandrolain/qrtext"
	"github.com/sandrolain/qrtext/pkg/evaluator"
	"github.com/sandrolain/qrtext/pkg/parser"
	"github.com/sandrolain/qrtext/pkg/types"
)

const (
	historyFile = ".qrtext_history"
	promptMain  = "qr> "
	promptCont  = "... "
)

var (
	banner   = fmt.Sprintf("qrtext %s REPL\nCtrl+C cancels input, Ctrl+D exits. Type :help for commands.", qrtext.Version())
	helpText = `REPL commands:
  :help            Show this help
  :quit            Exit the REPL
  :type <code>     Show the inferred type of code
  :print <code>    Print code in the current target language
  :target <name>   Set the print target (lua, c)
  :vars            List variables with their types and values
  :load <file>     Interpret a file as one property
  :reset           Forget all variables
`
)

func msDuration(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

func (s *session) repl() int {
	fmt.Println(banner)

	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)
	ln.SetWordCompleter(s.complete)

	defer func() {
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigc)
	go func() {
		<-sigc
		ln.Close()
		os.Exit(130)
	}()

	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}

	if s.target == "" {
		s.target = "lua"
	}

	for {
		code, ok := readByParseProbe(ln, promptMain, promptCont)
		if !ok {
			fmt.Println()
			return 0
		}
		trimmed := strings.TrimSpace(code)
		if trimmed == "" {
			continue
		}
		ln.AppendHistory(strings.ReplaceAll(code, "\n", " "))

		if strings.HasPrefix(trimmed, ":") {
			if quit := s.command(trimmed); quit {
				return 0
			}
			continue
		}

		tree := s.tb.Parse("", "", code)
		if s.reportErrors() {
			continue
		}
		v := s.tb.Interpret(tree)
		if s.reportErrors() {
			continue
		}
		fmt.Println(green(evaluator.FormatValue(v)))
	}
}

// command runs a REPL command and reports whether the REPL should exit.
func (s *session) command(line string) bool {
	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch strings.ToLower(name) {
	case ":quit", ":q":
		return true
	case ":help":
		fmt.Print(helpText)
	case ":type":
		tree := s.tb.Parse("", "", arg)
		if !s.reportErrors() {
			fmt.Println(blue(s.tb.Type(tree.Root()).String()))
		}
	case ":print":
		if out, ok := s.print("", "", arg, s.target); ok {
			fmt.Println(out)
		}
	case ":target":
		if arg == "" {
			fmt.Println(s.target)
			break
		}
		s.target = arg
	case ":vars":
		vars := s.tb.VariableTypes()
		names := make([]string, 0, len(vars))
		for name := range vars {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Printf("%s : %s = %s\n", name, blue(vars[name].String()), evaluator.FormatValue(s.tb.Value(name)))
		}
	case ":load":
		src, err := os.ReadFile(arg)
		if err != nil {
			fmt.Fprintln(os.Stderr, red(err.Error()))
			break
		}
		s.runOnce(arg, filepath.Base(arg), string(src))
	case ":reset":
		s.tb.Clear()
	default:
		fmt.Printf("unknown command %s. Type :help for commands.\n", name)
	}
	return false
}

// complete offers identifiers completing the word under the cursor.
func (s *session) complete(line string, pos int) (string, []string, string) {
	start := pos
	for start > 0 && isNameByte(line[start-1]) {
		start--
	}
	word := line[start:pos]
	if word == "" {
		return line[:pos], nil, line[pos:]
	}
	return line[:start], s.tb.Suggest(word), line[pos:]
}

func isNameByte(c byte) bool {
	return c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

// readByParseProbe reads lines until they form a text whose parse does not
// stop at the end of input.
func readByParseProbe(ln *liner.State, prompt, cont string) (string, bool) {
	var b strings.Builder

	for {
		var line string
		var err error
		if b.Len() == 0 {
			line, err = ln.Prompt(prompt)
		} else {
			line, err = ln.Prompt(cont)
		}
		if errors.Is(err, io.EOF) {
			return "", false
		}
		if err != nil {
			return "", true
		}

		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)

		src := b.String()
		if strings.HasPrefix(strings.TrimSpace(src), ":") || !incomplete(src) {
			return src, true
		}
	}
}

// incomplete reports whether src only fails because input ended early,
// such as an open bracket or a trailing operator.
func incomplete(src string) bool {
	errs := &types.ErrorList{}
	parser.Parse(src, errs)
	for _, e := range errs.Errors() {
		if e.Code == types.ErrUnexpectedEnd || e.Code == types.ErrCommentNotClosed {
			return true
		}
	}
	return false
}
