package parser

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/sandrolain/qrtext/pkg/types"
)

const eof = -1

// Lexer converts source text into a sequence of tokens.
// The implementation is based on Rob Pike's "Lexical Scanning in Go" technique.
//
// The lexer never stops on bad input: unscannable characters are reported
// to the error list and skipped, unterminated strings and comments are
// reported and closed at the end of input. The last token is always TokenEOF.
type Lexer struct {
	input      string // Input string being scanned
	length     int    // Length of input string
	start      int    // Start position of current token
	current    int    // Current position in input
	width      int    // Width of last rune read
	lineStarts []int  // Offsets at which each line begins
	errors     *types.ErrorList
}

// NewLexer creates a new lexer from the provided input string.
// Diagnostics are appended to errors.
func NewLexer(input string, errors *types.ErrorList) *Lexer {
	lineStarts := []int{0}
	for i := 0; i < len(input); i++ {
		if input[i] == '\n' {
			lineStarts = append(lineStarts, i+1)
		}
	}
	return &Lexer{
		input:      input,
		length:     len(input),
		lineStarts: lineStarts,
		errors:     errors,
	}
}

// Tokenize scans the whole input and returns its tokens, the last one
// being TokenEOF.
func Tokenize(input string, errors *types.ErrorList) []Token {
	l := NewLexer(input, errors)
	var tokens []Token
	for {
		t := l.Next()
		tokens = append(tokens, t)
		if t.Type == TokenEOF {
			return tokens
		}
	}
}

// Next returns the next token from the input.
// When the end of the input is reached, Next returns TokenEOF for all subsequent calls.
func (l *Lexer) Next() Token {
	for {
		l.skipWhitespaceAndComments()

		ch := l.nextRune()
		if ch == eof {
			return l.eof()
		}

		switch {
		case ch == '.' && isDigit(l.peekAt(0)):
			l.backup()
			return l.scanNumber()
		case ch == '[' && l.longBracketLevel(l.current-1) >= 0:
			l.backup()
			return l.scanLongString()
		case ch == '"' || ch == '\'':
			return l.scanString(ch)
		case isDigit(ch):
			l.backup()
			return l.scanNumber()
		case isIdentifierStart(ch):
			l.backup()
			return l.scanIdentifier()
		}

		// Check for two-character symbols first (e.g., ==, <=, ..)
		if rts := lookupSymbol2(ch); rts != nil {
			for _, rt := range rts {
				if l.acceptRune(rt.r) {
					return l.newToken(rt.tt)
				}
			}
		}

		// Check for single-character symbols
		if tt, ok := lookupSymbol1(ch); ok {
			return l.newToken(tt)
		}

		l.errors.Addf(types.ErrUnscannable, l.position(l.start), "unexpected character %q", ch).
			WithToken(string(ch))
		l.ignore()
	}
}

// scanString reads a quoted string literal. The opening quote has already
// been consumed. The token value holds the decoded contents.
func (l *Lexer) scanString(quote rune) Token {
	var sb strings.Builder

	for {
		r := l.nextRune()
		switch r {
		case quote:
			return l.newStringToken(sb.String())
		case eof, '\n':
			if r == '\n' {
				l.backup()
			}
			l.errors.Addf(types.ErrStringNotClosed, l.position(l.start), "unterminated string literal")
			return l.newStringToken(sb.String())
		case '\\':
			l.scanEscape(&sb)
		default:
			sb.WriteRune(r)
		}
	}
}

// scanEscape decodes the escape sequence following a backslash.
func (l *Lexer) scanEscape(sb *strings.Builder) {
	escStart := l.current - 1
	r := l.nextRune()
	switch r {
	case 'n':
		sb.WriteByte('\n')
	case 't':
		sb.WriteByte('\t')
	case 'r':
		sb.WriteByte('\r')
	case 'a':
		sb.WriteByte('\a')
	case 'b':
		sb.WriteByte('\b')
	case 'f':
		sb.WriteByte('\f')
	case 'v':
		sb.WriteByte('\v')
	case '0':
		sb.WriteByte(0)
	case '\\', '"', '\'', '\n':
		sb.WriteRune(r)
	case 'x':
		hi, lo := l.nextRune(), l.nextRune()
		if isHexDigit(hi) && isHexDigit(lo) {
			sb.WriteByte(byte(hexValue(hi)<<4 | hexValue(lo)))
			return
		}
		l.current = escStart + 2
		l.errors.Addf(types.ErrUnsupportedEscape, l.position(escStart), "hexadecimal digits expected after \\x")
	case eof:
		// reported as unterminated string by the caller
	default:
		l.errors.Addf(types.ErrUnsupportedEscape, l.position(escStart), "unsupported escape sequence \\%c", r)
		sb.WriteRune(r)
	}
}

// scanLongString reads a [[...]] or [==[...]==] string literal.
func (l *Lexer) scanLongString() Token {
	level := l.longBracketLevel(l.current)
	l.current += level + 2
	// A newline immediately following the opening bracket is skipped.
	if strings.HasPrefix(l.input[l.current:], "\r\n") {
		l.current += 2
	} else if l.current < l.length && l.input[l.current] == '\n' {
		l.current++
	}

	closing := "]" + strings.Repeat("=", level) + "]"
	idx := strings.Index(l.input[l.current:], closing)
	if idx < 0 {
		contents := l.input[l.current:]
		l.current = l.length
		l.errors.Addf(types.ErrStringNotClosed, l.position(l.start), "unterminated long string")
		return l.newStringToken(contents)
	}

	contents := l.input[l.current : l.current+idx]
	l.current += idx + len(closing)
	return l.newStringToken(contents)
}

// scanNumber reads a number literal from the current position.
// Supports decimal integers, hexadecimal integers, decimals and
// scientific notation. A number immediately followed by letters is
// reported as malformed and consumed as a whole.
func (l *Lexer) scanNumber() Token {
	tt := TokenInteger

	if l.acceptRune('0') && l.acceptRunes2('x', 'X') {
		if !l.acceptAll(isHexDigit) {
			l.errors.Addf(types.ErrMalformedNumber, l.position(l.start), "malformed number near '%s'", l.input[l.start:l.current])
		}
	} else {
		l.acceptAll(isDigit)

		// Decimal part. Two dots form the concatenation operator instead.
		if l.peek() == '.' && l.peekAt(1) != '.' {
			l.nextRune()
			l.acceptAll(isDigit)
			tt = TokenFloat
		}

		// Exponent part
		if l.acceptRunes2('e', 'E') {
			tt = TokenFloat
			l.acceptRunes2('+', '-')
			if !l.acceptAll(isDigit) {
				l.errors.Addf(types.ErrMalformedNumber, l.position(l.start), "malformed number near '%s'", l.input[l.start:l.current])
			}
		}
	}

	if l.acceptAll(isIdentifierChar) {
		l.errors.Addf(types.ErrMalformedNumber, l.position(l.start), "malformed number near '%s'", l.input[l.start:l.current])
	}

	return l.newToken(tt)
}

// scanIdentifier reads an identifier or keyword from the current position.
func (l *Lexer) scanIdentifier() Token {
	l.acceptAll(isIdentifierChar)
	t := l.newToken(TokenIdentifier)
	if tt, ok := lookupKeyword(t.Value); ok {
		t.Type = tt
	}
	return t
}

// longBracketLevel returns the level of a long bracket opening at offset
// ("[[" is level 0, "[==[" level 2), or -1 if there is none.
func (l *Lexer) longBracketLevel(offset int) int {
	if offset >= l.length || l.input[offset] != '[' {
		return -1
	}
	i := offset + 1
	for i < l.length && l.input[i] == '=' {
		i++
	}
	if i < l.length && l.input[i] == '[' {
		return i - offset - 1
	}
	return -1
}

// Helper methods

// position converts a byte offset into a connection.
func (l *Lexer) position(offset int) types.Connection {
	line := sort.SearchInts(l.lineStarts, offset+1) - 1
	if line < 0 {
		line = 0
	}
	return types.NewConnection(offset, line+1, offset-l.lineStarts[line]+1)
}

func (l *Lexer) span() types.Range {
	end := l.current - 1
	if end < l.start {
		end = l.start
	}
	return types.NewRange(l.position(l.start), l.position(end))
}

func (l *Lexer) eof() Token {
	l.start = l.length
	conn := l.position(l.length)
	return Token{
		Type:  TokenEOF,
		Range: types.NewRange(conn, conn),
	}
}

func (l *Lexer) newToken(tt TokenType) Token {
	t := Token{
		Type:  tt,
		Value: l.input[l.start:l.current],
		Range: l.span(),
	}
	l.width = 0
	l.start = l.current
	return t
}

func (l *Lexer) newStringToken(contents string) Token {
	t := l.newToken(TokenString)
	t.Value = contents
	return t
}

func (l *Lexer) nextRune() rune {
	if l.current >= l.length {
		l.width = 0
		return eof
	}

	r, w := utf8.DecodeRuneInString(l.input[l.current:])
	l.width = w
	l.current += w
	return r
}

func (l *Lexer) peek() rune {
	r := l.nextRune()
	l.backup()
	return r
}

func (l *Lexer) peekAt(n int) rune {
	offset := l.current
	for i := 0; i < n && offset < l.length; i++ {
		_, w := utf8.DecodeRuneInString(l.input[offset:])
		offset += w
	}
	if offset >= l.length {
		return eof
	}
	r, _ := utf8.DecodeRuneInString(l.input[offset:])
	return r
}

func (l *Lexer) backup() {
	l.current -= l.width
	l.width = 0
}

func (l *Lexer) ignore() {
	l.start = l.current
}

func (l *Lexer) acceptRune(r rune) bool {
	return l.accept(func(c rune) bool {
		return c == r
	})
}

func (l *Lexer) acceptRunes2(r1, r2 rune) bool {
	return l.accept(func(c rune) bool {
		return c == r1 || c == r2
	})
}

func (l *Lexer) accept(isValid func(rune) bool) bool {
	if isValid(l.nextRune()) {
		return true
	}
	l.backup()
	return false
}

func (l *Lexer) acceptAll(isValid func(rune) bool) bool {
	var matched bool
	for l.accept(isValid) {
		matched = true
	}
	return matched
}

// skipWhitespaceAndComments skips blanks, "--" line comments and
// "--[[ ]]" block comments.
func (l *Lexer) skipWhitespaceAndComments() {
	for {
		l.acceptAll(isWhitespace)
		l.ignore()

		if !strings.HasPrefix(l.input[l.current:], "--") {
			return
		}
		l.current += 2

		if level := l.longBracketLevel(l.current); level >= 0 {
			closing := "]" + strings.Repeat("=", level) + "]"
			idx := strings.Index(l.input[l.current:], closing)
			if idx < 0 {
				l.errors.Addf(types.ErrCommentNotClosed, l.position(l.start), "unterminated comment")
				l.current = l.length
			} else {
				l.current += idx + len(closing)
			}
		} else if idx := strings.IndexByte(l.input[l.current:], '\n'); idx >= 0 {
			l.current += idx + 1
		} else {
			l.current = l.length
		}
		l.ignore()
	}
}

// Character classification functions

func isWhitespace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	default:
		return false
	}
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func isHexDigit(r rune) bool {
	return isDigit(r) || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}

func hexValue(r rune) int {
	switch {
	case isDigit(r):
		return int(r - '0')
	case r >= 'a' && r <= 'f':
		return int(r-'a') + 10
	default:
		return int(r-'A') + 10
	}
}

func isIdentifierStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdentifierChar(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
