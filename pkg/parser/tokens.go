package parser

import "github.com/sandrolain/qrtext/pkg/types"

// TokenType represents the type of a lexical token.
type TokenType uint8

const (
	// Special tokens
	TokenEOF TokenType = iota

	// Literals
	TokenIdentifier // name
	TokenInteger    // 42, 0xff
	TokenFloat      // 3.14, 1e-10
	TokenString     // "hello", 'hello', [[hello]]

	// Keywords
	TokenAnd   // and, &&
	TokenOr    // or, ||
	TokenNot   // not, !
	TokenNil   // nil
	TokenTrue  // true
	TokenFalse // false

	// Grouping symbols
	TokenParenOpen    // (
	TokenParenClose   // )
	TokenBracketOpen  // [
	TokenBracketClose // ]
	TokenBraceOpen    // {
	TokenBraceClose   // }

	// Basic symbols
	TokenComma     // ,
	TokenSemicolon // ;
	TokenColon     // :
	TokenDot       // .
	TokenAssign    // =

	// Arithmetic operators
	TokenPlus   // +
	TokenMinus  // -
	TokenMult   // *
	TokenDiv    // /
	TokenIntDiv // //
	TokenMod    // %
	TokenPow    // ^
	TokenLength // #

	// Bitwise operators
	TokenAmpersand  // &
	TokenTilde      // ~
	TokenPipe       // |
	TokenShiftLeft  // <<
	TokenShiftRight // >>

	// Other operators
	TokenConcat // ..

	// Comparison operators
	TokenEqual        // ==
	TokenNotEqual     // ~=, !=
	TokenLess         // <
	TokenLessEqual    // <=
	TokenGreater      // >
	TokenGreaterEqual // >=

	tokenTypeCount
)

var tokenSymbols = [tokenTypeCount]string{
	TokenEOF:          "(eof)",
	TokenIdentifier:   "(identifier)",
	TokenInteger:      "(integer)",
	TokenFloat:        "(float)",
	TokenString:       "(string)",
	TokenAnd:          "and",
	TokenOr:           "or",
	TokenNot:          "not",
	TokenNil:          "nil",
	TokenTrue:         "true",
	TokenFalse:        "false",
	TokenParenOpen:    "(",
	TokenParenClose:   ")",
	TokenBracketOpen:  "[",
	TokenBracketClose: "]",
	TokenBraceOpen:    "{",
	TokenBraceClose:   "}",
	TokenComma:        ",",
	TokenSemicolon:    ";",
	TokenColon:        ":",
	TokenDot:          ".",
	TokenAssign:       "=",
	TokenPlus:         "+",
	TokenMinus:        "-",
	TokenMult:         "*",
	TokenDiv:          "/",
	TokenIntDiv:       "//",
	TokenMod:          "%",
	TokenPow:          "^",
	TokenLength:       "#",
	TokenAmpersand:    "&",
	TokenTilde:        "~",
	TokenPipe:         "|",
	TokenShiftLeft:    "<<",
	TokenShiftRight:   ">>",
	TokenConcat:       "..",
	TokenEqual:        "==",
	TokenNotEqual:     "~=",
	TokenLess:         "<",
	TokenLessEqual:    "<=",
	TokenGreater:      ">",
	TokenGreaterEqual: ">=",
}

// String returns a string representation of the token type.
func (tt TokenType) String() string {
	if tt < tokenTypeCount {
		return tokenSymbols[tt]
	}
	return "(unknown)"
}

// UserFriendlyTokenNames maps token types to the names used in diagnostics,
// e.g. "expected ')'" or "unexpected end of input".
func UserFriendlyTokenNames() map[TokenType]string {
	names := make(map[TokenType]string, tokenTypeCount)
	for tt := TokenType(0); tt < tokenTypeCount; tt++ {
		names[tt] = "'" + tokenSymbols[tt] + "'"
	}
	names[TokenEOF] = "end of input"
	names[TokenIdentifier] = "identifier"
	names[TokenInteger] = "integer number"
	names[TokenFloat] = "floating point number"
	names[TokenString] = "string"
	return names
}

// Token represents a lexical token.
type Token struct {
	Type  TokenType   // Type of the token
	Value string      // Lexeme as written; decoded contents for strings
	Range types.Range // Source span of the token
}

// Start returns the position of the first character of the token.
func (t Token) Start() types.Connection {
	return t.Range.Start
}

// symbols1 maps single-character symbols to token types.
var symbols1 = [...]TokenType{
	'(': TokenParenOpen,
	')': TokenParenClose,
	'[': TokenBracketOpen,
	']': TokenBracketClose,
	'{': TokenBraceOpen,
	'}': TokenBraceClose,
	',': TokenComma,
	';': TokenSemicolon,
	':': TokenColon,
	'.': TokenDot,
	'=': TokenAssign,
	'+': TokenPlus,
	'-': TokenMinus,
	'*': TokenMult,
	'/': TokenDiv,
	'%': TokenMod,
	'^': TokenPow,
	'#': TokenLength,
	'&': TokenAmpersand,
	'~': TokenTilde,
	'|': TokenPipe,
	'<': TokenLess,
	'>': TokenGreater,
	'!': TokenNot,
}

// runeTokenType pairs a rune with its corresponding token type.
type runeTokenType struct {
	r  rune
	tt TokenType
}

// symbols2 maps two-character symbol sequences to token types.
// The key is the first character of the sequence. The C-style spellings
// &&, ||, != are accepted as aliases of and, or, ~=.
var symbols2 = [...][]runeTokenType{
	'=': {{'=', TokenEqual}},
	'~': {{'=', TokenNotEqual}},
	'!': {{'=', TokenNotEqual}},
	'<': {{'=', TokenLessEqual}, {'<', TokenShiftLeft}},
	'>': {{'=', TokenGreaterEqual}, {'>', TokenShiftRight}},
	'/': {{'/', TokenIntDiv}},
	'.': {{'.', TokenConcat}},
	'&': {{'&', TokenAnd}},
	'|': {{'|', TokenOr}},
}

const (
	symbol1Count = rune(len(symbols1))
	symbol2Count = rune(len(symbols2))
)

// lookupSymbol1 returns the token type for a single-character symbol.
// The second result is false if the rune is not a valid symbol.
func lookupSymbol1(r rune) (TokenType, bool) {
	if r < 0 || r >= symbol1Count {
		return 0, false
	}
	tt := symbols1[r]
	// TokenEOF is the zero value and marks unused slots.
	return tt, tt != TokenEOF
}

// lookupSymbol2 returns possible two-character symbol completions.
// Returns nil if the rune cannot start a two-character symbol.
func lookupSymbol2(r rune) []runeTokenType {
	if r < 0 || r >= symbol2Count {
		return nil
	}
	return symbols2[r]
}

// lookupKeyword returns the token type for a keyword.
// The second result is false if the string is not a keyword.
func lookupKeyword(s string) (TokenType, bool) {
	switch s {
	case "and":
		return TokenAnd, true
	case "or":
		return TokenOr, true
	case "not":
		return TokenNot, true
	case "nil":
		return TokenNil, true
	case "true":
		return TokenTrue, true
	case "false":
		return TokenFalse, true
	default:
		return 0, false
	}
}
