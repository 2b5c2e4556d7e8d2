package parser

import (
	"fmt"

	"github.com/sandrolain/qrtext/pkg/types"
)

// TokenStream is a cursor over a token slice that reports mismatches in
// terms of user-friendly token names.
//
// The stream never moves past the final TokenEOF.
type TokenStream struct {
	tokens []Token
	pos    int
	names  map[TokenType]string
	errors *types.ErrorList
}

// NewTokenStream creates a stream over tokens. The slice must end with TokenEOF.
func NewTokenStream(tokens []Token, errors *types.ErrorList) *TokenStream {
	if len(tokens) == 0 || tokens[len(tokens)-1].Type != TokenEOF {
		tokens = append(tokens, Token{Type: TokenEOF})
	}
	return &TokenStream{
		tokens: tokens,
		names:  UserFriendlyTokenNames(),
		errors: errors,
	}
}

// Peek returns the current token without consuming it.
func (s *TokenStream) Peek() Token {
	return s.tokens[s.pos]
}

// PeekAt returns the token n positions ahead of the current one.
// Positions past the end yield the final TokenEOF.
func (s *TokenStream) PeekAt(n int) Token {
	if i := s.pos + n; i < len(s.tokens) {
		return s.tokens[i]
	}
	return s.tokens[len(s.tokens)-1]
}

// Is reports whether the current token has the given type.
func (s *TokenStream) Is(tt TokenType) bool {
	return s.tokens[s.pos].Type == tt
}

// Consume returns the current token and advances past it.
func (s *TokenStream) Consume() Token {
	t := s.tokens[s.pos]
	if s.pos < len(s.tokens)-1 {
		s.pos++
	}
	return t
}

// Expect consumes the current token if it has type tt. Otherwise it reports
// an "expected" error at the current token, consumes nothing and returns false.
func (s *TokenStream) Expect(tt TokenType) (Token, bool) {
	if s.Is(tt) {
		return s.Consume(), true
	}
	s.errors.Add(s.ExpectationError(s.names[tt]))
	return s.Peek(), false
}

// AtEnd reports whether only TokenEOF is left.
func (s *TokenStream) AtEnd() bool {
	return s.Is(TokenEOF)
}

// Name returns the user-friendly name of a token type.
func (s *TokenStream) Name(tt TokenType) string {
	return s.names[tt]
}

// ExpectationError builds an error stating what was expected at the
// current token and what was found instead.
func (s *TokenStream) ExpectationError(expected string) *types.Error {
	t := s.Peek()
	code := types.ErrExpectedToken
	if t.Type == TokenEOF {
		code = types.ErrUnexpectedEnd
	}
	return types.NewError(code, fmt.Sprintf("expected %s, found %s", expected, s.describe(t)), t.Start()).
		WithToken(t.Value)
}

// UnexpectedError builds an error for a token that cannot appear here.
func (s *TokenStream) UnexpectedError() *types.Error {
	t := s.Peek()
	code := types.ErrUnexpectedToken
	if t.Type == TokenEOF {
		code = types.ErrUnexpectedEnd
	}
	return types.NewError(code, fmt.Sprintf("unexpected %s", s.describe(t)), t.Start()).
		WithToken(t.Value)
}

func (s *TokenStream) describe(t Token) string {
	switch t.Type {
	case TokenIdentifier, TokenInteger, TokenFloat:
		return fmt.Sprintf("%s '%s'", s.names[t.Type], t.Value)
	}
	return s.names[t.Type]
}
