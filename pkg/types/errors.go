package types

import (
	"errors"
	"fmt"
)

// ErrorCode identifies a diagnostic.
type ErrorCode string

// Error codes. The leading letter names the phase that produced the error:
// L lexer, S parser, T semantic analyzer, D interpreter, I internal.
const (
	// L0xxx: Lexical errors
	ErrUnscannable       ErrorCode = "L0101"
	ErrStringNotClosed   ErrorCode = "L0102"
	ErrCommentNotClosed  ErrorCode = "L0103"
	ErrMalformedNumber   ErrorCode = "L0104"
	ErrUnsupportedEscape ErrorCode = "L0105"

	// S0xxx: Syntax errors
	ErrUnexpectedToken ErrorCode = "S0201"
	ErrExpectedToken   ErrorCode = "S0202"
	ErrUnexpectedEnd   ErrorCode = "S0203"
	ErrTooDeep         ErrorCode = "S0204"
	ErrTooManyErrors   ErrorCode = "S0205"

	// Signature errors, raised when registering intrinsics
	ErrInvalidSignature ErrorCode = "S0401"

	// T0xxx: Semantic errors
	ErrArgumentCountMismatch ErrorCode = "T0410"
	ErrInvalidTypeOperation  ErrorCode = "T1003"
	ErrNotAFunction          ErrorCode = "T1004"
	ErrUnknownFunction       ErrorCode = "T1005"
	ErrLeftSideAssignment    ErrorCode = "T2001"
	ErrUndeclaredIdentifier  ErrorCode = "T2002"

	// D0xxx: Interpretation errors
	ErrDivisionByZero    ErrorCode = "D1001"
	ErrInvokeNonFunction ErrorCode = "D1002"
	ErrStackOverflow     ErrorCode = "D3020"
	ErrTypeMismatch      ErrorCode = "D3070"
	ErrIntrinsicFailed   ErrorCode = "D3080"
	ErrTimeout           ErrorCode = "D3090"

	// I0xxx: Internal errors (bugs, never the user's fault)
	ErrInternal        ErrorCode = "I0001"
	ErrPrinterConsumed ErrorCode = "I0002"
	ErrMissingTemplate ErrorCode = "I0003"
)

// Severity classifies how an error should be presented to the user.
type Severity uint8

const (
	// SeveritySyntax marks recoverable lexical and syntax errors.
	SeveritySyntax Severity = iota
	// SeveritySemantic marks type and declaration errors.
	SeveritySemantic
	// SeverityRuntime marks errors raised while interpreting.
	SeverityRuntime
	// SeverityInternal marks broken invariants inside the toolbox itself.
	SeverityInternal
)

func (s Severity) String() string {
	switch s {
	case SeveritySyntax:
		return "syntax"
	case SeveritySemantic:
		return "semantic"
	case SeverityRuntime:
		return "runtime"
	case SeverityInternal:
		return "internal"
	}
	return fmt.Sprintf("Severity(%d)", s)
}

// severityOf derives the severity from the code family.
func severityOf(code ErrorCode) Severity {
	if code == "" {
		return SeverityInternal
	}
	switch code[0] {
	case 'L', 'S':
		return SeveritySyntax
	case 'T':
		return SeveritySemantic
	case 'D':
		return SeverityRuntime
	}
	return SeverityInternal
}

// Error represents a structured diagnostic.
type Error struct {
	Code       ErrorCode
	Severity   Severity
	Message    string
	Connection Connection
	Token      string
	Err        error
}

// NewError creates a new error located at conn. The severity is derived
// from the code family.
func NewError(code ErrorCode, message string, conn Connection) *Error {
	return &Error{
		Code:       code,
		Severity:   severityOf(code),
		Message:    message,
		Connection: conn,
	}
}

// Errorf creates a new error with a formatted message.
func Errorf(code ErrorCode, conn Connection, format string, args ...any) *Error {
	return NewError(code, fmt.Sprintf(format, args...), conn)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Connection.IsValid() {
		return fmt.Sprintf("%s at %s: %s", e.Code, e.Connection, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsLexical reports whether the error was produced by the lexer.
func (e *Error) IsLexical() bool {
	return len(e.Code) > 0 && e.Code[0] == 'L'
}

// WithToken adds token information to the error.
func (e *Error) WithToken(token string) *Error {
	e.Token = token
	return e
}

// WithCause wraps another error.
func (e *Error) WithCause(err error) *Error {
	e.Err = err
	return e
}

// ErrorList accumulates diagnostics produced by the toolbox phases.
//
// The lexer, parser, analyzer, interpreter and printer all append to the
// same list, so a single call can report errors from several phases.
// ErrorList is NOT thread-safe.
type ErrorList struct {
	errs []*Error
}

// Add appends err to the list. Nil errors are ignored.
func (l *ErrorList) Add(err *Error) {
	if err != nil {
		l.errs = append(l.errs, err)
	}
}

// Addf appends a new formatted error.
func (l *ErrorList) Addf(code ErrorCode, conn Connection, format string, args ...any) *Error {
	err := Errorf(code, conn, format, args...)
	l.errs = append(l.errs, err)
	return err
}

// Len returns the number of errors.
func (l *ErrorList) Len() int {
	return len(l.errs)
}

// Empty reports whether the list has no errors.
func (l *ErrorList) Empty() bool {
	return len(l.errs) == 0
}

// Errors returns a copy of the accumulated errors.
func (l *ErrorList) Errors() []*Error {
	out := make([]*Error, len(l.errs))
	copy(out, l.errs)
	return out
}

// Since returns the errors added after the list had n entries.
func (l *ErrorList) Since(n int) []*Error {
	if n >= len(l.errs) {
		return nil
	}
	return l.errs[n:]
}

// Last returns the most recently added error, or nil.
func (l *ErrorList) Last() *Error {
	if len(l.errs) == 0 {
		return nil
	}
	return l.errs[len(l.errs)-1]
}

// HasSeverity reports whether any error has the given severity.
func (l *ErrorList) HasSeverity(s Severity) bool {
	for _, e := range l.errs {
		if e.Severity == s {
			return true
		}
	}
	return false
}

// Stamp binds errors added after index from to the given owner.
func (l *ErrorList) Stamp(from int, id, property string) {
	for _, e := range l.Since(from) {
		if e.Connection.ID == "" && e.Connection.Property == "" {
			e.Connection = e.Connection.WithOwner(id, property)
		}
	}
}

// Clear removes all errors.
func (l *ErrorList) Clear() {
	l.errs = l.errs[:0]
}

// Err returns nil for an empty list, the single error, or all errors joined.
func (l *ErrorList) Err() error {
	switch len(l.errs) {
	case 0:
		return nil
	case 1:
		return l.errs[0]
	}
	errs := make([]error, len(l.errs))
	for i, e := range l.errs {
		errs[i] = e
	}
	return errors.Join(errs...)
}
