// Package functions provides types for registering intrinsic functions.
//
// Intrinsics are Go functions callable from qrtext code. Each one comes
// with a signature string that the semantic analyzer uses to type-check
// calls before they are interpreted.
//
// # Example
//
//	tb := qrtext.New()
//	tb.AddIntrinsicFunction(functions.IntrinsicDef{
//	    Name:      "greet",
//	    Signature: "<s:s>",
//	    Fn: func(ctx context.Context, args ...any) (any, error) {
//	        return "Hello, " + args[0].(string) + "!", nil
//	    },
//	})
//	result := tb.InterpretCode("", "", `greet("World")`)
//	// result == "Hello, World!"
package functions

import (
	"context"
	"fmt"

	"github.com/sandrolain/qrtext/pkg/semantics"
)

// IntrinsicFunc is the signature of intrinsic function implementations.
// args contains the evaluated arguments in order: int64, float64, bool,
// string, nil, or a table value of the interpreter. Numeric arguments are
// already converted to the kinds the signature asks for.
type IntrinsicFunc func(ctx context.Context, args ...any) (any, error)

// IntrinsicDef describes an intrinsic function together with its type
// signature (e.g. "<n-n:n>"). An empty Signature accepts any arguments.
type IntrinsicDef struct {
	// Name is the function name as it appears in code.
	Name string
	// Signature is the type signature used for static checking.
	Signature string
	// Fn is the implementation.
	Fn IntrinsicFunc
}

// Type parses the signature of the definition.
func (d IntrinsicDef) Type() (*semantics.Function, error) {
	fn, err := ParseSignature(d.Signature)
	if err != nil {
		return nil, fmt.Errorf("intrinsic %s: %w", d.Name, err)
	}
	return fn, nil
}

// Validate checks that the definition can be registered.
func (d IntrinsicDef) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("intrinsic without name")
	}
	if d.Fn == nil {
		return fmt.Errorf("intrinsic %s: nil implementation", d.Name)
	}
	_, err := d.Type()
	return err
}
