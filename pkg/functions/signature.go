package functions

import (
	"fmt"
	"strings"

	"github.com/sandrolain/qrtext/pkg/semantics"
	"github.com/sandrolain/qrtext/pkg/types"
)

// Type codes used in signatures.
const (
	TypeAny      = 'x' // any type
	TypeBoolean  = 'b' // boolean
	TypeInteger  = 'i' // integer
	TypeNumber   = 'n' // float, integers are accepted
	TypeString   = 's' // string
	TypeNil      = 'l' // nil
	TypeTable    = 't' // table, optionally t<elem>
	TypeFunction = 'f' // function
)

// ParseSignature parses an intrinsic signature into a function type.
//
// The format is "<params:return>". Each parameter is a type code, a union
// of codes in parentheses such as "(ns)", or "t<code>" for a table with
// typed elements. A "?" suffix marks a parameter optional, a "+" suffix
// makes the last parameter repeatable. Parameters may be separated by "-".
//
// Examples: "<n-n:n>", "<s?:s>", "<n+:n>", "<t<n>:i>", "<(ns):s>"
//
// An empty signature accepts any arguments and returns any type.
func ParseSignature(sig string) (*semantics.Function, error) {
	if sig == "" {
		return &semantics.Function{
			Return:   semantics.Any(),
			Params:   []semantics.Type{semantics.Any()},
			Optional: 1,
			Variadic: true,
		}, nil
	}

	if !strings.HasPrefix(sig, "<") || !strings.HasSuffix(sig, ">") {
		return nil, signatureError(sig, "must be enclosed in < >")
	}
	body := sig[1 : len(sig)-1]

	params, ret := body, ""
	if i := lastColonOutsideBrackets(body); i >= 0 {
		params, ret = body[:i], body[i+1:]
	}

	fn := &semantics.Function{Return: semantics.Nil}
	for i := 0; i < len(params); {
		if params[i] == '-' {
			i++
			continue
		}
		if fn.Variadic {
			return nil, signatureError(sig, "only the last parameter may be repeatable")
		}

		t, n, err := parseType(params[i:])
		if err != nil {
			return nil, signatureError(sig, err.Error())
		}
		i += n

		optional := false
		for i < len(params) && (params[i] == '?' || params[i] == '+') {
			if params[i] == '?' {
				optional = true
			} else {
				fn.Variadic = true
			}
			i++
		}
		switch {
		case optional:
			fn.Optional++
		case fn.Optional > 0:
			return nil, signatureError(sig, "mandatory parameter after optional one")
		}
		fn.Params = append(fn.Params, t)
	}

	if ret != "" {
		t, n, err := parseType(ret)
		if err != nil {
			return nil, signatureError(sig, err.Error())
		}
		if n != len(ret) {
			return nil, signatureError(sig, "unexpected characters after return type")
		}
		fn.Return = t
	}
	return fn, nil
}

// MustParseSignature is like ParseSignature but panics on error.
// It is intended for signatures written as literals in Go code.
func MustParseSignature(sig string) *semantics.Function {
	fn, err := ParseSignature(sig)
	if err != nil {
		panic(err)
	}
	return fn
}

func signatureError(sig, reason string) error {
	return types.NewError(types.ErrInvalidSignature,
		fmt.Sprintf("invalid signature %q: %s", sig, reason), types.NoConnection)
}

// parseType parses one type at the start of s and reports the number of
// bytes consumed.
func parseType(s string) (semantics.Type, int, error) {
	if s == "" {
		return nil, 0, fmt.Errorf("unexpected end of signature")
	}

	switch s[0] {
	case '(':
		end := strings.IndexByte(s, ')')
		if end < 0 {
			return nil, 0, fmt.Errorf("unmatched (")
		}
		var ks []semantics.Kind
		for _, c := range s[1:end] {
			k, ok := kindOf(byte(c))
			if !ok {
				return nil, 0, fmt.Errorf("unknown type code in union: %c", c)
			}
			ks = append(ks, k...)
		}
		if len(ks) == 0 {
			return nil, 0, fmt.Errorf("empty union")
		}
		return semantics.NewTypeVariable(ks...), end + 1, nil

	case TypeTable:
		if len(s) > 1 && s[1] == '<' {
			end := strings.IndexByte(s, '>')
			if end < 0 {
				return nil, 0, fmt.Errorf("unmatched <")
			}
			elem, n, err := parseType(s[2:end])
			if err != nil {
				return nil, 0, err
			}
			if n != end-2 {
				return nil, 0, fmt.Errorf("table element must be a single type")
			}
			return &semantics.Table{Elem: elem}, end + 1, nil
		}
		return &semantics.Table{}, 1, nil

	case TypeFunction:
		return &semantics.Function{Return: semantics.Any(), Params: []semantics.Type{semantics.Any()}, Optional: 1, Variadic: true}, 1, nil

	case TypeAny:
		return semantics.Any(), 1, nil
	}

	ks, ok := kindOf(s[0])
	if !ok {
		return nil, 0, fmt.Errorf("unknown type code: %c", s[0])
	}
	return semantics.BasicOf(ks[0]), 1, nil
}

// kindOf maps a type code to the kinds it stands for.
func kindOf(c byte) ([]semantics.Kind, bool) {
	switch c {
	case TypeAny:
		return []semantics.Kind{
			semantics.KindBoolean, semantics.KindInteger, semantics.KindFloat, semantics.KindString,
			semantics.KindNil, semantics.KindTable, semantics.KindFunction,
		}, true
	case TypeBoolean:
		return []semantics.Kind{semantics.KindBoolean}, true
	case TypeInteger:
		return []semantics.Kind{semantics.KindInteger}, true
	case TypeNumber:
		return []semantics.Kind{semantics.KindFloat}, true
	case TypeString:
		return []semantics.Kind{semantics.KindString}, true
	case TypeNil:
		return []semantics.Kind{semantics.KindNil}, true
	case TypeTable:
		return []semantics.Kind{semantics.KindTable}, true
	case TypeFunction:
		return []semantics.Kind{semantics.KindFunction}, true
	}
	return nil, false
}

func lastColonOutsideBrackets(s string) int {
	depth := 0
	at := -1
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '<', '(':
			depth++
		case '>', ')':
			depth--
		case ':':
			if depth == 0 {
				at = i
			}
		}
	}
	return at
}
