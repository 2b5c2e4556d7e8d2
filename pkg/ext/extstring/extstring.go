// Package extstring provides string intrinsics for qrtext code.
//
// Every intrinsic takes the string as its first argument, so they can be
// called both as functions and as methods on string values:
//
//	upper("abc")   -- "ABC"
//	s:sub(2, -2)   -- same as sub(s, 2, -2)
//
// Positions are 1-based byte offsets and negative positions count from the
// end of the string, like the length operator does.
package extstring

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sandrolain/qrtext/pkg/evaluator"
	"github.com/sandrolain/qrtext/pkg/ext/extutil"
	"github.com/sandrolain/qrtext/pkg/functions"
)

// All returns all string intrinsic definitions.
func All() []functions.IntrinsicDef {
	return []functions.IntrinsicDef{
		Upper(),
		Lower(),
		Len(),
		Sub(),
		Rep(),
		Reverse(),
		Find(),
		StartsWith(),
		EndsWith(),
		Trim(),
		Split(),
		Capitalize(),
		TitleCase(),
		CamelCase(),
		SnakeCase(),
		KebabCase(),
		Words(),
	}
}

// Upper returns the definition for upper(s).
func Upper() functions.IntrinsicDef {
	return stringFunc1("upper", strings.ToUpper)
}

// Lower returns the definition for lower(s).
func Lower() functions.IntrinsicDef {
	return stringFunc1("lower", strings.ToLower)
}

// Trim returns the definition for trim(s): s without leading and trailing
// white space.
func Trim() functions.IntrinsicDef {
	return stringFunc1("trim", strings.TrimSpace)
}

// Reverse returns the definition for reverse(s). Multi-byte characters are
// kept intact.
func Reverse() functions.IntrinsicDef {
	return stringFunc1("reverse", func(s string) string {
		runes := []rune(s)
		for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
			runes[i], runes[j] = runes[j], runes[i]
		}
		return string(runes)
	})
}

// Len returns the definition for len(s), the length of s in bytes.
func Len() functions.IntrinsicDef {
	return functions.IntrinsicDef{
		Name:      "len",
		Signature: "<s:i>",
		Fn: func(_ context.Context, args ...any) (any, error) {
			s, err := extutil.ToString(args[0])
			if err != nil {
				return nil, fmt.Errorf("len: %w", err)
			}
			return int64(len(s)), nil
		},
	}
}

// Sub returns the definition for sub(s, i [, j]): the substring from i to j
// inclusive. j defaults to -1, the last byte.
func Sub() functions.IntrinsicDef {
	return functions.IntrinsicDef{
		Name:      "sub",
		Signature: "<s-i-i?:s>",
		Fn: func(_ context.Context, args ...any) (any, error) {
			s, err := extutil.ToString(args[0])
			if err != nil {
				return nil, fmt.Errorf("sub: %w", err)
			}
			i, err := extutil.ToInt(args[1])
			if err != nil {
				return nil, fmt.Errorf("sub: %w", err)
			}
			j := int64(-1)
			if v := extutil.Optional(args, 2); v != nil {
				if j, err = extutil.ToInt(v); err != nil {
					return nil, fmt.Errorf("sub: %w", err)
				}
			}
			start, end := bounds(i, j, int64(len(s)))
			if start > end {
				return "", nil
			}
			return s[start-1 : end], nil
		},
	}
}

// bounds converts 1-based inclusive positions, possibly negative, to a
// clamped range in [1, n].
func bounds(i, j, n int64) (int64, int64) {
	if i < 0 {
		i = max(n+i+1, 1)
	} else if i == 0 {
		i = 1
	}
	if j < 0 {
		j = n + j + 1
	} else if j > n {
		j = n
	}
	return i, j
}

// Rep returns the definition for rep(s, n [, sep]).
func Rep() functions.IntrinsicDef {
	return functions.IntrinsicDef{
		Name:      "rep",
		Signature: "<s-i-s?:s>",
		Fn: func(_ context.Context, args ...any) (any, error) {
			s, err := extutil.ToString(args[0])
			if err != nil {
				return nil, fmt.Errorf("rep: %w", err)
			}
			n, err := extutil.ToInt(args[1])
			if err != nil {
				return nil, fmt.Errorf("rep: %w", err)
			}
			if n <= 0 {
				return "", nil
			}
			sep := ""
			if v := extutil.Optional(args, 2); v != nil {
				if sep, err = extutil.ToString(v); err != nil {
					return nil, fmt.Errorf("rep: %w", err)
				}
			}
			unit := int64(len(s) + len(sep))
			if unit == 0 {
				return "", nil
			}
			if n > maxRepLength/unit {
				return nil, fmt.Errorf("rep: resulting string too large")
			}
			if sep == "" {
				return strings.Repeat(s, int(n)), nil
			}
			return strings.Repeat(s+sep, int(n-1)) + s, nil
		},
	}
}

const maxRepLength = 1 << 24

// Find returns the definition for find(s, sub [, init]).
// Returns the 1-based position of the first plain occurrence of sub at or
// after init, or nil when there is none.
func Find() functions.IntrinsicDef {
	return functions.IntrinsicDef{
		Name:      "find",
		Signature: "<s-s-i?:x>",
		Fn: func(_ context.Context, args ...any) (any, error) {
			s, err := extutil.ToString(args[0])
			if err != nil {
				return nil, fmt.Errorf("find: %w", err)
			}
			sub, err := extutil.ToString(args[1])
			if err != nil {
				return nil, fmt.Errorf("find: %w", err)
			}
			init := int64(1)
			if v := extutil.Optional(args, 2); v != nil {
				if init, err = extutil.ToInt(v); err != nil {
					return nil, fmt.Errorf("find: %w", err)
				}
			}
			start, _ := bounds(init, -1, int64(len(s)))
			if start > int64(len(s))+1 {
				return nil, nil
			}
			idx := strings.Index(s[start-1:], sub)
			if idx < 0 {
				return nil, nil
			}
			return start + int64(idx), nil
		},
	}
}

// StartsWith returns the definition for startsWith(s, prefix).
func StartsWith() functions.IntrinsicDef {
	return predicate("startsWith", strings.HasPrefix)
}

// EndsWith returns the definition for endsWith(s, suffix).
func EndsWith() functions.IntrinsicDef {
	return predicate("endsWith", strings.HasSuffix)
}

// Split returns the definition for split(s [, sep]).
// Without sep the string is split on white space.
func Split() functions.IntrinsicDef {
	return functions.IntrinsicDef{
		Name:      "split",
		Signature: "<s-s?:t<s>>",
		Fn: func(_ context.Context, args ...any) (any, error) {
			s, err := extutil.ToString(args[0])
			if err != nil {
				return nil, fmt.Errorf("split: %w", err)
			}
			sep := extutil.Optional(args, 1)
			if sep == nil {
				return stringTable(strings.Fields(s)), nil
			}
			str, err := extutil.ToString(sep)
			if err != nil {
				return nil, fmt.Errorf("split: %w", err)
			}
			return stringTable(strings.Split(s, str)), nil
		},
	}
}

// Capitalize returns the definition for capitalize(s).
// Uppercases the first character, lowercases the rest.
func Capitalize() functions.IntrinsicDef {
	return stringFunc1("capitalize", func(s string) string {
		if s == "" {
			return s
		}
		runes := []rune(strings.ToLower(s))
		runes[0] = unicode.ToUpper(runes[0])
		return string(runes)
	})
}

// TitleCase returns the definition for titleCase(s).
// Uppercases the first character of each word.
func TitleCase() functions.IntrinsicDef {
	return stringFunc1("titleCase", func(s string) string {
		return cases.Title(language.Und).String(s)
	})
}

// CamelCase returns the definition for camelCase(s).
func CamelCase() functions.IntrinsicDef {
	return stringFunc1("camelCase", func(s string) string {
		words := splitIntoWords(s)
		if len(words) == 0 {
			return ""
		}
		var b strings.Builder
		b.WriteString(strings.ToLower(words[0]))
		for _, w := range words[1:] {
			runes := []rune(strings.ToLower(w))
			runes[0] = unicode.ToUpper(runes[0])
			b.WriteString(string(runes))
		}
		return b.String()
	})
}

// SnakeCase returns the definition for snakeCase(s).
func SnakeCase() functions.IntrinsicDef {
	return stringFunc1("snakeCase", func(s string) string {
		return joinLower(splitIntoWords(s), "_")
	})
}

// KebabCase returns the definition for kebabCase(s).
func KebabCase() functions.IntrinsicDef {
	return stringFunc1("kebabCase", func(s string) string {
		return joinLower(splitIntoWords(s), "-")
	})
}

// Words returns the definition for words(s).
// Splits camelCase, snake_case, kebab-case and spaced text into a table of
// words.
func Words() functions.IntrinsicDef {
	return functions.IntrinsicDef{
		Name:      "words",
		Signature: "<s:t<s>>",
		Fn: func(_ context.Context, args ...any) (any, error) {
			s, err := extutil.ToString(args[0])
			if err != nil {
				return nil, fmt.Errorf("words: %w", err)
			}
			return stringTable(splitIntoWords(s)), nil
		},
	}
}

// ── helpers ────────────────────────────────────────────────────────────────

var splitWordsRe = regexp.MustCompile(`[_\-\s]+|([a-z0-9])([A-Z])`)

// splitIntoWords splits a string by camelCase, snake_case, kebab-case and
// spaces.
func splitIntoWords(s string) []string {
	expanded := splitWordsRe.ReplaceAllString(s, "$1 $2")
	return strings.Fields(expanded)
}

func joinLower(words []string, sep string) string {
	for i, w := range words {
		words[i] = strings.ToLower(w)
	}
	return strings.Join(words, sep)
}

func stringTable(parts []string) *evaluator.Table {
	values := make([]any, len(parts))
	for i, p := range parts {
		values[i] = p
	}
	return evaluator.NewArray(values...)
}

func stringFunc1(name string, fn func(string) string) functions.IntrinsicDef {
	return functions.IntrinsicDef{
		Name:      name,
		Signature: "<s:s>",
		Fn: func(_ context.Context, args ...any) (any, error) {
			s, err := extutil.ToString(args[0])
			if err != nil {
				return nil, fmt.Errorf("%s: %w", name, err)
			}
			return fn(s), nil
		},
	}
}

func predicate(name string, fn func(s, arg string) bool) functions.IntrinsicDef {
	return functions.IntrinsicDef{
		Name:      name,
		Signature: "<s-s:b>",
		Fn: func(_ context.Context, args ...any) (any, error) {
			s, err := extutil.ToString(args[0])
			if err != nil {
				return nil, fmt.Errorf("%s: %w", name, err)
			}
			arg, err := extutil.ToString(args[1])
			if err != nil {
				return nil, fmt.Errorf("%s: %w", name, err)
			}
			return fn(s, arg), nil
		},
	}
}
