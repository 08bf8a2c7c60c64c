// Package pattern translates glob-like path patterns into regular expressions
// and holds them compiled for reuse across every path of a run.
package pattern

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// Matcher is a single compiled pattern together with its source text.
type Matcher struct {
	Source string         // Pattern as written in the configuration.
	Regex  *regexp.Regexp // Compiled form matched against normalized paths.
}

// MatchString reports whether the normalized path matches the pattern.
func (m *Matcher) MatchString(path string) bool {
	return m.Regex.MatchString(path)
}

// IsRegex reports whether a pattern is already a regular expression.
// Patterns anchored with a leading '^' or a trailing '$' are used verbatim.
func IsRegex(p string) bool {
	return strings.HasPrefix(p, "^") || strings.HasSuffix(p, "$")
}

// ToRegex converts glob syntax to an equivalent, unanchored regular expression.
func ToRegex(glob string) string {
	var sb strings.Builder
	sb.Grow(len(glob) * 2)

	runes := []rune(glob)
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		switch {
		case c == '*':
			if i+1 < len(runes) && runes[i+1] == '*' {
				i++
				sb.WriteString(".*")
			} else {
				sb.WriteString("[^/]*")
			}
		case c == '?':
			sb.WriteByte('.')
		case c == '.':
			sb.WriteString(`\.`)
		case c == '/':
			sb.WriteByte('/')
		case c == '[':
			// Character classes pass through untouched up to the closing bracket.
			sb.WriteRune(c)
			for i+1 < len(runes) {
				i++
				sb.WriteRune(runes[i])
				if runes[i] == ']' {
					break
				}
			}
		case c == '{':
			sb.WriteByte('(')
			for i+1 < len(runes) {
				i++
				if runes[i] == '}' {
					sb.WriteByte(')')
					break
				}
				if runes[i] == ',' {
					sb.WriteByte('|')
				} else {
					sb.WriteRune(runes[i])
				}
			}
		case unicode.IsLetter(c) || unicode.IsDigit(c) || c == '_' || c == '-':
			sb.WriteRune(c)
		default:
			sb.WriteString(regexp.QuoteMeta(string(c)))
		}
	}
	return sb.String()
}

// Compile builds a Matcher from a glob or an anchored regular expression.
func Compile(p string) (*Matcher, error) {
	expr := p
	if !IsRegex(p) {
		expr = ToRegex(p)
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", p, err)
	}
	return &Matcher{Source: p, Regex: re}, nil
}

// Set is an ordered collection of compiled matchers.
type Set struct {
	matchers []*Matcher
}

// CompileAll compiles every pattern in order. Patterns that fail to compile
// are left out of the set and reported by index; the remaining patterns still
// compile.
func CompileAll(patterns []string) (*Set, map[int]error) {
	s := &Set{matchers: make([]*Matcher, 0, len(patterns))}
	var errs map[int]error
	for i, p := range patterns {
		m, err := Compile(p)
		if err != nil {
			if errs == nil {
				errs = make(map[int]error)
			}
			errs[i] = err
			continue
		}
		s.matchers = append(s.matchers, m)
	}
	return s, errs
}

// Len returns the number of compiled matchers.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.matchers)
}

// Match returns the first matcher that matches path, or nil.
func (s *Set) Match(path string) *Matcher {
	if s == nil {
		return nil
	}
	for _, m := range s.matchers {
		if m.MatchString(path) {
			return m
		}
	}
	return nil
}

// MatchesPath reports whether any matcher in the set matches path.
func (s *Set) MatchesPath(path string) bool {
	return s.Match(path) != nil
}
