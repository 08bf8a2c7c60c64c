// Package ignore implements repository ignore files in the gitignore format.
package ignore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// FileName is the ignore file read from the root of a tree.
const FileName = ".gitignore"

// ErrMalformed is returned when an ignore line cannot be compiled.
var ErrMalformed = errors.New("malformed ignore pattern")

// IgnorePattern encapsulates a compiled regular expression pattern,
// a negation flag, and metadata about the pattern's origin.
type IgnorePattern struct {
	Pattern *regexp.Regexp // Compiled regular expression for the pattern.
	Negate  bool           // Indicates if the pattern is a negation (starts with '!').
	DirOnly bool           // Pattern ended with '/' and only matches directories.
	Line    string         // Original pattern line.
	LineNo  int            // Line number in the source (1-based).
}

// GitIgnore represents a collection of ignore patterns.
type GitIgnore struct {
	Patterns []*IgnorePattern // List of compiled ignore patterns, in source order.
	logger   *zap.Logger
}

// NewGitIgnore initializes a GitIgnore instance with an optional logger.
func NewGitIgnore(logger *zap.Logger) *GitIgnore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GitIgnore{
		Patterns: []*IgnorePattern{},
		logger:   logger,
	}
}

// LoadIgnoreFiles compiles the given ignore files in order. Files that do not
// exist are skipped. Any malformed line fails the whole load.
func LoadIgnoreFiles(logger *zap.Logger, paths ...string) (*GitIgnore, error) {
	gi := NewGitIgnore(logger)
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := gi.CompileIgnoreFile(p); err != nil {
			return nil, err
		}
	}
	return gi, nil
}

// CompileIgnoreLines compiles a set of ignore pattern lines and adds them to the GitIgnore instance.
func (gi *GitIgnore) CompileIgnoreLines(lines ...string) error {
	for i, line := range lines {
		ip, err := parsePatternLine(line)
		if err != nil {
			return fmt.Errorf("line %d %q: %w", i+1, line, err)
		}
		if ip == nil {
			continue
		}
		ip.LineNo = i + 1
		gi.Patterns = append(gi.Patterns, ip)
		gi.logger.Debug("Compiled ignore pattern",
			zap.Int("lineNo", ip.LineNo),
			zap.String("pattern", ip.Line),
			zap.Bool("negate", ip.Negate),
			zap.Bool("dirOnly", ip.DirOnly))
	}
	return nil
}

// CompileIgnoreFile reads an ignore file, parses its lines, and adds them to the GitIgnore instance.
func (gi *GitIgnore) CompileIgnoreFile(fpath string) error {
	content, err := os.ReadFile(fpath)
	if err != nil {
		if os.IsNotExist(err) {
			gi.logger.Debug("Ignore file does not exist and will be skipped", zap.String("filePath", fpath))
			return nil
		}
		gi.logger.Error("Failed to read ignore file", zap.String("filePath", fpath), zap.Error(err))
		return err
	}

	lines := strings.Split(string(content), "\n")
	if err := gi.CompileIgnoreLines(lines...); err != nil {
		return fmt.Errorf("%s: %w", fpath, err)
	}
	gi.logger.Debug("Compiled ignore patterns",
		zap.String("filePath", fpath),
		zap.Int("lineCount", len(lines)),
		zap.Int("patternCount", len(gi.Patterns)))
	return nil
}

// Matches reports whether path is ignored, either directly or because one of
// its parent directories is.
func (gi *GitIgnore) Matches(path string, isDir bool) bool {
	normalizedPath := normalizePath(path)
	if normalizedPath == "" || len(gi.Patterns) == 0 {
		return false
	}

	parts := strings.Split(normalizedPath, "/")
	for i := 1; i < len(parts); i++ {
		if matched, _ := gi.MatchesPathWithPattern(strings.Join(parts[:i], "/"), true); matched {
			return true
		}
	}
	matched, _ := gi.MatchesPathWithPattern(normalizedPath, isDir)
	return matched
}

// MatchesPathWithPattern checks the path itself against every pattern. The
// last matching pattern decides; it is returned alongside the result.
func (gi *GitIgnore) MatchesPathWithPattern(path string, isDir bool) (bool, *IgnorePattern) {
	normalizedPath := normalizePath(path)

	var matchedPattern *IgnorePattern
	matches := false

	for _, pattern := range gi.Patterns {
		if pattern.DirOnly && !isDir {
			continue
		}
		if pattern.Pattern.MatchString(normalizedPath) {
			matchedPattern = pattern
			matches = !pattern.Negate
		}
	}

	return matches, matchedPattern
}

// normalizePath converts OS-specific separators to forward slashes and strips
// leading "./" and trailing "/".
func normalizePath(path string) string {
	p := filepath.ToSlash(path)
	p = strings.TrimPrefix(p, "./")
	p = strings.TrimSuffix(p, "/")
	if p == "." {
		return ""
	}
	return p
}

// parsePatternLine turns one ignore line into a pattern. Blank lines and
// comments yield nil without error.
func parsePatternLine(line string) (*IgnorePattern, error) {
	trimmedLine := trimTrailingSpace(strings.TrimPrefix(line, "\ufeff"))

	if trimmedLine == "" || strings.HasPrefix(trimmedLine, "#") {
		return nil, nil
	}

	negate := false
	if strings.HasPrefix(trimmedLine, "!") {
		negate = true
		trimmedLine = trimmedLine[1:]
	}

	// Handle escaped characters for `#` and `!`.
	if strings.HasPrefix(trimmedLine, `\#`) || strings.HasPrefix(trimmedLine, `\!`) {
		trimmedLine = trimmedLine[1:]
	}

	body := trimmedLine
	dirOnly := false
	if strings.HasSuffix(body, "/") && !strings.HasSuffix(body, `\/`) {
		dirOnly = true
		body = strings.TrimRight(body, "/")
	}
	if body == "" {
		return nil, nil
	}

	anchored := strings.Contains(body, "/")
	body = strings.TrimPrefix(body, "/")

	expr, err := globToRegex(body)
	if err != nil {
		return nil, err
	}
	expr = anchorPattern(expr, anchored)

	compiledRegex, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	return &IgnorePattern{
		Pattern: compiledRegex,
		Negate:  negate,
		DirOnly: dirOnly,
		Line:    line,
	}, nil
}

// trimTrailingSpace drops trailing whitespace unless the last space is escaped.
func trimTrailingSpace(line string) string {
	line = strings.TrimRight(line, "\r")
	trimmed := strings.TrimRight(line, " \t")
	if strings.HasSuffix(trimmed, `\`) && len(trimmed) < len(line) {
		return trimmed[:len(trimmed)-1] + " "
	}
	return trimmed
}

// globToRegex converts gitignore glob syntax into a regular expression body.
func globToRegex(glob string) (string, error) {
	var sb strings.Builder
	runes := []rune(glob)

	for i := 0; i < len(runes); i++ {
		c := runes[i]
		switch c {
		case '*':
			if i+1 < len(runes) && runes[i+1] == '*' {
				start := i
				for i+1 < len(runes) && runes[i+1] == '*' {
					i++
				}
				atStart := start == 0 || runes[start-1] == '/'
				switch {
				case atStart && i+1 < len(runes) && runes[i+1] == '/':
					// "**/" matches zero or more leading directories.
					i++
					sb.WriteString("(?:.*/)?")
				case atStart && i+1 == len(runes):
					sb.WriteString(".*")
				default:
					sb.WriteString("[^/]*")
				}
				continue
			}
			sb.WriteString("[^/]*")
		case '?':
			sb.WriteString("[^/]")
		case '[':
			end := classEnd(runes, i)
			if end < 0 {
				return "", fmt.Errorf("%w: unclosed character class in %q", ErrMalformed, glob)
			}
			sb.WriteByte('[')
			inner := runes[i+1 : end]
			if len(inner) > 0 && (inner[0] == '!' || inner[0] == '^') {
				sb.WriteByte('^')
				inner = inner[1:]
			}
			for _, r := range inner {
				if r == '\\' || r == '[' || r == ']' {
					sb.WriteByte('\\')
				}
				sb.WriteRune(r)
			}
			sb.WriteByte(']')
			i = end
		case '\\':
			if i+1 == len(runes) {
				return "", fmt.Errorf("%w: dangling escape in %q", ErrMalformed, glob)
			}
			i++
			sb.WriteString(regexp.QuoteMeta(string(runes[i])))
		default:
			sb.WriteString(regexp.QuoteMeta(string(c)))
		}
	}
	return sb.String(), nil
}

// classEnd returns the index of the ']' closing the class opened at start, or -1.
func classEnd(runes []rune, start int) int {
	j := start + 1
	if j < len(runes) && (runes[j] == '!' || runes[j] == '^') {
		j++
	}
	// A ']' right after the opening bracket is a literal member.
	if j < len(runes) && runes[j] == ']' {
		j++
	}
	for ; j < len(runes); j++ {
		if runes[j] == ']' {
			return j
		}
	}
	return -1
}

// anchorPattern anchors the regex to the whole path. Unanchored patterns may
// match at any directory depth.
func anchorPattern(pattern string, anchored bool) string {
	if anchored {
		return "^" + pattern + "$"
	}
	return "^(?:.*/)?" + pattern + "$"
}
