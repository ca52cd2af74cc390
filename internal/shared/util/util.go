package util

import (
	"fmt"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"
)

// NormalizePatternPath converts a path to the slash-separated, cleaned form
// patterns are written against.
func NormalizePatternPath(s string) string {
	clean := path.Clean(strings.TrimSpace(strings.ReplaceAll(s, "\\", "/")))
	if clean == "." {
		return ""
	}
	return strings.TrimPrefix(clean, "./")
}

// PathMatcher matches file paths against glob patterns. A path matches when
// a pattern accepts either its normalized full form or its base name, so
// "*_test.py" and "/srv/legacy/**" both work.
type PathMatcher struct {
	patterns []string
	globs    []glob.Glob
}

// CompilePathPatterns compiles patterns with the given separators; '*' does
// not cross a separator.
func CompilePathPatterns(patterns []string, separators ...rune) (*PathMatcher, error) {
	m := &PathMatcher{patterns: patterns, globs: make([]glob.Glob, 0, len(patterns))}
	for _, pattern := range patterns {
		g, err := glob.Compile(pattern, separators...)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
		}
		m.globs = append(m.globs, g)
	}
	return m, nil
}

// Match reports whether any pattern accepts p. A nil matcher matches nothing.
func (m *PathMatcher) Match(p string) bool {
	if m == nil {
		return false
	}
	full := NormalizePatternPath(p)
	base := filepath.Base(p)
	for _, g := range m.globs {
		if g.Match(full) || g.Match(base) {
			return true
		}
	}
	return false
}

// Len is the number of compiled patterns.
func (m *PathMatcher) Len() int {
	if m == nil {
		return 0
	}
	return len(m.globs)
}

// SortedStringKeys returns the map's keys in sorted order.
func SortedStringKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
