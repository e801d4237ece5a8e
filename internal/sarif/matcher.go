package sarif

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
)

// patternMatcher matches root-relative slash paths against gitignore-style
// globs. Include matchers fold case and require the final pattern segment to
// match the file's own base name, so "**/*.sarif" never selects files that
// merely live inside a directory called "x.sarif". A trailing slash turns an
// include pattern into a directory prefix.
type patternMatcher struct {
	raw      []string
	patterns []gitignore.Pattern
	lastSegs []string
	foldCase bool
}

func newIncludeMatcher(patterns []string) *patternMatcher {
	m := &patternMatcher{foldCase: true}
	for _, p := range cleanPatterns(patterns) {
		p = strings.ToLower(p)
		m.raw = append(m.raw, p)
		m.patterns = append(m.patterns, gitignore.ParsePattern(p, nil))
		// "reports/" selects every file below a reports directory.
		seg := ""
		if !strings.HasSuffix(p, "/") {
			seg = lastSegment(p)
		}
		m.lastSegs = append(m.lastSegs, seg)
	}
	return m
}

func newExcludeMatcher(patterns []string) *patternMatcher {
	m := &patternMatcher{}
	for _, p := range cleanPatterns(patterns) {
		m.raw = append(m.raw, p)
		m.patterns = append(m.patterns, gitignore.ParsePattern(p, nil))
	}
	return m
}

// matchFile reports whether an include pattern selects the file at parts.
func (m *patternMatcher) matchFile(parts []string) bool {
	if len(parts) == 0 {
		return false
	}
	if m.foldCase {
		parts = lowerAll(parts)
	}
	base := parts[len(parts)-1]
	for i, p := range m.patterns {
		if p.Match(parts, false) != gitignore.Exclude {
			continue
		}
		if seg := m.lastSegs[i]; seg != "" && seg != "**" {
			if ok, err := filepath.Match(seg, base); err != nil || !ok {
				continue
			}
		}
		return true
	}
	return false
}

// excluded reports whether parts is excluded. Later patterns win and a
// leading "!" re-includes, as in .gitignore files.
func (m *patternMatcher) excluded(parts []string, isDir bool) bool {
	if len(m.patterns) == 0 || len(parts) == 0 {
		return false
	}
	return gitignore.NewMatcher(m.patterns).Match(parts, isDir)
}

// ValidatePatterns checks every pattern for malformed glob syntax, such as an
// unterminated character class.
func ValidatePatterns(patterns []string) error {
	for _, p := range cleanPatterns(patterns) {
		for _, seg := range strings.Split(strings.TrimPrefix(p, "!"), "/") {
			if seg == "" || seg == "**" {
				continue
			}
			if _, err := filepath.Match(seg, ""); err != nil {
				return fmt.Errorf("invalid glob pattern %q: %w", p, err)
			}
		}
	}
	return nil
}

// SplitPatterns splits a comma-separated override list, dropping blanks.
func SplitPatterns(list string) []string {
	if strings.TrimSpace(list) == "" {
		return nil
	}
	return cleanPatterns(strings.Split(list, ","))
}

func cleanPatterns(patterns []string) []string {
	out := make([]string, 0, len(patterns))
	for _, p := range patterns {
		p = strings.TrimSpace(filepath.ToSlash(p))
		p = strings.TrimPrefix(p, "./")
		if p == "" || strings.HasPrefix(p, "#") {
			continue
		}
		out = append(out, p)
	}
	return out
}

func lastSegment(pattern string) string {
	trimmed := strings.TrimSuffix(pattern, "/")
	if i := strings.LastIndex(trimmed, "/"); i >= 0 {
		return trimmed[i+1:]
	}
	return trimmed
}

func lowerAll(parts []string) []string {
	out := make([]string, len(parts))
	for i, p := range parts {
		out[i] = strings.ToLower(p)
	}
	return out
}

func splitRel(rel string) []string {
	return strings.Split(filepath.ToSlash(rel), "/")
}
