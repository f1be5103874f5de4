package fs

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// IgnoreFileName is the per-directory ignore file read at the import root.
const IgnoreFileName = ".abookignore"

// defaultIgnorePatterns are always applied regardless of config or .abookignore.
var defaultIgnorePatterns = []string{IgnoreFileName}

type ignorePattern struct {
	pattern string
	negate  bool // "!pattern" re-includes a previously ignored path
	dirOnly bool // "pattern/" ignores everything below a matching directory
	path    bool // contains '/', so it is matched against the relative path
}

// IgnoreMatcher checks import paths against gitignore-style glob patterns.
// Patterns without '/' match any path element; patterns with '/' match the
// relative path from the import root. The last matching pattern decides.
type IgnoreMatcher struct {
	patterns []ignorePattern
}

// NewIgnoreMatcher creates an IgnoreMatcher from raw pattern strings.
// Blank lines and lines starting with '#' are skipped.
func NewIgnoreMatcher(rawPatterns []string) *IgnoreMatcher {
	var patterns []ignorePattern
	for _, raw := range rawPatterns {
		raw = strings.TrimSpace(raw)
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}
		var p ignorePattern
		if strings.HasPrefix(raw, "!") {
			p.negate = true
			raw = raw[1:]
		}
		if strings.HasSuffix(raw, "/") {
			p.dirOnly = true
			raw = strings.TrimRight(raw, "/")
		}
		raw = strings.TrimPrefix(raw, "/")
		if raw == "" {
			continue
		}
		p.pattern = raw
		p.path = strings.Contains(raw, "/")
		patterns = append(patterns, p)
	}
	return &IgnoreMatcher{patterns: patterns}
}

// Match reports whether relativePath should be skipped.
func (m *IgnoreMatcher) Match(relativePath string) bool {
	if relativePath == "" || len(m.patterns) == 0 {
		return false
	}
	elems := strings.Split(filepath.ToSlash(relativePath), "/")

	ignored := false
	for _, p := range m.patterns {
		if p.matches(elems) {
			ignored = !p.negate
		}
	}
	return ignored
}

func (p ignorePattern) matches(elems []string) bool {
	// a directory pattern is tested against the parent directories only
	last := len(elems)
	if p.dirOnly {
		last--
	}
	if p.path {
		for i := 1; i <= last; i++ {
			if ok, _ := filepath.Match(p.pattern, strings.Join(elems[:i], "/")); ok {
				return true
			}
		}
		return false
	}
	for _, e := range elems[:last] {
		if ok, _ := filepath.Match(p.pattern, e); ok {
			return true
		}
	}
	return false
}

// ParseIgnoreFile reads an ignore file and returns the raw pattern lines.
// Returns nil and no error if the file does not exist.
func ParseIgnoreFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening ignore file: %w", err)
	}
	defer f.Close()

	var patterns []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		patterns = append(patterns, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading ignore file: %w", err)
	}
	return patterns, nil
}
