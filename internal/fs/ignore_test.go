package fs

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewIgnoreMatcher(t *testing.T) {
	t.Run("skips blank lines and comments", func(t *testing.T) {
		t.Parallel()
		m := NewIgnoreMatcher([]string{"", "  ", "# comment", "*.bak"})
		if len(m.patterns) != 1 {
			t.Fatalf("expected 1 pattern, got %d", len(m.patterns))
		}
		if m.patterns[0].pattern != "*.bak" {
			t.Errorf("expected *.bak, got %s", m.patterns[0].pattern)
		}
	})

	t.Run("parses pattern flags", func(t *testing.T) {
		t.Parallel()
		m := NewIgnoreMatcher([]string{"!keep.vcf", "old/", "exports/2023/*.vcf", "/"})
		if len(m.patterns) != 3 {
			t.Fatalf("expected 3 patterns, got %d", len(m.patterns))
		}
		if !m.patterns[0].negate || m.patterns[0].pattern != "keep.vcf" {
			t.Errorf("negated pattern = %+v", m.patterns[0])
		}
		if !m.patterns[1].dirOnly || m.patterns[1].pattern != "old" {
			t.Errorf("directory pattern = %+v", m.patterns[1])
		}
		if !m.patterns[2].path {
			t.Errorf("path pattern = %+v", m.patterns[2])
		}
	})
}

func TestIgnoreMatcher_Match(t *testing.T) {
	tests := []struct {
		name         string
		patterns     []string
		relativePath string
		want         bool
	}{
		{name: "basename glob in root", patterns: []string{"*.bak.vcf"}, relativePath: "phone.bak.vcf", want: true},
		{name: "basename glob in subdirectory", patterns: []string{"*.bak.vcf"}, relativePath: filepath.Join("sub", "phone.bak.vcf"), want: true},
		{name: "basename glob misses", patterns: []string{"*.bak.vcf"}, relativePath: "phone.vcf", want: false},
		{name: "hidden files", patterns: []string{".*"}, relativePath: ".DS_Store", want: true},
		{name: "hidden directory hides its files", patterns: []string{".*"}, relativePath: filepath.Join(".cache", "a.vcf"), want: true},
		{name: "path pattern exact", patterns: []string{"exports/old.vcf"}, relativePath: filepath.Join("exports", "old.vcf"), want: true},
		{name: "path pattern wrong directory", patterns: []string{"exports/old.vcf"}, relativePath: filepath.Join("imports", "old.vcf"), want: false},
		{name: "path pattern with glob", patterns: []string{"exports/*.vcf"}, relativePath: filepath.Join("exports", "a.vcf"), want: true},
		{name: "path pattern matching a directory", patterns: []string{"exports/2023"}, relativePath: filepath.Join("exports", "2023", "a.vcf"), want: true},
		{name: "directory pattern ignores contents", patterns: []string{"archive/"}, relativePath: filepath.Join("archive", "a.vcf"), want: true},
		{name: "directory pattern skips same-named file", patterns: []string{"archive/"}, relativePath: "archive", want: false},
		{name: "negation re-includes", patterns: []string{"*.vcf", "!keep.vcf"}, relativePath: "keep.vcf", want: false},
		{name: "later pattern wins", patterns: []string{"!keep.vcf", "*.vcf"}, relativePath: "keep.vcf", want: true},
		{name: "question mark wildcard", patterns: []string{"?.vcf"}, relativePath: "a.vcf", want: true},
		{name: "question mark does not match multiple chars", patterns: []string{"?.vcf"}, relativePath: "ab.vcf", want: false},
		{name: "no patterns matches nothing", patterns: nil, relativePath: "anything.vcf", want: false},
		{name: "empty string path", patterns: []string{"*"}, relativePath: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m := NewIgnoreMatcher(tt.patterns)
			if got := m.Match(tt.relativePath); got != tt.want {
				t.Errorf("Match(%q) = %v, want %v", tt.relativePath, got, tt.want)
			}
		})
	}
}

func TestParseIgnoreFile(t *testing.T) {
	t.Run("reads patterns from file", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), IgnoreFileName)
		content := "*.bak\n# comment\n\n!keep.bak\narchive/\n"
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("writing test file: %v", err)
		}

		patterns, err := ParseIgnoreFile(path)
		if err != nil {
			t.Fatalf("ParseIgnoreFile() error = %v", err)
		}
		if len(patterns) != 5 {
			t.Fatalf("expected 5 raw lines, got %d", len(patterns))
		}
		if m := NewIgnoreMatcher(patterns); len(m.patterns) != 3 {
			t.Errorf("expected 3 parsed patterns, got %d", len(m.patterns))
		}
	})

	t.Run("returns nil for missing file", func(t *testing.T) {
		t.Parallel()
		patterns, err := ParseIgnoreFile(filepath.Join(t.TempDir(), IgnoreFileName))
		if err != nil {
			t.Fatalf("ParseIgnoreFile() error = %v", err)
		}
		if patterns != nil {
			t.Errorf("expected nil patterns, got %v", patterns)
		}
	})
}
