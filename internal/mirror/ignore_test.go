package mirror

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewIgnoreMatcher(t *testing.T) {
	t.Run("skips blank lines and comments", func(t *testing.T) {
		t.Parallel()
		m := NewIgnoreMatcher([]string{"", "  ", "# comment", "*.tmp"})
		if len(m.patterns) != 1 {
			t.Fatalf("expected 1 pattern, got %d", len(m.patterns))
		}
		if m.patterns[0].pattern != "*.tmp" {
			t.Errorf("expected *.tmp, got %s", m.patterns[0].pattern)
		}
	})

	t.Run("classifies path vs basename patterns", func(t *testing.T) {
		t.Parallel()
		m := NewIgnoreMatcher([]string{"*.tmp", "assets/logo.png"})
		if m.patterns[0].matchPath {
			t.Error("*.tmp should not be a path pattern")
		}
		if !m.patterns[1].matchPath {
			t.Error("assets/logo.png should be a path pattern")
		}
	})
}

func TestIgnoreMatcher_Match(t *testing.T) {
	tests := []struct {
		name     string
		patterns []string
		relPath  string
		want     bool
	}{
		{name: "basename glob in root", patterns: []string{"*.tmp"}, relPath: "upload.tmp", want: true},
		{name: "basename glob in subdirectory", patterns: []string{"*.tmp"}, relPath: "design/upload.tmp", want: true},
		{name: "different extension", patterns: []string{"*.tmp"}, relPath: "design/api.md", want: false},
		{name: "exact basename in subdirectory", patterns: []string{".DS_Store"}, relPath: "design/specification/.DS_Store", want: true},
		{name: "path pattern exact", patterns: []string{"assets/logo.png"}, relPath: "assets/logo.png", want: true},
		{name: "path pattern wrong dir", patterns: []string{"assets/logo.png"}, relPath: "design/logo.png", want: false},
		{name: "path pattern with glob", patterns: []string{"assets/*.png"}, relPath: "assets/banner.png", want: true},
		{name: "glob does not cross directories", patterns: []string{"assets/*.png"}, relPath: "assets/img/banner.png", want: false},
		{name: "prefix glob", patterns: []string{".doclife-*"}, relPath: "design/.doclife-tmp-123", want: true},
		{name: "malformed pattern is skipped", patterns: []string{"[", "*.tmp"}, relPath: "a.tmp", want: true},
		{name: "no patterns", patterns: nil, relPath: "a.md", want: false},
		{name: "empty path", patterns: []string{"*"}, relPath: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := NewIgnoreMatcher(tt.patterns).Match(tt.relPath); got != tt.want {
				t.Errorf("Match(%q) = %v, want %v", tt.relPath, got, tt.want)
			}
		})
	}
}

func TestParseIgnoreFile(t *testing.T) {
	t.Run("reads patterns from file", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), IgnoreFileName)
		content := "*.tmp\n# comment\n\n.DS_Store\nassets/*\n"
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
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
		patterns, err := ParseIgnoreFile("/nonexistent/" + IgnoreFileName)
		if err != nil {
			t.Fatalf("ParseIgnoreFile() error = %v", err)
		}
		if patterns != nil {
			t.Errorf("expected nil patterns, got %v", patterns)
		}
	})
}
