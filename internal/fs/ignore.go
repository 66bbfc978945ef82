package fs

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// IgnoreFileName is the per-location file listing extra ignore patterns.
const IgnoreFileName = ".msyncignore"

// defaultIgnorePatterns are always applied regardless of config or ignore file.
var defaultIgnorePatterns = []string{IgnoreFileName}

// ignorePattern is a parsed ignore pattern with its matching strategy.
type ignorePattern struct {
	pattern   string
	matchPath bool // match against the relative path instead of the basename
	dirOnly   bool // pattern ended in '/': match any parent directory component
}

// IgnoreMatcher checks file paths against a set of ignore patterns.
//   - Patterns without '/' match the file's basename.
//   - Patterns containing '/' match the full relative path from the location root.
//   - Patterns ending in '/' match a directory name anywhere in the path, so
//     everything below such a directory is ignored.
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
		if dir, ok := strings.CutSuffix(raw, "/"); ok && dir != "" {
			patterns = append(patterns, ignorePattern{pattern: dir, dirOnly: true})
			continue
		}
		patterns = append(patterns, ignorePattern{
			pattern:   raw,
			matchPath: strings.Contains(raw, "/"),
		})
	}
	return &IgnoreMatcher{patterns: patterns}
}

// Match reports whether the given relative path should be ignored.
// relativePath uses filepath separators and is relative to the location root.
func (m *IgnoreMatcher) Match(relativePath string) bool {
	if len(m.patterns) == 0 || relativePath == "" {
		return false
	}

	normalized := filepath.ToSlash(relativePath)
	basename := filepath.Base(relativePath)
	parents := strings.Split(normalized, "/")
	parents = parents[:len(parents)-1]

	for _, p := range m.patterns {
		switch {
		case p.dirOnly:
			for _, dir := range parents {
				if ok, err := filepath.Match(p.pattern, dir); err == nil && ok {
					return true
				}
			}
		case p.matchPath:
			if ok, err := filepath.Match(p.pattern, normalized); err == nil && ok {
				return true
			}
		default:
			// Bad patterns never match.
			if ok, err := filepath.Match(p.pattern, basename); err == nil && ok {
				return true
			}
		}
	}
	return false
}

// ParseIgnoreFile reads an ignore file and returns the raw pattern strings.
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
