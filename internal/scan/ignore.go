// Package scan discovers source files under a project root, honoring
// .gitignore, configured include/exclude glob patterns, and the
// engine's own default exclusions. Hidden (dot-prefixed) files and
// directories are never discovered, which also keeps the engine's own
// .opencode state directory out of the index.
package scan

import (
	"os"
	"path/filepath"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
)

var defaultExcludeDirs = []string{
	".git", "node_modules", "vendor", "dist", "build", ".venv", "__pycache__",
}

// nestedMatcher pairs a compiled gitignore matcher with the directory
// it was found in, so patterns apply relative to their own level.
type nestedMatcher struct {
	matcher *ignore.GitIgnore
	baseDir string
}

// IgnoreMatcher combines discovered .gitignore files with the engine's
// configured include/exclude globs.
type IgnoreMatcher struct {
	root            string
	nested          []nestedMatcher
	excludeDirs     []string
	includeGlobs    []string
	excludeGlobs    []string
}

// NewIgnoreMatcher walks root collecting every .gitignore file and
// combines them with the configured include/exclude glob lists.
func NewIgnoreMatcher(root string, includeGlobs, excludeGlobs []string) (*IgnoreMatcher, error) {
	m := &IgnoreMatcher{
		root:         root,
		excludeDirs:  defaultExcludeDirs,
		includeGlobs: includeGlobs,
		excludeGlobs: excludeGlobs,
	}

	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			base := filepath.Base(path)
			for _, d := range m.excludeDirs {
				if base == d {
					return filepath.SkipDir
				}
			}
			return nil
		}
		if filepath.Base(path) != ".gitignore" {
			return nil
		}
		gi, err := ignore.CompileIgnoreFile(path)
		if err != nil {
			return nil
		}
		relDir, err := filepath.Rel(root, filepath.Dir(path))
		if err != nil {
			return nil
		}
		if relDir == "." {
			relDir = ""
		}
		m.nested = append(m.nested, nestedMatcher{matcher: gi, baseDir: relDir})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// ShouldSkipDir reports whether a directory can be pruned entirely.
func (m *IgnoreMatcher) ShouldSkipDir(relPath string) bool {
	base := filepath.Base(relPath)
	if base != "." && strings.HasPrefix(base, ".") {
		return true
	}
	for _, d := range m.excludeDirs {
		if base == d {
			return true
		}
	}
	return m.matchesGitignore(relPath)
}

// ShouldInclude rejects hidden files, then applies exclude globs, then
// .gitignore, then include globs (when configured, include acts as an
// allowlist).
func (m *IgnoreMatcher) ShouldInclude(relPath string) bool {
	normalized := filepath.ToSlash(relPath)
	if strings.HasPrefix(filepath.Base(relPath), ".") {
		return false
	}

	for _, pattern := range m.excludeGlobs {
		if globMatch(pattern, normalized) {
			return false
		}
	}
	if m.matchesGitignore(normalized) {
		return false
	}
	if len(m.includeGlobs) == 0 {
		return true
	}
	for _, pattern := range m.includeGlobs {
		if globMatch(pattern, normalized) {
			return true
		}
	}
	return false
}

func (m *IgnoreMatcher) matchesGitignore(normalizedPath string) bool {
	for _, nm := range m.nested {
		rel := relativeTo(normalizedPath, nm.baseDir)
		if rel == "" && nm.baseDir != "" {
			continue
		}
		if nm.matcher.MatchesPath(rel) || nm.matcher.MatchesPath(rel+"/") {
			return true
		}
	}
	return false
}

func relativeTo(normalizedPath, baseDir string) string {
	if baseDir == "" {
		return normalizedPath
	}
	base := filepath.ToSlash(baseDir)
	if normalizedPath == base {
		return "."
	}
	if strings.HasPrefix(normalizedPath, base+"/") {
		return strings.TrimPrefix(normalizedPath, base+"/")
	}
	return ""
}

// globMatch supports "**" (any depth) in addition to filepath.Match's
// single-segment "*", matching the glob dialect the config's
// include/exclude_patterns are documented against.
func globMatch(pattern, path string) bool {
	if !strings.Contains(pattern, "**") {
		ok, _ := filepath.Match(pattern, path)
		if ok {
			return true
		}
		ok, _ = filepath.Match(pattern, filepath.Base(path))
		return ok
	}
	parts := strings.SplitN(pattern, "**", 2)
	prefix, suffix := parts[0], strings.TrimPrefix(parts[1], "/")
	if prefix != "" && !strings.HasPrefix(path, strings.TrimSuffix(prefix, "/")) {
		return false
	}
	return suffix == "" || strings.HasSuffix(path, suffix) || strings.Contains(path, suffix)
}
