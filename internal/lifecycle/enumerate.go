package lifecycle

import (
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/jbovet/docwell/internal/parser"
)

// hiddenOrVCS reports whether a directory entry should never be
// descended into regardless of exclude patterns: dotfiles and the
// handful of VCS/build directories nobody ever wants indexed.
func hiddenOrVCS(name string) bool {
	if strings.HasPrefix(name, ".") {
		return true
	}
	switch name {
	case "node_modules", "__pycache__":
		return true
	}
	return false
}

// matchesAny reports whether relPath matches any of the glob-style
// exclude patterns, trying both the bare path and its base name so a
// pattern like "*.tmp" matches regardless of directory depth.
func matchesAny(patterns []string, relPath string) bool {
	base := filepath.Base(relPath)
	for _, p := range patterns {
		if ok, _ := filepath.Match(p, relPath); ok {
			return true
		}
		if ok, _ := filepath.Match(p, base); ok {
			return true
		}
	}
	return false
}

// enumerateFolder walks root and returns every file whose extension
// has a registered parser, skipping hidden/VCS directories and any
// path matching an exclude pattern. This is deliberately a small,
// document-domain-specific walk rather than a reuse of a source-code
// repository scanner: there are no submodules or programming
// languages to detect here, only parseable documents.
func enumerateFolder(root string, excludePatterns []string, parsers *parser.Registry) ([]string, error) {
	var files []string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// A single unreadable entry (permission error, race with a
			// delete) shouldn't abort the whole folder's scan.
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			rel = path
		}

		if d.IsDir() {
			if path == root {
				return nil
			}
			if hiddenOrVCS(d.Name()) || matchesAny(excludePatterns, rel) {
				return filepath.SkipDir
			}
			return nil
		}

		if hiddenOrVCS(d.Name()) || matchesAny(excludePatterns, rel) {
			return nil
		}

		ext := strings.TrimPrefix(filepath.Ext(d.Name()), ".")
		if _, ok := parsers.Get(ext); !ok {
			return nil
		}

		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}
