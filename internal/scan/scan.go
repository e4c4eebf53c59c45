package scan

import (
	"os"
	"path/filepath"
)

// File is one discovered source file, relative to the project root.
type File struct {
	AbsPath string
	RelPath string
	Mtime   int64
	Size    int64
}

// Discover walks root and returns every file that survives the ignore
// matcher, skipping pruned directories without descending into them.
func Discover(root string, includeGlobs, excludeGlobs []string) ([]File, error) {
	matcher, err := NewIgnoreMatcher(root, includeGlobs, excludeGlobs)
	if err != nil {
		return nil, err
	}

	var files []File
	err = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		relPath, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		if relPath == "." {
			return nil
		}
		if info.IsDir() {
			if matcher.ShouldSkipDir(relPath) {
				return filepath.SkipDir
			}
			return nil
		}
		if !matcher.ShouldInclude(relPath) {
			return nil
		}
		files = append(files, File{
			AbsPath: path,
			RelPath: filepath.ToSlash(relPath),
			Mtime:   info.ModTime().Unix(),
			Size:    info.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}
