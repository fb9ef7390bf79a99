// Package fsutil provides file system utility functions.
package fsutil

import (
	"io/fs"
	"path/filepath"
	"strings"
)

// FindFilesBySuffix recursively searches the given root path for all files
// ending with any of the specified suffixes. Hidden directories and any
// directory whose name appears in skipDirs are not descended into. It
// returns a slice of full paths in lexical walk order.
func FindFilesBySuffix(rootPath string, suffixes []string, skipDirs ...string) ([]string, error) {
	if len(suffixes) == 0 {
		panic("at least one suffix must be provided")
	}

	skip := make(map[string]bool, len(skipDirs))
	for _, d := range skipDirs {
		skip[d] = true
	}

	var files []string
	err := filepath.WalkDir(rootPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path == rootPath {
				return nil
			}
			if strings.HasPrefix(d.Name(), ".") || skip[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		for _, suffix := range suffixes {
			if strings.HasSuffix(d.Name(), suffix) {
				files = append(files, path)
				break
			}
		}
		return nil
	})

	if err != nil {
		return nil, err
	}

	return files, nil
}
