// Package fsutil provides file system helpers for locating graph
// definition files.
package fsutil

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// GraphDefExt is the extension of graph definition files.
const GraphDefExt = ".ng.hcl"

// FindDefinitions resolves a path to the graph definition files it
// names: a file path returns itself, a directory is searched
// recursively for *.ng.hcl files. Results are sorted for deterministic
// load order.
func FindDefinitions(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("cannot access graph path %s: %w", path, err)
	}

	if !info.IsDir() {
		return []string{path}, nil
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), GraphDefExt) {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(files)
	return files, nil
}
