package ingest

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Cdogma/maehrdocs/constants"
)

// ScanDirectory walks root and returns every intake-eligible PDF, sorted for
// deterministic batch order. Hidden files and directories are skipped when
// requested; unreadable subtrees are skipped, not fatal.
func ScanDirectory(root string, skipHidden bool) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if skipHidden && isHidden(path) && path != root {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if constants.IsAllowedExt(filepath.Ext(path)) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return paths, err
	}
	sort.Strings(paths)
	return paths, nil
}

func isHidden(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".")
}
