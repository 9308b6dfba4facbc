package utils

import "path/filepath"

// ResolvePath resolves path relative to baseDir. Absolute paths and empty
// paths are returned unchanged.
func ResolvePath(path, baseDir string) string {
	if path == "" || filepath.IsAbs(path) || baseDir == "" {
		return path
	}
	return filepath.Join(baseDir, path)
}
