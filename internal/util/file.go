package util

import "os"

// EnsureDir creates path and any missing parents.
func EnsureDir(path string) error {
	if path == "" || path == "." {
		return nil
	}
	return os.MkdirAll(path, 0o755)
}
