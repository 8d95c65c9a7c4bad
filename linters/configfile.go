package linters

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"
)

// FindConfigFile walks up from start looking for a regular file called name.
// It returns the first match, or found == false once the filesystem root has
// been checked. Errors are only returned for unexpected I/O failures.
func FindConfigFile(start, name string) (string, bool, error) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", false, fmt.Errorf("failed to get absolute path: %w", err)
	}

	for {
		candidate := filepath.Join(dir, name)
		info, err := os.Stat(candidate)
		switch {
		case err == nil && info.Mode().IsRegular():
			return candidate, true, nil
		case err != nil && !isAbsent(err):
			return "", false, fmt.Errorf("failed to stat %s: %w", candidate, err)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false, nil // Reached root
		}
		dir = parent
	}
}

// isAbsent reports whether a stat error just means there is nothing usable there.
func isAbsent(err error) bool {
	return errors.Is(err, fs.ErrNotExist) ||
		errors.Is(err, fs.ErrPermission) ||
		errors.Is(err, syscall.ENOTDIR)
}
