// Package validation provides common validation functions for filesystem
// path segments. This package has no dependencies on other internal
// packages to avoid import cycles.
package validation

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// ErrInvalidFilename indicates a filename is malformed or attempts path
// traversal, and is therefore unsafe to use when building an object-store
// key or a "processed" directory destination.
var ErrInvalidFilename = errors.New("invalid filename")

// Filename checks that name is safe for use as a single filesystem path
// segment — no directory separators, no "." or "..", no traversal after
// filepath.Clean. The Pipeline Driver (spec.md §4.9) calls this on every
// file it discovers in INPUT_DIR before it ever touches the object store
// or the processed directory.
func Filename(name string) (string, error) {
	if name == "" {
		return "", ErrInvalidFilename
	}
	if name == "." || name == ".." {
		return "", ErrInvalidFilename
	}
	if strings.ContainsAny(name, `/\`) {
		return "", ErrInvalidFilename
	}

	cleaned := filepath.Clean(name)
	if cleaned != name ||
		strings.HasPrefix(cleaned, "..") ||
		strings.Contains(cleaned, string(os.PathSeparator)+"..") ||
		filepath.IsAbs(cleaned) {
		return "", ErrInvalidFilename
	}

	return cleaned, nil
}
