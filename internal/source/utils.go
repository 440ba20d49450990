package source

import (
	"math"
	"path/filepath"

	"fortio.org/safecast"
)

func normalizePath(p string) string {
	return filepath.ToSlash(filepath.Clean(p))
}

func clampU32(v int) uint32 {
	if v < 0 {
		return 0
	}
	u, err := safecast.Conv[uint32](v)
	if err != nil {
		return math.MaxUint32
	}
	return u
}

// BaseName returns the last element of path.
func BaseName(path string) string {
	return filepath.Base(path)
}

// RelativePath returns path relative to base.
func RelativePath(path, base string) (string, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	absBase, err := filepath.Abs(base)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(absBase, absPath)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}
