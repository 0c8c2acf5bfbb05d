package restyle

import (
	"path/filepath"
	"strings"
)

// NormalizePath cleans a path and converts it to forward slashes so the
// same file maps to the same cache key on every operating system.
// Empty paths remain empty.
func NormalizePath(path string) string {
	if path == "" {
		return ""
	}

	cleaned := filepath.Clean(path)
	return strings.ReplaceAll(cleaned, "\\", "/")
}

// JoinPaths joins path elements and normalizes the result.
func JoinPaths(elem ...string) string {
	return NormalizePath(filepath.Join(elem...))
}

// IsSubPath checks if childPath is parentPath or lies below it.
// Both paths are normalized before comparison.
func IsSubPath(parentPath, childPath string) bool {
	normalizedParent := NormalizePath(parentPath)
	normalizedChild := NormalizePath(childPath)

	if normalizedParent == "" || normalizedParent == "." {
		return true // Empty parent means any path is a subpath
	}

	if normalizedParent == normalizedChild {
		return true
	}

	if !strings.HasSuffix(normalizedParent, "/") {
		normalizedParent += "/"
	}

	return strings.HasPrefix(normalizedChild, normalizedParent)
}

// DirPath returns the directory portion of a normalized path.
func DirPath(path string) string {
	return NormalizePath(filepath.Dir(NormalizePath(path)))
}
