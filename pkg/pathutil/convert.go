// Package pathutil provides utilities for converting between absolute and relative paths.
//
// Architecture Pattern:
// gmscope uses absolute paths internally for consistency and to avoid ambiguity.
// However, everything that is persisted or shown to users is keyed by relative,
// slash-normalized paths so an index survives a project being moved or checked
// out on another machine. This package provides the conversion layer between the
// internal (absolute) and external (relative) representations.
package pathutil

import (
	"path/filepath"
	"strings"
)

// ToRelative converts an absolute path to relative based on a root directory.
// Falls back to the original path if conversion fails or path is already relative.
//
// Examples:
//   - ToRelative("/home/user/project/scripts/a.gml", "/home/user/project") → "scripts/a.gml"
//   - ToRelative("/other/location/file.gml", "/home/user/project") → "/other/location/file.gml" (outside root)
//   - ToRelative("scripts/a.gml", "/home/user/project") → "scripts/a.gml" (already relative)
func ToRelative(absPath, rootDir string) string {
	if absPath == "" || rootDir == "" {
		return absPath
	}

	// If path is already relative, return as-is
	if !filepath.IsAbs(absPath) {
		return absPath
	}

	// Clean both paths to normalize separators and remove redundant elements
	absPath = filepath.Clean(absPath)
	rootDir = filepath.Clean(rootDir)

	relPath, err := filepath.Rel(rootDir, absPath)
	if err != nil {
		// Conversion failed (e.g., different drives on Windows) - return absolute
		return absPath
	}

	// If the relative path starts with ".." the file is outside the root.
	// In this case, return the absolute path as it's clearer.
	if strings.HasPrefix(relPath, "..") {
		return absPath
	}

	return relPath
}

// Key converts a path to its canonical map-key form: relative to root where
// possible, forward slashes regardless of platform. Index records, cache
// fingerprint maps and manifest cross-references all use this form so lookups
// built on one platform resolve on another.
func Key(path, rootDir string) string {
	return filepath.ToSlash(ToRelative(path, rootDir))
}

// JoinKey joins a canonical key with path elements, keeping forward slashes.
func JoinKey(key string, elems ...string) string {
	parts := append([]string{key}, elems...)
	return strings.TrimPrefix(strings.Join(parts, "/"), "/")
}

// Dir returns the directory portion of a canonical key, "" for top-level keys.
func Dir(key string) string {
	i := strings.LastIndexByte(key, '/')
	if i < 0 {
		return ""
	}
	return key[:i]
}

// Stem returns the final path element without its extension.
func Stem(key string) string {
	base := key
	if i := strings.LastIndexByte(base, '/'); i >= 0 {
		base = base[i+1:]
	}
	if i := strings.LastIndexByte(base, '.'); i > 0 {
		base = base[:i]
	}
	return base
}
