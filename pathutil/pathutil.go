// Package pathutil validates and canonicalizes user-supplied storage paths.
// Every path must pass through Normalize before it reaches the storage
// backend or the file index; this is the primary traversal defense.
package pathutil

import (
	"errors"
	"path"
	"strings"
)

// ErrInvalidPath is returned for traversal attempts, absolute paths, and
// paths containing control characters.
var ErrInvalidPath = errors.New("invalid path")

// Normalize canonicalizes a user-relative storage path.
//
// Collapses repeated slashes, strips leading/trailing slashes, treats
// backslashes as separators, and drops "." segments. Rejects ".." segments,
// null bytes and control characters, and anything that resolves outside the
// owner root. The empty string normalizes to "" (the owner root).
func Normalize(raw string) (string, error) {
	if raw == "" {
		return "", nil
	}

	for _, r := range raw {
		if r < 0x20 || r == 0x7f {
			return "", ErrInvalidPath
		}
	}

	// Windows-style separators are treated as path separators, never as
	// literal filename characters.
	raw = strings.ReplaceAll(raw, `\`, "/")

	var parts []string
	for _, seg := range strings.Split(raw, "/") {
		switch seg {
		case "", ".":
			continue
		case "..":
			return "", ErrInvalidPath
		}
		parts = append(parts, seg)
	}

	cleaned := strings.Join(parts, "/")

	// path.Clean must agree that nothing escapes the root.
	if cleaned != "" {
		resolved := path.Clean(cleaned)
		if resolved == ".." || strings.HasPrefix(resolved, "../") || path.IsAbs(resolved) {
			return "", ErrInvalidPath
		}
	}

	return cleaned, nil
}

// ValidateFilename checks a single path component (no separators).
func ValidateFilename(name string) error {
	if name == "" || name == "." || name == ".." {
		return ErrInvalidPath
	}
	if strings.ContainsAny(name, `/\`) {
		return ErrInvalidPath
	}
	for _, r := range name {
		if r < 0x20 || r == 0x7f {
			return ErrInvalidPath
		}
	}
	return nil
}

// Parent returns the parent path of a normalized path ("" for top-level
// entries).
func Parent(p string) string {
	idx := strings.LastIndex(p, "/")
	if idx < 0 {
		return ""
	}
	return p[:idx]
}

// Base returns the final component of a normalized path.
func Base(p string) string {
	idx := strings.LastIndex(p, "/")
	if idx < 0 {
		return p
	}
	return p[idx+1:]
}

// Join joins a directory path and a name, tolerating an empty directory.
func Join(dir, name string) string {
	if dir == "" {
		return name
	}
	return dir + "/" + name
}
