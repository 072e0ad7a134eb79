// Package storage provides the byte-level storage backend behind the file
// metadata index. All paths are relative to the storage root and already
// normalized; callers prefix each path with the owner's root segment.
package storage

import (
	"errors"
	"io"
	"time"
)

// Backend errors. Services translate these into application errors.
var (
	ErrNotFound      = errors.New("storage: not found")
	ErrAlreadyExists = errors.New("storage: already exists")
	ErrIsDirectory   = errors.New("storage: is a directory")
	ErrNotDirectory  = errors.New("storage: not a directory")
)

// FileInfo describes one entry as seen by the backend.
type FileInfo struct {
	Name        string
	Path        string
	Size        int64
	IsDirectory bool
	ModifiedAt  time.Time
	ContentType string
}

// Backend is the narrow contract the storage core depends on. Each call is a
// single all-or-nothing attempt; retries are the backend's own business.
type Backend interface {
	// Save writes content to path, overwriting any existing file. The
	// parent directory must exist.
	Save(path string, content io.Reader) (FileInfo, error)

	// Open returns a reader over the file at path.
	Open(path string) (io.ReadCloser, error)

	// Delete removes the file or directory at path. Directories are
	// removed recursively.
	Delete(path string) error

	// Exists reports whether path exists.
	Exists(path string) bool

	// Info returns metadata for the entry at path.
	Info(path string) (FileInfo, error)

	// List returns the direct children of the directory at path.
	List(path string) ([]FileInfo, error)

	// Mkdir creates a directory (and missing parents) at path.
	Mkdir(path string) (FileInfo, error)

	// Move relocates src into the directory dstDir, keeping its base name.
	// Fails with ErrAlreadyExists on a name collision.
	Move(src, dstDir string) (FileInfo, error)

	// Copy duplicates src into the directory dstDir. Name collisions get a
	// " (copy)" suffix.
	Copy(src, dstDir string) (FileInfo, error)
}
