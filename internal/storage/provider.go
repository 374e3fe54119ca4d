// Package storage defines the library file-system abstraction.
package storage

import "github.com/lectern/lectern/internal/models"

// Provider is the interface for library file operations. All paths are
// relative to the library root.
type Provider interface {
	// List returns metadata for every matching file under dir.
	List(dir string) ([]models.FileMetadata, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path.
	Write(path string, content []byte) error
	// Delete removes the file at path.
	Delete(path string) error
	// Move renames oldPath to newPath.
	Move(oldPath, newPath string) error
	// Matches reports whether a path has an indexable extension.
	Matches(path string) bool
	// Root returns the absolute library root.
	Root() string
}
