// Package storage defines the file-system abstraction used for the source
// tree and the output directory.
package storage

import "github.com/starford/quire/internal/models"

// SkipFunc reports whether the walk should ignore rel (slash separated,
// relative to the provider root). Returning true for a directory prunes it.
type SkipFunc func(rel string, isDir bool) bool

// Provider is the interface for site file operations.
type Provider interface {
	// Root returns the absolute directory the provider is rooted at.
	Root() string
	// List returns metadata for every file under dir not rejected by skip.
	List(dir string, skip SkipFunc) ([]models.FileMetadata, error)
	// Exists reports whether path names an existing file or directory.
	Exists(path string) bool
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path, creating parent directories.
	Write(path string, content []byte) error
	// Move renames oldPath to newPath.
	Move(oldPath, newPath string) error
	// Clean removes everything under the root except the top-level names in keep.
	Clean(keep []string) error
}
