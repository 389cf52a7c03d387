// Package storage defines the rooted file-system abstraction every exported
// file is written through.
package storage

import "time"

// FileMeta describes one file found by List.
type FileMeta struct {
	Path      string
	Checksum  string
	UpdatedAt time.Time
}

// Provider is the interface for export tree file operations. All paths are
// relative to the provider root and may not escape it.
type Provider interface {
	// Root returns the absolute root directory.
	Root() string
	// MkdirAll creates dir and any missing parents; existing dirs are fine.
	MkdirAll(dir string) error
	// List returns metadata for every file under dir whose name ends in ext.
	List(dir, ext string) ([]FileMeta, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically replaces the file at path with content.
	Write(path string, content []byte) error
	// Delete removes the file at path.
	Delete(path string) error
}
