package abook

import (
	"io"
	"io/fs"
)

// FilesystemManager abstracts file access for imports so the service can be
// tested without touching the real filesystem.
type FilesystemManager interface {
	// Resolve makes rawPath absolute, stats it and rejects anything that is
	// not a regular file or a directory.
	Resolve(rawPath string) (*Path, error)

	// Open opens a file for reading.
	Open(path *Path) (io.ReadCloser, error)

	// Stat returns fresh file info, unlike path.Info().
	Stat(path *Path) (fs.FileInfo, error)

	// FindFiles lists the regular files under a directory.
	FindFiles(path *Path, recursive bool) ([]*Path, error)

	// IsIgnored reports whether path matches a configured ignore pattern.
	// root is the directory the import started from.
	IsIgnored(path *Path, root string) (bool, error)
}
