package abook

import (
	"io/fs"
	"path/filepath"
	"strings"
)

// Path is a validated filesystem path with cached metadata, produced by
// FilesystemManager.Resolve.
type Path struct {
	absPath string
	isDir   bool
	info    fs.FileInfo
}

// NewPath creates a Path from its components. For FilesystemManager
// implementations.
func NewPath(absPath string, isDir bool, info fs.FileInfo) *Path {
	return &Path{absPath: absPath, isDir: isDir, info: info}
}

func (p *Path) String() string { return p.absPath }

func (p *Path) IsDir() bool { return p.isDir }

// Info returns the file info cached when the path was resolved.
func (p *Path) Info() fs.FileInfo { return p.info }

// Base returns the last element of the path.
func (p *Path) Base() string { return filepath.Base(p.absPath) }

// IsVCard reports whether the path names a vCard file by extension.
func (p *Path) IsVCard() bool {
	switch strings.ToLower(filepath.Ext(p.absPath)) {
	case ".vcf", ".vcard":
		return !p.isDir
	}
	return false
}
