package abook

import "io"

// Vault stores encrypted backup bundles. Operations stream through
// io.Reader/io.Writer.
type Vault interface {
	// PutBackup stores a bundle under name. size is the number of bytes that
	// will be read from r.
	PutBackup(name string, r io.Reader, size int64) error

	// GetBackup writes the named bundle to w.
	GetBackup(name string, w io.Writer) error

	// ListBackups returns the stored bundle names, oldest first.
	ListBackups() ([]string, error)

	// ValidateSetup verifies that the vault is reachable and configured.
	ValidateSetup() error
}
