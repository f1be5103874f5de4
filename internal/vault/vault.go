// Package vault stores encrypted backup bundles in memory, in a local
// directory or in an S3 bucket.
package vault

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned when a named backup does not exist.
var ErrNotFound = errors.New("backup not found")

// validName rejects names that could escape the vault's namespace.
func validName(name string) error {
	if name == "" || strings.HasPrefix(name, ".") || strings.ContainsAny(name, "/\\\x00") {
		return fmt.Errorf("invalid backup name %q", name)
	}
	return nil
}
