package testutil

import (
	"abook/internal/abook"
	"abook/internal/encryption"
)

// NewTestEncryptor creates a reversible, keyless encryptor for tests.
func NewTestEncryptor() abook.Encryptor {
	return encryption.NewTestEncryptor()
}
