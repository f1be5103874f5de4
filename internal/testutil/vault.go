package testutil

import (
	"abook/internal/abook"
	"abook/internal/vault"
)

// NewTestVault creates an in-memory vault for tests.
func NewTestVault() abook.Vault {
	return vault.NewMemoryVault("test-vault")
}
