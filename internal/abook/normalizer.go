package abook

import "abook/internal/model"

// Normalizer canonicalizes a contact in place before it is persisted.
// Implementations must be idempotent.
type Normalizer interface {
	Normalize(c *model.Contact)
}
