package abook

import (
	"context"
	"time"

	"abook/internal/model"
)

// Provider is an external address book that contacts are synchronized with.
// Adapters hold no sync state: the last sync time is passed to Fetch by the
// caller.
type Provider interface {
	// Name is the key used in a contact's provider id map.
	Name() string

	// Fetch returns the remote records changed after since. A zero since
	// returns everything.
	Fetch(ctx context.Context, since time.Time) ([]*RemoteContact, error)

	// Push creates c remotely and returns its remote id.
	Push(ctx context.Context, c *model.Contact) (string, error)

	// Update overwrites the remote record remoteID with c.
	Update(ctx context.Context, remoteID string, c *model.Contact) error

	// Delete removes the remote record remoteID.
	Delete(ctx context.Context, remoteID string) error
}

// RemoteContact is a record as seen by a provider.
type RemoteContact struct {
	RemoteID string
	Contact  *model.Contact
}
