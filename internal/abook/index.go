package abook

import "abook/internal/model"

// Index is the full-text search collaborator. It is a derived cache of the
// store and can always be rebuilt from List output.
type Index interface {
	// Rebuild replaces the whole index with contacts.
	Rebuild(contacts []*model.Contact) error

	// Upsert adds or refreshes one contact.
	Upsert(c *model.Contact) error

	// Delete drops a contact. Deleting an unknown id is not an error.
	Delete(id string) error

	// Search returns the best matches for query, at most limit of them.
	Search(query string, limit int, includeArchived bool) ([]*SearchHit, error)

	Close() error
}

// SearchHit is one search result.
type SearchHit struct {
	ID          string
	DisplayName string
	Emails      []string
	Archived    bool
	Score       float64
}
