package abook

import (
	"time"

	"abook/internal/model"
)

// Store is the versioned record store. Every mutating method takes the store
// lock and produces exactly one commit; reads are lock-free.
type Store interface {
	// Init creates the layout and repository. It is safe to call repeatedly.
	Init() error

	// Create assigns an id when c has none, sets fresh metadata and commits.
	Create(c *model.Contact) (*model.Contact, error)

	// Get returns the record from the active or archived area, or a
	// model.ErrNotFound error.
	Get(id string) (*model.Contact, error)

	// Find is Get for optional lookups: an absent record yields (nil, nil).
	Find(id string) (*model.Contact, error)

	// Update applies the fields set in p and leaves all others untouched.
	Update(id string, p model.Patch) (*model.Contact, error)

	// Delete archives the record, or destroys it when permanent is set.
	Delete(id string, permanent bool) error

	// List returns the active records, plus archived ones if requested.
	List(includeArchived bool) ([]*model.Contact, error)

	// BulkCreate writes all records in one commit between a pre-import and a
	// post-import tag. A failure leaves the store at its previous commit.
	BulkCreate(records []*model.Contact, source string) (*ImportResult, error)

	// History returns up to limit commits, newest first, optionally scoped
	// to one record's file. limit <= 0 means no limit.
	History(limit int, id string) ([]*HistoryEntry, error)

	// Rollback reverts commits with new inverse commits.
	Rollback(opts RollbackOptions) (*RollbackResult, error)

	// MergeAndArchive overwrites the primary with merged, archives the
	// secondaries in one commit and appends to the merge log. It returns the
	// commit hash.
	MergeAndArchive(primaryID string, secondaryIDs []string, merged *model.Contact) (string, error)

	// MergeLog returns the merge audit log, oldest first.
	MergeLog() ([]*MergeLogEntry, error)

	// Checkpoint tags the current commit. It returns the tag name actually
	// used, which carries a numeric suffix if name was taken.
	Checkpoint(name string) (string, error)

	// Tags lists tag names starting with prefix, sorted.
	Tags(prefix string) ([]string, error)

	// LinkProvider records the remote id of a record in an external system.
	// Existing links are never overwritten.
	LinkProvider(id, provider, remoteID string) error

	// ReadMeta returns the content of a file in the metadata area, or nil if
	// it does not exist.
	ReadMeta(name string) ([]byte, error)

	// WriteMeta replaces a file in the metadata area and commits it.
	WriteMeta(name string, data []byte, message string) error
}

// ImportResult describes a bulk import.
type ImportResult struct {
	Contacts []*model.Contact
	PreTag   string
	PostTag  string
	Commit   string
	// Files and Skipped are filled in by the service for path imports.
	Files   int
	Skipped []string
}

// MergeLogEntry is one line of the append-only merge log.
type MergeLogEntry struct {
	Timestamp    time.Time `json:"timestamp"`
	PrimaryID    string    `json:"primary_id"`
	SecondaryIDs []string  `json:"secondary_ids"`
}
