package abook

import (
	"fmt"

	"abook/internal/model"
)

// Service is the orchestration layer the CLI talks to. It coordinates the
// store with the search index, backup vault, import filesystem and sync
// providers. The store is the source of truth; the index is kept in step on
// a best-effort basis and can be rebuilt with Reindex.
type Service struct {
	store     Store
	index     Index
	vault     Vault
	encryptor Encryptor
	fsmgr     FilesystemManager
	logger    Logger
	clock     Clock
}

// NewService creates a Service. index, vault, encryptor and fsmgr may be nil
// when the caller never uses the operations that need them.
func NewService(store Store, index Index, vault Vault, encryptor Encryptor, fsmgr FilesystemManager, logger Logger, clock Clock) *Service {
	if logger == nil {
		logger = NewNopLogger()
	}
	if clock == nil {
		clock = RealClock{}
	}
	return &Service{
		store:     store,
		index:     index,
		vault:     vault,
		encryptor: encryptor,
		fsmgr:     fsmgr,
		logger:    logger,
		clock:     clock,
	}
}

// SetVault selects the backup destination used by Backup and Restore.
func (s *Service) SetVault(v Vault) {
	s.vault = v
}

// Init prepares the store and indexes whatever it already holds.
func (s *Service) Init() error {
	if err := s.store.Init(); err != nil {
		return fmt.Errorf("initializing store: %w", err)
	}
	return s.Reindex()
}

// CreateContact stores a new contact.
func (s *Service) CreateContact(c *model.Contact) (*model.Contact, error) {
	created, err := s.store.Create(c)
	if err != nil {
		return nil, fmt.Errorf("creating contact: %w", err)
	}
	s.indexContact(created)
	s.logger.Info("contact created", "id", created.ID, "name", created.Label())
	return created, nil
}

// GetContact returns a contact by id, archived or not.
func (s *Service) GetContact(id string) (*model.Contact, error) {
	return s.store.Get(id)
}

// UpdateContact applies a partial update.
func (s *Service) UpdateContact(id string, p model.Patch) (*model.Contact, error) {
	updated, err := s.store.Update(id, p)
	if err != nil {
		return nil, fmt.Errorf("updating contact: %w", err)
	}
	s.indexContact(updated)
	s.logger.Info("contact updated", "id", id, "fields", p.Fields())
	return updated, nil
}

// DeleteContact archives a contact, or destroys it when permanent is set.
func (s *Service) DeleteContact(id string, permanent bool) error {
	if err := s.store.Delete(id, permanent); err != nil {
		return fmt.Errorf("deleting contact: %w", err)
	}
	if permanent {
		s.unindexContact(id)
	} else if c, err := s.store.Find(id); err == nil && c != nil {
		s.indexContact(c)
	}
	s.logger.Info("contact deleted", "id", id, "permanent", permanent)
	return nil
}

// ListContacts returns the active contacts, plus archived ones if requested.
func (s *Service) ListContacts(includeArchived bool) ([]*model.Contact, error) {
	contacts, err := s.store.List(includeArchived)
	if err != nil {
		return nil, fmt.Errorf("listing contacts: %w", err)
	}
	return contacts, nil
}

// History returns the audit trail, optionally for one contact. A contact that
// was destroyed keeps its trail.
func (s *Service) History(limit int, id string) ([]*HistoryEntry, error) {
	entries, err := s.store.History(limit, id)
	if err != nil {
		return nil, fmt.Errorf("reading history: %w", err)
	}
	return entries, nil
}

// Rollback reverts commits and re-syncs the search index with the result.
func (s *Service) Rollback(opts RollbackOptions) (*RollbackResult, error) {
	res, err := s.store.Rollback(opts)
	if res != nil && res.Reverted > 0 {
		if rerr := s.Reindex(); rerr != nil {
			s.logger.Error("reindex after rollback failed", "error", rerr)
		}
	}
	if err != nil {
		return res, fmt.Errorf("rolling back: %w", err)
	}
	s.logger.Info("rollback complete", "mode", string(opts.Mode), "reverted", res.Reverted, "safety_tag", res.SafetyTag, "dry_run", opts.DryRun)
	return res, nil
}

// Search queries the full-text index.
func (s *Service) Search(query string, limit int, includeArchived bool) ([]*SearchHit, error) {
	if s.index == nil {
		return nil, fmt.Errorf("no search index configured")
	}
	hits, err := s.index.Search(query, limit, includeArchived)
	if err != nil {
		return nil, fmt.Errorf("searching: %w", err)
	}
	return hits, nil
}

// Reindex rebuilds the search index from the store.
func (s *Service) Reindex() error {
	if s.index == nil {
		return nil
	}
	contacts, err := s.store.List(true)
	if err != nil {
		return fmt.Errorf("listing contacts: %w", err)
	}
	if err := s.index.Rebuild(contacts); err != nil {
		return fmt.Errorf("rebuilding index: %w", err)
	}
	s.logger.Debug("index rebuilt", "count", len(contacts))
	return nil
}

// MergeLog returns the merge audit log.
func (s *Service) MergeLog() ([]*MergeLogEntry, error) {
	return s.store.MergeLog()
}

// indexContact refreshes one index entry. The store already committed, so an
// index failure is only logged.
func (s *Service) indexContact(c *model.Contact) {
	if s.index == nil {
		return
	}
	if err := s.index.Upsert(c); err != nil {
		s.logger.Error("search index out of date, run reindex", "id", c.ID, "error", err)
	}
}

func (s *Service) unindexContact(id string) {
	if s.index == nil {
		return
	}
	if err := s.index.Delete(id); err != nil {
		s.logger.Error("search index out of date, run reindex", "id", id, "error", err)
	}
}
