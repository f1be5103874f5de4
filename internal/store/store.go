// Package store implements the versioned record store on a git repository:
// one vCard file per contact, one commit per mutation.
//
// Layout under the root directory:
//
//	.git/
//	active/<id>.vcf
//	archived/<id>.vcf
//	meta/providers.toml
//	meta/merge-log.jsonl
package store

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"abook/internal/abook"
	"abook/internal/model"
	"abook/internal/vcard"
)

const (
	activeDir   = "active"
	archivedDir = "archived"
	metaDir     = "meta"
	recordExt   = ".vcf"

	lockFile     = ".abook.lock"
	mergeLogFile = "merge-log.jsonl"

	// DefaultStaleAfter is how old a lock must be before it is considered abandoned.
	DefaultStaleAfter = 30 * time.Second
)

// Config holds the settings of a GitStore.
type Config struct {
	Root        string
	AuthorName  string
	AuthorEmail string
	StaleAfter  time.Duration
}

// GitStore is the git-backed abook.Store.
type GitStore struct {
	root        string
	authorName  string
	authorEmail string
	staleAfter  time.Duration

	normalizer abook.Normalizer
	clock      abook.Clock
	idgen      abook.IDGenerator
	logger     abook.Logger

	mu   sync.Mutex
	repo *git.Repository

	// beforeCommit, when set, runs after a change is staged and before it is
	// committed; an error fails the commit.
	beforeCommit func(msg string) error
}

// NewGitStore creates a store rooted at cfg.Root. Call Init before use.
func NewGitStore(cfg Config, normalizer abook.Normalizer, clock abook.Clock, idgen abook.IDGenerator, logger abook.Logger) *GitStore {
	if cfg.AuthorName == "" {
		cfg.AuthorName = "abook"
	}
	if cfg.AuthorEmail == "" {
		cfg.AuthorEmail = "abook@localhost"
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = DefaultStaleAfter
	}
	return &GitStore{
		root:        cfg.Root,
		authorName:  cfg.AuthorName,
		authorEmail: cfg.AuthorEmail,
		staleAfter:  cfg.StaleAfter,
		normalizer:  normalizer,
		clock:       clock,
		idgen:       idgen,
		logger:      logger,
	}
}

// Root returns the store's root directory.
func (s *GitStore) Root() string {
	return s.root
}

// Init creates the directory layout and the repository with an initial
// commit. Existing content is kept; calling Init again does nothing.
func (s *GitStore) Init() error {
	for _, dir := range []string{activeDir, archivedDir, metaDir} {
		if err := os.MkdirAll(filepath.Join(s.root, dir), 0o755); err != nil {
			return model.StoreError("init", "creating "+dir, err)
		}
	}

	repo, err := git.PlainOpen(s.root)
	if errors.Is(err, git.ErrRepositoryNotExists) {
		repo, err = git.PlainInit(s.root, false)
	}
	if err != nil {
		return model.StoreError("init", "opening repository", err)
	}
	s.mu.Lock()
	s.repo = repo
	s.mu.Unlock()

	if _, err := repo.Head(); err == nil {
		return nil
	} else if !errors.Is(err, plumbing.ErrReferenceNotFound) {
		return model.StoreError("init", "reading HEAD", err)
	}

	unlock, err := s.lock("init")
	if err != nil {
		return err
	}
	defer unlock()

	tx, err := s.begin()
	if err != nil {
		return err
	}
	if err := tx.writeBytes(".gitignore", []byte(lockFile+"\n"+metaDir+"/"+mergeLogFile+"\n")); err != nil {
		tx.abort()
		return model.StoreError("init", "writing .gitignore", err)
	}
	existing, err := s.existingFiles()
	if err != nil {
		tx.abort()
		return model.StoreError("init", "scanning existing files", err)
	}
	for _, rel := range existing {
		tx.track(rel)
	}
	hash, err := tx.commit("Initialize contact store")
	if err != nil {
		return model.StoreError("init", "initial commit", err)
	}
	s.logger.Info("store initialized", "root", s.root, "commit", hash, "existing_files", len(existing))
	return nil
}

// existingFiles lists files already present in the layout directories.
func (s *GitStore) existingFiles() ([]string, error) {
	var out []string
	for _, dir := range []string{activeDir, archivedDir, metaDir} {
		entries, err := os.ReadDir(filepath.Join(s.root, dir))
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if !e.Type().IsRegular() || strings.HasPrefix(e.Name(), ".") || e.Name() == mergeLogFile {
				continue
			}
			out = append(out, path.Join(dir, e.Name()))
		}
	}
	return out, nil
}

func (s *GitStore) repository() (*git.Repository, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.repo != nil {
		return s.repo, nil
	}
	repo, err := git.PlainOpen(s.root)
	if err != nil {
		return nil, model.StoreError("open", "store not initialized at "+s.root, err)
	}
	s.repo = repo
	return repo, nil
}

func recordPath(area, id string) string {
	return path.Join(area, id+recordExt)
}

func (s *GitStore) abs(rel string) string {
	return filepath.Join(s.root, filepath.FromSlash(rel))
}

func validID(id string) error {
	if id == "" || strings.TrimSpace(id) != id || strings.HasPrefix(id, ".") || strings.ContainsAny(id, "/\\\x00\r\n") {
		return model.ArgumentError("store", fmt.Sprintf("invalid contact id %q", id))
	}
	return nil
}

// locate returns the area holding id, or "" if neither does.
func (s *GitStore) locate(id string) (string, error) {
	for _, area := range []string{activeDir, archivedDir} {
		_, err := os.Stat(s.abs(recordPath(area, id)))
		if err == nil {
			return area, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("checking %s: %w", recordPath(area, id), err)
		}
	}
	return "", nil
}

func (s *GitStore) readRecord(area, id string) (*model.Contact, error) {
	data, err := os.ReadFile(s.abs(recordPath(area, id)))
	if err != nil {
		return nil, err
	}
	c, err := vcard.Decode(string(data))
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", recordPath(area, id), err)
	}
	if c.ID == "" {
		c.ID = id
	}
	c.Metadata.Archived = area == archivedDir
	return c, nil
}

// load finds and reads a record; a missing record yields a NotFound error.
func (s *GitStore) load(op, id string) (*model.Contact, string, error) {
	if err := validID(id); err != nil {
		return nil, "", err
	}
	area, err := s.locate(id)
	if err != nil {
		return nil, "", model.StoreError(op, "locating contact", err)
	}
	if area == "" {
		return nil, "", model.NotFound(op, id)
	}
	c, err := s.readRecord(area, id)
	if err != nil {
		return nil, "", model.StoreError(op, "reading contact", err)
	}
	return c, area, nil
}

// Get returns a record from either area.
func (s *GitStore) Get(id string) (*model.Contact, error) {
	c, _, err := s.load("get", id)
	return c, err
}

// Find is Get returning (nil, nil) when the record does not exist.
func (s *GitStore) Find(id string) (*model.Contact, error) {
	c, _, err := s.load("find", id)
	if errors.Is(err, model.ErrNotFound) {
		return nil, nil
	}
	return c, err
}

// List decodes every record in the active area, and the archived area too
// when includeArchived is set. Records are ordered by id within each area.
func (s *GitStore) List(includeArchived bool) ([]*model.Contact, error) {
	areas := []string{activeDir}
	if includeArchived {
		areas = append(areas, archivedDir)
	}

	var out []*model.Contact
	for _, area := range areas {
		entries, err := os.ReadDir(filepath.Join(s.root, area))
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, model.StoreError("list", "reading "+area, err)
		}
		var ids []string
		for _, e := range entries {
			name := e.Name()
			if !e.Type().IsRegular() || strings.HasPrefix(name, ".") || filepath.Ext(name) != recordExt {
				continue
			}
			ids = append(ids, strings.TrimSuffix(name, recordExt))
		}
		sort.Strings(ids)
		for _, id := range ids {
			c, err := s.readRecord(area, id)
			if errors.Is(err, os.ErrNotExist) {
				// removed by a concurrent writer
				continue
			}
			if err != nil {
				return nil, model.StoreError("list", "reading contact", err)
			}
			out = append(out, c)
		}
	}
	return out, nil
}

// nextModified returns the current time, pushed past prev if the clock has
// not advanced, so Modified strictly increases.
func (s *GitStore) nextModified(prev time.Time) time.Time {
	now := s.clock.Now().UTC()
	if !now.After(prev) {
		now = prev.Add(time.Nanosecond)
	}
	return now
}

func describe(c *model.Contact) string {
	return fmt.Sprintf("%s (%s)", c.Label(), c.ID)
}

// Create stores a new record in the active area.
func (s *GitStore) Create(c *model.Contact) (*model.Contact, error) {
	if c == nil {
		return nil, model.StoreError("create", "no contact given", nil)
	}
	unlock, err := s.lock("create")
	if err != nil {
		return nil, err
	}
	defer unlock()

	rec := c.Clone()
	if rec.ID == "" {
		rec.ID = s.idgen.New()
	}
	if err := validID(rec.ID); err != nil {
		return nil, err
	}
	area, err := s.locate(rec.ID)
	if err != nil {
		return nil, model.StoreError("create", "checking id", err)
	}
	if area != "" {
		return nil, model.StoreError("create", fmt.Sprintf("contact %s already exists", rec.ID), nil)
	}

	now := s.clock.Now().UTC()
	rec.Metadata.Created = now
	rec.Metadata.Modified = now
	rec.Metadata.Archived = false
	s.normalizer.Normalize(rec)

	tx, err := s.begin()
	if err != nil {
		return nil, err
	}
	if err := tx.write(recordPath(activeDir, rec.ID), rec); err != nil {
		tx.abort()
		return nil, model.StoreError("create", "writing contact", err)
	}
	hash, err := tx.commit("Create contact: " + describe(rec))
	if err != nil {
		return nil, model.StoreError("create", "committing", err)
	}

	s.logger.Info("contact created", "id", rec.ID, "commit", hash)
	return rec.Clone(), nil
}

// Update applies p to a record in whichever area holds it.
func (s *GitStore) Update(id string, p model.Patch) (*model.Contact, error) {
	if p.IsEmpty() {
		return nil, model.StoreError("update", "no fields to update", nil)
	}
	unlock, err := s.lock("update")
	if err != nil {
		return nil, err
	}
	defer unlock()

	rec, area, err := s.load("update", id)
	if err != nil {
		return nil, err
	}
	fields := p.Apply(rec)
	s.normalizer.Normalize(rec)
	rec.Metadata.Modified = s.nextModified(rec.Metadata.Modified)

	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = string(f)
	}

	tx, err := s.begin()
	if err != nil {
		return nil, err
	}
	if err := tx.write(recordPath(area, id), rec); err != nil {
		tx.abort()
		return nil, model.StoreError("update", "writing contact", err)
	}
	hash, err := tx.commit(fmt.Sprintf("Update contact: %s - changed %s", describe(rec), strings.Join(names, ", ")))
	if err != nil {
		return nil, model.StoreError("update", "committing", err)
	}

	s.logger.Info("contact updated", "id", id, "fields", strings.Join(names, ","), "commit", hash)
	return rec.Clone(), nil
}

// Delete archives a record, or removes it from the store when permanent is
// set. Archiving an archived record does nothing.
func (s *GitStore) Delete(id string, permanent bool) error {
	unlock, err := s.lock("delete")
	if err != nil {
		return err
	}
	defer unlock()

	rec, area, err := s.load("delete", id)
	if err != nil {
		return err
	}
	if !permanent && area == archivedDir {
		return nil
	}

	tx, err := s.begin()
	if err != nil {
		return err
	}
	var msg string
	if permanent {
		tx.remove(recordPath(area, id))
		msg = "Delete contact permanently: " + describe(rec)
	} else {
		rec.Metadata.Archived = true
		rec.Metadata.Modified = s.nextModified(rec.Metadata.Modified)
		if err := tx.write(recordPath(archivedDir, id), rec); err != nil {
			tx.abort()
			return model.StoreError("delete", "writing archived contact", err)
		}
		tx.remove(recordPath(activeDir, id))
		msg = "Archive contact: " + describe(rec)
	}

	hash, err := tx.commit(msg)
	if err != nil {
		return model.StoreError("delete", "committing", err)
	}
	s.logger.Info("contact deleted", "id", id, "permanent", permanent, "commit", hash)
	return nil
}

// LinkProvider records remoteID as the id of record id in provider. Linking
// the same pair again does nothing; a different remote id for an already
// linked provider is refused.
func (s *GitStore) LinkProvider(id, provider, remoteID string) error {
	if provider == "" || remoteID == "" {
		return model.StoreError("link provider", "provider and remote id are required", nil)
	}
	unlock, err := s.lock("link provider")
	if err != nil {
		return err
	}
	defer unlock()

	rec, area, err := s.load("link provider", id)
	if err != nil {
		return err
	}
	if existing, ok := rec.Metadata.ProviderIDs[provider]; ok {
		if existing == remoteID {
			return nil
		}
		return model.StoreError("link provider", fmt.Sprintf("contact %s is already linked to %s as %s", id, provider, existing), nil)
	}
	rec.Metadata.ProviderIDs[provider] = remoteID

	tx, err := s.begin()
	if err != nil {
		return err
	}
	if err := tx.write(recordPath(area, id), rec); err != nil {
		tx.abort()
		return model.StoreError("link provider", "writing contact", err)
	}
	if _, err := tx.commit(fmt.Sprintf("Sync contacts: linked %s to %s", describe(rec), provider)); err != nil {
		return model.StoreError("link provider", "committing", err)
	}
	return nil
}

var _ abook.Store = (*GitStore)(nil)
