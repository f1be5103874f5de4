package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"

	"abook/internal/abook"
	"abook/internal/config"
	"abook/internal/encryption"
	"abook/internal/fs"
	"abook/internal/index"
	"abook/internal/linkage"
	"abook/internal/merge"
	"abook/internal/model"
	"abook/internal/normalize"
	"abook/internal/provider"
	"abook/internal/store"
	"abook/internal/vault"
)

// ABookApp is the application layer between the CLI and abook.Service.
// It constructs all dependencies from config, exposes operations that take
// raw CLI arguments, and releases resources on Close.
type ABookApp struct {
	cfg       *config.Config
	store     *store.GitStore
	index     abook.Index
	encryptor abook.Encryptor
	fsmgr     abook.FilesystemManager
	vaults    map[string]abook.Vault
	service   *abook.Service
	clock     abook.Clock
	op        *Operation
	logger    abook.Logger
	logFile   io.Closer
}

// NewABookApp creates a fully wired ABookApp from the given config.
// operation names the CLI command being run; params are logged with it.
// The caller must call Close when done.
func NewABookApp(cfg *config.Config, operation string, params ...string) (*ABookApp, error) {
	return newABookApp(cfg, abook.RealClock{}, abook.UUIDGenerator{}, os.Stderr, operation, params...)
}

func newABookApp(cfg *config.Config, clock abook.Clock, idgen abook.IDGenerator, stderr io.Writer, operation string, params ...string) (*ABookApp, error) {
	op := NewOperation(operation, clock.Now(), params...)
	slogger, logFile, err := newLogger(cfg.Log, cfg.LogDir, op.ID, stderr)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: slogger}

	idx, err := index.NewIndexFromConfig(cfg.Index)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("creating search index: %w", err)
	}

	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		idx.Close()
		logFile.Close()
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}

	st := store.NewGitStore(store.Config{
		Root:        cfg.Store.Root,
		AuthorName:  cfg.Store.AuthorName,
		AuthorEmail: cfg.Store.AuthorEmail,
		StaleAfter:  time.Duration(cfg.Store.StaleLockSeconds) * time.Second,
	}, normalize.New(cfg.Normalize.Region), clock, idgen, logger)

	fsmgr := fs.NewOSFilesystemManager(cfg.Import.Ignore)
	svc := abook.NewService(st, idx, nil, enc, fsmgr, logger, clock)

	logger.Debug("operation started", "operation", op.Name, "params", op.Parameters)
	return &ABookApp{
		cfg:       cfg,
		store:     st,
		index:     idx,
		encryptor: enc,
		fsmgr:     fsmgr,
		vaults:    make(map[string]abook.Vault),
		service:   svc,
		clock:     clock,
		op:        op,
		logger:    logger,
		logFile:   logFile,
	}, nil
}

// Fail records that the operation failed; Close logs the outcome.
func (a *ABookApp) Fail(err error) {
	a.op.Fail(err)
}

// Init creates the contact store, or adopts an existing directory.
func (a *ABookApp) Init() error {
	return a.service.Init()
}

// AddContact stores a new contact.
func (a *ABookApp) AddContact(c *model.Contact) (*model.Contact, error) {
	return a.service.CreateContact(c)
}

// ShowContact returns a contact, archived or not.
func (a *ABookApp) ShowContact(id string) (*model.Contact, error) {
	return a.service.GetContact(id)
}

// EditContact applies a partial update.
func (a *ABookApp) EditContact(id string, p model.Patch) (*model.Contact, error) {
	if p.IsEmpty() {
		return nil, model.ArgumentError("edit", "no fields to change")
	}
	return a.service.UpdateContact(id, p)
}

// RemoveContact archives a contact, or destroys it when permanent is set.
func (a *ABookApp) RemoveContact(id string, permanent bool) error {
	return a.service.DeleteContact(id, permanent)
}

// ListContacts returns contacts sorted by name.
func (a *ABookApp) ListContacts(includeArchived bool) ([]*model.Contact, error) {
	contacts, err := a.service.ListContacts(includeArchived)
	if err != nil {
		return nil, err
	}
	abook.SortByName(contacts)
	return contacts, nil
}

// Import resolves rawPath and imports the vCards found there.
func (a *ABookApp) Import(rawPath string, recursive bool) (*abook.ImportResult, error) {
	p, err := a.fsmgr.Resolve(rawPath)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}
	return a.service.ImportPath(p, recursive)
}

// Export writes a vCard bundle to w.
func (a *ABookApp) Export(w io.Writer, includeArchived bool) (int, error) {
	return a.service.ExportContacts(w, includeArchived)
}

// Duplicates runs duplicate detection. Zero arguments select the configured
// defaults.
func (a *ABookApp) Duplicates(threshold float64, limit int) ([]linkage.Candidate, error) {
	if threshold <= 0 {
		threshold = a.cfg.Linkage.Threshold
	}
	if limit <= 0 {
		limit = a.cfg.Linkage.Limit
	}
	return a.service.FindDuplicates(threshold, limit)
}

// Merge merges the contacts with the given ids into the first one.
// overrides are "field=id" pairs pinning a field to one source.
func (a *ABookApp) Merge(ids []string, strategy string, overrides []string) (*abook.MergeResult, error) {
	st, err := merge.ParseStrategy(strategy)
	if err != nil {
		return nil, err
	}
	pinned, err := ParseOverrides(overrides)
	if err != nil {
		return nil, err
	}
	return a.service.MergeContacts(ids, st, pinned)
}

// ParseOverrides parses "field=id" pairs.
func ParseOverrides(pairs []string) (map[model.Field]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[model.Field]string, len(pairs))
	for _, pair := range pairs {
		name, id, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(id) == "" {
			return nil, model.ArgumentError("merge", fmt.Sprintf("override %q is not field=id", pair))
		}
		f, err := model.ParseField(name)
		if err != nil {
			return nil, err
		}
		out[f] = strings.TrimSpace(id)
	}
	return out, nil
}

// History returns the audit trail, optionally for one contact.
func (a *ABookApp) History(limit int, id string) ([]*abook.HistoryEntry, error) {
	return a.service.History(limit, id)
}

// Rollback reverts commits.
func (a *ABookApp) Rollback(opts abook.RollbackOptions) (*abook.RollbackResult, error) {
	return a.service.Rollback(opts)
}

// MergeLog returns the merge audit log.
func (a *ABookApp) MergeLog() ([]*abook.MergeLogEntry, error) {
	return a.service.MergeLog()
}

// Search queries the search index.
func (a *ABookApp) Search(query string, limit int, includeArchived bool) ([]*abook.SearchHit, error) {
	if limit <= 0 {
		limit = index.DefaultSearchLimit
	}
	return a.service.Search(query, limit, includeArchived)
}

// Reindex rebuilds the search index from the store.
func (a *ABookApp) Reindex() error {
	return a.service.Reindex()
}

// SetupKeys generates the backup key pair.
func (a *ABookApp) SetupKeys(passphrase string) error {
	if err := a.encryptor.Setup(passphrase); err != nil {
		return fmt.Errorf("setting up keys: %w", err)
	}
	a.logger.Info("backup keys created")
	return nil
}

// KeysConfigured reports whether the backup key pair exists.
func (a *ABookApp) KeysConfigured() bool {
	return a.encryptor.IsConfigured()
}

// useVault selects the named vault, or the first configured one.
func (a *ABookApp) useVault(name string) error {
	if len(a.cfg.Vaults) == 0 {
		return fmt.Errorf("no vaults configured")
	}
	vc := a.cfg.Vaults[0]
	if name != "" {
		found := false
		for _, c := range a.cfg.Vaults {
			if c.Name == name {
				vc, found = c, true
				break
			}
		}
		if !found {
			return fmt.Errorf("vault %q not configured", name)
		}
	}
	v, ok := a.vaults[vc.Name]
	if !ok {
		var err error
		v, err = vault.NewVaultFromConfig(vc)
		if err != nil {
			return fmt.Errorf("creating vault %s: %w", vc.Name, err)
		}
		a.vaults[vc.Name] = v
	}
	a.service.SetVault(v)
	return nil
}

// Backup stores an encrypted bundle of every contact in the named vault.
func (a *ABookApp) Backup(vaultName string) (string, error) {
	if !a.encryptor.IsConfigured() {
		return "", fmt.Errorf("no backup keys, run 'abook keys init' first")
	}
	if err := a.useVault(vaultName); err != nil {
		return "", err
	}
	return a.service.Backup()
}

// ListBackups lists the backups in the named vault.
func (a *ABookApp) ListBackups(vaultName string) ([]string, error) {
	if err := a.useVault(vaultName); err != nil {
		return nil, err
	}
	return a.service.ListBackups()
}

// Restore unlocks the private key and restores the contacts of a backup
// that are missing from the store.
func (a *ABookApp) Restore(vaultName, name, passphrase string) (*abook.ImportResult, error) {
	if err := a.useVault(vaultName); err != nil {
		return nil, err
	}
	decryptCtx, err := a.encryptor.Unlock(passphrase)
	if err != nil {
		return nil, fmt.Errorf("unlocking key: %w", err)
	}
	return a.service.Restore(name, decryptCtx)
}

// AddProvider registers a provider in the store's provider registry.
func (a *ABookApp) AddProvider(e provider.Entry) error {
	if e.Path != "" {
		abs, err := filepath.Abs(e.Path)
		if err != nil {
			return fmt.Errorf("resolving provider path: %w", err)
		}
		e.Path = abs
	}
	reg, err := provider.LoadRegistry(a.store)
	if err != nil {
		return err
	}
	if err := reg.Add(e); err != nil {
		return err
	}
	if err := reg.Save(a.store); err != nil {
		return err
	}
	a.logger.Info("provider added", "name", e.Name, "type", e.Type)
	return nil
}

// ListProviders returns the registered providers.
func (a *ABookApp) ListProviders() ([]*provider.Entry, error) {
	reg, err := provider.LoadRegistry(a.store)
	if err != nil {
		return nil, err
	}
	return reg.Providers, nil
}

// Sync synchronizes with a registered provider and records the new last
// sync time in the registry.
func (a *ABookApp) Sync(ctx context.Context, name string) (*abook.SyncResult, error) {
	reg, err := provider.LoadRegistry(a.store)
	if err != nil {
		return nil, err
	}
	entry := reg.Get(name)
	if entry == nil {
		return nil, fmt.Errorf("provider %q not found", name)
	}
	p, err := provider.NewProviderFromEntry(entry)
	if err != nil {
		return nil, err
	}

	res, err := a.service.Sync(ctx, p, entry.Since())
	if err != nil {
		return res, err
	}
	if err := reg.SetLastSync(name, res.NewLastSync); err != nil {
		return res, err
	}
	if err := reg.Save(a.store); err != nil {
		return res, fmt.Errorf("recording sync time: %w", err)
	}
	return res, nil
}

// Close logs the outcome of the operation and releases the index and the
// log file.
func (a *ABookApp) Close() error {
	var result *multierror.Error

	elapsed := a.op.Duration(a.clock.Now())
	if a.op.Failed() {
		a.logger.Error("operation failed", "operation", a.op.Name, "duration", elapsed, "error", a.op.Err)
	} else {
		a.logger.Info("operation finished", "operation", a.op.Name, "duration", elapsed)
	}

	if err := a.index.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("closing search index: %w", err))
	}
	if err := a.logFile.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("closing log file: %w", err))
	}
	return result.ErrorOrNil()
}
