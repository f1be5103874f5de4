package abook

import (
	"bytes"
	"fmt"
	"strings"

	"abook/internal/model"
	"abook/internal/vcard"
)

const (
	backupPrefix = "contacts-"
	backupSuffix = ".vcf.age"
	backupLayout = "20060102T150405Z"
)

// Backup encrypts a vCard bundle of every contact, archived ones included,
// and stores it in the vault. It returns the backup name.
func (s *Service) Backup() (string, error) {
	if s.vault == nil || s.encryptor == nil {
		return "", fmt.Errorf("backups need a vault and an encryptor")
	}
	contacts, err := s.store.List(true)
	if err != nil {
		return "", fmt.Errorf("listing contacts: %w", err)
	}
	SortByName(contacts)

	var ciphertext bytes.Buffer
	if err := s.encryptor.Encrypt(strings.NewReader(vcard.EncodeAll(contacts)), &ciphertext); err != nil {
		return "", fmt.Errorf("encrypting backup: %w", err)
	}

	name := backupPrefix + s.clock.Now().UTC().Format(backupLayout) + backupSuffix
	if err := s.vault.PutBackup(name, &ciphertext, int64(ciphertext.Len())); err != nil {
		return "", fmt.Errorf("storing backup: %w", err)
	}

	s.logger.Info("backup stored", "name", name, "contacts", len(contacts))
	return name, nil
}

// ListBackups returns the backup names in the vault.
func (s *Service) ListBackups() ([]string, error) {
	if s.vault == nil {
		return nil, fmt.Errorf("no vault configured")
	}
	names, err := s.vault.ListBackups()
	if err != nil {
		return nil, fmt.Errorf("listing backups: %w", err)
	}
	return names, nil
}

// Restore decrypts a backup and re-creates, in one import commit, every
// contact whose id is no longer in the store. Contacts still present are
// left alone; rollback is the tool for reverting edits.
func (s *Service) Restore(name string, decryptCtx DecryptionContext) (*ImportResult, error) {
	if s.vault == nil {
		return nil, fmt.Errorf("no vault configured")
	}
	if decryptCtx == nil {
		return nil, fmt.Errorf("restoring needs an unlocked key")
	}
	s.logger.Info("restore started", "name", name)

	var ciphertext bytes.Buffer
	if err := s.vault.GetBackup(name, &ciphertext); err != nil {
		return nil, fmt.Errorf("retrieving backup: %w", err)
	}
	var plaintext bytes.Buffer
	if err := decryptCtx.Decrypt(&ciphertext, &plaintext); err != nil {
		return nil, fmt.Errorf("decrypting backup: %w", err)
	}
	cards, err := vcard.DecodeAll(&plaintext)
	if err != nil {
		return nil, fmt.Errorf("decoding backup: %w", err)
	}

	var missing []*model.Contact
	for _, c := range cards {
		if c.ID == "" {
			continue
		}
		existing, err := s.store.Find(c.ID)
		if err != nil {
			return nil, fmt.Errorf("checking id %s: %w", c.ID, err)
		}
		if existing == nil {
			missing = append(missing, c)
		}
	}
	if len(missing) == 0 {
		s.logger.Info("restore found nothing missing", "name", name)
		return &ImportResult{}, nil
	}

	res, err := s.store.BulkCreate(missing, "backup "+name)
	if err != nil {
		return nil, fmt.Errorf("restoring contacts: %w", err)
	}
	for _, c := range res.Contacts {
		s.indexContact(c)
	}
	s.logger.Info("restore complete", "name", name, "count", len(res.Contacts))
	return res, nil
}
