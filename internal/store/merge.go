package store

import (
	"fmt"
	"slices"
	"strings"

	"abook/internal/abook"
	"abook/internal/model"
)

// MergeAndArchive replaces the primary's record with merged and moves every
// secondary to the archived area in one commit, then appends the merge to
// the merge log. A failed log append is logged; the commit stands.
func (s *GitStore) MergeAndArchive(primaryID string, secondaryIDs []string, merged *model.Contact) (string, error) {
	switch {
	case merged == nil:
		return "", model.StoreError("merge", "no merged contact given", nil)
	case len(secondaryIDs) == 0:
		return "", model.StoreError("merge", "no secondary contacts given", nil)
	case merged.ID != primaryID:
		return "", model.StoreError("merge", fmt.Sprintf("merged contact has id %s, want primary %s", merged.ID, primaryID), nil)
	case slices.Contains(secondaryIDs, primaryID):
		return "", model.StoreError("merge", "primary listed as a secondary", nil)
	}

	unlock, err := s.lock("merge")
	if err != nil {
		return "", err
	}
	defer unlock()

	primary, area, err := s.load("merge", primaryID)
	if err != nil {
		return "", err
	}
	if area != activeDir {
		return "", model.StoreError("merge", fmt.Sprintf("primary %s is archived", primaryID), nil)
	}
	secondaries := make([]*model.Contact, 0, len(secondaryIDs))
	for _, id := range secondaryIDs {
		sec, area, err := s.load("merge", id)
		if err != nil {
			return "", err
		}
		if area != activeDir {
			return "", model.StoreError("merge", fmt.Sprintf("secondary %s is archived", id), nil)
		}
		secondaries = append(secondaries, sec)
	}

	rec := merged.Clone()
	if rec.Metadata.Created.IsZero() {
		rec.Metadata.Created = primary.Metadata.Created
	}
	rec.Metadata.Archived = false
	rec.Metadata.Modified = s.nextModified(primary.Metadata.Modified)
	if merged.Metadata.Modified.After(rec.Metadata.Modified) {
		rec.Metadata.Modified = merged.Metadata.Modified.UTC()
	}
	s.normalizer.Normalize(rec)

	tx, err := s.begin()
	if err != nil {
		return "", err
	}
	if err := tx.write(recordPath(activeDir, primaryID), rec); err != nil {
		tx.abort()
		return "", model.StoreError("merge", "writing merged contact", err)
	}
	labels := make([]string, len(secondaries))
	for i, sec := range secondaries {
		sec.Metadata.Archived = true
		sec.Metadata.Modified = s.nextModified(sec.Metadata.Modified)
		if err := tx.write(recordPath(archivedDir, sec.ID), sec); err != nil {
			tx.abort()
			return "", model.StoreError("merge", "archiving "+sec.ID, err)
		}
		tx.remove(recordPath(activeDir, sec.ID))
		labels[i] = describe(sec)
	}

	hash, err := tx.commit(fmt.Sprintf("Merge contacts: %s -> %s", strings.Join(labels, ", "), describe(rec)))
	if err != nil {
		return "", model.StoreError("merge", "committing", err)
	}

	entry := abook.MergeLogEntry{
		Timestamp:    s.clock.Now().UTC(),
		PrimaryID:    primaryID,
		SecondaryIDs: slices.Clone(secondaryIDs),
	}
	if err := s.appendMergeLog(entry); err != nil {
		s.logger.Error("appending to merge log failed", "primary", primaryID, "commit", hash, "error", err)
	}

	s.logger.Info("contacts merged", "primary", primaryID, "secondaries", strings.Join(secondaryIDs, ","), "commit", hash)
	return hash, nil
}
