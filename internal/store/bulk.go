package store

import (
	"fmt"

	"abook/internal/abook"
	"abook/internal/model"
)

// BulkCreate writes records in a single commit bracketed by pre-import and
// post-import tags. Records keep non-zero timestamps (restores rely on that)
// and land in the archived area when flagged archived. On failure nothing is
// committed, the pre-import tag is removed, and the returned BatchError
// counts the records written before the failure.
func (s *GitStore) BulkCreate(records []*model.Contact, source string) (*abook.ImportResult, error) {
	if len(records) == 0 {
		return nil, model.StoreError("import", "no contacts to import", nil)
	}
	if source == "" {
		source = "unknown source"
	}
	unlock, err := s.lock("import")
	if err != nil {
		return nil, err
	}
	defer unlock()

	now := s.clock.Now().UTC()
	prepared := make([]*model.Contact, 0, len(records))
	batch := make(map[string]bool, len(records))
	for _, r := range records {
		rec := r.Clone()
		if rec.ID == "" {
			rec.ID = s.idgen.New()
		}
		if err := validID(rec.ID); err != nil {
			return nil, err
		}
		area, err := s.locate(rec.ID)
		if err != nil {
			return nil, model.StoreError("import", "checking id", err)
		}
		if area != "" || batch[rec.ID] {
			return nil, model.StoreError("import", fmt.Sprintf("contact %s already exists", rec.ID), nil)
		}
		batch[rec.ID] = true

		if rec.Metadata.Created.IsZero() {
			rec.Metadata.Created = now
		}
		if rec.Metadata.Modified.IsZero() {
			rec.Metadata.Modified = now
		}
		if rec.Metadata.Source == "" {
			rec.Metadata.Source = "import:" + source
		}
		s.normalizer.Normalize(rec)
		prepared = append(prepared, rec)
	}

	stamp := abook.TagTime(now)
	pre, err := s.tag("pre-import-" + stamp)
	if err != nil {
		return nil, err
	}

	tx, err := s.begin()
	if err != nil {
		s.deleteTag(pre)
		return nil, err
	}
	for i, rec := range prepared {
		area := activeDir
		if rec.Metadata.Archived {
			area = archivedDir
		}
		if err := tx.write(recordPath(area, rec.ID), rec); err != nil {
			tx.abort()
			s.deleteTag(pre)
			return nil, &model.BatchError{Op: "import", Completed: i, Total: len(prepared), Err: model.StoreError("import", "writing contact "+rec.ID, err)}
		}
	}
	hash, err := tx.commit(fmt.Sprintf("Import %d contacts from %s", len(prepared), source))
	if err != nil {
		s.deleteTag(pre)
		return nil, &model.BatchError{Op: "import", Completed: len(prepared), Total: len(prepared), Err: model.StoreError("import", "committing", err)}
	}

	post, err := s.tag("post-import-" + stamp)
	if err != nil {
		return nil, err
	}

	out := make([]*model.Contact, len(prepared))
	for i, rec := range prepared {
		out[i] = rec.Clone()
	}
	s.logger.Info("contacts imported", "count", len(prepared), "source", source, "commit", hash)
	return &abook.ImportResult{Contacts: out, PreTag: pre, PostTag: post, Commit: hash}, nil
}
