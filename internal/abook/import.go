package abook

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"abook/internal/model"
	"abook/internal/vcard"
)

// ImportPath imports every vCard file at path. A directory is scanned for
// .vcf and .vcard files (recursively if requested) honoring the ignore
// patterns. All contacts land in a single commit.
//
// Cards whose UID is already used, in the store or earlier in the same
// import, are given a fresh id.
func (s *Service) ImportPath(path *Path, recursive bool) (*ImportResult, error) {
	var files []*Path
	root := filepath.Dir(path.String())
	if path.IsDir() {
		root = path.String()
		found, err := s.fsmgr.FindFiles(path, recursive)
		if err != nil {
			return nil, fmt.Errorf("finding files: %w", err)
		}
		files = found
	} else {
		files = []*Path{path}
	}

	var records []*model.Contact
	var skipped []string
	read := 0
	seen := make(map[string]bool)
	for _, f := range files {
		if !f.IsVCard() {
			if !path.IsDir() {
				return nil, fmt.Errorf("not a vCard file: %s", f.String())
			}
			continue
		}
		ignored, err := s.fsmgr.IsIgnored(f, root)
		if err != nil {
			return nil, fmt.Errorf("checking ignore rules: %w", err)
		}
		if ignored {
			s.logger.Debug("file ignored", "path", f.String())
			skipped = append(skipped, f.String())
			continue
		}

		cards, err := s.readCards(f)
		if err != nil {
			return nil, err
		}
		read++
		for _, c := range cards {
			if err := s.claimID(c, seen); err != nil {
				return nil, err
			}
			if c.Metadata.Source == "" {
				c.Metadata.Source = "import:" + f.Base()
			}
			c.Metadata.Archived = false
			records = append(records, c)
		}
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("no contacts found in %s", path.String())
	}

	source := path.Base()
	res, err := s.store.BulkCreate(records, source)
	if err != nil {
		return nil, fmt.Errorf("importing contacts: %w", err)
	}
	for _, c := range res.Contacts {
		s.indexContact(c)
	}
	res.Files = read
	res.Skipped = skipped

	s.logger.Info("import complete", "source", source, "count", len(res.Contacts), "commit", res.Commit)
	return res, nil
}

func (s *Service) readCards(f *Path) ([]*model.Contact, error) {
	r, err := s.fsmgr.Open(f)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", f.String(), err)
	}
	defer r.Close()

	cards, err := vcard.DecodeAll(r)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", f.String(), err)
	}
	return cards, nil
}

// claimID clears c.ID when it collides with a stored record or one already
// claimed in this batch, or when it is not usable as a record id (foreign
// UIDs are often URIs), so the store assigns a fresh one.
func (s *Service) claimID(c *model.Contact, seen map[string]bool) error {
	if c.ID == "" {
		return nil
	}
	if seen[c.ID] {
		c.ID = ""
		return nil
	}
	existing, err := s.store.Find(c.ID)
	if errors.Is(err, model.ErrArgument) {
		s.logger.Debug("imported id cannot name a record, assigning a new one", "id", c.ID)
		c.ID = ""
		return nil
	}
	if err != nil {
		return fmt.Errorf("checking id %s: %w", c.ID, err)
	}
	if existing != nil {
		s.logger.Debug("imported id already in use, assigning a new one", "id", c.ID)
		c.ID = ""
		return nil
	}
	seen[c.ID] = true
	return nil
}

// ExportContacts writes contacts as a vCard bundle and returns how many were
// written.
func (s *Service) ExportContacts(w io.Writer, includeArchived bool) (int, error) {
	contacts, err := s.store.List(includeArchived)
	if err != nil {
		return 0, fmt.Errorf("listing contacts: %w", err)
	}
	SortByName(contacts)
	if _, err := io.WriteString(w, vcard.EncodeAll(contacts)); err != nil {
		return 0, fmt.Errorf("writing vCards: %w", err)
	}
	return len(contacts), nil
}
