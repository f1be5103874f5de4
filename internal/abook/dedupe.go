package abook

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"abook/internal/linkage"
	"abook/internal/merge"
	"abook/internal/model"
)

// FindDuplicates runs the linkage engine over the active contacts.
func (s *Service) FindDuplicates(threshold float64, limit int) ([]linkage.Candidate, error) {
	contacts, err := s.store.List(false)
	if err != nil {
		return nil, fmt.Errorf("listing contacts: %w", err)
	}
	candidates, err := linkage.FindDuplicates(contacts, threshold, limit)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("duplicate scan", "contacts", len(contacts), "candidates", len(candidates))
	return candidates, nil
}

// MergeResult is a committed merge.
type MergeResult struct {
	*merge.Result
	Commit string
}

// MergeContacts merges the contacts with the given ids into the first one and
// archives the rest.
func (s *Service) MergeContacts(ids []string, strategy merge.Strategy, overrides map[model.Field]string) (*MergeResult, error) {
	if len(ids) < 2 {
		return nil, model.ArgumentError("merge", fmt.Sprintf("need at least 2 contacts, got %d", len(ids)))
	}

	records := make([]*model.Contact, 0, len(ids))
	for _, id := range ids {
		c, err := s.store.Get(id)
		if err != nil {
			return nil, err
		}
		if c.Metadata.Archived {
			return nil, model.ArgumentError("merge", fmt.Sprintf("contact %s is archived", id))
		}
		records = append(records, c)
	}

	res, err := merge.Merge(records, strategy, overrides, s.clock.Now())
	if err != nil {
		return nil, err
	}

	commit, err := s.store.MergeAndArchive(res.Contact.ID, res.Secondaries(), res.Contact)
	if err != nil {
		return nil, fmt.Errorf("committing merge: %w", err)
	}

	for _, id := range ids {
		if c, err := s.store.Find(id); err == nil && c != nil {
			s.indexContact(c)
		}
	}
	s.logger.Info("contacts merged", "primary", res.Contact.ID, "secondaries", strings.Join(res.Secondaries(), ","), "commit", commit)
	return &MergeResult{Result: res, Commit: commit}, nil
}

// SortByName orders contacts by label, case-insensitively, then by id.
func SortByName(contacts []*model.Contact) {
	slices.SortStableFunc(contacts, func(a, b *model.Contact) int {
		if c := cmp.Compare(strings.ToLower(a.Label()), strings.ToLower(b.Label())); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}
