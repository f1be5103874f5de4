package store

import (
	"errors"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"

	"abook/internal/abook"
	"abook/internal/model"
)

// History returns commits newest first. With an id, only commits touching
// that record's file in either area are returned.
func (s *GitStore) History(limit int, id string) ([]*abook.HistoryEntry, error) {
	repo, err := s.repository()
	if err != nil {
		return nil, err
	}
	head, err := repo.Head()
	if err != nil {
		return nil, model.StoreError("history", "reading HEAD", err)
	}

	opts := &git.LogOptions{From: head.Hash()}
	if id != "" {
		if err := validID(id); err != nil {
			return nil, err
		}
		active, archived := recordPath(activeDir, id), recordPath(archivedDir, id)
		opts.PathFilter = func(p string) bool { return p == active || p == archived }
	}
	iter, err := repo.Log(opts)
	if err != nil {
		return nil, model.StoreError("history", "walking log", err)
	}
	defer iter.Close()

	var out []*abook.HistoryEntry
	err = iter.ForEach(func(c *object.Commit) error {
		if limit > 0 && len(out) >= limit {
			return storer.ErrStop
		}
		out = append(out, entryFor(c))
		return nil
	})
	if err != nil && !errors.Is(err, storer.ErrStop) {
		return nil, model.StoreError("history", "walking log", err)
	}
	return out, nil
}

func entryFor(c *object.Commit) *abook.HistoryEntry {
	return &abook.HistoryEntry{
		Hash:      c.Hash.String(),
		Message:   c.Message,
		Timestamp: c.Author.When,
		Author:    c.Author.Name + " <" + c.Author.Email + ">",
		Operation: abook.ClassifyMessage(c.Message),
	}
}
