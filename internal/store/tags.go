package store

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"abook/internal/model"
)

// Checkpoint tags HEAD with name, or name-2, name-3, ... if taken.
func (s *GitStore) Checkpoint(name string) (string, error) {
	unlock, err := s.lock("checkpoint")
	if err != nil {
		return "", err
	}
	defer unlock()
	return s.tag(name)
}

// tag creates a lightweight tag at HEAD. The caller holds the lock.
func (s *GitStore) tag(name string) (string, error) {
	if name == "" || strings.ContainsAny(name, " ~^:?*[\\") || strings.Contains(name, "..") {
		return "", model.StoreError("tag", fmt.Sprintf("invalid tag name %q", name), nil)
	}
	repo, err := s.repository()
	if err != nil {
		return "", err
	}
	head, err := repo.Head()
	if err != nil {
		return "", model.StoreError("tag", "reading HEAD", err)
	}

	candidate := name
	for i := 2; ; i++ {
		_, err := repo.CreateTag(candidate, head.Hash(), nil)
		if err == nil {
			s.logger.Debug("tag created", "tag", candidate, "commit", head.Hash().String())
			return candidate, nil
		}
		if !errors.Is(err, git.ErrTagExists) {
			return "", model.StoreError("tag", "creating "+candidate, err)
		}
		candidate = fmt.Sprintf("%s-%d", name, i)
	}
}

func (s *GitStore) deleteTag(name string) {
	repo, err := s.repository()
	if err == nil {
		err = repo.DeleteTag(name)
	}
	if err != nil {
		s.logger.Error("deleting tag failed", "tag", name, "error", err)
	}
}

// Tags lists the tags starting with prefix, sorted by name.
func (s *GitStore) Tags(prefix string) ([]string, error) {
	repo, err := s.repository()
	if err != nil {
		return nil, err
	}
	iter, err := repo.Tags()
	if err != nil {
		return nil, model.StoreError("tags", "listing tags", err)
	}
	var out []string
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		if name := ref.Name().Short(); strings.HasPrefix(name, prefix) {
			out = append(out, name)
		}
		return nil
	})
	if err != nil {
		return nil, model.StoreError("tags", "listing tags", err)
	}
	sort.Strings(out)
	return out, nil
}

// resolveTag returns the commit a tag points at. Annotated tags are peeled.
func (s *GitStore) resolveTag(repo *git.Repository, name string) (plumbing.Hash, error) {
	ref, err := repo.Tag(name)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	if obj, err := repo.TagObject(ref.Hash()); err == nil {
		c, err := obj.Commit()
		if err != nil {
			return plumbing.ZeroHash, err
		}
		return c.Hash, nil
	}
	return ref.Hash(), nil
}
