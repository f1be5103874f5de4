package store

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"abook/internal/abook"
	"abook/internal/model"
)

// Rollback reverts commits newest first, each with a new inverse commit, so
// history is never rewritten and the rollback can itself be rolled back.
//
// The target is resolved first; a missing commit or tag is a StoreError and
// leaves the store untouched. Then a pre-rollback tag is written at HEAD,
// also for a dry run. The first revert that fails stops the rollback; the
// BatchError reports how many reverts were applied.
func (s *GitStore) Rollback(opts abook.RollbackOptions) (*abook.RollbackResult, error) {
	switch opts.Mode {
	case abook.RollbackLast:
		if opts.Count < 1 {
			return nil, model.StoreError("rollback", "count must be at least 1", nil)
		}
	case abook.RollbackToCommit, abook.RollbackToTag:
		if opts.Target == "" {
			return nil, model.StoreError("rollback", "a target is required for "+string(opts.Mode), nil)
		}
	default:
		return nil, model.StoreError("rollback", fmt.Sprintf("unknown mode %q", opts.Mode), nil)
	}

	unlock, err := s.lock("rollback")
	if err != nil {
		return nil, err
	}
	defer unlock()

	repo, err := s.repository()
	if err != nil {
		return nil, err
	}
	head, err := repo.Head()
	if err != nil {
		return nil, model.StoreError("rollback", "reading HEAD", err)
	}
	commits, err := s.selectCommits(repo, head.Hash(), opts)
	if err != nil {
		return nil, err
	}

	safety, err := s.tag("pre-rollback-" + abook.TagTime(s.clock.Now()))
	if err != nil {
		return nil, err
	}
	res := &abook.RollbackResult{SafetyTag: safety, DryRun: opts.DryRun}
	for _, c := range commits {
		res.Commits = append(res.Commits, entryFor(c))
	}
	if opts.DryRun {
		return res, nil
	}

	for i, c := range commits {
		hash, err := s.revert(repo, c)
		if err != nil {
			return res, &model.BatchError{Op: "rollback", Completed: i, Total: len(commits), Err: err}
		}
		res.Reverted++
		s.logger.Info("commit reverted", "reverted", c.Hash.String(), "commit", hash)
	}
	return res, nil
}

// selectCommits walks the first-parent chain from head and returns the
// commits to revert, newest first. The root commit is never reverted.
func (s *GitStore) selectCommits(repo *git.Repository, head plumbing.Hash, opts abook.RollbackOptions) ([]*object.Commit, error) {
	var stop func(*object.Commit) bool
	switch opts.Mode {
	case abook.RollbackLast:
		stop = func(*object.Commit) bool { return false }
	case abook.RollbackToCommit:
		match, err := commitMatcher(repo, opts.Target)
		if err != nil {
			return nil, err
		}
		stop = match
	case abook.RollbackToTag:
		target, err := s.resolveTag(repo, opts.Target)
		if errors.Is(err, git.ErrTagNotFound) {
			return nil, model.StoreError("rollback", fmt.Sprintf("tag %q does not exist", opts.Target), nil)
		}
		if err != nil {
			return nil, model.StoreError("rollback", "resolving tag "+opts.Target, err)
		}
		stop = func(c *object.Commit) bool { return c.Hash == target }
	}

	var out []*object.Commit
	c, err := repo.CommitObject(head)
	if err != nil {
		return nil, model.StoreError("rollback", "loading HEAD commit", err)
	}
	for {
		if stop(c) {
			return out, nil
		}
		if opts.Mode == abook.RollbackLast && len(out) == opts.Count {
			return out, nil
		}
		if c.NumParents() == 0 {
			if opts.Mode == abook.RollbackLast {
				return nil, model.StoreError("rollback", fmt.Sprintf("only %d commits can be reverted", len(out)), nil)
			}
			return nil, model.StoreError("rollback", fmt.Sprintf("%s is not an ancestor of HEAD", opts.Target), nil)
		}
		out = append(out, c)
		if c, err = c.Parent(0); err != nil {
			return nil, model.StoreError("rollback", "loading parent commit", err)
		}
	}
}

// commitMatcher accepts a full or abbreviated hash, or any revision git can
// resolve.
func commitMatcher(repo *git.Repository, target string) (func(*object.Commit) bool, error) {
	t := strings.ToLower(strings.TrimSpace(target))
	if len(t) >= 4 && len(t) <= 40 && isHex(t) {
		if h, err := repo.ResolveRevision(plumbing.Revision(t)); err == nil {
			full := *h
			return func(c *object.Commit) bool { return c.Hash == full }, nil
		}
		found := false
		iter, err := repo.CommitObjects()
		if err == nil {
			_ = iter.ForEach(func(c *object.Commit) error {
				if strings.HasPrefix(c.Hash.String(), t) {
					found = true
				}
				return nil
			})
		}
		if !found {
			return nil, model.StoreError("rollback", fmt.Sprintf("commit %q does not exist", target), nil)
		}
		return func(c *object.Commit) bool { return strings.HasPrefix(c.Hash.String(), t) }, nil
	}
	h, err := repo.ResolveRevision(plumbing.Revision(target))
	if err != nil {
		return nil, model.StoreError("rollback", fmt.Sprintf("commit %q does not exist", target), err)
	}
	full := *h
	return func(c *object.Commit) bool { return c.Hash == full }, nil
}

func isHex(s string) bool {
	if len(s)%2 == 1 {
		s += "0"
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

// revert applies the inverse of c on top of HEAD as a new commit. Every
// path c touched must still be as c left it; otherwise the revert conflicts
// and nothing is changed.
func (s *GitStore) revert(repo *git.Repository, c *object.Commit) (string, error) {
	parent, err := c.Parent(0)
	if err != nil {
		return "", model.StoreError("revert", "loading parent of "+c.Hash.String(), err)
	}
	parentTree, err := parent.Tree()
	if err != nil {
		return "", model.StoreError("revert", "loading parent tree", err)
	}
	tree, err := c.Tree()
	if err != nil {
		return "", model.StoreError("revert", "loading tree", err)
	}
	changes, err := object.DiffTree(parentTree, tree)
	if err != nil {
		return "", model.StoreError("revert", "diffing "+c.Hash.String(), err)
	}

	head, err := repo.Head()
	if err != nil {
		return "", model.StoreError("revert", "reading HEAD", err)
	}
	headCommit, err := repo.CommitObject(head.Hash())
	if err != nil {
		return "", model.StoreError("revert", "loading HEAD commit", err)
	}
	headTree, err := headCommit.Tree()
	if err != nil {
		return "", model.StoreError("revert", "loading HEAD tree", err)
	}

	type step struct {
		path    string
		content *string
	}
	var steps []step
	for _, ch := range changes {
		from, to, err := ch.Files()
		if err != nil {
			return "", model.StoreError("revert", "reading change", err)
		}
		p := ch.To.Name
		if p == "" {
			p = ch.From.Name
		}

		current, err := headTree.File(p)
		if err != nil && !errors.Is(err, object.ErrFileNotFound) {
			return "", model.StoreError("revert", "reading "+p+" at HEAD", err)
		}
		switch {
		case to == nil && current != nil:
			return "", model.StoreError("revert", fmt.Sprintf("conflict reverting %s: %s was re-created since", short(c), p), nil)
		case to != nil && (current == nil || current.Hash != to.Hash):
			return "", model.StoreError("revert", fmt.Sprintf("conflict reverting %s: %s changed since", short(c), p), nil)
		}

		if from == nil {
			steps = append(steps, step{path: p})
			continue
		}
		content, err := from.Contents()
		if err != nil {
			return "", model.StoreError("revert", "reading "+p, err)
		}
		steps = append(steps, step{path: p, content: &content})
	}

	tx, err := s.begin()
	if err != nil {
		return "", err
	}
	for _, st := range steps {
		if st.content == nil {
			tx.remove(st.path)
			continue
		}
		if err := tx.writeBytes(st.path, []byte(*st.content)); err != nil {
			tx.abort()
			return "", model.StoreError("revert", "writing "+st.path, err)
		}
	}

	subject, _, _ := strings.Cut(c.Message, "\n")
	msg := fmt.Sprintf("Revert %q\n\nThis reverts commit %s.\n", subject, c.Hash.String())
	hash, err := tx.commit(msg)
	if err != nil {
		return "", model.StoreError("revert", "committing", err)
	}
	return hash, nil
}

func short(c *object.Commit) string {
	return c.Hash.String()[:7]
}
