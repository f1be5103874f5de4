package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"abook/internal/model"
	"abook/internal/vcard"
)

// txn collects the file changes of one mutation and turns them into a single
// commit. If anything fails before the commit lands, abort puts every touched
// path back to its state at HEAD so the working tree never holds a partial
// change.
type txn struct {
	s       *GitStore
	repo    *git.Repository
	wt      *git.Worktree
	adds    []string
	removes []string
	touched []string
}

func (s *GitStore) begin() (*txn, error) {
	repo, err := s.repository()
	if err != nil {
		return nil, err
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, model.StoreError("begin", "opening worktree", err)
	}
	return &txn{s: s, repo: repo, wt: wt}, nil
}

func (t *txn) touch(rel string) {
	for _, p := range t.touched {
		if p == rel {
			return
		}
	}
	t.touched = append(t.touched, rel)
}

// write encodes c into rel.
func (t *txn) write(rel string, c *model.Contact) error {
	return t.writeBytes(rel, []byte(vcard.Encode(c)))
}

// writeBytes atomically replaces rel and schedules it for staging.
func (t *txn) writeBytes(rel string, data []byte) error {
	t.touch(rel)
	if err := writeFileAtomic(t.s.abs(rel), data); err != nil {
		return err
	}
	t.adds = append(t.adds, rel)
	return nil
}

// track schedules an existing file for staging without rewriting it.
func (t *txn) track(rel string) {
	t.touch(rel)
	t.adds = append(t.adds, rel)
}

// remove schedules rel for deletion; the file goes when the change is staged.
func (t *txn) remove(rel string) {
	t.touch(rel)
	t.removes = append(t.removes, rel)
}

// commit stages the collected changes and commits them. On failure the
// working tree is restored and the error returned.
func (t *txn) commit(msg string) (string, error) {
	hash, err := t.stageAndCommit(msg)
	if err != nil {
		t.abort()
		return "", err
	}
	return hash.String(), nil
}

func (t *txn) stageAndCommit(msg string) (plumbing.Hash, error) {
	for _, rel := range t.removes {
		if _, err := t.wt.Remove(rel); err != nil {
			return plumbing.ZeroHash, fmt.Errorf("removing %s: %w", rel, err)
		}
	}
	for _, rel := range t.adds {
		if _, err := t.wt.Add(rel); err != nil {
			return plumbing.ZeroHash, fmt.Errorf("staging %s: %w", rel, err)
		}
	}
	if hook := t.s.beforeCommit; hook != nil {
		if err := hook(msg); err != nil {
			return plumbing.ZeroHash, fmt.Errorf("committing: %w", err)
		}
	}
	sig := t.s.signature()
	hash, err := t.wt.Commit(msg, &git.CommitOptions{Author: sig, Committer: sig})
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("committing: %w", err)
	}
	return hash, nil
}

// abort resets the index to HEAD and restores every touched path from the
// HEAD tree, deleting paths HEAD does not have.
func (t *txn) abort() {
	if err := t.restore(); err != nil {
		t.s.logger.Error("restoring working tree failed", "paths", t.touched, "error", err)
	}
}

func (t *txn) restore() error {
	head, err := t.repo.Head()
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		for _, rel := range t.touched {
			if err := removeIfExists(t.s.abs(rel)); err != nil {
				return err
			}
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading HEAD: %w", err)
	}
	if err := t.wt.Reset(&git.ResetOptions{Commit: head.Hash(), Mode: git.MixedReset}); err != nil {
		return fmt.Errorf("resetting index: %w", err)
	}
	commit, err := t.repo.CommitObject(head.Hash())
	if err != nil {
		return fmt.Errorf("loading HEAD commit: %w", err)
	}
	tree, err := commit.Tree()
	if err != nil {
		return fmt.Errorf("loading HEAD tree: %w", err)
	}

	var errs []error
	for _, rel := range t.touched {
		f, err := tree.File(rel)
		if errors.Is(err, object.ErrFileNotFound) {
			errs = append(errs, removeIfExists(t.s.abs(rel)))
			continue
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("reading %s at HEAD: %w", rel, err))
			continue
		}
		content, err := f.Contents()
		if err != nil {
			errs = append(errs, fmt.Errorf("reading %s at HEAD: %w", rel, err))
			continue
		}
		errs = append(errs, writeFileAtomic(t.s.abs(rel), []byte(content)))
	}
	return errors.Join(errs...)
}

func (s *GitStore) signature() *object.Signature {
	return &object.Signature{Name: s.authorName, Email: s.authorEmail, When: s.clock.Now()}
}

func removeIfExists(p string) error {
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// writeFileAtomic writes data to a temp file in the target directory and
// renames it into place.
func writeFileAtomic(p string, data []byte) error {
	dir := filepath.Dir(p)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(p)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("setting permissions: %w", err)
	}
	if err := os.Rename(tmpPath, p); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
