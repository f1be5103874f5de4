package store

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"

	"abook/internal/abook"
	"abook/internal/model"
)

func metaPath(name string) (string, error) {
	if name == "" || strings.ContainsAny(name, "/\\") || strings.HasPrefix(name, ".") {
		return "", model.ArgumentError("meta", fmt.Sprintf("invalid metadata file name %q", name))
	}
	if name == mergeLogFile {
		return "", model.ArgumentError("meta", "the merge log is append-only")
	}
	return path.Join(metaDir, name), nil
}

// ReadMeta returns the content of meta/<name>, or nil if it does not exist.
func (s *GitStore) ReadMeta(name string) ([]byte, error) {
	rel, err := metaPath(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.abs(rel))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, model.StoreError("read meta", "reading "+rel, err)
	}
	return data, nil
}

// WriteMeta replaces meta/<name> and commits it. Writing identical content
// makes no commit.
func (s *GitStore) WriteMeta(name string, data []byte, message string) error {
	rel, err := metaPath(name)
	if err != nil {
		return err
	}
	if message == "" {
		message = "Update " + rel
	}
	unlock, err := s.lock("write meta")
	if err != nil {
		return err
	}
	defer unlock()

	current, err := os.ReadFile(s.abs(rel))
	if err == nil && bytes.Equal(current, data) {
		return nil
	}

	tx, err := s.begin()
	if err != nil {
		return err
	}
	if err := tx.writeBytes(rel, data); err != nil {
		tx.abort()
		return model.StoreError("write meta", "writing "+rel, err)
	}
	if _, err := tx.commit(message); err != nil {
		return model.StoreError("write meta", "committing", err)
	}
	return nil
}

// appendMergeLog adds one line to the merge log. The log is not versioned:
// rollbacks leave it alone so it can be cross-checked against history.
func (s *GitStore) appendMergeLog(entry abook.MergeLogEntry) error {
	line, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(s.abs(path.Join(metaDir, mergeLogFile)), os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// MergeLog returns the merge log entries, oldest first.
func (s *GitStore) MergeLog() ([]*abook.MergeLogEntry, error) {
	f, err := os.Open(s.abs(path.Join(metaDir, mergeLogFile)))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, model.StoreError("merge log", "opening", err)
	}
	defer f.Close()

	var out []*abook.MergeLogEntry
	sc := bufio.NewScanner(f)
	for n := 1; sc.Scan(); n++ {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var e abook.MergeLogEntry
		if err := json.Unmarshal(line, &e); err != nil {
			return nil, model.StoreError("merge log", fmt.Sprintf("line %d", n), err)
		}
		out = append(out, &e)
	}
	if err := sc.Err(); err != nil {
		return nil, model.StoreError("merge log", "reading", err)
	}
	return out, nil
}
