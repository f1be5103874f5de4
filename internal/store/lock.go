package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"abook/internal/model"
)

// lockInfo is the content of the lock file. It identifies the holder.
type lockInfo struct {
	PID        int       `json:"pid"`
	Host       string    `json:"host"`
	Operation  string    `json:"operation"`
	AcquiredAt time.Time `json:"acquired_at"`
}

// lock takes the store-wide mutation lock and returns its release function.
// A lock older than the staleness threshold is taken over; a younger one
// fails with a StoreLocked error. There is no waiting or retrying.
func (s *GitStore) lock(op string) (func(), error) {
	p := filepath.Join(s.root, lockFile)

	for attempt := 0; attempt < 2; attempt++ {
		err := s.createLock(p, op)
		if err == nil {
			return func() { s.unlock(p) }, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, model.StoreError(op, "creating lock", err)
		}

		holder, age, err := s.inspectLock(p)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, model.StoreError(op, "reading lock", err)
		}
		if age <= s.staleAfter {
			return nil, &model.Error{
				Kind: model.KindStoreLocked,
				Op:   op,
				Msg:  fmt.Sprintf("%s by pid %d on %s since %s", holder.Operation, holder.PID, holder.Host, holder.AcquiredAt.Format(time.RFC3339)),
			}
		}

		s.logger.Warn("removing stale lock", "operation", holder.Operation, "pid", holder.PID, "host", holder.Host, "age", age.String())
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, model.StoreError(op, "removing stale lock", err)
		}
	}
	return nil, &model.Error{Kind: model.KindStoreLocked, Op: op, Msg: "lock is contended"}
}

func (s *GitStore) createLock(p, op string) error {
	f, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	host, _ := os.Hostname()
	info := lockInfo{PID: os.Getpid(), Host: host, Operation: op, AcquiredAt: s.clock.Now().UTC()}
	if err := json.NewEncoder(f).Encode(info); err != nil {
		f.Close()
		os.Remove(p)
		return fmt.Errorf("writing lock: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(p)
		return fmt.Errorf("closing lock: %w", err)
	}
	return nil
}

// inspectLock returns the holder and age of an existing lock. An unreadable
// lock is aged by its modification time.
func (s *GitStore) inspectLock(p string) (lockInfo, time.Duration, error) {
	var info lockInfo
	data, err := os.ReadFile(p)
	if err != nil {
		return info, 0, err
	}
	if err := json.Unmarshal(data, &info); err != nil || info.AcquiredAt.IsZero() {
		st, err := os.Stat(p)
		if err != nil {
			return info, 0, err
		}
		info = lockInfo{Operation: "unknown", AcquiredAt: st.ModTime()}
	}
	return info, s.clock.Now().Sub(info.AcquiredAt), nil
}

func (s *GitStore) unlock(p string) {
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Error("releasing lock failed", "path", p, "error", err)
	}
}
