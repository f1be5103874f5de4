package abook

import (
	"context"
	"fmt"
	"time"

	"abook/internal/model"
)

// SyncResult describes one synchronization with a provider.
type SyncResult struct {
	Provider string
	PreTag   string
	PostTag  string
	// Created and Updated count local changes pulled from the provider.
	Created int
	Updated int
	// Pushed, RemoteUpdated and RemoteDeleted count changes sent to it.
	Pushed        int
	RemoteUpdated int
	RemoteDeleted int
	// NewLastSync is the value to pass as lastSync next time.
	NewLastSync time.Time
}

// Sync exchanges changes with p. lastSync is the NewLastSync returned by the
// previous run (zero for the first one); the caller persists the new value.
//
// Pull: a remote record linked to a local one replaces it when it is newer;
// an unknown remote record is created locally and linked. Push: active local
// records without a link are created remotely; linked records changed since
// lastSync are sent as updates, or as deletes when they were archived.
func (s *Service) Sync(ctx context.Context, p Provider, lastSync time.Time) (*SyncResult, error) {
	name := p.Name()
	started := s.clock.Now()
	res := &SyncResult{Provider: name, NewLastSync: started}

	stamp := TagTime(started)
	pre, err := s.store.Checkpoint(fmt.Sprintf("pre-sync-%s-%s", name, stamp))
	if err != nil {
		return nil, fmt.Errorf("tagging before sync: %w", err)
	}
	res.PreTag = pre
	s.logger.Info("sync started", "provider", name, "since", lastSync)

	remote, err := p.Fetch(ctx, lastSync)
	if err != nil {
		return res, fmt.Errorf("fetching from %s: %w", name, err)
	}

	local, err := s.store.List(true)
	if err != nil {
		return res, fmt.Errorf("listing contacts: %w", err)
	}
	linked := make(map[string]*model.Contact)
	for _, c := range local {
		if rid, ok := c.Metadata.ProviderIDs[name]; ok {
			linked[rid] = c
		}
	}

	pulled := make(map[string]bool)
	for _, rc := range remote {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if l, ok := linked[rc.RemoteID]; ok {
			if l.Metadata.Archived || !rc.Contact.Metadata.Modified.After(l.Metadata.Modified) {
				continue
			}
			updated, err := s.store.Update(l.ID, model.PatchFromContact(rc.Contact))
			if err != nil {
				return res, fmt.Errorf("updating %s from %s: %w", l.ID, name, err)
			}
			s.indexContact(updated)
			pulled[l.ID] = true
			res.Updated++
			continue
		}

		c := rc.Contact.Clone()
		c.ID = ""
		c.Metadata.ProviderIDs = map[string]string{name: rc.RemoteID}
		c.Metadata.Source = "sync:" + name
		created, err := s.store.Create(c)
		if err != nil {
			return res, fmt.Errorf("creating contact from %s: %w", name, err)
		}
		s.indexContact(created)
		pulled[created.ID] = true
		res.Created++
	}

	for _, c := range local {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if pulled[c.ID] {
			continue
		}
		rid, isLinked := c.Metadata.ProviderIDs[name]
		switch {
		case !isLinked && !c.Metadata.Archived:
			rid, err := p.Push(ctx, c)
			if err != nil {
				return res, fmt.Errorf("pushing %s to %s: %w", c.ID, name, err)
			}
			if err := s.store.LinkProvider(c.ID, name, rid); err != nil {
				return res, fmt.Errorf("linking %s: %w", c.ID, err)
			}
			res.Pushed++
		case isLinked && c.Metadata.Modified.After(lastSync):
			if c.Metadata.Archived {
				if err := p.Delete(ctx, rid); err != nil {
					return res, fmt.Errorf("deleting %s from %s: %w", rid, name, err)
				}
				res.RemoteDeleted++
				continue
			}
			if err := p.Update(ctx, rid, c); err != nil {
				return res, fmt.Errorf("updating %s on %s: %w", rid, name, err)
			}
			res.RemoteUpdated++
		}
	}

	post, err := s.store.Checkpoint(fmt.Sprintf("post-sync-%s-%s", name, TagTime(s.clock.Now())))
	if err != nil {
		return res, fmt.Errorf("tagging after sync: %w", err)
	}
	res.PostTag = post

	s.logger.Info("sync complete", "provider", name,
		"created", res.Created, "updated", res.Updated,
		"pushed", res.Pushed, "remote_updated", res.RemoteUpdated, "remote_deleted", res.RemoteDeleted)
	return res, nil
}
