package provider

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"abook/internal/abook"
	"abook/internal/model"
	"abook/internal/vcard"
)

const localExt = ".vcf"

// LocalProvider syncs with a directory of vCard files, one record per file.
// The remote id is the file name without its extension.
type LocalProvider struct {
	name string
	dir  string
}

// NewLocalProvider creates a local provider, creating dir if needed.
func NewLocalProvider(name, dir string) (*LocalProvider, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating provider directory: %w", err)
	}
	return &LocalProvider{name: name, dir: dir}, nil
}

func (p *LocalProvider) Name() string { return p.name }

// Fetch decodes every card changed after since. A card's modification time
// is its X-ABOOK-MODIFIED value, or the file's when the card has none.
func (p *LocalProvider) Fetch(ctx context.Context, since time.Time) ([]*abook.RemoteContact, error) {
	entries, err := os.ReadDir(p.dir)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", p.dir, err)
	}

	var out []*abook.RemoteContact
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !entry.Type().IsRegular() || !strings.EqualFold(filepath.Ext(entry.Name()), localExt) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", entry.Name(), err)
		}
		data, err := os.ReadFile(filepath.Join(p.dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", entry.Name(), err)
		}
		c, err := vcard.Decode(string(data))
		if err != nil {
			return nil, fmt.Errorf("decoding %s: %w", entry.Name(), err)
		}
		if c.Metadata.Modified.IsZero() {
			c.Metadata.Modified = info.ModTime().UTC()
		}
		if !since.IsZero() && !c.Metadata.Modified.After(since) {
			continue
		}
		out = append(out, &abook.RemoteContact{
			RemoteID: strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name())),
			Contact:  c,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RemoteID < out[j].RemoteID })
	return out, nil
}

// Push writes c to a new file named after its id, or a fresh UUID when that
// name is taken.
func (p *LocalProvider) Push(ctx context.Context, c *model.Contact) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	rid := c.ID
	if !validRemoteID(rid) || p.exists(rid) {
		rid = uuid.NewString()
	}
	if err := p.write(rid, c); err != nil {
		return "", err
	}
	return rid, nil
}

// Update overwrites an existing file.
func (p *LocalProvider) Update(ctx context.Context, remoteID string, c *model.Contact) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !validRemoteID(remoteID) || !p.exists(remoteID) {
		return model.NotFound("provider update", remoteID)
	}
	return p.write(remoteID, c)
}

// Delete removes a file.
func (p *LocalProvider) Delete(ctx context.Context, remoteID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !validRemoteID(remoteID) {
		return model.NotFound("provider delete", remoteID)
	}
	err := os.Remove(p.path(remoteID))
	if errors.Is(err, os.ErrNotExist) {
		return model.NotFound("provider delete", remoteID)
	}
	if err != nil {
		return fmt.Errorf("removing %s: %w", remoteID, err)
	}
	return nil
}

func (p *LocalProvider) path(rid string) string {
	return filepath.Join(p.dir, rid+localExt)
}

func (p *LocalProvider) exists(rid string) bool {
	_, err := os.Stat(p.path(rid))
	return err == nil
}

// write stores c without its provider links, which are local bookkeeping.
func (p *LocalProvider) write(rid string, c *model.Contact) error {
	out := c.Clone()
	out.Metadata.ProviderIDs = nil

	tmp, err := os.CreateTemp(p.dir, ".tmp-"+rid+"-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.WriteString(vcard.Encode(out)); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing %s: %w", rid, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, p.path(rid)); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming into place: %w", err)
	}
	return nil
}

func validRemoteID(rid string) bool {
	return rid != "" && !strings.ContainsAny(rid, `/\`) && !strings.HasPrefix(rid, ".")
}

var _ abook.Provider = (*LocalProvider)(nil)
