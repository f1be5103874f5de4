// Package provider holds the external address book adapters and the
// registry of configured providers kept in the store's metadata area.
package provider

import (
	"bytes"
	"fmt"
	"sort"
	"time"

	"github.com/BurntSushi/toml"
)

// RegistryFile is the metadata file holding the provider registry.
const RegistryFile = "providers.toml"

// Provider types. Only TypeLocal has an adapter.
const (
	TypeLocal   = "local"
	TypeGoogle  = "google"
	TypeCardDAV = "carddav"
	TypeICloud  = "icloud"
)

// Entry is one configured provider.
type Entry struct {
	Name     string     `toml:"name"`
	Type     string     `toml:"type"`
	Path     string     `toml:"path,omitempty"`
	LastSync *time.Time `toml:"last_sync,omitempty"`
}

// Since returns the last sync time, zero if the provider never synced.
func (e *Entry) Since() time.Time {
	if e.LastSync == nil {
		return time.Time{}
	}
	return *e.LastSync
}

// MetaStore is the part of abook.Store the registry is persisted through.
type MetaStore interface {
	ReadMeta(name string) ([]byte, error)
	WriteMeta(name string, data []byte, message string) error
}

// Registry is the set of configured providers.
type Registry struct {
	Providers []*Entry `toml:"providers"`
}

// LoadRegistry reads the registry, returning an empty one if none was saved.
func LoadRegistry(store MetaStore) (*Registry, error) {
	data, err := store.ReadMeta(RegistryFile)
	if err != nil {
		return nil, fmt.Errorf("reading provider registry: %w", err)
	}
	reg := &Registry{}
	if data == nil {
		return reg, nil
	}
	if _, err := toml.Decode(string(data), reg); err != nil {
		return nil, fmt.Errorf("decoding provider registry: %w", err)
	}
	return reg, nil
}

// Save commits the registry to the store.
func (r *Registry) Save(store MetaStore) error {
	sort.Slice(r.Providers, func(i, j int) bool { return r.Providers[i].Name < r.Providers[j].Name })

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(r); err != nil {
		return fmt.Errorf("encoding provider registry: %w", err)
	}
	if err := store.WriteMeta(RegistryFile, buf.Bytes(), "Update provider registry"); err != nil {
		return fmt.Errorf("writing provider registry: %w", err)
	}
	return nil
}

// Get returns the named provider, or nil.
func (r *Registry) Get(name string) *Entry {
	for _, e := range r.Providers {
		if e.Name == name {
			return e
		}
	}
	return nil
}

// Add registers a provider after checking its configuration.
func (r *Registry) Add(e Entry) error {
	if e.Name == "" {
		return fmt.Errorf("provider name is required")
	}
	if r.Get(e.Name) != nil {
		return fmt.Errorf("provider %q already exists", e.Name)
	}
	if err := validate(e); err != nil {
		return err
	}
	r.Providers = append(r.Providers, &e)
	return nil
}

// SetLastSync records a completed sync.
func (r *Registry) SetLastSync(name string, t time.Time) error {
	e := r.Get(name)
	if e == nil {
		return fmt.Errorf("provider %q not found", name)
	}
	t = t.UTC()
	e.LastSync = &t
	return nil
}

func validate(e Entry) error {
	switch e.Type {
	case TypeLocal:
		if e.Path == "" {
			return fmt.Errorf("provider %q: path is required for local providers", e.Name)
		}
		return nil
	case TypeGoogle, TypeCardDAV, TypeICloud:
		return fmt.Errorf("provider %q: type %q is not supported", e.Name, e.Type)
	default:
		return fmt.Errorf("provider %q: unknown type %q", e.Name, e.Type)
	}
}
