package provider

import (
	"abook/internal/abook"
)

// NewProviderFromEntry creates the adapter for a registry entry.
func NewProviderFromEntry(e *Entry) (abook.Provider, error) {
	if err := validate(*e); err != nil {
		return nil, err
	}
	return NewLocalProvider(e.Name, e.Path)
}
