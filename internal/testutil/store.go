package testutil

import (
	"testing"

	"abook/internal/abook"
	"abook/internal/normalize"
	"abook/internal/store"
)

// NewTestStore creates an initialized git-backed store in a temporary
// directory, driven by clock and a sequential id generator.
func NewTestStore(t *testing.T, clock abook.Clock) *store.GitStore {
	t.Helper()

	s := store.NewGitStore(
		store.Config{Root: t.TempDir(), AuthorName: "Test", AuthorEmail: "test@example.com"},
		normalize.New("US"),
		clock,
		NewStubIDGenerator(),
		abook.NewNopLogger(),
	)
	if err := s.Init(); err != nil {
		t.Fatalf("initializing store: %v", err)
	}
	return s
}
