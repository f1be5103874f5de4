package index

import (
	"errors"
	"testing"

	"abook/internal/model"
)

func newTestIndex(t *testing.T) *SQLiteIndex {
	t.Helper()

	x, err := NewSQLiteIndex(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteIndex() error = %v", err)
	}
	t.Cleanup(func() { x.Close() })
	return x
}

func contact(id, name string, emails ...string) *model.Contact {
	c := &model.Contact{ID: id, DisplayName: name}
	for _, e := range emails {
		c.Emails = append(c.Emails, model.Email{Value: e})
	}
	return c
}

func hitIDs(t *testing.T, x *SQLiteIndex, query string, includeArchived bool) []string {
	t.Helper()
	hits, err := x.Search(query, 0, includeArchived)
	if err != nil {
		t.Fatalf("Search(%q) error = %v", query, err)
	}
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.ID
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestSQLiteIndex_Search(t *testing.T) {
	x := newTestIndex(t)

	jane := contact("id-1", "Jane Smith", "jane@example.com")
	jane.Organization = &model.Organization{Name: "Acme"}
	john := contact("id-2", "John Smyth", "john@other.example")
	bob := contact("id-3", "Bob Jones")
	bob.Phones = []model.Phone{{Value: "+15550001111", Original: "555-000-1111"}}
	old := contact("id-4", "Jane Archived")
	old.Metadata.Archived = true

	if err := x.Rebuild([]*model.Contact{jane, john, bob, old}); err != nil {
		t.Fatalf("Rebuild() error = %v", err)
	}

	tests := []struct {
		name            string
		query           string
		includeArchived bool
		want            []string
	}{
		{name: "substring of name", query: "jane", want: []string{"id-1"}},
		{name: "case insensitive", query: "JANE", want: []string{"id-1"}},
		{name: "archived included on request", query: "jane", includeArchived: true, want: []string{"id-4", "id-1"}},
		{name: "email domain", query: "other.example", want: []string{"id-2"}},
		{name: "organization", query: "acme", want: []string{"id-1"}},
		{name: "phone digits", query: "555-000", want: []string{"id-3"}},
		{name: "typo matches by similarity", query: "smth", want: []string{"id-1", "id-2"}},
		{name: "exact token outranks fuzzy", query: "smyth", want: []string{"id-2", "id-1"}},
		{name: "every token must match", query: "jane jones", want: []string{}},
		{name: "no match", query: "zzzz", want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := hitIDs(t, x, tt.query, tt.includeArchived)
			if !equal(got, tt.want) {
				t.Errorf("Search(%q) = %v, want %v", tt.query, got, tt.want)
			}
		})
	}
}

func TestSQLiteIndex_SearchHitFields(t *testing.T) {
	x := newTestIndex(t)
	if err := x.Upsert(contact("id-1", "Jane Smith", "jane@example.com", "j@home.example")); err != nil {
		t.Fatal(err)
	}

	hits, err := x.Search("jane", 10, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 {
		t.Fatalf("got %d hits", len(hits))
	}
	h := hits[0]
	if h.DisplayName != "Jane Smith" || len(h.Emails) != 2 || h.Emails[1] != "j@home.example" || h.Score != 1 {
		t.Errorf("hit = %+v", h)
	}
}

func TestSQLiteIndex_UpsertDelete(t *testing.T) {
	x := newTestIndex(t)
	c := contact("id-1", "Jane Smith")

	if err := x.Upsert(c); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	c.DisplayName = "Jane Doe"
	if err := x.Upsert(c); err != nil {
		t.Fatalf("second Upsert() error = %v", err)
	}
	if got := hitIDs(t, x, "smith", false); len(got) != 0 {
		t.Errorf("stale row still matches: %v", got)
	}
	if got := hitIDs(t, x, "doe", false); !equal(got, []string{"id-1"}) {
		t.Errorf("Search(doe) = %v", got)
	}

	if err := x.Delete("id-1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := x.Delete("never-indexed"); err != nil {
		t.Errorf("Delete() unknown id error = %v", err)
	}
	if got := hitIDs(t, x, "doe", false); len(got) != 0 {
		t.Errorf("deleted row still matches: %v", got)
	}
}

func TestSQLiteIndex_RebuildReplaces(t *testing.T) {
	x := newTestIndex(t)
	if err := x.Rebuild([]*model.Contact{contact("id-1", "Alice")}); err != nil {
		t.Fatal(err)
	}
	if err := x.Rebuild([]*model.Contact{contact("id-2", "Bob")}); err != nil {
		t.Fatal(err)
	}
	if got := hitIDs(t, x, "alice", true); len(got) != 0 {
		t.Errorf("Rebuild() kept old rows: %v", got)
	}
}

func TestSQLiteIndex_SearchLimitAndEmptyQuery(t *testing.T) {
	x := newTestIndex(t)
	var all []*model.Contact
	for _, id := range []string{"a", "b", "c"} {
		all = append(all, contact(id, "Sam "+id))
	}
	if err := x.Rebuild(all); err != nil {
		t.Fatal(err)
	}

	hits, err := x.Search("sam", 2, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 2 || hits[0].ID != "a" || hits[1].ID != "b" {
		t.Errorf("Search() with limit = %+v", hits)
	}

	if _, err := x.Search("   ", 10, false); !errors.Is(err, model.ErrArgument) {
		t.Errorf("Search() empty query error = %v, want ErrArgument", err)
	}
}
