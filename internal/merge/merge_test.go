package merge

import (
	"errors"
	"reflect"
	"slices"
	"testing"
	"time"

	"abook/internal/model"
)

var (
	t0  = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
)

func record(id string, modified time.Time) *model.Contact {
	return &model.Contact{
		ID: id,
		Metadata: model.Metadata{
			Created:     modified,
			Modified:    modified,
			ProviderIDs: map[string]string{},
		},
	}
}

func TestMerge_RequiresTwoRecords(t *testing.T) {
	for _, records := range [][]*model.Contact{nil, {record("a", t0)}} {
		if _, err := Merge(records, Union, nil, now); !errors.Is(err, model.ErrArgument) {
			t.Errorf("Merge(%d records) error = %v, want argument error", len(records), err)
		}
	}
}

func TestMerge_UnionThreeRecords(t *testing.T) {
	a := record("a", t0.Add(48*time.Hour))
	a.DisplayName = "Jane"
	a.Emails = []model.Email{{Value: "jane@x.com", Primary: true}}
	a.Phones = []model.Phone{{Value: "+15551234567"}}
	a.Categories = []string{"friends"}
	a.Note = "met at conference"
	a.Metadata.ProviderIDs = map[string]string{"google": "g-a"}

	b := record("b", t0)
	b.DisplayName = "Jane Smith"
	b.Name = model.StructuredName{Given: "Jane", Family: "Smith"}
	b.Emails = []model.Email{{Value: "JANE@x.com"}, {Value: "jane@work.com", Type: "work"}}
	b.Phones = []model.Phone{{Value: "+15551234567"}, {Value: "+15559876543"}}
	b.Organization = &model.Organization{Name: "Acme"}
	b.Categories = []string{"work", "friends"}
	b.Note = "met at conference"
	b.Metadata.ProviderIDs = map[string]string{"google": "g-b", "icloud": "i-b"}

	c := record("c", t0.Add(24*time.Hour))
	c.Emails = []model.Email{{Value: "jane@work.com"}, {Value: "js@home.org"}}
	c.Birthday = "1990-04-01"
	c.Organization = &model.Organization{Name: "Other Corp"}
	c.Note = "prefers email"

	res, err := Merge([]*model.Contact{a, b, c}, Union, nil, now)
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	got := res.Contact

	if got.ID != "a" {
		t.Errorf("ID = %q, want primary id", got.ID)
	}
	wantEmails := []string{"jane@x.com", "jane@work.com", "js@home.org"}
	var emails []string
	for _, e := range got.Emails {
		emails = append(emails, e.Value)
	}
	if !slices.Equal(emails, wantEmails) {
		t.Errorf("emails = %v, want %v", emails, wantEmails)
	}
	if len(got.Phones) != 2 {
		t.Errorf("phones = %+v, want 2", got.Phones)
	}
	if got.DisplayName != "Jane Smith" || got.Name.Family != "Smith" {
		t.Errorf("name = %q %+v, want the longer display name and its parts", got.DisplayName, got.Name)
	}
	if got.Organization == nil || got.Organization.Name != "Acme" {
		t.Errorf("Organization = %+v, want first one seen", got.Organization)
	}
	if got.Birthday != "1990-04-01" {
		t.Errorf("Birthday = %q", got.Birthday)
	}
	if !slices.Equal(got.Categories, []string{"friends", "work"}) {
		t.Errorf("Categories = %v", got.Categories)
	}
	if want := "met at conference" + NoteSeparator + "prefers email"; got.Note != want {
		t.Errorf("Note = %q, want %q", got.Note, want)
	}
	if !got.Metadata.Created.Equal(t0) {
		t.Errorf("Created = %v, want earliest %v", got.Metadata.Created, t0)
	}
	if !got.Metadata.Modified.Equal(now) {
		t.Errorf("Modified = %v, want now", got.Metadata.Modified)
	}
	wantIDs := map[string]string{"google": "g-a", "icloud": "i-b"}
	if !reflect.DeepEqual(got.Metadata.ProviderIDs, wantIDs) {
		t.Errorf("ProviderIDs = %v, want %v", got.Metadata.ProviderIDs, wantIDs)
	}
	if !slices.Equal(res.SourceIDs, []string{"a", "b", "c"}) || !slices.Equal(res.Secondaries(), []string{"b", "c"}) {
		t.Errorf("SourceIDs = %v", res.SourceIDs)
	}
	if !slices.Contains(res.FieldsFromEach["b"], model.FieldDisplayName) {
		t.Errorf("FieldsFromEach[b] = %v, want display_name", res.FieldsFromEach["b"])
	}
	if slices.Contains(res.FieldsFromEach["a"], model.FieldDisplayName) {
		t.Errorf("FieldsFromEach[a] = %v, display_name was replaced", res.FieldsFromEach["a"])
	}

	// Inputs must not be modified.
	if len(a.Emails) != 1 || a.DisplayName != "Jane" {
		t.Errorf("primary input mutated: %+v", a)
	}
}

func TestMerge_UnionNameFollowsDisplayName(t *testing.T) {
	a := record("a", t0)
	a.DisplayName = "Bob Jones"
	a.Name = model.StructuredName{Given: "Bob", Family: "Jones"}
	b := record("b", t0)
	b.DisplayName = "Robert Smith-Jones"

	res, err := Merge([]*model.Contact{a, b}, Union, nil, now)
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	got := res.Contact
	if got.DisplayName != "Robert Smith-Jones" {
		t.Errorf("DisplayName = %q, want the longer one", got.DisplayName)
	}
	if !got.Name.IsZero() {
		t.Errorf("Name = %+v, want the empty name that came with the display name", got.Name)
	}
	if slices.Contains(res.FieldsFromEach["a"], model.FieldName) {
		t.Errorf("FieldsFromEach[a] = %v, name was replaced", res.FieldsFromEach["a"])
	}
	if !slices.Equal(res.FieldsFromEach["b"], []model.Field{model.FieldDisplayName}) {
		t.Errorf("FieldsFromEach[b] = %v, want [display_name]", res.FieldsFromEach["b"])
	}
}

func TestMerge_KeepNewestAndOldest(t *testing.T) {
	a := record("a", t0.Add(time.Hour))
	a.DisplayName = "Middle"
	b := record("b", t0.Add(2*time.Hour))
	b.DisplayName = "Newest"
	b.Note = "newest note"
	b.Metadata.Archived = true
	c := record("c", t0)
	c.DisplayName = "Oldest"

	tests := []struct {
		strategy Strategy
		wantName string
		wantFrom string
	}{
		{strategy: KeepNewest, wantName: "Newest", wantFrom: "b"},
		{strategy: KeepOldest, wantName: "Oldest", wantFrom: "c"},
	}

	for _, tt := range tests {
		t.Run(string(tt.strategy), func(t *testing.T) {
			res, err := Merge([]*model.Contact{a, b, c}, tt.strategy, nil, now)
			if err != nil {
				t.Fatalf("Merge() error = %v", err)
			}
			if res.Contact.ID != "a" {
				t.Errorf("ID = %q, want a", res.Contact.ID)
			}
			if res.Contact.DisplayName != tt.wantName {
				t.Errorf("DisplayName = %q, want %q", res.Contact.DisplayName, tt.wantName)
			}
			if res.Contact.Metadata.Archived {
				t.Error("merged contact must not be archived")
			}
			if !slices.Contains(res.FieldsFromEach[tt.wantFrom], model.FieldDisplayName) {
				t.Errorf("FieldsFromEach = %v", res.FieldsFromEach)
			}
		})
	}
}

func TestMerge_Overrides(t *testing.T) {
	a := record("a", t0)
	a.DisplayName = "Primary Name That Is Long"
	a.Note = "primary note"
	b := record("b", t0)
	b.DisplayName = "B"
	b.Note = "secondary note"

	res, err := Merge([]*model.Contact{a, b}, Union, map[model.Field]string{
		model.FieldDisplayName: "b",
		model.FieldNote:        "b",
	}, now)
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	if res.Contact.DisplayName != "B" || res.Contact.Note != "secondary note" {
		t.Errorf("overrides not applied: %+v", res.Contact)
	}
	if want := []model.Field{model.FieldDisplayName, model.FieldNote}; !slices.Equal(res.FieldsFromEach["b"], want) {
		t.Errorf("FieldsFromEach[b] = %v, want %v", res.FieldsFromEach["b"], want)
	}
	if slices.Contains(res.FieldsFromEach["a"], model.FieldNote) {
		t.Errorf("FieldsFromEach[a] = %v, note was overridden", res.FieldsFromEach["a"])
	}
}

func TestMerge_InvalidArguments(t *testing.T) {
	a, b := record("a", t0), record("b", t0)

	tests := []struct {
		name      string
		records   []*model.Contact
		strategy  Strategy
		overrides map[model.Field]string
	}{
		{name: "unknown strategy", records: []*model.Contact{a, b}, strategy: "random"},
		{name: "override names outsider", records: []*model.Contact{a, b}, strategy: Union, overrides: map[model.Field]string{model.FieldNote: "z"}},
		{name: "override names unknown field", records: []*model.Contact{a, b}, strategy: Union, overrides: map[model.Field]string{"shoe_size": "a"}},
		{name: "same record twice", records: []*model.Contact{a, a}, strategy: Union},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Merge(tt.records, tt.strategy, tt.overrides, now); !errors.Is(err, model.ErrArgument) {
				t.Errorf("Merge() error = %v, want argument error", err)
			}
		})
	}
}

func TestParseStrategy(t *testing.T) {
	for in, want := range map[string]Strategy{"": Union, "UNION": Union, "keep-newest": KeepNewest, " keep-oldest ": KeepOldest} {
		got, err := ParseStrategy(in)
		if err != nil || got != want {
			t.Errorf("ParseStrategy(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseStrategy("best"); !errors.Is(err, model.ErrArgument) {
		t.Errorf("ParseStrategy(best) error = %v", err)
	}
}
