// Package merge combines several contacts into one. It knows nothing about
// storage: the result is returned for the caller to persist.
package merge

import (
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"abook/internal/model"
)

// Strategy selects how field values are chosen across the merged records.
type Strategy string

const (
	// Union combines list fields and fills gaps from every record.
	Union Strategy = "union"
	// KeepNewest copies every field from the most recently modified record.
	KeepNewest Strategy = "keep-newest"
	// KeepOldest copies every field from the least recently modified record.
	KeepOldest Strategy = "keep-oldest"
)

// NoteSeparator joins distinct notes in a union merge.
const NoteSeparator = "\n\n---\n\n"

// ParseStrategy resolves a strategy name; "" means Union.
func ParseStrategy(s string) (Strategy, error) {
	switch st := Strategy(strings.ToLower(strings.TrimSpace(s))); st {
	case "":
		return Union, nil
	case Union, KeepNewest, KeepOldest:
		return st, nil
	}
	return "", model.ArgumentError("merge", fmt.Sprintf("unknown strategy %q", s))
}

// Result is a resolved, uncommitted merge.
type Result struct {
	Contact *model.Contact
	// SourceIDs lists the input ids, primary first.
	SourceIDs []string
	// FieldsFromEach records which source supplied each field of Contact.
	FieldsFromEach map[string][]model.Field
}

// Secondaries returns the ids of every source except the primary.
func (r *Result) Secondaries() []string {
	return slices.Clone(r.SourceIDs[1:])
}

// Merge resolves records into one contact. The first record is the primary:
// its id is kept whatever the strategy. overrides pins a field to the value of
// a specific source and is applied after the strategy.
func Merge(records []*model.Contact, strategy Strategy, overrides map[model.Field]string, now time.Time) (*Result, error) {
	if len(records) < 2 {
		return nil, model.ArgumentError("merge", fmt.Sprintf("need at least 2 contacts, got %d", len(records)))
	}
	byID := make(map[string]*model.Contact, len(records))
	ids := make([]string, 0, len(records))
	for _, r := range records {
		if r == nil {
			return nil, model.ArgumentError("merge", "nil contact")
		}
		if _, dup := byID[r.ID]; dup {
			return nil, model.ArgumentError("merge", fmt.Sprintf("contact %s given more than once", r.ID))
		}
		byID[r.ID] = r
		ids = append(ids, r.ID)
	}
	for f, src := range overrides {
		if !slices.Contains(model.Fields, f) {
			return nil, model.ArgumentError("merge", fmt.Sprintf("unknown field %q", f))
		}
		if _, ok := byID[src]; !ok {
			return nil, model.ArgumentError("merge", fmt.Sprintf("override for %s names %s, which is not being merged", f, src))
		}
	}

	p := newProvenance()
	var merged *model.Contact
	switch strategy {
	case Union, "":
		merged = union(records, p)
	case KeepNewest:
		merged = pick(records, p, func(a, b time.Time) bool { return a.After(b) })
	case KeepOldest:
		merged = pick(records, p, func(a, b time.Time) bool { return a.Before(b) })
	default:
		return nil, model.ArgumentError("merge", fmt.Sprintf("unknown strategy %q", strategy))
	}

	for _, f := range model.Fields {
		src, ok := overrides[f]
		if !ok {
			continue
		}
		model.CopyField(merged, byID[src], f)
		p.assign(src, f)
	}

	primary := records[0]
	merged.ID = primary.ID
	merged.Metadata.Modified = now
	merged.Metadata.Archived = false
	merged.Metadata.ProviderIDs = providerIDs(records)

	return &Result{Contact: merged, SourceIDs: ids, FieldsFromEach: p.result()}, nil
}

// union starts from the primary and folds every other record in, in order.
func union(records []*model.Contact, p *provenance) *model.Contact {
	primary := records[0]
	acc := primary.Clone()
	for _, f := range model.Fields {
		if model.HasField(acc, f) {
			p.add(primary.ID, f)
		}
	}

	var notes []string
	if acc.Note != "" {
		notes = append(notes, acc.Note)
	}

	for _, r := range records[1:] {
		for _, e := range r.Emails {
			if !slices.ContainsFunc(acc.Emails, func(x model.Email) bool { return strings.EqualFold(x.Value, e.Value) }) {
				acc.Emails = append(acc.Emails, e)
				p.add(r.ID, model.FieldEmails)
			}
		}
		for _, ph := range r.Phones {
			if !slices.ContainsFunc(acc.Phones, func(x model.Phone) bool { return x.Value == ph.Value }) {
				acc.Phones = append(acc.Phones, ph)
				p.add(r.ID, model.FieldPhones)
			}
		}
		for _, u := range r.URLs {
			if !slices.Contains(acc.URLs, u) {
				acc.URLs = append(acc.URLs, u)
				p.add(r.ID, model.FieldURLs)
			}
		}
		for _, a := range r.Addresses {
			if !slices.Contains(acc.Addresses, a) {
				acc.Addresses = append(acc.Addresses, a)
				p.add(r.ID, model.FieldAddresses)
			}
		}
		for _, c := range r.Categories {
			if !slices.Contains(acc.Categories, c) {
				acc.Categories = append(acc.Categories, c)
				p.add(r.ID, model.FieldCategories)
			}
		}

		// The structured name travels with its display name, even when empty.
		if utf8.RuneCountInString(r.DisplayName) > utf8.RuneCountInString(acc.DisplayName) {
			acc.DisplayName = r.DisplayName
			p.assign(r.ID, model.FieldDisplayName)
			acc.Name = r.Name
			if r.Name.IsZero() {
				p.drop(model.FieldName)
			} else {
				p.assign(r.ID, model.FieldName)
			}
		}

		fill := func(f model.Field, missing bool) {
			if missing && model.HasField(r, f) {
				model.CopyField(acc, r, f)
				p.assign(r.ID, f)
			}
		}
		fill(model.FieldOrganization, acc.Organization == nil)
		fill(model.FieldBirthday, acc.Birthday == "")
		fill(model.FieldAnniversary, acc.Anniversary == "")
		fill(model.FieldPhoto, acc.Photo == "")

		if r.Note != "" && !slices.Contains(notes, r.Note) {
			notes = append(notes, r.Note)
			p.add(r.ID, model.FieldNote)
		}

		if created := r.Metadata.Created; !created.IsZero() && (acc.Metadata.Created.IsZero() || created.Before(acc.Metadata.Created)) {
			acc.Metadata.Created = created
		}
	}
	acc.Note = strings.Join(notes, NoteSeparator)
	return acc
}

// pick copies the record whose Modified wins under better. Ties go to the
// earlier record in the input.
func pick(records []*model.Contact, p *provenance, better func(a, b time.Time) bool) *model.Contact {
	chosen := records[0]
	for _, r := range records[1:] {
		if better(r.Metadata.Modified, chosen.Metadata.Modified) {
			chosen = r
		}
	}
	out := chosen.Clone()
	for _, f := range model.Fields {
		if model.HasField(out, f) {
			p.add(chosen.ID, f)
		}
	}
	return out
}

// providerIDs unions the provider links of all records; the first record to
// name a provider wins and later conflicting ids are dropped.
func providerIDs(records []*model.Contact) map[string]string {
	out := make(map[string]string)
	for _, r := range records {
		for provider, remoteID := range r.Metadata.ProviderIDs {
			if _, ok := out[provider]; !ok {
				out[provider] = remoteID
			}
		}
	}
	return out
}

type provenance struct {
	fields map[string][]model.Field
}

func newProvenance() *provenance {
	return &provenance{fields: make(map[string][]model.Field)}
}

// add records that id contributed to f, alongside any other contributors.
func (p *provenance) add(id string, f model.Field) {
	if !slices.Contains(p.fields[id], f) {
		p.fields[id] = append(p.fields[id], f)
	}
}

// assign makes id the only source of f.
func (p *provenance) assign(id string, f model.Field) {
	p.drop(f)
	p.add(id, f)
}

// drop forgets every source of f.
func (p *provenance) drop(f model.Field) {
	for id, fields := range p.fields {
		p.fields[id] = slices.DeleteFunc(fields, func(x model.Field) bool { return x == f })
	}
}

// result returns the map with every field list in canonical order and
// sources that contributed nothing removed.
func (p *provenance) result() map[string][]model.Field {
	out := make(map[string][]model.Field, len(p.fields))
	for id, fields := range p.fields {
		if len(fields) == 0 {
			continue
		}
		sorted := make([]model.Field, 0, len(fields))
		for _, f := range model.Fields {
			if slices.Contains(fields, f) {
				sorted = append(sorted, f)
			}
		}
		out[id] = sorted
	}
	return out
}
