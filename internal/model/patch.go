package model

import "slices"

// Optional distinguishes a value that was explicitly provided (possibly empty)
// from one that was omitted.
type Optional[T any] struct {
	Value T
	Set   bool
}

// Some returns an Optional holding v.
func Some[T any](v T) Optional[T] {
	return Optional[T]{Value: v, Set: true}
}

// Patch is a partial update. Only fields whose Optional is Set are applied;
// a Set field with an empty value clears that field.
type Patch struct {
	DisplayName  Optional[string]
	Name         Optional[StructuredName]
	Emails       Optional[[]Email]
	Phones       Optional[[]Phone]
	Addresses    Optional[[]Address]
	Organization Optional[*Organization]
	Birthday     Optional[string]
	Anniversary  Optional[string]
	URLs         Optional[[]string]
	Note         Optional[string]
	Categories   Optional[[]string]
	Photo        Optional[string]
}

// Fields returns the fields present in the patch, in canonical order.
func (p Patch) Fields() []Field {
	set := map[Field]bool{
		FieldDisplayName:  p.DisplayName.Set,
		FieldName:         p.Name.Set,
		FieldEmails:       p.Emails.Set,
		FieldPhones:       p.Phones.Set,
		FieldAddresses:    p.Addresses.Set,
		FieldOrganization: p.Organization.Set,
		FieldBirthday:     p.Birthday.Set,
		FieldAnniversary:  p.Anniversary.Set,
		FieldURLs:         p.URLs.Set,
		FieldNote:         p.Note.Set,
		FieldCategories:   p.Categories.Set,
		FieldPhoto:        p.Photo.Set,
	}
	var out []Field
	for _, f := range Fields {
		if set[f] {
			out = append(out, f)
		}
	}
	return out
}

// IsEmpty reports whether the patch carries no field at all.
func (p Patch) IsEmpty() bool {
	return len(p.Fields()) == 0
}

// Apply writes every set field of p into c and returns the applied fields.
func (p Patch) Apply(c *Contact) []Field {
	if p.DisplayName.Set {
		c.DisplayName = p.DisplayName.Value
	}
	if p.Name.Set {
		c.Name = p.Name.Value
	}
	if p.Emails.Set {
		c.Emails = slices.Clone(p.Emails.Value)
	}
	if p.Phones.Set {
		c.Phones = slices.Clone(p.Phones.Value)
	}
	if p.Addresses.Set {
		c.Addresses = slices.Clone(p.Addresses.Value)
	}
	if p.Organization.Set {
		if p.Organization.Value == nil {
			c.Organization = nil
		} else {
			org := *p.Organization.Value
			c.Organization = &org
		}
	}
	if p.Birthday.Set {
		c.Birthday = p.Birthday.Value
	}
	if p.Anniversary.Set {
		c.Anniversary = p.Anniversary.Value
	}
	if p.URLs.Set {
		c.URLs = slices.Clone(p.URLs.Value)
	}
	if p.Note.Set {
		c.Note = p.Note.Value
	}
	if p.Categories.Set {
		c.Categories = slices.Clone(p.Categories.Value)
	}
	if p.Photo.Set {
		c.Photo = p.Photo.Value
	}
	return p.Fields()
}

// PatchFromContact builds a patch that replaces every content field with c's.
func PatchFromContact(c *Contact) Patch {
	src := c.Clone()
	return Patch{
		DisplayName:  Some(src.DisplayName),
		Name:         Some(src.Name),
		Emails:       Some(src.Emails),
		Phones:       Some(src.Phones),
		Addresses:    Some(src.Addresses),
		Organization: Some(src.Organization),
		Birthday:     Some(src.Birthday),
		Anniversary:  Some(src.Anniversary),
		URLs:         Some(src.URLs),
		Note:         Some(src.Note),
		Categories:   Some(src.Categories),
		Photo:        Some(src.Photo),
	}
}
