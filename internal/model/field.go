package model

import (
	"fmt"
	"slices"
	"strings"
)

// Field names a logical, independently updatable part of a Contact.
// The set is closed: ParseField rejects anything else.
type Field string

const (
	FieldDisplayName  Field = "display_name"
	FieldName         Field = "name"
	FieldEmails       Field = "emails"
	FieldPhones       Field = "phones"
	FieldAddresses    Field = "addresses"
	FieldOrganization Field = "organization"
	FieldBirthday     Field = "birthday"
	FieldAnniversary  Field = "anniversary"
	FieldURLs         Field = "urls"
	FieldNote         Field = "note"
	FieldCategories   Field = "categories"
	FieldPhoto        Field = "photo"
)

// Fields lists every Field in canonical order.
var Fields = []Field{
	FieldDisplayName,
	FieldName,
	FieldEmails,
	FieldPhones,
	FieldAddresses,
	FieldOrganization,
	FieldBirthday,
	FieldAnniversary,
	FieldURLs,
	FieldNote,
	FieldCategories,
	FieldPhoto,
}

var fieldAliases = map[string]Field{
	"fullname": FieldDisplayName,
	"fn":       FieldDisplayName,
	"notes":    FieldNote,
	"email":    FieldEmails,
	"phone":    FieldPhones,
	"address":  FieldAddresses,
	"org":      FieldOrganization,
	"url":      FieldURLs,
	"category": FieldCategories,
}

// ParseField resolves a field name (case-insensitive, a few aliases accepted).
func ParseField(s string) (Field, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.ReplaceAll(key, "-", "_")
	if slices.Contains(Fields, Field(key)) {
		return Field(key), nil
	}
	if f, ok := fieldAliases[key]; ok {
		return f, nil
	}
	return "", &Error{Kind: KindArgument, Op: "parse field", Msg: fmt.Sprintf("unknown field %q", s)}
}

// CopyField overwrites field f of dst with a copy of the same field from src.
func CopyField(dst, src *Contact, f Field) {
	s := src.Clone()
	switch f {
	case FieldDisplayName:
		dst.DisplayName = s.DisplayName
	case FieldName:
		dst.Name = s.Name
	case FieldEmails:
		dst.Emails = s.Emails
	case FieldPhones:
		dst.Phones = s.Phones
	case FieldAddresses:
		dst.Addresses = s.Addresses
	case FieldOrganization:
		dst.Organization = s.Organization
	case FieldBirthday:
		dst.Birthday = s.Birthday
	case FieldAnniversary:
		dst.Anniversary = s.Anniversary
	case FieldURLs:
		dst.URLs = s.URLs
	case FieldNote:
		dst.Note = s.Note
	case FieldCategories:
		dst.Categories = s.Categories
	case FieldPhoto:
		dst.Photo = s.Photo
	}
}

// HasField reports whether field f of c carries a value.
func HasField(c *Contact, f Field) bool {
	switch f {
	case FieldDisplayName:
		return c.DisplayName != ""
	case FieldName:
		return !c.Name.IsZero()
	case FieldEmails:
		return len(c.Emails) > 0
	case FieldPhones:
		return len(c.Phones) > 0
	case FieldAddresses:
		return len(c.Addresses) > 0
	case FieldOrganization:
		return c.Organization != nil
	case FieldBirthday:
		return c.Birthday != ""
	case FieldAnniversary:
		return c.Anniversary != ""
	case FieldURLs:
		return len(c.URLs) > 0
	case FieldNote:
		return c.Note != ""
	case FieldCategories:
		return len(c.Categories) > 0
	case FieldPhoto:
		return c.Photo != ""
	}
	return false
}
