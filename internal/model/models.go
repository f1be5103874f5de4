package model

import (
	"slices"
	"strings"
	"time"
)

// Contact is a single address book record identified by a stable UUID.
// Values handed to callers are independent copies; see Clone.
type Contact struct {
	ID           string
	DisplayName  string
	Name         StructuredName
	Emails       []Email
	Phones       []Phone
	Addresses    []Address
	Organization *Organization // nil when absent, distinct from an empty organization
	Birthday     string        // date string as entered, "" when absent
	Anniversary  string
	URLs         []string
	Note         string
	Categories   []string
	Photo        string // photo reference (URI)
	Metadata     Metadata
}

// StructuredName holds the optional parts of a person's name.
type StructuredName struct {
	Given  string
	Middle string
	Family string
	Prefix string
	Suffix string
}

// IsZero reports whether no name part is set.
func (n StructuredName) IsZero() bool {
	return n == StructuredName{}
}

// Email is one email address of a contact.
type Email struct {
	Value   string
	Type    string // category tag such as "work" or "home"
	Primary bool
}

// Phone is one phone number of a contact.
// Value holds the normalized number; Original the number as it was entered.
type Phone struct {
	Value    string
	Original string
	Type     string
	Primary  bool
}

// Address is a postal address.
type Address struct {
	Street     string
	City       string
	State      string
	PostalCode string
	Country    string
	Type       string
}

// Organization describes where a contact works.
type Organization struct {
	Name       string
	Department string
	Title      string
}

// Metadata is bookkeeping owned by the store and provider adapters.
type Metadata struct {
	Created  time.Time
	Modified time.Time
	Source   string // provenance label, e.g. "import:phone.vcf"
	// ProviderIDs maps an external system name to that system's record id.
	ProviderIDs map[string]string
	Archived    bool
	ETag        string
}

// FullName returns the display name, falling back to the structured name parts.
func (c *Contact) FullName() string {
	if strings.TrimSpace(c.DisplayName) != "" {
		return strings.TrimSpace(c.DisplayName)
	}
	parts := []string{c.Name.Prefix, c.Name.Given, c.Name.Middle, c.Name.Family, c.Name.Suffix}
	var nonEmpty []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, " ")
}

// Label returns a human readable name for log lines and commit messages.
func (c *Contact) Label() string {
	if name := c.FullName(); name != "" {
		return name
	}
	if len(c.Emails) > 0 {
		return c.Emails[0].Value
	}
	return "(unnamed)"
}

// Clone returns a deep copy of c.
func (c *Contact) Clone() *Contact {
	if c == nil {
		return nil
	}
	out := *c
	out.Emails = slices.Clone(c.Emails)
	out.Phones = slices.Clone(c.Phones)
	out.Addresses = slices.Clone(c.Addresses)
	out.URLs = slices.Clone(c.URLs)
	out.Categories = slices.Clone(c.Categories)
	if c.Organization != nil {
		org := *c.Organization
		out.Organization = &org
	}
	out.Metadata.ProviderIDs = make(map[string]string, len(c.Metadata.ProviderIDs))
	for k, v := range c.Metadata.ProviderIDs {
		out.Metadata.ProviderIDs[k] = v
	}
	return &out
}
