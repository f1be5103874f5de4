// Package normalize canonicalizes contact fields before they are persisted.
package normalize

import (
	"strings"
	"unicode"

	"github.com/nyaruka/phonenumbers"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"abook/internal/model"
)

// DefaultRegion is used to parse phone numbers written without a country code.
const DefaultRegion = "US"

// Normalizer applies the canonical forms: E.164 phone numbers, case-folded
// email addresses and NFC-composed names. It is idempotent.
type Normalizer struct {
	region string
	fold   cases.Caser
}

// New creates a Normalizer for the given default phone region (ISO 3166 alpha-2).
func New(region string) *Normalizer {
	if region == "" {
		region = DefaultRegion
	}
	return &Normalizer{
		region: strings.ToUpper(region),
		fold:   cases.Fold(),
	}
}

// Normalize rewrites c in place.
func (n *Normalizer) Normalize(c *model.Contact) {
	c.DisplayName = norm.NFC.String(strings.TrimSpace(c.DisplayName))
	c.Name = model.StructuredName{
		Given:  norm.NFC.String(strings.TrimSpace(c.Name.Given)),
		Middle: norm.NFC.String(strings.TrimSpace(c.Name.Middle)),
		Family: norm.NFC.String(strings.TrimSpace(c.Name.Family)),
		Prefix: norm.NFC.String(strings.TrimSpace(c.Name.Prefix)),
		Suffix: norm.NFC.String(strings.TrimSpace(c.Name.Suffix)),
	}
	if c.DisplayName == "" {
		c.DisplayName = c.FullName()
	}

	for i := range c.Emails {
		c.Emails[i].Value = n.Email(c.Emails[i].Value)
	}
	for i := range c.Phones {
		p := &c.Phones[i]
		raw := strings.TrimSpace(p.Value)
		if p.Original == "" {
			p.Original = raw
		}
		p.Value = n.Phone(raw)
	}
	if c.Metadata.ProviderIDs == nil {
		c.Metadata.ProviderIDs = map[string]string{}
	}
}

// Email trims and case-folds an email address.
func (n *Normalizer) Email(s string) string {
	return n.fold.String(strings.TrimSpace(s))
}

// Phone formats s as E.164. Numbers the parser rejects keep their digits and
// a leading '+' if one was given.
func (n *Normalizer) Phone(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	num, err := phonenumbers.Parse(s, n.region)
	if err == nil {
		return phonenumbers.Format(num, phonenumbers.E164)
	}
	return Digits(s)
}

// Digits keeps the decimal digits of s, preserving a leading '+'.
func Digits(s string) string {
	var b strings.Builder
	for i, r := range strings.TrimSpace(s) {
		if r == '+' && i == 0 {
			b.WriteRune(r)
			continue
		}
		if unicode.IsDigit(r) && r < unicode.MaxASCII {
			b.WriteRune(r)
		}
	}
	return b.String()
}
