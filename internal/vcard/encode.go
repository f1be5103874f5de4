// Package vcard converts contacts to and from the vCard 4.0 text format used
// for the files of the contact store.
package vcard

import (
	"encoding/json"
	"strings"
	"time"
	"unicode/utf8"

	"abook/internal/model"
)

const (
	uidPrefix     = "urn:uuid:"
	maxLineOctets = 75

	propCreated     = "X-ABOOK-CREATED"
	propModified    = "X-ABOOK-MODIFIED"
	propSource      = "X-ABOOK-SOURCE"
	propProviderIDs = "X-ABOOK-PROVIDER-IDS"
	propArchived    = "X-ABOOK-ARCHIVED"
	propETag        = "X-ABOOK-ETAG"

	paramOriginal = "X-ORIGINAL"
)

// Encode renders c as a single vCard.
func Encode(c *model.Contact) string {
	var w writer
	w.card(c)
	return w.b.String()
}

// EncodeAll renders contacts as consecutive vCards.
func EncodeAll(contacts []*model.Contact) string {
	var w writer
	for _, c := range contacts {
		w.card(c)
	}
	return w.b.String()
}

type param struct {
	name  string
	value string
}

type writer struct {
	b strings.Builder
}

func (w *writer) card(c *model.Contact) {
	w.prop("BEGIN", nil, "VCARD")
	w.prop("VERSION", nil, "4.0")
	if c.ID != "" {
		w.prop("UID", nil, uidPrefix+escapeText(c.ID))
	}
	w.prop("FN", nil, escapeText(c.DisplayName))
	if !c.Name.IsZero() {
		w.prop("N", nil, structured(c.Name.Family, c.Name.Given, c.Name.Middle, c.Name.Prefix, c.Name.Suffix))
	}
	for _, e := range c.Emails {
		w.prop("EMAIL", typedParams(e.Type, e.Primary), escapeText(e.Value))
	}
	for _, p := range c.Phones {
		params := typedParams(p.Type, p.Primary)
		if p.Original != "" {
			params = append(params, param{paramOriginal, p.Original})
		}
		w.prop("TEL", params, escapeText(p.Value))
	}
	for _, a := range c.Addresses {
		w.prop("ADR", typedParams(a.Type, false), structured("", "", a.Street, a.City, a.State, a.PostalCode, a.Country))
	}
	if org := c.Organization; org != nil {
		w.prop("ORG", nil, structured(org.Name, org.Department))
		if org.Title != "" {
			w.prop("TITLE", nil, escapeText(org.Title))
		}
	}
	if c.Birthday != "" {
		w.prop("BDAY", nil, escapeText(c.Birthday))
	}
	if c.Anniversary != "" {
		w.prop("ANNIVERSARY", nil, escapeText(c.Anniversary))
	}
	for _, u := range c.URLs {
		w.prop("URL", nil, escapeText(u))
	}
	if c.Note != "" {
		w.prop("NOTE", nil, escapeText(c.Note))
	}
	if len(c.Categories) > 0 {
		escaped := make([]string, len(c.Categories))
		for i, cat := range c.Categories {
			escaped[i] = escapeText(cat)
		}
		w.prop("CATEGORIES", nil, strings.Join(escaped, ","))
	}
	if c.Photo != "" {
		w.prop("PHOTO", nil, escapeText(c.Photo))
	}
	w.metadata(c.Metadata)
	w.prop("END", nil, "VCARD")
}

func (w *writer) metadata(m model.Metadata) {
	if !m.Created.IsZero() {
		w.prop(propCreated, nil, formatTime(m.Created))
	}
	if !m.Modified.IsZero() {
		w.prop(propModified, nil, formatTime(m.Modified))
	}
	if m.Source != "" {
		w.prop(propSource, nil, escapeText(m.Source))
	}
	if len(m.ProviderIDs) > 0 {
		// map keys marshal sorted, so output is stable
		blob, err := json.Marshal(m.ProviderIDs)
		if err == nil {
			w.prop(propProviderIDs, nil, escapeText(string(blob)))
		}
	}
	if m.Archived {
		w.prop(propArchived, nil, "TRUE")
	}
	if m.ETag != "" {
		w.prop(propETag, nil, escapeText(m.ETag))
	}
}

func (w *writer) prop(name string, params []param, value string) {
	var line strings.Builder
	line.WriteString(name)
	for _, p := range params {
		line.WriteByte(';')
		line.WriteString(p.name)
		line.WriteByte('=')
		line.WriteString(encodeParamValue(p.value))
	}
	line.WriteByte(':')
	line.WriteString(value)
	fold(&w.b, line.String())
}

func typedParams(typ string, primary bool) []param {
	var params []param
	if typ != "" {
		params = append(params, param{"TYPE", typ})
	}
	if primary {
		params = append(params, param{"PREF", "1"})
	}
	return params
}

// fold writes line as physical lines of at most maxLineOctets bytes,
// continuation lines starting with a single space. Splits only fall on
// UTF-8 sequence boundaries.
func fold(b *strings.Builder, line string) {
	n := 0
	for i := 0; i < len(line); {
		_, size := utf8.DecodeRuneInString(line[i:])
		if n+size > maxLineOctets {
			b.WriteString("\r\n ")
			n = 1
		}
		b.WriteString(line[i : i+size])
		n += size
		i += size
	}
	b.WriteString("\r\n")
}

func structured(components ...string) string {
	escaped := make([]string, len(components))
	for i, c := range components {
		escaped[i] = escapeText(c)
	}
	return strings.Join(escaped, ";")
}

var textEscaper = strings.NewReplacer(
	`\`, `\\`,
	"\n", `\n`,
	",", `\,`,
	";", `\;`,
)

func escapeText(s string) string {
	return textEscaper.Replace(s)
}

var caretEscaper = strings.NewReplacer(
	"^", "^^",
	"\n", "^n",
	`"`, "^'",
)

// encodeParamValue applies RFC 6868 caret encoding and quotes the value when
// it holds characters that would otherwise end the parameter.
func encodeParamValue(v string) string {
	v = caretEscaper.Replace(v)
	if strings.ContainsAny(v, ":;,") {
		return `"` + v + `"`
	}
	return v
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
