package vcard

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"abook/internal/model"
)

// Decode parses exactly one vCard.
func Decode(text string) (*model.Contact, error) {
	cards, err := DecodeAll(strings.NewReader(text))
	if err != nil {
		return nil, err
	}
	if len(cards) != 1 {
		return nil, fmt.Errorf("expected one vCard, found %d", len(cards))
	}
	return cards[0], nil
}

// DecodeAll parses every vCard in r. Properties it does not know are ignored.
func DecodeAll(r io.Reader) ([]*model.Contact, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading vCard data: %w", err)
	}

	var cards []*model.Contact
	var cur *model.Contact
	native := false
	for i, line := range unfold(string(data)) {
		if strings.TrimSpace(line) == "" {
			continue
		}
		p, err := parseLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		switch p.name {
		case "BEGIN":
			if strings.EqualFold(p.value, "VCARD") {
				cur = &model.Contact{}
				native = false
			}
		case "END":
			if strings.EqualFold(p.value, "VCARD") && cur != nil {
				if cur.Metadata.ProviderIDs == nil {
					cur.Metadata.ProviderIDs = map[string]string{}
				}
				cards = append(cards, cur)
				cur = nil
			}
		case "VERSION":
			native = strings.TrimSpace(p.value) == "4.0"
		default:
			if cur == nil {
				continue
			}
			if err := apply(cur, p, native); err != nil {
				return nil, fmt.Errorf("line %d: %s: %w", i+1, p.name, err)
			}
		}
	}
	if cur != nil {
		return nil, fmt.Errorf("unterminated vCard")
	}
	if len(cards) == 0 {
		return nil, fmt.Errorf("no vCard found")
	}
	return cards, nil
}

// unfold splits data into logical lines, joining continuation lines.
func unfold(data string) []string {
	var lines []string
	for _, raw := range strings.Split(data, "\n") {
		raw = strings.TrimSuffix(raw, "\r")
		if len(lines) > 0 && raw != "" && (raw[0] == ' ' || raw[0] == '\t') {
			lines[len(lines)-1] += raw[1:]
			continue
		}
		lines = append(lines, raw)
	}
	return lines
}

type property struct {
	name   string
	params map[string][]string
	value  string
}

func (p property) param(name string) string {
	if vs := p.params[name]; len(vs) > 0 {
		return vs[0]
	}
	return ""
}

// parseLine splits "[group.]NAME;P=V;P=\"V\":value".
func parseLine(line string) (property, error) {
	p := property{params: map[string][]string{}}

	i := strings.IndexAny(line, ";:")
	if i < 0 {
		return p, fmt.Errorf("malformed line: missing ':'")
	}
	name := line[:i]
	if dot := strings.LastIndexByte(name, '.'); dot >= 0 {
		name = name[dot+1:]
	}
	p.name = strings.ToUpper(strings.TrimSpace(name))

	for line[i] == ';' {
		i++
		start := i
		for i < len(line) && line[i] != '=' && line[i] != ';' && line[i] != ':' {
			i++
		}
		if i >= len(line) {
			return p, fmt.Errorf("malformed parameter")
		}
		pname := strings.ToUpper(line[start:i])
		if line[i] != '=' {
			// vCard 2.1 bare parameter such as EMAIL;WORK:
			p.params["TYPE"] = append(p.params["TYPE"], line[start:i])
			continue
		}
		i++
		for {
			var v string
			var err error
			v, i, err = scanParamValue(line, i)
			if err != nil {
				return p, err
			}
			p.params[pname] = append(p.params[pname], decodeCaret(v))
			if i < len(line) && line[i] == ',' {
				i++
				continue
			}
			break
		}
		if i >= len(line) {
			return p, fmt.Errorf("malformed line: missing ':'")
		}
	}
	if line[i] != ':' {
		return p, fmt.Errorf("malformed line near %q", line[i:])
	}
	p.value = line[i+1:]
	return p, nil
}

// scanParamValue reads one (possibly quoted) parameter value starting at i.
func scanParamValue(line string, i int) (string, int, error) {
	if i < len(line) && line[i] == '"' {
		end := strings.IndexByte(line[i+1:], '"')
		if end < 0 {
			return "", i, fmt.Errorf("unterminated quoted parameter")
		}
		return line[i+1 : i+1+end], i + end + 2, nil
	}
	start := i
	for i < len(line) && line[i] != ',' && line[i] != ';' && line[i] != ':' {
		i++
	}
	return line[start:i], i, nil
}

func decodeCaret(v string) string {
	if !strings.Contains(v, "^") {
		return v
	}
	var b strings.Builder
	for i := 0; i < len(v); i++ {
		if v[i] == '^' && i+1 < len(v) {
			switch v[i+1] {
			case '^':
				b.WriteByte('^')
				i++
				continue
			case 'n', 'N':
				b.WriteByte('\n')
				i++
				continue
			case '\'':
				b.WriteByte('"')
				i++
				continue
			}
		}
		b.WriteByte(v[i])
	}
	return b.String()
}

// unescapeText reverses escapeText; unknown escapes yield the escaped character.
func unescapeText(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 == len(s) {
			b.WriteByte(s[i])
			continue
		}
		i++
		switch s[i] {
		case 'n', 'N':
			b.WriteByte('\n')
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// splitEscaped splits s on sep characters that are not backslash-escaped and
// unescapes each part.
func splitEscaped(s string, sep byte) []string {
	var parts []string
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case sep:
			parts = append(parts, unescapeText(s[start:i]))
			start = i + 1
		}
	}
	return append(parts, unescapeText(s[start:]))
}

func component(parts []string, i int) string {
	if i < len(parts) {
		return parts[i]
	}
	return ""
}

// typeAndPref extracts the category tag and the primary flag of a property.
// Version 4.0 cards mark the primary with PREF only, so their TYPE values are
// kept as written. Older cards put "pref" and "internet" among the types.
func typeAndPref(p property, native bool) (string, bool) {
	primary := p.param("PREF") == "1"
	if native {
		return strings.Join(p.params["TYPE"], ","), primary
	}
	var types []string
	for _, t := range p.params["TYPE"] {
		switch strings.ToLower(t) {
		case "pref":
			primary = true
		case "internet", "":
		default:
			types = append(types, t)
		}
	}
	return strings.Join(types, ","), primary
}

func ensureOrg(c *model.Contact) *model.Organization {
	if c.Organization == nil {
		c.Organization = &model.Organization{}
	}
	return c.Organization
}

func apply(c *model.Contact, p property, native bool) error {
	switch p.name {
	case "UID":
		id := unescapeText(p.value)
		if len(id) >= len(uidPrefix) && strings.EqualFold(id[:len(uidPrefix)], uidPrefix) {
			id = id[len(uidPrefix):]
		}
		c.ID = id
	case "FN":
		c.DisplayName = unescapeText(p.value)
	case "N":
		parts := splitEscaped(p.value, ';')
		c.Name = model.StructuredName{
			Family: component(parts, 0),
			Given:  component(parts, 1),
			Middle: component(parts, 2),
			Prefix: component(parts, 3),
			Suffix: component(parts, 4),
		}
	case "EMAIL":
		typ, primary := typeAndPref(p, native)
		c.Emails = append(c.Emails, model.Email{Value: unescapeText(p.value), Type: typ, Primary: primary})
	case "TEL":
		typ, primary := typeAndPref(p, native)
		value := unescapeText(p.value)
		if strings.EqualFold(p.param("VALUE"), "uri") {
			value = strings.TrimPrefix(strings.TrimPrefix(value, "tel:"), "TEL:")
		}
		c.Phones = append(c.Phones, model.Phone{
			Value:    value,
			Original: p.param(paramOriginal),
			Type:     typ,
			Primary:  primary,
		})
	case "ADR":
		typ, _ := typeAndPref(p, native)
		parts := splitEscaped(p.value, ';')
		c.Addresses = append(c.Addresses, model.Address{
			Street:     component(parts, 2),
			City:       component(parts, 3),
			State:      component(parts, 4),
			PostalCode: component(parts, 5),
			Country:    component(parts, 6),
			Type:       typ,
		})
	case "ORG":
		parts := splitEscaped(p.value, ';')
		org := ensureOrg(c)
		org.Name = component(parts, 0)
		org.Department = component(parts, 1)
	case "TITLE":
		ensureOrg(c).Title = unescapeText(p.value)
	case "BDAY":
		c.Birthday = unescapeText(p.value)
	case "ANNIVERSARY":
		c.Anniversary = unescapeText(p.value)
	case "URL":
		c.URLs = append(c.URLs, unescapeText(p.value))
	case "NOTE":
		c.Note = unescapeText(p.value)
	case "CATEGORIES":
		for _, cat := range splitEscaped(p.value, ',') {
			if cat != "" || native {
				c.Categories = append(c.Categories, cat)
			}
		}
	case "PHOTO":
		c.Photo = unescapeText(p.value)
	case propCreated:
		t, err := time.Parse(time.RFC3339Nano, p.value)
		if err != nil {
			return err
		}
		c.Metadata.Created = t
	case propModified:
		t, err := time.Parse(time.RFC3339Nano, p.value)
		if err != nil {
			return err
		}
		c.Metadata.Modified = t
	case propSource:
		c.Metadata.Source = unescapeText(p.value)
	case propProviderIDs:
		ids := map[string]string{}
		if err := json.Unmarshal([]byte(unescapeText(p.value)), &ids); err != nil {
			return err
		}
		c.Metadata.ProviderIDs = ids
	case propArchived:
		c.Metadata.Archived = strings.EqualFold(p.value, "true")
	case propETag:
		c.Metadata.ETag = unescapeText(p.value)
	}
	return nil
}
