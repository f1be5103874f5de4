// Package linkage finds likely duplicate contacts.
//
// Records are grouped into blocks by cheap keys (name initials, email domain,
// phone suffix) and only records sharing a block are scored against each
// other. Duplicates sharing no key are missed; that is the price of not
// comparing every pair.
package linkage

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strings"

	"abook/internal/model"
	"abook/internal/normalize"
)

const (
	DefaultThreshold = 0.6
	DefaultLimit     = 50

	emailScore = 0.95
	phoneScore = 0.90
	orgBoost   = 0.15

	phoneKeyDigits = 7
)

// Candidate is a scored pair of probable duplicates. A.ID < B.ID.
type Candidate struct {
	A          *model.Contact
	B          *model.Contact
	Confidence float64
	// Fields lists the match types that contributed, in scoring order.
	Fields []model.Field
}

// FindDuplicates returns candidate pairs with confidence >= threshold, highest
// confidence first, at most limit of them. limit <= 0 selects DefaultLimit.
// The result does not depend on the order of records.
func FindDuplicates(records []*model.Contact, threshold float64, limit int) ([]Candidate, error) {
	if threshold < 0 || threshold > 1 || math.IsNaN(threshold) {
		return nil, model.ArgumentError("find duplicates", fmt.Sprintf("threshold %v outside [0, 1]", threshold))
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	sorted := slices.Clone(records)
	slices.SortStableFunc(sorted, func(a, b *model.Contact) int { return cmp.Compare(a.ID, b.ID) })

	blocks := buildBlocks(sorted)
	keys := make([]string, 0, len(blocks))
	for k := range blocks {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	type pair struct{ i, j int }
	seen := make(map[pair]bool)
	var out []Candidate
	for _, k := range keys {
		members := blocks[k]
		for x := 0; x < len(members); x++ {
			for y := x + 1; y < len(members); y++ {
				p := pair{members[x], members[y]}
				if seen[p] {
					continue
				}
				seen[p] = true

				a, b := sorted[p.i], sorted[p.j]
				conf, fields := Score(a, b)
				if conf > 0 && conf >= threshold {
					out = append(out, Candidate{A: a, B: b, Confidence: conf, Fields: fields})
				}
			}
		}
	}

	slices.SortFunc(out, func(x, y Candidate) int {
		if c := cmp.Compare(y.Confidence, x.Confidence); c != 0 {
			return c
		}
		if c := cmp.Compare(x.A.ID, y.A.ID); c != 0 {
			return c
		}
		return cmp.Compare(x.B.ID, y.B.ID)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// buildBlocks maps each blocking key to the indexes of the records carrying it,
// in ascending order.
func buildBlocks(records []*model.Contact) map[string][]int {
	blocks := make(map[string][]int)
	for i, c := range records {
		for _, k := range blockingKeys(c) {
			blocks[k] = append(blocks[k], i)
		}
	}
	return blocks
}

// blockingKeys returns the distinct keys of c. The initials key is order
// independent so "Smith, John" and "John Smith" share it.
func blockingKeys(c *model.Contact) []string {
	var keys []string
	add := func(k string) {
		if !slices.Contains(keys, k) {
			keys = append(keys, k)
		}
	}

	given, family := nameParts(c)
	if given != "" && family != "" {
		initials := []string{firstRune(given), firstRune(family)}
		slices.Sort(initials)
		add("name:" + initials[0] + initials[1])
	}
	for _, e := range c.Emails {
		v := normalizeEmail(e.Value)
		if at := strings.LastIndexByte(v, '@'); at >= 0 && at < len(v)-1 {
			add("email:" + v[at+1:])
		}
	}
	for _, p := range c.Phones {
		d := strings.TrimPrefix(normalize.Digits(p.Value), "+")
		if d == "" {
			continue
		}
		if len(d) > phoneKeyDigits {
			d = d[len(d)-phoneKeyDigits:]
		}
		add("phone:" + d)
	}
	return keys
}

// Score computes the confidence that a and b describe the same person.
// Match types combine by maximum; an organization match only boosts a pair
// that already scored.
func Score(a, b *model.Contact) (float64, []model.Field) {
	var score float64
	var fields []model.Field

	if sharesEmail(a, b) {
		score = max(score, emailScore)
		fields = append(fields, model.FieldEmails)
	}
	if sharesPhone(a, b) {
		score = max(score, phoneScore)
		fields = append(fields, model.FieldPhones)
	}
	// Two nameless records compare as identical names.
	if conf := nameConfidence(NameSimilarity(a, b)); conf > 0 {
		score = max(score, conf)
		fields = append(fields, model.FieldName)
	}
	if score > 0 && sameOrganization(a, b) {
		score += orgBoost
		fields = append(fields, model.FieldOrganization)
	}

	score = min(score, 1.0)
	return math.Round(score*100) / 100, fields
}

// nameConfidence maps a name similarity to a confidence contribution. An
// exact transposition (0.90) lands in the same bucket as a near-exact match.
func nameConfidence(sim float64) float64 {
	switch {
	case sim >= 0.85:
		return 0.70
	case sim >= 0.65:
		return 0.50
	}
	return 0
}

func sharesEmail(a, b *model.Contact) bool {
	for _, ea := range a.Emails {
		va := normalizeEmail(ea.Value)
		if va == "" {
			continue
		}
		for _, eb := range b.Emails {
			if va == normalizeEmail(eb.Value) {
				return true
			}
		}
	}
	return false
}

func sharesPhone(a, b *model.Contact) bool {
	for _, pa := range a.Phones {
		if pa.Value == "" {
			continue
		}
		for _, pb := range b.Phones {
			if pa.Value == pb.Value {
				return true
			}
		}
	}
	return false
}

func sameOrganization(a, b *model.Contact) bool {
	if a.Organization == nil || b.Organization == nil {
		return false
	}
	na := strings.TrimSpace(a.Organization.Name)
	nb := strings.TrimSpace(b.Organization.Name)
	return na != "" && strings.EqualFold(na, nb)
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func firstRune(s string) string {
	for _, r := range s {
		return string(r)
	}
	return ""
}
