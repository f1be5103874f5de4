// Package index implements the search index: a SQLite table derived from
// the contact store that answers fuzzy queries.
package index

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"abook/internal/abook"
	"abook/internal/index/migrations"
	"abook/internal/linkage"
	"abook/internal/model"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// MinTokenSimilarity is the edit-distance similarity a query token needs
// against some word of a contact when it is not a substring.
const MinTokenSimilarity = 0.75

// DefaultSearchLimit applies when Search is called with limit <= 0.
const DefaultSearchLimit = 20

// SQLiteIndex implements abook.Index on SQLite.
type SQLiteIndex struct {
	db   *sql.DB
	path string
	fold cases.Caser
}

// NewSQLiteIndex opens the index at path, or ":memory:", and migrates its
// schema to the latest version.
func NewSQLiteIndex(path string) (*SQLiteIndex, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	if err := migrations.Apply(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating index schema: %w", err)
	}
	return &SQLiteIndex{db: db, path: path, fold: cases.Fold()}, nil
}

// OpenConnection opens and configures a SQLite connection.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// every connection to :memory: is its own database, and a single
	// writer suits the index anyway
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}
	return db, nil
}

type row struct {
	id           string
	displayName  string
	emails       string
	phones       string
	organization string
	categories   string
	searchText   string
	archived     bool
	modified     time.Time
}

func (x *SQLiteIndex) rowFor(c *model.Contact) row {
	emails := make([]string, len(c.Emails))
	for i, e := range c.Emails {
		emails[i] = e.Value
	}
	phones := make([]string, 0, len(c.Phones))
	for _, p := range c.Phones {
		phones = append(phones, p.Value)
	}
	var org string
	if c.Organization != nil {
		org = c.Organization.Name
	}

	words := []string{c.DisplayName, c.Name.Given, c.Name.Middle, c.Name.Family, c.Name.Prefix, c.Name.Suffix}
	words = append(words, emails...)
	for _, p := range c.Phones {
		words = append(words, p.Value, p.Original)
	}
	if c.Organization != nil {
		words = append(words, c.Organization.Name, c.Organization.Department, c.Organization.Title)
	}
	words = append(words, c.Categories...)
	for _, a := range c.Addresses {
		words = append(words, a.City, a.State, a.Country)
	}

	return row{
		id:           c.ID,
		displayName:  c.Label(),
		emails:       strings.Join(emails, "\n"),
		phones:       strings.Join(phones, "\n"),
		organization: org,
		categories:   strings.Join(c.Categories, "\n"),
		searchText:   x.fold.String(strings.Join(strings.Fields(strings.Join(words, " ")), " ")),
		archived:     c.Metadata.Archived,
		modified:     c.Metadata.Modified,
	}
}

const upsertSQL = `
INSERT INTO contacts (id, display_name, emails, phones, organization, categories, search_text, archived, modified_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    display_name = excluded.display_name,
    emails = excluded.emails,
    phones = excluded.phones,
    organization = excluded.organization,
    categories = excluded.categories,
    search_text = excluded.search_text,
    archived = excluded.archived,
    modified_at = excluded.modified_at`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (x *SQLiteIndex) upsert(ctx context.Context, db execer, c *model.Contact) error {
	r := x.rowFor(c)
	_, err := db.ExecContext(ctx, upsertSQL,
		r.id, r.displayName, r.emails, r.phones, r.organization, r.categories, r.searchText, r.archived, r.modified)
	return err
}

// Rebuild replaces every row with contacts in one transaction.
func (x *SQLiteIndex) Rebuild(contacts []*model.Contact) error {
	ctx := context.Background()

	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM contacts"); err != nil {
		return fmt.Errorf("clearing index: %w", err)
	}
	for _, c := range contacts {
		if err := x.upsert(ctx, tx, c); err != nil {
			return fmt.Errorf("indexing contact %s: %w", c.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func (x *SQLiteIndex) Upsert(c *model.Contact) error {
	if err := x.upsert(context.Background(), x.db, c); err != nil {
		return fmt.Errorf("indexing contact %s: %w", c.ID, err)
	}
	return nil
}

func (x *SQLiteIndex) Delete(id string) error {
	if _, err := x.db.ExecContext(context.Background(), "DELETE FROM contacts WHERE id = ?", id); err != nil {
		return fmt.Errorf("removing contact %s from index: %w", id, err)
	}
	return nil
}

// Search matches every whitespace-separated token of query against the
// search text of each contact. A token scores 1 when it is a substring and
// its best word similarity otherwise; a contact matches when every token
// scores at least MinTokenSimilarity. Hits are ranked by summed token score,
// then by display name.
func (x *SQLiteIndex) Search(query string, limit int, includeArchived bool) ([]*abook.SearchHit, error) {
	tokens := strings.Fields(x.fold.String(query))
	if len(tokens) == 0 {
		return nil, model.ArgumentError("search", "empty query")
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	q := "SELECT id, display_name, emails, search_text, archived FROM contacts"
	if !includeArchived {
		q += " WHERE archived = 0"
	}
	rows, err := x.db.QueryContext(context.Background(), q)
	if err != nil {
		return nil, fmt.Errorf("querying index: %w", err)
	}
	defer rows.Close()

	var hits []*abook.SearchHit
	for rows.Next() {
		var (
			hit        abook.SearchHit
			emails     string
			searchText string
		)
		if err := rows.Scan(&hit.ID, &hit.DisplayName, &emails, &searchText, &hit.Archived); err != nil {
			return nil, fmt.Errorf("reading index row: %w", err)
		}
		score, ok := scoreTokens(tokens, searchText)
		if !ok {
			continue
		}
		hit.Score = score
		if emails != "" {
			hit.Emails = strings.Split(emails, "\n")
		}
		hits = append(hits, &hit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading index rows: %w", err)
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		if hits[i].DisplayName != hits[j].DisplayName {
			return hits[i].DisplayName < hits[j].DisplayName
		}
		return hits[i].ID < hits[j].ID
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func scoreTokens(tokens []string, searchText string) (float64, bool) {
	words := strings.Fields(searchText)
	total := 0.0
	for _, tok := range tokens {
		if strings.Contains(searchText, tok) {
			total++
			continue
		}
		best := 0.0
		for _, w := range words {
			if s := linkage.Similarity(tok, w); s > best {
				best = s
			}
		}
		if best < MinTokenSimilarity {
			return 0, false
		}
		total += best
	}
	return total, true
}

func (x *SQLiteIndex) Close() error {
	return x.db.Close()
}

var _ abook.Index = (*SQLiteIndex)(nil)
