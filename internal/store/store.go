// internal/store/store.go

// Package store persists rule documents keyed by country and year.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nettolabs/netto/internal/core/db"
	"github.com/nettolabs/netto/internal/types"
)

/*
 * Ruleset catalog.
 *
 * A ruleset is the raw DSL document for one (country, year), stored
 * verbatim: the database holds the author's JSONC, compilation happens
 * in the serving layer. Upserting a new document for an existing
 * (country, year) keeps the ruleset_id stable and bumps updated_at,
 * which the serving layer uses to invalidate its compiled cache.
 *
 * Timestamps are RFC3339 UTC strings in both drivers, so rows scan
 * identically under sqlite and postgres.
 */

// Ruleset is one stored rule document.
type Ruleset struct {
	RulesetID types.RulesetID `db:"ruleset_id" json:"ruleset_id"`
	Country   string          `db:"country" json:"country"`
	Year      int             `db:"year" json:"year"`
	Document  string          `db:"document" json:"-"`
	CreatedAt string          `db:"created_at" json:"created_at"`
	UpdatedAt string          `db:"updated_at" json:"updated_at"`
}

// Store provides ruleset persistence over named queries.
type Store struct {
	q *db.Queries
}

// New wraps a loaded query set.
func New(q *db.Queries) *Store {
	return &Store{q: q}
}

// Put upserts the document for (country, year) and returns the stored
// row. Country codes are normalized to lower case.
func (s *Store) Put(country string, year int, document string) (*Ruleset, error) {
	country = normalizeCountry(country)
	if country == "" {
		return nil, fmt.Errorf("country must not be empty")
	}
	now := time.Now().UTC().Format(time.RFC3339)

	_, err := s.q.Exec("upsert-ruleset",
		string(types.NewRulesetID()), country, year, document, now, now)
	if err != nil {
		return nil, fmt.Errorf("upserting ruleset %s/%d: %w", country, year, err)
	}
	return s.Get(country, year)
}

// Get returns the ruleset for (country, year), or
// types.ErrRulesetNotFound.
func (s *Store) Get(country string, year int) (*Ruleset, error) {
	var rs Ruleset
	err := s.q.Get("get-ruleset", &rs, normalizeCountry(country), year)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s/%d: %w", country, year, types.ErrRulesetNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting ruleset %s/%d: %w", country, year, err)
	}
	return &rs, nil
}

// List returns all rulesets ordered by country then year.
func (s *Store) List() ([]Ruleset, error) {
	var rulesets []Ruleset
	if err := s.q.Select("list-rulesets", &rulesets); err != nil {
		return nil, fmt.Errorf("listing rulesets: %w", err)
	}
	return rulesets, nil
}

// Delete removes the ruleset for (country, year). Deleting a missing
// ruleset is types.ErrRulesetNotFound.
func (s *Store) Delete(country string, year int) error {
	res, err := s.q.Exec("delete-ruleset", normalizeCountry(country), year)
	if err != nil {
		return fmt.Errorf("deleting ruleset %s/%d: %w", country, year, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s/%d: %w", country, year, types.ErrRulesetNotFound)
	}
	return nil
}

func normalizeCountry(country string) string {
	return strings.ToLower(strings.TrimSpace(country))
}
