// Package store persists articles in a relational database and serves the
// read queries behind the HTTP API. Two backends are supported: embedded
// SQLite (default) and Postgres, selected by DB_DRIVER. Both share the same
// append-only articles table; concurrent writers are serialized by the
// database itself, not by this package.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/vsharha/WorldOnFire-backend/internal/domain"
)

// Store is the gateway contract the refresh driver and HTTP API depend on.
type Store interface {
	// UpsertArticle inserts an article unless its dedup key is already
	// present. Returns (false, nil) for a silently skipped duplicate.
	UpsertArticle(ctx context.Context, a domain.Article) (inserted bool, err error)

	// ListArticles returns stored articles matching the filter, newest
	// published first.
	ListArticles(ctx context.Context, f Filter) ([]domain.Article, error)

	// Mentions returns the scoring inputs for articles published at or
	// after since, grouped by city. Cities with no window articles are
	// absent from the map.
	Mentions(ctx context.Context, since time.Time) (map[domain.CityID][]domain.Mention, error)

	// CityMentions returns the scoring inputs for one city's articles
	// published at or after since.
	CityMentions(ctx context.Context, city domain.CityID, since time.Time) ([]domain.Mention, error)

	// ExistingKeys reports which of the given dedup keys are already
	// stored, so a fetched batch can be scored over genuinely new articles
	// only.
	ExistingKeys(ctx context.Context, keys []string) (map[string]bool, error)

	Close() error
}

// Filter narrows ListArticles. Zero values mean "no constraint"; Limit 0
// falls back to DefaultListLimit.
type Filter struct {
	City   domain.CityID
	Since  time.Time
	Before time.Time
	Limit  int
}

// DefaultListLimit bounds unfiltered article listings, matching the page
// size the frontend requests.
const DefaultListLimit = 10

// MaxListLimit caps client-supplied limits.
const MaxListLimit = 100

func (f Filter) limit() int {
	switch {
	case f.Limit <= 0:
		return DefaultListLimit
	case f.Limit > MaxListLimit:
		return MaxListLimit
	default:
		return f.Limit
	}
}

// StorageError wraps any failure from the underlying database so callers can
// distinguish persistence faults from source faults. Never swallowed: the
// refresh driver logs it and moves on to the next city.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}
