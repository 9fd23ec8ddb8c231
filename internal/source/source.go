// Package source wraps the external news providers. Adapters return raw
// articles and classify failures so the refresh driver can back off a
// rate-limited city without aborting the whole cycle; retry policy lives in
// the driver, never here.
package source

import (
	"context"
	"errors"
	"time"

	"github.com/vsharha/WorldOnFire-backend/internal/domain"
)

// Sentinel errors for the driver's failure taxonomy. Adapters wrap these
// with %w so callers test with errors.Is.
var (
	// ErrRateLimited means the upstream throttled us; the driver skips the
	// city for the remainder of the cycle.
	ErrRateLimited = errors.New("source rate limited")

	// ErrSourceUnavailable covers network, auth, and server failures;
	// recoverable on the next cycle.
	ErrSourceUnavailable = errors.New("source unavailable")
)

// Source fetches articles mentioning one tracked city published at or after
// since. Results are raw: city extraction and scoring happen downstream.
type Source interface {
	Fetch(ctx context.Context, city domain.CityID, since time.Time) ([]domain.RawArticle, error)
}

// Sweeper fetches articles with no city scoping, e.g. a pass over world-news
// feeds. Extraction attributes each result from its free text or drops it.
type Sweeper interface {
	FetchAll(ctx context.Context) ([]domain.RawArticle, error)
}
