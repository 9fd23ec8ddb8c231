package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// RawArticle is an article as returned by a source adapter, before city
// extraction. Location and Source are free-text metadata; PublishedAt is
// zero when the source omits it.
type RawArticle struct {
	Title        string
	Description  string
	Location     string
	Source       string
	SourceWeight float64 // source importance, 0 when the source provides none
	ImageURL     string
	URL          string
	PublishedAt  time.Time
}

// Article is a stored news item attributed to exactly one registry city.
// Rows are append-only; nothing updates an article after ingestion.
type Article struct {
	ID           int64     `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	Location     CityID    `json:"location"`
	ImageURL     string    `json:"image_url,omitempty"`
	SourceURL    string    `json:"source_url,omitempty"`
	SourceWeight float64   `json:"-"`
	PublishedAt  time.Time `json:"published_at"`
	HeatScore    int       `json:"heat_score"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewArticle builds a storable Article from a raw article and its extracted
// city. A missing published timestamp defaults to the ingestion time, per
// the package clock.
func NewArticle(raw RawArticle, city CityID) Article {
	published := raw.PublishedAt
	if published.IsZero() {
		published = clock.Now().UTC()
	}
	return Article{
		Title:        raw.Title,
		Description:  raw.Description,
		Location:     city,
		ImageURL:     raw.ImageURL,
		SourceURL:    raw.URL,
		SourceWeight: raw.SourceWeight,
		PublishedAt:  published,
		CreatedAt:    clock.Now().UTC(),
	}
}

// DedupKey returns the identity used to recognize a previously stored
// article. The source URL wins when present; otherwise a short hash of the
// (title, location, published_at) composite. Deterministic so that
// re-fetching the same article across overlapping refresh windows is a
// silent no-op at the store.
func DedupKey(a Article) string {
	if a.SourceURL != "" {
		return a.SourceURL
	}
	input := fmt.Sprintf("%s|%s|%d", a.Title, a.Location, a.PublishedAt.UTC().Unix())
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:8])
}
