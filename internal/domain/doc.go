// Package domain models tracked cities, news articles, and the heat score
// that drives the map frontend.
//
// # City Registry
//
// The registry is a fixed list of 100 heavily-populated cities embedded at
// build time from cities.yaml. It is read-only reference data: the refresh
// job fans out over it, the extractor matches against it, and the heatmap
// endpoint reports one score per entry. Matching is case-insensitive and
// diacritic-insensitive ("são paulo", "SAO PAULO" and "Sao_Paulo" all resolve
// to "São Paulo"), with underscores treated as spaces because several
// upstream sources use wiki-style names.
//
// # City Extraction
//
// Each article is attributed to exactly one city or dropped. Precedence:
//
//  1. The query city the article was fetched for, when set and registered.
//  2. A normalized match of the article's location metadata.
//  3. The first registry city (registry order) mentioned in the title, then
//     in the description.
//
// Registry order is population rank, so when free text mentions two tracked
// cities the larger one wins deterministically.
//
// # Heat Score
//
// A city's score is a recency-weighted sum over its articles inside the
// scoring window:
//
//	score = round( Σ  weight(a) * exp(-age(a) / decayConstant) )
//
// with weight(a) = max(1, source weight), decayConstant = 6h, and a 24h
// window. An article published "now" contributes its full weight, one
// published 6h ago contributes ~37% of it, and anything older than the
// window contributes nothing. Timestamps in the future (clock skew) are
// clamped to age zero so they never contribute more than the base weight.
// Scoring is a pure function of the article set and the current time; tests
// freeze time via [SetClock].
//
// # Dedup Keys
//
// Article identity is the source URL when present, otherwise a short SHA-256
// of title|location|published_at. Deterministic keys make ingestion
// idempotent (ON CONFLICT DO NOTHING) across overlapping refresh windows.
// See [DedupKey].
package domain
