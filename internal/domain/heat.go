package domain

import (
	"math"
	"time"
)

// Scoring constants. The decay constant means an article loses ~63% of its
// contribution every six hours; the window bounds how far back articles
// count at all. Both were chosen so a burst of fresh coverage dominates the
// map for a few hours and fades within a day.
const (
	// ScoreWindow is the lookback window for heat scoring.
	ScoreWindow = 24 * time.Hour

	// decayConstant is the e-folding time of the recency decay.
	decayConstant = 6 * time.Hour
)

// Mention is one article's scoring input: when it was published and how much
// its source counts for.
type Mention struct {
	PublishedAt time.Time
	Weight      float64
}

// MentionOf returns the scoring input for a stored article.
func MentionOf(a Article) Mention {
	return Mention{PublishedAt: a.PublishedAt, Weight: a.SourceWeight}
}

// Score computes a city's heat from its article mentions at the current
// package-clock time. See ScoreAt.
func Score(mentions []Mention) int {
	return ScoreAt(mentions, clock.Now())
}

// ScoreAt computes the heat score for a set of mentions at a given instant:
// the rounded sum of weight * exp(-age/decayConstant) over mentions inside
// the scoring window. Deterministic for a fixed article set and now; zero
// mentions yield zero. Future publish timestamps (clock skew) clamp to age
// zero, contributing exactly their base weight.
func ScoreAt(mentions []Mention, now time.Time) int {
	var sum float64
	for _, m := range mentions {
		age := now.Sub(m.PublishedAt)
		if age < 0 {
			age = 0
		}
		if age > ScoreWindow {
			continue
		}
		sum += baseWeight(m.Weight) * recencyDecay(age)
	}
	return int(math.Round(sum))
}

// baseWeight floors the source weight at 1 so unranked sources still count.
func baseWeight(w float64) float64 {
	if w < 1 {
		return 1
	}
	return w
}

// recencyDecay maps an age in [0, ScoreWindow] to (0, 1], 1 at age zero.
func recencyDecay(age time.Duration) float64 {
	return math.Exp(-age.Hours() / decayConstant.Hours())
}
