package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vsharha/WorldOnFire-backend/internal/domain"
)

func testStore(t *testing.T) Store {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func article(title string, city domain.CityID, publishedAt time.Time) domain.Article {
	return domain.Article{
		Title:        title,
		Location:     city,
		SourceWeight: 1,
		PublishedAt:  publishedAt,
		CreatedAt:    publishedAt,
	}
}

func TestUpsertArticle_DedupByURL(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	a := article("Blackout across the grid", "Lagos", now)
	a.SourceURL = "https://example.com/blackout"

	inserted, err := s.UpsertArticle(ctx, a)
	require.NoError(t, err)
	assert.True(t, inserted)

	// Same URL, different title: still one row.
	dup := a
	dup.Title = "Blackout across the grid (updated)"
	inserted, err = s.UpsertArticle(ctx, dup)
	require.NoError(t, err)
	assert.False(t, inserted)

	list, err := s.ListArticles(ctx, Filter{City: "Lagos"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Blackout across the grid", list[0].Title)
}

func TestUpsertArticle_DedupByComposite(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	a := article("Metro line reopens", "Madrid", now)

	inserted, err := s.UpsertArticle(ctx, a)
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = s.UpsertArticle(ctx, a)
	require.NoError(t, err)
	assert.False(t, inserted, "same (title, location, published_at) must not insert twice")

	// Same title and time in another city is a different article.
	other := article("Metro line reopens", "Barcelona", now)
	inserted, err = s.UpsertArticle(ctx, other)
	require.NoError(t, err)
	assert.True(t, inserted)
}

func TestListArticles_OrderAndFilters(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Second).Add(-6 * time.Hour)

	titles := []string{"oldest", "middle", "newest"}
	for i, title := range titles {
		a := article(title, "Tokyo", base.Add(time.Duration(i)*time.Hour))
		_, err := s.UpsertArticle(ctx, a)
		require.NoError(t, err)
	}
	_, err := s.UpsertArticle(ctx, article("elsewhere", "Paris", base))
	require.NoError(t, err)

	list, err := s.ListArticles(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, list, 4)
	assert.Equal(t, "newest", list[0].Title, "newest published first")

	list, err = s.ListArticles(ctx, Filter{City: "Tokyo"})
	require.NoError(t, err)
	assert.Len(t, list, 3)

	list, err = s.ListArticles(ctx, Filter{City: "Tokyo", Since: base.Add(90 * time.Minute)})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	list, err = s.ListArticles(ctx, Filter{City: "Tokyo", Before: base.Add(90 * time.Minute)})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "middle", list[0].Title)

	list, err = s.ListArticles(ctx, Filter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestListArticles_EmptyStore(t *testing.T) {
	s := testStore(t)

	list, err := s.ListArticles(context.Background(), Filter{City: "Paris"})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestMentions(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	fresh := article("a", "London", now.Add(-time.Hour))
	fresh.SourceWeight = 2
	stale := article("b", "London", now.Add(-48*time.Hour))
	other := article("c", "Delhi", now.Add(-2*time.Hour))

	for _, a := range []domain.Article{fresh, stale, other} {
		_, err := s.UpsertArticle(ctx, a)
		require.NoError(t, err)
	}

	mentions, err := s.Mentions(ctx, now.Add(-domain.ScoreWindow))
	require.NoError(t, err)

	require.Len(t, mentions["London"], 1, "stale article excluded from the window")
	assert.Equal(t, 2.0, mentions["London"][0].Weight)
	assert.Len(t, mentions["Delhi"], 1)
	assert.NotContains(t, mentions, "Paris")

	london, err := s.CityMentions(ctx, "London", now.Add(-domain.ScoreWindow))
	require.NoError(t, err)
	require.Len(t, london, 1)
	assert.Equal(t, 2.0, london[0].Weight)
}

func TestExistingKeys(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	stored := article("stored", "Seoul", now)
	stored.SourceURL = "https://example.com/stored"
	_, err := s.UpsertArticle(ctx, stored)
	require.NoError(t, err)

	existing, err := s.ExistingKeys(ctx, []string{"https://example.com/stored", "https://example.com/unseen"})
	require.NoError(t, err)
	assert.True(t, existing["https://example.com/stored"])
	assert.False(t, existing["https://example.com/unseen"])

	existing, err = s.ExistingKeys(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, existing)
}
