package store

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/vsharha/WorldOnFire-backend/internal/domain"
)

var articleColumns = []string{
	"id", "title", "description", "location", "image_url",
	"source_url", "source_weight", "published_at", "heat_score", "created_at",
}

// sqlStore implements Store over a database/sql handle. The two backends
// differ only in how they open and migrate; all queries are built with
// squirrel against the shared schema.
type sqlStore struct {
	db      *sql.DB
	builder sq.StatementBuilderType
}

func (s *sqlStore) UpsertArticle(ctx context.Context, a domain.Article) (bool, error) {
	res, err := s.builder.
		Insert("articles").
		Columns("dedup_key", "title", "description", "location", "image_url",
			"source_url", "source_weight", "published_at", "heat_score", "created_at").
		Values(domain.DedupKey(a), a.Title, a.Description, a.Location, a.ImageURL,
			a.SourceURL, a.SourceWeight, a.PublishedAt.UTC(), a.HeatScore, a.CreatedAt.UTC()).
		Suffix("ON CONFLICT (dedup_key) DO NOTHING").
		RunWith(s.db).
		ExecContext(ctx)
	if err != nil {
		return false, storageErr("upsert article", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, storageErr("upsert article", err)
	}
	return n > 0, nil
}

func (s *sqlStore) ListArticles(ctx context.Context, f Filter) ([]domain.Article, error) {
	q := s.builder.
		Select(articleColumns...).
		From("articles").
		OrderBy("published_at DESC, id DESC").
		Limit(uint64(f.limit()))

	if f.City != "" {
		q = q.Where(sq.Eq{"location": f.City})
	}
	if !f.Since.IsZero() {
		q = q.Where(sq.GtOrEq{"published_at": f.Since.UTC()})
	}
	if !f.Before.IsZero() {
		q = q.Where(sq.Lt{"published_at": f.Before.UTC()})
	}

	rows, err := q.RunWith(s.db).QueryContext(ctx)
	if err != nil {
		return nil, storageErr("list articles", err)
	}
	defer rows.Close()

	var articles []domain.Article
	for rows.Next() {
		var a domain.Article
		if err := rows.Scan(&a.ID, &a.Title, &a.Description, &a.Location, &a.ImageURL,
			&a.SourceURL, &a.SourceWeight, &a.PublishedAt, &a.HeatScore, &a.CreatedAt); err != nil {
			return nil, storageErr("scan article", err)
		}
		articles = append(articles, a)
	}
	return articles, storageErr("list articles", rows.Err())
}

func (s *sqlStore) Mentions(ctx context.Context, since time.Time) (map[domain.CityID][]domain.Mention, error) {
	rows, err := s.builder.
		Select("location", "published_at", "source_weight").
		From("articles").
		Where(sq.GtOrEq{"published_at": since.UTC()}).
		RunWith(s.db).
		QueryContext(ctx)
	if err != nil {
		return nil, storageErr("load mentions", err)
	}
	defer rows.Close()

	mentions := make(map[domain.CityID][]domain.Mention)
	for rows.Next() {
		var city domain.CityID
		var m domain.Mention
		if err := rows.Scan(&city, &m.PublishedAt, &m.Weight); err != nil {
			return nil, storageErr("scan mention", err)
		}
		mentions[city] = append(mentions[city], m)
	}
	return mentions, storageErr("load mentions", rows.Err())
}

func (s *sqlStore) CityMentions(ctx context.Context, city domain.CityID, since time.Time) ([]domain.Mention, error) {
	rows, err := s.builder.
		Select("published_at", "source_weight").
		From("articles").
		Where(sq.Eq{"location": city}).
		Where(sq.GtOrEq{"published_at": since.UTC()}).
		RunWith(s.db).
		QueryContext(ctx)
	if err != nil {
		return nil, storageErr("load city mentions", err)
	}
	defer rows.Close()

	var mentions []domain.Mention
	for rows.Next() {
		var m domain.Mention
		if err := rows.Scan(&m.PublishedAt, &m.Weight); err != nil {
			return nil, storageErr("scan mention", err)
		}
		mentions = append(mentions, m)
	}
	return mentions, storageErr("load city mentions", rows.Err())
}

func (s *sqlStore) ExistingKeys(ctx context.Context, keys []string) (map[string]bool, error) {
	existing := make(map[string]bool, len(keys))
	if len(keys) == 0 {
		return existing, nil
	}

	rows, err := s.builder.
		Select("dedup_key").
		From("articles").
		Where(sq.Eq{"dedup_key": keys}).
		RunWith(s.db).
		QueryContext(ctx)
	if err != nil {
		return nil, storageErr("check existing keys", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, storageErr("scan dedup key", err)
		}
		existing[key] = true
	}
	return existing, storageErr("check existing keys", rows.Err())
}

func (s *sqlStore) Close() error {
	return s.db.Close()
}
