package store

import (
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS articles (
	id            BIGSERIAL PRIMARY KEY,
	dedup_key     TEXT NOT NULL UNIQUE,
	title         TEXT NOT NULL,
	description   TEXT NOT NULL DEFAULT '',
	location      TEXT NOT NULL,
	image_url     TEXT NOT NULL DEFAULT '',
	source_url    TEXT NOT NULL DEFAULT '',
	source_weight DOUBLE PRECISION NOT NULL DEFAULT 1,
	published_at  TIMESTAMPTZ NOT NULL,
	heat_score    INTEGER NOT NULL DEFAULT 0,
	created_at    TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_articles_published_at ON articles(published_at DESC);
CREATE INDEX IF NOT EXISTS idx_articles_location ON articles(location, published_at DESC);
`

// OpenPostgres connects to Postgres with the given DSN and ensures the
// schema exists.
func OpenPostgres(dsn string) (Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.Exec(postgresSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate postgres schema: %w", err)
	}

	return &sqlStore{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}, nil
}
