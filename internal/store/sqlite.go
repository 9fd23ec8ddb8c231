package store

import (
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS articles (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	dedup_key     TEXT NOT NULL UNIQUE,
	title         TEXT NOT NULL,
	description   TEXT NOT NULL DEFAULT '',
	location      TEXT NOT NULL,
	image_url     TEXT NOT NULL DEFAULT '',
	source_url    TEXT NOT NULL DEFAULT '',
	source_weight REAL NOT NULL DEFAULT 1,
	published_at  TIMESTAMP NOT NULL,
	heat_score    INTEGER NOT NULL DEFAULT 0,
	created_at    TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_articles_published_at ON articles(published_at DESC);
CREATE INDEX IF NOT EXISTS idx_articles_location ON articles(location, published_at DESC);
`

// OpenSQLite opens (and creates if needed) an embedded SQLite database at
// path. WAL mode keeps the refresh writer from blocking API reads.
func OpenSQLite(path string) (Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// modernc's driver is not safe for concurrent writes on one connection
	// when journaling is off; WAL plus a single writer connection is.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate sqlite schema: %w", err)
	}

	return &sqlStore{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Question),
	}, nil
}
