package cache

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	url       TEXT PRIMARY KEY,
	body      TEXT NOT NULL,
	stored_at INTEGER NOT NULL
);`

// SQLite is a Gateway persisted to a local SQLite database. Storage
// errors degrade to cache misses and are logged; a broken cache must
// never fail a mirroring request.
type SQLite struct {
	db  *sql.DB
	ttl time.Duration
	log zerolog.Logger
}

// OpenSQLite opens (or creates) the cache database at path and applies
// the usual production pragmas. Use ":memory:" in tests.
func OpenSQLite(path string, ttl time.Duration, log zerolog.Logger) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening cache database %q: %w", path, err)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("applying %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating cache schema: %w", err)
	}
	return &SQLite{db: db, ttl: ttl, log: log}, nil
}

func (s *SQLite) Has(url string) bool {
	_, ok := s.Get(url)
	return ok
}

func (s *SQLite) Get(url string) (string, bool) {
	var body string
	var storedAt int64
	err := s.db.QueryRow(
		`SELECT body, stored_at FROM documents WHERE url = ?`, url,
	).Scan(&body, &storedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false
	}
	if err != nil {
		s.log.Error().Err(err).Str("url", url).Msg("cache read failed")
		return "", false
	}
	if s.ttl > 0 && time.Since(time.Unix(storedAt, 0)) > s.ttl {
		if _, err := s.db.Exec(`DELETE FROM documents WHERE url = ?`, url); err != nil {
			s.log.Error().Err(err).Str("url", url).Msg("cache expiry delete failed")
		}
		return "", false
	}
	return body, true
}

func (s *SQLite) Put(url, document string) {
	_, err := s.db.Exec(
		`INSERT INTO documents (url, body, stored_at) VALUES (?, ?, ?)
		 ON CONFLICT(url) DO UPDATE SET body = excluded.body, stored_at = excluded.stored_at`,
		url, document, time.Now().Unix(),
	)
	if err != nil {
		s.log.Error().Err(err).Str("url", url).Msg("cache write failed")
	}
}

func (s *SQLite) Close() error { return s.db.Close() }
