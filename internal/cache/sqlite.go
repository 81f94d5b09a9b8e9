package cache

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // register the sqlite driver
)

// SQLiteStore is the cold tier: a single *sqlx.DB opened with write-ahead
// logging, following the _pragma DSN convention quay-claircore's
// internal/rpm/sqlite package uses. The pool is capped at one open
// connection, so reads and the periodic sweep run one after another, not
// concurrently.
type SQLiteStore struct {
	db *sqlx.DB
}

// DefaultPath returns the host cache directory's conventional location for
// the durable store: $cacheDir/dependi/cache.db.
func DefaultPath() (string, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "dependi", "cache.db"), nil
}

// OpenSQLite opens (creating if necessary) the database at path and
// ensures the schema exists.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	u := url.URL{
		Scheme: "file",
		Opaque: path,
		RawQuery: url.Values{
			"_pragma": {
				"journal_mode(wal)",
				"busy_timeout(5000)",
				"foreign_keys(1)",
			},
		}.Encode(),
	}

	db, err := sqlx.Open("sqlite", u.String())
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite is not safe for concurrent writers

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, &CorruptError{Err: err}
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS cache_entries (
	ecosystem       TEXT NOT NULL,
	source_registry TEXT NOT NULL,
	name            TEXT NOT NULL,
	payload         BLOB NOT NULL,
	fetched_at      INTEGER NOT NULL,
	ttl_secs        INTEGER NOT NULL,
	PRIMARY KEY (ecosystem, source_registry, name)
);
CREATE INDEX IF NOT EXISTS idx_cache_entries_fetched_at ON cache_entries (fetched_at);
`)
	return err
}

func (s *SQLiteStore) Get(key Key) (Entry, bool, error) {
	var row struct {
		Payload   []byte `db:"payload"`
		FetchedAt int64  `db:"fetched_at"`
		TTLSecs   int64  `db:"ttl_secs"`
	}
	err := s.db.Get(&row, `
SELECT payload, fetched_at, ttl_secs FROM cache_entries
WHERE ecosystem = ? AND source_registry = ? AND name = ?`,
		key.Ecosystem, key.SourceRegistry, key.Name)
	if err == sql.ErrNoRows {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}

	return Entry{
		Key:       key,
		Payload:   row.Payload,
		FetchedAt: time.Unix(row.FetchedAt, 0).UTC(),
		TTL:       time.Duration(row.TTLSecs) * time.Second,
	}, true, nil
}

func (s *SQLiteStore) Put(entry Entry) error {
	_, err := s.db.Exec(`
INSERT INTO cache_entries (ecosystem, source_registry, name, payload, fetched_at, ttl_secs)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (ecosystem, source_registry, name) DO UPDATE SET
	payload = excluded.payload,
	fetched_at = excluded.fetched_at,
	ttl_secs = excluded.ttl_secs`,
		entry.Key.Ecosystem, entry.Key.SourceRegistry, entry.Key.Name,
		entry.Payload, entry.FetchedAt.Unix(), int64(entry.TTL/time.Second))
	return err
}

func (s *SQLiteStore) Invalidate(key Key) error {
	_, err := s.db.Exec(`
DELETE FROM cache_entries WHERE ecosystem = ? AND source_registry = ? AND name = ?`,
		key.Ecosystem, key.SourceRegistry, key.Name)
	return err
}

// Sweep deletes expired rows, then enforces perEcosystemCap per ecosystem by
// evicting the oldest-fetched rows beyond the cap (an LRU-by-fetch-time
// approximation; the hot tier is the true LRU).
func (s *SQLiteStore) Sweep(perEcosystemCap int) error {
	now := time.Now().Unix()
	if _, err := s.db.Exec(`DELETE FROM cache_entries WHERE fetched_at + ttl_secs < ?`, now); err != nil {
		return err
	}

	rows, err := s.db.Query(`SELECT DISTINCT ecosystem FROM cache_entries`)
	if err != nil {
		return err
	}
	var ecosystems []string
	for rows.Next() {
		var eco string
		if err := rows.Scan(&eco); err != nil {
			_ = rows.Close()
			return err
		}
		ecosystems = append(ecosystems, eco)
	}
	_ = rows.Close()

	for _, eco := range ecosystems {
		if _, err := s.db.Exec(`
DELETE FROM cache_entries
WHERE ecosystem = ? AND rowid NOT IN (
	SELECT rowid FROM cache_entries WHERE ecosystem = ?
	ORDER BY fetched_at DESC LIMIT ?
)`, eco, eco, perEcosystemCap); err != nil {
			return fmt.Errorf("sweep ecosystem %s: %w", eco, err)
		}
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
