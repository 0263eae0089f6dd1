// Package store caches resolved records in a local SQLite database so
// repeated runs skip network lookups.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/texkit/bibgen/internal/cite"
	"github.com/texkit/bibgen/internal/record"
)

// DB wraps the SQLite record cache.
type DB struct {
	db *sql.DB
}

// Open opens or creates the cache database at the given path.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening cache database: %w", err)
	}

	// SQLite doesn't support concurrent writes; the cache also relies on
	// single-writer discipline to keep keys unique.
	db.SetMaxOpenConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating cache schema: %w", err)
	}

	return &DB{db: db}, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

func createSchema(db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS records (
			key TEXT PRIMARY KEY,
			entry_type TEXT NOT NULL,
			body TEXT NOT NULL,
			alt_ids_json TEXT NOT NULL,
			texkey TEXT,
			arxiv_id TEXT,
			doi TEXT,
			fetched_at INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_records_texkey ON records(texkey) WHERE texkey IS NOT NULL;
		CREATE INDEX IF NOT EXISTS idx_records_arxiv ON records(arxiv_id) WHERE arxiv_id IS NOT NULL;
		CREATE INDEX IF NOT EXISTS idx_records_doi ON records(doi) WHERE doi IS NOT NULL;
	`

	_, err := db.Exec(schema)
	return err
}

// Put stores a resolver record, replacing any previous row with its key.
func (d *DB) Put(rec *record.Record) error {
	altsJSON, err := json.Marshal(rec.AltIDs)
	if err != nil {
		return fmt.Errorf("marshaling alternate ids for %s: %w", rec.Key, err)
	}

	_, err = d.db.Exec(`
		INSERT OR REPLACE INTO records (key, entry_type, body, alt_ids_json, texkey, arxiv_id, doi, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.Key, rec.EntryType, rec.Body, string(altsJSON),
		nullableAlt(rec, cite.TypeTexKey),
		nullableAlt(rec, cite.TypeArxiv),
		nullableAlt(rec, cite.TypeDOI),
		time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("caching record %s: %w", rec.Key, err)
	}
	return nil
}

// Lookup finds a cached record by any of its identifiers: the record key or
// an alternate of any type. Returns nil when the cache has nothing.
func (d *DB) Lookup(normalized string) (*record.Record, error) {
	row := d.db.QueryRow(`
		SELECT key, entry_type, body, alt_ids_json
		FROM records
		WHERE key = ?1 COLLATE NOCASE
		   OR texkey = ?1 COLLATE NOCASE
		   OR arxiv_id = ?1
		   OR doi = ?1
		LIMIT 1
	`, normalized)

	var rec record.Record
	var altsJSON string
	err := row.Scan(&rec.Key, &rec.EntryType, &rec.Body, &altsJSON)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("querying cache: %w", err)
	}

	if err := json.Unmarshal([]byte(altsJSON), &rec.AltIDs); err != nil {
		return nil, fmt.Errorf("parsing alternate ids for %s: %w", rec.Key, err)
	}
	rec.Source = record.SourceResolver

	return &rec, nil
}

// Count returns the number of cached records.
func (d *DB) Count() (int, error) {
	var count int
	err := d.db.QueryRow("SELECT COUNT(*) FROM records").Scan(&count)
	return count, err
}

func nullableAlt(rec *record.Record, typ cite.Type) sql.NullString {
	if v, ok := rec.AltID(typ); ok && v != "" {
		return sql.NullString{String: v, Valid: true}
	}
	return sql.NullString{}
}
