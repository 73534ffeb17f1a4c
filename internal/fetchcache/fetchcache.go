// Package fetchcache persists conditional-GET validators and resolved
// Xtream VOD/series metadata in a local sqlite database so repeated
// ingestion runs avoid re-downloading unchanged provider data.
package fetchcache

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Store wraps a sqlite database holding two tables: one keyed by fetch
// URL for conditional-GET validators, one keyed by (input, provider id)
// for resolved VOD/series-info payloads. All writes go through mu since
// the sqlite driver serialises poorly under concurrent writers.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// Open creates (if absent) and opens the cache database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("fetchcache: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("fetchcache: init schema: %w", err)
	}
	return &Store{db: db}, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS fetch_cache (
	url TEXT PRIMARY KEY,
	etag TEXT,
	last_modified TEXT,
	content_hash TEXT,
	fetched_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS vod_info_cache (
	input_name TEXT NOT NULL,
	provider_id TEXT NOT NULL,
	payload BLOB NOT NULL,
	fetched_at INTEGER NOT NULL,
	PRIMARY KEY (input_name, provider_id)
);
`

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Validators is what's needed to make the next request to url conditional.
type Validators struct {
	ETag         string
	LastModified string
	ContentHash  string
	FetchedAt    time.Time
}

// Lookup returns the last recorded validators for url, if any.
func (s *Store) Lookup(url string) (Validators, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var v Validators
	var fetchedAt int64
	row := s.db.QueryRow(
		`SELECT etag, last_modified, content_hash, fetched_at FROM fetch_cache WHERE url = ?`, url)
	err := row.Scan(&v.ETag, &v.LastModified, &v.ContentHash, &fetchedAt)
	if err == sql.ErrNoRows {
		return Validators{}, false, nil
	}
	if err != nil {
		return Validators{}, false, fmt.Errorf("fetchcache: lookup %s: %w", url, err)
	}
	v.FetchedAt = time.Unix(fetchedAt, 0).UTC()
	return v, true, nil
}

// StoreValidators records the validators observed for a successful fetch of url.
func (s *Store) StoreValidators(url string, v Validators) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(
		`INSERT INTO fetch_cache (url, etag, last_modified, content_hash, fetched_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(url) DO UPDATE SET
			etag = excluded.etag,
			last_modified = excluded.last_modified,
			content_hash = excluded.content_hash,
			fetched_at = excluded.fetched_at`,
		url, v.ETag, v.LastModified, v.ContentHash, v.FetchedAt.Unix())
	if err != nil {
		return fmt.Errorf("fetchcache: store validators for %s: %w", url, err)
	}
	return nil
}

// LookupVODInfo returns the cached raw JSON payload for a provider's
// get_vod_info/get_series_info response keyed by input and provider id,
// along with when it was fetched.
func (s *Store) LookupVODInfo(input, providerID string) ([]byte, time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var payload []byte
	var fetchedAt int64
	row := s.db.QueryRow(
		`SELECT payload, fetched_at FROM vod_info_cache WHERE input_name = ? AND provider_id = ?`,
		input, providerID)
	err := row.Scan(&payload, &fetchedAt)
	if err == sql.ErrNoRows {
		return nil, time.Time{}, false, nil
	}
	if err != nil {
		return nil, time.Time{}, false, fmt.Errorf("fetchcache: lookup vod info %s/%s: %w", input, providerID, err)
	}
	return payload, time.Unix(fetchedAt, 0).UTC(), true, nil
}

// StoreVODInfo caches payload for (input, providerID).
func (s *Store) StoreVODInfo(input, providerID string, payload []byte, fetchedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(
		`INSERT INTO vod_info_cache (input_name, provider_id, payload, fetched_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(input_name, provider_id) DO UPDATE SET
			payload = excluded.payload,
			fetched_at = excluded.fetched_at`,
		input, providerID, payload, fetchedAt.Unix())
	if err != nil {
		return fmt.Errorf("fetchcache: store vod info %s/%s: %w", input, providerID, err)
	}
	return nil
}

// Fresh reports whether a VOD-info cache entry at fetchedAt is still
// usable given ttl. A zero ttl means cached entries never expire.
func Fresh(fetchedAt time.Time, ttl time.Duration, now time.Time) bool {
	if ttl <= 0 {
		return true
	}
	return now.Sub(fetchedAt) < ttl
}
