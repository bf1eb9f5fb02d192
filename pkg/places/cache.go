package places

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"
	_ "modernc.org/sqlite"
)

const cacheMigration = `
CREATE TABLE IF NOT EXISTS place_lookups (
	lookup_key TEXT PRIMARY KEY,
	kind       TEXT NOT NULL,
	payload    TEXT NOT NULL,
	cached_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_place_lookups_kind ON place_lookups(kind);
`

// CachedClient wraps a Client with a SQLite-backed lookup cache so repeated
// and forced re-runs don't spend Places quota on queries already answered.
// Only successful, non-empty lookups are cached.
type CachedClient struct {
	inner Client
	db    *sql.DB
}

// NewCachedClient opens (or creates) the cache database at path and returns
// a caching wrapper around inner.
func NewCachedClient(inner Client, path string) (*CachedClient, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, eris.Wrapf(err, "places: mkdir cache dir %s", dir)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "places: open cache")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "places: exec %s", pragma)
		}
	}
	if _, err := db.Exec(cacheMigration); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "places: migrate cache")
	}

	return &CachedClient{inner: inner, db: db}, nil
}

// Close releases the cache database.
func (c *CachedClient) Close() error {
	return c.db.Close()
}

func (c *CachedClient) SearchText(ctx context.Context, query, regionCode string) ([]Place, error) {
	key := searchKey(query, regionCode)

	var cached []Place
	if ok := c.lookup(ctx, key, &cached); ok {
		return cached, nil
	}

	result, err := c.inner.SearchText(ctx, query, regionCode)
	if err != nil {
		return nil, err
	}
	if len(result) > 0 {
		c.store(ctx, key, "search", result)
	}
	return result, nil
}

func (c *CachedClient) Details(ctx context.Context, placeID string) (*Place, error) {
	key := detailsKey(placeID)

	var cached Place
	if ok := c.lookup(ctx, key, &cached); ok {
		return &cached, nil
	}

	result, err := c.inner.Details(ctx, placeID)
	if err != nil {
		return nil, err
	}
	if result != nil && result.ID != "" {
		c.store(ctx, key, "details", result)
	}
	return result, nil
}

// lookup reads a cache entry into dest, reporting whether one was found.
// Cache read errors degrade to a miss.
func (c *CachedClient) lookup(ctx context.Context, key string, dest any) bool {
	var payload string
	err := c.db.QueryRowContext(ctx,
		"SELECT payload FROM place_lookups WHERE lookup_key = ?", key,
	).Scan(&payload)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			zap.L().Debug("places cache read failed", zap.String("key", keyPrefix(key)), zap.Error(err))
		}
		return false
	}
	if err := json.Unmarshal([]byte(payload), dest); err != nil {
		zap.L().Debug("places cache entry corrupt", zap.String("key", keyPrefix(key)), zap.Error(err))
		return false
	}
	zap.L().Debug("places cache hit", zap.String("key", keyPrefix(key)))
	return true
}

// store writes a cache entry best-effort; a failed write is a debug log, not
// an error surfaced to the caller.
func (c *CachedClient) store(ctx context.Context, key, kind string, value any) {
	payload, err := json.Marshal(value)
	if err != nil {
		zap.L().Debug("places cache marshal failed", zap.String("key", keyPrefix(key)), zap.Error(err))
		return
	}
	_, err = c.db.ExecContext(ctx, `
		INSERT INTO place_lookups (lookup_key, kind, payload, cached_at)
		VALUES (?, ?, ?, datetime('now'))
		ON CONFLICT (lookup_key) DO UPDATE SET
			payload   = excluded.payload,
			cached_at = datetime('now')`,
		key, kind, string(payload),
	)
	if err != nil {
		zap.L().Debug("places cache write failed", zap.String("key", keyPrefix(key)), zap.Error(err))
	}
}

// searchKey returns SHA-256 hex of the normalized query and region. Queries
// carry provider names in several scripts, so normalize to NFC before
// hashing to keep byte-level variants of the same name on one cache row.
func searchKey(query, regionCode string) string {
	normalized := norm.NFC.String(strings.ToLower(strings.TrimSpace(query)))
	h := sha256.Sum256([]byte("search|" + normalized + "|" + strings.ToUpper(strings.TrimSpace(regionCode))))
	return fmt.Sprintf("%x", h)
}

func detailsKey(placeID string) string {
	h := sha256.Sum256([]byte("details|" + placeID))
	return fmt.Sprintf("%x", h)
}

func keyPrefix(key string) string {
	if len(key) > 12 {
		return key[:12]
	}
	return key
}
