package store

import (
	"bytes"
	"fmt"
	"log"

	"golang.org/x/sync/singleflight"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/memolanes/kernel/journey"
)

// cacheMigrations is the ordered schema history for cache.db: one row per
// cached merged layer, plus a settings table, per spec.md §4.7.
var cacheMigrations = []migration{
	{version: 1, sql: `
CREATE TABLE journey_cache (
	layer_kind TEXT PRIMARY KEY,
	data       BLOB NOT NULL
);

CREATE TABLE setting (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`},
}

// CacheStore persists derived, fully-merged JourneyBitmaps keyed by
// CacheLayerKind. Concurrent misses for the same key are coalesced through
// sf so a cache stampede only computes the merge once — generalizing the
// teacher's own hand-rolled inflight-request map (pmtiles/server.go) via
// the library the rest of the retrieval pack reaches for instead.
type CacheStore struct {
	conn    *sqlite.Conn
	logger  *log.Logger
	sf      singleflight.Group
	metrics *metrics
}

// OpenCacheStore opens (creating if absent) the cache store at path and
// brings its schema up to date.
func OpenCacheStore(path string, logger *log.Logger) (*CacheStore, error) {
	if logger == nil {
		logger = defaultLogger()
	}
	conn, err := sqlite.OpenConn(path, sqlite.OpenReadWrite|sqlite.OpenCreate)
	if err != nil {
		return nil, fmt.Errorf("store: opening cache store %s: %w", path, err)
	}
	if err := runMigrations(conn, cacheMigrations); err != nil {
		conn.Close()
		return nil, err
	}
	return &CacheStore{conn: conn, logger: logger}, nil
}

// Close releases the underlying connection.
func (cs *CacheStore) Close() error {
	return cs.conn.Close()
}

func (cs *CacheStore) attachMetrics(m *metrics) { cs.metrics = m }

func encodeBitmapBlob(bm *journey.Bitmap) ([]byte, error) {
	var buf bytes.Buffer
	if err := journey.SerializeData(&buf, journey.BitmapData{Bitmap: bm}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeBitmapBlob(b []byte) (*journey.Bitmap, error) {
	data, err := journey.DeserializeData(bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	bd, ok := data.(journey.BitmapData)
	if !ok {
		return nil, fmt.Errorf("store: cached layer payload is not a bitmap (%T)", data)
	}
	return bd.Bitmap, nil
}

func (cs *CacheStore) getRaw(key string) (*journey.Bitmap, bool, error) {
	var bm *journey.Bitmap
	err := sqlitex.ExecuteTransient(cs.conn, `SELECT data FROM journey_cache WHERE layer_kind = ?`, &sqlitex.ExecOptions{
		Args: []interface{}{key},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			decoded, err := decodeBitmapBlob(columnBlob(stmt, 0))
			if err != nil {
				return err
			}
			bm = decoded
			return nil
		},
	})
	if err != nil {
		return nil, false, err
	}
	return bm, bm != nil, nil
}

func (cs *CacheStore) putRaw(key string, bm *journey.Bitmap) error {
	blob, err := encodeBitmapBlob(bm)
	if err != nil {
		return err
	}
	return sqlitex.ExecuteTransient(cs.conn,
		`INSERT INTO journey_cache(layer_kind, data) VALUES (?, ?)
		 ON CONFLICT(layer_kind) DO UPDATE SET data = excluded.data`,
		&sqlitex.ExecOptions{Args: []interface{}{key, blob}})
}

// GetFullJourneyCacheOrCompute returns the cached bitmap for kind if
// present. On a miss it calls compute exactly once even under concurrent
// callers racing on the same kind, stores the result, and returns it —
// compute is not called again on a second miss once the first has
// succeeded, per spec.md §8's cache round-trip property.
func (cs *CacheStore) GetFullJourneyCacheOrCompute(kind CacheLayerKind, compute func() (*journey.Bitmap, error)) (*journey.Bitmap, error) {
	key := kind.Encoded()
	if bm, ok, err := cs.getRaw(key); err != nil {
		return nil, err
	} else if ok {
		if cs.metrics != nil {
			cs.metrics.observeCache(key, true)
		}
		return bm, nil
	}

	v, err, _ := cs.sf.Do(key, func() (interface{}, error) {
		bm, err := compute()
		if err != nil {
			return nil, err
		}
		if err := cs.putRaw(key, bm); err != nil {
			return nil, err
		}
		return bm, nil
	})
	if cs.metrics != nil {
		cs.metrics.observeCache(key, false)
	}
	if err != nil {
		return nil, err
	}
	return v.(*journey.Bitmap), nil
}

// UpdateFullJourneyCacheIfExists decodes the cached bitmap for kind, if
// any, hands update a mutable reference to mutate in place, and re-encodes
// it. Reports whether a cached entry existed; if none did, update is never
// called.
func (cs *CacheStore) UpdateFullJourneyCacheIfExists(kind CacheLayerKind, update func(*journey.Bitmap)) (bool, error) {
	key := kind.Encoded()
	bm, ok, err := cs.getRaw(key)
	if err != nil || !ok {
		return ok, err
	}
	update(bm)
	return true, cs.putRaw(key, bm)
}

// DeleteFullJourneyCache removes kind's cached entry, if any. Deleting an
// absent key is not an error.
func (cs *CacheStore) DeleteFullJourneyCache(kind CacheLayerKind) error {
	return sqlitex.ExecuteTransient(cs.conn, `DELETE FROM journey_cache WHERE layer_kind = ?`,
		&sqlitex.ExecOptions{Args: []interface{}{kind.Encoded()}})
}

// ClearAllCache removes every cached layer.
func (cs *CacheStore) ClearAllCache() error {
	return sqlitex.ExecuteTransient(cs.conn, `DELETE FROM journey_cache`, nil)
}
