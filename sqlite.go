package pagetextcache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	_ "modernc.org/sqlite"

	"github.com/richardartoul/pagetextcache/pkg/keys"
)

// One record store keyed by cache key, with secondary indexes on the
// expiration and last-access timestamps. Timestamps are unix milliseconds.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS page_text (
	key           TEXT PRIMARY KEY,
	content       BLOB    NOT NULL,
	created_at    INTEGER NOT NULL,
	last_accessed INTEGER NOT NULL,
	access_count  INTEGER NOT NULL DEFAULT 0,
	expires_at    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_page_text_expires ON page_text (expires_at);
CREATE INDEX IF NOT EXISTS idx_page_text_accessed ON page_text (last_accessed);
`

// pendingKind distinguishes the deferred operations a read can schedule.
type pendingKind uint8

const (
	pendingTouch  pendingKind = iota // write back access statistics
	pendingExpire                    // remove a row observed past its expiry
)

type pendingOp struct {
	kind pendingKind
	key  string
	at   time.Time // access time for touch operations
}

// SQLiteStore is the persistent cache store, backed by an embedded SQLite
// database. Initialization is lazy, idempotent and single-flight: the first
// operation opens the database, concurrent callers await the same attempt.
//
// If the database cannot be opened or an individual statement fails, the
// affected operation degrades to a miss or no-op with a logged warning. The
// cache must never be the reason a caller's primary operation fails.
//
// Reads never write inline: access-stat updates and stale-row removals are
// accumulated and flushed as one batch transaction shortly afterwards, which
// bounds write amplification from read traffic.
type SQLiteStore struct {
	cfg    Config
	logger *slog.Logger
	clock  Clock
	keys   keys.Deriver

	initGroup singleflight.Group
	initMu    sync.Mutex
	initDone  bool
	initErr   error
	db        *sql.DB

	// size is the fast-path entry count: seeded from COUNT(*) at init,
	// adjusted on insert/evict/delete, re-seeded by AuthoritativeStats.
	sizeMu sync.Mutex
	size   int64

	stats counters

	pendingMu sync.Mutex
	pending   map[string]pendingOp // keyed by kind+key
	flushing  bool
	timer     *time.Timer
}

var (
	_ Store            = (*SQLiteStore)(nil)
	_ Cleaner          = (*SQLiteStore)(nil)
	_ StorageEstimator = (*SQLiteStore)(nil)
)

// NewSQLiteStore creates a persistent store over cfg.DatabasePath. The
// database is not opened until the first operation needs it.
func NewSQLiteStore(cfg Config, logger *slog.Logger) *SQLiteStore {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = cfg.Logger
	}
	return &SQLiteStore{
		cfg:     cfg,
		logger:  logger,
		clock:   cfg.Clock,
		keys:    keys.Deriver{Exact: cfg.ExactKeys},
		pending: make(map[string]pendingOp),
	}
}

// conn returns the open database, initializing it on first use. A false
// return means the engine is unavailable on this host; the caller degrades.
func (s *SQLiteStore) conn(ctx context.Context) (*sql.DB, bool) {
	s.initMu.Lock()
	if s.initDone {
		db, err := s.db, s.initErr
		s.initMu.Unlock()
		return db, err == nil
	}
	s.initMu.Unlock()

	// Single-flight: concurrent first calls share one open attempt instead
	// of racing to create the schema twice.
	_, err, _ := s.initGroup.Do("init", func() (any, error) {
		s.initMu.Lock()
		if s.initDone {
			err := s.initErr
			s.initMu.Unlock()
			return nil, err
		}
		s.initMu.Unlock()

		db, size, err := s.open(ctx)

		s.initMu.Lock()
		s.initDone = true
		s.initErr = err
		s.db = db
		s.initMu.Unlock()

		if err != nil {
			s.logger.Warn("persistent cache unavailable, operations will degrade to misses",
				"path", s.cfg.DatabasePath,
				"error", err)
			return nil, err
		}

		s.sizeMu.Lock()
		s.size = size
		s.sizeMu.Unlock()
		return nil, nil
	})
	if err != nil {
		return nil, false
	}

	s.initMu.Lock()
	db := s.db
	s.initMu.Unlock()
	return db, true
}

// open creates or opens the database file, applies the schema and reads the
// authoritative entry count.
func (s *SQLiteStore) open(ctx context.Context) (*sql.DB, int64, error) {
	dsn := "file:" + s.cfg.DatabasePath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: SQLite serializes writers anyway, and this keeps an
	// in-memory database visible across all statements.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, 0, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, 0, fmt.Errorf("failed to create schema: %w", err)
	}

	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", s.cfg.SchemaVersion)); err != nil {
		db.Close()
		return nil, 0, fmt.Errorf("failed to set schema version: %w", err)
	}

	var size int64
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM page_text").Scan(&size); err != nil {
		db.Close()
		return nil, 0, fmt.Errorf("failed to count entries: %w", err)
	}

	return db, size, nil
}

// Get implements Store. A hit schedules (not performs) an access-stat
// update; a row observed past its expiry counts as a miss and schedules its
// removal. Either way the read returns without waiting on any write.
func (s *SQLiteStore) Get(ctx context.Context, source any, page int) (*TextContent, bool) {
	db, ok := s.conn(ctx)
	if !ok {
		s.stats.miss()
		return nil, false
	}

	key := s.keys.PageKey(source, page)
	now := s.clock.Now()

	var (
		data      []byte
		expiresAt int64
	)
	err := db.QueryRowContext(ctx,
		"SELECT content, expires_at FROM page_text WHERE key = ?", key).
		Scan(&data, &expiresAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		s.stats.miss()
		return nil, false
	case err != nil:
		s.logger.Warn("cache read failed", "key", key, "error", err)
		s.stats.miss()
		return nil, false
	}

	if expiresAt <= now.UnixMilli() {
		// Stale row: still physically present until the deferred removal
		// runs, but never returned.
		s.stats.miss()
		s.enqueue(pendingOp{kind: pendingExpire, key: key})
		return nil, false
	}

	var content TextContent
	if err := json.Unmarshal(data, &content); err != nil {
		s.logger.Warn("cache entry corrupted, dropping", "key", key, "error", err)
		s.stats.miss()
		s.enqueue(pendingOp{kind: pendingExpire, key: key})
		return nil, false
	}

	s.stats.hit()
	s.enqueue(pendingOp{kind: pendingTouch, key: key, at: now})
	return &content, true
}

// Set implements Store. At capacity it batch-evicts the oldest ~10% of
// entries by last access before upserting, amortizing the capacity check.
func (s *SQLiteStore) Set(ctx context.Context, source any, page int, content *TextContent) {
	db, ok := s.conn(ctx)
	if !ok {
		return
	}

	key := s.keys.PageKey(source, page)
	data, err := json.Marshal(content)
	if err != nil {
		s.logger.Warn("cache entry not serializable", "key", key, "error", err)
		return
	}

	s.sizeMu.Lock()
	atCapacity := s.size >= int64(s.cfg.PersistentMaxEntries)
	s.sizeMu.Unlock()
	if atCapacity {
		s.evictOldest(ctx, db)
	}

	now := s.clock.Now().UnixMilli()
	expires := s.clock.Now().Add(s.cfg.expiration()).UnixMilli()

	// Update-then-insert so we learn whether the key was new and can keep
	// the fast size counter honest.
	res, err := db.ExecContext(ctx,
		`UPDATE page_text
		 SET content = ?, created_at = ?, last_accessed = ?, access_count = 0, expires_at = ?
		 WHERE key = ?`,
		data, now, now, expires, key)
	if err != nil {
		s.logger.Warn("cache write failed", "key", key, "error", err)
		return
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return
	}

	if _, err := db.ExecContext(ctx,
		`INSERT INTO page_text (key, content, created_at, last_accessed, access_count, expires_at)
		 VALUES (?, ?, ?, ?, 0, ?)`,
		key, data, now, now, expires); err != nil {
		s.logger.Warn("cache write failed", "key", key, "error", err)
		return
	}

	s.sizeMu.Lock()
	s.size++
	s.sizeMu.Unlock()
}

// evictOldest removes the oldest tenth of the store by last access.
func (s *SQLiteStore) evictOldest(ctx context.Context, db *sql.DB) {
	batch := s.cfg.PersistentMaxEntries / 10
	if batch < 1 {
		batch = 1
	}

	res, err := db.ExecContext(ctx,
		`DELETE FROM page_text WHERE key IN (
			SELECT key FROM page_text ORDER BY last_accessed ASC LIMIT ?
		)`, batch)
	if err != nil {
		s.logger.Warn("cache eviction failed", "error", err)
		return
	}

	if n, err := res.RowsAffected(); err == nil {
		s.sizeMu.Lock()
		s.size -= n
		if s.size < 0 {
			s.size = 0
		}
		s.sizeMu.Unlock()
	}
}

// Clear implements Store.
func (s *SQLiteStore) Clear(ctx context.Context) {
	s.pendingMu.Lock()
	s.pending = make(map[string]pendingOp)
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.pendingMu.Unlock()

	db, ok := s.conn(ctx)
	if ok {
		if _, err := db.ExecContext(ctx, "DELETE FROM page_text"); err != nil {
			s.logger.Warn("cache clear failed", "error", err)
		}
	}

	s.sizeMu.Lock()
	s.size = 0
	s.sizeMu.Unlock()
	s.stats.reset()
}

// Cleanup implements Cleaner: a full scan removing every expired entry.
// Intended to be driven by an external scheduler rather than automatically.
func (s *SQLiteStore) Cleanup(ctx context.Context) int {
	db, ok := s.conn(ctx)
	if !ok {
		return 0
	}

	res, err := db.ExecContext(ctx,
		"DELETE FROM page_text WHERE expires_at <= ?", s.clock.Now().UnixMilli())
	if err != nil {
		s.logger.Warn("cache cleanup failed", "error", err)
		return 0
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0
	}

	s.sizeMu.Lock()
	s.size -= n
	if s.size < 0 {
		s.size = 0
	}
	s.sizeMu.Unlock()
	return int(n)
}

// Stats implements Store using the fast in-memory size counter.
func (s *SQLiteStore) Stats() Stats {
	s.sizeMu.Lock()
	size := s.size
	s.sizeMu.Unlock()

	hits, misses, rate := s.stats.snapshot()
	return Stats{
		Size:     int(size),
		MaxSize:  s.cfg.PersistentMaxEntries,
		Hits:     hits,
		Misses:   misses,
		HitRate:  rate,
		Strategy: string(StrategyPersistent),
	}
}

// AuthoritativeStats implements Store by re-querying the engine's count, for
// consumers that need precision over latency. The fast counter is re-seeded
// from the result.
func (s *SQLiteStore) AuthoritativeStats(ctx context.Context) Stats {
	db, ok := s.conn(ctx)
	if ok {
		var count int64
		if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM page_text").Scan(&count); err != nil {
			s.logger.Warn("cache count failed", "error", err)
		} else {
			s.sizeMu.Lock()
			s.size = count
			s.sizeMu.Unlock()
		}
	}
	return s.Stats()
}

// StorageEstimate implements StorageEstimator.
func (s *SQLiteStore) StorageEstimate(ctx context.Context) (StorageEstimate, bool) {
	db, ok := s.conn(ctx)
	if !ok {
		return StorageEstimate{}, false
	}

	var est StorageEstimate
	if info, err := os.Stat(s.cfg.DatabasePath); err == nil {
		est.UsedBytes = info.Size()
	}
	db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&est.PageCount)
	db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&est.PageSize)
	return est, true
}

// Close flushes any pending deferred operations and closes the database.
func (s *SQLiteStore) Close() error {
	s.pendingMu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.pendingMu.Unlock()

	s.flushPending(context.Background())

	s.initMu.Lock()
	defer s.initMu.Unlock()
	if s.db != nil {
		err := s.db.Close()
		s.db = nil
		s.initErr = errors.New("store closed")
		return err
	}
	return nil
}

// enqueue records a deferred operation and arms the flush timer. Operations
// are keyed by kind and entry key, so repeated reads of one entry within a
// flush window collapse into a single write.
func (s *SQLiteStore) enqueue(op pendingOp) {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()

	s.pending[pendingMapKey(op.kind, op.key)] = op
	if s.timer == nil && !s.flushing {
		s.timer = time.AfterFunc(flushDelay, func() {
			// Detached from any caller: a read must never wait on this.
			s.flushPending(context.Background())
		})
	}
}

func pendingMapKey(kind pendingKind, key string) string {
	if kind == pendingTouch {
		return "t:" + key
	}
	return "e:" + key
}

// flushPending drains the pending set in one transaction. A guard flag drops
// flush requests that arrive while one is in flight; anything newly
// accumulated is picked up by the rescheduled timer afterwards.
func (s *SQLiteStore) flushPending(ctx context.Context) {
	s.pendingMu.Lock()
	if s.flushing || len(s.pending) == 0 {
		s.timer = nil
		s.pendingMu.Unlock()
		return
	}
	s.flushing = true
	s.timer = nil
	batch := s.pending
	s.pending = make(map[string]pendingOp)
	s.pendingMu.Unlock()

	s.flushBatch(ctx, batch)

	s.pendingMu.Lock()
	s.flushing = false
	if len(s.pending) > 0 && s.timer == nil {
		s.timer = time.AfterFunc(flushDelay, func() {
			s.flushPending(context.Background())
		})
	}
	s.pendingMu.Unlock()
}

func (s *SQLiteStore) flushBatch(ctx context.Context, batch map[string]pendingOp) {
	db, ok := s.conn(ctx)
	if !ok {
		return
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		s.logger.Warn("deferred cache maintenance failed", "error", err)
		return
	}
	defer tx.Rollback()

	var removed int64
	now := s.clock.Now().UnixMilli()
	for _, op := range batch {
		switch op.kind {
		case pendingTouch:
			if _, err := tx.ExecContext(ctx,
				`UPDATE page_text SET last_accessed = ?, access_count = access_count + 1 WHERE key = ?`,
				op.at.UnixMilli(), op.key); err != nil {
				s.logger.Warn("deferred access update failed", "key", op.key, "error", err)
				return
			}
		case pendingExpire:
			// The expiry guard keeps a removal scheduled before an overwrite
			// from deleting the fresh entry.
			res, err := tx.ExecContext(ctx,
				`DELETE FROM page_text WHERE key = ? AND expires_at <= ?`, op.key, now)
			if err != nil {
				s.logger.Warn("deferred expiry removal failed", "key", op.key, "error", err)
				return
			}
			if n, err := res.RowsAffected(); err == nil {
				removed += n
			}
		}
	}

	if err := tx.Commit(); err != nil {
		s.logger.Warn("deferred cache maintenance failed", "error", err)
		return
	}

	if removed > 0 {
		s.sizeMu.Lock()
		s.size -= removed
		if s.size < 0 {
			s.size = 0
		}
		s.sizeMu.Unlock()
	}
}

// available reports whether the backing engine can be used, initializing it
// if needed. The manager's auto strategy probes with this at construction.
func (s *SQLiteStore) available(ctx context.Context) bool {
	_, ok := s.conn(ctx)
	return ok
}
