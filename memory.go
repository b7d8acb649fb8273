package pagetextcache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	expirable "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/richardartoul/pagetextcache/pkg/keys"
)

// memoryEntry is a volatile cache entry. Access metadata is informational;
// eviction order is owned by the LRU list itself.
type memoryEntry struct {
	content      *TextContent
	lastAccessed time.Time
	accessCount  int64
}

// MemoryStore is an in-process bounded LRU store. It performs no I/O and no
// operation on it can fail; it exists as the fallback when the persistent
// engine is unavailable and as the low-latency strategy in its own right.
type MemoryStore struct {
	lru     *expirable.LRU[string, *memoryEntry]
	mu      sync.Mutex // protects entry access metadata
	keys    keys.Deriver
	clock   Clock
	stats   counters
	maxSize int
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates a volatile store holding at most cfg.MemoryMaxEntries
// entries. Inserting past capacity evicts the least recently used entry
// strictly before the insert, so the size bound is never observably exceeded.
func NewMemoryStore(cfg Config, logger *slog.Logger) *MemoryStore {
	cfg = cfg.withDefaults()
	_ = logger // nothing here can fail, so there is nothing to warn about

	s := &MemoryStore{
		keys:    keys.Deriver{Exact: cfg.ExactKeys},
		clock:   cfg.Clock,
		maxSize: cfg.MemoryMaxEntries,
	}
	// TTL 0: entries never expire by time, only by LRU pressure.
	s.lru = expirable.NewLRU[string, *memoryEntry](cfg.MemoryMaxEntries, nil, 0)
	return s
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, source any, page int) (*TextContent, bool) {
	key := s.keys.PageKey(source, page)
	ent, ok := s.lru.Get(key)
	if !ok {
		s.stats.miss()
		return nil, false
	}

	s.mu.Lock()
	ent.lastAccessed = s.clock.Now()
	ent.accessCount++
	s.mu.Unlock()

	s.stats.hit()
	return ent.content, true
}

// Set implements Store.
func (s *MemoryStore) Set(_ context.Context, source any, page int, content *TextContent) {
	key := s.keys.PageKey(source, page)
	s.lru.Add(key, &memoryEntry{
		content:      content,
		lastAccessed: s.clock.Now(),
		accessCount:  0,
	})
}

// Clear implements Store. It empties the mapping and resets the hit/miss
// counters to zero.
func (s *MemoryStore) Clear(_ context.Context) {
	s.lru.Purge()
	s.stats.reset()
}

// Stats implements Store.
func (s *MemoryStore) Stats() Stats {
	hits, misses, rate := s.stats.snapshot()
	return Stats{
		Size:     s.lru.Len(),
		MaxSize:  s.maxSize,
		Hits:     hits,
		Misses:   misses,
		HitRate:  rate,
		Strategy: string(StrategyMemory),
	}
}

// AuthoritativeStats implements Store. The in-memory map is already the
// authority, so this is the same snapshot as Stats.
func (s *MemoryStore) AuthoritativeStats(_ context.Context) Stats {
	return s.Stats()
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	s.lru.Purge()
	return nil
}
