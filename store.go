package pagetextcache

import "context"

// Store defines the interface for cache storage backends.
// Implementations can be swapped to use different storage mechanisms; the
// Manager selects one per its configured strategy and delegates uniformly.
//
// Storage-engine failures never escape a Store: every operation degrades to a
// miss or no-op with a logged warning, so a broken cache can only slow the
// caller down, never fail it.
type Store interface {
	// Get returns the cached text content for a page of the given source,
	// or false on a miss. A hit updates the entry's access statistics.
	Get(ctx context.Context, source any, page int) (*TextContent, bool)

	// Set caches the text content for a page, evicting older entries first
	// if the store is at capacity.
	Set(ctx context.Context, source any, page int, content *TextContent)

	// Clear removes all entries and resets the hit/miss counters.
	Clear(ctx context.Context)

	// Stats returns a fast, possibly stale snapshot of the store's counters.
	Stats() Stats

	// AuthoritativeStats returns a snapshot whose size comes from the
	// backing engine rather than any in-memory counter.
	AuthoritativeStats(ctx context.Context) Stats

	// Close performs any cleanup operations needed by the backend.
	Close() error
}

// Cleaner is implemented by stores that hold expiring entries.
type Cleaner interface {
	// Cleanup removes every expired entry and returns how many were removed.
	// Intended for an external scheduler; reads never wait on it.
	Cleanup(ctx context.Context) int
}

// StorageEstimate reports how much backing storage a persistent store uses.
type StorageEstimate struct {
	// UsedBytes is the size of the database file on disk.
	UsedBytes int64 `json:"used_bytes"`
	// PageCount and PageSize are the engine's own page accounting.
	PageCount int64 `json:"page_count"`
	PageSize  int64 `json:"page_size"`
}

// StorageEstimator is implemented by stores that can report a storage
// estimate. The second return is false when the estimate is unavailable.
type StorageEstimator interface {
	StorageEstimate(ctx context.Context) (StorageEstimate, bool)
}
