package pagetextcache

import "sync/atomic"

// Stats is a point-in-time snapshot of a store's counters.
//
// Size is the number of entries currently held. For the persistent store the
// fast path reports an incrementally maintained counter that may lag the
// engine briefly; AuthoritativeStats re-queries the engine instead.
type Stats struct {
	Size     int     `json:"size"`
	MaxSize  int     `json:"max_size"`
	Hits     int64   `json:"hits"`
	Misses   int64   `json:"misses"`
	HitRate  float64 `json:"hit_rate"`
	Strategy string  `json:"strategy"`
}

// counters holds a store's lifetime hit/miss totals. Atomics keep reads off
// any lock so stats snapshots never contend with the hot path.
type counters struct {
	hits   atomic.Int64
	misses atomic.Int64
}

func (c *counters) hit()  { c.hits.Add(1) }
func (c *counters) miss() { c.misses.Add(1) }

func (c *counters) reset() {
	c.hits.Store(0)
	c.misses.Store(0)
}

// snapshot fills the hit/miss portion of a Stats value.
func (c *counters) snapshot() (hits, misses int64, rate float64) {
	hits = c.hits.Load()
	misses = c.misses.Load()
	if total := hits + misses; total > 0 {
		rate = float64(hits) / float64(total)
	}
	return hits, misses, rate
}
