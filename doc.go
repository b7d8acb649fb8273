// Package pagetextcache caches per-page text-extraction results for
// documents, so repeated access to the same page's text avoids redundant
// extraction work.
//
// A Manager owns one active Store selected by strategy: an in-process LRU
// store ("memory"), an embedded SQLite-backed store with expiration
// ("persistent"), or automatic fallback from persistent to memory ("auto").
// Keys are derived from heterogeneous source identities (URLs, raw bytes,
// open document handles) by pkg/keys, so the same logical document maps to
// the same entries regardless of how the call site refers to it.
//
//	cache, err := pagetextcache.New(pagetextcache.Config{
//		Strategy:     pagetextcache.StrategyAuto,
//		DatabasePath: filepath.Join(dir, "pagetext.db"),
//	})
//	if err != nil {
//		return err
//	}
//	defer cache.Close()
//
//	if content, ok := cache.Get(ctx, source, 1); ok {
//		return render(content)
//	}
//
// A Preloader bulk-populates the cache ahead of need:
//
//	pre := pagetextcache.NewPreloader(cache, loader)
//	result, err := pre.Preload(ctx, source, []int{1, 2, 3})
//
// Storage-engine failures never propagate to callers: affected operations
// degrade to misses or no-ops with a logged warning.
package pagetextcache
