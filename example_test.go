package pagetextcache_test

import (
	"context"
	"fmt"

	pagetextcache "github.com/richardartoul/pagetextcache"
)

func Example() {
	ctx := context.Background()

	cache, err := pagetextcache.New(pagetextcache.Config{
		Strategy: pagetextcache.StrategyMemory,
	})
	if err != nil {
		panic(err)
	}
	defer cache.Close()

	cache.Set(ctx, "report.pdf", 1, &pagetextcache.TextContent{
		Items: []pagetextcache.TextItem{{Str: "Quarterly results"}},
	})

	if content, ok := cache.Get(ctx, "report.pdf", 1); ok {
		fmt.Println(content.Items[0].Str)
	}

	stats := cache.Stats()
	fmt.Printf("size=%d hits=%d misses=%d\n", stats.Size, stats.Hits, stats.Misses)

	// Output:
	// Quarterly results
	// size=1 hits=1 misses=0
}
