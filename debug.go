package pagetextcache

import (
	"context"
	"log/slog"
)

// debugStore wraps any Store and adds debug logging.
// This allows any backend implementation to have debug logging without
// coupling the debug logic to the backend implementation. Enabled via
// Config.Debug.
type debugStore struct {
	store  Store
	logger *slog.Logger
}

var _ Store = (*debugStore)(nil)

func newDebugStore(store Store, logger *slog.Logger) *debugStore {
	return &debugStore{store: store, logger: logger}
}

func (d *debugStore) Get(ctx context.Context, source any, page int) (*TextContent, bool) {
	content, ok := d.store.Get(ctx, source, page)
	if ok {
		d.logger.Debug("cache get: hit", "page", page, "size", content.EstimatedSize())
	} else {
		d.logger.Debug("cache get: miss", "page", page)
	}
	return content, ok
}

func (d *debugStore) Set(ctx context.Context, source any, page int, content *TextContent) {
	d.logger.Debug("cache set", "page", page, "size", content.EstimatedSize())
	d.store.Set(ctx, source, page, content)
}

func (d *debugStore) Clear(ctx context.Context) {
	d.logger.Debug("cache clear")
	d.store.Clear(ctx)
}

func (d *debugStore) Stats() Stats {
	return d.store.Stats()
}

func (d *debugStore) AuthoritativeStats(ctx context.Context) Stats {
	return d.store.AuthoritativeStats(ctx)
}

func (d *debugStore) Close() error {
	d.logger.Debug("cache close")
	return d.store.Close()
}

// Cleanup delegates when the wrapped store holds expiring entries.
func (d *debugStore) Cleanup(ctx context.Context) int {
	if c, ok := d.store.(Cleaner); ok {
		n := c.Cleanup(ctx)
		d.logger.Debug("cache cleanup", "removed", n)
		return n
	}
	return 0
}

// StorageEstimate delegates when the wrapped store can report one.
func (d *debugStore) StorageEstimate(ctx context.Context) (StorageEstimate, bool) {
	if e, ok := d.store.(StorageEstimator); ok {
		return e.StorageEstimate(ctx)
	}
	return StorageEstimate{}, false
}
