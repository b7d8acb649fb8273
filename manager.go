package pagetextcache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/richardartoul/pagetextcache/pkg/metrics"
)

// Manager owns exactly one active Store at a time, chosen by the configured
// strategy, and presents the uniform cache contract regardless of backend.
// Construct one per consuming component; there is deliberately no package
// level default instance, so tests and callers can run isolated caches.
type Manager struct {
	cfg     Config
	logger  *slog.Logger
	tracker *metrics.LatencyTracker

	mu          sync.RWMutex
	store       Store
	strategy    Strategy // configured strategy, possibly auto
	backendType Strategy // what auto resolved to: memory or persistent
	supported   bool     // whether the persistent engine probed usable
}

var _ Store = (*Manager)(nil)

// StorageInfo describes the manager's current backend selection.
type StorageInfo struct {
	Strategy         Strategy         `json:"strategy"`
	BackendType      Strategy         `json:"backend_type"`
	BackendSupported bool             `json:"backend_supported"`
	Estimate         *StorageEstimate `json:"estimate,omitempty"`
}

// New creates a Manager for the given configuration. The auto strategy
// probes the persistent engine once, here, and falls back to the memory
// store if it is unusable.
func New(cfg Config) (*Manager, error) {
	cfg = cfg.withDefaults()

	m := &Manager{
		cfg:     cfg,
		logger:  cfg.Logger,
		tracker: metrics.NewLatencyTracker(0.01),
	}
	if err := m.install(cfg.Strategy); err != nil {
		return nil, err
	}
	return m, nil
}

// install resolves a strategy to a freshly constructed store and makes it
// the active one. Caller must not hold m.mu.
func (m *Manager) install(strategy Strategy) error {
	store, backendType, supported, err := m.buildStore(strategy)
	if err != nil {
		return err
	}
	if m.cfg.Debug {
		store = newDebugStore(store, m.logger)
	}

	m.mu.Lock()
	m.store = store
	m.strategy = strategy
	m.backendType = backendType
	m.supported = supported
	m.mu.Unlock()
	return nil
}

func (m *Manager) buildStore(strategy Strategy) (Store, Strategy, bool, error) {
	switch strategy {
	case StrategyMemory:
		return NewMemoryStore(m.cfg, m.logger), StrategyMemory, m.probePersistent(), nil

	case StrategyPersistent:
		s := NewSQLiteStore(m.cfg, m.logger)
		// The store degrades internally if the engine turns out unusable;
		// report supportedness from a real probe either way.
		supported := s.available(context.Background())
		return s, StrategyPersistent, supported, nil

	case StrategyAuto:
		s := NewSQLiteStore(m.cfg, m.logger)
		if s.available(context.Background()) {
			return s, StrategyPersistent, true, nil
		}
		s.Close()
		m.logger.Warn("persistent engine unavailable, auto strategy falling back to memory",
			"path", m.cfg.DatabasePath)
		return NewMemoryStore(m.cfg, m.logger), StrategyMemory, false, nil

	default:
		return nil, "", false, fmt.Errorf("%w: %q", ErrUnknownStrategy, strategy)
	}
}

// probePersistent checks that the embedded engine works on this host without
// touching the configured database file. An in-memory database exercises the
// same engine with no disk side effects.
func (m *Manager) probePersistent() bool {
	cfg := m.cfg
	cfg.DatabasePath = ":memory:"
	s := NewSQLiteStore(cfg, m.logger)
	defer s.Close()
	return s.available(context.Background())
}

// Store returns the active store. Callers normally go through the Manager's
// own Store methods, which add latency tracking.
func (m *Manager) Store() Store {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.store
}

// Strategy returns the configured strategy, which may be auto.
func (m *Manager) Strategy() Strategy {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.strategy
}

// BackendType returns the concrete backend in use: memory or persistent.
func (m *Manager) BackendType() Strategy {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.backendType
}

// SwitchStrategy replaces the active store with a freshly constructed one
// for the new strategy. No-op if the target equals the current strategy.
//
// Entries are not migrated or merged from the old store: switching is a
// cold swap, and the new store starts empty (or with whatever the persistent
// database already held). Documented limitation, not an oversight.
func (m *Manager) SwitchStrategy(strategy Strategy) error {
	m.mu.RLock()
	current := m.strategy
	old := m.store
	m.mu.RUnlock()

	if strategy == current {
		return nil
	}

	if err := m.install(strategy); err != nil {
		return err
	}

	if err := old.Close(); err != nil {
		m.logger.Warn("failed to close previous cache store", "error", err)
	}
	m.logger.Info("cache strategy switched", "from", current, "to", strategy)
	return nil
}

// Get implements Store.
func (m *Manager) Get(ctx context.Context, source any, page int) (*TextContent, bool) {
	start := time.Now()
	content, ok := m.Store().Get(ctx, source, page)
	m.tracker.Record(metrics.OpGet, time.Since(start))
	return content, ok
}

// Set implements Store.
func (m *Manager) Set(ctx context.Context, source any, page int, content *TextContent) {
	start := time.Now()
	m.Store().Set(ctx, source, page, content)
	m.tracker.Record(metrics.OpSet, time.Since(start))
}

// Clear implements Store.
func (m *Manager) Clear(ctx context.Context) {
	start := time.Now()
	m.Store().Clear(ctx)
	m.tracker.Record(metrics.OpClear, time.Since(start))
}

// Stats implements Store.
func (m *Manager) Stats() Stats {
	return m.Store().Stats()
}

// AuthoritativeStats implements Store.
func (m *Manager) AuthoritativeStats(ctx context.Context) Stats {
	return m.Store().AuthoritativeStats(ctx)
}

// Cleanup removes expired entries when the active store holds any.
// For the memory backend it is a no-op returning zero.
func (m *Manager) Cleanup(ctx context.Context) int {
	start := time.Now()
	defer func() { m.tracker.Record(metrics.OpCleanup, time.Since(start)) }()

	if c, ok := m.Store().(Cleaner); ok {
		return c.Cleanup(ctx)
	}
	return 0
}

// StorageInfo reports the current strategy, the concrete backend, whether the
// persistent engine is supported on this host, and a storage estimate when
// the backend can provide one.
func (m *Manager) StorageInfo(ctx context.Context) StorageInfo {
	m.mu.RLock()
	info := StorageInfo{
		Strategy:         m.strategy,
		BackendType:      m.backendType,
		BackendSupported: m.supported,
	}
	store := m.store
	m.mu.RUnlock()

	if e, ok := store.(StorageEstimator); ok {
		if est, ok := e.StorageEstimate(ctx); ok {
			info.Estimate = &est
		}
	}
	return info
}

// LatencyStats returns latency quantiles for each cache operation recorded
// through this manager.
func (m *Manager) LatencyStats() []metrics.Stats {
	return m.tracker.GetAllStats()
}

// Close implements Store.
func (m *Manager) Close() error {
	return m.Store().Close()
}
