package pagetextcache

import (
	"log/slog"
	"time"
)

// Strategy selects which store backs the cache.
type Strategy string

const (
	// StrategyMemory uses the in-process LRU store.
	StrategyMemory = Strategy("memory")
	// StrategyPersistent uses the SQLite-backed store.
	StrategyPersistent = Strategy("persistent")
	// StrategyAuto uses the persistent store when the engine is usable on
	// this host and falls back to memory otherwise. Probed once at
	// construction, not per call.
	StrategyAuto = Strategy("auto")
)

// Defaults applied by Config.withDefaults.
const (
	DefaultMemoryMaxEntries     = 100
	DefaultPersistentMaxEntries = 1000
	DefaultExpirationDays       = 7
	DefaultDatabasePath         = "pagetext.db"
	DefaultSchemaVersion        = 1
)

// flushDelay is how long the persistent store accumulates deferred
// access-stat updates and stale-entry removals before writing them in one
// transaction.
const flushDelay = 100 * time.Millisecond

// Config selects a strategy and tunes the backing stores. The zero value is
// usable: it resolves to the auto strategy with all defaults. A Config is
// read only at construction and strategy-switch time.
type Config struct {
	Strategy Strategy

	// MemoryMaxEntries bounds the volatile store's entry count.
	MemoryMaxEntries int

	// DatabasePath is the SQLite database file for the persistent store.
	DatabasePath string
	// SchemaVersion is written to the database's user_version pragma.
	SchemaVersion int
	// ExpirationDays is the lifetime of a persistent entry from creation.
	ExpirationDays int
	// PersistentMaxEntries bounds the persistent store's entry count.
	// Crossing it evicts the oldest ~10% of entries by last access.
	PersistentMaxEntries int

	// ExactKeys switches byte-buffer key derivation from the sampled xxhash
	// fingerprint to a full SHA-256 digest.
	ExactKeys bool

	// Debug wraps the active store with per-operation debug logging.
	Debug bool

	// Logger receives degradation warnings and debug output.
	// Nil means slog.Default().
	Logger *slog.Logger

	// Clock overrides the time source. Nil means the wall clock.
	Clock Clock
}

func (c Config) withDefaults() Config {
	if c.Strategy == "" {
		c.Strategy = StrategyAuto
	}
	if c.MemoryMaxEntries <= 0 {
		c.MemoryMaxEntries = DefaultMemoryMaxEntries
	}
	if c.DatabasePath == "" {
		c.DatabasePath = DefaultDatabasePath
	}
	if c.SchemaVersion <= 0 {
		c.SchemaVersion = DefaultSchemaVersion
	}
	if c.ExpirationDays <= 0 {
		c.ExpirationDays = DefaultExpirationDays
	}
	if c.PersistentMaxEntries <= 0 {
		c.PersistentMaxEntries = DefaultPersistentMaxEntries
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Clock == nil {
		c.Clock = realClock{}
	}
	return c
}

// expiration returns the configured entry lifetime.
func (c Config) expiration() time.Duration {
	return time.Duration(c.ExpirationDays) * 24 * time.Hour
}
