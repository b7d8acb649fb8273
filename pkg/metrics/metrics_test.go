package metrics

import (
	"testing"
	"time"
)

func TestLatencyTracker(t *testing.T) {
	tracker := NewLatencyTracker(0.01)

	// Record some sample latencies for the cache operations we track
	operations := []string{OpGet, OpSet, OpCleanup, OpPreload}

	for _, op := range operations {
		// Record a variety of latencies
		tracker.Record(op, 1*time.Millisecond)
		tracker.Record(op, 5*time.Millisecond)
		tracker.Record(op, 10*time.Millisecond)
		tracker.Record(op, 50*time.Millisecond)
		tracker.Record(op, 100*time.Millisecond)
	}

	for _, op := range operations {
		stats, err := tracker.GetStats(op)
		if err != nil {
			t.Errorf("Failed to get stats for %s: %v", op, err)
			continue
		}

		if stats.Count != 5 {
			t.Errorf("Expected count 5 for %s, got %d", op, stats.Count)
		}

		if stats.Min < 0.9 || stats.Min > 1.1 {
			t.Errorf("Expected min ~1ms for %s, got %.2fms", op, stats.Min)
		}

		if stats.Max < 99 || stats.Max > 101 {
			t.Errorf("Expected max ~100ms for %s, got %.2fms", op, stats.Max)
		}

		// P50 should be around 10ms
		if stats.P50 < 5 || stats.P50 > 15 {
			t.Errorf("Expected p50 ~10ms for %s, got %.2fms", op, stats.P50)
		}

		// P99 should be reasonably high (we only have 5 samples, so it's approximate)
		if stats.P99 < 40 || stats.P99 > 110 {
			t.Errorf("Expected p99 between 40-110ms for %s, got %.2fms", op, stats.P99)
		}
	}

	allStats := tracker.GetAllStats()
	if len(allStats) != len(operations) {
		t.Errorf("Expected %d operations in GetAllStats, got %d", len(operations), len(allStats))
	}

	_, err := tracker.GetStats("nonexistent")
	if err == nil {
		t.Error("Expected error for non-existent operation, got nil")
	}
}

func TestLatencyTrackerRecordFunc(t *testing.T) {
	tracker := NewLatencyTracker(0.01)

	err := tracker.RecordFunc(OpGet, func() error {
		time.Sleep(10 * time.Millisecond)
		return nil
	})

	if err != nil {
		t.Errorf("RecordFunc returned error: %v", err)
	}

	stats, err := tracker.GetStats(OpGet)
	if err != nil {
		t.Fatalf("Failed to get stats: %v", err)
	}

	if stats.Count != 1 {
		t.Errorf("Expected count 1, got %d", stats.Count)
	}

	// Should be at least 10ms
	if stats.Min < 9 {
		t.Errorf("Expected min >= 9ms, got %.2fms", stats.Min)
	}
}

func TestStatsString(t *testing.T) {
	stats := Stats{
		Operation: OpSet,
		Count:     100,
		Min:       1.5,
		P50:       10.2,
		P90:       50.7,
		P95:       75.3,
		P99:       99.1,
		Max:       120.5,
	}

	str := stats.String()
	expected := "  set (n=100): min=1.50ms p50=10.20ms p90=50.70ms p95=75.30ms p99=99.10ms max=120.50ms"
	if str != expected {
		t.Errorf("Expected:\n%s\nGot:\n%s", expected, str)
	}

	emptyStats := Stats{Operation: OpClear}
	emptyStr := emptyStats.String()
	expectedEmpty := "  clear: no data"
	if emptyStr != expectedEmpty {
		t.Errorf("Expected:\n%s\nGot:\n%s", expectedEmpty, emptyStr)
	}
}

func BenchmarkLatencyTrackerRecord(b *testing.B) {
	tracker := NewLatencyTracker(0.01)
	duration := 10 * time.Millisecond

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		tracker.Record(OpGet, duration)
	}
}
