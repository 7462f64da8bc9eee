package monitor

import (
	"testing"

	"github.com/rcrowley/go-metrics"
)

func TestGoMetricsSinkWithRegistryIncrementsIsolatedCounter(t *testing.T) {
	registry := metrics.NewRegistry()
	sink := NewGoMetricsSinkWithRegistry(registry)

	sink.Increment(RecoverableUnavailableExceptions)
	sink.Increment(RecoverableUnavailableExceptions)
	sink.Increment(RecoverableUnavailableExceptions)

	counter := registry.Get(string(RecoverableUnavailableExceptions)).(metrics.Counter)
	if got := counter.Count(); got != 3 {
		t.Fatalf("counter = %d, want 3", got)
	}
}
