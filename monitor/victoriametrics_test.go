package monitor

import (
	"testing"

	"github.com/VictoriaMetrics/metrics"
)

func TestVMSinkWithSetIncrementsIsolatedCounter(t *testing.T) {
	set := metrics.NewSet()
	sink := NewVMSinkWithSet(set)

	sink.Increment(RecoverableTimedOutExceptions)
	sink.Increment(RecoverableTimedOutExceptions)

	got := set.GetOrCreateCounter(string(RecoverableTimedOutExceptions)).Get()
	if got != 2 {
		t.Fatalf("counter = %d, want 2", got)
	}
}

func TestVMSinkDefaultUsesGlobalRegistry(t *testing.T) {
	sink := NewVMSink()
	before := metrics.GetOrCreateCounter(string(RecoverableLBConnectErrors)).Get()

	sink.Increment(RecoverableLBConnectErrors)

	after := metrics.GetOrCreateCounter(string(RecoverableLBConnectErrors)).Get()
	if after != before+1 {
		t.Fatalf("counter = %d, want %d", after, before+1)
	}
}
