package monitor

import "github.com/VictoriaMetrics/metrics"

// VMSink increments named counters in a github.com/VictoriaMetrics/metrics
// registry. The zero value uses the global default registry;
// NewVMSinkWithSet binds a private *metrics.Set instead, so tests and multiple Cluster
// instances in the same process don't share counters.
type VMSink struct {
	set *metrics.Set
}

// NewVMSink returns a Sink backed by the global VictoriaMetrics registry,
// the one exposed by metrics.WritePrometheus for scraping.
func NewVMSink() VMSink {
	return VMSink{}
}

// NewVMSinkWithSet returns a Sink backed by a private registry, so its
// counters don't appear in the process-wide default export.
func NewVMSinkWithSet(set *metrics.Set) VMSink {
	return VMSink{set: set}
}

func (s VMSink) Increment(counter Counter) {
	if s.set != nil {
		s.set.GetOrCreateCounter(string(counter)).Inc()
		return
	}
	metrics.GetOrCreateCounter(string(counter)).Inc()
}
