package monitor

import "github.com/rcrowley/go-metrics"

// GoMetricsSink increments named counters in a github.com/rcrowley/go-metrics
// registry, an alternate backend to VMSink for callers already exporting
// go-metrics elsewhere. NewGoMetricsSink uses metrics.DefaultRegistry;
// NewGoMetricsSinkWithRegistry binds a private registry instead.
type GoMetricsSink struct {
	registry metrics.Registry
}

// NewGoMetricsSink returns a Sink backed by go-metrics' default registry.
func NewGoMetricsSink() GoMetricsSink {
	return GoMetricsSink{registry: metrics.DefaultRegistry}
}

// NewGoMetricsSinkWithRegistry returns a Sink backed by a private
// registry, so its counters don't appear in the process-wide default.
func NewGoMetricsSinkWithRegistry(registry metrics.Registry) GoMetricsSink {
	return GoMetricsSink{registry: registry}
}

func (s GoMetricsSink) Increment(counter Counter) {
	metrics.GetOrRegisterCounter(string(counter), s.registry).Inc(1)
}
