// Package monitor is the counter-increment collaborator the executor
// reports recoverable-error diagnostics to. The core only consumes the
// Sink interface — metric export/scraping is out of scope — but two
// concrete Sinks are provided, one on top of
// github.com/VictoriaMetrics/metrics and one on top of
// github.com/rcrowley/go-metrics, so the counters are observable
// without every caller having to wire their own.
package monitor

// Counter names a diagnostic counter the executor increments.
type Counter string

const (
	RecoverableLBConnectErrors       Counter = "hectorgo_recoverable_lb_connect_errors_total"
	RecoverableTimedOutExceptions    Counter = "hectorgo_recoverable_timed_out_exceptions_total"
	RecoverableUnavailableExceptions Counter = "hectorgo_recoverable_unavailable_exceptions_total"
	RecoverableTransportExceptions   Counter = "hectorgo_recoverable_transport_exceptions_total"
)

// Sink is incremented exactly once per recoverable occurrence by the
// failover executor and the cluster pool's host-list borrow fallback.
type Sink interface {
	Increment(counter Counter)
}

// NopSink discards every increment. It is the default when no Sink is
// configured, so the core never needs a nil check on its hot path.
type NopSink struct{}

func (NopSink) Increment(Counter) {}
