package failover

import (
	"context"
	"time"

	"github.com/outbain/hectorgo/conn"
	"github.com/outbain/hectorgo/herrors"
	"github.com/outbain/hectorgo/host"
	"github.com/outbain/hectorgo/monitor"
)

// Operation is an application-supplied unit of work run against a
// borrowed Connection at a given consistency level. Implementations
// return an error the Executor's Classifier can classify; the
// DefaultClassifier takes the Kind of a returned *herrors.Error as is.
type Operation interface {
	Run(ctx context.Context, c *conn.Connection, consistency ConsistencyLevel) error
}

// OperationFunc adapts a function to the Operation interface.
type OperationFunc func(ctx context.Context, c *conn.Connection, consistency ConsistencyLevel) error

func (f OperationFunc) Run(ctx context.Context, c *conn.Connection, consistency ConsistencyLevel) error {
	return f(ctx, c, consistency)
}

// HostPicker is the Cluster Pool collaborator the Executor needs:
// least-active selection for the first attempt, exclusion-aware
// selection for retries, and release/invalidate routed by the
// Connection's own Host identity.
type HostPicker interface {
	BorrowLeastActive(ctx context.Context) (*conn.Connection, host.Key, error)
	BorrowExcluding(ctx context.Context, tried map[host.Key]bool) (*conn.Connection, host.Key, error)
	Release(c *conn.Connection) error
	Invalidate(c *conn.Connection) error
}

// Executor wraps an Operation in the retry loop described by C6: borrow,
// run, classify on failure, consult the Policy, retry on a different
// host until the retry budget is exhausted.
type Executor struct {
	picker     HostPicker
	policy     Policy
	classifier herrors.Classifier
	monitor    monitor.Sink
}

// NewExecutor builds an Executor over picker, enforcing policy and
// classifying failures with classifier. sink receives exactly one
// increment per recoverable failure.
func NewExecutor(picker HostPicker, policy Policy, classifier herrors.Classifier, sink monitor.Sink) *Executor {
	if sink == nil {
		sink = monitor.NopSink{}
	}
	return &Executor{picker: picker, policy: policy, classifier: classifier, monitor: sink}
}

// Run executes op, retrying per the configured Policy. Every borrow is
// paired with exactly one Release or Invalidate, including on every
// failure path.
func (e *Executor) Run(ctx context.Context, op Operation, consistency ConsistencyLevel) error {
	tried := make(map[host.Key]bool)
	attempt := 0

	var c *conn.Connection
	var lastErr error

	for {
		var cur host.Key
		var err error
		if c == nil {
			if attempt == 0 {
				c, cur, err = e.picker.BorrowLeastActive(ctx)
			} else {
				c, cur, err = e.picker.BorrowExcluding(ctx, tried)
			}
			if err != nil {
				return err
			}
			if tried[cur] && e.policy.MaxRetries() == unlimitedRetries {
				// Every live host has been tried once: TryAll gives up.
				_ = e.picker.Release(c)
				return lastErr
			}
			tried[cur] = true
		}

		level := consistency
		if degraded, ok := e.policy.CheckConsistency(consistency); ok {
			level = degraded
		}

		runErr := op.Run(ctx, c, level)
		if runErr == nil {
			return e.picker.Release(c)
		}

		kind := e.classifier.Classify(runErr)
		if kind == herrors.KindApplication {
			_ = e.picker.Release(c)
			return runErr
		}

		c.MarkError()
		_ = e.picker.Invalidate(c)
		c = nil
		lastErr = runErr

		switch kind {
		case herrors.KindTimeout:
			e.monitor.Increment(monitor.RecoverableTimedOutExceptions)
			e.policy.HandleTimeout(attempt)
		case herrors.KindUnavailable:
			e.monitor.Increment(monitor.RecoverableUnavailableExceptions)
			e.policy.HandleUnavailable(attempt, level)
		case herrors.KindTransport:
			e.monitor.Increment(monitor.RecoverableTransportExceptions)
			e.policy.HandleTransportError(attempt, level)
		default:
			// PoolExhausted, Fatal: not retried by the core.
			return runErr
		}

		attempt++
		if attempt > e.policy.MaxRetries() {
			return lastErr
		}

		if d := e.policy.SleepBetweenHosts(); d > 0 {
			timer := time.NewTimer(d)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			}
		}
	}
}
