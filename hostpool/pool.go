// Package hostpool implements the bounded, thread-safe pool of
// Connections for a single Host: lazy creation up to the host's
// configured cap, a bounded wait on exhaustion, and the
// release/invalidate bookkeeping that keeps active+idle within that
// cap, with FIFO wakeup of borrowers blocked on a saturated pool.
package hostpool

import (
	"context"
	"fmt"
	"sync"

	"github.com/outbain/hectorgo/conn"
	"github.com/outbain/hectorgo/herrors"
	"github.com/outbain/hectorgo/host"
	"github.com/outbain/hectorgo/logging"
	"github.com/outbain/hectorgo/transport"
)

var log = logging.Get("hostpool")

// Stats is a point-in-time snapshot of a Pool's counters.
type Stats struct {
	NumActive     int
	NumIdle       int
	NumBlocked    int
	IsExhausted   bool
}

// Pool is the exclusive owner of every Connection it has ever opened
// to one Host. All state transitions are serialized by mu; no I/O call
// (dial, close, probe) ever happens while mu is held.
type Pool struct {
	h       host.Host
	factory transport.Factory

	mu        sync.Mutex
	idle      []*conn.Connection
	borrowed  map[*conn.Connection]struct{}
	active    int
	waiters   []chan struct{}
	blocked   int
	detached  bool
}

// New creates an empty Pool for h. No Connections are opened until the
// first Borrow.
func New(h host.Host, factory transport.Factory) *Pool {
	return &Pool{
		h:        h,
		factory:  factory,
		borrowed: make(map[*conn.Connection]struct{}),
	}
}

// Host is the identity of the Host this Pool serves.
func (p *Pool) Host() host.Host { return p.h }

// Borrow returns an idle Connection if one is available, lazily opens
// a fresh one if the pool has not yet reached its cap, or blocks the
// caller up to the host's borrow timeout. ctx is honored in addition
// to the borrow timeout, whichever elapses first.
func (p *Pool) Borrow(ctx context.Context) (*conn.Connection, error) {
	waitCtx, cancel := context.WithTimeout(ctx, p.h.BorrowTimeout())
	defer cancel()

	p.mu.Lock()
	for {
		if p.detached {
			p.mu.Unlock()
			return nil, herrors.Fatal(fmt.Errorf("hostpool: borrow from detached pool for %s", p.h.Key()))
		}

		if n := len(p.idle); n > 0 {
			c := p.idle[n-1]
			p.idle = p.idle[:n-1]
			p.active++
			p.borrowed[c] = struct{}{}
			p.mu.Unlock()
			c.MarkBorrowed()
			return c, nil
		}

		if p.active < p.h.MaxPoolSize() {
			p.active++
			p.mu.Unlock()

			c, err := conn.Open(ctx, p.h, p.factory)
			if err != nil {
				p.mu.Lock()
				p.active--
				p.wakeOneLocked()
				p.mu.Unlock()
				return nil, herrors.Transport(err)
			}

			p.mu.Lock()
			p.borrowed[c] = struct{}{}
			p.mu.Unlock()
			c.MarkBorrowed()
			return c, nil
		}

		wake := make(chan struct{})
		p.waiters = append(p.waiters, wake)
		p.blocked++
		p.mu.Unlock()

		select {
		case <-wake:
			p.mu.Lock()
			p.blocked--
			// Loop back around: the slot that woke us may have been
			// claimed by a faster goroutine, so re-check rather than
			// assume.
		case <-waitCtx.Done():
			p.mu.Lock()
			p.blocked--
			p.removeWaiterLocked(wake)
			p.mu.Unlock()
			return nil, herrors.PoolExhausted(fmt.Errorf("hostpool: borrow timed out after %s for %s", p.h.BorrowTimeout(), p.h.Key()))
		}
	}
}

// Release returns c to the idle set, or destroys it if it is stale or
// the idle set is already at maxIdle. Releasing a Connection that does
// not belong to this pool's Host, or releasing the same Connection
// twice, is a programming error.
func (p *Pool) Release(c *conn.Connection) error {
	p.mu.Lock()
	if c.Host() != p.h.Key() {
		p.mu.Unlock()
		return herrors.Fatal(fmt.Errorf("hostpool: release of %s to pool for %s", c, p.h.Key()))
	}
	if c.IsReleased() {
		p.mu.Unlock()
		return herrors.Fatal(fmt.Errorf("hostpool: double release of %s", c))
	}

	c.MarkReleased()
	delete(p.borrowed, c)
	p.active--

	if c.IsStale() || len(p.idle) >= p.h.MaxIdle() {
		p.wakeOneLocked()
		p.mu.Unlock()
		return c.Close()
	}

	p.idle = append(p.idle, c)
	p.wakeOneLocked()
	p.mu.Unlock()
	return nil
}

// Invalidate unconditionally destroys c, regardless of its staleness,
// and wakes one waiter. Safe to call on a borrowed or an idle
// Connection.
func (p *Pool) Invalidate(c *conn.Connection) error {
	p.mu.Lock()
	if c.Host() != p.h.Key() {
		p.mu.Unlock()
		return herrors.Fatal(fmt.Errorf("hectorgo: invalidate of %s on pool for %s", c, p.h.Key()))
	}

	wasIdle := p.removeFromIdleLocked(c)
	if !wasIdle && !c.IsReleased() {
		c.MarkReleased()
		delete(p.borrowed, c)
		p.active--
	}
	p.wakeOneLocked()
	p.mu.Unlock()

	return c.Close()
}

// InvalidateAll destroys every idle and every currently-borrowed
// Connection and marks the pool detached: further Borrow calls fail
// fatally. Borrowers holding a Connection at the time of this call may
// still call Release or Invalidate on it afterward — they will observe
// it as stale and it will be destroyed cleanly rather than recycled.
func (p *Pool) InvalidateAll() {
	p.mu.Lock()
	p.detached = true

	idle := p.idle
	p.idle = nil

	outstanding := make([]*conn.Connection, 0, len(p.borrowed))
	for c := range p.borrowed {
		outstanding = append(outstanding, c)
	}

	for _, w := range p.waiters {
		close(w)
	}
	p.waiters = nil
	p.mu.Unlock()

	for _, c := range idle {
		if err := c.Close(); err != nil {
			log.Warningf("close idle connection %s during invalidateAll: %v", c, err)
		}
	}
	for _, c := range outstanding {
		if err := c.Close(); err != nil {
			log.Warningf("close borrowed connection %s during invalidateAll: %v", c, err)
		}
	}
}

// Stats snapshots the pool's counters without blocking on any waiter.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		NumActive:   p.active,
		NumIdle:     len(p.idle),
		NumBlocked:  p.blocked,
		IsExhausted: p.active == p.h.MaxPoolSize() && len(p.idle) == 0,
	}
}

// wakeOneLocked pops the oldest waiter, if any, and wakes it. Callers
// must hold mu.
func (p *Pool) wakeOneLocked() {
	if len(p.waiters) == 0 {
		return
	}
	w := p.waiters[0]
	p.waiters = p.waiters[1:]
	close(w)
}

// removeWaiterLocked removes wake from the waiter queue if it is still
// present (it may already have been dequeued by wakeOneLocked).
// Callers must hold mu.
func (p *Pool) removeWaiterLocked(wake chan struct{}) {
	for i, w := range p.waiters {
		if w == wake {
			p.waiters = append(p.waiters[:i], p.waiters[i+1:]...)
			return
		}
	}
}

// removeFromIdleLocked removes c from the idle set if present. Callers
// must hold mu.
func (p *Pool) removeFromIdleLocked(c *conn.Connection) bool {
	for i, ic := range p.idle {
		if ic == c {
			p.idle = append(p.idle[:i], p.idle[i+1:]...)
			return true
		}
	}
	return false
}
