// Package conn implements Connection: a single live RPC channel to one
// Host plus the observable state flags the pool and the executor use
// to decide whether it is safe to keep using — borrowed/released,
// closed, and whether an operation on it has ever errored.
package conn

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/outbain/hectorgo/host"
	"github.com/outbain/hectorgo/transport"
)

var serialCounter atomic.Int64

// Connection owns one open transport.Channel to exactly one Host. It
// never holds a back-pointer to the pool that created it: release and
// invalidate route by Host identity instead, so the pool <-> connection
// relationship has no cycle.
type Connection struct {
	serial  int64
	hostKey host.Key
	channel transport.Channel

	closed    bool
	hasErrors bool
	released  bool
}

// Open dials a fresh Connection to h using factory; the factory applies
// h's configured socket timeout to the dial.
func Open(ctx context.Context, h host.Host, factory transport.Factory) (*Connection, error) {
	ch, err := factory.Dial(ctx, h)
	if err != nil {
		return nil, err
	}
	return &Connection{
		serial:  serialCounter.Add(1),
		hostKey: h.Key(),
		channel: ch,
	}, nil
}

// Serial is this Connection's process-unique diagnostic serial number.
func (c *Connection) Serial() int64 { return c.serial }

// Host is the identity of the Host this Connection talks to. Routing a
// release/invalidate back to the owning pool goes through this, never
// through a stored pointer to the pool itself.
func (c *Connection) Host() host.Key { return c.hostKey }

// Channel exposes the underlying transport so callers can run whatever
// RPC they need. It stays set after Close, when it refers to the closed
// channel.
func (c *Connection) Channel() transport.Channel { return c.channel }

// Close tears down the underlying channel. Idempotent.
func (c *Connection) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	if c.channel == nil {
		return nil
	}
	return c.channel.Close()
}

// MarkError flags this Connection as having observed a channel error. A
// borrower that sees an error on the underlying channel must call this
// before releasing so the pool destroys rather than recycles it.
func (c *Connection) MarkError() { c.hasErrors = true }

// MarkClosed flags this Connection as closed without going through
// Close (used when the caller already knows the underlying socket died).
func (c *Connection) MarkClosed() { c.closed = true }

// MarkBorrowed clears the released flag; called by the pool when
// handing a Connection to a caller.
func (c *Connection) MarkBorrowed() { c.released = false }

// MarkReleased sets the released flag; called by the pool once a
// Connection has been returned. A second release is a programming
// error the pool rejects.
func (c *Connection) MarkReleased() { c.released = true }

func (c *Connection) IsClosed() bool   { return c.closed }
func (c *Connection) HasErrors() bool  { return c.hasErrors }
func (c *Connection) IsReleased() bool { return c.released }

// IsStale reports whether this Connection must not be reused: once
// closed or errored, it is either destroyed or on its way to being
// destroyed, and never transitions back.
func (c *Connection) IsStale() bool {
	return c.closed || c.hasErrors
}

func (c *Connection) String() string {
	return fmt.Sprintf("Connection<%s-%d>", c.hostKey, c.serial)
}
