// Package transport defines the RPC channel abstraction that Connection
// and the health probe open against a Host. It is deliberately thin:
// the wire codec for whatever operation an application layers on top is
// assumed provided (out of scope here, per the core's boundary), so a
// Channel exposes only what the pool and the probe need — a liveness
// check and a raw request/response round trip — plus Close.
package transport

import (
	"context"

	"github.com/outbain/hectorgo/host"
)

// Channel is one live, request/response capable connection to a Host.
type Channel interface {
	// Probe issues a single trivial RPC (e.g. "describe cluster name")
	// used by the health probe and treated as a liveness check. It
	// never mutates application state.
	Probe(ctx context.Context) error

	// Send issues a single opaque request and returns the raw response
	// bytes. Applications wrap this with whatever request-building DSL
	// they use; this layer only forwards bytes.
	Send(ctx context.Context, req []byte) ([]byte, error)

	// Close tears down the underlying socket. Idempotent.
	Close() error
}

// Factory opens a Channel to a Host, honoring the Host's configured
// socket timeout. It returns the dial error as is if the channel cannot
// be established within that timeout; hostpool wraps it as
// KindTransport.
type Factory interface {
	Dial(ctx context.Context, h host.Host) (Channel, error)
}
