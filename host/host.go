// Package host describes a single node of the cluster: its network
// identity and the per-host tunables that govern how the pool talks to
// it. A Host is an immutable value; two Hosts with the same address and
// port are interchangeable wherever a Host is used as a map key.
package host

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Default tunables applied when a Host is built without an explicit
// configurator.
const (
	DefaultPort          = 9170
	DefaultMaxPoolSize    = 50
	DefaultMaxIdle        = 25
	DefaultBorrowTimeout  = 100 * time.Millisecond
	DefaultSocketTimeout  = 4 * time.Second
	DefaultUseFramed      = true
)

// Key is the comparable identity of a Host: address and port. It is the
// type used for map lookups so that Host's tunables can vary without
// breaking the "two Hosts are equal iff address and port match"
// invariant.
type Key struct {
	Address string
	Port    int
}

func (k Key) String() string {
	return fmt.Sprintf("%s:%d", k.Address, k.Port)
}

// Host is the immutable identity plus tunables of one cluster member.
type Host struct {
	key Key

	maxPoolSize   int
	maxIdle       int
	borrowTimeout time.Duration
	socketTimeout time.Duration
	useFramed     bool
}

// New builds a Host from an address and port using the default
// tunables. Use the With* functions to override individual tunables.
func New(address string, port int, opts ...Option) Host {
	h := Host{
		key:           Key{Address: address, Port: port},
		maxPoolSize:   DefaultMaxPoolSize,
		maxIdle:       DefaultMaxIdle,
		borrowTimeout: DefaultBorrowTimeout,
		socketTimeout: DefaultSocketTimeout,
		useFramed:     DefaultUseFramed,
	}
	for _, opt := range opts {
		opt(&h)
	}
	return h
}

// Parse builds a Host from a combined "address:port" string. It splits
// on the last colon so that IPv6-literal addresses (which themselves
// contain colons) are tolerated.
func Parse(addrPort string, opts ...Option) (Host, error) {
	idx := strings.LastIndex(addrPort, ":")
	if idx < 0 || idx == len(addrPort)-1 {
		return Host{}, fmt.Errorf("host: %q is not in \"address:port\" form", addrPort)
	}
	address := addrPort[:idx]
	port, err := strconv.Atoi(addrPort[idx+1:])
	if err != nil {
		return Host{}, fmt.Errorf("host: invalid port in %q: %w", addrPort, err)
	}
	return New(address, port, opts...), nil
}

// Option configures a tunable of a Host at construction time.
type Option func(*Host)

// WithMaxPoolSize overrides the per-host pool's active connection cap.
func WithMaxPoolSize(n int) Option {
	return func(h *Host) { h.maxPoolSize = n }
}

// WithMaxIdle overrides the per-host pool's idle shrink target.
func WithMaxIdle(n int) Option {
	return func(h *Host) { h.maxIdle = n }
}

// WithBorrowTimeout overrides how long a borrow() blocks on a saturated pool.
func WithBorrowTimeout(d time.Duration) Option {
	return func(h *Host) { h.borrowTimeout = d }
}

// WithSocketTimeout overrides the RPC socket timeout used on the wire.
func WithSocketTimeout(d time.Duration) Option {
	return func(h *Host) { h.socketTimeout = d }
}

// WithFramedTransport sets the host's framed-transport flag, reported by
// UseFramedTransport. The tcp transport only logs it; its channels are
// length-framed either way.
func WithFramedTransport(framed bool) Option {
	return func(h *Host) { h.useFramed = framed }
}

func (h Host) Key() Key                      { return h.key }
func (h Host) Address() string               { return h.key.Address }
func (h Host) Port() int                     { return h.key.Port }
func (h Host) MaxPoolSize() int              { return h.maxPoolSize }
func (h Host) MaxIdle() int                  { return h.maxIdle }
func (h Host) BorrowTimeout() time.Duration  { return h.borrowTimeout }
func (h Host) SocketTimeout() time.Duration  { return h.socketTimeout }
func (h Host) UseFramedTransport() bool      { return h.useFramed }

// Equal reports whether two Hosts share the same identity. Tunables are
// not part of identity.
func (h Host) Equal(other Host) bool {
	return h.key == other.key
}

func (h Host) String() string {
	return h.key.String()
}
