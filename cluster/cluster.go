// Package cluster implements the registry of per-host pools, host
// selection, and the background health probe that moves hosts between
// the live and down sets: AddHost/RemoveHost, least-active borrow, and
// a coalescing probe loop, all built on top of hostpool.Pool.
package cluster

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/outbain/hectorgo/conn"
	"github.com/outbain/hectorgo/failover"
	"github.com/outbain/hectorgo/herrors"
	"github.com/outbain/hectorgo/host"
	"github.com/outbain/hectorgo/hostpool"
	"github.com/outbain/hectorgo/logging"
	"github.com/outbain/hectorgo/monitor"
	"github.com/outbain/hectorgo/timestamp"
	"github.com/outbain/hectorgo/transport"
)

var log = logging.Get("cluster")

const (
	// DefaultProbeInterval is the period between health probe passes.
	DefaultProbeInterval = 30 * time.Second
	// DefaultProbeCoalesceWindow is the minimum time since the previous
	// pass finished before a new tick is allowed to run.
	DefaultProbeCoalesceWindow = 10 * time.Second
	// DefaultProbeTimeout bounds the one-shot probe RPC per host.
	DefaultProbeTimeout = 2 * time.Second
)

// Prober issues the lightweight out-of-pool RPC the health loop uses to
// classify a Host as live or down. The default Prober dials a fresh
// transport.Channel and calls Probe on it.
type Prober interface {
	Probe(ctx context.Context, h host.Host) error
}

type transportProber struct {
	factory transport.Factory
}

func (p transportProber) Probe(ctx context.Context, h host.Host) error {
	ch, err := p.factory.Dial(ctx, h)
	if err != nil {
		return err
	}
	defer ch.Close()
	return ch.Probe(ctx)
}

// Option configures a Cluster at construction time.
type Option func(*Cluster)

// WithProbeInterval overrides the health probe tick period.
func WithProbeInterval(d time.Duration) Option {
	return func(c *Cluster) { c.probeInterval = d }
}

// WithProbeCoalesceWindow overrides the minimum gap between probe passes.
func WithProbeCoalesceWindow(d time.Duration) Option {
	return func(c *Cluster) { c.probeCoalesce = d }
}

// WithProbeTimeout bounds each individual probe RPC.
func WithProbeTimeout(d time.Duration) Option {
	return func(c *Cluster) { c.probeTimeout = d }
}

// WithProber overrides how the health loop probes a Host. Tests use
// this to substitute a scripted Prober instead of dialing real sockets.
func WithProber(p Prober) Option {
	return func(c *Cluster) { c.prober = p }
}

// WithMonitor wires a diagnostic counter sink. Defaults to a no-op sink.
func WithMonitor(m monitor.Sink) Option {
	return func(c *Cluster) { c.monitor = m }
}

// WithClassifier overrides the default error classifier used by Execute.
func WithClassifier(cl herrors.Classifier) Option {
	return func(c *Cluster) { c.classifier = cl }
}

// Cluster owns every Per-Host Pool for a set of Hosts, partitioned into
// a live set and a down set, plus the background probe that moves
// hosts between them.
type Cluster struct {
	factory transport.Factory
	prober  Prober
	monitor monitor.Sink

	classifier herrors.Classifier

	probeInterval time.Duration
	probeCoalesce time.Duration
	probeTimeout  time.Duration

	// transMu serializes structural transitions: addHost, removeHost,
	// and the probe pass that moves hosts between live and down. Plain
	// reads (KnownHosts, DownHosts, least-active scan) use the
	// concurrent maps directly without taking transMu, matching the
	// "observers read via a concurrent map" guidance for this layer.
	transMu sync.Mutex
	live    *xsync.MapOf[host.Key, *hostpool.Pool]
	down    *xsync.MapOf[host.Key, *hostpool.Pool]

	lastPassFinishedAt time.Time
	probeMu            sync.Mutex

	stopCh chan struct{}
	stopped bool
	wg      sync.WaitGroup
}

// New constructs a Cluster seeded with hosts, immediately placing each
// one in the live set, and starts the background probe loop.
func New(factory transport.Factory, hosts []host.Host, opts ...Option) *Cluster {
	c := &Cluster{
		factory:       factory,
		monitor:       monitor.NopSink{},
		classifier:    herrors.DefaultClassifier,
		probeInterval: DefaultProbeInterval,
		probeCoalesce: DefaultProbeCoalesceWindow,
		probeTimeout:  DefaultProbeTimeout,
		live:          xsync.NewMapOf[host.Key, *hostpool.Pool](),
		down:          xsync.NewMapOf[host.Key, *hostpool.Pool](),
		stopCh:        make(chan struct{}),
	}
	c.prober = transportProber{factory: factory}
	for _, opt := range opts {
		opt(c)
	}

	for _, h := range hosts {
		c.live.Store(h.Key(), hostpool.New(h, c.factory))
	}

	c.wg.Add(1)
	go c.probeLoop()

	return c
}

// AddHost registers h in the live set if it is not already tracked
// under either set. Idempotent.
func (c *Cluster) AddHost(h host.Host) {
	c.transMu.Lock()
	defer c.transMu.Unlock()
	if _, ok := c.live.Load(h.Key()); ok {
		return
	}
	if _, ok := c.down.Load(h.Key()); ok {
		return
	}
	c.live.Store(h.Key(), hostpool.New(h, c.factory))
	log.Infof("added host %s", h.Key())
}

// RemoveHost removes h from whichever set holds it and invalidates its
// Per-Host Pool. Borrowers that had not yet returned their Connection at
// the time of removal can still Release or Invalidate it: the Connection
// is stale by then and is simply closed. The detached pool no longer
// accepts new borrows.
func (c *Cluster) RemoveHost(k host.Key) {
	c.transMu.Lock()
	pool, ok := c.live.LoadAndDelete(k)
	if !ok {
		pool, ok = c.down.LoadAndDelete(k)
	}
	c.transMu.Unlock()

	if !ok {
		return
	}
	pool.InvalidateAll()
	log.Infof("removed host %s", k)
}

// KnownHosts returns every Host currently tracked, live or down.
func (c *Cluster) KnownHosts() []host.Key {
	out := make([]host.Key, 0)
	c.live.Range(func(k host.Key, _ *hostpool.Pool) bool {
		out = append(out, k)
		return true
	})
	c.down.Range(func(k host.Key, _ *hostpool.Pool) bool {
		out = append(out, k)
		return true
	})
	return out
}

// DownHosts returns every Host currently classified down.
func (c *Cluster) DownHosts() []host.Key {
	out := make([]host.Key, 0)
	c.down.Range(func(k host.Key, _ *hostpool.Pool) bool {
		out = append(out, k)
		return true
	})
	return out
}

// Stats reports the Per-Host Pool counters for k, the Pool facade's
// "stats" operation. The second return value is false if k is not
// currently tracked, live or down.
func (c *Cluster) Stats(k host.Key) (hostpool.Stats, bool) {
	pool, ok := c.live.Load(k)
	if !ok {
		pool, ok = c.down.Load(k)
	}
	if !ok {
		return hostpool.Stats{}, false
	}
	return pool.Stats(), true
}

// AggregateStats is the Cluster-wide rollup of every live Per-Host
// Pool's counters: total active and idle connections, total blocked
// borrowers, and which hosts are currently exhausted.
type AggregateStats struct {
	NumActive      int
	NumIdle        int
	NumBlocked     int
	NumExhausted   int
	ExhaustedHosts []host.Key
	PoolNames      []host.Key
}

// AggregateStats sums NumActive/NumIdle/NumBlocked and collects the
// names of exhausted pools across every live Pool. Down hosts are
// excluded: they aren't currently serving borrows, so their counters
// don't belong in a live capacity picture.
func (c *Cluster) AggregateStats() AggregateStats {
	var agg AggregateStats
	c.live.Range(func(k host.Key, p *hostpool.Pool) bool {
		s := p.Stats()
		agg.NumActive += s.NumActive
		agg.NumIdle += s.NumIdle
		agg.NumBlocked += s.NumBlocked
		agg.PoolNames = append(agg.PoolNames, k)
		if s.IsExhausted {
			agg.NumExhausted++
			agg.ExhaustedHosts = append(agg.ExhaustedHosts, k)
		}
		return true
	})
	sort.Slice(agg.PoolNames, func(i, j int) bool { return agg.PoolNames[i].String() < agg.PoolNames[j].String() })
	sort.Slice(agg.ExhaustedHosts, func(i, j int) bool { return agg.ExhaustedHosts[i].String() < agg.ExhaustedHosts[j].String() })
	return agg
}

// CreateTimestamp produces an ordering token at the given resolution.
// It delegates to the process-wide timestamp source: Cluster does not
// keep its own clock state.
func (c *Cluster) CreateTimestamp(resolution timestamp.Resolution) int64 {
	return timestamp.Create(resolution)
}

// BorrowLeastActive implements failover.HostPicker: it selects the
// live Host with the fewest active borrows and borrows from its pool.
// Satisfies the failover package's Cluster collaborator interface.
func (c *Cluster) BorrowLeastActive(ctx context.Context) (*conn.Connection, host.Key, error) {
	best, pool := c.pickLeastActiveLocked()
	if pool == nil {
		return nil, host.Key{}, herrors.Transport(fmt.Errorf("cluster: no live hosts available"))
	}
	cn, err := pool.Borrow(ctx)
	return cn, best, err
}

// BorrowHost implements failover.HostPicker: it delegates directly to
// k's pool, adding k to the live set first if it is not yet known.
func (c *Cluster) BorrowHost(ctx context.Context, k host.Key) (*conn.Connection, error) {
	pool, ok := c.live.Load(k)
	if !ok {
		pool, ok = c.down.Load(k)
	}
	if !ok {
		c.AddHost(host.New(k.Address, k.Port))
		pool, _ = c.live.Load(k)
	}
	return pool.Borrow(ctx)
}

// BorrowExcluding implements failover.HostPicker: it picks a live Host
// other than any in tried, preferring least-active among the remainder.
// If every live host has been tried, it falls back to the overall
// least-active host so the caller can still make progress against a
// small cluster.
func (c *Cluster) BorrowExcluding(ctx context.Context, tried map[host.Key]bool) (*conn.Connection, host.Key, error) {
	best, bestPool := pickLeastActive(c.liveSnapshot(), tried)
	if bestPool == nil {
		best, bestPool = pickLeastActive(c.liveSnapshot(), nil)
	}
	if bestPool == nil {
		return nil, host.Key{}, herrors.Transport(fmt.Errorf("cluster: no live hosts available"))
	}
	cn, err := bestPool.Borrow(ctx)
	return cn, best, err
}

func (c *Cluster) pickLeastActiveLocked() (host.Key, *hostpool.Pool) {
	return pickLeastActive(c.liveSnapshot(), nil)
}

type liveEntry struct {
	key  host.Key
	pool *hostpool.Pool
}

// liveSnapshot returns every live Host/Pool pair ordered by key string,
// so that selection among equally-loaded hosts is deterministic within
// a single call rather than dependent on map iteration order.
func (c *Cluster) liveSnapshot() []liveEntry {
	entries := make([]liveEntry, 0)
	c.live.Range(func(k host.Key, p *hostpool.Pool) bool {
		entries = append(entries, liveEntry{k, p})
		return true
	})
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].key.String() < entries[j].key.String()
	})
	return entries
}

// pickLeastActive scans entries in order, skipping any key present in
// skip, and returns the first one with the minimum NumActive.
func pickLeastActive(entries []liveEntry, skip map[host.Key]bool) (host.Key, *hostpool.Pool) {
	var best host.Key
	var bestPool *hostpool.Pool
	bestActive := -1

	for _, e := range entries {
		if skip[e.key] {
			continue
		}
		active := e.pool.Stats().NumActive
		if bestPool == nil || active < bestActive {
			best, bestPool, bestActive = e.key, e.pool, active
		}
	}
	return best, bestPool
}

// BorrowFromList implements failover.HostPicker for the
// random-pick-remove-on-failure borrowing form: it picks a random Host
// from hosts, borrowing from whichever set (live or down) tracks it,
// adding it to live if unknown; on failure it removes that Host from
// the candidate list and retries, failing only once the list is empty.
func (c *Cluster) BorrowFromList(ctx context.Context, hosts []host.Key) (*conn.Connection, host.Key, error) {
	remaining := append([]host.Key(nil), hosts...)
	var lastErr error

	for len(remaining) > 0 {
		i := rand.Intn(len(remaining))
		k := remaining[i]

		cn, err := c.BorrowHost(ctx, k)
		if err == nil {
			return cn, k, nil
		}
		lastErr = err
		c.monitor.Increment(monitor.RecoverableLBConnectErrors)
		remaining = append(remaining[:i], remaining[i+1:]...)
	}
	if lastErr == nil {
		lastErr = herrors.Transport(fmt.Errorf("cluster: empty host list"))
	}
	return nil, host.Key{}, lastErr
}

// Release implements failover.HostPicker by routing to the owning
// Per-Host Pool, found via the Connection's own Host identity rather
// than any back-pointer.
func (c *Cluster) Release(cn *conn.Connection) error {
	pool, ok := c.live.Load(cn.Host())
	if !ok {
		pool, ok = c.down.Load(cn.Host())
	}
	if !ok {
		// RemoveHost already invalidated every Connection of a removed
		// host, so a late release of one only finishes closing it.
		if cn.IsStale() {
			return cn.Close()
		}
		return herrors.Fatal(fmt.Errorf("cluster: release of %s for untracked host", cn))
	}
	return pool.Release(cn)
}

// Invalidate implements failover.HostPicker the same way Release does.
func (c *Cluster) Invalidate(cn *conn.Connection) error {
	pool, ok := c.live.Load(cn.Host())
	if !ok {
		pool, ok = c.down.Load(cn.Host())
	}
	if !ok {
		if cn.IsStale() {
			return cn.Close()
		}
		return herrors.Fatal(fmt.Errorf("cluster: invalidate of %s for untracked host", cn))
	}
	return pool.Invalidate(cn)
}

// Execute runs op through a failover.Executor configured with policy,
// classifier, and monitor, using this Cluster as the host-selection and
// pool collaborator.
func (c *Cluster) Execute(ctx context.Context, op failover.Operation, policy failover.Policy, consistency failover.ConsistencyLevel) error {
	exec := failover.NewExecutor(c, policy, c.classifier, c.monitor)
	return exec.Run(ctx, op, consistency)
}

// Shutdown stops the probe loop and invalidates every pool, live and down.
func (c *Cluster) Shutdown() {
	c.transMu.Lock()
	if c.stopped {
		c.transMu.Unlock()
		return
	}
	c.stopped = true
	c.transMu.Unlock()

	close(c.stopCh)
	c.wg.Wait()

	c.live.Range(func(k host.Key, p *hostpool.Pool) bool {
		p.InvalidateAll()
		return true
	})
	c.down.Range(func(k host.Key, p *hostpool.Pool) bool {
		p.InvalidateAll()
		return true
	})
}

func (c *Cluster) probeLoop() {
	defer c.wg.Done()
	ticker := time.NewTicker(c.probeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.runProbePass()
		case <-c.stopCh:
			return
		}
	}
}

// runProbePass applies the coalescing guard, then probes every down
// host for promotion and every live host for demotion. It never
// borrows from the pool it is judging: each probe dials a fresh,
// one-shot connection outside the pool.
func (c *Cluster) runProbePass() {
	c.probeMu.Lock()
	if !c.lastPassFinishedAt.IsZero() && time.Since(c.lastPassFinishedAt) < c.probeCoalesce {
		c.probeMu.Unlock()
		return
	}
	c.probeMu.Unlock()

	probe := func(h host.Host) error {
		ctx, cancel := context.WithTimeout(context.Background(), c.probeTimeout)
		defer cancel()
		return c.prober.Probe(ctx, h)
	}

	// Snapshot membership before probing so a host promoted/demoted
	// mid-pass is not immediately re-probed within the same pass.
	var downEntries []liveEntry
	c.down.Range(func(k host.Key, p *hostpool.Pool) bool {
		downEntries = append(downEntries, liveEntry{k, p})
		return true
	})
	liveEntries := c.liveSnapshot()

	for _, e := range downEntries {
		if err := probe(e.pool.Host()); err == nil {
			c.promote(e.key, e.pool)
		}
	}

	for _, e := range liveEntries {
		if err := probe(e.pool.Host()); err != nil {
			log.Warningf("probe failed for %s: %v", e.key, err)
			c.demote(e.key, e.pool)
		}
	}

	c.probeMu.Lock()
	c.lastPassFinishedAt = time.Now()
	c.probeMu.Unlock()
}

func (c *Cluster) promote(k host.Key, p *hostpool.Pool) {
	c.transMu.Lock()
	defer c.transMu.Unlock()
	if _, ok := c.down.Load(k); !ok {
		return
	}
	c.down.Delete(k)
	c.live.Store(k, p)
	log.Infof("host %s promoted to live", k)
}

func (c *Cluster) demote(k host.Key, p *hostpool.Pool) {
	c.transMu.Lock()
	defer c.transMu.Unlock()
	if _, ok := c.live.Load(k); !ok {
		return
	}
	c.live.Delete(k)
	c.down.Store(k, p)
	log.Infof("host %s demoted to down", k)
}
