package cluster

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/outbain/hectorgo/conn"
	"github.com/outbain/hectorgo/failover"
	"github.com/outbain/hectorgo/herrors"
	"github.com/outbain/hectorgo/host"
	"github.com/outbain/hectorgo/hostpool"
	"github.com/outbain/hectorgo/monitor"
	"github.com/outbain/hectorgo/transport/faketransport"
)

// scriptedProber lets tests dictate the probe outcome per Host without
// dialing real sockets.
type scriptedProber struct {
	results map[host.Key]error
}

func (p *scriptedProber) Probe(_ context.Context, h host.Host) error {
	return p.results[h.Key()]
}

type countingSink struct {
	counts map[monitor.Counter]int
}

func newCountingSink() *countingSink {
	return &countingSink{counts: make(map[monitor.Counter]int)}
}

func (s *countingSink) Increment(c monitor.Counter) { s.counts[c]++ }

func newTestCluster(factory *faketransport.Factory, hosts []host.Host, opts ...Option) *Cluster {
	opts = append([]Option{WithProbeInterval(time.Hour)}, opts...)
	return New(factory, hosts, opts...)
}

func TestBorrowLeastActivePicksFewestActiveHost(t *testing.T) {
	factory := faketransport.New()
	h1 := host.New("10.0.0.1", 9170, host.WithMaxPoolSize(10))
	h2 := host.New("10.0.0.2", 9170, host.WithMaxPoolSize(10))
	h3 := host.New("10.0.0.3", 9170, host.WithMaxPoolSize(10))
	c := newTestCluster(factory, []host.Host{h1, h2, h3})
	defer c.Shutdown()

	hold := func(h host.Host, n int) []*conn.Connection {
		var conns []*conn.Connection
		for i := 0; i < n; i++ {
			cn, err := c.BorrowHost(context.Background(), h.Key())
			if err != nil {
				t.Fatalf("borrow %s: %v", h.Key(), err)
			}
			conns = append(conns, cn)
		}
		return conns
	}

	hold(h1, 3)
	hold(h2, 1)
	hold(h3, 2)

	_, k, err := c.BorrowLeastActive(context.Background())
	if err != nil {
		t.Fatalf("BorrowLeastActive: %v", err)
	}
	if k != h2.Key() {
		t.Fatalf("least-active host = %s, want %s", k, h2.Key())
	}
}

func TestExecuteTryAllFailsOverAcrossFourHosts(t *testing.T) {
	factory := faketransport.New()
	hosts := make([]host.Host, 4)
	for i := range hosts {
		hosts[i] = host.New("10.0.1.1", 9170+i)
	}
	for i := 0; i < 3; i++ {
		factory.Set(hosts[i], faketransport.Script{SendErr: errors.New("connection reset")})
	}

	sink := newCountingSink()
	c := newTestCluster(factory, hosts, WithMonitor(sink))
	defer c.Shutdown()

	op := failover.OperationFunc(func(ctx context.Context, cn *conn.Connection, level failover.ConsistencyLevel) error {
		_, err := cn.Channel().Send(ctx, []byte("ping"))
		if err != nil {
			return herrors.Transport(err)
		}
		return nil
	})

	err := c.Execute(context.Background(), op, failover.TryAll, failover.LevelQuorum)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got := sink.counts[monitor.RecoverableTransportExceptions]; got != 3 {
		t.Fatalf("RecoverableTransportExceptions = %d, want 3", got)
	}

	var totalDials int
	for _, h := range hosts {
		totalDials += factory.Dials(h)
	}
	if totalDials != 4 {
		t.Fatalf("total dials = %d, want 4 (one per attempted host)", totalDials)
	}
}

func TestProbeLoopPromotesAndDemotesHosts(t *testing.T) {
	factory := faketransport.New()
	h1 := host.New("10.0.2.1", 9170)
	h2 := host.New("10.0.2.2", 9170)

	prober := &scriptedProber{results: map[host.Key]error{
		h1.Key(): errors.New("unreachable"),
		h2.Key(): nil,
	}}

	c := newTestCluster(factory, []host.Host{h1}, WithProber(prober))
	defer c.Shutdown()

	// Seed H2 directly into the down set, as if a prior pass had
	// already classified it down.
	c.transMu.Lock()
	c.down.Store(h2.Key(), hostpool.New(h2, factory))
	c.transMu.Unlock()

	c.runProbePass()

	var live []host.Key
	c.live.Range(func(k host.Key, _ *hostpool.Pool) bool {
		live = append(live, k)
		return true
	})
	down := c.DownHosts()

	sort.Slice(live, func(i, j int) bool { return live[i].String() < live[j].String() })
	sort.Slice(down, func(i, j int) bool { return down[i].String() < down[j].String() })

	if len(live) != 1 || live[0] != h2.Key() {
		t.Fatalf("live = %v, want [%s]", live, h2.Key())
	}
	if len(down) != 1 || down[0] != h1.Key() {
		t.Fatalf("down = %v, want [%s]", down, h1.Key())
	}

	known := c.KnownHosts()
	if len(known) != 2 {
		t.Fatalf("KnownHosts = %v, want 2 entries", known)
	}
}

func TestAggregateStatsSumsOnlyLivePools(t *testing.T) {
	factory := faketransport.New()
	h1 := host.New("10.0.4.1", 9170, host.WithMaxPoolSize(2))
	h2 := host.New("10.0.4.2", 9170, host.WithMaxPoolSize(2))
	c := newTestCluster(factory, []host.Host{h1, h2})
	defer c.Shutdown()

	if _, err := c.BorrowHost(context.Background(), h1.Key()); err != nil {
		t.Fatalf("borrow h1 #1: %v", err)
	}
	if _, err := c.BorrowHost(context.Background(), h1.Key()); err != nil {
		t.Fatalf("borrow h1 #2: %v", err)
	}
	c2, err := c.BorrowHost(context.Background(), h2.Key())
	if err != nil {
		t.Fatalf("borrow h2: %v", err)
	}
	if err := c.Release(c2); err != nil {
		t.Fatalf("release h2: %v", err)
	}

	// h1 is now exhausted (2/2 active, no idle); h2 has one idle.
	agg := c.AggregateStats()
	if agg.NumActive != 2 {
		t.Fatalf("NumActive = %d, want 2", agg.NumActive)
	}
	if agg.NumIdle != 1 {
		t.Fatalf("NumIdle = %d, want 1", agg.NumIdle)
	}
	if agg.NumExhausted != 1 || len(agg.ExhaustedHosts) != 1 || agg.ExhaustedHosts[0] != h1.Key() {
		t.Fatalf("exhausted = %d %v, want [%s]", agg.NumExhausted, agg.ExhaustedHosts, h1.Key())
	}
	if len(agg.PoolNames) != 2 {
		t.Fatalf("PoolNames = %v, want 2 entries", agg.PoolNames)
	}

	// Demoting h1 to down removes it from the aggregate.
	c.demote(h1.Key(), mustLoad(t, c, h1.Key()))
	agg = c.AggregateStats()
	if agg.NumActive != 0 || len(agg.PoolNames) != 1 {
		t.Fatalf("aggregate after demote = %+v, want only h2 counted", agg)
	}
}

func mustLoad(t *testing.T, c *Cluster, k host.Key) *hostpool.Pool {
	t.Helper()
	p, ok := c.live.Load(k)
	if !ok {
		t.Fatalf("host %s not live", k)
	}
	return p
}

func TestRemoveHostDetachesPoolButAllowsLateRelease(t *testing.T) {
	factory := faketransport.New()
	h := host.New("10.0.3.1", 9170)
	c := newTestCluster(factory, []host.Host{h})
	defer c.Shutdown()

	cn, err := c.BorrowHost(context.Background(), h.Key())
	if err != nil {
		t.Fatalf("borrow: %v", err)
	}

	c.RemoveHost(h.Key())

	if err := c.Release(cn); err != nil {
		t.Fatalf("late release after RemoveHost: %v", err)
	}

	if got := c.KnownHosts(); len(got) != 0 {
		t.Fatalf("KnownHosts after remove = %v, want empty", got)
	}
}
