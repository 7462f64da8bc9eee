package hostpool

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/outbain/hectorgo/herrors"
	"github.com/outbain/hectorgo/host"
	"github.com/outbain/hectorgo/transport/faketransport"
)

func TestBorrowLazilyCreatesUpToCap(t *testing.T) {
	h := host.New("127.0.0.1", 9170, host.WithMaxPoolSize(2), host.WithMaxIdle(2))
	p := New(h, faketransport.New())

	c1, err := p.Borrow(context.Background())
	if err != nil {
		t.Fatalf("borrow 1: %v", err)
	}
	c2, err := p.Borrow(context.Background())
	if err != nil {
		t.Fatalf("borrow 2: %v", err)
	}
	if c1 == c2 {
		t.Fatalf("expected distinct connections")
	}

	stats := p.Stats()
	if stats.NumActive != 2 || !stats.IsExhausted {
		t.Fatalf("stats = %+v, want active=2 exhausted=true", stats)
	}
}

func TestReleaseReturnsToIdleAndIsReused(t *testing.T) {
	h := host.New("127.0.0.1", 9170, host.WithMaxPoolSize(1), host.WithMaxIdle(1))
	factory := faketransport.New()
	p := New(h, factory)

	c1, err := p.Borrow(context.Background())
	if err != nil {
		t.Fatalf("borrow: %v", err)
	}
	if err := p.Release(c1); err != nil {
		t.Fatalf("release: %v", err)
	}

	c2, err := p.Borrow(context.Background())
	if err != nil {
		t.Fatalf("borrow after release: %v", err)
	}
	if c2 != c1 {
		t.Fatalf("expected idle connection to be reused")
	}
	if factory.Dials(h) != 1 {
		t.Fatalf("Dials = %d, want 1 (no redundant dial)", factory.Dials(h))
	}
}

func TestReleaseOfStaleConnectionIsDestroyed(t *testing.T) {
	h := host.New("127.0.0.1", 9170, host.WithMaxPoolSize(1), host.WithMaxIdle(1))
	factory := faketransport.New()
	p := New(h, factory)

	c, _ := p.Borrow(context.Background())
	c.MarkError()
	if err := p.Release(c); err != nil {
		t.Fatalf("release: %v", err)
	}

	if factory.Closes(h) != 1 {
		t.Fatalf("Closes = %d, want 1", factory.Closes(h))
	}
	stats := p.Stats()
	if stats.NumIdle != 0 {
		t.Fatalf("stale connection should not be idle, got NumIdle=%d", stats.NumIdle)
	}
}

func TestDoubleReleaseIsFatal(t *testing.T) {
	h := host.New("127.0.0.1", 9170)
	p := New(h, faketransport.New())

	c, _ := p.Borrow(context.Background())
	if err := p.Release(c); err != nil {
		t.Fatalf("release: %v", err)
	}
	err := p.Release(c)
	if !herrors.Is(err, herrors.KindFatal) {
		t.Fatalf("second release err = %v, want Fatal", err)
	}
}

func TestReleaseOfForeignHostIsFatal(t *testing.T) {
	h1 := host.New("127.0.0.1", 9170)
	h2 := host.New("127.0.0.1", 9171)
	p1 := New(h1, faketransport.New())
	p2 := New(h2, faketransport.New())

	c, _ := p2.Borrow(context.Background())
	err := p1.Release(c)
	if !herrors.Is(err, herrors.KindFatal) {
		t.Fatalf("cross-host release err = %v, want Fatal", err)
	}
}

func TestBorrowTimesOutUnderExhaustion(t *testing.T) {
	h := host.New("127.0.0.1", 9170,
		host.WithMaxPoolSize(2),
		host.WithBorrowTimeout(100*time.Millisecond))
	p := New(h, faketransport.New())

	c1, _ := p.Borrow(context.Background())
	c2, _ := p.Borrow(context.Background())
	_ = c1
	_ = c2

	observedBlocked := make(chan int, 1)
	go func() {
		time.Sleep(30 * time.Millisecond)
		observedBlocked <- p.Stats().NumBlocked
	}()

	start := time.Now()
	_, err := p.Borrow(context.Background())
	elapsed := time.Since(start)

	if !herrors.Is(err, herrors.KindPoolExhausted) {
		t.Fatalf("err = %v, want PoolExhausted", err)
	}
	if elapsed < 90*time.Millisecond || elapsed > 500*time.Millisecond {
		t.Fatalf("elapsed = %v, want ~100ms", elapsed)
	}
	if got := <-observedBlocked; got != 1 {
		t.Fatalf("NumBlocked during wait = %d, want 1", got)
	}
}

func TestInvalidateAllDetachesPoolAndAllowsLateRelease(t *testing.T) {
	h := host.New("127.0.0.1", 9170, host.WithMaxPoolSize(2))
	factory := faketransport.New()
	p := New(h, factory)

	borrowed, _ := p.Borrow(context.Background())
	idle, _ := p.Borrow(context.Background())
	_ = p.Release(idle)

	p.InvalidateAll()

	if factory.Closes(h) != 2 {
		t.Fatalf("Closes = %d, want 2", factory.Closes(h))
	}

	// A late release from a borrower who had not yet returned the
	// connection at invalidation time must still succeed cleanly.
	if err := p.Release(borrowed); err != nil {
		t.Fatalf("late release after invalidateAll: %v", err)
	}

	if _, err := p.Borrow(context.Background()); !herrors.Is(err, herrors.KindFatal) {
		t.Fatalf("borrow on detached pool err = %v, want Fatal", err)
	}
}

func TestActivePlusIdleNeverExceedsMaxPoolSizeUnderConcurrency(t *testing.T) {
	h := host.New("127.0.0.1", 9170,
		host.WithMaxPoolSize(4),
		host.WithMaxIdle(4),
		host.WithBorrowTimeout(50*time.Millisecond))
	p := New(h, faketransport.New())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				c, err := p.Borrow(context.Background())
				if err != nil {
					continue
				}
				stats := p.Stats()
				if stats.NumActive > 4 || stats.NumActive+stats.NumIdle > 4 {
					t.Errorf("invariant violated: %+v", stats)
				}
				_ = p.Release(c)
			}
		}()
	}
	wg.Wait()
}
