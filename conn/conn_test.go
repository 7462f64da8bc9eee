package conn

import (
	"context"
	"testing"

	"github.com/outbain/hectorgo/host"
	"github.com/outbain/hectorgo/transport/faketransport"
)

func TestOpenAndStaleTransitions(t *testing.T) {
	h := host.New("127.0.0.1", 9170)
	factory := faketransport.New()

	c, err := Open(context.Background(), h, factory)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if c.IsStale() {
		t.Fatalf("freshly opened connection should not be stale")
	}
	if c.Host() != h.Key() {
		t.Fatalf("Host() = %v, want %v", c.Host(), h.Key())
	}

	c.MarkError()
	if !c.IsStale() {
		t.Fatalf("connection with hasErrors should be stale")
	}

	c2, _ := Open(context.Background(), h, factory)
	if err := c2.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !c2.IsStale() {
		t.Fatalf("closed connection should be stale")
	}
	// Close is idempotent.
	if err := c2.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestBorrowReleaseFlags(t *testing.T) {
	h := host.New("127.0.0.1", 9170)
	factory := faketransport.New()
	c, err := Open(context.Background(), h, factory)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	c.MarkBorrowed()
	if c.IsReleased() {
		t.Fatalf("freshly borrowed connection should not be released")
	}

	c.MarkReleased()
	if !c.IsReleased() {
		t.Fatalf("released connection should report released")
	}
}

func TestDialFailureIsPropagated(t *testing.T) {
	h := host.New("127.0.0.1", 9170)
	factory := faketransport.New()
	wantErr := context.DeadlineExceeded
	factory.Set(h, faketransport.Script{DialErr: wantErr})

	_, err := Open(context.Background(), h, factory)
	if err != wantErr {
		t.Fatalf("Open err = %v, want %v", err, wantErr)
	}
}
