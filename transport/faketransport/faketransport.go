// Package faketransport provides an in-memory transport.Factory for
// tests: no sockets, scriptable per-host failure behavior. The point
// under test elsewhere is pool/cluster/executor logic, not the wire,
// so a scriptable fake stands in for a real socket.
package faketransport

import (
	"context"
	"fmt"
	"sync"

	"github.com/outbain/hectorgo/host"
	"github.com/outbain/hectorgo/transport"
)

// Script controls how a fake Channel to one Host behaves.
type Script struct {
	// DialErr, if non-nil, is returned by every Dial to this host.
	DialErr error

	// ProbeErr, if non-nil, is returned by every Probe call.
	ProbeErr error

	// SendErr, if non-nil, is returned by every Send call.
	SendErr error

	// SendResult is returned by Send when SendErr is nil.
	SendResult []byte
}

// Factory is a transport.Factory backed by per-host Scripts. Build one
// with New; with no Script set it dials successfully and echoes Send
// payloads back.
type Factory struct {
	mu      sync.Mutex
	scripts map[host.Key]*Script
	dials   map[host.Key]int
	closes  map[host.Key]int
}

func New() *Factory {
	return &Factory{
		scripts: make(map[host.Key]*Script),
		dials:   make(map[host.Key]int),
		closes:  make(map[host.Key]int),
	}
}

// Set installs the Script used for every Dial against h from now on.
func (f *Factory) Set(h host.Host, script Script) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := script
	f.scripts[h.Key()] = &s
}

// Dials returns how many times Dial was called for h.
func (f *Factory) Dials(h host.Host) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dials[h.Key()]
}

// Closes returns how many fake channels to h have been closed.
func (f *Factory) Closes(h host.Host) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closes[h.Key()]
}

func (f *Factory) Dial(_ context.Context, h host.Host) (transport.Channel, error) {
	f.mu.Lock()
	f.dials[h.Key()]++
	script := f.scripts[h.Key()]
	f.mu.Unlock()

	if script != nil && script.DialErr != nil {
		return nil, script.DialErr
	}

	return &channel{factory: f, key: h.Key(), script: script}, nil
}

type channel struct {
	factory *Factory
	key     host.Key
	script  *Script
	closed  bool
}

func (c *channel) Probe(_ context.Context) error {
	if c.closed {
		return fmt.Errorf("faketransport: probe on closed channel")
	}
	if c.script != nil && c.script.ProbeErr != nil {
		return c.script.ProbeErr
	}
	return nil
}

func (c *channel) Send(_ context.Context, req []byte) ([]byte, error) {
	if c.closed {
		return nil, fmt.Errorf("faketransport: send on closed channel")
	}
	if c.script != nil {
		if c.script.SendErr != nil {
			return nil, c.script.SendErr
		}
		if c.script.SendResult != nil {
			return c.script.SendResult, nil
		}
	}
	return req, nil
}

func (c *channel) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	c.factory.mu.Lock()
	c.factory.closes[c.key]++
	c.factory.mu.Unlock()
	return nil
}
