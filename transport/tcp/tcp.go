// Package tcp provides the default transport.Factory: a plain TCP
// socket per Channel, framed with a 4-byte big-endian length prefix
// around a wire.Message. One Channel serves exactly one Connection at
// a time; the pool above multiplexes many Channels per Host, so a
// Channel itself needs no request-ID multiplexing of its own.
package tcp

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/outbain/hectorgo/host"
	"github.com/outbain/hectorgo/logging"
	"github.com/outbain/hectorgo/transport"
	"github.com/outbain/hectorgo/wire"
)

var log = logging.Get("transport")

type factory struct {
	serializer wire.Serializer
}

// NewFactory builds a transport.Factory that dials plain TCP sockets
// and frames messages with the given Serializer.
func NewFactory(serializer wire.Serializer) transport.Factory {
	return &factory{serializer: serializer}
}

func (f *factory) Dial(ctx context.Context, h host.Host) (transport.Channel, error) {
	addr := h.Key().String()

	dialer := net.Dialer{Timeout: h.SocketTimeout()}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("tcp: dial %s: %w", addr, err)
	}

	if tcpConn, ok := conn.(*net.TCPConn); ok {
		_ = tcpConn.SetNoDelay(true)
	}

	log.Debugf("dialed %s (framed=%t)", addr, h.UseFramedTransport())

	return &channel{conn: conn, serializer: f.serializer, socketTimeout: h.SocketTimeout()}, nil
}

type channel struct {
	mu            sync.Mutex
	conn          net.Conn
	serializer    wire.Serializer
	socketTimeout time.Duration
}

func (c *channel) Probe(ctx context.Context) error {
	resp, err := c.roundTrip(ctx, wire.Message{Type: wire.MsgPing})
	if err != nil {
		return err
	}
	if resp.Type != wire.MsgPong {
		return fmt.Errorf("tcp: probe got unexpected message type %s", resp.Type)
	}
	return nil
}

func (c *channel) Send(ctx context.Context, req []byte) ([]byte, error) {
	resp, err := c.roundTrip(ctx, wire.Message{Type: wire.MsgRequest, Payload: req})
	if err != nil {
		return nil, err
	}
	if resp.Err != "" {
		return nil, fmt.Errorf("tcp: remote error: %s", resp.Err)
	}
	return resp.Payload, nil
}

func (c *channel) roundTrip(ctx context.Context, req wire.Message) (wire.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	deadline := time.Now().Add(c.socketTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = c.conn.SetDeadline(deadline)

	if err := writeMessage(c.conn, c.serializer, req); err != nil {
		return wire.Message{}, fmt.Errorf("tcp: write: %w", err)
	}

	var resp wire.Message
	if err := readMessage(c.conn, c.serializer, &resp); err != nil {
		return wire.Message{}, fmt.Errorf("tcp: read: %w", err)
	}
	return resp, nil
}

func (c *channel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}

// writeMessage writes a frame with the format:
//   - 4 bytes: payload length (uint32, big endian)
//   - N bytes: serialized wire.Message
func writeMessage(w io.Writer, s wire.Serializer, msg wire.Message) error {
	data, err := s.Serialize(msg)
	if err != nil {
		return err
	}
	header := make([]byte, 4)
	binary.BigEndian.PutUint32(header, uint32(len(data)))
	if _, err := w.(io.Writer).Write(header); err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// readMessage reads one frame written by writeMessage.
func readMessage(r io.Reader, s wire.Serializer, msg *wire.Message) error {
	header := make([]byte, 4)
	if _, err := io.ReadFull(r, header); err != nil {
		return err
	}
	n := binary.BigEndian.Uint32(header)
	data := make([]byte, n)
	if n > 0 {
		if _, err := io.ReadFull(r, data); err != nil {
			return err
		}
	}
	return s.Deserialize(data, msg)
}
