// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package erldist

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// ErrTransportClosed reports that Send/Recv was called after Close.
var ErrTransportClosed = errors.New("erldist: transport closed")

var noDeadline time.Time

const maxFrameLen = 64 * 1024 * 1024

// tcpTransport carries one length-prefixed ETF frame per message over
// a plain net.Conn: a 4-byte big-endian length, then that many bytes
// holding a control term followed by a message term, with no version
// byte; a zero-length frame is a TICK. No distribution handshake is
// performed: Dial hands the freshly connected socket straight to a
// Connection.
type tcpTransport struct {
	conn      net.Conn
	writeMu   sync.Mutex
	closed    atomic.Bool
	recvCh    chan []byte
	recvErrCh chan error
}

func dialTCP(ctx context.Context, addr string, o *dialOptions) (Transport, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("tcp dial: %w", err)
	}
	t := &tcpTransport{
		conn:      conn,
		recvCh:    make(chan []byte, 16),
		recvErrCh: make(chan error, 1),
	}
	go t.readLoop()
	return t, nil
}

func (t *tcpTransport) readLoop() {
	header := make([]byte, 4)
	for {
		if _, err := io.ReadFull(t.conn, header); err != nil {
			t.recvErrCh <- err
			return
		}
		frameLen := binary.BigEndian.Uint32(header)
		if frameLen > maxFrameLen {
			t.recvErrCh <- fmt.Errorf("tcp transport: frame length %d out of range", frameLen)
			return
		}
		if frameLen == 0 {
			// A zero-length frame is the distribution protocol's TICK
			// heartbeat: no body follows.
			t.recvCh <- []byte{}
			continue
		}
		frame := make([]byte, frameLen)
		if _, err := io.ReadFull(t.conn, frame); err != nil {
			t.recvErrCh <- err
			return
		}
		t.recvCh <- frame
	}
}

func (t *tcpTransport) Send(ctx context.Context, frame []byte) error {
	if t.closed.Load() {
		return ErrTransportClosed
	}
	header := make([]byte, 4+len(frame))
	binary.BigEndian.PutUint32(header[0:4], uint32(len(frame)))
	copy(header[4:], frame)

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if dl, ok := ctx.Deadline(); ok {
		t.conn.SetWriteDeadline(dl)
		defer t.conn.SetWriteDeadline(noDeadline)
	}
	_, err := t.conn.Write(header)
	if err != nil {
		return fmt.Errorf("tcp write: %w", err)
	}
	return nil
}

func (t *tcpTransport) Recv(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case frame := <-t.recvCh:
		return frame, nil
	case err := <-t.recvErrCh:
		return nil, err
	}
}

func (t *tcpTransport) Close() error {
	if t.closed.Swap(true) {
		return nil
	}
	return t.conn.Close()
}
