// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package erldist

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/erldist/erldist/bridge"
	"github.com/erldist/erldist/etf"
	"github.com/erldist/erldist/internal/distproto"
	"github.com/erldist/erldist/term"
)

// fakeTransport is an in-memory Transport standing in for a real
// socket, the way the teacher's zap_test.go exercises Dial/Call
// against a real net.Listener — here the wire itself is faked so the
// actor's framing and correlation logic can be tested without a
// server.
type fakeTransport struct {
	sent    chan []byte
	recv    chan []byte
	closed  atomic.Bool
	closeCh chan struct{}
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		sent:    make(chan []byte, 16),
		recv:    make(chan []byte, 16),
		closeCh: make(chan struct{}),
	}
}

func (f *fakeTransport) Send(ctx context.Context, frame []byte) error {
	select {
	case f.sent <- frame:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeTransport) Recv(ctx context.Context) ([]byte, error) {
	select {
	case frame := <-f.recv:
		return frame, nil
	case <-f.closeCh:
		return nil, io.EOF
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *fakeTransport) Close() error {
	if f.closed.CompareAndSwap(false, true) {
		close(f.closeCh)
	}
	return nil
}

func newTestConnection(t *testing.T, transport *fakeTransport) *Connection {
	t.Helper()
	local, err := NewNode("gopher@localhost", "cookie")
	require.NoError(t, err)
	conn, err := newConnection(local, "remote@localhost:0", transport, bridge.DefaultPolicy(), zerolog.Nop(), "")
	require.NoError(t, err)
	return conn
}

func newTestConnectionRegistered(t *testing.T, transport *fakeTransport, registerAs string) *Connection {
	t.Helper()
	local, err := NewNode("gopher@localhost", "cookie")
	require.NoError(t, err)
	conn, err := newConnection(local, "remote@localhost:0", transport, bridge.DefaultPolicy(), zerolog.Nop(), registerAs)
	require.NoError(t, err)
	return conn
}

// decodeSent reads one frame off transport.sent and decodes its two
// terms (control, message), per the two-term wire framing.
func decodeSent(t *testing.T, transport *fakeTransport) (control, message term.Term) {
	t.Helper()
	select {
	case frame := <-transport.sent:
		buf := etf.FromBytes(frame)
		control, err := etf.Decode(buf)
		if err != nil {
			t.Fatalf("decode control: %v", err)
		}
		message, err := etf.Decode(buf)
		if err != nil {
			t.Fatalf("decode message: %v", err)
		}
		return control, message
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for sent frame")
		return nil, nil
	}
}

func pushFrame(t *testing.T, transport *fakeTransport, control, message term.Term) {
	t.Helper()
	buf := etf.New()
	if err := etf.Encode(control, buf); err != nil {
		t.Fatalf("encode control: %v", err)
	}
	if err := etf.Encode(message, buf); err != nil {
		t.Fatalf("encode message: %v", err)
	}
	transport.recv <- buf.Bytes()
}

func TestConnectionRPCRoundTrip(t *testing.T) {
	transport := newFakeTransport()
	conn := newTestConnection(t, transport)
	defer conn.Close()

	type result struct {
		reply term.Term
		err   error
	}
	resultCh := make(chan result, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go func() {
		reply, err := conn.RPC(ctx, "erlang", "node", term.NewList())
		resultCh <- result{reply, err}
	}()

	_, msg := decodeSent(t, transport)
	ref := extractRef(t, msg)

	pushFrame(t, transport,
		distproto.BuildSendControl(conn.selfPid),
		term.NewTuple(ref, term.NewTuple(distproto.AtomRex, term.NewAtom("erl@localhost"))))

	res := <-resultCh
	require.NoError(t, res.err)
	if !term.Equal(res.reply, term.NewAtom("erl@localhost")) {
		t.Errorf("got %v, want erl@localhost", res.reply)
	}
}

func TestConnectionRPCBadRPC(t *testing.T) {
	transport := newFakeTransport()
	conn := newTestConnection(t, transport)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	type result struct {
		reply term.Term
		err   error
	}
	resultCh := make(chan result, 1)
	go func() {
		reply, err := conn.RPC(ctx, "erlang", "does_not_exist", term.NewList())
		resultCh <- result{reply, err}
	}()

	_, msg := decodeSent(t, transport)
	ref := extractRef(t, msg)

	reason := term.NewTuple(term.NewAtom("undef"), term.NewList())
	pushFrame(t, transport,
		distproto.BuildSendControl(conn.selfPid),
		term.NewTuple(ref, term.NewTuple(distproto.AtomRex, term.NewTuple(distproto.AtomBadRPC, reason))))

	res := <-resultCh
	var badRPC *BadRPC
	require.ErrorAs(t, res.err, &badRPC)
}

func TestConnectionRPCContextCancelled(t *testing.T) {
	transport := newFakeTransport()
	conn := newTestConnection(t, transport)
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	type result struct {
		reply term.Term
		err   error
	}
	resultCh := make(chan result, 1)
	go func() {
		reply, err := conn.RPC(ctx, "erlang", "node", term.NewList())
		resultCh <- result{reply, err}
	}()

	decodeSent(t, transport) // drain the outbound request
	cancel()

	res := <-resultCh
	if !errors.Is(res.err, context.Canceled) {
		t.Fatalf("got err %v, want context.Canceled", res.err)
	}
}

func TestConnectionMessagesReceivesInbound(t *testing.T) {
	transport := newFakeTransport()
	conn := newTestConnection(t, transport)
	defer conn.Close()

	msgs, stop := conn.Messages()
	defer stop()

	sender := term.NewPid("erl@localhost", 1, 0, 1)
	payload := term.NewTuple(term.NewAtom("hello"), term.NewInt(42))
	pushFrame(t, transport,
		distproto.BuildSendControl(conn.selfPid),
		distproto.WrapSend(sender, payload))

	select {
	case m := <-msgs:
		if m.Err != nil {
			t.Fatalf("unexpected error: %v", m.Err)
		}
		if !term.Equal(m.Term, payload) {
			t.Errorf("got %v, want %v", m.Term, payload)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
	}
}

func TestConnectionTickIsDropped(t *testing.T) {
	transport := newFakeTransport()
	conn := newTestConnection(t, transport)
	defer conn.Close()

	msgs, stop := conn.Messages()
	defer stop()

	transport.recv <- []byte{}

	sender := term.NewPid("erl@localhost", 1, 0, 1)
	payload := term.NewAtom("after_tick")
	pushFrame(t, transport, distproto.BuildSendControl(conn.selfPid), distproto.WrapSend(sender, payload))

	select {
	case m := <-msgs:
		if m.Err != nil {
			t.Fatalf("unexpected error: %v", m.Err)
		}
		if !term.Equal(m.Term, payload) {
			t.Errorf("tick was not skipped cleanly: got %v", m.Term)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message after tick")
	}
}

func TestConnectionRegSendAddressedToRegisteredNameIsDelivered(t *testing.T) {
	transport := newFakeTransport()
	conn := newTestConnectionRegistered(t, transport, "probe_worker")
	defer conn.Close()

	msgs, stop := conn.Messages()
	defer stop()

	sender := term.NewPid("erl@localhost", 1, 0, 1)
	payload := term.NewAtom("hello")
	pushFrame(t, transport, distproto.BuildRegSendControl(sender, "probe_worker"), distproto.WrapSend(sender, payload))

	select {
	case m := <-msgs:
		if m.Err != nil {
			t.Fatalf("unexpected error: %v", m.Err)
		}
		if !term.Equal(m.Term, payload) {
			t.Errorf("got %v, want %v", m.Term, payload)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message addressed to the registered name")
	}
}

func TestConnectionRegSendAddressedElsewhereIsDropped(t *testing.T) {
	transport := newFakeTransport()
	conn := newTestConnectionRegistered(t, transport, "probe_worker")
	defer conn.Close()

	msgs, stop := conn.Messages()
	defer stop()

	sender := term.NewPid("erl@localhost", 1, 0, 1)
	pushFrame(t, transport, distproto.BuildRegSendControl(sender, "someone_else"), distproto.WrapSend(sender, term.NewAtom("not for us")))
	pushFrame(t, transport, distproto.BuildSendControl(conn.selfPid), distproto.WrapSend(sender, term.NewAtom("for us")))

	select {
	case m := <-msgs:
		if m.Err != nil {
			t.Fatalf("unexpected error: %v", m.Err)
		}
		if !term.Equal(m.Term, term.NewAtom("for us")) {
			t.Errorf("misdirected frame was delivered: got %v", m.Term)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the correctly-addressed message")
	}
}

func TestConnectionNotConnectedAfterClose(t *testing.T) {
	transport := newFakeTransport()
	conn := newTestConnection(t, transport)
	if err := conn.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if _, err := conn.RPC(context.Background(), "erlang", "node", term.NewList()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("RPC after close: got %v, want ErrNotConnected", err)
	}
	if err := conn.Send(context.Background(), term.NewPid("erl@localhost", 1, 0, 1), term.NewAtom("x")); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Send after close: got %v, want ErrNotConnected", err)
	}
}

func TestConnectionInboundCallDispatchesToHandler(t *testing.T) {
	transport := newFakeTransport()
	conn := newTestConnection(t, transport)
	defer conn.Close()

	conn.RegisterHandler(func(ctx context.Context, args term.Term) (term.Term, error) {
		return term.NewTuple(term.NewAtom("echo"), args), nil
	})

	sender := term.NewPid("erl@localhost", 1, 0, 1)
	call := term.NewTuple(distproto.AtomCall, term.NewInt(7), sender, term.NewAtom("ping"))
	pushFrame(t, transport, distproto.BuildSendControl(conn.selfPid), call)

	_, reply := decodeSent(t, transport)
	want := term.NewTuple(conn.selfPid, term.NewTuple(term.NewAtom("echo"), term.NewAtom("ping")))
	if !term.Equal(reply, want) {
		t.Errorf("got %v, want %v", reply, want)
	}
}

func extractRef(t *testing.T, genCall term.Term) term.Reference {
	t.Helper()
	tup, ok := genCall.(term.Tuple)
	if !ok || len(tup) != 3 {
		t.Fatalf("not a $gen_call tuple: %v", genCall)
	}
	fromTuple, ok := tup[1].(term.Tuple)
	if !ok || len(fromTuple) != 2 {
		t.Fatalf("not a from tuple: %v", tup[1])
	}
	ref, ok := fromTuple[1].(term.Reference)
	if !ok {
		t.Fatalf("not a reference: %v", fromTuple[1])
	}
	return ref
}
