// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package erldist

import (
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDialTCPReachesReadyState(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()

	accepted := make(chan struct{})
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		close(accepted)
		defer conn.Close()
		io.Copy(io.Discard, conn)
	}()

	local, err := NewNode("gopher@localhost", "cookie")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, err := Dial(ctx, local, ln.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	select {
	case <-accepted:
	case <-time.After(2 * time.Second):
		t.Fatal("server never accepted the dial")
	}

	if conn.State() != StateReady {
		t.Errorf("State() = %v, want ready", conn.State())
	}
}

func TestDialWithRegisterAsReachesReadyState(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		io.Copy(io.Discard, conn)
	}()

	local, err := NewNode("gopher@localhost", "cookie")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, err := Dial(ctx, local, ln.Addr().String(), WithRegisterAs("probe_worker"))
	require.NoError(t, err)
	defer conn.Close()

	if conn.State() != StateReady {
		t.Errorf("State() = %v, want ready", conn.State())
	}
	if conn.registeredAs != "probe_worker" {
		t.Errorf("registeredAs = %q, want probe_worker", conn.registeredAs)
	}
}

func TestDialWithRegisterAsRejectsNulByteName(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		io.Copy(io.Discard, conn)
	}()

	local, err := NewNode("gopher@localhost", "cookie")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err = Dial(ctx, local, ln.Addr().String(), WithRegisterAs("bad\x00name"))
	if !errors.Is(err, ErrRegisterFailed) {
		t.Errorf("got %v, want ErrRegisterFailed", err)
	}
}

func TestDialUnknownTransport(t *testing.T) {
	local, err := NewNode("gopher@localhost", "cookie")
	if err != nil {
		t.Fatalf("NewNode: %v", err)
	}
	_, err = Dial(context.Background(), local, "127.0.0.1:1", WithTransportName("bogus"))
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("got %v, want ErrConnectionFailed", err)
	}
}

func TestDialFailsOnRefusedConnection(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close() // free the port but keep the address unreachable

	local, err := NewNode("gopher@localhost", "cookie")
	if err != nil {
		t.Fatalf("NewNode: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := Dial(ctx, local, addr); !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("got %v, want ErrConnectionFailed", err)
	}
}
