// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package erldist

import (
	"context"
	"sync"
)

// Transport names, spec §4.F "Transport selection". Only the client
// side exists: accepting a distribution handshake as a server node is
// out of scope (spec.md Non-goals).
const (
	TransportTCP  = "tcp"  // length-prefixed raw ETF over net.Conn, default
	TransportGRPC = "grpc" // bidi-stream framing, requires -tags erldist_grpc
)

// DefaultTransport is used when a Dial call does not specify one.
const DefaultTransport = TransportTCP

// Transport is the wire carrier a Connection reads frames from and
// writes frames to. A frame is a control term followed by a message
// term, each encoded without a version byte, and a zero-length frame
// is a TICK; finding a frame's boundaries on the wire is the transport's concern,
// not the connection actor's.
type Transport interface {
	Send(ctx context.Context, frame []byte) error
	Recv(ctx context.Context) ([]byte, error)
	Close() error
}

type dialFunc func(ctx context.Context, addr string, o *dialOptions) (Transport, error)

var (
	transportsMu sync.RWMutex
	transports   = map[string]dialFunc{
		TransportTCP: dialTCP,
	}
)

// registerTransport registers an additional transport. Called from
// the build-tag-gated grpc_transport.go's init, the way the teacher
// registers its optional transports.
func registerTransport(name string, dial dialFunc) {
	transportsMu.Lock()
	defer transportsMu.Unlock()
	transports[name] = dial
}

// AvailableTransports lists every transport compiled into this binary.
func AvailableTransports() []string {
	transportsMu.RLock()
	defer transportsMu.RUnlock()
	names := make([]string, 0, len(transports))
	for name := range transports {
		names = append(names, name)
	}
	return names
}

// HasTransport reports whether name was registered.
func HasTransport(name string) bool {
	transportsMu.RLock()
	defer transportsMu.RUnlock()
	_, ok := transports[name]
	return ok
}

func lookupDialer(name string) (dialFunc, bool) {
	transportsMu.RLock()
	defer transportsMu.RUnlock()
	d, ok := transports[name]
	return d, ok
}
