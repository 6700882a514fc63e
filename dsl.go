// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package erldist

import (
	"context"
	"strings"

	"github.com/erldist/erldist/bridge"
	"github.com/erldist/erldist/term"
)

// Mod starts a dynamic-dispatch path, spec §4.G "RPC DSL": accessed
// path segments concatenate into a module name, and the terminal call
// forwards to the Connection's RPC. `Mod(conn, "Elixir", "MyApp",
// "Worker").Call(ctx, "run", args)` issues an RPC to module
// "Elixir.MyApp.Worker", function "run".
func Mod(conn *Connection, segments ...string) Path {
	return Path{conn: conn, segments: append([]string(nil), segments...)}
}

// Path is one accumulated module-name prefix of the RPC DSL.
type Path struct {
	conn     *Connection
	segments []string
}

// Elixir starts a Path rooted at "Elixir", the prefix every Elixir
// module carries on the wire; plain Erlang modules use Mod directly.
func Elixir(conn *Connection) Path {
	return Mod(conn, "Elixir")
}

// Dot appends another path segment, e.g. Elixir(conn).Dot("MyApp").Dot("Worker").
func (p Path) Dot(segment string) Path {
	return Path{conn: p.conn, segments: append(append([]string(nil), p.segments...), segment)}
}

func (p Path) moduleName() string {
	return strings.Join(p.segments, ".")
}

// Call issues an RPC for function on this path's module with args
// passed verbatim as a Term, per spec §4.G's Term-argument overload.
func (p Path) Call(ctx context.Context, function string, args term.Term) (term.Term, error) {
	if p.conn == nil {
		return nil, ErrMissingConnection
	}
	return p.conn.RPC(ctx, p.moduleName(), function, args)
}

// CallDecoded is Call followed by a 4.E decode of the reply into T.
func CallDecoded[T any](ctx context.Context, p Path, function string, args term.Term) (T, error) {
	if p.conn == nil {
		var zero T
		return zero, ErrMissingConnection
	}
	return RPCDecoded[T](ctx, p.conn, p.moduleName(), function, args)
}

// CallTyped encodes args under policy (the connection's default if
// the zero Policy is passed) before issuing the RPC, per spec §4.G's
// mixed typed-argument overload.
func CallTyped[A any](ctx context.Context, p Path, function string, args A, policy bridge.Policy) (term.Term, error) {
	if p.conn == nil {
		return nil, ErrMissingConnection
	}
	if policy == (bridge.Policy{}) {
		policy = p.conn.policy
	}
	buf, err := bridge.Encode(args, policy)
	if err != nil {
		return nil, err
	}
	t, err := decodeBufferAsTerm(buf)
	if err != nil {
		return nil, err
	}
	return p.conn.RPC(ctx, p.moduleName(), function, t)
}
