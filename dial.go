// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package erldist

import (
	"context"
	"io"
	"time"

	"github.com/erldist/erldist/bridge"
	"github.com/rs/zerolog"
)

type dialOptions struct {
	transportName string
	cookie        string
	registerAs    string
	policy        bridge.Policy
	log           zerolog.Logger
	dialTimeout   time.Duration
}

func defaultDialOptions() *dialOptions {
	return &dialOptions{
		transportName: DefaultTransport,
		policy:        bridge.DefaultPolicy(),
		dialTimeout:   10 * time.Second,
		log:           zerolog.Nop(),
	}
}

// DialOption configures Dial, mirroring the teacher's DialOption /
// WithCodec / WithTransport pattern (spec §6 "Control-plane API").
type DialOption func(*dialOptions)

// WithCookie overrides the cookie presented to the remote node; the
// default is the local Node's own cookie.
func WithCookie(cookie string) DialOption {
	return func(o *dialOptions) { o.cookie = cookie }
}

// WithTransportName selects a non-default registered transport, e.g.
// TransportGRPC when built with -tags erldist_grpc.
func WithTransportName(name string) DialOption {
	return func(o *dialOptions) { o.transportName = name }
}

// WithRegisterAs registers the local endpoint under a public name, the
// register_as half of spec §6's Node::connect(remote_name,
// register_as). An inbound REG_SEND frame addressed to name is then
// recognised as belonging to this connection; without it, only SEND
// frames addressed to the connection's own pid are. Registration is
// local bookkeeping (spec.md's Non-goals exclude full generality over
// the distribution protocol's control messages, which would include a
// real global name server round trip); it fails at Dial time only if
// name cannot be a legal registered name.
func WithRegisterAs(name string) DialOption {
	return func(o *dialOptions) { o.registerAs = name }
}

// WithStringPolicy overrides the default string encoding policy used
// by SendTyped/RPCDecoded on this connection.
func WithStringPolicy(p bridge.StringPolicy) DialOption {
	return func(o *dialOptions) { o.policy.String = p }
}

// WithUnkeyedPolicy overrides the default ordered-group policy.
func WithUnkeyedPolicy(p bridge.UnkeyedPolicy) DialOption {
	return func(o *dialOptions) { o.policy.Unkeyed = p }
}

// WithKeyedPolicy overrides the default keyed-group policy.
func WithKeyedPolicy(p bridge.KeyedPolicy) DialOption {
	return func(o *dialOptions) { o.policy.Keyed = p }
}

// WithLogger attaches a structured logger; entries below are built
// with internal/erllog.New.
func WithLogger(log zerolog.Logger) DialOption {
	return func(o *dialOptions) { o.log = log }
}

// WithDialTimeout bounds the transport connect step. Ignored whenever
// ctx itself already carries a deadline, earlier or later.
func WithDialTimeout(d time.Duration) DialOption {
	return func(o *dialOptions) { o.dialTimeout = d }
}

// Dial opens a Connection to remote (a "host:port" address; EPMD
// lookup by node name is out of scope per spec.md's Non-goals) using
// local as this end's identity. The underlying transport is assumed
// to perform its own authenticated connect and cookie check (spec.md
// Non-goals), so no separate handshake round trip happens here; the
// returned Connection still passes through Init -> Connecting ->
// Ready, the last step being WithRegisterAs's local registration.
func Dial(ctx context.Context, local *Node, remote string, opts ...DialOption) (*Connection, error) {
	o := defaultDialOptions()
	for _, opt := range opts {
		opt(o)
	}
	if o.cookie == "" {
		o.cookie = local.Cookie
	}

	dial, ok := lookupDialer(o.transportName)
	if !ok {
		return nil, wrapf(ErrConnectionFailed, "dial: unknown transport %q", o.transportName)
	}

	dialCtx := ctx
	var cancel context.CancelFunc
	if _, hasDeadline := ctx.Deadline(); !hasDeadline && o.dialTimeout > 0 {
		dialCtx, cancel = context.WithTimeout(ctx, o.dialTimeout)
		defer cancel()
	}

	o.log.Info().Str("node", local.Name).Str("remote", remote).Str("transport", o.transportName).Msg("dialing")
	transport, err := dial(dialCtx, remote, o)
	if err != nil {
		return nil, wrapf(ErrConnectionFailed, "dial %s via %s: %v", remote, o.transportName, err)
	}

	conn, err := newConnection(local, remote, transport, o.policy, o.log, o.registerAs)
	if err != nil {
		_ = transport.Close()
		return nil, err
	}
	o.log.Info().Str("node", local.Name).Str("remote", remote).Str("registered_as", o.registerAs).Msg("connection ready")
	return conn, nil
}

var _ io.Closer = (*Connection)(nil)
