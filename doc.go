// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package erldist is a distributed-Erlang node client: an External
// Term Format codec, a generic typed↔ETF bridge, and a connection
// actor that speaks the SEND/REG_SEND/RPC/TICK subset of the Erlang
// distribution protocol.
//
// # Transport selection
//
// TCP (length-prefixed raw ETF frames) is the default. Build with
// -tags erldist_grpc to additionally register a gRPC bidi-stream
// transport:
//
//	go build                       # tcp only (default)
//	go build -tags erldist_grpc    # also registers the grpc transport
//
// # Usage
//
//	local, err := erldist.NewNode("gopher@localhost", "my-cookie")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	conn, err := erldist.Dial(ctx, local, "localhost:9999")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer conn.Close()
//
//	reply, err := conn.RPC(ctx, "erlang", "node", term.NewList())
//
//	// Or via the dynamic-dispatch DSL:
//	reply, err = erldist.Elixir(conn).Dot("MyApp").Dot("Worker").
//	    Call(ctx, "run", term.NewList())
//
// # Architecture
//
// The package separates concerns the way the teacher repo separates
// its RPC abstractions:
//
//   - node.go: local node identity
//   - transport.go: transport registry for build-tag extensibility
//   - tcp_transport.go: default length-prefixed ETF transport
//   - grpc_transport.go: gRPC bidi-stream transport (requires -tags erldist_grpc)
//   - connection.go: the connection actor — reader task, RPC correlation, inbound-call dispatch
//   - dial.go: Dial and DialOption
//   - dsl.go: the Elixir.<Module>.<func> dynamic-dispatch façade
//   - debug_codec.go: JSON⇄Term debug rendering for cmd/erldist-probe
//
// Subpackages term, etf, and bridge implement the term model, the ETF
// codec, and the generic typed↔ETF bridge respectively.
package erldist
