// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package erldist

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/erldist/erldist/internal/distproto"
	"github.com/erldist/erldist/term"
)

func TestPathModuleName(t *testing.T) {
	cases := []struct {
		path Path
		want string
	}{
		{Elixir(nil), "Elixir"},
		{Elixir(nil).Dot("MyApp").Dot("Worker"), "Elixir.MyApp.Worker"},
		{Mod(nil, "erlang"), "erlang"},
	}
	for _, c := range cases {
		if got := c.path.moduleName(); got != c.want {
			t.Errorf("moduleName() = %q, want %q", got, c.want)
		}
	}
}

func TestCallMissingConnection(t *testing.T) {
	p := Mod(nil, "erlang")
	if _, err := p.Call(context.Background(), "node", term.NewList()); !errors.Is(err, ErrMissingConnection) {
		t.Errorf("got %v, want ErrMissingConnection", err)
	}
}

func TestCallForwardsToRPCWithJoinedModuleName(t *testing.T) {
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

	path := Elixir(conn).Dot("MyApp").Dot("Worker")
	go func() {
		reply, err := path.Call(ctx, "run", term.NewList(term.NewInt(1)))
		resultCh <- result{reply, err}
	}()

	_, msg := decodeSent(t, transport)
	gen := msg.(term.Tuple)
	call := gen[2].(term.Tuple)
	gotModule := call[1].(term.Atom)
	if string(gotModule) != "Elixir.MyApp.Worker" {
		t.Errorf("module on wire = %q, want Elixir.MyApp.Worker", gotModule)
	}

	ref := extractRef(t, msg)
	pushFrame(t, transport,
		distproto.BuildSendControl(conn.selfPid),
		term.NewTuple(ref, term.NewTuple(distproto.AtomRex, term.NewAtom("ok"))))

	res := <-resultCh
	if res.err != nil {
		t.Fatalf("Call: %v", res.err)
	}
	if !term.Equal(res.reply, term.NewAtom("ok")) {
		t.Errorf("got %v, want ok", res.reply)
	}
}
