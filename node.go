// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package erldist

import (
	"fmt"
	"sync/atomic"

	"github.com/erldist/erldist/term"
)

// Node is a local distributed-Erlang identity: a name and the shared
// cookie both endpoints must present. It carries no connection state
// of its own and is safe to share read-only across every Connection
// it dials, per spec §5 "Shared resources".
type Node struct {
	Name   string
	Cookie string

	creation uint32
	pidSeq   atomic.Uint32
}

// NewNode validates name/cookie and returns a local identity. EPMD
// registration and server-node acceptance are out of scope (spec.md
// Non-goals); this only prepares the identity a Dial call presents.
func NewNode(name, cookie string) (*Node, error) {
	if name == "" {
		return nil, wrapf(ErrInitFailed, "node name must not be empty")
	}
	if cookie == "" {
		return nil, wrapf(ErrInitFailed, "cookie must not be empty")
	}
	return &Node{Name: name, Cookie: cookie, creation: 1}, nil
}

// newSelfPid allocates a fresh local pid for one connection's SEND
// envelopes and inbound-call replies. Numbers are not required to be
// globally unique beyond this process; only uniqueness per Node
// matters for the client's own bookkeeping.
func (n *Node) newSelfPid() term.Pid {
	num := n.pidSeq.Add(1)
	return term.NewPid(n.Name, num, 0, n.creation)
}

func (n *Node) String() string {
	return fmt.Sprintf("%s (cookie=***)", n.Name)
}
