// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package erldist

import (
	"errors"
	"fmt"
)

// Transport/Node error kinds, spec §7.3. Each wraps an underlying
// cause the way the teacher wraps transport errors ("zap dial: %w").
var (
	ErrInitFailed       = errors.New("erldist: node init failed")
	ErrConnectionFailed = errors.New("erldist: connection failed")
	ErrRegisterFailed   = errors.New("erldist: register failed")
	ErrNotConnected     = errors.New("erldist: not connected")
	ErrSendFailed       = errors.New("erldist: send failed")
	ErrReceiveFailed    = errors.New("erldist: receive failed")
)

// RPC error kinds, spec §7.4.
var (
	// ErrNoResponse reports that the subscriber stream closed before a
	// :rex frame carrying this call's id arrived.
	ErrNoResponse = errors.New("erldist: rpc: no response before stream closed")
	// ErrMissingConnection reports that the DSL façade (component G)
	// was invoked without a connection argument.
	ErrMissingConnection = errors.New("erldist: rpc: missing connection argument")
)

// BadRPC reports that the remote's :rex reply was shaped
// {:badrpc, Reason}. Reason is the decoded payload under Term form;
// callers that want a typed Reason can re-decode it with package
// bridge.
type BadRPC struct {
	Reason interface{ String() string }
}

func (e *BadRPC) Error() string {
	return fmt.Sprintf("erldist: rpc: badrpc: %s", e.Reason.String())
}

func wrapf(sentinel error, format string, args ...interface{}) error {
	return fmt.Errorf(format+": %w", append(args, sentinel)...)
}
