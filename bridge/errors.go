// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package bridge

import "fmt"

// TypeMismatch reports that a decode target's shape didn't match the
// ETF tag actually present.
type TypeMismatch struct {
	Expected string
	Actual   string
}

func (e *TypeMismatch) Error() string {
	return fmt.Sprintf("bridge: type mismatch: expected %s, got %s", e.Expected, e.Actual)
}

func typeMismatch(expected string, actual interface{}) error {
	return &TypeMismatch{Expected: expected, Actual: fmt.Sprintf("%T", actual)}
}

// KeyNotFound reports that a required keyed-target field had no
// matching key in the decoded Map/keyword list.
type KeyNotFound struct {
	Key string
}

func (e *KeyNotFound) Error() string { return "bridge: key not found: " + e.Key }

// InvalidArgument reports a value the encoder cannot represent under
// the active policy (e.g. an atom name over 65535 bytes under
// StringAtom policy, or an unsigned value above the 64-bit Int range).
type InvalidArgument struct {
	Value  interface{}
	Reason string
}

func (e *InvalidArgument) Error() string {
	return fmt.Sprintf("bridge: invalid argument %v: %s", e.Value, e.Reason)
}

func invalidArgument(v interface{}, reason string) error {
	return &InvalidArgument{Value: v, Reason: reason}
}

// DataCorrupted wraps any etf decode, skip_term or length read that
// failed while the generic decoder walked the buffer.
type DataCorrupted struct {
	Err error
}

func (e *DataCorrupted) Error() string { return "bridge: data corrupted: " + e.Err.Error() }
func (e *DataCorrupted) Unwrap() error { return e.Err }

func dataCorrupted(err error) error { return &DataCorrupted{Err: err} }
