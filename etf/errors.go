// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package etf

import (
	"errors"
	"fmt"
)

// ErrTruncated is wrapped into BadTerm when a length or tag read runs
// off the end of the buffer.
var ErrTruncated = errors.New("etf: truncated buffer")

// EncodingError reports that a value could not be legally encoded:
// an oversize atom, an invalid bit offset, or an unsupported Fun
// subform.
type EncodingError struct {
	Reason string
}

func (e *EncodingError) Error() string { return "etf: encoding error: " + e.Reason }

func encErr(format string, args ...interface{}) error {
	return &EncodingError{Reason: fmt.Sprintf(format, args...)}
}

// DecodingErrorKind distinguishes the ways a decode can fail.
type DecodingErrorKind int

const (
	// BadTerm covers malformed length or tag bytes.
	BadTerm DecodingErrorKind = iota
	// UnknownTag covers tags the decoder does not recognise.
	UnknownTag
	// MissingListEnd covers a List whose tail is not NIL.
	MissingListEnd
	// UnsupportedBitOffset covers a BIT_BINARY with a nonzero leading
	// bit offset.
	UnsupportedBitOffset
)

// DecodingError is returned for every decode failure. Tag is set for
// UnknownTag; Offset carries the byte the bitstring offset error
// applies to, when relevant.
type DecodingError struct {
	Kind   DecodingErrorKind
	Tag    byte
	Offset uint
	Detail string
}

func (e *DecodingError) Error() string {
	switch e.Kind {
	case UnknownTag:
		return fmt.Sprintf("etf: unknown tag %d", e.Tag)
	case MissingListEnd:
		return "etf: list missing nil tail: " + e.Detail
	case UnsupportedBitOffset:
		return fmt.Sprintf("etf: unsupported bit offset %d", e.Offset)
	default:
		return "etf: bad term: " + e.Detail
	}
}

func (e *DecodingError) Unwrap() error {
	if e.Kind == BadTerm {
		return ErrTruncated
	}
	return nil
}

func badTerm(format string, args ...interface{}) error {
	return &DecodingError{Kind: BadTerm, Detail: fmt.Sprintf(format, args...)}
}

func unknownTag(tag byte) error {
	return &DecodingError{Kind: UnknownTag, Tag: tag}
}

func missingListEnd(detail string) error {
	return &DecodingError{Kind: MissingListEnd, Detail: detail}
}

func unsupportedBitOffset(offset uint) error {
	return &DecodingError{Kind: UnsupportedBitOffset, Offset: offset}
}
