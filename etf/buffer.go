// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package etf implements the External Term Format: an append-only byte
// buffer with a version header and cursor-based decode, and the tag
// codec that turns [term.Term] values into ETF bytes and back.
package etf

import "fmt"

// VersionByte is the leading byte ETF version 1 messages start with.
const VersionByte = 131

// Buffer is a growable byte vector with an independent write cursor
// (always len(data), since Buffer is append-only) and read cursor.
// It is not safe for concurrent use.
type Buffer struct {
	data []byte
	r    int
}

// New returns an empty buffer with no version byte.
func New() *Buffer {
	return &Buffer{}
}

// NewWithVersion returns a buffer seeded with the ETF version byte.
func NewWithVersion() *Buffer {
	return &Buffer{data: []byte{VersionByte}}
}

// FromBytes wraps existing bytes for decoding. The read cursor starts
// at zero; call ConsumeVersion to skip a leading version byte.
func FromBytes(b []byte) *Buffer {
	return &Buffer{data: b}
}

// Bytes returns the buffer's full contents.
func (b *Buffer) Bytes() []byte { return b.data }

// Len is the write cursor: the number of bytes emitted so far.
func (b *Buffer) Len() int { return len(b.data) }

// Remaining is the number of unread bytes.
func (b *Buffer) Remaining() int { return len(b.data) - b.r }

// AppendByte appends one byte.
func (b *Buffer) AppendByte(v byte) {
	b.data = append(b.data, v)
}

// AppendBytes appends a byte slice verbatim.
func (b *Buffer) AppendBytes(v []byte) {
	b.data = append(b.data, v...)
}

// Reserve grows the buffer by n zero bytes and returns the offset at
// which they start, for later patching with WriteAt (e.g. a length
// prefix that isn't known until its payload has been written).
func (b *Buffer) Reserve(n int) int {
	off := len(b.data)
	b.data = append(b.data, make([]byte, n)...)
	return off
}

// WriteAt overwrites n bytes starting at off, previously obtained from
// Reserve. It never grows the buffer.
func (b *Buffer) WriteAt(off int, v []byte) {
	copy(b.data[off:off+len(v)], v)
}

// AppendBuffer concatenates other's payload, skipping other's leading
// version byte if present at its start (offset 0, not its read
// cursor) — this lets a freshly-built sub-buffer be spliced into a
// larger message without double version bytes.
func (b *Buffer) AppendBuffer(other *Buffer) {
	data := other.data
	if len(data) > 0 && data[0] == VersionByte {
		data = data[1:]
	}
	b.data = append(b.data, data...)
}

// ConsumeVersion advances the read cursor past a leading version byte
// if the next byte at the cursor is 131. It reports whether it did.
func (b *Buffer) ConsumeVersion() bool {
	if b.r < len(b.data) && b.data[b.r] == VersionByte {
		b.r++
		return true
	}
	return false
}

// ReadTag peeks the next tag byte without advancing the read cursor.
func (b *Buffer) ReadTag() (byte, error) {
	if b.r >= len(b.data) {
		return 0, fmt.Errorf("etf: read tag: %w", ErrTruncated)
	}
	return b.data[b.r], nil
}

// ReadByte consumes and returns one byte.
func (b *Buffer) ReadByte() (byte, error) {
	if b.r >= len(b.data) {
		return 0, ErrTruncated
	}
	v := b.data[b.r]
	b.r++
	return v, nil
}

// ReadBytes consumes and returns the next n bytes.
func (b *Buffer) ReadBytes(n int) ([]byte, error) {
	if n < 0 || b.r+n > len(b.data) {
		return nil, ErrTruncated
	}
	v := b.data[b.r : b.r+n]
	b.r += n
	return v, nil
}

// Peek returns the next n bytes without advancing the cursor.
func (b *Buffer) Peek(n int) ([]byte, error) {
	if n < 0 || b.r+n > len(b.data) {
		return nil, ErrTruncated
	}
	return b.data[b.r : b.r+n], nil
}

// Cursor returns the current read offset.
func (b *Buffer) Cursor() int { return b.r }

// SeekTo rewinds or advances the read cursor to an absolute offset
// previously returned by Cursor. Used by the generic decoder's
// key-index scan (package bridge) to revisit a map value without
// re-decoding everything before it.
func (b *Buffer) SeekTo(off int) {
	b.r = off
}

// SkipTerm advances the read cursor over exactly one well-formed term
// without allocating or materialising it. It is O(size-of-term).
func (b *Buffer) SkipTerm() error {
	return skipTerm(b)
}
