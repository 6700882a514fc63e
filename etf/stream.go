// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package etf

import "encoding/binary"

// The functions below write compound-term headers/tails directly,
// without requiring the caller to materialise a term.Tuple/List/Map
// slice first. Package bridge's generic encoder (component D) uses
// these to walk a user aggregate and stream ETF bytes straight to the
// wire, one field at a time, instead of building an intermediate
// term.Term tree for values that may be arbitrarily large.

// WriteTupleHeader writes a SMALL_TUPLE_EXT or LARGE_TUPLE_EXT tag and
// arity for n upcoming elements. The caller must then encode exactly
// n elements.
func WriteTupleHeader(buf *Buffer, n int) {
	if n <= 255 {
		buf.AppendByte(tagSmallTuple)
		buf.AppendByte(byte(n))
		return
	}
	buf.AppendByte(tagLargeTuple)
	var raw [4]byte
	binary.BigEndian.PutUint32(raw[:], uint32(n))
	buf.AppendBytes(raw[:])
}

// WriteListHeader writes a LIST_EXT tag and length for n upcoming
// elements, or NIL_EXT directly when n is zero (in which case the
// caller must not call WriteListTail). The caller must encode exactly
// n elements followed by WriteListTail when n > 0.
func WriteListHeader(buf *Buffer, n int) {
	if n == 0 {
		buf.AppendByte(tagNil)
		return
	}
	buf.AppendByte(tagList)
	var raw [4]byte
	binary.BigEndian.PutUint32(raw[:], uint32(n))
	buf.AppendBytes(raw[:])
}

// WriteListTail writes the NIL tail byte terminating a non-empty
// LIST_EXT started by WriteListHeader.
func WriteListTail(buf *Buffer) {
	buf.AppendByte(tagNil)
}

// WriteMapHeader writes a MAP_EXT tag and arity for n upcoming
// key/value pairs. The caller must then encode exactly 2*n terms,
// alternating key, value, key, value...
func WriteMapHeader(buf *Buffer, n int) {
	buf.AppendByte(tagMap)
	var raw [4]byte
	binary.BigEndian.PutUint32(raw[:], uint32(n))
	buf.AppendBytes(raw[:])
}

// Shape coarsens a tag byte into the handful of categories package
// bridge's generic decoder (component E) dispatches on.
type Shape int

const (
	ShapeOther Shape = iota
	ShapeTuple
	ShapeList
	ShapeMap
	ShapeAtom
	ShapeString
	ShapeBinary
	ShapeInt
	ShapeFloat
)

// PeekShape reads the next tag without advancing the cursor and
// classifies it.
func PeekShape(buf *Buffer) (Shape, error) {
	tag, err := buf.ReadTag()
	if err != nil {
		return ShapeOther, err
	}
	switch tag {
	case tagSmallTuple, tagLargeTuple:
		return ShapeTuple, nil
	case tagList, tagNil:
		return ShapeList, nil
	case tagMap:
		return ShapeMap, nil
	case tagAtom, tagSmallAtom, tagAtomUTF8, tagSmallAtomUTF8:
		return ShapeAtom, nil
	case tagString:
		return ShapeString, nil
	case tagBinary:
		return ShapeBinary, nil
	case tagSmallInteger, tagInteger, tagSmallBig, tagLargeBig:
		return ShapeInt, nil
	case tagNewFloat, tagFloat:
		return ShapeFloat, nil
	default:
		return ShapeOther, nil
	}
}

// ReadTupleHeader consumes a tuple tag and arity, returning the
// element count the caller must then decode.
func ReadTupleHeader(buf *Buffer) (int, error) {
	tag, err := buf.ReadByte()
	if err != nil {
		return 0, badTerm("tuple header: %v", err)
	}
	switch tag {
	case tagSmallTuple:
		n, err := buf.ReadByte()
		return int(n), err
	case tagLargeTuple:
		raw, err := buf.ReadBytes(4)
		if err != nil {
			return 0, err
		}
		return int(binary.BigEndian.Uint32(raw)), nil
	default:
		return 0, unknownTag(tag)
	}
}

// ReadListHeader consumes a list tag (LIST_EXT or NIL_EXT) and
// returns the element count. A zero-element, NIL-tagged list has
// already consumed its terminator; callers must not call
// ReadListTail in that case.
func ReadListHeader(buf *Buffer) (n int, err error) {
	tag, err := buf.ReadByte()
	if err != nil {
		return 0, badTerm("list header: %v", err)
	}
	switch tag {
	case tagNil:
		return 0, nil
	case tagList:
		raw, err := buf.ReadBytes(4)
		if err != nil {
			return 0, err
		}
		return int(binary.BigEndian.Uint32(raw)), nil
	default:
		return 0, unknownTag(tag)
	}
}

// ReadListTail consumes the NIL terminator of a non-empty list
// started by ReadListHeader.
func ReadListTail(buf *Buffer) error {
	tag, err := buf.ReadByte()
	if err != nil {
		return badTerm("list tail: %v", err)
	}
	if tag != tagNil {
		return missingListEnd("tail tag was not NIL")
	}
	return nil
}

// ReadMapHeader consumes a map tag and arity.
func ReadMapHeader(buf *Buffer) (int, error) {
	tag, err := buf.ReadByte()
	if err != nil {
		return 0, badTerm("map header: %v", err)
	}
	if tag != tagMap {
		return 0, unknownTag(tag)
	}
	raw, err := buf.ReadBytes(4)
	if err != nil {
		return 0, err
	}
	return int(binary.BigEndian.Uint32(raw)), nil
}
