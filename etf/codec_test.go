// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package etf

import (
	"errors"
	"testing"

	"github.com/erldist/erldist/term"
)

func roundTrip(t *testing.T, v term.Term) term.Term {
	t.Helper()
	buf := New()
	if err := Encode(v, buf); err != nil {
		t.Fatalf("Encode(%v): %v", v, err)
	}
	decoded, err := Decode(FromBytes(buf.Bytes()))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	return decoded
}

func TestRoundTripScalars(t *testing.T) {
	cases := []term.Term{
		term.NewInt(0),
		term.NewInt(255),
		term.NewInt(-1),
		term.NewInt(1 << 40),
		term.NewInt(-(1 << 40)),
		term.NewFloat(3.5),
		term.NewFloat(-0.125),
		term.NewAtom("ok"),
		term.NewAtom(""),
		term.NewString("hello"),
		term.NewBinary([]byte("hello")),
		term.NewBinary(nil),
	}
	for _, c := range cases {
		got := roundTrip(t, c)
		if !term.Equal(got, c) {
			t.Errorf("round trip %v: got %v", c, got)
		}
	}
}

func TestRoundTripBigInt(t *testing.T) {
	huge := term.NewInt(1<<62 - 1)
	got := roundTrip(t, huge)
	if !term.Equal(got, huge) {
		t.Errorf("round trip big int: got %v, want %v", got, huge)
	}
}

func TestRoundTripAggregates(t *testing.T) {
	tup := term.NewTuple(term.NewAtom("ok"), term.NewInt(1))
	if got := roundTrip(t, tup); !term.Equal(got, tup) {
		t.Errorf("round trip tuple: got %v", got)
	}

	list := term.NewList(term.NewInt(1), term.NewInt(2), term.NewInt(3))
	if got := roundTrip(t, list); !term.Equal(got, list) {
		t.Errorf("round trip list: got %v", got)
	}

	if got := roundTrip(t, term.Nil); !term.Equal(got, term.Nil) {
		t.Errorf("round trip empty list: got %v", got)
	}

	m := term.NewMap(
		term.MapPair{Key: term.NewAtom("a"), Value: term.NewInt(1)},
		term.MapPair{Key: term.NewAtom("b"), Value: term.NewInt(2)},
	)
	if got := roundTrip(t, m); !term.Equal(got, m) {
		t.Errorf("round trip map: got %v", got)
	}
}

func TestRoundTripPidPortReference(t *testing.T) {
	pid := term.NewPid("node@host", 1, 2, 3)
	if got := roundTrip(t, pid); !term.Equal(got, pid) {
		t.Errorf("round trip pid: got %v", got)
	}

	port := term.NewPort("node@host", 42, 3)
	if got := roundTrip(t, port); !term.Equal(got, port) {
		t.Errorf("round trip port: got %v", got)
	}

	ref := term.NewReference("node@host", 3, 1, 2, 3)
	if got := roundTrip(t, ref); !term.Equal(got, ref) {
		t.Errorf("round trip reference: got %v", got)
	}
}

func TestRoundTripBitstring(t *testing.T) {
	b := term.NewBitstring([]byte{0xFF, 0xF0}, 4)
	got := roundTrip(t, b)
	if !term.Equal(got, b) {
		t.Errorf("round trip bitstring: got %v, want %v", got, b)
	}
}

func TestDecodeBitstringRejectsOutOfRangeBits(t *testing.T) {
	buf := New()
	buf.AppendByte(tagBitBinary)
	buf.AppendBytes([]byte{0, 0, 0, 1})
	buf.AppendByte(0) // invalid: must be 1-8
	buf.AppendByte(0xFF)
	_, err := Decode(FromBytes(buf.Bytes()))
	var de *DecodingError
	if !errors.As(err, &de) || de.Kind != UnsupportedBitOffset {
		t.Fatalf("Decode() err = %v, want UnsupportedBitOffset", err)
	}
}

func TestDecodeListMissingNilTail(t *testing.T) {
	buf := New()
	buf.AppendByte(tagList)
	buf.AppendBytes([]byte{0, 0, 0, 1})
	buf.AppendByte(tagSmallInteger)
	buf.AppendByte(1)
	buf.AppendByte(tagSmallInteger) // wrong tail, should be tagNil
	buf.AppendByte(0)
	_, err := Decode(FromBytes(buf.Bytes()))
	var de *DecodingError
	if !errors.As(err, &de) || de.Kind != MissingListEnd {
		t.Fatalf("Decode() err = %v, want MissingListEnd", err)
	}
}

func TestDecodeUnknownTag(t *testing.T) {
	_, err := Decode(FromBytes([]byte{0xF3}))
	var de *DecodingError
	if !errors.As(err, &de) || de.Kind != UnknownTag {
		t.Fatalf("Decode() err = %v, want UnknownTag", err)
	}
}

func TestEncodeStringOutOfByteRangeFails(t *testing.T) {
	buf := New()
	err := Encode(term.NewString("h€llo"), buf)
	var ee *EncodingError
	if !errors.As(err, &ee) {
		t.Fatalf("Encode() err = %v, want EncodingError", err)
	}
}

func TestSkipTermAdvancesWithoutAllocating(t *testing.T) {
	buf := New()
	Encode(term.NewTuple(term.NewAtom("ok"), term.NewList(term.NewInt(1), term.NewInt(2))), buf)
	Encode(term.NewInt(99), buf)

	rbuf := FromBytes(buf.Bytes())
	if err := rbuf.SkipTerm(); err != nil {
		t.Fatalf("SkipTerm(): %v", err)
	}
	v, err := Decode(rbuf)
	if err != nil {
		t.Fatalf("Decode() after skip: %v", err)
	}
	if !term.Equal(v, term.NewInt(99)) {
		t.Errorf("Decode() after skip = %v, want 99", v)
	}

	if allocs := testing.AllocsPerRun(100, func() {
		rbuf.SeekTo(0)
		_ = rbuf.SkipTerm()
	}); allocs != 0 {
		t.Errorf("SkipTerm() allocated %v times per run, want 0", allocs)
	}
}

func TestFunOpaqueRoundTrip(t *testing.T) {
	// A minimal EXPORT_EXT payload: atom module, atom function, small
	// integer arity, captured raw per decodeExportFun.
	inner := New()
	Encode(term.NewAtom("m"), inner)
	Encode(term.NewAtom("f"), inner)
	Encode(term.NewInt(2), inner)

	full := New()
	full.AppendByte(tagExport)
	full.AppendBytes(inner.Bytes())

	decoded, err := Decode(FromBytes(full.Bytes()))
	if err != nil {
		t.Fatalf("Decode(): %v", err)
	}
	fun, ok := decoded.(term.Fun)
	if !ok {
		t.Fatalf("Decode() = %T, want term.Fun", decoded)
	}

	reenc := New()
	if err := Encode(fun, reenc); err != nil {
		t.Fatalf("Encode(fun): %v", err)
	}
	if string(reenc.Bytes()) != string(full.Bytes()) {
		t.Errorf("re-encoded fun bytes differ from original")
	}
}
