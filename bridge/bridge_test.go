// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package bridge

import (
	"testing"

	"github.com/erldist/erldist/etf"
	"github.com/erldist/erldist/term"
)

type point struct {
	X int
	Y int
}

type withTags struct {
	Name     string `erldist:"name,string=atom"`
	Age      int    `erldist:"age"`
	Internal string `erldist:"-"`
	Nickname string `erldist:"nickname,omitempty"`
}

func encodeDecode[T any](t *testing.T, value T, policy Policy) T {
	t.Helper()
	buf, err := Encode(value, policy)
	if err != nil {
		t.Fatalf("Encode(%v): %v", value, err)
	}
	out, err := Decode[T](etf.FromBytes(buf.Bytes()), policy)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	return out
}

func TestEncodeDecodeScalars(t *testing.T) {
	if got := encodeDecode(t, 42, DefaultPolicy()); got != 42 {
		t.Errorf("int round trip = %d", got)
	}
	if got := encodeDecode(t, "hello", DefaultPolicy()); got != "hello" {
		t.Errorf("string round trip = %q", got)
	}
	if got := encodeDecode(t, true, DefaultPolicy()); !got {
		t.Errorf("bool round trip = %v", got)
	}
	if got := encodeDecode(t, 1.5, DefaultPolicy()); got != 1.5 {
		t.Errorf("float round trip = %v", got)
	}
}

func TestEncodeDecodeByteSlice(t *testing.T) {
	in := []byte{1, 2, 3}
	got := encodeDecode(t, in, DefaultPolicy())
	if string(got) != string(in) {
		t.Errorf("[]byte round trip = %v", got)
	}
}

func TestEncodeDecodeSliceAsList(t *testing.T) {
	in := []int{1, 2, 3}
	got := encodeDecode(t, in, DefaultPolicy())
	if len(got) != 3 || got[0] != 1 || got[2] != 3 {
		t.Errorf("[]int round trip = %v", got)
	}
}

func TestEncodeDecodeSliceAsTuple(t *testing.T) {
	policy := DefaultPolicy()
	policy.Unkeyed = UnkeyedTuple
	in := []int{1, 2, 3}
	got := encodeDecode(t, in, policy)
	if len(got) != 3 || got[1] != 2 {
		t.Errorf("[]int tuple round trip = %v", got)
	}
}

func TestEncodeDecodeStruct(t *testing.T) {
	in := point{X: 1, Y: 2}
	got := encodeDecode(t, in, DefaultPolicy())
	if got != in {
		t.Errorf("struct round trip = %+v, want %+v", got, in)
	}
}

func TestEncodeDecodeStructWithTags(t *testing.T) {
	in := withTags{Name: "erlang", Age: 30, Internal: "dropped", Nickname: ""}
	got := encodeDecode(t, in, DefaultPolicy())
	if got.Name != "erlang" || got.Age != 30 {
		t.Fatalf("struct round trip = %+v", got)
	}
	if got.Internal != "" {
		t.Errorf("unexported-by-tag field leaked: %q", got.Internal)
	}
}

func TestEncodeDecodeStructAsKeywordList(t *testing.T) {
	policy := DefaultPolicy()
	policy.Keyed = KeyedPolicy{Kind: KeyedKeywordList}
	in := point{X: 5, Y: 6}
	got := encodeDecode(t, in, policy)
	if got != in {
		t.Errorf("keyword-list struct round trip = %+v, want %+v", got, in)
	}
}

func TestEncodeDecodeMap(t *testing.T) {
	in := map[string]int{"a": 1, "b": 2}
	got := encodeDecode(t, in, DefaultPolicy())
	if got["a"] != 1 || got["b"] != 2 || len(got) != 2 {
		t.Errorf("map round trip = %v", got)
	}
}

func TestEncodeDecodeTupleWrapper(t *testing.T) {
	in := Tuple{"ok", int64(1)}
	buf, err := Encode(in, DefaultPolicy())
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := etf.Decode(etf.FromBytes(buf.Bytes()))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	tup, ok := decoded.(term.Tuple)
	if !ok || len(tup) != 2 {
		t.Fatalf("decoded = %v, want 2-tuple", decoded)
	}
}

func TestEncodeDecodeKeywordList(t *testing.T) {
	in := KeywordList{{Key: "a", Value: int64(1)}, {Key: "b", Value: int64(2)}}
	got := encodeDecode(t, in, DefaultPolicy())
	if len(got) != 2 || got[0].Key != "a" || got[1].Key != "b" {
		t.Errorf("keyword list round trip = %v", got)
	}
}

func TestEncodeDecodeTermPassthrough(t *testing.T) {
	in := term.NewTuple(term.NewAtom("ok"), term.NewInt(1))
	got := encodeDecode[term.Term](t, in, DefaultPolicy())
	if !term.Equal(got, in) {
		t.Errorf("term.Term passthrough = %v, want %v", got, in)
	}
}

func TestEncodeDecodePointer(t *testing.T) {
	x := 7
	got := encodeDecode(t, &x, DefaultPolicy())
	if got == nil || *got != 7 {
		t.Errorf("*int round trip = %v", got)
	}

	var nilPtr *int
	gotNil := encodeDecode(t, nilPtr, DefaultPolicy())
	if gotNil != nil {
		t.Errorf("nil *int round trip = %v, want nil", gotNil)
	}
}

func TestDecodeTypeMismatch(t *testing.T) {
	buf, err := Encode("not a number", DefaultPolicy())
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	_, err = Decode[int](etf.FromBytes(buf.Bytes()), DefaultPolicy())
	if _, ok := err.(*TypeMismatch); !ok {
		t.Fatalf("Decode() err = %v (%T), want *TypeMismatch", err, err)
	}
}

type requiredField struct {
	Must string `erldist:"must,required"`
}

func TestDecodeRequiredKeyMissing(t *testing.T) {
	in := map[string]int{"other": 1}
	buf, err := Encode(in, DefaultPolicy())
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	_, err = Decode[requiredField](etf.FromBytes(buf.Bytes()), DefaultPolicy())
	if _, ok := err.(*KeyNotFound); !ok {
		t.Fatalf("Decode() err = %v (%T), want *KeyNotFound", err, err)
	}
}
