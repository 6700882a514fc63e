// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package term

import "testing"

func TestEqualScalars(t *testing.T) {
	cases := []struct {
		a, b Term
		want bool
	}{
		{NewInt(1), NewInt(1), true},
		{NewInt(1), NewInt(2), false},
		{NewFloat(1.5), NewFloat(1.5), true},
		{NewAtom("ok"), NewAtom("ok"), true},
		{NewAtom("ok"), NewAtom("error"), false},
		{NewInt(1), NewFloat(1), false},
		{NewBinary([]byte("hi")), NewBinary([]byte("hi")), true},
		{NewBinary([]byte("hi")), NewBinary([]byte("ho")), false},
	}
	for _, c := range cases {
		if got := Equal(c.a, c.b); got != c.want {
			t.Errorf("Equal(%v, %v) = %v, want %v", c.a, c.b, got, c.want)
		}
	}
}

func TestEqualMapIgnoresPairOrder(t *testing.T) {
	a := NewMap(
		MapPair{Key: NewAtom("a"), Value: NewInt(1)},
		MapPair{Key: NewAtom("b"), Value: NewInt(2)},
	)
	b := NewMap(
		MapPair{Key: NewAtom("b"), Value: NewInt(2)},
		MapPair{Key: NewAtom("a"), Value: NewInt(1)},
	)
	if !Equal(a, b) {
		t.Errorf("expected maps with swapped pair order to be equal")
	}
	if Hash(a) != Hash(b) {
		t.Errorf("expected maps with swapped pair order to hash equal")
	}
}

func TestEqualMapRejectsDifferentArity(t *testing.T) {
	a := NewMap(MapPair{Key: NewAtom("a"), Value: NewInt(1)})
	b := NewMap(
		MapPair{Key: NewAtom("a"), Value: NewInt(1)},
		MapPair{Key: NewAtom("b"), Value: NewInt(2)},
	)
	if Equal(a, b) {
		t.Errorf("maps of different arity must not be equal")
	}
}

func TestPidEqualityIsStructural(t *testing.T) {
	a := NewPid("node@host", 1, 0, 3)
	b := NewPid("node@host", 1, 0, 3)
	c := NewPid("node@host", 2, 0, 3)
	if !Equal(a, b) {
		t.Errorf("expected structurally identical Pids to be equal")
	}
	if Equal(a, c) {
		t.Errorf("expected Pids with different Num to be unequal")
	}
	if Hash(a) != Hash(b) {
		t.Errorf("expected structurally identical Pids to hash equal")
	}
}

func TestFunEqualityIsStructural(t *testing.T) {
	f := Fun{Tag: 112, Raw: []byte{1, 2, 3}}
	g := Fun{Tag: 112, Raw: []byte{1, 2, 3}}
	h := Fun{Tag: 112, Raw: []byte{1, 2, 4}}
	if !Equal(f, g) {
		t.Errorf("expected Funs with identical raw bytes to be equal")
	}
	if Equal(f, h) {
		t.Errorf("expected Funs with different raw bytes to be unequal")
	}
}

func TestBoolRoundTrip(t *testing.T) {
	if b, ok := AsBool(Bool(true)); !ok || !b {
		t.Errorf("AsBool(Bool(true)) = %v, %v", b, ok)
	}
	if b, ok := AsBool(Bool(false)); !ok || b {
		t.Errorf("AsBool(Bool(false)) = %v, %v", b, ok)
	}
	if _, ok := AsBool(NewAtom("maybe")); ok {
		t.Errorf("AsBool should reject non-boolean atoms")
	}
}

func TestListAndTupleStringRendering(t *testing.T) {
	tup := NewTuple(NewAtom("ok"), NewInt(1))
	if tup.String() != "{:ok, 1}" {
		t.Errorf("Tuple.String() = %q", tup.String())
	}
	list := NewList(NewInt(1), NewInt(2))
	if list.String() != "[1, 2]" {
		t.Errorf("List.String() = %q", list.String())
	}
}
