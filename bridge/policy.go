// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package bridge is the generic encode/decode façade that maps plain
// Go aggregate values to and from [term.Term]/ETF bytes, driven by a
// per-subtree policy instead of runtime reflection tags baked into a
// wire schema. See SPEC_FULL.md §4.D/§4.E.
package bridge

// StringPolicy selects how Go text becomes an ETF term.
type StringPolicy int

const (
	// StringBinary encodes text as a byte-aligned Binary. Default.
	StringBinary StringPolicy = iota
	// StringAtom encodes text as an Atom.
	StringAtom
	// StringCharlist encodes text as the charlist shorthand String.
	StringCharlist
)

// UnkeyedPolicy selects how an ordered group becomes an ETF term.
type UnkeyedPolicy int

const (
	// UnkeyedList encodes ordered groups as List. Default.
	UnkeyedList UnkeyedPolicy = iota
	// UnkeyedTuple encodes ordered groups as Tuple.
	UnkeyedTuple
)

// KeyedKind selects the overall shape a keyed group takes.
type KeyedKind int

const (
	// KeyedMap encodes keyed groups as Map. Default.
	KeyedMap KeyedKind = iota
	// KeyedKeywordList encodes keyed groups as a proper list of
	// {Atom, value} 2-tuples, preserving field/insertion order.
	KeyedKeywordList
)

// KeyedPolicy configures the keyed-group encoding. KeyString only
// applies when Kind is KeyedMap; it controls how the field/key name
// itself becomes an ETF key (KeyedKeywordList always uses Atom keys,
// per its definition).
type KeyedPolicy struct {
	Kind      KeyedKind
	KeyString StringPolicy
}

// Policy is the ambient encode/decode policy for one subtree. Entering
// an annotated field pushes an override; exiting pops it. Policy is
// passed by value: a struct-tag override is applied with Policy.apply
// to a copy that only the field's own subtree sees.
type Policy struct {
	String  StringPolicy
	Unkeyed UnkeyedPolicy
	Keyed   KeyedPolicy
}

// DefaultPolicy matches the table in SPEC_FULL.md §4.D: binary
// strings, list-shaped ordered groups, atom-keyed maps.
func DefaultPolicy() Policy {
	return Policy{
		String:  StringBinary,
		Unkeyed: UnkeyedList,
		Keyed:   KeyedPolicy{Kind: KeyedMap, KeyString: StringAtom},
	}
}

// policyOverride holds the policy fields a struct tag sets; apply
// returns a copy of p with those fields replaced. DialOptions do not
// go through it: they set the connection's Policy fields directly.
type policyOverride struct {
	hasString  bool
	string     StringPolicy
	hasUnkeyed bool
	unkeyed    UnkeyedPolicy
	hasKeyed   bool
	keyed      KeyedPolicy
}

func (p Policy) apply(o policyOverride) Policy {
	out := p
	if o.hasString {
		out.String = o.string
	}
	if o.hasUnkeyed {
		out.Unkeyed = o.unkeyed
	}
	if o.hasKeyed {
		out.Keyed = o.keyed
	}
	return out
}

// Wrapper types let call sites force a policy on one value without
// touching the ambient policy, per the "wrapper types" option in
// SPEC_FULL.md §9 (DESIGN NOTES, policy scoping).

// Charlist forces string policy=charlist for this value only.
type Charlist string

// AtomString forces string policy=atom for this value only.
type AtomString string

// BinaryString forces string policy=binary for this value only.
type BinaryString string

// Tuple forces unkeyed policy=tuple for this value only. Elements are
// encoded/decoded with the ambient policy otherwise unchanged.
type Tuple []interface{}

// KeywordPair is one entry of a KeywordList.
type KeywordPair struct {
	Key   string
	Value interface{}
}

// KeywordList forces keyed policy=keyword_list for this value only,
// and is itself the order-preserving representation: entries encode
// in slice order, exactly as given.
type KeywordList []KeywordPair
