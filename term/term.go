// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package term defines the Term sum type: a tagged union covering every
// shape the External Term Format can carry. Term is the currency that
// package etf encodes and decodes; package bridge maps it to and from
// plain Go values.
package term

import (
	"fmt"
	"hash/fnv"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Term is the sealed interface implemented by every term variant. The
// seal (isTerm) keeps external packages from inventing new variants;
// the codec's tag dispatch assumes the set below is exhaustive.
type Term interface {
	fmt.Stringer
	isTerm()
}

// Int is a small or large integer. Go's int64 covers SMALL_INTEGER,
// INTEGER, and the common SMALL_BIG range; values outside int64 are
// not representable, and decoding one returns a BadTerm DecodingError.
type Int int64

// Float is an IEEE-754 double, always encoded as NEW_FLOAT.
type Float float64

// Atom is a printable, interned name.
type Atom string

// String is the charlist shorthand: a list of small integers encoded
// compactly as the ETF STRING tag. It is distinct from Binary.
type String string

// Binary is a byte-aligned binary.
type Binary []byte

// Bitstring is a byte-aligned run of bits with an optional trailing
// bit count. TrailingBits is the number of unused low bits in the
// final byte of Data: a nonzero value means that byte only contributes
// its high 8-TrailingBits bits.
type Bitstring struct {
	Data         []byte
	TrailingBits uint8
}

// Tuple is a fixed-arity ordered sequence.
type Tuple []Term

// List is a proper list; improper lists are out of scope, and the
// decoder rejects a non-NIL tail with MissingListEnd.
type List []Term

// MapPair is one key/value entry of a Map, kept in wire order.
type MapPair struct {
	Key   Term
	Value Term
}

// Map is an association list rather than a Go map because ETF map
// keys may be any Term, including ones Go cannot use as map keys
// (Tuple, List, Map itself). Equality and hashing are order-independent;
// encoding preserves the order the pairs were given in, so a Map that
// was decoded in canonical order re-encodes byte-for-byte.
type Map []MapPair

// Pid identifies a process on a node.
type Pid struct {
	Node     string
	Num      uint32
	Serial   uint32
	Creation uint32
}

// Port identifies a port on a node.
type Port struct {
	Node     string
	ID       uint64
	Creation uint32
}

// Reference identifies a unique, opaque reference on a node. IDs holds
// the reference's 32-bit words: the old REFERENCE_EXT form carries
// exactly one, NEW_REFERENCE and NEWER_REFERENCE carry as many as
// their length field says.
type Reference struct {
	Node     string
	Creation uint32
	IDs      []uint32
}

// Fun is an opaque exported- or closure-fun. The codec never
// synthesizes new funs: it captures enough of the wire encoding to
// support equality and rehashing, and re-emits exactly what it read.
type Fun struct {
	// Tag is the original ETF tag byte (NEW_FUN_EXT, EXPORT_EXT, or
	// FUN_EXT) so re-encoding picks the same wire form.
	Tag byte
	// Raw is the tag's payload, verbatim, not including the tag byte
	// itself or the leading version byte.
	Raw []byte
}

func (Int) isTerm()       {}
func (Float) isTerm()     {}
func (Atom) isTerm()      {}
func (String) isTerm()    {}
func (Binary) isTerm()    {}
func (Bitstring) isTerm() {}
func (Tuple) isTerm()     {}
func (List) isTerm()      {}
func (Map) isTerm()       {}
func (Pid) isTerm()       {}
func (Port) isTerm()      {}
func (Reference) isTerm() {}
func (Fun) isTerm()       {}

// Constructors. These exist for symmetry with the variant names used
// in spec prose and RPC call sites; the underlying types are exported
// and can be constructed directly too.

func NewInt(v int64) Int                       { return Int(v) }
func NewFloat(v float64) Float                 { return Float(v) }
func NewAtom(name string) Atom                 { return Atom(name) }
func NewString(s string) String                { return String(s) }
func NewBinary(b []byte) Binary                { return Binary(b) }
func NewBitstring(b []byte, trailing uint8) Bitstring {
	return Bitstring{Data: b, TrailingBits: trailing}
}
func NewTuple(elems ...Term) Tuple { return Tuple(elems) }
func NewList(elems ...Term) List   { return List(elems) }
func NewMap(pairs ...MapPair) Map  { return Map(pairs) }
func NewPid(node string, num, serial, creation uint32) Pid {
	return Pid{Node: node, Num: num, Serial: serial, Creation: creation}
}
func NewPort(node string, id uint64, creation uint32) Port {
	return Port{Node: node, ID: id, Creation: creation}
}
func NewReference(node string, creation uint32, ids ...uint32) Reference {
	return Reference{Node: node, Creation: creation, IDs: append([]uint32(nil), ids...)}
}

// Nil is the idiomatic Erlang empty list, used as both "nil" and
// "false-ish absence" by the generic bridge.
var Nil = List(nil)

// Bool returns Atom("true") or Atom("false").
func Bool(v bool) Atom {
	if v {
		return Atom("true")
	}
	return Atom("false")
}

// AsBool reports whether t is the atom true/false and its value.
func AsBool(t Term) (bool, bool) {
	a, ok := t.(Atom)
	if !ok {
		return false, false
	}
	switch a {
	case "true":
		return true, true
	case "false":
		return false, true
	default:
		return false, false
	}
}

// Equal reports whether a and b are the same term, structurally. Pid,
// Port, Reference, and Fun compare by value over every carried field,
// never by identity. Map equality ignores pair order.
func Equal(a, b Term) bool {
	switch av := a.(type) {
	case Int:
		bv, ok := b.(Int)
		return ok && av == bv
	case Float:
		bv, ok := b.(Float)
		return ok && av == bv
	case Atom:
		bv, ok := b.(Atom)
		return ok && av == bv
	case String:
		bv, ok := b.(String)
		return ok && av == bv
	case Binary:
		bv, ok := b.(Binary)
		return ok && string(av) == string(bv)
	case Bitstring:
		bv, ok := b.(Bitstring)
		return ok && av.TrailingBits == bv.TrailingBits && string(av.Data) == string(bv.Data)
	case Tuple:
		bv, ok := b.(Tuple)
		return ok && equalSeq(av, bv)
	case List:
		bv, ok := b.(List)
		return ok && equalSeq(av, bv)
	case Map:
		bv, ok := b.(Map)
		return ok && equalMap(av, bv)
	case Pid:
		bv, ok := b.(Pid)
		return ok && av == bv
	case Port:
		bv, ok := b.(Port)
		return ok && av == bv
	case Reference:
		bv, ok := b.(Reference)
		return ok && av.Node == bv.Node && av.Creation == bv.Creation && equalUint32s(av.IDs, bv.IDs)
	case Fun:
		bv, ok := b.(Fun)
		return ok && av.Tag == bv.Tag && string(av.Raw) == string(bv.Raw)
	default:
		return false
	}
}

func equalSeq(a, b []Term) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

func equalUint32s(a, b []uint32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func equalMap(a, b Map) bool {
	if len(a) != len(b) {
		return false
	}
	used := make([]bool, len(b))
	for _, pa := range a {
		found := false
		for j, pb := range b {
			if used[j] {
				continue
			}
			if Equal(pa.Key, pb.Key) && Equal(pa.Value, pb.Value) {
				used[j] = true
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Hash returns a hash consistent with Equal: Equal(a, b) implies
// Hash(a) == Hash(b).
func Hash(t Term) uint64 {
	h := fnv.New64a()
	hashInto(h, t)
	return h.Sum64()
}

func hashInto(h hashWriter, t Term) {
	switch v := t.(type) {
	case Int:
		writeTag(h, 1)
		writeU64(h, uint64(v))
	case Float:
		writeTag(h, 2)
		writeU64(h, uint64(v))
	case Atom:
		writeTag(h, 3)
		h.Write([]byte(v))
	case String:
		writeTag(h, 4)
		h.Write([]byte(v))
	case Binary:
		writeTag(h, 5)
		h.Write(v)
	case Bitstring:
		writeTag(h, 6)
		h.Write(v.Data)
		writeTag(h, v.TrailingBits)
	case Tuple:
		writeTag(h, 7)
		for _, e := range v {
			hashInto(h, e)
		}
	case List:
		writeTag(h, 8)
		for _, e := range v {
			hashInto(h, e)
		}
	case Map:
		writeTag(h, 9)
		// order-independent: combine per-pair hashes with XOR.
		var acc uint64
		for _, p := range v {
			ph := fnv.New64a()
			hashInto(ph, p.Key)
			hashInto(ph, p.Value)
			acc ^= ph.Sum64()
		}
		writeU64(h, acc)
	case Pid:
		writeTag(h, 10)
		h.Write([]byte(v.Node))
		writeU64(h, uint64(v.Num)<<32|uint64(v.Serial))
		writeU64(h, uint64(v.Creation))
	case Port:
		writeTag(h, 11)
		h.Write([]byte(v.Node))
		writeU64(h, v.ID)
		writeU64(h, uint64(v.Creation))
	case Reference:
		writeTag(h, 12)
		h.Write([]byte(v.Node))
		writeU64(h, uint64(v.Creation))
		for _, id := range v.IDs {
			writeU64(h, uint64(id))
		}
	case Fun:
		writeTag(h, 13)
		writeTag(h, v.Tag)
		h.Write(v.Raw)
	}
}

type hashWriter interface {
	Write(p []byte) (int, error)
}

func writeTag(h hashWriter, b byte) { h.Write([]byte{b}) }

func writeU64(h hashWriter, v uint64) {
	var buf [8]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(v >> (8 * i))
	}
	h.Write(buf[:])
}

// String renders t using Erlang's conventional term syntax. This is a
// debugging aid, not a stable wire or parse format.
func (v Int) String() string   { return strconv.FormatInt(int64(v), 10) }
func (v Float) String() string { return strconv.FormatFloat(float64(v), 'g', -1, 64) }
func (v Atom) String() string  { return ":" + string(v) }

func (v String) String() string {
	return strconv.Quote(string(v)) + "c" // charlist shorthand marker
}

func (v Binary) String() string {
	if utf8.Valid(v) && isPrintableASCIIish(v) {
		return strconv.Quote(string(v))
	}
	var sb strings.Builder
	sb.WriteString("<<")
	for i, b := range v {
		if i > 0 {
			sb.WriteByte(',')
		}
		fmt.Fprintf(&sb, "%d", b)
	}
	sb.WriteString(">>")
	return sb.String()
}

func isPrintableASCIIish(b []byte) bool {
	for _, r := range string(b) {
		if r < 0x20 && r != '\n' && r != '\t' {
			return false
		}
	}
	return true
}

func (v Bitstring) String() string {
	return fmt.Sprintf("<<%s:%d/bits>>", Binary(v.Data).String(), len(v.Data)*8-int(v.TrailingBits))
}

func (v Tuple) String() string { return "{" + joinTerms(v) + "}" }
func (v List) String() string  { return "[" + joinTerms(v) + "]" }

func (v Map) String() string {
	var sb strings.Builder
	sb.WriteString("%{")
	pairs := append(Map(nil), v...)
	sort.SliceStable(pairs, func(i, j int) bool { return pairs[i].Key.String() < pairs[j].Key.String() })
	for i, p := range pairs {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(p.Key.String())
		sb.WriteString(" => ")
		sb.WriteString(p.Value.String())
	}
	sb.WriteString("}")
	return sb.String()
}

func (v Pid) String() string {
	return fmt.Sprintf("#PID<%s.%d.%d.%d>", v.Node, v.Creation, v.Num, v.Serial)
}

func (v Port) String() string {
	return fmt.Sprintf("#Port<%s.%d.%d>", v.Node, v.Creation, v.ID)
}

func (v Reference) String() string {
	parts := make([]string, len(v.IDs))
	for i, id := range v.IDs {
		parts[i] = strconv.FormatUint(uint64(id), 10)
	}
	return fmt.Sprintf("#Reference<%s.%d.%s>", v.Node, v.Creation, strings.Join(parts, "."))
}

func (v Fun) String() string {
	return fmt.Sprintf("#Fun<tag:%d,%d bytes>", v.Tag, len(v.Raw))
}

func joinTerms(ts []Term) string {
	parts := make([]string, len(ts))
	for i, t := range ts {
		parts[i] = t.String()
	}
	return strings.Join(parts, ", ")
}
