// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package bridge

import (
	"reflect"
	"sort"

	"github.com/erldist/erldist/etf"
	"github.com/erldist/erldist/term"
)

// Encode walks value's shape and streams its ETF encoding into a
// fresh buffer under policy. It never materialises an intermediate
// term.Term for aggregate shapes (ordered/keyed groups); only leaf
// scalars pass through a one-off term.Term value on their way to
// [etf.Encode].
func Encode[T any](value T, policy Policy) (*etf.Buffer, error) {
	buf := etf.New()
	if err := encodeValue(reflect.ValueOf(value), policy, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// EncodeWithVersion behaves like Encode but seeds the buffer with the
// ETF version byte, for values handed straight to a transport.
func EncodeWithVersion[T any](value T, policy Policy) (*etf.Buffer, error) {
	buf := etf.NewWithVersion()
	if err := encodeValue(reflect.ValueOf(value), policy, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func encodeValue(rv reflect.Value, policy Policy, buf *etf.Buffer) error {
	if !rv.IsValid() {
		return etf.Encode(term.Nil, buf)
	}

	if rv.CanInterface() {
		iv := rv.Interface()
		switch v := iv.(type) {
		case term.Term:
			return etf.Encode(v, buf)
		case Charlist:
			return encodeScalarString(string(v), StringCharlist, buf)
		case AtomString:
			return encodeScalarString(string(v), StringAtom, buf)
		case BinaryString:
			return encodeScalarString(string(v), StringBinary, buf)
		case Tuple:
			return encodeOrderedElems(v, policy, buf, true)
		case KeywordList:
			return encodeKeywordList(v, policy, buf)
		}
	}

	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			return etf.Encode(term.Nil, buf)
		}
		return encodeValue(rv.Elem(), policy, buf)
	case reflect.Bool:
		return etf.Encode(term.Bool(rv.Bool()), buf)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return etf.Encode(term.Int(rv.Int()), buf)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		if u > 1<<63-1 {
			return invalidArgument(u, "unsigned value overflows the 64-bit Int term")
		}
		return etf.Encode(term.Int(int64(u)), buf)
	case reflect.Float32, reflect.Float64:
		return etf.Encode(term.Float(rv.Float()), buf)
	case reflect.String:
		return encodeScalarString(rv.String(), policy.String, buf)
	case reflect.Slice, reflect.Array:
		if isByteSlice(rv) {
			return etf.Encode(term.Binary(toByteSlice(rv)), buf)
		}
		return encodeOrdered(rv, policy, buf)
	case reflect.Map:
		return encodeGoMap(rv, policy, buf)
	case reflect.Struct:
		return encodeStruct(rv, policy, buf)
	default:
		return invalidArgument(rv.Kind().String(), "unsupported scalar/aggregate kind")
	}
}

func isByteSlice(rv reflect.Value) bool {
	return rv.Type().Elem().Kind() == reflect.Uint8
}

func toByteSlice(rv reflect.Value) []byte {
	if rv.Kind() == reflect.Array {
		b := make([]byte, rv.Len())
		reflect.Copy(reflect.ValueOf(b), rv)
		return b
	}
	return rv.Bytes()
}

func encodeScalarString(s string, sp StringPolicy, buf *etf.Buffer) error {
	switch sp {
	case StringAtom:
		if len(s) > 65535 {
			return invalidArgument(s, "atom name too long")
		}
		return etf.Encode(term.Atom(s), buf)
	case StringCharlist:
		return etf.Encode(term.String(s), buf)
	default:
		return etf.Encode(term.Binary([]byte(s)), buf)
	}
}

func encodeOrdered(rv reflect.Value, policy Policy, buf *etf.Buffer) error {
	n := rv.Len()
	asTuple := policy.Unkeyed == UnkeyedTuple
	if asTuple {
		etf.WriteTupleHeader(buf, n)
	} else {
		etf.WriteListHeader(buf, n)
	}
	for i := 0; i < n; i++ {
		if err := encodeValue(rv.Index(i), policy, buf); err != nil {
			return err
		}
	}
	if !asTuple && n > 0 {
		etf.WriteListTail(buf)
	}
	return nil
}

func encodeOrderedElems(elems Tuple, policy Policy, buf *etf.Buffer, asTuple bool) error {
	n := len(elems)
	if asTuple {
		etf.WriteTupleHeader(buf, n)
	} else {
		etf.WriteListHeader(buf, n)
	}
	for _, e := range elems {
		if err := encodeValue(reflect.ValueOf(e), policy, buf); err != nil {
			return err
		}
	}
	if !asTuple && n > 0 {
		etf.WriteListTail(buf)
	}
	return nil
}

func encodeKeywordList(kw KeywordList, policy Policy, buf *etf.Buffer) error {
	n := len(kw)
	etf.WriteListHeader(buf, n)
	for _, pair := range kw {
		etf.WriteTupleHeader(buf, 2)
		if err := etf.Encode(term.Atom(pair.Key), buf); err != nil {
			return err
		}
		if err := encodeValue(reflect.ValueOf(pair.Value), policy, buf); err != nil {
			return err
		}
	}
	if n > 0 {
		etf.WriteListTail(buf)
	}
	return nil
}

func encodeGoMap(rv reflect.Value, policy Policy, buf *etf.Buffer) error {
	if rv.Type().Key().Kind() != reflect.String {
		return invalidArgument(rv.Type().String(), "only string-keyed maps are supported as keyed groups")
	}
	keys := rv.MapKeys()
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return encodeKeyedGroup(policy, len(keys), buf, func(i int) (string, reflect.Value, policyOverride) {
		k := keys[i]
		return k.String(), rv.MapIndex(k), policyOverride{}
	})
}

func encodeStruct(rv reflect.Value, policy Policy, buf *etf.Buffer) error {
	t := rv.Type()
	type field struct {
		name     string
		value    reflect.Value
		override policyOverride
	}
	var fields []field
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if sf.PkgPath != "" { // unexported
			continue
		}
		name, override, skip, omitempty := parseTag(sf)
		if skip {
			continue
		}
		fv := rv.Field(i)
		if omitempty && isEmptyValue(fv) {
			continue
		}
		fields = append(fields, field{name: name, value: fv, override: override})
	}
	return encodeKeyedGroup(policy, len(fields), buf, func(i int) (string, reflect.Value, policyOverride) {
		return fields[i].name, fields[i].value, fields[i].override
	})
}

// encodeKeyedGroup writes n key/value pairs under policy.Keyed,
// sourcing each pair from get(i). It is shared by struct and
// string-keyed map encoding.
func encodeKeyedGroup(policy Policy, n int, buf *etf.Buffer, get func(i int) (string, reflect.Value, policyOverride)) error {
	if policy.Keyed.Kind == KeyedKeywordList {
		etf.WriteListHeader(buf, n)
		for i := 0; i < n; i++ {
			name, fv, override := get(i)
			etf.WriteTupleHeader(buf, 2)
			if err := etf.Encode(term.Atom(name), buf); err != nil {
				return err
			}
			fieldPolicy := policy.apply(override)
			if err := encodeValue(fv, fieldPolicy, buf); err != nil {
				return err
			}
		}
		if n > 0 {
			etf.WriteListTail(buf)
		}
		return nil
	}

	etf.WriteMapHeader(buf, n)
	for i := 0; i < n; i++ {
		name, fv, override := get(i)
		if err := encodeScalarString(name, policy.Keyed.KeyString, buf); err != nil {
			return err
		}
		fieldPolicy := policy.apply(override)
		if err := encodeValue(fv, fieldPolicy, buf); err != nil {
			return err
		}
	}
	return nil
}

func isEmptyValue(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array, reflect.String:
		return v.Len() == 0
	case reflect.Ptr, reflect.Interface:
		return v.IsNil()
	default:
		return false
	}
}

// parseTag reads the `erldist:"name,opt=val,..."` struct tag. name
// defaults to the field's Go name; "-" skips the field entirely.
func parseTag(sf reflect.StructField) (name string, override policyOverride, skip bool, omitempty bool) {
	name = sf.Name
	tag, ok := sf.Tag.Lookup("erldist")
	if !ok {
		return name, override, false, false
	}
	parts := splitComma(tag)
	if len(parts) > 0 && parts[0] != "" {
		if parts[0] == "-" {
			return name, override, true, false
		}
		name = parts[0]
	}
	for _, opt := range parts[1:] {
		switch {
		case opt == "omitempty":
			omitempty = true
		case hasPrefix(opt, "string="):
			override.hasString = true
			override.string = parseStringPolicy(opt[len("string="):])
		case hasPrefix(opt, "unkeyed="):
			override.hasUnkeyed = true
			override.unkeyed = parseUnkeyedPolicy(opt[len("unkeyed="):])
		case hasPrefix(opt, "keyed="):
			override.hasKeyed = true
			override.keyed = parseKeyedPolicy(opt[len("keyed="):])
		}
	}
	return name, override, false, omitempty
}

func parseStringPolicy(s string) StringPolicy {
	switch s {
	case "atom":
		return StringAtom
	case "charlist":
		return StringCharlist
	default:
		return StringBinary
	}
}

func parseUnkeyedPolicy(s string) UnkeyedPolicy {
	if s == "tuple" {
		return UnkeyedTuple
	}
	return UnkeyedList
}

func parseKeyedPolicy(s string) KeyedPolicy {
	if s == "keyword_list" {
		return KeyedPolicy{Kind: KeyedKeywordList}
	}
	return KeyedPolicy{Kind: KeyedMap, KeyString: StringAtom}
}

func splitComma(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == ',' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	out = append(out, s[start:])
	return out
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}
