// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package bridge

import (
	"reflect"

	"github.com/erldist/erldist/etf"
	"github.com/erldist/erldist/term"
)

var termType = reflect.TypeOf((*term.Term)(nil)).Elem()
var keywordListType = reflect.TypeOf(KeywordList(nil))

// Decode reads one ETF value from buf and converts it into a T under
// policy. See SPEC_FULL.md §4.E for the shape-dispatch rules.
func Decode[T any](buf *etf.Buffer, policy Policy) (T, error) {
	var out T
	rv := reflect.ValueOf(&out).Elem()
	if err := decodeValue(buf, rv, policy); err != nil {
		return out, err
	}
	return out, nil
}

func decodeValue(buf *etf.Buffer, rv reflect.Value, policy Policy) error {
	t := rv.Type()

	if t == termType || (t.Kind() == reflect.Interface && t.NumMethod() == 0) {
		v, err := etf.Decode(buf)
		if err != nil {
			return dataCorrupted(err)
		}
		rv.Set(reflect.ValueOf(v))
		return nil
	}

	if t == keywordListType {
		return decodeKeywordListTarget(buf, rv)
	}

	switch t.Kind() {
	case reflect.Ptr:
		isNil, err := etf.PeekShape(buf)
		if err != nil {
			return dataCorrupted(err)
		}
		if isNil == etf.ShapeList {
			n, err := etf.ReadListHeader(buf)
			if err != nil {
				return dataCorrupted(err)
			}
			if n == 0 {
				rv.Set(reflect.Zero(t))
				return nil
			}
			// non-empty list behind a pointer target: decode into a
			// fresh element and point to it.
			elem := reflect.New(t.Elem())
			if err := decodeOrderedBody(buf, elem.Elem(), policy, n, false); err != nil {
				return err
			}
			rv.Set(elem)
			return nil
		}
		elem := reflect.New(t.Elem())
		if err := decodeValue(buf, elem.Elem(), policy); err != nil {
			return err
		}
		rv.Set(elem)
		return nil

	case reflect.Bool:
		v, err := etf.Decode(buf)
		if err != nil {
			return dataCorrupted(err)
		}
		b, ok := term.AsBool(v)
		if !ok {
			return typeMismatch("true|false atom", v)
		}
		rv.SetBool(b)
		return nil

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		v, err := etf.Decode(buf)
		if err != nil {
			return dataCorrupted(err)
		}
		i, ok := v.(term.Int)
		if !ok {
			return typeMismatch("Int", v)
		}
		rv.SetInt(int64(i))
		return nil

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		v, err := etf.Decode(buf)
		if err != nil {
			return dataCorrupted(err)
		}
		i, ok := v.(term.Int)
		if !ok {
			return typeMismatch("Int", v)
		}
		if i < 0 {
			return invalidArgument(int64(i), "negative Int decoded into an unsigned field")
		}
		rv.SetUint(uint64(i))
		return nil

	case reflect.Float32, reflect.Float64:
		v, err := etf.Decode(buf)
		if err != nil {
			return dataCorrupted(err)
		}
		switch f := v.(type) {
		case term.Float:
			rv.SetFloat(float64(f))
		case term.Int:
			rv.SetFloat(float64(f))
		default:
			return typeMismatch("Float or Int", v)
		}
		return nil

	case reflect.String:
		v, err := etf.Decode(buf)
		if err != nil {
			return dataCorrupted(err)
		}
		switch s := v.(type) {
		case term.Atom:
			rv.SetString(string(s))
		case term.String:
			rv.SetString(string(s))
		case term.Binary:
			rv.SetString(string(s))
		default:
			return typeMismatch("Atom, String, or Binary", v)
		}
		return nil

	case reflect.Slice, reflect.Array:
		if t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Uint8 {
			v, err := etf.Decode(buf)
			if err != nil {
				return dataCorrupted(err)
			}
			b, ok := v.(term.Binary)
			if !ok {
				return typeMismatch("Binary", v)
			}
			rv.SetBytes(append([]byte(nil), b...))
			return nil
		}
		return decodeOrderedTarget(buf, rv, policy)

	case reflect.Map:
		return decodeMapTarget(buf, rv, policy)

	case reflect.Struct:
		return decodeStructTarget(buf, rv, policy)

	default:
		return invalidArgument(t.String(), "unsupported decode target kind")
	}
}

// decodeOrderedTarget accepts either a Tuple or a List per 4.E.
func decodeOrderedTarget(buf *etf.Buffer, rv reflect.Value, policy Policy) error {
	shape, err := etf.PeekShape(buf)
	if err != nil {
		return dataCorrupted(err)
	}
	switch shape {
	case etf.ShapeTuple:
		n, err := etf.ReadTupleHeader(buf)
		if err != nil {
			return dataCorrupted(err)
		}
		return decodeOrderedBody(buf, rv, policy, n, false)
	case etf.ShapeList:
		n, err := etf.ReadListHeader(buf)
		if err != nil {
			return dataCorrupted(err)
		}
		return decodeOrderedBody(buf, rv, policy, n, true)
	default:
		return typeMismatch("Tuple or List", shape)
	}
}

func decodeOrderedBody(buf *etf.Buffer, rv reflect.Value, policy Policy, n int, isList bool) error {
	t := rv.Type()
	if t.Kind() == reflect.Slice {
		rv.Set(reflect.MakeSlice(t, n, n))
	} else if t.Len() != n {
		return typeMismatch("array of matching length", n)
	}
	elemIsIface := t.Elem().Kind() == reflect.Interface
	for i := 0; i < n; i++ {
		if elemIsIface {
			v, err := etf.Decode(buf)
			if err != nil {
				return dataCorrupted(err)
			}
			rv.Index(i).Set(reflect.ValueOf(v))
			continue
		}
		if err := decodeValue(buf, rv.Index(i), policy); err != nil {
			return err
		}
	}
	if isList && n > 0 {
		if err := etf.ReadListTail(buf); err != nil {
			return dataCorrupted(err)
		}
	}
	return nil
}

// decodeKeywordListTarget always expects the keyword-list shape: a
// proper list of {Atom, value} 2-tuples. Order is preserved, matching
// KeywordList's definition.
func decodeKeywordListTarget(buf *etf.Buffer, rv reflect.Value) error {
	shape, err := etf.PeekShape(buf)
	if err != nil {
		return dataCorrupted(err)
	}
	if shape != etf.ShapeList {
		return typeMismatch("keyword list", shape)
	}
	n, err := etf.ReadListHeader(buf)
	if err != nil {
		return dataCorrupted(err)
	}
	out := make(KeywordList, n)
	for i := 0; i < n; i++ {
		arity, err := etf.ReadTupleHeader(buf)
		if err != nil {
			return dataCorrupted(err)
		}
		if arity != 2 {
			return typeMismatch("2-tuple", arity)
		}
		k, err := etf.Decode(buf)
		if err != nil {
			return dataCorrupted(err)
		}
		key, ok := k.(term.Atom)
		if !ok {
			return typeMismatch("Atom key", k)
		}
		v, err := etf.Decode(buf)
		if err != nil {
			return dataCorrupted(err)
		}
		out[i] = KeywordPair{Key: string(key), Value: v}
	}
	if n > 0 {
		if err := etf.ReadListTail(buf); err != nil {
			return dataCorrupted(err)
		}
	}
	rv.Set(reflect.ValueOf(out))
	return nil
}

// keyIndex records, for one keyed target decode, the buffer offset at
// which each key's value begins, so that looking up fields in any
// order doesn't require re-decoding the whole Map/keyword list.
type keyIndex map[string]int

// indexKeyedTarget peeks the next term's shape and, for Map or
// keyword-list shapes, performs the one-pass index build described in
// SPEC_FULL.md §4.E. It returns the index and the buffer offset to
// restore to once all field lookups are done.
func indexKeyedTarget(buf *etf.Buffer) (keyIndex, int, error) {
	shape, err := etf.PeekShape(buf)
	if err != nil {
		return nil, 0, dataCorrupted(err)
	}
	idx := keyIndex{}
	switch shape {
	case etf.ShapeMap:
		n, err := etf.ReadMapHeader(buf)
		if err != nil {
			return nil, 0, dataCorrupted(err)
		}
		for i := 0; i < n; i++ {
			k, err := etf.Decode(buf)
			if err != nil {
				return nil, 0, dataCorrupted(err)
			}
			key, err := keyToString(k)
			if err != nil {
				return nil, 0, err
			}
			off := buf.Cursor()
			if err := buf.SkipTerm(); err != nil {
				return nil, 0, dataCorrupted(err)
			}
			idx[key] = off
		}
	case etf.ShapeList:
		n, err := etf.ReadListHeader(buf)
		if err != nil {
			return nil, 0, dataCorrupted(err)
		}
		for i := 0; i < n; i++ {
			arity, err := etf.ReadTupleHeader(buf)
			if err != nil {
				return nil, 0, dataCorrupted(err)
			}
			if arity != 2 {
				return nil, 0, typeMismatch("2-tuple", arity)
			}
			k, err := etf.Decode(buf)
			if err != nil {
				return nil, 0, dataCorrupted(err)
			}
			key, err := keyToString(k)
			if err != nil {
				return nil, 0, err
			}
			off := buf.Cursor()
			if err := buf.SkipTerm(); err != nil {
				return nil, 0, dataCorrupted(err)
			}
			idx[key] = off
		}
		if n > 0 {
			if err := etf.ReadListTail(buf); err != nil {
				return nil, 0, dataCorrupted(err)
			}
		}
	default:
		return nil, 0, typeMismatch("Map or keyword list", shape)
	}
	return idx, buf.Cursor(), nil
}

func keyToString(t term.Term) (string, error) {
	switch v := t.(type) {
	case term.Atom:
		return string(v), nil
	case term.Binary:
		return string(v), nil
	case term.String:
		return string(v), nil
	default:
		return "", typeMismatch("Atom, Binary, or String key", t)
	}
}

func decodeStructTarget(buf *etf.Buffer, rv reflect.Value, policy Policy) error {
	idx, end, err := indexKeyedTarget(buf)
	if err != nil {
		return err
	}
	t := rv.Type()
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if sf.PkgPath != "" {
			continue
		}
		name, override, skip, _ := parseTag(sf)
		if skip {
			continue
		}
		off, ok := idx[name]
		if !ok {
			if hasRequiredTag(sf) {
				return &KeyNotFound{Key: name}
			}
			continue // absent/optional: leave zero value.
		}
		buf.SeekTo(off)
		fieldPolicy := policy.apply(override)
		if err := decodeValue(buf, rv.Field(i), fieldPolicy); err != nil {
			return err
		}
	}
	buf.SeekTo(end)
	return nil
}

func hasRequiredTag(sf reflect.StructField) bool {
	tag, ok := sf.Tag.Lookup("erldist")
	if !ok {
		return false
	}
	for _, opt := range splitComma(tag) {
		if opt == "required" {
			return true
		}
	}
	return false
}

func decodeMapTarget(buf *etf.Buffer, rv reflect.Value, policy Policy) error {
	t := rv.Type()
	if t.Key().Kind() != reflect.String {
		return invalidArgument(t.String(), "only string-keyed maps are supported as keyed targets")
	}
	idx, end, err := indexKeyedTarget(buf)
	if err != nil {
		return err
	}
	out := reflect.MakeMapWithSize(t, len(idx))
	for key, off := range idx {
		buf.SeekTo(off)
		val := reflect.New(t.Elem()).Elem()
		if err := decodeValue(buf, val, policy); err != nil {
			return err
		}
		out.SetMapIndex(reflect.ValueOf(key).Convert(t.Key()), val)
	}
	buf.SeekTo(end)
	rv.Set(out)
	return nil
}
