// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package etf

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/big"

	"github.com/erldist/erldist/term"
)

// ETF tag bytes, per the External Term Format spec referenced in
// SPEC_FULL.md §6.
const (
	tagNewFloat           = 70
	tagBitBinary          = 77
	tagNewPid             = 88
	tagNewPort            = 89
	tagNewerReference     = 90
	tagSmallInteger       = 97
	tagInteger            = 98
	tagFloat              = 99
	tagAtom               = 100
	tagReference          = 101
	tagPort               = 102
	tagPid                = 103
	tagSmallTuple         = 104
	tagLargeTuple         = 105
	tagNil                = 106
	tagString             = 107
	tagList               = 108
	tagBinary             = 109
	tagSmallBig           = 110
	tagLargeBig           = 111
	tagNewFun             = 112
	tagExport             = 113
	tagNewReference       = 114
	tagSmallAtom          = 115
	tagMap                = 116
	tagFun                = 117
	tagAtomUTF8           = 118
	tagSmallAtomUTF8      = 119
	tagV4Port             = 120
)

// Encode appends the ETF encoding of t to buf. It never emits the
// version byte; callers that want one use NewWithVersion.
func Encode(t term.Term, buf *Buffer) error {
	switch v := t.(type) {
	case term.Int:
		return encodeInt(int64(v), buf)
	case term.Float:
		return encodeFloat(float64(v), buf)
	case term.Atom:
		return encodeAtom(string(v), buf)
	case term.String:
		return encodeString(string(v), buf)
	case term.Binary:
		return encodeBinary([]byte(v), buf)
	case term.Bitstring:
		return encodeBitstring(v, buf)
	case term.Tuple:
		return encodeTuple(v, buf)
	case term.List:
		return encodeList(v, buf)
	case term.Map:
		return encodeMap(v, buf)
	case term.Pid:
		return encodePid(v, buf)
	case term.Port:
		return encodePort(v, buf)
	case term.Reference:
		return encodeReference(v, buf)
	case term.Fun:
		return encodeFun(v, buf)
	default:
		return encErr("unsupported term type %T", t)
	}
}

// Decode reads exactly one term from buf's current cursor. It does
// not consume a leading version byte; call buf.ConsumeVersion first
// if one may be present.
func Decode(buf *Buffer) (term.Term, error) {
	tag, err := buf.ReadByte()
	if err != nil {
		return nil, badTerm("reading tag: %v", err)
	}
	switch tag {
	case tagSmallInteger:
		b, err := buf.ReadByte()
		if err != nil {
			return nil, badTerm("small integer: %v", err)
		}
		return term.Int(int64(b)), nil
	case tagInteger:
		raw, err := buf.ReadBytes(4)
		if err != nil {
			return nil, badTerm("integer: %v", err)
		}
		return term.Int(int64(int32(binary.BigEndian.Uint32(raw)))), nil
	case tagSmallBig, tagLargeBig:
		return decodeBigInt(buf, tag)
	case tagNewFloat:
		raw, err := buf.ReadBytes(8)
		if err != nil {
			return nil, badTerm("new float: %v", err)
		}
		bits := binary.BigEndian.Uint64(raw)
		return term.Float(math.Float64frombits(bits)), nil
	case tagFloat:
		raw, err := buf.ReadBytes(31)
		if err != nil {
			return nil, badTerm("old float: %v", err)
		}
		f, perr := parseOldFloat(raw)
		if perr != nil {
			return nil, badTerm("old float: %v", perr)
		}
		return term.Float(f), nil
	case tagAtom, tagAtomUTF8:
		raw, err := buf.ReadBytes(2)
		if err != nil {
			return nil, badTerm("atom length: %v", err)
		}
		n := int(binary.BigEndian.Uint16(raw))
		name, err := buf.ReadBytes(n)
		if err != nil {
			return nil, badTerm("atom name: %v", err)
		}
		return term.Atom(decodeAtomBytes(name, tag)), nil
	case tagSmallAtom, tagSmallAtomUTF8:
		n, err := buf.ReadByte()
		if err != nil {
			return nil, badTerm("small atom length: %v", err)
		}
		name, err := buf.ReadBytes(int(n))
		if err != nil {
			return nil, badTerm("small atom name: %v", err)
		}
		return term.Atom(decodeAtomBytes(name, tag)), nil
	case tagSmallTuple:
		n, err := buf.ReadByte()
		if err != nil {
			return nil, badTerm("small tuple arity: %v", err)
		}
		return decodeTupleElems(buf, int(n))
	case tagLargeTuple:
		raw, err := buf.ReadBytes(4)
		if err != nil {
			return nil, badTerm("large tuple arity: %v", err)
		}
		return decodeTupleElems(buf, int(binary.BigEndian.Uint32(raw)))
	case tagNil:
		return term.List(nil), nil
	case tagString:
		raw, err := buf.ReadBytes(2)
		if err != nil {
			return nil, badTerm("string length: %v", err)
		}
		n := int(binary.BigEndian.Uint16(raw))
		data, err := buf.ReadBytes(n)
		if err != nil {
			return nil, badTerm("string data: %v", err)
		}
		runes := make([]rune, n)
		for i, b := range data {
			runes[i] = rune(b)
		}
		return term.String(string(runes)), nil
	case tagList:
		raw, err := buf.ReadBytes(4)
		if err != nil {
			return nil, badTerm("list length: %v", err)
		}
		n := int(binary.BigEndian.Uint32(raw))
		elems := make([]term.Term, n)
		for i := 0; i < n; i++ {
			elems[i], err = Decode(buf)
			if err != nil {
				return nil, err
			}
		}
		tailTag, err := buf.ReadByte()
		if err != nil {
			return nil, badTerm("list tail: %v", err)
		}
		if tailTag != tagNil {
			return nil, missingListEnd("tail tag was not NIL")
		}
		return term.List(elems), nil
	case tagBinary:
		raw, err := buf.ReadBytes(4)
		if err != nil {
			return nil, badTerm("binary length: %v", err)
		}
		n := int(binary.BigEndian.Uint32(raw))
		data, err := buf.ReadBytes(n)
		if err != nil {
			return nil, badTerm("binary data: %v", err)
		}
		return term.Binary(append([]byte(nil), data...)), nil
	case tagBitBinary:
		raw, err := buf.ReadBytes(4)
		if err != nil {
			return nil, badTerm("bit binary length: %v", err)
		}
		n := int(binary.BigEndian.Uint32(raw))
		bitsByte, err := buf.ReadByte()
		if err != nil {
			return nil, badTerm("bit binary bits: %v", err)
		}
		data, err := buf.ReadBytes(n)
		if err != nil {
			return nil, badTerm("bit binary data: %v", err)
		}
		if bitsByte < 1 || bitsByte > 8 {
			return nil, unsupportedBitOffset(uint(bitsByte))
		}
		trailing := uint8(8 - bitsByte)
		if trailing == 8 {
			trailing = 0
		}
		return term.Bitstring{Data: append([]byte(nil), data...), TrailingBits: trailing}, nil
	case tagMap:
		raw, err := buf.ReadBytes(4)
		if err != nil {
			return nil, badTerm("map arity: %v", err)
		}
		n := int(binary.BigEndian.Uint32(raw))
		pairs := make(term.Map, n)
		for i := 0; i < n; i++ {
			k, err := Decode(buf)
			if err != nil {
				return nil, err
			}
			v, err := Decode(buf)
			if err != nil {
				return nil, err
			}
			pairs[i] = term.MapPair{Key: k, Value: v}
		}
		return pairs, nil
	case tagPid, tagNewPid:
		return decodePid(buf, tag)
	case tagPort, tagNewPort, tagV4Port:
		return decodePort(buf, tag)
	case tagReference, tagNewReference, tagNewerReference:
		return decodeReference(buf, tag)
	case tagNewFun:
		return decodeNewFun(buf)
	case tagExport:
		return decodeExportFun(buf)
	case tagFun:
		return decodeOldFun(buf)
	default:
		return nil, unknownTag(tag)
	}
}

func decodeTupleElems(buf *Buffer, n int) (term.Term, error) {
	elems := make([]term.Term, n)
	for i := 0; i < n; i++ {
		v, err := Decode(buf)
		if err != nil {
			return nil, err
		}
		elems[i] = v
	}
	return term.Tuple(elems), nil
}

// decodeAtomBytes interprets name as UTF-8 for the *_UTF8 tags and as
// Latin-1 otherwise, since the deprecated ATOM_EXT/SMALL_ATOM_EXT
// forms carry Latin-1 bytes.
func decodeAtomBytes(name []byte, tag byte) string {
	if tag == tagAtomUTF8 || tag == tagSmallAtomUTF8 {
		return string(name)
	}
	runes := make([]rune, len(name))
	for i, b := range name {
		runes[i] = rune(b)
	}
	return string(runes)
}

func encodeInt(n int64, buf *Buffer) error {
	if n >= 0 && n <= 255 {
		buf.AppendByte(tagSmallInteger)
		buf.AppendByte(byte(n))
		return nil
	}
	if n >= math.MinInt32 && n <= math.MaxInt32 {
		buf.AppendByte(tagInteger)
		var raw [4]byte
		binary.BigEndian.PutUint32(raw[:], uint32(int32(n)))
		buf.AppendBytes(raw[:])
		return nil
	}
	return encodeBigInt(big.NewInt(n), buf)
}

func encodeBigInt(v *big.Int, buf *Buffer) error {
	sign := byte(0)
	mag := new(big.Int).Set(v)
	if v.Sign() < 0 {
		sign = 1
		mag.Neg(mag)
	}
	bytesLE := mag.Bytes() // big-endian from big.Int
	// reverse to little-endian, as ETF big integers require.
	for i, j := 0, len(bytesLE)-1; i < j; i, j = i+1, j-1 {
		bytesLE[i], bytesLE[j] = bytesLE[j], bytesLE[i]
	}
	if len(bytesLE) <= 255 {
		buf.AppendByte(tagSmallBig)
		buf.AppendByte(byte(len(bytesLE)))
	} else {
		buf.AppendByte(tagLargeBig)
		var raw [4]byte
		binary.BigEndian.PutUint32(raw[:], uint32(len(bytesLE)))
		buf.AppendBytes(raw[:])
	}
	buf.AppendByte(sign)
	buf.AppendBytes(bytesLE)
	return nil
}

func decodeBigInt(buf *Buffer, tag byte) (term.Term, error) {
	var n int
	if tag == tagSmallBig {
		b, err := buf.ReadByte()
		if err != nil {
			return nil, badTerm("small big length: %v", err)
		}
		n = int(b)
	} else {
		raw, err := buf.ReadBytes(4)
		if err != nil {
			return nil, badTerm("large big length: %v", err)
		}
		n = int(binary.BigEndian.Uint32(raw))
	}
	sign, err := buf.ReadByte()
	if err != nil {
		return nil, badTerm("big sign: %v", err)
	}
	magLE, err := buf.ReadBytes(n)
	if err != nil {
		return nil, badTerm("big magnitude: %v", err)
	}
	magBE := make([]byte, n)
	for i := 0; i < n; i++ {
		magBE[i] = magLE[n-1-i]
	}
	mag := new(big.Int).SetBytes(magBE)
	if sign != 0 {
		mag.Neg(mag)
	}
	if !mag.IsInt64() {
		return nil, badTerm("big integer out of int64 range")
	}
	return term.Int(mag.Int64()), nil
}

func encodeFloat(f float64, buf *Buffer) error {
	buf.AppendByte(tagNewFloat)
	var raw [8]byte
	binary.BigEndian.PutUint64(raw[:], math.Float64bits(f))
	buf.AppendBytes(raw[:])
	return nil
}

func parseOldFloat(raw []byte) (float64, error) {
	end := len(raw)
	for end > 0 && raw[end-1] == 0 {
		end--
	}
	var f float64
	_, err := fmt.Sscan(string(raw[:end]), &f)
	return f, err
}

func encodeAtom(name string, buf *Buffer) error {
	b := []byte(name)
	switch {
	case len(b) <= 255:
		buf.AppendByte(tagSmallAtomUTF8)
		buf.AppendByte(byte(len(b)))
	case len(b) <= 65535:
		buf.AppendByte(tagAtomUTF8)
		var raw [2]byte
		binary.BigEndian.PutUint16(raw[:], uint16(len(b)))
		buf.AppendBytes(raw[:])
	default:
		return encErr("atom name too long: %d bytes", len(b))
	}
	buf.AppendBytes(b)
	return nil
}

func encodeString(s string, buf *Buffer) error {
	runes := []rune(s)
	if len(runes) > 65535 {
		return encErr("charlist too long: %d elements", len(runes))
	}
	data := make([]byte, len(runes))
	for i, r := range runes {
		if r < 0 || r > 255 {
			return encErr("charlist element %d out of byte range: %d", i, r)
		}
		data[i] = byte(r)
	}
	buf.AppendByte(tagString)
	var raw [2]byte
	binary.BigEndian.PutUint16(raw[:], uint16(len(data)))
	buf.AppendBytes(raw[:])
	buf.AppendBytes(data)
	return nil
}

func encodeBinary(b []byte, buf *Buffer) error {
	buf.AppendByte(tagBinary)
	var raw [4]byte
	binary.BigEndian.PutUint32(raw[:], uint32(len(b)))
	buf.AppendBytes(raw[:])
	buf.AppendBytes(b)
	return nil
}

func encodeBitstring(v term.Bitstring, buf *Buffer) error {
	if v.TrailingBits > 7 {
		return encErr("bitstring trailing bits out of range: %d", v.TrailingBits)
	}
	bits := byte(8 - v.TrailingBits)
	buf.AppendByte(tagBitBinary)
	var raw [4]byte
	binary.BigEndian.PutUint32(raw[:], uint32(len(v.Data)))
	buf.AppendBytes(raw[:])
	buf.AppendByte(bits)
	buf.AppendBytes(v.Data)
	return nil
}

func encodeTuple(v term.Tuple, buf *Buffer) error {
	if len(v) <= 255 {
		buf.AppendByte(tagSmallTuple)
		buf.AppendByte(byte(len(v)))
	} else {
		buf.AppendByte(tagLargeTuple)
		var raw [4]byte
		binary.BigEndian.PutUint32(raw[:], uint32(len(v)))
		buf.AppendBytes(raw[:])
	}
	for _, e := range v {
		if err := Encode(e, buf); err != nil {
			return err
		}
	}
	return nil
}

func encodeList(v term.List, buf *Buffer) error {
	if len(v) == 0 {
		buf.AppendByte(tagNil)
		return nil
	}
	buf.AppendByte(tagList)
	var raw [4]byte
	binary.BigEndian.PutUint32(raw[:], uint32(len(v)))
	buf.AppendBytes(raw[:])
	for _, e := range v {
		if err := Encode(e, buf); err != nil {
			return err
		}
	}
	buf.AppendByte(tagNil)
	return nil
}

func encodeMap(v term.Map, buf *Buffer) error {
	buf.AppendByte(tagMap)
	var raw [4]byte
	binary.BigEndian.PutUint32(raw[:], uint32(len(v)))
	buf.AppendBytes(raw[:])
	for _, p := range v {
		if err := Encode(p.Key, buf); err != nil {
			return err
		}
		if err := Encode(p.Value, buf); err != nil {
			return err
		}
	}
	return nil
}

func encodePid(v term.Pid, buf *Buffer) error {
	buf.AppendByte(tagNewPid)
	if err := encodeAtom(v.Node, buf); err != nil {
		return err
	}
	var raw [12]byte
	binary.BigEndian.PutUint32(raw[0:4], v.Num)
	binary.BigEndian.PutUint32(raw[4:8], v.Serial)
	binary.BigEndian.PutUint32(raw[8:12], v.Creation)
	buf.AppendBytes(raw[:])
	return nil
}

func decodePid(buf *Buffer, tag byte) (term.Term, error) {
	node, err := decodeNodeAtom(buf)
	if err != nil {
		return nil, err
	}
	num, err := readU32(buf, "pid num")
	if err != nil {
		return nil, err
	}
	serial, err := readU32(buf, "pid serial")
	if err != nil {
		return nil, err
	}
	var creation uint32
	if tag == tagNewPid {
		creation, err = readU32(buf, "pid creation")
	} else {
		var b byte
		b, err = buf.ReadByte()
		creation = uint32(b)
	}
	if err != nil {
		return nil, err
	}
	return term.Pid{Node: node, Num: num, Serial: serial, Creation: creation}, nil
}

func encodePort(v term.Port, buf *Buffer) error {
	if v.ID > math.MaxUint32 {
		buf.AppendByte(tagV4Port)
		if err := encodeAtom(v.Node, buf); err != nil {
			return err
		}
		var raw [12]byte
		binary.BigEndian.PutUint64(raw[0:8], v.ID)
		binary.BigEndian.PutUint32(raw[8:12], v.Creation)
		buf.AppendBytes(raw[:])
		return nil
	}
	buf.AppendByte(tagNewPort)
	if err := encodeAtom(v.Node, buf); err != nil {
		return err
	}
	var raw [8]byte
	binary.BigEndian.PutUint32(raw[0:4], uint32(v.ID))
	binary.BigEndian.PutUint32(raw[4:8], v.Creation)
	buf.AppendBytes(raw[:])
	return nil
}

func decodePort(buf *Buffer, tag byte) (term.Term, error) {
	node, err := decodeNodeAtom(buf)
	if err != nil {
		return nil, err
	}
	switch tag {
	case tagV4Port:
		raw, err := buf.ReadBytes(8)
		if err != nil {
			return nil, badTerm("v4 port id: %v", err)
		}
		creation, err := readU32(buf, "v4 port creation")
		if err != nil {
			return nil, err
		}
		return term.Port{Node: node, ID: binary.BigEndian.Uint64(raw), Creation: creation}, nil
	case tagNewPort:
		id, err := readU32(buf, "new port id")
		if err != nil {
			return nil, err
		}
		creation, err := readU32(buf, "new port creation")
		if err != nil {
			return nil, err
		}
		return term.Port{Node: node, ID: uint64(id), Creation: creation}, nil
	default: // old PORT_EXT
		id, err := readU32(buf, "port id")
		if err != nil {
			return nil, err
		}
		b, err := buf.ReadByte()
		if err != nil {
			return nil, badTerm("port creation: %v", err)
		}
		return term.Port{Node: node, ID: uint64(id), Creation: uint32(b)}, nil
	}
}

func encodeReference(v term.Reference, buf *Buffer) error {
	buf.AppendByte(tagNewerReference)
	var lenRaw [2]byte
	binary.BigEndian.PutUint16(lenRaw[:], uint16(len(v.IDs)))
	buf.AppendBytes(lenRaw[:])
	if err := encodeAtom(v.Node, buf); err != nil {
		return err
	}
	var creationRaw [4]byte
	binary.BigEndian.PutUint32(creationRaw[:], v.Creation)
	buf.AppendBytes(creationRaw[:])
	for _, id := range v.IDs {
		var idRaw [4]byte
		binary.BigEndian.PutUint32(idRaw[:], id)
		buf.AppendBytes(idRaw[:])
	}
	return nil
}

func decodeReference(buf *Buffer, tag byte) (term.Term, error) {
	if tag == tagReference {
		node, err := decodeNodeAtom(buf)
		if err != nil {
			return nil, err
		}
		id, err := readU32(buf, "reference id")
		if err != nil {
			return nil, err
		}
		b, err := buf.ReadByte()
		if err != nil {
			return nil, badTerm("reference creation: %v", err)
		}
		return term.Reference{Node: node, Creation: uint32(b), IDs: []uint32{id}}, nil
	}
	lenRaw, err := buf.ReadBytes(2)
	if err != nil {
		return nil, badTerm("reference id count: %v", err)
	}
	n := int(binary.BigEndian.Uint16(lenRaw))
	node, err := decodeNodeAtom(buf)
	if err != nil {
		return nil, err
	}
	var creation uint32
	if tag == tagNewerReference {
		creation, err = readU32(buf, "reference creation")
	} else {
		var b byte
		b, err = buf.ReadByte()
		creation = uint32(b)
	}
	if err != nil {
		return nil, err
	}
	ids := make([]uint32, n)
	for i := 0; i < n; i++ {
		ids[i], err = readU32(buf, "reference id word")
		if err != nil {
			return nil, err
		}
	}
	return term.Reference{Node: node, Creation: creation, IDs: ids}, nil
}

func encodeFun(v term.Fun, buf *Buffer) error {
	switch v.Tag {
	case tagNewFun, tagExport, tagFun:
		buf.AppendByte(v.Tag)
		buf.AppendBytes(v.Raw)
		return nil
	default:
		return encErr("unsupported fun subform tag %d", v.Tag)
	}
}

func decodeNewFun(buf *Buffer) (term.Term, error) {
	sizeRaw, err := buf.ReadBytes(4)
	if err != nil {
		return nil, badTerm("new fun size: %v", err)
	}
	size := int(binary.BigEndian.Uint32(sizeRaw))
	if size < 5 {
		return nil, badTerm("new fun size too small: %d", size)
	}
	raw, err := buf.ReadBytes(size - 5)
	if err != nil {
		return nil, badTerm("new fun payload: %v", err)
	}
	// Raw carries the size field itself so re-encoding reproduces the
	// exact original bytes without recomputing it.
	full := append(append([]byte(nil), sizeRaw...), raw...)
	return term.Fun{Tag: tagNewFun, Raw: full}, nil
}

func decodeExportFun(buf *Buffer) (term.Term, error) {
	start := buf.Cursor()
	for i := 0; i < 3; i++ { // module, function, arity
		if err := buf.SkipTerm(); err != nil {
			return nil, err
		}
	}
	raw := append([]byte(nil), buf.Bytes()[start:buf.Cursor()]...)
	return term.Fun{Tag: tagExport, Raw: raw}, nil
}

func decodeOldFun(buf *Buffer) (term.Term, error) {
	start := buf.Cursor()
	numFreeRaw, err := buf.ReadBytes(4)
	if err != nil {
		return nil, badTerm("old fun numfree: %v", err)
	}
	numFree := int(binary.BigEndian.Uint32(numFreeRaw))
	// pid, module, index, uniq
	for i := 0; i < 4; i++ {
		if err := buf.SkipTerm(); err != nil {
			return nil, err
		}
	}
	for i := 0; i < numFree; i++ {
		if err := buf.SkipTerm(); err != nil {
			return nil, err
		}
	}
	raw := append([]byte(nil), buf.Bytes()[start:buf.Cursor()]...)
	return term.Fun{Tag: tagFun, Raw: raw}, nil
}

func decodeNodeAtom(buf *Buffer) (string, error) {
	t, err := Decode(buf)
	if err != nil {
		return "", err
	}
	a, ok := t.(term.Atom)
	if !ok {
		return "", badTerm("node field was not an atom: %T", t)
	}
	return string(a), nil
}

func readU32(buf *Buffer, what string) (uint32, error) {
	raw, err := buf.ReadBytes(4)
	if err != nil {
		return 0, badTerm("%s: %v", what, err)
	}
	return binary.BigEndian.Uint32(raw), nil
}
