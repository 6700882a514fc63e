// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package etf

import "encoding/binary"

// skipTerm advances buf's read cursor over exactly one well-formed
// term without materialising it. It mirrors Decode's tag dispatch but
// only ever reads lengths and discards payload bytes, so it never
// allocates beyond the occasional length-prefixed slice view.
func skipTerm(buf *Buffer) error {
	tag, err := buf.ReadByte()
	if err != nil {
		return badTerm("skip: reading tag: %v", err)
	}
	switch tag {
	case tagSmallInteger:
		_, err = buf.ReadByte()
	case tagInteger, tagNewFloat:
		n := 4
		if tag == tagNewFloat {
			n = 8
		}
		_, err = buf.ReadBytes(n)
	case tagFloat:
		_, err = buf.ReadBytes(31)
	case tagSmallBig, tagLargeBig:
		err = skipBigInt(buf, tag)
	case tagAtom, tagAtomUTF8:
		err = skipLengthPrefixed(buf, 2)
	case tagSmallAtom, tagSmallAtomUTF8:
		err = skipLengthPrefixed(buf, 1)
	case tagSmallTuple:
		var n byte
		n, err = buf.ReadByte()
		if err == nil {
			err = skipN(buf, int(n))
		}
	case tagLargeTuple:
		var raw []byte
		raw, err = buf.ReadBytes(4)
		if err == nil {
			err = skipN(buf, int(binary.BigEndian.Uint32(raw)))
		}
	case tagNil:
		// no payload
	case tagString:
		err = skipLengthPrefixed(buf, 2)
	case tagList:
		var raw []byte
		raw, err = buf.ReadBytes(4)
		if err == nil {
			n := int(binary.BigEndian.Uint32(raw))
			err = skipN(buf, n)
			if err == nil {
				var tailTag byte
				tailTag, err = buf.ReadByte()
				if err == nil && tailTag != tagNil {
					err = missingListEnd("tail tag was not NIL")
				}
			}
		}
	case tagBinary:
		err = skipLengthPrefixed(buf, 4)
	case tagBitBinary:
		var raw []byte
		raw, err = buf.ReadBytes(4)
		if err == nil {
			n := int(binary.BigEndian.Uint32(raw))
			var bits byte
			bits, err = buf.ReadByte()
			if err == nil {
				if bits < 1 || bits > 8 {
					err = unsupportedBitOffset(uint(bits))
				} else {
					_, err = buf.ReadBytes(n)
				}
			}
		}
	case tagMap:
		var raw []byte
		raw, err = buf.ReadBytes(4)
		if err == nil {
			err = skipN(buf, int(binary.BigEndian.Uint32(raw))*2)
		}
	case tagPid, tagNewPid:
		err = skipTerm(buf) // node atom
		if err == nil {
			n := 12
			if tag == tagPid {
				n = 9
			}
			_, err = buf.ReadBytes(n)
		}
	case tagPort, tagNewPort, tagV4Port:
		err = skipTerm(buf)
		if err == nil {
			n := 8
			if tag == tagPort {
				n = 5
			} else if tag == tagV4Port {
				n = 12
			}
			_, err = buf.ReadBytes(n)
		}
	case tagReference:
		err = skipTerm(buf)
		if err == nil {
			_, err = buf.ReadBytes(5)
		}
	case tagNewReference, tagNewerReference:
		var raw []byte
		raw, err = buf.ReadBytes(2)
		if err == nil {
			n := int(binary.BigEndian.Uint16(raw))
			err = skipTerm(buf) // node atom
			if err == nil {
				creationLen := 1
				if tag == tagNewerReference {
					creationLen = 4
				}
				_, err = buf.ReadBytes(creationLen + n*4)
			}
		}
	case tagNewFun:
		var raw []byte
		raw, err = buf.ReadBytes(4)
		if err == nil {
			size := int(binary.BigEndian.Uint32(raw))
			if size < 5 {
				err = badTerm("new fun size too small: %d", size)
			} else {
				_, err = buf.ReadBytes(size - 5)
			}
		}
	case tagExport:
		for i := 0; i < 3 && err == nil; i++ {
			err = skipTerm(buf)
		}
	case tagFun:
		var raw []byte
		raw, err = buf.ReadBytes(4)
		numFree := 0
		if err == nil {
			numFree = int(binary.BigEndian.Uint32(raw))
		}
		for i := 0; i < 4 && err == nil; i++ {
			err = skipTerm(buf) // pid, module, index, uniq
		}
		for i := 0; i < numFree && err == nil; i++ {
			err = skipTerm(buf)
		}
	default:
		err = unknownTag(tag)
	}
	return err
}

func skipN(buf *Buffer, n int) error {
	for i := 0; i < n; i++ {
		if err := skipTerm(buf); err != nil {
			return err
		}
	}
	return nil
}

func skipLengthPrefixed(buf *Buffer, lenBytes int) error {
	raw, err := buf.ReadBytes(lenBytes)
	if err != nil {
		return err
	}
	var n int
	switch lenBytes {
	case 1:
		n = int(raw[0])
	case 2:
		n = int(binary.BigEndian.Uint16(raw))
	case 4:
		n = int(binary.BigEndian.Uint32(raw))
	}
	_, err = buf.ReadBytes(n)
	return err
}

func skipBigInt(buf *Buffer, tag byte) error {
	var n int
	if tag == tagSmallBig {
		b, err := buf.ReadByte()
		if err != nil {
			return err
		}
		n = int(b)
	} else {
		raw, err := buf.ReadBytes(4)
		if err != nil {
			return err
		}
		n = int(binary.BigEndian.Uint32(raw))
	}
	_, err := buf.ReadBytes(1 + n) // sign byte + magnitude
	return err
}
