// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package erldist

import (
	"github.com/erldist/erldist/etf"
	"github.com/erldist/erldist/term"
)

// decodeBufferAsTerm re-decodes an encoded bridge buffer as a plain
// term.Term, used anywhere the DSL or Connection needs to hand a
// bridge-encoded value to RPC's Term-shaped request path without a
// round trip through the network.
func decodeBufferAsTerm(buf *etf.Buffer) (term.Term, error) {
	return etf.Decode(etf.FromBytes(buf.Bytes()))
}

// encodeTermToBuffer is decodeBufferAsTerm's inverse, used by
// decodeFromTerm to hand a received Term (from MessagesAs or
// RPCDecoded) to the bridge decoder as an ETF buffer.
func encodeTermToBuffer(t term.Term) (*etf.Buffer, error) {
	buf := etf.New()
	if err := etf.Encode(t, buf); err != nil {
		return nil, err
	}
	return buf, nil
}
