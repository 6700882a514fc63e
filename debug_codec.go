// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package erldist

import (
	"encoding/json"
	"fmt"

	"github.com/erldist/erldist/term"
)

// DebugArgsFromJSON decodes a JSON array or object of RPC arguments
// into a Term, for cmd/erldist-probe's --raw-json flag. method is
// unused by the decode itself; it is accepted so call sites read the
// way a JSON-RPC client's request construction does, but the args
// value is the only thing this bridge's Term shape needs.
func DebugArgsFromJSON(method string, argsJSON json.RawMessage) (term.Term, error) {
	if len(argsJSON) == 0 {
		return term.NewList(), nil
	}
	var decoded interface{}
	if err := json.Unmarshal(argsJSON, &decoded); err != nil {
		return nil, fmt.Errorf("erldist: debug args: invalid JSON: %w", err)
	}
	return jsonValueToTerm(decoded), nil
}

// DebugReplyToJSON renders an RPC reply Term as indented JSON, for
// cmd/erldist-probe's --raw-json flag.
func DebugReplyToJSON(reply term.Term) ([]byte, error) {
	return json.MarshalIndent(termToJSONValue(reply), "", "  ")
}

func jsonValueToTerm(v interface{}) term.Term {
	switch x := v.(type) {
	case nil:
		return term.NewList()
	case bool:
		if x {
			return term.NewAtom("true")
		}
		return term.NewAtom("false")
	case float64:
		if x == float64(int64(x)) {
			return term.NewInt(int64(x))
		}
		return term.NewFloat(x)
	case string:
		return term.NewBinary([]byte(x))
	case []interface{}:
		elems := make([]term.Term, len(x))
		for i, e := range x {
			elems[i] = jsonValueToTerm(e)
		}
		return term.NewList(elems...)
	case map[string]interface{}:
		pairs := make([]term.MapPair, 0, len(x))
		for k, val := range x {
			pairs = append(pairs, term.MapPair{Key: term.NewAtom(k), Value: jsonValueToTerm(val)})
		}
		return term.NewMap(pairs...)
	default:
		return term.NewAtom("undefined")
	}
}

func termToJSONValue(t term.Term) interface{} {
	switch x := t.(type) {
	case term.Int:
		return int64(x)
	case term.Float:
		return float64(x)
	case term.Atom:
		return string(x)
	case term.String:
		return string(x)
	case term.Binary:
		return string(x)
	case term.List:
		out := make([]interface{}, len(x))
		for i, e := range x {
			out[i] = termToJSONValue(e)
		}
		return out
	case term.Tuple:
		out := make([]interface{}, len(x))
		for i, e := range x {
			out[i] = termToJSONValue(e)
		}
		return out
	case term.Map:
		out := make(map[string]interface{}, len(x))
		for _, pair := range x {
			out[fmt.Sprint(termToJSONValue(pair.Key))] = termToJSONValue(pair.Value)
		}
		return out
	default:
		return t.String()
	}
}
