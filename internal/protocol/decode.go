package protocol

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/tinylib/msgp/msgp"
)

const maxDepth = 64

// DecodeSync turns one base64 sync payload into a generic tree of
// nil, bool, int64, uint64, float64, string, []byte, []any and
// map[string]any. JSON payloads (system notices) are returned as parsed
// JSON; anything else is decoded as MessagePack. Map keys are always
// strings: integer keys become their decimal form.
func DecodeSync(payload string) (any, error) {
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		if raw, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "=")); err != nil {
			return nil, fmt.Errorf("%w: base64: %v", ErrBadFrame, err)
		}
	}
	if json.Valid(raw) {
		return decodeJSON(raw)
	}
	return DecodePacked(raw)
}

// DecodePacked decodes one MessagePack value. Trailing bytes are ignored.
// Invalid UTF-8 in strings is replaced rather than rejected.
func DecodePacked(b []byte) (any, error) {
	if len(b) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrBadFrame)
	}
	v, _, err := decodeValue(b, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadFrame, err)
	}
	return v, nil
}

func decodeValue(b []byte, depth int) (any, []byte, error) {
	if depth > maxDepth {
		return nil, b, fmt.Errorf("nesting deeper than %d", maxDepth)
	}
	switch msgp.NextType(b) {
	case msgp.MapType:
		n, rest, err := msgp.ReadMapHeaderBytes(b)
		if err != nil {
			return nil, b, err
		}
		m := make(map[string]any, n)
		for i := uint32(0); i < n; i++ {
			var k, v any
			if k, rest, err = decodeValue(rest, depth+1); err != nil {
				return nil, b, err
			}
			if v, rest, err = decodeValue(rest, depth+1); err != nil {
				return nil, b, err
			}
			m[keyString(k)] = v
		}
		return m, rest, nil
	case msgp.ArrayType:
		n, rest, err := msgp.ReadArrayHeaderBytes(b)
		if err != nil {
			return nil, b, err
		}
		arr := make([]any, 0, n)
		for i := uint32(0); i < n; i++ {
			var v any
			if v, rest, err = decodeValue(rest, depth+1); err != nil {
				return nil, b, err
			}
			arr = append(arr, v)
		}
		return arr, rest, nil
	case msgp.StrType:
		s, rest, err := msgp.ReadStringZC(b)
		if err != nil {
			return nil, b, err
		}
		return strings.ToValidUTF8(string(s), "�"), rest, nil
	case msgp.BinType:
		p, rest, err := msgp.ReadBytesZC(b)
		if err != nil {
			return nil, b, err
		}
		return bytes.Clone(p), rest, nil
	case msgp.IntType:
		return msgp.ReadInt64Bytes(b)
	case msgp.UintType:
		u, rest, err := msgp.ReadUint64Bytes(b)
		if err != nil {
			return nil, b, err
		}
		if u <= math.MaxInt64 {
			return int64(u), rest, nil
		}
		return u, rest, nil
	case msgp.Float64Type:
		return msgp.ReadFloat64Bytes(b)
	case msgp.Float32Type:
		f, rest, err := msgp.ReadFloat32Bytes(b)
		return float64(f), rest, err
	case msgp.BoolType:
		return msgp.ReadBoolBytes(b)
	case msgp.NilType:
		rest, err := msgp.ReadNilBytes(b)
		return nil, rest, err
	case msgp.InvalidType:
		return nil, b, msgp.ErrShortBytes
	default:
		// extensions and timestamps carry nothing the agent reads
		rest, err := msgp.Skip(b)
		return nil, rest, err
	}
}

func keyString(k any) string {
	switch v := k.(type) {
	case string:
		return v
	case int64:
		return strconv.FormatInt(v, 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case []byte:
		return strings.ToValidUTF8(string(v), "�")
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func decodeJSON(raw []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: json: %v", ErrBadFrame, err)
	}
	return normalizeJSON(v), nil
}

func normalizeJSON(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, e := range t {
			t[k] = normalizeJSON(e)
		}
		return t
	case []any:
		for i, e := range t {
			t[i] = normalizeJSON(e)
		}
		return t
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		f, _ := t.Float64()
		return f
	default:
		return v
	}
}
