package protocol

import (
	"encoding/json"
	"strconv"
)

// Lookup walks a decoded tree along keys. Mapping steps use the key as is;
// sequence steps parse it as an index.
func Lookup(tree any, keys ...string) (any, bool) {
	cur := tree
	for _, k := range keys {
		switch node := cur.(type) {
		case map[string]any:
			v, ok := node[k]
			if !ok {
				return nil, false
			}
			cur = v
		case []any:
			i, err := strconv.Atoi(k)
			if err != nil || i < 0 || i >= len(node) {
				return nil, false
			}
			cur = node[i]
		default:
			return nil, false
		}
	}
	return cur, true
}

// LookupString is Lookup rendered as a string. Numbers are formatted in
// decimal and byte strings are converted; other shapes yield "".
func LookupString(tree any, keys ...string) string {
	v, ok := Lookup(tree, keys...)
	if !ok {
		return ""
	}
	return Scalar(v)
}

// Scalar renders leaf values as strings.
func Scalar(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case uint64:
		return strconv.FormatUint(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

// Stringify serializes a tree as JSON for regex fallbacks and logging.
// Byte strings are rendered as text.
func Stringify(tree any) string {
	b, err := json.Marshal(textify(tree))
	if err != nil {
		return ""
	}
	return string(b)
}

func textify(v any) any {
	switch t := v.(type) {
	case []byte:
		return string(t)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = textify(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = textify(e)
		}
		return out
	default:
		return v
	}
}
