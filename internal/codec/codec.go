// Package codec makes nested credential mappings safe to persist through
// JSON-oriented storage. Raw byte buffers are replaced by tagged records
// of the form {"kind":"buffer","data":"<base64>"} on the way in and
// restored on the way out.
package codec

import (
	"encoding/base64"
	"errors"
	"fmt"
)

const bufferKind = "buffer"

var (
	// ErrUnknownTag is returned when a tagged record carries a kind the
	// codec does not know how to restore.
	ErrUnknownTag = errors.New("codec: unknown tag kind")

	// ErrBadBuffer is returned when a buffer record has missing or
	// undecodable data.
	ErrBadBuffer = errors.New("codec: malformed buffer record")
)

// Encode replaces every []byte in v with a tagged buffer record,
// recursing through maps and slices. Other values pass through
// unchanged. Encode never fails; cyclic inputs are not supported.
func Encode(v any) any {
	switch val := v.(type) {
	case []byte:
		return map[string]any{
			"kind": bufferKind,
			"data": base64.StdEncoding.EncodeToString(val),
		}
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[k] = Encode(elem)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = Encode(elem)
		}
		return out
	default:
		return v
	}
}

// Decode is the inverse of Encode: tagged buffer records become []byte
// again and maps/slices are decoded recursively. A map is treated as a
// tagged record iff it has exactly the keys "kind" and "data" with a
// string kind; an unrecognized kind or undecodable data is a hard error
// rather than being passed through silently.
func Decode(v any) (any, error) {
	switch val := v.(type) {
	case map[string]any:
		if kind, ok := taggedKind(val); ok {
			if kind != bufferKind {
				return nil, fmt.Errorf("%w: %q", ErrUnknownTag, kind)
			}
			data, ok := val["data"].(string)
			if !ok {
				return nil, fmt.Errorf("%w: data is not a string", ErrBadBuffer)
			}
			buf, err := base64.StdEncoding.DecodeString(data)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrBadBuffer, err)
			}
			return buf, nil
		}
		out := make(map[string]any, len(val))
		for k, elem := range val {
			dec, err := Decode(elem)
			if err != nil {
				return nil, err
			}
			out[k] = dec
		}
		return out, nil
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			dec, err := Decode(elem)
			if err != nil {
				return nil, err
			}
			out[i] = dec
		}
		return out, nil
	default:
		return v, nil
	}
}

func taggedKind(m map[string]any) (string, bool) {
	if len(m) != 2 {
		return "", false
	}
	kind, ok := m["kind"].(string)
	if !ok {
		return "", false
	}
	if _, ok := m["data"]; !ok {
		return "", false
	}
	return kind, true
}
