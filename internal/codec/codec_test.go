package codec_test

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"WhatsappLinker/internal/codec"
)

func TestRoundTrip_NestedBuffers(t *testing.T) {
	in := map[string]any{
		"registrationId": float64(12345),
		"platform":       "android",
		"initialized":    true,
		"noiseKey": map[string]any{
			"public":  []byte{0x01, 0x02, 0x03},
			"private": []byte{0xff, 0xfe, 0x00, 0x7f},
		},
		"preKeys": []any{
			[]byte{0xde, 0xad},
			map[string]any{"id": float64(1), "key": []byte{0xbe, 0xef}},
		},
		"nothing": nil,
	}

	out, err := codec.Decode(codec.Encode(in))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(out, in) {
		t.Fatalf("round trip mismatch:\n in: %#v\nout: %#v", in, out)
	}
}

func TestRoundTrip_ThroughJSON(t *testing.T) {
	in := map[string]any{
		"keys": map[string]any{
			"app-state-sync": map[string]any{
				"1": []byte{0x00, 0x01, 0x02, 0xaa},
			},
		},
	}

	raw, err := json.Marshal(codec.Encode(in))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var stored map[string]any
	if err := json.Unmarshal(raw, &stored); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	out, err := codec.Decode(stored)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(out, in) {
		t.Fatalf("round trip through JSON mismatch:\n in: %#v\nout: %#v", in, out)
	}
}

func TestEncode_TaggedShape(t *testing.T) {
	out := codec.Encode([]byte{0x68, 0x69})
	m, ok := out.(map[string]any)
	if !ok {
		t.Fatalf("expected tagged map, got %T", out)
	}
	if m["kind"] != "buffer" {
		t.Fatalf("kind = %v, want buffer", m["kind"])
	}
	if m["data"] != "aGk=" {
		t.Fatalf("data = %v, want aGk=", m["data"])
	}
}

func TestEncode_PassThrough(t *testing.T) {
	for _, v := range []any{"text", float64(3), true, nil} {
		if got := codec.Encode(v); !reflect.DeepEqual(got, v) {
			t.Fatalf("Encode(%v) = %v", v, got)
		}
	}
}

func TestDecode_UnknownTag(t *testing.T) {
	_, err := codec.Decode(map[string]any{"kind": "bigint", "data": "9000"})
	if !errors.Is(err, codec.ErrUnknownTag) {
		t.Fatalf("expected ErrUnknownTag, got %v", err)
	}
}

func TestDecode_BadBase64(t *testing.T) {
	_, err := codec.Decode(map[string]any{"kind": "buffer", "data": "not base64!!!"})
	if !errors.Is(err, codec.ErrBadBuffer) {
		t.Fatalf("expected ErrBadBuffer, got %v", err)
	}
}

func TestDecode_NonStringData(t *testing.T) {
	_, err := codec.Decode(map[string]any{"kind": "buffer", "data": float64(5)})
	if !errors.Is(err, codec.ErrBadBuffer) {
		t.Fatalf("expected ErrBadBuffer, got %v", err)
	}
}

func TestDecode_PlainMapWithExtraKeys(t *testing.T) {
	// Three keys means this is an ordinary mapping, not a tagged record.
	in := map[string]any{"kind": "buffer", "data": "aGk=", "note": "plain"}
	out, err := codec.Decode(in)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(out, in) {
		t.Fatalf("plain map was rewritten: %#v", out)
	}
}
