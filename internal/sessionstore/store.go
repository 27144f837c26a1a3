// Package sessionstore persists at most one session record per id:
// the credential mapping and the key-store mapping produced by a linked
// device. Byte buffers inside either mapping survive storage through the
// tagged encoding in internal/codec.
package sessionstore

import (
	"context"
	"encoding/json"
	"fmt"

	"WhatsappLinker/internal/codec"
)

// Record is one persisted session. Credentials is an opaque nested
// mapping of authentication material; Keys maps key-category to key-id
// to key material.
type Record struct {
	ID          string
	Credentials map[string]any
	Keys        map[string]map[string]any
}

// Store is a keyed upsert/lookup over a durable backing store. A failed
// write means "not durably saved this round": callers keep their
// in-memory state and try again on the next save.
type Store interface {
	// Get returns the record for id, or (nil, nil) if none exists.
	Get(ctx context.Context, id string) (*Record, error)

	// Put inserts or fully replaces the record for id.
	Put(ctx context.Context, id string, credentials map[string]any, keys map[string]map[string]any) error

	// MergeKeys merges values into one key category, preserving sibling
	// sub-keys in that category and all other categories.
	MergeKeys(ctx context.Context, id, category string, values map[string]any) error

	Close() error
}

func marshalMapping(m map[string]any) (string, error) {
	if m == nil {
		m = map[string]any{}
	}
	raw, err := json.Marshal(codec.Encode(m))
	if err != nil {
		return "", fmt.Errorf("marshal mapping: %w", err)
	}
	return string(raw), nil
}

func unmarshalMapping(s string) (map[string]any, error) {
	var stored map[string]any
	if err := json.Unmarshal([]byte(s), &stored); err != nil {
		return nil, fmt.Errorf("unmarshal mapping: %w", err)
	}
	dec, err := codec.Decode(stored)
	if err != nil {
		return nil, err
	}
	return dec.(map[string]any), nil
}

func marshalKeys(keys map[string]map[string]any) (string, error) {
	return marshalMapping(flattenKeys(keys))
}

func unmarshalKeys(s string) (map[string]map[string]any, error) {
	m, err := unmarshalMapping(s)
	if err != nil {
		return nil, err
	}
	return nestKeys(m)
}

func flattenKeys(keys map[string]map[string]any) map[string]any {
	out := make(map[string]any, len(keys))
	for category, vals := range keys {
		out[category] = vals
	}
	return out
}

func nestKeys(m map[string]any) (map[string]map[string]any, error) {
	out := make(map[string]map[string]any, len(m))
	for category, vals := range m {
		sub, ok := vals.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("key category %q is not a mapping", category)
		}
		out[category] = sub
	}
	return out, nil
}

// mergeKeyMaps overlays values onto the category's existing sub-keys.
// Unrelated categories and untouched sibling sub-keys stay as stored.
func mergeKeyMaps(keys map[string]map[string]any, category string, values map[string]any) map[string]map[string]any {
	if keys == nil {
		keys = map[string]map[string]any{}
	}
	sub := keys[category]
	if sub == nil {
		sub = make(map[string]any, len(values))
		keys[category] = sub
	}
	for k, v := range values {
		sub[k] = v
	}
	return keys
}
