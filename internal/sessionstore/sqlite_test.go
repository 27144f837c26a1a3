package sessionstore_test

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"

	"WhatsappLinker/internal/sessionstore"
)

func newTestStore(t *testing.T) *sessionstore.SQLiteStore {
	t.Helper()
	st, err := sessionstore.NewSQLiteStore(filepath.Join(t.TempDir(), "sessions.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestGet_AbsentIsNotAnError(t *testing.T) {
	st := newTestStore(t)

	rec, err := st.Get(context.Background(), "never-written")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec != nil {
		t.Fatalf("expected absent record, got %#v", rec)
	}
}

func TestPutGet_RoundTrip(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	creds := map[string]any{
		"registrationId": float64(4242),
		"platform":       "chrome",
		"noiseKey": map[string]any{
			"public":  []byte{0x01, 0x02},
			"private": []byte{0x03, 0x04},
		},
	}
	keys := map[string]map[string]any{
		"signed-pre-key": {
			"1": map[string]any{"key": []byte{0xaa}, "signature": []byte{0xbb}},
		},
	}

	if err := st.Put(ctx, "device", creds, keys); err != nil {
		t.Fatalf("put: %v", err)
	}
	rec, err := st.Get(ctx, "device")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec == nil {
		t.Fatal("record absent after put")
	}
	if !reflect.DeepEqual(rec.Credentials, creds) {
		t.Fatalf("credentials mismatch:\nwant %#v\n got %#v", creds, rec.Credentials)
	}
	if !reflect.DeepEqual(rec.Keys, keys) {
		t.Fatalf("keys mismatch:\nwant %#v\n got %#v", keys, rec.Keys)
	}
}

func TestPut_UpsertReplaces(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	if err := st.Put(ctx, "device", map[string]any{"rev": float64(1)}, nil); err != nil {
		t.Fatalf("first put: %v", err)
	}
	if err := st.Put(ctx, "device", map[string]any{"rev": float64(2)}, nil); err != nil {
		t.Fatalf("second put: %v", err)
	}

	rec, err := st.Get(ctx, "device")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.Credentials["rev"] != float64(2) {
		t.Fatalf("rev = %v, want 2", rec.Credentials["rev"])
	}
}

func TestMergeKeys_PreservesSiblingsAndCategories(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	keys := map[string]map[string]any{
		"a": {"x": float64(1)},
	}
	if err := st.Put(ctx, "device", map[string]any{}, keys); err != nil {
		t.Fatalf("put: %v", err)
	}

	if err := st.MergeKeys(ctx, "device", "b", map[string]any{"y": float64(2)}); err != nil {
		t.Fatalf("merge new category: %v", err)
	}
	if err := st.MergeKeys(ctx, "device", "a", map[string]any{"z": []byte{0x0a}}); err != nil {
		t.Fatalf("merge sibling: %v", err)
	}

	rec, err := st.Get(ctx, "device")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	want := map[string]map[string]any{
		"a": {"x": float64(1), "z": []byte{0x0a}},
		"b": {"y": float64(2)},
	}
	if !reflect.DeepEqual(rec.Keys, want) {
		t.Fatalf("keys mismatch:\nwant %#v\n got %#v", want, rec.Keys)
	}
}

func TestMergeKeys_CreatesRecordIfAbsent(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	if err := st.MergeKeys(ctx, "fresh", "a", map[string]any{"x": float64(1)}); err != nil {
		t.Fatalf("merge: %v", err)
	}
	rec, err := st.Get(ctx, "fresh")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec == nil || rec.Keys["a"]["x"] != float64(1) {
		t.Fatalf("unexpected record: %#v", rec)
	}
}
