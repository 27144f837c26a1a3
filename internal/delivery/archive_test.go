package delivery_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zip"

	"WhatsappLinker/internal/delivery"
)

func TestPackageCredentials_RoundTrip(t *testing.T) {
	files := map[string][]byte{
		"session.db":   {0x53, 0x51, 0x4c, 0x69, 0x74, 0x65, 0x00},
		"creds.json":   []byte(`{"registrationId":4242}`),
		"keys/spk.bin": {0xde, 0xad, 0xbe, 0xef},
	}

	archive, err := delivery.PackageCredentials(files)
	if err != nil {
		t.Fatalf("package: %v", err)
	}

	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	if len(zr.File) != len(files) {
		t.Fatalf("archive has %d entries, want %d", len(zr.File), len(files))
	}
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open %s: %v", f.Name, err)
		}
		got, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("read %s: %v", f.Name, err)
		}
		if !bytes.Equal(got, files[f.Name]) {
			t.Fatalf("entry %s differs from original", f.Name)
		}
	}
}

func TestArchiveDir_ThroughTransportEncoding(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "keys"), 0o700); err != nil {
		t.Fatal(err)
	}
	want := map[string][]byte{
		"session.db":   {0x01, 0x02, 0x03},
		"keys/one.bin": {0x04, 0x05},
	}
	for name, data := range want {
		if err := os.WriteFile(filepath.Join(dir, filepath.FromSlash(name)), data, 0o600); err != nil {
			t.Fatal(err)
		}
	}

	archive, err := delivery.ArchiveDir(dir)
	if err != nil {
		t.Fatalf("archive dir: %v", err)
	}
	text := delivery.EncodeForTransport(archive)

	decoded, err := base64.StdEncoding.DecodeString(text)
	if err != nil {
		t.Fatalf("transport text is not base64: %v", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(decoded), int64(len(decoded)))
	if err != nil {
		t.Fatalf("decoded blob is not a zip: %v", err)
	}
	got := map[string][]byte{}
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open %s: %v", f.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("read %s: %v", f.Name, err)
		}
		got[f.Name] = data
	}
	for name, data := range want {
		if !bytes.Equal(got[name], data) {
			t.Fatalf("entry %s does not reproduce the original file", name)
		}
	}
}

type flakyDeliverer struct {
	failures int
	calls    int
}

func (f *flakyDeliverer) Deliver(ctx context.Context, destination, text string) error {
	f.calls++
	if f.calls <= f.failures {
		return errors.New("transport hiccup")
	}
	return nil
}

func TestDeliverWithRetry_RecoversWithinBound(t *testing.T) {
	d := &flakyDeliverer{failures: 2}
	if err := delivery.DeliverWithRetry(context.Background(), d, "dest", "blob"); err != nil {
		t.Fatalf("expected recovery, got %v", err)
	}
	if d.calls != 3 {
		t.Fatalf("calls = %d, want 3", d.calls)
	}
}

func TestDeliverWithRetry_GivesUp(t *testing.T) {
	d := &flakyDeliverer{failures: 100}
	err := delivery.DeliverWithRetry(context.Background(), d, "dest", "blob")
	if !errors.Is(err, delivery.ErrDeliveryFailed) {
		t.Fatalf("expected ErrDeliveryFailed, got %v", err)
	}
	if d.calls != 3 {
		t.Fatalf("calls = %d, want 3", d.calls)
	}
}
