package internal

import (
	"encoding/base64"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// a 1x1 transparent png.
var tinyPNG = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89, 0x00, 0x00, 0x00,
	0x0d, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x62, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00, 0x00, 0x00, 0x00, 0x49,
	0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
}

func pngDataURL() string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(tinyPNG)
}

func TestSaveDataURL(t *testing.T) {
	dir := t.TempDir()
	store := NewImageStore(dir, 1024)

	path, err := store.SaveDataURL(pngDataURL())
	if err != nil {
		t.Fatalf("SaveDataURL: %v", err)
	}
	if !strings.HasPrefix(path, "/images/") || !strings.HasSuffix(path, ".png") {
		t.Fatalf("path = %q; want /images/<name>.png", path)
	}
	onDisk := filepath.Join(dir, strings.TrimPrefix(path, "/images/"))
	data, err := os.ReadFile(onDisk)
	if err != nil {
		t.Fatalf("reading stored image: %v", err)
	}
	if len(data) != len(tinyPNG) {
		t.Fatalf("stored %d bytes; want %d", len(data), len(tinyPNG))
	}
}

func TestSaveDataURLRejectsBadPayloads(t *testing.T) {
	store := NewImageStore(t.TempDir(), 1024)

	for _, payload := range []string{
		"not a data url",
		"data:image/png,missing-base64-marker",
		"data:text/plain;base64,aGVsbG8=",
		"data:image/png;base64,%%%not-base64%%%",
	} {
		if _, err := store.SaveDataURL(payload); !errors.Is(err, ErrImageFormat) {
			t.Fatalf("SaveDataURL(%q) = %v; want ErrImageFormat", payload, err)
		}
	}
}

func TestSaveDataURLRejectsOversizedImage(t *testing.T) {
	store := NewImageStore(t.TempDir(), 8)
	if _, err := store.SaveDataURL(pngDataURL()); !errors.Is(err, ErrImageTooLarge) {
		t.Fatalf("oversized image: got %v; want ErrImageTooLarge", err)
	}
}

func TestServeStoredImage(t *testing.T) {
	store := NewImageStore(t.TempDir(), 1024)
	path, err := store.SaveDataURL(pngDataURL())
	if err != nil {
		t.Fatalf("SaveDataURL: %v", err)
	}

	rec := httptest.NewRecorder()
	store.ServeHTTP(rec, httptest.NewRequest("GET", path, nil))
	if rec.Code != 200 {
		t.Fatalf("GET %s = %d; want 200", path, rec.Code)
	}
	if rec.Body.Len() != len(tinyPNG) {
		t.Fatalf("served %d bytes; want %d", rec.Body.Len(), len(tinyPNG))
	}
}

func TestServeRejectsTraversalAndMissing(t *testing.T) {
	store := NewImageStore(t.TempDir(), 1024)

	rec := httptest.NewRecorder()
	store.ServeHTTP(rec, httptest.NewRequest("GET", "/images/nope.png", nil))
	if rec.Code != 404 {
		t.Fatalf("missing image: status %d; want 404", rec.Code)
	}

	rec = httptest.NewRecorder()
	store.ServeHTTP(rec, httptest.NewRequest("GET", "/images/..%2f..%2fetc%2fpasswd", nil))
	if rec.Code == 200 {
		t.Fatalf("traversal attempt must not succeed")
	}
}
