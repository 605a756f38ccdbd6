package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// errReader fails after the first read, simulating a broken upload stream.
type errReader struct{ err error }

func (r *errReader) Read(p []byte) (int, error) { return 0, r.err }

func uploadsFromStrings(contents ...string) []Upload {
	files := make([]Upload, len(contents))
	for i, c := range contents {
		files[i] = Upload{
			Filename:    "image.png",
			ContentType: "image/png",
			Size:        int64(len(c)),
			Body:        strings.NewReader(c),
		}
	}
	return files
}

func countFiles(t *testing.T, dir string) int {
	t.Helper()
	var n int
	filepath.WalkDir(dir, func(_ string, d os.DirEntry, err error) error {
		if err == nil && !d.IsDir() {
			n++
		}
		return nil
	})
	return n
}

func TestDisk_Persist(t *testing.T) {
	dir := t.TempDir()
	d := NewDisk(dir, "/uploads", "", nil)
	ctx := context.Background()

	descriptors, err := d.Persist(ctx, uploadsFromStrings("one", "two", "three"), "products")
	if err != nil {
		t.Fatalf("Persist: %v", err)
	}

	if len(descriptors) != 3 {
		t.Fatalf("descriptors: got %d, want 3", len(descriptors))
	}

	for i, desc := range descriptors {
		if desc.Path != d.PublicPath(desc.Key) {
			t.Errorf("descriptor %d: path %q != PublicPath(key) %q", i, desc.Path, d.PublicPath(desc.Key))
		}
		if !strings.HasPrefix(desc.Key, "products/") {
			t.Errorf("descriptor %d: key %q not under folder", i, desc.Key)
		}
		data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(desc.Key)))
		if err != nil {
			t.Fatalf("reading persisted file: %v", err)
		}
		want := []string{"one", "two", "three"}[i]
		if string(data) != want {
			t.Errorf("descriptor %d: content %q, want %q (input order must be preserved)", i, data, want)
		}
	}
}

func TestDisk_Persist_RollbackOnFailure(t *testing.T) {
	dir := t.TempDir()
	d := NewDisk(dir, "/uploads", "", nil)
	ctx := context.Background()

	files := uploadsFromStrings("one", "two")
	files = append(files, Upload{
		Filename:    "broken.png",
		ContentType: "image/png",
		Body:        &errReader{err: errors.New("disk exploded")},
	})

	_, err := d.Persist(ctx, files, "products")
	if err == nil {
		t.Fatal("expected error from failing third file, got nil")
	}
	if !strings.Contains(err.Error(), "disk exploded") {
		t.Errorf("original error should propagate, got: %v", err)
	}

	// All-or-nothing: the two files written before the failure must be gone.
	if n := countFiles(t, dir); n != 0 {
		t.Errorf("expected 0 files after rollback, found %d", n)
	}
}

func TestDisk_Persist_LazyDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "not-yet-created")
	d := NewDisk(dir, "/uploads", "", nil)

	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Fatal("upload dir should not exist before first write")
	}

	if _, err := d.Persist(context.Background(), uploadsFromStrings("data"), ""); err != nil {
		t.Fatalf("Persist: %v", err)
	}

	if _, err := os.Stat(dir); err != nil {
		t.Errorf("upload dir should exist after first write: %v", err)
	}
}

func TestDisk_Remove(t *testing.T) {
	dir := t.TempDir()
	d := NewDisk(dir, "/uploads", "", nil)
	ctx := context.Background()

	descriptors, err := d.Persist(ctx, uploadsFromStrings("a", "b"), "products")
	if err != nil {
		t.Fatalf("Persist: %v", err)
	}

	if err := d.Remove(ctx, descriptors); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	if n := countFiles(t, dir); n != 0 {
		t.Errorf("expected products folder empty after Remove, found %d files", n)
	}
}

func TestDisk_Remove_TraversalSafe(t *testing.T) {
	parent := t.TempDir()
	dir := filepath.Join(parent, "uploads")
	d := NewDisk(dir, "/uploads", "", nil)
	ctx := context.Background()

	outside := filepath.Join(parent, "victim.txt")
	if err := os.WriteFile(outside, []byte("keep me"), 0o644); err != nil {
		t.Fatalf("writing file outside upload root: %v", err)
	}

	// A hostile stored path resolves to a key with a parent reference;
	// Remove must refuse it rather than reach outside baseDir.
	targets := d.ResolveTargets([]Ref{PathRef("/uploads/../victim.txt")})
	err := d.Remove(ctx, targets)
	if err == nil {
		t.Fatal("expected error for key escaping the upload root, got nil")
	}

	if _, statErr := os.Stat(outside); statErr != nil {
		t.Fatalf("file outside the upload root was deleted: %v", statErr)
	}
}

func TestDisk_Remove_NonExistent(t *testing.T) {
	d := NewDisk(t.TempDir(), "/uploads", "", nil)

	err := d.Remove(context.Background(), []Descriptor{{Key: "products/gone.png"}})
	if err != nil {
		t.Errorf("Remove of missing file should succeed, got %v", err)
	}
}

func TestDisk_PublicPath(t *testing.T) {
	d := NewDisk("/srv/uploads", "/uploads", "", nil)
	if got := d.PublicPath("products/a.png"); got != "/uploads/products/a.png" {
		t.Errorf("PublicPath = %q, want %q", got, "/uploads/products/a.png")
	}

	withBase := NewDisk("/srv/uploads", "/uploads", "https://cdn.example.com/", nil)
	if got := withBase.PublicPath("a.png"); got != "https://cdn.example.com/uploads/a.png" {
		t.Errorf("PublicPath with base URL = %q", got)
	}
}

func TestDisk_ResolveTargets(t *testing.T) {
	d := NewDisk("/srv/uploads", "/uploads", "", nil)

	tests := []struct {
		name string
		ref  Ref
		want Descriptor
	}{
		{
			name: "bare stored path",
			ref:  PathRef("/uploads/products/abc-123.png"),
			want: Descriptor{Path: "/uploads/products/abc-123.png", Key: "products/abc-123.png"},
		},
		{
			name: "explicit key preserved",
			ref:  Ref{Path: "/uploads/x.png", Key: "x.png"},
			want: Descriptor{Path: "/uploads/x.png", Key: "x.png"},
		},
		{
			name: "key only fills path",
			ref:  Ref{Key: "products/y.png"},
			want: Descriptor{Path: "/uploads/products/y.png", Key: "products/y.png"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := d.ResolveTargets([]Ref{tt.ref})[0]
			if got != tt.want {
				t.Errorf("ResolveTargets = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestDisk_ResolveTargets_BaseURL(t *testing.T) {
	d := NewDisk("/srv/uploads", "/uploads", "https://cdn.example.com", nil)

	got := d.ResolveTargets([]Ref{PathRef("https://cdn.example.com/uploads/products/a.png")})[0]
	if got.Key != "products/a.png" {
		t.Errorf("key = %q, want %q", got.Key, "products/a.png")
	}
}

func TestDisk_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	d := NewDisk(dir, "/uploads", "", nil)

	descriptors, err := d.Persist(context.Background(), uploadsFromStrings("data"), "news")
	if err != nil {
		t.Fatalf("Persist: %v", err)
	}

	key := descriptors[0].Key
	resolved := d.ResolveTargets([]Ref{PathRef(d.PublicPath(key))})[0]
	if resolved.Key != key {
		t.Errorf("round trip: resolved key %q, want %q", resolved.Key, key)
	}
}
