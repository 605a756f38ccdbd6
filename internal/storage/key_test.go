package storage

import (
	"regexp"
	"strings"
	"testing"
)

var filenamePattern = regexp.MustCompile(`^\d{13}-[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}`)

func TestNewFilename(t *testing.T) {
	name := NewFilename("", "photo.png")
	if !filenamePattern.MatchString(name) {
		t.Errorf("filename %q does not match timestamp-uuid pattern", name)
	}
	if !strings.HasSuffix(name, ".png") {
		t.Errorf("filename %q should keep the .png extension", name)
	}
}

func TestNewFilename_Prefix(t *testing.T) {
	name := NewFilename("banner", "img.jpg")
	if !strings.HasPrefix(name, "banner-") {
		t.Errorf("filename %q should start with the prefix", name)
	}
	if strings.ContainsAny(name, " \t\n") {
		t.Errorf("filename %q contains whitespace", name)
	}
}

func TestNewFilename_Uniqueness(t *testing.T) {
	a := NewFilename("", "a.png")
	b := NewFilename("", "a.png")
	if a == b {
		t.Error("two generated filenames collided")
	}
}

func TestObjectKey(t *testing.T) {
	key := ObjectKey("products", "photo.webp")
	if !strings.HasPrefix(key, "products/") {
		t.Errorf("key %q should be under the folder segment", key)
	}
	if !strings.HasSuffix(key, ".webp") {
		t.Errorf("key %q should keep the extension", key)
	}
	if strings.HasPrefix(key, "/") {
		t.Errorf("key %q must not start with a slash", key)
	}
}

func TestObjectKey_NoFolder(t *testing.T) {
	key := ObjectKey("", "photo.png")
	if strings.Contains(key, "/") {
		t.Errorf("key %q should be a bare filename without a folder", key)
	}
}

func TestSanitizeSegment(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "products", "products"},
		{"leading and trailing slashes", "/products/", "products"},
		{"embedded separators", "a/b\\c", "abc"},
		{"parent traversal", "../../etc", "etc"},
		{"whitespace stripped", "my folder", "myfolder"},
		{"empty", "", ""},
		{"only slashes", "///", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeSegment(tt.in); got != tt.want {
				t.Errorf("SanitizeSegment(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestObjectKey_TraversalSafe(t *testing.T) {
	key := ObjectKey("../../../etc", "passwd.png")
	if strings.Contains(key, "..") {
		t.Errorf("key %q contains parent references", key)
	}
	if strings.HasPrefix(key, "/") {
		t.Errorf("key %q escapes the upload root", key)
	}
}

func TestSanitizeExt(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"photo.png", ".png"},
		{"archive.tar.gz", ".gz"},
		{"noext", ""},
		{"weird.p*g", ".pg"},
		{"trailingdot.", ""},
	}

	for _, tt := range tests {
		if got := sanitizeExt(tt.in); got != tt.want {
			t.Errorf("sanitizeExt(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
