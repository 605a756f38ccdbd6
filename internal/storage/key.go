package storage

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

// NewFilename generates a collision-resistant filename:
// "{sanitized prefix}-{unix milli}-{uuid}{ext}". The prefix segment is
// optional; the extension is taken from originalName. All whitespace is
// stripped so keys are safe to embed in URLs without escaping.
func NewFilename(prefix, originalName string) string {
	base := fmt.Sprintf("%d-%s%s", time.Now().UnixMilli(), uuid.NewString(), sanitizeExt(originalName))
	if p := SanitizeSegment(prefix); p != "" {
		return p + "-" + base
	}
	return base
}

// ObjectKey generates a full backend key under an optional folder segment:
// "{sanitized folder}/{unix milli}-{uuid}{ext}". With an empty folder the
// key is the bare filename. Keys never start with a slash.
func ObjectKey(folder, originalName string) string {
	name := NewFilename("", originalName)
	if f := SanitizeSegment(folder); f != "" {
		return f + "/" + name
	}
	return name
}

// SanitizeSegment makes a caller-supplied path segment (folder, prefix) safe
// for use inside a key: directory separators and parent references are
// stripped, as is all whitespace, so callers cannot traverse outside the
// upload root or craft nested object keys.
func SanitizeSegment(s string) string {
	s = strings.Trim(s, "/\\")
	var sb strings.Builder
	for _, r := range s {
		if r == '/' || r == '\\' || unicode.IsSpace(r) || r == 0 {
			continue
		}
		sb.WriteRune(r)
	}
	return strings.ReplaceAll(sb.String(), "..", "")
}

// sanitizeExt extracts a safe extension from an original filename, keeping
// only alphanumeric characters after the final dot.
func sanitizeExt(name string) string {
	ext := filepath.Ext(name)
	if ext == "" {
		return ""
	}
	var sb strings.Builder
	for _, r := range ext[1:] {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			sb.WriteRune(r)
		}
	}
	if sb.Len() == 0 {
		return ""
	}
	return "." + sb.String()
}
