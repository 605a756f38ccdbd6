// Package storage implements the media storage layer: backend-agnostic
// adapters over local disk and cloud object stores, all-or-nothing batch
// persistence with rollback, and an asynchronous orphan-cleanup janitor.
package storage

import (
	"context"
	"io"
)

// Driver identifies a storage backend.
type Driver string

const (
	DriverDisk Driver = "disk"
	DriverS3   Driver = "s3"
	DriverGCS  Driver = "gcs"
)

// Descriptor identifies one stored media object. Path is the externally
// servable locator (URL or mounted static path); Key is the backend-internal
// locator (filesystem-relative path or object key). For every key an adapter
// produces, PublicPath(Key) == Path.
type Descriptor struct {
	Path string `json:"path"`
	Key  string `json:"key"`
}

// Ref is a caller reference to a stored object: either a bare public path,
// or a full path+key pair. When Key is empty it is inferred from Path by
// inverting the adapter's public-path mapping.
type Ref struct {
	Path string
	Key  string
}

// PathRef wraps a stored public path as a Ref.
func PathRef(path string) Ref { return Ref{Path: path} }

// PathRefs wraps a list of stored public paths as Refs.
func PathRefs(paths []string) []Ref {
	refs := make([]Ref, len(paths))
	for i, p := range paths {
		refs[i] = Ref{Path: p}
	}
	return refs
}

// DescriptorRefs converts descriptors back into Refs, preserving both fields.
func DescriptorRefs(ds []Descriptor) []Ref {
	refs := make([]Ref, len(ds))
	for i, d := range ds {
		refs[i] = Ref{Path: d.Path, Key: d.Key}
	}
	return refs
}

// Upload is one file consumed by Persist. Body is read exactly once.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Adapter is the backend capability set. Implementations are safe for
// concurrent use.
type Adapter interface {
	// Driver reports which backend this adapter writes to.
	Driver() Driver

	// PublicPath maps a backend key to its externally servable path.
	// Pure, no I/O.
	PublicPath(key string) string

	// ResolveTargets normalizes caller refs to full descriptors, inferring
	// missing keys from paths. The inverse of PublicPath over every key
	// this adapter produces.
	ResolveTargets(refs []Ref) []Descriptor

	// Persist uploads every file under an optional folder segment and
	// returns descriptors in input order. All-or-nothing: on mid-batch
	// failure every object already written in the batch is deleted before
	// the original error is returned.
	Persist(ctx context.Context, files []Upload, folder string) ([]Descriptor, error)

	// Remove deletes objects by key. A backend not-found is success; every
	// target is attempted and remaining errors are joined.
	Remove(ctx context.Context, targets []Descriptor) error
}

// keyResolver is implemented by adapters so resolveTargets can invert the
// public-path mapping.
type keyResolver interface {
	PublicPath(key string) string
	resolveKey(path string) string
}

func resolveTargets(a keyResolver, refs []Ref) []Descriptor {
	out := make([]Descriptor, len(refs))
	for i, r := range refs {
		d := Descriptor{Path: r.Path, Key: r.Key}
		if d.Key == "" {
			d.Key = a.resolveKey(r.Path)
		}
		if d.Path == "" {
			d.Path = a.PublicPath(d.Key)
		}
		out[i] = d
	}
	return out
}
