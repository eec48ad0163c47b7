// Package storage defines the media store used to host uploaded post files.
// Swap implementations by changing the concrete type injected at startup:
// Cloudinary for CDN delivery, or MinIO for any S3-compatible bucket.
package storage

import (
	"context"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
)

// UploadOptions describes how a file should be stored.
type UploadOptions struct {
	// FileName is the original name of the uploaded file.
	FileName    string
	ContentType string
	// Size is the exact byte count of the reader, or -1 when unknown.
	Size int64
	// UniqueName asks the store to generate a collision-free name.
	UniqueName bool
	// Tags classify the stored object (e.g. its origin).
	Tags []string
}

// UploadResult is what the store reports back for a stored object.
type UploadResult struct {
	// URL is the publicly reachable location of the object. Empty means the
	// store did not produce a usable object.
	URL string
	// Name is the name the store assigned, if any.
	Name string
}

// MediaStore uploads media to a remote store.
type MediaStore interface {
	// Upload reads r to the end and stores it under a name derived from opts.
	Upload(ctx context.Context, r io.Reader, opts UploadOptions) (*UploadResult, error)
	// Provider names the backing service, for logs and metrics.
	Provider() string
}

// uniqueName keeps the extension of name and replaces the stem with a UUID
// suffix so two uploads of the same file never collide.
func uniqueName(name string) string {
	ext := path.Ext(name)
	stem := strings.TrimSuffix(path.Base(name), ext)
	if stem == "" || stem == "." || stem == "/" {
		stem = "file"
	}
	return stem + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12] + ext
}
