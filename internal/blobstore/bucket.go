// Package blobstore implements the blob-store (R2-shaped) adapter:
// CRUD of opaque byte blobs keyed by path, with listing by
// prefix/delimiter (spec §4: "Blob-store adapter (R2)").
package blobstore

import "context"

// Bucket is the minimal object-store contract the adapter and the
// Git overlay both depend on. The module's one implementation is
// mock.MemBucket (in-process, spec §4.7).
type Bucket interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
	// List returns the object keys directly under prefix (up to the
	// next delimiter) and the common prefixes ("directories") found,
	// mirroring R2/S3 delimiter semantics.
	List(ctx context.Context, prefix, delimiter string) (objects []string, commonPrefixes []string, err error)
}

// ErrNotFound is returned by Get when key has no object.
var ErrNotFound = bucketNotFoundError{}

type bucketNotFoundError struct{}

func (bucketNotFoundError) Error() string { return "blobstore: object not found" }
