// Package blobstore provides the storage abstraction behind embeddb snapshots.
//
// BlobStore is the interface for reading and writing named data blobs.
// Implementations must be safe for concurrent use.
//
// # Built-in Implementations
//
//   - MemoryStore: in-process map, for tests
//   - LocalStore: local filesystem with mmap reads and atomic renames
//   - s3.Store: Amazon S3, with an optional DynamoDB commit store
//   - minio.Store: MinIO or any S3-compatible server
//   - badger.Store: embedded Badger key-value store
//   - sqlite.Store: single SQLite database file
//
// # Custom Implementations
//
// Implement the BlobStore interface to support custom storage backends:
//
//	type BlobStore interface {
//	    Open(ctx, name) (Blob, error)
//	    Put(ctx, name, data) error
//	    Delete(ctx, name) error
//	    List(ctx, prefix) ([]string, error)
//	}
//
// Blobs whose content already lives in memory should implement Mappable so
// that ReadAll can skip the copy through ReadAt.
package blobstore
