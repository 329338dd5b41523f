// Package s3 provides an S3 implementation of the blobstore.BlobStore interface.
//
// # Usage
//
//	store, err := s3.New(ctx, "my-bucket",
//	    s3.WithPrefix("embeddb/"),
//	    s3.WithRegion("us-east-1"),
//	)
//
//	client, err := embeddb.NewClient(func(o *embeddb.Options) {
//	    o.Store = store
//	})
//
// Use NewCommitStore to keep the CURRENT pointer in DynamoDB when several
// processes may persist to the same prefix.
//
// # Features
//
//   - Range reads for partial fetches
//   - CRC32C checksums on single-part uploads
//   - Multipart uploads for large snapshots
//   - Automatic pagination for listing
//   - Configurable prefix for multi-tenant isolation
package s3
