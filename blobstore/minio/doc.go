// Package minio provides a BlobStore implementation using the MinIO client.
//
// MinIO is an S3-compatible object storage system. This package uses the
// official MinIO Go client library and works with other S3-compatible
// systems like Ceph, SeaweedFS, and Garage.
//
// # Basic Usage
//
//	store, err := minioblob.Dial(ctx, "localhost:9000", "my-bucket", func(o *minioblob.Options) {
//	    o.AccessKey = "minioadmin"
//	    o.SecretKey = "minioadmin"
//	    o.Prefix = "embeddb/"
//	    o.CreateBucket = true
//	})
//
// An existing *minio.Client can be wrapped with NewStore.
package minio
