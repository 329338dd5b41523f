// Package hash provides CRC32-Castagnoli checksums for snapshot frames and
// S3 uploads.
//
// Parts are hashed as if concatenated:
//
//	sum := hash.CRC32C(header, payload)
//	err := hash.Verify(sum, header, payload)
package hash
