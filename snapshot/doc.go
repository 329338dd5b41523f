// Package snapshot persists embeddb clients as versioned, checksummed blobs.
//
// A snapshot is encoded with a codec (msgpack by default), optionally
// compressed with lz4 or zstd, and wrapped in a frame carrying the codec
// name and a CRC32C of the payload. Store writes each snapshot as
// "snapshots/<version>.snap" and then points "CURRENT" at it, so a crash
// between the two writes leaves the previous snapshot in effect.
package snapshot
