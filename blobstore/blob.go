package blobstore

import (
	"context"
	"io"
)

// BytesBlob is a Blob over an in-memory byte slice.
// Backends that fetch whole values (key-value stores, databases) return it.
type BytesBlob struct {
	data []byte
}

// NewBytesBlob wraps data. The caller must not modify data afterwards.
func NewBytesBlob(data []byte) *BytesBlob {
	return &BytesBlob{data: data}
}

// ReadAt implements Blob.
func (b *BytesBlob) ReadAt(_ context.Context, p []byte, off int64) (int, error) {
	if off < 0 || off >= int64(len(b.data)) {
		return 0, io.EOF
	}
	n := copy(p, b.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Size implements Blob.
func (b *BytesBlob) Size() int64 {
	return int64(len(b.data))
}

// Bytes implements Mappable.
func (b *BytesBlob) Bytes() ([]byte, error) {
	return b.data, nil
}

// Close implements Blob.
func (b *BytesBlob) Close() error {
	return nil
}
