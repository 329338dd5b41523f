//go:build !unix

package mmap

import (
	"io"
	"os"
)

// mapSequential reads the file into memory where mmap is unavailable.
func mapSequential(f *os.File, size int) ([]byte, func([]byte) error, error) {
	data := make([]byte, size)
	if _, err := io.ReadFull(f, data); err != nil {
		return nil, nil, err
	}
	return data, nil, nil
}
