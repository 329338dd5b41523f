// Package mmap provides read-only memory-mapped file access.
//
// The local blob store maps snapshot files instead of reading them through
// kernel buffers:
//
//	m, err := mmap.Open("snapshots/00000000000000000003.snap")
//	if err != nil { ... }
//	defer m.Close()
//
//	data := m.Bytes() // valid until Close
//
// On platforms without mmap the file is read into memory instead.
package mmap
