// Package index defines the vector index contract.
//
// Two implementations exist: index/flat, an exact scan that serves as the
// correctness baseline, and index/hnsw, an approximate navigable
// small-world graph. Both support incremental insert, logical delete via
// tombstones, and a cancellable three-phase compaction:
//
//  1. snapshot live rows and tombstones under the index lock
//  2. build the replacement structure without the lock, checking ctx
//  3. re-take the lock, replay the journal and swap
package index
