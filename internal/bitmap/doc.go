// Package bitmap provides a compressed row-id set backed by Roaring bitmaps.
//
// The collection uses it for the live row set and the index tombstones.
package bitmap
