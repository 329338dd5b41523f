package bitmap

import (
	"iter"

	"github.com/RoaringBitmap/roaring/v2"
)

// Bitmap is a set of uint32 row ids.
// It is not safe for concurrent use; callers hold their own locks.
type Bitmap struct {
	rb *roaring.Bitmap
}

// New creates an empty bitmap.
func New() *Bitmap {
	return &Bitmap{rb: roaring.New()}
}

// Of creates a bitmap holding rows.
func Of(rows ...uint32) *Bitmap {
	return &Bitmap{rb: roaring.BitmapOf(rows...)}
}

// Add adds a row to the bitmap.
func (b *Bitmap) Add(row uint32) {
	b.rb.Add(row)
}

// CheckedAdd adds a row and reports whether it was absent.
func (b *Bitmap) CheckedAdd(row uint32) bool {
	return b.rb.CheckedAdd(row)
}

// Remove removes a row from the bitmap.
func (b *Bitmap) Remove(row uint32) {
	b.rb.Remove(row)
}

// CheckedRemove removes a row and reports whether it was present.
func (b *Bitmap) CheckedRemove(row uint32) bool {
	return b.rb.CheckedRemove(row)
}

// Contains reports whether row is in the bitmap.
func (b *Bitmap) Contains(row uint32) bool {
	if b == nil {
		return false
	}
	return b.rb.Contains(row)
}

// IsEmpty returns true if the bitmap is empty.
func (b *Bitmap) IsEmpty() bool {
	return b == nil || b.rb.IsEmpty()
}

// Cardinality returns the number of rows in the bitmap.
func (b *Bitmap) Cardinality() int {
	if b == nil {
		return 0
	}
	return int(b.rb.GetCardinality())
}

// Clone returns a deep copy of the bitmap.
func (b *Bitmap) Clone() *Bitmap {
	return &Bitmap{rb: b.rb.Clone()}
}

// Clear removes all rows.
func (b *Bitmap) Clear() {
	b.rb.Clear()
}

// And intersects b with other in place.
func (b *Bitmap) And(other *Bitmap) {
	b.rb.And(other.rb)
}

// Or unions other into b in place.
func (b *Bitmap) Or(other *Bitmap) {
	b.rb.Or(other.rb)
}

// AndNot removes every row of other from b.
func (b *Bitmap) AndNot(other *Bitmap) {
	b.rb.AndNot(other.rb)
}

// Rows iterates the rows in ascending order.
func (b *Bitmap) Rows() iter.Seq[uint32] {
	return func(yield func(uint32) bool) {
		if b == nil {
			return
		}
		it := b.rb.Iterator()
		for it.HasNext() {
			if !yield(it.Next()) {
				return
			}
		}
	}
}

// ToArray returns the rows in ascending order.
func (b *Bitmap) ToArray() []uint32 {
	if b == nil {
		return nil
	}
	return b.rb.ToArray()
}

// Select returns the i-th smallest row.
func (b *Bitmap) Select(i int) (uint32, error) {
	return b.rb.Select(uint32(i))
}

// MarshalBinary encodes the bitmap in the portable Roaring format.
func (b *Bitmap) MarshalBinary() ([]byte, error) {
	b.rb.RunOptimize()
	return b.rb.ToBytes()
}

// UnmarshalBinary decodes a bitmap written by MarshalBinary.
func (b *Bitmap) UnmarshalBinary(data []byte) error {
	rb := roaring.New()
	if err := rb.UnmarshalBinary(data); err != nil {
		return err
	}
	b.rb = rb
	return nil
}
