// Package bitmap provides a fixed-size bitset over record positions. The
// stale filter uses it to mark which indexes of a joined dataset fall before
// the freshness threshold.
package bitmap

import (
	"iter"
	"math/bits"
)

// Bitmap is a bitset backed by a slice of uint64 words. Bit i corresponds to
// position i.
type Bitmap struct {
	data []uint64
	n    int
}

// New allocates a bitmap for positions in [0, n). If n <= 0 the bitmap is
// empty and every Add is a no-op.
func New(n int) *Bitmap {
	if n <= 0 {
		return &Bitmap{}
	}
	return &Bitmap{
		data: make([]uint64, (n+63)/64),
		n:    n,
	}
}

// Cap returns n as passed to New.
func (b *Bitmap) Cap() int { return b.n }

// Add sets bit id. Negative or out-of-range ids are ignored.
func (b *Bitmap) Add(id int) {
	if id < 0 || id >= b.n {
		return
	}
	b.data[id/64] |= 1 << uint(id%64)
}

// Has reports whether bit id is set.
func (b *Bitmap) Has(id int) bool {
	if id < 0 || id >= b.n {
		return false
	}
	return b.data[id/64]&(1<<uint(id%64)) != 0
}

// Count returns the number of set bits.
func (b *Bitmap) Count() int {
	c := 0
	for _, w := range b.data {
		c += bits.OnesCount64(w)
	}
	return c
}

// All yields the set positions in ascending order.
func (b *Bitmap) All() iter.Seq[int] {
	return func(yield func(int) bool) {
		for wi, w := range b.data {
			for w != 0 {
				tz := bits.TrailingZeros64(w)
				if !yield(wi*64 + tz) {
					return
				}
				w &= w - 1
			}
		}
	}
}
