// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package nbq

import (
	"unsafe"

	"code.hybscloud.com/atomix"
)

// maxSparseShift bounds the slot spacing multiplier (1 << 6 = 64 slots apart).
const maxSparseShift = 6

// slot is one ring element with its sequence marker.
//
// For index i the marker reads:
//
//	seq == i           writable by the producer that owns index i
//	seq == i+1         readable by the consumer that owns index i
//	seq == i+capacity  released; writable for index i+capacity
//
// SPSC, MPSC and SPMC use the marker as a plain EMPTY/OCCUPIED flag for the
// current lap. MPMC relies on the full sequence to stay ABA-safe with CAS
// on both cursors.
type slot[T any] struct {
	seq  atomix.Uint64
	data T
}

// ring is the fixed-capacity slot array shared by all bounded variants.
type ring[T any] struct {
	slots []slot[T]
	mask  uint64
	cap   uint64
	shift uint
}

// newRing allocates a ring for capacity rounded up to a power of two.
//
// With a sparse shift s, logical slot i lives at physical index i<<s,
// spreading neighbouring elements across cache lines.
func newRing[T any](capacity int, sparse uint) ring[T] {
	if sparse > maxSparseShift {
		panic("nbq: sparse shift out of range")
	}
	n := uint64(roundToPow2(capacity))
	r := ring[T]{
		slots: paddedSlice[slot[T]](int(n << sparse)),
		mask:  n - 1,
		cap:   n,
		shift: sparse,
	}
	for i := uint64(0); i < n; i++ {
		r.at(i).seq.StoreRelaxed(i)
	}
	return r
}

// at returns the slot for sequence i.
func (r *ring[T]) at(i uint64) *slot[T] {
	return &r.slots[(i&r.mask)<<r.shift]
}

// paddedSlice returns n elements carved from the middle of a larger
// allocation, so the first and last elements never share a cache line with
// a neighbouring heap object.
func paddedSlice[S any](n int) []S {
	var s S
	size := int(unsafe.Sizeof(s))
	edge := 1
	if size > 0 && size < cacheLineSize {
		edge = (cacheLineSize + size - 1) / size
	}
	backing := make([]S, n+2*edge)
	return backing[edge : edge+n : edge+n]
}

// roundToPow2 rounds n up to the next power of 2.
func roundToPow2(n int) int {
	if n < 2 {
		return 2
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return n + 1
}

func checkCapacity(capacity int) {
	if capacity < 2 {
		panic("nbq: capacity must be >= 2")
	}
}
