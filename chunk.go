// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package nbq

import (
	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"
)

// Chunk slot states.
const (
	chunkEmpty uint64 = iota
	chunkFull
	chunkJump // consumer continues in chunk.next at the same index
)

// unboundedCapacity is the element bound of unbounded chunk chains. It
// leaves headroom for index arithmetic in both the plain and the doubled
// (MPSC) index spaces.
const unboundedCapacity = 1 << 61

type chunkSlot[T any] struct {
	state atomix.Uint64
	data  T
}

// chunk is one ring segment of a growable queue.
//
// A chunk covers element indices from base onward; index i lives in slot
// i & mask. When the producer leaves a chunk it stores JUMP into the slot
// of the first index it wrote elsewhere, after linking next. That single
// release store is the only synchronization between chunks: the consumer
// reads next only after it observed JUMP.
type chunk[T any] struct {
	slots []chunkSlot[T]
	mask  uint64
	base  uint64
	next  *chunk[T]
}

func newChunk[T any](capacity, base uint64) *chunk[T] {
	return &chunk[T]{
		slots: paddedSlice[chunkSlot[T]](int(capacity)),
		mask:  capacity - 1,
		base:  base,
	}
}

func (c *chunk[T]) at(i uint64) *chunkSlot[T] {
	return &c.slots[i&c.mask]
}

func (c *chunk[T]) capacity() uint64 {
	return c.mask + 1
}

// grow is the outcome of a producer's limit refresh.
type grow int

const (
	growRoom grow = iota // current chunk has room up to the returned limit
	growFull             // queue holds maxCapacity elements
	growNext             // current chunk exhausted, a new chunk is allowed
)

// growth is the chunk allocation policy of a growable queue.
type growth struct {
	maxCapacity uint64 // bound on queued elements
	maxChunk    uint64 // largest chunk capacity
	doubling    bool   // double the chunk capacity on each growth
}

// newGrowth validates and normalizes a policy. Capacities round up to
// powers of 2.
func newGrowth(chunkSize, maxCapacity int, doubling, bounded bool) (uint64, growth) {
	checkCapacity(chunkSize)
	first := uint64(roundToPow2(chunkSize))
	if !bounded {
		return first, growth{maxCapacity: unboundedCapacity, maxChunk: first}
	}
	if maxCapacity < chunkSize {
		panic("nbq: maxCapacity must be >= chunk size")
	}
	limit := uint64(roundToPow2(maxCapacity))
	g := growth{maxCapacity: limit, maxChunk: first, doubling: doubling}
	if doubling {
		g.maxChunk = limit
	}
	return first, g
}

// nextCapacity returns the capacity of the chunk following one of
// capacity c.
func (g *growth) nextCapacity(c uint64) uint64 {
	if g.doubling {
		return min(c*2, g.maxChunk)
	}
	return c
}

// usable returns how many elements a chunk of capacity c may hold. A chunk
// that may still be left keeps one slot free for the jump marker; a chunk
// as large as the whole queue is never left.
func (g *growth) usable(c uint64) uint64 {
	if c >= g.maxCapacity {
		return c
	}
	return c - 1
}

// plan decides how far the producer at element index p may write into c,
// given consumer index cons <= p.
//
// Only indices from max(base, cons) onward can occupy c, so the chunk has
// room while fewer than usable of them are outstanding. Every index below
// the returned limit maps to a slot that is either unused in this chunk or
// already consumed.
func (g *growth) plan(c uint64, base, p, cons uint64) (uint64, grow) {
	if p-cons >= g.maxCapacity {
		return 0, growFull
	}
	start := max(base, cons)
	usable := g.usable(c)
	if p-start < usable {
		return min(start+usable, cons+g.maxCapacity), growRoom
	}
	return 0, growNext
}

// capacity reports the queue capacity for Cap.
func (g *growth) capacity() int {
	if g.maxCapacity == unboundedCapacity {
		return Unbounded
	}
	return int(g.maxCapacity)
}

// takeChunk returns the element for index i of the chain starting at *cur,
// following a jump marker into the next chunk. It reports false when the
// slot is not yet published. With consume set the element is removed;
// either way *cur moves past a jumped-over chunk.
//
// Consumer only.
func takeChunk[T any](cur **chunk[T], i uint64, consume bool) (T, bool) {
	c := *cur
	s := c.at(i)
	switch s.state.LoadAcquire() {
	case chunkEmpty:
		var zero T
		return zero, false
	case chunkJump:
		// The element is stored in next before the marker is released.
		c = c.next
		*cur = c
		s = c.at(i)
	}
	elem := s.data
	if consume {
		var zero T
		s.data = zero
		s.state.StoreRelease(chunkEmpty)
	}
	return elem, true
}

// awaitChunk waits until slot i of *cur is published or carries a jump.
func awaitChunk[T any](cur **chunk[T], i uint64) {
	s := (*cur).at(i)
	sw := spin.Wait{}
	for s.state.LoadAcquire() == chunkEmpty {
		sw.Once()
	}
}
