// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package nbq

import (
	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"
)

// MPSCChunked is a multi-producer single-consumer queue over a chain of
// ring chunks.
//
// The producer index advances by 2 per element; its low bit marks a resize
// in progress. A producer claims indices with one CAS that also proves no
// resize intervened, and the producer that finds the current chunk
// exhausted wins the resize by setting the bit. While the bit is set other
// producers wait. The resizer links the new chunk, publishes the new limit
// and clears the bit before storing the jump marker the consumer follows.
//
// Growth policies are those of SPSCChunked.
//
// Memory: O(queued elements), one 8-byte state per slot
type MPSCChunked[T any] struct {
	producerIndex cursor // 2*index, low bit set while resizing
	producerLimit cursor // Element index bound of the producer chunk
	producerChunk atomix.Pointer[chunk[T]]
	_             pad
	consumerIndex cursor
	consumerChunk *chunk[T]
	_             pad
	growth        growth
	backoff       WaitStrategy // CAS retry policy; nil spins
}

// NewMPSCGrowable creates an MPSC queue whose chunk size doubles from
// initialChunk up to maxCapacity.
//
// Panics if initialChunk < 2 or maxCapacity < initialChunk.
func NewMPSCGrowable[T any](initialChunk, maxCapacity int) *MPSCChunked[T] {
	return newMPSCChunked[T](initialChunk, maxCapacity, true, true, nil)
}

// NewMPSCChunked creates an MPSC queue built from chunks of chunkSize
// slots, holding at most maxCapacity elements.
//
// Panics if chunkSize < 2 or maxCapacity < chunkSize.
func NewMPSCChunked[T any](chunkSize, maxCapacity int) *MPSCChunked[T] {
	return newMPSCChunked[T](chunkSize, maxCapacity, false, true, nil)
}

// NewMPSCUnbounded creates an MPSC queue that never reports full.
func NewMPSCUnbounded[T any](chunkSize int) *MPSCChunked[T] {
	return newMPSCChunked[T](chunkSize, 0, false, false, nil)
}

func newMPSCChunked[T any](chunkSize, maxCapacity int, doubling, bounded bool, backoff WaitStrategy) *MPSCChunked[T] {
	first, g := newGrowth(chunkSize, maxCapacity, doubling, bounded)
	c := newChunk[T](first, 0)
	q := &MPSCChunked[T]{consumerChunk: c, growth: g, backoff: backoff}
	q.producerChunk.StoreRelaxed(c)
	limit, _ := g.plan(first, 0, 0, 0)
	q.producerLimit.StoreRelaxed(limit)
	return q
}

// Offer adds an element to the queue (multiple producers safe).
// Returns ErrWouldBlock if the queue holds its maximum capacity.
func (q *MPSCChunked[T]) Offer(elem *T) error {
	if elem == nil {
		return ErrNilElement
	}
	c, first, n, resize := q.claim(1)
	switch {
	case resize:
		q.grow(c, first, *elem)
	case n == 0:
		return ErrWouldBlock
	default:
		q.store(c, first, *elem)
	}
	return nil
}

// RelaxedOffer is Offer: full is only reported against the consumer index.
func (q *MPSCChunked[T]) RelaxedOffer(elem *T) error {
	return q.Offer(elem)
}

// claim reserves up to n consecutive indices of chunk c. When the chunk is
// exhausted the caller may instead win the resize: resize is then true and
// first is the index the caller must store through grow.
func (q *MPSCChunked[T]) claim(n uint64) (c *chunk[T], first, count uint64, resize bool) {
	sw := spin.Wait{}
	idle := 0
	for {
		limit := q.producerLimit.LoadAcquire()
		pi := q.producerIndex.LoadAcquire()
		if pi&1 != 0 {
			idle = pause(q.backoff, idle, &sw)
			continue
		}
		c = q.producerChunk.LoadAcquire()
		p := pi >> 1
		if p >= limit {
			cons := q.consumerIndex.LoadAcquire()
			if cons > p {
				continue
			}
			next, g := q.growth.plan(c.capacity(), c.base, p, cons)
			switch g {
			case growFull:
				return nil, 0, 0, false
			case growNext:
				if q.producerIndex.CompareAndSwapAcqRel(pi, pi|1) {
					return c, p, 0, true
				}
			default:
				q.producerLimit.CompareAndSwapAcqRel(limit, next)
			}
			continue
		}
		batch := min(n, limit-p)
		if q.producerIndex.CompareAndSwapAcqRel(pi, pi+2*batch) {
			return c, p, batch, false
		}
		idle = pause(q.backoff, idle, &sw)
	}
}

func (q *MPSCChunked[T]) store(c *chunk[T], i uint64, elem T) {
	s := c.at(i)
	s.data = elem
	s.state.StoreRelease(chunkFull)
}

// grow finishes a resize won at index p of chunk old.
func (q *MPSCChunked[T]) grow(old *chunk[T], p uint64, elem T) {
	capacity := q.growth.nextCapacity(old.capacity())
	next := newChunk[T](capacity, p)
	q.store(next, p, elem)

	limit, _ := q.growth.plan(capacity, p, p, q.consumerIndex.LoadAcquire())
	q.producerChunk.StoreRelease(next)
	q.producerLimit.StoreRelease(limit)
	q.producerIndex.StoreRelease(2 * (p + 1))

	old.next = next
	old.at(p).state.StoreRelease(chunkJump)
}

// Fill offers up to limit elements from fn (multiple producers safe).
// The slots are claimed in one CAS before fn is called; a Fill that has to
// grow the queue adds a single element.
func (q *MPSCChunked[T]) Fill(fn func() T, limit int) int {
	if limit <= 0 {
		return 0
	}
	c, first, n, resize := q.claim(uint64(limit))
	if resize {
		q.grow(c, first, fn())
		return 1
	}
	for i := uint64(0); i < n; i++ {
		q.store(c, first+i, fn())
	}
	return int(n)
}

// FillWait fills until exit stops it.
func (q *MPSCChunked[T]) FillWait(fn func() T, w WaitStrategy, exit ExitCondition) {
	fillWait(q.Fill, fn, w, exit)
}

// Poll removes and returns an element (single consumer only).
// Returns (zero-value, ErrWouldBlock) if the queue is empty. An index
// already claimed by a producer is waited for.
func (q *MPSCChunked[T]) Poll() (T, error) {
	return q.poll(true)
}

// RelaxedPoll is Poll without waiting for an in-flight publication.
func (q *MPSCChunked[T]) RelaxedPoll() (T, error) {
	return q.poll(false)
}

func (q *MPSCChunked[T]) poll(strict bool) (T, error) {
	cons := q.consumerIndex.LoadRelaxed()
	elem, ok := takeChunk(&q.consumerChunk, cons, true)
	if !ok {
		if !strict || cons >= q.claimed() {
			return elem, ErrWouldBlock
		}
		awaitChunk(&q.consumerChunk, cons)
		elem, _ = takeChunk(&q.consumerChunk, cons, true)
	}
	q.consumerIndex.StoreRelease(cons + 1)
	return elem, nil
}

// claimed returns the producer index including an index held by a resize.
func (q *MPSCChunked[T]) claimed() uint64 {
	return (q.producerIndex.LoadAcquire() + 1) >> 1
}

// Peek returns the oldest element without removing it (single consumer only).
func (q *MPSCChunked[T]) Peek() (T, error) {
	return q.peek(true)
}

// RelaxedPeek is Peek without waiting for an in-flight publication.
func (q *MPSCChunked[T]) RelaxedPeek() (T, error) {
	return q.peek(false)
}

func (q *MPSCChunked[T]) peek(strict bool) (T, error) {
	cons := q.consumerIndex.LoadRelaxed()
	elem, ok := takeChunk(&q.consumerChunk, cons, false)
	if !ok {
		if !strict || cons >= q.claimed() {
			return elem, ErrWouldBlock
		}
		awaitChunk(&q.consumerChunk, cons)
		elem, _ = takeChunk(&q.consumerChunk, cons, false)
	}
	return elem, nil
}

// Drain removes up to limit elements (single consumer only).
func (q *MPSCChunked[T]) Drain(fn func(T), limit int) int {
	return drainLimit(q.RelaxedPoll, fn, limit)
}

// DrainWait drains until exit stops it (single consumer only).
func (q *MPSCChunked[T]) DrainWait(fn func(T), w WaitStrategy, exit ExitCondition) {
	drainWait(q.Drain, fn, w, exit)
}

// Clear removes every queued element (single consumer only).
func (q *MPSCChunked[T]) Clear() {
	clearAll(q.Poll)
}

// Size returns the number of queued or claimed elements.
func (q *MPSCChunked[T]) Size() int {
	after := q.consumerIndex.LoadAcquire()
	for {
		before := after
		p := q.claimed()
		after = q.consumerIndex.LoadAcquire()
		if before == after {
			return int(min(p-after, q.growth.maxCapacity))
		}
	}
}

// IsEmpty reports whether the queue is empty.
func (q *MPSCChunked[T]) IsEmpty() bool {
	return q.consumerIndex.LoadAcquire() >= q.claimed()
}

// Cap returns the maximum capacity, or Unbounded.
func (q *MPSCChunked[T]) Cap() int {
	return q.growth.capacity()
}
