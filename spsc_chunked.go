// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package nbq

// SPSCChunked is a single-producer single-consumer queue over a chain of
// ring chunks.
//
// The producer writes into its current chunk until the chunk cannot take
// another element without overwriting an unconsumed one. It then links a
// new chunk, stores the element there and leaves a jump marker in the old
// chunk at the same index. The consumer follows the markers. Chunks the
// consumer has left are reclaimed by the garbage collector.
//
// Three growth policies share this type:
//
//   - growable: chunk capacity doubles up to the maximum capacity
//   - chunked: fixed chunk size, total bounded by the maximum capacity
//   - unbounded: fixed chunk size, no bound; Cap returns Unbounded
//
// Memory: O(queued elements), one 8-byte state per slot
type SPSCChunked[T any] struct {
	head          cursor // Consumer index
	tail          cursor // Producer index
	producerLimit uint64
	producerChunk *chunk[T]
	_             pad
	consumerChunk *chunk[T]
	_             pad
	growth        growth
}

// NewSPSCGrowable creates an SPSC queue that starts with one chunk of
// initialChunk slots and doubles the chunk size on growth. It holds at
// most maxCapacity elements. Both sizes round up to powers of 2.
//
// Panics if initialChunk < 2 or maxCapacity < initialChunk.
func NewSPSCGrowable[T any](initialChunk, maxCapacity int) *SPSCChunked[T] {
	return newSPSCChunked[T](initialChunk, maxCapacity, true, true)
}

// NewSPSCChunked creates an SPSC queue built from chunks of chunkSize
// slots, holding at most maxCapacity elements.
//
// Panics if chunkSize < 2 or maxCapacity < chunkSize.
func NewSPSCChunked[T any](chunkSize, maxCapacity int) *SPSCChunked[T] {
	return newSPSCChunked[T](chunkSize, maxCapacity, false, true)
}

// NewSPSCUnbounded creates an SPSC queue that links a new chunk of
// chunkSize slots whenever the current one is full. Offer never reports
// ErrWouldBlock.
func NewSPSCUnbounded[T any](chunkSize int) *SPSCChunked[T] {
	return newSPSCChunked[T](chunkSize, 0, false, false)
}

func newSPSCChunked[T any](chunkSize, maxCapacity int, doubling, bounded bool) *SPSCChunked[T] {
	first, g := newGrowth(chunkSize, maxCapacity, doubling, bounded)
	c := newChunk[T](first, 0)
	q := &SPSCChunked[T]{producerChunk: c, consumerChunk: c, growth: g}
	q.producerLimit, _ = g.plan(first, 0, 0, 0)
	return q
}

// Offer adds an element to the queue (producer only).
// Returns ErrWouldBlock if the queue holds its maximum capacity.
func (q *SPSCChunked[T]) Offer(elem *T) error {
	if elem == nil {
		return ErrNilElement
	}
	if !q.put(*elem) {
		return ErrWouldBlock
	}
	return nil
}

// RelaxedOffer is Offer.
func (q *SPSCChunked[T]) RelaxedOffer(elem *T) error {
	return q.Offer(elem)
}

func (q *SPSCChunked[T]) put(elem T) bool {
	p := q.tail.LoadRelaxed()
	if p >= q.producerLimit {
		limit, g := q.growth.plan(q.producerChunk.capacity(), q.producerChunk.base, p, q.head.LoadAcquire())
		switch g {
		case growFull:
			return false
		case growNext:
			q.jump(p, elem)
			return true
		}
		q.producerLimit = limit
	}
	s := q.producerChunk.at(p)
	s.data = elem
	s.state.StoreRelease(chunkFull)
	q.tail.StoreRelease(p + 1)
	return true
}

// jump moves the producer to a new chunk that starts at index p.
func (q *SPSCChunked[T]) jump(p uint64, elem T) {
	old := q.producerChunk
	capacity := q.growth.nextCapacity(old.capacity())
	next := newChunk[T](capacity, p)
	s := next.at(p)
	s.data = elem
	s.state.StoreRelease(chunkFull)

	q.producerChunk = next
	q.producerLimit, _ = q.growth.plan(capacity, p, p, q.head.LoadAcquire())
	old.next = next
	old.at(p).state.StoreRelease(chunkJump)
	q.tail.StoreRelease(p + 1)
}

// Fill offers up to limit elements from fn (producer only).
func (q *SPSCChunked[T]) Fill(fn func() T, limit int) int {
	for i := 0; i < limit; i++ {
		if !q.room() {
			return i
		}
		q.put(fn())
	}
	return max(limit, 0)
}

// room reports whether the next put succeeds without consuming an element.
func (q *SPSCChunked[T]) room() bool {
	p := q.tail.LoadRelaxed()
	if p < q.producerLimit {
		return true
	}
	_, g := q.growth.plan(q.producerChunk.capacity(), q.producerChunk.base, p, q.head.LoadAcquire())
	return g != growFull
}

// FillWait fills until exit stops it (producer only).
func (q *SPSCChunked[T]) FillWait(fn func() T, w WaitStrategy, exit ExitCondition) {
	fillWait(q.Fill, fn, w, exit)
}

// Poll removes and returns an element (consumer only).
// Returns (zero-value, ErrWouldBlock) if the queue is empty.
func (q *SPSCChunked[T]) Poll() (T, error) {
	head := q.head.LoadRelaxed()
	elem, ok := takeChunk(&q.consumerChunk, head, true)
	if !ok {
		return elem, ErrWouldBlock
	}
	q.head.StoreRelease(head + 1)
	return elem, nil
}

// Peek returns the oldest element without removing it (consumer only).
func (q *SPSCChunked[T]) Peek() (T, error) {
	elem, ok := takeChunk(&q.consumerChunk, q.head.LoadRelaxed(), false)
	if !ok {
		return elem, ErrWouldBlock
	}
	return elem, nil
}

// RelaxedPoll is Poll.
func (q *SPSCChunked[T]) RelaxedPoll() (T, error) {
	return q.Poll()
}

// RelaxedPeek is Peek.
func (q *SPSCChunked[T]) RelaxedPeek() (T, error) {
	return q.Peek()
}

// Drain removes up to limit elements (consumer only).
func (q *SPSCChunked[T]) Drain(fn func(T), limit int) int {
	return drainLimit(q.Poll, fn, limit)
}

// DrainWait drains until exit stops it (consumer only).
func (q *SPSCChunked[T]) DrainWait(fn func(T), w WaitStrategy, exit ExitCondition) {
	drainWait(q.Drain, fn, w, exit)
}

// Clear removes every queued element (consumer only).
func (q *SPSCChunked[T]) Clear() {
	clearAll(q.Poll)
}

// Size returns the number of queued elements.
func (q *SPSCChunked[T]) Size() int {
	return occupancy(&q.head, &q.tail, q.growth.maxCapacity)
}

// IsEmpty reports whether the queue is empty.
func (q *SPSCChunked[T]) IsEmpty() bool {
	return q.head.LoadAcquire() == q.tail.LoadAcquire()
}

// Cap returns the maximum capacity, or Unbounded.
func (q *SPSCChunked[T]) Cap() int {
	return q.growth.capacity()
}
