// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package nbq

// maxLookAheadStep caps how far ahead the SPSC producer probes for room.
const maxLookAheadStep = 4096

// SPSC is a single-producer single-consumer bounded queue.
//
// Based on Lamport's ring buffer with cached index optimization. Neither
// side uses CAS. The producer keeps a private limit below which slots are
// known free and refreshes it by probing the slot lookAheadStep positions
// ahead: if that slot was released, every slot before it was too, so one
// cross-core read buys a whole batch of offers. The consumer keeps a
// private copy of the producer cursor and refreshes it only when it
// appears empty.
//
// Memory: O(capacity), one 8-byte marker per slot
type SPSC[T any] struct {
	head          cursor // Consumer reads from here
	cachedTail    cache  // Consumer's cached view of tail
	tail          cursor // Producer writes here
	producerLimit cache  // Producer's known-free bound
	_             pad
	ring          ring[T]
	lookAheadStep uint64
}

// NewSPSC creates a new SPSC queue.
// Capacity rounds up to the next power of 2.
func NewSPSC[T any](capacity int) *SPSC[T] {
	return newSPSC[T](capacity, 0)
}

func newSPSC[T any](capacity int, sparse uint) *SPSC[T] {
	checkCapacity(capacity)
	q := &SPSC[T]{ring: newRing[T](capacity, sparse)}
	q.lookAheadStep = max(1, min(q.ring.cap/4, maxLookAheadStep))
	return q
}

// Offer adds an element to the queue (producer only).
// Returns ErrWouldBlock if the queue is full.
func (q *SPSC[T]) Offer(elem *T) error {
	if elem == nil {
		return ErrNilElement
	}
	tail := q.tail.LoadRelaxed()
	if tail >= q.producerLimit.v && !q.hasRoom(tail) {
		return ErrWouldBlock
	}
	q.publish(tail, elem)
	return nil
}

// RelaxedOffer is Offer; a single producer never races another claim.
func (q *SPSC[T]) RelaxedOffer(elem *T) error {
	return q.Offer(elem)
}

// hasRoom refreshes the producer limit once tail reached it.
func (q *SPSC[T]) hasRoom(tail uint64) bool {
	ahead := tail + q.lookAheadStep
	if q.ring.at(ahead).seq.LoadAcquire() == ahead {
		q.producerLimit.v = ahead
		return true
	}
	return q.ring.at(tail).seq.LoadAcquire() == tail
}

func (q *SPSC[T]) publish(tail uint64, elem *T) {
	s := q.ring.at(tail)
	s.data = *elem
	s.seq.StoreRelease(tail + 1)
	q.tail.StoreRelease(tail + 1)
}

// Fill offers up to limit elements from fn (producer only).
func (q *SPSC[T]) Fill(fn func() T, limit int) int {
	tail := q.tail.LoadRelaxed()
	for i := 0; i < limit; i++ {
		if tail >= q.producerLimit.v && !q.hasRoom(tail) {
			return i
		}
		s := q.ring.at(tail)
		s.data = fn()
		s.seq.StoreRelease(tail + 1)
		tail++
		q.tail.StoreRelease(tail)
	}
	return max(limit, 0)
}

// FillWait fills until exit stops it (producer only).
func (q *SPSC[T]) FillWait(fn func() T, w WaitStrategy, exit ExitCondition) {
	fillWait(q.Fill, fn, w, exit)
}

// Poll removes and returns an element (consumer only).
// Returns (zero-value, ErrWouldBlock) if the queue is empty.
func (q *SPSC[T]) Poll() (T, error) {
	head := q.head.LoadRelaxed()
	if !q.available(head) {
		var zero T
		return zero, ErrWouldBlock
	}
	s := q.ring.at(head)
	elem := s.data
	var zero T
	s.data = zero
	s.seq.StoreRelease(head + q.ring.cap)
	q.head.StoreRelease(head + 1)
	return elem, nil
}

// Peek returns the oldest element without removing it (consumer only).
func (q *SPSC[T]) Peek() (T, error) {
	head := q.head.LoadRelaxed()
	if !q.available(head) {
		var zero T
		return zero, ErrWouldBlock
	}
	return q.ring.at(head).data, nil
}

// RelaxedPoll is Poll; the producer publishes the cursor after the slot.
func (q *SPSC[T]) RelaxedPoll() (T, error) {
	return q.Poll()
}

// RelaxedPeek is Peek.
func (q *SPSC[T]) RelaxedPeek() (T, error) {
	return q.Peek()
}

func (q *SPSC[T]) available(head uint64) bool {
	if head < q.cachedTail.v {
		return true
	}
	q.cachedTail.v = q.tail.LoadAcquire()
	return head < q.cachedTail.v
}

// Drain removes up to limit elements (consumer only).
func (q *SPSC[T]) Drain(fn func(T), limit int) int {
	return drainLimit(q.Poll, fn, limit)
}

// DrainWait drains until exit stops it (consumer only).
func (q *SPSC[T]) DrainWait(fn func(T), w WaitStrategy, exit ExitCondition) {
	drainWait(q.Drain, fn, w, exit)
}

// Clear removes every queued element (consumer only).
func (q *SPSC[T]) Clear() {
	clearAll(q.Poll)
}

// Size returns the number of queued elements.
func (q *SPSC[T]) Size() int {
	return occupancy(&q.head, &q.tail, q.ring.cap)
}

// IsEmpty reports whether the queue is empty.
func (q *SPSC[T]) IsEmpty() bool {
	return q.head.LoadAcquire() == q.tail.LoadAcquire()
}

// Cap returns the queue capacity.
func (q *SPSC[T]) Cap() int {
	return int(q.ring.cap)
}
