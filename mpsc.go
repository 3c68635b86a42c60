// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package nbq

import "code.hybscloud.com/spin"

// MPSC is a CAS-based multi-producer single-consumer bounded queue.
//
// Producers CAS the tail cursor to claim a slot, then publish the element
// with a release store of the slot marker. They share a cached limit
// (head + capacity) and read the consumer cursor only when the limit says
// the queue may be full. The single consumer never uses CAS: it reads the
// marker, clears the slot and advances head with a release store so that
// producers refreshing their limit see the freed slot promptly.
//
// Memory: n slots (8-byte marker + element per slot)
type MPSC[T any] struct {
	head          cursor // Consumer reads from here
	tail          cursor // Producers CAS here
	producerLimit cursor // Shared cached head + capacity
	_             pad
	ring          ring[T]
	backoff       WaitStrategy // CAS retry policy; nil spins
}

// NewMPSC creates a new MPSC queue.
// Capacity rounds up to the next power of 2.
func NewMPSC[T any](capacity int) *MPSC[T] {
	return newMPSC[T](capacity, 0, nil)
}

func newMPSC[T any](capacity int, sparse uint, backoff WaitStrategy) *MPSC[T] {
	checkCapacity(capacity)
	q := &MPSC[T]{ring: newRing[T](capacity, sparse), backoff: backoff}
	q.producerLimit.StoreRelaxed(q.ring.cap)
	return q
}

// Offer adds an element to the queue (multiple producers safe).
// Returns ErrWouldBlock if the queue is full.
func (q *MPSC[T]) Offer(elem *T) error {
	return q.OfferIfBelowThreshold(elem, int(q.ring.cap))
}

// RelaxedOffer is Offer: producers only fail on a confirmed full queue.
func (q *MPSC[T]) RelaxedOffer(elem *T) error {
	return q.Offer(elem)
}

// OfferIfBelowThreshold adds an element only if fewer than threshold
// elements are queued. It is meant for admission control, where a
// producer must back off well before the queue is physically full.
// Returns ErrWouldBlock when the queue holds threshold elements or more.
func (q *MPSC[T]) OfferIfBelowThreshold(elem *T, threshold int) error {
	if elem == nil {
		return ErrNilElement
	}
	tail, n := q.claim(uint64(max(threshold, 0)), 1)
	if n == 0 {
		return ErrWouldBlock
	}
	s := q.ring.at(tail)
	s.data = *elem
	s.seq.StoreRelease(tail + 1)
	return nil
}

// claim reserves up to n consecutive indices while the occupancy stays
// below threshold. It returns the first index and the count reserved.
func (q *MPSC[T]) claim(threshold, n uint64) (uint64, uint64) {
	threshold = min(threshold, q.ring.cap)
	if threshold == 0 || n == 0 {
		return 0, 0
	}
	sw := spin.Wait{}
	idle := 0
	limit := q.producerLimit.LoadAcquire()
	for {
		tail := q.tail.LoadAcquire()
		// limit-tail is a lower bound on free slots, so the cached limit
		// alone proves the threshold holds.
		if tail >= limit || q.ring.cap-(limit-tail) >= threshold {
			head := q.head.LoadAcquire()
			if int64(tail-head) >= int64(threshold) {
				return 0, 0
			}
			limit = head + q.ring.cap
			q.producerLimit.StoreRelease(limit)
			if tail >= limit {
				continue
			}
		}
		batch := min(n, limit-tail, threshold-(q.ring.cap-(limit-tail)))
		if q.tail.CompareAndSwapAcqRel(tail, tail+batch) {
			return tail, batch
		}
		idle = pause(q.backoff, idle, &sw)
	}
}

// Fill offers up to limit elements from fn (multiple producers safe).
// The slots are claimed in one CAS before fn is called.
func (q *MPSC[T]) Fill(fn func() T, limit int) int {
	if limit <= 0 {
		return 0
	}
	tail, n := q.claim(q.ring.cap, uint64(limit))
	for i := uint64(0); i < n; i++ {
		s := q.ring.at(tail + i)
		s.data = fn()
		s.seq.StoreRelease(tail + i + 1)
	}
	return int(n)
}

// FillWait fills until exit stops it.
func (q *MPSC[T]) FillWait(fn func() T, w WaitStrategy, exit ExitCondition) {
	fillWait(q.Fill, fn, w, exit)
}

// Poll removes and returns an element (single consumer only).
// Returns (zero-value, ErrWouldBlock) if the queue is empty. When a
// producer has claimed the next slot but not yet published it, Poll waits
// for the publication.
func (q *MPSC[T]) Poll() (T, error) {
	return q.poll(true)
}

// RelaxedPoll is Poll without waiting for an in-flight publication.
func (q *MPSC[T]) RelaxedPoll() (T, error) {
	return q.poll(false)
}

func (q *MPSC[T]) poll(strict bool) (T, error) {
	head := q.head.LoadRelaxed()
	s := q.ring.at(head)
	if !q.ready(s, head, strict) {
		var zero T
		return zero, ErrWouldBlock
	}
	elem := s.data
	var zero T
	s.data = zero
	s.seq.StoreRelease(head + q.ring.cap)
	q.head.StoreRelease(head + 1)
	return elem, nil
}

// ready reports whether the slot for head is published. In strict mode it
// waits out a producer that already claimed head.
func (q *MPSC[T]) ready(s *slot[T], head uint64, strict bool) bool {
	if s.seq.LoadAcquire() == head+1 {
		return true
	}
	if !strict || head == q.tail.LoadAcquire() {
		return false
	}
	sw := spin.Wait{}
	for s.seq.LoadAcquire() != head+1 {
		sw.Once()
	}
	return true
}

// Peek returns the oldest element without removing it (single consumer only).
func (q *MPSC[T]) Peek() (T, error) {
	return q.peek(true)
}

// RelaxedPeek is Peek without waiting for an in-flight publication.
func (q *MPSC[T]) RelaxedPeek() (T, error) {
	return q.peek(false)
}

func (q *MPSC[T]) peek(strict bool) (T, error) {
	head := q.head.LoadRelaxed()
	s := q.ring.at(head)
	if !q.ready(s, head, strict) {
		var zero T
		return zero, ErrWouldBlock
	}
	return s.data, nil
}

// Drain removes up to limit elements (single consumer only).
func (q *MPSC[T]) Drain(fn func(T), limit int) int {
	return drainLimit(q.RelaxedPoll, fn, limit)
}

// DrainWait drains until exit stops it (single consumer only).
func (q *MPSC[T]) DrainWait(fn func(T), w WaitStrategy, exit ExitCondition) {
	drainWait(q.Drain, fn, w, exit)
}

// Clear removes every queued element (single consumer only).
func (q *MPSC[T]) Clear() {
	clearAll(q.Poll)
}

// Size returns the number of queued or claimed elements.
func (q *MPSC[T]) Size() int {
	return occupancy(&q.head, &q.tail, q.ring.cap)
}

// IsEmpty reports whether the queue is empty.
func (q *MPSC[T]) IsEmpty() bool {
	return q.head.LoadAcquire() == q.tail.LoadAcquire()
}

// Cap returns the queue capacity.
func (q *MPSC[T]) Cap() int {
	return int(q.ring.cap)
}
