// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package nbq

import "code.hybscloud.com/spin"

// MPMC is a CAS-based multi-producer multi-consumer bounded queue.
//
// Based on Dmitry Vyukov's bounded MPMC queue. Both cursors are CAS
// contended, so emptiness cannot be judged from the slot contents alone.
// Every slot carries a sequence marker instead:
//
//   - a producer that claimed index i writes once seq == i and leaves
//     seq = i+1;
//   - a consumer that claimed index i reads once seq == i+1 and leaves
//     seq = i+capacity, the writable value for the next lap.
//
// The marker distinguishes laps, which keeps both CAS sides free of the
// ABA hazard a null check would suffer.
//
// Memory: n slots (8-byte marker + element per slot)
type MPMC[T any] struct {
	tail    cursor // Producer index
	head    cursor // Consumer index
	_       pad
	ring    ring[T]
	backoff WaitStrategy // CAS retry policy; nil spins
}

// NewMPMC creates a new MPMC queue.
// Capacity rounds up to the next power of 2.
func NewMPMC[T any](capacity int) *MPMC[T] {
	return newMPMC[T](capacity, 0, nil)
}

func newMPMC[T any](capacity int, sparse uint, backoff WaitStrategy) *MPMC[T] {
	checkCapacity(capacity)
	return &MPMC[T]{ring: newRing[T](capacity, sparse), backoff: backoff}
}

// Offer adds an element to the queue.
// Returns ErrWouldBlock if the queue is full. A slot whose previous
// element is still being read by a consumer is waited for.
func (q *MPMC[T]) Offer(elem *T) error {
	if elem == nil {
		return ErrNilElement
	}
	tail, ok := q.claimTail(true)
	if !ok {
		return ErrWouldBlock
	}
	q.publish(tail, *elem)
	return nil
}

// RelaxedOffer is Offer that reports full on the first marker mismatch.
func (q *MPMC[T]) RelaxedOffer(elem *T) error {
	if elem == nil {
		return ErrNilElement
	}
	tail, ok := q.claimTail(false)
	if !ok {
		return ErrWouldBlock
	}
	q.publish(tail, *elem)
	return nil
}

func (q *MPMC[T]) claimTail(strict bool) (uint64, bool) {
	sw := spin.Wait{}
	idle := 0
	for {
		tail := q.tail.LoadAcquire()
		seq := q.ring.at(tail).seq.LoadAcquire()
		diff := int64(seq - tail)

		if diff == 0 {
			if q.tail.CompareAndSwapAcqRel(tail, tail+1) {
				return tail, true
			}
		} else if diff < 0 {
			// The slot still holds the previous lap. Only a consumer
			// that claimed it but has not released it makes this
			// transient.
			if !strict || int64(tail-q.head.LoadAcquire()) >= int64(q.ring.cap) {
				return 0, false
			}
		}
		idle = pause(q.backoff, idle, &sw)
	}
}

func (q *MPMC[T]) publish(tail uint64, elem T) {
	s := q.ring.at(tail)
	s.data = elem
	s.seq.StoreRelease(tail + 1)
}

// Fill offers up to limit elements from fn.
func (q *MPMC[T]) Fill(fn func() T, limit int) int {
	for i := 0; i < limit; i++ {
		tail, ok := q.claimTail(false)
		if !ok {
			return i
		}
		q.publish(tail, fn())
	}
	return max(limit, 0)
}

// FillWait fills until exit stops it.
func (q *MPMC[T]) FillWait(fn func() T, w WaitStrategy, exit ExitCondition) {
	fillWait(q.Fill, fn, w, exit)
}

// Poll removes and returns an element from the queue.
// Returns (zero-value, ErrWouldBlock) if the queue is empty.
func (q *MPMC[T]) Poll() (T, error) {
	return q.poll(true)
}

// RelaxedPoll is Poll that reports empty on the first marker mismatch.
func (q *MPMC[T]) RelaxedPoll() (T, error) {
	return q.poll(false)
}

func (q *MPMC[T]) poll(strict bool) (T, error) {
	sw := spin.Wait{}
	idle := 0
	for {
		head := q.head.LoadAcquire()
		s := q.ring.at(head)
		seq := s.seq.LoadAcquire()
		diff := int64(seq - (head + 1))

		if diff == 0 {
			if q.head.CompareAndSwapAcqRel(head, head+1) {
				elem := s.data
				var zero T
				s.data = zero
				s.seq.StoreRelease(head + q.ring.cap)
				return elem, nil
			}
		} else if diff < 0 {
			// Unpublished: empty unless a producer already claimed head.
			if !strict || int64(q.tail.LoadAcquire()-head) <= 0 {
				var zero T
				return zero, ErrWouldBlock
			}
		}
		idle = pause(q.backoff, idle, &sw)
	}
}

// Peek returns the oldest element without removing it.
// With concurrent consumers the result is a snapshot that may already
// have been taken by the time Peek returns.
func (q *MPMC[T]) Peek() (T, error) {
	return q.peek(true)
}

// RelaxedPeek is Peek that reports empty on the first marker mismatch.
func (q *MPMC[T]) RelaxedPeek() (T, error) {
	return q.peek(false)
}

func (q *MPMC[T]) peek(strict bool) (T, error) {
	sw := spin.Wait{}
	for {
		head := q.head.LoadAcquire()
		s := q.ring.at(head)
		seq := s.seq.LoadAcquire()
		diff := int64(seq - (head + 1))

		if diff == 0 {
			elem := s.data
			if q.head.LoadAcquire() == head {
				return elem, nil
			}
			continue
		}
		if diff < 0 && (!strict || int64(q.tail.LoadAcquire()-head) <= 0) {
			var zero T
			return zero, ErrWouldBlock
		}
		sw.Once()
	}
}

// Drain removes up to limit elements.
func (q *MPMC[T]) Drain(fn func(T), limit int) int {
	return drainLimit(q.RelaxedPoll, fn, limit)
}

// DrainWait drains until exit stops it.
func (q *MPMC[T]) DrainWait(fn func(T), w WaitStrategy, exit ExitCondition) {
	drainWait(q.Drain, fn, w, exit)
}

// Clear removes every queued element.
func (q *MPMC[T]) Clear() {
	clearAll(q.Poll)
}

// Size returns the number of queued or claimed elements.
func (q *MPMC[T]) Size() int {
	return occupancy(&q.head, &q.tail, q.ring.cap)
}

// IsEmpty reports whether the queue is empty.
func (q *MPMC[T]) IsEmpty() bool {
	return q.head.LoadAcquire() >= q.tail.LoadAcquire()
}

// Cap returns the queue capacity.
func (q *MPMC[T]) Cap() int {
	return int(q.ring.cap)
}
