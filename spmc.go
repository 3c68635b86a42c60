// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package nbq

import "code.hybscloud.com/spin"

// SPMC is a CAS-based single-producer multi-consumer bounded queue.
//
// The mirror of MPSC: the single producer writes sequentially with no CAS,
// while consumers CAS the head cursor to claim a slot. Consumers share a
// cached copy of the tail cursor so that most polls avoid reading the
// producer's cache line. After a successful claim a consumer waits until
// the element's release store is visible before reading it.
//
// Memory: n slots (8-byte marker + element per slot)
type SPMC[T any] struct {
	head       cursor // Consumers CAS here
	cachedTail cursor // Consumers' shared view of tail
	tail       cursor // Producer writes here
	_          pad
	ring       ring[T]
	backoff    WaitStrategy // CAS retry policy; nil spins
}

// NewSPMC creates a new SPMC queue.
// Capacity rounds up to the next power of 2.
func NewSPMC[T any](capacity int) *SPMC[T] {
	return newSPMC[T](capacity, 0, nil)
}

func newSPMC[T any](capacity int, sparse uint, backoff WaitStrategy) *SPMC[T] {
	checkCapacity(capacity)
	return &SPMC[T]{ring: newRing[T](capacity, sparse), backoff: backoff}
}

// Offer adds an element to the queue (single producer only).
// Returns ErrWouldBlock if the queue is full. When a consumer has claimed
// the target slot but not finished reading it, Offer waits for the release.
func (q *SPMC[T]) Offer(elem *T) error {
	return q.offer(elem, true)
}

// RelaxedOffer is Offer without waiting for a consumer mid-release.
func (q *SPMC[T]) RelaxedOffer(elem *T) error {
	return q.offer(elem, false)
}

func (q *SPMC[T]) offer(elem *T, strict bool) error {
	if elem == nil {
		return ErrNilElement
	}
	tail := q.tail.LoadRelaxed()
	s := q.ring.at(tail)
	if !q.writable(s, tail, strict) {
		return ErrWouldBlock
	}
	s.data = *elem
	s.seq.StoreRelease(tail + 1)
	q.tail.StoreRelease(tail + 1)
	return nil
}

// writable reports whether the slot for tail is released. In strict mode it
// waits out a consumer that already claimed the previous lap's element.
func (q *SPMC[T]) writable(s *slot[T], tail uint64, strict bool) bool {
	if s.seq.LoadAcquire() == tail {
		return true
	}
	if !strict || tail-q.head.LoadAcquire() >= q.ring.cap {
		return false
	}
	sw := spin.Wait{}
	for s.seq.LoadAcquire() != tail {
		sw.Once()
	}
	return true
}

// Fill offers up to limit elements from fn (single producer only).
func (q *SPMC[T]) Fill(fn func() T, limit int) int {
	tail := q.tail.LoadRelaxed()
	for i := 0; i < limit; i++ {
		s := q.ring.at(tail)
		if s.seq.LoadAcquire() != tail {
			return i
		}
		s.data = fn()
		s.seq.StoreRelease(tail + 1)
		tail++
		q.tail.StoreRelease(tail)
	}
	return max(limit, 0)
}

// FillWait fills until exit stops it (single producer only).
func (q *SPMC[T]) FillWait(fn func() T, w WaitStrategy, exit ExitCondition) {
	fillWait(q.Fill, fn, w, exit)
}

// Poll removes and returns an element (multiple consumers safe).
// Returns (zero-value, ErrWouldBlock) if the queue is empty.
func (q *SPMC[T]) Poll() (T, error) {
	sw := spin.Wait{}
	idle := 0
	for {
		head := q.head.LoadAcquire()
		if !q.behindTail(head) {
			var zero T
			return zero, ErrWouldBlock
		}
		if q.head.CompareAndSwapAcqRel(head, head+1) {
			return q.take(head), nil
		}
		idle = pause(q.backoff, idle, &sw)
	}
}

// RelaxedPoll is Poll that reports empty as soon as the head slot is not
// yet published, instead of consulting the producer cursor.
func (q *SPMC[T]) RelaxedPoll() (T, error) {
	sw := spin.Wait{}
	idle := 0
	for {
		head := q.head.LoadAcquire()
		if q.ring.at(head).seq.LoadAcquire() != head+1 {
			var zero T
			return zero, ErrWouldBlock
		}
		if q.head.CompareAndSwapAcqRel(head, head+1) {
			return q.take(head), nil
		}
		idle = pause(q.backoff, idle, &sw)
	}
}

// behindTail reports whether head < tail, refreshing the shared tail cache
// only when the cached value says otherwise.
func (q *SPMC[T]) behindTail(head uint64) bool {
	if head < q.cachedTail.LoadAcquire() {
		return true
	}
	tail := q.tail.LoadAcquire()
	if head >= tail {
		return false
	}
	q.cachedTail.StoreRelease(tail)
	return true
}

// take reads the element for a claimed head, waiting for its publication.
func (q *SPMC[T]) take(head uint64) T {
	s := q.ring.at(head)
	sw := spin.Wait{}
	for s.seq.LoadAcquire() != head+1 {
		sw.Once()
	}
	elem := s.data
	var zero T
	s.data = zero
	s.seq.StoreRelease(head + q.ring.cap)
	return elem
}

// Peek returns the oldest element without removing it.
// With concurrent consumers the result is a snapshot that may already
// have been taken by the time Peek returns.
func (q *SPMC[T]) Peek() (T, error) {
	return q.peek(true)
}

// RelaxedPeek is Peek that reports empty while the head slot is unpublished.
func (q *SPMC[T]) RelaxedPeek() (T, error) {
	return q.peek(false)
}

func (q *SPMC[T]) peek(strict bool) (T, error) {
	sw := spin.Wait{}
	for {
		head := q.head.LoadAcquire()
		s := q.ring.at(head)
		if s.seq.LoadAcquire() == head+1 {
			elem := s.data
			if q.head.LoadAcquire() == head {
				return elem, nil
			}
			continue
		}
		if !strict || !q.behindTail(head) {
			var zero T
			return zero, ErrWouldBlock
		}
		sw.Once()
	}
}

// Drain removes up to limit elements.
func (q *SPMC[T]) Drain(fn func(T), limit int) int {
	return drainLimit(q.RelaxedPoll, fn, limit)
}

// DrainWait drains until exit stops it.
func (q *SPMC[T]) DrainWait(fn func(T), w WaitStrategy, exit ExitCondition) {
	drainWait(q.Drain, fn, w, exit)
}

// Clear removes every queued element.
func (q *SPMC[T]) Clear() {
	clearAll(q.Poll)
}

// Size returns the number of queued elements.
func (q *SPMC[T]) Size() int {
	return occupancy(&q.head, &q.tail, q.ring.cap)
}

// IsEmpty reports whether the queue is empty.
func (q *SPMC[T]) IsEmpty() bool {
	return q.head.LoadAcquire() >= q.tail.LoadAcquire()
}

// Cap returns the queue capacity.
func (q *SPMC[T]) Cap() int {
	return int(q.ring.cap)
}
