// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package nbq

// Unbounded is the capacity reported by queues without an upper bound.
const Unbounded = -1

// Queue is the common contract every queue variant implements.
//
// Callers can stay agnostic of the algorithm behind an instance: bounded
// rings, growable chunk chains and linked lists all offer and poll the
// same way. Which goroutines may call which side is fixed by the variant:
//
//   - SPSC: one producer goroutine, one consumer goroutine
//   - MPSC: any number of producers, one consumer goroutine
//   - SPMC: one producer goroutine, any number of consumers
//   - MPMC: any number of producers and consumers
//
// Violating these constraints causes undefined behavior including lost,
// duplicated or reordered elements.
//
// Example:
//
//	q := nbq.NewMPMC[int](1024)
//
//	v := 42
//	if err := q.Offer(&v); err != nil {
//	    // Queue full
//	}
//
//	elem, err := q.Poll()
//	if err == nil {
//	    fmt.Println(elem)
//	}
type Queue[T any] interface {
	Producer[T]
	Consumer[T]

	// Size returns the number of queued elements. It is exact and O(1)
	// for array-backed variants, approximate and O(n) for linked ones.
	Size() int

	// Cap returns the capacity, or Unbounded.
	Cap() int

	// IsEmpty reports whether no element is queued or in flight.
	IsEmpty() bool
}

// Producer is the producer side of a queue.
//
// The element is passed by pointer to avoid copying large structs. The
// queue stores a copy of the pointed-to value, so the original can be
// modified after Offer returns.
type Producer[T any] interface {
	// Offer adds an element to the queue (non-blocking).
	// Returns nil on success, ErrWouldBlock if the queue is full and
	// ErrNilElement if elem is nil.
	Offer(elem *T) error

	// RelaxedOffer is Offer with permission to report ErrWouldBlock
	// spuriously while a racing consumer is still releasing a slot.
	// Intended for hot loops that retry anyway.
	RelaxedOffer(elem *T) error

	// Fill offers up to limit elements obtained from fn and returns how
	// many were added. fn is only called for slots already claimed, so no
	// supplied element is ever dropped. Fill never blocks.
	Fill(fn func() T, limit int) int

	// FillWait fills until exit stops it, idling through w whenever the
	// queue has no room.
	FillWait(fn func() T, w WaitStrategy, exit ExitCondition)
}

// Consumer is the consumer side of a queue.
//
// Elements are returned by value. The slot is cleared on removal to allow
// garbage collection of referenced objects.
type Consumer[T any] interface {
	// Poll removes and returns the oldest element (non-blocking).
	// Returns (zero-value, ErrWouldBlock) only if the queue is empty:
	// an element whose producer claimed a slot but has not yet published
	// it is waited for.
	Poll() (T, error)

	// Peek returns the oldest element without removing it.
	// Returns (zero-value, ErrWouldBlock) if the queue is empty.
	Peek() (T, error)

	// RelaxedPoll is Poll with permission to report ErrWouldBlock while a
	// producer is mid-publication.
	RelaxedPoll() (T, error)

	// RelaxedPeek is Peek with the same relaxation as RelaxedPoll.
	RelaxedPeek() (T, error)

	// Drain removes up to limit elements, passing each to fn, and returns
	// how many were removed. Drain never blocks.
	Drain(fn func(T), limit int) int

	// DrainWait drains until exit stops it, idling through w whenever the
	// queue is empty.
	DrainWait(fn func(T), w WaitStrategy, exit ExitCondition)

	// Clear removes every queued element.
	Clear()
}
