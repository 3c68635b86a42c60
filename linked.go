// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package nbq

import (
	"math"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"
)

type node[T any] struct {
	next  atomix.Pointer[node[T]]
	value T
}

// linkedList is the consumer side shared by the linked variants.
//
// head always points at a sentinel whose value was already consumed; the
// oldest element lives in head.next. Producers append after tail.
type linkedList[T any] struct {
	head atomix.Pointer[node[T]] // Consumer only writes
	_    pad
	tail atomix.Pointer[node[T]]
	_    pad
}

func (l *linkedList[T]) init() {
	sentinel := &node[T]{}
	l.head.StoreRelaxed(sentinel)
	l.tail.StoreRelease(sentinel)
}

// chain links fn's next limit values into a private list.
func chain[T any](fn func() T, limit int) (first, last *node[T]) {
	first = &node[T]{value: fn()}
	last = first
	for i := 1; i < limit; i++ {
		n := &node[T]{value: fn()}
		last.next.StoreRelaxed(n)
		last = n
	}
	return first, last
}

// Poll removes and returns an element (single consumer only).
// Returns (zero-value, ErrWouldBlock) if the queue is empty. A node whose
// producer swapped the tail but has not linked it yet is waited for.
func (l *linkedList[T]) Poll() (T, error) {
	return l.poll(true)
}

// RelaxedPoll is Poll without waiting for a producer mid-link.
func (l *linkedList[T]) RelaxedPoll() (T, error) {
	return l.poll(false)
}

func (l *linkedList[T]) poll(strict bool) (T, error) {
	head := l.head.LoadRelaxed()
	next := l.await(head, strict)
	if next == nil {
		var zero T
		return zero, ErrWouldBlock
	}
	elem := next.value
	var zero T
	next.value = zero
	l.head.StoreRelaxed(next)
	return elem, nil
}

// await returns head.next, waiting in strict mode while a producer has
// already swapped the tail past head.
func (l *linkedList[T]) await(head *node[T], strict bool) *node[T] {
	next := head.next.LoadAcquire()
	if next != nil || !strict || l.tail.LoadAcquire() == head {
		return next
	}
	sw := spin.Wait{}
	for next == nil {
		sw.Once()
		next = head.next.LoadAcquire()
	}
	return next
}

// Peek returns the oldest element without removing it (single consumer only).
func (l *linkedList[T]) Peek() (T, error) {
	return l.peek(true)
}

// RelaxedPeek is Peek without waiting for a producer mid-link.
func (l *linkedList[T]) RelaxedPeek() (T, error) {
	return l.peek(false)
}

func (l *linkedList[T]) peek(strict bool) (T, error) {
	next := l.await(l.head.LoadRelaxed(), strict)
	if next == nil {
		var zero T
		return zero, ErrWouldBlock
	}
	return next.value, nil
}

// Drain removes up to limit elements (single consumer only).
func (l *linkedList[T]) Drain(fn func(T), limit int) int {
	return drainLimit(l.RelaxedPoll, fn, limit)
}

// DrainWait drains until exit stops it (single consumer only).
func (l *linkedList[T]) DrainWait(fn func(T), w WaitStrategy, exit ExitCondition) {
	drainWait(l.Drain, fn, w, exit)
}

// Clear removes every queued element (single consumer only).
func (l *linkedList[T]) Clear() {
	clearAll(l.Poll)
}

// Size counts the linked elements. It walks the list and is only a
// snapshot under concurrent offers.
func (l *linkedList[T]) Size() int {
	n := 0
	for cur := l.head.LoadAcquire().next.LoadAcquire(); cur != nil && n < math.MaxInt; cur = cur.next.LoadAcquire() {
		n++
	}
	return n
}

// IsEmpty reports whether no element is linked or being linked.
func (l *linkedList[T]) IsEmpty() bool {
	return l.head.LoadAcquire() == l.tail.LoadAcquire()
}

// Cap returns Unbounded.
func (l *linkedList[T]) Cap() int {
	return Unbounded
}

// SPSCLinked is an unbounded single-producer single-consumer linked queue.
//
// The producer links a node after the tail and then advances the tail;
// each element costs one allocation.
type SPSCLinked[T any] struct {
	linkedList[T]
}

// NewSPSCLinked creates an empty SPSCLinked queue.
func NewSPSCLinked[T any]() *SPSCLinked[T] {
	q := &SPSCLinked[T]{}
	q.init()
	return q
}

// Offer appends an element (producer only). It never reports full.
func (q *SPSCLinked[T]) Offer(elem *T) error {
	if elem == nil {
		return ErrNilElement
	}
	n := &node[T]{value: *elem}
	q.tail.LoadRelaxed().next.StoreRelease(n)
	q.tail.StoreRelease(n)
	return nil
}

// RelaxedOffer is Offer.
func (q *SPSCLinked[T]) RelaxedOffer(elem *T) error {
	return q.Offer(elem)
}

// Fill appends limit elements from fn with a single link (producer only).
func (q *SPSCLinked[T]) Fill(fn func() T, limit int) int {
	if limit <= 0 {
		return 0
	}
	first, last := chain(fn, limit)
	q.tail.LoadRelaxed().next.StoreRelease(first)
	q.tail.StoreRelease(last)
	return limit
}

// FillWait fills until exit stops it (producer only).
func (q *SPSCLinked[T]) FillWait(fn func() T, w WaitStrategy, exit ExitCondition) {
	fillWait(q.Fill, fn, w, exit)
}

// MPSCLinked is an unbounded multi-producer single-consumer linked queue.
//
// Producers swap the shared tail to their node and then link the previous
// tail to it. Between the two steps the list is briefly disconnected; a
// strict Poll waits the gap out, a relaxed one reports empty.
type MPSCLinked[T any] struct {
	linkedList[T]
}

// NewMPSCLinked creates an empty MPSCLinked queue.
func NewMPSCLinked[T any]() *MPSCLinked[T] {
	q := &MPSCLinked[T]{}
	q.init()
	return q
}

// Offer appends an element (multiple producers safe). It never reports full.
func (q *MPSCLinked[T]) Offer(elem *T) error {
	if elem == nil {
		return ErrNilElement
	}
	n := &node[T]{value: *elem}
	q.tail.SwapAcqRel(n).next.StoreRelease(n)
	return nil
}

// RelaxedOffer is Offer.
func (q *MPSCLinked[T]) RelaxedOffer(elem *T) error {
	return q.Offer(elem)
}

// Fill appends limit elements from fn as one contiguous run.
func (q *MPSCLinked[T]) Fill(fn func() T, limit int) int {
	if limit <= 0 {
		return 0
	}
	first, last := chain(fn, limit)
	q.tail.SwapAcqRel(last).next.StoreRelease(first)
	return limit
}

// FillWait fills until exit stops it.
func (q *MPSCLinked[T]) FillWait(fn func() T, w WaitStrategy, exit ExitCondition) {
	fillWait(q.Fill, fn, w, exit)
}
