// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package nbq

import (
	"fmt"

	"code.hybscloud.com/atomix"
	"github.com/valyala/fastrand"
)

// partitioned is the single consumer side of a queue split into
// independent sub-queues. It visits the partitions round-robin, so no
// partition starves, and keeps FIFO order within each partition only.
type partitioned[T any, Q Queue[T]] struct {
	parts []Q
	next  int // Consumer only
}

// scan applies fn to the first live partitions, starting at the cursor,
// until one succeeds.
func (p *partitioned[T, Q]) scan(live int, fn func(Q) (T, error)) (T, error) {
	for i := 0; i < live; i++ {
		idx := (p.next + i) % live
		elem, err := fn(p.parts[idx])
		if err == nil {
			p.next = idx
			return elem, nil
		}
	}
	var zero T
	return zero, ErrWouldBlock
}

func (p *partitioned[T, Q]) poll(live int, strict bool) (T, error) {
	elem, err := p.scan(live, func(q Q) (T, error) {
		if strict {
			return q.Poll()
		}
		return q.RelaxedPoll()
	})
	if err == nil {
		p.next++
	}
	return elem, err
}

// peek leaves the round-robin cursor on the partition it found, so the
// following poll returns the same element.
func (p *partitioned[T, Q]) peek(live int, strict bool) (T, error) {
	return p.scan(live, func(q Q) (T, error) {
		if strict {
			return q.Peek()
		}
		return q.RelaxedPeek()
	})
}

func (p *partitioned[T, Q]) size(live int) int {
	n := 0
	for _, q := range p.parts[:live] {
		n += q.Size()
	}
	return n
}

func (p *partitioned[T, Q]) empty(live int) bool {
	for _, q := range p.parts[:live] {
		if !q.IsEmpty() {
			return false
		}
	}
	return true
}

func (p *partitioned[T, Q]) capacity() int {
	n := 0
	for _, q := range p.parts {
		n += q.Cap()
	}
	return n
}

// ProducerFIFO is a multi-producer single-consumer queue that preserves
// each producer's order by giving every producer a private SPSC partition.
//
// Producers obtain a FIFOProducer handle through Producer and offer through
// it. The ProducerFIFO itself is consumer-side only: its Offer and
// RelaxedOffer return ErrUnsupported, and its Fill and FillWait panic with
// an error wrapping ErrUnsupported. Elements of different producers
// interleave in the consumer's round-robin order.
//
// Example:
//
//	q := nbq.NewProducerFIFO[Event](8, 256)
//	p, err := q.Producer()
//	if err != nil {
//	    // All 8 partitions taken
//	}
//	p.Offer(&ev)
//
//	ev, err := q.Poll()
type ProducerFIFO[T any] struct {
	partitioned[T, *SPSC[T]]
	claimed atomix.Uint64
	_       pad
}

// FIFOProducer is the producer handle of one ProducerFIFO partition.
// It must be used by one goroutine at a time.
type FIFOProducer[T any] struct {
	part *SPSC[T]
}

// NewProducerFIFO creates a ProducerFIFO with the given number of
// partitions, each holding capacityPerPartition elements (rounded up to a
// power of 2).
//
// Panics if partitions < 1 or capacityPerPartition < 2.
func NewProducerFIFO[T any](partitions, capacityPerPartition int) *ProducerFIFO[T] {
	if partitions < 1 {
		panic("nbq: partitions must be >= 1")
	}
	q := &ProducerFIFO[T]{}
	q.parts = make([]*SPSC[T], partitions)
	for i := range q.parts {
		q.parts[i] = NewSPSC[T](capacityPerPartition)
	}
	return q
}

// Producer hands out the next free partition.
// Returns ErrNoPartition once every partition is taken.
func (q *ProducerFIFO[T]) Producer() (*FIFOProducer[T], error) {
	n := q.claimed.AddAcqRel(1) - 1
	if n >= uint64(len(q.parts)) {
		return nil, ErrNoPartition
	}
	return &FIFOProducer[T]{part: q.parts[n]}, nil
}

func (q *ProducerFIFO[T]) live() int {
	return int(min(q.claimed.LoadAcquire(), uint64(len(q.parts))))
}

// Offer adds an element to the producer's partition.
// Returns ErrWouldBlock if the partition is full.
func (p *FIFOProducer[T]) Offer(elem *T) error {
	return p.part.Offer(elem)
}

// RelaxedOffer is Offer.
func (p *FIFOProducer[T]) RelaxedOffer(elem *T) error {
	return p.part.RelaxedOffer(elem)
}

// Fill offers up to limit elements from fn to the producer's partition.
func (p *FIFOProducer[T]) Fill(fn func() T, limit int) int {
	return p.part.Fill(fn, limit)
}

// FillWait fills the producer's partition until exit stops it.
func (p *FIFOProducer[T]) FillWait(fn func() T, w WaitStrategy, exit ExitCondition) {
	p.part.FillWait(fn, w, exit)
}

// Offer returns ErrUnsupported; offer through a FIFOProducer.
func (q *ProducerFIFO[T]) Offer(elem *T) error {
	if elem == nil {
		return ErrNilElement
	}
	return ErrUnsupported
}

// RelaxedOffer returns ErrUnsupported; offer through a FIFOProducer.
func (q *ProducerFIFO[T]) RelaxedOffer(elem *T) error {
	return q.Offer(elem)
}

// Fill panics with an error wrapping ErrUnsupported; fill through a
// FIFOProducer. A count of 0 would read as a full queue.
func (q *ProducerFIFO[T]) Fill(func() T, int) int {
	panic(fmt.Errorf("%w: ProducerFIFO.Fill, fill through a FIFOProducer", ErrUnsupported))
}

// FillWait panics like Fill.
func (q *ProducerFIFO[T]) FillWait(func() T, WaitStrategy, ExitCondition) {
	panic(fmt.Errorf("%w: ProducerFIFO.FillWait, fill through a FIFOProducer", ErrUnsupported))
}

// Poll removes an element from the next non-empty partition.
func (q *ProducerFIFO[T]) Poll() (T, error) {
	return q.poll(q.live(), true)
}

// RelaxedPoll is Poll.
func (q *ProducerFIFO[T]) RelaxedPoll() (T, error) {
	return q.Poll()
}

// Peek returns the element the next Poll would remove.
func (q *ProducerFIFO[T]) Peek() (T, error) {
	return q.peek(q.live(), true)
}

// RelaxedPeek is Peek.
func (q *ProducerFIFO[T]) RelaxedPeek() (T, error) {
	return q.Peek()
}

// Drain removes up to limit elements.
func (q *ProducerFIFO[T]) Drain(fn func(T), limit int) int {
	return drainLimit(q.Poll, fn, limit)
}

// DrainWait drains until exit stops it.
func (q *ProducerFIFO[T]) DrainWait(fn func(T), w WaitStrategy, exit ExitCondition) {
	drainWait(q.Drain, fn, w, exit)
}

// Clear removes every queued element.
func (q *ProducerFIFO[T]) Clear() {
	clearAll(q.Poll)
}

// Size returns the sum of the partition sizes.
func (q *ProducerFIFO[T]) Size() int {
	return q.size(q.live())
}

// IsEmpty reports whether every partition is empty.
func (q *ProducerFIFO[T]) IsEmpty() bool {
	return q.empty(q.live())
}

// Cap returns the sum of the partition capacities.
func (q *ProducerFIFO[T]) Cap() int {
	return q.capacity()
}

// MPSCCompound is a multi-producer single-consumer queue striped over
// several MPSC queues to spread producer contention.
//
// Each Offer starts at a random stripe and probes the others in turn, so
// it reports ErrWouldBlock only after every stripe refused the element.
// Ordering holds per stripe, not across stripes.
type MPSCCompound[T any] struct {
	partitioned[T, *MPSC[T]]
	mask uint32
}

// NewMPSCCompound creates an MPSCCompound with stripes rounded up to a
// power of 2 and capacity split evenly between them (at least 2 each).
//
// Panics if stripes < 1.
func NewMPSCCompound[T any](stripes, capacity int) *MPSCCompound[T] {
	return newMPSCCompound[T](stripes, capacity, 0, nil)
}

func newMPSCCompound[T any](stripes, capacity int, sparse uint, backoff WaitStrategy) *MPSCCompound[T] {
	if stripes < 1 {
		panic("nbq: stripes must be >= 1")
	}
	n := 1
	if stripes > 1 {
		n = roundToPow2(stripes)
	}
	q := &MPSCCompound[T]{mask: uint32(n - 1)}
	q.parts = make([]*MPSC[T], n)
	per := max(capacity/n, 2)
	for i := range q.parts {
		q.parts[i] = newMPSC[T](per, sparse, backoff)
	}
	return q
}

// Offer adds an element to some stripe (multiple producers safe).
// Returns ErrWouldBlock if every stripe is full.
func (q *MPSCCompound[T]) Offer(elem *T) error {
	if elem == nil {
		return ErrNilElement
	}
	start := fastrand.Uint32()
	for i := uint32(0); i <= q.mask; i++ {
		if q.parts[(start+i)&q.mask].Offer(elem) == nil {
			return nil
		}
	}
	return ErrWouldBlock
}

// RelaxedOffer is Offer.
func (q *MPSCCompound[T]) RelaxedOffer(elem *T) error {
	return q.Offer(elem)
}

// Fill offers up to limit elements from fn, spilling over stripes.
func (q *MPSCCompound[T]) Fill(fn func() T, limit int) int {
	start := fastrand.Uint32()
	n := 0
	for i := uint32(0); i <= q.mask && n < limit; i++ {
		n += q.parts[(start+i)&q.mask].Fill(fn, limit-n)
	}
	return n
}

// FillWait fills until exit stops it.
func (q *MPSCCompound[T]) FillWait(fn func() T, w WaitStrategy, exit ExitCondition) {
	fillWait(q.Fill, fn, w, exit)
}

// Poll removes an element from the next non-empty stripe (single consumer only).
func (q *MPSCCompound[T]) Poll() (T, error) {
	return q.poll(len(q.parts), true)
}

// RelaxedPoll is Poll without waiting for in-flight publications.
func (q *MPSCCompound[T]) RelaxedPoll() (T, error) {
	return q.poll(len(q.parts), false)
}

// Peek returns the element the next Poll would remove (single consumer only).
func (q *MPSCCompound[T]) Peek() (T, error) {
	return q.peek(len(q.parts), true)
}

// RelaxedPeek is Peek without waiting for in-flight publications.
func (q *MPSCCompound[T]) RelaxedPeek() (T, error) {
	return q.peek(len(q.parts), false)
}

// Drain removes up to limit elements (single consumer only).
func (q *MPSCCompound[T]) Drain(fn func(T), limit int) int {
	return drainLimit(q.RelaxedPoll, fn, limit)
}

// DrainWait drains until exit stops it (single consumer only).
func (q *MPSCCompound[T]) DrainWait(fn func(T), w WaitStrategy, exit ExitCondition) {
	drainWait(q.Drain, fn, w, exit)
}

// Clear removes every queued element (single consumer only).
func (q *MPSCCompound[T]) Clear() {
	clearAll(q.Poll)
}

// Size returns the sum of the stripe sizes.
func (q *MPSCCompound[T]) Size() int {
	return q.size(len(q.parts))
}

// IsEmpty reports whether every stripe is empty.
func (q *MPSCCompound[T]) IsEmpty() bool {
	return q.empty(len(q.parts))
}

// Cap returns the sum of the stripe capacities.
func (q *MPSCCompound[T]) Cap() int {
	return q.capacity()
}
