// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package nbq provides non-blocking FIFO queue implementations.
//
// The package offers one lock-free algorithm per producer/consumer
// pattern, in bounded, growable and unbounded flavors:
//
//   - SPSC: Single-Producer Single-Consumer
//   - MPSC: Multi-Producer Single-Consumer
//   - SPMC: Single-Producer Multi-Consumer
//   - MPMC: Multi-Producer Multi-Consumer
//
// Every variant implements [Queue], so callers can swap algorithms without
// touching call sites.
//
// # Quick Start
//
// Direct constructors (recommended for most cases):
//
//	q := nbq.NewSPSC[Event](1024)
//	q := nbq.NewMPMC[*Request](4096)
//
// Builder API auto-selects algorithm based on constraints:
//
//	q := nbq.Build[Event](nbq.New(1024).SingleProducer().SingleConsumer())  // → SPSC
//	q := nbq.Build[Event](nbq.New(1024).SingleConsumer())                   // → MPSC
//	q := nbq.Build[Event](nbq.New(1024).SingleProducer())                   // → SPMC
//	q := nbq.Build[Event](nbq.New(1024))                                    // → MPMC
//	q := nbq.Build[Event](nbq.New(64).SingleConsumer().Growable(1 << 16))   // → MPSCChunked
//	q := nbq.Build[Event](nbq.New(0).SingleConsumer().Linked())             // → MPSCLinked
//
// # Basic Usage
//
//	q := nbq.NewMPMC[int](1024)
//
//	// Offer (non-blocking)
//	value := 42
//	err := q.Offer(&value)
//	if nbq.IsWouldBlock(err) {
//	    // Queue is full - handle backpressure
//	}
//
//	// Poll (non-blocking)
//	elem, err := q.Poll()
//	if nbq.IsWouldBlock(err) {
//	    // Queue is empty - try again later
//	}
//
// # Strict and Relaxed Operations
//
// Offer, Poll and Peek are strict: they report full or empty only when the
// queue really is. A producer that claimed a slot but has not yet
// published its element makes the queue non-empty, and a strict Poll waits
// for that publication. RelaxedOffer, RelaxedPoll and RelaxedPeek may
// report full or empty spuriously in such windows and never wait. Without
// a concurrent peer both flavors behave identically.
//
// # Batches and Wait Loops
//
// Drain and Fill move up to a limit of elements through callbacks and
// never block. Fill only calls its supplier for slots it already claimed:
//
//	n := q.Fill(func() Event { return next() }, 64)
//
// DrainWait and FillWait loop until an [ExitCondition] stops them, idling
// through a [WaitStrategy] whenever no progress is possible:
//
//	q.DrainWait(handle, nbq.SpinThenYield(100), nbq.UntilDone(ctx))
//
// # Storage Flavors
//
// Bounded rings ([SPSC], [MPSC], [SPMC], [MPMC]) allocate capacity slots
// once. Chunked queues ([SPSCChunked], [MPSCChunked]) link ring chunks on
// demand and leave a jump marker the consumer follows into the next chunk:
//
//	nbq.NewMPSCGrowable[T](64, 1<<16) // chunks double from 64 up to 65536
//	nbq.NewMPSCChunked[T](256, 1<<16) // 256-slot chunks, at most 65536 elements
//	nbq.NewMPSCUnbounded[T](256)      // 256-slot chunks, never full
//
// Linked queues ([SPSCLinked], [MPSCLinked]) allocate one node per element
// and never report full. Their Size walks the list.
//
// # Composed Queues
//
// [ProducerFIFO] gives each producer a private SPSC partition and
// guarantees per-producer order. [MPSCCompound] stripes producers over
// several MPSC rings. [Blocking] wraps any queue with parking consumers:
//
//	b := nbq.NewBlocking[Job](nbq.NewMPMC[Job](1024))
//	job, err := b.Take(ctx) // ctx.Err() on cancellation
//
// # Error Handling
//
// Queues return [ErrWouldBlock] when operations cannot proceed. This error
// is sourced from [code.hybscloud.com/iox] for ecosystem consistency.
//
//	// Retry loop with backoff
//	backoff := iox.Backoff{}
//	for {
//	    err := q.Offer(&item)
//	    if err == nil {
//	        backoff.Reset()
//	        break
//	    }
//	    if !nbq.IsWouldBlock(err) {
//	        return err // Unexpected error
//	    }
//	    backoff.Wait()
//	}
//
// Offer(nil) returns [ErrNilElement]. Operations a variant cannot serve
// return [ErrUnsupported].
//
// # Capacity and Size
//
// Capacity rounds up to the next power of 2:
//
//	q := nbq.NewMPMC[int](3)     // Actual capacity: 4
//	q := nbq.NewMPMC[int](1000)  // Actual capacity: 1024
//
// Minimum capacity is 2. Constructors panic if capacity < 2.
//
// Size is exact and O(1) for array-backed queues and counts elements whose
// slots are claimed. Unbounded queues report a Cap of [Unbounded].
//
// # Thread Safety
//
// All queue operations are thread-safe within their access pattern
// constraints. Violating them (e.g., multiple producers on SPSC) causes
// undefined behavior including data corruption and races.
//
// # Race Detection
//
// Go's race detector cannot observe happens-before relationships
// established through acquire-release orderings on separate variables.
// Element slots are published through such orderings, so concurrent tests
// of generic queues are skipped when [RaceEnabled] is true.
//
// # Dependencies
//
// This package uses [code.hybscloud.com/iox] for semantic errors and
// backoff, [code.hybscloud.com/atomix] for atomic primitives with explicit
// memory ordering, [code.hybscloud.com/spin] for CPU pause instructions and
// [golang.org/x/sys/cpu] for the cache line size.
package nbq
