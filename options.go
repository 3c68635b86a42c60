// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package nbq

// growthKind selects how a queue's storage grows.
type growthKind uint8

const (
	growthFixed     growthKind = iota // one ring of capacity slots
	growthDoubling                    // chunks double up to maxCapacity
	growthChunked                     // fixed chunks up to maxCapacity
	growthUnbounded                   // fixed chunks, no bound
	growthLinked                      // one node per element, no bound
)

// Options configures queue creation and algorithm selection.
type Options struct {
	// Producer/Consumer constraints (determines queue type)
	singleProducer bool
	singleConsumer bool

	// Storage
	growth      growthKind
	maxCapacity int

	// Performance hints
	sparse  uint         // slot spacing shift for ring variants
	backoff WaitStrategy // CAS retry policy for multi-producer/consumer variants

	// Capacity, or chunk size for chunked storage (rounds up to next power of 2)
	capacity int
}

// Builder creates queues with fluent configuration.
//
// Builder provides a fluent API for configuring and creating queues.
// The builder selects the algorithm from the producer/consumer constraints
// and the storage options.
//
// Example:
//
//	// SPSC queue (optimal for single producer/consumer)
//	q := nbq.BuildSPSC[Event](nbq.New(1024).SingleProducer().SingleConsumer())
//
//	// MPMC queue (default, general purpose)
//	q := nbq.BuildMPMC[Request](nbq.New(4096))
//
//	// MPSC queue starting at 64 slots, growing up to 65536
//	q := nbq.Build[Task](nbq.New(64).SingleConsumer().Growable(65536))
type Builder struct {
	opts Options
}

// New creates a queue builder with the given capacity.
//
// Capacity rounds up to the next power of 2.
// For example, capacity=4 results in actual capacity=4, capacity=1000 results
// in actual capacity=1024. For growable, chunked and unbounded storage the
// capacity is the (initial) chunk size. Linked storage ignores it.
//
// Building panics if capacity < 2, except for Linked storage.
//
// Example:
//
//	// Create builder, then configure and build
//	b := nbq.New(1024)
//	q := nbq.BuildSPSC[int](b.SingleProducer().SingleConsumer())
//
//	// Or chain directly
//	q := nbq.BuildMPMC[int](nbq.New(1024))
func New(capacity int) *Builder {
	return &Builder{opts: Options{capacity: capacity}}
}

// SingleProducer declares that only one goroutine will enqueue.
// Enables optimized algorithms for SPSC or SPMC patterns.
func (b *Builder) SingleProducer() *Builder {
	b.opts.singleProducer = true
	return b
}

// SingleConsumer declares that only one goroutine will dequeue.
// Enables optimized algorithms for SPSC or MPSC patterns.
func (b *Builder) SingleConsumer() *Builder {
	b.opts.singleConsumer = true
	return b
}

// Growable starts with a chunk of the builder's capacity and doubles the
// chunk size on each growth, holding at most maxCapacity elements.
// Requires SingleConsumer.
func (b *Builder) Growable(maxCapacity int) *Builder {
	b.opts.growth = growthDoubling
	b.opts.maxCapacity = maxCapacity
	return b
}

// Chunked links fixed-size chunks of the builder's capacity, holding at
// most maxCapacity elements. Requires SingleConsumer.
func (b *Builder) Chunked(maxCapacity int) *Builder {
	b.opts.growth = growthChunked
	b.opts.maxCapacity = maxCapacity
	return b
}

// Unbounded links fixed-size chunks of the builder's capacity without a
// bound. Requires SingleConsumer.
func (b *Builder) Unbounded() *Builder {
	b.opts.growth = growthUnbounded
	return b
}

// Linked selects an unbounded linked list with one node per element.
// Requires SingleConsumer.
func (b *Builder) Linked() *Builder {
	b.opts.growth = growthLinked
	return b
}

// Sparse spreads ring slots 1<<shift positions apart so that neighbouring
// elements do not share a cache line. Applies to fixed-capacity rings.
//
// Trade-off: 1<<shift times the slot memory for less false sharing between
// a producer and a consumer working on adjacent slots.
//
// Panics if shift > 6.
func (b *Builder) Sparse(shift uint) *Builder {
	if shift > maxSparseShift {
		panic("nbq: sparse shift must be <= 6")
	}
	b.opts.sparse = shift
	return b
}

// Backoff sets the retry policy of contended CAS loops. Without it, retries
// issue a CPU pause. SPSC never retries and ignores it.
func (b *Builder) Backoff(w WaitStrategy) *Builder {
	b.opts.backoff = w
	return b
}

// Build creates a Queue[T] with automatic algorithm selection.
//
// Algorithm selection:
//
//	SingleProducer + SingleConsumer → SPSC (Lamport ring buffer)
//	SingleProducer only             → SPMC (CAS on head, shared tail cache)
//	SingleConsumer only             → MPSC (CAS on tail, shared limit)
//	Neither                         → MPMC (Vyukov sequence ring)
//
// Growable, Chunked and Unbounded select SPSCChunked or MPSCChunked, Linked
// selects SPSCLinked or MPSCLinked. These require SingleConsumer.
//
// For type-safe returns with concrete types, use:
//   - BuildSPSC[T](b) → *SPSC[T]
//   - BuildMPSC[T](b) → *MPSC[T]
//   - BuildSPMC[T](b) → *SPMC[T]
//   - BuildMPMC[T](b) → *MPMC[T]
func Build[T any](b *Builder) Queue[T] {
	o := &b.opts
	switch o.growth {
	case growthLinked:
		o.requireSingleConsumer("Linked")
		if o.singleProducer {
			return NewSPSCLinked[T]()
		}
		return NewMPSCLinked[T]()
	case growthDoubling, growthChunked, growthUnbounded:
		o.requireSingleConsumer("Growable, Chunked and Unbounded")
		doubling := o.growth == growthDoubling
		bounded := o.growth != growthUnbounded
		if o.singleProducer {
			return newSPSCChunked[T](o.capacity, o.maxCapacity, doubling, bounded)
		}
		return newMPSCChunked[T](o.capacity, o.maxCapacity, doubling, bounded, o.backoff)
	}

	switch {
	case o.singleProducer && o.singleConsumer:
		return newSPSC[T](o.capacity, o.sparse)
	case o.singleProducer:
		return newSPMC[T](o.capacity, o.sparse, o.backoff)
	case o.singleConsumer:
		return newMPSC[T](o.capacity, o.sparse, o.backoff)
	default:
		return newMPMC[T](o.capacity, o.sparse, o.backoff)
	}
}

func (o *Options) requireSingleConsumer(what string) {
	if !o.singleConsumer {
		panic("nbq: " + what + " storage requires SingleConsumer()")
	}
}

func (o *Options) requireFixed(what string) {
	if o.growth != growthFixed {
		panic("nbq: " + what + " requires fixed capacity storage")
	}
}

// BuildSPSC creates an SPSC queue with compile-time type safety.
// Panics if builder is not configured with SingleProducer().SingleConsumer().
func BuildSPSC[T any](b *Builder) *SPSC[T] {
	if !b.opts.singleProducer || !b.opts.singleConsumer {
		panic("nbq: BuildSPSC requires SingleProducer().SingleConsumer()")
	}
	b.opts.requireFixed("BuildSPSC")
	return newSPSC[T](b.opts.capacity, b.opts.sparse)
}

// BuildMPSC creates an MPSC queue with compile-time type safety.
// Panics if builder is not configured with SingleConsumer() only.
func BuildMPSC[T any](b *Builder) *MPSC[T] {
	if b.opts.singleProducer || !b.opts.singleConsumer {
		panic("nbq: BuildMPSC requires SingleConsumer() without SingleProducer()")
	}
	b.opts.requireFixed("BuildMPSC")
	return newMPSC[T](b.opts.capacity, b.opts.sparse, b.opts.backoff)
}

// BuildSPMC creates an SPMC queue with compile-time type safety.
// Panics if builder is not configured with SingleProducer() only.
func BuildSPMC[T any](b *Builder) *SPMC[T] {
	if !b.opts.singleProducer || b.opts.singleConsumer {
		panic("nbq: BuildSPMC requires SingleProducer() without SingleConsumer()")
	}
	b.opts.requireFixed("BuildSPMC")
	return newSPMC[T](b.opts.capacity, b.opts.sparse, b.opts.backoff)
}

// BuildMPMC creates an MPMC queue with compile-time type safety.
// Panics if builder has any constraints set.
func BuildMPMC[T any](b *Builder) *MPMC[T] {
	if b.opts.singleProducer || b.opts.singleConsumer {
		panic("nbq: BuildMPMC requires no constraints")
	}
	b.opts.requireFixed("BuildMPMC")
	return newMPMC[T](b.opts.capacity, b.opts.sparse, b.opts.backoff)
}

// BuildMPSCCompound creates an MPSCCompound of the given stripe count,
// splitting the builder's capacity between the stripes.
// Panics if builder is not configured with SingleConsumer() only.
func BuildMPSCCompound[T any](b *Builder, stripes int) *MPSCCompound[T] {
	if b.opts.singleProducer || !b.opts.singleConsumer {
		panic("nbq: BuildMPSCCompound requires SingleConsumer() without SingleProducer()")
	}
	b.opts.requireFixed("BuildMPSCCompound")
	return newMPSCCompound[T](stripes, b.opts.capacity, b.opts.sparse, b.opts.backoff)
}
