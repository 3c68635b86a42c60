// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Lock-free algorithm tests excluded from race detection.
//
// Go's race detector tracks explicit synchronization primitives (mutex, channels,
// WaitGroup) but cannot observe happens-before relationships established through
// atomic memory orderings (acquire-release semantics).
//
// These tests exercise queues that publish non-atomic slot data through
// sequence markers, chunk states and node links. The algorithms are correct,
// but the race detector reports false positives because it cannot track the
// synchronization provided by atomic operations on separate variables.

package nbq_test

import (
	"runtime"
	"sync"
	"testing"
	"time"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/iox"
	"code.hybscloud.com/nbq"
)

// =============================================================================
// High Contention Tests (Consolidated)
// =============================================================================

// TestHighContentionOffer runs 32 producers against a capacity-4 queue with
// one draining consumer. Some offers must succeed and some must report full.
func TestHighContentionOffer(t *testing.T) {
	if nbq.RaceEnabled {
		t.Skip("skip: lock-free algorithm uses cross-variable memory ordering")
	}

	variants := map[string]func() nbq.Queue[int]{
		"MPSC":         func() nbq.Queue[int] { return nbq.NewMPSC[int](4) },
		"MPMC":         func() nbq.Queue[int] { return nbq.NewMPMC[int](4) },
		"MPSCChunked":  func() nbq.Queue[int] { return nbq.NewMPSCChunked[int](2, 4) },
		"MPSCCompound": func() nbq.Queue[int] { return nbq.NewMPSCCompound[int](2, 4) },
	}

	for name, newQ := range variants {
		t.Run(name, func(t *testing.T) {
			q := newQ()
			var wg sync.WaitGroup
			var offered, blocked, polled atomix.Int64
			done := make(chan struct{})
			consumerDone := make(chan struct{})

			go func() {
				defer close(consumerDone)
				backoff := iox.Backoff{}
				for {
					select {
					case <-done:
						return
					default:
					}
					if _, err := q.Poll(); err == nil {
						polled.Add(1)
						backoff.Reset()
					} else {
						backoff.Wait()
					}
				}
			}()

			for range 32 {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for range 1000 {
						v := 1
						if q.Offer(&v) == nil {
							offered.Add(1)
						} else {
							blocked.Add(1)
						}
					}
				}()
			}

			wg.Wait()
			close(done)
			<-consumerDone

			if offered.Load() == 0 {
				t.Error("expected some successful offers")
			}
			if blocked.Load() == 0 {
				t.Error("expected some blocked offers (queue full)")
			}
			rest := int64(nbq.DrainAll[int](q, func(int) {}))
			if polled.Load()+rest != offered.Load() {
				t.Errorf("offered %d, polled %d + drained %d", offered.Load(), polled.Load(), rest)
			}
		})
	}
}

// TestHighContentionPoll runs many consumers against a small queue fed by
// the allowed number of producers.
func TestHighContentionPoll(t *testing.T) {
	if nbq.RaceEnabled {
		t.Skip("skip: lock-free algorithm uses cross-variable memory ordering")
	}

	tests := []struct {
		name string
		q    nbq.Queue[int]
		numP int
	}{
		{"SPMC", nbq.NewSPMC[int](4), 1},
		{"MPMC", nbq.NewMPMC[int](4), 4},
	}

	const (
		numConsumers = 16
		itemsPerProd = 2000
	)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			total := tt.numP * itemsPerProd
			seen := make([]atomix.Int32, total)
			var consumed atomix.Int64
			var wg sync.WaitGroup

			for p := range tt.numP {
				wg.Add(1)
				go func(id int) {
					defer wg.Done()
					for i := range itemsPerProd {
						v := id*itemsPerProd + i
						for tt.q.Offer(&v) != nil {
							runtime.Gosched()
						}
					}
				}(p)
			}
			for range numConsumers {
				wg.Add(1)
				go func() {
					defer wg.Done()
					deadline := time.Now().Add(10 * time.Second)
					for consumed.Load() < int64(total) {
						if time.Now().After(deadline) {
							return
						}
						v, err := tt.q.Poll()
						if err != nil {
							runtime.Gosched()
							continue
						}
						seen[v].Add(1)
						consumed.Add(1)
					}
				}()
			}
			wg.Wait()

			if consumed.Load() != int64(total) {
				t.Fatalf("consumed %d, want %d", consumed.Load(), total)
			}
			for i := range total {
				if n := seen[i].Load(); n != 1 {
					t.Fatalf("item %d seen %d times", i, n)
				}
			}
		})
	}
}

// =============================================================================
// Stress Tests
// =============================================================================

func startStressWatchdog(
	done chan struct{},
	closeOnce *sync.Once,
	timedOut *atomix.Bool,
	produced *atomix.Int64,
	consumed *atomix.Int64,
	totalItems int64,
) {
	const (
		stressTick      = 20 * time.Millisecond
		progressTimeout = 10 * time.Second
	)

	go func() {
		ticker := time.NewTicker(stressTick)
		defer ticker.Stop()

		lastProduced := produced.Load()
		lastConsumed := consumed.Load()
		lastProgress := time.Now()

		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				currentProduced := produced.Load()
				currentConsumed := consumed.Load()
				if currentProduced != lastProduced || currentConsumed != lastConsumed {
					lastProduced = currentProduced
					lastConsumed = currentConsumed
					lastProgress = time.Now()
					continue
				}

				if currentConsumed < totalItems && time.Since(lastProgress) >= progressTimeout {
					timedOut.Store(true)
					closeOnce.Do(func() { close(done) })
					return
				}
			}
		}
	}()
}

// stressConfig describes one stress run. relaxed switches consumers to
// RelaxedPoll; a final strict drain collects whatever they skipped.
type stressConfig struct {
	numProducers int
	numConsumers int
	itemsPerProd int
	relaxed      bool
}

// runStress hammers q and requires every item exactly once.
func runStress(t *testing.T, q nbq.Queue[int], cfg stressConfig) {
	t.Helper()
	totalItems := cfg.numProducers * cfg.itemsPerProd

	// Pre-allocate ALL values before test (stable addresses)
	values := make([]int, totalItems)
	for i := range totalItems {
		values[i] = i
	}

	seen := make([]atomix.Int32, totalItems)
	var produced, consumed atomix.Int64
	var outOfRange atomix.Int64
	var closeOnce sync.Once
	var timedOut atomix.Bool
	done := make(chan struct{})
	producersDone := make(chan struct{})

	startStressWatchdog(done, &closeOnce, &timedOut, &produced, &consumed, int64(totalItems))

	record := func(v int) {
		if v < 0 || v >= totalItems {
			outOfRange.Add(1)
		} else {
			seen[v].Add(1)
		}
		consumed.Add(1)
	}

	var prodWg sync.WaitGroup
	for p := range cfg.numProducers {
		prodWg.Add(1)
		go func(id int) {
			defer prodWg.Done()
			start := id * cfg.itemsPerProd
			end := start + cfg.itemsPerProd
			backoff := iox.Backoff{}
			for idx := start; idx < end; idx++ {
				for q.Offer(&values[idx]) != nil {
					select {
					case <-done:
						return
					default:
					}
					backoff.Wait() // External wait for consumer
				}
				produced.Add(1)
				backoff.Reset()
			}
		}(p)
	}

	var consWg sync.WaitGroup
	for range cfg.numConsumers {
		consWg.Add(1)
		go func() {
			defer consWg.Done()
			backoff := iox.Backoff{}
			for consumed.Load() < int64(totalItems) {
				select {
				case <-done:
					return
				case <-producersDone:
					if cfg.relaxed {
						return
					}
				default:
				}
				var v int
				var err error
				if cfg.relaxed {
					v, err = q.RelaxedPoll()
				} else {
					v, err = q.Poll()
				}
				if err != nil {
					backoff.Wait() // External wait for producer
					continue
				}
				record(v)
				backoff.Reset()
			}
		}()
	}

	prodWg.Wait()
	close(producersDone)
	consWg.Wait()
	if cfg.relaxed {
		nbq.DrainAll[int](q, record)
		for q.Size() > 0 {
			if v, err := q.Poll(); err == nil {
				record(v)
			}
		}
	}
	closeOnce.Do(func() { close(done) })

	if timedOut.Load() {
		t.Fatalf("stress timeout (produced=%d consumed=%d)", produced.Load(), consumed.Load())
	}
	if outOfRange.Load() > 0 {
		t.Fatalf("out of range: %d values", outOfRange.Load())
	}

	var missing, duplicates int
	for i := range totalItems {
		switch seen[i].Load() {
		case 0:
			missing++
		case 1:
		default:
			duplicates++
		}
	}
	if duplicates > 0 {
		t.Fatalf("data corruption: %d duplicates", duplicates)
	}
	if missing > 0 {
		t.Fatalf("lost items: %d missing (produced=%d consumed=%d)", missing, produced.Load(), consumed.Load())
	}
}

// TestHighContentionStress verifies every variant under extreme contention
// with zero tolerance for missing or duplicate items.
func TestHighContentionStress(t *testing.T) {
	if testing.Short() {
		t.Skip("skip: stress test")
	}
	if nbq.RaceEnabled {
		t.Skip("skip: lock-free algorithm uses cross-variable memory ordering")
	}

	tests := []struct {
		name string
		q    func() nbq.Queue[int]
		cfg  stressConfig
	}{
		{"MPMC", func() nbq.Queue[int] { return nbq.NewMPMC[int](256) }, stressConfig{16, 16, 500, false}},
		{"MPMC/Relaxed", func() nbq.Queue[int] { return nbq.NewMPMC[int](256) }, stressConfig{16, 16, 500, true}},
		{"MPMC/Sparse", func() nbq.Queue[int] { return nbq.Build[int](nbq.New(256).Sparse(3)) }, stressConfig{8, 8, 500, false}},
		{"MPSC", func() nbq.Queue[int] { return nbq.NewMPSC[int](256) }, stressConfig{16, 1, 500, false}},
		{"MPSC/Relaxed", func() nbq.Queue[int] { return nbq.NewMPSC[int](64) }, stressConfig{16, 1, 500, true}},
		{"SPMC", func() nbq.Queue[int] { return nbq.NewSPMC[int](256) }, stressConfig{1, 16, 8000, false}},
		{"SPMC/Relaxed", func() nbq.Queue[int] { return nbq.NewSPMC[int](64) }, stressConfig{1, 16, 8000, true}},
		{"SPSC", func() nbq.Queue[int] { return nbq.NewSPSC[int](64) }, stressConfig{1, 1, 20000, false}},
		{"MPSCGrowable", func() nbq.Queue[int] { return nbq.NewMPSCGrowable[int](4, 1024) }, stressConfig{16, 1, 500, false}},
		{"MPSCChunked", func() nbq.Queue[int] { return nbq.NewMPSCChunked[int](16, 256) }, stressConfig{16, 1, 500, false}},
		{"MPSCUnbounded", func() nbq.Queue[int] { return nbq.NewMPSCUnbounded[int](8) }, stressConfig{16, 1, 500, false}},
		{"MPSCUnbounded/Relaxed", func() nbq.Queue[int] { return nbq.NewMPSCUnbounded[int](8) }, stressConfig{16, 1, 500, true}},
		{"SPSCGrowable", func() nbq.Queue[int] { return nbq.NewSPSCGrowable[int](2, 128) }, stressConfig{1, 1, 20000, false}},
		{"MPSCLinked", func() nbq.Queue[int] { return nbq.NewMPSCLinked[int]() }, stressConfig{16, 1, 500, false}},
		{"MPSCLinked/Relaxed", func() nbq.Queue[int] { return nbq.NewMPSCLinked[int]() }, stressConfig{16, 1, 500, true}},
		{"MPSCCompound", func() nbq.Queue[int] { return nbq.NewMPSCCompound[int](4, 128) }, stressConfig{16, 1, 500, false}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runStress(t, tt.q(), tt.cfg)
		})
	}
}

// =============================================================================
// Drain and Shutdown
// =============================================================================

// TestClearIdempotent verifies repeated Clear calls on empty queues.
func TestClearIdempotent(t *testing.T) {
	for _, tc := range fifoVariants() {
		t.Run(tc.name, func(t *testing.T) {
			q := tc.new()
			q.Clear()
			q.Clear()
			q.Clear()
			if _, err := q.Poll(); err != nbq.ErrWouldBlock {
				t.Errorf("expected ErrWouldBlock from empty cleared queue, got %v", err)
			}
		})
	}
}

// TestDrainGracefulShutdown runs producers to completion, then lets
// consumers drain until they see strict emptiness.
func TestDrainGracefulShutdown(t *testing.T) {
	if nbq.RaceEnabled {
		t.Skip("skip: lock-free algorithm uses cross-variable memory ordering")
	}

	const (
		numProducers = 4
		numConsumers = 4
		itemsPerProd = 100
		totalItems   = numProducers * itemsPerProd
	)

	q := nbq.NewMPMC[int](32)
	seen := make([]atomix.Int32, totalItems)
	var consumed atomix.Int64
	stop := make(chan struct{})

	var consWg sync.WaitGroup
	for range numConsumers {
		consWg.Add(1)
		go func() {
			defer consWg.Done()
			backoff := iox.Backoff{}
			for {
				v, err := q.Poll()
				if err == nil {
					seen[v].Add(1)
					consumed.Add(1)
					backoff.Reset()
					continue
				}
				select {
				case <-stop:
					// Strict poll: empty after producers finished means done
					return
				default:
				}
				backoff.Wait()
			}
		}()
	}

	var prodWg sync.WaitGroup
	for p := range numProducers {
		prodWg.Add(1)
		go func(id int) {
			defer prodWg.Done()
			backoff := iox.Backoff{}
			for i := range itemsPerProd {
				v := id*itemsPerProd + i
				for q.Offer(&v) != nil {
					backoff.Wait()
				}
				backoff.Reset()
			}
		}(p)
	}

	prodWg.Wait()
	close(stop)
	consWg.Wait()

	waitForCount(t, time.Second, &consumed, totalItems, "graceful shutdown")
	for i := range totalItems {
		if n := seen[i].Load(); n != 1 {
			t.Fatalf("item %d seen %d times", i, n)
		}
	}
}

// TestThresholdAdmissionConcurrent verifies OfferIfBelowThreshold never lets
// the queue exceed its threshold while a consumer is stopped.
func TestThresholdAdmissionConcurrent(t *testing.T) {
	if nbq.RaceEnabled {
		t.Skip("skip: lock-free algorithm uses cross-variable memory ordering")
	}

	const threshold = 48
	q := nbq.NewMPSC[int](64)
	var accepted atomix.Int64
	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				v := 1
				if q.OfferIfBelowThreshold(&v, threshold) == nil {
					accepted.Add(1)
				}
			}
		}()
	}
	wg.Wait()

	if accepted.Load() != threshold {
		t.Fatalf("accepted %d, want %d", accepted.Load(), threshold)
	}
	if q.Size() != threshold {
		t.Fatalf("Size: got %d, want %d", q.Size(), threshold)
	}
}
