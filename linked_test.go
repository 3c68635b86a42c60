// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package nbq_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"code.hybscloud.com/iox"
	"code.hybscloud.com/nbq"
)

// =============================================================================
// Linked Queues
// =============================================================================

func linkedQueues() map[string]func() nbq.Queue[string] {
	return map[string]func() nbq.Queue[string]{
		"SPSCLinked": func() nbq.Queue[string] { return nbq.NewSPSCLinked[string]() },
		"MPSCLinked": func() nbq.Queue[string] { return nbq.NewMPSCLinked[string]() },
	}
}

// TestLinkedBasic verifies FIFO order, Size and Cap of linked queues.
func TestLinkedBasic(t *testing.T) {
	for name, newQ := range linkedQueues() {
		t.Run(name, func(t *testing.T) {
			q := newQ()
			if q.Cap() != nbq.Unbounded {
				t.Fatalf("Cap: got %d, want Unbounded", q.Cap())
			}
			if !q.IsEmpty() {
				t.Fatal("new queue not empty")
			}
			if _, err := q.Poll(); !errors.Is(err, nbq.ErrWouldBlock) {
				t.Fatalf("Poll on empty: got %v, want ErrWouldBlock", err)
			}

			words := []string{"alpha", "beta", "gamma", "delta"}
			for _, w := range words {
				if err := q.Offer(&w); err != nil {
					t.Fatalf("Offer(%q): %v", w, err)
				}
			}
			if q.Size() != len(words) {
				t.Fatalf("Size: got %d, want %d", q.Size(), len(words))
			}
			if v, err := q.Peek(); err != nil || v != "alpha" {
				t.Fatalf("Peek: got (%q, %v)", v, err)
			}
			for _, want := range words {
				got, err := q.Poll()
				if err != nil || got != want {
					t.Fatalf("Poll: got (%q, %v), want %q", got, err, want)
				}
			}
			if !q.IsEmpty() || q.Size() != 0 {
				t.Fatalf("after draining: IsEmpty=%v Size=%d", q.IsEmpty(), q.Size())
			}
			if err := q.Offer(nil); !errors.Is(err, nbq.ErrNilElement) {
				t.Fatalf("Offer(nil): got %v, want ErrNilElement", err)
			}
		})
	}
}

// TestLinkedFillDrain verifies batched linking keeps order.
func TestLinkedFillDrain(t *testing.T) {
	for name, newQ := range linkedQueues() {
		t.Run(name, func(t *testing.T) {
			q := newQ()
			letters := "abcdefghij"
			i := 0
			next := func() string { s := letters[i : i+1]; i++; return s }

			if n := q.Fill(next, 4); n != 4 {
				t.Fatalf("Fill(4): got %d", n)
			}
			v := "e"
			q.Offer(&v)
			i++
			if n := q.Fill(next, 5); n != 5 {
				t.Fatalf("Fill(5): got %d", n)
			}
			if n := q.Fill(next, 0); n != 0 {
				t.Fatalf("Fill(0): got %d", n)
			}

			got := ""
			if n := q.Drain(func(s string) { got += s }, 100); n != 10 {
				t.Fatalf("Drain: got %d, want 10", n)
			}
			if got != letters {
				t.Fatalf("drained %q, want %q", got, letters)
			}
		})
	}
}

// TestLinkedClear verifies Clear releases every node.
func TestLinkedClear(t *testing.T) {
	for name, newQ := range linkedQueues() {
		t.Run(name, func(t *testing.T) {
			q := newQ()
			for range 100 {
				s := "x"
				q.RelaxedOffer(&s)
			}
			q.Clear()
			if !q.IsEmpty() {
				t.Fatal("IsEmpty: got false after Clear")
			}
			if _, err := q.RelaxedPeek(); !errors.Is(err, nbq.ErrWouldBlock) {
				t.Fatalf("RelaxedPeek after Clear: got %v", err)
			}
		})
	}
}

// TestLinkedConcurrentProducerOrder verifies that nodes and chunks published
// by concurrent producers reach the consumer complete, once, and in each
// producer's order. Odd producers link in batches through Fill.
func TestLinkedConcurrentProducerOrder(t *testing.T) {
	if nbq.RaceEnabled {
		t.Skip("skip: lock-free algorithm uses cross-variable memory ordering")
	}

	const itemsPerProd = 20000
	cases := []struct {
		name         string
		numProducers int
		q            nbq.Queue[int]
	}{
		{"SPSCLinked", 1, nbq.NewSPSCLinked[int]()},
		{"MPSCLinked", 4, nbq.NewMPSCLinked[int]()},
		{"MPSCUnbounded", 4, nbq.NewMPSCUnbounded[int](4)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			q := tc.q
			var wg sync.WaitGroup
			for p := range tc.numProducers {
				wg.Add(1)
				go func(id int) {
					defer wg.Done()
					base := id * itemsPerProd
					if id%2 == 1 {
						i := 0
						next := func() int { v := base + i; i++; return v }
						for i < itemsPerProd {
							q.Fill(next, min(7, itemsPerProd-i))
						}
						return
					}
					for i := range itemsPerProd {
						v := base + i
						if err := q.Offer(&v); err != nil {
							t.Errorf("Offer: %v", err)
							return
						}
					}
				}(p)
			}

			total := tc.numProducers * itemsPerProd
			lastSeq := make([]int, tc.numProducers)
			for i := range lastSeq {
				lastSeq[i] = -1
			}
			deadline := time.Now().Add(10 * time.Second)
			backoff := iox.Backoff{}
			for received := 0; received < total; {
				if time.Now().After(deadline) {
					t.Fatalf("timeout: received %d of %d", received, total)
				}
				v, err := q.Poll()
				if err != nil {
					backoff.Wait()
					continue
				}
				backoff.Reset()
				id, seq := v/itemsPerProd, v%itemsPerProd
				if id < 0 || id >= tc.numProducers {
					t.Fatalf("unexpected value %d", v)
				}
				if seq != lastSeq[id]+1 {
					t.Fatalf("producer %d: got seq %d after %d", id, seq, lastSeq[id])
				}
				lastSeq[id] = seq
				received++
			}
			wg.Wait()

			if v, err := q.Poll(); err == nil {
				t.Fatalf("extra element %d after %d received", v, total)
			}
			if !q.IsEmpty() {
				t.Fatal("IsEmpty: got false after receiving every element")
			}
		})
	}
}
