// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package nbq

// batchLimit bounds a single Drain or Fill round inside the wait loops and
// the unbounded FillAll, so exit conditions are observed regularly.
const batchLimit = 4096

// drainLimit removes up to limit elements through poll.
func drainLimit[T any](poll func() (T, error), fn func(T), limit int) int {
	for i := 0; i < limit; i++ {
		elem, err := poll()
		if err != nil {
			return i
		}
		fn(elem)
	}
	return max(limit, 0)
}

// drainWait runs drain rounds until exit stops it.
func drainWait[T any](drain func(func(T), int) int, fn func(T), w WaitStrategy, exit ExitCondition) {
	idle := 0
	for exit.KeepRunning() {
		if drain(fn, batchLimit) == 0 {
			idle = w.Idle(idle)
			continue
		}
		idle = 0
	}
}

// fillWait runs fill rounds until exit stops it.
func fillWait[T any](fill func(func() T, int) int, fn func() T, w WaitStrategy, exit ExitCondition) {
	idle := 0
	for exit.KeepRunning() {
		if fill(fn, batchLimit) == 0 {
			idle = w.Idle(idle)
			continue
		}
		idle = 0
	}
}

// clearAll polls until the queue reports empty.
func clearAll[T any](poll func() (T, error)) {
	for {
		if _, err := poll(); err != nil {
			return
		}
	}
}

// DrainAll removes every element currently available, passing each to fn,
// and returns how many were removed.
func DrainAll[T any](q Consumer[T], fn func(T)) int {
	total := 0
	for {
		n := q.Drain(fn, batchLimit)
		total += n
		if n == 0 {
			return total
		}
	}
}

// FillAll fills q until it reports no room and returns how many elements
// were added. Unbounded queues receive a single batch.
func FillAll[T any](q Queue[T], fn func() T) int {
	if q.Cap() == Unbounded {
		return q.Fill(fn, batchLimit)
	}
	total := 0
	for {
		n := q.Fill(fn, batchLimit)
		total += n
		if n == 0 {
			return total
		}
	}
}
