// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package nbq

import (
	"context"
	"runtime"
	"time"

	"code.hybscloud.com/iox"
	"code.hybscloud.com/spin"
)

// WaitStrategy decides how a loop idles when it cannot make progress.
//
// Idle is called with the number of consecutive idle rounds so far (0 on
// the first) and returns the counter to pass on the next round. Loops reset
// the counter to 0 after any progress.
type WaitStrategy interface {
	Idle(idleCounter int) int
}

// WaitFunc adapts a function to WaitStrategy.
type WaitFunc func(idleCounter int) int

// Idle calls f(idleCounter).
func (f WaitFunc) Idle(idleCounter int) int {
	return f(idleCounter)
}

// SpinWait issues a single CPU pause per idle round.
var SpinWait WaitStrategy = WaitFunc(func(n int) int {
	sw := spin.Wait{}
	sw.Once()
	return n + 1
})

// YieldWait yields the processor to other goroutines each idle round.
var YieldWait WaitStrategy = WaitFunc(func(n int) int {
	runtime.Gosched()
	return n + 1
})

// ParkWait sleeps for d each idle round.
func ParkWait(d time.Duration) WaitStrategy {
	return WaitFunc(func(n int) int {
		time.Sleep(d)
		return n + 1
	})
}

// SpinThenYield spins for the first spins rounds and yields afterwards.
func SpinThenYield(spins int) WaitStrategy {
	return WaitFunc(func(n int) int {
		if n < spins {
			sw := spin.Wait{}
			sw.Once()
		} else {
			runtime.Gosched()
		}
		return n + 1
	})
}

// BackoffWait idles with an adaptive [iox.Backoff] that is reset whenever
// the loop made progress.
//
// A BackoffWait carries state and must not be shared between loops.
type BackoffWait struct {
	backoff iox.Backoff
}

// NewBackoffWait returns a fresh adaptive wait strategy.
func NewBackoffWait() *BackoffWait {
	return &BackoffWait{}
}

// Idle waits one backoff step.
func (w *BackoffWait) Idle(idleCounter int) int {
	if idleCounter == 0 {
		w.backoff.Reset()
	}
	w.backoff.Wait()
	return idleCounter + 1
}

// ExitCondition stops DrainWait and FillWait loops.
type ExitCondition interface {
	// KeepRunning is polled once per loop round; returning false ends
	// the loop.
	KeepRunning() bool
}

// ExitFunc adapts a function to ExitCondition.
type ExitFunc func() bool

// KeepRunning calls f.
func (f ExitFunc) KeepRunning() bool {
	return f()
}

// UntilDone keeps running until ctx is done.
func UntilDone(ctx context.Context) ExitCondition {
	return ExitFunc(func() bool {
		return ctx.Err() == nil
	})
}

// pause idles one round of a CAS retry loop: the configured strategy when
// present, a CPU pause otherwise.
func pause(w WaitStrategy, idle int, sw *spin.Wait) int {
	if w == nil {
		sw.Once()
		return idle + 1
	}
	return w.Idle(idle)
}
