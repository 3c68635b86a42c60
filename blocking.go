// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package nbq

import (
	"context"
	"time"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/iox"
)

// Blocking adds parking consumers and retrying producers on top of any
// Queue.
//
// The wrapped queue stays non-blocking and lock-free: Blocking only parks
// goroutines that found it empty. A consumer registers as a waiter,
// re-checks the queue and parks on a one-token channel. Producers send a
// token after every successful offer while waiters exist; a consumer that
// got an element passes the token on if more elements and waiters remain,
// so a burst of offers wakes every parked consumer in turn.
//
// The goroutine constraints of the wrapped variant still apply: Take and
// PollTimeout are consumer operations.
type Blocking[T any] struct {
	Queue[T]
	waiters  atomix.Int64
	_        pad
	readable chan struct{}
}

// NewBlocking wraps q.
func NewBlocking[T any](q Queue[T]) *Blocking[T] {
	return &Blocking[T]{Queue: q, readable: make(chan struct{}, 1)}
}

// Offer adds an element and wakes a parked consumer.
func (b *Blocking[T]) Offer(elem *T) error {
	err := b.Queue.Offer(elem)
	if err == nil {
		b.wake()
	}
	return err
}

// RelaxedOffer is the wrapped RelaxedOffer followed by a wake-up.
func (b *Blocking[T]) RelaxedOffer(elem *T) error {
	err := b.Queue.RelaxedOffer(elem)
	if err == nil {
		b.wake()
	}
	return err
}

// Fill is the wrapped Fill followed by a wake-up.
func (b *Blocking[T]) Fill(fn func() T, limit int) int {
	n := b.Queue.Fill(fn, limit)
	if n > 0 {
		b.wake()
	}
	return n
}

// FillWait fills until exit stops it, waking consumers after each batch.
func (b *Blocking[T]) FillWait(fn func() T, w WaitStrategy, exit ExitCondition) {
	fillWait(b.Fill, fn, w, exit)
}

// Put offers elem, retrying with backoff until it is accepted or ctx is
// done. Returns ctx.Err() on cancellation.
func (b *Blocking[T]) Put(ctx context.Context, elem *T) error {
	var backoff iox.Backoff
	for {
		err := b.Offer(elem)
		if !IsWouldBlock(err) {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		backoff.Wait()
	}
}

// Take removes and returns an element, parking until one arrives.
// Returns ctx.Err() if ctx is done first.
func (b *Blocking[T]) Take(ctx context.Context) (T, error) {
	return b.take(ctx, nil)
}

// PollTimeout removes and returns an element, parking for at most d.
// Returns ErrWouldBlock if no element arrived in time and ctx.Err() if ctx
// is done first.
func (b *Blocking[T]) PollTimeout(ctx context.Context, d time.Duration) (T, error) {
	if d <= 0 {
		return b.poll()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	return b.take(ctx, timer.C)
}

func (b *Blocking[T]) take(ctx context.Context, timeout <-chan time.Time) (T, error) {
	for {
		elem, err := b.poll()
		if !IsWouldBlock(err) {
			return elem, err
		}

		b.waiters.AddAcqRel(1)
		elem, err = b.poll()
		if !IsWouldBlock(err) {
			b.waiters.AddAcqRel(-1)
			return elem, err
		}
		select {
		case <-b.readable:
			b.waiters.AddAcqRel(-1)
		case <-ctx.Done():
			b.waiters.AddAcqRel(-1)
			var zero T
			return zero, ctx.Err()
		case <-timeout:
			b.waiters.AddAcqRel(-1)
			var zero T
			return zero, ErrWouldBlock
		}
	}
}

// poll takes one element and hands the wake-up token on when elements and
// waiters remain.
func (b *Blocking[T]) poll() (T, error) {
	elem, err := b.Queue.Poll()
	if err == nil && !b.Queue.IsEmpty() {
		b.wake()
	}
	return elem, err
}

// wake sends the token if any consumer is registered. The read-modify-write
// orders the check after the preceding publication, pairing with the
// waiter's registration.
func (b *Blocking[T]) wake() {
	if b.waiters.AddAcqRel(0) <= 0 {
		return
	}
	select {
	case b.readable <- struct{}{}:
	default:
	}
}
