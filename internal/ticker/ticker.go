/*
 * MIT License
 *
 * Copyright (c) 2022-2026  Arsene Tochemey Gandote
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 */

// Package ticker implements the cooperative scheduler that drives all
// periodic work of the mesh client on a single logical timeline. At most one
// tick runs at a time: a tick that overruns its interval is followed
// immediately by the next one, never by a concurrent one.
package ticker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/atomic"

	gerrors "github.com/tochemey/gomesh/errors"
)

// Runner drives a tick function at a fixed rate.
type Runner struct {
	interval  time.Duration
	clock     clock.Clock
	tick      func(ctx context.Context) error
	onFailure func(err error) bool

	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}
	launched *atomic.Bool
	running  *atomic.Bool
}

// NewRunner creates a Runner that invokes tick every interval.
// onFailure is invoked with any error or recovered panic escaping a tick and
// returns true to keep ticking, false to stop the runner.
func NewRunner(interval time.Duration, clk clock.Clock, tick func(ctx context.Context) error, onFailure func(err error) bool) *Runner {
	if interval <= 0 {
		panic("interval must be greater than zero")
	}
	if clk == nil {
		clk = clock.New()
	}
	if onFailure == nil {
		onFailure = func(error) bool { return true }
	}
	return &Runner{
		interval:  interval,
		clock:     clk,
		tick:      tick,
		onFailure: onFailure,
		stopCh:    make(chan struct{}),
		done:      make(chan struct{}),
		launched:  atomic.NewBool(false),
		running:   atomic.NewBool(false),
	}
}

// Start begins ticking. It is a no-op when the runner is already started.
func (r *Runner) Start(ctx context.Context) {
	if !r.running.CompareAndSwap(false, true) {
		return
	}
	r.launched.Store(true)
	go r.loop(ctx)
}

// Running returns true while the tick loop is active
func (r *Runner) Running() bool {
	return r.running.Load()
}

// Stop halts the loop and waits for the in-flight tick, if any, to complete.
// It is safe to call multiple times and after the loop stopped on its own.
func (r *Runner) Stop() {
	r.stopOnce.Do(func() {
		close(r.stopCh)
	})
	if !r.launched.Load() {
		return
	}
	<-r.done
}

func (r *Runner) loop(ctx context.Context) {
	defer close(r.done)
	defer r.running.Store(false)

	for {
		select {
		case <-r.stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}

		started := r.clock.Now()
		if err := r.safeTick(ctx); err != nil {
			if !r.onFailure(err) {
				return
			}
		}

		// a tick that overran its budget is followed immediately by the next
		remaining := r.interval - r.clock.Since(started)
		if remaining <= 0 {
			continue
		}

		timer := r.clock.Timer(remaining)
		select {
		case <-timer.C:
		case <-r.stopCh:
			timer.Stop()
			return
		case <-ctx.Done():
			timer.Stop()
			return
		}
	}
}

// safeTick runs one tick, converting a panic into a PanicError
func (r *Runner) safeTick(ctx context.Context) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = gerrors.NewPanicError(fmt.Errorf("%v", recovered))
		}
	}()
	return r.tick(ctx)
}
