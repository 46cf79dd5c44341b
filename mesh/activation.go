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

package mesh

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/atomic"

	"github.com/tochemey/gomesh/address"
	gerrors "github.com/tochemey/gomesh/errors"
	"github.com/tochemey/gomesh/internal/workerpool"
	"github.com/tochemey/gomesh/log"
)

// activation states
const (
	activationActivating int32 = iota
	activationActive
	activationDeactivating
	activationDeactivated
)

// mailbox processing states
const (
	idle int32 = iota
	busy
)

// activation is the concrete in-process instance of an addressable on this
// node, together with its mailbox. At most one message from the mailbox is
// processed at a time; the next is dequeued only after the previous one
// completed.
type activation struct {
	addressable *address.Addressable
	instance    Actor

	state       *atomic.Int32
	lastTouched atomic.Time
	processing  *atomic.Int32

	mailbox *mailbox
	pool    *workerpool.WorkerPool
	clock   clock.Clock
	logger  log.Logger

	// mu is held only while dispatching a single message or while tearing
	// the activation down; it never spans a mailbox wait
	mu sync.Mutex

	ready       chan struct{}
	activateErr error
}

func newActivation(addressable *address.Addressable, pool *workerpool.WorkerPool, clk clock.Clock, logger log.Logger) *activation {
	return &activation{
		addressable: addressable,
		state:       atomic.NewInt32(activationActivating),
		processing:  atomic.NewInt32(idle),
		mailbox:     newMailbox(),
		pool:        pool,
		clock:       clk,
		logger:      logger,
		ready:       make(chan struct{}),
	}
}

// activate runs the host factory and transitions the activation to active.
// A factory failure transitions straight to deactivated and is reported as
// an activation failure to every waiter.
func (a *activation) activate(ctx context.Context, factory ActorFactory) error {
	defer close(a.ready)

	a.logger.Infof("activating %s...", a.addressable.String())
	instance, err := factory(ctx, a.addressable)
	if err != nil {
		a.state.Store(activationDeactivated)
		a.activateErr = gerrors.NewErrActivationFailed(err)
		a.logger.Errorf("activation of %s failed: %v", a.addressable.String(), err)
		return a.activateErr
	}

	a.instance = instance
	a.touch()
	a.state.Store(activationActive)
	a.logger.Infof("%s successfully activated", a.addressable.String())
	return nil
}

// awaitReady blocks until the activation finished constructing
func (a *activation) awaitReady(ctx context.Context) error {
	select {
	case <-a.ready:
		return a.activateErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

// isActive returns true while the activation accepts messages
func (a *activation) isActive() bool {
	return a.state.Load() == activationActive
}

// receive enqueues one message and schedules the mailbox drain
func (a *activation) receive(msg *invocationMessage) {
	if !a.isActive() {
		msg.reply(nil, gerrors.ErrActivationGone)
		return
	}
	a.mailbox.Enqueue(msg)
	a.touch()
	a.process()
}

// process starts a drain loop when transitioning from idle to busy.
// If another loop is already running, exit early.
func (a *activation) process() {
	if !a.processing.CompareAndSwap(idle, busy) {
		return
	}
	if !a.pool.Submit(a.drain) {
		a.processing.Store(idle)
	}
}

// drain processes mailbox messages one at a time until the mailbox is empty.
// Dequeue and dispatch happen under the activation lock so that deactivation,
// which also consumes the mailbox, serializes behind the in-flight message.
func (a *activation) drain() {
	for {
		a.mu.Lock()
		msg := a.mailbox.Dequeue()
		if msg == nil {
			a.mu.Unlock()
			a.processing.Store(idle)
			// a concurrent enqueue may have raced the idle transition
			if !a.mailbox.IsEmpty() && a.processing.CompareAndSwap(idle, busy) {
				continue
			}
			return
		}
		a.handle(msg)
		a.mu.Unlock()
	}
}

// handle dispatches a single message to the actor instance.
// The activation lock is held by the caller.
func (a *activation) handle(msg *invocationMessage) {
	if a.state.Load() != activationActive {
		msg.reply(nil, gerrors.ErrActivationGone)
		return
	}

	// a message whose caller deadline already passed is not worth running
	if !msg.deadline.IsZero() && !a.clock.Now().Before(msg.deadline) {
		msg.reply(nil, gerrors.ErrRequestTimeout)
		return
	}

	result, err := a.invoke(msg)
	msg.reply(result, err)
	a.touch()
}

// invoke runs the actor method, converting a panic into a PanicError
func (a *activation) invoke(msg *invocationMessage) (result any, err error) {
	ctx := context.Background()
	if !msg.deadline.IsZero() {
		var cancel context.CancelFunc
		ctx, cancel = context.WithDeadline(ctx, msg.deadline)
		defer cancel()
	}

	defer func() {
		if recovered := recover(); recovered != nil {
			err = gerrors.NewPanicError(fmt.Errorf("%v", recovered))
			a.logger.Errorf("%s.%s panicked: %v", a.addressable.String(), msg.method, recovered)
		}
	}()

	return a.instance.OnInvoke(ctx, msg.method, msg.arg)
}

// deactivate drains the mailbox, rejecting queued messages, runs the host
// deactivator and transitions the activation to deactivated. An in-flight
// message finishes first.
func (a *activation) deactivate(ctx context.Context, deactivator Deactivator) error {
	previous := a.state.Swap(activationDeactivating)
	if previous == activationDeactivated || previous == activationDeactivating {
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.logger.Infof("deactivating %s...", a.addressable.String())

	for msg := a.mailbox.Dequeue(); msg != nil; msg = a.mailbox.Dequeue() {
		msg.reply(nil, gerrors.ErrActivationGone)
	}

	var err error
	if deactivator != nil && a.instance != nil {
		if err = deactivator(ctx, a.addressable, a.instance); err != nil {
			err = fmt.Errorf("deactivator of %s failed: %w", a.addressable.String(), err)
		}
	}

	a.state.Store(activationDeactivated)
	a.logger.Infof("%s successfully deactivated", a.addressable.String())
	return err
}

// isIdle reports whether the activation has been untouched for ttl
func (a *activation) isIdle(now time.Time, ttl time.Duration) bool {
	return a.isActive() && now.Sub(a.lastTouched.Load()) >= ttl
}

func (a *activation) touch() {
	a.lastTouched.Store(a.clock.Now())
}
