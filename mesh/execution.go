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
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/tochemey/gomesh/address"
	gerrors "github.com/tochemey/gomesh/errors"
	"github.com/tochemey/gomesh/internal/syncmap"
	"github.com/tochemey/gomesh/internal/workerpool"
	"github.com/tochemey/gomesh/log"
)

// executionSystem owns the activation registry. It activates addressables on
// first inbound invocation, dispatches messages onto their mailboxes and
// sweeps idle or lease-starved activations on tick. It also holds the
// execution leases of locally-hosted addressables: the mesh requires this
// host to retain the right to serve them.
type executionSystem struct {
	activations *syncmap.SyncMap[string, *activation]
	directory   *definitionDirectory
	leaser      *addressableLeaser
	localNode   *LocalNode
	pool        *workerpool.WorkerPool
	clock       clock.Clock
	logger      log.Logger
	metrics     *meshMetrics

	idleTimeout time.Duration
	deactivator Deactivator
	stopping    *atomic.Bool
}

func newExecutionSystem(directory *definitionDirectory, leaser *addressableLeaser, localNode *LocalNode, pool *workerpool.WorkerPool, clk clock.Clock, logger log.Logger, metrics *meshMetrics, idleTimeout time.Duration, deactivator Deactivator) *executionSystem {
	return &executionSystem{
		activations: syncmap.New[string, *activation](),
		directory:   directory,
		leaser:      leaser,
		localNode:   localNode,
		pool:        pool,
		clock:       clk,
		logger:      logger,
		metrics:     metrics,
		idleTimeout: idleTimeout,
		deactivator: deactivator,
		stopping:    atomic.NewBool(false),
	}
}

// Enqueue routes one inbound invocation onto the target activation's mailbox,
// activating the addressable first when needed
func (s *executionSystem) Enqueue(ctx context.Context, addressable *address.Addressable, msg *invocationMessage) error {
	if s.stopping.Load() {
		return gerrors.ErrActivationGone
	}

	act, err := s.getOrActivate(ctx, addressable)
	if err != nil {
		return err
	}

	act.receive(msg)
	return nil
}

func (s *executionSystem) getOrActivate(ctx context.Context, addressable *address.Addressable) (*activation, error) {
	key := addressable.String()

	if act, ok := s.activations.Get(key); ok {
		return s.awaitUsable(ctx, act)
	}

	snapshot := s.localNode.Snapshot()
	if !snapshot.Capabilities.Contains(addressable.Kind()) {
		return nil, gerrors.NewErrKindNotRegistered(addressable.Kind())
	}

	factory, err := s.directory.Lookup(addressable.Kind())
	if err != nil {
		return nil, err
	}

	fresh := newActivation(addressable, s.pool, s.clock, s.logger)
	act, loaded := s.activations.GetOrSet(key, fresh)
	if loaded {
		// another inbound invocation won the activation race
		return s.awaitUsable(ctx, act)
	}

	if err := fresh.activate(ctx, factory); err != nil {
		s.activations.Delete(key)
		return nil, err
	}

	// the mesh requires this host to hold the right to serve the addressable
	if _, err := s.leaser.Lease(ctx, addressable); err != nil {
		s.logger.Errorf("execution lease of %s could not be acquired: %v", key, err)
		_ = fresh.deactivate(ctx, s.deactivator)
		s.activations.Delete(key)
		return nil, gerrors.NewErrActivationFailed(err)
	}

	s.metrics.activations.Add(ctx, 1)
	return fresh, nil
}

func (s *executionSystem) awaitUsable(ctx context.Context, act *activation) (*activation, error) {
	if err := act.awaitReady(ctx); err != nil {
		return nil, err
	}
	if !act.isActive() {
		return nil, gerrors.ErrActivationGone
	}
	return act, nil
}

// Tick performs the deactivation sweep: activations idle past the TTL and
// activations whose execution lease is due and cannot be renewed are torn
// down.
func (s *executionSystem) Tick(ctx context.Context) error {
	if s.stopping.Load() {
		return nil
	}

	now := s.clock.Now()
	var errs []error

	type target struct {
		act    *activation
		reason string
	}
	var targets []target

	s.activations.Range(func(key string, act *activation) {
		switch {
		case act.isIdle(now, s.idleTimeout):
			targets = append(targets, target{act: act, reason: "idle"})
		case act.isActive() && s.leaser.RenewalDue(act.addressable, now):
			if err := s.leaser.Renew(ctx, act.addressable); err != nil {
				s.logger.Warnf("execution lease renewal of %s failed: %v", key, err)
				targets = append(targets, target{act: act, reason: "lease lost"})
			}
		}
	})

	for _, target := range targets {
		s.logger.Infof("deactivating %s (%s)", target.act.addressable.String(), target.reason)
		errs = append(errs, s.deactivate(ctx, target.act, s.deactivator))
	}

	return multierr.Combine(errs...)
}

func (s *executionSystem) deactivate(ctx context.Context, act *activation, deactivator Deactivator) error {
	err := act.deactivate(ctx, deactivator)
	s.activations.Delete(act.addressable.String())
	s.leaser.Evict(act.addressable)
	s.metrics.activations.Add(ctx, -1)
	return err
}

// Stop drains every activation. It returns once all activations reached the
// deactivated state or ctx expired, in which case the survivors are abandoned
// and logged. A nil deactivator falls back to the configured one.
func (s *executionSystem) Stop(ctx context.Context, deactivator Deactivator) error {
	s.stopping.Store(true)
	if deactivator == nil {
		deactivator = s.deactivator
	}

	activations := s.activations.Values()
	if len(activations) == 0 {
		return nil
	}

	group := new(errgroup.Group)
	for _, act := range activations {
		group.Go(func() error {
			return s.deactivate(ctx, act, deactivator)
		})
	}

	done := make(chan error, 1)
	go func() { done <- group.Wait() }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		abandoned := s.activations.Len()
		s.logger.Errorf("stop deadline elapsed, abandoning %d activation(s)", abandoned)
		return ctx.Err()
	}
}

// count returns the number of live activations
func (s *executionSystem) count() int {
	return s.activations.Len()
}
