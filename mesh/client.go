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

// Package mesh implements the client-side runtime of a virtual-actor mesh.
// A process embedding the client advertises the actor kinds it can host,
// leases a node identity from the mesh directory, accepts inbound actor
// invocations routed to it and issues outbound invocations through typed
// handles. Actors are virtual: callers reference them by stable identity and
// the mesh activates an instance on some node on demand.
package mesh

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/flowchartsman/retry"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.uber.org/atomic"

	"github.com/tochemey/gomesh/address"
	gerrors "github.com/tochemey/gomesh/errors"
	"github.com/tochemey/gomesh/internal/chain"
	"github.com/tochemey/gomesh/internal/ticker"
	"github.com/tochemey/gomesh/internal/validation"
	"github.com/tochemey/gomesh/internal/workerpool"
	"github.com/tochemey/gomesh/log"
	"github.com/tochemey/gomesh/remote"
)

const instrumentationName = "github.com/tochemey/gomesh"

const (
	defaultPoolSize     = 16
	defaultTickRate     = time.Second
	defaultJoinAttempts = 60
	defaultJoinDelay    = time.Second
	defaultTTL          = 2 * time.Minute
	defaultCallTimeout  = 5 * time.Second
	defaultStopTimeout  = 30 * time.Second
	defaultRenewMargin  = 0.5
)

// Client is the top-level orchestrator of the mesh runtime. It drives a
// linear startup (scan, advertise, join, connect, tick), fans the composite
// tick out to its subsystems in a fixed order and drains everything on stop.
// A Client is started at most once; once stopped it cannot be restarted.
type Client struct {
	namespace      string
	endpoint       string
	poolSize       int
	tickRate       time.Duration
	joinAttempts   int
	joinDelay      time.Duration
	addressableTTL time.Duration
	callTimeout    time.Duration
	stopTimeout    time.Duration
	renewalMargin  float64

	registrations      map[string]ActorFactory
	deactivator        Deactivator
	leaseFailedHandler func()

	logger     log.Logger
	clock      clock.Clock
	serializer remote.Serializer
	transport  remote.Transport
	instanceID string

	localNode   *LocalNode
	directory   *definitionDirectory
	nodeLeaser  *nodeLeaser
	addrLeaser  *addressableLeaser
	connection  *connectionHandler
	messages    *messageHandler
	invocations *invocationSystem
	execution   *executionSystem
	pool        *workerpool.WorkerPool
	runner      *ticker.Runner
	metrics     *meshMetrics

	started          *atomic.Bool
	stopped          *atomic.Bool
	stopOnce         sync.Once
	leaseFailureOnce sync.Once
}

// New creates a mesh client from the given options. Components are
// constructed eagerly in dependency order; nothing touches the network until
// Start.
func New(opts ...Option) (*Client, error) {
	cl := &Client{
		poolSize:       defaultPoolSize,
		tickRate:       defaultTickRate,
		joinAttempts:   defaultJoinAttempts,
		joinDelay:      defaultJoinDelay,
		addressableTTL: defaultTTL,
		callTimeout:    defaultCallTimeout,
		stopTimeout:    defaultStopTimeout,
		renewalMargin:  defaultRenewMargin,
		registrations:  make(map[string]ActorFactory),
		logger:         log.DefaultLogger,
		clock:          clock.New(),
		serializer:     remote.NewCBORSerializer(),
		instanceID:     uuid.NewString(),
		started:        atomic.NewBool(false),
		stopped:        atomic.NewBool(false),
	}

	for _, opt := range opts {
		opt.Apply(cl)
	}

	if err := cl.validate(); err != nil {
		return nil, err
	}

	if cl.transport == nil {
		cl.transport = remote.NewGRPCTransport(cl.endpoint)
	}

	metrics, err := newMeshMetrics(otel.Meter(instrumentationName))
	if err != nil {
		return nil, err
	}
	cl.metrics = metrics

	cl.localNode = NewLocalNode()
	cl.directory = newDefinitionDirectory()
	cl.pool = workerpool.New(cl.poolSize, workerpool.WithPanicHandler(func(recovered any) {
		cl.logger.Errorf("worker panicked: %v", recovered)
	}))

	cl.messages = newMessageHandler(cl.localNode, cl.clock, cl.logger, metrics)
	cl.connection = newConnectionHandler(cl.transport, cl.messages, cl.localNode, cl.clock, cl.logger, metrics)
	cl.messages.bindWriter(cl.connection)

	cl.nodeLeaser = newNodeLeaser(cl.localNode, cl.transport, cl.messages, cl.clock, cl.logger, cl.namespace, cl.instanceID, cl.callTimeout, cl.renewalMargin)
	cl.addrLeaser = newAddressableLeaser(cl.messages, cl.clock, cl.logger, cl.callTimeout, cl.renewalMargin)
	cl.execution = newExecutionSystem(cl.directory, cl.addrLeaser, cl.localNode, cl.pool, cl.clock, cl.logger, metrics, cl.addressableTTL, cl.deactivator)
	cl.invocations = newInvocationSystem(cl.serializer, cl.execution, cl.addrLeaser, cl.messages, cl.clock, cl.logger, cl.callTimeout)
	cl.messages.bindInboundSink(cl.invocations.HandleInbound)

	cl.runner = ticker.NewRunner(cl.tickRate, cl.clock, cl.tick, cl.onTickFailure)
	return cl, nil
}

func (cl *Client) validate() error {
	return validation.
		New(validation.FailFast()).
		AddAssertion(cl.endpoint != "" || cl.transport != nil, gerrors.ErrEndpointRequired.Error()).
		AddAssertion(cl.tickRate > 0, "tick rate must be greater than zero").
		AddAssertion(cl.poolSize > 0, "worker pool size must be greater than zero").
		AddAssertion(cl.joinAttempts > 0, "join attempts must be greater than zero").
		AddAssertion(cl.addressableTTL > 0, "addressable TTL must be greater than zero").
		AddAssertion(cl.callTimeout > 0, gerrors.ErrInvalidTimeout.Error()).
		AddAssertion(cl.stopTimeout > 0, gerrors.ErrInvalidTimeout.Error()).
		AddAssertion(cl.renewalMargin > 0 && cl.renewalMargin < 1, "renewal margin must be within (0, 1)").
		Validate()
}

// Start brings the client into the mesh: capability scan, cluster join with
// retries, message channel establishment, then the cooperative ticker.
// A failed start resets the node to Idle; Start may then be attempted again.
func (cl *Client) Start(ctx context.Context) error {
	if cl.stopped.Load() {
		return gerrors.ErrClientStopped
	}
	if !cl.started.CompareAndSwap(false, true) {
		return gerrors.ErrClientAlreadyStarted
	}

	cl.logger.Infof("starting mesh client on %s/%s...", runtime.GOOS, runtime.GOARCH)
	cl.setState(StateConnecting)

	if err := chain.
		New(chain.WithFailFast(), chain.WithContext(ctx)).
		AddContextRunner(cl.setupDefinitions).
		AddContextRunner(cl.joinCluster).
		AddContextRunner(cl.connection.Connect).
		Run(); err != nil {
		cl.localNode.Reset()
		cl.started.Store(false)
		return err
	}

	cl.setState(StateConnected)
	cl.pool.Start()
	cl.runner.Start(context.WithoutCancel(ctx))

	cl.logger.Infof("mesh client successfully started, node=%s", cl.localNode.NodeID())
	return nil
}

// setupDefinitions scans the registered actor kinds, seeds the definition
// directory and advertises the capabilities through the local node
func (cl *Client) setupDefinitions(context.Context) error {
	scanner := newCapabilityScanner(cl.registrations)
	capabilities, factories := scanner.Scan()

	// a start retried after a join failure finds the directory already seeded
	if err := cl.directory.SetupDefinition(factories); err != nil && !errors.Is(err, gerrors.ErrDefinitionAlreadySetup) {
		return err
	}

	cl.localNode.Manipulate(func(status NodeStatus) NodeStatus {
		status.Capabilities = capabilities
		return status
	})

	cl.logger.Infof("advertising %d capability(ies)", capabilities.Cardinality())
	return nil
}

// joinCluster drives the join retry loop. The loop stops early when the
// local node leaves the Connecting state.
func (cl *Client) joinCluster(ctx context.Context) error {
	retrier := retry.NewRetrier(cl.joinAttempts, cl.joinDelay, cl.joinDelay)
	err := retrier.RunContext(ctx, func(ctx context.Context) error {
		if cl.localNode.State() != StateConnecting {
			return retry.Stop(gerrors.ErrClientStopped)
		}
		return cl.nodeLeaser.JoinCluster(ctx)
	})
	if err != nil {
		return fmt.Errorf("%w: %w", gerrors.ErrClusterJoinFailed, err)
	}
	return nil
}

// tick is the composite tick. Order matters: connection recovery precedes
// lease renewal so renewal has a live channel; message timeouts precede the
// execution sweep so responses complete before an actor is deemed idle.
func (cl *Client) tick(ctx context.Context) error {
	started := cl.clock.Now()
	defer func() {
		cl.metrics.tickDuration.Record(ctx, cl.clock.Since(started).Seconds())
	}()

	if err := cl.connection.Tick(ctx); err != nil {
		cl.logger.Warnf("connection tick: %v", err)
	}
	if err := cl.nodeLeaser.Tick(ctx); err != nil {
		if errors.Is(err, gerrors.ErrNodeLeaseRenewalFailed) {
			return err
		}
		cl.logger.Warnf("node leaser tick: %v", err)
	}
	if err := cl.messages.Tick(ctx); err != nil {
		cl.logger.Warnf("message handler tick: %v", err)
	}
	if err := cl.execution.Tick(ctx); err != nil {
		cl.logger.Warnf("execution tick: %v", err)
	}
	return nil
}

// onTickFailure is the unhandled-failure policy: the lease-lost signal stops
// the ticker and triggers the host handler and the stop path; every other
// failure, recovered panics included, is logged and swallowed.
func (cl *Client) onTickFailure(err error) bool {
	if errors.Is(err, gerrors.ErrNodeLeaseRenewalFailed) && cl.localNode.State() == StateConnected {
		cl.logger.Errorf("node lease irrecoverably lost: %v", err)
		cl.leaseFailureOnce.Do(func() {
			if cl.leaseFailedHandler != nil {
				cl.leaseFailedHandler()
			}
		})
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), cl.stopTimeout)
			defer cancel()
			_ = cl.Stop(ctx)
		}()
		return false
	}

	cl.logger.Errorf("tick failed: %v", err)
	return true
}

// Stop drains the client: best-effort leave, activation drain bounded by the
// stop timeout, ticker stop, channel teardown, node reset. It is idempotent.
func (cl *Client) Stop(ctx context.Context) error {
	if !cl.started.Load() && !cl.stopped.Load() {
		return gerrors.ErrClientNotStarted
	}

	cl.stopOnce.Do(func() {
		cl.logger.Info("stopping mesh client...")
		cl.setState(StateStopping)

		if leaveErr := cl.nodeLeaser.LeaveCluster(ctx); leaveErr != nil {
			cl.logger.Warnf("failed to leave the mesh: %v", leaveErr)
		}

		dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cl.stopTimeout)
		defer cancel()
		if drainErr := cl.execution.Stop(dctx, cl.deactivator); drainErr != nil {
			cl.logger.Warnf("activation drain incomplete: %v", drainErr)
		}

		cl.runner.Stop()
		cl.messages.drain(gerrors.ErrClientStopped)

		if discErr := cl.connection.Disconnect(ctx); discErr != nil {
			cl.logger.Warnf("failed to close the message channel: %v", discErr)
		}
		if closeErr := cl.transport.Close(); closeErr != nil {
			cl.logger.Warnf("failed to close the transport: %v", closeErr)
		}

		cl.pool.Stop()
		cl.addrLeaser.reset()

		// reset and the terminal transition happen atomically so no reader
		// ever observes a state outside Stopping → Stopped
		cl.localNode.Manipulate(func(NodeStatus) NodeStatus {
			return NodeStatus{
				Capabilities: mapset.NewSet[string](),
				State:        StateStopped,
			}
		})
		cl.stopped.Store(true)

		cl.logger.Info("mesh client stopped")
	})
	return nil
}

// State returns the lifecycle state of the client
func (cl *Client) State() ClientState {
	return cl.localNode.State()
}

// NodeID returns the mesh-assigned node identifier, empty before join
func (cl *Client) NodeID() string {
	return cl.localNode.NodeID()
}

// Snapshot returns a consistent copy of the node status
func (cl *Client) Snapshot() NodeStatus {
	return cl.localNode.Snapshot()
}

func (cl *Client) setState(state ClientState) {
	cl.localNode.Manipulate(func(status NodeStatus) NodeStatus {
		status.State = state
		return status
	})
}

// ActorHandle is the typed proxy surface of a single virtual actor. Handles
// are cheap, immutable and safe for concurrent use.
type ActorHandle struct {
	client      *Client
	addressable *address.Addressable
}

// Actor returns a handle on the virtual actor identified by kind and id
func (cl *Client) Actor(kind, id string) (*ActorHandle, error) {
	addressable, err := address.New(kind, id)
	if err != nil {
		return nil, err
	}
	return &ActorHandle{client: cl, addressable: addressable}, nil
}

// Addressable returns the identity the handle points at
func (h *ActorHandle) Addressable() *address.Addressable {
	return h.addressable
}

// Invoke calls a method on the actor, wherever the mesh hosts it, and awaits
// the outcome. The ctx deadline, when set, overrides the configured call
// timeout.
func (h *ActorHandle) Invoke(ctx context.Context, method string, arg any) (any, error) {
	cl := h.client
	switch {
	case cl.stopped.Load() || cl.State() == StateStopping:
		return nil, gerrors.ErrClientStopped
	case !cl.started.Load():
		return nil, gerrors.ErrClientNotStarted
	}
	return cl.invocations.Invoke(ctx, h.addressable, method, arg)
}
