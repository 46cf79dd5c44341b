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
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.uber.org/atomic"

	"github.com/tochemey/gomesh/address"
	gerrors "github.com/tochemey/gomesh/errors"
	"github.com/tochemey/gomesh/internal/workerpool"
	"github.com/tochemey/gomesh/log"
)

type executionHarness struct {
	execution *executionSystem
	localNode *LocalNode
	mock      *clock.Mock
}

func newExecutionHarness(t *testing.T, factories map[string]ActorFactory, ttl time.Duration, deactivator Deactivator) *executionHarness {
	t.Helper()
	metrics, err := newMeshMetrics(otel.Meter("test"))
	require.NoError(t, err)

	mock := clock.NewMock()
	mock.Set(time.Now())

	localNode := NewLocalNode()
	handler := newMessageHandler(localNode, mock, log.DiscardLogger, metrics)
	writer := &stubWriter{handler: handler, respond: leaseResponder}
	handler.bindWriter(writer)

	leaser := newAddressableLeaser(handler, mock, log.DiscardLogger, time.Second, 0.5)

	directory := newDefinitionDirectory()
	require.NoError(t, directory.SetupDefinition(factories))
	capabilities, err := directory.GenerateCapabilities()
	require.NoError(t, err)
	localNode.Manipulate(func(status NodeStatus) NodeStatus {
		status.Capabilities = capabilities
		return status
	})

	pool := workerpool.New(4)
	pool.Start()
	t.Cleanup(pool.Stop)

	execution := newExecutionSystem(directory, leaser, localNode, pool, mock, log.DiscardLogger, metrics, ttl, deactivator)
	return &executionHarness{execution: execution, localNode: localNode, mock: mock}
}

// call enqueues one invocation and waits for its reply
func (h *executionHarness) call(t *testing.T, addressable *address.Addressable, method string, arg any) (any, error) {
	t.Helper()
	type outcome struct {
		result any
		err    error
	}
	done := make(chan outcome, 1)
	msg := &invocationMessage{
		method: method,
		arg:    arg,
		reply: func(result any, err error) {
			done <- outcome{result: result, err: err}
		},
	}
	if err := h.execution.Enqueue(context.Background(), addressable, msg); err != nil {
		return nil, err
	}
	select {
	case out := <-done:
		return out.result, out.err
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for the invocation reply")
		return nil, nil
	}
}

func TestExecutionActivatesOnFirstInvocation(t *testing.T) {
	harness := newExecutionHarness(t, map[string]ActorFactory{"IGreeter": greeterFactory}, time.Minute, nil)
	addressable := mustAddressable(t, "IGreeter", "a")

	result, err := harness.call(t, addressable, "hello", "x")
	require.NoError(t, err)
	assert.Equal(t, "hi,x", result)
	assert.Equal(t, 1, harness.execution.count())
}

func TestExecutionUnknownKind(t *testing.T) {
	harness := newExecutionHarness(t, map[string]ActorFactory{"IGreeter": greeterFactory}, time.Minute, nil)
	addressable := mustAddressable(t, "IUnknown", "a")

	_, err := harness.call(t, addressable, "hello", "x")
	require.ErrorIs(t, err, gerrors.ErrKindNotRegistered)
	assert.Zero(t, harness.execution.count())
}

func TestExecutionActivationFailure(t *testing.T) {
	boom := errors.New("constructor blew up")
	harness := newExecutionHarness(t, map[string]ActorFactory{
		"IBroken": func(context.Context, *address.Addressable) (Actor, error) {
			return nil, boom
		},
	}, time.Minute, nil)
	addressable := mustAddressable(t, "IBroken", "a")

	_, err := harness.call(t, addressable, "hello", "x")
	require.ErrorIs(t, err, gerrors.ErrActivationFailed)
	require.ErrorIs(t, err, boom)
	assert.Zero(t, harness.execution.count())
}

func TestExecutionPerActorOrder(t *testing.T) {
	var mu sync.Mutex
	var events []string

	harness := newExecutionHarness(t, map[string]ActorFactory{
		"IRecorder": func(context.Context, *address.Addressable) (Actor, error) {
			return recorder{mu: &mu, events: &events}, nil
		},
	}, time.Minute, nil)
	addressable := mustAddressable(t, "IRecorder", "same-key")

	const calls = 50
	var wg sync.WaitGroup
	wg.Add(calls)
	for i := range calls {
		msg := &invocationMessage{
			method: "record",
			arg:    fmt.Sprintf("call-%d", i),
			reply:  func(any, error) { wg.Done() },
		}
		require.NoError(t, harness.execution.Enqueue(context.Background(), addressable, msg))
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, events, 2*calls)
	// events are strictly nested and follow the enqueue order
	for i := range calls {
		assert.Equal(t, fmt.Sprintf("enter:call-%d", i), events[2*i])
		assert.Equal(t, fmt.Sprintf("exit:call-%d", i), events[2*i+1])
	}
}

func TestExecutionIdleSweep(t *testing.T) {
	deactivations := atomic.NewInt64(0)
	harness := newExecutionHarness(t, map[string]ActorFactory{"IGreeter": greeterFactory}, 500*time.Millisecond,
		func(context.Context, *address.Addressable, Actor) error {
			deactivations.Inc()
			return nil
		})
	addressable := mustAddressable(t, "IGreeter", "a")

	_, err := harness.call(t, addressable, "hello", "x")
	require.NoError(t, err)
	require.Equal(t, 1, harness.execution.count())

	// not yet idle long enough
	harness.mock.Add(200 * time.Millisecond)
	require.NoError(t, harness.execution.Tick(context.Background()))
	assert.Equal(t, 1, harness.execution.count())

	harness.mock.Add(time.Second)
	require.NoError(t, harness.execution.Tick(context.Background()))
	assert.Zero(t, harness.execution.count())
	assert.EqualValues(t, 1, deactivations.Load())
}

func TestExecutionRejectsAfterDeactivation(t *testing.T) {
	harness := newExecutionHarness(t, map[string]ActorFactory{"IGreeter": greeterFactory}, 100*time.Millisecond, nil)
	addressable := mustAddressable(t, "IGreeter", "a")

	_, err := harness.call(t, addressable, "hello", "x")
	require.NoError(t, err)

	harness.mock.Add(time.Second)
	require.NoError(t, harness.execution.Tick(context.Background()))
	require.Zero(t, harness.execution.count())

	// the next invocation re-activates from scratch
	result, err := harness.call(t, addressable, "hello", "y")
	require.NoError(t, err)
	assert.Equal(t, "hi,y", result)
}

func TestExecutionPanicIsolated(t *testing.T) {
	harness := newExecutionHarness(t, map[string]ActorFactory{
		"IPanicky": func(context.Context, *address.Addressable) (Actor, error) {
			return panicky{}, nil
		},
	}, time.Minute, nil)
	addressable := mustAddressable(t, "IPanicky", "a")

	_, err := harness.call(t, addressable, "explode", nil)
	require.Error(t, err)
	var panicErr *gerrors.PanicError
	require.True(t, errors.As(err, &panicErr))

	// the activation survives a panicking message
	assert.Equal(t, 1, harness.execution.count())
}

func TestExecutionStopDrains(t *testing.T) {
	deactivations := atomic.NewInt64(0)
	harness := newExecutionHarness(t, map[string]ActorFactory{"IGreeter": greeterFactory}, time.Minute,
		func(context.Context, *address.Addressable, Actor) error {
			deactivations.Inc()
			return nil
		})

	for _, id := range []string{"a", "b", "c"} {
		_, err := harness.call(t, mustAddressable(t, "IGreeter", id), "hello", "x")
		require.NoError(t, err)
	}
	require.Equal(t, 3, harness.execution.count())

	require.NoError(t, harness.execution.Stop(context.Background(), nil))
	assert.Zero(t, harness.execution.count())
	assert.EqualValues(t, 3, deactivations.Load())

	// a stopping execution system rejects new work
	err := harness.execution.Enqueue(context.Background(), mustAddressable(t, "IGreeter", "d"), &invocationMessage{reply: func(any, error) {}})
	require.ErrorIs(t, err, gerrors.ErrActivationGone)
}

// panicky panics on every invocation
type panicky struct{}

func (panicky) OnInvoke(context.Context, string, any) (any, error) {
	panic("actor blew up")
}
