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
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	gerrors "github.com/tochemey/gomesh/errors"
	"github.com/tochemey/gomesh/log"
	"github.com/tochemey/gomesh/remote"
)

// stubWriter is a frameWriter that records frames and optionally answers them
type stubWriter struct {
	mu      sync.Mutex
	frames  []*remote.Frame
	handler *messageHandler
	respond func(frame *remote.Frame) *remote.Frame
	failing bool
}

func (w *stubWriter) writeFrame(frame *remote.Frame) error {
	w.mu.Lock()
	failing := w.failing
	if !failing {
		w.frames = append(w.frames, frame)
	}
	w.mu.Unlock()

	if failing {
		return gerrors.ErrStreamClosed
	}
	if w.respond != nil {
		if response := w.respond(frame); response != nil {
			w.handler.OnInbound(response)
		}
	}
	return nil
}

func (w *stubWriter) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.frames)
}

func newTestMessageHandler(t *testing.T) (*messageHandler, *stubWriter, *clock.Mock) {
	t.Helper()
	metrics, err := newMeshMetrics(otel.Meter("test"))
	require.NoError(t, err)

	mock := clock.NewMock()
	mock.Set(time.Now())

	handler := newMessageHandler(NewLocalNode(), mock, log.DiscardLogger, metrics)
	writer := &stubWriter{handler: handler}
	handler.bindWriter(writer)
	return handler, writer, mock
}

func leaseResponder(frame *remote.Frame) *remote.Frame {
	if frame.Type != remote.FrameLeaseRequest {
		return nil
	}
	now := time.Now()
	response, _ := remote.NewFrame(remote.FrameLeaseResponse, frame.MessageID, "mesh", remote.AddressableLeaseResponse{
		Granted:   true,
		NodeID:    "node-1",
		ExpiresAt: now.Add(time.Minute).UnixMilli(),
		RenewAt:   now.Add(30 * time.Second).UnixMilli(),
	})
	return response
}

func TestRequestCompletesWithResponse(t *testing.T) {
	handler, writer, mock := newTestMessageHandler(t)
	writer.respond = leaseResponder

	deadline := mock.Now().Add(time.Second)
	frame, err := handler.Request(context.Background(), remote.FrameLeaseRequest, remote.AddressableLeaseRequest{Kind: "IGreeter", ID: "a"}, deadline)
	require.NoError(t, err)
	require.Equal(t, remote.FrameLeaseResponse, frame.Type)
	assert.Zero(t, handler.pendingCount())
}

func TestRequestTimesOutOnTick(t *testing.T) {
	handler, _, mock := newTestMessageHandler(t)

	deadline := mock.Now().Add(200 * time.Millisecond)
	errs := make(chan error, 1)
	go func() {
		_, err := handler.Request(context.Background(), remote.FrameRenewRequest, remote.RenewRequest{NodeID: "node-1"}, deadline)
		errs <- err
	}()

	require.Eventually(t, func() bool {
		return handler.pendingCount() == 1
	}, time.Second, 5*time.Millisecond)

	mock.Add(time.Second)
	require.NoError(t, handler.Tick(context.Background()))

	err := <-errs
	require.ErrorIs(t, err, gerrors.ErrRequestTimeout)
	assert.Zero(t, handler.pendingCount())
}

func TestStrayResponseIsDropped(t *testing.T) {
	handler, _, _ := newTestMessageHandler(t)

	response, err := remote.NewFrame(remote.FrameInvocationResponse, 999, "mesh", remote.InvocationResponse{})
	require.NoError(t, err)
	handler.OnInbound(response)
	assert.Zero(t, handler.pendingCount())
}

func TestLateResponseAfterTimeoutIsStray(t *testing.T) {
	handler, writer, mock := newTestMessageHandler(t)

	deadline := mock.Now().Add(100 * time.Millisecond)
	errs := make(chan error, 1)
	go func() {
		_, err := handler.Request(context.Background(), remote.FrameRenewRequest, remote.RenewRequest{NodeID: "node-1"}, deadline)
		errs <- err
	}()

	require.Eventually(t, func() bool {
		return handler.pendingCount() == 1
	}, time.Second, 5*time.Millisecond)

	mock.Add(time.Second)
	require.NoError(t, handler.Tick(context.Background()))
	require.ErrorIs(t, <-errs, gerrors.ErrRequestTimeout)

	// the response arriving after the timeout is discarded, never double-completed
	writer.mu.Lock()
	sent := writer.frames[0]
	writer.mu.Unlock()
	late, err := remote.NewFrame(remote.FrameRenewResponse, sent.MessageID, "mesh", remote.RenewResponse{Renewed: true})
	require.NoError(t, err)
	handler.OnInbound(late)
	assert.Zero(t, handler.pendingCount())
}

func TestWriteFailureHoldsFrameUntilFlush(t *testing.T) {
	handler, writer, mock := newTestMessageHandler(t)
	writer.failing = true

	deadline := mock.Now().Add(2 * time.Second)
	errs := make(chan error, 1)
	go func() {
		_, err := handler.Request(context.Background(), remote.FrameRenewRequest, remote.RenewRequest{NodeID: "node-1"}, deadline)
		errs <- err
	}()

	require.Eventually(t, func() bool {
		return handler.pendingCount() == 1
	}, time.Second, 5*time.Millisecond)

	// channel recovers: the held frame goes out and gets answered
	writer.mu.Lock()
	writer.failing = false
	writer.mu.Unlock()
	writer.respond = func(frame *remote.Frame) *remote.Frame {
		response, _ := remote.NewFrame(remote.FrameRenewResponse, frame.MessageID, "mesh", remote.RenewResponse{Renewed: true})
		return response
	}
	handler.flushOutbox()

	require.NoError(t, <-errs)
	assert.Zero(t, handler.pendingCount())
}

func TestDrainFailsEveryPendingCall(t *testing.T) {
	handler, _, mock := newTestMessageHandler(t)

	deadline := mock.Now().Add(time.Minute)
	errs := make(chan error, 2)
	for range 2 {
		go func() {
			_, err := handler.Request(context.Background(), remote.FrameRenewRequest, remote.RenewRequest{NodeID: "node-1"}, deadline)
			errs <- err
		}()
	}

	require.Eventually(t, func() bool {
		return handler.pendingCount() == 2
	}, time.Second, 5*time.Millisecond)

	handler.drain(gerrors.ErrClientStopped)
	require.ErrorIs(t, <-errs, gerrors.ErrClientStopped)
	require.ErrorIs(t, <-errs, gerrors.ErrClientStopped)
	assert.Zero(t, handler.pendingCount())
}
