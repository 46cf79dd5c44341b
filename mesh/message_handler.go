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
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/atomic"

	gerrors "github.com/tochemey/gomesh/errors"
	"github.com/tochemey/gomesh/future"
	"github.com/tochemey/gomesh/internal/syncmap"
	"github.com/tochemey/gomesh/log"
	"github.com/tochemey/gomesh/remote"
)

// frameWriter writes one frame to the message channel
type frameWriter interface {
	writeFrame(frame *remote.Frame) error
}

// pendingCall is one entry of the correlation table: an outbound request
// awaiting its response. The completion sink is single-assignment, so an
// entry is fulfilled exactly once, by the inbound response, by the timeout
// sweep or by the caller's own deadline, whichever comes first.
type pendingCall struct {
	messageID  uint64
	deadline   time.Time
	completion future.Completable
}

// messageHandler owns the outbound correlation table. It correlates requests
// with responses by message id, times out expired calls on tick and
// demultiplexes inbound frames: responses complete pending calls, invocation
// requests are handed to the invocation system.
type messageHandler struct {
	pending   *syncmap.SyncMap[uint64, *pendingCall]
	sequence  *atomic.Uint64
	localNode *LocalNode
	clock     clock.Clock
	logger    log.Logger
	metrics   *meshMetrics

	writer  frameWriter
	inbound func(frame *remote.Frame)

	// frames that could not be written while the channel was down; they are
	// flushed on reconnect, bounded by the deadlines of their pending calls
	outboxMu sync.Mutex
	outbox   []*remote.Frame
}

func newMessageHandler(localNode *LocalNode, clk clock.Clock, logger log.Logger, metrics *meshMetrics) *messageHandler {
	return &messageHandler{
		pending:   syncmap.New[uint64, *pendingCall](),
		sequence:  atomic.NewUint64(0),
		localNode: localNode,
		clock:     clk,
		logger:    logger,
		metrics:   metrics,
	}
}

// bindWriter wires the message channel writer. Done once by the orchestrator.
func (h *messageHandler) bindWriter(writer frameWriter) {
	h.writer = writer
}

// bindInboundSink wires the inbound invocation sink. Done once by the orchestrator.
func (h *messageHandler) bindInboundSink(sink func(frame *remote.Frame)) {
	h.inbound = sink
}

// nextMessageID returns a process-monotonic message identifier
func (h *messageHandler) nextMessageID() uint64 {
	return h.sequence.Inc()
}

func (h *messageHandler) nodeID() string {
	return h.localNode.NodeID()
}

// Request sends a correlated request over the message channel and awaits its
// response. The deadline bounds the wait: on expiry the pending call is
// removed and ErrRequestTimeout returned, and a response arriving later is
// dropped as stray.
func (h *messageHandler) Request(ctx context.Context, frameType remote.FrameType, body any, deadline time.Time) (*remote.Frame, error) {
	messageID := h.nextMessageID()
	frame, err := remote.NewFrame(frameType, messageID, h.nodeID(), body)
	if err != nil {
		return nil, err
	}

	completion := future.NewCompletable()
	h.pending.Set(messageID, &pendingCall{
		messageID:  messageID,
		deadline:   deadline,
		completion: completion,
	})

	// a write failure keeps the call pending: the frame is held until the
	// channel recovers, subject to the call's own deadline
	if err := h.write(frame); err != nil {
		h.logger.Debugf("holding frame %d (%s) until the message channel recovers: %v", messageID, frameType, err)
	}

	cctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	result, err := completion.Future().Await(cctx)
	if err != nil {
		if _, pending := h.pending.Pop(messageID); pending {
			if errors.Is(err, context.DeadlineExceeded) {
				h.metrics.requestTimeouts.Add(context.Background(), 1)
				return nil, gerrors.ErrRequestTimeout
			}
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, gerrors.ErrRequestTimeout
		}
		return nil, err
	}
	return result.(*remote.Frame), nil
}

// Reply writes a response frame. There is no pending call to correlate; a
// write failure parks the frame for the next reconnect.
func (h *messageHandler) Reply(frame *remote.Frame) {
	if err := h.write(frame); err != nil {
		h.logger.Debugf("holding reply frame %d until the message channel recovers: %v", frame.MessageID, err)
	}
}

func (h *messageHandler) write(frame *remote.Frame) error {
	writer := h.writer
	if writer == nil {
		h.park(frame)
		return gerrors.ErrStreamClosed
	}
	if err := writer.writeFrame(frame); err != nil {
		h.park(frame)
		return err
	}
	return nil
}

func (h *messageHandler) park(frame *remote.Frame) {
	h.outboxMu.Lock()
	h.outbox = append(h.outbox, frame)
	h.outboxMu.Unlock()
}

// flushOutbox rewrites the frames held while the channel was down. Called by
// the connection handler after a successful reconnect.
func (h *messageHandler) flushOutbox() {
	h.outboxMu.Lock()
	parked := h.outbox
	h.outbox = nil
	h.outboxMu.Unlock()

	for i, frame := range parked {
		// only frames whose pending call is still alive are worth resending
		if frame.Type != remote.FrameInvocationResponse {
			if _, alive := h.pending.Get(frame.MessageID); !alive {
				continue
			}
		}
		writer := h.writer
		if writer == nil {
			return
		}
		if err := writer.writeFrame(frame); err != nil {
			h.outboxMu.Lock()
			h.outbox = append(h.outbox, parked[i:]...)
			h.outboxMu.Unlock()
			return
		}
	}
}

// OnInbound demultiplexes one inbound frame
func (h *messageHandler) OnInbound(frame *remote.Frame) {
	switch frame.Type {
	case remote.FrameInvocationRequest:
		if h.inbound != nil {
			h.inbound(frame)
		}
	case remote.FrameJoinResponse,
		remote.FrameRenewResponse,
		remote.FrameLeaveResponse,
		remote.FrameLeaseResponse,
		remote.FrameInvocationResponse:
		h.complete(frame)
	default:
		h.logger.Warnf("discarding inbound frame of unexpected type %s", frame.Type)
	}
}

func (h *messageHandler) complete(frame *remote.Frame) {
	call, ok := h.pending.Pop(frame.MessageID)
	if !ok {
		h.metrics.strayResponses.Add(context.Background(), 1)
		h.logger.Debugf("discarding stray response %d (%s)", frame.MessageID, frame.Type)
		return
	}
	call.completion.Success(frame)
}

// Tick completes every pending call whose deadline has passed with
// ErrRequestTimeout. The walk is amortized: pending counts are bounded by
// application concurrency, not tick throughput.
func (h *messageHandler) Tick(ctx context.Context) error {
	now := h.clock.Now()

	var expired []uint64
	h.pending.Range(func(messageID uint64, call *pendingCall) {
		if !call.deadline.After(now) {
			expired = append(expired, messageID)
		}
	})

	for _, messageID := range expired {
		call, ok := h.pending.Pop(messageID)
		if !ok {
			continue
		}
		call.completion.Failure(gerrors.ErrRequestTimeout)
		h.metrics.requestTimeouts.Add(ctx, 1)
	}
	return nil
}

// drain fails every pending call with the given error. Called once at stop so
// no pending call survives the client.
func (h *messageHandler) drain(err error) {
	for _, messageID := range h.pending.Keys() {
		if call, ok := h.pending.Pop(messageID); ok {
			call.completion.Failure(err)
		}
	}
}

// pendingCount returns the number of outstanding pending calls
func (h *messageHandler) pendingCount() int {
	return h.pending.Len()
}
