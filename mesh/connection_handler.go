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
	"github.com/flowchartsman/retry"
	"go.uber.org/atomic"

	gerrors "github.com/tochemey/gomesh/errors"
	"github.com/tochemey/gomesh/log"
	"github.com/tochemey/gomesh/remote"
)

const (
	reconnectAttempts     = 3
	reconnectInitialDelay = 100 * time.Millisecond
	reconnectMaxDelay     = 2 * time.Second
)

// connectionHandler owns the long-lived message channel: it opens the stream
// after the cluster join, pumps inbound frames into the message handler,
// writes outbound frames and re-establishes the stream when the transport
// surfaces a transient disconnect. A reconnect preserves the node identity
// and the in-flight pending calls.
type connectionHandler struct {
	transport remote.Transport
	handler   *messageHandler
	localNode *LocalNode
	clock     clock.Clock
	logger    log.Logger
	metrics   *meshMetrics

	stream  *atomic.Pointer[streamSession]
	closing *atomic.Bool
}

// streamSession binds a stream to its pump lifetime
type streamSession struct {
	stream  remote.Stream
	healthy *atomic.Bool
	done    chan struct{}
}

// enforce compilation error
var _ frameWriter = (*connectionHandler)(nil)

func newConnectionHandler(transport remote.Transport, handler *messageHandler, localNode *LocalNode, clk clock.Clock, logger log.Logger, metrics *meshMetrics) *connectionHandler {
	return &connectionHandler{
		transport: transport,
		handler:   handler,
		localNode: localNode,
		clock:     clk,
		logger:    logger,
		metrics:   metrics,
		stream:    atomic.NewPointer[streamSession](nil),
		closing:   atomic.NewBool(false),
	}
}

// Connect opens the message channel and starts the inbound pump
func (c *connectionHandler) Connect(ctx context.Context) error {
	stream, err := c.transport.Connect(ctx)
	if err != nil {
		return gerrors.NewErrTransport(err)
	}
	c.install(stream)
	c.logger.Info("message channel established")
	return nil
}

func (c *connectionHandler) install(stream remote.Stream) {
	session := &streamSession{
		stream:  stream,
		healthy: atomic.NewBool(true),
		done:    make(chan struct{}),
	}
	c.stream.Store(session)
	go c.pump(session)
}

// pump reads inbound frames until the stream fails or is closed
func (c *connectionHandler) pump(session *streamSession) {
	defer close(session.done)
	for {
		data, err := session.stream.Recv()
		if err != nil {
			session.healthy.Store(false)
			if !c.closing.Load() {
				c.logger.Warnf("message channel read failed: %v", err)
			}
			return
		}
		frame, err := remote.DecodeFrame(data)
		if err != nil {
			c.logger.Warnf("discarding malformed inbound frame: %v", err)
			continue
		}
		// frames arriving after a clean disconnect are discarded
		if c.closing.Load() {
			continue
		}
		c.handler.OnInbound(frame)
	}
}

// writeFrame implements frameWriter
func (c *connectionHandler) writeFrame(frame *remote.Frame) error {
	session := c.stream.Load()
	if session == nil || !session.healthy.Load() {
		return gerrors.ErrStreamClosed
	}
	data, err := remote.EncodeFrame(frame)
	if err != nil {
		return err
	}
	if err := session.stream.Send(data); err != nil {
		session.healthy.Store(false)
		return gerrors.NewErrTransport(err)
	}
	return nil
}

// healthy reports whether the current stream is live
func (c *connectionHandler) healthy() bool {
	session := c.stream.Load()
	return session != nil && session.healthy.Load()
}

// Tick re-establishes the stream when it went unhealthy while the client is
// connected. The reconnect window is bounded by the node lease expiry:
// past it the lease failure path takes over.
func (c *connectionHandler) Tick(ctx context.Context) error {
	if c.localNode.State() != StateConnected || c.closing.Load() {
		return nil
	}
	if c.healthy() {
		return nil
	}
	return c.reconnect(ctx)
}

func (c *connectionHandler) reconnect(ctx context.Context) error {
	rctx := ctx
	if snapshot := c.localNode.Snapshot(); snapshot.NodeInfo != nil {
		var cancel context.CancelFunc
		rctx, cancel = context.WithDeadline(ctx, snapshot.NodeInfo.LeaseExpiresAt)
		defer cancel()
	}

	c.logger.Info("re-establishing the message channel...")
	retrier := retry.NewRetrier(reconnectAttempts, reconnectInitialDelay, reconnectMaxDelay)
	err := retrier.RunContext(rctx, func(ctx context.Context) error {
		stream, err := c.transport.Connect(ctx)
		if err != nil {
			return err
		}
		c.install(stream)
		return nil
	})
	if err != nil {
		// the ticker cadence provides the next retry window
		return gerrors.NewErrTransport(err)
	}

	c.metrics.reconnects.Add(ctx, 1)
	c.handler.flushOutbox()
	c.logger.Info("message channel re-established")
	return nil
}

// Disconnect closes the message channel cleanly. Inbound frames received
// afterwards are discarded.
func (c *connectionHandler) Disconnect(ctx context.Context) error {
	c.closing.Store(true)
	session := c.stream.Swap(nil)
	if session == nil {
		return nil
	}
	err := session.stream.Close()

	// wait for the pump to wind down, bounded to keep stop prompt
	select {
	case <-session.done:
	case <-ctx.Done():
	case <-time.After(time.Second):
	}
	return err
}
