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
	"time"

	"github.com/benbjohnson/clock"

	"github.com/tochemey/gomesh/address"
	gerrors "github.com/tochemey/gomesh/errors"
	"github.com/tochemey/gomesh/log"
	"github.com/tochemey/gomesh/remote"
)

// wire error kind tags, stable across the mesh
const (
	errorKindTimeout           = "timeout"
	errorKindActivationGone    = "activation_gone"
	errorKindActivationFailed  = "activation_failed"
	errorKindKindNotRegistered = "kind_not_registered"
	errorKindSerialization     = "serialization"
	errorKindPanic             = "panic"
	errorKindInternal          = "internal"
)

// invocationSystem converts typed calls on actor handles into wire
// invocations and dispatches inbound invocations onto the execution system.
// Results and errors flow back through the same correlation either way.
type invocationSystem struct {
	serializer  remote.Serializer
	execution   *executionSystem
	leaser      *addressableLeaser
	handler     *messageHandler
	clock       clock.Clock
	logger      log.Logger
	callTimeout time.Duration
}

func newInvocationSystem(serializer remote.Serializer, execution *executionSystem, leaser *addressableLeaser, handler *messageHandler, clk clock.Clock, logger log.Logger, callTimeout time.Duration) *invocationSystem {
	return &invocationSystem{
		serializer:  serializer,
		execution:   execution,
		leaser:      leaser,
		handler:     handler,
		clock:       clk,
		logger:      logger,
		callTimeout: callTimeout,
	}
}

// Invoke issues one outbound invocation and awaits its outcome. The deadline
// is the ctx deadline when set, the configured call timeout otherwise.
func (s *invocationSystem) Invoke(ctx context.Context, addressable *address.Addressable, method string, arg any) (any, error) {
	var payload []byte
	if arg != nil {
		encoded, err := s.serializer.Serialize(arg)
		if err != nil {
			return nil, gerrors.NewErrSerialization(err)
		}
		payload = encoded
	}

	// the mesh routes by lease; holding one is a precondition of the call
	if _, err := s.leaser.Lease(ctx, addressable); err != nil {
		return nil, err
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = s.clock.Now().Add(s.callTimeout)
	}

	request := remote.InvocationRequest{
		Kind:     addressable.Kind(),
		ID:       addressable.ID(),
		Method:   method,
		Payload:  payload,
		Deadline: deadline.UnixMilli(),
	}

	frame, err := s.handler.Request(ctx, remote.FrameInvocationRequest, request, deadline)
	if err != nil {
		return nil, err
	}

	var response remote.InvocationResponse
	if err := frame.DecodeBody(&response); err != nil {
		return nil, err
	}

	if response.Error != nil {
		if response.Error.Kind == errorKindActivationGone {
			// the activation moved on; the stale lease must not route there again
			s.leaser.Evict(addressable)
		}
		return nil, gerrors.NewRemoteError(response.Error.Kind, response.Error.Message)
	}

	if len(response.Payload) == 0 {
		return nil, nil
	}
	result, err := s.serializer.Deserialize(response.Payload)
	if err != nil {
		return nil, gerrors.NewErrSerialization(err)
	}
	return result, nil
}

// HandleInbound decodes one inbound invocation and hands it to the execution
// system. Decode failures are failed back to the caller with the
// serialization kind so both sides observe the same outcome.
func (s *invocationSystem) HandleInbound(frame *remote.Frame) {
	var request remote.InvocationRequest
	if err := frame.DecodeBody(&request); err != nil {
		s.reply(frame.MessageID, nil, gerrors.NewErrSerialization(err))
		return
	}

	addressable, err := address.New(request.Kind, request.ID)
	if err != nil {
		s.reply(frame.MessageID, nil, err)
		return
	}

	var arg any
	if len(request.Payload) > 0 {
		decoded, err := s.serializer.Deserialize(request.Payload)
		if err != nil {
			s.reply(frame.MessageID, nil, gerrors.NewErrSerialization(err))
			return
		}
		arg = decoded
	}

	var deadline time.Time
	if request.Deadline > 0 {
		deadline = time.UnixMilli(request.Deadline)
	}

	msg := &invocationMessage{
		method:    request.Method,
		arg:       arg,
		messageID: frame.MessageID,
		deadline:  deadline,
		reply: func(result any, err error) {
			s.reply(frame.MessageID, result, err)
		},
	}

	if err := s.execution.Enqueue(context.Background(), addressable, msg); err != nil {
		s.reply(frame.MessageID, nil, err)
	}
}

// reply serializes an invocation outcome back into the originating correlation
func (s *invocationSystem) reply(messageID uint64, result any, err error) {
	response := remote.InvocationResponse{}
	switch {
	case err != nil:
		response.Error = &remote.WireError{Kind: errorKind(err), Message: err.Error()}
	case result != nil:
		payload, serr := s.serializer.Serialize(result)
		if serr != nil {
			s.logger.Errorf("failed to serialize invocation result: %v", serr)
			response.Error = &remote.WireError{Kind: errorKindSerialization, Message: serr.Error()}
		} else {
			response.Payload = payload
		}
	}

	frame, ferr := remote.NewFrame(remote.FrameInvocationResponse, messageID, s.handler.nodeID(), response)
	if ferr != nil {
		s.logger.Errorf("failed to build invocation response %d: %v", messageID, ferr)
		return
	}
	s.handler.Reply(frame)
}

// errorKind maps a local error to its stable wire kind tag
func errorKind(err error) string {
	var remoteErr *gerrors.RemoteError
	var panicErr *gerrors.PanicError
	switch {
	case errors.As(err, &remoteErr):
		return remoteErr.Kind()
	case errors.As(err, &panicErr):
		return errorKindPanic
	case errors.Is(err, gerrors.ErrRequestTimeout):
		return errorKindTimeout
	case errors.Is(err, gerrors.ErrActivationGone):
		return errorKindActivationGone
	case errors.Is(err, gerrors.ErrActivationFailed):
		return errorKindActivationFailed
	case errors.Is(err, gerrors.ErrKindNotRegistered):
		return errorKindKindNotRegistered
	case errors.Is(err, gerrors.ErrSerialization):
		return errorKindSerialization
	default:
		return errorKindInternal
	}
}
