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
	"io"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/tochemey/gomesh/address"
	"github.com/tochemey/gomesh/remote"
)

// forwardBase keeps mesh-generated message ids clear of the client's own sequence
const forwardBase = uint64(1) << 32

// fakeMesh is an in-memory mesh directory speaking the wire protocol over
// loopback streams. Invocation requests are routed back down the stream they
// arrived on, which makes the single test client both caller and host.
type fakeMesh struct {
	rejectJoin          bool
	refuseRenew         *atomic.Bool
	suppressInvocations *atomic.Bool
	leaseTTL            time.Duration

	joinCount  *atomic.Int64
	leaveCount *atomic.Int64
	forwardSeq *atomic.Uint64

	mu       sync.Mutex
	forwards map[uint64]uint64
	streams  []*fakeStream
	closed   bool
}

// enforce compilation error
var _ remote.Transport = (*fakeMesh)(nil)

func newFakeMesh() *fakeMesh {
	return &fakeMesh{
		refuseRenew:         atomic.NewBool(false),
		suppressInvocations: atomic.NewBool(false),
		leaseTTL:            time.Minute,
		joinCount:           atomic.NewInt64(0),
		leaveCount:          atomic.NewInt64(0),
		forwardSeq:          atomic.NewUint64(0),
		forwards:            make(map[uint64]uint64),
	}
}

func (m *fakeMesh) Connect(context.Context) (remote.Stream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, io.ErrClosedPipe
	}
	stream := &fakeStream{
		toMesh:   make(chan []byte, 1024),
		toClient: make(chan []byte, 1024),
		closed:   make(chan struct{}),
	}
	m.streams = append(m.streams, stream)
	go m.serve(stream)
	return stream, nil
}

func (m *fakeMesh) Close() error {
	m.mu.Lock()
	streams := m.streams
	m.streams = nil
	m.closed = true
	m.mu.Unlock()
	for _, stream := range streams {
		_ = stream.Close()
	}
	return nil
}

// serve handles the frames of one stream sequentially
func (m *fakeMesh) serve(stream *fakeStream) {
	for {
		select {
		case data := <-stream.toMesh:
			m.handle(stream, data)
		case <-stream.closed:
			return
		}
	}
}

func (m *fakeMesh) handle(stream *fakeStream, data []byte) {
	frame, err := remote.DecodeFrame(data)
	if err != nil {
		return
	}

	now := time.Now()
	expiresAt := now.Add(m.leaseTTL).UnixMilli()
	renewAt := now.Add(m.leaseTTL / 2).UnixMilli()

	switch frame.Type {
	case remote.FrameJoinRequest:
		m.joinCount.Inc()
		if m.rejectJoin {
			m.respond(stream, remote.FrameJoinResponse, frame.MessageID, remote.JoinResponse{
				Accepted: false,
				Reason:   "node quota exceeded",
			})
			return
		}
		m.respond(stream, remote.FrameJoinResponse, frame.MessageID, remote.JoinResponse{
			Accepted:       true,
			NodeID:         "node-1",
			LeaseExpiresAt: expiresAt,
			LeaseRenewAt:   renewAt,
		})

	case remote.FrameRenewRequest:
		if m.refuseRenew.Load() {
			m.respond(stream, remote.FrameRenewResponse, frame.MessageID, remote.RenewResponse{
				Renewed: false,
				Reason:  "lease lost",
			})
			return
		}
		m.respond(stream, remote.FrameRenewResponse, frame.MessageID, remote.RenewResponse{
			Renewed:        true,
			LeaseExpiresAt: expiresAt,
			LeaseRenewAt:   renewAt,
		})

	case remote.FrameLeaveRequest:
		m.leaveCount.Inc()
		m.respond(stream, remote.FrameLeaveResponse, frame.MessageID, remote.LeaveResponse{})

	case remote.FrameLeaseRequest:
		m.respond(stream, remote.FrameLeaseResponse, frame.MessageID, remote.AddressableLeaseResponse{
			Granted:   true,
			NodeID:    "node-1",
			ExpiresAt: expiresAt,
			RenewAt:   renewAt,
		})

	case remote.FrameInvocationRequest:
		if m.suppressInvocations.Load() {
			return
		}
		forwardID := forwardBase + m.forwardSeq.Inc()
		m.mu.Lock()
		m.forwards[forwardID] = frame.MessageID
		m.mu.Unlock()
		forwarded := &remote.Frame{
			Type:      remote.FrameInvocationRequest,
			MessageID: forwardID,
			NodeID:    "mesh",
			Body:      frame.Body,
		}
		m.deliver(stream, forwarded)

	case remote.FrameInvocationResponse:
		m.mu.Lock()
		originID, ok := m.forwards[frame.MessageID]
		delete(m.forwards, frame.MessageID)
		m.mu.Unlock()
		if !ok {
			return
		}
		m.deliver(stream, &remote.Frame{
			Type:      remote.FrameInvocationResponse,
			MessageID: originID,
			NodeID:    "mesh",
			Body:      frame.Body,
		})
	}
}

func (m *fakeMesh) respond(stream *fakeStream, frameType remote.FrameType, messageID uint64, body any) {
	frame, err := remote.NewFrame(frameType, messageID, "mesh", body)
	if err != nil {
		return
	}
	m.deliver(stream, frame)
}

func (m *fakeMesh) deliver(stream *fakeStream, frame *remote.Frame) {
	data, err := remote.EncodeFrame(frame)
	if err != nil {
		return
	}
	select {
	case stream.toClient <- data:
	case <-stream.closed:
	}
}

// fakeStream is one loopback stream between the client and the fake mesh
type fakeStream struct {
	toMesh   chan []byte
	toClient chan []byte
	closed   chan struct{}
	once     sync.Once
}

// enforce compilation error
var _ remote.Stream = (*fakeStream)(nil)

func (s *fakeStream) Send(frame []byte) error {
	select {
	case <-s.closed:
		return io.ErrClosedPipe
	case s.toMesh <- frame:
		return nil
	}
}

func (s *fakeStream) Recv() ([]byte, error) {
	select {
	case <-s.closed:
		return nil, io.EOF
	case data := <-s.toClient:
		return data, nil
	}
}

func (s *fakeStream) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

// greeter is a happy-path test actor
type greeter struct{}

func (greeter) OnInvoke(_ context.Context, method string, arg any) (any, error) {
	if method != "hello" {
		return nil, fmt.Errorf("unknown method %s", method)
	}
	name, _ := arg.(string)
	return "hi," + name, nil
}

func greeterFactory(context.Context, *address.Addressable) (Actor, error) {
	return greeter{}, nil
}

// recorder logs enter/exit events so tests can assert per-actor serialization
type recorder struct {
	mu     *sync.Mutex
	events *[]string
}

func (r recorder) OnInvoke(_ context.Context, _ string, arg any) (any, error) {
	label, _ := arg.(string)
	r.mu.Lock()
	*r.events = append(*r.events, "enter:"+label)
	r.mu.Unlock()

	time.Sleep(100 * time.Microsecond)

	r.mu.Lock()
	*r.events = append(*r.events, "exit:"+label)
	r.mu.Unlock()
	return nil, nil
}
