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

package remote

import (
	"context"
	"crypto/tls"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/backoff"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
)

const (
	// channelMethod is the full method name of the directory's framed
	// bidirectional channel.
	channelMethod = "/gomesh.v1.MeshDirectory/Channel"

	defaultMaxMsgSize      = 10 * 1024 * 1024
	defaultBackoffMaxDelay = 5 * time.Second
	defaultKeepaliveTime   = 1200 * time.Second
)

// channelStreamDesc describes the directory channel. The channel carries
// opaque CBOR frames, so there is no generated service definition; the stream
// is opened directly with a raw-bytes codec.
var channelStreamDesc = &grpc.StreamDesc{
	StreamName:    "Channel",
	ClientStreams: true,
	ServerStreams: true,
}

// GRPCTransport is the default Transport. It dials the mesh directory's gRPC
// endpoint once and opens every stream on the shared client connection.
type GRPCTransport struct {
	endpoint         string
	maxReceivMsgSize int
	maxSendMsgSize   int
	tlsConfig        *tls.Config

	mu   sync.Mutex
	conn *grpc.ClientConn
}

// enforce compilation error
var _ Transport = (*GRPCTransport)(nil)

// GRPCOption configures the GRPCTransport
type GRPCOption func(*GRPCTransport)

// WithTLS sets the TLS configuration of the transport. Without it the
// transport dials with insecure credentials.
func WithTLS(config *tls.Config) GRPCOption {
	return func(t *GRPCTransport) { t.tlsConfig = config }
}

// WithMaxRecvMsgSize sets the maximum receive message size
func WithMaxRecvMsgSize(size int) GRPCOption {
	return func(t *GRPCTransport) { t.maxReceivMsgSize = size }
}

// WithMaxSendMsgSize sets the maximum send message size
func WithMaxSendMsgSize(size int) GRPCOption {
	return func(t *GRPCTransport) { t.maxSendMsgSize = size }
}

// NewGRPCTransport creates a transport dialing the given endpoint
func NewGRPCTransport(endpoint string, opts ...GRPCOption) *GRPCTransport {
	transport := &GRPCTransport{
		endpoint:         endpoint,
		maxReceivMsgSize: defaultMaxMsgSize,
		maxSendMsgSize:   defaultMaxMsgSize,
	}
	for _, opt := range opts {
		opt(transport)
	}
	return transport
}

// Connect opens a new channel stream on the shared client connection
func (t *GRPCTransport) Connect(ctx context.Context) (Stream, error) {
	conn, err := t.clientConn()
	if err != nil {
		return nil, err
	}

	// the stream must outlive ctx which only bounds the connection attempt
	streamCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stream, err := conn.NewStream(streamCtx, channelStreamDesc, channelMethod, grpc.ForceCodec(rawCodec{}))
	if err != nil {
		cancel()
		return nil, err
	}

	return &grpcStream{
		stream: stream,
		cancel: cancel,
	}, nil
}

// Close tears down the shared client connection
func (t *GRPCTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	return err
}

func (t *GRPCTransport) clientConn() (*grpc.ClientConn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn != nil {
		return t.conn, nil
	}

	backoffConfig := backoff.DefaultConfig
	backoffConfig.MaxDelay = defaultBackoffMaxDelay

	dialOpts := []grpc.DialOption{
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                defaultKeepaliveTime,
			PermitWithoutStream: true,
		}),
		grpc.WithConnectParams(grpc.ConnectParams{
			Backoff: backoffConfig,
		}),
		grpc.WithDefaultCallOptions(
			grpc.MaxCallRecvMsgSize(t.maxReceivMsgSize),
			grpc.MaxCallSendMsgSize(t.maxSendMsgSize),
		),
	}

	if t.tlsConfig != nil {
		dialOpts = append(dialOpts, grpc.WithTransportCredentials(credentials.NewTLS(t.tlsConfig)))
	} else {
		dialOpts = append(dialOpts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}

	conn, err := grpc.NewClient(t.endpoint, dialOpts...)
	if err != nil {
		return nil, err
	}
	t.conn = conn
	return conn, nil
}

// grpcStream adapts a grpc.ClientStream to the Stream interface
type grpcStream struct {
	stream grpc.ClientStream
	cancel context.CancelFunc
}

// enforce compilation error
var _ Stream = (*grpcStream)(nil)

func (s *grpcStream) Send(frame []byte) error {
	msg := rawMessage(frame)
	return s.stream.SendMsg(&msg)
}

func (s *grpcStream) Recv() ([]byte, error) {
	var msg rawMessage
	if err := s.stream.RecvMsg(&msg); err != nil {
		return nil, err
	}
	return msg, nil
}

func (s *grpcStream) Close() error {
	err := s.stream.CloseSend()
	s.cancel()
	return err
}

// rawMessage is the opaque frame payload moved through the raw codec
type rawMessage []byte

// rawCodec moves frames through gRPC without protobuf marshaling
type rawCodec struct{}

func (rawCodec) Marshal(v any) ([]byte, error) {
	msg := v.(*rawMessage)
	return *msg, nil
}

func (rawCodec) Unmarshal(data []byte, v any) error {
	msg := v.(*rawMessage)
	*msg = make([]byte, len(data))
	copy(*msg, data)
	return nil
}

func (rawCodec) Name() string {
	return "gomesh-raw"
}
