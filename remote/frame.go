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
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// FrameType discriminates the body of a Frame
type FrameType uint8

const (
	// FrameJoinRequest asks the directory to admit this node into the mesh
	FrameJoinRequest FrameType = iota + 1
	// FrameJoinResponse carries the directory's answer to a join
	FrameJoinResponse
	// FrameRenewRequest renews the node membership lease
	FrameRenewRequest
	// FrameRenewResponse carries the renewed lease terms
	FrameRenewResponse
	// FrameLeaveRequest releases the node membership lease
	FrameLeaveRequest
	// FrameLeaveResponse acknowledges a leave
	FrameLeaveResponse
	// FrameLeaseRequest acquires or renews an addressable lease
	FrameLeaseRequest
	// FrameLeaseResponse carries the addressable lease terms
	FrameLeaseResponse
	// FrameInvocationRequest carries an actor invocation
	FrameInvocationRequest
	// FrameInvocationResponse carries the result of an actor invocation
	FrameInvocationResponse
)

var frameTypeNames = map[FrameType]string{
	FrameJoinRequest:        "JoinRequest",
	FrameJoinResponse:       "JoinResponse",
	FrameRenewRequest:       "RenewRequest",
	FrameRenewResponse:      "RenewResponse",
	FrameLeaveRequest:       "LeaveRequest",
	FrameLeaveResponse:      "LeaveResponse",
	FrameLeaseRequest:       "AddressableLeaseRequest",
	FrameLeaseResponse:      "AddressableLeaseResponse",
	FrameInvocationRequest:  "InvocationRequest",
	FrameInvocationResponse: "InvocationResponse",
}

// String returns the text representation of the frame type
func (t FrameType) String() string {
	if name, ok := frameTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("FrameType(%d)", uint8(t))
}

// ErrMalformedFrame is returned when a frame cannot be decoded
var ErrMalformedFrame = errors.New("remote: malformed frame")

// Frame is the envelope carried by the message stream. Responses echo the
// MessageID of the request they answer; the client tolerates reordering
// between distinct MessageIDs. NodeID is stamped by the client once it holds
// a membership lease.
type Frame struct {
	Type      FrameType       `cbor:"1,keyasint"`
	MessageID uint64          `cbor:"2,keyasint"`
	NodeID    string          `cbor:"3,keyasint,omitempty"`
	Body      cbor.RawMessage `cbor:"4,keyasint,omitempty"`
}

// NewFrame builds a frame from a typed body
func NewFrame(frameType FrameType, messageID uint64, nodeID string, body any) (*Frame, error) {
	raw, err := cborEncMode.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedFrame, err)
	}
	return &Frame{
		Type:      frameType,
		MessageID: messageID,
		NodeID:    nodeID,
		Body:      raw,
	}, nil
}

// DecodeBody decodes the frame body into the given value
func (f *Frame) DecodeBody(into any) error {
	if err := cborDecMode.Unmarshal(f.Body, into); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedFrame, err)
	}
	return nil
}

// EncodeFrame encodes a frame for transmission
func EncodeFrame(frame *Frame) ([]byte, error) {
	data, err := cborEncMode.Marshal(frame)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedFrame, err)
	}
	return data, nil
}

// DecodeFrame decodes a frame received from the stream
func DecodeFrame(data []byte) (*Frame, error) {
	frame := new(Frame)
	if err := cborDecMode.Unmarshal(data, frame); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedFrame, err)
	}
	if frame.Type == 0 {
		return nil, ErrMalformedFrame
	}
	return frame, nil
}

// JoinRequest asks the directory to admit the node with the given
// capabilities into the namespace. InstanceID is generated once per client
// instance so the directory can collapse duplicate join attempts.
type JoinRequest struct {
	Namespace    string   `cbor:"1,keyasint"`
	Capabilities []string `cbor:"2,keyasint"`
	InstanceID   string   `cbor:"3,keyasint,omitempty"`
}

// JoinResponse carries the assigned node identity and membership lease terms.
// Times are unix milliseconds.
type JoinResponse struct {
	Accepted       bool   `cbor:"1,keyasint"`
	Reason         string `cbor:"2,keyasint,omitempty"`
	NodeID         string `cbor:"3,keyasint,omitempty"`
	LeaseExpiresAt int64  `cbor:"4,keyasint,omitempty"`
	LeaseRenewAt   int64  `cbor:"5,keyasint,omitempty"`
}

// RenewRequest renews the node membership lease
type RenewRequest struct {
	NodeID string `cbor:"1,keyasint"`
}

// RenewResponse carries the renewed membership lease terms
type RenewResponse struct {
	Renewed        bool   `cbor:"1,keyasint"`
	Reason         string `cbor:"2,keyasint,omitempty"`
	LeaseExpiresAt int64  `cbor:"3,keyasint,omitempty"`
	LeaseRenewAt   int64  `cbor:"4,keyasint,omitempty"`
}

// LeaveRequest releases the node membership lease
type LeaveRequest struct {
	NodeID string `cbor:"1,keyasint"`
}

// LeaveResponse acknowledges a leave
type LeaveResponse struct{}

// AddressableLeaseRequest acquires or renews the lease of a single addressable
type AddressableLeaseRequest struct {
	Kind string `cbor:"1,keyasint"`
	ID   string `cbor:"2,keyasint"`
}

// AddressableLeaseResponse carries the addressable lease terms. NodeID names
// the node currently holding the right to serve the addressable.
type AddressableLeaseResponse struct {
	Granted   bool   `cbor:"1,keyasint"`
	Reason    string `cbor:"2,keyasint,omitempty"`
	NodeID    string `cbor:"3,keyasint,omitempty"`
	ExpiresAt int64  `cbor:"4,keyasint,omitempty"`
	RenewAt   int64  `cbor:"5,keyasint,omitempty"`
}

// InvocationRequest carries an actor invocation. Payload holds the
// serializer-encoded argument; Deadline is unix milliseconds.
type InvocationRequest struct {
	Kind     string `cbor:"1,keyasint"`
	ID       string `cbor:"2,keyasint"`
	Method   string `cbor:"3,keyasint"`
	Payload  []byte `cbor:"4,keyasint,omitempty"`
	Deadline int64  `cbor:"5,keyasint,omitempty"`
}

// WireError is the wire form of an invocation error. Kind is a stable tag
// preserved across the mesh so the caller can map it back to a local error.
type WireError struct {
	Kind    string `cbor:"1,keyasint"`
	Message string `cbor:"2,keyasint,omitempty"`
}

// InvocationResponse carries the result of an actor invocation: either the
// serializer-encoded return value or a wire error, never both.
type InvocationResponse struct {
	Payload []byte     `cbor:"1,keyasint,omitempty"`
	Error   *WireError `cbor:"2,keyasint,omitempty"`
}
