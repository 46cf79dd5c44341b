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

// Package errors defines the error taxonomy of the mesh client runtime.
package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrTransport indicates a transient connectivity issue on the message
	// stream. The connection handler recovers it by reconnecting.
	ErrTransport = errors.New("transport failure")

	// ErrStreamClosed is returned when a frame is written to or read from a
	// message stream that has been closed.
	ErrStreamClosed = errors.New("message stream is closed")

	// ErrRequestTimeout indicates that an outbound invocation timed out while
	// waiting for its response.
	ErrRequestTimeout = errors.New("request timed out")

	// ErrJoinRejected is returned when the mesh directory refuses a join request.
	ErrJoinRejected = errors.New("cluster join rejected")

	// ErrClusterJoinFailed is returned when the cluster join retries are exhausted.
	ErrClusterJoinFailed = errors.New("cluster join failed")

	// ErrNodeLeaseRenewalFailed indicates the node membership lease is
	// irrecoverably lost. It triggers the host lease-failure handler and stops
	// the client.
	ErrNodeLeaseRenewalFailed = errors.New("node lease renewal failed")

	// ErrLeaseRejected is returned when the mesh refuses an addressable lease.
	ErrLeaseRejected = errors.New("addressable lease rejected")

	// ErrActivationFailed indicates the host constructor of an addressable failed.
	ErrActivationFailed = errors.New("activation failed")

	// ErrActivationGone is returned to callers whose messages targeted an
	// activation that has been deactivated or is draining.
	ErrActivationGone = errors.New("activation is gone")

	// ErrSerialization indicates a malformed invocation payload. The
	// invocation is failed with this kind on both sides of the wire.
	ErrSerialization = errors.New("serialization failure")

	// ErrDefinitionAlreadySetup is returned when the definition directory is
	// set up more than once.
	ErrDefinitionAlreadySetup = errors.New("definition directory is already setup")

	// ErrDefinitionNotSetup is returned when the definition directory is
	// queried before setup.
	ErrDefinitionNotSetup = errors.New("definition directory is not setup")

	// ErrKindNotRegistered is returned when an actor kind is not part of the
	// node capabilities.
	ErrKindNotRegistered = errors.New("actor kind is not registered")

	// ErrClientAlreadyStarted is returned when Start is called on a client
	// that is already running.
	ErrClientAlreadyStarted = errors.New("mesh client is already started")

	// ErrClientNotStarted is returned when the client is used before Start.
	ErrClientNotStarted = errors.New("mesh client is not started")

	// ErrClientStopped is returned for operations issued after the client has
	// been stopped. A stopped client cannot be restarted.
	ErrClientStopped = errors.New("mesh client is stopped")

	// ErrEndpointRequired is returned when neither a mesh endpoint nor a
	// custom transport is configured.
	ErrEndpointRequired = errors.New("mesh endpoint is required")

	// ErrInvalidTimeout is returned when a timeout value is less than or equal to zero.
	ErrInvalidTimeout = errors.New("invalid timeout")
)

// NewErrTransport wraps err as a transport failure
func NewErrTransport(err error) error {
	return fmt.Errorf("%w: %w", ErrTransport, err)
}

// NewErrJoinRejected returns a join rejection carrying the directory reason
func NewErrJoinRejected(reason string) error {
	return fmt.Errorf("%w: %s", ErrJoinRejected, reason)
}

// NewErrLeaseRejected returns a lease rejection carrying the directory reason
func NewErrLeaseRejected(reason string) error {
	return fmt.Errorf("%w: %s", ErrLeaseRejected, reason)
}

// NewErrActivationFailed wraps err as an activation failure
func NewErrActivationFailed(err error) error {
	return fmt.Errorf("%w: %w", ErrActivationFailed, err)
}

// NewErrSerialization wraps err as a serialization failure
func NewErrSerialization(err error) error {
	return fmt.Errorf("%w: %w", ErrSerialization, err)
}

// NewErrKindNotRegistered returns a kind registration error naming the kind
func NewErrKindNotRegistered(kind string) error {
	return fmt.Errorf("%w: %s", ErrKindNotRegistered, kind)
}

// RemoteError is an error that originated at the remote actor. The original
// error kind tag and message are preserved across the wire.
type RemoteError struct {
	kind    string
	message string
}

// NewRemoteError creates a RemoteError from a kind tag and a message
func NewRemoteError(kind, message string) *RemoteError {
	return &RemoteError{kind: kind, message: message}
}

// Kind returns the remote error kind tag
func (e *RemoteError) Kind() string {
	return e.kind
}

// Message returns the remote error message
func (e *RemoteError) Message() string {
	return e.message
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote error [%s]: %s", e.kind, e.message)
}

// PanicError defines an error wrapping a panic recovered from an actor method
// or a tick. It keeps the original cause available via Unwrap.
type PanicError struct {
	err error
}

// NewPanicError creates a PanicError from the recovered cause
func NewPanicError(err error) *PanicError {
	return &PanicError{err: err}
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.err)
}

// Unwrap returns the wrapped cause
func (e *PanicError) Unwrap() error {
	return e.err
}
