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

import "context"

// Transport opens framed bidirectional streams to the mesh directory.
// The client uses one long-lived stream for its message channel and
// short-lived streams for the join and leave exchanges that happen outside
// the channel's lifetime.
type Transport interface {
	// Connect opens a new stream. The stream outlives ctx; ctx only bounds
	// the connection attempt.
	Connect(ctx context.Context) (Stream, error)

	// Close releases the transport resources. Streams opened by Connect are
	// unusable afterwards.
	Close() error
}

// Stream is a single framed bidirectional byte stream. Frame order is
// preserved within the stream in each direction. Send and Recv may be called
// concurrently with each other but neither is safe for concurrent use with
// itself.
type Stream interface {
	// Send writes one frame to the stream
	Send(frame []byte) error

	// Recv blocks until the next frame arrives or the stream fails
	Recv() ([]byte, error)

	// Close tears the stream down. Recv unblocks with an error.
	Close() error
}
