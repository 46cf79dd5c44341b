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

	"github.com/tochemey/gomesh/address"
)

// Actor is implemented by host actor instances. The runtime guarantees that
// OnInvoke is never called concurrently for the same activation: messages are
// processed one at a time, in enqueue order.
type Actor interface {
	// OnInvoke handles a single invocation. The argument is the
	// deserialized invocation payload; the returned value is serialized back
	// to the caller. A returned error is surfaced at the caller with its
	// kind tag and message preserved.
	OnInvoke(ctx context.Context, method string, arg any) (any, error)
}

// ActorFactory constructs the instance of an actor when the mesh activates it
// on this node. The factory receives the addressable identity of the
// activation; a returned error fails the activation.
type ActorFactory func(ctx context.Context, addressable *address.Addressable) (Actor, error)

// Deactivator is the host callback invoked while an activation is being torn
// down, after its mailbox has been drained. It may perform async teardown
// bounded by ctx.
type Deactivator func(ctx context.Context, addressable *address.Addressable, instance Actor) error
