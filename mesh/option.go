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
	"time"

	"github.com/benbjohnson/clock"

	"github.com/tochemey/gomesh/log"
	"github.com/tochemey/gomesh/remote"
)

// Option is the interface that applies a configuration option to the client
type Option interface {
	// Apply sets the Option value of a config field
	Apply(cl *Client)
}

var _ Option = OptionFunc(nil)

// OptionFunc implements the Option interface
type OptionFunc func(cl *Client)

// Apply applies the options to the client
func (f OptionFunc) Apply(cl *Client) {
	f(cl)
}

// WithNamespace sets the logical partition advertised to the mesh
func WithNamespace(namespace string) Option {
	return OptionFunc(func(cl *Client) {
		cl.namespace = namespace
	})
}

// WithGRPCEndpoint sets the mesh directory address the default transport dials
func WithGRPCEndpoint(endpoint string) Option {
	return OptionFunc(func(cl *Client) {
		cl.endpoint = endpoint
	})
}

// WithTransport replaces the default gRPC transport. Mostly a testing seam.
func WithTransport(transport remote.Transport) Option {
	return OptionFunc(func(cl *Client) {
		cl.transport = transport
	})
}

// WithSerializer replaces the default CBOR serializer
func WithSerializer(serializer remote.Serializer) Option {
	return OptionFunc(func(cl *Client) {
		cl.serializer = serializer
	})
}

// WithWorkerPoolSize sets the number of workers dispatching actor messages
func WithWorkerPoolSize(size int) Option {
	return OptionFunc(func(cl *Client) {
		cl.poolSize = size
	})
}

// WithTickRate sets the duration between cooperative ticks
func WithTickRate(rate time.Duration) Option {
	return OptionFunc(func(cl *Client) {
		cl.tickRate = rate
	})
}

// WithClock injects the time source. Mostly a testing seam.
func WithClock(clk clock.Clock) Option {
	return OptionFunc(func(cl *Client) {
		cl.clock = clk
	})
}

// WithJoinRetry sets the cluster join retry policy
func WithJoinRetry(attempts int, delay time.Duration) Option {
	return OptionFunc(func(cl *Client) {
		cl.joinAttempts = attempts
		cl.joinDelay = delay
	})
}

// WithAddressableTTL sets the idle timeout after which a host-side activation
// is deactivated
func WithAddressableTTL(ttl time.Duration) Option {
	return OptionFunc(func(cl *Client) {
		cl.addressableTTL = ttl
	})
}

// WithActorKind registers an actor kind this node is willing to host together
// with its factory
func WithActorKind(kind string, factory ActorFactory) Option {
	return OptionFunc(func(cl *Client) {
		cl.registrations[kind] = factory
	})
}

// WithDeactivator sets the host callback invoked while an activation is torn down
func WithDeactivator(deactivator Deactivator) Option {
	return OptionFunc(func(cl *Client) {
		cl.deactivator = deactivator
	})
}

// WithNodeLeaseRenewalFailedHandler sets the host callback invoked once when
// the node membership lease is irrecoverably lost
func WithNodeLeaseRenewalFailedHandler(handler func()) Option {
	return OptionFunc(func(cl *Client) {
		cl.leaseFailedHandler = handler
	})
}

// WithLogger sets the logger
func WithLogger(logger log.Logger) Option {
	return OptionFunc(func(cl *Client) {
		cl.logger = logger
	})
}

// WithCallTimeout sets the default deadline of outbound invocations
func WithCallTimeout(timeout time.Duration) Option {
	return OptionFunc(func(cl *Client) {
		cl.callTimeout = timeout
	})
}

// WithStopTimeout bounds the activation drain during Stop
func WithStopTimeout(timeout time.Duration) Option {
	return OptionFunc(func(cl *Client) {
		cl.stopTimeout = timeout
	})
}

// WithRenewalMargin sets the fraction of the remaining lease duration at which
// a lease is renewed when the mesh does not dictate a renewal instant: the
// renewal falls once (1 - margin) of the remaining duration has elapsed.
// The default renews once half of the lease duration remains.
func WithRenewalMargin(margin float64) Option {
	return OptionFunc(func(cl *Client) {
		cl.renewalMargin = margin
	})
}
