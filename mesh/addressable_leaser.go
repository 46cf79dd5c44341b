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

	"github.com/tochemey/gomesh/address"
	gerrors "github.com/tochemey/gomesh/errors"
	"github.com/tochemey/gomesh/internal/syncmap"
	"github.com/tochemey/gomesh/log"
	"github.com/tochemey/gomesh/remote"
)

// AddressableLease is the time-bounded right to route to, or serve, a single
// addressable. NodeID names the node currently holding the activation.
type AddressableLease struct {
	Addressable *address.Addressable
	NodeID      string
	ExpiresAt   time.Time
	RenewAt     time.Time
}

// addressableLeaser mirrors the node leaser at actor granularity. Leases are
// cached by addressable, refreshed in the background once their renewal
// instant has passed and lazily evicted on expired access. Memory stays
// bounded because leases exist only for addressables the host actually uses.
type addressableLeaser struct {
	leases        *syncmap.SyncMap[string, *AddressableLease]
	renewing      *syncmap.SyncMap[string, bool]
	handler       *messageHandler
	clock         clock.Clock
	logger        log.Logger
	leaseTimeout  time.Duration
	renewalMargin float64
}

func newAddressableLeaser(handler *messageHandler, clk clock.Clock, logger log.Logger, leaseTimeout time.Duration, renewalMargin float64) *addressableLeaser {
	return &addressableLeaser{
		leases:        syncmap.New[string, *AddressableLease](),
		renewing:      syncmap.New[string, bool](),
		handler:       handler,
		clock:         clk,
		logger:        logger,
		leaseTimeout:  leaseTimeout,
		renewalMargin: renewalMargin,
	}
}

// Lease returns a live lease for the addressable, consulting the cache first.
// A cached lease near its renewal instant is returned as-is while a renewal
// runs in the background; an expired entry is evicted and re-acquired.
func (l *addressableLeaser) Lease(ctx context.Context, addressable *address.Addressable) (*AddressableLease, error) {
	key := addressable.String()
	now := l.clock.Now()

	if lease, ok := l.leases.Get(key); ok {
		if now.Before(lease.ExpiresAt) {
			if !now.Before(lease.RenewAt) {
				l.renewInBackground(addressable)
			}
			return lease, nil
		}
		l.leases.Delete(key)
	}

	return l.acquire(ctx, addressable)
}

func (l *addressableLeaser) acquire(ctx context.Context, addressable *address.Addressable) (*AddressableLease, error) {
	deadline := l.clock.Now().Add(l.leaseTimeout)
	request := remote.AddressableLeaseRequest{
		Kind: addressable.Kind(),
		ID:   addressable.ID(),
	}

	response, err := l.handler.Request(ctx, remote.FrameLeaseRequest, request, deadline)
	if err != nil {
		return nil, err
	}

	var grant remote.AddressableLeaseResponse
	if err := response.DecodeBody(&grant); err != nil {
		return nil, err
	}
	if !grant.Granted {
		return nil, gerrors.NewErrLeaseRejected(grant.Reason)
	}

	expiresAt := time.UnixMilli(grant.ExpiresAt)
	lease := &AddressableLease{
		Addressable: addressable,
		NodeID:      grant.NodeID,
		ExpiresAt:   expiresAt,
		RenewAt:     l.renewInstant(time.UnixMilli(grant.RenewAt), expiresAt),
	}
	l.leases.Set(addressable.String(), lease)
	return lease, nil
}

func (l *addressableLeaser) renewInstant(renewAt, expiresAt time.Time) time.Time {
	if renewAt.UnixMilli() > 0 {
		return renewAt
	}
	now := l.clock.Now()
	remaining := expiresAt.Sub(now)
	if remaining <= 0 {
		return now
	}
	return now.Add(time.Duration(float64(remaining) * (1 - l.renewalMargin)))
}

// renewInBackground refreshes a lease opportunistically before expiry.
// At most one renewal is in flight per addressable.
func (l *addressableLeaser) renewInBackground(addressable *address.Addressable) {
	key := addressable.String()
	if _, inFlight := l.renewing.GetOrSet(key, true); inFlight {
		return
	}
	go func() {
		defer l.renewing.Delete(key)
		ctx, cancel := context.WithTimeout(context.Background(), l.leaseTimeout)
		defer cancel()
		if _, err := l.acquire(ctx, addressable); err != nil {
			l.logger.Warnf("background lease renewal of %s failed: %v", key, err)
		}
	}()
}

// RenewalDue reports whether the cached lease of the addressable has reached
// its renewal instant
func (l *addressableLeaser) RenewalDue(addressable *address.Addressable, now time.Time) bool {
	lease, ok := l.leases.Get(addressable.String())
	if !ok {
		return false
	}
	return !now.Before(lease.RenewAt)
}

// Renew refreshes the lease of the addressable synchronously
func (l *addressableLeaser) Renew(ctx context.Context, addressable *address.Addressable) error {
	_, err := l.acquire(ctx, addressable)
	return err
}

// Evict drops the cached lease of the addressable
func (l *addressableLeaser) Evict(addressable *address.Addressable) {
	l.leases.Delete(addressable.String())
}

// reset drops every cached lease
func (l *addressableLeaser) reset() {
	l.leases.Reset()
}
