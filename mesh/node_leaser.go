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
	"fmt"
	"time"

	"github.com/benbjohnson/clock"

	gerrors "github.com/tochemey/gomesh/errors"
	"github.com/tochemey/gomesh/log"
	"github.com/tochemey/gomesh/remote"
)

// nodeLeaser acquires, renews and releases the node's membership lease.
// Join and leave happen outside the message channel lifetime and use
// short-lived streams; renewal rides the channel's correlation table.
type nodeLeaser struct {
	localNode      *LocalNode
	transport      remote.Transport
	handler        *messageHandler
	clock          clock.Clock
	logger         log.Logger
	namespace      string
	instanceID     string
	requestTimeout time.Duration
	renewalMargin  float64
}

func newNodeLeaser(localNode *LocalNode, transport remote.Transport, handler *messageHandler, clk clock.Clock, logger log.Logger, namespace, instanceID string, requestTimeout time.Duration, renewalMargin float64) *nodeLeaser {
	return &nodeLeaser{
		localNode:      localNode,
		transport:      transport,
		handler:        handler,
		clock:          clk,
		logger:         logger,
		namespace:      namespace,
		instanceID:     instanceID,
		requestTimeout: requestTimeout,
		renewalMargin:  renewalMargin,
	}
}

// JoinCluster issues a single join request advertising the node capabilities.
// On success the mesh-assigned identity and lease terms are written into the
// local node. Retries are driven by the orchestrator.
func (l *nodeLeaser) JoinCluster(ctx context.Context) error {
	snapshot := l.localNode.Snapshot()
	request := remote.JoinRequest{
		Namespace:    l.namespace,
		Capabilities: snapshot.Capabilities.ToSlice(),
		InstanceID:   l.instanceID,
	}

	frame, err := remote.NewFrame(remote.FrameJoinRequest, l.handler.nextMessageID(), "", request)
	if err != nil {
		return err
	}

	response, err := l.exchange(ctx, frame)
	if err != nil {
		return err
	}

	var join remote.JoinResponse
	if err := response.DecodeBody(&join); err != nil {
		return err
	}
	if !join.Accepted {
		return gerrors.NewErrJoinRejected(join.Reason)
	}

	expiresAt := time.UnixMilli(join.LeaseExpiresAt)
	renewAt := l.renewInstant(time.UnixMilli(join.LeaseRenewAt), expiresAt)

	l.localNode.Manipulate(func(status NodeStatus) NodeStatus {
		status.NodeInfo = &NodeInfo{
			ID:             join.NodeID,
			LeaseExpiresAt: expiresAt,
			LeaseRenewAt:   renewAt,
		}
		return status
	})

	l.logger.Infof("node %s joined namespace %s, lease expires at %s", join.NodeID, l.namespace, expiresAt.Format(time.RFC3339))
	return nil
}

// Tick renews the membership lease once its renewal instant has passed.
// A transient renewal failure is retried on the next tick; the lease expiry
// is the hard bound: past it with no successful renewal the leaser raises
// ErrNodeLeaseRenewalFailed. A renewal the mesh refuses is terminal
// regardless of expiry.
func (l *nodeLeaser) Tick(ctx context.Context) error {
	snapshot := l.localNode.Snapshot()
	info := snapshot.NodeInfo
	if info == nil {
		return nil
	}

	now := l.clock.Now()
	if now.Before(info.LeaseRenewAt) {
		return nil
	}

	err := l.renew(ctx, info)
	switch {
	case err == nil:
		return nil
	case isRenewalRefused(err):
		return fmt.Errorf("%w: %w", gerrors.ErrNodeLeaseRenewalFailed, err)
	case now.After(info.LeaseExpiresAt):
		return fmt.Errorf("%w: %w", gerrors.ErrNodeLeaseRenewalFailed, err)
	default:
		l.logger.Warnf("node lease renewal failed, retrying next tick: %v", err)
		return nil
	}
}

// errRenewalRefused marks a renewal the mesh explicitly refused
type errRenewalRefused struct{ reason string }

func (e *errRenewalRefused) Error() string {
	return fmt.Sprintf("lease renewal refused: %s", e.reason)
}

func isRenewalRefused(err error) bool {
	var refused *errRenewalRefused
	return errors.As(err, &refused)
}

func (l *nodeLeaser) renew(ctx context.Context, info *NodeInfo) error {
	deadline := l.clock.Now().Add(l.requestTimeout)
	if info.LeaseExpiresAt.Before(deadline) {
		deadline = info.LeaseExpiresAt
	}

	response, err := l.handler.Request(ctx, remote.FrameRenewRequest, remote.RenewRequest{NodeID: info.ID}, deadline)
	if err != nil {
		return err
	}

	var renew remote.RenewResponse
	if err := response.DecodeBody(&renew); err != nil {
		return err
	}
	if !renew.Renewed {
		return &errRenewalRefused{reason: renew.Reason}
	}

	expiresAt := time.UnixMilli(renew.LeaseExpiresAt)
	renewAt := l.renewInstant(time.UnixMilli(renew.LeaseRenewAt), expiresAt)

	l.localNode.Manipulate(func(status NodeStatus) NodeStatus {
		if status.NodeInfo == nil {
			return status
		}
		status.NodeInfo.LeaseExpiresAt = expiresAt
		status.NodeInfo.LeaseRenewAt = renewAt
		return status
	})

	l.logger.Debugf("node lease renewed, expires at %s", expiresAt.Format(time.RFC3339))
	return nil
}

// renewInstant falls back to the configured renewal margin when the mesh did
// not provide a renewal instant.
func (l *nodeLeaser) renewInstant(renewAt, expiresAt time.Time) time.Time {
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

// LeaveCluster releases the membership lease. It is best-effort and
// idempotent: a node that never joined returns immediately and errors are
// surfaced for logging only.
func (l *nodeLeaser) LeaveCluster(ctx context.Context) error {
	snapshot := l.localNode.Snapshot()
	info := snapshot.NodeInfo
	if info == nil {
		return nil
	}

	frame, err := remote.NewFrame(remote.FrameLeaveRequest, l.handler.nextMessageID(), info.ID, remote.LeaveRequest{NodeID: info.ID})
	if err != nil {
		return err
	}
	if _, err := l.exchange(ctx, frame); err != nil {
		return err
	}

	l.localNode.Manipulate(func(status NodeStatus) NodeStatus {
		status.NodeInfo = nil
		return status
	})

	l.logger.Infof("node %s left the mesh", info.ID)
	return nil
}

// exchange performs a request/response round-trip on a short-lived stream
func (l *nodeLeaser) exchange(ctx context.Context, frame *remote.Frame) (*remote.Frame, error) {
	stream, err := l.transport.Connect(ctx)
	if err != nil {
		return nil, gerrors.NewErrTransport(err)
	}
	defer func() { _ = stream.Close() }()

	data, err := remote.EncodeFrame(frame)
	if err != nil {
		return nil, err
	}
	if err := stream.Send(data); err != nil {
		return nil, gerrors.NewErrTransport(err)
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := stream.Recv()
		if err != nil {
			return nil, gerrors.NewErrTransport(err)
		}
		response, err := remote.DecodeFrame(data)
		if err != nil {
			return nil, err
		}
		if response.MessageID == frame.MessageID {
			return response, nil
		}
	}
}
