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
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
)

// NodeInfo holds the mesh-assigned identity of this node and the terms of its
// membership lease.
type NodeInfo struct {
	// ID is the opaque identifier assigned by the mesh at join
	ID string
	// LeaseExpiresAt is the instant the membership lease lapses
	LeaseExpiresAt time.Time
	// LeaseRenewAt is the instant from which the lease should be renewed
	LeaseRenewAt time.Time
}

func (i *NodeInfo) copyOf() *NodeInfo {
	if i == nil {
		return nil
	}
	clone := *i
	return &clone
}

// NodeStatus is the node-level state record: mesh identity, advertised
// capabilities and the lifecycle state. Instances returned by
// [LocalNode.Snapshot] are consistent copies and safe to retain.
type NodeStatus struct {
	// NodeInfo is nil before the node joined the mesh
	NodeInfo *NodeInfo
	// Capabilities is the set of actor kinds this node advertises
	Capabilities mapset.Set[string]
	// State is the client lifecycle state
	State ClientState
}

func (s NodeStatus) copyOf() NodeStatus {
	return NodeStatus{
		NodeInfo:     s.NodeInfo.copyOf(),
		Capabilities: s.Capabilities.Clone(),
		State:        s.State,
	}
}

// LocalNode is the sole mutation point for node-level state. All writes go
// through Manipulate, which serializes them; readers observe consistent
// snapshots taken atomically with respect to Manipulate.
type LocalNode struct {
	mu     sync.Mutex
	status NodeStatus
}

// NewLocalNode creates a LocalNode in the Idle state with no capabilities and
// no mesh identity.
func NewLocalNode() *LocalNode {
	return &LocalNode{
		status: NodeStatus{
			Capabilities: mapset.NewSet[string](),
			State:        StateIdle,
		},
	}
}

// Snapshot returns a consistent copy of the node status
func (n *LocalNode) Snapshot() NodeStatus {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.status.copyOf()
}

// Manipulate applies f to the node status. f must be a pure transformation:
// it runs under the node lock and must not block.
func (n *LocalNode) Manipulate(f func(NodeStatus) NodeStatus) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.status = f(n.status.copyOf())
}

// State returns the current lifecycle state
func (n *LocalNode) State() ClientState {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.status.State
}

// NodeID returns the mesh-assigned node identifier, empty before join
func (n *LocalNode) NodeID() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.status.NodeInfo == nil {
		return ""
	}
	return n.status.NodeInfo.ID
}

// Reset returns the node to Idle with no capabilities and no mesh identity
func (n *LocalNode) Reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.status = NodeStatus{
		Capabilities: mapset.NewSet[string](),
		State:        StateIdle,
	}
}
