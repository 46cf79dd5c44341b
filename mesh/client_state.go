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

// ClientState describes where the client is in its lifecycle.
//
// Transitions are monotone: Idle → Connecting → Connected → Stopping → Stopped,
// with a single shortcut Connecting → Idle when the cluster join fails.
// A stopped client cannot be restarted.
type ClientState uint8

const (
	// StateIdle is the initial state, before Start
	StateIdle ClientState = iota
	// StateConnecting is set while the client scans capabilities, joins the
	// cluster and opens the message channel
	StateConnecting
	// StateConnected is the steady state: the node holds a membership lease
	// and the ticker is running
	StateConnected
	// StateStopping is set while the client drains activations and leaves the mesh
	StateStopping
	// StateStopped is terminal
	StateStopped
)

var clientStateNames = map[ClientState]string{
	StateIdle:       "IDLE",
	StateConnecting: "CONNECTING",
	StateConnected:  "CONNECTED",
	StateStopping:   "STOPPING",
	StateStopped:    "STOPPED",
}

// String returns the text representation of the client state
func (s ClientState) String() string {
	if name, ok := clientStateNames[s]; ok {
		return name
	}
	return "UNKNOWN"
}
