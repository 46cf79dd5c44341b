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
	"sync/atomic"
	"time"
	"unsafe"
)

// invocationMessage is one inbound invocation bound for an activation's
// mailbox. reply routes the outcome back through the originating correlation.
type invocationMessage struct {
	method    string
	arg       any
	messageID uint64
	deadline  time.Time
	reply     func(result any, err error)
}

type mailboxNode struct {
	value *invocationMessage
	next  *mailboxNode
}

// mailbox is the per-activation FIFO queue. Enqueue is safe for concurrent
// producers; Dequeue may be used by a single consumer goroutine only, which
// is what yields the per-actor serialization guarantee.
type mailbox struct {
	head, tail *mailboxNode
	length     int64
}

func newMailbox() *mailbox {
	item := new(mailboxNode)
	return &mailbox{
		head:   item,
		tail:   item,
		length: 0,
	}
}

// Enqueue places the given message in the mailbox
func (m *mailbox) Enqueue(value *invocationMessage) {
	tnode := &mailboxNode{
		value: value,
	}
	previousHead := (*mailboxNode)(atomic.SwapPointer((*unsafe.Pointer)(unsafe.Pointer(&m.head)), unsafe.Pointer(tnode)))
	atomic.StorePointer((*unsafe.Pointer)(unsafe.Pointer(&previousHead.next)), unsafe.Pointer(tnode))
	atomic.AddInt64(&m.length, 1)
}

// Dequeue takes the next message from the mailbox.
// Returns nil if the mailbox is empty. Can be used in a single consumer
// (goroutine) only.
func (m *mailbox) Dequeue() *invocationMessage {
	next := (*mailboxNode)(atomic.LoadPointer((*unsafe.Pointer)(unsafe.Pointer(&m.tail.next))))
	if next == nil {
		return nil
	}

	m.tail = next
	value := next.value
	next.value = nil
	atomic.AddInt64(&m.length, -1)
	return value
}

// Len returns mailbox length
func (m *mailbox) Len() int64 {
	return atomic.LoadInt64(&m.length)
}

// IsEmpty returns true when the mailbox is empty
func (m *mailbox) IsEmpty() bool {
	return atomic.LoadInt64(&m.length) == 0
}
