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

// Package workerpool provides a fixed-size pool of workers onto which actor
// mailbox drain loops are dispatched. The pool bounds the number of actor
// messages processed concurrently across all activations; per-actor
// serialization is enforced upstream by the mailboxes, not by the pool.
package workerpool

import (
	"fmt"
	"sync"

	"go.uber.org/atomic"
)

const defaultQueueDepth = 1024

// WorkerPool runs submitted tasks on a fixed number of workers.
type WorkerPool struct {
	size         int
	tasks        chan func()
	wg           sync.WaitGroup
	started      *atomic.Bool
	stopped      *atomic.Bool
	panicHandler func(any)
}

// Option configures a WorkerPool
type Option func(*WorkerPool)

// WithPanicHandler sets the function invoked with the recovered value when a
// task panics. When unset panics are swallowed after recovery.
func WithPanicHandler(handler func(any)) Option {
	return func(p *WorkerPool) { p.panicHandler = handler }
}

// WithQueueDepth sets the task queue depth
func WithQueueDepth(depth int) Option {
	return func(p *WorkerPool) {
		if depth > 0 {
			p.tasks = make(chan func(), depth)
		}
	}
}

// New creates a WorkerPool with the given number of workers
func New(size int, opts ...Option) *WorkerPool {
	if size <= 0 {
		size = 1
	}
	pool := &WorkerPool{
		size:    size,
		tasks:   make(chan func(), defaultQueueDepth),
		started: atomic.NewBool(false),
		stopped: atomic.NewBool(false),
	}
	for _, opt := range opts {
		opt(pool)
	}
	return pool
}

// Start spawns the workers. It is a no-op when the pool is already running.
func (p *WorkerPool) Start() {
	if !p.started.CompareAndSwap(false, true) {
		return
	}
	for range p.size {
		p.wg.Add(1)
		go p.work()
	}
}

// Submit hands a task to the pool. It returns false when the pool is stopped.
// Submit blocks when the task queue is full.
func (p *WorkerPool) Submit(task func()) (ok bool) {
	if p.stopped.Load() {
		return false
	}
	// the task channel may be closed between the check above and the send
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	p.tasks <- task
	return true
}

// Stop stops accepting tasks, runs the tasks already queued and waits for the
// workers to exit.
func (p *WorkerPool) Stop() {
	if !p.stopped.CompareAndSwap(false, true) {
		return
	}
	if !p.started.Load() {
		return
	}
	close(p.tasks)
	p.wg.Wait()
}

func (p *WorkerPool) work() {
	defer p.wg.Done()
	for task := range p.tasks {
		p.run(task)
	}
}

func (p *WorkerPool) run(task func()) {
	defer func() {
		if r := recover(); r != nil {
			if p.panicHandler != nil {
				p.panicHandler(r)
				return
			}
			_ = fmt.Sprint(r)
		}
	}()
	task()
}
