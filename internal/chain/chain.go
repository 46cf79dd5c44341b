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

package chain

import (
	"context"

	"go.uber.org/multierr"
)

// Chain runs a sequence of lifecycle steps and collects their errors.
// Steps are evaluated in their insertion order.
type Chain struct {
	returnFirst bool
	errs        []error
	ctx         context.Context
}

// Option configures a chain at creation time.
type Option func(*Chain)

// New creates a new runner chain
func New(opts ...Option) *Chain {
	chain := &Chain{
		errs: make([]error, 0),
		ctx:  context.Background(),
	}

	for _, opt := range opts {
		opt(chain)
	}

	return chain
}

// WithFailFast stops the chain at the first failing runner
func WithFailFast() Option {
	return func(c *Chain) { c.returnFirst = true }
}

// WithContext sets the context passed to context runners
func WithContext(ctx context.Context) Option {
	return func(c *Chain) { c.ctx = ctx }
}

// AddRunner adds a runner to the chain
func (c *Chain) AddRunner(fn func() error) *Chain {
	if c.returnFirst && len(c.errs) > 0 {
		return c
	}

	if err := fn(); err != nil {
		c.errs = append(c.errs, err)
	}

	return c
}

// AddContextRunner adds a context-aware runner to the chain
func (c *Chain) AddContextRunner(fn func(ctx context.Context) error) *Chain {
	if c.returnFirst && len(c.errs) > 0 {
		return c
	}

	if err := fn(c.ctx); err != nil {
		c.errs = append(c.errs, err)
	}

	return c
}

// Run returns the accumulated error of the chain
func (c *Chain) Run() error {
	return multierr.Combine(c.errs...)
}
