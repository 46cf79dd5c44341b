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

package workerpool

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestPoolRunsTasks(t *testing.T) {
	pool := New(4)
	pool.Start()

	count := atomic.NewInt64(0)
	var wg sync.WaitGroup
	for range 100 {
		wg.Add(1)
		require.True(t, pool.Submit(func() {
			defer wg.Done()
			count.Inc()
		}))
	}
	wg.Wait()
	pool.Stop()

	assert.EqualValues(t, 100, count.Load())
}

func TestPoolStopRejectsSubmissions(t *testing.T) {
	pool := New(2)
	pool.Start()
	pool.Stop()

	assert.False(t, pool.Submit(func() {}))
}

func TestPoolRecoversPanics(t *testing.T) {
	recovered := make(chan any, 1)
	pool := New(1, WithPanicHandler(func(r any) {
		recovered <- r
	}))
	pool.Start()
	defer pool.Stop()

	require.True(t, pool.Submit(func() { panic("task blew up") }))
	assert.Equal(t, "task blew up", <-recovered)
}

func TestPoolStopWithoutStart(t *testing.T) {
	pool := New(2)
	pool.Stop()
}
