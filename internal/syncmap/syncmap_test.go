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

package syncmap

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetGet(t *testing.T) {
	m := New[string, int]()
	m.Set("a", 1)

	value, ok := m.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, value)

	_, ok = m.Get("missing")
	assert.False(t, ok)
	assert.Equal(t, 1, m.Len())
}

func TestGetOrSet(t *testing.T) {
	m := New[string, int]()

	value, loaded := m.GetOrSet("a", 1)
	assert.False(t, loaded)
	assert.Equal(t, 1, value)

	value, loaded = m.GetOrSet("a", 2)
	assert.True(t, loaded)
	assert.Equal(t, 1, value)
}

func TestPop(t *testing.T) {
	m := New[string, int]()
	m.Set("a", 1)

	value, ok := m.Pop("a")
	require.True(t, ok)
	assert.Equal(t, 1, value)

	_, ok = m.Pop("a")
	assert.False(t, ok)
	assert.Zero(t, m.Len())
}

func TestPopConcurrent(t *testing.T) {
	m := New[int, int]()
	m.Set(1, 1)

	// only one winner may pop a given key
	var wg sync.WaitGroup
	winners := make(chan int, 10)
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := m.Pop(1); ok {
				winners <- 1
			}
		}()
	}
	wg.Wait()
	close(winners)

	count := 0
	for range winners {
		count++
	}
	assert.Equal(t, 1, count)
}

func TestRangeKeysValuesReset(t *testing.T) {
	m := New[string, int]()
	m.Set("a", 1)
	m.Set("b", 2)

	seen := make(map[string]int)
	m.Range(func(k string, v int) { seen[k] = v })
	assert.Equal(t, map[string]int{"a": 1, "b": 2}, seen)

	assert.ElementsMatch(t, []string{"a", "b"}, m.Keys())
	assert.ElementsMatch(t, []int{1, 2}, m.Values())

	m.Reset()
	assert.Zero(t, m.Len())
}
