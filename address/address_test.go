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

package address

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		addressable, err := New("IGreeter", "user-42")
		require.NoError(t, err)
		assert.Equal(t, "IGreeter", addressable.Kind())
		assert.Equal(t, "user-42", addressable.ID())
		assert.Equal(t, "IGreeter/user-42", addressable.String())
	})
	t.Run("empty kind", func(t *testing.T) {
		addressable, err := New("", "user-42")
		require.Error(t, err)
		assert.Nil(t, addressable)
	})
	t.Run("empty id", func(t *testing.T) {
		addressable, err := New("IGreeter", "")
		require.Error(t, err)
		assert.Nil(t, addressable)
	})
	t.Run("invalid kind", func(t *testing.T) {
		addressable, err := New("-IGreeter", "user-42")
		require.Error(t, err)
		assert.Nil(t, addressable)
	})
	t.Run("id too long", func(t *testing.T) {
		addressable, err := New("IGreeter", strings.Repeat("x", 256))
		require.Error(t, err)
		assert.Nil(t, addressable)
	})
}

func TestParse(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		addressable, err := New("IGreeter", "user/42")
		require.NoError(t, err)
		parsed, err := Parse(addressable.String())
		require.NoError(t, err)
		assert.True(t, addressable.Equal(parsed))
	})
	t.Run("missing separator", func(t *testing.T) {
		parsed, err := Parse("IGreeter")
		require.ErrorIs(t, err, ErrInvalidAddressable)
		assert.Nil(t, parsed)
	})
}

func TestEqual(t *testing.T) {
	a, err := New("IGreeter", "a")
	require.NoError(t, err)
	b, err := New("IGreeter", "a")
	require.NoError(t, err)
	c, err := New("IGreeter", "b")
	require.NoError(t, err)

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.False(t, a.Equal(nil))
}
