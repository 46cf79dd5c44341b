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

package remote

// Serializer is the extension point for plugging a custom wire format into
// the mesh client's invocation layer. It encodes invocation arguments and
// results into self-describing byte slices and decodes them back into Go
// values on the receiving side.
//
// Because the receiving node must reconstruct the correct Go type without
// out-of-band coordination, the encoded bytes must embed enough information
// (e.g. a registered type name) for Deserialize to determine which concrete
// type to instantiate.
//
// A single Serializer instance may be called from multiple goroutines
// concurrently. Implementations must be safe for concurrent use without
// external synchronization.
type Serializer interface {
	// Serialize encodes message into a byte slice suitable for transmission
	// over the network.
	//
	// Returns the encoded bytes and a nil error on success.
	// Returns a nil slice and a descriptive non-nil error on failure.
	Serialize(message any) ([]byte, error)

	// Deserialize decodes data produced by [Serializer.Serialize] and returns
	// the original Go value. Registered struct types are returned as a
	// pointer to the registered type; unregistered values are decoded
	// generically.
	//
	// Returns the decoded value and a nil error on success.
	// Returns nil and a descriptive non-nil error on failure.
	Deserialize(data []byte) (any, error)
}
