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

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/fxamacker/cbor/v2"

	"github.com/tochemey/gomesh/internal/registry"
)

// typesRegistry is the global type registry used by all [CBORSerializer]
// instances to resolve Go types from their wire names on the receive path.
// Receive-only types are registered via [RegisterSerializableTypes].
var typesRegistry = registry.NewRegistry()

// CBORSerializer errors.
var (
	// ErrCBORNilMessage is returned by [CBORSerializer.Serialize] when the
	// supplied message is nil.
	ErrCBORNilMessage = errors.New("remote: CBOR message is nil")

	// ErrCBORSerializeFailed is returned when CBOR marshaling fails. It wraps
	// the underlying CBOR library error.
	ErrCBORSerializeFailed = errors.New("remote: failed to serialize CBOR message")

	// ErrCBORDeserializeFailed is returned when CBOR unmarshaling fails. It
	// wraps the underlying CBOR library error.
	ErrCBORDeserializeFailed = errors.New("remote: failed to deserialize CBOR message")

	// ErrCBORTypeNotRegistered is returned when the message type is not in the
	// global types registry. Register types via [RegisterSerializableTypes].
	ErrCBORTypeNotRegistered = errors.New("remote: CBOR type not registered")
)

var (
	cborEncOpts = cbor.EncOptions{
		Sort:        cbor.SortNone,
		IndefLength: cbor.IndefLengthForbidden,
		Time:        cbor.TimeUnixDynamic,
	}
	cborDecOpts = cbor.DecOptions{
		MaxNestedLevels: 64,
		IndefLength:     cbor.IndefLengthForbidden,
		UTF8:            cbor.UTF8DecodeInvalid,
	}

	cborEncMode, _ = cborEncOpts.EncMode()
	cborDecMode, _ = cborDecOpts.DecMode()
)

// RegisterSerializableTypes registers concrete message types with the global
// types registry so the receive path can reconstruct them. Passing a pointer
// or a value of the type are equivalent.
func RegisterSerializableTypes(values ...any) {
	for _, value := range values {
		typesRegistry.Register(value)
	}
}

// cborEnvelope is the self-describing wire form of a serialized value.
// TypeName is empty for values decoded generically.
type cborEnvelope struct {
	TypeName string          `cbor:"1,keyasint,omitempty"`
	Data     cbor.RawMessage `cbor:"2,keyasint"`
}

// CBORSerializer is a [Serializer] implementation that encodes and decodes
// arbitrary Go values using the Concise Binary Object Representation (CBOR)
// in a self-describing envelope. The envelope embeds the message's registered
// type name so the receiver can reconstruct the concrete Go type at runtime;
// values of unregistered types round-trip through CBOR's generic decoding.
type CBORSerializer struct{}

// enforce compilation error
var _ Serializer = (*CBORSerializer)(nil)

// NewCBORSerializer creates a CBOR serializer
func NewCBORSerializer() *CBORSerializer {
	return &CBORSerializer{}
}

// Serialize encodes message into a self-describing CBOR envelope
func (s *CBORSerializer) Serialize(message any) ([]byte, error) {
	if message == nil {
		return nil, ErrCBORNilMessage
	}

	data, err := cborEncMode.Marshal(message)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCBORSerializeFailed, err)
	}

	envelope := cborEnvelope{Data: data}
	if typesRegistry.Exists(message) {
		envelope.TypeName = registry.Name(message)
	}

	encoded, err := cborEncMode.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCBORSerializeFailed, err)
	}
	return encoded, nil
}

// Deserialize decodes data produced by Serialize. When the envelope names a
// registered type the returned value is a pointer to that type; otherwise the
// value is decoded generically.
func (s *CBORSerializer) Deserialize(data []byte) (any, error) {
	var envelope cborEnvelope
	if err := cborDecMode.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCBORDeserializeFailed, err)
	}

	if envelope.TypeName == "" {
		var value any
		if err := cborDecMode.Unmarshal(envelope.Data, &value); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCBORDeserializeFailed, err)
		}
		return value, nil
	}

	rtype, ok := typesRegistry.TypeOf(envelope.TypeName)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCBORTypeNotRegistered, envelope.TypeName)
	}

	target := reflect.New(rtype)
	if err := cborDecMode.Unmarshal(envelope.Data, target.Interface()); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCBORDeserializeFailed, err)
	}
	return target.Interface(), nil
}
