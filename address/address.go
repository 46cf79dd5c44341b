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
	"errors"
	"fmt"
	"strings"

	"github.com/tochemey/gomesh/internal/validation"
)

const separator = "/"

// ErrInvalidAddressable is returned when an addressable string representation
// cannot be parsed back into a kind and an identity.
var ErrInvalidAddressable = errors.New("invalid addressable")

// Addressable uniquely identifies a virtual actor within the mesh.
//
// It consists of:
//   - kind: the stable name of the actor interface version the target implements.
//   - id: the opaque identity of the actor instance within that kind.
//
// Addressables enable location-transparent routing: callers never learn which
// node hosts the instance, they only hold the (kind, id) pair. Values are
// immutable and safe for concurrent use.
type Addressable struct {
	kind string
	id   string
}

// enforce compilation error
var _ validation.Validator = (*Addressable)(nil)

// New constructs an Addressable from an actor kind and an instance identity.
func New(kind, id string) (*Addressable, error) {
	addressable := &Addressable{kind: kind, id: id}
	if err := addressable.Validate(); err != nil {
		return nil, err
	}
	return addressable, nil
}

// Kind returns the actor interface name of the addressable.
func (a *Addressable) Kind() string {
	return a.kind
}

// ID returns the instance identity of the addressable.
func (a *Addressable) ID() string {
	return a.id
}

// String returns the formatted string representation of the Addressable as "kind/id".
func (a *Addressable) String() string {
	if a == nil {
		return ""
	}
	return fmt.Sprintf("%s%s%s", a.kind, separator, a.id)
}

// Equal checks whether this Addressable is equal to another.
func (a *Addressable) Equal(other *Addressable) bool {
	if other == nil {
		return false
	}
	return a.kind == other.kind && a.id == other.id
}

// Validate implements validation.Validator.
func (a *Addressable) Validate() error {
	pattern := "^[a-zA-Z0-9][a-zA-Z0-9-_\\.]*$"
	customErr := errors.New("kind must contain only word characters (i.e. [a-zA-Z0-9] plus non-leading '-', '_' or '.')")
	return validation.
		New(validation.FailFast()).
		AddValidator(validation.NewEmptyStringValidator("kind", a.kind)).
		AddValidator(validation.NewEmptyStringValidator("id", a.id)).
		AddAssertion(len(a.id) <= 255, "addressable id is too long. Maximum length is 255").
		AddValidator(validation.NewPatternValidator(pattern, strings.TrimSpace(a.kind), customErr)).
		Validate()
}

// Parse reconstructs an Addressable from its string representation.
func Parse(s string) (*Addressable, error) {
	parts := strings.SplitN(s, separator, 2)
	if len(parts) != 2 {
		return nil, ErrInvalidAddressable
	}
	addressable := &Addressable{kind: parts[0], id: parts[1]}
	if err := addressable.Validate(); err != nil {
		return nil, err
	}
	return addressable, nil
}
