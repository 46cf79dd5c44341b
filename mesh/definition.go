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
	"sync"

	mapset "github.com/deckarep/golang-set/v2"

	gerrors "github.com/tochemey/gomesh/errors"
)

// capabilityScanner enumerates the actor kinds the host registered and their
// factories. Registration happens through client options; the scan snapshots
// them once at startup.
type capabilityScanner struct {
	registrations map[string]ActorFactory
}

func newCapabilityScanner(registrations map[string]ActorFactory) *capabilityScanner {
	return &capabilityScanner{registrations: registrations}
}

// Scan returns the set of actor kinds to advertise and the factory of each
func (s *capabilityScanner) Scan() (mapset.Set[string], map[string]ActorFactory) {
	capabilities := mapset.NewSet[string]()
	factories := make(map[string]ActorFactory, len(s.registrations))
	for kind, factory := range s.registrations {
		capabilities.Add(kind)
		factories[kind] = factory
	}
	return capabilities, factories
}

// definitionDirectory maps actor kinds to their factories. It is set up once
// at startup and immutable thereafter.
type definitionDirectory struct {
	mu        sync.RWMutex
	factories map[string]ActorFactory
	ready     bool
}

func newDefinitionDirectory() *definitionDirectory {
	return &definitionDirectory{}
}

// SetupDefinition installs the scanned factories. A second call fails with
// ErrDefinitionAlreadySetup without mutating the directory.
func (d *definitionDirectory) SetupDefinition(factories map[string]ActorFactory) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ready {
		return gerrors.ErrDefinitionAlreadySetup
	}
	installed := make(map[string]ActorFactory, len(factories))
	for kind, factory := range factories {
		installed[kind] = factory
	}
	d.factories = installed
	d.ready = true
	return nil
}

// GenerateCapabilities returns the actor kinds available for advertisement
func (d *definitionDirectory) GenerateCapabilities() (mapset.Set[string], error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if !d.ready {
		return nil, gerrors.ErrDefinitionNotSetup
	}
	capabilities := mapset.NewSet[string]()
	for kind := range d.factories {
		capabilities.Add(kind)
	}
	return capabilities, nil
}

// Lookup returns the factory of the given actor kind
func (d *definitionDirectory) Lookup(kind string) (ActorFactory, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if !d.ready {
		return nil, gerrors.ErrDefinitionNotSetup
	}
	factory, ok := d.factories[kind]
	if !ok {
		return nil, gerrors.NewErrKindNotRegistered(kind)
	}
	return factory, nil
}
