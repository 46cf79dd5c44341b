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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gerrors "github.com/tochemey/gomesh/errors"
)

func TestScannerScan(t *testing.T) {
	scanner := newCapabilityScanner(map[string]ActorFactory{
		"IGreeter":  greeterFactory,
		"IRecorder": greeterFactory,
	})
	capabilities, factories := scanner.Scan()

	assert.True(t, capabilities.Contains("IGreeter"))
	assert.True(t, capabilities.Contains("IRecorder"))
	assert.Len(t, factories, 2)
}

func TestDefinitionDirectorySingleShotSetup(t *testing.T) {
	directory := newDefinitionDirectory()
	require.NoError(t, directory.SetupDefinition(map[string]ActorFactory{
		"IGreeter": greeterFactory,
	}))

	// a second setup fails without mutating state
	err := directory.SetupDefinition(map[string]ActorFactory{
		"IOther": greeterFactory,
	})
	require.ErrorIs(t, err, gerrors.ErrDefinitionAlreadySetup)

	capabilities, err := directory.GenerateCapabilities()
	require.NoError(t, err)
	assert.True(t, capabilities.Contains("IGreeter"))
	assert.False(t, capabilities.Contains("IOther"))
}

func TestDefinitionDirectoryLookup(t *testing.T) {
	directory := newDefinitionDirectory()

	_, err := directory.Lookup("IGreeter")
	require.ErrorIs(t, err, gerrors.ErrDefinitionNotSetup)

	require.NoError(t, directory.SetupDefinition(map[string]ActorFactory{
		"IGreeter": greeterFactory,
	}))

	factory, err := directory.Lookup("IGreeter")
	require.NoError(t, err)
	assert.NotNil(t, factory)

	_, err = directory.Lookup("IUnknown")
	require.ErrorIs(t, err, gerrors.ErrKindNotRegistered)
}

func TestDefinitionDirectoryCapabilitiesBeforeSetup(t *testing.T) {
	directory := newDefinitionDirectory()
	capabilities, err := directory.GenerateCapabilities()
	require.ErrorIs(t, err, gerrors.ErrDefinitionNotSetup)
	assert.Nil(t, capabilities)
}
