// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExitCodeFor_Nil(t *testing.T) {
	require.Equal(t, 0, exitCodeFor(nil))
}

func TestExitCodeFor_InitFailure(t *testing.T) {
	err := wrapInit(errors.New("bridge unreachable"))
	require.Equal(t, 1, exitCodeFor(err))
}

func TestExitCodeFor_InitFailureWrappingAnInnerError(t *testing.T) {
	// wrapInit is always the outermost call at every call site (see
	// serve.go, export_schemas.go, telepathist_cmd.go): it wraps an
	// already-%w-formatted inner error, never the other way around.
	err := wrapInit(fmt.Errorf("building application: %w", errors.New("config load failed")))
	require.Equal(t, 1, exitCodeFor(err))
}

func TestExitCodeFor_UnhandledError(t *testing.T) {
	require.Equal(t, 2, exitCodeFor(errors.New("pipeline crashed mid-turn")))
}

func TestWrapInit_Unwraps(t *testing.T) {
	cause := errors.New("boom")
	err := wrapInit(cause)

	require.ErrorIs(t, err, cause)
	require.Contains(t, err.Error(), "boom")
}

func TestVersionCmd_Run(t *testing.T) {
	cmd := &VersionCmd{}
	require.NoError(t, cmd.Run())
}
