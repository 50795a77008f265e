// Copyright 2025 The Pressplane Authors
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

package readiness

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestState_StartsNotReady(t *testing.T) {
	s := NewState()

	assert.False(t, s.Ready())
	assert.Equal(t, "starting", s.Phase())
}

func TestState_MarkReady(t *testing.T) {
	s := NewState()
	s.MarkReady()

	assert.True(t, s.Ready())
	assert.Equal(t, "ready", s.Phase())
}

func TestState_DrainIsOneWay(t *testing.T) {
	s := NewState()
	s.MarkReady()
	s.MarkDraining()

	assert.False(t, s.Ready())
	assert.Equal(t, "draining", s.Phase())

	// A draining process never re-advertises readiness.
	s.MarkReady()
	assert.False(t, s.Ready())
	assert.Equal(t, "draining", s.Phase())
}
