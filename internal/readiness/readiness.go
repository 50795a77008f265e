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

// Package readiness tracks whether the process may receive traffic.
// Liveness and readiness are separate signals: a starting or draining
// process is alive but must not be routed to.
package readiness

import "sync/atomic"

type phase int32

const (
	phaseStarting phase = iota
	phaseReady
	phaseDraining
)

// State is the process readiness signal. The zero value is starting.
type State struct {
	phase atomic.Int32
}

// NewState returns a State in the starting phase.
func NewState() *State {
	return &State{}
}

// MarkReady moves the process into the ready phase. Marking a draining
// process ready is ignored; drain is one way.
func (s *State) MarkReady() {
	s.phase.CompareAndSwap(int32(phaseStarting), int32(phaseReady))
}

// MarkDraining moves the process into the draining phase.
func (s *State) MarkDraining() {
	s.phase.Store(int32(phaseDraining))
}

// Ready reports whether the process may receive traffic.
func (s *State) Ready() bool {
	return phase(s.phase.Load()) == phaseReady
}

// Phase returns the current phase name for status responses.
func (s *State) Phase() string {
	switch phase(s.phase.Load()) {
	case phaseReady:
		return "ready"
	case phaseDraining:
		return "draining"
	default:
		return "starting"
	}
}
