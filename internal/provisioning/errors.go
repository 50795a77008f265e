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

package provisioning

import "fmt"

// Phase names the provisioning step that failed. Compensation has already
// run by the time a phase error reaches the caller.
type Phase string

const (
	PhaseStore      Phase = "store"
	PhaseIdentity   Phase = "identity"
	PhaseActivation Phase = "activation"
	PhaseNetwork    Phase = "network"
)

// Error is a provisioning failure attributed to a phase. The wrapped error
// keeps the collaborator's cause reachable through errors.Is/As.
type Error struct {
	Phase Phase
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("provisioning failed in %s phase: %v", e.Phase, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// CollaboratorError marks a collaborator as unreachable rather than
// reporting a rejected operation, so transports can answer 502 instead
// of 500.
type CollaboratorError struct {
	Name string
	Err  error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("collaborator %s unavailable: %v", e.Name, e.Err)
}

func (e *CollaboratorError) Unwrap() error {
	return e.Err
}
