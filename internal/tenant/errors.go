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

package tenant

import (
	"errors"
	"fmt"
)

// Registry sentinel errors. Callers branch on these with errors.Is; the
// registry maps driver-level conditions (missing rows, unique violations)
// onto them so nothing above the registry sees SQL state codes.
var (
	// ErrNotFound indicates no tenant exists for the given identifier.
	ErrNotFound = errors.New("tenant not found")

	// ErrDomainExists indicates the custom domain is already claimed by
	// another tenant.
	ErrDomainExists = errors.New("domain already in use")

	// ErrSubdomainExists indicates the platform subdomain is already
	// claimed by another tenant.
	ErrSubdomainExists = errors.New("subdomain already in use")

	// ErrInvalidTransition indicates a lifecycle change the state machine
	// does not allow, including transitions raced away by a concurrent
	// operation.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// ValidationError reports a rejected input field. It is returned before any
// side effect occurs, so a validation failure never needs compensation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NewValidationError builds a ValidationError for a single field.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
