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

// Package id generates unique identifiers for platform records.
package id

import "github.com/google/uuid"

// NewUUIDv7 returns a time-ordered unique identifier. v7 sorts by creation
// time, which keeps append-heavy indexes compact.
func NewUUIDv7() string {
	u, err := uuid.NewV7()
	if err != nil {
		// entropy exhaustion only; fall back to v4
		return uuid.NewString()
	}
	return u.String()
}
