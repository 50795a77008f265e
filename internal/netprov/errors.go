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

package netprov

import "fmt"

// Subsystem names the part of the network stack an operation failed in.
type Subsystem string

const (
	SubsystemDNS     Subsystem = "dns"
	SubsystemTLS     Subsystem = "tls"
	SubsystemRouting Subsystem = "routing"
)

// Error ties a network operation failure to the failing subsystem, so the
// API can report DNS, certificate and routing failures distinctly.
type Error struct {
	Subsystem Subsystem
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Subsystem, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
