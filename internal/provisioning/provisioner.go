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

import "context"

// ResourceProvisioner manages the isolated data store behind a tenant's
// resource handle. All methods must be safe to call with a handle that has
// no backing store: DestroyStore treats "already absent" as success, which
// is what makes blind cleanup and compensation retries possible.
type ResourceProvisioner interface {
	// CreateStore creates the isolated store for the handle and brings its
	// schema to the current version.
	CreateStore(ctx context.Context, handle string) error

	// DestroyStore removes the store and everything in it. Destroying an
	// absent store is success.
	DestroyStore(ctx context.Context, handle string) error

	// BootstrapAdminIdentity creates the first administrator inside the
	// store. Implementations persist only a hash of the secret.
	BootstrapAdminIdentity(ctx context.Context, handle, email, secret string) error
}

// NetworkProvisioner manages external reachability for a tenant domain:
// DNS records, TLS certificates and reverse-proxy routing. Errors should
// identify the failing subsystem so callers can report dns/tls/routing
// failures distinctly.
type NetworkProvisioner interface {
	// ConfigureRouting makes the domain externally reachable.
	ConfigureRouting(ctx context.Context, domain string) error

	// TeardownRouting removes the domain's network configuration. Tearing
	// down an unconfigured domain is success.
	TeardownRouting(ctx context.Context, domain string) error
}
