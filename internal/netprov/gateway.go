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

// Package netprov makes tenant domains externally reachable through the edge
// gateway admin API and probes the result from the outside. DNS records, TLS
// certificates and reverse-proxy routes are separate gateway resources;
// failures carry the subsystem that refused so callers can report them apart.
package netprov

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pressplane/pressplane/internal/provisioning"
)

// Config holds edge gateway client configuration.
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
	Retries int
	// DNSZone is the platform zone tenant domains are pointed at.
	DNSZone string
	// CertExpiryWarn is how close to expiry a certificate may get before
	// probes report it degraded.
	CertExpiryWarn time.Duration
}

// Gateway is the edge gateway admin client. It provisions routing for tenant
// domains and answers the network side of status probes.
type Gateway struct {
	admin          *resty.Client
	probe          *resty.Client
	resolver       hostResolver
	zone           string
	certExpiryWarn time.Duration
}

// gatewayError is the admin API error envelope.
type gatewayError struct {
	Error string `json:"error"`
}

// NewGateway creates a new edge gateway client
func NewGateway(cfg Config) *Gateway {
	admin := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.Retries).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(3 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetAuthToken(cfg.Token)

	// Probes go to the tenant's public face, not the admin API, and they
	// never retry: a probe measures what one attempt sees.
	probe := resty.New().
		SetTimeout(cfg.Timeout)

	warn := cfg.CertExpiryWarn
	if warn <= 0 {
		warn = 14 * 24 * time.Hour
	}

	return &Gateway{
		admin:          admin,
		probe:          probe,
		resolver:       net.DefaultResolver,
		zone:           cfg.DNSZone,
		certExpiryWarn: warn,
	}
}

// ConfigureRouting makes a domain externally reachable: DNS record first,
// then certificate, then route. Each step reports its own subsystem on
// failure. Re-running an already configured domain is a no-op on the
// gateway side.
func (g *Gateway) ConfigureRouting(ctx context.Context, domain string) error {
	if err := g.adminPost(ctx, "/v1/dns/records", map[string]string{
		"name":   domain,
		"target": g.zone,
	}); err != nil {
		return &Error{Subsystem: SubsystemDNS, Err: err}
	}

	if err := g.adminPost(ctx, "/v1/certificates", map[string]string{
		"domain": domain,
	}); err != nil {
		return &Error{Subsystem: SubsystemTLS, Err: err}
	}

	if err := g.adminPost(ctx, "/v1/routes", map[string]string{
		"domain": domain,
	}); err != nil {
		return &Error{Subsystem: SubsystemRouting, Err: err}
	}

	return nil
}

// TeardownRouting removes a domain's network configuration in reverse order
// of setup. Resources the gateway no longer knows are treated as already
// gone, which keeps teardown idempotent.
func (g *Gateway) TeardownRouting(ctx context.Context, domain string) error {
	if err := g.adminDelete(ctx, "/v1/routes/"+domain); err != nil {
		return &Error{Subsystem: SubsystemRouting, Err: err}
	}
	if err := g.adminDelete(ctx, "/v1/certificates/"+domain); err != nil {
		return &Error{Subsystem: SubsystemTLS, Err: err}
	}
	if err := g.adminDelete(ctx, "/v1/dns/records/"+domain); err != nil {
		return &Error{Subsystem: SubsystemDNS, Err: err}
	}
	return nil
}

func (g *Gateway) adminPost(ctx context.Context, path string, body any) error {
	var gwErr gatewayError
	resp, err := g.admin.R().
		SetContext(ctx).
		SetBody(body).
		SetError(&gwErr).
		Post(path)
	if err != nil {
		// Transport failure, not a gateway answer.
		return &provisioning.CollaboratorError{Name: "edge-gateway", Err: err}
	}
	if resp.IsError() {
		if gwErr.Error != "" {
			return fmt.Errorf("gateway refused: %s", gwErr.Error)
		}
		return fmt.Errorf("gateway returned %d", resp.StatusCode())
	}
	return nil
}

func (g *Gateway) adminDelete(ctx context.Context, path string) error {
	var gwErr gatewayError
	resp, err := g.admin.R().
		SetContext(ctx).
		SetError(&gwErr).
		Delete(path)
	if err != nil {
		return &provisioning.CollaboratorError{Name: "edge-gateway", Err: err}
	}
	// 404 means already gone, which is the state we wanted.
	if resp.IsError() && resp.StatusCode() != 404 {
		if gwErr.Error != "" {
			return fmt.Errorf("gateway refused: %s", gwErr.Error)
		}
		return fmt.Errorf("gateway returned %d", resp.StatusCode())
	}
	return nil
}
