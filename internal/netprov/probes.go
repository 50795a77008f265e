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

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"time"

	"github.com/pressplane/pressplane/internal/status"
)

// hostResolver is the slice of net.Resolver the DNS probe needs.
type hostResolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
}

// ProbeDNS verifies the domain resolves to at least one address.
func (g *Gateway) ProbeDNS(ctx context.Context, domain string) error {
	addrs, err := g.resolver.LookupHost(ctx, domain)
	if err != nil {
		return fmt.Errorf("dns lookup failed: %w", err)
	}
	if len(addrs) == 0 {
		return fmt.Errorf("domain does not resolve")
	}
	return nil
}

// ProbeCertificate handshakes the domain on 443 and inspects the leaf
// certificate. A certificate inside the expiry warning window degrades the
// probe rather than failing it.
func (g *Gateway) ProbeCertificate(ctx context.Context, domain string) error {
	d := tls.Dialer{Config: &tls.Config{ServerName: domain}}
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(domain, "443"))
	if err != nil {
		return fmt.Errorf("tls handshake failed: %w", err)
	}
	defer conn.Close()

	state := conn.(*tls.Conn).ConnectionState()
	if len(state.PeerCertificates) == 0 {
		return fmt.Errorf("no certificate presented")
	}
	return g.checkLeaf(state.PeerCertificates[0])
}

// checkLeaf classifies a leaf certificate by time left on it.
func (g *Gateway) checkLeaf(leaf *x509.Certificate) error {
	left := time.Until(leaf.NotAfter)
	if left <= 0 {
		return fmt.Errorf("certificate expired %s ago", (-left).Round(time.Hour))
	}
	if left < g.certExpiryWarn {
		return &status.Degraded{Reason: fmt.Sprintf("certificate expires in %s", left.Round(time.Hour))}
	}
	return nil
}

// ProbeRouting asks the gateway whether it still holds a route for the
// domain. A missing route means requests are not reaching the tenant no
// matter what DNS says.
func (g *Gateway) ProbeRouting(ctx context.Context, domain string) error {
	var gwErr gatewayError
	resp, err := g.admin.R().
		SetContext(ctx).
		SetError(&gwErr).
		Get("/v1/routes/" + domain)
	if err != nil {
		return fmt.Errorf("gateway unreachable: %w", err)
	}
	if resp.StatusCode() == 404 {
		return fmt.Errorf("domain has no route")
	}
	if resp.IsError() {
		if gwErr.Error != "" {
			return fmt.Errorf("gateway refused: %s", gwErr.Error)
		}
		return fmt.Errorf("gateway returned %d", resp.StatusCode())
	}
	return nil
}

// ProbeLiveness fetches the tenant's public face. Any answer below 500
// counts as alive; the application spoke, whatever it said.
func (g *Gateway) ProbeLiveness(ctx context.Context, domain string) error {
	resp, err := g.probe.R().
		SetContext(ctx).
		Get("https://" + domain + "/")
	if err != nil {
		return fmt.Errorf("origin unreachable: %w", err)
	}
	if resp.StatusCode() >= 500 {
		return fmt.Errorf("origin returned %d", resp.StatusCode())
	}
	return nil
}
