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

// Package status assembles per-tenant health reports from independent
// concurrent probes. One slow or broken subsystem never hides the state of
// the others.
package status

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/pressplane/pressplane/internal/observability/metrics"
	"github.com/pressplane/pressplane/internal/tenant"
)

// State classifies one probed subsystem.
type State string

const (
	StateOK       State = "ok"
	StateDegraded State = "degraded"
	StateFailed   State = "failed"
)

// Degraded is returned by probes for conditions that work today but need
// attention, a certificate close to expiry being the canonical case.
type Degraded struct {
	Reason string
}

func (d *Degraded) Error() string {
	return d.Reason
}

// Check is the outcome of one probe.
type Check struct {
	State     State  `json:"state"`
	Message   string `json:"message,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
}

// Report is the merged health picture of one tenant.
type Report struct {
	TenantID    string        `json:"tenant_id"`
	Lifecycle   tenant.Status `json:"lifecycle_status"`
	Certificate Check         `json:"certificate"`
	Routing     Check         `json:"routing"`
	DNS         Check         `json:"dns"`
	Liveness    Check         `json:"liveness"`
	Store       Check         `json:"store"`
	Overall     State         `json:"overall"`
	CheckedAt   time.Time     `json:"checked_at"`
}

// NetworkProber checks a tenant's externally visible subsystems.
type NetworkProber interface {
	ProbeCertificate(ctx context.Context, domain string) error
	ProbeRouting(ctx context.Context, domain string) error
	ProbeDNS(ctx context.Context, domain string) error
	ProbeLiveness(ctx context.Context, domain string) error
}

// StoreProber checks that the tenant's isolated store answers.
type StoreProber interface {
	ProbeStore(ctx context.Context, handle string) error
}

// Aggregator runs all probes for a tenant concurrently and merges the
// outcomes.
type Aggregator struct {
	registry     tenant.Registry
	network      NetworkProber
	store        StoreProber
	lifecycle    *metrics.Lifecycle
	probeTimeout time.Duration
}

// NewAggregator creates an Aggregator. probeTimeout bounds each probe
// individually; zero or negative falls back to five seconds.
func NewAggregator(registry tenant.Registry, network NetworkProber, store StoreProber, lifecycle *metrics.Lifecycle, probeTimeout time.Duration) *Aggregator {
	if probeTimeout <= 0 {
		probeTimeout = 5 * time.Second
	}
	if lifecycle == nil {
		lifecycle = metrics.Noop()
	}
	return &Aggregator{
		registry:     registry,
		network:      network,
		store:        store,
		lifecycle:    lifecycle,
		probeTimeout: probeTimeout,
	}
}

// GetTenantStatus probes every subsystem of the tenant concurrently. The
// registry lookup is the only error path; from there on, failures are data.
// Each probe runs in its own goroutine under its own deadline and writes to
// its own slot, so probes cannot interfere with each other. Cancellation of
// the caller's context turns outstanding probes into failed entries with
// the same shape as any other failure.
func (a *Aggregator) GetTenantStatus(ctx context.Context, id string) (*Report, error) {
	t, err := a.registry.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	probes := []struct {
		name string
		run  func(context.Context) error
	}{
		{"certificate", func(c context.Context) error { return a.network.ProbeCertificate(c, t.Domain) }},
		{"routing", func(c context.Context) error { return a.network.ProbeRouting(c, t.Domain) }},
		{"dns", func(c context.Context) error { return a.network.ProbeDNS(c, t.Domain) }},
		{"liveness", func(c context.Context) error { return a.network.ProbeLiveness(c, t.Domain) }},
		{"store", func(c context.Context) error { return a.store.ProbeStore(c, t.ResourceHandle()) }},
	}

	results := make([]Check, len(probes))
	var wg sync.WaitGroup
	for i, p := range probes {
		wg.Add(1)
		go func(slot int, name string, run func(context.Context) error) {
			defer wg.Done()
			started := time.Now()
			pctx, cancel := context.WithTimeout(ctx, a.probeTimeout)
			defer cancel()
			result := classify(run(pctx), time.Since(started))
			results[slot] = result
			a.lifecycle.RecordProbe(ctx, name, string(result.State), time.Since(started))
		}(i, p.name, p.run)
	}
	wg.Wait()

	report := &Report{
		TenantID:    t.ID,
		Lifecycle:   t.Status,
		Certificate: results[0],
		Routing:     results[1],
		DNS:         results[2],
		Liveness:    results[3],
		Store:       results[4],
		CheckedAt:   time.Now().UTC(),
	}
	report.Overall = worst(results)

	// Status reads count as tenant activity; best-effort.
	_ = a.registry.TouchActivity(ctx, id)

	return report, nil
}

// classify maps a probe error onto a check state. nil is healthy, a
// Degraded error is degraded, anything else (deadline errors included)
// is failed.
func classify(err error, elapsed time.Duration) Check {
	check := Check{LatencyMS: elapsed.Milliseconds()}
	if err == nil {
		check.State = StateOK
		return check
	}
	var degraded *Degraded
	if errors.As(err, &degraded) {
		check.State = StateDegraded
		check.Message = degraded.Reason
		return check
	}
	check.State = StateFailed
	check.Message = err.Error()
	return check
}

func worst(checks []Check) State {
	overall := StateOK
	for _, c := range checks {
		switch c.State {
		case StateFailed:
			return StateFailed
		case StateDegraded:
			overall = StateDegraded
		}
	}
	return overall
}
