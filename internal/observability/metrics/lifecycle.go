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

package metrics

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Lifecycle bundles the instruments recorded along the tenant lifecycle:
// provision outcomes and durations, phase failures, probe latencies and bulk
// throughput.
type Lifecycle struct {
	provisions        metric.Int64Counter
	phaseFailures     metric.Int64Counter
	provisionDuration metric.Float64Histogram
	probeDuration     metric.Float64Histogram
	bulkItems         metric.Int64Counter
}

// NewLifecycle creates the lifecycle instrument set on the given meter.
func NewLifecycle(m *Meter) (*Lifecycle, error) {
	provisions, err := m.CreateCounter(
		"pressplane.provision.total",
		"Completed provisioning attempts by outcome",
	)
	if err != nil {
		return nil, err
	}
	phaseFailures, err := m.CreateCounter(
		"pressplane.provision.phase_failures",
		"Provisioning failures by phase",
	)
	if err != nil {
		return nil, err
	}
	provisionDuration, err := m.CreateHistogram(
		"pressplane.provision.duration",
		"End-to-end provisioning duration",
		"ms",
	)
	if err != nil {
		return nil, err
	}
	probeDuration, err := m.CreateHistogram(
		"pressplane.status.probe_duration",
		"Status probe duration by probe name",
		"ms",
	)
	if err != nil {
		return nil, err
	}
	bulkItems, err := m.CreateCounter(
		"pressplane.bulk.items",
		"Bulk operation entries by action and outcome",
	)
	if err != nil {
		return nil, err
	}

	return &Lifecycle{
		provisions:        provisions,
		phaseFailures:     phaseFailures,
		provisionDuration: provisionDuration,
		probeDuration:     probeDuration,
		bulkItems:         bulkItems,
	}, nil
}

// RecordProvision records one finished provisioning attempt.
func (l *Lifecycle) RecordProvision(ctx context.Context, outcome string, elapsed time.Duration) {
	l.provisions.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	l.provisionDuration.Record(ctx, float64(elapsed.Milliseconds()),
		metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordPhaseFailure records a provisioning failure attributed to a phase.
func (l *Lifecycle) RecordPhaseFailure(ctx context.Context, phase string) {
	l.phaseFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("phase", phase)))
}

// RecordProbe records one status probe completion.
func (l *Lifecycle) RecordProbe(ctx context.Context, probe, state string, elapsed time.Duration) {
	l.probeDuration.Record(ctx, float64(elapsed.Milliseconds()), metric.WithAttributes(
		attribute.String("probe", probe),
		attribute.String("state", state),
	))
}

// RecordBulkItems records per-entry bulk outcomes.
func (l *Lifecycle) RecordBulkItems(ctx context.Context, action string, succeeded, failed int64) {
	if succeeded > 0 {
		l.bulkItems.Add(ctx, succeeded, metric.WithAttributes(
			attribute.String("action", action),
			attribute.String("outcome", "ok"),
		))
	}
	if failed > 0 {
		l.bulkItems.Add(ctx, failed, metric.WithAttributes(
			attribute.String("action", action),
			attribute.String("outcome", "failed"),
		))
	}
}

// Noop returns a Lifecycle wired to a disabled meter, for tests and tools
// that do not export metrics.
func Noop() *Lifecycle {
	m, err := New(context.Background(), Config{Enabled: false}, "noop")
	if err != nil {
		panic(fmt.Sprintf("noop meter: %v", err))
	}
	l, err := NewLifecycle(m)
	if err != nil {
		panic(fmt.Sprintf("noop lifecycle instruments: %v", err))
	}
	return l
}
