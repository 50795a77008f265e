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

// Package bulk applies one lifecycle action to many tenants with bounded
// concurrency. Failures stay inside their entry: one bad tenant never
// cancels the batch, and results come back in request order.
package bulk

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/pressplane/pressplane/internal/audit"
	"github.com/pressplane/pressplane/internal/observability/metrics"
	"github.com/pressplane/pressplane/internal/tenant"
)

// Action is a bulk-applicable lifecycle operation.
type Action string

const (
	ActionSuspend  Action = "suspend"
	ActionActivate Action = "activate"
	ActionDelete   Action = "delete"
)

// Entry result codes, aligned with the HTTP error taxonomy.
const (
	CodeNotFound          = "NOT_FOUND"
	CodeInvalidTransition = "INVALID_TRANSITION"
	CodeValidation        = "VALIDATION_ERROR"
	CodeOperationFailed   = "OPERATION_FAILED"
)

// EntryResult is the outcome for one tenant in the batch.
type EntryResult struct {
	TenantID string         `json:"tenant_id"`
	OK       bool           `json:"ok"`
	Code     string         `json:"code,omitempty"`
	Error    string         `json:"error,omitempty"`
	Tenant   *tenant.Tenant `json:"tenant,omitempty"`
}

// Result is the full batch outcome. Results[i] always corresponds to the
// i-th requested id. Partial failure is data here, never an error.
type Result struct {
	Action    Action        `json:"action"`
	Results   []EntryResult `json:"results"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
}

// Lifecycle is the orchestrator surface the executor drives.
type Lifecycle interface {
	Suspend(ctx context.Context, id string) (*tenant.Tenant, error)
	Activate(ctx context.Context, id string) (*tenant.Tenant, error)
	DeprovisionTenant(ctx context.Context, id string) error
}

// Executor fans one action out over many tenants.
type Executor struct {
	lifecycle   Lifecycle
	audit       audit.Logger
	metrics     *metrics.Lifecycle
	concurrency int
}

// NewExecutor creates an Executor. Concurrency below one falls back to four.
func NewExecutor(lifecycle Lifecycle, auditLogger audit.Logger, m *metrics.Lifecycle, concurrency int) *Executor {
	if concurrency < 1 {
		concurrency = 4
	}
	if auditLogger == nil {
		auditLogger = audit.NewSlogLogger()
	}
	if m == nil {
		m = metrics.Noop()
	}
	return &Executor{
		lifecycle:   lifecycle,
		audit:       auditLogger,
		metrics:     m,
		concurrency: concurrency,
	}
}

// Execute applies the action to every id. Workers run concurrently up to
// the configured limit and always return nil to the group: per-entry errors
// are captured in the entry's slot, so no failure cancels a sibling. The
// only error returns are a malformed batch (unknown action) and nothing
// else; an all-failed batch is still a nil-error Result.
func (e *Executor) Execute(ctx context.Context, action Action, ids []string) (*Result, error) {
	switch action {
	case ActionSuspend, ActionActivate, ActionDelete:
	case "":
		return nil, tenant.NewValidationError("action", "is required")
	default:
		return nil, tenant.NewValidationError("action", fmt.Sprintf("unknown action %q", action))
	}

	result := &Result{
		Action:  action,
		Results: make([]EntryResult, len(ids)),
	}
	if len(ids) == 0 {
		return result, nil
	}

	var group errgroup.Group
	group.SetLimit(e.concurrency)

	for i, id := range ids {
		i, id := i, id
		group.Go(func() error {
			result.Results[i] = e.applyOne(ctx, action, id)
			return nil
		})
	}
	// Workers never fail the group; Wait is a join.
	_ = group.Wait()

	for _, entry := range result.Results {
		if entry.OK {
			result.Succeeded++
		} else {
			result.Failed++
		}
	}

	e.metrics.RecordBulkItems(ctx, string(action), int64(result.Succeeded), int64(result.Failed))
	e.audit.Log(ctx, audit.Event{
		Type:     audit.TypeBulkExecuted,
		Resource: "tenants",
		Metadata: map[string]any{
			audit.AttrAction:    string(action),
			audit.AttrSucceeded: result.Succeeded,
			audit.AttrFailed:    result.Failed,
		},
	})

	return result, nil
}

func (e *Executor) applyOne(ctx context.Context, action Action, id string) EntryResult {
	entry := EntryResult{TenantID: id}

	var (
		t   *tenant.Tenant
		err error
	)
	switch action {
	case ActionSuspend:
		t, err = e.lifecycle.Suspend(ctx, id)
	case ActionActivate:
		t, err = e.lifecycle.Activate(ctx, id)
	case ActionDelete:
		err = e.lifecycle.DeprovisionTenant(ctx, id)
	}

	if err != nil {
		entry.Code = codeFor(err)
		entry.Error = err.Error()
		return entry
	}

	entry.OK = true
	entry.Tenant = t
	return entry
}

// codeFor maps domain errors onto entry codes.
func codeFor(err error) string {
	switch {
	case errors.Is(err, tenant.ErrNotFound):
		return CodeNotFound
	case errors.Is(err, tenant.ErrInvalidTransition):
		return CodeInvalidTransition
	case tenant.IsValidation(err):
		return CodeValidation
	default:
		return CodeOperationFailed
	}
}
