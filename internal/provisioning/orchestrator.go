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

// Package provisioning orchestrates the tenant lifecycle: ordered
// provisioning with compensating rollback, domain moves that never break
// the old domain before the new one works, and idempotent deprovisioning.
package provisioning

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pressplane/pressplane/internal/audit"
	"github.com/pressplane/pressplane/internal/identity"
	"github.com/pressplane/pressplane/internal/observability/logger"
	"github.com/pressplane/pressplane/internal/observability/metrics"
	"github.com/pressplane/pressplane/internal/tenant"
)

// Config holds the orchestrator's operational limits. Every collaborator
// call runs under one of these timeouts; the registry rides the caller's
// deadline.
type Config struct {
	StoreTimeout        time.Duration
	IdentityTimeout     time.Duration
	NetworkTimeout      time.Duration
	CompensationTimeout time.Duration
	SecretLength        int
}

// Orchestrator drives tenant lifecycle operations across the registry and
// the resource/network collaborators.
type Orchestrator struct {
	registry  tenant.Registry
	resources ResourceProvisioner
	network   NetworkProvisioner
	audit     audit.Logger
	lifecycle *metrics.Lifecycle
	cfg       Config
}

// NewOrchestrator creates an Orchestrator. Nil audit or lifecycle fall back
// to the slog audit logger and no-op instruments.
func NewOrchestrator(
	registry tenant.Registry,
	resources ResourceProvisioner,
	network NetworkProvisioner,
	auditLogger audit.Logger,
	lifecycle *metrics.Lifecycle,
	cfg Config,
) *Orchestrator {
	if auditLogger == nil {
		auditLogger = audit.NewSlogLogger()
	}
	if lifecycle == nil {
		lifecycle = metrics.Noop()
	}
	return &Orchestrator{
		registry:  registry,
		resources: resources,
		network:   network,
		audit:     auditLogger,
		lifecycle: lifecycle,
		cfg:       cfg,
	}
}

// ProvisionTenant creates a tenant end to end: registry row, isolated
// store, bootstrap admin, activation, then best-effort network setup.
// Failure after the row exists triggers compensation in reverse order;
// on return there is never a row left in provisioning state. The network
// step alone never fails the provision — it degrades into warnings.
func (o *Orchestrator) ProvisionTenant(ctx context.Context, spec Spec) (*Result, error) {
	started := time.Now()

	t, err := o.validateSpec(spec)
	if err != nil {
		return nil, err
	}

	// Registry insert is the serialization point: domain and subdomain
	// uniqueness are decided by constraints here, not by any pre-read.
	if err := o.registry.Insert(ctx, t); err != nil {
		return nil, err
	}

	handle := t.ResourceHandle()

	storeCtx, cancel := context.WithTimeout(ctx, o.cfg.StoreTimeout)
	err = o.resources.CreateStore(storeCtx, handle)
	cancel()
	if err != nil {
		return nil, o.failProvision(ctx, t, PhaseStore, err, started)
	}

	secret, err := identity.NewTempSecret(o.cfg.SecretLength)
	if err != nil {
		return nil, o.failProvision(ctx, t, PhaseIdentity, err, started)
	}

	idCtx, cancel := context.WithTimeout(ctx, o.cfg.IdentityTimeout)
	err = o.resources.BootstrapAdminIdentity(idCtx, handle, t.ContactEmail, secret)
	cancel()
	if err != nil {
		return nil, o.failProvision(ctx, t, PhaseIdentity, err, started)
	}

	activated, err := o.registry.UpdateStatus(ctx, t.ID,
		[]tenant.Status{tenant.StatusProvisioning}, tenant.StatusActive)
	if err != nil {
		return nil, o.failProvision(ctx, t, PhaseActivation, err, started)
	}

	details := SetupDetails{StoreCreated: true, AdminCreated: true, NetworkConfigured: true}

	netCtx, cancel := context.WithTimeout(ctx, o.cfg.NetworkTimeout)
	nerr := o.network.ConfigureRouting(netCtx, activated.Domain)
	cancel()
	if nerr != nil {
		details.NetworkConfigured = false
		details.Warnings = append(details.Warnings,
			fmt.Sprintf("network configuration failed: %v", nerr))
		slog.LogAttrs(ctx, slog.LevelWarn, "provisioned tenant without network reachability",
			logger.Component("provisioning"),
			logger.TenantID(activated.ID),
			logger.Domain(activated.Domain),
			logger.Error(nerr),
		)
		o.audit.Log(ctx, audit.Event{
			Type:     audit.TypeNetworkDegraded,
			TenantID: activated.ID,
			Resource: "network",
			Metadata: map[string]any{
				audit.AttrDomain: activated.Domain,
				audit.AttrReason: nerr.Error(),
			},
		})
	}

	o.audit.Log(ctx, audit.Event{
		Type:     audit.TypeTenantProvisioned,
		TenantID: activated.ID,
		Resource: "tenant",
		Metadata: map[string]any{
			audit.AttrDomain: activated.Domain,
			"plan":           string(activated.Plan),
		},
	})
	o.lifecycle.RecordProvision(ctx, "ok", time.Since(started))
	slog.LogAttrs(ctx, slog.LevelInfo, "tenant provisioned",
		logger.Component("provisioning"),
		logger.TenantID(activated.ID),
		logger.Domain(activated.Domain),
		logger.Plan(string(activated.Plan)),
		logger.Duration(time.Since(started).Milliseconds()),
	)

	return &Result{
		Tenant:       activated,
		SetupDetails: details,
		AdminCredentials: AdminCredentials{
			Email:      activated.ContactEmail,
			TempSecret: secret,
		},
	}, nil
}

// validateSpec normalizes and checks the request. No side effects: a
// validation failure leaves nothing to clean up.
func (o *Orchestrator) validateSpec(spec Spec) (*tenant.Tenant, error) {
	if err := tenant.ValidateName(spec.Name); err != nil {
		return nil, err
	}
	domain, err := tenant.NormalizeDomain(spec.Domain)
	if err != nil {
		return nil, err
	}
	subdomain, err := tenant.NormalizeSubdomain(spec.Subdomain)
	if err != nil {
		return nil, err
	}
	if err := tenant.ValidateEmail(spec.ContactEmail); err != nil {
		return nil, err
	}
	plan := spec.Plan
	if plan == "" {
		plan = tenant.PlanTrial
	}
	if !tenant.ValidPlan(plan) {
		return nil, tenant.NewValidationError("plan", "unknown plan")
	}

	t := tenant.New(
		strings.TrimSpace(spec.Name),
		domain,
		subdomain,
		strings.TrimSpace(spec.ContactEmail),
		strings.TrimSpace(spec.ContactName),
		plan,
	)
	return t, nil
}

// failProvision runs compensation and wraps the cause in a phase error.
func (o *Orchestrator) failProvision(ctx context.Context, t *tenant.Tenant, phase Phase, cause error, started time.Time) error {
	warnings := o.rollback(ctx, t)

	o.audit.Log(ctx, audit.Event{
		Type:     audit.TypeProvisionFailed,
		TenantID: t.ID,
		Resource: "tenant",
		Metadata: map[string]any{
			audit.AttrPhase:    string(phase),
			audit.AttrReason:   cause.Error(),
			audit.AttrWarnings: warnings,
		},
	})
	o.lifecycle.RecordPhaseFailure(ctx, string(phase))
	o.lifecycle.RecordProvision(ctx, "failed", time.Since(started))
	slog.LogAttrs(ctx, slog.LevelError, "provisioning failed",
		logger.Component("provisioning"),
		logger.TenantID(t.ID),
		logger.Domain(t.Domain),
		logger.Phase(string(phase)),
		logger.Error(cause),
	)

	return &Error{Phase: phase, Err: cause}
}

// rollback tears down what a failed provision created, in reverse creation
// order. It runs detached from the caller's cancellation: a request that
// timed out must still not leave half-created resources behind. Each action
// has its own timeout. Failures become residual-resource warnings; the
// original error is never masked.
func (o *Orchestrator) rollback(ctx context.Context, t *tenant.Tenant) []string {
	base := context.WithoutCancel(ctx)
	var warnings []string

	handle := t.ResourceHandle()
	dctx, cancel := context.WithTimeout(base, o.cfg.CompensationTimeout)
	err := o.resources.DestroyStore(dctx, handle)
	cancel()
	if err != nil {
		warnings = append(warnings, fmt.Sprintf("store %s not destroyed: %v", handle, err))
		o.auditResidual(base, t.ID, "store", handle, err)
	}

	rctx, cancel := context.WithTimeout(base, o.cfg.CompensationTimeout)
	err = o.registry.Delete(rctx, t.ID)
	cancel()
	if err != nil {
		warnings = append(warnings, fmt.Sprintf("registry row %s not deleted: %v", t.ID, err))
		o.auditResidual(base, t.ID, "registry_row", t.ID, err)
	}

	o.audit.Log(base, audit.Event{
		Type:     audit.TypeRollbackExecuted,
		TenantID: t.ID,
		Resource: "tenant",
		Metadata: map[string]any{audit.AttrWarnings: warnings},
	})
	return warnings
}

func (o *Orchestrator) auditResidual(ctx context.Context, tenantID, resource, handle string, cause error) {
	o.audit.Log(ctx, audit.Event{
		Type:     audit.TypeResidualResource,
		TenantID: tenantID,
		Resource: resource,
		Metadata: map[string]any{
			audit.AttrHandle: handle,
			audit.AttrReason: cause.Error(),
		},
	})
}

// UpdateTenantDomain moves a tenant to a new custom domain. Order matters:
// the new domain is configured before the registry changes, so a network
// failure leaves the old domain fully functional and the registry untouched.
// Teardown of the old domain is best-effort and never surfaces.
func (o *Orchestrator) UpdateTenantDomain(ctx context.Context, id, newDomain string) (*tenant.Tenant, error) {
	domain, err := tenant.NormalizeDomain(newDomain)
	if err != nil {
		return nil, err
	}

	current, err := o.registry.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Domain == domain {
		return current, nil
	}

	netCtx, cancel := context.WithTimeout(ctx, o.cfg.NetworkTimeout)
	err = o.network.ConfigureRouting(netCtx, domain)
	cancel()
	if err != nil {
		return nil, &Error{Phase: PhaseNetwork, Err: err}
	}

	updated, err := o.registry.UpdateDomain(ctx, id, domain)
	if err != nil {
		// The new domain was already configured at the edge; pull it back
		// so a conflicting claim does not keep a dangling route.
		o.teardownBestEffort(ctx, id, domain)
		return nil, err
	}

	o.teardownBestEffort(ctx, id, current.Domain)

	o.audit.Log(ctx, audit.Event{
		Type:     audit.TypeDomainUpdated,
		TenantID: id,
		Resource: "domain",
		Metadata: map[string]any{
			audit.AttrDomain:    domain,
			audit.AttrOldDomain: current.Domain,
		},
	})
	slog.LogAttrs(ctx, slog.LevelInfo, "tenant domain updated",
		logger.Component("provisioning"),
		logger.TenantID(id),
		logger.Domain(domain),
		logger.String("old_domain", current.Domain),
	)
	return updated, nil
}

// teardownBestEffort removes routing for a domain without letting failure
// escape. Runs detached from the caller's cancellation.
func (o *Orchestrator) teardownBestEffort(ctx context.Context, tenantID, domain string) {
	base := context.WithoutCancel(ctx)
	tctx, cancel := context.WithTimeout(base, o.cfg.CompensationTimeout)
	defer cancel()
	if err := o.network.TeardownRouting(tctx, domain); err != nil {
		slog.LogAttrs(base, slog.LevelWarn, "routing teardown failed",
			logger.Component("provisioning"),
			logger.TenantID(tenantID),
			logger.Domain(domain),
			logger.Error(err),
		)
		o.auditResidual(base, tenantID, "routing", domain, err)
	}
}

// DeprovisionTenant releases everything a tenant holds. It is idempotent:
// absent rows and absent stores are success. The registry row is deleted
// last so a crash mid-teardown leaves the tenant discoverable for a retry.
func (o *Orchestrator) DeprovisionTenant(ctx context.Context, id string) error {
	handle := tenant.HandleFromID(id)

	current, err := o.registry.Get(ctx, id)
	if err != nil {
		if errors.Is(err, tenant.ErrNotFound) {
			// Row already gone. The handle is derived from the id, so the
			// store can still be destroyed blind.
			return o.destroyStoreChecked(ctx, id, handle)
		}
		return fmt.Errorf("failed to load tenant: %w", err)
	}

	// Marking the row inactive is the serialization point against a
	// concurrent provision: its provisioning->active transition will miss
	// once this lands, and it rolls itself back.
	if current.Status != tenant.StatusInactive {
		_, err = o.registry.UpdateStatus(ctx, id,
			[]tenant.Status{tenant.StatusProvisioning, tenant.StatusActive, tenant.StatusSuspended},
			tenant.StatusInactive)
		if err != nil && !errors.Is(err, tenant.ErrInvalidTransition) && !errors.Is(err, tenant.ErrNotFound) {
			return fmt.Errorf("failed to deactivate tenant: %w", err)
		}
	}

	if err := o.destroyStoreChecked(ctx, id, handle); err != nil {
		return err
	}

	if current.Domain != "" {
		o.teardownBestEffort(ctx, id, current.Domain)
	}

	if err := o.registry.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete registry row: %w", err)
	}

	o.audit.Log(ctx, audit.Event{
		Type:     audit.TypeTenantDeprovisioned,
		TenantID: id,
		Resource: "tenant",
		Metadata: map[string]any{audit.AttrDomain: current.Domain},
	})
	slog.LogAttrs(ctx, slog.LevelInfo, "tenant deprovisioned",
		logger.Component("provisioning"),
		logger.TenantID(id),
	)
	return nil
}

// destroyStoreChecked destroys the store and keeps the failure visible:
// unlike rollback, deprovisioning reports destroy failures so the operator
// retries instead of silently leaking a store.
func (o *Orchestrator) destroyStoreChecked(ctx context.Context, id, handle string) error {
	dctx, cancel := context.WithTimeout(ctx, o.cfg.StoreTimeout)
	defer cancel()
	if err := o.resources.DestroyStore(dctx, handle); err != nil {
		o.auditResidual(ctx, id, "store", handle, err)
		return fmt.Errorf("failed to destroy store: %w", err)
	}
	return nil
}

// Suspend moves an active tenant to suspended. Registry-only; resources and
// routing stay in place.
func (o *Orchestrator) Suspend(ctx context.Context, id string) (*tenant.Tenant, error) {
	t, err := o.registry.UpdateStatus(ctx, id,
		[]tenant.Status{tenant.StatusActive}, tenant.StatusSuspended)
	if err != nil {
		return nil, err
	}
	o.audit.Log(ctx, audit.Event{
		Type:     audit.TypeTenantSuspended,
		TenantID: id,
		Resource: "tenant",
	})
	return t, nil
}

// Activate moves a suspended tenant back to active.
func (o *Orchestrator) Activate(ctx context.Context, id string) (*tenant.Tenant, error) {
	t, err := o.registry.UpdateStatus(ctx, id,
		[]tenant.Status{tenant.StatusSuspended}, tenant.StatusActive)
	if err != nil {
		return nil, err
	}
	o.audit.Log(ctx, audit.Event{
		Type:     audit.TypeTenantActivated,
		TenantID: id,
		Resource: "tenant",
	})
	return t, nil
}
