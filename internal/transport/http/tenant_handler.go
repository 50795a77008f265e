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

package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/pressplane/pressplane/internal/bulk"
	"github.com/pressplane/pressplane/internal/provisioning"
	"github.com/pressplane/pressplane/internal/tenant"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// CreateTenantRequest represents tenant provisioning data
type CreateTenantRequest struct {
	Name         string `json:"name" binding:"required" example:"Acme Publishing"`
	Domain       string `json:"domain" binding:"required" example:"news.acme.com"`
	Subdomain    string `json:"subdomain" example:"acme"`
	ContactEmail string `json:"contact_email" binding:"required" example:"admin@acme.com"`
	ContactName  string `json:"contact_name" example:"Jane Admin"`
	Plan         string `json:"plan" example:"professional"`
}

// CreateTenant provisions a tenant end to end
// @Summary Provision Tenant
// @Description Register a tenant, create its content store and admin identity, and configure network routing
// @Tags Tenant
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateTenantRequest true "Tenant Spec"
// @Success 201 {object} provisioning.Result
// @Failure 400 {object} errorResponse
// @Failure 409 {object} errorResponse
// @Failure 500 {object} errorResponse
// @Router /tenants [post]
func (h *Handler) CreateTenant(w http.ResponseWriter, r *http.Request) {
	var req CreateTenantRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body")
		return
	}

	result, err := h.provisioner.ProvisionTenant(r.Context(), provisioning.Spec{
		Name:         req.Name,
		Domain:       req.Domain,
		Subdomain:    req.Subdomain,
		ContactEmail: req.ContactEmail,
		ContactName:  req.ContactName,
		Plan:         tenant.Plan(req.Plan),
	})
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, result)
}

// ListTenants returns a page of registered tenants
// @Summary List Tenants
// @Description List tenants, newest first
// @Tags Tenant
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Page size (max 200)"
// @Param offset query int false "Page offset"
// @Success 200 {object} map[string]any
// @Failure 400 {object} errorResponse
// @Router /tenants [get]
func (h *Handler) ListTenants(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", defaultListLimit)
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "limit must be an integer")
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "offset must be an integer")
		return
	}

	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	tenants, err := h.registry.List(r.Context(), limit, offset)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"tenants": tenants,
		"count":   len(tenants),
	})
}

// GetTenant returns one tenant's registry record
// @Summary Get Tenant
// @Description Retrieve a tenant by id
// @Tags Tenant
// @Produce json
// @Security BearerAuth
// @Param tenantID path string true "Tenant ID"
// @Success 200 {object} tenant.Tenant
// @Failure 404 {object} errorResponse
// @Router /tenants/{tenantID} [get]
func (h *Handler) GetTenant(w http.ResponseWriter, r *http.Request) {
	t, err := h.registry.Get(r.Context(), chi.URLParam(r, "tenantID"))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, t)
}

// UpdateDomainRequest represents a custom domain change
type UpdateDomainRequest struct {
	Domain string `json:"domain" binding:"required" example:"press.acme.com"`
}

// UpdateDomain switches a tenant to a new custom domain
// @Summary Update Tenant Domain
// @Description Configure routing for the new domain, then commit it in the registry
// @Tags Tenant
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param tenantID path string true "Tenant ID"
// @Param request body UpdateDomainRequest true "New Domain"
// @Success 200 {object} tenant.Tenant
// @Failure 400 {object} errorResponse
// @Failure 404 {object} errorResponse
// @Failure 409 {object} errorResponse
// @Failure 502 {object} errorResponse
// @Router /tenants/{tenantID}/domain [put]
func (h *Handler) UpdateDomain(w http.ResponseWriter, r *http.Request) {
	var req UpdateDomainRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body")
		return
	}

	t, err := h.provisioner.UpdateTenantDomain(r.Context(), chi.URLParam(r, "tenantID"), req.Domain)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, t)
}

// DeleteTenant deprovisions a tenant and removes its resources
// @Summary Deprovision Tenant
// @Description Tear down routing, destroy the content store, and remove the registry row
// @Tags Tenant
// @Produce json
// @Security BearerAuth
// @Param tenantID path string true "Tenant ID"
// @Success 200 {object} map[string]string
// @Failure 500 {object} errorResponse
// @Router /tenants/{tenantID} [delete]
func (h *Handler) DeleteTenant(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")

	if err := h.provisioner.DeprovisionTenant(r.Context(), tenantID); err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	// Deprovisioning an unknown tenant succeeds: the requested end state
	// already holds.
	respondJSON(w, http.StatusOK, map[string]string{
		"tenant_id": tenantID,
		"status":    "deprovisioned",
	})
}

// SuspendTenant suspends a single tenant
// @Summary Suspend Tenant
// @Description Move an active tenant to suspended
// @Tags Tenant
// @Produce json
// @Security BearerAuth
// @Param tenantID path string true "Tenant ID"
// @Success 200 {object} tenant.Tenant
// @Failure 404 {object} errorResponse
// @Failure 409 {object} errorResponse
// @Router /tenants/{tenantID}/suspend [post]
func (h *Handler) SuspendTenant(w http.ResponseWriter, r *http.Request) {
	t, err := h.provisioner.Suspend(r.Context(), chi.URLParam(r, "tenantID"))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, t)
}

// ActivateTenant reactivates a suspended tenant
// @Summary Activate Tenant
// @Description Move a suspended tenant back to active
// @Tags Tenant
// @Produce json
// @Security BearerAuth
// @Param tenantID path string true "Tenant ID"
// @Success 200 {object} tenant.Tenant
// @Failure 404 {object} errorResponse
// @Failure 409 {object} errorResponse
// @Router /tenants/{tenantID}/activate [post]
func (h *Handler) ActivateTenant(w http.ResponseWriter, r *http.Request) {
	t, err := h.provisioner.Activate(r.Context(), chi.URLParam(r, "tenantID"))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, t)
}

// GetTenantStatus returns the aggregated health report for a tenant
// @Summary Tenant Status
// @Description Probe DNS, certificate, routing, liveness and the content store concurrently
// @Tags Tenant
// @Produce json
// @Security BearerAuth
// @Param tenantID path string true "Tenant ID"
// @Success 200 {object} status.Report
// @Failure 404 {object} errorResponse
// @Router /tenants/{tenantID}/status [get]
func (h *Handler) GetTenantStatus(w http.ResponseWriter, r *http.Request) {
	report, err := h.statuses.GetTenantStatus(r.Context(), chi.URLParam(r, "tenantID"))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, report)
}

// GetTenantAnalytics returns usage and quota consumption for a tenant
// @Summary Tenant Analytics
// @Description Read usage counters from the tenant store and report them against plan quotas
// @Tags Tenant
// @Produce json
// @Security BearerAuth
// @Param tenantID path string true "Tenant ID"
// @Success 200 {object} analytics.Report
// @Failure 404 {object} errorResponse
// @Router /tenants/{tenantID}/analytics [get]
func (h *Handler) GetTenantAnalytics(w http.ResponseWriter, r *http.Request) {
	report, err := h.analytics.GetTenantAnalytics(r.Context(), chi.URLParam(r, "tenantID"))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, report)
}

// BulkOperationRequest represents a batch lifecycle action
type BulkOperationRequest struct {
	Action    string   `json:"action" binding:"required" example:"suspend"`
	TenantIDs []string `json:"tenant_ids" binding:"required"`
}

// BulkOperation applies one lifecycle action to many tenants
// @Summary Bulk Operation
// @Description Apply suspend, activate or delete to a list of tenants; per-tenant failures are reported inside the result
// @Tags Tenant
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body BulkOperationRequest true "Batch"
// @Success 200 {object} bulk.Result
// @Failure 400 {object} errorResponse
// @Router /tenants/bulk [post]
func (h *Handler) BulkOperation(w http.ResponseWriter, r *http.Request) {
	var req BulkOperationRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body")
		return
	}

	result, err := h.bulk.Execute(r.Context(), bulk.Action(req.Action), req.TenantIDs)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

func queryInt(r *http.Request, key string, fallback int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}
