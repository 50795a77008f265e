// @title Pressplane Control Plane API
// @version 1.0.0
// @description Control plane for the Pressplane multi-tenant publishing platform

// @contact.name Platform Team
// @contact.email platform@pressplane.dev

// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0.html

// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/pressplane/pressplane/internal/analytics"
	"github.com/pressplane/pressplane/internal/bulk"
	"github.com/pressplane/pressplane/internal/identity"
	"github.com/pressplane/pressplane/internal/netprov"
	"github.com/pressplane/pressplane/internal/observability/logger"
	"github.com/pressplane/pressplane/internal/provisioning"
	"github.com/pressplane/pressplane/internal/readiness"
	"github.com/pressplane/pressplane/internal/status"
	"github.com/pressplane/pressplane/internal/tenant"
)

// Handler holds HTTP handlers and dependencies
type Handler struct {
	provisioner *provisioning.Orchestrator
	statuses    *status.Aggregator
	analytics   *analytics.Service
	bulk        *bulk.Executor
	registry    tenant.Registry
	tokens      *identity.TokenIssuer
	security    *logger.SecurityLogger
	ready       *readiness.State
	devMode     bool
}

// NewHandler creates a new HTTP handler
func NewHandler(
	provisioner *provisioning.Orchestrator,
	statuses *status.Aggregator,
	analyticsService *analytics.Service,
	bulkExecutor *bulk.Executor,
	registry tenant.Registry,
	tokens *identity.TokenIssuer,
	security *logger.SecurityLogger,
	ready *readiness.State,
	devMode bool,
) *Handler {
	return &Handler{
		provisioner: provisioner,
		statuses:    statuses,
		analytics:   analyticsService,
		bulk:        bulkExecutor,
		registry:    registry,
		tokens:      tokens,
		security:    security,
		ready:       ready,
		devMode:     devMode,
	}
}

// NewRouter creates a new HTTP router
func NewRouter(h *Handler, rateLimiter *RateLimiter) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(RateLimitMiddleware(rateLimiter, h.security))
	r.Use(func(handler http.Handler) http.Handler {
		return otelhttp.NewHandler(handler, "http_request",
			otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}),
		)
	})
	r.Use(LoggingMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Liveness and readiness
	r.Get("/health", h.HealthCheck)
	r.Get("/ready", h.ReadyCheck)

	// Operator API. Everything below the auth gate also sits behind the
	// readiness guard: lifecycle operations need wired collaborators.
	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(h.AuthMiddleware)
			r.Use(h.ReadyGuard)

			r.Route("/tenants", func(r chi.Router) {
				r.Post("/", h.CreateTenant)
				r.Get("/", h.ListTenants)
				r.Post("/bulk", h.BulkOperation)

				r.Route("/{tenantID}", func(r chi.Router) {
					r.Get("/", h.GetTenant)
					r.Delete("/", h.DeleteTenant)
					r.Put("/domain", h.UpdateDomain)
					r.Post("/suspend", h.SuspendTenant)
					r.Post("/activate", h.ActivateTenant)
					r.Get("/status", h.GetTenantStatus)
					r.Get("/analytics", h.GetTenantAnalytics)
				})
			})
		})
	})

	return r
}

// HealthCheck returns the health status
// @Summary Health Check
// @Description Checks if the service is up and running
// @Tags System
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "pressplane",
	})
}

// ReadyCheck reports whether the control plane accepts operator traffic
// @Summary Readiness Check
// @Description Reports whether collaborators are wired and the server is not draining
// @Tags System
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /ready [get]
func (h *Handler) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	code := http.StatusOK
	if !h.ready.Ready() {
		code = http.StatusServiceUnavailable
	}
	respondJSON(w, code, map[string]string{
		"status": h.ready.Phase(),
	})
}

// errorResponse is the uniform error envelope. Detail carries the raw
// error text in dev mode only.
type errorResponse struct {
	Code   string `json:"code"`
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

// Helper functions
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{
		Code:  code,
		Error: message,
	})
}

// respondServiceError maps a domain error onto the HTTP error taxonomy.
// Classification inspects the wrapped chain most-specific first.
func (h *Handler) respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	resp, statusCode := classifyError(err)
	if h.devMode {
		resp.Detail = err.Error()
	}

	if statusCode >= http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "request failed",
			logger.Path(r.URL.Path),
			logger.Error(err),
		)
	}

	respondJSON(w, statusCode, resp)
}

func classifyError(err error) (errorResponse, int) {
	var verr *tenant.ValidationError
	if errors.As(err, &verr) {
		return errorResponse{Code: "VALIDATION_ERROR", Error: verr.Error()}, http.StatusBadRequest
	}

	switch {
	case errors.Is(err, tenant.ErrNotFound):
		return errorResponse{Code: "NOT_FOUND", Error: "tenant not found"}, http.StatusNotFound
	case errors.Is(err, tenant.ErrDomainExists):
		return errorResponse{Code: "DOMAIN_EXISTS", Error: "domain already in use"}, http.StatusConflict
	case errors.Is(err, tenant.ErrSubdomainExists):
		return errorResponse{Code: "SUBDOMAIN_EXISTS", Error: "subdomain already in use"}, http.StatusConflict
	case errors.Is(err, tenant.ErrInvalidTransition):
		return errorResponse{Code: "INVALID_TRANSITION", Error: "tenant state does not allow this operation"}, http.StatusConflict
	}

	// Subsystem attribution beats the generic collaborator report, so a
	// network failure answers as DNS_ERROR rather than a bare 502.
	var nerr *netprov.Error
	if errors.As(err, &nerr) {
		switch nerr.Subsystem {
		case netprov.SubsystemDNS:
			return errorResponse{Code: "DNS_ERROR", Error: "dns configuration failed"}, http.StatusBadGateway
		case netprov.SubsystemTLS:
			return errorResponse{Code: "SSL_ERROR", Error: "certificate provisioning failed"}, http.StatusBadGateway
		default:
			return errorResponse{Code: "ROUTING_ERROR", Error: "routing configuration failed"}, http.StatusBadGateway
		}
	}

	var cerr *provisioning.CollaboratorError
	if errors.As(err, &cerr) {
		return errorResponse{Code: "COLLABORATOR_UNAVAILABLE", Error: "collaborator " + cerr.Name + " is unavailable"}, http.StatusBadGateway
	}

	var perr *provisioning.Error
	if errors.As(err, &perr) {
		return errorResponse{Code: "CREATION_ERROR", Error: "provisioning failed in " + string(perr.Phase) + " phase"}, http.StatusInternalServerError
	}

	return errorResponse{Code: "INTERNAL_ERROR", Error: "internal error"}, http.StatusInternalServerError
}

func getIPAddress(r *http.Request) string {
	// Check X-Forwarded-For header first
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	// Check X-Real-IP header
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}
