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
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/pressplane/pressplane/internal/identity"
	"github.com/pressplane/pressplane/internal/observability/logger"
)

// LoggingMiddleware logs HTTP requests
func LoggingMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			slog.InfoContext(r.Context(), "http_request_start",
				logger.RequestID(middleware.GetReqID(r.Context())),
				logger.Method(r.Method),
				logger.Path(r.URL.Path),
				logger.RemoteAddr(r.RemoteAddr),
			)

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				slog.InfoContext(r.Context(), "http_request_end",
					logger.RequestID(middleware.GetReqID(r.Context())),
					logger.Method(r.Method),
					logger.Path(r.URL.Path),
					logger.RemoteAddr(r.RemoteAddr),
					logger.UserAgent(r.UserAgent()),
					logger.StatusCode(ww.Status()),
					logger.Duration(time.Since(start).Milliseconds()),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

// AuthMiddleware validates the operator bearer token and binds the subject
// to the request context. Every rejected token is security-logged with the
// caller's address.
func (h *Handler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		scheme, token, found := strings.Cut(r.Header.Get("Authorization"), " ")
		if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
			h.security.TokenRejected(r.Context(), "missing bearer token", getIPAddress(r))
			respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "operator token required")
			return
		}

		claims, err := h.tokens.Verify(token)
		if err != nil {
			reason := "invalid token"
			if errors.Is(err, identity.ErrExpiredToken) {
				reason = "token expired"
			}
			h.security.TokenRejected(r.Context(), reason, getIPAddress(r))
			respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", reason)
			return
		}

		h.security.TokenAccepted(r.Context(), claims.Subject, getIPAddress(r))

		ctx := context.WithValue(r.Context(), operatorKey, claims.Subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ReadyGuard rejects requests while the server is starting or draining.
// Lifecycle operations must not begin before collaborators are wired, and
// must not be accepted once shutdown has started.
func (h *Handler) ReadyGuard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.ready.Ready() {
			respondError(w, http.StatusServiceUnavailable, "NOT_READY", "server is "+h.ready.Phase())
			return
		}
		next.ServeHTTP(w, r)
	})
}
