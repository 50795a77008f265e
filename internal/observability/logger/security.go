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

package logger

import (
	"context"
	"log/slog"
)

// SecurityEvent represents a security-relevant event at the API boundary
type SecurityEvent struct {
	EventType string
	Subject   string
	IPAddress string
	Action    string
	Resource  string
	Result    string // success, failure, denied
	Reason    string
	Metadata  map[string]any
}

// SecurityLogger provides methods for logging events at the operator API
// boundary: rejected tokens, denied access, throttled clients. Lifecycle
// audit events live in the audit package; this logger only covers the
// transport edge.
type SecurityLogger struct {
	logger *slog.Logger
}

// NewSecurityLogger creates a new security logger
func NewSecurityLogger(logger *slog.Logger) *SecurityLogger {
	return &SecurityLogger{
		logger: logger.With(Component("security")),
	}
}

// Log logs a security event
func (s *SecurityLogger) Log(ctx context.Context, event SecurityEvent) {
	attrs := []slog.Attr{
		slog.String("event_type", event.EventType),
		slog.String("action", event.Action),
		slog.String("result", event.Result),
	}

	if event.Subject != "" {
		attrs = append(attrs, slog.String("subject", event.Subject))
	}
	if event.IPAddress != "" {
		attrs = append(attrs, slog.String("ip_address", event.IPAddress))
	}
	if event.Resource != "" {
		attrs = append(attrs, slog.String("resource", event.Resource))
	}
	if event.Reason != "" {
		attrs = append(attrs, slog.String("reason", event.Reason))
	}
	if len(event.Metadata) > 0 {
		attrs = append(attrs, slog.Any("metadata", event.Metadata))
	}

	s.logger.LogAttrs(ctx, slog.LevelInfo, "security_event", attrs...)
}

// Authentication events
func (s *SecurityLogger) TokenAccepted(ctx context.Context, subject, ipAddr string) {
	s.Log(ctx, SecurityEvent{
		EventType: "authentication",
		Subject:   subject,
		IPAddress: ipAddr,
		Action:    "verify_token",
		Result:    "success",
	})
}

func (s *SecurityLogger) TokenRejected(ctx context.Context, reason, ipAddr string) {
	s.Log(ctx, SecurityEvent{
		EventType: "authentication",
		IPAddress: ipAddr,
		Action:    "verify_token",
		Result:    "failure",
		Reason:    reason,
	})
}

// Access control events
func (s *SecurityLogger) AccessDenied(ctx context.Context, subject, resource, reason, ipAddr string) {
	s.Log(ctx, SecurityEvent{
		EventType: "access_control",
		Subject:   subject,
		IPAddress: ipAddr,
		Action:    "access",
		Resource:  resource,
		Result:    "denied",
		Reason:    reason,
	})
}

// Throttling events
func (s *SecurityLogger) RateLimited(ctx context.Context, ipAddr, path string) {
	s.Log(ctx, SecurityEvent{
		EventType: "rate_limit",
		IPAddress: ipAddr,
		Action:    "throttle",
		Resource:  path,
		Result:    "denied",
	})
}
