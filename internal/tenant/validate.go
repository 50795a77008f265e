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

package tenant

import (
	"strings"
)

const (
	minNameLength   = 2
	maxNameLength   = 100
	maxDomainLength = 253
	minSubdomainLen = 3
	maxSubdomainLen = 63
)

// reservedSubdomains are platform-owned labels no tenant may claim.
var reservedSubdomains = map[string]struct{}{
	"www":    {},
	"api":    {},
	"admin":  {},
	"app":    {},
	"mail":   {},
	"ftp":    {},
	"status": {},
	"cdn":    {},
}

// NormalizeDomain lowercases and trims a hostname and rejects anything that
// is not a bare host: schemes, paths, ports and embedded whitespace are all
// refused rather than stripped, so what the caller sent is what gets routed.
func NormalizeDomain(raw string) (string, error) {
	host := strings.ToLower(strings.TrimSpace(raw))
	if host == "" {
		return "", NewValidationError("domain", "is required")
	}
	if strings.Contains(host, "://") {
		return "", NewValidationError("domain", "must not include a scheme")
	}
	if strings.Contains(host, "/") {
		return "", NewValidationError("domain", "must not include a path")
	}
	if strings.Contains(host, ":") {
		return "", NewValidationError("domain", "must not include a port")
	}
	if strings.ContainsAny(host, " \t\r\n") {
		return "", NewValidationError("domain", "must not contain whitespace")
	}
	host = strings.TrimSuffix(host, ".")
	if len(host) > maxDomainLength {
		return "", NewValidationError("domain", "exceeds maximum length")
	}
	if !strings.Contains(host, ".") {
		return "", NewValidationError("domain", "must be a fully qualified hostname")
	}
	for _, label := range strings.Split(host, ".") {
		if label == "" {
			return "", NewValidationError("domain", "contains an empty label")
		}
		if strings.HasPrefix(label, "-") || strings.HasSuffix(label, "-") {
			return "", NewValidationError("domain", "labels must not start or end with a hyphen")
		}
		for i := 0; i < len(label); i++ {
			if !isHostByte(label[i]) {
				return "", NewValidationError("domain", "contains invalid characters")
			}
		}
	}
	return host, nil
}

// ValidateName checks the display name length bounds.
func ValidateName(name string) error {
	name = strings.TrimSpace(name)
	if len(name) < minNameLength {
		return NewValidationError("name", "must be at least 2 characters")
	}
	if len(name) > maxNameLength {
		return NewValidationError("name", "must be at most 100 characters")
	}
	return nil
}

// ValidateEmail performs a shape check only; deliverability is not our
// concern here.
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return NewValidationError("contact_email", "is required")
	}
	at := strings.Index(email, "@")
	if at <= 0 || at != strings.LastIndex(email, "@") {
		return NewValidationError("contact_email", "must be a valid address")
	}
	domain := email[at+1:]
	if domain == "" || !strings.Contains(domain, ".") {
		return NewValidationError("contact_email", "must be a valid address")
	}
	if strings.ContainsAny(email, " \t\r\n") {
		return NewValidationError("contact_email", "must not contain whitespace")
	}
	return nil
}

// NormalizeSubdomain lowercases and validates an optional platform
// subdomain label. Empty input is allowed and returned as empty.
func NormalizeSubdomain(raw string) (string, error) {
	sub := strings.ToLower(strings.TrimSpace(raw))
	if sub == "" {
		return "", nil
	}
	if len(sub) < minSubdomainLen {
		return "", NewValidationError("subdomain", "must be at least 3 characters")
	}
	if len(sub) > maxSubdomainLen {
		return "", NewValidationError("subdomain", "must be at most 63 characters")
	}
	if strings.HasPrefix(sub, "-") || strings.HasSuffix(sub, "-") {
		return "", NewValidationError("subdomain", "must not start or end with a hyphen")
	}
	for i := 0; i < len(sub); i++ {
		if !isHostByte(sub[i]) {
			return "", NewValidationError("subdomain", "may only contain lowercase letters, digits and hyphens")
		}
	}
	if _, reserved := reservedSubdomains[sub]; reserved {
		return "", NewValidationError("subdomain", "is reserved")
	}
	return sub, nil
}

func isHostByte(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= '0' && c <= '9' || c == '-'
}
