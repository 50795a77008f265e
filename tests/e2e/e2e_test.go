//go:build e2e

// Package e2e drives the operator API of a running control plane over plain
// HTTP. The stack comes from the e2e compose environment: the server, the
// registry and content databases, and the edge gateway admin stub. The test
// signs its own operator token, so OPERATOR_TOKEN_SECRET must match the
// server's.
package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	baseURL = getEnv("PRESSPLANE_API_URL", "http://127.0.0.1:8080")
	apiBase = baseURL + "/api/v1"

	tokenSecret = getEnv("OPERATOR_TOKEN_SECRET", "pressplane_dev_token_secret_0123456789")
	tokenIssuer = getEnv("OPERATOR_TOKEN_ISSUER", "pressplane")
)

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

type TestClient struct {
	httpClient *http.Client
	token      string
}

func NewTestClient(t *testing.T) *TestClient {
	t.Helper()

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss": tokenIssuer,
		"sub": "e2e@pressplane.dev",
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(tokenSecret))
	require.NoError(t, err)

	return &TestClient{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		token:      signed,
	}
}

func (c *TestClient) Do(method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		bodyReader = bytes.NewBuffer(jsonBody)
	}

	req, _ := http.NewRequest(method, path, bodyReader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	return c.httpClient.Do(req)
}

// decode drains and closes the response body into v.
func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

type apiError struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

type tenantJSON struct {
	ID          string `json:"id"`
	Domain      string `json:"domain"`
	Status      string `json:"status"`
	Plan        string `json:"plan"`
	TrialEndsAt string `json:"trial_ends_at"`
	Limits      struct {
		MaxUsers    int `json:"max_users"`
		MaxArticles int `json:"max_articles"`
	} `json:"limits"`
}

func TestE2E_TenantLifecycle(t *testing.T) {
	client := NewTestClient(t)

	// State shared between subtests
	var (
		e2eTenantID string
		e2eDomain   string
	)

	// 1. Platform health
	t.Run("Platform Health", func(t *testing.T) {
		resp, err := http.Get(baseURL + "/health")
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		resp, err = http.Get(baseURL + "/ready")
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode,
			"server must be ready before lifecycle flows run")
	})

	// 2. Provision flow
	t.Run("Provision Flow", func(t *testing.T) {
		domain := fmt.Sprintf("e2e-%d.pressplane.test", time.Now().Unix())

		resp, err := client.Do("POST", apiBase+"/tenants", map[string]string{
			"name":          "E2E Press",
			"domain":        domain,
			"contact_email": "owner@" + domain,
			"plan":          "trial",
		})
		require.NoError(t, err)
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		var result struct {
			Tenant       tenantJSON `json:"tenant"`
			SetupDetails struct {
				StoreCreated bool     `json:"store_created"`
				AdminCreated bool     `json:"admin_created"`
				Warnings     []string `json:"warnings"`
			} `json:"setup_details"`
			AdminCredentials struct {
				Email      string `json:"email"`
				TempSecret string `json:"temp_secret"`
			} `json:"admin_credentials"`
		}
		decode(t, resp, &result)

		assert.NotEmpty(t, result.Tenant.ID)
		assert.Equal(t, "active", result.Tenant.Status)
		assert.Equal(t, 5, result.Tenant.Limits.MaxUsers, "trial quota")
		assert.NotEmpty(t, result.Tenant.TrialEndsAt)
		assert.True(t, result.SetupDetails.StoreCreated)
		assert.True(t, result.SetupDetails.AdminCreated)
		assert.NotEmpty(t, result.AdminCredentials.TempSecret,
			"bootstrap credentials are handed out exactly once, here")

		t.Logf("Provisioned tenant %s on %s", result.Tenant.ID, domain)

		// The same domain must not be claimable twice.
		resp, err = client.Do("POST", apiBase+"/tenants", map[string]string{
			"name":          "E2E Imposter",
			"domain":        domain,
			"contact_email": "other@" + domain,
		})
		require.NoError(t, err)
		assert.Equal(t, http.StatusConflict, resp.StatusCode)

		var conflict apiError
		decode(t, resp, &conflict)
		assert.Equal(t, "DOMAIN_EXISTS", conflict.Code)

		e2eTenantID = result.Tenant.ID
		e2eDomain = domain
	})

	// 3. Inspection flow
	t.Run("Inspection Flow", func(t *testing.T) {
		require.NotEmpty(t, e2eTenantID)

		resp, err := client.Do("GET", apiBase+"/tenants/"+e2eTenantID, nil)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var got tenantJSON
		decode(t, resp, &got)
		assert.Equal(t, e2eDomain, got.Domain)

		resp, err = client.Do("GET", apiBase+"/tenants?limit=200", nil)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var page struct {
			Tenants []tenantJSON `json:"tenants"`
			Count   int          `json:"count"`
		}
		decode(t, resp, &page)
		found := false
		for _, tn := range page.Tenants {
			if tn.ID == e2eTenantID {
				found = true
			}
		}
		assert.True(t, found, "provisioned tenant must appear in the listing")

		// The status report always carries all five subsystems, whatever
		// state the e2e network is in. Only the store probe is asserted
		// healthy; DNS for a synthetic test domain may legitimately fail.
		resp, err = client.Do("GET", apiBase+"/tenants/"+e2eTenantID+"/status", nil)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var report struct {
			Certificate struct {
				State string `json:"state"`
			} `json:"certificate"`
			Routing struct {
				State string `json:"state"`
			} `json:"routing"`
			DNS struct {
				State string `json:"state"`
			} `json:"dns"`
			Liveness struct {
				State string `json:"state"`
			} `json:"liveness"`
			Store struct {
				State string `json:"state"`
			} `json:"store"`
			Overall string `json:"overall"`
		}
		decode(t, resp, &report)
		for name, state := range map[string]string{
			"certificate": report.Certificate.State,
			"routing":     report.Routing.State,
			"dns":         report.DNS.State,
			"liveness":    report.Liveness.State,
			"store":       report.Store.State,
		} {
			assert.NotEmpty(t, state, "check %s must be populated", name)
		}
		assert.Equal(t, "ok", report.Store.State)
		assert.NotEmpty(t, report.Overall)

		resp, err = client.Do("GET", apiBase+"/tenants/"+e2eTenantID+"/analytics", nil)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var analytics struct {
			Usage struct {
				Users int `json:"users"`
			} `json:"usage"`
			Quota struct {
				UsersPercent int `json:"users_percent"`
			} `json:"quota"`
			StoreError string `json:"store_error"`
		}
		decode(t, resp, &analytics)
		assert.Empty(t, analytics.StoreError)
		assert.Equal(t, 1, analytics.Usage.Users, "bootstrap admin")
		assert.Equal(t, 20, analytics.Quota.UsersPercent, "1 of 5 trial seats")
	})

	// 4. Lifecycle and domain flow
	t.Run("Lifecycle Flow", func(t *testing.T) {
		require.NotEmpty(t, e2eTenantID)

		resp, err := client.Do("POST", apiBase+"/tenants/"+e2eTenantID+"/suspend", nil)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var suspended tenantJSON
		decode(t, resp, &suspended)
		assert.Equal(t, "suspended", suspended.Status)

		// Suspending twice must surface the transition guard.
		resp, err = client.Do("POST", apiBase+"/tenants/"+e2eTenantID+"/suspend", nil)
		require.NoError(t, err)
		assert.Equal(t, http.StatusConflict, resp.StatusCode)

		var conflict apiError
		decode(t, resp, &conflict)
		assert.Equal(t, "INVALID_TRANSITION", conflict.Code)

		resp, err = client.Do("POST", apiBase+"/tenants/"+e2eTenantID+"/activate", nil)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var activated tenantJSON
		decode(t, resp, &activated)
		assert.Equal(t, "active", activated.Status)

		newDomain := fmt.Sprintf("renamed-%d.pressplane.test", time.Now().Unix())
		resp, err = client.Do("PUT", apiBase+"/tenants/"+e2eTenantID+"/domain", map[string]string{
			"domain": newDomain,
		})
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var renamed tenantJSON
		decode(t, resp, &renamed)
		assert.Equal(t, newDomain, renamed.Domain)
		e2eDomain = newDomain

		t.Logf("Moved tenant %s to %s", e2eTenantID, newDomain)
	})

	// 5. Bulk flow
	t.Run("Bulk Flow", func(t *testing.T) {
		require.NotEmpty(t, e2eTenantID)

		ghost := "00000000-0000-7000-8000-000000000000"
		resp, err := client.Do("POST", apiBase+"/tenants/bulk", map[string]any{
			"action":     "suspend",
			"tenant_ids": []string{e2eTenantID, ghost},
		})
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var batch struct {
			Results []struct {
				TenantID string `json:"tenant_id"`
				OK       bool   `json:"ok"`
				Code     string `json:"code"`
			} `json:"results"`
			Succeeded int `json:"succeeded"`
			Failed    int `json:"failed"`
		}
		decode(t, resp, &batch)

		require.Len(t, batch.Results, 2, "results must be ordered and complete")
		assert.Equal(t, e2eTenantID, batch.Results[0].TenantID)
		assert.True(t, batch.Results[0].OK)
		assert.Equal(t, ghost, batch.Results[1].TenantID)
		assert.False(t, batch.Results[1].OK)
		assert.Equal(t, "NOT_FOUND", batch.Results[1].Code)
		assert.Equal(t, 1, batch.Succeeded)
		assert.Equal(t, 1, batch.Failed)

		// Restore for the deprovision flow.
		resp, err = client.Do("POST", apiBase+"/tenants/bulk", map[string]any{
			"action":     "activate",
			"tenant_ids": []string{e2eTenantID},
		})
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()
	})

	// 6. Deprovision flow
	t.Run("Deprovision Flow", func(t *testing.T) {
		require.NotEmpty(t, e2eTenantID)

		resp, err := client.Do("DELETE", apiBase+"/tenants/"+e2eTenantID, nil)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var done map[string]string
		decode(t, resp, &done)
		assert.Equal(t, "deprovisioned", done["status"])

		// Deprovision is idempotent; the second call reports the same end
		// state instead of erroring.
		resp, err = client.Do("DELETE", apiBase+"/tenants/"+e2eTenantID, nil)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()

		resp, err = client.Do("GET", apiBase+"/tenants/"+e2eTenantID, nil)
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		resp.Body.Close()

		t.Logf("Deprovisioned tenant %s", e2eTenantID)
	})
}
