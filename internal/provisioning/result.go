package provisioning

import "github.com/pressplane/pressplane/internal/tenant"

// Spec is the operator's request to provision a tenant.
type Spec struct {
	Name         string      `json:"name"`
	Domain       string      `json:"domain"`
	Subdomain    string      `json:"subdomain,omitempty"`
	ContactEmail string      `json:"contact_email"`
	ContactName  string      `json:"contact_name,omitempty"`
	Plan         tenant.Plan `json:"plan,omitempty"`
}

// SetupDetails reports which provisioning steps completed. Warnings carry
// non-fatal degradations, the best-effort network step above all.
type SetupDetails struct {
	StoreCreated      bool     `json:"store_created"`
	AdminCreated      bool     `json:"admin_created"`
	NetworkConfigured bool     `json:"network_configured"`
	Warnings          []string `json:"warnings,omitempty"`
}

// AdminCredentials carries the bootstrap admin login exactly once, in the
// provisioning response. The secret is never persisted and never logged;
// only its hash lives in the tenant store.
type AdminCredentials struct {
	Email      string `json:"email"`
	TempSecret string `json:"temp_secret"`
}

// Result is the outcome of a successful provision.
type Result struct {
	Tenant           *tenant.Tenant   `json:"tenant"`
	SetupDetails     SetupDetails     `json:"setup_details"`
	AdminCredentials AdminCredentials `json:"admin_credentials"`
}
