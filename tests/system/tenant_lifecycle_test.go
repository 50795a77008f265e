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

// Package system provides integration tests that run the full provisioning
// stack against real PostgreSQL databases.
//
// Test Execution:
//
//	INTEGRATION_TEST=true go test -v ./tests/system/...
//
// Prerequisites:
//
//	docker compose up -d postgres
//
// Test Categories:
//   - SYS-*: Full-stack lifecycle tests
package system

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/pressplane/pressplane/internal/audit"
	"github.com/pressplane/pressplane/internal/identity"
	"github.com/pressplane/pressplane/internal/provisioning"
	"github.com/pressplane/pressplane/internal/store/postgres"
	"github.com/pressplane/pressplane/internal/tenant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// registryDB and contentDB are the shared database connections for
// integration tests. Production runs these as separate clusters; the test
// environment may point both at the same server.
var (
	registryDB *postgres.DB
	contentDB  *postgres.DB
)

// TestMain sets up and tears down the test database connections
func TestMain(m *testing.M) {
	// Skip if not integration test
	if os.Getenv("INTEGRATION_TEST") != "true" {
		os.Exit(0)
	}

	ctx := context.Background()

	reg, err := postgres.New(ctx, postgres.Config{
		Host:         getEnvOrDefault("REGISTRY_DB_HOST", "localhost"),
		Port:         getEnvOrDefault("REGISTRY_DB_PORT", "5432"),
		User:         getEnvOrDefault("REGISTRY_DB_USER", "pressplane"),
		Password:     getEnvOrDefault("REGISTRY_DB_PASSWORD", "pressplane_dev_password"),
		Database:     getEnvOrDefault("REGISTRY_DB_NAME", "pressplane_registry"),
		SSLMode:      "disable",
		MaxOpenConns: 5,
		MaxIdleConns: 2,
	})
	if err != nil {
		panic("failed to connect to registry database: " + err.Error())
	}
	registryDB = reg

	if err := registryDB.Migrate(ctx, postgres.RegistrySchema); err != nil {
		panic("failed to apply registry schema: " + err.Error())
	}

	content, err := postgres.New(ctx, postgres.Config{
		Host:         getEnvOrDefault("CONTENT_DB_HOST", "localhost"),
		Port:         getEnvOrDefault("CONTENT_DB_PORT", "5432"),
		User:         getEnvOrDefault("CONTENT_DB_USER", "pressplane"),
		Password:     getEnvOrDefault("CONTENT_DB_PASSWORD", "pressplane_dev_password"),
		Database:     getEnvOrDefault("CONTENT_DB_NAME", "pressplane_content"),
		SSLMode:      "disable",
		MaxOpenConns: 5,
		MaxIdleConns: 2,
	})
	if err != nil {
		panic("failed to connect to content database: " + err.Error())
	}
	contentDB = content

	// Run tests
	code := m.Run()

	// Cleanup
	contentDB.Close()
	registryDB.Close()
	os.Exit(code)
}

func getEnvOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// stubGateway satisfies the network collaborators without a real edge
// gateway. Routing behavior has its own tests; these suites exercise the
// databases.
type stubGateway struct{}

func (stubGateway) ConfigureRouting(ctx context.Context, domain string) error { return nil }
func (stubGateway) TeardownRouting(ctx context.Context, domain string) error  { return nil }
func (stubGateway) ProbeDNS(ctx context.Context, domain string) error         { return nil }
func (stubGateway) ProbeCertificate(ctx context.Context, domain string) error { return nil }
func (stubGateway) ProbeRouting(ctx context.Context, domain string) error     { return nil }
func (stubGateway) ProbeLiveness(ctx context.Context, domain string) error    { return nil }

func provisionerConfig() provisioning.Config {
	return provisioning.Config{
		StoreTimeout:        30 * time.Second,
		IdentityTimeout:     10 * time.Second,
		NetworkTimeout:      10 * time.Second,
		CompensationTimeout: 30 * time.Second,
		SecretLength:        16,
	}
}

func newStack() (*provisioning.Orchestrator, *postgres.TenantRepository, *postgres.TenantStore) {
	registry := postgres.NewTenantRepository(registryDB)
	store := postgres.NewTenantStore(contentDB, identity.NewHasher(65536, 3, 4, 16, 32))
	orch := provisioning.NewOrchestrator(registry, store, stubGateway{}, audit.NewSlogLogger(), nil, provisionerConfig())
	return orch, registry, store
}

// uniqueDomain keeps test rows from colliding across runs; the suite runs
// against a persistent database.
func uniqueDomain(prefix string) string {
	return prefix + "-" + tenant.NewID()[:8] + ".system.test"
}

// =============================================================================
// LIFECYCLE TESTS
// =============================================================================

// TestPurpose: Validates the full tenant lifecycle against real databases: provision, probe, suspend, activate, deprovision.
// Scope: System Test
// Security: Lifecycle state integrity across registry and content store
// Expected: Every step lands in the expected registry state, and the store exists exactly as long as the tenant does.
// Test Case ID: SYS-01
func TestSystem_TenantLifecycle_EndToEnd(t *testing.T) {
	if registryDB == nil {
		t.Skip("Integration test requires databases (set INTEGRATION_TEST=true)")
	}

	ctx := context.Background()
	orch, registry, store := newStack()

	domain := uniqueDomain("lifecycle")
	res, err := orch.ProvisionTenant(ctx, provisioning.Spec{
		Name:         "Lifecycle Press",
		Domain:       domain,
		ContactEmail: "ops@" + domain,
		Plan:         tenant.PlanBasic,
	})
	require.NoError(t, err, "SYS-01: provision failed")
	tenantID := res.Tenant.ID
	defer orch.DeprovisionTenant(ctx, tenantID)

	assert.Equal(t, tenant.StatusActive, res.Tenant.Status,
		"SYS-01: provisioned tenant must come back active")
	assert.True(t, res.SetupDetails.StoreCreated)
	assert.True(t, res.SetupDetails.AdminCreated)
	require.NotEmpty(t, res.AdminCredentials.TempSecret,
		"SYS-01: bootstrap credentials are handed out exactly once")

	handle := tenant.HandleFromID(tenantID)
	require.NoError(t, store.ProbeStore(ctx, handle),
		"SYS-01: store must exist after provision")

	usage, err := store.ReadUsage(ctx, handle)
	require.NoError(t, err)
	assert.Equal(t, 1, usage.Users,
		"SYS-01: bootstrap admin must be seeded in the store")

	suspended, err := orch.Suspend(ctx, tenantID)
	require.NoError(t, err)
	assert.Equal(t, tenant.StatusSuspended, suspended.Status)

	activated, err := orch.Activate(ctx, tenantID)
	require.NoError(t, err)
	assert.Equal(t, tenant.StatusActive, activated.Status)

	require.NoError(t, orch.DeprovisionTenant(ctx, tenantID),
		"SYS-01: deprovision failed")

	_, err = registry.Get(ctx, tenantID)
	assert.ErrorIs(t, err, tenant.ErrNotFound,
		"SYS-01: registry row must be gone after deprovision")
	assert.Error(t, store.ProbeStore(ctx, handle),
		"SYS-01: store must be gone after deprovision")
}

// brokenIdentityStore delegates to the real store but fails the identity
// step, forcing compensation to run against the real database. It records
// the handle it created so the test can check it was destroyed.
type brokenIdentityStore struct {
	*postgres.TenantStore
	seenHandle string
}

func (b *brokenIdentityStore) CreateStore(ctx context.Context, handle string) error {
	b.seenHandle = handle
	return b.TenantStore.CreateStore(ctx, handle)
}

func (b *brokenIdentityStore) BootstrapAdminIdentity(ctx context.Context, handle, email, secret string) error {
	return errors.New("identity subsystem offline")
}

// TestPurpose: Validates that a provisioning failure after partial progress compensates fully in the real databases and reports the failing phase.
// Scope: System Test
// Security: No orphaned tenant rows or stores after failed provisioning
// Expected: ProvisionTenant returns an identity-phase error; the registry row is gone and the store schema that was created has been dropped.
// Test Case ID: SYS-02
func TestSystem_ProvisionFailure_CompensatesInRealDatabases(t *testing.T) {
	if registryDB == nil {
		t.Skip("Integration test requires databases (set INTEGRATION_TEST=true)")
	}

	ctx := context.Background()
	registry := postgres.NewTenantRepository(registryDB)
	store := postgres.NewTenantStore(contentDB, identity.NewHasher(65536, 3, 4, 16, 32))
	broken := &brokenIdentityStore{TenantStore: store}
	orch := provisioning.NewOrchestrator(registry, broken, stubGateway{}, audit.NewSlogLogger(), nil, provisionerConfig())

	domain := uniqueDomain("rollback")
	_, err := orch.ProvisionTenant(ctx, provisioning.Spec{
		Name:         "Doomed Press",
		Domain:       domain,
		ContactEmail: "ops@" + domain,
	})
	require.Error(t, err, "SYS-02: provision must fail when identity bootstrap fails")

	var perr *provisioning.Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, provisioning.PhaseIdentity, perr.Phase)

	_, err = registry.GetByDomain(ctx, domain)
	assert.ErrorIs(t, err, tenant.ErrNotFound,
		"SYS-02: no registry row may survive a failed provision")

	require.NotEmpty(t, broken.seenHandle, "SYS-02: the store phase should have run")
	assert.Error(t, store.ProbeStore(ctx, broken.seenHandle),
		"SYS-02: compensation must drop the store that was created")
}

// =============================================================================
// ISOLATION TESTS
// =============================================================================

// TestPurpose: Validates that deprovisioning one tenant cannot touch another tenant's store or registry row.
// Scope: System Test
// Security: Multi-tenancy boundary enforcement (prevents cross-tenant destruction)
// Expected: After tenant A is deprovisioned, tenant B's store still probes healthy with its data intact.
// Test Case ID: SYS-03
func TestSystem_StoreIsolation_DeprovisionLeavesNeighborsIntact(t *testing.T) {
	if registryDB == nil {
		t.Skip("Integration test requires databases (set INTEGRATION_TEST=true)")
	}

	ctx := context.Background()
	orch, registry, store := newStack()

	domainA := uniqueDomain("iso-a")
	resA, err := orch.ProvisionTenant(ctx, provisioning.Spec{
		Name:         "Tenant A",
		Domain:       domainA,
		ContactEmail: "a@" + domainA,
	})
	require.NoError(t, err)
	defer orch.DeprovisionTenant(ctx, resA.Tenant.ID)

	domainB := uniqueDomain("iso-b")
	resB, err := orch.ProvisionTenant(ctx, provisioning.Spec{
		Name:         "Tenant B",
		Domain:       domainB,
		ContactEmail: "b@" + domainB,
	})
	require.NoError(t, err)
	defer orch.DeprovisionTenant(ctx, resB.Tenant.ID)

	require.NoError(t, orch.DeprovisionTenant(ctx, resA.Tenant.ID))

	// CRITICAL: B must be untouched by A's destruction
	handleB := tenant.HandleFromID(resB.Tenant.ID)
	assert.NoError(t, store.ProbeStore(ctx, handleB),
		"SYS-03 SECURITY: tenant B's store MUST survive tenant A's deprovision")

	usage, err := store.ReadUsage(ctx, handleB)
	require.NoError(t, err)
	assert.Equal(t, 1, usage.Users,
		"SYS-03 SECURITY: tenant B's data MUST be intact")

	got, err := registry.Get(ctx, resB.Tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, tenant.StatusActive, got.Status)
}

// TestPurpose: Validates the contract the sweep command is built on: residual stores are discoverable by handle-set difference and destroyable blindly.
// Scope: System Test
// Security: Residual resource cleanup (orphaned stores hold tenant data)
// Expected: A store with no registry row shows up in ListStoreHandles, is absent from the live handle set, and DestroyStore removes it without touching live stores.
// Test Case ID: SYS-04
func TestSystem_ResidualStores_AreDiscoverableAndDestroyable(t *testing.T) {
	if registryDB == nil {
		t.Skip("Integration test requires databases (set INTEGRATION_TEST=true)")
	}

	ctx := context.Background()
	orch, registry, store := newStack()

	// A store created outside any provision is exactly what a crashed
	// rollback leaves behind.
	orphanHandle := tenant.HandleFromID(tenant.NewID())
	require.NoError(t, store.CreateStore(ctx, orphanHandle))
	defer store.DestroyStore(ctx, orphanHandle)

	domain := uniqueDomain("sweep")
	res, err := orch.ProvisionTenant(ctx, provisioning.Spec{
		Name:         "Live Press",
		Domain:       domain,
		ContactEmail: "ops@" + domain,
	})
	require.NoError(t, err)
	defer orch.DeprovisionTenant(ctx, res.Tenant.ID)
	liveHandle := tenant.HandleFromID(res.Tenant.ID)

	handles, err := store.ListStoreHandles(ctx)
	require.NoError(t, err)
	assert.Contains(t, handles, orphanHandle)
	assert.Contains(t, handles, liveHandle)

	live := make(map[string]struct{})
	for offset := 0; ; offset += 200 {
		page, err := registry.List(ctx, 200, offset)
		require.NoError(t, err)
		for _, tn := range page {
			live[tenant.HandleFromID(tn.ID)] = struct{}{}
		}
		if len(page) < 200 {
			break
		}
	}
	_, orphanIsLive := live[orphanHandle]
	assert.False(t, orphanIsLive, "SYS-04: the orphan must not appear live")
	_, liveIsLive := live[liveHandle]
	assert.True(t, liveIsLive, "SYS-04: the provisioned tenant must appear live")

	require.NoError(t, store.DestroyStore(ctx, orphanHandle),
		"SYS-04: blind destroy of a residual store must succeed")
	assert.Error(t, store.ProbeStore(ctx, orphanHandle))
	assert.NoError(t, store.ProbeStore(ctx, liveHandle),
		"SYS-04 SECURITY: sweeping residual stores MUST NOT touch live stores")
}
