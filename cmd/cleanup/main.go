package main

import (
	"context"
	"fmt"
	"os"

	"github.com/pressplane/pressplane/internal/audit"
	"github.com/pressplane/pressplane/internal/config"
	"github.com/pressplane/pressplane/internal/identity"
	"github.com/pressplane/pressplane/internal/observability/logger"
	"github.com/pressplane/pressplane/internal/store/postgres"
	"github.com/pressplane/pressplane/internal/tenant"
)

const sweepPageSize = 200

// cleanup destroys content stores whose tenant no longer exists in the
// registry. Rollback normally removes these during provisioning; the sweep
// catches what a crash or failed compensation left behind.
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger.Init(logger.Config{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: cfg.Observability.ServiceName,
	})

	ctx := context.Background()

	registryDB, err := postgres.New(ctx, postgres.Config{
		Host:            cfg.Registry.Host,
		Port:            cfg.Registry.Port,
		User:            cfg.Registry.User,
		Password:        cfg.Registry.Password,
		Database:        cfg.Registry.Database,
		SSLMode:         cfg.Registry.SSLMode,
		MaxOpenConns:    cfg.Registry.MaxOpenConns,
		MaxIdleConns:    cfg.Registry.MaxIdleConns,
		ConnMaxLifetime: cfg.Registry.ConnMaxLifetime,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Unable to connect to registry database: %v\n", err)
		os.Exit(1)
	}
	defer registryDB.Close()

	contentDB, err := postgres.New(ctx, postgres.Config{
		Host:            cfg.ContentDatabase.Host,
		Port:            cfg.ContentDatabase.Port,
		User:            cfg.ContentDatabase.User,
		Password:        cfg.ContentDatabase.Password,
		Database:        cfg.ContentDatabase.Database,
		SSLMode:         cfg.ContentDatabase.SSLMode,
		MaxOpenConns:    cfg.ContentDatabase.MaxOpenConns,
		MaxIdleConns:    cfg.ContentDatabase.MaxIdleConns,
		ConnMaxLifetime: cfg.ContentDatabase.ConnMaxLifetime,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Unable to connect to content database: %v\n", err)
		os.Exit(1)
	}
	defer contentDB.Close()

	registry := postgres.NewTenantRepository(registryDB)
	store := postgres.NewTenantStore(contentDB, identity.NewHasher(
		cfg.Security.Argon2Memory,
		cfg.Security.Argon2Iterations,
		cfg.Security.Argon2Parallelism,
		cfg.Security.Argon2SaltLength,
		cfg.Security.Argon2KeyLength,
	))

	// Every registry row, regardless of status, protects its store. Only
	// handles with no row at all are residual.
	live := make(map[string]struct{})
	for offset := 0; ; offset += sweepPageSize {
		page, err := registry.List(ctx, sweepPageSize, offset)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to list tenants: %v\n", err)
			os.Exit(1)
		}
		for _, t := range page {
			live[tenant.HandleFromID(t.ID)] = struct{}{}
		}
		if len(page) < sweepPageSize {
			break
		}
	}

	handles, err := store.ListStoreHandles(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to list stores: %v\n", err)
		os.Exit(1)
	}

	auditLogger := audit.NewSlogLogger()
	swept, failed := 0, 0
	for _, handle := range handles {
		if _, ok := live[handle]; ok {
			continue
		}
		if err := store.DestroyStore(ctx, handle); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to destroy %s: %v\n", handle, err)
			failed++
			continue
		}
		auditLogger.Log(ctx, audit.Event{
			Type:     audit.TypeStoreSwept,
			Resource: "store",
			Metadata: map[string]any{audit.AttrHandle: handle},
		})
		fmt.Printf("✓ Destroyed %s\n", handle)
		swept++
	}

	fmt.Printf("Swept %d residual stores (%d checked, %d failures).\n", swept, len(handles), failed)
	if failed > 0 {
		os.Exit(1)
	}
}
