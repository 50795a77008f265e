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

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pressplane/pressplane/internal/analytics"
	"github.com/pressplane/pressplane/internal/audit"
	"github.com/pressplane/pressplane/internal/bulk"
	"github.com/pressplane/pressplane/internal/config"
	"github.com/pressplane/pressplane/internal/identity"
	"github.com/pressplane/pressplane/internal/netprov"
	"github.com/pressplane/pressplane/internal/observability/logger"
	"github.com/pressplane/pressplane/internal/observability/metrics"
	"github.com/pressplane/pressplane/internal/observability/tracing"
	"github.com/pressplane/pressplane/internal/provisioning"
	"github.com/pressplane/pressplane/internal/readiness"
	"github.com/pressplane/pressplane/internal/status"
	"github.com/pressplane/pressplane/internal/store/postgres"
	transportHTTP "github.com/pressplane/pressplane/internal/transport/http"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger.Init(logger.Config{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: cfg.Observability.ServiceName,
	})
	slog.Info("starting pressplane control plane")

	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		if err := runMigrate(cfg); err != nil {
			fmt.Printf("Migration failed: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	// Initialize context
	ctx := context.Background()

	// Initialize tracer
	tracer, err := tracing.New(ctx, tracing.Config{
		Enabled:        cfg.Observability.OTELEnabled,
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: cfg.Observability.ServiceVersion,
		SamplingRate:   cfg.Observability.TraceSampling,
	})
	if err != nil {
		slog.Error("failed to initialize tracer", logger.Error(err))
	}
	defer tracer.Shutdown(ctx)

	// Initialize meter and lifecycle instruments
	meter, err := metrics.New(ctx, metrics.Config{
		Enabled: cfg.Observability.OTELEnabled,
	}, cfg.Observability.ServiceName)
	if err != nil {
		slog.Error("failed to initialize meter", logger.Error(err))
	}
	var lifecycle *metrics.Lifecycle
	if meter != nil {
		lifecycle, err = metrics.NewLifecycle(meter)
		if err != nil {
			slog.Error("failed to create lifecycle instruments", logger.Error(err))
		}
	}

	// Initialize the tenant registry database
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
		slog.Error("failed to connect to registry database", logger.Error(err))
		os.Exit(1)
	}
	defer registryDB.Close()
	slog.Info("connected to registry database")

	// Initialize the content database cluster, where tenant stores live
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
		slog.Error("failed to connect to content database", logger.Error(err))
		os.Exit(1)
	}
	defer contentDB.Close()
	slog.Info("connected to content database")

	// Initialize collaborators
	registry := postgres.NewTenantRepository(registryDB)
	hasher := identity.NewHasher(
		cfg.Security.Argon2Memory,
		cfg.Security.Argon2Iterations,
		cfg.Security.Argon2Parallelism,
		cfg.Security.Argon2SaltLength,
		cfg.Security.Argon2KeyLength,
	)
	store := postgres.NewTenantStore(contentDB, hasher)
	gateway := netprov.NewGateway(netprov.Config{
		BaseURL:        cfg.Network.GatewayBaseURL,
		Token:          cfg.Network.GatewayToken,
		Timeout:        cfg.Network.GatewayTimeout,
		Retries:        cfg.Network.GatewayRetries,
		DNSZone:        cfg.Network.DNSZone,
		CertExpiryWarn: cfg.Network.CertExpiryWarn,
	})
	auditLogger := audit.NewSlogLogger()

	// Initialize services
	orchestrator := provisioning.NewOrchestrator(registry, store, gateway, auditLogger, lifecycle, provisioning.Config{
		StoreTimeout:        cfg.Provisioner.StoreTimeout,
		IdentityTimeout:     cfg.Provisioner.IdentityTimeout,
		NetworkTimeout:      cfg.Provisioner.NetworkTimeout,
		CompensationTimeout: cfg.Provisioner.CompensationTimeout,
		SecretLength:        cfg.Provisioner.SecretLength,
	})
	aggregator := status.NewAggregator(registry, gateway, store, lifecycle, cfg.Provisioner.ProbeTimeout)
	analyticsService := analytics.NewService(registry, store, cfg.Provisioner.AnalyticsTimeout)
	executor := bulk.NewExecutor(orchestrator, auditLogger, lifecycle, cfg.Provisioner.BulkConcurrency)

	tokens, err := identity.NewTokenIssuer(
		[]byte(cfg.Security.OperatorTokenSecret),
		cfg.Security.OperatorTokenIssuer,
		cfg.Security.OperatorTokenTTL,
	)
	if err != nil {
		slog.Error("failed to initialize token issuer", logger.Error(err))
		os.Exit(1)
	}

	// Rate Limiter
	rateLimiter := transportHTTP.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)

	// Readiness gate: lifecycle traffic is refused until wiring completes
	ready := readiness.NewState()

	// Initialize HTTP handler
	handler := transportHTTP.NewHandler(
		orchestrator,
		aggregator,
		analyticsService,
		executor,
		registry,
		tokens,
		logger.NewSecurityLogger(slog.Default()),
		ready,
		cfg.Server.DevMode,
	)

	// Create router
	router := transportHTTP.NewRouter(handler, rateLimiter)

	// Create HTTP server
	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// All collaborators are wired; open the gate before accepting traffic
	ready.MarkReady()

	// Start server
	go func() {
		slog.Info("starting http server", logger.Component("server"), logger.Operation("listen"))
		slog.Info(fmt.Sprintf("listening on %s", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", logger.Error(err))
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")
	ready.MarkDraining()

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", logger.Error(err))
	}

	slog.Info("server stopped")
}

func runMigrate(cfg *config.Config) error {
	ctx := context.Background()
	db, err := postgres.New(ctx, postgres.Config{
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
		return err
	}
	defer db.Close()

	fmt.Println("Applying registry schema...")
	if err := db.Migrate(ctx, postgres.RegistrySchema); err != nil {
		return err
	}
	fmt.Println("Migration successful.")
	return nil
}
