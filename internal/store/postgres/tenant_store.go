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

package postgres

import (
	"context"
	"fmt"

	"github.com/pressplane/pressplane/internal/analytics"
	"github.com/pressplane/pressplane/internal/id"
	"github.com/pressplane/pressplane/internal/identity"
)

// TenantStore provisions and inspects per-tenant content stores on the
// content database cluster. Each store is a PostgreSQL schema named by the
// tenant's resource handle; dropping the schema destroys the tenant's data
// in one statement.
type TenantStore struct {
	db     *DB
	hasher *identity.Hasher
}

// NewTenantStore creates a new tenant store manager
func NewTenantStore(db *DB, hasher *identity.Hasher) *TenantStore {
	return &TenantStore{db: db, hasher: hasher}
}

// CreateStore creates the tenant schema and brings it to the latest
// content model version. The model itself lives in versioned migration
// scripts under migrations/content. Re-running against an existing store
// applies only the scripts it is missing, which keeps provisioning retries
// safe and upgrades stores provisioned under older model versions.
func (s *TenantStore) CreateStore(ctx context.Context, handle string) error {
	if err := validateHandle(handle); err != nil {
		return err
	}

	if _, err := s.db.pool.Exec(ctx, fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %s`, handle)); err != nil {
		return fmt.Errorf("failed to create store %s: %w", handle, err)
	}
	return s.migrateStore(ctx, handle)
}

// DestroyStore drops the tenant schema and everything in it. Destroying an
// absent store is success.
func (s *TenantStore) DestroyStore(ctx context.Context, handle string) error {
	if err := validateHandle(handle); err != nil {
		return err
	}

	if _, err := s.db.pool.Exec(ctx, fmt.Sprintf(`DROP SCHEMA IF EXISTS %s CASCADE`, handle)); err != nil {
		return fmt.Errorf("failed to destroy store %s: %w", handle, err)
	}
	return nil
}

// BootstrapAdminIdentity creates the first administrator inside a tenant
// store. Only the argon2id hash of the secret is persisted. Re-running for
// the same email rotates the stored hash instead of failing, so a retried
// provision converges.
func (s *TenantStore) BootstrapAdminIdentity(ctx context.Context, handle, email, secret string) error {
	if err := validateHandle(handle); err != nil {
		return err
	}

	hash, err := s.hasher.Hash(secret)
	if err != nil {
		return fmt.Errorf("failed to hash admin secret: %w", err)
	}

	_, err = s.db.pool.Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s.users (id, email, name, password_hash, role)
		VALUES ($1, $2, $3, $4, 'admin')
		ON CONFLICT ON CONSTRAINT users_email_key
		DO UPDATE SET password_hash = EXCLUDED.password_hash, updated_at = now()
	`, handle),
		id.NewUUIDv7(), email, email, hash,
	)
	if err != nil {
		return fmt.Errorf("failed to bootstrap admin identity: %w", err)
	}
	return nil
}

// ReadUsage gathers content counts for a tenant store in one round trip.
func (s *TenantStore) ReadUsage(ctx context.Context, handle string) (*analytics.Usage, error) {
	if err := validateHandle(handle); err != nil {
		return nil, err
	}

	var u analytics.Usage
	var storageBytes int64

	err := s.db.pool.QueryRow(ctx, fmt.Sprintf(`
		SELECT
			(SELECT count(*) FROM %[1]s.users),
			(SELECT count(*) FROM %[1]s.users WHERE last_login_at > now() - interval '30 days'),
			(SELECT count(*) FROM %[1]s.articles),
			(SELECT count(*) FROM %[1]s.articles WHERE status = 'published'),
			(SELECT count(*) FROM %[1]s.articles WHERE status = 'draft'),
			(SELECT count(*) FROM %[1]s.articles WHERE created_at > now() - interval '30 days'),
			(SELECT count(*) FROM %[1]s.articles WHERE published_at > now() - interval '30 days'),
			(SELECT count(*) FROM %[1]s.categories),
			(SELECT count(*) FROM %[1]s.tags),
			(SELECT coalesce(sum(view_count), 0) FROM %[1]s.articles),
			(SELECT coalesce(sum(size_bytes), 0) FROM %[1]s.articles)
	`, handle)).Scan(
		&u.Users, &u.ActiveUsers30d,
		&u.Articles, &u.PublishedArticles, &u.DraftArticles,
		&u.ArticlesCreated30d, &u.ArticlesPublished30d,
		&u.Categories, &u.Tags,
		&u.TotalViews, &storageBytes,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to read usage for %s: %w", handle, err)
	}

	u.StorageMB = int(storageBytes / (1024 * 1024))
	return &u, nil
}

// ProbeStore verifies the tenant schema exists and the cluster answers.
func (s *TenantStore) ProbeStore(ctx context.Context, handle string) error {
	if err := validateHandle(handle); err != nil {
		return err
	}

	var exists bool
	err := s.db.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM information_schema.schemata WHERE schema_name = $1)
	`, handle).Scan(&exists)
	if err != nil {
		return fmt.Errorf("store unreachable: %w", err)
	}
	if !exists {
		return fmt.Errorf("store schema %s missing", handle)
	}
	return nil
}

// ListStoreHandles returns every schema on the content cluster that looks
// like a tenant store. The sweep command uses this to find residual stores
// whose registry row is gone.
func (s *TenantStore) ListStoreHandles(ctx context.Context) ([]string, error) {
	rows, err := s.db.pool.Query(ctx, `
		SELECT schema_name FROM information_schema.schemata
		WHERE schema_name LIKE 't\_%'
		ORDER BY schema_name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list store schemas: %w", err)
	}
	defer rows.Close()

	var handles []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan schema name: %w", err)
		}
		if validateHandle(name) == nil {
			handles = append(handles, name)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list store schemas: %w", err)
	}

	return handles, nil
}

// validateHandle rejects anything that is not a derived resource handle.
// Handles are interpolated into DDL as identifiers, so this is the only gate
// between registry data and SQL text.
func validateHandle(handle string) error {
	if len(handle) < 3 || len(handle) > 63 {
		return fmt.Errorf("invalid resource handle %q", handle)
	}
	if handle[0] != 't' || handle[1] != '_' {
		return fmt.Errorf("invalid resource handle %q", handle)
	}
	for i := 2; i < len(handle); i++ {
		c := handle[i]
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') {
			return fmt.Errorf("invalid resource handle %q", handle)
		}
	}
	return nil
}
