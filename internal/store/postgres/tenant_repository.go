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
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pressplane/pressplane/internal/tenant"
)

// TenantRepository implements tenant.Registry against the registry database.
// Uniqueness and lifecycle transitions are decided by the database in single
// statements; this type never reads before writing.
type TenantRepository struct {
	db *DB
}

// NewTenantRepository creates a new tenant repository
func NewTenantRepository(db *DB) *TenantRepository {
	return &TenantRepository{db: db}
}

const tenantColumns = `id, name, contact_email, contact_name, domain, subdomain,
	status, plan, max_users, max_articles, max_categories, max_tags, max_storage_mb,
	trial_ends_at, created_at, updated_at, last_activity`

// Insert stores a new tenant row
func (r *TenantRepository) Insert(ctx context.Context, t *tenant.Tenant) error {
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO tenants (
			id, name, contact_email, contact_name, domain, subdomain,
			status, plan, max_users, max_articles, max_categories, max_tags, max_storage_mb,
			trial_ends_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`,
		t.ID, t.Name, t.ContactEmail, t.ContactName, t.Domain, t.Subdomain,
		string(t.Status), string(t.Plan),
		t.Limits.MaxUsers, t.Limits.MaxArticles, t.Limits.MaxCategories,
		t.Limits.MaxTags, t.Limits.MaxStorageMB,
		t.TrialEndsAt, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		if mapped := mapUniqueViolation(err); mapped != nil {
			return mapped
		}
		return fmt.Errorf("failed to insert tenant: %w", err)
	}
	return nil
}

// Get retrieves a tenant by ID
func (r *TenantRepository) Get(ctx context.Context, id string) (*tenant.Tenant, error) {
	row := r.db.pool.QueryRow(ctx, `
		SELECT `+tenantColumns+`
		FROM tenants
		WHERE id = $1
	`, id)

	t, err := scanTenant(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, tenant.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get tenant: %w", err)
	}
	return t, nil
}

// GetByDomain retrieves the tenant owning a custom domain
func (r *TenantRepository) GetByDomain(ctx context.Context, domain string) (*tenant.Tenant, error) {
	row := r.db.pool.QueryRow(ctx, `
		SELECT `+tenantColumns+`
		FROM tenants
		WHERE domain = $1
	`, domain)

	t, err := scanTenant(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, tenant.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get tenant by domain: %w", err)
	}
	return t, nil
}

// UpdateStatus atomically moves a tenant between lifecycle states. The state
// guard lives in the WHERE clause so concurrent transitions serialize on the
// row; the loser of a race gets ErrInvalidTransition, not a silent overwrite.
func (r *TenantRepository) UpdateStatus(ctx context.Context, id string, from []tenant.Status, to tenant.Status) (*tenant.Tenant, error) {
	states := make([]string, len(from))
	for i, s := range from {
		states[i] = string(s)
	}

	row := r.db.pool.QueryRow(ctx, `
		UPDATE tenants
		SET status = $2, updated_at = now()
		WHERE id = $1 AND status = ANY($3)
		RETURNING `+tenantColumns,
		id, string(to), states,
	)

	t, err := scanTenant(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Disambiguate only after the mutation missed.
			return nil, r.transitionMiss(ctx, id)
		}
		return nil, fmt.Errorf("failed to update tenant status: %w", err)
	}
	return t, nil
}

// transitionMiss classifies a conditional update that affected no rows.
func (r *TenantRepository) transitionMiss(ctx context.Context, id string) error {
	var current string
	err := r.db.pool.QueryRow(ctx, `SELECT status FROM tenants WHERE id = $1`, id).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return tenant.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to classify transition miss: %w", err)
	}
	return tenant.ErrInvalidTransition
}

// UpdateDomain atomically replaces the custom domain
func (r *TenantRepository) UpdateDomain(ctx context.Context, id, domain string) (*tenant.Tenant, error) {
	row := r.db.pool.QueryRow(ctx, `
		UPDATE tenants
		SET domain = $2, updated_at = now()
		WHERE id = $1
		RETURNING `+tenantColumns,
		id, domain,
	)

	t, err := scanTenant(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, tenant.ErrNotFound
		}
		if mapped := mapUniqueViolation(err); mapped != nil {
			return nil, mapped
		}
		return nil, fmt.Errorf("failed to update tenant domain: %w", err)
	}
	return t, nil
}

// TouchActivity stamps last_activity. A missing row is not an error; activity
// accounting never interferes with lifecycle operations.
func (r *TenantRepository) TouchActivity(ctx context.Context, id string) error {
	_, err := r.db.pool.Exec(ctx, `
		UPDATE tenants SET last_activity = now() WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("failed to touch tenant activity: %w", err)
	}
	return nil
}

// Delete removes the registry row. Deleting an absent row succeeds so that
// rollback and deprovisioning stay idempotent.
func (r *TenantRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.pool.Exec(ctx, `DELETE FROM tenants WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete tenant: %w", err)
	}
	return nil
}

// List returns tenants in creation order, newest first
func (r *TenantRepository) List(ctx context.Context, limit, offset int) ([]*tenant.Tenant, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT `+tenantColumns+`
		FROM tenants
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}
	defer rows.Close()

	var tenants []*tenant.Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tenant: %w", err)
		}
		tenants = append(tenants, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}

	return tenants, nil
}

// scanTenant reads one tenant row in tenantColumns order.
func scanTenant(row pgx.Row) (*tenant.Tenant, error) {
	var t tenant.Tenant
	var trialEndsAt, lastActivity sql.NullTime

	err := row.Scan(
		&t.ID, &t.Name, &t.ContactEmail, &t.ContactName, &t.Domain, &t.Subdomain,
		&t.Status, &t.Plan,
		&t.Limits.MaxUsers, &t.Limits.MaxArticles, &t.Limits.MaxCategories,
		&t.Limits.MaxTags, &t.Limits.MaxStorageMB,
		&trialEndsAt, &t.CreatedAt, &t.UpdatedAt, &lastActivity,
	)
	if err != nil {
		return nil, err
	}

	if trialEndsAt.Valid {
		t.TrialEndsAt = &trialEndsAt.Time
	}
	if lastActivity.Valid {
		t.LastActivity = &lastActivity.Time
	}

	return &t, nil
}

// mapUniqueViolation translates a unique constraint violation into the domain
// sentinel for the colliding column. Unknown constraints map to nothing so the
// caller can wrap the raw error.
func mapUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return nil
	}
	switch pgErr.ConstraintName {
	case "tenants_domain_key":
		return tenant.ErrDomainExists
	case "tenants_subdomain_key":
		return tenant.ErrSubdomainExists
	default:
		return nil
	}
}
