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
	"embed"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

//go:embed migrations/content/*.up.sql
var contentMigrationFS embed.FS

// storeMigration is one versioned step of the per-tenant content model.
// The scripts are plain SQL with %[1]s standing in for the store schema
// name; the runner substitutes a validated resource handle before
// executing, so the content model stays independent of how provisioning
// is sequenced.
type storeMigration struct {
	version int
	name    string
	sql     string
}

// loadStoreMigrations reads the embedded content migration scripts in
// ascending version order. Filenames carry the version as a numeric
// prefix, like "001_content_model.up.sql".
func loadStoreMigrations() ([]storeMigration, error) {
	entries, err := contentMigrationFS.ReadDir("migrations/content")
	if err != nil {
		return nil, fmt.Errorf("failed to read content migrations: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	migrations := make([]storeMigration, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		version, err := scriptVersion(name)
		if err != nil {
			return nil, err
		}
		body, err := contentMigrationFS.ReadFile("migrations/content/" + name)
		if err != nil {
			return nil, fmt.Errorf("failed to read content migration %s: %w", name, err)
		}
		migrations = append(migrations, storeMigration{
			version: version,
			name:    name,
			sql:     string(body),
		})
	}
	return migrations, nil
}

// scriptVersion extracts the version number from a file named like
// "002_usage_indexes.up.sql".
func scriptVersion(filename string) (int, error) {
	v, err := strconv.Atoi(strings.SplitN(filename, "_", 2)[0])
	if err != nil {
		return 0, fmt.Errorf("content migration %s has no numeric version: %w", filename, err)
	}
	return v, nil
}

// migrateStore brings the schema named by handle up to the latest content
// model version. Each pending script runs in one transaction together with
// its version record, so a failed step leaves the store on the last
// completed version and a retry resumes from there. The handle must
// already be validated.
func (s *TenantStore) migrateStore(ctx context.Context, handle string) error {
	migrations, err := loadStoreMigrations()
	if err != nil {
		return err
	}

	if _, err := s.db.pool.Exec(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s.store_migrations (
			version    INT PRIMARY KEY,
			name       TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`, handle)); err != nil {
		return fmt.Errorf("failed to prepare migration history for %s: %w", handle, err)
	}

	var current int
	err = s.db.pool.QueryRow(ctx, fmt.Sprintf(
		`SELECT coalesce(max(version), 0) FROM %s.store_migrations`, handle,
	)).Scan(&current)
	if err != nil {
		return fmt.Errorf("failed to read store version for %s: %w", handle, err)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if err := s.applyStoreMigration(ctx, handle, m); err != nil {
			return err
		}
	}
	return nil
}

func (s *TenantStore) applyStoreMigration(ctx context.Context, handle string, m storeMigration) error {
	tx, err := s.db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin migration %s for %s: %w", m.name, handle, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, fmt.Sprintf(m.sql, handle)); err != nil {
		return fmt.Errorf("content migration %s failed for %s: %w", m.name, handle, err)
	}
	if _, err := tx.Exec(ctx, fmt.Sprintf(
		`INSERT INTO %s.store_migrations (version, name) VALUES ($1, $2)`, handle,
	), m.version, m.name); err != nil {
		return fmt.Errorf("failed to record migration %s for %s: %w", m.name, handle, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit migration %s for %s: %w", m.name, handle, err)
	}
	return nil
}
