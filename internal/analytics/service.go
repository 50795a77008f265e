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

// Package analytics reports per-tenant usage against plan quotas.
package analytics

import (
	"context"
	"log/slog"
	"time"

	"github.com/pressplane/pressplane/internal/observability/logger"
	"github.com/pressplane/pressplane/internal/tenant"
)

// Usage holds the raw counters read from a tenant's store.
type Usage struct {
	Users                int   `json:"users"`
	Articles             int   `json:"articles"`
	PublishedArticles    int   `json:"published_articles"`
	DraftArticles        int   `json:"draft_articles"`
	Categories           int   `json:"categories"`
	Tags                 int   `json:"tags"`
	TotalViews           int64 `json:"total_views"`
	StorageMB            int   `json:"storage_mb"`
	ActiveUsers30d       int   `json:"active_users_30d"`
	ArticlesCreated30d   int   `json:"articles_created_30d"`
	ArticlesPublished30d int   `json:"articles_published_30d"`
}

// Quota holds usage as whole percentages of the plan limits. A zero limit
// reports zero percent; values above 100 are possible and intentional.
type Quota struct {
	UsersPercent      int `json:"users_percent"`
	ArticlesPercent   int `json:"articles_percent"`
	CategoriesPercent int `json:"categories_percent"`
	TagsPercent       int `json:"tags_percent"`
	StoragePercent    int `json:"storage_percent"`
}

// Report is the analytics view of one tenant. StoreError is set (and Usage
// zeroed) when the tenant's store could not be read; the report itself still
// succeeds so quota and lifecycle information stay available.
type Report struct {
	TenantID    string         `json:"tenant_id"`
	Plan        tenant.Plan    `json:"plan"`
	Status      tenant.Status  `json:"status"`
	Limits      tenant.Limits  `json:"limits"`
	TrialEndsAt *time.Time     `json:"trial_ends_at,omitempty"`
	Usage       Usage          `json:"usage"`
	Quota       Quota          `json:"quota"`
	StoreError  string         `json:"store_error,omitempty"`
	GeneratedAt time.Time      `json:"generated_at"`
}

// UsageReader reads usage counters from a tenant store.
type UsageReader interface {
	ReadUsage(ctx context.Context, handle string) (*Usage, error)
}

// Service aggregates registry and store data into analytics reports.
type Service struct {
	registry    tenant.Registry
	usage       UsageReader
	readTimeout time.Duration
}

// NewService creates an analytics Service. readTimeout bounds the store
// read; zero or negative falls back to five seconds.
func NewService(registry tenant.Registry, usage UsageReader, readTimeout time.Duration) *Service {
	if readTimeout <= 0 {
		readTimeout = 5 * time.Second
	}
	return &Service{registry: registry, usage: usage, readTimeout: readTimeout}
}

// GetTenantAnalytics builds the usage report for a tenant. An unknown
// tenant is the only error; an unreachable store degrades the report
// instead of failing it.
func (s *Service) GetTenantAnalytics(ctx context.Context, id string) (*Report, error) {
	t, err := s.registry.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	report := &Report{
		TenantID:    t.ID,
		Plan:        t.Plan,
		Status:      t.Status,
		Limits:      t.Limits,
		TrialEndsAt: t.TrialEndsAt,
		GeneratedAt: time.Now().UTC(),
	}

	readCtx, cancel := context.WithTimeout(ctx, s.readTimeout)
	usage, err := s.usage.ReadUsage(readCtx, t.ResourceHandle())
	cancel()
	if err != nil {
		report.StoreError = err.Error()
		slog.LogAttrs(ctx, slog.LevelWarn, "analytics store read failed",
			logger.Component("analytics"),
			logger.TenantID(t.ID),
			logger.Handle(t.ResourceHandle()),
			logger.Error(err),
		)
		return report, nil
	}

	report.Usage = *usage
	report.Quota = Quota{
		UsersPercent:      percentOf(usage.Users, t.Limits.MaxUsers),
		ArticlesPercent:   percentOf(usage.Articles, t.Limits.MaxArticles),
		CategoriesPercent: percentOf(usage.Categories, t.Limits.MaxCategories),
		TagsPercent:       percentOf(usage.Tags, t.Limits.MaxTags),
		StoragePercent:    percentOf(usage.StorageMB, t.Limits.MaxStorageMB),
	}

	// Analytics reads count as tenant activity; best-effort.
	_ = s.registry.TouchActivity(ctx, id)

	return report, nil
}

// percentOf returns used/limit as a whole percent. Zero or negative limits
// mean "unmetered" and report zero.
func percentOf(used, limit int) int {
	if limit <= 0 {
		return 0
	}
	return used * 100 / limit
}
