package tenant

import (
	"strings"
	"time"

	"github.com/pressplane/pressplane/internal/id"
)

// Tenant represents one isolated customer environment on the platform.
type Tenant struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	ContactEmail string     `json:"contact_email"`
	ContactName  string     `json:"contact_name"`
	Domain       string     `json:"domain"`
	Subdomain    string     `json:"subdomain,omitempty"`
	Status       Status     `json:"status"`
	Plan         Plan       `json:"plan"`
	Limits       Limits     `json:"limits"`
	TrialEndsAt  *time.Time `json:"trial_ends_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	LastActivity *time.Time `json:"last_activity,omitempty"`
}

// Status is the lifecycle state of a tenant.
type Status string

// Lifecycle states. provisioning is the only valid initial state.
const (
	StatusProvisioning Status = "provisioning"
	StatusActive       Status = "active"
	StatusSuspended    Status = "suspended"
	StatusInactive     Status = "inactive"
)

// transitions holds the allowed lifecycle edges. Rollback of a failed
// provision deletes the row instead of parking it, so provisioning has no
// edge back out other than active and inactive.
var transitions = map[Status][]Status{
	StatusProvisioning: {StatusActive, StatusInactive},
	StatusActive:       {StatusSuspended, StatusInactive},
	StatusSuspended:    {StatusActive, StatusInactive},
	StatusInactive:     {},
}

// CanTransition reports whether moving from one lifecycle state to another
// is allowed.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidStatus reports whether s is a known lifecycle state.
func ValidStatus(s Status) bool {
	switch s {
	case StatusProvisioning, StatusActive, StatusSuspended, StatusInactive:
		return true
	}
	return false
}

// Plan is the subscription tier of a tenant.
type Plan string

// Subscription tiers.
const (
	PlanTrial        Plan = "trial"
	PlanBasic        Plan = "basic"
	PlanProfessional Plan = "professional"
	PlanEnterprise   Plan = "enterprise"
)

// TrialPeriod is how long a trial tenant stays usable. The expiry is
// computed once at creation and never recomputed.
const TrialPeriod = 30 * 24 * time.Hour

// Limits holds the resource quotas a plan grants.
type Limits struct {
	MaxUsers      int `json:"max_users"`
	MaxArticles   int `json:"max_articles"`
	MaxCategories int `json:"max_categories"`
	MaxTags       int `json:"max_tags"`
	MaxStorageMB  int `json:"max_storage_mb"`
}

// ValidPlan reports whether p is a known subscription tier.
func ValidPlan(p Plan) bool {
	switch p {
	case PlanTrial, PlanBasic, PlanProfessional, PlanEnterprise:
		return true
	}
	return false
}

// DefaultLimits returns the resource quotas granted by a plan.
func (p Plan) DefaultLimits() Limits {
	switch p {
	case PlanBasic:
		return Limits{MaxUsers: 25, MaxArticles: 1000, MaxCategories: 50, MaxTags: 200, MaxStorageMB: 10240}
	case PlanProfessional:
		return Limits{MaxUsers: 100, MaxArticles: 10000, MaxCategories: 200, MaxTags: 1000, MaxStorageMB: 51200}
	case PlanEnterprise:
		return Limits{MaxUsers: 1000, MaxArticles: 100000, MaxCategories: 1000, MaxTags: 5000, MaxStorageMB: 512000}
	default:
		return Limits{MaxUsers: 5, MaxArticles: 50, MaxCategories: 10, MaxTags: 25, MaxStorageMB: 512}
	}
}

// NewID returns a time-ordered unique tenant identifier.
func NewID() string {
	return id.NewUUIDv7()
}

// ResourceHandle locates the tenant's isolated store. It is derived from the
// immutable ID so cleanup can recompute it without a registry row, and it is
// never exposed outside the platform.
func (t *Tenant) ResourceHandle() string {
	return HandleFromID(t.ID)
}

// HandleFromID derives the store handle for a tenant id. The result is a
// valid SQL identifier: "t_" followed by the id with separators stripped.
func HandleFromID(id string) string {
	return "t_" + strings.ReplaceAll(strings.ToLower(id), "-", "")
}

// New builds a tenant in its initial provisioning state with plan quotas
// applied. Trial tenants get their expiry stamped here, exactly once.
func New(name, domain, subdomain, contactEmail, contactName string, plan Plan) *Tenant {
	now := time.Now().UTC()
	t := &Tenant{
		ID:           NewID(),
		Name:         name,
		ContactEmail: contactEmail,
		ContactName:  contactName,
		Domain:       domain,
		Subdomain:    subdomain,
		Status:       StatusProvisioning,
		Plan:         plan,
		Limits:       plan.DefaultLimits(),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if plan == PlanTrial {
		ends := now.Add(TrialPeriod)
		t.TrialEndsAt = &ends
	}
	return t
}
