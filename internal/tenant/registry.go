package tenant

import "context"

// Registry is the authoritative record of tenants. Implementations must make
// every mutation a single atomic, constraint-checked statement: uniqueness
// conflicts surface as ErrDomainExists/ErrSubdomainExists and conditional
// transitions either apply in full or return ErrInvalidTransition. There is
// no read-then-write anywhere in this interface.
type Registry interface {
	// Insert stores a new tenant row. Domain and subdomain uniqueness are
	// decided here, not by any pre-read.
	Insert(ctx context.Context, t *Tenant) error

	// Get returns the tenant with the given id, or ErrNotFound.
	Get(ctx context.Context, id string) (*Tenant, error)

	// GetByDomain returns the tenant owning the given custom domain.
	GetByDomain(ctx context.Context, domain string) (*Tenant, error)

	// UpdateStatus atomically moves the tenant to the target state provided
	// its current state is in from. A miss (row gone, or state raced away)
	// is ErrInvalidTransition when the row exists, ErrNotFound otherwise.
	UpdateStatus(ctx context.Context, id string, from []Status, to Status) (*Tenant, error)

	// UpdateDomain atomically replaces the custom domain, surfacing
	// uniqueness conflicts as ErrDomainExists.
	UpdateDomain(ctx context.Context, id, domain string) (*Tenant, error)

	// TouchActivity stamps last_activity for usage accounting.
	TouchActivity(ctx context.Context, id string) error

	// Delete removes the row. Deleting an absent row is not an error.
	Delete(ctx context.Context, id string) error

	// List returns tenants in creation order, newest first.
	List(ctx context.Context, limit, offset int) ([]*Tenant, error)
}
