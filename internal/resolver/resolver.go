// Package resolver maps customer IDs to display names with a cache in
// front of the repository.
package resolver

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/repository"
)

// DefaultTTL bounds how long a resolved name is served from cache.
const DefaultTTL = 5 * time.Minute

// Resolver looks up customer display names. Lookups never fail the
// caller: any miss or backend error resolves to the Unknown sentinel.
type Resolver struct {
	repo  domain.Repository
	cache domain.Cache
	ttl   time.Duration
}

// New creates a resolver. The cache may be nil, in which case every
// lookup goes to the repository.
func New(repo domain.Repository, cache domain.Cache) *Resolver {
	return &Resolver{repo: repo, cache: cache, ttl: DefaultTTL}
}

// Name resolves one customer's display name.
func (r *Resolver) Name(ctx context.Context, tenantID, customerID string) string {
	if r.cache != nil {
		if name, ok, err := r.cache.GetCustomerName(ctx, tenantID, customerID); err == nil && ok {
			return name
		}
	}

	name, err := r.repo.GetCustomerName(ctx, tenantID, customerID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			slog.WarnContext(ctx, "customer name lookup failed",
				"customer_id", customerID,
				"error", err,
			)
		}
		return domain.UnknownCustomer
	}

	if r.cache != nil {
		if err := r.cache.SetCustomerName(ctx, tenantID, customerID, name, r.ttl); err != nil {
			slog.WarnContext(ctx, "customer name cache write failed",
				"customer_id", customerID,
				"error", err,
			)
		}
	}
	return name
}

// Names resolves a batch of customers into an ID to name map. Every
// requested ID is present in the result.
func (r *Resolver) Names(ctx context.Context, tenantID string, customerIDs []string) map[string]string {
	names := make(map[string]string, len(customerIDs))
	for _, id := range customerIDs {
		names[id] = r.Name(ctx, tenantID, id)
	}
	return names
}
