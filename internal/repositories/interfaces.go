package repositories

import (
	"context"

	domain "github.com/roamline/api/internal/domain"
)

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// PackagePricingRepository loads the read-only pricing snapshot of a package:
// its tier catalog, rule set, and group-size bounds. The snapshot is owned by
// the catalog-management system; this API only reads it.
type PackagePricingRepository interface {
	GetPricing(ctx context.Context, packageID string) (domain.PackagePricing, error)
}

// DepartureRepository loads departure inventory snapshots for fixed-departure
// packages.
type DepartureRepository interface {
	FindByID(ctx context.Context, departureID string) (domain.DepartureInventory, error)
}

// QuoteRepository persists priced estimates for later retrieval by the
// booking flow.
type QuoteRepository interface {
	Insert(ctx context.Context, quote domain.PriceQuote) error
	FindByID(ctx context.Context, quoteID string) (domain.PriceQuote, error)
}

// HealthRepository aggregates dependency probes for readiness checks.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}
