package domain

import (
	"fmt"
	"strings"
)

// TierType classifies a passenger tier. The well-known values cover the
// standard storefront categories; packages in custom-tier mode may carry
// free-form labels instead.
type TierType string

const (
	// TierAdult is the standard adult passenger tier.
	TierAdult TierType = "adult"
	// TierChild is the standard child passenger tier.
	TierChild TierType = "child"
	// TierInfant is the standard infant passenger tier.
	TierInfant TierType = "infant"
	// TierSenior is the standard senior passenger tier.
	TierSenior TierType = "senior"
	// TierStudent is the standard student passenger tier.
	TierStudent TierType = "student"
)

// PricingTier defines one bookable passenger category of a package together
// with its price and eligibility constraints.
type PricingTier struct {
	ID           string
	Type         TierType
	Label        string
	BasePrice    int64
	SellingPrice int64
	MinAge       *int
	MaxAge       *int

	RequiresAdultAccompaniment bool
	MaxPerBooking              *int

	DisplayOrder int
	Active       bool
}

// UnitPrice returns the price charged per passenger for this tier. The
// selling price wins when configured; tiers without a markup fall back to
// the base price.
func (t PricingTier) UnitPrice() int64 {
	if t.SellingPrice > 0 {
		return t.SellingPrice
	}
	return t.BasePrice
}

// TierCatalog is the set of passenger tiers attached to a package. When
// CustomTiers is false at most one active tier exists per tier type; in
// custom mode multiple tiers may share a type and are addressed by id.
type TierCatalog struct {
	Tiers       []PricingTier
	CustomTiers bool
}

// FindByID returns the tier with the given id, active or not.
func (c TierCatalog) FindByID(tierID string) (PricingTier, bool) {
	for _, tier := range c.Tiers {
		if tier.ID == tierID {
			return tier, true
		}
	}
	return PricingTier{}, false
}

// FindActiveByType returns the first active tier of the given type in
// declaration order.
func (c TierCatalog) FindActiveByType(tierType TierType) (PricingTier, bool) {
	for _, tier := range c.Tiers {
		if tier.Active && tier.Type == tierType {
			return tier, true
		}
	}
	return PricingTier{}, false
}

// ActiveTiers returns the active tiers in declaration order.
func (c TierCatalog) ActiveTiers() []PricingTier {
	out := make([]PricingTier, 0, len(c.Tiers))
	for _, tier := range c.Tiers {
		if tier.Active {
			out = append(out, tier)
		}
	}
	return out
}

// BookingComposition maps tier ids to the requested passenger count for one
// booking. A composition is treated as immutable input once handed to the
// validator or the price engine.
type BookingComposition map[string]int

// TotalPassengers sums all requested quantities.
func (c BookingComposition) TotalPassengers() int {
	total := 0
	for _, quantity := range c {
		total += quantity
	}
	return total
}

// AdultCount sums the quantities of tiers whose type is adult according to
// the supplied catalog.
func (c BookingComposition) AdultCount(catalog TierCatalog) int {
	count := 0
	for tierID, quantity := range c {
		if tier, ok := catalog.FindByID(tierID); ok && tier.Type == TierAdult {
			count += quantity
		}
	}
	return count
}

// Clone returns an independent copy of the composition.
func (c BookingComposition) Clone() BookingComposition {
	if c == nil {
		return nil
	}
	out := make(BookingComposition, len(c))
	for tierID, quantity := range c {
		out[tierID] = quantity
	}
	return out
}

// CompositionFromTierCounts expands a legacy tier-type-count request into the
// id-keyed composition the engine operates on. Each counted type must resolve
// to exactly one active tier in the catalog.
func CompositionFromTierCounts(counts map[TierType]int, catalog TierCatalog) (BookingComposition, error) {
	composition := make(BookingComposition, len(counts))
	for tierType, quantity := range counts {
		if quantity == 0 {
			continue
		}
		normalized := TierType(strings.ToLower(strings.TrimSpace(string(tierType))))
		tier, ok := catalog.FindActiveByType(normalized)
		if !ok {
			return nil, fmt.Errorf("no active tier for type %q", normalized)
		}
		composition[tier.ID] += quantity
	}
	return composition, nil
}
