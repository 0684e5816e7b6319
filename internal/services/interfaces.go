package services

import (
	"context"
	"time"

	domain "github.com/roamline/api/internal/domain"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	TierType             = domain.TierType
	PricingTier          = domain.PricingTier
	TierCatalog          = domain.TierCatalog
	BookingComposition   = domain.BookingComposition
	SeasonalRule         = domain.SeasonalRule
	GroupPricingBand     = domain.GroupPricingBand
	TimeBasedDiscount    = domain.TimeBasedDiscount
	Promotion            = domain.Promotion
	AddOn                = domain.AddOn
	DepartureInventory   = domain.DepartureInventory
	RuleSet              = domain.RuleSet
	PackagePricing       = domain.PackagePricing
	PriceBreakdown       = domain.PriceBreakdown
	TierPriceLine        = domain.TierPriceLine
	AddOnPriceLine       = domain.AddOnPriceLine
	AppliedRules         = domain.AppliedRules
	AppliedSeasonalRule  = domain.AppliedSeasonalRule
	AppliedGroupBand     = domain.AppliedGroupBand
	AppliedTimeDiscount  = domain.AppliedTimeDiscount
	AppliedPromotion     = domain.AppliedPromotion
	ViolationCode        = domain.ViolationCode
	CompositionViolation = domain.CompositionViolation
	ValidationResult     = domain.ValidationResult
	UnavailabilityReason = domain.UnavailabilityReason
	AvailabilityResult   = domain.AvailabilityResult
	PriceQuote           = domain.PriceQuote
)

// Enum values used throughout the pricing pipeline, re-exported alongside
// their types.
const (
	TierAdult   = domain.TierAdult
	TierChild   = domain.TierChild
	TierInfant  = domain.TierInfant
	TierSenior  = domain.TierSenior
	TierStudent = domain.TierStudent

	SeasonalAdjustmentPercentage    = domain.SeasonalAdjustmentPercentage
	SeasonalAdjustmentFixedAmount   = domain.SeasonalAdjustmentFixedAmount
	SeasonalAdjustmentOverridePrice = domain.SeasonalAdjustmentOverridePrice

	GroupPricingDiscountPercentage = domain.GroupPricingDiscountPercentage
	GroupPricingDiscountAmount     = domain.GroupPricingDiscountAmount
	GroupPricingPerPerson          = domain.GroupPricingPerPerson
	GroupPricingPerGroup           = domain.GroupPricingPerGroup

	TimeComparisonGreaterThan = domain.TimeComparisonGreaterThan
	TimeComparisonLessThan    = domain.TimeComparisonLessThan
	TimeComparisonEqual       = domain.TimeComparisonEqual

	DiscountPercentage = domain.DiscountPercentage
	DiscountFixed      = domain.DiscountFixed

	PromotionDiscountPercentage  = domain.PromotionDiscountPercentage
	PromotionDiscountFixedAmount = domain.PromotionDiscountFixedAmount
	PromotionDiscountBuyXGetY    = domain.PromotionDiscountBuyXGetY

	AddOnPerPerson = domain.AddOnPerPerson
	AddOnPerGroup  = domain.AddOnPerGroup
	AddOnPerUnit   = domain.AddOnPerUnit

	DepartureStatusOpen      = domain.DepartureStatusOpen
	DepartureStatusSoldOut   = domain.DepartureStatusSoldOut
	DepartureStatusCancelled = domain.DepartureStatusCancelled

	UnavailableSoldOut           = domain.UnavailableSoldOut
	UnavailableCancelled         = domain.UnavailableCancelled
	UnavailableInsufficientSlots = domain.UnavailableInsufficientSlots
)

// QuoteService orchestrates the full quoting flow: loading the package
// snapshot, validating the composition, gating on departure availability,
// and running the price engine.
type QuoteService interface {
	CreateQuote(ctx context.Context, cmd CreateQuoteCommand) (PriceQuote, error)
	ValidateComposition(ctx context.Context, cmd ValidatePackageCompositionCommand) (ValidationResult, error)
	CheckAvailability(ctx context.Context, cmd CheckAvailabilityCommand) (AvailabilityResult, error)
}

type CreateQuoteCommand struct {
	PackageID   string
	DepartureID string
	TravelDate  time.Time
	BookingDate *time.Time
	Composition BookingComposition
	TierCounts  map[TierType]int
	PromoCode   *string
	AddOns      []AddOnSelection
	Preview     bool
}

type ValidatePackageCompositionCommand struct {
	PackageID   string
	Composition BookingComposition
	TierCounts  map[TierType]int
}

type CheckAvailabilityCommand struct {
	DepartureID    string
	RequestedSlots int
}
