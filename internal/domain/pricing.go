package domain

import "time"

// PriceBreakdown captures the itemized result of pricing one booking. Every
// stage amount is present even when zero so receipts can render the full
// pipeline.
type PriceBreakdown struct {
	Currency           string
	BasePrice          int64
	SeasonalAdjustment int64
	GroupDiscount      int64
	TimeBasedDiscount  int64
	PromoDiscount      int64
	AddOnsTotal        int64
	TotalPrice         int64
	TotalPassengers    int
	DaysBeforeTravel   int
	TierLines          []TierPriceLine
	AddOnLines         []AddOnPriceLine
	AppliedRules       AppliedRules
}

// TierPriceLine is the per-tier subtotal row of the base-price stage.
type TierPriceLine struct {
	TierID    string
	TierType  TierType
	Label     string
	UnitPrice int64
	Quantity  int
	Subtotal  int64
}

// AddOnPriceLine is the per-add-on subtotal row of the add-on stage.
type AddOnPriceLine struct {
	AddOnID   string
	Name      string
	UnitPrice int64
	Quantity  int
	Subtotal  int64
}

// AppliedRules records which rule each stage matched, if any, and the amount
// it contributed.
type AppliedRules struct {
	Seasonal  *AppliedSeasonalRule
	GroupBand *AppliedGroupBand
	TimeBased *AppliedTimeDiscount
	Promotion *AppliedPromotion
}

// AppliedSeasonalRule records the seasonal rule selected for the travel date.
type AppliedSeasonalRule struct {
	RuleID         string
	Name           string
	AdjustmentType SeasonalAdjustmentType
	Amount         int64
}

// AppliedGroupBand records the group band matched by the passenger count.
type AppliedGroupBand struct {
	BandID      string
	MinPax      int
	MaxPax      int
	PricingType GroupPricingType
	Amount      int64
}

// AppliedTimeDiscount records the lead-time rule matched by the booking.
type AppliedTimeDiscount struct {
	RuleID     string
	Name       string
	Comparison TimeComparison
	Amount     int64
}

// AppliedPromotion records the promotion redeemed by the supplied code.
type AppliedPromotion struct {
	PromotionID  string
	Code         string
	DiscountType PromotionDiscountType
	Amount       int64
}

// ViolationCode classifies a composition-validation failure.
type ViolationCode string

const (
	// ViolationGroupSize indicates the passenger total is outside the
	// package's group-size bounds.
	ViolationGroupSize ViolationCode = "group_size"
	// ViolationAccompaniment indicates a dependent tier was booked without
	// an adult.
	ViolationAccompaniment ViolationCode = "accompaniment"
	// ViolationPerTierCap indicates a tier quantity exceeds its per-booking
	// cap.
	ViolationPerTierCap ViolationCode = "per_tier_cap"
)

// CompositionViolation describes one validation failure in caller-renderable
// form.
type CompositionViolation struct {
	Code    ViolationCode
	TierID  string
	Message string
}

// ValidationResult is the validator's verdict on a proposed composition. The
// composition is echoed back unchanged; Violations is empty when Valid.
type ValidationResult struct {
	Valid           bool
	TotalPassengers int
	AdultCount      int
	Composition     BookingComposition
	Violations      []CompositionViolation
}

// UnavailabilityReason classifies why a departure cannot take a booking.
type UnavailabilityReason string

const (
	// UnavailableSoldOut indicates the departure is sold out.
	UnavailableSoldOut UnavailabilityReason = "sold_out"
	// UnavailableCancelled indicates the departure was cancelled.
	UnavailableCancelled UnavailabilityReason = "cancelled"
	// UnavailableInsufficientSlots indicates fewer slots remain than were
	// requested.
	UnavailableInsufficientSlots UnavailabilityReason = "insufficient_slots"
)

// AvailabilityResult reports whether a departure can take the requested slot
// count. The gate never mutates inventory.
type AvailabilityResult struct {
	Available      bool
	RemainingSlots int
	RequestedSlots int
	Reason         UnavailabilityReason
}

// PriceQuote is a persisted estimate produced for one booking request.
type PriceQuote struct {
	ID          string
	PackageID   string
	DepartureID string
	TravelDate  time.Time
	BookingDate time.Time
	PromoCode   string
	Composition BookingComposition
	Breakdown   PriceBreakdown
	Validation  ValidationResult
	CreatedAt   time.Time
}
