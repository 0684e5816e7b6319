package domain

import (
	"strings"
	"time"
)

// SeasonalAdjustmentType classifies how a seasonal rule modifies the base
// price.
type SeasonalAdjustmentType string

const (
	// SeasonalAdjustmentPercentage applies a percentage of the base price.
	SeasonalAdjustmentPercentage SeasonalAdjustmentType = "percentage"
	// SeasonalAdjustmentFixedAmount applies a flat amount.
	SeasonalAdjustmentFixedAmount SeasonalAdjustmentType = "fixed_amount"
	// SeasonalAdjustmentOverridePrice is configured as a replacement price
	// but is currently applied as a flat amount.
	SeasonalAdjustmentOverridePrice SeasonalAdjustmentType = "override_price"
)

// SeasonalRule adjusts pricing for travel dates inside an inclusive calendar
// range. When several active rules cover the same travel date, the highest
// priority wins and earlier declaration breaks ties.
type SeasonalRule struct {
	ID             string
	Name           string
	StartDate      time.Time
	EndDate        time.Time
	AdjustmentType SeasonalAdjustmentType
	Percent        float64
	Amount         int64
	Priority       int
	Active         bool
}

// Contains reports whether the travel date falls inside the rule's inclusive
// date range. Comparison is by calendar day in UTC.
func (r SeasonalRule) Contains(travelDate time.Time) bool {
	day := dateOnly(travelDate)
	return !day.Before(dateOnly(r.StartDate)) && !day.After(dateOnly(r.EndDate))
}

// GroupPricingType classifies how a group band adjusts pricing.
type GroupPricingType string

const (
	// GroupPricingDiscountPercentage discounts a percentage of the base price.
	GroupPricingDiscountPercentage GroupPricingType = "discount_percentage"
	// GroupPricingDiscountAmount discounts a flat amount.
	GroupPricingDiscountAmount GroupPricingType = "discount_amount"
	// GroupPricingPerPerson replaces the per-person total; the band value is
	// a per-person amount multiplied by the passenger count.
	GroupPricingPerPerson GroupPricingType = "per_person"
	// GroupPricingPerGroup replaces the group total; the discount is the gap
	// between the base price and the band value.
	GroupPricingPerGroup GroupPricingType = "per_group"
)

// GroupPricingBand adjusts pricing for bookings whose passenger count falls
// inside the inclusive [MinPax, MaxPax] range. Bands are evaluated in
// declaration order and the first match wins.
type GroupPricingBand struct {
	ID          string
	MinPax      int
	MaxPax      int
	PricingType GroupPricingType
	Percent     float64
	Value       int64
	Active      bool
}

// Matches reports whether the passenger count falls inside the band.
func (b GroupPricingBand) Matches(totalPassengers int) bool {
	return totalPassengers >= b.MinPax && totalPassengers <= b.MaxPax
}

// TimeComparison classifies how a time-based discount compares the lead time
// against its threshold.
type TimeComparison string

const (
	// TimeComparisonGreaterThan matches lead times above the threshold.
	TimeComparisonGreaterThan TimeComparison = "greater_than"
	// TimeComparisonLessThan matches lead times below the threshold.
	TimeComparisonLessThan TimeComparison = "less_than"
	// TimeComparisonEqual matches lead times equal to the threshold.
	TimeComparisonEqual TimeComparison = "equal"
)

// DiscountAmountType classifies whether a discount value is a percentage or a
// flat amount.
type DiscountAmountType string

const (
	// DiscountPercentage applies a percentage of the running price.
	DiscountPercentage DiscountAmountType = "percentage"
	// DiscountFixed applies a flat amount.
	DiscountFixed DiscountAmountType = "fixed"
)

// TimeBasedDiscount rewards bookings made far ahead of (or close to) the
// travel date. Rules are evaluated in declaration order and the first active
// match inside its validity window is applied.
type TimeBasedDiscount struct {
	ID               string
	Name             string
	DaysBeforeTravel int
	Comparison       TimeComparison
	AmountType       DiscountAmountType
	Percent          float64
	Amount           int64
	ValidFrom        *time.Time
	ValidTo          *time.Time
	Active           bool
}

// MatchesLeadTime reports whether the comparison holds for the given number
// of days before travel.
func (d TimeBasedDiscount) MatchesLeadTime(daysBeforeTravel int) bool {
	switch d.Comparison {
	case TimeComparisonGreaterThan:
		return daysBeforeTravel > d.DaysBeforeTravel
	case TimeComparisonLessThan:
		return daysBeforeTravel < d.DaysBeforeTravel
	case TimeComparisonEqual:
		return daysBeforeTravel == d.DaysBeforeTravel
	default:
		return false
	}
}

// ValidAt reports whether the rule's optional validity window contains the
// given instant.
func (d TimeBasedDiscount) ValidAt(now time.Time) bool {
	if d.ValidFrom != nil && now.Before(*d.ValidFrom) {
		return false
	}
	if d.ValidTo != nil && now.After(*d.ValidTo) {
		return false
	}
	return true
}

// PromotionDiscountType classifies how a promotion discounts the running
// price.
type PromotionDiscountType string

const (
	// PromotionDiscountPercentage discounts a percentage of the running price.
	PromotionDiscountPercentage PromotionDiscountType = "percentage"
	// PromotionDiscountFixedAmount discounts a flat amount.
	PromotionDiscountFixedAmount PromotionDiscountType = "fixed_amount"
	// PromotionDiscountBuyXGetY is reserved and currently contributes zero.
	PromotionDiscountBuyXGetY PromotionDiscountType = "buy_x_get_y"
)

// Promotion is a code-gated discount with a validity window, usage cap, and
// minimum purchase/passenger thresholds.
type Promotion struct {
	ID                string
	Code              string
	DiscountType      PromotionDiscountType
	Percent           float64
	Amount            int64
	ValidFrom         time.Time
	ValidTo           time.Time
	MaxUses           *int
	CurrentUses       int
	MinPurchaseAmount *int64
	MinPax            *int
	Active            bool
}

// MatchesCode reports whether the promotion's code equals the given code,
// ignoring case and surrounding whitespace.
func (p Promotion) MatchesCode(code string) bool {
	return strings.EqualFold(strings.TrimSpace(p.Code), strings.TrimSpace(code))
}

// ValidAt reports whether the promotion's validity window contains the given
// instant.
func (p Promotion) ValidAt(now time.Time) bool {
	return !now.Before(p.ValidFrom) && !now.After(p.ValidTo)
}

// UsesRemaining reports whether the promotion's usage cap, if any, has not
// been exhausted.
func (p Promotion) UsesRemaining() bool {
	return p.MaxUses == nil || p.CurrentUses < *p.MaxUses
}

// AddOnPricingType classifies how an add-on price scales.
type AddOnPricingType string

const (
	// AddOnPerPerson prices the add-on per passenger.
	AddOnPerPerson AddOnPricingType = "per_person"
	// AddOnPerGroup prices the add-on once per booking.
	AddOnPerGroup AddOnPricingType = "per_group"
	// AddOnPerUnit prices the add-on per requested unit.
	AddOnPerUnit AddOnPricingType = "per_unit"
)

// AddOn is an optional extra sold alongside a package. Add-on subtotals are
// never subject to the discount stages.
type AddOn struct {
	ID          string
	Name        string
	Price       int64
	PricingType AddOnPricingType
	Required    bool
	MaxQuantity *int
	Active      bool
}

// DepartureStatus classifies the booking state of a scheduled departure.
type DepartureStatus string

const (
	// DepartureStatusOpen accepts bookings subject to remaining slots.
	DepartureStatusOpen DepartureStatus = "open"
	// DepartureStatusSoldOut accepts no further bookings.
	DepartureStatusSoldOut DepartureStatus = "sold_out"
	// DepartureStatusCancelled ended bookings for this departure.
	DepartureStatusCancelled DepartureStatus = "cancelled"
)

// DepartureInventory is the slot inventory of a fixed-departure package,
// optionally carrying per-tier-type price overrides.
type DepartureInventory struct {
	ID               string
	DepartureDate    time.Time
	AvailableSlots   int
	BookedSlots      int
	Status           DepartureStatus
	HasCustomPricing bool
	TierPrices       map[TierType]int64
}

// RemainingSlots returns the unbooked slot count, never negative.
func (d DepartureInventory) RemainingSlots() int {
	remaining := d.AvailableSlots - d.BookedSlots
	if remaining < 0 {
		return 0
	}
	return remaining
}

// RuleSet is the read-only pricing configuration of one package. It is
// assembled by the catalog subsystem and handed to the engine as a snapshot;
// the engine never mutates it.
type RuleSet struct {
	SeasonalRules      []SeasonalRule
	GroupPricingBands  []GroupPricingBand
	TimeBasedDiscounts []TimeBasedDiscount
	Promotions         []Promotion
	AddOns             []AddOn
	Departure          *DepartureInventory
}

// FindAddOn returns the add-on with the given id, active or not.
func (rs RuleSet) FindAddOn(addOnID string) (AddOn, bool) {
	for _, addOn := range rs.AddOns {
		if addOn.ID == addOnID {
			return addOn, true
		}
	}
	return AddOn{}, false
}

// PackagePricing is the pricing snapshot of one package: the tier catalog,
// the rule set, and the group-size bounds enforced by the validator.
type PackagePricing struct {
	PackageID    string
	Name         string
	Currency     string
	MinGroupSize int
	MaxGroupSize *int
	Catalog      TierCatalog
	Rules        RuleSet
}

func dateOnly(t time.Time) time.Time {
	year, month, day := t.UTC().Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
