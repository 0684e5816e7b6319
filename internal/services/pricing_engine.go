package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	// ErrPricingInvalidInput signals bad request data such as negative
	// quantities or unknown tier ids.
	ErrPricingInvalidInput = errors.New("pricing: invalid input")
)

// SeasonalOverrideStrategy computes the seasonal adjustment for an
// override_price rule given the base price. The default strategy applies the
// configured amount as a flat adjustment, matching how receipts have always
// been rendered; swapping the strategy changes only this branch of the
// pipeline.
type SeasonalOverrideStrategy func(basePrice int64, rule SeasonalRule) int64

// FlatAmountSeasonalOverride applies the rule amount as a flat adjustment,
// identically to a fixed_amount rule.
func FlatAmountSeasonalOverride(_ int64, rule SeasonalRule) int64 {
	return rule.Amount
}

type PriceEngine struct {
	overrideStrategy SeasonalOverrideStrategy
	now              func() time.Time
	logger           func(context.Context, string, map[string]any)
}

type PriceEngineDeps struct {
	OverrideStrategy SeasonalOverrideStrategy
	Now              func() time.Time
	Logger           func(context.Context, string, map[string]any)
}

func NewPriceEngine(deps PriceEngineDeps) (*PriceEngine, error) {
	strategy := deps.OverrideStrategy
	if strategy == nil {
		strategy = FlatAmountSeasonalOverride
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	engine := &PriceEngine{
		overrideStrategy: strategy,
		now: func() time.Time {
			return now().UTC()
		},
		logger: logger,
	}

	return engine, nil
}

// AddOnSelection is one requested add-on with its quantity. A zero quantity
// is treated as one unit.
type AddOnSelection struct {
	AddOnID  string
	Quantity int
}

type PriceQuoteCommand struct {
	Composition BookingComposition
	Catalog     TierCatalog
	Rules       RuleSet
	Currency    string
	TravelDate  time.Time
	BookingDate *time.Time
	PromoCode   *string
	AddOns      []AddOnSelection
}

// Calculate runs the six-stage pricing pipeline and returns a complete
// breakdown. Unmatched rules contribute zero; the engine only errors on a
// malformed composition.
func (e *PriceEngine) Calculate(ctx context.Context, cmd PriceQuoteCommand) (PriceBreakdown, error) {
	if err := e.validateInput(cmd); err != nil {
		return PriceBreakdown{}, err
	}

	totalPassengers := cmd.Composition.TotalPassengers()

	bookingDate := e.now()
	if cmd.BookingDate != nil {
		bookingDate = cmd.BookingDate.UTC()
	}
	daysBeforeTravel := daysBetween(bookingDate, cmd.TravelDate)

	basePrice, tierLines := e.computeBasePrice(cmd)

	breakdown := PriceBreakdown{
		Currency:         cmd.Currency,
		BasePrice:        basePrice,
		TotalPassengers:  totalPassengers,
		DaysBeforeTravel: daysBeforeTravel,
		TierLines:        tierLines,
	}

	// A zero-passenger request carries no per-person price to adjust, so
	// the discount stages are skipped entirely and only add-ons remain.
	if totalPassengers > 0 {
		breakdown.SeasonalAdjustment, breakdown.AppliedRules.Seasonal = e.applySeasonal(ctx, cmd.Rules.SeasonalRules, cmd.TravelDate, basePrice)
		breakdown.GroupDiscount, breakdown.AppliedRules.GroupBand = e.applyGroupBand(ctx, cmd.Rules.GroupPricingBands, totalPassengers, basePrice)

		runningPrice := basePrice + breakdown.SeasonalAdjustment - breakdown.GroupDiscount
		breakdown.TimeBasedDiscount, breakdown.AppliedRules.TimeBased = e.applyTimeBased(cmd.Rules.TimeBasedDiscounts, daysBeforeTravel, runningPrice)

		runningPrice -= breakdown.TimeBasedDiscount
		breakdown.PromoDiscount, breakdown.AppliedRules.Promotion = e.applyPromotion(ctx, cmd.Rules.Promotions, cmd.PromoCode, runningPrice, totalPassengers)
	}

	breakdown.AddOnsTotal, breakdown.AddOnLines = e.computeAddOns(cmd.Rules, cmd.AddOns)

	discounted := basePrice + breakdown.SeasonalAdjustment - breakdown.GroupDiscount - breakdown.TimeBasedDiscount - breakdown.PromoDiscount
	if discounted < 0 {
		discounted = 0
	}
	breakdown.TotalPrice = discounted + breakdown.AddOnsTotal

	return breakdown, nil
}

func (e *PriceEngine) validateInput(cmd PriceQuoteCommand) error {
	if cmd.TravelDate.IsZero() {
		return fmt.Errorf("%w: travel date is required", ErrPricingInvalidInput)
	}
	for tierID, quantity := range cmd.Composition {
		if quantity < 0 {
			return fmt.Errorf("%w: tier %s quantity cannot be negative", ErrPricingInvalidInput, tierID)
		}
		if _, ok := cmd.Catalog.FindByID(tierID); !ok {
			return fmt.Errorf("%w: unknown tier %s", ErrPricingInvalidInput, tierID)
		}
	}
	return nil
}

// computeBasePrice runs stage A. The departure's custom per-tier-type prices
// win over the catalog's selling prices when present. Tier lines are emitted
// in catalog declaration order so the receipt is deterministic.
func (e *PriceEngine) computeBasePrice(cmd PriceQuoteCommand) (int64, []TierPriceLine) {
	var basePrice int64
	lines := make([]TierPriceLine, 0, len(cmd.Composition))

	for _, tier := range cmd.Catalog.Tiers {
		quantity := cmd.Composition[tier.ID]
		if quantity <= 0 || !tier.Active {
			continue
		}
		unitPrice := tier.UnitPrice()
		if departure := cmd.Rules.Departure; departure != nil && departure.HasCustomPricing {
			if override, ok := departure.TierPrices[tier.Type]; ok {
				unitPrice = override
			}
		}
		subtotal := unitPrice * int64(quantity)
		basePrice += subtotal
		lines = append(lines, TierPriceLine{
			TierID:    tier.ID,
			TierType:  tier.Type,
			Label:     tier.Label,
			UnitPrice: unitPrice,
			Quantity:  quantity,
			Subtotal:  subtotal,
		})
	}

	return basePrice, lines
}

// applySeasonal runs stage B. Selection is by travel-date containment, then
// highest priority, with earlier declaration winning ties. Percentage rules
// are computed off the base price, not the running price.
func (e *PriceEngine) applySeasonal(ctx context.Context, rules []SeasonalRule, travelDate time.Time, basePrice int64) (int64, *AppliedSeasonalRule) {
	var selected *SeasonalRule
	for idx := range rules {
		rule := &rules[idx]
		if !rule.Active || !rule.Contains(travelDate) {
			continue
		}
		if selected == nil || rule.Priority > selected.Priority {
			selected = rule
		}
	}
	if selected == nil {
		return 0, nil
	}

	var amount int64
	switch selected.AdjustmentType {
	case SeasonalAdjustmentPercentage:
		amount = percentageOf(basePrice, selected.Percent)
	case SeasonalAdjustmentFixedAmount:
		amount = selected.Amount
	case SeasonalAdjustmentOverridePrice:
		amount = e.overrideStrategy(basePrice, *selected)
	default:
		e.logger(ctx, "pricing_seasonal_unknown_type", map[string]any{"ruleId": selected.ID, "type": string(selected.AdjustmentType)})
		return 0, nil
	}

	return amount, &AppliedSeasonalRule{
		RuleID:         selected.ID,
		Name:           selected.Name,
		AdjustmentType: selected.AdjustmentType,
		Amount:         amount,
	}
}

// applyGroupBand runs stage C. Bands are evaluated in declaration order and
// the first active match wins. All pricing types compute against the base
// price, and the result is clamped to zero.
func (e *PriceEngine) applyGroupBand(ctx context.Context, bands []GroupPricingBand, totalPassengers int, basePrice int64) (int64, *AppliedGroupBand) {
	for _, band := range bands {
		if !band.Active || !band.Matches(totalPassengers) {
			continue
		}

		var amount int64
		switch band.PricingType {
		case GroupPricingDiscountPercentage:
			amount = percentageOf(basePrice, band.Percent)
		case GroupPricingDiscountAmount:
			amount = band.Value
		case GroupPricingPerPerson:
			amount = band.Value * int64(totalPassengers)
		case GroupPricingPerGroup:
			amount = basePrice - band.Value
		default:
			e.logger(ctx, "pricing_group_unknown_type", map[string]any{"bandId": band.ID, "type": string(band.PricingType)})
			continue
		}
		if amount < 0 {
			amount = 0
		}

		return amount, &AppliedGroupBand{
			BandID:      band.ID,
			MinPax:      band.MinPax,
			MaxPax:      band.MaxPax,
			PricingType: band.PricingType,
			Amount:      amount,
		}
	}
	return 0, nil
}

// applyTimeBased runs stage D. The first active rule inside its validity
// window whose comparison holds is applied. Percentage rules are computed
// off the running price after the seasonal and group stages.
func (e *PriceEngine) applyTimeBased(rules []TimeBasedDiscount, daysBeforeTravel int, runningPrice int64) (int64, *AppliedTimeDiscount) {
	now := e.now()
	for _, rule := range rules {
		if !rule.Active || !rule.ValidAt(now) || !rule.MatchesLeadTime(daysBeforeTravel) {
			continue
		}

		var amount int64
		switch rule.AmountType {
		case DiscountPercentage:
			amount = percentageOf(runningPrice, rule.Percent)
		case DiscountFixed:
			amount = rule.Amount
		default:
			continue
		}

		return amount, &AppliedTimeDiscount{
			RuleID:     rule.ID,
			Name:       rule.Name,
			Comparison: rule.Comparison,
			Amount:     amount,
		}
	}
	return 0, nil
}

// applyPromotion runs stage E. A promotion must pass every gate: active,
// inside its validity window, uses remaining, minimum purchase against the
// post-stage-D running price, and minimum passenger count. A failed gate
// contributes zero without affecting earlier stages.
func (e *PriceEngine) applyPromotion(ctx context.Context, promotions []Promotion, promoCode *string, runningPrice int64, totalPassengers int) (int64, *AppliedPromotion) {
	if promoCode == nil || *promoCode == "" {
		return 0, nil
	}

	now := e.now()
	for _, promo := range promotions {
		if !promo.Active || !promo.MatchesCode(*promoCode) {
			continue
		}
		if !promo.ValidAt(now) || !promo.UsesRemaining() {
			return 0, nil
		}
		if promo.MinPurchaseAmount != nil && runningPrice < *promo.MinPurchaseAmount {
			return 0, nil
		}
		if promo.MinPax != nil && totalPassengers < *promo.MinPax {
			return 0, nil
		}

		var amount int64
		switch promo.DiscountType {
		case PromotionDiscountPercentage:
			amount = percentageOf(runningPrice, promo.Percent)
		case PromotionDiscountFixedAmount:
			amount = promo.Amount
		case PromotionDiscountBuyXGetY:
			// Reserved type, not implemented yet; it redeems but contributes
			// nothing.
			e.logger(ctx, "pricing_promo_buy_x_get_y_skipped", map[string]any{"promotionId": promo.ID})
			amount = 0
		default:
			return 0, nil
		}
		if amount < 0 {
			amount = 0
		}

		return amount, &AppliedPromotion{
			PromotionID:  promo.ID,
			Code:         promo.Code,
			DiscountType: promo.DiscountType,
			Amount:       amount,
		}
	}
	return 0, nil
}

// computeAddOns runs stage F. Add-on subtotals are summed independently of
// the discount stages; inactive or unknown add-ons are skipped.
func (e *PriceEngine) computeAddOns(rules RuleSet, selections []AddOnSelection) (int64, []AddOnPriceLine) {
	var total int64
	lines := make([]AddOnPriceLine, 0, len(selections))

	for _, selection := range selections {
		addOn, ok := rules.FindAddOn(selection.AddOnID)
		if !ok || !addOn.Active {
			continue
		}
		quantity := selection.Quantity
		if quantity <= 0 {
			quantity = 1
		}
		if addOn.MaxQuantity != nil && quantity > *addOn.MaxQuantity {
			quantity = *addOn.MaxQuantity
		}
		subtotal := addOn.Price * int64(quantity)
		total += subtotal
		lines = append(lines, AddOnPriceLine{
			AddOnID:   addOn.ID,
			Name:      addOn.Name,
			UnitPrice: addOn.Price,
			Quantity:  quantity,
			Subtotal:  subtotal,
		})
	}

	return total, lines
}

func percentageOf(amount int64, percent float64) int64 {
	return int64(math.Round(float64(amount) * percent / 100))
}

// daysBetween returns the lead time in whole days, rounding partial days up.
func daysBetween(from, to time.Time) int {
	diff := to.Sub(from)
	if diff <= 0 {
		return 0
	}
	return int(math.Ceil(diff.Hours() / 24))
}
