package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/roamline/api/internal/domain"
	pfirestore "github.com/roamline/api/internal/platform/firestore"
)

const packagesCollection = "packages"

// PackageRepository loads pricing snapshots from the package documents owned
// by the catalog-management system.
type PackageRepository struct {
	provider *pfirestore.Provider
}

// NewPackageRepository constructs a Firestore-backed package pricing repository.
func NewPackageRepository(provider *pfirestore.Provider) (*PackageRepository, error) {
	if provider == nil {
		return nil, errors.New("package repository: firestore provider is required")
	}
	return &PackageRepository{provider: provider}, nil
}

// GetPricing returns the package's tier catalog, rule set, and group-size
// bounds as one read-only snapshot.
func (r *PackageRepository) GetPricing(ctx context.Context, packageID string) (domain.PackagePricing, error) {
	if r == nil || r.provider == nil {
		return domain.PackagePricing{}, errors.New("package repository not initialised")
	}
	packageID = strings.TrimSpace(packageID)
	if packageID == "" {
		return domain.PackagePricing{}, errors.New("package repository: package id is required")
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.PackagePricing{}, err
	}

	snap, err := client.Collection(packagesCollection).Doc(packageID).Get(ctx)
	if err != nil {
		return domain.PackagePricing{}, pfirestore.WrapError("packages.get", err)
	}

	var doc packageDocument
	if err := snap.DataTo(&doc); err != nil {
		return domain.PackagePricing{}, fmt.Errorf("package repository: decode document %s: %w", snap.Ref.ID, err)
	}
	return decodePackageDocument(snap.Ref.ID, doc), nil
}

type packageDocument struct {
	Name         string                      `firestore:"name"`
	Currency     string                      `firestore:"currency"`
	MinGroupSize int                         `firestore:"minGroupSize"`
	MaxGroupSize *int                        `firestore:"maxGroupSize,omitempty"`
	CustomTiers  bool                        `firestore:"customTiers"`
	Tiers        []pricingTierDocument       `firestore:"pricingTiers"`
	Seasonal     []seasonalRuleDocument      `firestore:"seasonalRules"`
	GroupBands   []groupPricingBandDocument  `firestore:"groupPricingBands"`
	TimeBased    []timeBasedDiscountDocument `firestore:"timeBasedDiscounts"`
	Promotions   []promotionDocument         `firestore:"promotions"`
	AddOns       []addOnDocument             `firestore:"addons"`
}

type pricingTierDocument struct {
	ID                         string `firestore:"id"`
	Type                       string `firestore:"tierType"`
	Label                      string `firestore:"label"`
	BasePrice                  int64  `firestore:"basePrice"`
	SellingPrice               int64  `firestore:"sellingPrice"`
	MinAge                     *int   `firestore:"minAge,omitempty"`
	MaxAge                     *int   `firestore:"maxAge,omitempty"`
	RequiresAdultAccompaniment bool   `firestore:"requiresAdultAccompaniment"`
	MaxPerBooking              *int   `firestore:"maxPerBooking,omitempty"`
	DisplayOrder               int    `firestore:"displayOrder"`
	Active                     bool   `firestore:"isActive"`
}

type seasonalRuleDocument struct {
	ID             string    `firestore:"id"`
	Name           string    `firestore:"name"`
	StartDate      time.Time `firestore:"startDate"`
	EndDate        time.Time `firestore:"endDate"`
	AdjustmentType string    `firestore:"adjustmentType"`
	Percent        float64   `firestore:"percent"`
	Amount         int64     `firestore:"amount"`
	Priority       int       `firestore:"priority"`
	Active         bool      `firestore:"isActive"`
}

type groupPricingBandDocument struct {
	ID          string  `firestore:"id"`
	MinPax      int     `firestore:"minPax"`
	MaxPax      int     `firestore:"maxPax"`
	PricingType string  `firestore:"pricingType"`
	Percent     float64 `firestore:"percent"`
	Value       int64   `firestore:"value"`
	Active      bool    `firestore:"isActive"`
}

type timeBasedDiscountDocument struct {
	ID               string     `firestore:"id"`
	Name             string     `firestore:"name"`
	DaysBeforeTravel int        `firestore:"daysBeforeTravel"`
	Comparison       string     `firestore:"comparison"`
	AmountType       string     `firestore:"amountType"`
	Percent          float64    `firestore:"percent"`
	Amount           int64      `firestore:"amount"`
	ValidFrom        *time.Time `firestore:"validFrom,omitempty"`
	ValidTo          *time.Time `firestore:"validTo,omitempty"`
	Active           bool       `firestore:"isActive"`
}

type promotionDocument struct {
	ID                string    `firestore:"id"`
	Code              string    `firestore:"code"`
	DiscountType      string    `firestore:"discountType"`
	Percent           float64   `firestore:"percent"`
	Amount            int64     `firestore:"amount"`
	ValidFrom         time.Time `firestore:"validFrom"`
	ValidTo           time.Time `firestore:"validTo"`
	MaxUses           *int      `firestore:"maxUses,omitempty"`
	CurrentUses       int       `firestore:"currentUses"`
	MinPurchaseAmount *int64    `firestore:"minPurchaseAmount,omitempty"`
	MinPax            *int      `firestore:"minPax,omitempty"`
	Active            bool      `firestore:"isActive"`
}

type addOnDocument struct {
	ID          string `firestore:"id"`
	Name        string `firestore:"name"`
	Price       int64  `firestore:"price"`
	PricingType string `firestore:"pricingType"`
	Required    bool   `firestore:"isRequired"`
	MaxQuantity *int   `firestore:"maxQuantity,omitempty"`
	Active      bool   `firestore:"isActive"`
}

func decodePackageDocument(packageID string, doc packageDocument) domain.PackagePricing {
	tiers := make([]domain.PricingTier, 0, len(doc.Tiers))
	for _, tier := range doc.Tiers {
		tiers = append(tiers, domain.PricingTier{
			ID:                         tier.ID,
			Type:                       domain.TierType(strings.ToLower(strings.TrimSpace(tier.Type))),
			Label:                      tier.Label,
			BasePrice:                  tier.BasePrice,
			SellingPrice:               tier.SellingPrice,
			MinAge:                     tier.MinAge,
			MaxAge:                     tier.MaxAge,
			RequiresAdultAccompaniment: tier.RequiresAdultAccompaniment,
			MaxPerBooking:              tier.MaxPerBooking,
			DisplayOrder:               tier.DisplayOrder,
			Active:                     tier.Active,
		})
	}

	seasonal := make([]domain.SeasonalRule, 0, len(doc.Seasonal))
	for _, rule := range doc.Seasonal {
		seasonal = append(seasonal, domain.SeasonalRule{
			ID:             rule.ID,
			Name:           rule.Name,
			StartDate:      rule.StartDate.UTC(),
			EndDate:        rule.EndDate.UTC(),
			AdjustmentType: domain.SeasonalAdjustmentType(rule.AdjustmentType),
			Percent:        rule.Percent,
			Amount:         rule.Amount,
			Priority:       rule.Priority,
			Active:         rule.Active,
		})
	}

	bands := make([]domain.GroupPricingBand, 0, len(doc.GroupBands))
	for _, band := range doc.GroupBands {
		bands = append(bands, domain.GroupPricingBand{
			ID:          band.ID,
			MinPax:      band.MinPax,
			MaxPax:      band.MaxPax,
			PricingType: domain.GroupPricingType(band.PricingType),
			Percent:     band.Percent,
			Value:       band.Value,
			Active:      band.Active,
		})
	}

	timeBased := make([]domain.TimeBasedDiscount, 0, len(doc.TimeBased))
	for _, rule := range doc.TimeBased {
		timeBased = append(timeBased, domain.TimeBasedDiscount{
			ID:               rule.ID,
			Name:             rule.Name,
			DaysBeforeTravel: rule.DaysBeforeTravel,
			Comparison:       domain.TimeComparison(rule.Comparison),
			AmountType:       domain.DiscountAmountType(rule.AmountType),
			Percent:          rule.Percent,
			Amount:           rule.Amount,
			ValidFrom:        normalizeOptionalTime(rule.ValidFrom),
			ValidTo:          normalizeOptionalTime(rule.ValidTo),
			Active:           rule.Active,
		})
	}

	promotions := make([]domain.Promotion, 0, len(doc.Promotions))
	for _, promo := range doc.Promotions {
		promotions = append(promotions, domain.Promotion{
			ID:                promo.ID,
			Code:              promo.Code,
			DiscountType:      domain.PromotionDiscountType(promo.DiscountType),
			Percent:           promo.Percent,
			Amount:            promo.Amount,
			ValidFrom:         promo.ValidFrom.UTC(),
			ValidTo:           promo.ValidTo.UTC(),
			MaxUses:           promo.MaxUses,
			CurrentUses:       promo.CurrentUses,
			MinPurchaseAmount: promo.MinPurchaseAmount,
			MinPax:            promo.MinPax,
			Active:            promo.Active,
		})
	}

	addOns := make([]domain.AddOn, 0, len(doc.AddOns))
	for _, addOn := range doc.AddOns {
		addOns = append(addOns, domain.AddOn{
			ID:          addOn.ID,
			Name:        addOn.Name,
			Price:       addOn.Price,
			PricingType: domain.AddOnPricingType(addOn.PricingType),
			Required:    addOn.Required,
			MaxQuantity: addOn.MaxQuantity,
			Active:      addOn.Active,
		})
	}

	return domain.PackagePricing{
		PackageID:    packageID,
		Name:         doc.Name,
		Currency:     strings.ToUpper(strings.TrimSpace(doc.Currency)),
		MinGroupSize: doc.MinGroupSize,
		MaxGroupSize: doc.MaxGroupSize,
		Catalog: domain.TierCatalog{
			Tiers:       tiers,
			CustomTiers: doc.CustomTiers,
		},
		Rules: domain.RuleSet{
			SeasonalRules:      seasonal,
			GroupPricingBands:  bands,
			TimeBasedDiscounts: timeBased,
			Promotions:         promotions,
			AddOns:             addOns,
		},
	}
}

func normalizeOptionalTime(value *time.Time) *time.Time {
	if value == nil || value.IsZero() {
		return nil
	}
	utc := value.UTC()
	return &utc
}
