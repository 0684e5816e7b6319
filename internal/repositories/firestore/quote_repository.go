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

const quotesCollection = "priceQuotes"

// QuoteRepository persists priced estimates for the booking flow.
type QuoteRepository struct {
	provider *pfirestore.Provider
}

// NewQuoteRepository constructs a Firestore-backed quote repository.
func NewQuoteRepository(provider *pfirestore.Provider) (*QuoteRepository, error) {
	if provider == nil {
		return nil, errors.New("quote repository: firestore provider is required")
	}
	return &QuoteRepository{provider: provider}, nil
}

// Insert stores a freshly priced quote. Quote documents are immutable.
func (r *QuoteRepository) Insert(ctx context.Context, quote domain.PriceQuote) error {
	if r == nil || r.provider == nil {
		return errors.New("quote repository not initialised")
	}
	quoteID := strings.TrimSpace(quote.ID)
	if quoteID == "" {
		return errors.New("quote repository: quote id is required")
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return err
	}

	doc := encodeQuoteDocument(quote)
	if _, err := client.Collection(quotesCollection).Doc(quoteID).Create(ctx, doc); err != nil {
		return pfirestore.WrapError("quotes.insert", err)
	}
	return nil
}

// FindByID returns a previously stored quote.
func (r *QuoteRepository) FindByID(ctx context.Context, quoteID string) (domain.PriceQuote, error) {
	if r == nil || r.provider == nil {
		return domain.PriceQuote{}, errors.New("quote repository not initialised")
	}
	quoteID = strings.TrimSpace(quoteID)
	if quoteID == "" {
		return domain.PriceQuote{}, errors.New("quote repository: quote id is required")
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.PriceQuote{}, err
	}

	snap, err := client.Collection(quotesCollection).Doc(quoteID).Get(ctx)
	if err != nil {
		return domain.PriceQuote{}, pfirestore.WrapError("quotes.get", err)
	}

	var doc quoteDocument
	if err := snap.DataTo(&doc); err != nil {
		return domain.PriceQuote{}, fmt.Errorf("quote repository: decode document %s: %w", snap.Ref.ID, err)
	}
	return decodeQuoteDocument(snap.Ref.ID, doc), nil
}

type quoteDocument struct {
	PackageID   string             `firestore:"packageId"`
	DepartureID string             `firestore:"departureId,omitempty"`
	TravelDate  time.Time          `firestore:"travelDate"`
	BookingDate time.Time          `firestore:"bookingDate"`
	PromoCode   string             `firestore:"promoCode,omitempty"`
	Composition map[string]int     `firestore:"composition"`
	Breakdown   breakdownDocument  `firestore:"breakdown"`
	Validation  validationDocument `firestore:"validation"`
	CreatedAt   time.Time          `firestore:"createdAt"`
}

type breakdownDocument struct {
	Currency           string               `firestore:"currency"`
	BasePrice          int64                `firestore:"basePrice"`
	SeasonalAdjustment int64                `firestore:"seasonalAdjustment"`
	GroupDiscount      int64                `firestore:"groupDiscount"`
	TimeBasedDiscount  int64                `firestore:"timeBasedDiscount"`
	PromoDiscount      int64                `firestore:"promoDiscount"`
	AddOnsTotal        int64                `firestore:"addonsTotal"`
	TotalPrice         int64                `firestore:"totalPrice"`
	TotalPassengers    int                  `firestore:"totalPassengers"`
	DaysBeforeTravel   int                  `firestore:"daysBeforeTravel"`
	TierLines          []tierLineDocument   `firestore:"tierLines"`
	AddOnLines         []addOnLineDocument  `firestore:"addonLines"`
	AppliedRules       appliedRulesDocument `firestore:"appliedRules"`
}

type tierLineDocument struct {
	TierID    string `firestore:"tierId"`
	TierType  string `firestore:"tierType"`
	Label     string `firestore:"label"`
	UnitPrice int64  `firestore:"unitPrice"`
	Quantity  int    `firestore:"quantity"`
	Subtotal  int64  `firestore:"subtotal"`
}

type addOnLineDocument struct {
	AddOnID   string `firestore:"addonId"`
	Name      string `firestore:"name"`
	UnitPrice int64  `firestore:"unitPrice"`
	Quantity  int    `firestore:"quantity"`
	Subtotal  int64  `firestore:"subtotal"`
}

type appliedRulesDocument struct {
	SeasonalRuleID string `firestore:"seasonalRuleId,omitempty"`
	GroupBandID    string `firestore:"groupBandId,omitempty"`
	TimeBasedID    string `firestore:"timeBasedId,omitempty"`
	PromotionID    string `firestore:"promotionId,omitempty"`
}

type validationDocument struct {
	Valid           bool                `firestore:"valid"`
	TotalPassengers int                 `firestore:"totalPassengers"`
	AdultCount      int                 `firestore:"adultCount"`
	Violations      []violationDocument `firestore:"violations,omitempty"`
}

type violationDocument struct {
	Code    string `firestore:"code"`
	TierID  string `firestore:"tierId,omitempty"`
	Message string `firestore:"message"`
}

func encodeQuoteDocument(quote domain.PriceQuote) quoteDocument {
	breakdown := quote.Breakdown

	tierLines := make([]tierLineDocument, 0, len(breakdown.TierLines))
	for _, line := range breakdown.TierLines {
		tierLines = append(tierLines, tierLineDocument{
			TierID:    line.TierID,
			TierType:  string(line.TierType),
			Label:     line.Label,
			UnitPrice: line.UnitPrice,
			Quantity:  line.Quantity,
			Subtotal:  line.Subtotal,
		})
	}

	addOnLines := make([]addOnLineDocument, 0, len(breakdown.AddOnLines))
	for _, line := range breakdown.AddOnLines {
		addOnLines = append(addOnLines, addOnLineDocument{
			AddOnID:   line.AddOnID,
			Name:      line.Name,
			UnitPrice: line.UnitPrice,
			Quantity:  line.Quantity,
			Subtotal:  line.Subtotal,
		})
	}

	var applied appliedRulesDocument
	if breakdown.AppliedRules.Seasonal != nil {
		applied.SeasonalRuleID = breakdown.AppliedRules.Seasonal.RuleID
	}
	if breakdown.AppliedRules.GroupBand != nil {
		applied.GroupBandID = breakdown.AppliedRules.GroupBand.BandID
	}
	if breakdown.AppliedRules.TimeBased != nil {
		applied.TimeBasedID = breakdown.AppliedRules.TimeBased.RuleID
	}
	if breakdown.AppliedRules.Promotion != nil {
		applied.PromotionID = breakdown.AppliedRules.Promotion.PromotionID
	}

	violations := make([]violationDocument, 0, len(quote.Validation.Violations))
	for _, violation := range quote.Validation.Violations {
		violations = append(violations, violationDocument{
			Code:    string(violation.Code),
			TierID:  violation.TierID,
			Message: violation.Message,
		})
	}

	return quoteDocument{
		PackageID:   quote.PackageID,
		DepartureID: quote.DepartureID,
		TravelDate:  quote.TravelDate.UTC(),
		BookingDate: quote.BookingDate.UTC(),
		PromoCode:   quote.PromoCode,
		Composition: quote.Composition,
		Breakdown: breakdownDocument{
			Currency:           breakdown.Currency,
			BasePrice:          breakdown.BasePrice,
			SeasonalAdjustment: breakdown.SeasonalAdjustment,
			GroupDiscount:      breakdown.GroupDiscount,
			TimeBasedDiscount:  breakdown.TimeBasedDiscount,
			PromoDiscount:      breakdown.PromoDiscount,
			AddOnsTotal:        breakdown.AddOnsTotal,
			TotalPrice:         breakdown.TotalPrice,
			TotalPassengers:    breakdown.TotalPassengers,
			DaysBeforeTravel:   breakdown.DaysBeforeTravel,
			TierLines:          tierLines,
			AddOnLines:         addOnLines,
			AppliedRules:       applied,
		},
		Validation: validationDocument{
			Valid:           quote.Validation.Valid,
			TotalPassengers: quote.Validation.TotalPassengers,
			AdultCount:      quote.Validation.AdultCount,
			Violations:      violations,
		},
		CreatedAt: quote.CreatedAt.UTC(),
	}
}

func decodeQuoteDocument(quoteID string, doc quoteDocument) domain.PriceQuote {
	tierLines := make([]domain.TierPriceLine, 0, len(doc.Breakdown.TierLines))
	for _, line := range doc.Breakdown.TierLines {
		tierLines = append(tierLines, domain.TierPriceLine{
			TierID:    line.TierID,
			TierType:  domain.TierType(line.TierType),
			Label:     line.Label,
			UnitPrice: line.UnitPrice,
			Quantity:  line.Quantity,
			Subtotal:  line.Subtotal,
		})
	}

	addOnLines := make([]domain.AddOnPriceLine, 0, len(doc.Breakdown.AddOnLines))
	for _, line := range doc.Breakdown.AddOnLines {
		addOnLines = append(addOnLines, domain.AddOnPriceLine{
			AddOnID:   line.AddOnID,
			Name:      line.Name,
			UnitPrice: line.UnitPrice,
			Quantity:  line.Quantity,
			Subtotal:  line.Subtotal,
		})
	}

	violations := make([]domain.CompositionViolation, 0, len(doc.Validation.Violations))
	for _, violation := range doc.Validation.Violations {
		violations = append(violations, domain.CompositionViolation{
			Code:    domain.ViolationCode(violation.Code),
			TierID:  violation.TierID,
			Message: violation.Message,
		})
	}

	return domain.PriceQuote{
		ID:          quoteID,
		PackageID:   doc.PackageID,
		DepartureID: doc.DepartureID,
		TravelDate:  doc.TravelDate.UTC(),
		BookingDate: doc.BookingDate.UTC(),
		PromoCode:   doc.PromoCode,
		Composition: doc.Composition,
		Breakdown: domain.PriceBreakdown{
			Currency:           doc.Breakdown.Currency,
			BasePrice:          doc.Breakdown.BasePrice,
			SeasonalAdjustment: doc.Breakdown.SeasonalAdjustment,
			GroupDiscount:      doc.Breakdown.GroupDiscount,
			TimeBasedDiscount:  doc.Breakdown.TimeBasedDiscount,
			PromoDiscount:      doc.Breakdown.PromoDiscount,
			AddOnsTotal:        doc.Breakdown.AddOnsTotal,
			TotalPrice:         doc.Breakdown.TotalPrice,
			TotalPassengers:    doc.Breakdown.TotalPassengers,
			DaysBeforeTravel:   doc.Breakdown.DaysBeforeTravel,
			TierLines:          tierLines,
			AddOnLines:         addOnLines,
		},
		Validation: domain.ValidationResult{
			Valid:           doc.Validation.Valid,
			TotalPassengers: doc.Validation.TotalPassengers,
			AdultCount:      doc.Validation.AdultCount,
			Composition:     doc.Composition,
			Violations:      violations,
		},
		CreatedAt: doc.CreatedAt.UTC(),
	}
}
