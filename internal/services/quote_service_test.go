package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	domain "github.com/roamline/api/internal/domain"
)

type fakeRepositoryError struct {
	msg      string
	notFound bool
}

func (e *fakeRepositoryError) Error() string       { return e.msg }
func (e *fakeRepositoryError) IsNotFound() bool    { return e.notFound }
func (e *fakeRepositoryError) IsConflict() bool    { return false }
func (e *fakeRepositoryError) IsUnavailable() bool { return false }

type fakePackageRepository struct {
	pricing map[string]domain.PackagePricing
	calls   int
}

func (r *fakePackageRepository) GetPricing(_ context.Context, packageID string) (domain.PackagePricing, error) {
	r.calls++
	pricing, ok := r.pricing[packageID]
	if !ok {
		return domain.PackagePricing{}, &fakeRepositoryError{msg: "package " + packageID + " missing", notFound: true}
	}
	return pricing, nil
}

type fakeDepartureRepository struct {
	departures map[string]domain.DepartureInventory
}

func (r *fakeDepartureRepository) FindByID(_ context.Context, departureID string) (domain.DepartureInventory, error) {
	departure, ok := r.departures[departureID]
	if !ok {
		return domain.DepartureInventory{}, &fakeRepositoryError{msg: "departure " + departureID + " missing", notFound: true}
	}
	return departure, nil
}

type fakeQuoteRepository struct {
	inserted []domain.PriceQuote
	fail     error
}

func (r *fakeQuoteRepository) Insert(_ context.Context, quote domain.PriceQuote) error {
	if r.fail != nil {
		return r.fail
	}
	r.inserted = append(r.inserted, quote)
	return nil
}

func (r *fakeQuoteRepository) FindByID(_ context.Context, quoteID string) (domain.PriceQuote, error) {
	for _, quote := range r.inserted {
		if quote.ID == quoteID {
			return quote, nil
		}
	}
	return domain.PriceQuote{}, &fakeRepositoryError{msg: "quote " + quoteID + " missing", notFound: true}
}

func testPackagePricing() domain.PackagePricing {
	required := AddOn{ID: "fees", Name: "Park fees", Price: 1500, PricingType: AddOnPerGroup, Required: true, Active: true}
	return domain.PackagePricing{
		PackageID:    "pkg_1",
		Name:         "Coastal trek",
		Currency:     "USD",
		MinGroupSize: 2,
		Catalog:      standardCatalog(),
		Rules: RuleSet{
			GroupPricingBands: []GroupPricingBand{
				{ID: "band_1", MinPax: 2, MaxPax: 5, PricingType: GroupPricingDiscountPercentage, Percent: 10, Active: true},
			},
			AddOns: []AddOn{required},
		},
	}
}

func newTestQuoteService(t *testing.T, packages *fakePackageRepository, departures *fakeDepartureRepository, quotes *fakeQuoteRepository) QuoteService {
	t.Helper()

	validator, err := NewCompositionValidator(CompositionValidatorDeps{})
	if err != nil {
		t.Fatalf("NewCompositionValidator error: %v", err)
	}
	engine, err := NewPriceEngine(PriceEngineDeps{Now: testClock})
	if err != nil {
		t.Fatalf("NewPriceEngine error: %v", err)
	}
	gate, err := NewAvailabilityGate(AvailabilityGateDeps{})
	if err != nil {
		t.Fatalf("NewAvailabilityGate error: %v", err)
	}

	deps := QuoteServiceDeps{
		Packages:    packages,
		Quotes:      quotes,
		Validator:   validator,
		Engine:      engine,
		Gate:        gate,
		Clock:       testClock,
		IDGenerator: func() string { return "01TESTQUOTE" },
	}
	if departures != nil {
		deps.Departures = departures
	}

	service, err := NewQuoteService(deps)
	if err != nil {
		t.Fatalf("NewQuoteService error: %v", err)
	}
	return service
}

func TestQuoteService_CreateQuote(t *testing.T) {
	packages := &fakePackageRepository{pricing: map[string]domain.PackagePricing{"pkg_1": testPackagePricing()}}
	quotes := &fakeQuoteRepository{}
	service := newTestQuoteService(t, packages, nil, quotes)

	quote, err := service.CreateQuote(context.Background(), CreateQuoteCommand{
		PackageID:   "pkg_1",
		TravelDate:  testClock().AddDate(0, 1, 0),
		Composition: BookingComposition{"tier_adult": 2, "tier_child": 1},
	})
	if err != nil {
		t.Fatalf("CreateQuote error: %v", err)
	}

	if !strings.HasPrefix(quote.ID, "pq_") {
		t.Fatalf("expected pq_ prefixed quote id, got %q", quote.ID)
	}
	if quote.Breakdown.BasePrice != 26000 || quote.Breakdown.GroupDiscount != 2600 {
		t.Fatalf("unexpected breakdown: %+v", quote.Breakdown)
	}
	// The required park fee is included even though the caller skipped it.
	if quote.Breakdown.AddOnsTotal != 1500 {
		t.Fatalf("expected required add-on total 1500, got %d", quote.Breakdown.AddOnsTotal)
	}
	if quote.Breakdown.TotalPrice != 24900 {
		t.Fatalf("expected total 24900, got %d", quote.Breakdown.TotalPrice)
	}
	if !quote.Validation.Valid {
		t.Fatalf("expected valid composition, got %+v", quote.Validation)
	}
	if len(quotes.inserted) != 1 || quotes.inserted[0].ID != quote.ID {
		t.Fatalf("expected quote to be persisted, got %+v", quotes.inserted)
	}
}

func TestQuoteService_CreateQuoteLegacyTierCounts(t *testing.T) {
	packages := &fakePackageRepository{pricing: map[string]domain.PackagePricing{"pkg_1": testPackagePricing()}}
	service := newTestQuoteService(t, packages, nil, &fakeQuoteRepository{})

	quote, err := service.CreateQuote(context.Background(), CreateQuoteCommand{
		PackageID:  "pkg_1",
		TravelDate: testClock().AddDate(0, 1, 0),
		TierCounts: map[TierType]int{TierAdult: 2, TierChild: 1},
	})
	if err != nil {
		t.Fatalf("CreateQuote error: %v", err)
	}
	if quote.Breakdown.BasePrice != 26000 {
		t.Fatalf("expected tier counts to expand to the same base price, got %d", quote.Breakdown.BasePrice)
	}

	_, err = service.CreateQuote(context.Background(), CreateQuoteCommand{
		PackageID:   "pkg_1",
		TravelDate:  testClock().AddDate(0, 1, 0),
		Composition: BookingComposition{"tier_adult": 1},
		TierCounts:  map[TierType]int{TierAdult: 1},
	})
	if !errors.Is(err, ErrQuoteInvalidInput) {
		t.Fatalf("expected ErrQuoteInvalidInput when both shapes supplied, got %v", err)
	}
}

func TestQuoteService_ValidationFailure(t *testing.T) {
	packages := &fakePackageRepository{pricing: map[string]domain.PackagePricing{"pkg_1": testPackagePricing()}}
	quotes := &fakeQuoteRepository{}
	service := newTestQuoteService(t, packages, nil, quotes)

	cmd := CreateQuoteCommand{
		PackageID:   "pkg_1",
		TravelDate:  testClock().AddDate(0, 1, 0),
		Composition: BookingComposition{"tier_adult": 1},
	}

	if _, err := service.CreateQuote(context.Background(), cmd); !errors.Is(err, ErrQuoteValidationFailed) {
		t.Fatalf("expected ErrQuoteValidationFailed, got %v", err)
	}
	if len(quotes.inserted) != 0 {
		t.Fatalf("rejected quote must not be persisted")
	}

	// Preview mode still returns a priced estimate with the violations.
	cmd.Preview = true
	quote, err := service.CreateQuote(context.Background(), cmd)
	if err != nil {
		t.Fatalf("CreateQuote preview error: %v", err)
	}
	if quote.Validation.Valid {
		t.Fatalf("expected invalid validation in preview")
	}
	if quote.Breakdown.BasePrice != 10000 {
		t.Fatalf("expected preview to price anyway, got %+v", quote.Breakdown)
	}
	if len(quotes.inserted) != 0 {
		t.Fatalf("preview quotes must not be persisted")
	}
}

func TestQuoteService_DepartureFlow(t *testing.T) {
	packages := &fakePackageRepository{pricing: map[string]domain.PackagePricing{"pkg_1": testPackagePricing()}}
	departures := &fakeDepartureRepository{departures: map[string]domain.DepartureInventory{
		"dep_open": {
			ID: "dep_open", Status: DepartureStatusOpen, AvailableSlots: 10, BookedSlots: 2,
			HasCustomPricing: true, TierPrices: map[TierType]int64{TierAdult: 12000},
		},
		"dep_full": {ID: "dep_full", Status: DepartureStatusOpen, AvailableSlots: 5, BookedSlots: 5},
	}}
	service := newTestQuoteService(t, packages, departures, &fakeQuoteRepository{})

	quote, err := service.CreateQuote(context.Background(), CreateQuoteCommand{
		PackageID:   "pkg_1",
		DepartureID: "dep_open",
		TravelDate:  testClock().AddDate(0, 1, 0),
		Composition: BookingComposition{"tier_adult": 2, "tier_child": 1},
	})
	if err != nil {
		t.Fatalf("CreateQuote error: %v", err)
	}
	if quote.Breakdown.BasePrice != 30000 {
		t.Fatalf("expected departure pricing to apply, got %d", quote.Breakdown.BasePrice)
	}

	_, err = service.CreateQuote(context.Background(), CreateQuoteCommand{
		PackageID:   "pkg_1",
		DepartureID: "dep_full",
		TravelDate:  testClock().AddDate(0, 1, 0),
		Composition: BookingComposition{"tier_adult": 2},
	})
	if !errors.Is(err, ErrQuoteDepartureUnavailable) {
		t.Fatalf("expected ErrQuoteDepartureUnavailable, got %v", err)
	}

	_, err = service.CreateQuote(context.Background(), CreateQuoteCommand{
		PackageID:   "pkg_1",
		DepartureID: "dep_ghost",
		TravelDate:  testClock().AddDate(0, 1, 0),
		Composition: BookingComposition{"tier_adult": 2},
	})
	if !errors.Is(err, ErrQuoteDepartureNotFound) {
		t.Fatalf("expected ErrQuoteDepartureNotFound, got %v", err)
	}
}

func TestQuoteService_PackageNotFound(t *testing.T) {
	packages := &fakePackageRepository{pricing: map[string]domain.PackagePricing{}}
	service := newTestQuoteService(t, packages, nil, &fakeQuoteRepository{})

	_, err := service.CreateQuote(context.Background(), CreateQuoteCommand{
		PackageID:   "pkg_ghost",
		TravelDate:  testClock().AddDate(0, 1, 0),
		Composition: BookingComposition{"tier_adult": 2},
	})
	if !errors.Is(err, ErrQuotePackageNotFound) {
		t.Fatalf("expected ErrQuotePackageNotFound, got %v", err)
	}
}

func TestQuoteService_PersistFailureDoesNotBlockQuote(t *testing.T) {
	packages := &fakePackageRepository{pricing: map[string]domain.PackagePricing{"pkg_1": testPackagePricing()}}
	quotes := &fakeQuoteRepository{fail: errors.New("store down")}
	service := newTestQuoteService(t, packages, nil, quotes)

	quote, err := service.CreateQuote(context.Background(), CreateQuoteCommand{
		PackageID:   "pkg_1",
		TravelDate:  testClock().AddDate(0, 1, 0),
		Composition: BookingComposition{"tier_adult": 2},
	})
	if err != nil {
		t.Fatalf("CreateQuote error: %v", err)
	}
	if quote.Breakdown.TotalPrice == 0 {
		t.Fatalf("expected priced quote despite persistence failure")
	}
}

func TestQuoteService_ValidateComposition(t *testing.T) {
	packages := &fakePackageRepository{pricing: map[string]domain.PackagePricing{"pkg_1": testPackagePricing()}}
	service := newTestQuoteService(t, packages, nil, &fakeQuoteRepository{})

	result, err := service.ValidateComposition(context.Background(), ValidatePackageCompositionCommand{
		PackageID:   "pkg_1",
		Composition: BookingComposition{"tier_adult": 1},
	})
	if err != nil {
		t.Fatalf("ValidateComposition error: %v", err)
	}
	if result.Valid {
		t.Fatalf("expected group size violation for single adult")
	}
	if len(result.Violations) != 1 || result.Violations[0].Code != domain.ViolationGroupSize {
		t.Fatalf("unexpected violations: %+v", result.Violations)
	}
}

func TestQuoteService_CheckAvailability(t *testing.T) {
	packages := &fakePackageRepository{pricing: map[string]domain.PackagePricing{}}
	departures := &fakeDepartureRepository{departures: map[string]domain.DepartureInventory{
		"dep_1": {ID: "dep_1", Status: DepartureStatusOpen, AvailableSlots: 8, BookedSlots: 3},
	}}
	service := newTestQuoteService(t, packages, departures, &fakeQuoteRepository{})

	result, err := service.CheckAvailability(context.Background(), CheckAvailabilityCommand{DepartureID: "dep_1", RequestedSlots: 4})
	if err != nil {
		t.Fatalf("CheckAvailability error: %v", err)
	}
	if !result.Available || result.RemainingSlots != 5 {
		t.Fatalf("unexpected availability: %+v", result)
	}

	if _, err := service.CheckAvailability(context.Background(), CheckAvailabilityCommand{DepartureID: "dep_ghost", RequestedSlots: 1}); !errors.Is(err, ErrQuoteDepartureNotFound) {
		t.Fatalf("expected ErrQuoteDepartureNotFound, got %v", err)
	}
}
