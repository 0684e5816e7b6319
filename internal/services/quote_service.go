package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/roamline/api/internal/domain"
	"github.com/roamline/api/internal/repositories"
)

var (
	// ErrQuoteInvalidInput signals the caller provided invalid arguments.
	ErrQuoteInvalidInput = errors.New("quote: invalid input")
	// ErrQuotePackageNotFound indicates the package snapshot could not be located.
	ErrQuotePackageNotFound = errors.New("quote: package not found")
	// ErrQuoteDepartureNotFound indicates the departure could not be located.
	ErrQuoteDepartureNotFound = errors.New("quote: departure not found")
	// ErrQuoteValidationFailed indicates the composition violated the package's booking rules.
	ErrQuoteValidationFailed = errors.New("quote: composition validation failed")
	// ErrQuoteDepartureUnavailable indicates the departure cannot take the requested slots.
	ErrQuoteDepartureUnavailable = errors.New("quote: departure unavailable")
)

// QuoteServiceDeps bundles the collaborators required to construct a quote service.
type QuoteServiceDeps struct {
	Packages    repositories.PackagePricingRepository
	Departures  repositories.DepartureRepository
	Quotes      repositories.QuoteRepository
	Validator   *CompositionValidator
	Engine      *PriceEngine
	Gate        *AvailabilityGate
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type quoteService struct {
	packages   repositories.PackagePricingRepository
	departures repositories.DepartureRepository
	quotes     repositories.QuoteRepository
	validator  *CompositionValidator
	engine     *PriceEngine
	gate       *AvailabilityGate
	clock      func() time.Time
	newID      func() string
	logger     func(context.Context, string, map[string]any)
}

// NewQuoteService wires dependencies into a concrete QuoteService implementation.
func NewQuoteService(deps QuoteServiceDeps) (QuoteService, error) {
	if deps.Packages == nil {
		return nil, errors.New("quote service: package pricing repository is required")
	}
	if deps.Validator == nil {
		return nil, errors.New("quote service: composition validator is required")
	}
	if deps.Engine == nil {
		return nil, errors.New("quote service: price engine is required")
	}
	if deps.Gate == nil {
		return nil, errors.New("quote service: availability gate is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &quoteService{
		packages:   deps.Packages,
		departures: deps.Departures,
		quotes:     deps.Quotes,
		validator:  deps.Validator,
		engine:     deps.Engine,
		gate:       deps.Gate,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		logger: logger,
	}, nil
}

// CreateQuote prices a booking request end to end. Outside preview mode the
// quote is rejected when the composition fails validation or the departure
// cannot take the party; preview mode still returns a priced estimate with
// the violations attached.
func (s *quoteService) CreateQuote(ctx context.Context, cmd CreateQuoteCommand) (PriceQuote, error) {
	packageID := strings.TrimSpace(cmd.PackageID)
	if packageID == "" {
		return PriceQuote{}, fmt.Errorf("%w: package id is required", ErrQuoteInvalidInput)
	}
	if cmd.TravelDate.IsZero() {
		return PriceQuote{}, fmt.Errorf("%w: travel date is required", ErrQuoteInvalidInput)
	}

	pricing, err := s.packages.GetPricing(ctx, packageID)
	if err != nil {
		return PriceQuote{}, s.mapRepositoryError(err, ErrQuotePackageNotFound)
	}

	composition, err := s.resolveComposition(cmd.Composition, cmd.TierCounts, pricing.Catalog)
	if err != nil {
		return PriceQuote{}, err
	}

	validation, err := s.validator.Validate(ctx, ValidateCompositionCommand{
		Composition:  composition,
		Catalog:      pricing.Catalog,
		MinGroupSize: pricing.MinGroupSize,
		MaxGroupSize: pricing.MaxGroupSize,
	})
	if err != nil {
		if errors.Is(err, ErrCompositionInvalidInput) {
			return PriceQuote{}, fmt.Errorf("%w: %s", ErrQuoteInvalidInput, err)
		}
		return PriceQuote{}, err
	}
	if !validation.Valid && !cmd.Preview {
		return PriceQuote{}, fmt.Errorf("%w: %d violation(s)", ErrQuoteValidationFailed, len(validation.Violations))
	}

	rules := pricing.Rules
	departureID := strings.TrimSpace(cmd.DepartureID)
	if departureID != "" {
		if s.departures == nil {
			return PriceQuote{}, fmt.Errorf("%w: departure lookups are not configured", ErrQuoteInvalidInput)
		}
		departure, depErr := s.departures.FindByID(ctx, departureID)
		if depErr != nil {
			return PriceQuote{}, s.mapRepositoryError(depErr, ErrQuoteDepartureNotFound)
		}
		rules.Departure = &departure

		if requested := composition.TotalPassengers(); requested > 0 {
			availability, gateErr := s.gate.Check(ctx, departure, requested)
			if gateErr != nil {
				return PriceQuote{}, gateErr
			}
			if !availability.Available && !cmd.Preview {
				return PriceQuote{}, fmt.Errorf("%w: %s, %d slot(s) remaining", ErrQuoteDepartureUnavailable, availability.Reason, availability.RemainingSlots)
			}
		}
	}

	selections := s.withRequiredAddOns(rules, cmd.AddOns)

	breakdown, err := s.engine.Calculate(ctx, PriceQuoteCommand{
		Composition: composition,
		Catalog:     pricing.Catalog,
		Rules:       rules,
		Currency:    pricing.Currency,
		TravelDate:  cmd.TravelDate,
		BookingDate: cmd.BookingDate,
		PromoCode:   cmd.PromoCode,
		AddOns:      selections,
	})
	if err != nil {
		if errors.Is(err, ErrPricingInvalidInput) {
			return PriceQuote{}, fmt.Errorf("%w: %s", ErrQuoteInvalidInput, err)
		}
		return PriceQuote{}, err
	}

	now := s.clock()
	bookingDate := now
	if cmd.BookingDate != nil {
		bookingDate = cmd.BookingDate.UTC()
	}

	quote := PriceQuote{
		ID:          ensureQuoteID(s.newID()),
		PackageID:   packageID,
		DepartureID: departureID,
		TravelDate:  cmd.TravelDate.UTC(),
		BookingDate: bookingDate,
		Composition: composition,
		Breakdown:   breakdown,
		Validation:  validation,
		CreatedAt:   now,
	}
	if cmd.PromoCode != nil {
		quote.PromoCode = strings.TrimSpace(*cmd.PromoCode)
	}

	if s.quotes != nil && !cmd.Preview {
		if insertErr := s.quotes.Insert(ctx, quote); insertErr != nil {
			// The caller still gets the priced estimate; persistence is a
			// convenience for the booking flow.
			s.logger(ctx, "quote_persist_failed", map[string]any{"quoteId": quote.ID, "error": insertErr.Error()})
		}
	}

	s.logger(ctx, "quote_created", map[string]any{
		"quoteId":    quote.ID,
		"packageId":  packageID,
		"passengers": breakdown.TotalPassengers,
		"total":      breakdown.TotalPrice,
		"preview":    cmd.Preview,
	})

	return quote, nil
}

func (s *quoteService) ValidateComposition(ctx context.Context, cmd ValidatePackageCompositionCommand) (ValidationResult, error) {
	packageID := strings.TrimSpace(cmd.PackageID)
	if packageID == "" {
		return ValidationResult{}, fmt.Errorf("%w: package id is required", ErrQuoteInvalidInput)
	}

	pricing, err := s.packages.GetPricing(ctx, packageID)
	if err != nil {
		return ValidationResult{}, s.mapRepositoryError(err, ErrQuotePackageNotFound)
	}

	composition, err := s.resolveComposition(cmd.Composition, cmd.TierCounts, pricing.Catalog)
	if err != nil {
		return ValidationResult{}, err
	}

	result, err := s.validator.Validate(ctx, ValidateCompositionCommand{
		Composition:  composition,
		Catalog:      pricing.Catalog,
		MinGroupSize: pricing.MinGroupSize,
		MaxGroupSize: pricing.MaxGroupSize,
	})
	if err != nil {
		if errors.Is(err, ErrCompositionInvalidInput) {
			return ValidationResult{}, fmt.Errorf("%w: %s", ErrQuoteInvalidInput, err)
		}
		return ValidationResult{}, err
	}
	return result, nil
}

func (s *quoteService) CheckAvailability(ctx context.Context, cmd CheckAvailabilityCommand) (AvailabilityResult, error) {
	departureID := strings.TrimSpace(cmd.DepartureID)
	if departureID == "" {
		return AvailabilityResult{}, fmt.Errorf("%w: departure id is required", ErrQuoteInvalidInput)
	}
	if s.departures == nil {
		return AvailabilityResult{}, fmt.Errorf("%w: departure lookups are not configured", ErrQuoteInvalidInput)
	}

	departure, err := s.departures.FindByID(ctx, departureID)
	if err != nil {
		return AvailabilityResult{}, s.mapRepositoryError(err, ErrQuoteDepartureNotFound)
	}

	return s.gate.Check(ctx, departure, cmd.RequestedSlots)
}

// resolveComposition normalises the two request shapes into the id-keyed
// composition the engine operates on. Legacy tier-type counts are expanded
// against the catalog; supplying both shapes is rejected.
func (s *quoteService) resolveComposition(composition BookingComposition, tierCounts map[TierType]int, catalog TierCatalog) (BookingComposition, error) {
	if len(composition) > 0 && len(tierCounts) > 0 {
		return nil, fmt.Errorf("%w: supply either a composition or tier counts, not both", ErrQuoteInvalidInput)
	}
	if len(tierCounts) > 0 {
		expanded, err := domain.CompositionFromTierCounts(tierCounts, catalog)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrQuoteInvalidInput, err)
		}
		return expanded, nil
	}
	if composition == nil {
		return BookingComposition{}, nil
	}
	return composition.Clone(), nil
}

// withRequiredAddOns appends any active required add-on missing from the
// caller's selection so the quote never understates the bookable price.
func (s *quoteService) withRequiredAddOns(rules RuleSet, selections []AddOnSelection) []AddOnSelection {
	selected := make(map[string]bool, len(selections))
	out := make([]AddOnSelection, 0, len(selections)+1)
	for _, selection := range selections {
		selected[selection.AddOnID] = true
		out = append(out, selection)
	}
	for _, addOn := range rules.AddOns {
		if addOn.Required && addOn.Active && !selected[addOn.ID] {
			out = append(out, AddOnSelection{AddOnID: addOn.ID, Quantity: 1})
		}
	}
	return out
}

func (s *quoteService) mapRepositoryError(err error, notFound error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %s", notFound, repoErr.Error())
		case repoErr.IsUnavailable():
			return fmt.Errorf("pricing store unavailable: %w", err)
		}
	}
	return err
}

func ensureQuoteID(candidate string) string {
	trimmed := strings.TrimSpace(candidate)
	if trimmed == "" {
		trimmed = ulid.Make().String()
	}
	if strings.HasPrefix(trimmed, "pq_") {
		return trimmed
	}
	return "pq_" + trimmed
}
