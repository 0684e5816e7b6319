package services

import (
	"context"
	"errors"
	"fmt"

	domain "github.com/roamline/api/internal/domain"
)

var (
	// ErrCompositionInvalidInput signals a malformed composition such as a
	// negative quantity or an unknown tier id.
	ErrCompositionInvalidInput = errors.New("composition: invalid input")
)

type CompositionValidator struct {
	logger func(context.Context, string, map[string]any)
}

type CompositionValidatorDeps struct {
	Logger func(context.Context, string, map[string]any)
}

func NewCompositionValidator(deps CompositionValidatorDeps) (*CompositionValidator, error) {
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &CompositionValidator{logger: logger}, nil
}

type ValidateCompositionCommand struct {
	Composition  BookingComposition
	Catalog      TierCatalog
	MinGroupSize int
	MaxGroupSize *int
}

// Validate checks group-size bounds, adult accompaniment, and per-tier caps.
// All violations are collected so callers can render them at once; the
// composition is echoed back unchanged.
func (v *CompositionValidator) Validate(ctx context.Context, cmd ValidateCompositionCommand) (ValidationResult, error) {
	for tierID, quantity := range cmd.Composition {
		if quantity < 0 {
			return ValidationResult{}, fmt.Errorf("%w: tier %s quantity cannot be negative", ErrCompositionInvalidInput, tierID)
		}
		if _, ok := cmd.Catalog.FindByID(tierID); !ok {
			return ValidationResult{}, fmt.Errorf("%w: unknown tier %s", ErrCompositionInvalidInput, tierID)
		}
	}

	totalPassengers := cmd.Composition.TotalPassengers()
	adultCount := cmd.Composition.AdultCount(cmd.Catalog)
	violations := make([]CompositionViolation, 0, 2)

	if totalPassengers < cmd.MinGroupSize {
		violations = append(violations, CompositionViolation{
			Code:    domain.ViolationGroupSize,
			Message: fmt.Sprintf("at least %d passengers required, got %d", cmd.MinGroupSize, totalPassengers),
		})
	}
	if cmd.MaxGroupSize != nil && totalPassengers > *cmd.MaxGroupSize {
		violations = append(violations, CompositionViolation{
			Code:    domain.ViolationGroupSize,
			Message: fmt.Sprintf("at most %d passengers allowed, got %d", *cmd.MaxGroupSize, totalPassengers),
		})
	}

	for _, tier := range cmd.Catalog.Tiers {
		quantity := cmd.Composition[tier.ID]
		if quantity <= 0 {
			continue
		}
		if tier.RequiresAdultAccompaniment && adultCount == 0 {
			violations = append(violations, CompositionViolation{
				Code:    domain.ViolationAccompaniment,
				TierID:  tier.ID,
				Message: fmt.Sprintf("%s requires at least one adult in the booking", tier.Label),
			})
		}
		if tier.MaxPerBooking != nil && quantity > *tier.MaxPerBooking {
			violations = append(violations, CompositionViolation{
				Code:    domain.ViolationPerTierCap,
				TierID:  tier.ID,
				Message: fmt.Sprintf("%s is limited to %d per booking, got %d", tier.Label, *tier.MaxPerBooking, quantity),
			})
		}
	}

	result := ValidationResult{
		Valid:           len(violations) == 0,
		TotalPassengers: totalPassengers,
		AdultCount:      adultCount,
		Composition:     cmd.Composition,
		Violations:      violations,
	}
	if !result.Valid {
		v.logger(ctx, "composition_rejected", map[string]any{"totalPassengers": totalPassengers, "violations": len(violations)})
	}
	return result, nil
}
