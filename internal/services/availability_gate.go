package services

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrAvailabilityInvalidInput signals a non-positive requested slot
	// count.
	ErrAvailabilityInvalidInput = errors.New("availability: invalid input")
)

type AvailabilityGate struct {
	logger func(context.Context, string, map[string]any)
}

type AvailabilityGateDeps struct {
	Logger func(context.Context, string, map[string]any)
}

func NewAvailabilityGate(deps AvailabilityGateDeps) (*AvailabilityGate, error) {
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &AvailabilityGate{logger: logger}, nil
}

// Check reports whether the departure can take the requested slot count. It
// reads the inventory snapshot only; reserving slots is the booking
// subsystem's responsibility.
func (g *AvailabilityGate) Check(ctx context.Context, inventory DepartureInventory, requestedSlots int) (AvailabilityResult, error) {
	if requestedSlots <= 0 {
		return AvailabilityResult{}, fmt.Errorf("%w: requested slots must be positive", ErrAvailabilityInvalidInput)
	}

	remaining := inventory.RemainingSlots()
	result := AvailabilityResult{
		RemainingSlots: remaining,
		RequestedSlots: requestedSlots,
	}

	switch {
	case inventory.Status == DepartureStatusSoldOut || remaining == 0:
		result.Reason = UnavailableSoldOut
	case inventory.Status == DepartureStatusCancelled:
		result.Reason = UnavailableCancelled
	case requestedSlots > remaining:
		result.Reason = UnavailableInsufficientSlots
	default:
		result.Available = true
	}

	if !result.Available {
		g.logger(ctx, "departure_unavailable", map[string]any{"departureId": inventory.ID, "reason": string(result.Reason), "remaining": remaining, "requested": requestedSlots})
	}
	return result, nil
}
