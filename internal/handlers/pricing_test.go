package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	domain "github.com/roamline/api/internal/domain"
	"github.com/roamline/api/internal/services"
)

type stubQuoteService struct {
	createFunc       func(ctx context.Context, cmd services.CreateQuoteCommand) (services.PriceQuote, error)
	validateFunc     func(ctx context.Context, cmd services.ValidatePackageCompositionCommand) (services.ValidationResult, error)
	availabilityFunc func(ctx context.Context, cmd services.CheckAvailabilityCommand) (services.AvailabilityResult, error)
}

func (s *stubQuoteService) CreateQuote(ctx context.Context, cmd services.CreateQuoteCommand) (services.PriceQuote, error) {
	if s == nil || s.createFunc == nil {
		return services.PriceQuote{}, nil
	}
	return s.createFunc(ctx, cmd)
}

func (s *stubQuoteService) ValidateComposition(ctx context.Context, cmd services.ValidatePackageCompositionCommand) (services.ValidationResult, error) {
	if s == nil || s.validateFunc == nil {
		return services.ValidationResult{}, nil
	}
	return s.validateFunc(ctx, cmd)
}

func (s *stubQuoteService) CheckAvailability(ctx context.Context, cmd services.CheckAvailabilityCommand) (services.AvailabilityResult, error) {
	if s == nil || s.availabilityFunc == nil {
		return services.AvailabilityResult{}, nil
	}
	return s.availabilityFunc(ctx, cmd)
}

var _ services.QuoteService = (*stubQuoteService)(nil)

type stubRepositoryError struct {
	unavailable bool
}

func (e *stubRepositoryError) Error() string       { return "repository error" }
func (e *stubRepositoryError) IsNotFound() bool    { return false }
func (e *stubRepositoryError) IsConflict() bool    { return false }
func (e *stubRepositoryError) IsUnavailable() bool { return e.unavailable }

func sampleQuote(now time.Time) services.PriceQuote {
	return services.PriceQuote{
		ID:          "pq_01TEST",
		PackageID:   "pkg_1",
		DepartureID: "dep_1",
		TravelDate:  time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC),
		BookingDate: now,
		PromoCode:   "SUMMER10",
		Composition: services.BookingComposition{"tier_adult": 2, "tier_child": 1},
		Breakdown: services.PriceBreakdown{
			Currency:           "USD",
			BasePrice:          26000,
			SeasonalAdjustment: 0,
			GroupDiscount:      2600,
			TimeBasedDiscount:  1170,
			PromoDiscount:      0,
			AddOnsTotal:        6000,
			TotalPrice:         28230,
			TotalPassengers:    3,
			DaysBeforeTravel:   45,
			TierLines: []services.TierPriceLine{
				{TierID: "tier_adult", TierType: services.TierAdult, Label: "Adult", UnitPrice: 10000, Quantity: 2, Subtotal: 20000},
				{TierID: "tier_child", TierType: services.TierChild, Label: "Child", UnitPrice: 6000, Quantity: 1, Subtotal: 6000},
			},
			AddOnLines: []services.AddOnPriceLine{
				{AddOnID: "addon_1", Name: "Airport transfer", UnitPrice: 2000, Quantity: 3, Subtotal: 6000},
			},
			AppliedRules: services.AppliedRules{
				GroupBand: &services.AppliedGroupBand{BandID: "band_1", MinPax: 3, MaxPax: 5, PricingType: services.GroupPricingDiscountPercentage, Amount: 2600},
			},
		},
		Validation: services.ValidationResult{Valid: true, TotalPassengers: 3, AdultCount: 2},
		CreatedAt:  now,
	}
}

func TestPricingHandlersCreateQuoteSuccess(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	var captured services.CreateQuoteCommand
	service := &stubQuoteService{
		createFunc: func(ctx context.Context, cmd services.CreateQuoteCommand) (services.PriceQuote, error) {
			captured = cmd
			return sampleQuote(now), nil
		},
	}

	handler := NewPricingHandlers(service)
	router := NewRouter(WithPackageRoutes(handler.PackageRoutes))

	body := bytes.NewBufferString(`{
		"departure_id": " dep_1 ",
		"travel_date": "2026-06-15",
		"composition": {"tier_adult": 2, "tier_child": 1},
		"promo_code": " SUMMER10 ",
		"add_ons": [{"id": " addon_1 ", "quantity": 3}]
	}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/packages/pkg_1/quote", body)
	resp := httptest.NewRecorder()

	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", resp.Code, resp.Body.String())
	}

	if captured.PackageID != "pkg_1" {
		t.Fatalf("expected package id from path, got %s", captured.PackageID)
	}
	if captured.DepartureID != "dep_1" {
		t.Fatalf("expected departure id trimmed, got %q", captured.DepartureID)
	}
	wantDate := time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC)
	if !captured.TravelDate.Equal(wantDate) {
		t.Fatalf("expected travel date %s, got %s", wantDate, captured.TravelDate)
	}
	if captured.PromoCode == nil || *captured.PromoCode != "SUMMER10" {
		t.Fatalf("expected trimmed promo code, got %v", captured.PromoCode)
	}
	if len(captured.AddOns) != 1 || captured.AddOns[0].AddOnID != "addon_1" || captured.AddOns[0].Quantity != 3 {
		t.Fatalf("unexpected add-on selection %+v", captured.AddOns)
	}
	if captured.Composition["tier_adult"] != 2 {
		t.Fatalf("unexpected composition %v", captured.Composition)
	}

	var payload quoteResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if payload.Quote.ID != "pq_01TEST" {
		t.Fatalf("unexpected quote id %s", payload.Quote.ID)
	}
	if payload.Quote.Breakdown.TotalPrice != 28230 {
		t.Fatalf("expected total 28230, got %d", payload.Quote.Breakdown.TotalPrice)
	}
	if len(payload.Quote.Breakdown.TierLines) != 2 {
		t.Fatalf("expected 2 tier lines, got %d", len(payload.Quote.Breakdown.TierLines))
	}
	if payload.Quote.Breakdown.AppliedRules == nil || payload.Quote.Breakdown.AppliedRules.GroupBand == nil {
		t.Fatal("expected applied group band in response")
	}
	if payload.Quote.Breakdown.AppliedRules.GroupBand.Amount != 2600 {
		t.Fatalf("expected group band amount 2600, got %d", payload.Quote.Breakdown.AppliedRules.GroupBand.Amount)
	}
	if payload.Quote.CreatedAt != formatTime(now) {
		t.Fatalf("expected created_at %s, got %s", formatTime(now), payload.Quote.CreatedAt)
	}
}

func TestPricingHandlersCreateQuotePreview(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	service := &stubQuoteService{
		createFunc: func(ctx context.Context, cmd services.CreateQuoteCommand) (services.PriceQuote, error) {
			if !cmd.Preview {
				t.Fatal("expected preview flag propagated")
			}
			return sampleQuote(now), nil
		},
	}

	handler := NewPricingHandlers(service)
	router := NewRouter(WithPackageRoutes(handler.PackageRoutes))

	body := bytes.NewBufferString(`{"travel_date":"2026-06-15","composition":{"tier_adult":2},"preview":true}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/packages/pkg_1/quote", body)
	resp := httptest.NewRecorder()

	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200 for preview, got %d", resp.Code)
	}
}

func TestPricingHandlersCreateQuoteTierCounts(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	var captured services.CreateQuoteCommand
	service := &stubQuoteService{
		createFunc: func(ctx context.Context, cmd services.CreateQuoteCommand) (services.PriceQuote, error) {
			captured = cmd
			return sampleQuote(now), nil
		},
	}

	handler := NewPricingHandlers(service)
	router := NewRouter(WithPackageRoutes(handler.PackageRoutes))

	body := bytes.NewBufferString(`{"travel_date":"2026-06-15T00:00:00Z","tier_counts":{"adult":2,"child":1}}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/packages/pkg_1/quote", body)
	resp := httptest.NewRecorder()

	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", resp.Code)
	}
	if captured.TierCounts[services.TierAdult] != 2 || captured.TierCounts[services.TierChild] != 1 {
		t.Fatalf("unexpected tier counts %v", captured.TierCounts)
	}
}

func TestPricingHandlersCreateQuoteInvalidRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "invalid json", body: "{bad json}"},
		{name: "missing travel date", body: `{"composition":{"tier_adult":2}}`},
		{name: "bad travel date", body: `{"travel_date":"June 15th","composition":{"tier_adult":2}}`},
		{name: "bad booking date", body: `{"travel_date":"2026-06-15","booking_date":"yesterday","composition":{"tier_adult":2}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewPricingHandlers(&stubQuoteService{})
			router := NewRouter(WithPackageRoutes(handler.PackageRoutes))

			req := httptest.NewRequest(http.MethodPost, "/api/v1/packages/pkg_1/quote", strings.NewReader(tt.body))
			resp := httptest.NewRecorder()

			router.ServeHTTP(resp, req)

			if resp.Code != http.StatusBadRequest {
				t.Fatalf("expected status 400, got %d", resp.Code)
			}
		})
	}
}

func TestPricingHandlersCreateQuoteServiceErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{name: "invalid input", err: services.ErrQuoteInvalidInput, expected: http.StatusBadRequest},
		{name: "package not found", err: services.ErrQuotePackageNotFound, expected: http.StatusNotFound},
		{name: "departure not found", err: services.ErrQuoteDepartureNotFound, expected: http.StatusNotFound},
		{name: "validation failed", err: services.ErrQuoteValidationFailed, expected: http.StatusUnprocessableEntity},
		{name: "departure unavailable", err: services.ErrQuoteDepartureUnavailable, expected: http.StatusConflict},
		{name: "store unavailable", err: fmt.Errorf("pricing store unavailable: %w", &stubRepositoryError{unavailable: true}), expected: http.StatusServiceUnavailable},
		{name: "unexpected", err: errors.New("boom"), expected: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := &stubQuoteService{
				createFunc: func(ctx context.Context, cmd services.CreateQuoteCommand) (services.PriceQuote, error) {
					return services.PriceQuote{}, tt.err
				},
			}

			handler := NewPricingHandlers(service)
			router := NewRouter(WithPackageRoutes(handler.PackageRoutes))

			req := httptest.NewRequest(http.MethodPost, "/api/v1/packages/pkg_1/quote", strings.NewReader(`{"travel_date":"2026-06-15","composition":{"tier_adult":2}}`))
			resp := httptest.NewRecorder()

			router.ServeHTTP(resp, req)

			if resp.Code != tt.expected {
				t.Fatalf("expected status %d, got %d", tt.expected, resp.Code)
			}
		})
	}
}

func TestPricingHandlersCreateQuoteRateLimited(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	service := &stubQuoteService{
		createFunc: func(ctx context.Context, cmd services.CreateQuoteCommand) (services.PriceQuote, error) {
			return sampleQuote(now), nil
		},
	}

	handler := NewPricingHandlers(service, WithQuoteRateLimit(1, time.Minute))
	router := NewRouter(WithPackageRoutes(handler.PackageRoutes))

	send := func() int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/packages/pkg_1/quote", strings.NewReader(`{"travel_date":"2026-06-15","composition":{"tier_adult":2}}`))
		req.RemoteAddr = "203.0.113.9:1234"
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		return resp.Code
	}

	if code := send(); code != http.StatusCreated {
		t.Fatalf("expected first request to pass, got %d", code)
	}
	if code := send(); code != http.StatusTooManyRequests {
		t.Fatalf("expected second request rate limited, got %d", code)
	}
}

func TestPricingHandlersServiceUnavailable(t *testing.T) {
	handler := NewPricingHandlers(nil)
	router := NewRouter(WithPackageRoutes(handler.PackageRoutes))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/packages/pkg_1/quote", strings.NewReader(`{"travel_date":"2026-06-15"}`))
	resp := httptest.NewRecorder()

	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", resp.Code)
	}
}

func TestPricingHandlersValidateComposition(t *testing.T) {
	var captured services.ValidatePackageCompositionCommand
	service := &stubQuoteService{
		validateFunc: func(ctx context.Context, cmd services.ValidatePackageCompositionCommand) (services.ValidationResult, error) {
			captured = cmd
			return services.ValidationResult{
				Valid:           false,
				TotalPassengers: 1,
				AdultCount:      1,
				Violations: []domain.CompositionViolation{
					{Code: domain.ViolationGroupSize, Message: "at least 2 passengers required"},
				},
			}, nil
		},
	}

	handler := NewPricingHandlers(service)
	router := NewRouter(WithPackageRoutes(handler.PackageRoutes))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/packages/pkg_1/validate", strings.NewReader(`{"composition":{"tier_adult":1}}`))
	resp := httptest.NewRecorder()

	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
	if captured.PackageID != "pkg_1" {
		t.Fatalf("expected package id from path, got %s", captured.PackageID)
	}

	var payload validationPayload
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if payload.Valid {
		t.Fatal("expected invalid composition")
	}
	if len(payload.Violations) != 1 || payload.Violations[0].Code != string(domain.ViolationGroupSize) {
		t.Fatalf("unexpected violations %+v", payload.Violations)
	}
}

func TestPricingHandlersCheckAvailability(t *testing.T) {
	var captured services.CheckAvailabilityCommand
	service := &stubQuoteService{
		availabilityFunc: func(ctx context.Context, cmd services.CheckAvailabilityCommand) (services.AvailabilityResult, error) {
			captured = cmd
			return services.AvailabilityResult{Available: true, RemainingSlots: 5, RequestedSlots: cmd.RequestedSlots}, nil
		},
	}

	handler := NewPricingHandlers(service)
	router := NewRouter(WithDepartureRoutes(handler.DepartureRoutes))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/departures/dep_1/availability?slots=3", nil)
	resp := httptest.NewRecorder()

	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
	if captured.DepartureID != "dep_1" || captured.RequestedSlots != 3 {
		t.Fatalf("unexpected command %+v", captured)
	}

	var payload availabilityPayload
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !payload.Available || payload.RemainingSlots != 5 || payload.RequestedSlots != 3 {
		t.Fatalf("unexpected payload %+v", payload)
	}
}

func TestPricingHandlersCheckAvailabilityDefaultsToOneSlot(t *testing.T) {
	var captured services.CheckAvailabilityCommand
	service := &stubQuoteService{
		availabilityFunc: func(ctx context.Context, cmd services.CheckAvailabilityCommand) (services.AvailabilityResult, error) {
			captured = cmd
			return services.AvailabilityResult{Available: true, RemainingSlots: 5, RequestedSlots: cmd.RequestedSlots}, nil
		},
	}

	handler := NewPricingHandlers(service)
	router := NewRouter(WithDepartureRoutes(handler.DepartureRoutes))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/departures/dep_1/availability", nil)
	resp := httptest.NewRecorder()

	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
	if captured.RequestedSlots != 1 {
		t.Fatalf("expected default of 1 slot, got %d", captured.RequestedSlots)
	}
}

func TestPricingHandlersCheckAvailabilityRejectsBadSlots(t *testing.T) {
	handler := NewPricingHandlers(&stubQuoteService{})
	router := NewRouter(WithDepartureRoutes(handler.DepartureRoutes))

	for _, slots := range []string{"abc", "0", "-2"} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/departures/dep_1/availability?slots="+slots, nil)
		resp := httptest.NewRecorder()

		router.ServeHTTP(resp, req)

		if resp.Code != http.StatusBadRequest {
			t.Fatalf("slots=%s: expected status 400, got %d", slots, resp.Code)
		}
	}
}
