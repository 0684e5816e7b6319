package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/roamline/api/internal/platform/httpx"
	"github.com/roamline/api/internal/platform/observability"
	"github.com/roamline/api/internal/platform/requestctx"
	"github.com/roamline/api/internal/repositories"
	"github.com/roamline/api/internal/services"
)

const maxPricingRequestBody = 32 * 1024

var (
	errBodyTooLarge = errors.New("request body too large")
	errEmptyBody    = errors.New("request body is required")
)

// PricingHandlers exposes quote, validation, and availability endpoints.
type PricingHandlers struct {
	quotes  services.QuoteService
	limiter rateLimiter
}

// PricingHandlerOption customises pricing handler construction.
type PricingHandlerOption func(*PricingHandlers)

// WithQuoteRateLimit throttles quote creation per client IP.
func WithQuoteRateLimit(limit int, window time.Duration) PricingHandlerOption {
	return func(h *PricingHandlers) {
		h.limiter = newSimpleRateLimiter(limit, window, nil)
	}
}

// NewPricingHandlers constructs the pricing handler set.
func NewPricingHandlers(svc services.QuoteService, opts ...PricingHandlerOption) *PricingHandlers {
	h := &PricingHandlers{quotes: svc}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// PackageRoutes registers the pricing endpoints beneath /packages.
func (h *PricingHandlers) PackageRoutes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/{packageId}/quote", h.createQuote)
	r.Post("/{packageId}/validate", h.validateComposition)
}

// DepartureRoutes registers the availability endpoint beneath /departures.
func (h *PricingHandlers) DepartureRoutes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/{departureId}/availability", h.checkAvailability)
}

func (h *PricingHandlers) createQuote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.quotes == nil {
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "quote service not available", http.StatusServiceUnavailable))
		return
	}

	if h.limiter != nil && !h.limiter.Allow(r.RemoteAddr) {
		httpx.WriteError(ctx, w, httpx.NewError("rate_limited", "too many quote requests", http.StatusTooManyRequests))
		return
	}

	packageID := strings.TrimSpace(chi.URLParam(r, "packageId"))
	if packageID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "package_id is required", http.StatusBadRequest))
		return
	}

	body, err := readLimitedBody(r, maxPricingRequestBody)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var req quoteRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
		return
	}

	travelDate, err := parseDate(req.TravelDate)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "travel_date must be an RFC 3339 timestamp or YYYY-MM-DD date", http.StatusBadRequest))
		return
	}

	cmd := services.CreateQuoteCommand{
		PackageID:   packageID,
		DepartureID: strings.TrimSpace(req.DepartureID),
		TravelDate:  travelDate,
		Composition: req.Composition,
		PromoCode:   trimmedPointer(req.PromoCode),
		Preview:     req.Preview,
	}

	if req.BookingDate != "" {
		bookingDate, parseErr := parseDate(req.BookingDate)
		if parseErr != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "booking_date must be an RFC 3339 timestamp or YYYY-MM-DD date", http.StatusBadRequest))
			return
		}
		cmd.BookingDate = &bookingDate
	}

	if len(req.TierCounts) > 0 {
		counts := make(map[services.TierType]int, len(req.TierCounts))
		for tierType, count := range req.TierCounts {
			counts[services.TierType(tierType)] = count
		}
		cmd.TierCounts = counts
	}

	for _, addOn := range req.AddOns {
		cmd.AddOns = append(cmd.AddOns, services.AddOnSelection{
			AddOnID:  strings.TrimSpace(addOn.ID),
			Quantity: addOn.Quantity,
		})
	}

	quote, err := h.quotes.CreateQuote(ctx, cmd)
	if err != nil {
		writeQuoteError(ctx, w, packageID, err)
		return
	}

	status := http.StatusCreated
	if req.Preview {
		status = http.StatusOK
	}
	writeJSONResponse(w, status, quoteResponse{Quote: buildQuotePayload(quote)})
}

func (h *PricingHandlers) validateComposition(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.quotes == nil {
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "quote service not available", http.StatusServiceUnavailable))
		return
	}

	packageID := strings.TrimSpace(chi.URLParam(r, "packageId"))
	if packageID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "package_id is required", http.StatusBadRequest))
		return
	}

	body, err := readLimitedBody(r, maxPricingRequestBody)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var req validateCompositionRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
		return
	}

	cmd := services.ValidatePackageCompositionCommand{
		PackageID:   packageID,
		Composition: req.Composition,
	}
	if len(req.TierCounts) > 0 {
		counts := make(map[services.TierType]int, len(req.TierCounts))
		for tierType, count := range req.TierCounts {
			counts[services.TierType(tierType)] = count
		}
		cmd.TierCounts = counts
	}

	result, err := h.quotes.ValidateComposition(ctx, cmd)
	if err != nil {
		writeQuoteError(ctx, w, cmd.PackageID, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, buildValidationPayload(result))
}

func (h *PricingHandlers) checkAvailability(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.quotes == nil {
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "quote service not available", http.StatusServiceUnavailable))
		return
	}

	departureID := strings.TrimSpace(chi.URLParam(r, "departureId"))
	if departureID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "departure_id is required", http.StatusBadRequest))
		return
	}

	requested := 1
	if raw := strings.TrimSpace(r.URL.Query().Get("slots")); raw != "" {
		parsed, parseErr := parsePositiveInt(raw)
		if parseErr != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "slots must be a positive integer", http.StatusBadRequest))
			return
		}
		requested = parsed
	}

	result, err := h.quotes.CheckAvailability(ctx, services.CheckAvailabilityCommand{
		DepartureID:    departureID,
		RequestedSlots: requested,
	})
	if err != nil {
		writeQuoteError(ctx, w, departureID, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, availabilityPayload{
		Available:      result.Available,
		RemainingSlots: result.RemainingSlots,
		RequestedSlots: result.RequestedSlots,
		Reason:         string(result.Reason),
	})
}

type quoteRequest struct {
	DepartureID string                      `json:"departure_id"`
	TravelDate  string                      `json:"travel_date"`
	BookingDate string                      `json:"booking_date"`
	Composition services.BookingComposition `json:"composition"`
	TierCounts  map[string]int              `json:"tier_counts"`
	PromoCode   *string                     `json:"promo_code"`
	AddOns      []addOnSelectionRequest     `json:"add_ons"`
	Preview     bool                        `json:"preview"`
}

type addOnSelectionRequest struct {
	ID       string `json:"id"`
	Quantity int    `json:"quantity"`
}

type validateCompositionRequest struct {
	Composition services.BookingComposition `json:"composition"`
	TierCounts  map[string]int              `json:"tier_counts"`
}

type quoteResponse struct {
	Quote quotePayload `json:"quote"`
}

type quotePayload struct {
	ID          string            `json:"id"`
	PackageID   string            `json:"package_id"`
	DepartureID string            `json:"departure_id,omitempty"`
	TravelDate  string            `json:"travel_date"`
	BookingDate string            `json:"booking_date"`
	PromoCode   string            `json:"promo_code,omitempty"`
	Composition map[string]int    `json:"composition"`
	Breakdown   breakdownPayload  `json:"breakdown"`
	Validation  validationPayload `json:"validation"`
	CreatedAt   string            `json:"created_at"`
}

type breakdownPayload struct {
	Currency           string               `json:"currency"`
	BasePrice          int64                `json:"base_price"`
	SeasonalAdjustment int64                `json:"seasonal_adjustment"`
	GroupDiscount      int64                `json:"group_discount"`
	TimeBasedDiscount  int64                `json:"time_based_discount"`
	PromoDiscount      int64                `json:"promo_discount"`
	AddOnsTotal        int64                `json:"add_ons_total"`
	TotalPrice         int64                `json:"total_price"`
	TotalPassengers    int                  `json:"total_passengers"`
	DaysBeforeTravel   int                  `json:"days_before_travel"`
	TierLines          []tierLinePayload    `json:"tier_lines"`
	AddOnLines         []addOnLinePayload   `json:"add_on_lines,omitempty"`
	AppliedRules       *appliedRulesPayload `json:"applied_rules,omitempty"`
}

type tierLinePayload struct {
	TierID    string `json:"tier_id"`
	TierType  string `json:"tier_type"`
	Label     string `json:"label,omitempty"`
	UnitPrice int64  `json:"unit_price"`
	Quantity  int    `json:"quantity"`
	Subtotal  int64  `json:"subtotal"`
}

type addOnLinePayload struct {
	AddOnID   string `json:"add_on_id"`
	Name      string `json:"name,omitempty"`
	UnitPrice int64  `json:"unit_price"`
	Quantity  int    `json:"quantity"`
	Subtotal  int64  `json:"subtotal"`
}

type appliedRulesPayload struct {
	Seasonal  *appliedRulePayload `json:"seasonal,omitempty"`
	GroupBand *appliedRulePayload `json:"group_band,omitempty"`
	TimeBased *appliedRulePayload `json:"time_based,omitempty"`
	Promotion *appliedRulePayload `json:"promotion,omitempty"`
}

type appliedRulePayload struct {
	ID     string `json:"id"`
	Name   string `json:"name,omitempty"`
	Type   string `json:"type,omitempty"`
	Amount int64  `json:"amount"`
}

type validationPayload struct {
	Valid           bool               `json:"valid"`
	TotalPassengers int                `json:"total_passengers"`
	AdultCount      int                `json:"adult_count"`
	Violations      []violationPayload `json:"violations"`
}

type violationPayload struct {
	Code    string `json:"code"`
	TierID  string `json:"tier_id,omitempty"`
	Message string `json:"message"`
}

type availabilityPayload struct {
	Available      bool   `json:"available"`
	RemainingSlots int    `json:"remaining_slots"`
	RequestedSlots int    `json:"requested_slots"`
	Reason         string `json:"reason,omitempty"`
}

func buildQuotePayload(quote services.PriceQuote) quotePayload {
	return quotePayload{
		ID:          quote.ID,
		PackageID:   quote.PackageID,
		DepartureID: quote.DepartureID,
		TravelDate:  formatTime(quote.TravelDate),
		BookingDate: formatTime(quote.BookingDate),
		PromoCode:   quote.PromoCode,
		Composition: quote.Composition,
		Breakdown:   buildBreakdownPayload(quote.Breakdown),
		Validation:  buildValidationPayload(quote.Validation),
		CreatedAt:   formatTime(quote.CreatedAt),
	}
}

func buildBreakdownPayload(breakdown services.PriceBreakdown) breakdownPayload {
	payload := breakdownPayload{
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
	}

	payload.TierLines = make([]tierLinePayload, 0, len(breakdown.TierLines))
	for _, line := range breakdown.TierLines {
		payload.TierLines = append(payload.TierLines, tierLinePayload{
			TierID:    line.TierID,
			TierType:  string(line.TierType),
			Label:     line.Label,
			UnitPrice: line.UnitPrice,
			Quantity:  line.Quantity,
			Subtotal:  line.Subtotal,
		})
	}
	for _, line := range breakdown.AddOnLines {
		payload.AddOnLines = append(payload.AddOnLines, addOnLinePayload{
			AddOnID:   line.AddOnID,
			Name:      line.Name,
			UnitPrice: line.UnitPrice,
			Quantity:  line.Quantity,
			Subtotal:  line.Subtotal,
		})
	}

	if rules := buildAppliedRulesPayload(breakdown.AppliedRules); rules != nil {
		payload.AppliedRules = rules
	}
	return payload
}

func buildAppliedRulesPayload(rules services.AppliedRules) *appliedRulesPayload {
	if rules.Seasonal == nil && rules.GroupBand == nil && rules.TimeBased == nil && rules.Promotion == nil {
		return nil
	}
	payload := &appliedRulesPayload{}
	if rules.Seasonal != nil {
		payload.Seasonal = &appliedRulePayload{
			ID:     rules.Seasonal.RuleID,
			Name:   rules.Seasonal.Name,
			Type:   string(rules.Seasonal.AdjustmentType),
			Amount: rules.Seasonal.Amount,
		}
	}
	if rules.GroupBand != nil {
		payload.GroupBand = &appliedRulePayload{
			ID:     rules.GroupBand.BandID,
			Type:   string(rules.GroupBand.PricingType),
			Amount: rules.GroupBand.Amount,
		}
	}
	if rules.TimeBased != nil {
		payload.TimeBased = &appliedRulePayload{
			ID:     rules.TimeBased.RuleID,
			Name:   rules.TimeBased.Name,
			Type:   string(rules.TimeBased.Comparison),
			Amount: rules.TimeBased.Amount,
		}
	}
	if rules.Promotion != nil {
		payload.Promotion = &appliedRulePayload{
			ID:     rules.Promotion.PromotionID,
			Name:   rules.Promotion.Code,
			Type:   string(rules.Promotion.DiscountType),
			Amount: rules.Promotion.Amount,
		}
	}
	return payload
}

func buildValidationPayload(result services.ValidationResult) validationPayload {
	payload := validationPayload{
		Valid:           result.Valid,
		TotalPassengers: result.TotalPassengers,
		AdultCount:      result.AdultCount,
		Violations:      make([]violationPayload, 0, len(result.Violations)),
	}
	for _, violation := range result.Violations {
		payload.Violations = append(payload.Violations, violationPayload{
			Code:    string(violation.Code),
			TierID:  violation.TierID,
			Message: violation.Message,
		})
	}
	return payload
}

func writeBodyError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errBodyTooLarge):
		httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
	case errors.Is(err, errEmptyBody):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body is required", http.StatusBadRequest))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	}
}

func writeQuoteError(ctx context.Context, w http.ResponseWriter, subject string, err error) {
	if err == nil {
		return
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) && repoErr.IsUnavailable() {
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "pricing store temporarily unavailable", http.StatusServiceUnavailable))
		return
	}

	switch {
	case errors.Is(err, services.ErrQuoteInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrQuotePackageNotFound), errors.Is(err, services.ErrQuoteDepartureNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("not_found", err.Error(), http.StatusNotFound))
	case errors.Is(err, services.ErrQuoteValidationFailed):
		httpx.WriteError(ctx, w, httpx.NewError("composition_invalid", err.Error(), http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrQuoteDepartureUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("departure_unavailable", err.Error(), http.StatusConflict))
	default:
		requestctx.Logger(ctx).Error("pricing request failed",
			zap.String("subject", observability.SanitizeIdentifier(subject)),
			zap.Error(err),
		)
		httpx.WriteError(ctx, w, httpx.NewError("pricing_error", "failed to price booking", http.StatusInternalServerError))
	}
}

func readLimitedBody(r *http.Request, limit int64) ([]byte, error) {
	if r == nil || r.Body == nil {
		return nil, errEmptyBody
	}
	if limit <= 0 {
		limit = maxPricingRequestBody
	}
	reader := io.LimitReader(r.Body, limit+1)
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, errEmptyBody
	}
	if int64(len(data)) > limit {
		return nil, errBodyTooLarge
	}
	return data, nil
}

func parseDate(value string) (time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return time.Time{}, errors.New("date is required")
	}
	if t, err := time.Parse(time.RFC3339, trimmed); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02", trimmed)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

func parsePositiveInt(value string) (int, error) {
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}
	if parsed <= 0 {
		return 0, errors.New("not a positive integer")
	}
	return parsed, nil
}

func trimmedPointer(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func writeJSONResponse(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
