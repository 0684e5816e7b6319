package handlers

import (
	"net/http"
	"sort"
	"time"

	domain "github.com/roamline/api/internal/domain"
	"github.com/roamline/api/internal/repositories"
)

// BuildInfo describes the running binary for health endpoints.
type BuildInfo struct {
	Version     string
	CommitSHA   string
	Environment string
	StartedAt   time.Time
}

// HealthHandlers exposes liveness and readiness endpoints.
type HealthHandlers struct {
	health repositories.HealthRepository
	build  BuildInfo
	now    func() time.Time
}

// HealthOption customises health handler construction.
type HealthOption func(*HealthHandlers)

// WithHealthRepository wires the dependency probes evaluated by /readyz.
func WithHealthRepository(repo repositories.HealthRepository) HealthOption {
	return func(h *HealthHandlers) {
		h.health = repo
	}
}

// WithHealthBuildInfo attaches build metadata to health responses.
func WithHealthBuildInfo(info BuildInfo) HealthOption {
	return func(h *HealthHandlers) {
		h.build = info
	}
}

// WithHealthClock injects a custom clock primarily for tests.
func WithHealthClock(clock func() time.Time) HealthOption {
	return func(h *HealthHandlers) {
		if clock != nil {
			h.now = clock
		}
	}
}

// NewHealthHandlers constructs the health handler set.
func NewHealthHandlers(opts ...HealthOption) *HealthHandlers {
	h := &HealthHandlers{
		build: BuildInfo{StartedAt: time.Now()},
		now:   time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Healthz reports process liveness without touching dependencies.
func (h *HealthHandlers) Healthz(w http.ResponseWriter, r *http.Request) {
	now := h.now()
	payload := map[string]any{
		"status":    domain.HealthStatusOK,
		"timestamp": now.UTC().Format(time.RFC3339),
	}
	if h.build.Version != "" {
		payload["version"] = h.build.Version
	}
	if h.build.CommitSHA != "" {
		payload["commitSha"] = h.build.CommitSHA
	}
	if h.build.Environment != "" {
		payload["environment"] = h.build.Environment
	}
	if !h.build.StartedAt.IsZero() {
		payload["uptime"] = now.Sub(h.build.StartedAt).String()
	}
	writeJSONResponse(w, http.StatusOK, payload)
}

// Readyz evaluates dependency probes and reports readiness.
func (h *HealthHandlers) Readyz(w http.ResponseWriter, r *http.Request) {
	now := h.now()

	if h.health == nil {
		writeJSONResponse(w, http.StatusOK, map[string]any{
			"status":    domain.HealthStatusOK,
			"timestamp": now.UTC().Format(time.RFC3339),
		})
		return
	}

	report, err := h.health.Collect(r.Context())
	if err != nil {
		writeJSONResponse(w, http.StatusServiceUnavailable, map[string]any{
			"status":  domain.HealthStatusError,
			"details": []string{err.Error()},
		})
		return
	}

	checks := make(map[string]healthCheckPayload, len(report.Checks))
	details := make([]string, 0)
	for name, check := range report.Checks {
		checks[name] = healthCheckPayload{
			Status:    check.Status,
			Detail:    check.Detail,
			LatencyMS: check.Latency.Milliseconds(),
			CheckedAt: formatTime(check.CheckedAt),
		}
		if check.Status != domain.HealthStatusOK && check.Error != "" {
			details = append(details, name+": "+check.Error)
		}
	}
	sort.Strings(details)

	payload := healthReportPayload{
		Status:      report.Status,
		Version:     h.build.Version,
		CommitSHA:   h.build.CommitSHA,
		Environment: h.build.Environment,
		Checks:      checks,
		Details:     details,
		GeneratedAt: formatTime(now),
	}
	if !h.build.StartedAt.IsZero() {
		payload.Uptime = now.Sub(h.build.StartedAt).String()
	}

	status := http.StatusOK
	if report.Status != domain.HealthStatusOK {
		status = http.StatusServiceUnavailable
	}
	writeJSONResponse(w, status, payload)
}

type healthReportPayload struct {
	Status      string                        `json:"status"`
	Version     string                        `json:"version,omitempty"`
	CommitSHA   string                        `json:"commitSha,omitempty"`
	Environment string                        `json:"environment,omitempty"`
	Uptime      string                        `json:"uptime,omitempty"`
	Checks      map[string]healthCheckPayload `json:"checks"`
	Details     []string                      `json:"details"`
	GeneratedAt string                        `json:"generated_at"`
}

type healthCheckPayload struct {
	Status    string `json:"status"`
	Detail    string `json:"detail,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
	CheckedAt string `json:"checked_at,omitempty"`
}
