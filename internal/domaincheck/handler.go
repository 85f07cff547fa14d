package domaincheck

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/orthopulse/growth-platform/internal/observability/metrics"
	"github.com/orthopulse/growth-platform/internal/session"
	"github.com/orthopulse/growth-platform/pkg/logging"
)

// Handler exposes the synchronous domain check endpoint and the debounced
// per-session live path the practice step types against.
type Handler struct {
	checker *Checker
	group   *Group
	metrics *metrics.OnboardingMetrics
	logger  *logging.Logger
}

// NewHandler creates a domain check handler.
func NewHandler(checker *Checker, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{checker: checker, logger: logger}
}

// WithMetrics records a counter per verdict status.
func (h *Handler) WithMetrics(m *metrics.OnboardingMetrics) *Handler {
	h.metrics = m
	return h
}

// WithLiveChecks enables the debounced live path. Each session gets its own
// debouncer so rapid keystrokes coalesce into one probe after the quiet
// period.
func (h *Handler) WithLiveChecks(quiet time.Duration) *Handler {
	h.group = NewGroup(quiet, h.observedCheck)
	return h
}

func (h *Handler) observedCheck(ctx context.Context, raw string) Result {
	res := h.checker.Check(ctx, raw)
	h.metrics.ObserveDomainCheck(string(res.Status))
	return res
}

// CheckDomainResponse is the wire form of a domain verdict.
type CheckDomainResponse struct {
	Success bool   `json:"success"`
	Domain  string `json:"domain"`
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
}

// CheckDomain validates and probes a candidate domain.
// GET /domains/check?domain=...
func (h *Handler) CheckDomain(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimSpace(r.URL.Query().Get("domain"))
	if raw == "" {
		http.Error(w, `{"error": "domain is required"}`, http.StatusBadRequest)
		return
	}

	domain := Sanitize(raw)
	if !IsValidSyntax(domain) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(CheckDomainResponse{
			Success: false,
			Domain:  domain,
			Status:  StatusIdle,
			Message: "not a valid domain",
		})
		return
	}

	res := h.observedCheck(r.Context(), domain)
	h.logger.Info("domain checked", "domain", domain, "status", res.Status)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(CheckDomainResponse{
		Success: res.Status == StatusValid || res.Status == StatusWarning,
		Domain:  domain,
		Status:  res.Status,
		Message: res.Message,
	})
}

// LiveRoutes returns the authenticated debounced-check routes.
func (h *Handler) LiveRoutes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.LiveInput)
	r.Get("/", h.LiveResult)
	r.Delete("/", h.LiveRelease)
	return r
}

// LiveCheckResponse is the snapshot form of the debounced verdict.
type LiveCheckResponse struct {
	Success bool   `json:"success"`
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
}

type liveInputRequest struct {
	Domain string `json:"domain"`
}

// LiveInput registers the session's latest domain input. The probe runs
// only after the input has been quiet, so the response is usually the
// checking snapshot; the client polls LiveResult for the verdict.
// POST /domains/live
func (h *Handler) LiveInput(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.liveSession(w, r)
	if !ok {
		return
	}

	var req liveInputRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error": "invalid request body"}`, http.StatusBadRequest)
		return
	}

	d := h.group.Get(sess.AccountID)
	// The probe outlives this request; only explicit release cancels it.
	d.Input(context.WithoutCancel(r.Context()), req.Domain)
	h.writeSnapshot(w, d.Result())
}

// LiveResult returns the current verdict snapshot without touching the
// pending timer.
// GET /domains/live
func (h *Handler) LiveResult(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.liveSession(w, r)
	if !ok {
		return
	}
	h.writeSnapshot(w, h.group.Get(sess.AccountID).Result())
}

// LiveRelease discards the session's debouncer, cancelling any pending
// probe. The client calls this when it leaves the practice step.
// DELETE /domains/live
func (h *Handler) LiveRelease(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.liveSession(w, r)
	if !ok {
		return
	}
	h.group.Release(sess.AccountID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) liveSession(w http.ResponseWriter, r *http.Request) (session.Session, bool) {
	if h.group == nil {
		http.Error(w, `{"error": "live checks unavailable"}`, http.StatusServiceUnavailable)
		return session.Session{}, false
	}
	sess, ok := session.FromContext(r.Context())
	if !ok {
		http.Error(w, `{"error": "authentication required"}`, http.StatusUnauthorized)
		return session.Session{}, false
	}
	return sess, true
}

func (h *Handler) writeSnapshot(w http.ResponseWriter, res Result) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(LiveCheckResponse{
		Success: res.Status == StatusValid || res.Status == StatusWarning,
		Status:  res.Status,
		Message: res.Message,
	})
}
