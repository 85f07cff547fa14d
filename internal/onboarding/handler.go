package onboarding

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/orthopulse/growth-platform/internal/gbp"
	"github.com/orthopulse/growth-platform/internal/session"
	"github.com/orthopulse/growth-platform/pkg/logging"
)

// Handler exposes the onboarding flow over HTTP. All routes require an
// authenticated session.
type Handler struct {
	orchestrator *Orchestrator
	logger       *logging.Logger
}

// NewHandler creates the onboarding HTTP handler.
func NewHandler(orchestrator *Orchestrator, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{orchestrator: orchestrator, logger: logger}
}

// Routes returns the onboarding routes.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/state", h.GetState)
	r.Post("/advance", h.Advance)
	r.Post("/back", h.Back)
	r.Post("/profile", h.SaveProfile)
	r.Post("/organization", h.SaveOrganization)
	r.Get("/gbp/locations", h.ListLocations)
	r.Put("/gbp/selections", h.SaveSelections)
	r.Post("/checkout", h.InitiateCheckout)
	return r
}

func (h *Handler) writeState(w http.ResponseWriter, state *State) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(state)
}

func (h *Handler) writeError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrValidation):
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
	case errors.Is(err, gbp.ErrNotConnected):
		http.Error(w, `{"error": "google account not connected"}`, http.StatusConflict)
	default:
		h.logger.Error("onboarding request failed", "operation", op, "error", err)
		http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
	}
}

func requireSession(w http.ResponseWriter, r *http.Request) (session.Session, bool) {
	sess, ok := session.FromContext(r.Context())
	if !ok {
		http.Error(w, `{"error": "authentication required"}`, http.StatusUnauthorized)
	}
	return sess, ok
}

// GET /onboarding/state
func (h *Handler) GetState(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}

	state, err := h.orchestrator.StateFor(r.Context(), sess.AccountID)
	if err != nil {
		h.writeError(w, "state", err)
		return
	}
	h.writeState(w, state)
}

// POST /onboarding/advance
func (h *Handler) Advance(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}

	state, err := h.orchestrator.Advance(r.Context(), sess.AccountID)
	if err != nil {
		h.writeError(w, "advance", err)
		return
	}
	h.writeState(w, state)
}

// POST /onboarding/back
func (h *Handler) Back(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}

	state, err := h.orchestrator.Back(r.Context(), sess.AccountID)
	if err != nil {
		h.writeError(w, "back", err)
		return
	}
	h.writeState(w, state)
}

// POST /onboarding/profile
func (h *Handler) SaveProfile(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}

	var fields ProfileFields
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		http.Error(w, `{"error": "invalid request body"}`, http.StatusBadRequest)
		return
	}

	state, err := h.orchestrator.SaveProfile(r.Context(), sess.AccountID, fields)
	if err != nil {
		h.writeError(w, "save_profile", err)
		return
	}
	h.writeState(w, state)
}

type organizationRequest struct {
	PracticeFields
	DomainName string `json:"domainName"`
}

// POST /onboarding/organization
func (h *Handler) SaveOrganization(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}

	var req organizationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error": "invalid request body"}`, http.StatusBadRequest)
		return
	}

	state, err := h.orchestrator.SaveProfileAndCreateOrg(r.Context(), sess.AccountID, req.PracticeFields, req.DomainName)
	if err != nil {
		h.writeError(w, "save_organization", err)
		return
	}
	h.writeState(w, state)
}

// GET /onboarding/gbp/locations
func (h *Handler) ListLocations(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}

	locations, err := h.orchestrator.FetchAvailableGBP(r.Context(), sess.AccountID)
	if err != nil {
		h.writeError(w, "list_locations", err)
		return
	}
	if locations == nil {
		locations = []gbp.Location{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"locations": locations})
}

type selectionsRequest struct {
	Selections []gbp.Selection `json:"selections"`
}

// PUT /onboarding/gbp/selections
func (h *Handler) SaveSelections(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}

	var req selectionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error": "invalid request body"}`, http.StatusBadRequest)
		return
	}

	state, err := h.orchestrator.SaveGBPSelections(r.Context(), sess.AccountID, req.Selections)
	if err != nil {
		h.writeError(w, "save_selections", err)
		return
	}
	h.writeState(w, state)
}

// POST /onboarding/checkout
func (h *Handler) InitiateCheckout(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}

	state, checkoutSession, err := h.orchestrator.InitiateCheckout(r.Context(), sess.AccountID)
	if err != nil {
		h.writeError(w, "initiate_checkout", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"state":       state,
		"checkoutUrl": checkoutSession.URL,
		"sessionId":   checkoutSession.ProviderID,
	})
}
