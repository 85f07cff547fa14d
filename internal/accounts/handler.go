package accounts

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/orthopulse/growth-platform/internal/session"
	"github.com/orthopulse/growth-platform/pkg/logging"
)

// Handler serves the authenticated account's profile.
type Handler struct {
	repo   *Repository
	logger *logging.Logger
}

// NewHandler creates an account handler.
func NewHandler(repo *Repository, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{repo: repo, logger: logger}
}

// Me returns the calling account's profile.
// GET /me
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	sess, ok := session.FromContext(r.Context())
	if !ok {
		http.Error(w, `{"error": "unauthenticated"}`, http.StatusUnauthorized)
		return
	}

	account, err := h.repo.Get(r.Context(), sess.AccountID)
	if errors.Is(err, ErrNotFound) {
		http.Error(w, `{"error": "account not found"}`, http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Error("failed to load account", "account_id", sess.AccountID, "error", err)
		http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(account)
}

// UpdateMeRequest is the request body for profile updates.
type UpdateMeRequest struct {
	FirstName     string `json:"first_name"`
	LastName      string `json:"last_name"`
	BusinessPhone string `json:"business_phone"`
}

// UpdateMe persists the identity fields from onboarding step 1.
// PUT /me
func (h *Handler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	sess, ok := session.FromContext(r.Context())
	if !ok {
		http.Error(w, `{"error": "unauthenticated"}`, http.StatusUnauthorized)
		return
	}

	var req UpdateMeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error": "invalid JSON body"}`, http.StatusBadRequest)
		return
	}

	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	req.BusinessPhone = strings.TrimSpace(req.BusinessPhone)
	if req.FirstName == "" || req.LastName == "" {
		http.Error(w, `{"error": "first_name and last_name are required"}`, http.StatusBadRequest)
		return
	}

	if err := h.repo.UpdateIdentity(r.Context(), sess.AccountID, req.FirstName, req.LastName, req.BusinessPhone); err != nil {
		if errors.Is(err, ErrNotFound) {
			http.Error(w, `{"error": "account not found"}`, http.StatusNotFound)
			return
		}
		h.logger.Error("failed to update identity", "account_id", sess.AccountID, "error", err)
		http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
		return
	}

	account, err := h.repo.Get(r.Context(), sess.AccountID)
	if err != nil {
		h.logger.Error("failed to reload account", "account_id", sess.AccountID, "error", err)
		http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(account)
}
