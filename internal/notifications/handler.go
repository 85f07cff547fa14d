package notifications

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/orthopulse/growth-platform/pkg/logging"
)

type Handler struct {
	repo   *Repository
	logger *logging.Logger
}

func NewHandler(repo *Repository, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{repo: repo, logger: logger}
}

// Routes returns the notification feed routes, mounted per organization.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Get("/count", h.Count)
	r.Post("/{id}/read", h.MarkRead)
	r.Post("/read-all", h.MarkAllRead)
	r.Delete("/", h.DeleteAll)
	return r
}

// GET /orgs/{orgID}/notifications
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "orgID")
	if orgID == "" {
		http.Error(w, `{"error": "org id is required"}`, http.StatusBadRequest)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	items, err := h.repo.List(r.Context(), orgID, limit)
	if err != nil {
		h.internalError(w, "list notifications", orgID, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"lastUpdated":   time.Now().UTC(),
		"notifications": items,
	})
}

// GET /orgs/{orgID}/notifications/count
func (h *Handler) Count(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "orgID")
	if orgID == "" {
		http.Error(w, `{"error": "org id is required"}`, http.StatusBadRequest)
		return
	}

	count, err := h.repo.UnreadCount(r.Context(), orgID)
	if err != nil {
		h.internalError(w, "count unread", orgID, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"unread": count})
}

// POST /orgs/{orgID}/notifications/{id}/read
func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "orgID")
	id := chi.URLParam(r, "id")
	if orgID == "" || id == "" {
		http.Error(w, `{"error": "org and notification ids are required"}`, http.StatusBadRequest)
		return
	}

	if err := h.repo.MarkRead(r.Context(), orgID, id); err != nil {
		h.internalError(w, "mark read", orgID, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// POST /orgs/{orgID}/notifications/read-all
func (h *Handler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "orgID")
	if orgID == "" {
		http.Error(w, `{"error": "org id is required"}`, http.StatusBadRequest)
		return
	}

	if err := h.repo.MarkAllRead(r.Context(), orgID); err != nil {
		h.internalError(w, "mark all read", orgID, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DELETE /orgs/{orgID}/notifications
func (h *Handler) DeleteAll(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "orgID")
	if orgID == "" {
		http.Error(w, `{"error": "org id is required"}`, http.StatusBadRequest)
		return
	}

	if err := h.repo.DeleteAll(r.Context(), orgID); err != nil {
		h.internalError(w, "delete all", orgID, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// internalError logs the cause and answers with a generic JSON body so
// storage details never reach the client.
func (h *Handler) internalError(w http.ResponseWriter, op, orgID string, err error) {
	h.logger.Error("notification request failed", "op", op, "org_id", orgID, "error", err)
	http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
}
