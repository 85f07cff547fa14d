package oauthbridge

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/orthopulse/growth-platform/internal/gbp"
	"github.com/orthopulse/growth-platform/internal/session"
	"github.com/orthopulse/growth-platform/pkg/logging"
)

const (
	stateTTL            = 10 * time.Minute
	defaultAwaitTimeout = 2 * time.Minute
)

// AccountFlagger updates the stored connection flag on the account so the
// profile the opener refreshes reflects the new connection.
type AccountFlagger interface {
	SetGoogleConnected(ctx context.Context, accountID string, connected bool) error
}

// Handler handles Google OAuth HTTP endpoints for the popup flow.
type Handler struct {
	oauthService *GoogleOAuthService
	accounts     AccountFlagger
	registry     *Registry
	appOrigin    string
	awaitTimeout time.Duration
	logger       *logging.Logger

	mu         sync.Mutex
	stateStore map[string]stateEntry
}

type stateEntry struct {
	accountID string
	expiresAt time.Time
}

// NewHandler creates a new OAuth HTTP handler.
func NewHandler(oauthService *GoogleOAuthService, accounts AccountFlagger, registry *Registry, appOrigin string, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		oauthService: oauthService,
		accounts:     accounts,
		registry:     registry,
		appOrigin:    appOrigin,
		awaitTimeout: defaultAwaitTimeout,
		logger:       logger,
		stateStore:   make(map[string]stateEntry),
	}
}

// WithAwaitTimeout overrides how long a result poll waits (for testing).
func (h *Handler) WithAwaitTimeout(d time.Duration) *Handler {
	if d > 0 {
		h.awaitTimeout = d
	}
	return h
}

// Routes returns the unauthenticated provider-facing routes.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/google/callback", h.HandleCallback)
	return r
}

// AuthedRoutes returns routes that require an authenticated session.
func (h *Handler) AuthedRoutes() chi.Router {
	r := chi.NewRouter()
	r.Post("/connect", h.HandleConnect)
	r.Get("/connect/result", h.HandleResult)
	r.Get("/status", h.HandleStatus)
	r.Delete("/disconnect", h.HandleDisconnect)
	return r
}

// HandleConnect starts a popup connect attempt: mints a nonce, registers a
// waiter, and returns the provider authorization URL for the popup to open.
// POST /onboarding/gbp/connect
func (h *Handler) HandleConnect(w http.ResponseWriter, r *http.Request) {
	sess, ok := session.FromContext(r.Context())
	if !ok {
		http.Error(w, `{"error": "authentication required"}`, http.StatusUnauthorized)
		return
	}

	nonceBytes := make([]byte, 16)
	if _, err := rand.Read(nonceBytes); err != nil {
		h.logger.Error("failed to generate nonce", "error", err)
		http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
		return
	}
	nonce := hex.EncodeToString(nonceBytes)

	h.mu.Lock()
	h.stateStore[nonce] = stateEntry{
		accountID: sess.AccountID,
		expiresAt: time.Now().Add(stateTTL),
	}
	h.cleanExpiredStatesLocked()
	h.mu.Unlock()

	h.registry.Register(nonce, sess.AccountID)

	h.logger.Info("initiating google oauth", "account_id", sess.AccountID)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"auth_url": h.oauthService.AuthorizationURL(sess.AccountID, nonce),
		"nonce":    nonce,
	})
}

// HandleResult blocks until the popup attempt identified by nonce resolves,
// times out, or the request is abandoned. Only the account that minted the
// nonce can consume its outcome.
// GET /onboarding/gbp/connect/result?nonce=...
func (h *Handler) HandleResult(w http.ResponseWriter, r *http.Request) {
	sess, ok := session.FromContext(r.Context())
	if !ok {
		http.Error(w, `{"error": "authentication required"}`, http.StatusUnauthorized)
		return
	}

	nonce := r.URL.Query().Get("nonce")
	if nonce == "" {
		http.Error(w, `{"error": "nonce required"}`, http.StatusBadRequest)
		return
	}

	outcome := h.registry.Await(r.Context(), nonce, sess.AccountID, h.awaitTimeout)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(outcome)
}

// HandleCallback handles the OAuth redirect from Google inside the popup.
// It persists the connection and flips the account flag before resolving
// the waiter, so an opener that proceeds to location selection always sees
// the connection it was told about.
// GET /oauth/google/callback?code=...&state=...
func (h *Handler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")
	errorParam := r.URL.Query().Get("error")

	if errorParam != "" {
		h.logger.Warn("google oauth denied", "error", errorParam)
		h.finishCallback(w, state, ErrorMessage(errorParam), Outcome{Status: OutcomeFailed, Error: errorParam})
		return
	}

	if code == "" || state == "" {
		h.renderPostMessage(w, GenericMessage("missing code or state"))
		return
	}

	accountID, nonce, err := ParseState(state)
	if err != nil {
		h.logger.Error("invalid state format", "error", err)
		h.renderPostMessage(w, GenericMessage("invalid state"))
		return
	}

	h.mu.Lock()
	entry, ok := h.stateStore[nonce]
	if ok {
		delete(h.stateStore, nonce)
	}
	h.mu.Unlock()

	if !ok || time.Now().After(entry.expiresAt) || entry.accountID != accountID {
		h.logger.Error("state rejected", "account_id", accountID)
		h.finishCallback(w, state, ErrorMessage("invalid or expired state"), Outcome{Status: OutcomeFailed, Error: "invalid or expired state"})
		return
	}

	creds, err := h.oauthService.ExchangeCode(r.Context(), code)
	if err != nil {
		h.logger.Error("token exchange failed", "account_id", accountID, "error", err)
		h.finishCallback(w, state, ErrorMessage("token exchange failed"), Outcome{Status: OutcomeFailed, Error: "token exchange failed"})
		return
	}

	if err := h.oauthService.SaveConnection(r.Context(), accountID, creds); err != nil {
		h.logger.Error("save connection failed", "account_id", accountID, "error", err)
		h.finishCallback(w, state, ErrorMessage("failed to save connection"), Outcome{Status: OutcomeFailed, Error: "failed to save connection"})
		return
	}

	if err := h.accounts.SetGoogleConnected(r.Context(), accountID, true); err != nil {
		h.logger.Error("flag account failed", "account_id", accountID, "error", err)
		h.finishCallback(w, state, ErrorMessage("failed to update profile"), Outcome{Status: OutcomeFailed, Error: "failed to update profile"})
		return
	}

	h.logger.Info("google oauth completed", "account_id", accountID)
	h.registry.Resolve(nonce, Outcome{Status: OutcomeConnected})
	h.renderPostMessage(w, SuccessMessage())
}

// HandleStatus reports whether the session's account has a live connection.
// GET /onboarding/gbp/status
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	sess, ok := session.FromContext(r.Context())
	if !ok {
		http.Error(w, `{"error": "authentication required"}`, http.StatusUnauthorized)
		return
	}

	connected := true
	if _, err := h.oauthService.GetConnection(r.Context(), sess.AccountID); err != nil {
		if !errors.Is(err, gbp.ErrNotConnected) {
			h.logger.Error("get connection failed", "account_id", sess.AccountID, "error", err)
			http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
			return
		}
		connected = false
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"connected":  connected,
		"account_id": sess.AccountID,
	})
}

// HandleDisconnect removes the session account's Google connection.
// DELETE /onboarding/gbp/disconnect
func (h *Handler) HandleDisconnect(w http.ResponseWriter, r *http.Request) {
	sess, ok := session.FromContext(r.Context())
	if !ok {
		http.Error(w, `{"error": "authentication required"}`, http.StatusUnauthorized)
		return
	}

	if err := h.oauthService.DeleteConnection(r.Context(), sess.AccountID); err != nil {
		h.logger.Error("delete connection failed", "account_id", sess.AccountID, "error", err)
		http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
		return
	}
	if err := h.accounts.SetGoogleConnected(r.Context(), sess.AccountID, false); err != nil {
		h.logger.Error("unflag account failed", "account_id", sess.AccountID, "error", err)
		http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"success":    true,
		"account_id": sess.AccountID,
	})
}

// finishCallback resolves the waiter (when the state still parses) and
// renders the postMessage page for the popup.
func (h *Handler) finishCallback(w http.ResponseWriter, state string, msg Message, outcome Outcome) {
	if _, nonce, err := ParseState(state); err == nil {
		h.registry.Resolve(nonce, outcome)
	}
	h.renderPostMessage(w, msg)
}

var callbackPage = template.Must(template.New("callback").Parse(`<!doctype html>
<html>
<head><title>Connecting...</title></head>
<body>
<script>
(function () {
	var payload = {{.Payload}};
	if (window.opener) {
		window.opener.postMessage(payload, {{.Origin}});
	}
	window.close();
})();
</script>
</body>
</html>
`))

// renderPostMessage writes the minimal popup page that posts the typed
// payload to the opener, restricted to the app's own origin, and closes.
func (h *Handler) renderPostMessage(w http.ResponseWriter, msg Message) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err := callbackPage.Execute(w, struct {
		Payload Message
		Origin  string
	}{Payload: msg, Origin: h.appOrigin})
	if err != nil {
		h.logger.Error("render callback page failed", "error", err)
	}
}

// cleanExpiredStatesLocked removes expired entries. Caller holds h.mu.
func (h *Handler) cleanExpiredStatesLocked() {
	now := time.Now()
	for nonce, entry := range h.stateStore {
		if now.After(entry.expiresAt) {
			delete(h.stateStore, nonce)
		}
	}
}
