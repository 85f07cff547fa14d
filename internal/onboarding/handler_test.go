package onboarding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/orthopulse/growth-platform/internal/gbp"
	"github.com/orthopulse/growth-platform/internal/session"
)

func newHandlerFixture(t *testing.T, withOrg bool) (*Handler, *fixture) {
	t.Helper()
	account := baseAccount()
	if withOrg {
		account = accountWithOrg()
	}
	f := newFixture(t, account)
	return NewHandler(f.orchestrator, nil), f
}

func authedRequest(method, target string, body string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	ctx := session.WithSession(context.Background(), session.Session{AccountID: "acct-1", Email: "doc@example.com"})
	return req.WithContext(ctx)
}

func TestHandlerRequiresSession(t *testing.T) {
	h, _ := newHandlerFixture(t, false)
	rec := httptest.NewRecorder()

	h.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/state", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestHandlerGetState(t *testing.T) {
	h, _ := newHandlerFixture(t, true)
	rec := httptest.NewRecorder()

	h.Routes().ServeHTTP(rec, authedRequest(http.MethodGet, "/state", ""))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var state State
	if err := json.NewDecoder(rec.Body).Decode(&state); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if state.CurrentStep != StepGoogle {
		t.Fatalf("expected step %d, got %d", StepGoogle, state.CurrentStep)
	}
	if state.TotalSteps != TotalSteps {
		t.Fatalf("expected %d total steps, got %d", TotalSteps, state.TotalSteps)
	}
}

func TestHandlerSaveProfileValidationReturns422(t *testing.T) {
	h, _ := newHandlerFixture(t, false)
	rec := httptest.NewRecorder()

	h.Routes().ServeHTTP(rec, authedRequest(http.MethodPost, "/profile", `{"firstName":""}`))

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["error"] == "" {
		t.Fatal("expected an error message")
	}
}

func TestHandlerSaveProfileAdvances(t *testing.T) {
	h, f := newHandlerFixture(t, false)
	rec := httptest.NewRecorder()

	h.Routes().ServeHTTP(rec, authedRequest(http.MethodPost, "/profile",
		`{"firstName":"Dana","lastName":"Reyes","businessPhone":"+15125550100"}`))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var state State
	if err := json.NewDecoder(rec.Body).Decode(&state); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if state.CurrentStep != StepPractice {
		t.Fatalf("expected step %d, got %d", StepPractice, state.CurrentStep)
	}
	if f.accounts.identityUpdates != 1 {
		t.Fatalf("expected one identity update, got %d", f.accounts.identityUpdates)
	}
}

func TestHandlerSaveOrganization(t *testing.T) {
	h, _ := newHandlerFixture(t, false)
	rec := httptest.NewRecorder()

	h.Routes().ServeHTTP(rec, authedRequest(http.MethodPost, "/organization",
		`{"practiceName":"Bright Smiles","street":"100 Main St","city":"Austin","state":"TX","zip":"78701","domainName":"brightsmiles.dental"}`))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var state State
	if err := json.NewDecoder(rec.Body).Decode(&state); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if state.DomainName != "brightsmiles.dental" {
		t.Fatalf("unexpected domain: %q", state.DomainName)
	}
}

func TestHandlerListLocationsConflictWhenNotConnected(t *testing.T) {
	h, f := newHandlerFixture(t, true)
	f.locations.err = gbp.ErrNotConnected
	rec := httptest.NewRecorder()

	h.Routes().ServeHTTP(rec, authedRequest(http.MethodGet, "/gbp/locations", ""))

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestHandlerListLocationsEmptyIsNotNull(t *testing.T) {
	h, _ := newHandlerFixture(t, true)
	rec := httptest.NewRecorder()

	h.Routes().ServeHTTP(rec, authedRequest(http.MethodGet, "/gbp/locations", ""))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), `"locations":null`) {
		t.Fatal("locations must encode as an empty array")
	}
}

func TestHandlerSaveSelectionsEmptyReturns422(t *testing.T) {
	h, _ := newHandlerFixture(t, true)
	rec := httptest.NewRecorder()

	h.Routes().ServeHTTP(rec, authedRequest(http.MethodPut, "/gbp/selections", `{"selections":[]}`))

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
}

func TestHandlerCheckoutReturnsSession(t *testing.T) {
	h, _ := newHandlerFixture(t, true)
	rec := httptest.NewRecorder()

	h.Routes().ServeHTTP(rec, authedRequest(http.MethodPost, "/checkout", ""))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body struct {
		State       State  `json:"state"`
		CheckoutURL string `json:"checkoutUrl"`
		SessionID   string `json:"sessionId"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.CheckoutURL == "" || body.SessionID == "" {
		t.Fatalf("expected session details, got %+v", body)
	}
	if !body.State.IsCheckoutProcessing {
		t.Fatal("state should report checkout processing")
	}
}
