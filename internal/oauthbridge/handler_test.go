package oauthbridge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v3"

	"github.com/orthopulse/growth-platform/internal/session"
)

type recordingFlagger struct {
	calls []bool
	err   error
}

func (f *recordingFlagger) SetGoogleConnected(_ context.Context, _ string, connected bool) error {
	f.calls = append(f.calls, connected)
	return f.err
}

func sessionRequest(method, target string) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	ctx := session.WithSession(req.Context(), session.Session{AccountID: "acct-1", Email: "doc@example.com"})
	return req.WithContext(ctx)
}

func TestHandleConnectMintsAttempt(t *testing.T) {
	h := NewHandler(NewGoogleOAuthService(testConfig(), nil, nil), &recordingFlagger{}, NewRegistry(), "https://app.example.com", nil)

	rec := httptest.NewRecorder()
	h.HandleConnect(rec, sessionRequest(http.MethodPost, "/connect"))

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}

	var resp struct {
		AuthURL string `json:"auth_url"`
		Nonce   string `json:"nonce"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Nonce == "" {
		t.Fatal("expected a nonce")
	}

	parsed, err := url.Parse(resp.AuthURL)
	if err != nil {
		t.Fatalf("auth url did not parse: %v", err)
	}
	if got := parsed.Query().Get("state"); got != "acct-1:"+resp.Nonce {
		t.Fatalf("state does not bind account and nonce: %q", got)
	}
}

func TestHandleConnectRequiresSession(t *testing.T) {
	h := NewHandler(NewGoogleOAuthService(testConfig(), nil, nil), &recordingFlagger{}, NewRegistry(), "https://app.example.com", nil)

	rec := httptest.NewRecorder()
	h.HandleConnect(rec, httptest.NewRequest(http.MethodPost, "/connect", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestHandleCallbackSuccessResolvesAfterPersisting(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"at-1","refresh_token":"rt-1","expires_in":3600,"scope":"openid","token_type":"Bearer"}`))
	}))
	defer tokenServer.Close()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()
	mock.ExpectExec("INSERT INTO google_connections").
		WithArgs("acct-1", "at-1", "rt-1", pgxmock.AnyArg(), "openid").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	svc := NewGoogleOAuthService(testConfig(), mock, nil).WithEndpoints("", tokenServer.URL)
	flagger := &recordingFlagger{}
	registry := NewRegistry()
	h := NewHandler(svc, flagger, registry, "https://app.example.com", nil)

	// Mint the attempt to seed the state store.
	rec := httptest.NewRecorder()
	h.HandleConnect(rec, sessionRequest(http.MethodPost, "/connect"))
	var minted struct {
		Nonce string `json:"nonce"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&minted); err != nil {
		t.Fatalf("decode connect response: %v", err)
	}

	cbRec := httptest.NewRecorder()
	cbURL := "/google/callback?code=code-123&state=" + url.QueryEscape("acct-1:"+minted.Nonce)
	h.HandleCallback(cbRec, httptest.NewRequest(http.MethodGet, cbURL, nil))

	if cbRec.Code != http.StatusOK {
		t.Fatalf("unexpected callback status: %d", cbRec.Code)
	}

	page := cbRec.Body.String()
	if !strings.Contains(page, TypeAuthSuccess) {
		t.Errorf("page does not carry success payload: %s", page)
	}
	if !strings.Contains(page, "https://app.example.com") {
		t.Errorf("page does not restrict postMessage to app origin: %s", page)
	}

	if len(flagger.calls) != 1 || !flagger.calls[0] {
		t.Fatalf("expected account flagged connected, got %v", flagger.calls)
	}

	// The waiter resolves only after the connection and flag are persisted,
	// so the outcome is already held by the time the callback responds.
	outcome := registry.Await(context.Background(), minted.Nonce, "acct-1", 50*time.Millisecond)
	if outcome.Status != OutcomeConnected {
		t.Fatalf("expected connected outcome, got %+v", outcome)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestHandleCallbackProviderDenied(t *testing.T) {
	registry := NewRegistry()
	registry.Register("nonce-1", "acct-1")
	h := NewHandler(NewGoogleOAuthService(testConfig(), nil, nil), &recordingFlagger{}, registry, "https://app.example.com", nil)

	rec := httptest.NewRecorder()
	cbURL := "/google/callback?error=access_denied&state=" + url.QueryEscape("acct-1:nonce-1")
	h.HandleCallback(rec, httptest.NewRequest(http.MethodGet, cbURL, nil))

	if !strings.Contains(rec.Body.String(), TypeAuthError) {
		t.Errorf("page does not carry error payload: %s", rec.Body.String())
	}

	outcome := registry.Await(context.Background(), "nonce-1", "acct-1", 50*time.Millisecond)
	if outcome.Status != OutcomeFailed {
		t.Fatalf("expected failed outcome, got %+v", outcome)
	}
}

func TestHandleCallbackUnparseableDegradesToGeneric(t *testing.T) {
	h := NewHandler(NewGoogleOAuthService(testConfig(), nil, nil), &recordingFlagger{}, NewRegistry(), "https://app.example.com", nil)

	rec := httptest.NewRecorder()
	h.HandleCallback(rec, httptest.NewRequest(http.MethodGet, "/google/callback", nil))

	if !strings.Contains(rec.Body.String(), TypeGeneric) {
		t.Errorf("expected generic payload, got: %s", rec.Body.String())
	}
}

func TestHandleCallbackRejectsUnknownState(t *testing.T) {
	registry := NewRegistry()
	registry.Register("nonce-1", "acct-1")
	h := NewHandler(NewGoogleOAuthService(testConfig(), nil, nil), &recordingFlagger{}, registry, "https://app.example.com", nil)

	rec := httptest.NewRecorder()
	cbURL := "/google/callback?code=code-123&state=" + url.QueryEscape("acct-1:nonce-1")
	h.HandleCallback(rec, httptest.NewRequest(http.MethodGet, cbURL, nil))

	// Nonce was never minted through HandleConnect, so the attempt fails.
	if !strings.Contains(rec.Body.String(), TypeAuthError) {
		t.Errorf("expected error payload, got: %s", rec.Body.String())
	}

	outcome := registry.Await(context.Background(), "nonce-1", "acct-1", 50*time.Millisecond)
	if outcome.Status != OutcomeFailed {
		t.Fatalf("expected failed outcome, got %+v", outcome)
	}
}

func TestHandleResultTimesOut(t *testing.T) {
	registry := NewRegistry()
	registry.Register("nonce-1", "acct-1")
	h := NewHandler(NewGoogleOAuthService(testConfig(), nil, nil), &recordingFlagger{}, registry, "https://app.example.com", nil).
		WithAwaitTimeout(20 * time.Millisecond)

	rec := httptest.NewRecorder()
	h.HandleResult(rec, sessionRequest(http.MethodGet, "/connect/result?nonce=nonce-1"))

	var outcome Outcome
	if err := json.NewDecoder(rec.Body).Decode(&outcome); err != nil {
		t.Fatalf("decode outcome: %v", err)
	}
	if outcome.Status != OutcomeCancelled {
		t.Fatalf("expected cancelled outcome, got %+v", outcome)
	}
}

func TestHandleResultRequiresSession(t *testing.T) {
	h := NewHandler(NewGoogleOAuthService(testConfig(), nil, nil), &recordingFlagger{}, NewRegistry(), "https://app.example.com", nil)

	rec := httptest.NewRecorder()
	h.HandleResult(rec, httptest.NewRequest(http.MethodGet, "/connect/result?nonce=nonce-1", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestHandleResultDoesNotLeakForeignOutcome(t *testing.T) {
	registry := NewRegistry()
	registry.Register("nonce-1", "acct-2")
	registry.Resolve("nonce-1", Outcome{Status: OutcomeConnected})

	h := NewHandler(NewGoogleOAuthService(testConfig(), nil, nil), &recordingFlagger{}, registry, "https://app.example.com", nil).
		WithAwaitTimeout(time.Second)

	// The session belongs to acct-1, which never minted this nonce.
	rec := httptest.NewRecorder()
	h.HandleResult(rec, sessionRequest(http.MethodGet, "/connect/result?nonce=nonce-1"))

	var outcome Outcome
	if err := json.NewDecoder(rec.Body).Decode(&outcome); err != nil {
		t.Fatalf("decode outcome: %v", err)
	}
	if outcome.Status != OutcomeCancelled {
		t.Fatalf("expected cancelled for foreign caller, got %+v", outcome)
	}

	// The owner's outcome is still waiting for them.
	owner := registry.Await(context.Background(), "nonce-1", "acct-2", time.Second)
	if owner.Status != OutcomeConnected {
		t.Fatalf("owner lost their outcome: %+v", owner)
	}
}
