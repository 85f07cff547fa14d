package domaincheck

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/orthopulse/growth-platform/pkg/logging"
)

// rewriteTransport redirects every probe to the test server regardless of the
// requested host, so reachability can be exercised without real DNS.
type rewriteTransport struct {
	target  *url.URL
	fail    bool
	lastURL string
}

func (rt *rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	rt.lastURL = req.URL.String()
	if rt.fail {
		return nil, &url.Error{Op: "Head", URL: req.URL.String(), Err: context.DeadlineExceeded}
	}
	clone := req.Clone(req.Context())
	clone.URL.Scheme = rt.target.Scheme
	clone.URL.Host = rt.target.Host
	return http.DefaultTransport.RoundTrip(clone)
}

type stubConflicts struct {
	inUse bool
	err   error
	last  string
}

func (s *stubConflicts) DomainInUse(ctx context.Context, domain string) (bool, error) {
	s.last = domain
	return s.inUse, s.err
}

func newTestChecker(t *testing.T, rt *rewriteTransport, conflicts ConflictLookup) *Checker {
	t.Helper()
	c := NewChecker(2*time.Second, conflicts, logging.Default())
	c.WithHTTPClient(&http.Client{Transport: rt, Timeout: 2 * time.Second})
	return c
}

func TestCheckValidDomain(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()
	target, _ := url.Parse(srv.URL)

	c := newTestChecker(t, &rewriteTransport{target: target}, &stubConflicts{})
	res := c.Check(context.Background(), "https://www.Example.COM/")
	if res.Status != StatusValid {
		t.Fatalf("expected valid, got %s (%s)", res.Status, res.Message)
	}
}

func TestCheckWarningWhenDomainClaimed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()
	target, _ := url.Parse(srv.URL)

	conflicts := &stubConflicts{inUse: true}
	c := newTestChecker(t, &rewriteTransport{target: target}, conflicts)
	res := c.Check(context.Background(), "claimed.dental")
	if res.Status != StatusWarning {
		t.Fatalf("expected warning, got %s", res.Status)
	}
	if conflicts.last != "claimed.dental" {
		t.Fatalf("conflict lookup saw %q", conflicts.last)
	}
	if !strings.Contains(res.Message, "already registered") {
		t.Fatalf("unexpected message: %s", res.Message)
	}
}

func TestCheckUnreachable(t *testing.T) {
	c := newTestChecker(t, &rewriteTransport{fail: true}, nil)
	res := c.Check(context.Background(), "ghost.example")
	if res.Status != StatusUnreachable {
		t.Fatalf("expected unreachable, got %s", res.Status)
	}
}

func TestCheckInvalidSyntaxSkipsNetwork(t *testing.T) {
	rt := &rewriteTransport{fail: true}
	c := newTestChecker(t, rt, nil)
	res := c.Check(context.Background(), "not a domain")
	if res.Status != StatusIdle {
		t.Fatalf("expected idle, got %s", res.Status)
	}
	if rt.lastURL != "" {
		t.Fatalf("expected no network call, probe hit %s", rt.lastURL)
	}
}

func TestHandlerCheckDomain(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()
	target, _ := url.Parse(srv.URL)

	h := NewHandler(newTestChecker(t, &rewriteTransport{target: target}, nil), logging.Default())

	req := httptest.NewRequest(http.MethodGet, "/domains/check?domain=https%3A%2F%2Fwww.Example.COM%2F", nil)
	rec := httptest.NewRecorder()
	h.CheckDomain(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp CheckDomainResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Domain != "example.com" {
		t.Fatalf("expected sanitized domain, got %q", resp.Domain)
	}
	if !resp.Success || resp.Status != StatusValid {
		t.Fatalf("unexpected verdict: %+v", resp)
	}
}

func TestHandlerRejectsInvalidDomain(t *testing.T) {
	h := NewHandler(newTestChecker(t, &rewriteTransport{fail: true}, nil), logging.Default())

	req := httptest.NewRequest(http.MethodGet, "/domains/check?domain=not+a+domain", nil)
	rec := httptest.NewRecorder()
	h.CheckDomain(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
}
