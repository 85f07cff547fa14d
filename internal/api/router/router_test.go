package router

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/golang-jwt/jwt/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"

	"github.com/orthopulse/growth-platform/internal/accounts"
	"github.com/orthopulse/growth-platform/internal/domaincheck"
	httpmiddleware "github.com/orthopulse/growth-platform/internal/http/middleware"
	"github.com/orthopulse/growth-platform/internal/notifications"
)

const testSessionSecret = "router-test-secret"

type routerFixture struct {
	handler http.Handler
	pgx     pgxmock.PgxPoolIface
	sql     sqlmock.Sqlmock
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()

	pool, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	t.Cleanup(pool.Close)

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	handler := New(&Config{
		SessionSecret: testSessionSecret,
		DomainCheck:   domaincheck.NewHandler(domaincheck.NewChecker(time.Second, nil, nil), nil),
		Accounts:      accounts.NewHandler(accounts.NewRepository(pool), nil),
		Notifications: notifications.NewHandler(notifications.NewRepository(db), nil),
	})

	return &routerFixture{handler: handler, pgx: pool, sql: mock}
}

func bearerToken(t *testing.T, accountID, orgID string) string {
	t.Helper()
	claims := httpmiddleware.SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		OrgID: orgID,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSessionSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return "Bearer " + token
}

func TestHealthIsPublic(t *testing.T) {
	f := newRouterFixture(t)

	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestDomainCheckIsPublic(t *testing.T) {
	f := newRouterFixture(t)

	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/domains/check?domain=not%20a%20domain", nil))

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for invalid syntax, got %d", rec.Code)
	}
}

func TestMeRequiresToken(t *testing.T) {
	f := newRouterFixture(t)

	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/me", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestMeReturnsProfile(t *testing.T) {
	f := newRouterFixture(t)

	now := time.Now()
	f.pgx.ExpectQuery("SELECT(.+)FROM accounts").
		WithArgs("acct-1").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "email", "first_name", "last_name", "business_phone",
			"organization_id", "google_connected", "billing_status",
			"created_at", "updated_at",
		}).AddRow("acct-1", "doc@example.com", "Dana", "Reyes", "", "org-1", false, "", now, now))

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", bearerToken(t, "acct-1", "org-1"))
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if err := f.pgx.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestOrgScopeForbidsForeignOrg(t *testing.T) {
	f := newRouterFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/orgs/org-2/notifications/count", nil)
	req.Header.Set("Authorization", bearerToken(t, "acct-1", "org-1"))
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestOrgScopeAllowsOwnOrg(t *testing.T) {
	f := newRouterFixture(t)

	f.sql.ExpectQuery("SELECT COUNT").
		WithArgs("org-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	req := httptest.NewRequest(http.MethodGet, "/orgs/org-1/notifications/count", nil)
	req.Header.Set("Authorization", bearerToken(t, "acct-1", "org-1"))
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if err := f.sql.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
