package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/orthopulse/growth-platform/pkg/logging"
)

var checkoutTracer = otel.Tracer("orthopulse.internal.billing.checkout")

// CheckoutService creates hosted subscription checkout sessions. Completion
// is never observed synchronously; the webhook updates billing status when
// the provider reports the session finished.
type CheckoutService struct {
	secretKey  string
	priceID    string
	successURL string
	cancelURL  string
	baseURL    string
	apiVersion string
	httpClient *http.Client
	logger     *logging.Logger
	dryRun     bool
}

// CheckoutParams identifies who the subscription session is for.
type CheckoutParams struct {
	OrgID     string
	AccountID string
	Email     string
}

// CheckoutSession is the hosted page the caller redirects the user to.
type CheckoutSession struct {
	URL        string
	ProviderID string
}

// NewCheckoutService creates a new subscription checkout service.
func NewCheckoutService(secretKey, priceID, successURL, cancelURL string, logger *logging.Logger) *CheckoutService {
	if logger == nil {
		logger = logging.Default()
	}
	return &CheckoutService{
		secretKey:  secretKey,
		priceID:    priceID,
		successURL: successURL,
		cancelURL:  cancelURL,
		baseURL:    "https://api.stripe.com",
		apiVersion: "2024-12-18.acacia",
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

// WithBaseURL overrides the provider API base URL (for testing).
func (s *CheckoutService) WithBaseURL(baseURL string) *CheckoutService {
	if baseURL != "" {
		s.baseURL = strings.TrimRight(baseURL, "/")
	}
	return s
}

// WithDryRun enables dry-run mode (returns fake URLs without calling the provider).
func (s *CheckoutService) WithDryRun(enabled bool) *CheckoutService {
	s.dryRun = enabled
	return s
}

// CreateSubscriptionSession creates a hosted checkout session for the
// platform subscription and returns its redirect URL.
func (s *CheckoutService) CreateSubscriptionSession(ctx context.Context, params CheckoutParams) (*CheckoutSession, error) {
	ctx, span := checkoutTracer.Start(ctx, "billing.create_checkout_session")
	defer span.End()
	span.SetAttributes(
		attribute.String("orthopulse.org_id", params.OrgID),
		attribute.String("orthopulse.account_id", params.AccountID),
	)

	if s.dryRun {
		fakeID := "cs_dryrun_" + uuid.New().String()[:8]
		s.logger.Info("billing dry run: skipping checkout session creation",
			"org_id", params.OrgID, "account_id", params.AccountID)
		return &CheckoutSession{
			URL:        fmt.Sprintf("https://checkout.stripe.com/dry-run/%s", fakeID),
			ProviderID: fakeID,
		}, nil
	}

	form := url.Values{}
	form.Set("mode", "subscription")
	form.Set("line_items[0][price]", s.priceID)
	form.Set("line_items[0][quantity]", "1")

	if s.successURL != "" {
		form.Set("success_url", s.successURL)
	}
	if s.cancelURL != "" {
		form.Set("cancel_url", s.cancelURL)
	}
	if params.Email != "" {
		form.Set("customer_email", params.Email)
	}

	// Metadata for webhook processing
	form.Set("metadata[org_id]", params.OrgID)
	form.Set("metadata[account_id]", params.AccountID)
	form.Set("subscription_data[metadata][org_id]", params.OrgID)
	form.Set("subscription_data[metadata][account_id]", params.AccountID)

	apiURL := s.baseURL + "/v1/checkout/sessions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("billing: checkout request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.secretKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Stripe-Version", s.apiVersion)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("billing: checkout http: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("billing: checkout api status %d: %s", resp.StatusCode, string(body))
	}

	var parsed checkoutSessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("billing: checkout decode: %w", err)
	}
	if parsed.URL == "" {
		return nil, fmt.Errorf("billing: checkout response missing url")
	}

	s.logger.Info("created checkout session", "org_id", params.OrgID, "session_id", parsed.ID)

	return &CheckoutSession{
		URL:        parsed.URL,
		ProviderID: parsed.ID,
	}, nil
}

// checkoutSessionResponse is the subset of the provider's session we need.
type checkoutSessionResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}
