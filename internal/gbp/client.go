package gbp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/orthopulse/growth-platform/pkg/logging"
)

// ErrNotConnected is returned when the provider rejects the stored
// credentials (401/403), meaning the Google connection is missing or expired.
var ErrNotConnected = errors.New("gbp: google account not connected")

// TokenSource resolves the access token for an account's Google connection.
type TokenSource interface {
	AccessToken(ctx context.Context, accountID string) (string, error)
}

// Client lists Business Profile locations from the provider API.
type Client struct {
	baseURL    string
	tokens     TokenSource
	httpClient *http.Client
	logger     *logging.Logger
}

// NewClient creates a Business Profile API client.
func NewClient(baseURL string, tokens TokenSource, logger *logging.Logger) *Client {
	if logger == nil {
		logger = logging.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		tokens:     tokens,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     logger,
	}
}

// WithHTTPClient overrides the HTTP client (for testing).
func (c *Client) WithHTTPClient(client *http.Client) *Client {
	if client != nil {
		c.httpClient = client
	}
	return c
}

type gbpAccountsResponse struct {
	Accounts []struct {
		Name        string `json:"name"` // "accounts/{accountId}"
		AccountName string `json:"accountName"`
	} `json:"accounts"`
}

type gbpLocationsResponse struct {
	Locations []struct {
		Name    string `json:"name"` // "locations/{locationId}"
		Title   string `json:"title"`
		Address struct {
			AddressLines []string `json:"addressLines"`
			Locality     string   `json:"locality"`
			RegionCode   string   `json:"regionCode"`
		} `json:"storefrontAddress"`
	} `json:"locations"`
}

// ListLocations returns all candidate locations across the linked Google
// account's Business Profile accounts. Errors propagate so the caller can
// offer a retry affordance; a 401/403 maps to ErrNotConnected.
func (c *Client) ListLocations(ctx context.Context, accountID string) ([]Location, error) {
	token, err := c.tokens.AccessToken(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("gbp: resolve token: %w", err)
	}

	var accounts gbpAccountsResponse
	if err := c.getJSON(ctx, token, "/v1/accounts", &accounts); err != nil {
		return nil, err
	}

	var out []Location
	for _, acct := range accounts.Accounts {
		gbpAccountID := strings.TrimPrefix(acct.Name, "accounts/")
		var locs gbpLocationsResponse
		path := fmt.Sprintf("/v1/accounts/%s/locations?readMask=name,title,storefrontAddress", gbpAccountID)
		if err := c.getJSON(ctx, token, path, &locs); err != nil {
			return nil, err
		}
		for _, loc := range locs.Locations {
			locationID := strings.TrimPrefix(loc.Name, "locations/")
			address := strings.Join(loc.Address.AddressLines, ", ")
			if loc.Address.Locality != "" {
				if address != "" {
					address += ", "
				}
				address += loc.Address.Locality
			}
			out = append(out, Location{
				ID:         fmt.Sprintf("accounts/%s/locations/%s", gbpAccountID, locationID),
				Name:       loc.Title,
				Address:    address,
				AccountID:  gbpAccountID,
				LocationID: locationID,
			})
		}
	}
	return out, nil
}

func (c *Client) getJSON(ctx context.Context, token, path string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("gbp: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("gbp: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return ErrNotConnected
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		c.logger.Error("gbp api call failed", "path", path, "status", resp.StatusCode, "body", string(body))
		return fmt.Errorf("gbp: api status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("gbp: decode response: %w", err)
	}
	return nil
}
