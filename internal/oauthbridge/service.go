package oauthbridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/orthopulse/growth-platform/internal/gbp"
	"github.com/orthopulse/growth-platform/pkg/logging"
)

const (
	defaultAuthURL  = "https://accounts.google.com/o/oauth2/v2/auth"
	defaultTokenURL = "https://oauth2.googleapis.com/token"

	// Business Profile management plus basic identity for display.
	oauthScopes = "https://www.googleapis.com/auth/business.manage openid email"
)

// GoogleOAuthConfig holds configuration for the Google OAuth flow.
type GoogleOAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string // e.g. "https://api.orthopulse.com/oauth/google/callback"
}

// Credentials represents a stored Google connection for an account.
type Credentials struct {
	AccountID      string
	AccessToken    string
	RefreshToken   string
	TokenExpiresAt time.Time
	Scope          string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// DB is the subset of pgxpool.Pool the service needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// GoogleOAuthService handles the Google OAuth handshake and stores the
// resulting connections. It also serves as the token source for the
// Business Profile client, refreshing access tokens as they expire.
type GoogleOAuthService struct {
	config     GoogleOAuthConfig
	db         DB
	httpClient *http.Client
	authURL    string
	tokenURL   string
	logger     *logging.Logger
}

// NewGoogleOAuthService creates a new Google OAuth service.
func NewGoogleOAuthService(config GoogleOAuthConfig, db DB, logger *logging.Logger) *GoogleOAuthService {
	if logger == nil {
		logger = logging.Default()
	}
	return &GoogleOAuthService{
		config:     config,
		db:         db,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		authURL:    defaultAuthURL,
		tokenURL:   defaultTokenURL,
		logger:     logger,
	}
}

// WithHTTPClient overrides the HTTP client (for testing).
func (s *GoogleOAuthService) WithHTTPClient(client *http.Client) *GoogleOAuthService {
	if client != nil {
		s.httpClient = client
	}
	return s
}

// WithEndpoints overrides the provider endpoints (for testing).
func (s *GoogleOAuthService) WithEndpoints(authURL, tokenURL string) *GoogleOAuthService {
	if authURL != "" {
		s.authURL = authURL
	}
	if tokenURL != "" {
		s.tokenURL = tokenURL
	}
	return s
}

// AuthorizationURL generates the URL the popup navigates to for consent.
// The state parameter carries the account id alongside an unguessable nonce
// so the callback can associate the code with the right account.
// Format: accountID:nonce.
func (s *GoogleOAuthService) AuthorizationURL(accountID, nonce string) string {
	params := url.Values{
		"client_id":     {s.config.ClientID},
		"redirect_uri":  {s.config.RedirectURI},
		"response_type": {"code"},
		"scope":         {oauthScopes},
		"access_type":   {"offline"},
		"prompt":        {"consent"},
		"state":         {fmt.Sprintf("%s:%s", accountID, nonce)},
	}
	return fmt.Sprintf("%s?%s", s.authURL, params.Encode())
}

// googleTokenResponse represents the response from Google's token endpoint.
type googleTokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"` // seconds
	Scope        string `json:"scope"`
	TokenType    string `json:"token_type"`
}

// ExchangeCode exchanges an authorization code for access and refresh tokens.
func (s *GoogleOAuthService) ExchangeCode(ctx context.Context, code string) (*Credentials, error) {
	data := url.Values{
		"client_id":     {s.config.ClientID},
		"client_secret": {s.config.ClientSecret},
		"code":          {code},
		"grant_type":    {"authorization_code"},
		"redirect_uri":  {s.config.RedirectURI},
	}

	tokenResp, err := s.postToken(ctx, data)
	if err != nil {
		return nil, err
	}

	return &Credentials{
		AccessToken:    tokenResp.AccessToken,
		RefreshToken:   tokenResp.RefreshToken,
		TokenExpiresAt: time.Now().Add(time.Duration(tokenResp.ExpiresIn) * time.Second),
		Scope:          tokenResp.Scope,
	}, nil
}

// RefreshAccessToken exchanges a refresh token for a fresh access token.
// Google does not rotate the refresh token on this grant, so the stored
// refresh token is carried forward.
func (s *GoogleOAuthService) RefreshAccessToken(ctx context.Context, refreshToken string) (*Credentials, error) {
	data := url.Values{
		"client_id":     {s.config.ClientID},
		"client_secret": {s.config.ClientSecret},
		"refresh_token": {refreshToken},
		"grant_type":    {"refresh_token"},
	}

	tokenResp, err := s.postToken(ctx, data)
	if err != nil {
		return nil, err
	}

	return &Credentials{
		AccessToken:    tokenResp.AccessToken,
		RefreshToken:   refreshToken,
		TokenExpiresAt: time.Now().Add(time.Duration(tokenResp.ExpiresIn) * time.Second),
		Scope:          tokenResp.Scope,
	}, nil
}

func (s *GoogleOAuthService) postToken(ctx context.Context, data url.Values) (*googleTokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.tokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("oauthbridge: create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("oauthbridge: token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("oauthbridge: read token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		s.logger.Error("google token request failed", "status", resp.StatusCode, "body", string(body))
		return nil, fmt.Errorf("oauthbridge: token request status %d", resp.StatusCode)
	}

	var tokenResp googleTokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return nil, fmt.Errorf("oauthbridge: parse token response: %w", err)
	}
	return &tokenResp, nil
}

// SaveConnection stores or updates the Google connection for an account.
func (s *GoogleOAuthService) SaveConnection(ctx context.Context, accountID string, creds *Credentials) error {
	query := `
		INSERT INTO google_connections (
			account_id, access_token, refresh_token, token_expires_at, scope, updated_at
		) VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (account_id) DO UPDATE SET
			access_token = EXCLUDED.access_token,
			refresh_token = COALESCE(NULLIF(EXCLUDED.refresh_token, ''), google_connections.refresh_token),
			token_expires_at = EXCLUDED.token_expires_at,
			scope = EXCLUDED.scope,
			updated_at = NOW()
	`

	_, err := s.db.Exec(ctx, query,
		accountID,
		creds.AccessToken,
		creds.RefreshToken,
		creds.TokenExpiresAt,
		creds.Scope,
	)
	if err != nil {
		return fmt.Errorf("oauthbridge: save connection: %w", err)
	}

	s.logger.Info("saved google connection", "account_id", accountID)
	return nil
}

// GetConnection retrieves the stored Google connection for an account.
// Returns gbp.ErrNotConnected when no connection exists.
func (s *GoogleOAuthService) GetConnection(ctx context.Context, accountID string) (*Credentials, error) {
	query := `
		SELECT account_id, access_token, COALESCE(refresh_token, '') AS refresh_token,
		       token_expires_at, COALESCE(scope, '') AS scope, created_at, updated_at
		FROM google_connections
		WHERE account_id = $1
	`

	var creds Credentials
	err := s.db.QueryRow(ctx, query, accountID).Scan(
		&creds.AccountID,
		&creds.AccessToken,
		&creds.RefreshToken,
		&creds.TokenExpiresAt,
		&creds.Scope,
		&creds.CreatedAt,
		&creds.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, gbp.ErrNotConnected
		}
		return nil, fmt.Errorf("oauthbridge: get connection: %w", err)
	}
	return &creds, nil
}

// DeleteConnection removes the stored connection (for disconnection).
func (s *GoogleOAuthService) DeleteConnection(ctx context.Context, accountID string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM google_connections WHERE account_id = $1`, accountID)
	if err != nil {
		return fmt.Errorf("oauthbridge: delete connection: %w", err)
	}
	s.logger.Info("deleted google connection", "account_id", accountID)
	return nil
}

// AccessToken returns a valid access token for the account, refreshing it
// when it is expired or about to expire. Implements gbp.TokenSource.
func (s *GoogleOAuthService) AccessToken(ctx context.Context, accountID string) (string, error) {
	creds, err := s.GetConnection(ctx, accountID)
	if err != nil {
		return "", err
	}

	if time.Until(creds.TokenExpiresAt) > time.Minute {
		return creds.AccessToken, nil
	}
	if creds.RefreshToken == "" {
		return "", gbp.ErrNotConnected
	}

	refreshed, err := s.RefreshAccessToken(ctx, creds.RefreshToken)
	if err != nil {
		return "", fmt.Errorf("oauthbridge: refresh token: %w", err)
	}
	if err := s.SaveConnection(ctx, accountID, refreshed); err != nil {
		return "", err
	}
	return refreshed.AccessToken, nil
}

// ParseState extracts the account id and nonce from the state parameter.
func ParseState(state string) (accountID, nonce string, err error) {
	parts := strings.SplitN(state, ":", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("oauthbridge: invalid state format")
	}
	return parts[0], parts[1], nil
}
