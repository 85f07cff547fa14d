package organizations

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/orthopulse/growth-platform/internal/domaincheck"
	"github.com/orthopulse/growth-platform/pkg/logging"
)

// ErrValidation marks a field-level validation failure. These stay local to
// the step that submitted them and never become terminal orchestrator errors.
var ErrValidation = errors.New("organizations: validation")

// AccountLinker attaches an organization to the account that created it.
type AccountLinker interface {
	SetOrganization(ctx context.Context, accountID, orgID string) error
}

// Service validates practice/domain registration and creates organizations.
type Service struct {
	repo     *Repository
	accounts AccountLinker
	logger   *logging.Logger
}

// NewService creates an organization service.
func NewService(repo *Repository, accounts AccountLinker, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{repo: repo, accounts: accounts, logger: logger}
}

// Create validates the registration fields, creates the organization, and
// links it to the creating account. Returns the organization id.
func (s *Service) Create(ctx context.Context, accountID string, p CreateParams) (string, error) {
	p.PracticeName = strings.TrimSpace(p.PracticeName)
	p.Street = strings.TrimSpace(p.Street)
	p.City = strings.TrimSpace(p.City)
	p.State = strings.TrimSpace(p.State)
	p.Zip = strings.TrimSpace(p.Zip)
	p.DomainName = domaincheck.Sanitize(p.DomainName)

	if p.PracticeName == "" {
		return "", fmt.Errorf("%w: practice_name is required", ErrValidation)
	}
	if p.Street == "" || p.City == "" || p.State == "" || p.Zip == "" {
		return "", fmt.Errorf("%w: street, city, state, and zip are required", ErrValidation)
	}
	if !domaincheck.IsValidSyntax(p.DomainName) {
		return "", fmt.Errorf("%w: domain_name is not a valid domain", ErrValidation)
	}

	orgID, err := s.repo.Create(ctx, uuid.New().String(), p)
	if err != nil {
		return "", err
	}

	if err := s.accounts.SetOrganization(ctx, accountID, orgID); err != nil {
		return "", fmt.Errorf("organizations: link account: %w", err)
	}

	s.logger.Info("organization created",
		"org_id", orgID,
		"account_id", accountID,
		"practice_name", p.PracticeName,
		"domain", p.DomainName,
	)
	return orgID, nil
}
