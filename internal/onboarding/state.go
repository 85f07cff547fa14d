package onboarding

import (
	"fmt"
	"strings"
	"time"

	"github.com/orthopulse/growth-platform/internal/domaincheck"
	"github.com/orthopulse/growth-platform/internal/gbp"
)

// Onboarding walks four sequential steps.
const (
	StepIdentity = 1
	StepPractice = 2
	StepGoogle   = 3
	StepCheckout = 4

	TotalSteps = 4
)

// ProfileFields is the identity step's input.
type ProfileFields struct {
	FirstName     string `json:"firstName"`
	LastName      string `json:"lastName"`
	BusinessPhone string `json:"businessPhone"`
}

// PracticeFields is the practice registration step's input.
type PracticeFields struct {
	PracticeName string `json:"practiceName"`
	Street       string `json:"street"`
	City         string `json:"city"`
	State        string `json:"state"`
	Zip          string `json:"zip"`
}

// State is one account's onboarding progress. It is owned exclusively by
// the orchestrator and mutated only through its operations; the flow record
// is destroyed when onboarding completes.
type State struct {
	AccountID   string `json:"accountId"`
	CurrentStep int    `json:"currentStep"`
	TotalSteps  int    `json:"totalSteps"`

	Profile    ProfileFields  `json:"profile"`
	Practice   PracticeFields `json:"practice"`
	DomainName string         `json:"domainName"`

	SelectedLocations []gbp.Selection `json:"selectedGbpLocations"`

	// Error is terminal: once set, the flow's only recovery is a restart.
	Error                string `json:"error,omitempty"`
	IsSavingProfile      bool   `json:"isSavingProfile"`
	IsCheckoutProcessing bool   `json:"isCheckoutProcessing"`

	UpdatedAt time.Time `json:"updatedAt"`
}

// NewState computes the resumable starting point exactly once, when the
// flow record is created. An account that already has an organization
// resumes at the Google connect step; recomputing this on later profile
// refreshes could double-advance a concurrent user action, so it never is.
func NewState(accountID string, hasOrganization bool) *State {
	step := StepIdentity
	if hasOrganization {
		step = StepGoogle
	}
	return &State{
		AccountID:   accountID,
		CurrentStep: step,
		TotalSteps:  TotalSteps,
		UpdatedAt:   time.Now().UTC(),
	}
}

// Advance moves one step forward. Advancing past the last step reports
// completion instead of leaving the [1, TotalSteps] range.
func (s *State) Advance() (completed bool) {
	if s.CurrentStep >= s.TotalSteps {
		return true
	}
	s.CurrentStep++
	s.UpdatedAt = time.Now().UTC()
	return false
}

// Back moves one step backward, clamped at the first step. It has no side
// effects beyond the index change.
func (s *State) Back() {
	if s.CurrentStep > 1 {
		s.CurrentStep--
		s.UpdatedAt = time.Now().UTC()
	}
}

// Validate checks the identity step's required fields.
func (f ProfileFields) Validate() error {
	if strings.TrimSpace(f.FirstName) == "" {
		return fmt.Errorf("first name is required")
	}
	if strings.TrimSpace(f.LastName) == "" {
		return fmt.Errorf("last name is required")
	}
	return nil
}

// Validate checks the practice step's required fields. The domain is
// validated separately because it is sanitized first.
func (f PracticeFields) Validate() error {
	for _, field := range []struct{ name, value string }{
		{"practice name", f.PracticeName},
		{"street", f.Street},
		{"city", f.City},
		{"state", f.State},
		{"zip", f.Zip},
	} {
		if strings.TrimSpace(field.value) == "" {
			return fmt.Errorf("%s is required", field.name)
		}
	}
	return nil
}

// ValidateDomain sanitizes the raw domain input and checks its syntax,
// returning the canonical form.
func ValidateDomain(raw string) (string, error) {
	domain := domaincheck.Sanitize(raw)
	if !domaincheck.IsValidSyntax(domain) {
		return "", fmt.Errorf("domain %q is not valid", raw)
	}
	return domain, nil
}
