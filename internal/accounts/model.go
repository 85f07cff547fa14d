// Package accounts stores practice-owner profiles. The presence of an
// organization id on a profile is the signal used to resume onboarding.
package accounts

import "time"

// Account is an authenticated practice owner's profile.
type Account struct {
	ID              string    `json:"id"`
	Email           string    `json:"email"`
	FirstName       string    `json:"first_name,omitempty"`
	LastName        string    `json:"last_name,omitempty"`
	BusinessPhone   string    `json:"business_phone,omitempty"`
	OrganizationID  string    `json:"organization_id,omitempty"`
	GoogleConnected bool      `json:"google_connected"`
	BillingStatus   string    `json:"billing_status,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// HasOrganization reports whether practice registration already completed.
func (a *Account) HasOrganization() bool {
	return a != nil && a.OrganizationID != ""
}
