// Package organizations creates and stores practice organizations. An
// organization exists once practice/domain registration succeeds; its id is
// the signal downstream steps key off.
package organizations

import "time"

// Organization is a registered dental/orthodontic practice.
type Organization struct {
	ID           string    `json:"id"`
	PracticeName string    `json:"practice_name"`
	Street       string    `json:"street,omitempty"`
	City         string    `json:"city,omitempty"`
	State        string    `json:"state,omitempty"`
	Zip          string    `json:"zip,omitempty"`
	DomainName   string    `json:"domain_name"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// CreateParams carries the validated practice/domain registration fields.
type CreateParams struct {
	PracticeName string `json:"practice_name"`
	Street       string `json:"street"`
	City         string `json:"city"`
	State        string `json:"state"`
	Zip          string `json:"zip"`
	DomainName   string `json:"domain_name"`
}
