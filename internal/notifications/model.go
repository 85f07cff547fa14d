package notifications

import "time"

// Notification kinds surfaced to the practice dashboard.
const (
	KindReview  = "review"
	KindRanking = "ranking"
	KindBilling = "billing"
	KindSystem  = "system"
)

// Notification is one item in an organization's notification feed.
type Notification struct {
	ID        string    `json:"id"`
	OrgID     string    `json:"orgId"`
	Kind      string    `json:"kind"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
}
