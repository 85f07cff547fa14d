package notify

import (
	"context"
	"fmt"

	"github.com/orthopulse/growth-platform/internal/notifications"
	"github.com/orthopulse/growth-platform/pkg/logging"
)

// FeedWriter appends items to an organization's notification feed.
type FeedWriter interface {
	Insert(ctx context.Context, n *notifications.Notification) error
}

// Service sends operator-facing notifications for onboarding milestones:
// an email where one is warranted, plus a feed item the dashboard surfaces.
type Service struct {
	email  EmailSender
	feed   FeedWriter
	appURL string
	logger *logging.Logger
}

// NewService creates a notification service.
func NewService(email EmailSender, feed FeedWriter, appURL string, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		email:  email,
		feed:   feed,
		appURL: appURL,
		logger: logger,
	}
}

// OnOrganizationCreated welcomes the practice after its organization record
// exists. Email failures are logged but do not fail the onboarding call
// that triggered them.
func (s *Service) OnOrganizationCreated(ctx context.Context, orgID, practiceName, toEmail, toName string) error {
	if s.feed != nil {
		item := &notifications.Notification{
			OrgID: orgID,
			Kind:  notifications.KindSystem,
			Title: "Welcome to OrthoPulse",
			Body:  fmt.Sprintf("%s is registered. Connect your Google Business Profile to start tracking growth.", practiceName),
		}
		if err := s.feed.Insert(ctx, item); err != nil {
			return fmt.Errorf("notify: write welcome feed item: %w", err)
		}
	}

	if s.email == nil || toEmail == "" {
		return nil
	}

	msg := EmailMessage{
		To:      toEmail,
		ToName:  toName,
		Subject: fmt.Sprintf("Welcome to OrthoPulse, %s", practiceName),
		Body: fmt.Sprintf(
			"Hi %s,\n\nYour practice %s is set up on OrthoPulse.\n\n"+
				"Next step: connect your Google Business Profile so we can start measuring your local visibility.\n\n%s\n",
			toName, practiceName, s.appURL),
	}
	if err := s.email.Send(ctx, msg); err != nil {
		s.logger.Error("welcome email failed", "org_id", orgID, "error", err)
	}
	return nil
}

// OnGoogleConnected records the connection milestone in the feed.
func (s *Service) OnGoogleConnected(ctx context.Context, orgID string) error {
	if s.feed == nil {
		return nil
	}
	item := &notifications.Notification{
		OrgID: orgID,
		Kind:  notifications.KindSystem,
		Title: "Google Business Profile connected",
		Body:  "Location data will appear on your dashboard shortly.",
	}
	if err := s.feed.Insert(ctx, item); err != nil {
		return fmt.Errorf("notify: write connection feed item: %w", err)
	}
	return nil
}

// OnBillingActivated confirms the subscription after the billing webhook
// reports checkout completion.
func (s *Service) OnBillingActivated(ctx context.Context, orgID, toEmail, toName string) error {
	if s.feed != nil {
		item := &notifications.Notification{
			OrgID: orgID,
			Kind:  notifications.KindBilling,
			Title: "Subscription active",
			Body:  "Your OrthoPulse subscription is active. Onboarding is complete.",
		}
		if err := s.feed.Insert(ctx, item); err != nil {
			return fmt.Errorf("notify: write billing feed item: %w", err)
		}
	}

	if s.email == nil || toEmail == "" {
		return nil
	}

	msg := EmailMessage{
		To:      toEmail,
		ToName:  toName,
		Subject: "Your OrthoPulse subscription is active",
		Body: fmt.Sprintf(
			"Hi %s,\n\nThanks for subscribing. Your growth dashboard is live:\n\n%s\n",
			toName, s.appURL),
	}
	if err := s.email.Send(ctx, msg); err != nil {
		s.logger.Error("billing email failed", "org_id", orgID, "error", err)
	}
	return nil
}
