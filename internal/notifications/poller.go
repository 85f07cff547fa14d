package notifications

import (
	"context"
	"time"

	"github.com/orthopulse/growth-platform/pkg/logging"
)

// Source reads the feed state the poller pushes.
type Source interface {
	List(ctx context.Context, orgID string, limit int) ([]Notification, error)
	UnreadCount(ctx context.Context, orgID string) (int, error)
}

// Sink receives feed snapshots for orgs with live subscribers.
type Sink interface {
	Subscribed() []string
	Push(snapshot Snapshot)
}

// Poller re-reads the feed for every subscribed org on a fixed interval
// and pushes the result. No backoff and no jitter: a slow read can overlap
// the next tick, which is an accepted staleness tradeoff, not a
// correctness concern.
type Poller struct {
	source   Source
	sink     Sink
	interval time.Duration
	logger   *logging.Logger
}

// NewPoller creates a feed poller.
func NewPoller(source Source, sink Sink, interval time.Duration, logger *logging.Logger) *Poller {
	if logger == nil {
		logger = logging.Default()
	}
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Poller{
		source:   source,
		sink:     sink,
		interval: interval,
		logger:   logger,
	}
}

// Run polls until the context is cancelled.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.Info("notification poller started", "interval", p.interval.String())

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("notification poller stopped")
			return
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

func (p *Poller) tick(ctx context.Context) {
	for _, orgID := range p.sink.Subscribed() {
		items, err := p.source.List(ctx, orgID, 0)
		if err != nil {
			p.logger.Warn("feed poll failed", "org_id", orgID, "error", err)
			continue
		}
		unread, err := p.source.UnreadCount(ctx, orgID)
		if err != nil {
			p.logger.Warn("unread poll failed", "org_id", orgID, "error", err)
			continue
		}
		p.sink.Push(Snapshot{
			OrgID:         orgID,
			Unread:        unread,
			Notifications: items,
			At:            time.Now().UTC(),
		})
	}
}
