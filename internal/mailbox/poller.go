package mailbox

import (
	"context"
	"time"

	"invoicing_backend/platform/config"
	"invoicing_backend/platform/logger"
)

// Enqueuer hands a fetched message to the task queue. Enqueueing the same
// UID twice must be a no-op so overlapping polls stay harmless.
type Enqueuer interface {
	EnqueueInboundEmail(ctx context.Context, msg Message) error
}

// Fetcher is implemented by the IMAP client; split out for tests.
type Fetcher interface {
	FetchUnread() ([]Message, error)
}

// Poller periodically drains unread mail into the task queue. It never
// marks messages seen itself; that happens after processing succeeds.
type Poller struct {
	fetcher  Fetcher
	enqueuer Enqueuer
	interval time.Duration
	log      *logger.Logger
}

func NewPoller(fetcher Fetcher, enqueuer Enqueuer, cfg config.MailboxConfig, log *logger.Logger) *Poller {
	return &Poller{
		fetcher:  fetcher,
		enqueuer: enqueuer,
		interval: cfg.GetMailboxPollInterval(),
		log:      log,
	}
}

// Run polls until the context is cancelled.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.pollOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.pollOnce(ctx)
		}
	}
}

func (p *Poller) pollOnce(ctx context.Context) {
	messages, err := p.fetcher.FetchUnread()
	if err != nil {
		p.log.Error("mailbox poll failed", "error", err)
		return
	}
	for _, msg := range messages {
		if err := p.enqueuer.EnqueueInboundEmail(ctx, msg); err != nil {
			p.log.Error("enqueue inbound email failed", "uid", msg.UID, "error", err)
		}
	}
	if len(messages) > 0 {
		p.log.Info("mailbox poll", "unread", len(messages))
	}
}
