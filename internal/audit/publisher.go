package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	dErrors "nuca/pkg/domain-errors"
)

// Publisher captures structured audit entries. It is append-only and uses the
// storage layer for persistence so tests can swap sinks easily. An append
// failure is a failure of the governing operation itself: no sensitive
// operation completes without its audit trail.
type Publisher struct {
	store   Store
	appends prometheus.Counter
}

// PublisherOption configures the Publisher.
type PublisherOption func(*Publisher)

// WithAppendCounter attaches a counter incremented per persisted entry.
func WithAppendCounter(c prometheus.Counter) PublisherOption {
	return func(p *Publisher) {
		p.appends = c
	}
}

func NewPublisher(store Store, opts ...PublisherOption) *Publisher {
	p := &Publisher{store: store}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Emit persists one entry, assigning ID and timestamp and digesting the
// operation detail. It must be called inside the same unit of work as the
// action it documents.
func (p *Publisher) Emit(ctx context.Context, entry Entry, detail map[string]any) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.OccurredAt.IsZero() {
		entry.OccurredAt = time.Now().UTC()
	}
	if entry.DetailDigest == "" {
		entry.DetailDigest = Digest(detail)
	}
	if err := p.store.Append(ctx, entry); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "audit append failed")
	}
	if p.appends != nil {
		p.appends.Inc()
	}
	return nil
}

// List returns a user's audit trail, newest first.
func (p *Publisher) List(ctx context.Context, userID uuid.UUID) ([]Entry, error) {
	return p.store.ListByUser(ctx, userID)
}
