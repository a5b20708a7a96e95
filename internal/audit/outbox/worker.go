package outbox

import (
	"context"
	"log/slog"
	"time"

	"nuca/internal/platform/kafka/producer"
)

// Producer is the publishing surface the worker needs; satisfied by the
// Kafka producer and by fakes in tests.
type Producer interface {
	Produce(ctx context.Context, msg *producer.Message) error
}

// Worker polls the outbox table and publishes committed audit entries to
// Kafka. Publication is at-least-once: a row published but not marked
// processed is re-published, and consumers dedupe on entry ID.
type Worker struct {
	store        Store
	producer     Producer
	topic        string
	batchSize    int
	pollInterval time.Duration
	logger       *slog.Logger
}

// Option configures the Worker.
type Option func(*Worker)

// WithBatchSize sets the maximum number of rows to fetch per poll.
func WithBatchSize(size int) Option {
	return func(w *Worker) {
		if size > 0 {
			w.batchSize = size
		}
	}
}

// WithPollInterval sets the interval between polls.
func WithPollInterval(interval time.Duration) Option {
	return func(w *Worker) {
		if interval > 0 {
			w.pollInterval = interval
		}
	}
}

// New creates a new outbox worker publishing to the given topic.
func New(store Store, prod Producer, topic string, logger *slog.Logger, opts ...Option) *Worker {
	w := &Worker{
		store:        store,
		producer:     prod,
		topic:        topic,
		batchSize:    100,
		pollInterval: time.Second,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run polls until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.poll(ctx)
		}
	}
}

// poll fetches and publishes one batch.
func (w *Worker) poll(ctx context.Context) {
	rows, err := w.store.FetchUnprocessed(ctx, w.batchSize)
	if err != nil {
		w.logger.ErrorContext(ctx, "failed to fetch outbox rows", "error", err)
		return
	}

	for _, row := range rows {
		msg := &producer.Message{
			Topic: w.topic,
			Key:   []byte(row.EntryID.String()),
			Value: row.Payload,
		}
		if err := w.producer.Produce(ctx, msg); err != nil {
			w.logger.ErrorContext(ctx, "failed to publish outbox row",
				"id", row.ID,
				"entry_id", row.EntryID,
				"error", err,
			)
			// Retried on the next poll.
			continue
		}

		if err := w.store.MarkProcessed(ctx, row.ID, time.Now()); err != nil {
			w.logger.ErrorContext(ctx, "failed to mark outbox row processed",
				"id", row.ID,
				"error", err,
			)
			// Published but unmarked: re-published next poll, consumers dedupe.
		}
	}
}
