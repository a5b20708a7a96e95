//go:build integration

package outbox_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	"nuca/internal/audit"
	"nuca/internal/audit/outbox"
	"nuca/internal/platform/kafka/producer"
	"nuca/pkg/testutil/containers"
)

const testTopic = "audit.entries.test"

type OutboxWorkerSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	kafka    *containers.KafkaContainer
	producer *producer.Producer
}

func TestOutboxWorkerSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(OutboxWorkerSuite))
}

func (s *OutboxWorkerSuite) SetupSuite() {
	ctx := context.Background()
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.kafka = mgr.GetKafka(s.T())

	s.Require().NoError(s.kafka.CreateTopic(ctx, testTopic, 1, 1))

	prod, err := producer.New(producer.DefaultConfig(s.kafka.Brokers), slog.Default())
	s.Require().NoError(err)
	s.producer = prod
	s.T().Cleanup(func() { _ = prod.Close() })
}

func (s *OutboxWorkerSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(), "audit_outbox", "audit_entries")
	s.Require().NoError(err)
}

// An appended entry flows through the outbox to Kafka and the row is settled.
func (s *OutboxWorkerSuite) TestAppendedEntryReachesKafka() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := audit.NewPostgresStore(s.postgres.DB)
	publisher := audit.NewPublisher(store)

	userID := uuid.New()
	err := publisher.Emit(ctx, audit.Entry{
		UserID:       userID,
		Action:       audit.ActionConsentChanged,
		ResourceType: "consent",
		Actor:        userID.String(),
	}, map[string]any{"consent_type": "health_data_processing", "granted": true})
	s.Require().NoError(err)

	worker := outbox.New(
		outbox.NewPostgresStore(s.postgres.DB),
		s.producer,
		testTopic,
		slog.Default(),
		outbox.WithPollInterval(100*time.Millisecond),
	)
	go func() { _ = worker.Run(ctx) }()

	consumer, err := s.kafka.NewConsumer(ctx, "outbox-worker-test", testTopic)
	s.Require().NoError(err)
	defer consumer.Close()

	record := s.kafka.WaitForMessage(ctx, consumer, 30*time.Second, func(r *kgo.Record) bool {
		return true
	})
	s.Require().NotNil(record, "expected the audit entry on the topic")

	var payload struct {
		UserID string `json:"user_id"`
		Action string `json:"action"`
		Digest string `json:"detail_digest"`
	}
	s.Require().NoError(json.Unmarshal(record.Value, &payload))
	s.Equal(userID.String(), payload.UserID)
	s.Equal(string(audit.ActionConsentChanged), payload.Action)
	s.NotEmpty(payload.Digest)
	s.NotContains(string(record.Value), "health_data_processing",
		"published payload must carry the digest, not the detail")

	// The worker settles the row once published.
	s.Require().Eventually(func() bool {
		var pending int
		row := s.postgres.QueryRow(ctx, `SELECT COUNT(*) FROM audit_outbox WHERE processed_at IS NULL`)
		if err := row.Scan(&pending); err != nil {
			return false
		}
		return pending == 0
	}, 10*time.Second, 200*time.Millisecond)
}

// A failed publish leaves the row unprocessed so the next poll retries it.
func (s *OutboxWorkerSuite) TestUnprocessedRowsSurviveRestart() {
	ctx := context.Background()

	store := audit.NewPostgresStore(s.postgres.DB)
	publisher := audit.NewPublisher(store)

	err := publisher.Emit(ctx, audit.Entry{
		UserID: uuid.New(),
		Action: audit.ActionErasureCompleted,
		Actor:  "system",
	}, nil)
	s.Require().NoError(err)

	rows, err := outbox.NewPostgresStore(s.postgres.DB).FetchUnprocessed(ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(rows, 1)
	s.NotEqual(uuid.Nil, rows[0].EntryID)
}
