//go:build integration

package kafka_test

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	"quoin/internal/audit"
	"quoin/internal/audit/publisher/kafka"
	"quoin/internal/platform/config"
	"quoin/pkg/testutil/containers"
)

type captureSink struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (s *captureSink) Append(_ context.Context, entries []audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entries...)
	return nil
}

type KafkaPublisherSuite struct {
	suite.Suite
	redpanda *containers.RedpandaContainer
}

func TestKafkaPublisherSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(KafkaPublisherSuite))
}

func (s *KafkaPublisherSuite) SetupSuite() {
	s.redpanda = containers.GetManager().GetRedpanda(s.T())
}

// kafkaConfig builds a per-test topic so suites sharing the container
// never read each other's records.
func (s *KafkaPublisherSuite) kafkaConfig() config.KafkaConfig {
	return config.KafkaConfig{
		Brokers:    s.redpanda.Brokers,
		AuditTopic: "quoin.audit." + uuid.NewString()[:8],
	}
}

// seal runs entries through a real recorder so the published records carry
// sequence numbers and chained hashes.
func (s *KafkaPublisherSuite) seal(entries ...audit.Entry) []audit.Entry {
	sink := &captureSink{}
	rec := audit.NewRecorder(config.AuditConfig{
		Profile:       "detailed",
		BufferSize:    len(entries) + 1,
		BatchSize:     len(entries),
		FlushInterval: time.Hour,
	}, audit.WithSink("capture", sink))

	for _, e := range entries {
		rec.Record(e)
	}
	rec.Close()

	s.Require().Len(sink.entries, len(entries))
	return sink.entries
}

// consume reads want records from the topic, failing the test on timeout.
func (s *KafkaPublisherSuite) consume(cfg config.KafkaConfig, want int) []*kgo.Record {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ConsumeTopics(cfg.AuditTopic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	s.Require().NoError(err)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var records []*kgo.Record
	for len(records) < want {
		fetches := client.PollFetches(ctx)
		s.Require().Empty(fetches.Errors(), "poll must not fail before all records arrive")
		fetches.EachRecord(func(r *kgo.Record) {
			records = append(records, r)
		})
	}
	return records
}

func (s *KafkaPublisherSuite) TestPublishedEntriesRoundTrip() {
	ctx := context.Background()
	cfg := s.kafkaConfig()
	tenantID := uuid.NewString()

	pub, err := kafka.New(ctx, cfg)
	s.Require().NoError(err)

	sealed := s.seal(
		audit.Entry{TenantID: tenantID, Action: audit.ActionRead, Resource: "estimates", Method: "GET", Path: "/api/estimates", StatusCode: 200, CorrelationID: "corr-k-1"},
		audit.Entry{TenantID: tenantID, Action: audit.ActionCreate, Resource: "bids", Method: "POST", Path: "/api/bids", StatusCode: 201, CorrelationID: "corr-k-2"},
		audit.Entry{TenantID: tenantID, Action: audit.ActionDelete, Resource: "bids", Method: "DELETE", Path: "/api/bids/7", StatusCode: 204, CorrelationID: "corr-k-3"},
	)
	s.Require().NoError(pub.Append(ctx, sealed))
	s.Require().NoError(pub.Close(ctx), "close must flush buffered records")

	records := s.consume(cfg, len(sealed))
	s.Require().Len(records, len(sealed))

	var consumed []audit.Entry
	for _, r := range records {
		s.Equal(tenantID, string(r.Key), "records must be keyed by tenant")

		var e audit.Entry
		s.Require().NoError(json.Unmarshal(r.Value, &e))
		consumed = append(consumed, e)
	}

	// The JSON round trip is byte-stable, so the full chain still verifies.
	sort.Slice(consumed, func(i, j int) bool { return consumed[i].Sequence < consumed[j].Sequence })
	s.Require().NoError(audit.VerifyChain(consumed))

	s.Equal(audit.ActionRead, consumed[0].Action)
	s.Equal("corr-k-3", consumed[2].CorrelationID)
}

func (s *KafkaPublisherSuite) TestTopicCreationIsIdempotent() {
	ctx := context.Background()
	cfg := s.kafkaConfig()

	first, err := kafka.New(ctx, cfg)
	s.Require().NoError(err)
	s.Require().NoError(first.Close(ctx))

	second, err := kafka.New(ctx, cfg)
	s.Require().NoError(err, "existing topic must not fail publisher construction")
	s.Require().NoError(second.Close(ctx))
}

func (s *KafkaPublisherSuite) TestEntriesWithoutTenantPublishUnkeyed() {
	ctx := context.Background()
	cfg := s.kafkaConfig()

	pub, err := kafka.New(ctx, cfg)
	s.Require().NoError(err)

	sealed := s.seal(audit.Entry{
		Action:     "GET" + audit.FailedSuffix,
		Resource:   "estimates",
		Method:     "GET",
		Path:       "/api/estimates",
		StatusCode: 401,
		ErrorCode:  "AUTH_TOKEN_EXPIRED",
	})
	s.Require().NoError(pub.Append(ctx, sealed))
	s.Require().NoError(pub.Close(ctx))

	records := s.consume(cfg, 1)
	s.Require().Len(records, 1)
	s.Nil(records[0].Key, "anonymous rejections carry no tenant key")

	var e audit.Entry
	s.Require().NoError(json.Unmarshal(records[0].Value, &e))
	s.Equal("AUTH_TOKEN_EXPIRED", e.ErrorCode)
	s.Equal(401, e.StatusCode)
}
