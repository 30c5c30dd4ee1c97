// Package kafka streams sealed audit entries to a Kafka topic for
// downstream compliance consumers. Produces are fire-and-forget: delivery
// failures are logged, never surfaced to the request path.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"quoin/internal/audit"
	"quoin/internal/platform/config"
)

// Publisher implements audit.Sink over a Kafka topic. Entries are keyed
// by tenant so one tenant's trail stays ordered within a partition.
type Publisher struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithLogger sets the logger for delivery failures.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// New connects to the brokers and ensures the audit topic exists with
// broker-default partitioning.
func New(ctx context.Context, cfg config.KafkaConfig, opts ...Option) (*Publisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	p := &Publisher{client: client, topic: cfg.AuditTopic}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.New(slog.DiscardHandler)
	}

	if err := p.ensureTopic(ctx); err != nil {
		client.Close()
		return nil, err
	}
	return p, nil
}

func (p *Publisher) ensureTopic(ctx context.Context) error {
	adm := kadm.NewClient(p.client)
	resp, err := adm.CreateTopics(ctx, -1, -1, nil, p.topic)
	if err != nil {
		return fmt.Errorf("create audit topic: %w", err)
	}
	for _, ctr := range resp {
		if ctr.Err != nil && !errors.Is(ctr.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create audit topic %s: %w", ctr.Topic, ctr.Err)
		}
	}
	return nil
}

// Append produces one record per entry. Marshal and delivery failures are
// logged and dropped; the stream is a secondary sink and must never stall
// the dispatch worker.
func (p *Publisher) Append(ctx context.Context, entries []audit.Entry) error {
	for _, e := range entries {
		payload, err := json.Marshal(e)
		if err != nil {
			p.logger.Error("audit entry marshal failed",
				"event_id", e.EventID.String(),
				"error", err,
			)
			continue
		}

		var key []byte
		if e.TenantID != "" {
			key = []byte(e.TenantID)
		}

		record := &kgo.Record{Topic: p.topic, Key: key, Value: payload}
		p.client.Produce(ctx, record, func(r *kgo.Record, err error) {
			if err != nil {
				p.logger.Error("audit record delivery failed",
					"topic", r.Topic,
					"error", err,
				)
			}
		})
	}
	return nil
}

// Close flushes buffered records and releases the client.
func (p *Publisher) Close(ctx context.Context) error {
	defer p.client.Close()
	if err := p.client.Flush(ctx); err != nil {
		return fmt.Errorf("flush audit records: %w", err)
	}
	return nil
}
