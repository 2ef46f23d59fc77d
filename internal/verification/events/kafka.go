package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"patientflow/internal/verification/models"
	"patientflow/pkg/platform/sentinel"
)

// Producer is the part of *kgo.Client the publisher uses.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// KafkaPublisher writes events as JSON records keyed by session ID.
type KafkaPublisher struct {
	producer Producer
	topic    string
	breaker  *CircuitBreaker
	timeout  time.Duration
	logger   *slog.Logger
}

type KafkaOption func(*KafkaPublisher)

func WithBreaker(cb *CircuitBreaker) KafkaOption {
	return func(p *KafkaPublisher) {
		if cb != nil {
			p.breaker = cb
		}
	}
}

func WithProduceTimeout(d time.Duration) KafkaOption {
	return func(p *KafkaPublisher) {
		if d > 0 {
			p.timeout = d
		}
	}
}

func WithKafkaLogger(logger *slog.Logger) KafkaOption {
	return func(p *KafkaPublisher) {
		if logger != nil {
			p.logger = logger
		}
	}
}

func NewKafkaPublisher(producer Producer, topic string, opts ...KafkaOption) *KafkaPublisher {
	p := &KafkaPublisher{
		producer: producer,
		topic:    topic,
		breaker:  NewCircuitBreaker(5, 30*time.Second),
		timeout:  5 * time.Second,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewKafkaClient builds a franz-go client producing to topic by default.
func NewKafkaClient(brokers []string, topic string) (*kgo.Client, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProducerLinger(10*time.Millisecond),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return client, nil
}

func (p *KafkaPublisher) Publish(ctx context.Context, e models.VerificationEvent) error {
	value, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	// every admitted call must record its result, or a half-open trial
	// would never settle
	if !p.breaker.Allow() {
		return fmt.Errorf("kafka publish skipped, circuit open: %w", sentinel.ErrUnavailable)
	}
	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(e.SessionID.String()),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "outcome", Value: []byte(e.Outcome)},
			{Key: "event_id", Value: []byte(e.EventID)},
		},
		Timestamp: e.OccurredAt,
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	if err := p.producer.ProduceSync(ctx, record).FirstErr(); err != nil {
		p.breaker.RecordFailure()
		if p.breaker.IsOpen() {
			p.logger.WarnContext(ctx, "kafka publisher circuit opened", "topic", p.topic, "error", err)
		}
		return fmt.Errorf("produce event: %w", err)
	}
	p.breaker.RecordSuccess()
	return nil
}
