package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	dErrors "chronocert/pkg/domain-errors"
)

// KafkaPublisher emits audit events to a Kafka topic. Produces are
// asynchronous; a failed delivery is logged, never surfaced to the caller,
// so auditing cannot block certification.
type KafkaPublisher struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

// NewKafkaPublisher connects to the given brokers and ensures the topic
// exists, creating it with broker defaults when missing.
func NewKafkaPublisher(ctx context.Context, brokers []string, topic string, logger *slog.Logger) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "at least one broker is required")
	}
	if topic == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "topic is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
		kgo.RecordRetries(3),
	)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "connect to kafka")
	}

	adm := kadm.NewClient(client)
	resp, err := adm.CreateTopic(ctx, -1, -1, nil, topic)
	if err != nil {
		client.Close()
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "create audit topic")
	}
	if resp.Err != nil && resp.Err != kerr.TopicAlreadyExists {
		client.Close()
		return nil, dErrors.Wrap(resp.Err, dErrors.CodeUnavailable, "create audit topic")
	}

	return &KafkaPublisher{client: client, topic: topic, logger: logger}, nil
}

// Emit serializes the event and produces it keyed by action so that
// events of one kind stay ordered within a partition.
func (p *KafkaPublisher) Emit(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "marshal audit event")
	}

	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(event.Action),
		Value: payload,
	}
	p.client.Produce(ctx, record, func(_ *kgo.Record, err error) {
		if err != nil {
			p.logger.Error("audit event delivery failed",
				"action", event.Action,
				"error", err)
		}
	})
	return nil
}

// Close flushes pending produces and releases the client.
func (p *KafkaPublisher) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.client.Flush(ctx); err != nil {
		p.logger.Warn("flush on close", "error", err)
	}
	p.client.Close()
}

var _ Publisher = (*KafkaPublisher)(nil)
