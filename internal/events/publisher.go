package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/example/webhook-router/internal/submission"
)

// SubmissionProcessed is the activity event emitted after a submission
// has been ingested and fanned out. Consumers (dashboard activity feed)
// read it off Kafka; delivery is best-effort.
type SubmissionProcessed struct {
	SubmissionID string                        `json:"submission_id"`
	ConnectorID  string                        `json:"connector_id"`
	Results      map[string]submission.Outcome `json:"results"`
	ProcessedAt  time.Time                     `json:"processed_at"`
}

type KafkaPublisher struct {
	Writer *kafka.Writer
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		Writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.Hash{},
		},
	}
}

func (p *KafkaPublisher) SubmissionProcessed(ctx context.Context, event SubmissionProcessed) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal submission event: %w", err)
	}
	return p.Writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.ConnectorID + ":" + event.SubmissionID),
		Value: payload,
	})
}

func (p *KafkaPublisher) Close() error {
	return p.Writer.Close()
}
