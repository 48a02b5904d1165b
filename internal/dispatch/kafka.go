package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"fly2any-growth/internal/domain"
)

// messageWriter is the subset of *kafka.Writer used here.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaDispatcher publishes flows to a topic for downstream delivery services.
// Messages are keyed by user ID so per-user order is kept within a partition.
type KafkaDispatcher struct {
	writer messageWriter
	topic  string
}

// NewKafkaDispatcher creates a new KafkaDispatcher.
func NewKafkaDispatcher(brokers []string, topic string) (*KafkaDispatcher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka dispatcher requires at least one broker")
	}
	if topic == "" {
		return nil, fmt.Errorf("kafka dispatcher requires a topic")
	}
	return &KafkaDispatcher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			RequiredAcks: kafka.RequireAll,
			Balancer:     &kafka.Hash{},
		},
		topic: topic,
	}, nil
}

// flowMessage is the published payload.
type flowMessage struct {
	Kind  string               `json:"kind"`
	Email string               `json:"email,omitempty"`
	Flow  domain.RetentionFlow `json:"flow"`
}

func (d *KafkaDispatcher) SendEmail(ctx context.Context, f domain.RetentionFlow, email string) error {
	return d.publish(ctx, flowMessage{Kind: "email", Email: email, Flow: f})
}

func (d *KafkaDispatcher) SendPush(ctx context.Context, f domain.RetentionFlow) error {
	return d.publish(ctx, flowMessage{Kind: "push", Flow: f})
}

func (d *KafkaDispatcher) SendInApp(ctx context.Context, f domain.RetentionFlow) error {
	return d.publish(ctx, flowMessage{Kind: "in_app", Flow: f})
}

func (d *KafkaDispatcher) RecordAlert(ctx context.Context, f domain.RetentionFlow) error {
	return d.publish(ctx, flowMessage{Kind: "alert", Flow: f})
}

func (d *KafkaDispatcher) publish(ctx context.Context, msg flowMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal flow: %w", err)
	}
	err = d.writer.WriteMessages(ctx, kafka.Message{
		Topic: d.topic,
		Key:   []byte(msg.Flow.UserID),
		Value: payload,
		Time:  time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("publish %s flow %s: %w", msg.Kind, msg.Flow.FlowID, err)
	}
	return nil
}

// Close flushes and closes the writer.
func (d *KafkaDispatcher) Close() error {
	return d.writer.Close()
}

var _ Dispatcher = (*KafkaDispatcher)(nil)
