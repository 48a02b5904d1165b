package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/segmentio/kafka-go"

	"fly2any-growth/internal/domain"
	"fly2any-growth/internal/logger"
	"fly2any-growth/internal/observability"
)

// SourceKafka is the metrics label for KafkaSource.
const SourceKafka = "kafka"

// messageReader is the subset of *kafka.Reader used by KafkaSource.
type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// KafkaOptions configures a KafkaSource.
type KafkaOptions struct {
	Brokers []string
	Topic   string
	GroupID string
	Logger  *logger.Logger

	// RetryDelay is the pause after a read error. Default: 1s.
	RetryDelay time.Duration
	// Buffer is the capacity of the events channel. Default: 1000.
	Buffer int
}

// KafkaSource consumes JSON retention events from a Kafka topic as part of a consumer group.
// Offsets are committed by the reader as messages are read.
type KafkaSource struct {
	reader     messageReader
	topic      string
	log        *logger.Logger
	retryDelay time.Duration
	buffer     int
}

// NewKafkaSource creates a consumer-group reader for the topic.
func NewKafkaSource(opts KafkaOptions) (*KafkaSource, error) {
	if len(opts.Brokers) == 0 {
		return nil, fmt.Errorf("kafka source requires at least one broker")
	}
	if opts.GroupID == "" {
		return nil, fmt.Errorf("kafka source requires group id")
	}
	if opts.Topic == "" {
		return nil, fmt.Errorf("kafka source requires a topic")
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  opts.Brokers,
		GroupID:  opts.GroupID,
		Topic:    opts.Topic,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  500 * time.Millisecond,
	})
	return newKafkaSource(reader, opts), nil
}

func newKafkaSource(reader messageReader, opts KafkaOptions) *KafkaSource {
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = time.Second
	}
	if opts.Buffer <= 0 {
		opts.Buffer = 1000
	}
	return &KafkaSource{
		reader:     reader,
		topic:      opts.Topic,
		log:        logger.OrNop(opts.Logger).With("source", SourceKafka, "topic", opts.Topic),
		retryDelay: opts.RetryDelay,
		buffer:     opts.Buffer,
	}
}

// Name implements Source.
func (s *KafkaSource) Name() string { return SourceKafka }

// Subscribe starts reading. The reader is closed when ctx is cancelled.
func (s *KafkaSource) Subscribe(ctx context.Context) (<-chan domain.RetentionEvent, error) {
	out := make(chan domain.RetentionEvent, s.buffer)
	go s.run(ctx, out)
	s.log.Info("subscribed")
	return out, nil
}

func (s *KafkaSource) run(ctx context.Context, out chan<- domain.RetentionEvent) {
	defer close(out)
	defer s.reader.Close()

	for {
		msg, err := s.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			if errors.Is(err, io.EOF) {
				s.log.Warn("reader closed")
				return
			}
			observability.RecordReconnect(SourceKafka)
			s.log.Warn("read failed", "error", err, "retry_in", s.retryDelay)
			select {
			case <-ctx.Done():
				return
			case <-time.After(s.retryDelay):
			}
			continue
		}
		observability.RecordEventReceived(SourceKafka)

		ev, err := DecodeEvent(msg.Value)
		if err != nil {
			observability.RecordEventDecodeError(SourceKafka)
			s.log.Warn("dropping malformed event", "error", err, "partition", msg.Partition, "offset", msg.Offset)
			continue
		}

		select {
		case out <- ev:
		case <-ctx.Done():
			return
		}
	}
}
