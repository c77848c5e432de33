package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/sony/gobreaker"

	"github.com/couchcryptid/borehole-data-service/internal/config"
	"github.com/couchcryptid/borehole-data-service/internal/domain"
)

// messageWriter is the subset of *kafkago.Writer used by Writer.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer publishes enriched readings to the sink topic.
// It implements pipeline.BatchLoader.
type Writer struct {
	writer  messageWriter
	topic   string
	breaker *gobreaker.CircuitBreaker
	logger  *slog.Logger
}

// NewWriter creates a Kafka producer for the configured sink topic.
// Messages are keyed by borehole id so one borehole stays on one partition.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSinkTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return newWriter(w, cfg.KafkaSinkTopic, cfg.SinkBreakerFailures, cfg.SinkBreakerTimeout, logger)
}

func newWriter(w messageWriter, topic string, failures int, timeout time.Duration, logger *slog.Logger) *Writer {
	if failures <= 0 {
		failures = 5
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "kafka-sink:" + topic,
		Timeout: timeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= uint32(failures)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("sink circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return &Writer{writer: w, topic: topic, breaker: breaker, logger: logger}
}

// LoadBatch publishes the readings in a single WriteMessages call. While the
// breaker is open it fails fast with gobreaker.ErrOpenState.
func (w *Writer) LoadBatch(ctx context.Context, events []domain.ReadingEvent) error {
	if len(events) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(events))
	for i := range events {
		msg, err := serializeToMessage(events[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}

	_, err := w.breaker.Execute(func() (interface{}, error) {
		return nil, w.writer.WriteMessages(ctx, msgs...)
	})
	if err != nil {
		return fmt.Errorf("publish %d readings: %w", len(msgs), err)
	}
	w.logger.Debug("readings published", "count", len(msgs), "topic", w.topic)
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

func serializeToMessage(event domain.ReadingEvent) (kafkago.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize reading %s: %w", event.ID, err)
	}
	return kafkago.Message{
		Key:   []byte(event.BoreholeID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "borehole_id", Value: []byte(event.BoreholeID)},
			{Key: "blow_count", Value: []byte(strconv.Itoa(event.BlowCount))},
			{Key: "processed_at", Value: []byte(event.ProcessedAt.Format(time.RFC3339))},
		},
	}, nil
}
