//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/borehole-data-service/internal/adapter/kafka"
	"github.com/couchcryptid/borehole-data-service/internal/config"
	"github.com/couchcryptid/borehole-data-service/internal/domain"
	"github.com/couchcryptid/borehole-data-service/internal/observability"
	"github.com/couchcryptid/borehole-data-service/internal/pipeline"
	"github.com/couchcryptid/borehole-data-service/internal/store"
)

const (
	testSourceTopic = "test-source"
	testSinkTopic   = "test-sink"
)

// enrichedMessage holds a deserialized message read from the sink topic.
type enrichedMessage struct {
	Event   domain.ReadingEvent
	Key     string
	Headers map[string]string
}

func readEnriched(ctx context.Context, t *testing.T, consumer *kafkago.Reader) enrichedMessage {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from sink topic")

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	var event domain.ReadingEvent
	require.NoError(t, json.Unmarshal(msg.Value, &event), "unmarshal sink message")

	return enrichedMessage{Event: event, Key: string(msg.Key), Headers: headers}
}

func testConfig(broker, group string) *config.Config {
	return &config.Config{
		KafkaBrokers:       []string{broker},
		KafkaSourceTopic:   testSourceTopic,
		KafkaSinkTopic:     testSinkTopic,
		KafkaGroupID:       fmt.Sprintf("%s-%d", group, time.Now().UnixNano()),
		BatchFlushInterval: 5 * time.Second,
	}
}

func publishReadings(ctx context.Context, t *testing.T, broker string, extra ...kafkago.Message) []domain.RawReading {
	t.Helper()
	readings := loadMockData(t)
	base := time.Date(2024, time.April, 26, 9, 0, 0, 0, time.UTC)

	producer := &kafkago.Writer{Addr: kafkago.TCP(broker), Topic: testSourceTopic}
	t.Cleanup(func() { _ = producer.Close() })

	msgs := append([]kafkago.Message(nil), extra...)
	for i, rd := range readings {
		payload, err := json.Marshal(rd)
		require.NoError(t, err)
		msgs = append(msgs, kafkago.Message{
			Key:   []byte(rd.BoreholeID),
			Value: payload,
			Time:  base.Add(time.Duration(i) * time.Minute),
		})
	}
	require.NoError(t, producer.WriteMessages(ctx, msgs...))
	return readings
}

func sinkConsumer(t *testing.T, broker string) *kafkago.Reader {
	t.Helper()
	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testSinkTopic,
		GroupID:     fmt.Sprintf("test-sink-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })
	return consumer
}

// TestKafkaReaderWriter round-trips one reading through the adapters.
func TestKafkaReaderWriter(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSourceTopic)
	createTopic(t, broker, testSinkTopic)
	cfg := testConfig(broker, "test-reader")

	publishReadings(ctx, t, broker)

	// Retry because the consumer group may need time to rebalance before
	// partitions are assigned.
	reader := kafka.NewReader(cfg, discardLogger())
	t.Cleanup(func() { _ = reader.Close() })

	var batch []domain.RawEvent
	for {
		var err error
		batch, err = reader.ExtractBatch(ctx, 1)
		require.NoError(t, err)
		if len(batch) > 0 {
			break
		}
		if ctx.Err() != nil {
			t.Fatal("timed out waiting for message from source topic")
		}
	}
	require.Len(t, batch, 1)
	raw := batch[0]
	assert.Equal(t, []byte("BH-1"), raw.Key)
	assert.Equal(t, testSourceTopic, raw.Topic)
	require.NotNil(t, raw.Commit, "commit callback should be set")
	require.NoError(t, raw.Commit(ctx))

	event, err := pipeline.NewTransformer(domain.ValidationPolicy{}, discardLogger()).Transform(ctx, raw)
	require.NoError(t, err)

	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })
	require.NoError(t, writer.LoadBatch(ctx, []domain.ReadingEvent{event}))

	em := readEnriched(ctx, t, sinkConsumer(t, broker))
	assert.Equal(t, "BH-1", em.Key)
	assert.Equal(t, "BH-1", em.Headers["borehole_id"])
	assert.Equal(t, "12", em.Headers["blow_count"])
	_, err = time.Parse(time.RFC3339, em.Headers["processed_at"])
	assert.NoError(t, err, "processed_at should be valid RFC3339")

	assert.Equal(t, 1.5, em.Event.Depth)
	assert.Equal(t, 12, em.Event.BlowCount)
	assert.Equal(t, "P-1", em.Event.PointID)
}

// TestPipelineEndToEnd runs reader, transformer and a fan-out into the
// registry and the sink topic.
func TestPipelineEndToEnd(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSourceTopic)
	createTopic(t, broker, testSinkTopic)
	cfg := testConfig(broker, "test-pipeline")

	readings := publishReadings(ctx, t, broker)

	metrics := observability.NewMetricsForTesting()
	registry := store.NewRegistry(domain.ValidationPolicy{}, discardLogger(), metrics)
	require.NoError(t, registry.RegisterPoint(domain.NewSpatialPoint("P-1", 100, 200)))

	reader := kafka.NewReader(cfg, discardLogger())
	t.Cleanup(func() { _ = reader.Close() })
	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	p := pipeline.New(reader, pipeline.NewTransformer(domain.ValidationPolicy{}, discardLogger()),
		pipeline.FanOut(registry, writer), discardLogger(), metrics, 50)

	pipelineCtx, pipelineCancel := context.WithCancel(ctx)
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(pipelineCtx) }()

	consumer := sinkConsumer(t, broker)
	counts := map[string][]int{}
	for range readings {
		em := readEnriched(ctx, t, consumer)
		counts[em.Key] = append(counts[em.Key], em.Event.BlowCount)
	}

	pipelineCancel()
	require.NoError(t, <-errCh)

	assert.Equal(t, []int{12, 18, 25, 0}, counts["BH-1"])
	assert.Equal(t, []int{4, 0}, counts["BH-2"])

	point, err := registry.Point("P-1")
	require.NoError(t, err)
	require.NotNil(t, point.Borehole, "ingested borehole attaches to the named point")
	assert.Equal(t, []float64{1.5, 3.0, 4.5, 6.0}, point.Borehole.Summarize().Depths)

	s, err := registry.Summary("BH-2")
	require.NoError(t, err)
	assert.Equal(t, []int{4, 0}, s.BlowCounts)
}

// TestPipelineTransformError verifies that a poison pill is skipped and the
// pipeline continues with valid messages.
func TestPipelineTransformError(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSourceTopic)
	createTopic(t, broker, testSinkTopic)
	cfg := testConfig(broker, "test-poison")

	readings := publishReadings(ctx, t, broker,
		kafkago.Message{Key: []byte("bad"), Value: []byte("not-json{{{")},
		kafkago.Message{Key: []byte("anon"), Value: []byte(`{"depth":1.5,"blow_data":[1,2]}`)},
	)

	reader := kafka.NewReader(cfg, discardLogger())
	t.Cleanup(func() { _ = reader.Close() })
	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	metrics := observability.NewMetricsForTesting()
	p := pipeline.New(reader, pipeline.NewTransformer(domain.ValidationPolicy{}, discardLogger()),
		writer, discardLogger(), metrics, 50)

	pipelineCtx, pipelineCancel := context.WithCancel(ctx)
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(pipelineCtx) }()

	consumer := sinkConsumer(t, broker)
	for range readings {
		em := readEnriched(ctx, t, consumer)
		assert.NotEmpty(t, em.Event.BoreholeID)
	}

	// Neither the malformed payload nor the reading without a borehole
	// reaches the sink.
	readCtx, readCancel := context.WithTimeout(ctx, 5*time.Second)
	_, err := consumer.ReadMessage(readCtx)
	readCancel()
	assert.Error(t, err, "expected no further messages on sink topic")

	pipelineCancel()
	require.NoError(t, <-errCh)
}
