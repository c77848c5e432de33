//go:build integration

package integration_test

import (
	"context"
	"io"
	"log/slog"
	"net"
	"strconv"
	"testing"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"

	"github.com/couchcryptid/borehole-data-service/internal/domain"
)

const kafkaImage = "confluentinc/confluent-local:7.5.0"

// startKafka runs a single-node broker for the duration of the test and
// returns its address.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	container, err := tckafka.Run(ctx, kafkaImage, tckafka.WithClusterID("borehole-test"))
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("terminate kafka container: %v", err)
		}
	})

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

// createTopic creates a single-partition topic through the cluster controller.
func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)

	ctrlConn, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer ctrlConn.Close()

	require.NoError(t, ctrlConn.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// loadMockData returns the readings of two boreholes drilled in 1.5 m steps.
// BH-1 reproduces the reference profile, BH-2 has one refusal with a single
// increment.
func loadMockData(t *testing.T) []domain.RawReading {
	t.Helper()
	return []domain.RawReading{
		{BoreholeID: "BH-1", PointID: "P-1", Depth: 1.5, BlowData: domain.NewBlowData(2, 3, 5, 7)},
		{BoreholeID: "BH-1", PointID: "P-1", Depth: 3.0, BlowData: domain.NewBlowData(4, 6, 8, 10)},
		{BoreholeID: "BH-1", PointID: "P-1", Depth: 4.5, BlowData: domain.NewBlowData(6, 8, 11, 14)},
		{BoreholeID: "BH-1", PointID: "P-1", Depth: 6.0},
		{BoreholeID: "BH-2", Depth: 1.5, BlowData: domain.NewBlowData(1, 2, 2)},
		{BoreholeID: "BH-2", Depth: 3.0, BlowData: domain.NewBlowData(50)},
	}
}
