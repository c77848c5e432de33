package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/borehole-data-service/internal/domain"
)

func TestMapMessageToRawEvent(t *testing.T) {
	now := time.Now()
	msg := kafkago.Message{
		Key:       []byte("BH-1"),
		Value:     []byte(`{"borehole_id":"BH-1","depth":1.5}`),
		Topic:     "spt-readings",
		Partition: 2,
		Offset:    42,
		Time:      now,
		Headers: []kafkago.Header{
			{Key: "source", Value: []byte("rig-7")},
		},
	}

	raw := mapMessageToRawEvent(msg)

	assert.Equal(t, []byte("BH-1"), raw.Key)
	assert.JSONEq(t, `{"borehole_id":"BH-1","depth":1.5}`, string(raw.Value))
	assert.Equal(t, "spt-readings", raw.Topic)
	assert.Equal(t, 2, raw.Partition)
	assert.Equal(t, int64(42), raw.Offset)
	assert.Equal(t, now, raw.Timestamp)
	assert.Equal(t, "rig-7", raw.Headers["source"])
	assert.Nil(t, raw.Commit, "commit is attached by the reader")
}

func TestSerializeToMessage(t *testing.T) {
	now := time.Date(2024, 4, 26, 15, 10, 0, 0, time.UTC)
	event := domain.ReadingEvent{
		ID:          "spt-0011223344556677",
		BoreholeID:  "BH-1",
		Depth:       1.5,
		BlowData:    domain.NewBlowData(2, 3, 5, 7),
		BlowCount:   12,
		ProcessedAt: now,
	}

	msg, err := serializeToMessage(event)
	require.NoError(t, err)

	assert.Equal(t, []byte("BH-1"), msg.Key)
	require.Len(t, msg.Headers, 3)
	assert.Equal(t, "borehole_id", msg.Headers[0].Key)
	assert.Equal(t, []byte("BH-1"), msg.Headers[0].Value)
	assert.Equal(t, "blow_count", msg.Headers[1].Key)
	assert.Equal(t, []byte("12"), msg.Headers[1].Value)
	assert.Equal(t, "processed_at", msg.Headers[2].Key)
	assert.Equal(t, []byte(now.Format(time.RFC3339)), msg.Headers[2].Value)

	var decoded domain.ReadingEvent
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, event.ID, decoded.ID)
	assert.Equal(t, 12, decoded.BlowCount)
	assert.True(t, decoded.BlowData.Equal(event.BlowData))
}

func TestSerializeToMessage_AbsentBlowData(t *testing.T) {
	msg, err := serializeToMessage(domain.ReadingEvent{ID: "r", BoreholeID: "BH-2", Depth: 3})
	require.NoError(t, err)
	assert.Contains(t, string(msg.Value), `"blow_data":null`)
	assert.Contains(t, string(msg.Value), `"blow_count":0`)
}

type fakeWriter struct {
	err   error
	calls int
	msgs  []kafkago.Message
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

func TestWriter_LoadBatch(t *testing.T) {
	fw := &fakeWriter{}
	w := newWriter(fw, "spt-blow-counts", 3, time.Minute, slog.Default())

	events := []domain.ReadingEvent{
		{ID: "a", BoreholeID: "BH-1", Depth: 1.5, BlowData: domain.NewBlowData(2, 3, 5, 7), BlowCount: 12},
		{ID: "b", BoreholeID: "BH-2", Depth: 3.0},
	}
	require.NoError(t, w.LoadBatch(context.Background(), events))
	require.Len(t, fw.msgs, 2)
	assert.Equal(t, []byte("BH-2"), fw.msgs[1].Key)

	require.NoError(t, w.LoadBatch(context.Background(), nil))
	assert.Equal(t, 1, fw.calls, "empty batch is not written")
}

func TestWriter_BreakerOpensAfterFailures(t *testing.T) {
	fw := &fakeWriter{err: errors.New("broker down")}
	w := newWriter(fw, "spt-blow-counts", 2, time.Minute, slog.Default())
	batch := []domain.ReadingEvent{{ID: "a", BoreholeID: "BH-1"}}

	for range 2 {
		err := w.LoadBatch(context.Background(), batch)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "broker down")
	}

	err := w.LoadBatch(context.Background(), batch)
	require.Error(t, err)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 2, fw.calls, "open breaker does not reach the broker")
}
