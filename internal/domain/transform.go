package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ParseRawEvent deserializes a RawEvent's value into a ReadingEvent. The
// message timestamp becomes the reading's RecordedAt.
func ParseRawEvent(raw RawEvent) (ReadingEvent, error) {
	var rec RawReading
	if err := json.Unmarshal(raw.Value, &rec); err != nil {
		return ReadingEvent{}, fmt.Errorf("parse raw event: %w", err)
	}

	boreholeID := strings.TrimSpace(rec.BoreholeID)
	if boreholeID == "" {
		return ReadingEvent{}, fmt.Errorf("parse raw event: %w", ErrMissingBoreholeID)
	}
	recordedAt := raw.Timestamp.UTC()

	return ReadingEvent{
		ID:         readingID(raw, boreholeID, rec.Depth, rec.BlowData, recordedAt),
		BoreholeID: boreholeID,
		PointID:    strings.TrimSpace(rec.PointID),
		Depth:      rec.Depth,
		BlowData:   rec.BlowData,
		RecordedAt: recordedAt,
		RawPayload: raw.Value,
	}, nil
}

// readingID identifies the message a reading came from, so a redelivered
// message maps to the same reading while two messages with equal content stay
// distinct. Events without a source topic fall back to a content hash.
func readingID(raw RawEvent, boreholeID string, depth float64, blowData BlowData, recordedAt time.Time) string {
	if raw.Topic == "" {
		return generateID(boreholeID, depth, blowData, recordedAt)
	}
	return hashID(fmt.Sprintf("%s|%d|%d", raw.Topic, raw.Partition, raw.Offset))
}

// generateID produces a deterministic ID from the reading's key fields.
func generateID(boreholeID string, depth float64, blowData BlowData, recordedAt time.Time) string {
	return hashID(fmt.Sprintf("%s|%g|%s|%s", boreholeID, depth, blowData, recordedAt.Format(time.RFC3339Nano)))
}

func hashID(input string) string {
	hash := sha256.Sum256([]byte(input))
	return "spt-" + hex.EncodeToString(hash[:8])
}

// EnrichReading derives the blow count and stamps the processing time.
func EnrichReading(event ReadingEvent) ReadingEvent {
	event.BlowCount = NValue(event.BlowData)
	event.ProcessedAt = clock.Now().UTC()
	return event
}
