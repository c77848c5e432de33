package domain

import (
	"context"
	"time"
)

// RawEvent represents an unprocessed message from the source topic.
type RawEvent struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}

// RawReading is the JSON payload a field logger publishes for one SPT drive.
type RawReading struct {
	BoreholeID string   `json:"borehole_id"`
	PointID    string   `json:"point_id,omitempty"`
	Depth      float64  `json:"depth"`
	BlowData   BlowData `json:"blow_data"`
}

// ReadingEvent is an ingested SPT reading after parsing and enrichment.
type ReadingEvent struct {
	ID          string    `json:"id"`
	BoreholeID  string    `json:"borehole_id"`
	PointID     string    `json:"point_id,omitempty"`
	Depth       float64   `json:"depth"`
	BlowData    BlowData  `json:"blow_data"`
	BlowCount   int       `json:"blow_count"`
	RecordedAt  time.Time `json:"recorded_at"`
	ProcessedAt time.Time `json:"processed_at"`

	RawPayload []byte `json:"-"`
}

// Record returns the reading as an SPTRecord.
func (e ReadingEvent) Record() SPTRecord {
	return NewSPTRecord(e.Depth, e.BlowData)
}
