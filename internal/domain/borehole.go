package domain

import (
	"context"
	"encoding/json"
	"fmt"
)

// Column headers of an SPT summary, in display order.
const (
	ColumnDepth      = "Depth (m)"
	ColumnBlowData   = "Blow Data"
	ColumnBlowCounts = "Blow Counts"
)

// SummaryColumns lists the summary headers in their fixed order.
var SummaryColumns = [3]string{ColumnDepth, ColumnBlowData, ColumnBlowCounts}

// BoreholeRecord aggregates SPT readings taken along one borehole. Readings
// keep insertion order; depth order and depth uniqueness are not enforced.
//
// A BoreholeRecord is not safe for concurrent mutation. Callers that share
// one across goroutines must serialize AddReading themselves.
type BoreholeRecord struct {
	id         string
	totalDepth *float64
	readings   []SPTRecord
}

// BoreholeOption configures optional borehole fields.
type BoreholeOption func(*BoreholeRecord)

// WithTotalDepth records the final drilled depth in meters.
func WithTotalDepth(depth float64) BoreholeOption {
	return func(b *BoreholeRecord) {
		b.totalDepth = &depth
	}
}

// NewBoreholeRecord creates an empty borehole. The id is caller-assigned.
func NewBoreholeRecord(id string, opts ...BoreholeOption) *BoreholeRecord {
	b := &BoreholeRecord{id: id}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// ID returns the borehole identifier.
func (b *BoreholeRecord) ID() string { return b.id }

// TotalDepth returns the drilled depth and whether it was recorded.
func (b *BoreholeRecord) TotalDepth() (float64, bool) {
	if b.totalDepth == nil {
		return 0, false
	}
	return *b.totalDepth, true
}

// AddReading appends an SPT reading built from depth and blowData.
func (b *BoreholeRecord) AddReading(depth float64, blowData BlowData) {
	b.readings = append(b.readings, NewSPTRecord(depth, blowData))
}

// Len returns the number of readings.
func (b *BoreholeRecord) Len() int { return len(b.readings) }

// Readings returns the readings in insertion order.
func (b *BoreholeRecord) Readings() []SPTRecord {
	out := make([]SPTRecord, len(b.readings))
	copy(out, b.readings)
	return out
}

// Clone returns a deep copy that shares no state with b.
func (b *BoreholeRecord) Clone() *BoreholeRecord {
	c := &BoreholeRecord{id: b.id, readings: b.Readings()}
	if b.totalDepth != nil {
		d := *b.totalDepth
		c.totalDepth = &d
	}
	return c
}

// SPTSummary is a column-oriented projection of a borehole's readings. The
// three columns are always the same length and aligned by insertion order.
type SPTSummary struct {
	BoreholeID string     `json:"borehole_id"`
	Depths     []float64  `json:"depth_m"`
	BlowData   []BlowData `json:"blow_data"`
	BlowCounts []int      `json:"blow_counts"`
}

// SummaryRow is one aligned row of an SPTSummary.
type SummaryRow struct {
	Depth     float64
	BlowData  BlowData
	BlowCount int
}

// Len returns the number of rows.
func (s SPTSummary) Len() int { return len(s.Depths) }

// Rows returns the summary row by row.
func (s SPTSummary) Rows() []SummaryRow {
	rows := make([]SummaryRow, s.Len())
	for i := range rows {
		rows[i] = SummaryRow{
			Depth:     s.Depths[i],
			BlowData:  s.BlowData[i],
			BlowCount: s.BlowCounts[i],
		}
	}
	return rows
}

// Summarize projects the readings into depth, raw blow data and blow count
// columns. It does not filter or aggregate across rows.
func (b *BoreholeRecord) Summarize() SPTSummary {
	s := SPTSummary{
		BoreholeID: b.id,
		Depths:     make([]float64, len(b.readings)),
		BlowData:   make([]BlowData, len(b.readings)),
		BlowCounts: make([]int, len(b.readings)),
	}
	for i, r := range b.readings {
		s.Depths[i] = r.Depth()
		s.BlowData[i] = r.BlowData()
		s.BlowCounts[i] = r.BlowCount()
	}
	return s
}

// SummaryRenderer presents an SPT summary as a table.
type SummaryRenderer interface {
	RenderSummary(ctx context.Context, s SPTSummary) error
}

// RenderSummary hands the borehole's summary to r. Errors from r are
// returned as-is.
func (b *BoreholeRecord) RenderSummary(ctx context.Context, r SummaryRenderer) error {
	return r.RenderSummary(ctx, b.Summarize())
}

type boreholeJSON struct {
	BoreholeID string      `json:"borehole_id"`
	TotalDepth *float64    `json:"total_depth"`
	SPTData    []SPTRecord `json:"spt_data"`
}

func (b *BoreholeRecord) MarshalJSON() ([]byte, error) {
	readings := b.readings
	if readings == nil {
		readings = []SPTRecord{}
	}
	return json.Marshal(boreholeJSON{
		BoreholeID: b.id,
		TotalDepth: b.totalDepth,
		SPTData:    readings,
	})
}

func (b *BoreholeRecord) UnmarshalJSON(data []byte) error {
	var v boreholeJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("decode borehole: %w", err)
	}
	*b = BoreholeRecord{id: v.BoreholeID, totalDepth: v.TotalDepth, readings: v.SPTData}
	return nil
}
