package domain

import (
	"maps"

	"github.com/paulmach/orb"
)

// SpatialPoint ties a surveyed position to the investigation data collected
// there. Coordinates are stored as given; their reference system is the
// caller's concern.
type SpatialPoint struct {
	ID          string          `json:"id"`
	Coordinates orb.Point       `json:"coordinates"`
	Description string          `json:"description"`
	Borehole    *BoreholeRecord `json:"borehole_data,omitempty"`
	LabTests    *LabTestData    `json:"lab_test_data,omitempty"`
}

// PointOption configures optional point fields.
type PointOption func(*SpatialPoint)

// WithDescription sets free-text notes for the point.
func WithDescription(desc string) PointOption {
	return func(p *SpatialPoint) { p.Description = desc }
}

// WithBorehole attaches the borehole drilled at the point.
func WithBorehole(b *BoreholeRecord) PointOption {
	return func(p *SpatialPoint) { p.Borehole = b }
}

// WithLabTests attaches the lab-test results for samples taken at the point.
func WithLabTests(l *LabTestData) PointOption {
	return func(p *SpatialPoint) { p.LabTests = l }
}

// NewSpatialPoint creates a point at (x, y).
func NewSpatialPoint(id string, x, y float64, opts ...PointOption) *SpatialPoint {
	p := &SpatialPoint{ID: id, Coordinates: orb.Point{x, y}}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Clone returns a deep copy of the point and everything it owns.
func (p *SpatialPoint) Clone() *SpatialPoint {
	c := *p
	if p.Borehole != nil {
		c.Borehole = p.Borehole.Clone()
	}
	if p.LabTests != nil {
		c.LabTests = p.LabTests.Clone()
	}
	return &c
}

// LabTest is one laboratory result set for a sample. Result keys are test
// specific (e.g. "liquid_limit", "moisture_content").
type LabTest struct {
	SampleID string             `json:"sample_id"`
	Depth    float64            `json:"depth"`
	Test     string             `json:"test"`
	Results  map[string]float64 `json:"results,omitempty"`
}

// LabTestData groups the lab tests for a point. Its contents are carried but
// not interpreted here.
type LabTestData struct {
	Tests []LabTest `json:"tests"`
}

// Add appends a lab test.
func (l *LabTestData) Add(t LabTest) {
	l.Tests = append(l.Tests, t)
}

// Clone returns a deep copy.
func (l *LabTestData) Clone() *LabTestData {
	c := &LabTestData{Tests: make([]LabTest, len(l.Tests))}
	for i, t := range l.Tests {
		t.Results = maps.Clone(t.Results)
		c.Tests[i] = t
	}
	return c
}
