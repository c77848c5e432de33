package domain

import (
	"encoding/json"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSpatialPoint_Defaults(t *testing.T) {
	p := NewSpatialPoint("P-1", 100.0, 200.0)

	assert.Equal(t, "P-1", p.ID)
	assert.Equal(t, orb.Point{100.0, 200.0}, p.Coordinates)
	assert.Equal(t, 100.0, p.Coordinates.X())
	assert.Equal(t, 200.0, p.Coordinates.Y())
	assert.Equal(t, "", p.Description)
	assert.Nil(t, p.Borehole)
	assert.Nil(t, p.LabTests)
}

func TestNewSpatialPoint_WithOptions(t *testing.T) {
	bh := NewBoreholeRecord("BH-7")
	labs := &LabTestData{}
	labs.Add(LabTest{SampleID: "S1", Depth: 2.0, Test: "atterberg", Results: map[string]float64{"liquid_limit": 42}})

	p := NewSpatialPoint("P-7", 512300.5, 4182200.25,
		WithDescription("north abutment"),
		WithBorehole(bh),
		WithLabTests(labs),
	)

	assert.Equal(t, "north abutment", p.Description)
	assert.Same(t, bh, p.Borehole)
	assert.Same(t, labs, p.LabTests)
}

func TestSpatialPoint_CloneIsDeep(t *testing.T) {
	bh := NewBoreholeRecord("BH-7")
	bh.AddReading(1.0, NewBlowData(1, 2, 3))
	labs := &LabTestData{Tests: []LabTest{{SampleID: "S1", Results: map[string]float64{"w": 18.5}}}}
	p := NewSpatialPoint("P-7", 1, 2, WithBorehole(bh), WithLabTests(labs))

	c := p.Clone()
	c.Borehole.AddReading(2.0, NewBlowData(4, 5, 6))
	c.LabTests.Tests[0].Results["w"] = 0

	assert.Equal(t, 1, p.Borehole.Len())
	assert.Equal(t, 18.5, p.LabTests.Tests[0].Results["w"])
}

func TestSpatialPoint_JSON(t *testing.T) {
	input := `{
		"id": "P-2",
		"coordinates": [-97.74, 30.27],
		"borehole_data": {
			"borehole_id": "BH-2",
			"total_depth": null,
			"spt_data": [{"depth": 1.5, "blow_data": [2,3,5,7]}]
		}
	}`

	var p SpatialPoint
	require.NoError(t, json.Unmarshal([]byte(input), &p))

	assert.Equal(t, "P-2", p.ID)
	assert.Equal(t, orb.Point{-97.74, 30.27}, p.Coordinates)
	assert.Empty(t, p.Description)
	require.NotNil(t, p.Borehole)
	assert.Equal(t, "BH-2", p.Borehole.ID())
	_, ok := p.Borehole.TotalDepth()
	assert.False(t, ok)
	assert.Equal(t, []int{12}, p.Borehole.Summarize().BlowCounts)
	assert.Nil(t, p.LabTests)

	out, err := json.Marshal(NewSpatialPoint("P-1", 100, 200))
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"P-1","coordinates":[100,200],"description":""}`, string(out))
}
