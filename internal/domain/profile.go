package domain

import (
	"context"
	"fmt"
)

// Profile axis labels and default rendering hints.
const (
	ProfileXLabel      = "Blow Counts"
	ProfileYLabel      = "Depth (m)"
	ProfileSeriesLabel = "Blow Counts"

	MarkerCircle = "o"
	LineSolid    = "-"
	ColorBlue    = "blue"
)

// Profile is a blow-count versus depth chart handed to a plotting
// collaborator. X carries blow counts and Y carries depths, point i of each
// coming from reading i in insertion order.
type Profile struct {
	BoreholeID  string
	Title       string
	XLabel      string
	YLabel      string
	SeriesLabel string

	X []float64
	Y []float64

	// InvertY puts the origin of the depth axis at the top so depth grows
	// downward, matching a borehole log.
	InvertY bool

	Marker    string
	LineStyle string
	Color     string
	Grid      bool
	Legend    bool
}

// Len returns the number of plotted points.
func (p Profile) Len() int { return len(p.X) }

// ProfileTitle returns the chart title for a borehole.
func ProfileTitle(boreholeID string) string {
	return fmt.Sprintf("SPT Blow Counts vs Depth for Borehole %s", boreholeID)
}

// Profile builds the depth profile of the borehole's readings.
func (b *BoreholeRecord) Profile() Profile {
	p := Profile{
		BoreholeID:  b.id,
		Title:       ProfileTitle(b.id),
		XLabel:      ProfileXLabel,
		YLabel:      ProfileYLabel,
		SeriesLabel: ProfileSeriesLabel,
		X:           make([]float64, len(b.readings)),
		Y:           make([]float64, len(b.readings)),
		InvertY:     true,
		Marker:      MarkerCircle,
		LineStyle:   LineSolid,
		Color:       ColorBlue,
		Grid:        true,
		Legend:      true,
	}
	for i, r := range b.readings {
		p.X[i] = float64(r.BlowCount())
		p.Y[i] = r.Depth()
	}
	return p
}

// ProfileRenderer draws a profile. Implementations block until the output
// action (file write, encode, display) has completed.
type ProfileRenderer interface {
	RenderProfile(ctx context.Context, p Profile) error
}

// RenderProfile hands the borehole's profile to r. Errors from r are
// returned as-is.
func (b *BoreholeRecord) RenderProfile(ctx context.Context, r ProfileRenderer) error {
	return r.RenderProfile(ctx, b.Profile())
}
