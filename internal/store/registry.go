// Package store keeps the in-memory catalog of spatial points and boreholes.
//
// Domain entities are not safe for concurrent use; Registry serializes all
// mutation behind one lock and hands out deep copies to readers.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"

	"github.com/couchcryptid/borehole-data-service/internal/domain"
	"github.com/couchcryptid/borehole-data-service/internal/observability"
)

var (
	ErrPointExists      = errors.New("point already registered")
	ErrPointNotFound    = errors.New("point not found")
	ErrBoreholeNotFound = errors.New("borehole not found")
	ErrBoreholeOwned    = errors.New("borehole belongs to another point")
	ErrInvalidPoint     = errors.New("invalid point")
)

// Registry indexes points by id and boreholes by borehole id. It implements
// pipeline.BatchLoader for ingested readings.
type Registry struct {
	mu        sync.RWMutex
	points    map[string]*domain.SpatialPoint
	boreholes map[string]*boreholeEntry
	seen      map[string]struct{}
	seeded    bool

	policy  domain.ValidationPolicy
	logger  *slog.Logger
	metrics *observability.Metrics
}

type boreholeEntry struct {
	record *domain.BoreholeRecord
	// owner is the id of the point that owns the record, empty while the
	// borehole is known only from ingested readings.
	owner string
	// revision increments on every appended reading.
	revision uint64
}

// NewRegistry creates an empty registry.
func NewRegistry(policy domain.ValidationPolicy, logger *slog.Logger, metrics *observability.Metrics) *Registry {
	return &Registry{
		points:    make(map[string]*domain.SpatialPoint),
		boreholes: make(map[string]*boreholeEntry),
		seen:      make(map[string]struct{}),
		policy:    policy,
		logger:    logger,
		metrics:   metrics,
	}
}

// RegisterPoint adds a point. If the point carries a borehole whose id is
// already known from ingested readings, the point adopts the existing
// record and the submitted readings are appended to it, unless the policy
// requires unique borehole ids.
func (r *Registry) RegisterPoint(p *domain.SpatialPoint) error {
	if p == nil || p.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidPoint)
	}
	if p.Borehole != nil && p.Borehole.ID() == "" {
		return fmt.Errorf("%w: borehole_id is required", ErrInvalidPoint)
	}

	p = p.Clone()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.points[p.ID]; ok {
		return fmt.Errorf("%w: %s", ErrPointExists, p.ID)
	}

	if bh := p.Borehole; bh != nil {
		entry, known := r.boreholes[bh.ID()]
		switch {
		case !known:
			r.boreholes[bh.ID()] = &boreholeEntry{record: bh, owner: p.ID, revision: uint64(bh.Len())}
		case entry.owner != "":
			return fmt.Errorf("%w: %s is owned by %s", ErrBoreholeOwned, bh.ID(), entry.owner)
		case r.policy.RequireUniqueBoreholeID:
			return fmt.Errorf("%w: %s", domain.ErrDuplicateBorehole, bh.ID())
		default:
			adopted := r.adopt(entry.record, bh)
			entry.owner = p.ID
			entry.revision += uint64(bh.Len())
			p.Borehole = adopted
			r.logger.Info("point adopted ingested borehole",
				"point_id", p.ID,
				"borehole_id", bh.ID(),
				"readings", adopted.Len(),
			)
		}
	}

	r.points[p.ID] = p
	r.updateGauges()
	return nil
}

// adopt merges a submitted borehole into one created from ingested readings.
// Ingested readings come first, then the submitted ones.
func (r *Registry) adopt(existing, submitted *domain.BoreholeRecord) *domain.BoreholeRecord {
	var opts []domain.BoreholeOption
	if d, ok := submitted.TotalDepth(); ok {
		opts = append(opts, domain.WithTotalDepth(d))
	} else if d, ok := existing.TotalDepth(); ok {
		opts = append(opts, domain.WithTotalDepth(d))
	}
	merged := domain.NewBoreholeRecord(existing.ID(), opts...)
	for _, rd := range existing.Readings() {
		merged.AddReading(rd.Depth(), rd.BlowData())
	}
	for _, rd := range submitted.Readings() {
		merged.AddReading(rd.Depth(), rd.BlowData())
	}
	r.boreholes[existing.ID()].record = merged
	return merged
}

// AddReading appends a reading to a borehole, creating the borehole if it is
// not yet known. It returns the stored record.
func (r *Registry) AddReading(boreholeID string, depth float64, blowData domain.BlowData) (domain.SPTRecord, error) {
	if boreholeID == "" {
		return domain.SPTRecord{}, domain.ErrMissingBoreholeID
	}
	if err := r.policy.CheckReading(depth, blowData); err != nil {
		return domain.SPTRecord{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	entry := r.boreholeLocked(boreholeID, "")
	entry.record.AddReading(depth, blowData)
	entry.revision++
	r.metrics.ReadingsStored.Inc()
	r.updateGauges()

	readings := entry.record.Readings()
	return readings[len(readings)-1], nil
}

// LoadBatch stores ingested readings. Readings whose id has already been
// stored are skipped so redelivered messages do not duplicate rows.
func (r *Registry) LoadBatch(_ context.Context, events []domain.ReadingEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range events {
		ev := events[i]
		if ev.ID != "" {
			if _, dup := r.seen[ev.ID]; dup {
				r.metrics.DuplicateReadings.Inc()
				r.logger.Debug("duplicate reading skipped", "reading_id", ev.ID, "borehole_id", ev.BoreholeID)
				continue
			}
			r.seen[ev.ID] = struct{}{}
		}

		entry := r.boreholeLocked(ev.BoreholeID, ev.PointID)
		entry.record.AddReading(ev.Depth, ev.BlowData)
		entry.revision++
		r.metrics.ReadingsStored.Inc()
	}

	r.updateGauges()
	return nil
}

// boreholeLocked returns the entry for id, creating it when missing. When a
// new borehole names a registered point that has no borehole yet, the point
// takes ownership of it. Callers must hold the write lock.
func (r *Registry) boreholeLocked(id, pointID string) *boreholeEntry {
	if entry, ok := r.boreholes[id]; ok {
		return entry
	}

	entry := &boreholeEntry{record: domain.NewBoreholeRecord(id)}
	r.boreholes[id] = entry

	if p, ok := r.points[pointID]; ok && p.Borehole == nil {
		p.Borehole = entry.record
		entry.owner = p.ID
		r.logger.Info("borehole attached to point", "borehole_id", id, "point_id", pointID)
	} else {
		r.logger.Info("borehole created from reading", "borehole_id", id)
	}
	return entry
}

// Point returns a copy of a registered point.
func (r *Registry) Point(id string) (*domain.SpatialPoint, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.points[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPointNotFound, id)
	}
	return p.Clone(), nil
}

// Points returns copies of all registered points ordered by id.
func (r *Registry) Points() []*domain.SpatialPoint {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.SpatialPoint, 0, len(r.points))
	for _, p := range r.points {
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Borehole returns a copy of a borehole and its current revision.
func (r *Registry) Borehole(id string) (*domain.BoreholeRecord, uint64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.boreholes[id]
	if !ok {
		return nil, 0, fmt.Errorf("%w: %s", ErrBoreholeNotFound, id)
	}
	return entry.record.Clone(), entry.revision, nil
}

// Summary returns the SPT summary of a borehole.
func (r *Registry) Summary(id string) (domain.SPTSummary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.boreholes[id]
	if !ok {
		return domain.SPTSummary{}, fmt.Errorf("%w: %s", ErrBoreholeNotFound, id)
	}
	return entry.record.Summarize(), nil
}

// Profile returns the depth profile of a borehole and the revision it was
// built from.
func (r *Registry) Profile(id string) (domain.Profile, uint64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.boreholes[id]
	if !ok {
		return domain.Profile{}, 0, fmt.Errorf("%w: %s", ErrBoreholeNotFound, id)
	}
	return entry.record.Profile(), entry.revision, nil
}

// LoadSeed registers every point in a JSON array read from rd. Registration
// stops at the first failure.
func (r *Registry) LoadSeed(rd io.Reader) (int, error) {
	var points []*domain.SpatialPoint
	if err := json.NewDecoder(rd).Decode(&points); err != nil {
		return 0, fmt.Errorf("decode seed: %w", err)
	}
	for i, p := range points {
		if err := r.RegisterPoint(p); err != nil {
			return i, fmt.Errorf("seed point %d: %w", i, err)
		}
	}

	r.mu.Lock()
	r.seeded = true
	r.mu.Unlock()
	return len(points), nil
}

// CheckReadiness returns nil once a seed fixture has been loaded, so an
// instance serving seeded data is ready before any reading is ingested.
func (r *Registry) CheckReadiness(_ context.Context) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.seeded {
		return errors.New("no seed data loaded")
	}
	return nil
}

func (r *Registry) updateGauges() {
	r.metrics.BoreholesTracked.Set(float64(len(r.boreholes)))
	r.metrics.PointsRegistered.Set(float64(len(r.points)))
}
