// Command genmock generates deterministic SPT fixtures: a points file for
// SEED_FILE and sptreport, a newline-delimited file of raw readings that can
// be piped into the source topic with a console producer, and the enriched
// readings the service publishes for them. Enrichment runs through the real
// domain functions so the fixture matches pipeline output.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -points-out data/mock/points.json \
//	  -readings-out data/mock/readings.jsonl \
//	  -enriched-out data/mock/readings_enriched.json \
//	  -boreholes 5 -seed 42
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"path/filepath"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/borehole-data-service/internal/domain"
)

var baseDate = time.Date(2024, time.April, 26, 0, 0, 0, 0, time.UTC)

type options struct {
	boreholes int
	step      float64
	maxDepth  float64
	seed      uint64
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	pointsOut := flag.String("points-out", "", "output path for the points JSON fixture")
	readingsOut := flag.String("readings-out", "", "output path for raw readings, one JSON object per line")
	enrichedOut := flag.String("enriched-out", "", "output path for the enriched readings JSON fixture")
	boreholes := flag.Int("boreholes", 5, "number of generated boreholes besides the reference BH-1")
	step := flag.Float64("step", 1.5, "depth interval between tests in meters")
	maxDepth := flag.Float64("max-depth", 15, "deepest test in meters")
	seed := flag.Uint64("seed", 42, "random seed")
	flag.Parse()

	if *pointsOut == "" && *readingsOut == "" && *enrichedOut == "" {
		flag.Usage()
		return fmt.Errorf("at least one of -points-out, -readings-out or -enriched-out is required")
	}
	if *step <= 0 || *maxDepth < *step {
		return fmt.Errorf("invalid depth range: step %g, max depth %g", *step, *maxDepth)
	}

	// Fixed clock for reproducible processed_at values.
	domain.SetClock(clockwork.NewFakeClockAt(baseDate.Add(30 * time.Hour)))
	defer domain.SetClock(nil)

	points := generate(options{boreholes: *boreholes, step: *step, maxDepth: *maxDepth, seed: *seed})

	if *pointsOut != "" {
		if err := writeJSON(*pointsOut, points); err != nil {
			return fmt.Errorf("writing points fixture: %w", err)
		}
		log.Printf("wrote points fixture: %s", *pointsOut)
	}

	raws := rawReadings(points)
	if *readingsOut != "" {
		if err := writeLines(*readingsOut, raws); err != nil {
			return fmt.Errorf("writing readings fixture: %w", err)
		}
		log.Printf("wrote %d readings: %s", len(raws), *readingsOut)
	}

	if *enrichedOut != "" {
		enriched, err := enrich(raws)
		if err != nil {
			return err
		}
		if err := writeJSON(*enrichedOut, enriched); err != nil {
			return fmt.Errorf("writing enriched fixture: %w", err)
		}
		log.Printf("wrote enriched fixture: %s", *enrichedOut)
	}

	printStats(points)
	return nil
}

// generate builds the reference point P-1 followed by random boreholes whose
// blow counts trend upward with depth, with occasional refusals and gaps.
func generate(opts options) []*domain.SpatialPoint {
	rng := rand.New(rand.NewPCG(opts.seed, opts.seed^0x9e3779b97f4a7c15))

	ref := domain.NewBoreholeRecord("BH-1", domain.WithTotalDepth(20))
	ref.AddReading(1.5, domain.NewBlowData(2, 3, 5, 7))
	ref.AddReading(3.0, domain.BlowData{})
	points := []*domain.SpatialPoint{
		domain.NewSpatialPoint("P-1", 100, 200,
			domain.WithDescription("reference borehole"),
			domain.WithBorehole(ref)),
	}

	for i := range opts.boreholes {
		id := i + 2
		bh := domain.NewBoreholeRecord(fmt.Sprintf("BH-%d", id), domain.WithTotalDepth(opts.maxDepth+opts.step))
		for depth := opts.step; depth <= opts.maxDepth+1e-9; depth += opts.step {
			bh.AddReading(depth, randomBlows(rng, depth))
		}

		var labOpts []domain.PointOption
		if rng.IntN(2) == 0 {
			labs := &domain.LabTestData{}
			labs.Add(domain.LabTest{
				SampleID: fmt.Sprintf("S-%d-1", id),
				Depth:    opts.step,
				Test:     "moisture_content",
				Results:  map[string]float64{"moisture_content": roundTo(12+rng.Float64()*20, 1)},
			})
			labOpts = append(labOpts, domain.WithLabTests(labs))
		}

		x := roundTo(100+rng.Float64()*500, 2)
		y := roundTo(200+rng.Float64()*500, 2)
		pointOpts := append([]domain.PointOption{
			domain.WithDescription(fmt.Sprintf("generated borehole %d", id)),
			domain.WithBorehole(bh),
		}, labOpts...)
		points = append(points, domain.NewSpatialPoint(fmt.Sprintf("P-%d", id), x, y, pointOpts...))
	}
	return points
}

// randomBlows returns a seating increment plus up to three test increments.
// About one drive in ten is missing and one in ten hits refusal after the
// seating drive.
func randomBlows(rng *rand.Rand, depth float64) domain.BlowData {
	switch rng.IntN(10) {
	case 0:
		return domain.BlowData{}
	case 1:
		return domain.NewBlowData(50)
	}
	base := 1 + int(depth*1.2)
	counts := make([]int, 2+rng.IntN(3))
	for i := range counts {
		counts[i] = base + rng.IntN(4) + i
	}
	return domain.NewBlowData(counts...)
}

func roundTo(v float64, places int) float64 {
	scale := 1.0
	for range places {
		scale *= 10
	}
	return float64(int64(v*scale+0.5)) / scale
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}

func rawReadings(points []*domain.SpatialPoint) []domain.RawReading {
	var out []domain.RawReading
	for _, p := range points {
		if p.Borehole == nil {
			continue
		}
		for _, rec := range p.Borehole.Readings() {
			out = append(out, domain.RawReading{
				BoreholeID: p.Borehole.ID(),
				PointID:    p.ID,
				Depth:      rec.Depth(),
				BlowData:   rec.BlowData(),
			})
		}
	}
	return out
}

// enrich runs each reading through parse and enrich with message timestamps
// one minute apart, the way the integration tests publish them.
func enrich(raws []domain.RawReading) ([]domain.ReadingEvent, error) {
	out := make([]domain.ReadingEvent, 0, len(raws))
	for i, rd := range raws {
		payload, err := json.Marshal(rd)
		if err != nil {
			return nil, fmt.Errorf("marshal reading %d: %w", i, err)
		}
		parsed, err := domain.ParseRawEvent(domain.RawEvent{
			Key:       []byte(rd.BoreholeID),
			Value:     payload,
			Timestamp: baseDate.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			return nil, fmt.Errorf("reading %d: %w", i, err)
		}
		out = append(out, domain.EnrichReading(parsed))
	}
	return out, nil
}

func writeLines(path string, raws []domain.RawReading) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for _, rd := range raws {
		if err := enc.Encode(rd); err != nil {
			return err
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return f.Close()
}

func printStats(points []*domain.SpatialPoint) {
	var readings, absent, refusals, withLabs, maxN int
	for _, p := range points {
		if p.LabTests != nil {
			withLabs++
		}
		if p.Borehole == nil {
			continue
		}
		for _, rec := range p.Borehole.Readings() {
			readings++
			switch {
			case !rec.BlowData().Valid():
				absent++
			case rec.BlowData().Len() < 2:
				refusals++
			}
			maxN = max(maxN, rec.BlowCount())
		}
	}

	fmt.Println("\n=== Stats for updating test assertions ===")
	fmt.Printf("Points: %d (with lab tests: %d)\n", len(points), withLabs)
	fmt.Printf("Readings: %d (absent blow data: %d, single increment: %d)\n", readings, absent, refusals)
	fmt.Printf("Max blow count: %d\n", maxN)
}
