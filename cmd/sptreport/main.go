// Command sptreport prints SPT summaries for every borehole in a points
// fixture and optionally writes one depth profile PNG per borehole. With
// -enriched it also checks a file of enriched readings (as produced by
// genmock or read off the sink topic) against the blow count rule and the
// points fixture.
//
// Usage:
//
//	go run ./cmd/sptreport \
//	  -points data/mock/points.json \
//	  -format table \
//	  -plots-dir out/profiles \
//	  -enriched data/mock/readings_enriched.json
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/borehole-data-service/internal/domain"
	"github.com/couchcryptid/borehole-data-service/internal/observability"
	"github.com/couchcryptid/borehole-data-service/internal/plot"
	"github.com/couchcryptid/borehole-data-service/internal/report"
	"github.com/couchcryptid/borehole-data-service/internal/store"
)

const maxConcurrentPlots = 4

type options struct {
	pointsPath   string
	enrichedPath string
	format       report.Format
	boreholeID   string
	plotsDir     string
	plot         plot.Options
}

// phase tracks pass/fail for a check.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	pointsPath := flag.String("points", "", "path to a points JSON fixture")
	enrichedPath := flag.String("enriched", "", "optional enriched readings JSON to check")
	format := flag.String("format", "table", "summary format: table or csv")
	boreholeID := flag.String("borehole", "", "only report this borehole")
	plotsDir := flag.String("plots-dir", "", "write <borehole_id>.png profiles into this directory")
	width := flag.Int("width", 800, "plot width in pixels")
	height := flag.Int("height", 600, "plot height in pixels")
	font := flag.String("font", "", "optional TTF font for plot text")
	fontSize := flag.Float64("font-size", 12, "plot font size in points")
	flag.Parse()

	if *pointsPath == "" {
		flag.Usage()
		os.Exit(1)
	}
	f, err := report.ParseFormat(*format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(1)
	}

	opts := options{
		pointsPath:   *pointsPath,
		enrichedPath: *enrichedPath,
		format:       f,
		boreholeID:   *boreholeID,
		plotsDir:     *plotsDir,
		plot:         plot.Options{Width: *width, Height: *height, FontPath: *font, FontSize: *fontSize},
	}
	os.Exit(run(context.Background(), opts, os.Stdout, os.Stderr))
}

func run(ctx context.Context, opts options, stdout, stderr io.Writer) int {
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	registry := store.NewRegistry(domain.ValidationPolicy{}, logger, observability.NewMetricsForTesting())

	if err := loadPoints(registry, opts.pointsPath); err != nil {
		fmt.Fprintf(stderr, "FATAL: load points: %v\n", err)
		return 1
	}

	var files *plot.FileRenderer
	if opts.plotsDir != "" {
		renderer, err := plot.NewRenderer(opts.plot)
		if err != nil {
			fmt.Fprintf(stderr, "FATAL: %v\n", err)
			return 1
		}
		files = plot.NewFileRenderer(renderer, opts.plotsDir)
	}

	printer := report.NewPrinter(stdout, opts.format)
	var reported []*domain.BoreholeRecord
	for _, p := range registry.Points() {
		bh := p.Borehole
		if bh == nil || (opts.boreholeID != "" && bh.ID() != opts.boreholeID) {
			continue
		}
		if len(reported) > 0 && opts.format == report.FormatTable {
			fmt.Fprintln(stdout)
		}
		if err := bh.RenderSummary(ctx, printer); err != nil {
			fmt.Fprintf(stderr, "FATAL: summary %s: %v\n", bh.ID(), err)
			return 1
		}
		reported = append(reported, bh)
	}

	if opts.boreholeID != "" && len(reported) == 0 {
		fmt.Fprintf(stderr, "FATAL: borehole %q not found in %s\n", opts.boreholeID, opts.pointsPath)
		return 1
	}

	if files != nil {
		if err := renderProfiles(ctx, files, reported); err != nil {
			fmt.Fprintf(stderr, "FATAL: %v\n", err)
			return 1
		}
		fmt.Fprintf(stderr, "wrote %d profiles to %s\n", len(reported), opts.plotsDir)
	}

	if opts.enrichedPath == "" {
		return 0
	}
	return checkEnriched(registry, opts.enrichedPath, stderr)
}

// renderProfiles writes one PNG per borehole, a few at a time.
func renderProfiles(ctx context.Context, files *plot.FileRenderer, boreholes []*domain.BoreholeRecord) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentPlots)
	for _, bh := range boreholes {
		g.Go(func() error {
			if err := bh.RenderProfile(gctx, files); err != nil {
				return fmt.Errorf("profile %s: %w", bh.ID(), err)
			}
			return nil
		})
	}
	return g.Wait()
}

func loadPoints(registry *store.Registry, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = registry.LoadSeed(f)
	return err
}

// ── Enriched reading checks ──

func checkEnriched(registry *store.Registry, path string, out io.Writer) int {
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(out, "FATAL: read enriched readings: %v\n", err)
		return 1
	}
	var events []domain.ReadingEvent
	if err := json.Unmarshal(data, &events); err != nil {
		fmt.Fprintf(out, "FATAL: decode enriched readings: %v\n", err)
		return 1
	}

	phases := []*phase{
		checkBlowCounts(events),
		checkAgainstPoints(registry, events),
	}

	allPassed := true
	fmt.Fprintln(out)
	for _, p := range phases {
		status := "PASS"
		if !p.passed() {
			status = fmt.Sprintf("FAIL (%d errors)", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(out, "  %-36s %s\n", p.name, status)
	}
	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(out, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(out, "  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Fprintf(out, "\nAll %d enriched readings passed.\n", len(events))
		return 0
	}
	fmt.Fprintln(out, "\nValidation FAILED.")
	return 1
}

func checkBlowCounts(events []domain.ReadingEvent) *phase {
	p := &phase{name: "Blow counts (last two increments)"}
	seen := map[string]bool{}
	for i, e := range events {
		if e.ID == "" {
			p.errorf("reading %d: missing id", i)
		} else if seen[e.ID] {
			p.errorf("reading %d: duplicate id %s", i, e.ID)
		}
		seen[e.ID] = true

		if want := domain.NValue(e.BlowData); e.BlowCount != want {
			p.errorf("reading %d (%s at %gm): blow_count %d, want %d for %s",
				i, e.BoreholeID, e.Depth, e.BlowCount, want, e.BlowData)
		}
		if e.ProcessedAt.IsZero() {
			p.errorf("reading %d: missing processed_at", i)
		}
	}
	return p
}

func checkAgainstPoints(registry *store.Registry, events []domain.ReadingEvent) *phase {
	p := &phase{name: "Readings match points fixture"}
	for i, e := range events {
		bh, _, err := registry.Borehole(e.BoreholeID)
		if err != nil {
			p.errorf("reading %d: %v", i, err)
			continue
		}
		if !hasReading(bh, e) {
			p.errorf("reading %d: %s has no reading at %gm with blow data %s", i, e.BoreholeID, e.Depth, e.BlowData)
		}
	}
	return p
}

func hasReading(bh *domain.BoreholeRecord, e domain.ReadingEvent) bool {
	for _, rec := range bh.Readings() {
		if rec.Depth() == e.Depth && rec.BlowData().Equal(e.BlowData) {
			return true
		}
	}
	return false
}
