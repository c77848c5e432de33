package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/couchcryptid/borehole-data-service/internal/domain"
	"github.com/couchcryptid/borehole-data-service/internal/observability"
)

// BatchExtractor reads up to batchSize raw events from the source.
type BatchExtractor interface {
	ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawEvent, error)
}

// Transformer converts a raw event into an enriched reading.
type Transformer interface {
	Transform(ctx context.Context, raw domain.RawEvent) (domain.ReadingEvent, error)
}

// BatchLoader writes multiple readings to a destination.
type BatchLoader interface {
	LoadBatch(ctx context.Context, events []domain.ReadingEvent) error
}

type fanOut []BatchLoader

// FanOut returns a loader that hands each batch to every loader in order and
// stops at the first error. Loaders must tolerate a batch being retried.
func FanOut(loaders ...BatchLoader) BatchLoader {
	return fanOut(loaders)
}

func (f fanOut) LoadBatch(ctx context.Context, events []domain.ReadingEvent) error {
	for _, l := range f {
		if err := l.LoadBatch(ctx, events); err != nil {
			return err
		}
	}
	return nil
}

// Pipeline orchestrates the extract-transform-load loop.
type Pipeline struct {
	extractor   BatchExtractor
	transformer Transformer
	loader      BatchLoader
	logger      *slog.Logger
	metrics     *observability.Metrics
	ready       atomic.Bool
	batchSize   int
}

// New creates a Pipeline with the given stages and observability.
func New(e BatchExtractor, t Transformer, l BatchLoader, logger *slog.Logger, metrics *observability.Metrics, batchSize int) *Pipeline {
	return &Pipeline{
		extractor:   e,
		transformer: t,
		loader:      l,
		logger:      logger,
		metrics:     metrics,
		batchSize:   batchSize,
	}
}

// Ready reports whether at least one batch has been loaded.
func (p *Pipeline) Ready() bool { return p.ready.Load() }

// CheckReadiness returns nil if the pipeline has processed at least one message,
// or an error describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not processed any messages yet")
	}
	return nil
}

// Run executes the batch ETL loop until the context is cancelled.
//
// Poison pills are committed as soon as they fail to transform. The rest of a
// batch is committed only after the loader accepts it; a failing load is
// retried with the same readings, so loaders see at-least-once delivery.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started", "batch_size", p.batchSize)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	bo := newBackOff()
	for ctx.Err() == nil {
		raws, err := p.extractor.ExtractBatch(ctx, p.batchSize)
		switch {
		case ctx.Err() != nil:
		case err != nil:
			p.logger.Error("extract batch failed", "error", err)
			sleepWithContext(ctx, bo.NextBackOff())
		case len(raws) > 0:
			p.handle(ctx, raws, bo)
		}
	}

	p.logger.Info("pipeline stopping", "reason", ctx.Err())
	return nil
}

// batch is one extraction split by transform outcome. readings[i] came
// from sources[i].
type batch struct {
	readings []domain.ReadingEvent
	sources  []domain.RawEvent
	skipped  int
}

func (p *Pipeline) handle(ctx context.Context, raws []domain.RawEvent, bo backoff.BackOff) {
	start := time.Now()
	p.metrics.MessagesConsumed.Add(float64(len(raws)))
	p.metrics.BatchSize.Observe(float64(len(raws)))

	b := p.transform(ctx, raws)
	if len(b.readings) == 0 {
		return
	}
	if !p.load(ctx, b, bo) {
		return
	}

	p.metrics.MessagesProduced.Add(float64(len(b.readings)))
	for _, raw := range b.sources {
		p.commitOffset(ctx, raw)
	}
	p.metrics.BatchProcessingDuration.Observe(time.Since(start).Seconds())
	p.ready.Store(true)
	p.logger.Debug("batch loaded", "readings", len(b.readings), "skipped", b.skipped)
}

func (p *Pipeline) transform(ctx context.Context, raws []domain.RawEvent) batch {
	b := batch{
		readings: make([]domain.ReadingEvent, 0, len(raws)),
		sources:  make([]domain.RawEvent, 0, len(raws)),
	}
	for _, raw := range raws {
		reading, err := p.transformer.Transform(ctx, raw)
		if err != nil {
			p.logger.Warn("transform failed, skipping message",
				"error", err, "topic", raw.Topic, "partition", raw.Partition, "offset", raw.Offset)
			p.metrics.TransformErrors.Inc()
			p.commitOffset(ctx, raw)
			b.skipped++
			continue
		}
		b.readings = append(b.readings, reading)
		b.sources = append(b.sources, raw)
	}
	return b
}

// load hands the batch to the loader until it succeeds. It returns false
// only when ctx ends first, leaving the offsets uncommitted.
func (p *Pipeline) load(ctx context.Context, b batch, bo backoff.BackOff) bool {
	for attempt := 1; ; attempt++ {
		err := p.loader.LoadBatch(ctx, b.readings)
		if err == nil {
			bo.Reset()
			return true
		}
		p.logger.Error("load batch failed", "error", err, "batch_size", len(b.readings), "attempt", attempt)
		if ctx.Err() != nil || !sleepWithContext(ctx, bo.NextBackOff()) {
			return false
		}
	}
}

// newBackOff returns the retry schedule for extract and load failures:
// 200ms doubling to a 5s cap, without jitter, never giving up.
func newBackOff() *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.Multiplier = 2
	bo.RandomizationFactor = 0
	bo.MaxInterval = 5 * time.Second
	bo.MaxElapsedTime = 0
	bo.Reset()
	return bo
}

// commitOffset commits the message offset if a commit function is available.
func (p *Pipeline) commitOffset(ctx context.Context, raw domain.RawEvent) {
	if raw.Commit == nil {
		return
	}
	if err := raw.Commit(ctx); err != nil {
		p.logger.Warn("commit offset failed", "error", err,
			"topic", raw.Topic, "partition", raw.Partition, "offset", raw.Offset)
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
