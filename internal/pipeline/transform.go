package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/borehole-data-service/internal/domain"
)

// ReadingTransformer implements Transformer using the domain parse and
// enrich functions, applying the configured validation policy.
type ReadingTransformer struct {
	policy domain.ValidationPolicy
	logger *slog.Logger
}

// NewTransformer creates a ReadingTransformer.
func NewTransformer(policy domain.ValidationPolicy, logger *slog.Logger) *ReadingTransformer {
	return &ReadingTransformer{
		policy: policy,
		logger: logger,
	}
}

func (t *ReadingTransformer) Transform(_ context.Context, raw domain.RawEvent) (domain.ReadingEvent, error) {
	event, err := domain.ParseRawEvent(raw)
	if err != nil {
		return domain.ReadingEvent{}, err
	}
	if err := t.policy.CheckReading(event.Depth, event.BlowData); err != nil {
		return domain.ReadingEvent{}, fmt.Errorf("reading %s at %gm: %w", event.BoreholeID, event.Depth, err)
	}

	event = domain.EnrichReading(event)
	t.logger.Debug("reading transformed",
		"reading_id", event.ID,
		"borehole_id", event.BoreholeID,
		"depth", event.Depth,
		"blow_count", event.BlowCount,
	)
	return event, nil
}
