package plot

import (
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/couchcryptid/borehole-data-service/internal/domain"
	"github.com/couchcryptid/borehole-data-service/internal/observability"
)

// CachedRenderer wraps a Renderer with an in-memory LRU of encoded PNGs.
// Entries are keyed by borehole id and revision, so a new reading makes the
// old image unreachable rather than stale.
type CachedRenderer struct {
	inner   *Renderer
	cache   *lru.Cache[string, []byte]
	metrics *observability.Metrics
}

// NewCachedRenderer creates a cache decorator around a renderer. A
// non-positive maxEntries keeps a single image.
func NewCachedRenderer(inner *Renderer, maxEntries int, metrics *observability.Metrics) *CachedRenderer {
	if maxEntries <= 0 {
		maxEntries = 1
	}
	cache, err := lru.NewWithEvict(maxEntries, func(string, []byte) {
		metrics.ProfileCache.WithLabelValues("evict").Inc()
	})
	if err != nil {
		// Only returned for a non-positive size.
		panic(err)
	}
	return &CachedRenderer{inner: inner, cache: cache, metrics: metrics}
}

func profileKey(boreholeID string, revision uint64) string {
	return fmt.Sprintf("%s@%d", boreholeID, revision)
}

// RenderPNG returns the PNG for p at the given revision, drawing it only on
// a cache miss.
func (c *CachedRenderer) RenderPNG(p domain.Profile, revision uint64) ([]byte, error) {
	key := profileKey(p.BoreholeID, revision)
	if data, ok := c.cache.Get(key); ok {
		c.metrics.ProfileCache.WithLabelValues("hit").Inc()
		return data, nil
	}
	c.metrics.ProfileCache.WithLabelValues("miss").Inc()

	start := time.Now()
	data, err := c.inner.RenderPNG(p)
	if err != nil {
		c.metrics.ProfileRenders.WithLabelValues("error").Inc()
		return nil, err
	}
	c.metrics.ProfileRenders.WithLabelValues("success").Inc()
	c.metrics.ProfileRenderDuration.Observe(time.Since(start).Seconds())

	c.cache.Add(key, data)
	return data, nil
}

// Len reports the number of cached images.
func (c *CachedRenderer) Len() int { return c.cache.Len() }
