package plot

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/borehole-data-service/internal/observability"
)

func TestCachedRenderer_HitAndMiss(t *testing.T) {
	metrics := observability.NewMetricsForTesting()
	c := NewCachedRenderer(newTestRenderer(t), 4, metrics)
	p := testProfile()

	first, err := c.RenderPNG(p, 1)
	require.NoError(t, err)
	second, err := c.RenderPNG(p, 1)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ProfileCache.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ProfileCache.WithLabelValues("miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ProfileRenders.WithLabelValues("success")))

	_, err = c.RenderPNG(p, 2)
	require.NoError(t, err)
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.ProfileCache.WithLabelValues("miss")), "new revision is a miss")
}

func TestCachedRenderer_ErrorsNotCached(t *testing.T) {
	metrics := observability.NewMetricsForTesting()
	c := NewCachedRenderer(newTestRenderer(t), 4, metrics)
	p := testProfile()
	p.Y = nil

	_, err := c.RenderPNG(p, 1)
	require.Error(t, err)
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ProfileRenders.WithLabelValues("error")))
}

func TestCachedRenderer_EvictsLeastRecentlyUsed(t *testing.T) {
	metrics := observability.NewMetricsForTesting()
	c := NewCachedRenderer(newTestRenderer(t), 2, metrics)
	p := testProfile()

	for _, rev := range []uint64{1, 2, 1, 3} { // 1 is touched again, so 2 is evicted
		_, err := c.RenderPNG(p, rev)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ProfileCache.WithLabelValues("evict")))

	_, err := c.RenderPNG(p, 1)
	require.NoError(t, err)
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.ProfileCache.WithLabelValues("hit")))

	_, err = c.RenderPNG(p, 2)
	require.NoError(t, err)
	assert.Equal(t, 4.0, testutil.ToFloat64(metrics.ProfileCache.WithLabelValues("miss")), "evicted revision is redrawn")
}

func TestCachedRenderer_NonPositiveSize(t *testing.T) {
	c := NewCachedRenderer(newTestRenderer(t), 0, observability.NewMetricsForTesting())
	for _, rev := range []uint64{1, 2} {
		_, err := c.RenderPNG(testProfile(), rev)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, c.Len())
}
