package observability

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewMetricsRegistersOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.Claims.WithLabelValues(ClaimClaimed).Inc()
	m.Claims.WithLabelValues(ClaimStockout).Add(2)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Claims.WithLabelValues(ClaimClaimed)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Claims.WithLabelValues(ClaimStockout)))

	require.Panics(t, func() { NewMetrics(reg) })
}

func TestFromContext(t *testing.T) {
	fallback := zap.NewNop()
	assert.Same(t, fallback, FromContext(context.Background(), fallback))

	scoped := zap.NewNop().With(zap.String("k", "v"))
	ctx := ContextWithLogger(context.Background(), scoped)
	assert.Same(t, scoped, FromContext(ctx, fallback))
}
