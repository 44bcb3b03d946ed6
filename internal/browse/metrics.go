package browse

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/fyrsmithlabs/scadad/internal/browse"

// Metrics holds the browse engine's instruments.
type Metrics struct {
	meter       metric.Meter
	logger      *zap.Logger
	browses     metric.Int64Counter
	driverCalls metric.Int64Counter
	cacheHits   metric.Int64Counter
	cacheMisses metric.Int64Counter
	duration    metric.Float64Histogram
}

// NewMetrics creates a Metrics instance on the global meter provider.
func NewMetrics(logger *zap.Logger) *Metrics {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Metrics{
		meter:  otel.Meter(instrumentationName),
		logger: logger,
	}
	m.init()
	return m
}

func (m *Metrics) init() {
	var err error

	m.browses, err = m.meter.Int64Counter(
		"scadad.browse.invocations_total",
		metric.WithDescription("Total number of browse invocations"),
		metric.WithUnit("{invocation}"),
	)
	if err != nil {
		m.logger.Warn("failed to create browse counter", zap.Error(err))
	}

	m.driverCalls, err = m.meter.Int64Counter(
		"scadad.browse.driver_calls_total",
		metric.WithDescription("Total number of peripheral driver calls issued"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		m.logger.Warn("failed to create driver call counter", zap.Error(err))
	}

	m.cacheHits, err = m.meter.Int64Counter(
		"scadad.browse.cache_hits_total",
		metric.WithDescription("Result cache hits"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		m.logger.Warn("failed to create cache hit counter", zap.Error(err))
	}

	m.cacheMisses, err = m.meter.Int64Counter(
		"scadad.browse.cache_misses_total",
		metric.WithDescription("Result cache misses"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		m.logger.Warn("failed to create cache miss counter", zap.Error(err))
	}

	m.duration, err = m.meter.Float64Histogram(
		"scadad.browse.duration_seconds",
		metric.WithDescription("Duration of browse invocations"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0, 120.0),
	)
	if err != nil {
		m.logger.Warn("failed to create duration histogram", zap.Error(err))
	}
}

// RecordBrowse records one browse invocation.
func (m *Metrics) RecordBrowse(ctx context.Context, strategy string, d time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	attrs := metric.WithAttributes(
		attribute.String("strategy", strategy),
		attribute.String("result", result),
	)
	if m.browses != nil {
		m.browses.Add(ctx, 1, attrs)
	}
	if m.duration != nil {
		m.duration.Record(ctx, d.Seconds(), attrs)
	}
}

// RecordCache records one cache lookup.
func (m *Metrics) RecordCache(ctx context.Context, hit bool) {
	if hit {
		if m.cacheHits != nil {
			m.cacheHits.Add(ctx, 1)
		}
		return
	}
	if m.cacheMisses != nil {
		m.cacheMisses.Add(ctx, 1)
	}
}

// AddDriverCalls records n driver calls.
func (m *Metrics) AddDriverCalls(ctx context.Context, n int64) {
	if m.driverCalls != nil {
		m.driverCalls.Add(ctx, n)
	}
}
