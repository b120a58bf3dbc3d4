package metrics

import (
	"context"
	"sync"

	"github.com/hilthontt/letschat/infrastructure/logger"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"
)

// Manager registers instruments by name and records into them. Recording
// into an unregistered name is logged and ignored.
type Manager interface {
	NewCounter(name, desc string)
	NewUpDownCounter(name, desc string)
	NewHistogram(name, desc string, buckets ...float64)
	NewGauge(name, desc string)

	IncrementCounter(ctx context.Context, name string, labels ...attribute.KeyValue)
	AddCounter(ctx context.Context, name string, value int64, labels ...attribute.KeyValue)
	DeltaUpDownCounter(ctx context.Context, name string, value float64, labels ...attribute.KeyValue)
	RecordHistogram(ctx context.Context, name string, value float64, labels ...attribute.KeyValue)
	SetGauge(name string, value float64, labels ...attribute.KeyValue)
}

type manager struct {
	meter  metric.Meter
	logger *logger.Logger

	mu         sync.RWMutex
	counters   map[string]metric.Int64Counter
	upDowns    map[string]metric.Float64UpDownCounter
	histograms map[string]metric.Float64Histogram
	gauges     map[string]metric.Float64Gauge
}

func NewMetricsManager(meter metric.Meter, logger *logger.Logger) Manager {
	return &manager{
		meter:      meter,
		logger:     logger,
		counters:   make(map[string]metric.Int64Counter),
		upDowns:    make(map[string]metric.Float64UpDownCounter),
		histograms: make(map[string]metric.Float64Histogram),
		gauges:     make(map[string]metric.Float64Gauge),
	}
}

// NewNopManager returns a manager backed by a noop meter. Used by tests.
func NewNopManager() Manager {
	return NewMetricsManager(noop.NewMeterProvider().Meter("nop"), logger.NewNop())
}

func (m *manager) NewCounter(name, desc string) {
	c, err := m.meter.Int64Counter(name, metric.WithDescription(desc))
	if err != nil {
		m.logger.Error("failed to create counter", zap.String("name", name), zap.Error(err))
		return
	}
	m.mu.Lock()
	m.counters[name] = c
	m.mu.Unlock()
}

func (m *manager) NewUpDownCounter(name, desc string) {
	c, err := m.meter.Float64UpDownCounter(name, metric.WithDescription(desc))
	if err != nil {
		m.logger.Error("failed to create up-down counter", zap.String("name", name), zap.Error(err))
		return
	}
	m.mu.Lock()
	m.upDowns[name] = c
	m.mu.Unlock()
}

func (m *manager) NewHistogram(name, desc string, buckets ...float64) {
	opts := []metric.Float64HistogramOption{metric.WithDescription(desc)}
	if len(buckets) > 0 {
		opts = append(opts, metric.WithExplicitBucketBoundaries(buckets...))
	}
	h, err := m.meter.Float64Histogram(name, opts...)
	if err != nil {
		m.logger.Error("failed to create histogram", zap.String("name", name), zap.Error(err))
		return
	}
	m.mu.Lock()
	m.histograms[name] = h
	m.mu.Unlock()
}

func (m *manager) NewGauge(name, desc string) {
	g, err := m.meter.Float64Gauge(name, metric.WithDescription(desc))
	if err != nil {
		m.logger.Error("failed to create gauge", zap.String("name", name), zap.Error(err))
		return
	}
	m.mu.Lock()
	m.gauges[name] = g
	m.mu.Unlock()
}

func (m *manager) IncrementCounter(ctx context.Context, name string, labels ...attribute.KeyValue) {
	m.AddCounter(ctx, name, 1, labels...)
}

func (m *manager) AddCounter(ctx context.Context, name string, value int64, labels ...attribute.KeyValue) {
	m.mu.RLock()
	c, ok := m.counters[name]
	m.mu.RUnlock()
	if !ok {
		m.logger.Warn("counter not registered", zap.String("name", name))
		return
	}
	c.Add(ctx, value, metric.WithAttributes(labels...))
}

func (m *manager) DeltaUpDownCounter(ctx context.Context, name string, value float64, labels ...attribute.KeyValue) {
	m.mu.RLock()
	c, ok := m.upDowns[name]
	m.mu.RUnlock()
	if !ok {
		m.logger.Warn("up-down counter not registered", zap.String("name", name))
		return
	}
	c.Add(ctx, value, metric.WithAttributes(labels...))
}

func (m *manager) RecordHistogram(ctx context.Context, name string, value float64, labels ...attribute.KeyValue) {
	m.mu.RLock()
	h, ok := m.histograms[name]
	m.mu.RUnlock()
	if !ok {
		m.logger.Warn("histogram not registered", zap.String("name", name))
		return
	}
	h.Record(ctx, value, metric.WithAttributes(labels...))
}

func (m *manager) SetGauge(name string, value float64, labels ...attribute.KeyValue) {
	m.mu.RLock()
	g, ok := m.gauges[name]
	m.mu.RUnlock()
	if !ok {
		m.logger.Warn("gauge not registered", zap.String("name", name))
		return
	}
	g.Record(context.Background(), value, metric.WithAttributes(labels...))
}
