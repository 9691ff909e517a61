// SPDX-License-Identifier: MPL-2.0

// Package metrics exposes Prometheus collectors for service construction and
// teardown. A nil *Collector is valid and records nothing.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "svcgraph"

// Result label values.
const (
	ResultSuccess = "success"
	ResultError   = "error"
)

// Collector records lifecycle metrics for one or more applications.
type Collector struct {
	gatherer prometheus.Gatherer

	construction *prometheus.HistogramVec
	destruction  *prometheus.HistogramVec
	errors       *prometheus.CounterVec
	active       prometheus.Gauge
}

// NewCollector creates the collectors and registers them with reg. A nil reg
// registers with a private registry, which Gatherer then exposes.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		construction: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "service",
				Name:      "construction_seconds",
				Help:      "Time taken by service factories.",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
			},
			[]string{"service", "result"},
		),
		destruction: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "service",
				Name:      "destruction_seconds",
				Help:      "Time taken by service destructors.",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~2s
			},
			[]string{"service", "result"},
		),
		errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "lifecycle",
				Name:      "errors_total",
				Help:      "Lifecycle errors by kind.",
			},
			[]string{"kind"},
		),
		active: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "services",
				Name:      "active",
				Help:      "Number of services currently active.",
			},
		),
	}

	if reg == nil {
		r := prometheus.NewRegistry()
		reg, c.gatherer = r, r
	} else if g, ok := reg.(prometheus.Gatherer); ok {
		c.gatherer = g
	}

	for _, col := range []prometheus.Collector{c.construction, c.destruction, c.errors, c.active} {
		if err := reg.Register(col); err != nil {
			return nil, fmt.Errorf("register lifecycle metrics: %w", err)
		}
	}
	return c, nil
}

// Gatherer returns the registry the collectors were registered with, when it
// can be gathered from.
func (c *Collector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// RecordConstruction records one factory call. A successful construction
// also counts the service as active.
func (c *Collector) RecordConstruction(service string, duration time.Duration, err error) {
	if c == nil {
		return
	}
	c.construction.WithLabelValues(service, result(err)).Observe(duration.Seconds())
	if err == nil {
		c.active.Inc()
	}
}

// RecordDestruction records one teardown of an active service. The service
// stops counting as active whatever the destructor returned.
func (c *Collector) RecordDestruction(service string, duration time.Duration, err error) {
	if c == nil {
		return
	}
	c.destruction.WithLabelValues(service, result(err)).Observe(duration.Seconds())
	c.active.Dec()
}

// RecordError counts one lifecycle error of the given kind.
func (c *Collector) RecordError(kind string) {
	if c == nil {
		return
	}
	c.errors.WithLabelValues(kind).Inc()
}

func result(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultSuccess
}
