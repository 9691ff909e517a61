// SPDX-License-Identifier: MPL-2.0

package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func gather(t *testing.T, g prometheus.Gatherer) map[string]*dto.MetricFamily {
	t.Helper()
	families, err := g.Gather()
	if err != nil {
		t.Fatalf("Gather() error: %v", err)
	}
	out := make(map[string]*dto.MetricFamily, len(families))
	for _, f := range families {
		out[f.GetName()] = f
	}
	return out
}

func TestNewCollector_PrivateRegistry(t *testing.T) {
	t.Parallel()

	c, err := NewCollector(nil)
	if err != nil {
		t.Fatalf("NewCollector() error: %v", err)
	}
	if c.Gatherer() == nil {
		t.Fatal("expected a private gatherer")
	}

	// A second collector must not clash with the first.
	if _, err := NewCollector(nil); err != nil {
		t.Fatalf("second NewCollector() error: %v", err)
	}
}

func TestNewCollector_DuplicateRegistration(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	if _, err := NewCollector(reg); err != nil {
		t.Fatalf("NewCollector() error: %v", err)
	}
	if _, err := NewCollector(reg); err == nil {
		t.Fatal("expected registration error")
	}
}

func TestCollector_Records(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c, err := NewCollector(reg)
	if err != nil {
		t.Fatalf("NewCollector() error: %v", err)
	}

	c.RecordConstruction("map::Registry", 5*time.Millisecond, nil)
	c.RecordConstruction("map::Config", time.Millisecond, nil)
	c.RecordConstruction("map::Broken", time.Millisecond, errors.New("boom"))
	c.RecordDestruction("map::Config", time.Millisecond, errors.New("close failed"))
	c.RecordError("service-construction-failed")
	c.RecordError("service-construction-failed")

	families := gather(t, reg)

	if got := families["svcgraph_services_active"].GetMetric()[0].GetGauge().GetValue(); got != 1 {
		t.Errorf("services_active = %v, want 1", got)
	}
	if got := families["svcgraph_lifecycle_errors_total"].GetMetric()[0].GetCounter().GetValue(); got != 2 {
		t.Errorf("errors_total = %v, want 2", got)
	}
	if got := len(families["svcgraph_service_construction_seconds"].GetMetric()); got != 3 {
		t.Errorf("construction series = %d, want 3", got)
	}
	if _, ok := families["svcgraph_service_destruction_seconds"]; !ok {
		t.Error("destruction histogram missing")
	}
}

func TestCollector_NilIsNoop(t *testing.T) {
	t.Parallel()

	var c *Collector
	c.RecordConstruction("a::A", time.Millisecond, nil)
	c.RecordDestruction("a::A", time.Millisecond, nil)
	c.RecordError("internal-error")
	if c.Gatherer() != nil {
		t.Error("nil collector should have no gatherer")
	}
}
