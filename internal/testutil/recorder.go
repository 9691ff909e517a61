// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"svcgraph/internal/graph"
	"svcgraph/internal/lifecycle"
)

// Event kinds logged by a Recorder.
const (
	EventConstructStart  EventKind = "construct-start"
	EventConstructDone   EventKind = "construct-done"
	EventConstructFailed EventKind = "construct-failed"
	EventDestroy         EventKind = "destroy"
)

type (
	// EventKind names one step of a fake service's life.
	EventKind string

	// Event is one logged step. Seq is global across all services of a Recorder.
	Event struct {
		Seq     int
		Kind    EventKind
		Service string
	}

	// Recorder logs the lifecycle of fake services.
	Recorder struct {
		mu     sync.Mutex
		events []Event

		inFlight    atomic.Int32
		maxInFlight atomic.Int32
	}

	// FakeService is the instance a Recorder factory returns.
	FakeService struct {
		ID      string
		Options lifecycle.ServiceOptions

		rec        *Recorder
		destroyErr error
		destroyed  atomic.Int32
	}

	// FactoryOption customizes one fake factory.
	FactoryOption func(*factoryConfig)

	factoryConfig struct {
		constructErr error
		destroyErr   error
		delay        time.Duration
		hook         func(ctx context.Context, opts lifecycle.ServiceOptions) error
	}
)

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// WithConstructError makes the factory fail with err.
func WithConstructError(err error) FactoryOption {
	return func(c *factoryConfig) { c.constructErr = err }
}

// WithDestroyError makes Destroy fail with err.
func WithDestroyError(err error) FactoryOption {
	return func(c *factoryConfig) { c.destroyErr = err }
}

// WithDelay makes the factory sleep before returning.
func WithDelay(d time.Duration) FactoryOption {
	return func(c *factoryConfig) { c.delay = d }
}

// WithHook runs fn inside the factory after the start event; a non-nil
// error fails the construction.
func WithHook(fn func(ctx context.Context, opts lifecycle.ServiceOptions) error) FactoryOption {
	return func(c *factoryConfig) { c.hook = fn }
}

// Record appends an event and returns its sequence number.
func (r *Recorder) Record(kind EventKind, service string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	seq := len(r.events)
	r.events = append(r.events, Event{Seq: seq, Kind: kind, Service: service})
	return seq
}

// Events returns a copy of the log.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Services returns the services of every event of kind, in log order.
func (r *Recorder) Services(kind EventKind) []string {
	var out []string
	for _, e := range r.Events() {
		if e.Kind == kind {
			out = append(out, e.Service)
		}
	}
	return out
}

// Seq returns the sequence number of the first event of kind for service.
func (r *Recorder) Seq(kind EventKind, service string) (int, bool) {
	for _, e := range r.Events() {
		if e.Kind == kind && e.Service == service {
			return e.Seq, true
		}
	}
	return 0, false
}

// MaxInFlight returns the highest number of factories that ran at once.
func (r *Recorder) MaxInFlight() int {
	return int(r.maxInFlight.Load())
}

// Factory returns a factory producing *FakeService instances.
func (r *Recorder) Factory(opts ...FactoryOption) lifecycle.Factory {
	cfg := factoryConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	return func(ctx context.Context, so lifecycle.ServiceOptions) (any, error) {
		id := so.ID.String()
		r.Record(EventConstructStart, id)

		n := r.inFlight.Add(1)
		defer r.inFlight.Add(-1)
		for {
			seen := r.maxInFlight.Load()
			if n <= seen || r.maxInFlight.CompareAndSwap(seen, n) {
				break
			}
		}

		if cfg.delay > 0 {
			time.Sleep(cfg.delay)
		}
		err := cfg.constructErr
		if err == nil && cfg.hook != nil {
			err = cfg.hook(ctx, so)
		}
		if err != nil {
			r.Record(EventConstructFailed, id)
			return nil, err
		}

		r.Record(EventConstructDone, id)
		return &FakeService{ID: id, Options: so, rec: r, destroyErr: cfg.destroyErr}, nil
	}
}

// Registry registers a recording factory for every node of g. Options in
// perService apply to the service with that "package::service" id.
func (r *Recorder) Registry(g *graph.Graph, perService map[string][]FactoryOption) lifecycle.Registry {
	reg := make(lifecycle.Registry, len(g.Nodes))
	for _, n := range g.Nodes {
		reg[n.ID] = r.Factory(perService[n.ID.String()]...)
	}
	return reg
}

// Destroy records the teardown and returns the configured error.
func (s *FakeService) Destroy(context.Context) error {
	s.destroyed.Add(1)
	s.rec.Record(EventDestroy, s.ID)
	return s.destroyErr
}

// DestroyCount returns how many times Destroy ran.
func (s *FakeService) DestroyCount() int {
	return int(s.destroyed.Load())
}
