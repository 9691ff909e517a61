// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"

	"svcgraph/internal/lifecycle"
	"svcgraph/internal/metadata"
)

func TestRecorder_FactoryRecordsLifecycle(t *testing.T) {
	t.Parallel()

	rec := NewRecorder()
	boom := errors.New("close failed")
	f := rec.Factory(WithDestroyError(boom))

	inst, err := f(context.Background(), lifecycle.ServiceOptions{ID: metadata.ServiceID{Package: "p", Service: "S"}})
	if err != nil {
		t.Fatalf("factory error: %v", err)
	}
	svc := inst.(*FakeService)
	if err := svc.Destroy(context.Background()); !errors.Is(err, boom) {
		t.Errorf("Destroy() = %v, want %v", err, boom)
	}
	if svc.DestroyCount() != 1 {
		t.Errorf("DestroyCount() = %d", svc.DestroyCount())
	}

	var kinds []EventKind
	for _, e := range rec.Events() {
		kinds = append(kinds, e.Kind)
	}
	if want := []EventKind{EventConstructStart, EventConstructDone, EventDestroy}; !slices.Equal(kinds, want) {
		t.Errorf("events = %v, want %v", kinds, want)
	}
	if seq, ok := rec.Seq(EventDestroy, "p::S"); !ok || seq != 2 {
		t.Errorf("Seq(destroy) = %d, %v", seq, ok)
	}
}

func TestRecorder_ConstructError(t *testing.T) {
	t.Parallel()

	rec := NewRecorder()
	boom := errors.New("boom")
	_, err := rec.Factory(WithConstructError(boom))(context.Background(), lifecycle.ServiceOptions{})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if got := rec.Services(EventConstructFailed); len(got) != 1 {
		t.Errorf("construct-failed events = %v", got)
	}
}

func TestRecorder_MaxInFlight(t *testing.T) {
	t.Parallel()

	rec := NewRecorder()
	release := make(chan struct{})
	var entered sync.WaitGroup
	entered.Add(3)
	f := rec.Factory(WithHook(func(context.Context, lifecycle.ServiceOptions) error {
		entered.Done()
		<-release
		return nil
	}))

	var wg sync.WaitGroup
	for range 3 {
		wg.Go(func() {
			_, _ = f(context.Background(), lifecycle.ServiceOptions{})
		})
	}
	entered.Wait()
	close(release)
	wg.Wait()

	if got := rec.MaxInFlight(); got != 3 {
		t.Errorf("MaxInFlight() = %d, want 3", got)
	}
}
