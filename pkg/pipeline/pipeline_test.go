// Copyright © 2024 Timothy E. Peoples

package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-sage/corobus/pkg/corobus"
)

type sliceIO struct {
	values []uint32

	mu  sync.Mutex
	got []uint32
}

func (s *sliceIO) Feed(ctx context.Context, bus *corobus.Bus, in int) error {
	for _, v := range s.values {
		if err := bus.Send(ctx, in, v); err != nil {
			return err
		}
	}
	return nil
}

func (s *sliceIO) Collect(ctx context.Context, bus *corobus.Bus, out int) error {
	for {
		v, err := bus.Recv(ctx, out)
		if err != nil {
			if errors.Is(err, corobus.ErrNoChannel) {
				return nil
			}
			return err
		}
		s.mu.Lock()
		s.got = append(s.got, v)
		s.mu.Unlock()
	}
}

func runWithTimeout(t *testing.T, p *Pipeline) error {
	t.Helper()

	done := make(chan error, 1)
	go func() { done <- p.Run(context.Background()) }()

	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for pipeline to finish")
		return nil
	}
}

func TestPipelineSingleStageDoubles(t *testing.T) {
	bus := corobus.New()
	io := &sliceIO{values: []uint32{1, 2, 3, 4, 5}}

	p := New(io, bus)
	if err := p.Add("double", 2, func(ctx context.Context, v uint32) (uint32, error) {
		return v * 2, nil
	}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	if err := runWithTimeout(t, p); err != nil {
		t.Fatalf("Run: %v", err)
	}

	io.mu.Lock()
	defer io.mu.Unlock()

	if len(io.got) != len(io.values) {
		t.Fatalf("got %d results; want %d", len(io.got), len(io.values))
	}

	var sum, want uint32
	for _, v := range io.got {
		sum += v
	}
	for _, v := range io.values {
		want += v * 2
	}
	if sum != want {
		t.Fatalf("sum = %d; want %d", sum, want)
	}
}

func TestPipelineMultiStageChain(t *testing.T) {
	bus := corobus.New()
	io := &sliceIO{values: []uint32{1, 2, 3}}

	p := New(io, bus)
	if err := p.Add("plus-one", 1, func(ctx context.Context, v uint32) (uint32, error) {
		return v + 1, nil
	}); err != nil {
		t.Fatalf("Add plus-one: %v", err)
	}
	if err := p.Add("times-ten", 1, func(ctx context.Context, v uint32) (uint32, error) {
		return v * 10, nil
	}); err != nil {
		t.Fatalf("Add times-ten: %v", err)
	}

	if err := runWithTimeout(t, p); err != nil {
		t.Fatalf("Run: %v", err)
	}

	io.mu.Lock()
	defer io.mu.Unlock()

	want := map[uint32]bool{20: true, 30: true, 40: true}
	if len(io.got) != len(want) {
		t.Fatalf("got %v; want one each of %v", io.got, want)
	}
	for _, v := range io.got {
		if !want[v] {
			t.Fatalf("unexpected result %d in %v", v, io.got)
		}
	}
}

func TestPipelineNoStagesReturnsErrNoStages(t *testing.T) {
	bus := corobus.New()
	p := New(&sliceIO{}, bus)

	if err := p.Run(context.Background()); !errors.Is(err, ErrNoStages) {
		t.Fatalf("Run with no stages = %v; want ErrNoStages", err)
	}
}

func TestPipelineAddNameConflict(t *testing.T) {
	bus := corobus.New()
	p := New(&sliceIO{}, bus)

	sfunc := func(ctx context.Context, v uint32) (uint32, error) { return v, nil }
	if err := p.Add("stage", 1, sfunc); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := p.Add("stage", 1, sfunc); !errors.Is(err, ErrNameConflict) {
		t.Fatalf("Add duplicate name = %v; want ErrNameConflict", err)
	}
}

func TestPipelineAddAfterRunIsRejected(t *testing.T) {
	bus := corobus.New()
	io := &sliceIO{values: []uint32{1}}
	p := New(io, bus)

	sfunc := func(ctx context.Context, v uint32) (uint32, error) { return v, nil }
	if err := p.Add("stage", 1, sfunc); err != nil {
		t.Fatalf("Add: %v", err)
	}

	if err := runWithTimeout(t, p); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if err := p.Add("another", 1, sfunc); !errors.Is(err, ErrIsStarted) {
		t.Fatalf("Add after Run = %v; want ErrIsStarted", err)
	}
}

func TestPipelineResizeUnknownStage(t *testing.T) {
	bus := corobus.New()
	p := New(&sliceIO{}, bus)

	if _, err := p.Resize("ghost", 3); !errors.Is(err, ErrNameUnknown) {
		t.Fatalf("Resize unknown stage = %v; want ErrNameUnknown", err)
	}
}

func TestPipelineResizeUpdatesMetrics(t *testing.T) {
	bus := corobus.New()
	p := New(&sliceIO{}, bus)

	sfunc := func(ctx context.Context, v uint32) (uint32, error) { return v, nil }
	if err := p.Add("stage", 2, sfunc); err != nil {
		t.Fatalf("Add: %v", err)
	}

	prev, err := p.Resize("stage", 5)
	if err != nil {
		t.Fatalf("Resize: %v", err)
	}
	if prev != 2 {
		t.Fatalf("Resize previous = %d; want 2", prev)
	}

	m, err := p.Metrics("stage")
	if err != nil {
		t.Fatalf("Metrics: %v", err)
	}
	if m.Capacity != 5 {
		t.Fatalf("Metrics.Capacity = %d; want 5", m.Capacity)
	}
}

func TestPipelineGoFuncFailureFailsRun(t *testing.T) {
	bus := corobus.New()
	io := &sliceIO{values: []uint32{1}}
	p := New(io, bus)

	if err := p.Add("stage", 1, func(ctx context.Context, v uint32) (uint32, error) {
		return v, nil
	}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	wantErr := errors.New("side task failed")
	p.Go(func(ctx context.Context) error {
		return wantErr
	})

	err := runWithTimeout(t, p)
	if !errors.Is(err, wantErr) {
		t.Fatalf("Run = %v; want %v", err, wantErr)
	}
}
