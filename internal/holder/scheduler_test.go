package holder

import (
	"context"
	"testing"
	"time"
)

type recordingSurface struct {
	views  chan View
	hidden chan struct{}
}

func newRecordingSurface() *recordingSurface {
	return &recordingSurface{views: make(chan View, 64), hidden: make(chan struct{}, 1)}
}

func (s *recordingSurface) Render(v View) { s.views <- v }

func (s *recordingSurface) Hide() { s.hidden <- struct{}{} }

func (s *recordingSurface) next(t *testing.T) View {
	t.Helper()
	select {
	case v := <-s.views:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for render")
		return View{}
	}
}

func startScheduler(t *testing.T, h *harness, rotation time.Duration) (*recordingSurface, context.CancelFunc, <-chan error) {
	t.Helper()
	if err := h.session.Unlock(context.Background()); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	surface := newRecordingSurface()
	scheduler := &Scheduler{Session: h.session, Clock: h.clock, RotationInterval: rotation, Surface: surface}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- scheduler.Run(ctx) }()
	return surface, cancel, done
}

func waitDone(t *testing.T, done <-chan error) {
	t.Helper()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestSchedulerRotatesUntilTimeout(t *testing.T) {
	h := newHarness(t, 5*time.Second, 2*time.Second)
	surface, cancel, done := startScheduler(t, h, 2*time.Second)
	defer cancel()

	first := surface.next(t)
	if first.Envelope == nil || first.Remaining != 5*time.Second {
		t.Fatalf("expected code on start, got %+v", first)
	}

	// Each step: seconds elapsed and how many renders it produces.
	steps := []int{1, 2, 1, 2}
	for _, renders := range steps {
		h.clock.Advance(time.Second)
		for i := 0; i < renders; i++ {
			surface.next(t)
		}
	}
	if view := h.session.View(); view.Remaining != time.Second || view.Envelope == nil || view.Envelope.Payload.Nonce == first.Envelope.Payload.Nonce {
		t.Fatalf("expected rotated code with one second left, got %+v", view)
	}

	h.clock.Advance(time.Second)
	waitDone(t, done)
	<-surface.hidden

	if h.session.State() != StateLocked {
		t.Fatal("expected session to lock on timeout")
	}
	if h.clock.ActiveTickers() != 0 {
		t.Fatalf("expected both tickers stopped, got %d", h.clock.ActiveTickers())
	}
	built := h.builder.count()
	if built != 3 {
		t.Fatalf("expected 3 builds, got %d", built)
	}
	h.clock.Advance(10 * time.Second)
	if h.builder.count() != built {
		t.Fatal("expected no envelopes after session end")
	}
}

func TestSchedulerStopsOnClose(t *testing.T) {
	h := newHarness(t, 0, 30*time.Second)
	surface, cancel, done := startScheduler(t, h, 30*time.Second)
	surface.next(t)

	cancel()
	waitDone(t, done)
	<-surface.hidden

	if h.session.State() != StateLocked || h.session.View().Envelope != nil {
		t.Fatal("expected closed session without a code")
	}
	if h.clock.ActiveTickers() != 0 {
		t.Fatalf("expected both tickers stopped, got %d", h.clock.ActiveTickers())
	}
	h.clock.Advance(time.Minute)
	if h.builder.count() != 1 {
		t.Fatalf("expected only the initial build, got %d", h.builder.count())
	}
}

func TestSchedulerRequiresDisplaying(t *testing.T) {
	h := newHarness(t, 0, 0)
	s := &Scheduler{Session: h.session, Clock: h.clock, Surface: newRecordingSurface()}
	if err := s.Run(context.Background()); err == nil {
		t.Fatal("expected locked session to be rejected")
	}
}
