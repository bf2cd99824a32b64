package holder

import (
	"context"
	"time"

	"gatepass/internal/clock"
	"gatepass/internal/domain"
	"gatepass/internal/usecase"
)

// Surface renders the current view. Hide is called once when the session
// ends; nothing is rendered afterwards.
type Surface interface {
	Render(View)
	Hide()
}

// Scheduler owns the rotation ticker and the one-second session countdown.
// Both stop together when Run returns.
type Scheduler struct {
	Session          *Session
	Clock            clock.Clock
	RotationInterval time.Duration
	Surface          Surface
}

// Run shows a freshly built code, then rotates it every RotationInterval
// until the session times out or ctx is cancelled. Cancellation is the
// holder closing the presentation and is not an error.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.Session.State() != StateDisplaying {
		return domain.ErrNotDisplaying
	}
	c := s.Clock
	if c == nil {
		c = clock.NewSystem()
	}
	interval := s.RotationInterval
	if interval < time.Second {
		interval = usecase.DefaultRotationInterval
	}

	rotation := c.NewTicker(interval)
	defer rotation.Stop()
	countdown := c.NewTicker(time.Second)
	defer countdown.Stop()
	defer s.Surface.Hide()

	// Build failures are carried in the view.
	_, _ = s.Session.Rotate(ctx)
	s.Surface.Render(s.Session.View())

	for {
		select {
		case <-ctx.Done():
			s.Session.Close()
			return nil
		case <-rotation.C:
			_, _ = s.Session.Rotate(ctx)
		case <-countdown.C:
			s.Session.Tick()
		}
		view := s.Session.View()
		if view.State != StateDisplaying {
			return nil
		}
		s.Surface.Render(view)
	}
}
