// Package clock abstracts wall time and periodic ticks so that the
// rotation scheduler and the verifier can be driven deterministically
// in tests.
package clock

import "time"

// Clock allows injecting time in use cases and schedulers.
type Clock interface {
	Now() time.Time

	// NewTicker returns a Ticker delivering ticks every d. Panics if
	// d <= 0, matching time.NewTicker.
	NewTicker(d time.Duration) *Ticker
}

// Ticker wraps a periodic timer. The C channel has capacity 1; if the
// consumer falls behind, ticks are dropped rather than queued.
type Ticker struct {
	C <-chan time.Time

	stopFunc func()
}

// Stop turns off the ticker. Stop does not close C.
func (t *Ticker) Stop() { t.stopFunc() }

type systemClock struct{}

// NewSystem returns a clock backed by the time package.
func NewSystem() Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

func (systemClock) NewTicker(d time.Duration) *Ticker {
	ticker := time.NewTicker(d)
	return &Ticker{C: ticker.C, stopFunc: ticker.Stop}
}

type fixedClock struct {
	now time.Time
}

// NewFixed returns a clock that always returns the same instant. Its
// tickers never fire.
func NewFixed(t time.Time) Clock {
	return fixedClock{now: t.UTC()}
}

func (f fixedClock) Now() time.Time {
	return f.now
}

func (f fixedClock) NewTicker(d time.Duration) *Ticker {
	if d <= 0 {
		panic("clock: non-positive interval for NewTicker")
	}
	return &Ticker{C: make(chan time.Time), stopFunc: func() {}}
}

// Unix is a convenience for clocks counted in whole seconds.
func Unix(c Clock) int64 {
	return c.Now().Unix()
}
