package clock

import (
	"sort"
	"sync"
	"time"
)

// FakeClock is a deterministic Clock for testing. Time advances only
// when Advance is called; tickers fire once per elapsed interval in
// deadline order.
//
// FakeClock is safe for concurrent use by multiple goroutines.
type FakeClock struct {
	mu      sync.Mutex
	current time.Time
	tickers []*fakeTicker
}

type fakeTicker struct {
	deadline time.Time
	interval time.Duration
	channel  chan time.Time
	stopped  bool
}

// NewFake returns a FakeClock initialized to the given time.
func NewFake(initial time.Time) *FakeClock {
	return &FakeClock{current: initial.UTC()}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *FakeClock) NewTicker(d time.Duration) *Ticker {
	if d <= 0 {
		panic("clock: non-positive interval for NewTicker")
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	ticker := &fakeTicker{
		deadline: c.current.Add(d),
		interval: d,
		channel:  make(chan time.Time, 1),
	}
	c.tickers = append(c.tickers, ticker)
	return &Ticker{
		C: ticker.channel,
		stopFunc: func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			ticker.stopped = true
		},
	}
}

// Set moves the clock to t without firing tickers.
func (c *FakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = t.UTC()
}

// Advance moves the clock forward by d and fires every ticker whose
// deadline falls within the new time. Sends are non-blocking.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	target := c.current.Add(d)
	for {
		next := c.nextDue(target)
		if next == nil {
			break
		}
		c.current = next.deadline
		select {
		case next.channel <- next.deadline:
		default:
		}
		next.deadline = next.deadline.Add(next.interval)
	}
	c.current = target
	c.gc()
}

// ActiveTickers reports how many tickers have not been stopped.
func (c *FakeClock) ActiveTickers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, ticker := range c.tickers {
		if !ticker.stopped {
			n++
		}
	}
	return n
}

func (c *FakeClock) nextDue(target time.Time) *fakeTicker {
	due := make([]*fakeTicker, 0, len(c.tickers))
	for _, ticker := range c.tickers {
		if ticker.stopped || ticker.deadline.After(target) {
			continue
		}
		due = append(due, ticker)
	}
	if len(due) == 0 {
		return nil
	}
	sort.SliceStable(due, func(i, j int) bool {
		return due[i].deadline.Before(due[j].deadline)
	})
	return due[0]
}

func (c *FakeClock) gc() {
	live := c.tickers[:0]
	for _, ticker := range c.tickers {
		if !ticker.stopped {
			live = append(live, ticker)
		}
	}
	c.tickers = live
}
