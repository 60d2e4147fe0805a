package core

import "time"

// Clock measures game time in seconds. Time spent stopped is excluded from
// the total.
type Clock struct {
	now func() time.Time

	base      time.Time
	previous  time.Time
	stoppedAt time.Time
	paused    time.Duration

	delta   float64
	stopped bool
}

func NewClock() *Clock {
	return &Clock{now: time.Now}
}

// Start resets the clock to zero and starts it.
func (c *Clock) Start() {
	t := c.now()
	c.base = t
	c.previous = t
	c.paused = 0
	c.delta = 0
	c.stopped = false
}

// Tick advances the clock. Should be called once per frame, before reading
// the delta.
func (c *Clock) Tick() {
	if c.stopped {
		c.delta = 0
		return
	}
	t := c.now()
	c.delta = t.Sub(c.previous).Seconds()
	c.previous = t
	// can go negative if the process moves to another core while sleeping
	if c.delta < 0 {
		c.delta = 0
	}
}

// Stop pauses the clock. Does not reset elapsed time.
func (c *Clock) Stop() {
	if c.stopped {
		return
	}
	c.stoppedAt = c.now()
	c.stopped = true
}

// Resume restarts a stopped clock, discarding the stopped interval.
func (c *Clock) Resume() {
	if !c.stopped {
		return
	}
	t := c.now()
	c.paused += t.Sub(c.stoppedAt)
	c.previous = t
	c.stopped = false
}

// Delta is the time between the two last ticks, in seconds.
func (c *Clock) Delta() float64 {
	return c.delta
}

// Total is the running time since Start, in seconds, not counting pauses.
func (c *Clock) Total() float64 {
	end := c.previous
	if c.stopped {
		end = c.stoppedAt
	}
	return (end.Sub(c.base) - c.paused).Seconds()
}
