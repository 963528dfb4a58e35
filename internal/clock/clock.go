package clock

import (
	"sync"
	"time"

	"github.com/segyhp/pawn-engine/pkg/utils"
)

// Clock supplies the current time. Lifecycle code never calls time.Now directly.
type Clock interface {
	Now() time.Time
}

// Today returns midnight of the clock's current day
func Today(c Clock) time.Time {
	return utils.StartOfDay(c.Now())
}

// System reads the wall clock in a fixed location
type System struct {
	Location *time.Location
}

func NewSystem(loc *time.Location) System {
	if loc == nil {
		loc = time.UTC
	}
	return System{Location: loc}
}

func (c System) Now() time.Time {
	return time.Now().In(c.Location)
}

// Fixed is a settable clock for tests and replays
type Fixed struct {
	mu  sync.RWMutex
	now time.Time
}

func NewFixed(t time.Time) *Fixed {
	return &Fixed{now: t}
}

func (c *Fixed) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.now
}

func (c *Fixed) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

// AdvanceDays moves the clock forward by whole days
func (c *Fixed) AdvanceDays(days int) {
	c.mu.Lock()
	c.now = c.now.AddDate(0, 0, days)
	c.mu.Unlock()
}
