package session

import (
	"sort"
	"time"
)

// pauseClock removes paused spans from the sample clock. Internal time is
// wall time minus every completed pause before it, so no window ever sees
// a pause as elapsed time.
type pauseClock struct {
	paused   bool
	pausedAt time.Time
	offset   time.Duration

	// shifts[i] is the offset in effect from internal time shifts[i].from on.
	shifts []shift
}

type shift struct {
	from   time.Time
	offset time.Duration
}

func (c *pauseClock) pause(at time.Time) {
	if c.paused {
		return
	}
	c.paused = true
	c.pausedAt = at
}

func (c *pauseClock) resume(at time.Time) {
	if !c.paused {
		return
	}
	c.paused = false
	if at.After(c.pausedAt) {
		c.offset += at.Sub(c.pausedAt)
		c.shifts = append(c.shifts, shift{from: at.Add(-c.offset), offset: c.offset})
	}
}

func (c *pauseClock) toInternal(wall time.Time) time.Time {
	return wall.Add(-c.offset)
}

func (c *pauseClock) toWall(internal time.Time) time.Time {
	i := sort.Search(len(c.shifts), func(i int) bool {
		return c.shifts[i].from.After(internal)
	})
	if i == 0 {
		return internal
	}
	return internal.Add(c.shifts[i-1].offset)
}
