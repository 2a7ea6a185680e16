// Package backoff implements the retry delay schedule shared by every
// reconnect path in the daemon: start at a floor, double after each
// consecutive failure, saturate at a ceiling, reset on success.
package backoff

import "time"

const (
	DefaultFloor   = 2 * time.Second
	DefaultCeiling = 5 * time.Minute
)

// Policy produces the delay sequence floor, 2f, 4f, ... capped at ceiling.
// It is not safe for concurrent use; each failure domain (chart connect,
// chart write, weather fetch) owns its own instance.
type Policy struct {
	floor   time.Duration
	ceiling time.Duration
	cur     time.Duration
}

// New clamps nonsensical bounds: a non-positive floor falls back to
// DefaultFloor and a ceiling below the floor is raised to it.
func New(floor, ceiling time.Duration) *Policy {
	if floor <= 0 {
		floor = DefaultFloor
	}
	if ceiling < floor {
		ceiling = floor
	}
	return &Policy{floor: floor, ceiling: ceiling}
}

// Next returns the delay to sleep before the upcoming retry and advances
// the schedule.
func (p *Policy) Next() time.Duration {
	switch {
	case p.cur <= 0:
		p.cur = p.floor
	case p.cur <= p.ceiling/2:
		p.cur *= 2
	default:
		p.cur = p.ceiling
	}
	return p.cur
}

// Reset rewinds the schedule so the next failure starts again at the floor.
func (p *Policy) Reset() { p.cur = 0 }
