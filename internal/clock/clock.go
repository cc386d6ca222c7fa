// Package clock abstracts time so the scoring kernel, layer manager, and
// consolidation FSM can be tested deterministically instead of racing the
// wall clock (spec §C1).
package clock

import "time"

// Clock is the time source every component that reasons about recency,
// TTLs, or decay consumes instead of calling time.Now directly.
type Clock interface {
	Now() time.Time
}

// System implements Clock with the real wall clock.
type System struct{}

func (System) Now() time.Time { return time.Now() }
