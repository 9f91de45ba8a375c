package store

import "time"

// Clock supplies wall time for every timestamp the store writes.
//
// All rows written within one transaction share a single Now() reading, so a
// step's completed_at and its version row's changed_at are always equal.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the real wall clock.
type SystemClock struct{}

// Now returns time.Now truncated to whole seconds.
func (SystemClock) Now() time.Time {
	return time.Now().Truncate(time.Second)
}

func fromUnix(sec int64) time.Time {
	return time.Unix(sec, 0)
}
