package queue

import (
	"fmt"
	"time"
)

// Schedule computes the run times of a periodic task.
type Schedule interface {
	// Next returns the first run time strictly after from.
	Next(from time.Time) time.Time
	String() string
}

type intervalSchedule struct {
	interval time.Duration
}

// Next aligns runs to multiples of the interval since the Unix epoch, so every
// process computes the same run times.
func (s intervalSchedule) Next(from time.Time) time.Time {
	return from.Truncate(s.interval).Add(s.interval)
}

func (s intervalSchedule) String() string {
	return fmt.Sprintf("every %s", s.interval)
}

// EveryInterval runs a task every d. Values below one second are raised to one second.
func EveryInterval(d time.Duration) Schedule {
	return intervalSchedule{interval: max(d, time.Second)}
}
