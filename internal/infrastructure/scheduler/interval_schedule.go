package scheduler

import (
	"fmt"
	"time"
)

// IntervalSchedule runs a job at a fixed interval, e.g. the outbox monitor.
type IntervalSchedule struct {
	Interval time.Duration
}

// Every creates an IntervalSchedule. Intervals below one second are raised
// to one second.
func Every(interval time.Duration) *IntervalSchedule {
	if interval < time.Second {
		interval = time.Second
	}
	return &IntervalSchedule{Interval: interval}
}

// Next returns the next scheduled time.
func (s *IntervalSchedule) Next(t time.Time) time.Time {
	return t.Add(s.Interval)
}

// String returns the string representation of the schedule.
func (s *IntervalSchedule) String() string {
	return fmt.Sprintf("@every %s", s.Interval)
}
