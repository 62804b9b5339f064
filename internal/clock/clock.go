package clock

import "time"

// Clock supplies the current time and delayed firing.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

// System is the real clock backed by the time package.
type System struct{}

func NewSystem() *System {
	return &System{}
}

func (*System) Now() time.Time {
	return time.Now()
}

func (*System) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}
