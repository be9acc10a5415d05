package bist

import "time"

// Clock abstracts time for the done-polling loop so the timeout path can
// be tested without sleeping.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

// WallClock returns the real-time clock.
func WallClock() Clock {
	return wallClock{}
}

type wallClock struct{}

func (wallClock) Now() time.Time {
	return time.Now()
}

func (wallClock) Sleep(d time.Duration) {
	time.Sleep(d)
}
