/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package games

import "time"

// Timer is a scheduled callback that can be cancelled.
type Timer interface {
	Stop() bool
}

// Clock is the room's source of time. Rooms never call the time package
// directly so that tests can drive rounds deterministically.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now()
}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// SystemClock returns a Clock backed by the time package.
func SystemClock() Clock {
	return realClock{}
}
