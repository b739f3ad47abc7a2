/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package games

import "time"

const (
	MaxPoints   = 100
	MinPoints   = 10
	decayPerSec = 5
)

// Score returns the points for a correct answer given elapsed seconds
// into a round of the given duration. Answers at or after the deadline,
// or with a negative elapsed time, are worth nothing.
func Score(elapsed, roundDuration time.Duration) int {
	if elapsed < 0 || elapsed >= roundDuration {
		return 0
	}

	points := MaxPoints - int(elapsed.Milliseconds()*decayPerSec/1000)
	if points < MinPoints {
		return MinPoints
	}

	return points
}
