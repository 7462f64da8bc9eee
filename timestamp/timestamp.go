// Package timestamp issues the ordering tokens used to timestamp writes.
// Seconds and Milliseconds read the wall clock outright, while
// Microseconds advances a single process-wide counter so that it is
// strictly increasing even when the wall clock is stationary or moves
// backward.
package timestamp

import (
	"sync"
	"time"
)

// Resolution selects the unit of the token returned by Create.
type Resolution int

const (
	Seconds Resolution = iota
	Milliseconds
	Microseconds
)

// now is the wall-clock source, overridable in tests so the
// microsecond-monotonicity contract can be exercised under a frozen
// clock without sleeping.
var now = time.Now

var (
	mu       sync.Mutex
	lastTime int64 = -1
)

func init() {
	lastTime = now().UnixMilli() * 1000
}

// Create returns an ordering token at the given resolution.
//
// For Microseconds, two calls A then B that happen-before one another
// (in program order, from any goroutine) are guaranteed to satisfy
// Create(B) > Create(A): the candidate value is the current wall-clock
// microsecond count, but if it would not advance past the last value
// issued, the counter is bumped by one instead. No ordering is
// guaranteed across resolutions or across processes.
func Create(resolution Resolution) int64 {
	switch resolution {
	case Seconds:
		return now().UnixMilli() / 1000
	case Milliseconds:
		return now().UnixMilli()
	case Microseconds:
		return createMicros()
	default:
		return now().UnixMilli()
	}
}

func createMicros() int64 {
	candidate := now().UnixMilli() * 1000

	mu.Lock()
	defer mu.Unlock()

	if candidate > lastTime {
		lastTime = candidate
	} else {
		lastTime++
	}
	return lastTime
}
