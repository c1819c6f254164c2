// Package pipeline runs the perception loop: capture a frame, find the tile,
// extract and publish its pose, and show the result.
package pipeline

import (
	"fmt"

	"go.uber.org/atomic"
)

// State is the position of a loop within its cycle.
type State int32

const (
	Idle State = iota
	Capturing
	Detecting
	PoseExtracted
	NoDetection
	Terminated
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Capturing:
		return "capturing"
	case Detecting:
		return "detecting"
	case PoseExtracted:
		return "pose extracted"
	case NoDetection:
		return "no detection"
	case Terminated:
		return "terminated"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// stateCell holds a State that can be read from any goroutine. Once
// Terminated it no longer changes.
type stateCell struct {
	v atomic.Int32
}

func (c *stateCell) load() State {
	return State(c.v.Load())
}

// set moves to s unless the cell is already Terminated.
func (c *stateCell) set(s State) bool {
	for {
		cur := c.v.Load()
		if State(cur) == Terminated {
			return false
		}
		if c.v.CompareAndSwap(cur, int32(s)) {
			return true
		}
	}
}
