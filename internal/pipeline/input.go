package pipeline

import (
	"tile-locator/internal/tile"
	"tile-locator/pkg/geometry"

	"gocv.io/x/gocv"
)

// Input is the user's settings for one cycle. It is taken once at the start
// of the cycle and not consulted again.
type Input struct {
	Threshold  int
	MinArea    int
	MaxArea    int
	ShouldSave bool
	ShouldExit bool
}

// Params applies the snapshot to the configured detection settings.
func (in Input) Params(base tile.Params) tile.Params {
	base.Threshold = in.Threshold
	base.MinArea = float64(in.MinArea)
	base.MaxArea = float64(in.MaxArea)
	return base
}

// InputProvider supplies a fresh snapshot each cycle.
type InputProvider interface {
	NextInput() Input
}

// StaticInput always returns the same settings. Used for headless runs.
type StaticInput Input

// NextInput implements InputProvider.
func (s StaticInput) NextInput() Input {
	return Input(s)
}

// InputFromParams returns the snapshot equivalent of p.
func InputFromParams(p tile.Params) Input {
	return Input{
		Threshold: p.Threshold,
		MinArea:   int(p.MinArea),
		MaxArea:   int(p.MaxArea),
	}
}

// CycleResult describes what one cycle found.
type CycleResult struct {
	Cycle uint64
	State State

	// Locator results
	Contour tile.Contour
	Pose    *tile.Pose

	// Finder results
	Hulls [][]geometry.Point2D
	Saved int
}

// Display shows the processed frame of each cycle. The frame is only valid
// for the duration of the call.
type Display interface {
	Show(frame gocv.Mat, result CycleResult)
}
