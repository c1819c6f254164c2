package pipeline

import (
	"context"
	"time"

	"tile-locator/internal/calibration"
	"tile-locator/internal/capture"
	"tile-locator/internal/tile"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

// LocatorConfig wires a Locator.
type LocatorConfig struct {
	Source      capture.Source
	Calibration *calibration.Data
	Anchor      r3.Vector
	Input       InputProvider
	Display     Display // nil runs headless
	Logger      *zap.SugaredLogger

	Params          tile.Params
	ArcLengthFactor float64
	// SkipRectify feeds raw frames to the detector.
	SkipRectify bool
}

// Locator tracks a single tile and publishes its latest pose.
type Locator struct {
	*loop
	calib     *calibration.Data
	rectifier *calibration.Rectifier
	display   Display
	params    tile.Params
	factor    float64

	current atomic.Pointer[tile.Pose]
}

// NewLocator finalizes the calibration against the anchor point and prepares
// the rectifier. Calibration errors are returned as is.
func NewLocator(cfg LocatorConfig) (*Locator, error) {
	if cfg.Calibration == nil {
		return nil, errors.New("no calibration")
	}
	l, err := newLoop("Locator", cfg.Source, cfg.Input, cfg.Logger)
	if err != nil {
		return nil, err
	}

	if err := cfg.Calibration.Finalize(cfg.Anchor); err != nil {
		return nil, err
	}
	l.logger.Infof("Locator: calibration ready\n%s", cfg.Calibration.Summary())

	factor := cfg.ArcLengthFactor
	if factor == 0 {
		factor = tile.DefaultArcLengthFactor
	}

	loc := &Locator{
		loop:    l,
		calib:   cfg.Calibration,
		display: cfg.Display,
		params:  cfg.Params,
		factor:  factor,
	}
	if !cfg.SkipRectify {
		loc.rectifier = calibration.NewRectifier(cfg.Calibration)
		l.onRelease = loc.rectifier.Close
	}
	l.cycle = loc.Cycle
	return loc, nil
}

// Run drives cycles until Stop, ctx cancellation, an exit request or a source
// error. The source is released before Run returns.
func (loc *Locator) Run(ctx context.Context) error {
	return loc.run(ctx)
}

// Start runs the loop on its own goroutine. The future resolves to the number
// of cycles completed.
func (loc *Locator) Start(ctx context.Context) *Future[uint64] {
	return Go(func() (uint64, error) {
		err := loc.Run(ctx)
		return loc.cycles.Load(), err
	})
}

// Stop asks the loop to finish after the current cycle.
func (loc *Locator) Stop() error {
	return loc.stopLoop()
}

// State returns where the loop is in its cycle.
func (loc *Locator) State() State {
	return loc.state.load()
}

// Current returns the most recent pose. A cycle that finds no tile leaves the
// previous pose in place.
func (loc *Locator) Current() (tile.Pose, bool) {
	p := loc.current.Load()
	if p == nil {
		return tile.Pose{}, false
	}
	return *p, true
}

// Cycle captures one frame and looks for the tile using the settings in in.
// Only source failures are returned as errors; a frame without a usable tile
// ends in NoDetection.
func (loc *Locator) Cycle(in Input) (CycleResult, error) {
	n, err := loc.next()
	if err != nil {
		return CycleResult{}, err
	}
	res := CycleResult{Cycle: n, State: NoDetection}

	frame, err := loc.source.NextFrame()
	if err != nil {
		frame.Close()
		return res, errors.Wrap(err, "capturing frame")
	}
	defer frame.Close()

	work := frame
	if loc.rectifier != nil {
		rectified, err := loc.rectifier.Rectify(frame)
		if err != nil {
			loc.logger.Warnw("Locator: rectify failed", "cycle", n, "error", err)
			loc.finish(frame, &res)
			return res, nil
		}
		defer rectified.Close()
		work = rectified
	}

	loc.state.set(Detecting)
	contour, ok := tile.Detect(work, in.Params(loc.params))
	if !ok {
		loc.finish(work, &res)
		return res, nil
	}
	res.Contour = contour

	pixel, ok, err := tile.ExtractPose(contour, loc.factor)
	if err != nil {
		loc.logger.Debugw("Locator: pose extraction failed", "cycle", n, "error", err)
	}
	if !ok || err != nil {
		loc.finish(work, &res)
		return res, nil
	}

	world, err := tile.ProjectPose(pixel, loc.calib)
	if err != nil {
		loc.logger.Warnw("Locator: projection failed", "cycle", n, "error", err)
		loc.finish(work, &res)
		return res, nil
	}

	pose := &tile.Pose{
		Cycle:     n,
		Timestamp: time.Now(),
		Pixel:     pixel,
		World:     world,
	}
	loc.current.Store(pose)
	res.Pose = pose
	res.State = PoseExtracted
	loc.logger.Debugw("Locator: pose",
		"cycle", n,
		"pixel", pixel.Centroid,
		"world", world.Centroid,
		"orientation", world.Orientation)

	loc.finish(work, &res)
	return res, nil
}

func (loc *Locator) finish(frame gocv.Mat, res *CycleResult) {
	loc.state.set(res.State)
	if loc.display != nil {
		loc.display.Show(frame, *res)
	}
	loc.state.set(Idle)
}
