package pipeline

import (
	"context"

	"tile-locator/internal/calibration"
	"tile-locator/internal/capture"
	"tile-locator/internal/mesh"
	"tile-locator/internal/tile"
	"tile-locator/pkg/geometry"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// FinderConfig wires a Finder.
type FinderConfig struct {
	Source  capture.Source
	Input   InputProvider
	Display Display // nil runs headless
	Logger  *zap.SugaredLogger

	// Rectifier is optional; without one raw frames are searched. The Finder
	// closes it together with the source.
	Rectifier *calibration.Rectifier

	Params            tile.Params
	Thickness         float64
	SimplifyTolerance float64
	// Output is the mesh document written on save requests.
	Output string
}

// Finder collects every tile in view and extrudes their outlines to solids
// when asked to save.
type Finder struct {
	*loop
	cfg FinderConfig
}

// NewFinder checks the configuration and returns an idle Finder.
func NewFinder(cfg FinderConfig) (*Finder, error) {
	if cfg.Thickness <= 0 {
		return nil, errors.Errorf("thickness must be positive, got %v", cfg.Thickness)
	}
	if cfg.Output == "" {
		return nil, errors.New("no output path")
	}
	l, err := newLoop("Finder", cfg.Source, cfg.Input, cfg.Logger)
	if err != nil {
		return nil, err
	}
	f := &Finder{loop: l, cfg: cfg}
	if cfg.Rectifier != nil {
		l.onRelease = cfg.Rectifier.Close
	}
	l.cycle = f.Cycle
	return f, nil
}

// Run drives cycles until Stop, ctx cancellation, an exit request or an
// error.
func (f *Finder) Run(ctx context.Context) error {
	return f.run(ctx)
}

// Start runs the loop on its own goroutine.
func (f *Finder) Start(ctx context.Context) *Future[uint64] {
	return Go(func() (uint64, error) {
		err := f.Run(ctx)
		return f.cycles.Load(), err
	})
}

// Stop asks the loop to finish after the current cycle.
func (f *Finder) Stop() error {
	return f.stopLoop()
}

// State returns where the loop is in its cycle.
func (f *Finder) State() State {
	return f.state.load()
}

// Cycle finds all tiles in one frame and, when in.ShouldSave is set, writes
// their solids to the output. Failing to write the output is an error.
func (f *Finder) Cycle(in Input) (CycleResult, error) {
	n, err := f.next()
	if err != nil {
		return CycleResult{}, err
	}
	res := CycleResult{Cycle: n, State: NoDetection}

	frame, err := f.source.NextFrame()
	if err != nil {
		frame.Close()
		return res, errors.Wrap(err, "capturing frame")
	}
	defer frame.Close()

	work := frame
	if f.cfg.Rectifier != nil {
		rectified, err := f.cfg.Rectifier.Rectify(frame)
		if err != nil {
			f.logger.Warnw("Finder: rectify failed", "cycle", n, "error", err)
			f.finish(&res)
			return res, nil
		}
		defer rectified.Close()
		work = rectified
	}

	f.state.set(Detecting)
	for _, c := range tile.DetectAll(work, in.Params(f.cfg.Params)) {
		hull := geometry.ConvexHull(geometry.FromImagePoints(c))
		if len(hull) >= 3 {
			res.Hulls = append(res.Hulls, hull)
		}
	}
	if len(res.Hulls) > 0 {
		res.State = PoseExtracted
	}
	f.state.set(res.State)

	if f.cfg.Display != nil {
		f.cfg.Display.Show(work, res)
	}

	if in.ShouldSave {
		saved, err := f.save(n, res.Hulls)
		if err != nil {
			return res, err
		}
		res.Saved = saved
	}

	f.finish(&res)
	return res, nil
}

func (f *Finder) finish(res *CycleResult) {
	f.state.set(res.State)
	f.state.set(Idle)
}

// save builds one solid per hull concurrently. Outlines that cannot be
// extruded are skipped.
func (f *Finder) save(cycle uint64, hulls [][]geometry.Point2D) (int, error) {
	built := make([]*mesh.Record, len(hulls))

	var g errgroup.Group
	for i, hull := range hulls {
		i, hull := i, hull
		g.Go(func() error {
			outline := mesh.Simplify(hull, f.cfg.SimplifyTolerance)
			m, err := mesh.Build(outline, f.cfg.Thickness)
			if errors.Is(err, mesh.ErrDegeneratePolygon) {
				f.logger.Warnw("Finder: skipping outline", "cycle", cycle, "tile", i, "error", err)
				return nil
			}
			if err != nil {
				return err
			}
			rec := mesh.NewRecord(cycle, m)
			built[i] = &rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	records := make([]mesh.Record, 0, len(built))
	for _, r := range built {
		if r != nil {
			records = append(records, *r)
		}
	}
	if err := mesh.SaveJSON(f.cfg.Output, records); err != nil {
		return 0, errors.Wrapf(err, "saving %s", f.cfg.Output)
	}
	f.logger.Infow("Finder: saved tiles", "cycle", cycle, "count", len(records), "output", f.cfg.Output)
	return len(records), nil
}
