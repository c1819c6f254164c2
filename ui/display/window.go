package display

import (
	"sync"

	"tile-locator/internal/pipeline"
	"tile-locator/ui/prefs"

	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

const (
	keyEscape = 27
	keyQuit   = 'q'
	keySave   = 's'

	prefThreshold = "threshold"
	prefMinArea   = "min_area"
	prefMaxArea   = "max_area"
)

// Options configures a Window.
type Options struct {
	Name         string
	MaxThreshold int
	MaxArea      int
	WaitMillis   int
	Palette      Palette
	// Initial slider values, overridden by saved preferences.
	Initial pipeline.Input
	Prefs   *prefs.Prefs // nil disables persistence
	Logger  *zap.SugaredLogger
}

// Window shows frames and supplies the slider settings. Keys: q or Esc
// exits, s saves. Closing the window also exits.
type Window struct {
	opts Options
	win  *gocv.Window

	threshold *gocv.Trackbar
	minArea   *gocv.Trackbar
	maxArea   *gocv.Trackbar

	mu   sync.Mutex
	save bool
	exit bool
}

// NewWindow opens the window with its sliders.
func NewWindow(opts Options) *Window {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}
	w := &Window{opts: opts, win: gocv.NewWindow(opts.Name)}

	initial := opts.Initial
	if opts.Prefs != nil {
		initial.Threshold = opts.Prefs.Int(prefThreshold, initial.Threshold)
		initial.MinArea = opts.Prefs.Int(prefMinArea, initial.MinArea)
		initial.MaxArea = opts.Prefs.Int(prefMaxArea, initial.MaxArea)
	}

	w.threshold = w.win.CreateTrackbar("Threshold", opts.MaxThreshold)
	w.threshold.SetPos(clamp(initial.Threshold, 0, opts.MaxThreshold))
	w.minArea = w.win.CreateTrackbar("Min area", opts.MaxArea)
	w.minArea.SetPos(clamp(initial.MinArea, 0, opts.MaxArea))
	w.maxArea = w.win.CreateTrackbar("Max area", opts.MaxArea)
	w.maxArea.SetPos(clamp(initial.MaxArea, 0, opts.MaxArea))
	return w
}

// NextInput implements pipeline.InputProvider. A save request is consumed by
// the snapshot that reports it.
func (w *Window) NextInput() pipeline.Input {
	w.mu.Lock()
	defer w.mu.Unlock()

	in := pipeline.Input{
		Threshold:  w.threshold.GetPos(),
		MinArea:    w.minArea.GetPos(),
		MaxArea:    w.maxArea.GetPos(),
		ShouldSave: w.save,
		ShouldExit: w.exit || !w.win.IsOpen(),
	}
	w.save = false
	return in
}

// Show implements pipeline.Display and polls the keyboard.
func (w *Window) Show(frame gocv.Mat, res pipeline.CycleResult) {
	canvas := Overlay(frame, res, w.opts.Palette)
	defer canvas.Close()

	w.win.IMShow(canvas)
	key := w.win.WaitKey(w.opts.WaitMillis)

	w.mu.Lock()
	defer w.mu.Unlock()
	switch key {
	case keyQuit, keyEscape:
		w.exit = true
	case keySave:
		w.save = true
	}
}

// Close stores the slider positions and closes the window.
func (w *Window) Close() error {
	if p := w.opts.Prefs; p != nil {
		p.SetInt(prefThreshold, w.threshold.GetPos())
		p.SetInt(prefMinArea, w.minArea.GetPos())
		p.SetInt(prefMaxArea, w.maxArea.GetPos())
		if err := p.Save(); err != nil {
			w.opts.Logger.Warnw("Display: could not save preferences", "path", p.Path(), "error", err)
		}
	}
	return w.win.Close()
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
