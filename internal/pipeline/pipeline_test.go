package pipeline

import (
	"context"
	"image"
	"image/color"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"tile-locator/internal/calibration"
	"tile-locator/internal/capture"
	"tile-locator/internal/mesh"
	"tile-locator/internal/tile"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/mat"
)

// fakeSource serves copies of one frame, failing after limit frames when
// limit is positive.
type fakeSource struct {
	frame    gocv.Mat
	limit    int
	served   atomic.Int64
	released atomic.Int64
}

func newFakeSource(t *testing.T, limit int, rects ...image.Rectangle) *fakeSource {
	frame := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(30, 30, 30, 0), 480, 640, gocv.MatTypeCV8UC3)
	for _, r := range rects {
		gocv.Rectangle(&frame, r, color.RGBA{R: 200, G: 200, B: 200, A: 255}, -1)
	}
	t.Cleanup(func() { frame.Close() })
	return &fakeSource{frame: frame, limit: limit}
}

func (s *fakeSource) NextFrame() (gocv.Mat, error) {
	if s.released.Load() > 0 {
		return gocv.NewMat(), capture.ErrSourceUnavailable
	}
	if s.limit > 0 && s.served.Load() >= int64(s.limit) {
		return gocv.NewMat(), errors.Wrap(capture.ErrSourceUnavailable, "device lost")
	}
	s.served.Inc()
	return s.frame.Clone(), nil
}

func (s *fakeSource) Release() error {
	s.released.Inc()
	return nil
}

// seqInput hands out the given snapshots in order, then asks to exit.
type seqInput struct {
	mu     sync.Mutex
	inputs []Input
}

func (s *seqInput) NextInput() Input {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.inputs) == 0 {
		return Input{ShouldExit: true}
	}
	in := s.inputs[0]
	s.inputs = s.inputs[1:]
	return in
}

type recordDisplay struct {
	results []CycleResult
}

func (d *recordDisplay) Show(frame gocv.Mat, r CycleResult) {
	d.results = append(d.results, r)
}

var (
	tileRect    = image.Rect(200, 150, 400, 250) // centroid (300, 200)
	detectInput = Input{Threshold: 115, MinArea: 1000, MaxArea: 100000}
)

// pinhole camera 50 cm above the plane, looking straight down
func testCalibration() *calibration.Data {
	k := []float64{500, 0, 320, 0, 500, 240, 0, 0, 1}
	return &calibration.Data{
		CameraMatrix:          mat.NewDense(3, 3, k),
		DistCoeffs:            []float64{0, 0, 0, 0, 0},
		TranslationVector:     r3.Vector{Z: 50},
		OptimizedCameraMatrix: mat.NewDense(3, 3, append([]float64(nil), k...)),
	}
}

func newTestLocator(t *testing.T, src capture.Source, input InputProvider, display Display) *Locator {
	t.Helper()
	loc, err := NewLocator(LocatorConfig{
		Source:      src,
		Calibration: testCalibration(),
		Input:       input,
		Display:     display,
		Params:      tile.DefaultParams(),
	})
	require.NoError(t, err)
	return loc
}

func TestLocatorCycle(t *testing.T) {
	display := &recordDisplay{}
	loc := newTestLocator(t, newFakeSource(t, 0, tileRect), StaticInput(detectInput), display)
	defer loc.Stop()

	_, ok := loc.Current()
	assert.False(t, ok)

	res, err := loc.Cycle(detectInput)
	require.NoError(t, err)
	assert.Equal(t, PoseExtracted, res.State)
	assert.Equal(t, uint64(1), res.Cycle)
	assert.Equal(t, Idle, loc.State())

	pose, ok := loc.Current()
	require.True(t, ok)
	assert.Equal(t, uint64(1), pose.Cycle)
	assert.InDelta(t, 300, pose.Pixel.Centroid.X, 2)
	assert.InDelta(t, 200, pose.Pixel.Centroid.Y, 2)
	// 1 px is 0.1 cm at 50 cm
	assert.InDelta(t, -2, pose.World.Centroid.X, 0.2)
	assert.InDelta(t, -4, pose.World.Centroid.Y, 0.2)
	assert.InDelta(t, 0, pose.World.Centroid.Z, 1e-6)
	assert.InDelta(t, 20, pose.World.Orientation.Norm(), 0.5)

	require.Len(t, display.results, 1)
	assert.Equal(t, PoseExtracted, display.results[0].State)
}

func TestLocatorMissKeepsLastPose(t *testing.T) {
	loc := newTestLocator(t, newFakeSource(t, 0, tileRect), StaticInput(detectInput), nil)
	defer loc.Stop()

	_, err := loc.Cycle(detectInput)
	require.NoError(t, err)
	first, ok := loc.Current()
	require.True(t, ok)

	miss := detectInput
	miss.MaxArea = 5000
	res, err := loc.Cycle(miss)
	require.NoError(t, err)
	assert.Equal(t, NoDetection, res.State)
	assert.Nil(t, res.Pose)

	latest, ok := loc.Current()
	require.True(t, ok)
	assert.Equal(t, first, latest)
}

func TestLocatorTwoTilesIsNoDetection(t *testing.T) {
	src := newFakeSource(t, 0, image.Rect(40, 40, 240, 140), image.Rect(340, 260, 540, 360))
	loc := newTestLocator(t, src, StaticInput(detectInput), nil)
	defer loc.Stop()

	res, err := loc.Cycle(detectInput)
	require.NoError(t, err)
	assert.Equal(t, NoDetection, res.State)
}

func TestLocatorRunUntilExit(t *testing.T) {
	src := newFakeSource(t, 0, tileRect)
	input := &seqInput{inputs: []Input{detectInput, detectInput, detectInput}}
	loc := newTestLocator(t, src, input, nil)

	require.NoError(t, loc.Run(context.Background()))
	assert.Equal(t, uint64(3), loc.cycles.Load())
	assert.Equal(t, Terminated, loc.State())
	assert.Equal(t, int64(1), src.released.Load())

	_, err := loc.Cycle(detectInput)
	assert.Error(t, err)
	require.NoError(t, loc.Stop())
	assert.Equal(t, int64(1), src.released.Load())
}

func TestLocatorRunSourceError(t *testing.T) {
	src := newFakeSource(t, 2, tileRect)
	loc := newTestLocator(t, src, StaticInput(detectInput), nil)

	err := loc.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, capture.ErrSourceUnavailable))
	assert.Equal(t, int64(1), src.released.Load())

	// the pose of the last good cycle stays available
	_, ok := loc.Current()
	assert.True(t, ok)
}

func TestLocatorRunCancelled(t *testing.T) {
	src := newFakeSource(t, 0, tileRect)
	loc := newTestLocator(t, src, StaticInput(detectInput), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := loc.Run(ctx)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, uint64(0), loc.cycles.Load())
	assert.Equal(t, int64(1), src.released.Load())
}

func TestLocatorStartStop(t *testing.T) {
	src := newFakeSource(t, 0, tileRect)
	loc := newTestLocator(t, src, StaticInput(detectInput), nil)

	fut := loc.Start(context.Background())
	require.Eventually(t, func() bool {
		_, ok := loc.Current()
		return ok
	}, 5*time.Second, 5*time.Millisecond)

	require.NoError(t, loc.Stop())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	cycles, err := fut.Wait(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, cycles, uint64(1))
	assert.Equal(t, Terminated, loc.State())
	assert.Equal(t, int64(1), src.released.Load())

	_, done, err := fut.Poll()
	assert.True(t, done)
	assert.NoError(t, err)
}

func TestLocatorStopBeforeRun(t *testing.T) {
	src := newFakeSource(t, 0, tileRect)
	loc := newTestLocator(t, src, StaticInput(detectInput), nil)

	require.NoError(t, loc.Stop())
	assert.Equal(t, Terminated, loc.State())
	assert.Equal(t, int64(1), src.released.Load())

	require.NoError(t, loc.Run(context.Background()))
	assert.Equal(t, uint64(0), loc.cycles.Load())
	assert.Equal(t, int64(1), src.released.Load())
}

func TestNewLocatorErrors(t *testing.T) {
	src := newFakeSource(t, 0)

	calib := testCalibration()
	calib.CameraMatrix = mat.NewDense(3, 3, nil)
	_, err := NewLocator(LocatorConfig{Source: src, Calibration: calib, Input: StaticInput{}})
	assert.True(t, errors.Is(err, calibration.ErrSingularMatrix))

	_, err = NewLocator(LocatorConfig{Source: src, Input: StaticInput{}})
	assert.Error(t, err)

	_, err = NewLocator(LocatorConfig{Calibration: testCalibration(), Input: StaticInput{}})
	assert.Error(t, err)
}

func TestFinderSavesEveryTile(t *testing.T) {
	src := newFakeSource(t, 0, image.Rect(40, 40, 240, 140), image.Rect(340, 260, 540, 360))
	out := filepath.Join(t.TempDir(), "tiles.json")
	display := &recordDisplay{}

	save := detectInput
	save.ShouldSave = true
	f, err := NewFinder(FinderConfig{
		Source:    src,
		Input:     &seqInput{inputs: []Input{detectInput, save}},
		Display:   display,
		Params:    tile.DefaultParams(),
		Thickness: 0.5,
		Output:    out,
	})
	require.NoError(t, err)

	require.NoError(t, f.Run(context.Background()))
	require.Len(t, display.results, 2)
	assert.Len(t, display.results[0].Hulls, 2)
	assert.Equal(t, PoseExtracted, display.results[1].State)

	doc, err := mesh.LoadJSON(out)
	require.NoError(t, err)
	require.Len(t, doc.Tiles, 2)
	for _, rec := range doc.Tiles {
		assert.Equal(t, uint64(2), rec.Cycle)
		assert.Equal(t, len(rec.Vertices)/2*4-4, len(rec.Faces), "2(n-2) cap + 2n side triangles")
	}
	assert.Equal(t, int64(1), src.released.Load())
}

func TestFinderNothingInView(t *testing.T) {
	out := filepath.Join(t.TempDir(), "tiles.json")
	f, err := NewFinder(FinderConfig{
		Source:    newFakeSource(t, 0),
		Input:     StaticInput(detectInput),
		Params:    tile.DefaultParams(),
		Thickness: 1,
		Output:    out,
	})
	require.NoError(t, err)
	defer f.Stop()

	save := detectInput
	save.ShouldSave = true
	res, err := f.Cycle(save)
	require.NoError(t, err)
	assert.Equal(t, NoDetection, res.State)
	assert.Equal(t, 0, res.Saved)

	doc, err := mesh.LoadJSON(out)
	require.NoError(t, err)
	assert.Empty(t, doc.Tiles)
}

func TestNewFinderErrors(t *testing.T) {
	_, err := NewFinder(FinderConfig{Source: newFakeSource(t, 0), Input: StaticInput{}, Output: "x.json"})
	assert.Error(t, err)
	_, err = NewFinder(FinderConfig{Source: newFakeSource(t, 0), Input: StaticInput{}, Thickness: 1})
	assert.Error(t, err)
}

func TestFuture(t *testing.T) {
	release := make(chan struct{})
	f := Go(func() (int, error) {
		<-release
		return 42, nil
	})

	_, done, err := f.Poll()
	assert.False(t, done)
	assert.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = f.Wait(ctx)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	close(release)
	<-f.Done()
	v, done, err := f.Poll()
	assert.True(t, done)
	assert.NoError(t, err)
	assert.Equal(t, 42, v)

	failing := Go(func() (int, error) { return 0, errors.New("boom") })
	_, err = failing.Wait(context.Background())
	assert.EqualError(t, err, "boom")
}

func TestStateCell(t *testing.T) {
	var c stateCell
	assert.Equal(t, Idle, c.load())
	assert.True(t, c.set(Detecting))
	assert.True(t, c.set(Terminated))
	assert.False(t, c.set(Idle))
	assert.Equal(t, Terminated, c.load())
	assert.Equal(t, "no detection", NoDetection.String())
}
