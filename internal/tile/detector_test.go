package tile

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

const (
	background = 30
	foreground = 200
	bisector   = (background + foreground) / 2
)

// frameWithRects draws light filled rectangles on a dark 640x480 BGR frame.
func frameWithRects(rects ...image.Rectangle) gocv.Mat {
	frame := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(background, background, background, 0), 480, 640, gocv.MatTypeCV8UC3)
	for _, r := range rects {
		gocv.Rectangle(&frame, r, color.RGBA{R: foreground, G: foreground, B: foreground, A: 255}, -1)
	}
	return frame
}

func scenarioParams() Params {
	p := DefaultParams()
	p.Threshold = bisector
	p.MinArea = 1000
	p.MaxArea = 100000
	return p
}

// 200x100 tile centered at (300, 200)
var tileRect = image.Rect(200, 150, 400, 250)

func TestDetectSingleTile(t *testing.T) {
	frame := frameWithRects(tileRect)
	defer frame.Close()

	contour, ok := Detect(frame, scenarioParams())
	require.True(t, ok)

	poly, ok := Approximate(contour, DefaultArcLengthFactor)
	require.True(t, ok)
	assert.Len(t, poly.Points(), 4)

	c, err := Centroid(contour)
	require.NoError(t, err)
	assert.InDelta(t, 300, c.X, 2)
	assert.InDelta(t, 200, c.Y, 2)
}

func TestDetectAreaFiltered(t *testing.T) {
	frame := frameWithRects(tileRect)
	defer frame.Close()

	p := scenarioParams()
	p.MaxArea = 5000
	_, ok := Detect(frame, p)
	assert.False(t, ok)

	p = scenarioParams()
	p.MinArea = 50000
	_, ok = Detect(frame, p)
	assert.False(t, ok)
}

func TestDetectRejectsMultipleTiles(t *testing.T) {
	frame := frameWithRects(image.Rect(40, 40, 240, 140), image.Rect(340, 260, 540, 360))
	defer frame.Close()

	_, ok := Detect(frame, scenarioParams())
	assert.False(t, ok)

	all := DetectAll(frame, scenarioParams())
	assert.Len(t, all, 2)
}

func TestDetectEmptyFrame(t *testing.T) {
	frame := frameWithRects()
	defer frame.Close()

	_, ok := Detect(frame, scenarioParams())
	assert.False(t, ok)
	assert.Empty(t, DetectAll(frame, scenarioParams()))
}

func TestDetectSmallBlobIgnored(t *testing.T) {
	// a speck below MinArea next to the tile does not count as a second tile
	frame := frameWithRects(tileRect, image.Rect(500, 400, 510, 410))
	defer frame.Close()

	contour, ok := Detect(frame, scenarioParams())
	require.True(t, ok)
	c, err := Centroid(contour)
	require.NoError(t, err)
	assert.InDelta(t, 300, c.X, 2)
}

func TestBinarizeModes(t *testing.T) {
	frame := frameWithRects(tileRect)
	defer frame.Close()

	p := scenarioParams()
	binary := Binarize(frame, p)
	defer binary.Close()
	assert.Equal(t, 1, binary.Channels())
	assert.Equal(t, uint8(255), binary.GetUCharAt(200, 300))
	assert.Equal(t, uint8(0), binary.GetUCharAt(10, 10))

	p.Mode = ThresholdToZero
	toZero := Binarize(frame, p)
	defer toZero.Close()
	assert.Equal(t, uint8(foreground), toZero.GetUCharAt(200, 300))
	assert.Equal(t, uint8(0), toZero.GetUCharAt(10, 10))

	_, ok := Detect(frame, p)
	assert.True(t, ok)
}

func TestBinarizeGrayInput(t *testing.T) {
	frame := frameWithRects(tileRect)
	defer frame.Close()
	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(frame, &gray, gocv.ColorBGRToGray)

	p := scenarioParams()
	p.MedianKernel = 4 // rounded up to 5
	_, ok := Detect(gray, p)
	assert.True(t, ok)

	p.MedianKernel = 0
	_, ok = Detect(gray, p)
	assert.True(t, ok)
}

func TestThresholdModeNames(t *testing.T) {
	for _, m := range []ThresholdMode{ThresholdBinary, ThresholdToZero} {
		parsed, err := ParseThresholdMode(m.String())
		require.NoError(t, err)
		assert.Equal(t, m, parsed)
	}
	_, err := ParseThresholdMode("otsu")
	assert.Error(t, err)
}
