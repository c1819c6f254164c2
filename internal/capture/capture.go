// Package capture provides frame sources: a still image file that yields the
// same frame on every call, and live video devices.
package capture

import (
	"image"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// ErrSourceUnavailable is returned when a source cannot deliver a frame or
// has already been released.
var ErrSourceUnavailable = errors.New("frame source unavailable")

// Source delivers frames one at a time. The caller owns every returned Mat
// and must close it. Release is safe to call more than once.
type Source interface {
	NextFrame() (gocv.Mat, error)
	Release() error
}

// Options size the frames a source produces. Zero keeps the native size.
type Options struct {
	Width  int
	Height int
}

// DefaultOptions matches the resolution the calibration was made at.
func DefaultOptions() Options {
	return Options{Width: 1024, Height: 768}
}

// Open picks a source for input: a number selects a camera device, a video
// file extension a video file, anything else is read as a still image.
func Open(input string, opts Options) (Source, error) {
	if input == "" {
		return nil, errors.Wrap(ErrSourceUnavailable, "no input given")
	}
	if id, err := strconv.Atoi(input); err == nil {
		return OpenVideo(id, opts)
	}
	if IsVideoFile(input) {
		return OpenVideo(input, opts)
	}
	if !IsImageFile(input) {
		return nil, errors.Wrapf(ErrSourceUnavailable, "unsupported input %s", input)
	}
	return OpenFile(input, opts)
}

// SupportedImageFormats lists the still image extensions OpenFile decodes.
func SupportedImageFormats() []string {
	return []string{".tiff", ".tif", ".png", ".jpg", ".jpeg", ".bmp"}
}

// IsImageFile reports whether path has a supported still image extension.
func IsImageFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, format := range SupportedImageFormats() {
		if ext == format {
			return true
		}
	}
	return false
}

// IsVideoFile reports whether path has a video container extension.
func IsVideoFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp4", ".avi", ".mkv", ".mov":
		return true
	}
	return false
}

func frameSize(o Options) image.Point {
	return image.Pt(o.Width, o.Height)
}
