package capture

import (
	"sync"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// VideoSource reads frames from a camera device or a video file.
type VideoSource struct {
	device interface{}
	opts   Options

	mu       sync.Mutex
	vc       *gocv.VideoCapture
	released bool
}

// OpenVideo opens a device index or video file path.
func OpenVideo(device interface{}, opts Options) (*VideoSource, error) {
	vc, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return nil, errors.Wrapf(ErrSourceUnavailable, "opening %v: %v", device, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, errors.Wrapf(ErrSourceUnavailable, "opening %v", device)
	}
	if opts.Width > 0 && opts.Height > 0 {
		vc.Set(gocv.VideoCaptureFrameWidth, float64(opts.Width))
		vc.Set(gocv.VideoCaptureFrameHeight, float64(opts.Height))
	}
	return &VideoSource{device: device, opts: opts, vc: vc}, nil
}

// NextFrame blocks until the next frame is read. Frames that the device
// delivers at another size are resized to the configured one.
func (s *VideoSource) NextFrame() (gocv.Mat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return gocv.NewMat(), errors.Wrap(ErrSourceUnavailable, "released")
	}

	frame := gocv.NewMat()
	if ok := s.vc.Read(&frame); !ok || frame.Empty() {
		frame.Close()
		return gocv.NewMat(), errors.Wrapf(ErrSourceUnavailable, "reading %v", s.device)
	}

	if s.opts.Width > 0 && s.opts.Height > 0 &&
		(frame.Cols() != s.opts.Width || frame.Rows() != s.opts.Height) {
		resized := gocv.NewMat()
		gocv.Resize(frame, &resized, frameSize(s.opts), 0, 0, gocv.InterpolationLinear)
		frame.Close()
		frame = resized
	}
	return frame, nil
}

// Release closes the device.
func (s *VideoSource) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return nil
	}
	s.released = true
	return s.vc.Close()
}
