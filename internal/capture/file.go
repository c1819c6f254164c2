package capture

import (
	"sync"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	_ "golang.org/x/image/tiff"
)

// FileSource serves a single decoded image. Each NextFrame returns a fresh
// copy so callers may modify or close it freely.
type FileSource struct {
	path string

	mu       sync.Mutex
	frame    gocv.Mat
	released bool
}

// OpenFile decodes the image at path and resizes it to the requested size.
func OpenFile(path string, opts Options) (*FileSource, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, errors.Wrapf(ErrSourceUnavailable, "opening %s: %v", path, err)
	}
	if opts.Width > 0 && opts.Height > 0 {
		b := img.Bounds()
		if b.Dx() != opts.Width || b.Dy() != opts.Height {
			img = imaging.Resize(img, opts.Width, opts.Height, imaging.Lanczos)
		}
	}

	frame, err := ImageToMat(img)
	if err != nil {
		frame.Close()
		return nil, errors.Wrapf(ErrSourceUnavailable, "converting %s: %v", path, err)
	}
	return &FileSource{path: path, frame: frame}, nil
}

// Path returns the file the frame was read from.
func (s *FileSource) Path() string {
	return s.path
}

// NextFrame returns a copy of the image.
func (s *FileSource) NextFrame() (gocv.Mat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return gocv.NewMat(), errors.Wrap(ErrSourceUnavailable, "released")
	}
	return s.frame.Clone(), nil
}

// Release frees the decoded image.
func (s *FileSource) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return nil
	}
	s.released = true
	return s.frame.Close()
}
