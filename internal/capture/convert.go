package capture

import (
	"image"
	"runtime"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// ImageToMat converts a Go image to a 3-channel BGR Mat. Rows are copied
// in parallel stripes.
func ImageToMat(img image.Image) (gocv.Mat, error) {
	src := imaging.Clone(img) // normalizes to NRGBA at origin
	width := src.Rect.Dx()
	height := src.Rect.Dy()
	if width == 0 || height == 0 {
		return gocv.NewMat(), errors.New("empty image")
	}

	buf := make([]byte, width*height*3)

	numWorkers := runtime.NumCPU()
	rowsPerWorker := (height + numWorkers - 1) / numWorkers

	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		startY := w * rowsPerWorker
		endY := startY + rowsPerWorker
		if endY > height {
			endY = height
		}
		if startY >= height {
			break
		}

		wg.Add(1)
		go func(yStart, yEnd int) {
			defer wg.Done()
			for y := yStart; y < yEnd; y++ {
				in := src.Pix[y*src.Stride:]
				out := buf[y*width*3:]
				for x := 0; x < width; x++ {
					// OpenCV uses BGR order
					out[x*3+0] = in[x*4+2]
					out[x*3+1] = in[x*4+1]
					out[x*3+2] = in[x*4+0]
				}
			}
		}(startY, endY)
	}
	wg.Wait()

	return gocv.NewMatFromBytes(height, width, gocv.MatTypeCV8UC3, buf)
}

// MatToImage converts a BGR or grayscale Mat to an RGBA image.
func MatToImage(mat gocv.Mat) (*image.RGBA, error) {
	if mat.Empty() {
		return nil, errors.New("empty frame")
	}

	h := mat.Rows()
	w := mat.Cols()
	channels := mat.Channels()
	if channels != 1 && channels != 3 {
		return nil, errors.Errorf("unsupported channel count %d", channels)
	}

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride:]
		for x := 0; x < w; x++ {
			if channels == 1 {
				v := mat.GetUCharAt(y, x)
				row[x*4+0], row[x*4+1], row[x*4+2] = v, v, v
			} else {
				row[x*4+0] = mat.GetUCharAt(y, x*3+2)
				row[x*4+1] = mat.GetUCharAt(y, x*3+1)
				row[x*4+2] = mat.GetUCharAt(y, x*3+0)
			}
			row[x*4+3] = 255
		}
	}
	return img, nil
}
